package validate

import (
	"math"
	"strconv"
	"strings"
)

const MaxPrice = 999999

type PriceResult struct {
	Result
	Normalized float64
}

// Price parses a user-entered price. Strings may use a comma as decimal
// separator and must otherwise be a plain number ("12,50", " 7 ").
// The result is rounded to cents.
func Price(input any) PriceResult {
	n, parsed := toFloat(input)
	if !parsed || math.IsNaN(n) || math.IsInf(n, 0) {
		return PriceResult{Result: fail("Price must be a number")}
	}
	if n < 0 {
		return PriceResult{Result: fail("Price cannot be negative")}
	}
	if n > MaxPrice {
		return PriceResult{Result: fail("Price too high (max 999,999)")}
	}

	r := PriceResult{Result: ok(), Normalized: math.Round(n*100) / 100}
	if n == 0 {
		r.Warning = "Price is 0 - listing might be marked as free"
	}
	return r
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case string:
		s := strings.Replace(strings.TrimSpace(t), ",", ".", 1)
		f, err := strconv.ParseFloat(s, 64)
		return f, err == nil
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	case uint:
		return float64(t), true
	case uint32:
		return float64(t), true
	case uint64:
		return float64(t), true
	default:
		return 0, false
	}
}
