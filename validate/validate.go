// Package validate gates data crossing the trust boundary: image payloads
// before they are sent, API responses before they are cached or shown, and
// user-entered prices. Every check is ordered and stops at the first failure.
package validate

import "github.com/unkn0wn-root/snapcache/fault"

// Result of a single validation. Warning is non-blocking and may be set on
// a valid result.
type Result struct {
	Valid   bool
	Reason  string
	Warning string
}

func ok() Result                 { return Result{Valid: true} }
func fail(reason string) Result  { return Result{Reason: reason} }
func warn(warning string) Result { return Result{Valid: true, Warning: warning} }

// Err returns nil for a valid result and a fault.Validation error otherwise.
func (r Result) Err() error {
	if r.Valid {
		return nil
	}
	return fault.NewValidation(r.Reason, nil)
}

// truthy mirrors how the API's JSON is checked for presence: absent, null,
// "", false and 0 all count as missing.
func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case string:
		return t != ""
	case bool:
		return t
	case float64:
		return t != 0
	case int:
		return t != 0
	default:
		return true
	}
}
