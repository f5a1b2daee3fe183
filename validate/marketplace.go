package validate

import "fmt"

type Level string

const (
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Check is one line of a marketplace photo review.
type Check struct {
	Level Level
	Text  string
}

// ImageRule is a marketplace's photo requirement.
type ImageRule struct {
	MinImages   int
	Recommended int // 0 => no recommendation
}

var imageRules = map[string]ImageRule{
	"vinted": {MinImages: 3, Recommended: 5},
	"ebay":   {MinImages: 1},
	"subito": {MinImages: 1},
}

// RuleFor returns the photo rule for a marketplace.
func RuleFor(marketplace string) (ImageRule, bool) {
	r, ok := imageRules[marketplace]
	return r, ok
}

// MarketplaceImages reviews a photo count against a marketplace's rule.
func MarketplaceImages(marketplace string, count int) []Check {
	rule, known := imageRules[marketplace]
	if !known {
		return []Check{{Level: LevelError, Text: fmt.Sprintf("unknown marketplace %q", marketplace)}}
	}
	if count < rule.MinImages {
		text := fmt.Sprintf("At least %d images required", rule.MinImages)
		if rule.Recommended > 0 {
			text += fmt.Sprintf(" (%d+ recommended)", rule.Recommended)
		}
		return []Check{{Level: LevelError, Text: text}}
	}
	out := []Check{{Level: LevelSuccess, Text: fmt.Sprintf("%d images uploaded", count)}}
	if rule.Recommended > 0 && count < rule.Recommended {
		out = append(out, Check{Level: LevelWarning, Text: fmt.Sprintf("%d+ images recommended", rule.Recommended)})
	}
	return out
}

// Passed reports whether no check is an error.
func Passed(checks []Check) bool {
	for _, c := range checks {
		if c.Level == LevelError {
			return false
		}
	}
	return true
}
