package validate

import (
	"unicode/utf8"
)

// Marketplaces the listing endpoint can generate, in check order.
var Marketplaces = []string{"vinted", "ebay", "subito"}

const (
	minTitleLen       = 10
	minDescriptionLen = 20
)

// ListingResult checks a listing record: at least one marketplace, and each
// present one with a usable title and description.
func ListingResult(data map[string]any) Result {
	if data == nil {
		return fail("Data is not an object")
	}

	found := false
	for _, m := range Marketplaces {
		if truthy(data[m]) {
			found = true
			break
		}
	}
	if !found {
		return fail("No marketplace listings generated")
	}

	for _, m := range Marketplaces {
		if !truthy(data[m]) {
			continue
		}
		listing, _ := data[m].(map[string]any)

		title, tok := listing["title"].(string)
		if !tok || title == "" {
			return fail(m + ": missing or invalid title")
		}
		desc, dok := listing["description"].(string)
		if !dok || desc == "" {
			return fail(m + ": missing or invalid description")
		}
		if utf8.RuneCountInString(title) < minTitleLen {
			return fail(m + ": title too short")
		}
		if utf8.RuneCountInString(desc) < minDescriptionLen {
			return fail(m + ": description too short")
		}
	}
	return ok()
}
