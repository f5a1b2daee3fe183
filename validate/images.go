package validate

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	MaxImages      = 4
	MaxImageSizeMB = 5.0
)

var imagePattern = regexp.MustCompile(`^data:image/(jpeg|jpg|png);base64,([A-Za-z0-9+/=]+)$`)

// OutboundImages checks images before upload. images may be []string or
// []any; anything else is treated as no images.
func OutboundImages(images any) Result {
	var list []any
	switch v := images.(type) {
	case []any:
		list = v
	case []string:
		list = make([]any, len(v))
		for i, s := range v {
			list[i] = s
		}
	}

	if len(list) == 0 {
		return fail("No images provided")
	}
	if len(list) > MaxImages {
		return fail(fmt.Sprintf("Max %d images allowed", MaxImages))
	}

	for i, el := range list {
		img, isStr := el.(string)
		if !isStr {
			return fail(fmt.Sprintf("Image %d is not a string", i+1))
		}
		if !imagePattern.MatchString(img) {
			return fail("Images must be base64 JPEG/PNG")
		}
		if EstimatedSizeMB(img) > MaxImageSizeMB {
			return fail("Image too large (>5MB)")
		}
	}
	return ok()
}

// Images is OutboundImages for the common typed case.
func Images(images []string) Result { return OutboundImages(images) }

// EstimatedSizeMB approximates the decoded size of a data URI from the
// length of its base64 payload.
func EstimatedSizeMB(dataURI string) float64 {
	_, payload, _ := strings.Cut(dataURI, ",")
	return float64(len(payload)) * 0.75 / (1024 * 1024)
}
