package fault

import "strings"

// UserMessage is what the UI shows for a failure. Rendering it is the
// caller's job.
type UserMessage struct {
	Title     string
	Body      string
	Action    string
	Retryable bool // the kind's policy allows another attempt
}

var (
	msgTimeout = UserMessage{
		Title:  "Slow connection",
		Body:   "The request took too long. Try again with fewer photos or check your connection.",
		Action: "Retry",
	}
	msgNetwork = UserMessage{
		Title:  "No connection",
		Body:   "Check that you are connected to the Internet and try again.",
		Action: "Retry",
	}
	msgAuth = UserMessage{
		Title:  "Authentication failed",
		Body:   "Sign in again to continue.",
		Action: "Login",
	}
	msgUnknown = UserMessage{
		Title:  "Something went wrong",
		Body:   "Unexpected error. Try again or contact support if it persists.",
		Action: "Retry",
	}

	// keyed by validation reason prefix
	validationMessages = []struct {
		reason string
		msg    UserMessage
	}{
		{"No images provided", UserMessage{Title: "Missing photos", Body: "Take at least one photo to continue.", Action: "OK"}},
		{"Max 4 images allowed", UserMessage{Title: "Too many photos", Body: "You can upload at most 4 photos per listing.", Action: "OK"}},
		{"Images must be base64", UserMessage{Title: "Invalid format", Body: "Photos must be JPEG or PNG.", Action: "OK"}},
		{"Image too large", UserMessage{Title: "Photo too large", Body: "One or more photos exceed 5MB. Compress them and try again.", Action: "OK"}},
	}

	statusMessages = map[int]UserMessage{
		401: {Title: "Invalid API key", Body: "The app is misconfigured. Contact support.", Action: "Support"},
		429: {Title: "Limit reached", Body: "You have reached the daily limit. Try again tomorrow or upgrade to Pro.", Action: "Upgrade"},
		500: {Title: "Server error", Body: "The service is temporarily unavailable. Try again shortly.", Action: "Retry"},
		503: {Title: "Service unavailable", Body: "Maintenance in progress. Try again in a few minutes.", Action: "OK"},
	}
)

// Message picks the user-facing message for err: a validation reason match
// first, then the HTTP status, then the kind.
func Message(err error) UserMessage {
	kind := Classify(err)
	m := lookup(err, kind)
	m.Retryable = PolicyFor(kind).MaxRetries > 0
	return m
}

func lookup(err error, kind Kind) UserMessage {
	if err == nil {
		return msgUnknown
	}
	text := err.Error()

	if kind == Validation {
		for _, v := range validationMessages {
			if strings.Contains(text, v.reason) {
				return v.msg
			}
		}
	}

	if sc, ok := asStatus(err); ok {
		if m, ok := statusMessages[sc.HTTPStatus()]; ok {
			return m
		}
	}

	switch kind {
	case Timeout:
		return msgTimeout
	case Network:
		return msgNetwork
	case Auth:
		return msgAuth
	case RateLimit:
		return statusMessages[429]
	default:
		return msgUnknown
	}
}
