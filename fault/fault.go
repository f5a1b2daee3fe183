// Package fault classifies failures of the remote vision/listing calls into
// a small fixed taxonomy. The Kind of an error decides whether it is retried
// (see PolicyFor) and which message the UI shows (see Message).
package fault

import (
	"fmt"
	"maps"
	"strings"
	"time"
)

// Kind is the failure category handed to callers.
type Kind uint8

const (
	Unknown Kind = iota
	Network
	Validation
	API
	Timeout
	Auth
	RateLimit
)

func (k Kind) String() string {
	switch k {
	case Network:
		return "NETWORK"
	case Validation:
		return "VALIDATION"
	case API:
		return "API"
	case Timeout:
		return "TIMEOUT"
	case Auth:
		return "AUTH"
	case RateLimit:
		return "RATE_LIMIT"
	default:
		return "UNKNOWN"
	}
}

// ParseKind is the inverse of String; it also accepts lower case.
func ParseKind(s string) (Kind, bool) {
	for k := Unknown; k <= RateLimit; k++ {
		if strings.EqualFold(k.String(), s) {
			return k, true
		}
	}
	return Unknown, false
}

// Error is a classified failure. Message keeps the upstream token format
// ("VALIDATION_ERROR: ...", "HTTP_ERROR_<code>: ...") so that older callers
// matching on text keep working.
type Error struct {
	Kind    Kind
	Message string
	Status  int            // HTTP status when the failure came from a response
	Details map[string]any // extra context; never mutated after construction
	Err     error          // underlying cause, if any
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Kind.String()
}

func (e *Error) Unwrap() error { return e.Err }

// HTTPStatus returns the response status, or 0.
func (e *Error) HTTPStatus() int { return e.Status }

// Retryable reports whether the default policy for e's kind allows retries.
func (e *Error) Retryable() bool { return PolicyFor(e.Kind).MaxRetries > 0 }

// Fields flattens e for structured logging.
func (e *Error) Fields() map[string]any {
	f := map[string]any{
		"kind":    e.Kind.String(),
		"message": e.Error(),
	}
	if e.Status != 0 {
		f["status"] = e.Status
	}
	if len(e.Details) > 0 {
		f["details"] = e.Details
	}
	return f
}

func New(kind Kind, msg string, details map[string]any) *Error {
	return &Error{Kind: kind, Message: msg, Details: maps.Clone(details)}
}

// NewValidation builds a VALIDATION error for a rejected input or response.
func NewValidation(reason string, details map[string]any) *Error {
	return New(Validation, "VALIDATION_ERROR: "+reason, details)
}

// HTTP builds the error for a non-2xx response. Upstream TIMEOUT and
// VALIDATION_ERROR markers in msg come first; then 401/403 are Auth, 429 is
// RateLimit and any other status is API.
func HTTP(status int, msg string, details map[string]any) *Error {
	m := fmt.Sprintf("HTTP_ERROR_%d", status)
	if msg != "" {
		m += ": " + msg
	}
	kind := ClassifyMessage(m)
	if kind != Timeout && kind != Validation {
		kind = KindForStatus(status)
	}
	e := New(kind, m, details)
	e.Status = status
	return e
}

// NewTimeout reports that op did not complete within d.
func NewTimeout(op string, d time.Duration, err error) *Error {
	return &Error{
		Kind:    Timeout,
		Message: fmt.Sprintf("TIMEOUT: %s exceeded %s", op, d),
		Details: map[string]any{"op": op, "timeout": d.String()},
		Err:     err,
	}
}

func NewNetwork(msg string, err error) *Error {
	return &Error{Kind: Network, Message: "Network error: " + msg, Err: err}
}

// Wrap classifies err and returns it as *Error. An *Error anywhere in the
// chain is returned as is; nil stays nil.
func Wrap(err error) *Error {
	if err == nil {
		return nil
	}
	if fe, ok := As(err); ok {
		return fe
	}
	e := &Error{Kind: Classify(err), Message: err.Error(), Err: err}
	if hs, ok := asStatus(err); ok {
		e.Status = hs.HTTPStatus()
	}
	return e
}
