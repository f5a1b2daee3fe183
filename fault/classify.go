package fault

import (
	"context"
	"errors"
	"io"
	"net"
	"net/url"
	"os"
	"strings"
	"syscall"
)

type statusCoder interface{ HTTPStatus() int }

func As(err error) (*Error, bool) {
	var fe *Error
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}

func asStatus(err error) (statusCoder, bool) {
	var sc statusCoder
	if errors.As(err, &sc) {
		return sc, true
	}
	return nil, false
}

// Classify maps err to a Kind. Typed information wins: an *Error carries its
// own kind, deadlines are Timeout, anything exposing HTTPStatus maps by
// status, and transport errors are Network. Only then is the message
// matched against the upstream tokens (see ClassifyMessage).
func Classify(err error) Kind {
	if err == nil {
		return Unknown
	}
	if fe, ok := As(err); ok {
		return fe.Kind
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return Timeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return Timeout
	}
	if errors.Is(err, context.Canceled) {
		return Unknown
	}

	if sc, ok := asStatus(err); ok {
		return KindForStatus(sc.HTTPStatus())
	}

	var (
		opErr  *net.OpError
		dnsErr *net.DNSError
		urlErr *url.Error
	)
	switch {
	case errors.As(err, &opErr),
		errors.As(err, &dnsErr),
		errors.As(err, &urlErr),
		errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, io.ErrUnexpectedEOF):
		return Network
	}

	return ClassifyMessage(err.Error())
}

// KindForStatus maps an HTTP status code.
func KindForStatus(status int) Kind {
	switch status {
	case 401, 403:
		return Auth
	case 429:
		return RateLimit
	default:
		return API
	}
}

// ClassifyMessage matches the upstream message tokens, first match wins.
func ClassifyMessage(msg string) Kind {
	switch {
	case strings.Contains(msg, "TIMEOUT"):
		return Timeout
	case strings.Contains(msg, "VALIDATION_ERROR"):
		return Validation
	case strings.Contains(msg, "HTTP_ERROR_401"), strings.Contains(msg, "HTTP_ERROR_403"):
		return Auth
	case strings.Contains(msg, "HTTP_ERROR_429"):
		return RateLimit
	case strings.Contains(msg, "HTTP_ERROR_"), strings.Contains(msg, "API_ERROR"):
		return API
	case strings.Contains(msg, "Network"), strings.Contains(msg, "Failed to fetch"):
		return Network
	default:
		return Unknown
	}
}
