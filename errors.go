package snapcache

import (
	"errors"
	"fmt"
)

var (
	ErrNoTTL            = errors.New("snapcache: no ttl configured for category")
	ErrBadCategory      = errors.New("snapcache: category must be non-empty and must not contain ':'")
	ErrStoreRequired    = errors.New("snapcache: store is required")
	ErrProviderRequired = errors.New("snapcache: memory provider is required")
	ErrClearUnsupported = errors.New("snapcache: provider can neither list keys nor purge")
)

// ClearError reports per-layer failures of ClearAll. Either field may be nil.
type ClearError struct {
	MemoryErr     error
	PersistentErr error
}

func (e *ClearError) Error() string {
	switch {
	case e.MemoryErr != nil && e.PersistentErr != nil:
		return fmt.Sprintf("snapcache: clear failed: memory=%v; persistent=%v", e.MemoryErr, e.PersistentErr)
	case e.MemoryErr != nil:
		return fmt.Sprintf("snapcache: clear memory layer: %v", e.MemoryErr)
	case e.PersistentErr != nil:
		return fmt.Sprintf("snapcache: clear persistent layer: %v", e.PersistentErr)
	default:
		return "snapcache: clear: unknown error"
	}
}

func (e *ClearError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.MemoryErr != nil {
		errs = append(errs, e.MemoryErr)
	}
	if e.PersistentErr != nil {
		errs = append(errs, e.PersistentErr)
	}
	return errs
}
