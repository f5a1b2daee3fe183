package snapcache

import "time"

const (
	defaultStaleRetention    = 24 * time.Hour
	defaultRevalidateTimeout = 30 * time.Second
)

// coalesce returns def when v is the zero value of T - otherwise v.
func coalesce[T comparable](v, def T) T {
	var zero T
	if v == zero {
		return def
	}
	return v
}
