package snapcache

import (
	"context"
	"time"

	c "github.com/unkn0wn-root/snapcache/codec"
)

// Fetcher produces a fresh value, typically by calling the remote API.
type Fetcher[V any] func(ctx context.Context) (V, error)

// Manager is the typed cache API. Each strategy resolves (category, id) to a
// storage key, consults the Store and decides whether to call the fetcher.
// V is the caller's value type. Serialization is handled by a pluggable Codec[V].
type Manager[V any] interface {
	Enabled() bool
	Close(context.Context) error

	// CacheFirst serves a fresh cached value, calling fetch only when both
	// layers miss.
	CacheFirst(ctx context.Context, cat Category, id string, fetch Fetcher[V], opts ...CallOption) (V, error)

	// NetworkFirst always calls fetch once. If it fails, any cached value is
	// returned regardless of age; with nothing cached the fetch error is.
	NetworkFirst(ctx context.Context, cat Category, id string, fetch Fetcher[V], opts ...CallOption) (V, error)

	// StaleWhileRevalidate serves a cached value at once and refreshes it in
	// the background. On a miss it fetches and waits.
	StaleWhileRevalidate(ctx context.Context, cat Category, id string, fetch Fetcher[V], opts ...CallOption) (V, error)

	// Get reads a fresh value without fetching.
	Get(ctx context.Context, cat Category, id string) (v V, ok bool, err error)
	Invalidate(ctx context.Context, cat Category, id string) error
	Preload(ctx context.Context, cat Category, id string, value V, opts ...CallOption) error
	ClearAll(ctx context.Context) error
}

// Options tune a Manager. Only Store is required; others have sensible defaults.
type Options[V any] struct {
	// Required
	Store *Store // shared; Manager.Close does not close it

	Codec c.Codec[V] // nil => JSON

	// TTLs overrides per-category TTLs on top of DefaultTTLs.
	TTLs map[Category]time.Duration

	// Coalesce makes concurrent fetches for the same key share one call.
	// Off by default: two simultaneous misses both fetch. The shared call
	// ignores cancellation of the caller that started it (it keeps that
	// caller's deadline); a canceled waiter returns its ctx error at once.
	Coalesce bool

	RevalidateTimeout time.Duration // background refresh deadline; 0 => 30s

	// OnRevalidateError receives background refresh failures, which are
	// otherwise only logged and reported to Hooks.
	OnRevalidateError func(cat Category, id string, err error)

	Disabled bool // every strategy calls the fetcher directly
}

func New[V any](opts Options[V]) (Manager[V], error) {
	return newManager[V](opts)
}

type callOptions struct {
	ttl time.Duration
}

type CallOption func(*callOptions)

// WithTTL overrides the category TTL for one call.
func WithTTL(d time.Duration) CallOption {
	return func(o *callOptions) { o.ttl = d }
}
