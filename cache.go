package snapcache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	c "github.com/unkn0wn-root/snapcache/codec"
)

type manager[V any] struct {
	store    *Store
	codec    c.Codec[V]
	log      Logger
	hooks    Hooks
	enabled  bool
	ttls     map[Category]time.Duration
	coalesce bool
	sf       singleflight.Group

	revalidateTimeout time.Duration
	onRevalidateError func(Category, string, error)

	// background revalidation
	bgCtx    context.Context
	bgCancel context.CancelFunc
	mu       sync.Mutex
	closed   bool
	wg       sync.WaitGroup
}

func newManager[V any](opts Options[V]) (*manager[V], error) {
	if opts.Store == nil {
		return nil, ErrStoreRequired
	}

	ttls := DefaultTTLs()
	for cat, d := range opts.TTLs {
		if err := cat.Validate(); err != nil {
			return nil, fmt.Errorf("snapcache: ttl for %q: %w", cat, err)
		}
		ttls[cat] = d
	}

	m := &manager[V]{
		store:             opts.Store,
		log:               opts.Store.log,
		hooks:             opts.Store.hooks,
		enabled:           !opts.Disabled,
		ttls:              ttls,
		coalesce:          opts.Coalesce,
		onRevalidateError: opts.OnRevalidateError,
	}

	// defaults
	m.codec = coalesce[c.Codec[V]](opts.Codec, c.NewJSON[V]())
	m.revalidateTimeout = coalesce(opts.RevalidateTimeout, defaultRevalidateTimeout)
	m.bgCtx, m.bgCancel = context.WithCancel(context.Background())

	return m, nil
}

func (m *manager[V]) Enabled() bool { return m.enabled }

// Close waits for background refreshes until ctx is done, then cancels
// whatever is still running. Later strategy calls still work but no longer
// start refreshes.
func (m *manager[V]) Close(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-ctx.Done():
		err = ctx.Err()
	}
	m.bgCancel()
	return err
}

func (m *manager[V]) CacheFirst(ctx context.Context, cat Category, id string, fetch Fetcher[V], opts ...CallOption) (V, error) {
	var zero V
	if !m.enabled {
		return fetch(ctx)
	}
	key, ttl, err := m.resolve(cat, id, opts)
	if err != nil {
		return zero, err
	}
	if v, ok := m.cached(ctx, key); ok {
		return v, nil
	}
	return m.fetchAndStore(ctx, key, ttl, fetch)
}

func (m *manager[V]) NetworkFirst(ctx context.Context, cat Category, id string, fetch Fetcher[V], opts ...CallOption) (V, error) {
	var zero V
	if !m.enabled {
		return fetch(ctx)
	}
	key, ttl, err := m.resolve(cat, id, opts)
	if err != nil {
		return zero, err
	}

	v, fetchErr := m.fetchAndStore(ctx, key, ttl, fetch)
	if fetchErr == nil {
		return v, nil
	}

	// the fetch may have failed because ctx expired; the fallback read must not
	rctx := context.WithoutCancel(ctx)
	if raw, layer, ok := m.store.Peek(rctx, key); ok {
		if v, ok := m.decode(rctx, key, raw, layer); ok {
			m.log.Warn("network failed; serving cached value", Fields{"key": key, "layer": layer.String(), "err": fetchErr})
			m.hooks.StaleServed(key, fetchErr)
			return v, nil
		}
	}
	return zero, fetchErr
}

func (m *manager[V]) StaleWhileRevalidate(ctx context.Context, cat Category, id string, fetch Fetcher[V], opts ...CallOption) (V, error) {
	var zero V
	if !m.enabled {
		return fetch(ctx)
	}
	key, ttl, err := m.resolve(cat, id, opts)
	if err != nil {
		return zero, err
	}
	if v, ok := m.cached(ctx, key); ok {
		m.revalidate(ctx, cat, id, key, ttl, fetch)
		return v, nil
	}
	return m.fetchAndStore(ctx, key, ttl, fetch)
}

func (m *manager[V]) Get(ctx context.Context, cat Category, id string) (V, bool, error) {
	var zero V
	if !m.enabled {
		return zero, false, nil
	}
	if err := cat.Validate(); err != nil {
		return zero, false, err
	}
	v, ok := m.cached(ctx, m.store.Key(cat, id))
	return v, ok, nil
}

func (m *manager[V]) Invalidate(ctx context.Context, cat Category, id string) error {
	if !m.enabled {
		return nil
	}
	if err := cat.Validate(); err != nil {
		return err
	}
	key := m.store.Key(cat, id)
	m.store.Invalidate(ctx, key)
	m.log.Debug("invalidated key", Fields{"key": key})
	return nil
}

func (m *manager[V]) Preload(ctx context.Context, cat Category, id string, value V, opts ...CallOption) error {
	if !m.enabled {
		return nil
	}
	key, ttl, err := m.resolve(cat, id, opts)
	if err != nil {
		return err
	}
	payload, err := m.codec.Encode(value)
	if err != nil {
		return fmt.Errorf("snapcache: preload %q: encode: %w", key, err)
	}
	m.store.Set(ctx, key, payload, ttl)
	return nil
}

func (m *manager[V]) ClearAll(ctx context.Context) error {
	if !m.enabled {
		return nil
	}
	return m.store.ClearAll(ctx)
}

// resolve maps (category, id) to a storage key and the TTL for this call.
func (m *manager[V]) resolve(cat Category, id string, opts []CallOption) (string, time.Duration, error) {
	if err := cat.Validate(); err != nil {
		return "", 0, err
	}
	var co callOptions
	for _, o := range opts {
		o(&co)
	}
	ttl := co.ttl
	if ttl <= 0 {
		d, ok := m.ttls[cat]
		if !ok || d <= 0 {
			return "", 0, fmt.Errorf("%w: %q", ErrNoTTL, cat)
		}
		ttl = d
	}
	return m.store.Key(cat, id), ttl, nil
}

func (m *manager[V]) cached(ctx context.Context, key string) (V, bool) {
	raw, layer, ok := m.store.Get(ctx, key)
	if !ok {
		var zero V
		return zero, false
	}
	return m.decode(ctx, key, raw, layer)
}

// decode turns a stored payload into V. A payload the codec rejects is
// removed from both layers so the next read refetches.
func (m *manager[V]) decode(ctx context.Context, key string, raw []byte, layer Layer) (V, bool) {
	v, err := m.codec.Decode(raw)
	if err != nil {
		m.store.Invalidate(ctx, key) // self-heal
		m.hooks.SelfHeal(key, layer, "value_decode")
		m.log.Warn("cached value decode failed; dropped", Fields{"key": key, "layer": layer.String(), "err": err})
		var zero V
		return zero, false
	}
	return v, true
}

func (m *manager[V]) fetchAndStore(ctx context.Context, key string, ttl time.Duration, fetch Fetcher[V]) (V, error) {
	if !m.coalesce {
		return m.fetchStore(ctx, key, ttl, fetch)
	}
	// The shared call outlives a canceled caller; it keeps only the
	// starting caller's deadline.
	ch := m.sf.DoChan(key, func() (any, error) {
		sctx, cancel := sharedContext(ctx)
		defer cancel()
		return m.fetchStore(sctx, key, ttl, fetch)
	})
	select {
	case r := <-ch:
		if r.Shared {
			m.log.Debug("fetch coalesced", Fields{"key": key})
		}
		v, _ := r.Val.(V)
		return v, r.Err
	case <-ctx.Done():
		var zero V
		return zero, ctx.Err()
	}
}

func sharedContext(ctx context.Context) (context.Context, context.CancelFunc) {
	detached := context.WithoutCancel(ctx)
	if dl, ok := ctx.Deadline(); ok {
		return context.WithDeadline(detached, dl)
	}
	return context.WithCancel(detached)
}

// fetchStore calls fetch and caches a successful result. A value the codec
// cannot encode is still returned, just not cached.
func (m *manager[V]) fetchStore(ctx context.Context, key string, ttl time.Duration, fetch Fetcher[V]) (V, error) {
	v, err := fetch(ctx)
	if err != nil {
		var zero V
		return zero, err
	}
	payload, err := m.codec.Encode(v)
	if err != nil {
		m.log.Warn("value encode failed; not cached", Fields{"key": key, "err": err})
		return v, nil
	}
	m.store.Set(ctx, key, payload, ttl)
	return v, nil
}

// revalidate starts one tracked background refresh. It keeps ctx's values
// (trace spans, request ids) but not its cancellation, and is bounded by
// RevalidateTimeout and by Close.
func (m *manager[V]) revalidate(ctx context.Context, cat Category, id, key string, ttl time.Duration, fetch Fetcher[V]) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		m.log.Debug("manager closed; revalidation skipped", Fields{"key": key})
		return
	}
	m.wg.Add(1)
	m.mu.Unlock()

	go func() {
		defer m.wg.Done()
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.revalidateTimeout)
		stop := context.AfterFunc(m.bgCtx, cancel)
		defer func() {
			stop()
			cancel()
		}()

		if _, err := m.fetchAndStore(rctx, key, ttl, fetch); err != nil {
			m.log.Warn("background revalidation failed", Fields{"key": key, "err": err})
			m.hooks.RevalidateFailed(key, err)
			if m.onRevalidateError != nil {
				m.onRevalidateError(cat, id, err)
			}
		}
	}()
}
