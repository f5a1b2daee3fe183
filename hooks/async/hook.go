// Package asynchook moves hook calls off the cache's hot path.
//
// usage:
//
//	raw := sloghooks.New(slog.Default(), sloghooks.Options{SelfHealEvery: 10})
//	hooks := asynchook.New(raw, 1, 1000) // 1 worker; queue 1000 events
//	defer hooks.Close()
//
//	mem, _ := otter.New(otter.Config{})
//	store, _ := snapcache.NewStore(snapcache.StoreOptions{
//	    Memory:     mem,
//	    Persistent: l2,
//	    Hooks:      hooks,
//	})
//
// Events are dropped, never blocked on, when the queue is full.
package asynchook

import (
	"sync"
	"sync/atomic"

	"github.com/unkn0wn-root/snapcache"
)

type Hooks struct {
	inner   snapcache.Hooks
	q       chan func()
	wg      sync.WaitGroup
	once    sync.Once
	mu      sync.RWMutex
	closed  bool
	dropped atomic.Uint64
}

var _ snapcache.Hooks = (*Hooks)(nil)

func New(inner snapcache.Hooks, workers, qlen int) *Hooks {
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}

	h := &Hooks{inner: inner, q: make(chan func(), qlen)}
	h.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer h.wg.Done()
			for f := range h.q {
				f()
			}
		}()
	}
	return h
}

// Close stops accepting events and waits for queued ones to be delivered.
func (h *Hooks) Close() {
	h.once.Do(func() {
		h.mu.Lock()
		h.closed = true
		close(h.q)
		h.mu.Unlock()
		h.wg.Wait()
	})
}

// Dropped reports how many events were discarded on a full queue or after Close.
func (h *Hooks) Dropped() uint64 { return h.dropped.Load() }

func (h *Hooks) try(f func()) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		h.dropped.Add(1)
		return
	}
	select {
	case h.q <- f:
	default: // drop
		h.dropped.Add(1)
	}
}

func (h *Hooks) Hit(c string, l snapcache.Layer) { h.try(func() { h.inner.Hit(c, l) }) }
func (h *Hooks) Miss(c string)                   { h.try(func() { h.inner.Miss(c) }) }
func (h *Hooks) Expired(k string, l snapcache.Layer) {
	h.try(func() { h.inner.Expired(k, l) })
}
func (h *Hooks) SelfHeal(k string, l snapcache.Layer, r string) {
	h.try(func() { h.inner.SelfHeal(k, l, r) })
}
func (h *Hooks) ProviderSetRejected(k string, l snapcache.Layer) {
	h.try(func() { h.inner.ProviderSetRejected(k, l) })
}
func (h *Hooks) LayerError(op, k string, l snapcache.Layer, err error) {
	h.try(func() { h.inner.LayerError(op, k, l, err) })
}
func (h *Hooks) StaleServed(k string, err error) { h.try(func() { h.inner.StaleServed(k, err) }) }
func (h *Hooks) RevalidateFailed(k string, err error) {
	h.try(func() { h.inner.RevalidateFailed(k, err) })
}
