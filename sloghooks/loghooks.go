// Package sloghooks logs cache hook events through log/slog with sampling
// for the chatty ones and redacted keys.
package sloghooks

import (
	"log/slog"
	"sync/atomic"

	"github.com/unkn0wn-root/snapcache"
	"github.com/unkn0wn-root/snapcache/internal/util"
)

type Options struct {
	// Sampling to avoid floods; 0/1 = log all.
	HitEvery      uint64
	MissEvery     uint64
	SelfHealEvery uint64
	// Optional key redactor. Defaults to hashing the id part of the key.
	Redact func(string) string
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	hitCtr      atomic.Uint64
	missCtr     atomic.Uint64
	selfHealCtr atomic.Uint64
}

var _ snapcache.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

func (h *Hooks) redact(k string) string {
	if h.opts.Redact != nil {
		return h.opts.Redact(k)
	}
	return util.RedactKey(k)
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n == 0 || n == 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Hooks) Hit(category string, layer snapcache.Layer) {
	if h.l == nil || !sample(h.opts.HitEvery, &h.hitCtr) {
		return
	}
	h.l.Debug("snapcache.hit", "category", category, "layer", layer.String())
}

func (h *Hooks) Miss(category string) {
	if h.l == nil || !sample(h.opts.MissEvery, &h.missCtr) {
		return
	}
	h.l.Debug("snapcache.miss", "category", category)
}

func (h *Hooks) Expired(storageKey string, layer snapcache.Layer) {
	if h.l == nil {
		return
	}
	h.l.Debug("snapcache.expired", "key", h.redact(storageKey), "layer", layer.String())
}

func (h *Hooks) SelfHeal(storageKey string, layer snapcache.Layer, reason string) {
	if h.l == nil || !sample(h.opts.SelfHealEvery, &h.selfHealCtr) {
		return
	}
	h.l.Info("snapcache.self_heal",
		"key", h.redact(storageKey),
		"layer", layer.String(),
		"reason", reason)
}

func (h *Hooks) ProviderSetRejected(storageKey string, layer snapcache.Layer) {
	if h.l == nil {
		return
	}
	h.l.Warn("snapcache.provider_set_rejected",
		"key", h.redact(storageKey),
		"layer", layer.String())
}

func (h *Hooks) LayerError(op, storageKey string, layer snapcache.Layer, err error) {
	if h.l == nil {
		return
	}
	h.l.Warn("snapcache.layer_error",
		"op", op,
		"key", h.redact(storageKey),
		"layer", layer.String(),
		"err", err)
}

func (h *Hooks) StaleServed(storageKey string, fetchErr error) {
	if h.l == nil {
		return
	}
	h.l.Warn("snapcache.stale_served",
		"key", h.redact(storageKey),
		"fetch_err", fetchErr)
}

func (h *Hooks) RevalidateFailed(storageKey string, err error) {
	if h.l == nil {
		return
	}
	h.l.Warn("snapcache.revalidate_failed",
		"key", h.redact(storageKey),
		"err", err)
}
