package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/dnscache"

	"github.com/unkn0wn-root/snapcache"
	"github.com/unkn0wn-root/snapcache/client"
	"github.com/unkn0wn-root/snapcache/config"
	asynchook "github.com/unkn0wn-root/snapcache/hooks/async"
	"github.com/unkn0wn-root/snapcache/hooks/prom"
	pr "github.com/unkn0wn-root/snapcache/provider"
	"github.com/unkn0wn-root/snapcache/provider/bigcache"
	"github.com/unkn0wn-root/snapcache/provider/otter"
	"github.com/unkn0wn-root/snapcache/provider/redis"
	"github.com/unkn0wn-root/snapcache/provider/ristretto"
	"github.com/unkn0wn-root/snapcache/provider/sqlite"
	"github.com/unkn0wn-root/snapcache/sloghooks"
)

// app is everything a command needs, built from one config.
type app struct {
	cfg    *config.Config
	log    snapcache.Logger
	store  *snapcache.Store
	api    *client.Client
	cached *client.Cached

	registry *prometheus.Registry // nil when metrics are disabled
	hooks    *asynchook.Hooks

	stopDNS       context.CancelFunc
	shutdownTrace func(context.Context) error
	syncLog       func()
}

func newApp(ctx context.Context, cfgPath string) (_ *app, err error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger, slogger, syncLog, err := newLogger(cfg.Log)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, log: logger, syncLog: syncLog, stopDNS: func() {}}
	defer func() {
		if err != nil {
			_ = a.Close(context.Background())
		}
	}()

	if cfg.Telemetry.Tracing.Enabled {
		shutdown, err := setupTracing(ctx, cfg.Telemetry.Tracing.Endpoint, cfg.Telemetry.Tracing.SampleRate)
		if err != nil {
			return nil, fmt.Errorf("setup tracing: %w", err)
		}
		a.shutdownTrace = shutdown
	}

	var (
		fan     multiHooks
		metrics *prom.Metrics
	)
	if cfg.Telemetry.Metrics.Enabled {
		a.registry = prometheus.NewRegistry()
		metrics = prom.NewMetrics(a.registry)
		fan = append(fan, metrics)
	}
	if slogger != nil {
		fan = append(fan, sloghooks.New(slogger, sloghooks.Options{HitEvery: 10, MissEvery: 10}))
	}
	var hooks snapcache.Hooks = snapcache.NopHooks{}
	if len(fan) > 0 {
		a.hooks = asynchook.New(fan, 1, 1024)
		hooks = a.hooks
	}

	memory, cost, err := newMemoryProvider(cfg.Cache.Memory)
	if err != nil {
		return nil, err
	}
	persistent, err := newPersistentProvider(cfg.Cache.Persistent)
	if err != nil {
		_ = memory.Close(ctx)
		return nil, err
	}
	a.store, err = snapcache.NewStore(snapcache.StoreOptions{
		Prefix:         cfg.Cache.Prefix,
		Memory:         memory,
		Persistent:     persistent,
		Logger:         logger,
		Hooks:          hooks,
		StaleRetention: cfg.Cache.StaleRetention,
		ComputeSetCost: cost,
	})
	if err != nil {
		_ = memory.Close(ctx)
		if persistent != nil {
			_ = persistent.Close(ctx)
		}
		return nil, err
	}

	policies, err := cfg.API.Policies()
	if err != nil {
		return nil, err
	}
	opts := client.Options{
		BaseURL:          cfg.API.BaseURL,
		VisionTimeout:    cfg.API.VisionTimeout,
		ListingTimeout:   cfg.API.ListingTimeout,
		Policies:         policies,
		MaxResponseBytes: cfg.API.MaxResponseBytes,
		Logger:           logger,
	}
	if metrics != nil {
		opts.Observer = metrics
	}
	if cfg.API.DNSCache.Enabled {
		opts.Resolver = &dnscache.Resolver{}
		a.stopDNS = refreshDNS(opts.Resolver, cfg.API.DNSCache.Refresh)
	}
	a.api = client.New(opts)

	ttls, err := cfg.Cache.CategoryTTLs()
	if err != nil {
		return nil, err
	}
	a.cached, err = client.NewCached(a.api, client.CachedOptions{
		Store:             a.store,
		Codec:             cfg.Cache.Codec,
		MaxEntryBytes:     cfg.Cache.MaxEntryBytes,
		TTLs:              ttls,
		Coalesce:          cfg.Cache.Coalesce,
		RevalidateTimeout: cfg.Cache.RevalidateTimeout,
		Disabled:          cfg.Cache.Disabled,
		OnRevalidateError: func(cat snapcache.Category, id string, err error) {
			logger.Warn("background revalidation failed", snapcache.Fields{"category": string(cat), "err": err})
		},
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

// Close stops background work and releases every resource, in reverse
// order of construction.
func (a *app) Close(ctx context.Context) error {
	var errs []error
	if a.cached != nil {
		errs = append(errs, a.cached.Close(ctx))
	}
	if a.store != nil {
		errs = append(errs, a.store.Close(ctx))
	}
	a.stopDNS()
	if a.hooks != nil {
		a.hooks.Close()
		if n := a.hooks.Dropped(); n > 0 {
			a.log.Warn("hook events dropped", snapcache.Fields{"count": n})
		}
	}
	if a.registry != nil && a.cached != nil {
		errs = append(errs, a.dumpMetrics())
	}
	if a.shutdownTrace != nil {
		errs = append(errs, a.shutdownTrace(ctx))
	}
	a.syncLog()
	return errors.Join(errs...)
}

func (a *app) dumpMetrics() error {
	out := a.cfg.Telemetry.Metrics.Output
	if out == "" {
		return writeMetrics(os.Stderr, a.registry)
	}
	f, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("metrics output: %w", err)
	}
	if err := writeMetrics(f, a.registry); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func newMemoryProvider(cfg config.MemoryConfig) (pr.Provider, snapcache.SetCostFunc, error) {
	switch cfg.Kind {
	case "otter":
		p, err := otter.New(otter.Config{MaximumSize: cfg.MaxEntries})
		return p, nil, err
	case "ristretto":
		p, err := ristretto.New(ristretto.Config{
			NumCounters: int64(cfg.MaxEntries) * 10,
			MaxCost:     int64(cfg.MaxCostMB) << 20,
			BufferItems: 64,
		})
		// cost by size so MaxCost bounds memory
		return p, func(_ string, raw []byte) int64 { return int64(len(raw)) }, err
	case "bigcache":
		p, err := bigcache.New(bigcache.Config{HardMaxCacheSizeMB: cfg.MaxCostMB})
		return p, nil, err
	}
	return nil, nil, fmt.Errorf("unknown memory cache %q", cfg.Kind)
}

func newPersistentProvider(cfg config.PersistentConfig) (pr.Provider, error) {
	switch cfg.Kind {
	case "", "none":
		return nil, nil
	case "redis":
		rdb := goredis.NewClient(&goredis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		})
		return redis.New(redis.Config{Client: rdb, CloseClient: true})
	case "sqlite":
		return sqlite.New(sqlite.Config{Path: cfg.Path, CleanupInterval: cfg.CleanupInterval})
	}
	return nil, fmt.Errorf("unknown persistent cache %q", cfg.Kind)
}

// refreshDNS keeps the resolver's entries fresh and prunes unused ones.
func refreshDNS(r *dnscache.Resolver, every time.Duration) context.CancelFunc {
	if every <= 0 {
		every = 5 * time.Minute
	}
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		t := time.NewTicker(every)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				r.Refresh(true)
			}
		}
	}()
	return cancel
}

// multiHooks fans every event out to each hook in order.
type multiHooks []snapcache.Hooks

var _ snapcache.Hooks = multiHooks(nil)

func (m multiHooks) Hit(c string, l snapcache.Layer) {
	for _, h := range m {
		h.Hit(c, l)
	}
}

func (m multiHooks) Miss(c string) {
	for _, h := range m {
		h.Miss(c)
	}
}

func (m multiHooks) Expired(k string, l snapcache.Layer) {
	for _, h := range m {
		h.Expired(k, l)
	}
}

func (m multiHooks) SelfHeal(k string, l snapcache.Layer, reason string) {
	for _, h := range m {
		h.SelfHeal(k, l, reason)
	}
}

func (m multiHooks) ProviderSetRejected(k string, l snapcache.Layer) {
	for _, h := range m {
		h.ProviderSetRejected(k, l)
	}
}

func (m multiHooks) LayerError(op, k string, l snapcache.Layer, err error) {
	for _, h := range m {
		h.LayerError(op, k, l, err)
	}
}

func (m multiHooks) StaleServed(k string, err error) {
	for _, h := range m {
		h.StaleServed(k, err)
	}
}

func (m multiHooks) RevalidateFailed(k string, err error) {
	for _, h := range m {
		h.RevalidateFailed(k, err)
	}
}
