package snapcache

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/unkn0wn-root/snapcache/internal/wire"
	pr "github.com/unkn0wn-root/snapcache/provider"
)

// Layer identifies which store served or failed an operation.
type Layer uint8

const (
	LayerNone Layer = iota
	LayerMemory
	LayerPersistent
)

func (l Layer) String() string {
	switch l {
	case LayerMemory:
		return "memory"
	case LayerPersistent:
		return "persistent"
	default:
		return "none"
	}
}

type SetCostFunc func(key string, raw []byte) int64

// StoreOptions configure a Store. Only Memory is required.
type StoreOptions struct {
	Prefix     string      // "" => DefaultPrefix; must not contain ':'
	Memory     pr.Provider // in-process layer, consulted first
	Persistent pr.Provider // optional durable layer

	Logger Logger // if nil, NopLogger is used
	Hooks  Hooks  // if nil, NopHooks is used

	// Now is the clock used for entry stamps and TTL checks. nil => time.Now.
	Now func() time.Time

	// StaleRetention keeps entries in the providers this long past their TTL
	// so network-first can still fall back to them. 0 => 24h, <0 => none.
	StaleRetention time.Duration

	ComputeSetCost SetCostFunc // default 1
}

// Store is the two-layer byte cache under the strategies. Entries are framed
// with their write stamp and TTL; a read past the TTL is a miss and removes
// the entry from the layer that held it. Provider failures are logged and
// reported through Hooks but never returned from reads or writes.
type Store struct {
	prefix    string
	mem       pr.Provider
	disk      pr.Provider
	log       Logger
	hooks     Hooks
	now       func() time.Time
	retention time.Duration
	cost      SetCostFunc
}

func NewStore(opts StoreOptions) (*Store, error) {
	if opts.Memory == nil {
		return nil, ErrProviderRequired
	}
	prefix := coalesce(opts.Prefix, DefaultPrefix)
	if strings.Contains(prefix, ":") {
		return nil, errors.New("snapcache: prefix must not contain ':'")
	}

	s := &Store{
		prefix: prefix,
		mem:    opts.Memory,
		disk:   opts.Persistent,
		log:    coalesce[Logger](opts.Logger, NopLogger{}),
		hooks:  coalesce[Hooks](opts.Hooks, NopHooks{}),
		now:    opts.Now,
		cost:   opts.ComputeSetCost,
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.cost == nil {
		s.cost = func(string, []byte) int64 { return 1 }
	}
	switch {
	case opts.StaleRetention < 0:
		s.retention = 0
	case opts.StaleRetention == 0:
		s.retention = defaultStaleRetention
	default:
		s.retention = opts.StaleRetention
	}
	return s, nil
}

func (s *Store) Prefix() string { return s.prefix }

// Key builds the storage key for a category and id under this store's prefix.
func (s *Store) Key(c Category, id string) string { return Key(s.prefix, c, id) }

// Get returns the payload of a fresh entry, looking in memory first. A hit
// in the persistent layer is copied into memory with its original stamp, so
// promotion never extends an entry's life.
func (s *Store) Get(ctx context.Context, key string) ([]byte, Layer, bool) {
	if e, ok := s.read(ctx, s.mem, LayerMemory, key, true); ok {
		s.hooks.Hit(s.category(key), LayerMemory)
		return e.Payload, LayerMemory, true
	}
	if s.disk != nil {
		if e, ok := s.read(ctx, s.disk, LayerPersistent, key, true); ok {
			s.write(ctx, s.mem, LayerMemory, key, e)
			s.hooks.Hit(s.category(key), LayerPersistent)
			return e.Payload, LayerPersistent, true
		}
	}
	s.hooks.Miss(s.category(key))
	return nil, LayerNone, false
}

// Peek is Get without the TTL check: it returns whatever is still stored,
// fresh or not, and neither deletes nor promotes.
func (s *Store) Peek(ctx context.Context, key string) ([]byte, Layer, bool) {
	if e, ok := s.read(ctx, s.mem, LayerMemory, key, false); ok {
		return e.Payload, LayerMemory, true
	}
	if s.disk != nil {
		if e, ok := s.read(ctx, s.disk, LayerPersistent, key, false); ok {
			return e.Payload, LayerPersistent, true
		}
	}
	return nil, LayerNone, false
}

// Set writes payload to memory, then to the persistent layer. Not
// transactional: a failed persistent write leaves the memory copy in place.
func (s *Store) Set(ctx context.Context, key string, payload []byte, ttl time.Duration) {
	e := wire.Entry{Stamp: s.now(), TTL: ttl, Payload: payload}
	s.write(ctx, s.mem, LayerMemory, key, e)
	if s.disk != nil {
		s.write(ctx, s.disk, LayerPersistent, key, e)
	}
}

// Invalidate removes key from both layers.
func (s *Store) Invalidate(ctx context.Context, key string) {
	s.del(ctx, s.mem, LayerMemory, key)
	if s.disk != nil {
		s.del(ctx, s.disk, LayerPersistent, key)
	}
}

// ClearAll removes every key under the prefix and nothing else. Layers that
// can list keys are cleared key by key; a memory layer that cannot is purged
// whole, since the process owns it. A persistent layer that cannot list keys
// is left alone and reported as ErrClearUnsupported.
func (s *Store) ClearAll(ctx context.Context) error {
	var ce ClearError
	ce.MemoryErr = s.clear(ctx, s.mem, LayerMemory)
	if s.disk != nil {
		ce.PersistentErr = s.clear(ctx, s.disk, LayerPersistent)
	}
	if ce.MemoryErr != nil || ce.PersistentErr != nil {
		return &ce
	}
	s.log.Info("cache cleared", Fields{"prefix": s.prefix})
	return nil
}

// Close closes both providers.
func (s *Store) Close(ctx context.Context) error {
	var errs []error
	if err := s.mem.Close(ctx); err != nil {
		errs = append(errs, err)
	}
	if s.disk != nil {
		if err := s.disk.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *Store) read(ctx context.Context, p pr.Provider, layer Layer, key string, checkTTL bool) (wire.Entry, bool) {
	raw, ok, err := p.Get(ctx, key)
	if err != nil {
		s.log.Warn("cache layer get failed", Fields{"key": key, "layer": layer.String(), "err": err})
		s.hooks.LayerError("get", key, layer, err)
		return wire.Entry{}, false
	}
	if !ok {
		return wire.Entry{}, false
	}

	e, err := wire.Decode(raw)
	if err != nil {
		s.del(ctx, p, layer, key) // self-heal corrupt
		s.hooks.SelfHeal(key, layer, "corrupt")
		return wire.Entry{}, false
	}
	if checkTTL && e.Expired(s.now()) {
		s.del(ctx, p, layer, key)
		s.hooks.Expired(key, layer)
		return wire.Entry{}, false
	}
	return e, true
}

func (s *Store) write(ctx context.Context, p pr.Provider, layer Layer, key string, e wire.Entry) {
	raw := wire.Encode(e)
	ok, err := p.Set(ctx, key, raw, s.cost(key, raw), s.providerTTL(e))
	if err != nil {
		s.log.Warn("cache layer set failed", Fields{"key": key, "layer": layer.String(), "err": err})
		s.hooks.LayerError("set", key, layer, err)
		return
	}
	if !ok {
		s.log.Debug("set rejected by provider (pressure)", Fields{"key": key, "layer": layer.String()})
		s.hooks.ProviderSetRejected(key, layer)
	}
}

func (s *Store) del(ctx context.Context, p pr.Provider, layer Layer, key string) {
	if err := p.Del(ctx, key); err != nil {
		s.log.Warn("cache layer delete failed", Fields{"key": key, "layer": layer.String(), "err": err})
		s.hooks.LayerError("del", key, layer, err)
	}
}

func (s *Store) clear(ctx context.Context, p pr.Provider, layer Layer) error {
	if sc, ok := p.(pr.Scanner); ok {
		keys, err := sc.Keys(ctx, s.prefix+":")
		if err != nil {
			s.hooks.LayerError("keys", s.prefix+":", layer, err)
			return err
		}
		var errs []error
		for _, k := range keys {
			if err := p.Del(ctx, k); err != nil {
				s.hooks.LayerError("del", k, layer, err)
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}
	if pg, ok := p.(pr.Purger); ok && layer == LayerMemory {
		if err := pg.Purge(ctx); err != nil {
			s.hooks.LayerError("purge", "", layer, err)
			return err
		}
		return nil
	}
	s.log.Warn("cache layer cannot be cleared by prefix", Fields{"layer": layer.String()})
	return ErrClearUnsupported
}

// providerTTL is how long the provider should keep the entry: the remaining
// logical TTL plus stale retention. Never <= 0, which providers treat as
// "no expiry".
func (s *Store) providerTTL(e wire.Entry) time.Duration {
	d := e.TTL - s.now().Sub(e.Stamp) + s.retention
	if d <= 0 {
		d = time.Millisecond
	}
	return d
}

// category extracts the category segment of a storage key for hooks.
func (s *Store) category(key string) string {
	rest, ok := strings.CutPrefix(key, s.prefix+":")
	if !ok {
		return ""
	}
	c, _, _ := strings.Cut(rest, ":")
	return c
}
