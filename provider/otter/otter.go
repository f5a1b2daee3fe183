// Package otter adapts maypok86/otter (W-TinyLFU) as an in-process layer.
// It is the default memory layer.
package otter

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/maypok86/otter/v2"

	pr "github.com/unkn0wn-root/snapcache/provider"
)

// entry wraps a cached value with its expiration time.
type entry struct {
	data      []byte
	expiresAt time.Time
}

type Provider struct {
	c *otter.Cache[string, entry]
}

var (
	_ pr.Provider = (*Provider)(nil)
	_ pr.Scanner  = (*Provider)(nil)
	_ pr.Purger   = (*Provider)(nil)
)

type Config struct {
	MaximumSize int           // max entries; 0 => 10_000
	MaxTTL      time.Duration // upper bound for any entry; 0 => 48h
}

func New(cfg Config) (*Provider, error) {
	if cfg.MaximumSize <= 0 {
		cfg.MaximumSize = 10_000
	}
	if cfg.MaxTTL <= 0 {
		cfg.MaxTTL = 48 * time.Hour
	}
	c, err := otter.New[string, entry](&otter.Options[string, entry]{
		MaximumSize:      cfg.MaximumSize,
		ExpiryCalculator: otter.ExpiryWriting[string, entry](cfg.MaxTTL),
	})
	if err != nil {
		return nil, fmt.Errorf("otter: create cache: %w", err)
	}
	return &Provider{c: c}, nil
}

func (p *Provider) Get(_ context.Context, key string) ([]byte, bool, error) {
	e, ok := p.c.GetIfPresent(key)
	if !ok {
		return nil, false, nil
	}
	if !e.expiresAt.IsZero() && time.Now().After(e.expiresAt) {
		p.c.Invalidate(key)
		return nil, false, nil
	}
	return e.data, true, nil
}

// Set stores value with a per-entry TTL; ttl <= 0 keeps it until eviction
// or MaxTTL.
func (p *Provider) Set(_ context.Context, key string, value []byte, _ int64, ttl time.Duration) (bool, error) {
	e := entry{data: value}
	if ttl > 0 {
		e.expiresAt = time.Now().Add(ttl)
	}
	p.c.Set(key, e)
	return true, nil
}

func (p *Provider) Del(_ context.Context, key string) error {
	p.c.Invalidate(key)
	return nil
}

func (p *Provider) Keys(_ context.Context, prefix string) ([]string, error) {
	var out []string
	for k := range p.c.Keys() {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	return out, nil
}

func (p *Provider) Purge(context.Context) error {
	p.c.InvalidateAll()
	return nil
}

func (p *Provider) Close(context.Context) error {
	p.c.InvalidateAll()
	return nil
}
