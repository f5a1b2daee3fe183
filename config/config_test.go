package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/unkn0wn-root/snapcache"
	"github.com/unkn0wn-root/snapcache/fault"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "snapcache.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
api:
  base_url: https://api.example.com/gemini
  vision_timeout: 10s
  retry:
    network: {max_retries: 4, delay: 250ms}
cache:
  codec: cbor
  ttls:
    visionData: 2h
    drafts: 15m
  memory:
    kind: ristretto
  persistent:
    kind: redis
    addr: localhost:6379
log:
  backend: slog
  level: debug
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.API.BaseURL != "https://api.example.com/gemini" || cfg.API.VisionTimeout != 10*time.Second {
		t.Errorf("api = %+v", cfg.API)
	}
	if cfg.API.ListingTimeout != 15*time.Second {
		t.Errorf("listing timeout default lost: %v", cfg.API.ListingTimeout)
	}
	if cfg.Cache.Codec != "cbor" || cfg.Cache.Memory.Kind != "ristretto" || cfg.Cache.Persistent.Kind != "redis" {
		t.Errorf("cache = %+v", cfg.Cache)
	}
	if cfg.Cache.Memory.MaxEntries != 10_000 {
		t.Errorf("memory max entries default lost: %d", cfg.Cache.Memory.MaxEntries)
	}

	ttls, err := cfg.Cache.CategoryTTLs()
	if err != nil {
		t.Fatal(err)
	}
	if ttls[snapcache.VisionData] != 2*time.Hour || ttls["drafts"] != 15*time.Minute {
		t.Errorf("ttls = %v", ttls)
	}

	pol, err := cfg.API.Policies()
	if err != nil {
		t.Fatal(err)
	}
	if got := pol.For(fault.Network); got.MaxRetries != 4 || got.Delay != 250*time.Millisecond {
		t.Errorf("network policy = %+v", got)
	}
	if got := pol.For(fault.Timeout); got != fault.PolicyFor(fault.Timeout) {
		t.Errorf("timeout policy must keep its default, got %+v", got)
	}
}

func TestLoadEmptyPathIsDefault(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
	if cfg.Cache.Prefix != snapcache.DefaultPrefix || cfg.Log.Backend != "zap" {
		t.Errorf("defaults = %+v", cfg)
	}
}

func TestExpandEnv(t *testing.T) {
	// Cannot use t.Parallel() with t.Setenv
	t.Setenv("SNAPCACHE_TEST_REDIS", "redis.internal:6379")

	result := expandEnv([]byte("addr: ${SNAPCACHE_TEST_REDIS}"))
	if string(result) != "addr: redis.internal:6379" {
		t.Errorf("expandEnv = %q", result)
	}
	unset := expandEnv([]byte("addr: ${SNAPCACHE_TEST_UNSET_VAR}"))
	if string(unset) != "addr: ${SNAPCACHE_TEST_UNSET_VAR}" {
		t.Errorf("unset variables must be left as is, got %q", unset)
	}

	path := writeConfig(t, `
cache:
  persistent:
    kind: redis
    addr: ${SNAPCACHE_TEST_REDIS}
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Cache.Persistent.Addr != "redis.internal:6379" {
		t.Errorf("addr = %q", cfg.Cache.Persistent.Addr)
	}
}

func TestValidateReportsAll(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
api:
  retry:
    fatal: {max_retries: 1}
cache:
  codec: xml
  ttls:
    "a:b": 1m
  memory:
    kind: lru
  persistent:
    kind: redis
log:
  backend: glog
telemetry:
  tracing:
    sample_rate: 2
`)
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"cache.codec", "memory.kind", "persistent.addr", "ttls", "unknown error kind", "log.backend", "sample_rate"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %q", err, want)
		}
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
