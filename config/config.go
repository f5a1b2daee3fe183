// Package config handles YAML configuration loading with environment variable expansion.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/unkn0wn-root/snapcache"
	"github.com/unkn0wn-root/snapcache/client"
	"github.com/unkn0wn-root/snapcache/codec"
	"github.com/unkn0wn-root/snapcache/fault"
)

// Config is the top-level configuration.
type Config struct {
	API       APIConfig       `yaml:"api"`
	Cache     CacheConfig     `yaml:"cache"`
	Log       LogConfig       `yaml:"log"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// APIConfig holds the remote vision/listing API settings.
type APIConfig struct {
	BaseURL          string                `yaml:"base_url"`
	VisionTimeout    time.Duration         `yaml:"vision_timeout"`
	ListingTimeout   time.Duration         `yaml:"listing_timeout"`
	MaxResponseBytes int64                 `yaml:"max_response_bytes"`
	DNSCache         DNSCacheConfig        `yaml:"dns_cache"`
	Retry            map[string]RetryEntry `yaml:"retry"` // keyed by kind, e.g. "network"
}

// DNSCacheConfig controls the client's cached resolver.
type DNSCacheConfig struct {
	Enabled bool          `yaml:"enabled"`
	Refresh time.Duration `yaml:"refresh"`
}

// RetryEntry overrides the retry budget of one error kind.
type RetryEntry struct {
	MaxRetries int           `yaml:"max_retries"`
	Delay      time.Duration `yaml:"delay"`
}

// CacheConfig holds the two-layer cache settings.
type CacheConfig struct {
	Disabled          bool                     `yaml:"disabled"`
	Prefix            string                   `yaml:"prefix"`
	Codec             string                   `yaml:"codec"` // json, cbor, msgpack, protobuf
	MaxEntryBytes     int                      `yaml:"max_entry_bytes"`
	Coalesce          bool                     `yaml:"coalesce"`
	StaleRetention    time.Duration            `yaml:"stale_retention"`
	RevalidateTimeout time.Duration            `yaml:"revalidate_timeout"`
	TTLs              map[string]time.Duration `yaml:"ttls"` // category => ttl
	Memory            MemoryConfig             `yaml:"memory"`
	Persistent        PersistentConfig         `yaml:"persistent"`
}

// MemoryConfig selects the in-process layer.
type MemoryConfig struct {
	Kind       string `yaml:"kind"` // otter, ristretto, bigcache
	MaxEntries int    `yaml:"max_entries"`
	MaxCostMB  int    `yaml:"max_cost_mb"` // ristretto / bigcache memory bound
}

// PersistentConfig selects the durable layer.
type PersistentConfig struct {
	Kind            string        `yaml:"kind"` // none, redis, sqlite
	Addr            string        `yaml:"addr"`
	Password        string        `yaml:"password"`
	DB              int           `yaml:"db"`
	Path            string        `yaml:"path"` // sqlite file or ":memory:"
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
}

// LogConfig selects the logging backend.
type LogConfig struct {
	Backend string `yaml:"backend"` // zap, logrus, slog
	Level   string `yaml:"level"`   // debug, info, warn, error
	Format  string `yaml:"format"`  // json, text
}

// TelemetryConfig holds observability settings.
type TelemetryConfig struct {
	Metrics MetricsConfig `yaml:"metrics"`
	Tracing TracingConfig `yaml:"tracing"`
}

// MetricsConfig controls Prometheus metrics. When enabled the CLI writes
// the registry in text format to Output ("" = stderr) on exit.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Output  string `yaml:"output"`
}

// TracingConfig controls OpenTelemetry tracing.
type TracingConfig struct {
	Enabled    bool    `yaml:"enabled"`
	Endpoint   string  `yaml:"endpoint"`    // OTLP gRPC endpoint
	SampleRate float64 `yaml:"sample_rate"` // 0.0 to 1.0
}

var envPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnv replaces ${VAR} patterns with environment variable values.
func expandEnv(data []byte) []byte {
	return envPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		varName := string(match[2 : len(match)-1])
		if val, ok := os.LookupEnv(varName); ok {
			return []byte(val)
		}
		return match
	})
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:        client.DefaultBaseURL,
			VisionTimeout:  client.DefaultVisionTimeout,
			ListingTimeout: client.DefaultListingTimeout,
			DNSCache:       DNSCacheConfig{Refresh: 5 * time.Minute},
		},
		Cache: CacheConfig{
			Prefix:            snapcache.DefaultPrefix,
			Codec:             "json",
			StaleRetention:    24 * time.Hour,
			RevalidateTimeout: 30 * time.Second,
			Memory:            MemoryConfig{Kind: "otter", MaxEntries: 10_000, MaxCostMB: 64},
			Persistent: PersistentConfig{
				Kind:            "sqlite",
				Path:            "snapcache.db",
				CleanupInterval: 10 * time.Minute,
			},
		},
		Log: LogConfig{Backend: "zap", Level: "info", Format: "text"},
		Telemetry: TelemetryConfig{
			Tracing: TracingConfig{Endpoint: "localhost:4317", SampleRate: 1.0},
		},
	}
}

// Load reads and parses a YAML config file, expanding environment variables.
// An empty path returns Default().
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	data = expandEnv(data)

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	if _, err := codec.ForName[any](c.Cache.Codec); err != nil {
		errs = append(errs, fmt.Errorf("cache.codec: %w", err))
	}
	switch c.Cache.Memory.Kind {
	case "otter", "ristretto", "bigcache":
	default:
		errs = append(errs, fmt.Errorf("cache.memory.kind: unknown %q", c.Cache.Memory.Kind))
	}
	switch c.Cache.Persistent.Kind {
	case "none", "":
	case "redis":
		if c.Cache.Persistent.Addr == "" {
			errs = append(errs, errors.New("cache.persistent.addr: required for redis"))
		}
	case "sqlite":
		if c.Cache.Persistent.Path == "" {
			errs = append(errs, errors.New("cache.persistent.path: required for sqlite"))
		}
	default:
		errs = append(errs, fmt.Errorf("cache.persistent.kind: unknown %q", c.Cache.Persistent.Kind))
	}
	if _, err := c.Cache.CategoryTTLs(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.API.Policies(); err != nil {
		errs = append(errs, err)
	}
	switch c.Log.Backend {
	case "zap", "logrus", "slog":
	default:
		errs = append(errs, fmt.Errorf("log.backend: unknown %q", c.Log.Backend))
	}
	if r := c.Telemetry.Tracing.SampleRate; r < 0 || r > 1 {
		errs = append(errs, fmt.Errorf("telemetry.tracing.sample_rate: %v not in [0,1]", r))
	}
	return errors.Join(errs...)
}

// CategoryTTLs converts the ttls table for snapcache.Options.
func (c CacheConfig) CategoryTTLs() (map[snapcache.Category]time.Duration, error) {
	out := make(map[snapcache.Category]time.Duration, len(c.TTLs))
	for name, d := range c.TTLs {
		cat := snapcache.Category(name)
		if err := cat.Validate(); err != nil {
			return nil, fmt.Errorf("cache.ttls[%q]: %w", name, err)
		}
		if d <= 0 {
			return nil, fmt.Errorf("cache.ttls[%q]: ttl must be positive", name)
		}
		out[cat] = d
	}
	return out, nil
}

// Policies overlays the retry table on fault's defaults.
func (a APIConfig) Policies() (fault.Policies, error) {
	p := fault.DefaultPolicies()
	for name, e := range a.Retry {
		k, ok := fault.ParseKind(name)
		if !ok {
			return nil, fmt.Errorf("api.retry: unknown error kind %q", name)
		}
		if e.MaxRetries < 0 || e.Delay < 0 {
			return nil, fmt.Errorf("api.retry.%s: negative budget", name)
		}
		p[k] = fault.Policy{MaxRetries: e.MaxRetries, Delay: e.Delay}
	}
	return p, nil
}
