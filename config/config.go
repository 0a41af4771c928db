// Package config loads the YAML configuration of a cached persistence stack.
//
// Values are layered: Default, then the YAML document, then TAGCACHE_*
// environment variables. The result is validated before it is returned.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	ProviderRistretto = "ristretto"
	ProviderBigcache  = "bigcache"
	ProviderRedis     = "redis"
	ProviderMemcache  = "memcache"
	ProviderSturdyc   = "sturdyc"

	TagStoreLocal = "local"
	TagStoreRedis = "redis"

	LogZap    = "zap"
	LogLogrus = "logrus"
	LogSlog   = "slog"
	LogNop    = "nop"
)

type Config struct {
	Namespace   string            `yaml:"namespace"`
	DefaultTTL  time.Duration     `yaml:"default_ttl"`
	Disabled    bool              `yaml:"disabled"`
	Cache       CacheConfig       `yaml:"cache"`
	Tags        TagsConfig        `yaml:"tags"`
	Keys        KeysConfig        `yaml:"keys"`
	Persistence PersistenceConfig `yaml:"persistence"`
	Log         LogConfig         `yaml:"log"`
	Metrics     MetricsConfig     `yaml:"metrics"`
}

type CacheConfig struct {
	Provider  string          `yaml:"provider"`
	Codec     string          `yaml:"codec"` // json | msgpack | cbor
	Ristretto RistrettoConfig `yaml:"ristretto"`
	Bigcache  BigcacheConfig  `yaml:"bigcache"`
	Redis     RedisConfig     `yaml:"redis"`
	Memcache  MemcacheConfig  `yaml:"memcache"`
	Sturdyc   SturdycConfig   `yaml:"sturdyc"`
	Breaker   BreakerConfig   `yaml:"breaker"`
}

type RistrettoConfig struct {
	NumCounters int64 `yaml:"num_counters"`
	MaxCost     int64 `yaml:"max_cost"`
	BufferItems int64 `yaml:"buffer_items"`
	Metrics     bool  `yaml:"metrics"`
}

type BigcacheConfig struct {
	LifeWindow         time.Duration `yaml:"life_window"`
	CleanWindow        time.Duration `yaml:"clean_window"`
	MaxEntrySize       int           `yaml:"max_entry_size"`
	HardMaxCacheSizeMB int           `yaml:"hard_max_cache_size_mb"`
}

// RedisConfig is shared by the redis provider and the redis tag store.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type MemcacheConfig struct {
	Servers      []string      `yaml:"servers"`
	Timeout      time.Duration `yaml:"timeout"`
	MaxIdleConns int           `yaml:"max_idle_conns"`
}

type SturdycConfig struct {
	Capacity           int           `yaml:"capacity"`
	NumShards          int           `yaml:"num_shards"`
	TTL                time.Duration `yaml:"ttl"`
	EvictionPercentage int           `yaml:"eviction_percentage"`
}

type BreakerConfig struct {
	Enabled             bool          `yaml:"enabled"`
	ConsecutiveFailures uint32        `yaml:"consecutive_failures"`
	Timeout             time.Duration `yaml:"timeout"`
}

type TagsConfig struct {
	Store           string        `yaml:"store"`
	TTL             time.Duration `yaml:"ttl"` // redis tag key expiry; 0 keeps them forever
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
	Retention       time.Duration `yaml:"retention"`
}

type KeysConfig struct {
	Prefix     string `yaml:"prefix"`
	Generation uint64 `yaml:"generation"`
}

type PersistenceConfig struct {
	Driver       string `yaml:"driver"`
	DSN          string `yaml:"dsn"`
	CreateSchema bool   `yaml:"create_schema"`
}

type LogConfig struct {
	Backend     string `yaml:"backend"`
	Level       string `yaml:"level"`
	CallLogging bool   `yaml:"call_logging"`
}

type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace"`
}

// Default returns a self-contained configuration: in-process ristretto
// cache, local tag store and an in-memory SQLite backend.
func Default() *Config {
	return &Config{
		Namespace:  "spi",
		DefaultTTL: 10 * time.Minute,
		Cache: CacheConfig{
			Provider: ProviderRistretto,
			Codec:    "msgpack",
			Ristretto: RistrettoConfig{
				NumCounters: 100_000,
				MaxCost:     64 << 20,
				BufferItems: 64,
			},
			Bigcache: BigcacheConfig{LifeWindow: 10 * time.Minute},
			Redis:    RedisConfig{Addr: "localhost:6379"},
			Memcache: MemcacheConfig{Timeout: 100 * time.Millisecond},
			Sturdyc: SturdycConfig{
				Capacity:           10_000,
				NumShards:          10,
				TTL:                10 * time.Minute,
				EvictionPercentage: 10,
			},
			Breaker: BreakerConfig{
				Enabled:             true,
				ConsecutiveFailures: 5,
				Timeout:             30 * time.Second,
			},
		},
		Tags: TagsConfig{
			Store:           TagStoreLocal,
			CleanupInterval: time.Hour,
			Retention:       30 * 24 * time.Hour,
		},
		Keys: KeysConfig{Prefix: "ibx-", Generation: 1},
		Persistence: PersistenceConfig{
			Driver:       "sqlite3",
			DSN:          "file::memory:?cache=shared",
			CreateSchema: true,
		},
		Log:     LogConfig{Backend: LogZap, Level: "info"},
		Metrics: MetricsConfig{Namespace: "ibexa"},
	}
}

// Load reads the YAML file at path over Default, applies environment
// overrides and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg, err := decode(data)
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	applyEnv(cfg, os.LookupEnv)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes a YAML document over Default and validates it. Environment
// variables are not consulted.
func Parse(data []byte) (*Config, error) {
	cfg, err := decode(data)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(data []byte) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overrides the settings that usually differ per deployment.
func applyEnv(cfg *Config, lookup func(string) (string, bool)) {
	if v, ok := lookup("TAGCACHE_NAMESPACE"); ok && v != "" {
		cfg.Namespace = v
	}
	if v, ok := lookup("TAGCACHE_CACHE_PROVIDER"); ok && v != "" {
		cfg.Cache.Provider = strings.ToLower(v)
	}
	if v, ok := lookup("TAGCACHE_REDIS_ADDR"); ok && v != "" {
		cfg.Cache.Redis.Addr = v
	}
	if v, ok := lookup("TAGCACHE_MEMCACHE_SERVERS"); ok && v != "" {
		cfg.Cache.Memcache.Servers = strings.Split(v, ",")
	}
	if v, ok := lookup("TAGCACHE_PERSISTENCE_DSN"); ok && v != "" {
		cfg.Persistence.DSN = v
	}
	if v, ok := lookup("TAGCACHE_LOG_LEVEL"); ok && v != "" {
		cfg.Log.Level = strings.ToLower(v)
	}
}
