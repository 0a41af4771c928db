package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestParseOverlaysDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
namespace: shop
default_ttl: 5m
cache:
  provider: sturdyc
  codec: cbor
  sturdyc:
    ttl: 2m
  breaker:
    consecutive_failures: 3
keys:
  prefix: shop-
  generation: 4
log:
  backend: logrus
  level: debug
  call_logging: true
`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Namespace != "shop" || cfg.DefaultTTL != 5*time.Minute {
		t.Fatalf("top level not applied: %+v", cfg)
	}
	if cfg.Cache.Provider != ProviderSturdyc || cfg.Cache.Sturdyc.TTL != 2*time.Minute {
		t.Fatalf("cache section not applied: %+v", cfg.Cache)
	}
	// untouched keys keep their defaults
	if cfg.Cache.Sturdyc.Capacity != 10_000 || !cfg.Cache.Breaker.Enabled {
		t.Fatalf("defaults lost: %+v", cfg.Cache)
	}
	if cfg.Cache.Breaker.ConsecutiveFailures != 3 || cfg.Keys.Generation != 4 {
		t.Fatalf("nested values not applied")
	}
	if !cfg.Log.CallLogging || cfg.Log.Backend != LogLogrus {
		t.Fatalf("log section not applied: %+v", cfg.Log)
	}
}

func TestParseEmptyDocumentYieldsDefaults(t *testing.T) {
	cfg, err := Parse(nil)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Namespace != "spi" || cfg.Cache.Provider != ProviderRistretto {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	if _, err := Parse([]byte("namespace: x\ncache:\n  provder: redis\n")); err == nil {
		t.Fatalf("expected error for misspelled key")
	}
}

func TestValidateReportsFields(t *testing.T) {
	cases := []struct {
		name string
		doc  string
		want string
	}{
		{"unknown provider", "cache:\n  provider: apcu\n", "Provider"},
		{"memcache without servers", "cache:\n  provider: memcache\n", "Servers"},
		{"bad log backend", "log:\n  backend: stdout\n", "Backend"},
		{"retention not above ttl", "default_ttl: 1h\ntags:\n  retention: 30m\n", "Retention"},
		{"redis tag ttl not above ttl", "tags:\n  store: redis\n  ttl: 1m\n", "TTL"},
		{"metrics without namespace", "metrics:\n  enabled: true\n  namespace: \"\"\n", "Namespace"},
		{"unknown driver", "persistence:\n  driver: mysql\n", "Driver"},
		{"bigcache window outlives tags", "cache:\n  provider: bigcache\n  bigcache:\n    life_window: 2h\ntags:\n  retention: 1h\n", "life_window"},
		{"sturdyc ttl outlives redis tags", "cache:\n  provider: sturdyc\n  sturdyc:\n    ttl: 2h\ntags:\n  store: redis\n  ttl: 1h\n", "sturdyc.ttl"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.doc))
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected *ValidationError, got %v", err)
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error %q does not mention %s", err, tc.want)
			}
		})
	}
}

func TestInactiveProviderSectionsAreNotValidated(t *testing.T) {
	// memcache has no servers by default but is not selected
	cfg := Default()
	cfg.Cache.Bigcache.LifeWindow = 0
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLoadAppliesEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tagcache.yaml")
	if err := os.WriteFile(path, []byte("namespace: file\ncache:\n  provider: bigcache\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("TAGCACHE_NAMESPACE", "env")
	t.Setenv("TAGCACHE_LOG_LEVEL", "WARN")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Namespace != "env" {
		t.Fatalf("env override not applied, namespace=%q", cfg.Namespace)
	}
	if cfg.Log.Level != "warn" {
		t.Fatalf("level = %q", cfg.Log.Level)
	}
	if cfg.Cache.Provider != ProviderBigcache {
		t.Fatalf("file value lost: %q", cfg.Cache.Provider)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}

func TestApplyEnvSplitsServers(t *testing.T) {
	env := map[string]string{"TAGCACHE_MEMCACHE_SERVERS": "a:11211,b:11211", "TAGCACHE_CACHE_PROVIDER": "MEMCACHE"}
	cfg := Default()
	applyEnv(cfg, func(k string) (string, bool) { v, ok := env[k]; return v, ok })
	if cfg.Cache.Provider != ProviderMemcache || len(cfg.Cache.Memcache.Servers) != 2 {
		t.Fatalf("env not applied: %+v", cfg.Cache)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}
