package config

import (
	"errors"
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

// ValidationError wraps the per-field errors of an invalid configuration.
// Errors is keyed by Go field name, nested for sections.
type ValidationError struct {
	Errors validation.Errors
}

func (e *ValidationError) Error() string { return "config: invalid: " + e.Errors.Error() }

func (e *ValidationError) Unwrap() error { return e.Errors }

var logLevels = []interface{}{"debug", "info", "warn", "error"}

func (c *Config) Validate() error {
	err := validation.ValidateStruct(c,
		validation.Field(&c.Namespace, validation.Required, validation.Length(1, 64)),
		validation.Field(&c.DefaultTTL, validation.Min(time.Duration(0))),
		validation.Field(&c.Cache),
		validation.Field(&c.Tags),
		validation.Field(&c.Keys),
		validation.Field(&c.Persistence),
		validation.Field(&c.Log),
		validation.Field(&c.Metrics),
	)
	if err == nil {
		err = c.validateCross()
	}
	if err == nil {
		return nil
	}
	var errs validation.Errors
	if errors.As(err, &errs) {
		return &ValidationError{Errors: errs}
	}
	return fmt.Errorf("config: %w", err)
}

// validateCross checks rules spanning sections. Tag versions should outlive
// the entries carrying them: providers that fix their own entry lifetime
// (bigcache, sturdyc) count with that lifetime instead of default_ttl.
func (c *Config) validateCross() error {
	lifetime, what := c.entryLifetime()
	errs := validation.Errors{}
	switch c.Tags.Store {
	case TagStoreLocal:
		if c.Tags.Retention > 0 && c.Tags.Retention <= lifetime {
			errs["Tags"] = validation.Errors{"Retention": fmt.Errorf("must exceed %s (%s)", what, lifetime)}
		}
	case TagStoreRedis:
		if c.Tags.TTL > 0 && c.Tags.TTL <= lifetime {
			errs["Tags"] = validation.Errors{"TTL": fmt.Errorf("must exceed %s (%s)", what, lifetime)}
		}
		if c.Cache.Redis.Addr == "" {
			errs["Cache"] = validation.Errors{"Redis": validation.Errors{"Addr": errors.New("required by the redis tag store")}}
		}
	}
	return errs.Filter()
}

// entryLifetime is the longest time an entry can stay in the provider.
func (c *Config) entryLifetime() (time.Duration, string) {
	ttl, what := c.DefaultTTL, "default_ttl"
	if ttl == 0 {
		ttl = 10 * time.Minute
	}
	switch c.Cache.Provider {
	case ProviderBigcache:
		if c.Cache.Bigcache.LifeWindow > ttl {
			ttl, what = c.Cache.Bigcache.LifeWindow, "cache.bigcache.life_window"
		}
	case ProviderSturdyc:
		if c.Cache.Sturdyc.TTL > ttl {
			ttl, what = c.Cache.Sturdyc.TTL, "cache.sturdyc.ttl"
		}
	}
	return ttl, what
}

func (c CacheConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Provider, validation.Required,
			validation.In(ProviderRistretto, ProviderBigcache, ProviderRedis, ProviderMemcache, ProviderSturdyc)),
		validation.Field(&c.Codec, validation.In("json", "msgpack", "cbor")),
		validation.Field(&c.Ristretto, validation.Skip.When(c.Provider != ProviderRistretto)),
		validation.Field(&c.Bigcache, validation.Skip.When(c.Provider != ProviderBigcache)),
		validation.Field(&c.Redis, validation.Skip.When(c.Provider != ProviderRedis)),
		validation.Field(&c.Memcache, validation.Skip.When(c.Provider != ProviderMemcache)),
		validation.Field(&c.Sturdyc, validation.Skip.When(c.Provider != ProviderSturdyc)),
		validation.Field(&c.Breaker),
	)
}

func (c RistrettoConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.NumCounters, validation.Required, validation.Min(int64(1))),
		validation.Field(&c.MaxCost, validation.Required, validation.Min(int64(1))),
		validation.Field(&c.BufferItems, validation.Required, validation.Min(int64(1))),
	)
}

func (c BigcacheConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.LifeWindow, validation.Required, validation.Min(time.Second)),
		validation.Field(&c.MaxEntrySize, validation.Min(0)),
		validation.Field(&c.HardMaxCacheSizeMB, validation.Min(0)),
	)
}

func (c RedisConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Addr, validation.Required, is.DialString),
		validation.Field(&c.DB, validation.Min(0)),
	)
}

func (c MemcacheConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Servers, validation.Required, validation.Each(validation.Required, is.DialString)),
		validation.Field(&c.Timeout, validation.Min(time.Duration(0))),
	)
}

func (c SturdycConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Capacity, validation.Required, validation.Min(1)),
		validation.Field(&c.NumShards, validation.Required, validation.Min(1)),
		validation.Field(&c.TTL, validation.Required, validation.Min(time.Second)),
		validation.Field(&c.EvictionPercentage, validation.Required, validation.Min(1), validation.Max(100)),
	)
}

func (c BreakerConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Timeout, validation.Min(time.Duration(0))),
	)
}

func (c TagsConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Store, validation.Required, validation.In(TagStoreLocal, TagStoreRedis)),
		validation.Field(&c.TTL, validation.Min(time.Duration(0))),
		validation.Field(&c.CleanupInterval, validation.Min(time.Duration(0))),
		validation.Field(&c.Retention, validation.Min(time.Duration(0))),
	)
}

func (c KeysConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Prefix, validation.Length(0, 32)),
	)
}

func (c PersistenceConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Driver, validation.Required, validation.In("sqlite3", "postgres")),
		validation.Field(&c.DSN, validation.Required),
	)
}

func (c LogConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Backend, validation.Required, validation.In(LogZap, LogLogrus, LogSlog, LogNop)),
		validation.Field(&c.Level, validation.In(logLevels...)),
	)
}

func (c MetricsConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Namespace, validation.When(c.Enabled, validation.Required)),
	)
}
