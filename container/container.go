// Package container builds a ready cached persistence handler from a
// config.Config: provider, circuit breaker, tag store, hooks, pool, SQL
// backend and the caching decorator on top.
package container

import (
	"context"
	"errors"
	"fmt"
	stdslog "log/slog"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/unkn0wn-root/tagcache"
	"github.com/unkn0wn-root/tagcache/config"
	gen "github.com/unkn0wn-root/tagcache/genstore"
	asynchook "github.com/unkn0wn-root/tagcache/hooks/async"
	"github.com/unkn0wn-root/tagcache/hooks/prom"
	"github.com/unkn0wn-root/tagcache/identifier"
	tlogrus "github.com/unkn0wn-root/tagcache/log/logrus"
	tslog "github.com/unkn0wn-root/tagcache/log/slog"
	tzap "github.com/unkn0wn-root/tagcache/log/zap"
	"github.com/unkn0wn-root/tagcache/persistence"
	"github.com/unkn0wn-root/tagcache/persistence/cache"
	"github.com/unkn0wn-root/tagcache/persistence/sqlstore"
	pr "github.com/unkn0wn-root/tagcache/provider"
	"github.com/unkn0wn-root/tagcache/provider/bigcache"
	"github.com/unkn0wn-root/tagcache/provider/breaker"
	"github.com/unkn0wn-root/tagcache/provider/memcache"
	rprov "github.com/unkn0wn-root/tagcache/provider/redis"
	"github.com/unkn0wn-root/tagcache/provider/ristretto"
	"github.com/unkn0wn-root/tagcache/provider/sturdyc"
	"github.com/unkn0wn-root/tagcache/sloghooks"
)

// Container owns every component built by New.
type Container struct {
	Config  *config.Config
	Logger  tagcache.Logger
	Pool    *tagcache.Pool
	Backend *sqlstore.Handler
	Handler *cache.Handler

	// Registry holds the tagcache counters when metrics are enabled and no
	// registerer was supplied.
	Registry *prometheus.Registry

	breaker *breaker.Provider
	closers []func(context.Context) error
}

type Option func(*settings)

type settings struct {
	logger     tagcache.Logger
	provider   pr.Provider
	registerer prometheus.Registerer
	redis      goredis.UniversalClient
}

// WithLogger replaces the logger selected by cfg.Log.
func WithLogger(l tagcache.Logger) Option { return func(s *settings) { s.logger = l } }

// WithProvider replaces the provider selected by cfg.Cache.Provider. The
// breaker is still applied when enabled.
func WithProvider(p pr.Provider) Option { return func(s *settings) { s.provider = p } }

// WithRegisterer registers metrics on r instead of a private registry.
func WithRegisterer(r prometheus.Registerer) Option { return func(s *settings) { s.registerer = r } }

// WithRedisClient uses c for the redis provider and tag store instead of
// dialing cfg.Cache.Redis. The caller keeps ownership of c.
func WithRedisClient(c goredis.UniversalClient) Option { return func(s *settings) { s.redis = c } }

// New wires the stack described by cfg. On error everything built so far is
// released.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Container, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	var s settings
	for _, o := range opts {
		o(&s)
	}

	c := &Container{Config: cfg}
	fail := func(err error) (*Container, error) {
		_ = c.Close(context.Background())
		return nil, err
	}

	var err error
	if c.Logger = s.logger; c.Logger == nil {
		if c.Logger, err = c.buildLogger(cfg.Log); err != nil {
			return fail(err)
		}
	}

	// one client serves both the redis provider and the redis tag store
	rdb := s.redis
	if rdb == nil && (cfg.Cache.Provider == config.ProviderRedis || cfg.Tags.Store == config.TagStoreRedis) {
		client := goredis.NewClient(&goredis.Options{
			Addr:     cfg.Cache.Redis.Addr,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
		})
		c.closers = append(c.closers, func(context.Context) error { return client.Close() })
		rdb = client
	}

	hooks, err := c.buildHooks(cfg, s.registerer)
	if err != nil {
		return fail(err)
	}

	provider := s.provider
	if provider == nil {
		if provider, err = buildProvider(cfg.Cache, rdb); err != nil {
			return fail(err)
		}
	}
	if cfg.Cache.Breaker.Enabled {
		c.breaker = breaker.New(provider, breaker.Config{
			Name:                "tagcache-" + cfg.Cache.Provider,
			ConsecutiveFailures: cfg.Cache.Breaker.ConsecutiveFailures,
			Timeout:             cfg.Cache.Breaker.Timeout,
			OnStateChange: func(name string, from, to gobreaker.State) {
				c.Logger.Warn("cache circuit changed state", tagcache.Fields{"breaker": name, "from": from.String(), "to": to.String()})
			},
		})
		provider = c.breaker
	}

	var tagStore gen.GenStore
	if cfg.Tags.Store == config.TagStoreRedis {
		tagStore = borrowedGenStore{gen.NewRedisGenStore(rdb, gen.RedisOptions{TTL: cfg.Tags.TTL})}
	}

	poolOpts := tagcache.Options{
		Namespace:       cfg.Namespace,
		Provider:        provider,
		Logger:          c.Logger,
		Hooks:           hooks,
		DefaultTTL:      cfg.DefaultTTL,
		CleanupInterval: cfg.Tags.CleanupInterval,
		TagRetention:    cfg.Tags.Retention,
		TagStore:        tagStore,
		Disabled:        cfg.Disabled,
	}
	if cfg.Cache.Provider == config.ProviderRistretto {
		poolOpts.ComputeSetCost = func(_ string, raw []byte, _ int) int64 { return int64(len(raw)) }
	}
	if c.Pool, err = tagcache.New(poolOpts); err != nil {
		_ = provider.Close(ctx)
		return fail(err)
	}
	c.closers = append(c.closers, c.Pool.Close)

	db, err := sqlstore.Open(ctx, sqlstore.Config{Driver: cfg.Persistence.Driver, DSN: cfg.Persistence.DSN})
	if err != nil {
		return fail(err)
	}
	c.Backend = sqlstore.New(db)
	c.closers = append(c.closers, func(context.Context) error { return c.Backend.Close() })
	if cfg.Persistence.CreateSchema {
		if err := sqlstore.CreateSchema(ctx, db); err != nil {
			return fail(err)
		}
	}

	keys, err := identifier.New(identifier.Options{Prefix: cfg.Keys.Prefix, Generation: cfg.Keys.Generation})
	if err != nil {
		return fail(err)
	}
	c.Handler, err = cache.NewHandler(c.Backend, c.Pool, cache.Options{
		Keys:        keys,
		Codec:       cfg.Cache.Codec,
		Logger:      c.Logger,
		CallLogging: cfg.Log.CallLogging,
	})
	if err != nil {
		return fail(err)
	}

	c.Logger.Info("tagcache ready", tagcache.Fields{
		"namespace": cfg.Namespace,
		"provider":  cfg.Cache.Provider,
		"tags":      cfg.Tags.Store,
		"driver":    cfg.Persistence.Driver,
	})
	return c, nil
}

// Persistence returns the cached handler as the interface callers use.
func (c *Container) Persistence() persistence.Handler { return c.Handler }

// BreakerState reports the provider circuit, or "disabled".
func (c *Container) BreakerState() string {
	if c.breaker == nil {
		return "disabled"
	}
	return c.breaker.State().String()
}

// Close releases components in reverse construction order and returns every
// error encountered.
func (c *Container) Close(ctx context.Context) error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}

func buildProvider(cfg config.CacheConfig, rdb goredis.UniversalClient) (pr.Provider, error) {
	switch cfg.Provider {
	case config.ProviderRistretto:
		return ristretto.New(ristretto.Config{
			NumCounters: cfg.Ristretto.NumCounters,
			MaxCost:     cfg.Ristretto.MaxCost,
			BufferItems: cfg.Ristretto.BufferItems,
			Metrics:     cfg.Ristretto.Metrics,
		})
	case config.ProviderBigcache:
		return bigcache.New(bigcache.Config{
			LifeWindow:         cfg.Bigcache.LifeWindow,
			CleanWindow:        cfg.Bigcache.CleanWindow,
			MaxEntrySize:       cfg.Bigcache.MaxEntrySize,
			HardMaxCacheSizeMB: cfg.Bigcache.HardMaxCacheSizeMB,
		})
	case config.ProviderRedis:
		return rprov.New(rprov.Config{Client: rdb})
	case config.ProviderMemcache:
		return memcache.New(memcache.Config{
			Servers:      cfg.Memcache.Servers,
			Timeout:      cfg.Memcache.Timeout,
			MaxIdleConns: cfg.Memcache.MaxIdleConns,
		})
	case config.ProviderSturdyc:
		return sturdyc.New(sturdyc.Config{
			Capacity:           cfg.Sturdyc.Capacity,
			NumShards:          cfg.Sturdyc.NumShards,
			TTL:                cfg.Sturdyc.TTL,
			EvictionPercentage: cfg.Sturdyc.EvictionPercentage,
		})
	}
	return nil, fmt.Errorf("container: unknown provider %q", cfg.Provider)
}

func (c *Container) buildLogger(cfg config.LogConfig) (tagcache.Logger, error) {
	level := cfg.Level
	if level == "" {
		level = "info"
	}
	switch cfg.Backend {
	case config.LogZap:
		lvl, err := zapcore.ParseLevel(level)
		if err != nil {
			return nil, fmt.Errorf("container: zap level: %w", err)
		}
		zc := zap.NewProductionConfig()
		zc.Level = zap.NewAtomicLevelAt(lvl)
		l, err := zc.Build()
		if err != nil {
			return nil, fmt.Errorf("container: build zap logger: %w", err)
		}
		c.closers = append(c.closers, func(context.Context) error { _ = l.Sync(); return nil })
		return tzap.New(l), nil
	case config.LogLogrus:
		lvl, err := logrus.ParseLevel(level)
		if err != nil {
			return nil, fmt.Errorf("container: logrus level: %w", err)
		}
		l := logrus.New()
		l.SetLevel(lvl)
		l.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
		return tlogrus.New(l), nil
	case config.LogSlog:
		return tslog.Logger{L: newSlog(level)}, nil
	case config.LogNop:
		return tagcache.NopLogger{}, nil
	}
	return nil, fmt.Errorf("container: unknown log backend %q", cfg.Backend)
}

func newSlog(level string) *stdslog.Logger {
	var lvl stdslog.Level
	_ = lvl.UnmarshalText([]byte(level))
	return stdslog.New(stdslog.NewJSONHandler(os.Stderr, &stdslog.HandlerOptions{Level: lvl}))
}

// buildHooks combines Prometheus counters and slog event logging behind one
// async queue so hook sinks never slow down cache calls.
func (c *Container) buildHooks(cfg *config.Config, reg prometheus.Registerer) (tagcache.Hooks, error) {
	var sinks prom.Multi
	if cfg.Metrics.Enabled {
		if reg == nil {
			c.Registry = prometheus.NewRegistry()
			reg = c.Registry
		}
		ph, err := prom.New(cfg.Metrics.Namespace, reg)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, ph)
	}
	if cfg.Log.Backend == config.LogSlog {
		sinks = append(sinks, sloghooks.New(newSlog(cfg.Log.Level), sloghooks.Options{SelfHealEvery: 100, ProviderErrorEvery: 100}))
	}
	if len(sinks) == 0 {
		return nil, nil
	}
	ah := asynchook.New(sinks, 1, 1024)
	c.closers = append(c.closers, func(context.Context) error { ah.Close(); return nil })
	return ah, nil
}

// borrowedGenStore leaves closing the shared client to the container.
type borrowedGenStore struct{ *gen.RedisGenStore }

func (borrowedGenStore) Close(context.Context) error { return nil }
