package sturdyc

import (
	"context"
	"errors"
	"time"

	sc "github.com/viccon/sturdyc"

	pr "github.com/unkn0wn-root/tagcache/provider"
)

// Provider stores raw entries in a sharded sturdyc client.
// sturdyc applies one TTL to all entries; per-call TTLs are ignored.
type Provider struct {
	c *sc.Client[[]byte]
}

var _ pr.Provider = (*Provider)(nil)

type Config struct {
	Capacity           int
	NumShards          int
	TTL                time.Duration
	EvictionPercentage int           // 1-100
	EvictionInterval   time.Duration // 0 = sturdyc default
}

func (c Config) validate() error {
	switch {
	case c.Capacity <= 0:
		return errors.New("sturdyc: capacity must be greater than 0")
	case c.NumShards <= 0:
		return errors.New("sturdyc: shards must be greater than 0")
	case c.TTL <= 0:
		return errors.New("sturdyc: ttl must be greater than 0")
	case c.EvictionPercentage < 1 || c.EvictionPercentage > 100:
		return errors.New("sturdyc: eviction percentage must be between 1 and 100")
	}
	return nil
}

func New(cfg Config) (*Provider, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	var opts []sc.Option
	if cfg.EvictionInterval > 0 {
		opts = append(opts, sc.WithEvictionInterval(cfg.EvictionInterval))
	}
	c := sc.New[[]byte](cfg.Capacity, cfg.NumShards, cfg.TTL, cfg.EvictionPercentage, opts...)
	return &Provider{c: c}, nil
}

func (p *Provider) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := p.c.Get(key)
	if !ok {
		return nil, false, nil
	}
	return v, true, nil
}

func (p *Provider) Set(_ context.Context, key string, value []byte, _ int64, _ time.Duration) (bool, error) {
	p.c.Set(key, value)
	return true, nil
}

func (p *Provider) Del(_ context.Context, key string) error {
	p.c.Delete(key)
	return nil
}

func (p *Provider) Close(context.Context) error { return nil }
