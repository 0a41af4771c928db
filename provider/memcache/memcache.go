package memcache

import (
	"context"
	"errors"
	"time"

	mc "github.com/bradfitz/gomemcache/memcache"

	pr "github.com/unkn0wn-root/tagcache/provider"
)

var ErrNoServers = errors.New("memcache provider: no servers")

// Relative expirations above this are read by memcached as unix timestamps.
const maxRelativeExpiry = 30 * 24 * time.Hour

type Memcache struct {
	c *mc.Client
}

var (
	_ pr.Provider    = (*Memcache)(nil)
	_ pr.MultiGetter = (*Memcache)(nil)
)

type Config struct {
	Servers      []string // host:port
	Timeout      time.Duration
	MaxIdleConns int
}

func New(cfg Config) (*Memcache, error) {
	if len(cfg.Servers) == 0 {
		return nil, ErrNoServers
	}
	c := mc.New(cfg.Servers...)
	if cfg.Timeout > 0 {
		c.Timeout = cfg.Timeout
	}
	if cfg.MaxIdleConns > 0 {
		c.MaxIdleConns = cfg.MaxIdleConns
	}
	return &Memcache{c: c}, nil
}

func NewWithClient(c *mc.Client) *Memcache { return &Memcache{c: c} }

func (p *Memcache) Get(_ context.Context, key string) ([]byte, bool, error) {
	it, err := p.c.Get(key)
	if errors.Is(err, mc.ErrCacheMiss) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return it.Value, true, nil
}

func (p *Memcache) GetMany(_ context.Context, keys []string) (map[string][]byte, error) {
	items, err := p.c.GetMulti(keys)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]byte, len(items))
	for k, it := range items {
		out[k] = it.Value
	}
	return out, nil
}

// Set stores value; ttl<=0 means "no expiry". Cost is ignored.
func (p *Memcache) Set(_ context.Context, key string, value []byte, _ int64, ttl time.Duration) (bool, error) {
	err := p.c.Set(&mc.Item{Key: key, Value: value, Expiration: expiration(ttl, time.Now())})
	if err != nil {
		return false, err
	}
	return true, nil
}

func (p *Memcache) Del(_ context.Context, key string) error {
	err := p.c.Delete(key)
	if errors.Is(err, mc.ErrCacheMiss) {
		return nil
	}
	return err
}

// Close is a no-op; idle connections are reaped by the client.
func (p *Memcache) Close(context.Context) error { return nil }

func expiration(ttl time.Duration, now time.Time) int32 {
	switch {
	case ttl <= 0:
		return 0
	case ttl > maxRelativeExpiry:
		return int32(now.Add(ttl).Unix())
	case ttl < time.Second:
		return 1
	default:
		return int32(ttl / time.Second)
	}
}
