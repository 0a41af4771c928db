// Package breaker wraps a provider with a circuit breaker. While the circuit
// is open every call fails fast with gobreaker.ErrOpenState, which tagcache
// serves as a miss on the read path.
package breaker

import (
	"context"
	"time"

	"github.com/sony/gobreaker"

	pr "github.com/unkn0wn-root/tagcache/provider"
)

type Provider struct {
	inner pr.Provider
	cb    *gobreaker.CircuitBreaker
}

var (
	_ pr.Provider    = (*Provider)(nil)
	_ pr.MultiGetter = (*Provider)(nil)
)

type Config struct {
	Name                string
	ConsecutiveFailures uint32        // trip threshold; 0 => 5
	MaxRequests         uint32        // requests allowed while half-open; 0 => 1
	Interval            time.Duration // closed-state count reset; 0 => never
	Timeout             time.Duration // open -> half-open; 0 => 60s
	OnStateChange       func(name string, from, to gobreaker.State)
}

func New(inner pr.Provider, cfg Config) *Provider {
	threshold := cfg.ConsecutiveFailures
	if threshold == 0 {
		threshold = 5
	}
	name := cfg.Name
	if name == "" {
		name = "tagcache-provider"
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= threshold
		},
		OnStateChange: cfg.OnStateChange,
	})
	return &Provider{inner: inner, cb: cb}
}

// State reports the current circuit state.
func (p *Provider) State() gobreaker.State { return p.cb.State() }

type getResult struct {
	b  []byte
	ok bool
}

func (p *Provider) Get(ctx context.Context, key string) ([]byte, bool, error) {
	res, err := p.cb.Execute(func() (interface{}, error) {
		b, ok, err := p.inner.Get(ctx, key)
		return getResult{b: b, ok: ok}, err
	})
	if err != nil {
		return nil, false, err
	}
	r := res.(getResult)
	return r.b, r.ok, nil
}

func (p *Provider) GetMany(ctx context.Context, keys []string) (map[string][]byte, error) {
	res, err := p.cb.Execute(func() (interface{}, error) {
		return pr.GetMany(ctx, p.inner, keys)
	})
	if err != nil {
		return nil, err
	}
	return res.(map[string][]byte), nil
}

func (p *Provider) Set(ctx context.Context, key string, value []byte, cost int64, ttl time.Duration) (bool, error) {
	res, err := p.cb.Execute(func() (interface{}, error) {
		return p.inner.Set(ctx, key, value, cost, ttl)
	})
	if err != nil {
		return false, err
	}
	return res.(bool), nil
}

func (p *Provider) Del(ctx context.Context, key string) error {
	_, err := p.cb.Execute(func() (interface{}, error) {
		return nil, p.inner.Del(ctx, key)
	})
	return err
}

func (p *Provider) Close(ctx context.Context) error { return p.inner.Close(ctx) }
