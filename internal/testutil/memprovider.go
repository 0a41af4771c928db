// Package testutil holds an in-memory provider used by tests across packages.
package testutil

import (
	"context"
	"sync"
	"time"

	pr "github.com/unkn0wn-root/tagcache/provider"
)

type memEntry struct {
	v   []byte
	exp time.Time // zero => no TTL
}

// MemProvider is a map-backed provider with call counters and fault
// injection. It implements provider.MultiGetter.
type MemProvider struct {
	mu sync.Mutex
	m  map[string]memEntry

	// Fail, when set, is returned by every operation.
	Fail error

	Gets, MultiGets, Sets, Dels int
}

var (
	_ pr.Provider    = (*MemProvider)(nil)
	_ pr.MultiGetter = (*MemProvider)(nil)
)

func NewMemProvider() *MemProvider { return &MemProvider{m: make(map[string]memEntry)} }

func (p *MemProvider) Get(_ context.Context, key string) ([]byte, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Gets++
	if p.Fail != nil {
		return nil, false, p.Fail
	}
	b, ok := p.lookup(key)
	return b, ok, nil
}

func (p *MemProvider) GetMany(_ context.Context, keys []string) (map[string][]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.MultiGets++
	if p.Fail != nil {
		return nil, p.Fail
	}
	out := make(map[string][]byte, len(keys))
	for _, k := range keys {
		if b, ok := p.lookup(k); ok {
			out[k] = b
		}
	}
	return out, nil
}

func (p *MemProvider) lookup(key string) ([]byte, bool) {
	e, ok := p.m[key]
	if !ok {
		return nil, false
	}
	if !e.exp.IsZero() && time.Now().After(e.exp) {
		delete(p.m, key)
		return nil, false
	}
	return e.v, true
}

func (p *MemProvider) Set(_ context.Context, key string, value []byte, _ int64, ttl time.Duration) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Sets++
	if p.Fail != nil {
		return false, p.Fail
	}
	var exp time.Time
	if ttl > 0 {
		exp = time.Now().Add(ttl)
	}
	p.m[key] = memEntry{v: append([]byte(nil), value...), exp: exp}
	return true, nil
}

func (p *MemProvider) Del(_ context.Context, key string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Dels++
	if p.Fail != nil {
		return p.Fail
	}
	delete(p.m, key)
	return nil
}

func (p *MemProvider) Close(context.Context) error { return nil }

// Put writes raw bytes directly, bypassing the cache.
func (p *MemProvider) Put(key string, raw []byte) {
	p.mu.Lock()
	p.m[key] = memEntry{v: raw}
	p.mu.Unlock()
}

// Raw returns the stored bytes for key.
func (p *MemProvider) Raw(key string) ([]byte, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.m[key]
	return e.v, ok
}

// Len reports the number of stored entries, expired ones included.
func (p *MemProvider) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.m)
}

// SetFail swaps the injected error under the lock.
func (p *MemProvider) SetFail(err error) {
	p.mu.Lock()
	p.Fail = err
	p.mu.Unlock()
}

// ResetCounters zeroes the call counters.
func (p *MemProvider) ResetCounters() {
	p.mu.Lock()
	p.Gets, p.MultiGets, p.Sets, p.Dels = 0, 0, 0, 0
	p.mu.Unlock()
}
