package tagcache

import (
	"context"
	"time"

	c "github.com/unkn0wn-root/tagcache/codec"
	gen "github.com/unkn0wn-root/tagcache/genstore"
	pr "github.com/unkn0wn-root/tagcache/provider"
)

// SetCostFunc computes the admission cost of an encoded entry.
type SetCostFunc func(storageKey string, raw []byte, tags int) int64

// Store is the typed, tag-aware view over a Pool.
// V is the caller's value type. Serialization is handled by a pluggable Codec[V].
type Store[V any] interface {
	Enabled() bool

	// GetItem never returns a nil item; a miss is a placeholder to fill and Save.
	GetItem(ctx context.Context, key string) (*Item[V], error)
	// GetItems returns one item per distinct key, hits and misses alike.
	GetItems(ctx context.Context, keys []string) (map[string]*Item[V], error)
	Save(ctx context.Context, item *Item[V]) error

	Delete(ctx context.Context, keys ...string) error
	InvalidateTags(ctx context.Context, tags ...string) error
}

// Options tune the behavior of the pool.
// Only Namespace and Provider are required; others have sensible defaults.
type Options struct {
	// Required
	Namespace string // logical namespace to avoid collisions. e.g. "spi", "app:prod"
	Provider  pr.Provider

	Logger          Logger        // if nil, NopLogger is used
	Hooks           Hooks         // if nil, NopHooks is used
	DefaultTTL      time.Duration // 0 => 10m
	CleanupInterval time.Duration // local tag store sweep; 0 => 1h
	TagRetention    time.Duration // local tag store retention; 0 => 30d
	ComputeSetCost  SetCostFunc   // default 1
	TagStore        gen.GenStore  // nil => LocalGenStore (in-process)
	Disabled        bool          // default false (enabled)
}

// New builds a Pool. Typed stores are derived from it with NewStore.
func New(opts Options) (*Pool, error) {
	return newPool(opts)
}

// NewStore returns a typed view of p that encodes values with codec.
// Stores derived from the same pool share keys and tags.
func NewStore[V any](p *Pool, codec c.Codec[V]) Store[V] {
	return &store[V]{p: p, codec: codec}
}
