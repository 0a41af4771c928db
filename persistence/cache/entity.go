package cache

import (
	"context"

	"golang.org/x/sync/singleflight"

	"github.com/unkn0wn-root/tagcache"
	"github.com/unkn0wn-root/tagcache/identifier"
)

// entityCache caches one lookup family of one entity kind: its key kind, the
// store its values live in and the tags each loaded value carries.
type entityCache[K comparable, V any] struct {
	kind   string
	store  tagcache.Store[V]
	keys   *identifier.Generator
	tagger func(V) []string
	plog   *PersistenceLogger

	// concurrent misses on one key share a single backend call and receive
	// the same value; callers must treat it as read-only
	flight singleflight.Group
}

func newEntityCache[K comparable, V any](h *Handler, kind string, store tagcache.Store[V], tagger func(V) []string) *entityCache[K, V] {
	return &entityCache[K, V]{kind: kind, store: store, keys: h.keys, tagger: tagger, plog: h.plog}
}

func (e *entityCache[K, V]) prefix() string { return e.keys.KeyPrefix(e.kind, true) }

func (e *entityCache[K, V]) key(id K, suffix string) string {
	return e.prefix() + identifier.FormatPart(id) + suffix
}

// load reads id through the cache. On a miss loader runs once per key across
// concurrent callers, and its result is saved with the value's tags plus
// extraTags. Loader errors are returned unchanged and nothing is cached. A
// caller whose ctx ends gets ctx.Err() while the shared load continues for
// the others.
func (e *entityCache[K, V]) load(
	ctx context.Context,
	method string,
	args tagcache.Fields,
	id K,
	suffix string,
	extraTags []string,
	loader func(context.Context) (V, error),
) (V, error) {
	key := e.key(id, suffix)
	item, _ := e.store.GetItem(ctx, key)
	if item != nil && item.IsHit() {
		e.plog.LogCacheHit(method, 1)
		return item.Get(), nil
	}
	e.plog.LogCacheMiss(method, 1)

	// The shared call outlives any single caller's cancellation; each caller
	// stops waiting on its own ctx.
	shared := context.WithoutCancel(ctx)
	ch := e.flight.DoChan(key, func() (any, error) {
		e.plog.LogCall(method, args)
		v, err := loader(shared)
		if err != nil {
			return nil, err
		}
		if item != nil {
			_ = e.store.Save(shared, item.Set(v).Tag(e.tagger(v)...).Tag(extraTags...))
		}
		return v, nil
	})

	var zero V
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(V), nil
	}
}

// loadMany reads ids through the cache with one backend call for all misses.
func (e *entityCache[K, V]) loadMany(
	ctx context.Context,
	method string,
	args tagcache.Fields,
	ids []K,
	suffixes map[K]string,
	loader func(context.Context, []K) (map[K]V, error),
) (map[K]V, error) {
	var missed int
	out, err := GetMultipleCacheItems(ctx, e.store, ids, e.prefix(),
		func(ctx context.Context, missing []K) (map[K]V, error) {
			missed = len(missing)
			e.plog.LogCacheMiss(method, missed)
			callArgs := tagcache.Fields{"ids": missing}
			for k, v := range args {
				callArgs[k] = v
			}
			e.plog.LogCall(method, callArgs)
			return loader(ctx, missing)
		},
		e.tagger, suffixes)
	if err != nil {
		return nil, err
	}
	e.plog.LogCacheHit(method, len(uniq(ids))-missed)
	return out, nil
}
