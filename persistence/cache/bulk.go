package cache

import (
	"context"

	"github.com/unkn0wn-root/tagcache"
	"github.com/unkn0wn-root/tagcache/identifier"
)

// GetMultipleCacheItems resolves ids with one cache round trip and at most
// one call to missingLoader.
//
// Each id is cached under keyPrefix + escaped id + keySuffixes[id]. Hits are
// returned as stored. All misses are passed to missingLoader together, in
// request order; every value it returns is saved with the tags from
// loadedTagger. Ids the loader does not return are left out of the result.
//
// Loader errors are returned unchanged. Cache failures never fail the call:
// unreadable entries count as misses and failed saves are dropped (the store
// logs them).
func GetMultipleCacheItems[K comparable, V any](
	ctx context.Context,
	store tagcache.Store[V],
	ids []K,
	keyPrefix string,
	missingLoader func(ctx context.Context, ids []K) (map[K]V, error),
	loadedTagger func(V) []string,
	keySuffixes map[K]string,
) (map[K]V, error) {
	out := make(map[K]V, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	ids = uniq(ids)
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = keyPrefix + identifier.FormatPart(id) + keySuffixes[id]
	}

	// fail open; a nil map turns every id into a miss
	items, _ := store.GetItems(ctx, keys)

	var missing []K
	for i, id := range ids {
		if it := items[keys[i]]; it != nil && it.IsHit() {
			out[id] = it.Get()
			continue
		}
		missing = append(missing, id)
	}
	if len(missing) == 0 {
		return out, nil
	}

	loaded, err := missingLoader(ctx, missing)
	if err != nil {
		return nil, err
	}
	for i, id := range ids {
		v, ok := loaded[id]
		if !ok {
			continue
		}
		if _, hit := out[id]; hit {
			continue
		}
		out[id] = v
		if it := items[keys[i]]; it != nil {
			_ = store.Save(ctx, it.Set(v).Tag(loadedTagger(v)...))
		}
	}
	return out, nil
}

// uniq drops duplicate ids, keeping first-seen order.
func uniq[K comparable](ids []K) []K {
	seen := make(map[K]struct{}, len(ids))
	out := make([]K, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
