// Package tagcache implements a provider-agnostic, tag-aware cache pool.
// Entries are addressed by key and grouped by tags; invalidating a tag evicts
// every entry that carries it without enumerating keys.
//
// Components:
//   - Provider: byte store with TTL (e.g. Ristretto, BigCache, Redis, Memcache).
//   - Codec[V]: (de)serializes V <-> []byte.
//   - GenStore: version counter per tag. Local (in-process) by default,
//     optional Redis implementation for multi-replica / restart persistence.
//
// Keys:
//
//	<ns>:<key>          - tagged entries
//	tag:<ns>:<tag>      - tag versions (in the GenStore)
//
// Each stored entry records the versions its tags had when it was saved.
// A read is a hit only while all of those versions are still current, so
// InvalidateTags is a counter bump per tag and stale entries self-heal on read.
//
// Read-through pattern:
//
//	item, _ := store.GetItem(ctx, key)
//	if !item.IsHit() {
//	    v := readFromDB(id)
//	    _ = store.Save(ctx, item.Set(v).Tag("s-1"))
//	}
//
// Reads fail open: provider and tag store errors on the read path are
// reported through Hooks and Logger and surface as misses.
package tagcache
