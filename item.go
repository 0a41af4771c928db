package tagcache

import "time"

// Item is a cache entry handle. On a miss it holds the zero value and is meant
// to be filled with Set, tagged and passed back to Store.Save.
type Item[V any] struct {
	key   string
	value V
	hit   bool
	tags  []string
	ttl   time.Duration
}

func newItem[V any](key string) *Item[V] { return &Item[V]{key: key} }

func (i *Item[V]) Key() string    { return i.key }
func (i *Item[V]) IsHit() bool    { return i.hit }
func (i *Item[V]) Get() V         { return i.value }
func (i *Item[V]) Tags() []string { return append([]string(nil), i.tags...) }

// Set replaces the value. The hit flag is left unchanged until the next read.
func (i *Item[V]) Set(v V) *Item[V] {
	i.value = v
	return i
}

// Tag adds invalidation tags. Empty and duplicate tags are ignored.
func (i *Item[V]) Tag(tags ...string) *Item[V] {
	for _, t := range tags {
		if t == "" || containsString(i.tags, t) {
			continue
		}
		i.tags = append(i.tags, t)
	}
	return i
}

// ExpiresAfter overrides the pool default TTL for this item. 0 keeps the default.
func (i *Item[V]) ExpiresAfter(ttl time.Duration) *Item[V] {
	i.ttl = ttl
	return i
}

func containsString(s []string, v string) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}
