package tagcache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	c "github.com/unkn0wn-root/tagcache/codec"
	gen "github.com/unkn0wn-root/tagcache/genstore"
	"github.com/unkn0wn-root/tagcache/internal/util"
	"github.com/unkn0wn-root/tagcache/internal/wire"
	pr "github.com/unkn0wn-root/tagcache/provider"
)

const (
	defaultTTL          = 10 * time.Minute
	defaultTagRetention = 30 * 24 * time.Hour
	defaultSweep        = time.Hour
)

// Pool owns the byte store and the tag versions shared by every Store derived
// from it. It is safe for concurrent use.
type Pool struct {
	ns             string
	provider       pr.Provider
	tags           gen.GenStore
	log            Logger
	hooks          Hooks
	enabled        bool
	defaultTTL     time.Duration
	computeSetCost SetCostFunc

	closeOnce sync.Once
	closeErr  error
}

func newPool(opts Options) (*Pool, error) {
	if opts.Provider == nil {
		return nil, ErrNoProvider
	}
	if opts.Namespace == "" {
		return nil, ErrNoNamespace
	}
	if strings.ContainsRune(opts.Namespace, '#') {
		// '#' marks the hash suffix of shortened storage keys
		return nil, fmt.Errorf("tagcache: namespace %q must not contain '#'", opts.Namespace)
	}

	p := &Pool{
		ns:       opts.Namespace,
		provider: opts.Provider,
		enabled:  !opts.Disabled,
	}

	// defaults
	p.log = coalesce[Logger](opts.Logger, NopLogger{})
	p.hooks = coalesce[Hooks](opts.Hooks, NopHooks{})
	p.defaultTTL = coalesce[time.Duration](opts.DefaultTTL, defaultTTL)
	sweep := coalesce[time.Duration](opts.CleanupInterval, defaultSweep)
	retention := coalesce[time.Duration](opts.TagRetention, defaultTagRetention)

	if opts.TagStore == nil && retention <= p.defaultTTL {
		// entries outliving a pruned tag version turn into misses early
		return nil, fmt.Errorf("tagcache: tag retention %s must exceed default ttl %s", retention, p.defaultTTL)
	}

	if opts.ComputeSetCost != nil {
		p.computeSetCost = opts.ComputeSetCost
	} else {
		p.computeSetCost = func(_ string, _ []byte, _ int) int64 { return 1 }
	}

	if opts.TagStore != nil {
		p.tags = opts.TagStore
	} else {
		// default to in-process tag versions with periodic cleanup
		p.tags = gen.NewLocalGenStore(sweep, retention)
	}

	return p, nil
}

func (p *Pool) Enabled() bool { return p.enabled }

// Namespace returns the key namespace of the pool.
func (p *Pool) Namespace() string { return p.ns }

func (p *Pool) Close(ctx context.Context) error {
	p.closeOnce.Do(func() {
		// Close tag store first (best effort)
		if p.tags != nil {
			_ = p.tags.Close(ctx)
		}
		if p.provider != nil {
			p.closeErr = p.provider.Close(ctx)
		}
	})
	return p.closeErr
}

// InvalidateTags bumps the version of every tag, which turns all entries
// carrying one of them into misses. Every tag is attempted; failures are
// returned as *InvalidateError.
func (p *Pool) InvalidateTags(ctx context.Context, tags ...string) error {
	if !p.enabled || len(tags) == 0 {
		return nil
	}
	var failed map[string]error
	for _, t := range uniqStrings(tags) {
		if t == "" {
			continue
		}
		if _, err := p.tags.Bump(ctx, p.tagKey(t)); err != nil {
			if failed == nil {
				failed = make(map[string]error)
			}
			failed[t] = err
			p.hooks.TagBumpError(t, err)
			p.log.Error("tag bump error", Fields{"tag": t, "err": err})
		}
	}
	p.log.Debug("invalidated tags", Fields{"tags": tags, "failed": len(failed)})
	if failed != nil {
		return &InvalidateError{Failed: failed}
	}
	return nil
}

// Delete removes entries by key regardless of their tags.
func (p *Pool) Delete(ctx context.Context, keys ...string) error {
	if !p.enabled {
		return nil
	}
	var errs []error
	for _, k := range uniqStrings(keys) {
		if err := p.provider.Del(ctx, p.storageKey(k)); err != nil {
			p.hooks.ProviderError("del", err)
			errs = append(errs, fmt.Errorf("delete %q: %w", k, err))
		}
	}
	return errors.Join(errs...)
}

// fetch reads raw entries for keys. Missing keys are absent from the result.
// Provider errors are reported and read as misses.
func (p *Pool) fetch(ctx context.Context, keys []string) map[string][]byte {
	out := make(map[string][]byte, len(keys))
	if mg, ok := p.provider.(pr.MultiGetter); ok && len(keys) > 1 {
		storage := make([]string, len(keys))
		byStorage := make(map[string]string, len(keys))
		for i, k := range keys {
			storage[i] = p.storageKey(k)
			byStorage[storage[i]] = k
		}
		raws, err := mg.GetMany(ctx, storage)
		if err != nil {
			p.hooks.ProviderError("get_many", err)
			p.log.Warn("provider multi-get failed; serving misses", Fields{"keys": len(keys), "err": err})
			return out
		}
		for sk, raw := range raws {
			if k, ok := byStorage[sk]; ok {
				out[k] = raw
			}
		}
		return out
	}

	for _, k := range keys {
		raw, ok, err := p.provider.Get(ctx, p.storageKey(k))
		if err != nil {
			p.hooks.ProviderError("get", err)
			p.log.Warn("provider get failed; serving miss", Fields{"key": k, "err": err})
			continue
		}
		if ok {
			out[k] = raw
		}
	}
	return out
}

// validEntries decodes raw entries and keeps those whose tag versions are all
// current. Corrupt and stale entries are deleted.
func (p *Pool) validEntries(ctx context.Context, raws map[string][]byte) map[string]wire.Entry {
	entries := make(map[string]wire.Entry, len(raws))
	var tagKeys []string
	seen := make(map[string]struct{})
	for k, raw := range raws {
		e, err := wire.DecodeEntry(raw)
		if err != nil {
			p.selfHeal(ctx, k, "corrupt")
			continue
		}
		entries[k] = e
		for _, t := range e.Tags {
			tk := p.tagKey(t.Name)
			if _, ok := seen[tk]; !ok {
				seen[tk] = struct{}{}
				tagKeys = append(tagKeys, tk)
			}
		}
	}
	if len(tagKeys) == 0 {
		return entries
	}

	current, err := p.tags.SnapshotMany(ctx, tagKeys)
	if err != nil {
		// cannot prove freshness; serve misses and leave entries in place
		p.hooks.TagSnapshotError(len(tagKeys), err)
		p.log.Warn("tag snapshot failed; serving misses", Fields{"tags": len(tagKeys), "err": err})
		return map[string]wire.Entry{}
	}

	for k, e := range entries {
		for _, t := range e.Tags {
			if current[p.tagKey(t.Name)] != t.Version {
				delete(entries, k)
				p.selfHeal(ctx, k, "tag_invalidated")
				break
			}
		}
	}
	return entries
}

// write stores an encoded payload under key, stamped with the current
// versions of tags.
func (p *Pool) write(ctx context.Context, key string, payload []byte, tags []string, ttl time.Duration) error {
	entry := wire.Entry{Payload: payload}
	if len(tags) > 0 {
		tagKeys := make([]string, len(tags))
		for i, t := range tags {
			tagKeys[i] = p.tagKey(t)
		}
		versions, err := p.tags.SnapshotMany(ctx, tagKeys)
		if err != nil {
			p.hooks.TagSnapshotError(len(tagKeys), err)
			p.log.Warn("tag snapshot failed; entry not saved", Fields{"key": key, "err": err})
			return fmt.Errorf("tagcache: snapshot tags for %q: %w", key, err)
		}
		entry.Tags = make([]wire.Tag, len(tags))
		for i, t := range tags {
			entry.Tags[i] = wire.Tag{Name: t, Version: versions[tagKeys[i]]}
		}
	}

	raw, err := wire.EncodeEntry(entry)
	if err != nil {
		return fmt.Errorf("tagcache: encode %q: %w", key, err)
	}

	sk := p.storageKey(key)
	ttl = coalesce[time.Duration](ttl, p.defaultTTL)
	ok, err := p.provider.Set(ctx, sk, raw, p.computeSetCost(sk, raw, len(tags)), ttl)
	if err != nil {
		p.hooks.ProviderError("set", err)
		p.log.Warn("provider set failed", Fields{"key": key, "err": err})
		return fmt.Errorf("tagcache: set %q: %w", key, err)
	}
	if !ok {
		p.hooks.ProviderSetRejected(sk)
		p.log.Debug("set rejected by provider (pressure)", Fields{"key": key})
	}
	return nil
}

func (p *Pool) selfHeal(ctx context.Context, key, reason string) {
	sk := p.storageKey(key)
	_ = p.provider.Del(ctx, sk)
	p.hooks.SelfHeal(sk, reason)
}

func (p *Pool) storageKey(key string) string {
	// isolate by namespace
	return util.StorageKey(p.ns + ":" + key)
}

func (p *Pool) tagKey(tag string) string {
	return "tag:" + p.ns + ":" + tag
}

// store is the typed view returned by NewStore.
type store[V any] struct {
	p     *Pool
	codec c.Codec[V]
}

func (s *store[V]) Enabled() bool { return s.p.enabled }

func (s *store[V]) GetItem(ctx context.Context, key string) (*Item[V], error) {
	items, err := s.GetItems(ctx, []string{key})
	if err != nil {
		return nil, err
	}
	return items[key], nil
}

func (s *store[V]) GetItems(ctx context.Context, keys []string) (map[string]*Item[V], error) {
	keys = uniqStrings(keys)
	out := make(map[string]*Item[V], len(keys))
	for _, k := range keys {
		out[k] = newItem[V](k)
	}
	if !s.p.enabled || len(keys) == 0 {
		return out, nil
	}

	entries := s.p.validEntries(ctx, s.p.fetch(ctx, keys))
	for k, e := range entries {
		v, err := s.codec.Decode(e.Payload)
		if err != nil {
			s.p.selfHeal(ctx, k, "value_decode")
			continue
		}
		it := out[k]
		it.value = v
		it.hit = true
		for _, t := range e.Tags {
			it.tags = append(it.tags, t.Name)
		}
	}
	return out, nil
}

func (s *store[V]) Save(ctx context.Context, item *Item[V]) error {
	if !s.p.enabled || item == nil {
		return nil
	}
	payload, err := s.codec.Encode(item.value)
	if err != nil {
		s.p.log.Error("encode value failed", Fields{"key": item.key, "err": err})
		return fmt.Errorf("tagcache: encode value for %q: %w", item.key, err)
	}
	return s.p.write(ctx, item.key, payload, item.tags, item.ttl)
}

func (s *store[V]) Delete(ctx context.Context, keys ...string) error {
	return s.p.Delete(ctx, keys...)
}

func (s *store[V]) InvalidateTags(ctx context.Context, tags ...string) error {
	return s.p.InvalidateTags(ctx, tags...)
}
