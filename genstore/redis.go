package genstore

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultRedisPrefix = "tagv:"

// RedisGenStore shares tag versions across processes and survives restarts.
// With a TTL every bump refreshes the counter's expiry. An expired counter is
// re-seeded from the clock on its next bump, so it never repeats a version.
type RedisGenStore struct {
	rdb    redis.UniversalClient
	prefix string
	ttl    time.Duration
}

var _ GenStore = (*RedisGenStore)(nil)

type RedisOptions struct {
	Prefix string        // prepended to every tag key; "" => "tagv:"
	TTL    time.Duration // 0 disables expiry
}

func NewRedisGenStore(client redis.UniversalClient, opts RedisOptions) *RedisGenStore {
	if opts.Prefix == "" {
		opts.Prefix = defaultRedisPrefix
	}
	return &RedisGenStore{rdb: client, prefix: opts.Prefix, ttl: opts.TTL}
}

func (s *RedisGenStore) key(k string) string { return s.prefix + k }

func (s *RedisGenStore) Snapshot(ctx context.Context, tagKey string) (uint64, error) {
	res, err := s.rdb.Get(ctx, s.key(tagKey)).Result()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return parseVersion(tagKey, res)
}

// SnapshotMany reads every key with one MGET.
func (s *RedisGenStore) SnapshotMany(ctx context.Context, tagKeys []string) (map[string]uint64, error) {
	out := make(map[string]uint64, len(tagKeys))
	if len(tagKeys) == 0 {
		return out, nil
	}
	keys := make([]string, len(tagKeys))
	for i, k := range tagKeys {
		keys[i] = s.key(k)
	}
	vals, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	for i, v := range vals {
		var raw string
		switch vv := v.(type) {
		case nil:
			out[tagKeys[i]] = 0
			continue
		case string:
			raw = vv
		case []byte:
			raw = string(vv)
		default:
			raw = fmt.Sprint(vv)
		}
		u, err := parseVersion(tagKeys[i], raw)
		if err != nil {
			return nil, err
		}
		out[tagKeys[i]] = u
	}
	return out, nil
}

// Bump seeds a missing counter with initialVersion and increments it in one
// MULTI/EXEC, refreshing the expiry when a TTL is configured.
func (s *RedisGenStore) Bump(ctx context.Context, tagKey string) (uint64, error) {
	k := s.key(tagKey)
	seed := initialVersion(time.Now()) - 1

	var incr *redis.IntCmd
	_, err := s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.SetNX(ctx, k, seed, 0)
		incr = p.Incr(ctx, k)
		if s.ttl > 0 {
			p.Expire(ctx, k, s.ttl)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return uint64(incr.Val()), nil
}

// Cleanup is a no-op; Redis expires counters itself when a TTL is set.
func (s *RedisGenStore) Cleanup(time.Duration) {}

func (s *RedisGenStore) Close(context.Context) error { return s.rdb.Close() }

func parseVersion(tagKey, raw string) (uint64, error) {
	u, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("genstore: parse version of %s: %w", tagKey, err)
	}
	return u, nil
}
