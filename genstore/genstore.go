// Package genstore holds tag versions: one monotonically increasing counter
// per tag key. A missing counter reads as version 0.
//
// A counter that is created, or re-created after it was pruned or expired,
// starts at the current Unix time in nanoseconds instead of 1. Counters only
// move forward by one per bump, far slower than the clock, so a re-created
// counter never repeats a version an older cache entry may still carry.
//
// LocalGenStore keeps versions in-process and is only correct for a single
// process. RedisGenStore shares versions across every process that talks to
// the same cache.
package genstore

import (
	"context"
	"time"
)

// GenStore abstracts where tag versions live.
type GenStore interface {
	// Snapshot returns the current version; missing => 0.
	Snapshot(ctx context.Context, tagKey string) (uint64, error)
	// SnapshotMany returns versions for many keys; missing => 0.
	SnapshotMany(ctx context.Context, tagKeys []string) (map[string]uint64, error)
	// Bump atomically increments and returns the new version. A missing
	// counter starts at initialVersion.
	Bump(ctx context.Context, tagKey string) (uint64, error)
	// Cleanup prunes versions untouched for longer than retention.
	Cleanup(retention time.Duration)
	Close(context.Context) error
}

// initialVersion is the first version of a new counter.
func initialVersion(now time.Time) uint64 {
	if n := now.UnixNano(); n > 0 {
		return uint64(n)
	}
	return 1
}
