package genstore

import (
	"context"
	"sync"
	"time"
)

type localVersion struct {
	Version   uint64
	UpdatedAt time.Time
}

// LocalGenStore keeps tag versions in-process. With a positive cleanup
// interval and retention a background loop prunes versions that were not
// bumped within retention. A pruned tag reads as 0; its next bump starts
// from a fresh clock base (see initialVersion), so no earlier version is
// ever handed out again.
type LocalGenStore struct {
	mu       sync.RWMutex
	versions map[string]localVersion
	ticker   *time.Ticker
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	retention time.Duration
}

var _ GenStore = (*LocalGenStore)(nil)

func NewLocalGenStore(cleanupInterval, retention time.Duration) *LocalGenStore {
	s := &LocalGenStore{
		versions:  make(map[string]localVersion),
		retention: retention,
	}
	if cleanupInterval > 0 && retention > 0 {
		s.ticker = time.NewTicker(cleanupInterval)
		s.stopCh = make(chan struct{})
		s.wg.Add(1)
		go s.sweep()
	}
	return s
}

func (s *LocalGenStore) sweep() {
	defer s.wg.Done()
	for {
		select {
		case <-s.ticker.C:
			s.Cleanup(s.retention)
		case <-s.stopCh:
			return
		}
	}
}

func (s *LocalGenStore) Snapshot(_ context.Context, k string) (uint64, error) {
	s.mu.RLock()
	v := s.versions[k].Version
	s.mu.RUnlock()
	return v, nil
}

// SnapshotMany reads all keys under a single read lock.
func (s *LocalGenStore) SnapshotMany(_ context.Context, ks []string) (map[string]uint64, error) {
	out := make(map[string]uint64, len(ks))
	s.mu.RLock()
	for _, k := range ks {
		out[k] = s.versions[k].Version
	}
	s.mu.RUnlock()
	return out, nil
}

func (s *LocalGenStore) Bump(_ context.Context, k string) (uint64, error) {
	now := time.Now()
	s.mu.Lock()
	v := s.versions[k]
	if v.Version == 0 {
		v.Version = initialVersion(now)
	} else {
		v.Version++
	}
	v.UpdatedAt = now
	s.versions[k] = v
	s.mu.Unlock()
	return v.Version, nil
}

// Len reports how many tag versions are tracked.
func (s *LocalGenStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.versions)
}

func (s *LocalGenStore) Cleanup(retention time.Duration) {
	if retention <= 0 {
		return
	}
	cutoff := time.Now().Add(-retention)

	s.mu.Lock()
	for k, v := range s.versions {
		if v.UpdatedAt.Before(cutoff) {
			delete(s.versions, k)
		}
	}
	s.mu.Unlock()
}

// Close stops the sweep loop. Safe to call more than once.
func (s *LocalGenStore) Close(_ context.Context) error {
	if s.stopCh == nil {
		return nil
	}
	s.stopOnce.Do(func() {
		s.ticker.Stop()
		close(s.stopCh)
		s.wg.Wait()
	})
	return nil
}
