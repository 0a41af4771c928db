package cache

import (
	"sync"

	"github.com/unkn0wn-root/tagcache"
)

const maxLoggedCalls = 100

// Call is one backend call seen by the cache layer.
type Call struct {
	Method string
	Args   tagcache.Fields
}

type Stats struct {
	Calls  int
	Hits   int
	Misses int
}

// PersistenceLogger records every call the cache layer forwards to the
// backend, plus hit and miss counts. It has no effect on behavior.
type PersistenceLogger struct {
	mu       sync.Mutex
	log      tagcache.Logger
	logCalls bool
	calls    []Call
	stats    Stats
}

// NewPersistenceLogger forwards records to log at debug level. With
// logCalls the last calls and their arguments are also kept for Calls.
func NewPersistenceLogger(log tagcache.Logger, logCalls bool) *PersistenceLogger {
	if log == nil {
		log = tagcache.NopLogger{}
	}
	return &PersistenceLogger{log: log, logCalls: logCalls}
}

func (l *PersistenceLogger) LogCall(method string, args tagcache.Fields) {
	l.mu.Lock()
	l.stats.Calls++
	if l.logCalls {
		if len(l.calls) == maxLoggedCalls {
			copy(l.calls, l.calls[1:])
			l.calls = l.calls[:maxLoggedCalls-1]
		}
		l.calls = append(l.calls, Call{Method: method, Args: args})
	}
	l.mu.Unlock()
	l.log.Debug("persistence call", tagcache.Fields{"method": method, "args": args})
}

func (l *PersistenceLogger) LogCacheHit(method string, n int) {
	if n <= 0 {
		return
	}
	l.mu.Lock()
	l.stats.Hits += n
	l.mu.Unlock()
	l.log.Debug("cache hit", tagcache.Fields{"method": method, "count": n})
}

func (l *PersistenceLogger) LogCacheMiss(method string, n int) {
	if n <= 0 {
		return
	}
	l.mu.Lock()
	l.stats.Misses += n
	l.mu.Unlock()
	l.log.Debug("cache miss", tagcache.Fields{"method": method, "count": n})
}

// Count returns the number of backend calls.
func (l *PersistenceLogger) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stats.Calls
}

// Calls returns the most recent calls, oldest first. Empty unless call
// logging is enabled.
func (l *PersistenceLogger) Calls() []Call {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Call(nil), l.calls...)
}

func (l *PersistenceLogger) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stats
}
