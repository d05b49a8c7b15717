package burrow

import "sync"

// StreamLocker serializes writers per stream ID. Optimistic concurrency
// already guarantees log consistency; the locker exists to avoid needless
// conflict-and-retry churn when writers within one process target the same
// stream.
//
// Locks are created on first use and never removed. For workloads with an
// unbounded stream population, scope a locker per request batch instead of
// holding one for the process lifetime.
type StreamLocker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewStreamLocker creates an empty StreamLocker.
func NewStreamLocker() *StreamLocker {
	return &StreamLocker{
		locks: make(map[string]*sync.Mutex),
	}
}

// Lock acquires the mutex for the given stream ID, blocking until it is
// available. The returned function releases it.
func (l *StreamLocker) Lock(streamID string) (unlock func()) {
	l.mu.Lock()
	m, ok := l.locks[streamID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[streamID] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}

// Len returns the number of stream locks currently tracked.
func (l *StreamLocker) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
