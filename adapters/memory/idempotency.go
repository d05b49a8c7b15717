package memory

import (
	"context"
	"sync"
	"time"

	"github.com/burrowkit/burrow/adapters"
)

var _ adapters.IdempotencyStore = (*IdempotencyStore)(nil)

// IdempotencyStore keeps processed-command records in process memory.
// With a cleanup interval set, a background goroutine prunes expired
// records until Close is called.
type IdempotencyStore struct {
	mu    sync.RWMutex
	byKey map[string]*adapters.IdempotencyRecord

	cleanupInterval time.Duration
	maxAge          time.Duration
	done            chan struct{}
	closeOnce       sync.Once
	pruning         chan struct{}
}

// IdempotencyStoreOption configures an IdempotencyStore.
type IdempotencyStoreOption func(*IdempotencyStore)

// WithCleanupInterval enables periodic pruning at the given interval.
// Zero leaves pruning to explicit Cleanup calls.
func WithCleanupInterval(interval time.Duration) IdempotencyStoreOption {
	return func(s *IdempotencyStore) { s.cleanupInterval = interval }
}

// WithMaxAge sets how old a record may get before periodic pruning
// removes it.
func WithMaxAge(maxAge time.Duration) IdempotencyStoreOption {
	return func(s *IdempotencyStore) { s.maxAge = maxAge }
}

// NewIdempotencyStore creates an empty in-memory idempotency store.
func NewIdempotencyStore(opts ...IdempotencyStoreOption) *IdempotencyStore {
	s := &IdempotencyStore{
		byKey:   make(map[string]*adapters.IdempotencyRecord),
		maxAge:  24 * time.Hour,
		done:    make(chan struct{}),
		pruning: make(chan struct{}),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.cleanupInterval > 0 {
		go s.prune()
		<-s.pruning
	} else {
		close(s.pruning)
	}

	return s
}

func (s *IdempotencyStore) prune() {
	tick := time.NewTicker(s.cleanupInterval)
	defer tick.Stop()

	close(s.pruning)

	for {
		select {
		case <-tick.C:
			_, _ = s.Cleanup(context.Background(), s.maxAge)
		case <-s.done:
			return
		}
	}
}

// Close stops the cleanup goroutine. Safe to call more than once.
func (s *IdempotencyStore) Close() error {
	s.closeOnce.Do(func() { close(s.done) })
	return nil
}

// live returns the record for key when present and not expired. Callers
// must hold at least the read lock.
func (s *IdempotencyStore) live(key string) *adapters.IdempotencyRecord {
	record, ok := s.byKey[key]
	if !ok || record.IsExpired() {
		return nil
	}
	return record
}

// Exists reports whether a non-expired record exists for the key.
func (s *IdempotencyStore) Exists(ctx context.Context, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.live(key) != nil, nil
}

// Store saves a copy of the record under its key.
func (s *IdempotencyStore) Store(ctx context.Context, record *adapters.IdempotencyRecord) error {
	s.mu.Lock()
	s.byKey[record.Key] = adapters.CopyIdempotencyRecord(record)
	s.mu.Unlock()
	return nil
}

// Get returns a copy of the record for the key, or nil, nil when the
// record is absent or expired.
func (s *IdempotencyStore) Get(ctx context.Context, key string) (*adapters.IdempotencyRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return adapters.CopyIdempotencyRecord(s.live(key)), nil
}

// Delete removes the record for the key.
func (s *IdempotencyStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	delete(s.byKey, key)
	s.mu.Unlock()
	return nil
}

// Cleanup removes records processed before olderThan ago, plus any that
// have expired, and reports how many were removed.
func (s *IdempotencyStore) Cleanup(ctx context.Context, olderThan time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	oldest := time.Now().Add(-olderThan)
	var removed int64
	for key, record := range s.byKey {
		if record.ProcessedAt.Before(oldest) || record.IsExpired() {
			delete(s.byKey, key)
			removed++
		}
	}
	return removed, nil
}

// Len returns the number of stored records, expired ones included.
func (s *IdempotencyStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byKey)
}

// Clear removes every record.
func (s *IdempotencyStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byKey = make(map[string]*adapters.IdempotencyRecord)
}
