// Package memory implements the event log adapter on plain maps and
// slices. It is the backend for tests, the demo commands, and any
// deployment that does not need durability.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/burrowkit/burrow/adapters"
	"github.com/google/uuid"
)

// Version sentinels, re-exported so callers of this package do not need
// a second import for them.
const (
	AnyVersion   = adapters.AnyVersion
	NoStream     = adapters.NoStream
	StreamExists = adapters.StreamExists
)

var (
	_ adapters.EventStoreAdapter = (*MemoryAdapter)(nil)
	_ adapters.HealthChecker     = (*MemoryAdapter)(nil)
)

// MemoryAdapter keeps the event log in process memory. All methods are
// safe for concurrent use. Append holds the write lock for the whole
// batch, so readers see a batch entirely or not at all.
type MemoryAdapter struct {
	mu       sync.RWMutex
	byStream map[string]*streamData
	log      []adapters.StoredEvent
	lastPos  uint64
	closed   bool
}

// streamData holds one stream's events plus its cached info. Event
// versions are contiguous from 1, so events[i] has version i+1.
type streamData struct {
	info   adapters.StreamInfo
	events []adapters.StoredEvent
}

func newStreamData(streamID string, now time.Time) *streamData {
	return &streamData{
		info: adapters.StreamInfo{
			StreamID: streamID, Category: adapters.ExtractCategory(streamID),
			CreatedAt: now, UpdatedAt: now,
		},
	}
}

// Option adjusts a MemoryAdapter at construction.
type Option func(*MemoryAdapter)

// NewAdapter creates an empty in-memory event log.
func NewAdapter(opts ...Option) *MemoryAdapter {
	a := &MemoryAdapter{byStream: make(map[string]*streamData)}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Initialize is a no-op; there is no schema to set up.
func (a *MemoryAdapter) Initialize(ctx context.Context) error { return nil }

// usable rejects a dead context or a closed adapter. It must be called
// with at least the read lock held.
func (a *MemoryAdapter) usable(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if a.closed {
		return adapters.ErrAdapterClosed
	}
	return nil
}

// Append stores a batch of events on a stream. The version check runs
// before anything is written, so a rejected batch leaves no trace.
func (a *MemoryAdapter) Append(ctx context.Context, streamID string, events []adapters.EventRecord, expectedVersion int64) ([]adapters.StoredEvent, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.usable(ctx); err != nil {
		return nil, err
	}
	switch {
	case streamID == "":
		return nil, adapters.ErrEmptyStreamID
	case len(events) == 0:
		return nil, adapters.ErrNoEvents
	}

	data, ok := a.byStream[streamID]
	var version int64
	if ok {
		version = data.info.Version
	}
	if err := adapters.CheckVersion(streamID, expectedVersion, version, ok); err != nil {
		return nil, err
	}

	now := time.Now()
	if !ok {
		data = newStreamData(streamID, now)
		a.byStream[streamID] = data
	}

	stored := make([]adapters.StoredEvent, len(events))
	for i, event := range events {
		a.lastPos++
		version++
		stored[i] = adapters.StoredEvent{
			ID:       uuid.New().String(),
			StreamID: streamID, Type: event.Type,
			Data: event.Data, Metadata: event.Metadata,
			Version: version, GlobalPosition: a.lastPos,
			Timestamp: now,
		}
	}

	data.events = append(data.events, stored...)
	a.log = append(a.log, stored...)
	data.info.Version = version
	data.info.EventCount = int64(len(data.events))
	data.info.UpdatedAt = now

	return stored, nil
}

// Load returns a stream's events with versions greater than
// fromVersion. A nonexistent stream yields an empty slice.
func (a *MemoryAdapter) Load(ctx context.Context, streamID string, fromVersion int64) ([]adapters.StoredEvent, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if err := a.usable(ctx); err != nil {
		return nil, err
	}
	if streamID == "" {
		return nil, adapters.ErrEmptyStreamID
	}

	data, ok := a.byStream[streamID]
	if !ok {
		return []adapters.StoredEvent{}, nil
	}

	skip := fromVersion
	if skip < 0 {
		skip = 0
	}
	if skip >= int64(len(data.events)) {
		return []adapters.StoredEvent{}, nil
	}
	return append([]adapters.StoredEvent(nil), data.events[skip:]...), nil
}

// GetStreamInfo returns a copy of a stream's metadata.
func (a *MemoryAdapter) GetStreamInfo(ctx context.Context, streamID string) (*adapters.StreamInfo, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if err := a.usable(ctx); err != nil {
		return nil, err
	}

	data, ok := a.byStream[streamID]
	if !ok {
		return nil, adapters.NewStreamNotFoundError(streamID)
	}

	info := data.info
	return &info, nil
}

// GetLastPosition returns the global position of the most recent event.
func (a *MemoryAdapter) GetLastPosition(ctx context.Context) (uint64, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if err := a.usable(ctx); err != nil {
		return 0, err
	}
	return a.lastPos, nil
}

// Close marks the adapter closed. Subsequent calls fail with
// ErrAdapterClosed.
func (a *MemoryAdapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.closed = true
	return nil
}

// Ping reports whether the adapter is usable.
func (a *MemoryAdapter) Ping(ctx context.Context) error {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return a.usable(ctx)
}

// Reset discards all streams and events without closing the adapter.
func (a *MemoryAdapter) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.byStream = make(map[string]*streamData)
	a.log = nil
	a.lastPos = 0
}

// EventCount returns the total number of stored events.
func (a *MemoryAdapter) EventCount() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.log)
}

// StreamCount returns the number of streams.
func (a *MemoryAdapter) StreamCount() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.byStream)
}
