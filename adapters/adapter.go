// Package adapters defines the storage contract for event log backends.
package adapters

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors adapters return (or wrap so errors.Is matches) to
// keep error handling uniform across backends.
var (
	// ErrConflict reports a failed optimistic concurrency check.
	ErrConflict = errors.New("burrow: version conflict")

	// ErrStreamNotFound reports a missing stream.
	ErrStreamNotFound = errors.New("burrow: stream not found")

	// ErrEmptyStreamID reports an empty stream ID argument.
	ErrEmptyStreamID = errors.New("burrow: stream ID is required")

	// ErrNoEvents reports an append of zero events.
	ErrNoEvents = errors.New("burrow: no events to append")

	// ErrInvalidVersion reports an unusable expected version.
	ErrInvalidVersion = errors.New("burrow: invalid version")

	// ErrAdapterClosed reports use of a closed adapter.
	ErrAdapterClosed = errors.New("burrow: adapter is closed")
)

// Metadata carries event context for tracing and auditing. It survives
// serialization alongside the payload.
type Metadata struct {
	CorrelationID string            `json:"correlationId,omitempty"`
	CausationID   string            `json:"causationId,omitempty"`
	UserID        string            `json:"userId,omitempty"`
	Custom        map[string]string `json:"custom,omitempty"`
}

// EventRecord is an event as handed to Append: type, serialized
// payload, and metadata, before the log assigns positions.
type EventRecord struct {
	Type     string
	Data     []byte
	Metadata Metadata
}

// StoredEvent is an event as returned from the log. Version is 1-based
// within the stream; GlobalPosition orders events across streams.
type StoredEvent struct {
	ID             string
	StreamID       string
	Type           string
	Data           []byte
	Metadata       Metadata
	Version        int64
	GlobalPosition uint64
	Timestamp      time.Time
}

// StreamInfo describes a stream without loading its events.
type StreamInfo struct {
	StreamID   string
	Category   string
	Version    int64
	EventCount int64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// EventStoreAdapter is the interface event log backends implement.
//
// Append is the commit boundary of the whole engine: a batch either
// becomes part of the log in its entirety and in order, or not at all.
// Readers must never observe a prefix of a batch.
type EventStoreAdapter interface {
	// Append atomically stores a batch of events with optimistic
	// concurrency control. expectedVersion is one of:
	//   - AnyVersion (-1): skip the version check
	//   - NoStream (0): stream must not exist
	//   - StreamExists (-2): stream must exist
	//   - a positive number: stream must be at exactly this version
	// Returns the stored events with their assigned positions. A failed
	// version check returns an error matching ErrConflict and leaves
	// the log untouched.
	Append(ctx context.Context, streamID string, events []EventRecord, expectedVersion int64) ([]StoredEvent, error)

	// Load retrieves all events of a stream after fromVersion, in
	// order. fromVersion=0 loads everything. A nonexistent stream
	// yields an empty slice, not an error.
	Load(ctx context.Context, streamID string, fromVersion int64) ([]StoredEvent, error)

	// GetStreamInfo returns metadata about a stream, or an error
	// matching ErrStreamNotFound.
	GetStreamInfo(ctx context.Context, streamID string) (*StreamInfo, error)

	// GetLastPosition returns the global position of the last stored
	// event, or 0 when the log is empty.
	GetLastPosition(ctx context.Context) (uint64, error)

	// Initialize sets up the storage schema. Called once at startup.
	Initialize(ctx context.Context) error

	// Close releases any resources held by the adapter.
	Close() error
}

// HealthChecker is optionally implemented by adapters with a backend
// worth pinging.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// IdempotencyStore tracks processed commands so duplicates replay their
// recorded outcome instead of re-executing.
type IdempotencyStore interface {
	// Exists checks whether a command with the given key was processed.
	Exists(ctx context.Context, key string) (bool, error)

	// Store records a processed command.
	Store(ctx context.Context, record *IdempotencyRecord) error

	// Get retrieves the record for a key, or nil, nil when absent.
	Get(ctx context.Context, key string) (*IdempotencyRecord, error)

	// Delete removes a record.
	Delete(ctx context.Context, key string) error

	// Cleanup removes expired records and reports how many.
	Cleanup(ctx context.Context, olderThan time.Duration) (int64, error)
}

// IdempotencyRecord is the stored outcome of a processed command.
type IdempotencyRecord struct {
	Key         string    `json:"key"`
	CommandType string    `json:"commandType"`
	AggregateID string    `json:"aggregateId,omitempty"`
	Version     int64     `json:"version,omitempty"`
	Error       string    `json:"error,omitempty"`
	Success     bool      `json:"success"`
	ProcessedAt time.Time `json:"processedAt"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// IsExpired reports whether the record has passed its expiry.
func (r *IdempotencyRecord) IsExpired() bool {
	return time.Now().After(r.ExpiresAt)
}
