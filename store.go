package burrow

import (
	"context"
	"fmt"

	"github.com/burrowkit/burrow/adapters"
)

// EventStore appends event batches to streams and loads them back,
// translating between domain values and the adapter's stored form.
// Serialization and logging are pluggable.
type EventStore struct {
	backend    adapters.EventStoreAdapter
	serializer Serializer
	logger     Logger
}

// Logger is the logging interface the engine writes to.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
}

// noopLogger discards everything. It is the default until WithLogger
// replaces it.
type noopLogger struct{}

func (*noopLogger) Debug(string, ...interface{}) {}
func (*noopLogger) Info(string, ...interface{})  {}
func (*noopLogger) Warn(string, ...interface{})  {}
func (*noopLogger) Error(string, ...interface{}) {}

// Option adjusts an EventStore at construction.
type Option func(*EventStore)

// WithSerializer swaps the payload serializer.
func WithSerializer(ser Serializer) Option {
	return func(store *EventStore) { store.serializer = ser }
}

// WithLogger routes store logging to logger.
func WithLogger(log Logger) Option {
	return func(store *EventStore) { store.logger = log }
}

// New creates an EventStore on the given adapter. Events serialize as
// JSON unless WithSerializer overrides it.
func New(adapter adapters.EventStoreAdapter, opts ...Option) *EventStore {
	store := &EventStore{backend: adapter, serializer: NewJSONSerializer(), logger: &noopLogger{}}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

// Serializer returns the configured serializer.
func (s *EventStore) Serializer() Serializer { return s.serializer }

// Adapter exposes the wrapped storage adapter.
func (s *EventStore) Adapter() adapters.EventStoreAdapter { return s.backend }

// Logger returns the configured logger.
func (s *EventStore) Logger() Logger { return s.logger }

// eventRegistrar is satisfied by serializers that keep a type registry.
type eventRegistrar interface {
	RegisterAll(examples ...interface{})
}

// RegisterEvents registers event types with the serializer, so loaded
// events deserialize back to their Go types instead of raw maps.
func (s *EventStore) RegisterEvents(events ...interface{}) {
	if r, ok := s.serializer.(eventRegistrar); ok {
		r.RegisterAll(events...)
	}
}

// AppendOption adjusts a single append.
type AppendOption func(*appendConfig)

type appendConfig struct {
	metadata        Metadata
	expectedVersion int64
}

// ExpectVersion sets the expected stream version for optimistic
// concurrency. Defaults to AnyVersion.
func ExpectVersion(v int64) AppendOption {
	return func(cfg *appendConfig) { cfg.expectedVersion = v }
}

// WithAppendMetadata attaches metadata to every event in the batch.
func WithAppendMetadata(m Metadata) AppendOption {
	return func(cfg *appendConfig) { cfg.metadata = m }
}

// Append serializes a batch of domain events and stores it on the
// stream. The batch lands atomically: every event in order, or none.
func (s *EventStore) Append(ctx context.Context, streamID string, events []interface{}, opts ...AppendOption) error {
	switch {
	case streamID == "":
		return ErrEmptyStreamID
	case len(events) == 0:
		return ErrNoEvents
	}

	cfg := appendConfig{expectedVersion: AnyVersion}
	for _, opt := range opts {
		opt(&cfg)
	}

	recs, err := s.serializeBatch(events, cfg.metadata)
	if err != nil {
		return err
	}

	stored, err := s.backend.Append(ctx, streamID, recs, cfg.expectedVersion)
	if err != nil {
		s.logger.Debug("append failed", "stream", streamID, "error", err)
		return err
	}

	s.logger.Debug("appended events", "stream", streamID, "count", len(stored))
	return nil
}

func (s *EventStore) serializeBatch(events []interface{}, metadata Metadata) ([]adapters.EventRecord, error) {
	recs := make([]adapters.EventRecord, len(events))
	for i, event := range events {
		eventData, err := SerializeEvent(s.serializer, event, metadata)
		if err != nil {
			return nil, fmt.Errorf("burrow: failed to serialize event %d: %w", i, err)
		}
		recs[i].Type = eventData.Type
		recs[i].Data = eventData.Data
		recs[i].Metadata = toAdapterMetadata(eventData.Metadata)
	}
	return recs, nil
}

// Load retrieves all events of a stream, deserialized in log order.
func (s *EventStore) Load(ctx context.Context, streamID string) ([]Event, error) {
	return s.LoadFrom(ctx, streamID, 0)
}

// LoadFrom retrieves a stream's events with versions greater than
// fromVersion. A nonexistent stream yields an empty slice, not an
// error.
func (s *EventStore) LoadFrom(ctx context.Context, streamID string, fromVersion int64) ([]Event, error) {
	stored, err := s.loadStored(ctx, streamID, fromVersion)
	if err != nil {
		return nil, err
	}

	events := make([]Event, len(stored))
	for i, se := range stored {
		event, err := DeserializeEvent(s.serializer, se)
		if err != nil {
			return nil, fmt.Errorf("burrow: failed to deserialize event %d: %w", i, err)
		}
		events[i] = event
	}
	return events, nil
}

// LoadRaw retrieves a stream's events without deserializing payloads.
func (s *EventStore) LoadRaw(ctx context.Context, streamID string, fromVersion int64) ([]StoredEvent, error) {
	return s.loadStored(ctx, streamID, fromVersion)
}

func (s *EventStore) loadStored(ctx context.Context, streamID string, fromVersion int64) ([]StoredEvent, error) {
	if streamID == "" {
		return nil, ErrEmptyStreamID
	}

	raw, err := s.backend.Load(ctx, streamID, fromVersion)
	if err != nil {
		return nil, err
	}

	stored := make([]StoredEvent, len(raw))
	for i, se := range raw {
		stored[i] = fromAdapterEvent(se)
	}
	return stored, nil
}

// GetStreamInfo reports a stream's category, version, and timestamps.
func (s *EventStore) GetStreamInfo(ctx context.Context, streamID string) (*StreamInfo, error) {
	if streamID == "" {
		return nil, ErrEmptyStreamID
	}

	info, err := s.backend.GetStreamInfo(ctx, streamID)
	if err != nil {
		return nil, err
	}

	return &StreamInfo{
		StreamID: info.StreamID, Category: info.Category,
		Version: info.Version, EventCount: info.EventCount,
		CreatedAt: info.CreatedAt, UpdatedAt: info.UpdatedAt,
	}, nil
}

// StreamVersion returns a stream's current version, or 0 for a stream
// that does not exist.
func (s *EventStore) StreamVersion(ctx context.Context, streamID string) (int64, error) {
	info, err := s.GetStreamInfo(ctx, streamID)
	if err != nil {
		if IsNotFound(err) {
			return 0, nil
		}
		return 0, err
	}
	return info.Version, nil
}

// GetLastPosition returns the global position of the most recent event.
func (s *EventStore) GetLastPosition(ctx context.Context) (uint64, error) {
	return s.backend.GetLastPosition(ctx)
}

// Initialize sets up the adapter's storage schema.
func (s *EventStore) Initialize(ctx context.Context) error { return s.backend.Initialize(ctx) }

// Close releases resources held by the adapter.
func (s *EventStore) Close() error { return s.backend.Close() }

func toAdapterMetadata(m Metadata) adapters.Metadata {
	var out adapters.Metadata
	out.CorrelationID, out.CausationID = m.CorrelationID, m.CausationID
	out.UserID, out.Custom = m.UserID, m.Custom
	return out
}

func fromAdapterMetadata(m adapters.Metadata) Metadata {
	var out Metadata
	out.CorrelationID, out.CausationID = m.CorrelationID, m.CausationID
	out.UserID, out.Custom = m.UserID, m.Custom
	return out
}

func fromAdapterEvent(rec adapters.StoredEvent) StoredEvent {
	var out StoredEvent
	out.ID, out.StreamID, out.Type = rec.ID, rec.StreamID, rec.Type
	out.Data = rec.Data
	out.Metadata = fromAdapterMetadata(rec.Metadata)
	out.Version, out.GlobalPosition, out.Timestamp = rec.Version, rec.GlobalPosition, rec.Timestamp
	return out
}
