package burrow

import (
	"fmt"
	"strings"
	"time"
)

// Expected-version sentinels for optimistic concurrency on Append.
const (
	AnyVersion   int64 = -1 // skip the version check entirely
	NoStream     int64 = 0  // the stream must not exist yet
	StreamExists int64 = -2 // the stream must already exist
)

// StreamID identifies an event stream as a category (aggregate type)
// plus an instance ID. Its string form is "Category-ID".
type StreamID struct {
	Category string
	ID       string
}

// NewStreamID creates a StreamID from category and ID.
func NewStreamID(category, id string) StreamID {
	return StreamID{Category: category, ID: id}
}

// ParseStreamID splits "Category-ID" at the first hyphen. The ID part
// may itself contain hyphens.
func ParseStreamID(s string) (StreamID, error) {
	category, id, ok := strings.Cut(s, "-")
	if !ok || category == "" || id == "" {
		return StreamID{}, fmt.Errorf("burrow: invalid stream ID format %q, expected 'Category-ID'", s)
	}
	return StreamID{Category: category, ID: id}, nil
}

// String returns the stream ID as "Category-ID".
func (s StreamID) String() string { return s.Category + "-" + s.ID }

// IsZero reports whether the StreamID is empty.
func (s StreamID) IsZero() bool { return s.Category == "" && s.ID == "" }

// Validate checks that both parts are present.
func (s StreamID) Validate() error {
	switch {
	case s.Category == "":
		return fmt.Errorf("burrow: stream category is required")
	case s.ID == "":
		return fmt.Errorf("burrow: stream ID is required")
	}
	return nil
}

// Metadata rides along with every event. CorrelationID links related
// events across services, CausationID names the event or command that
// caused this one, UserID identifies who triggered it, and Custom holds
// application-specific key-value pairs. Builders return copies so a
// Metadata value can be shared safely.
type Metadata struct {
	CorrelationID string            `json:"correlationId,omitempty"`
	CausationID   string            `json:"causationId,omitempty"`
	UserID        string            `json:"userId,omitempty"`
	Custom        map[string]string `json:"custom,omitempty"`
}

// WithCorrelationID returns a copy with the correlation ID set.
func (m Metadata) WithCorrelationID(id string) Metadata {
	m.CorrelationID = id
	return m
}

// WithCausationID returns a copy with the causation ID set.
func (m Metadata) WithCausationID(id string) Metadata {
	m.CausationID = id
	return m
}

// WithUserID returns a copy with the user ID set.
func (m Metadata) WithUserID(id string) Metadata {
	m.UserID = id
	return m
}

// WithCustom returns a copy with one custom pair added. The Custom map
// is cloned so the original is untouched.
func (m Metadata) WithCustom(key, value string) Metadata {
	custom := make(map[string]string, len(m.Custom)+1)
	for k, v := range m.Custom {
		custom[k] = v
	}
	custom[key] = value
	m.Custom = custom
	return m
}

// IsEmpty reports whether the Metadata has no values set.
func (m Metadata) IsEmpty() bool {
	return m.CorrelationID == "" && m.CausationID == "" && m.UserID == "" && len(m.Custom) == 0
}

// EventData is an event ready to append: type name, serialized payload,
// and optional metadata.
type EventData struct {
	Type     string
	Data     []byte
	Metadata Metadata
}

// NewEventData creates an EventData with the given type and payload.
func NewEventData(eventType string, data []byte) EventData {
	return EventData{Type: eventType, Data: data}
}

// WithMetadata returns a copy with the metadata set.
func (e EventData) WithMetadata(m Metadata) EventData {
	e.Metadata = m
	return e
}

// Validate checks that type and payload are present.
func (e EventData) Validate() error {
	switch {
	case e.Type == "":
		return fmt.Errorf("burrow: event type is required")
	case len(e.Data) == 0:
		return fmt.Errorf("burrow: event data is required")
	}
	return nil
}

// StoredEvent is an event as persisted, payload still serialized.
// Version is 1-based within the stream; GlobalPosition orders events
// across all streams.
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

// StreamInfo describes a stream without its events.
type StreamInfo struct {
	StreamID   string
	Category   string
	Version    int64
	EventCount int64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Event is the deserialized form handed to applications: Data holds the
// concrete event value rather than bytes.
type Event struct {
	ID             string
	StreamID       string
	Type           string
	Data           interface{}
	Metadata       Metadata
	Version        int64
	GlobalPosition uint64
	Timestamp      time.Time
}

// EventFromStored pairs a StoredEvent with its deserialized payload.
func EventFromStored(stored StoredEvent, data interface{}) Event {
	return Event{
		ID: stored.ID, StreamID: stored.StreamID, Type: stored.Type,
		Data:    data,
		Version: stored.Version, GlobalPosition: stored.GlobalPosition,
		Metadata: stored.Metadata, Timestamp: stored.Timestamp,
	}
}
