package burrow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionConstants(t *testing.T) {
	// Real stream versions start at 1; the reserved values sit at or
	// below zero and must never collide.
	assert.Equal(t, int64(-1), AnyVersion)
	assert.Equal(t, int64(0), NoStream)
	assert.Equal(t, int64(-2), StreamExists)
}

func TestStreamID(t *testing.T) {
	t.Run("NewStreamID and String round-trip", func(t *testing.T) {
		sid := NewStreamID("Issue", "123")

		assert.Equal(t, "Issue", sid.Category)
		assert.Equal(t, "123", sid.ID)
		assert.Equal(t, "Issue-123", sid.String())
	})

	t.Run("ParseStreamID splits on the first hyphen", func(t *testing.T) {
		tests := []struct {
			input        string
			wantCategory string
			wantID       string
		}{
			{"Issue-123", "Issue", "123"},
			{"Issue-123-456-789", "Issue", "123-456-789"},
		}

		for _, tt := range tests {
			sid, err := ParseStreamID(tt.input)
			require.NoError(t, err, tt.input)
			assert.Equal(t, tt.wantCategory, sid.Category)
			assert.Equal(t, tt.wantID, sid.ID)
		}
	})

	t.Run("ParseStreamID rejects malformed input", func(t *testing.T) {
		for _, input := range []string{"", "Issue123", "-123", "Issue-"} {
			_, err := ParseStreamID(input)
			assert.Error(t, err, "input %q", input)
		}
	})

	t.Run("IsZero only for the fully empty value", func(t *testing.T) {
		assert.True(t, StreamID{}.IsZero())
		assert.False(t, StreamID{Category: "Issue"}.IsZero())
		assert.False(t, StreamID{ID: "123"}.IsZero())
		assert.False(t, NewStreamID("Issue", "123").IsZero())
	})

	t.Run("Validate requires both parts", func(t *testing.T) {
		assert.NoError(t, NewStreamID("Issue", "123").Validate())
		assert.Error(t, StreamID{ID: "123"}.Validate())
		assert.Error(t, StreamID{Category: "Issue"}.Validate())
		assert.Error(t, StreamID{}.Validate())
	})
}

func TestMetadata(t *testing.T) {
	t.Run("zero value is empty", func(t *testing.T) {
		assert.True(t, Metadata{}.IsEmpty())
	})

	t.Run("builders set their field and flip IsEmpty", func(t *testing.T) {
		assert.Equal(t, "corr-123", Metadata{}.WithCorrelationID("corr-123").CorrelationID)
		assert.Equal(t, "cause-456", Metadata{}.WithCausationID("cause-456").CausationID)
		assert.Equal(t, "user-789", Metadata{}.WithUserID("user-789").UserID)
		assert.False(t, Metadata{}.WithUserID("user-789").IsEmpty())
	})

	t.Run("WithCustom accumulates entries", func(t *testing.T) {
		m := Metadata{}.
			WithCustom("key1", "value1").
			WithCustom("key2", "value2")

		assert.Equal(t, "value1", m.Custom["key1"])
		assert.Equal(t, "value2", m.Custom["key2"])
		assert.False(t, m.IsEmpty())
	})

	t.Run("builders chain", func(t *testing.T) {
		m := Metadata{}.
			WithCorrelationID("corr-123").
			WithCausationID("cause-456").
			WithUserID("user-789").
			WithCustom("env", "production")

		assert.Equal(t, "corr-123", m.CorrelationID)
		assert.Equal(t, "cause-456", m.CausationID)
		assert.Equal(t, "user-789", m.UserID)
		assert.Equal(t, "production", m.Custom["env"])
	})

	t.Run("custom entries alone make metadata non-empty", func(t *testing.T) {
		m := Metadata{Custom: map[string]string{"key": "value"}}
		assert.False(t, m.IsEmpty())
	})
}

func TestEventData(t *testing.T) {
	t.Run("NewEventData sets type and payload", func(t *testing.T) {
		data := []byte(`{"issueId":"123"}`)
		e := NewEventData("IssueCreated", data)

		assert.Equal(t, "IssueCreated", e.Type)
		assert.Equal(t, data, e.Data)
		assert.True(t, e.Metadata.IsEmpty())
	})

	t.Run("WithMetadata attaches metadata", func(t *testing.T) {
		e := NewEventData("IssueCreated", []byte(`{}`)).
			WithMetadata(Metadata{}.WithUserID("user-123"))

		assert.Equal(t, "user-123", e.Metadata.UserID)
	})

	t.Run("Validate requires type and a non-empty payload", func(t *testing.T) {
		assert.NoError(t, NewEventData("IssueCreated", []byte(`{}`)).Validate())
		assert.Error(t, EventData{Data: []byte(`{}`)}.Validate())
		assert.Error(t, EventData{Type: "IssueCreated"}.Validate())
		assert.Error(t, EventData{Type: "IssueCreated", Data: []byte{}}.Validate())
	})
}

func TestEventFromStored(t *testing.T) {
	now := time.Now()
	stored := StoredEvent{
		ID:             "evt-123",
		StreamID:       "Issue-456",
		Type:           "IssueCreated",
		Data:           []byte(`{"issueId":"456"}`),
		Metadata:       Metadata{}.WithUserID("user-789"),
		Version:        1,
		GlobalPosition: 100,
		Timestamp:      now,
	}

	type IssueCreated struct {
		IssueID string `json:"issueId"`
	}
	payload := IssueCreated{IssueID: "456"}

	event := EventFromStored(stored, payload)

	assert.Equal(t, stored.ID, event.ID)
	assert.Equal(t, stored.StreamID, event.StreamID)
	assert.Equal(t, stored.Type, event.Type)
	assert.Equal(t, payload, event.Data)
	assert.Equal(t, "user-789", event.Metadata.UserID)
	assert.Equal(t, stored.Version, event.Version)
	assert.Equal(t, stored.GlobalPosition, event.GlobalPosition)
	assert.Equal(t, now, event.Timestamp)
}
