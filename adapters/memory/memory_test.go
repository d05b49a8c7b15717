package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/burrowkit/burrow/adapters"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func evt(eventType string) adapters.EventRecord {
	return adapters.EventRecord{Type: eventType, Data: []byte(`{}`)}
}

// seeded returns an adapter holding the given event types on streamID,
// appended as a single batch.
func seeded(t *testing.T, streamID string, eventTypes ...string) *MemoryAdapter {
	t.Helper()
	adapter := NewAdapter()
	records := make([]adapters.EventRecord, len(eventTypes))
	for i, et := range eventTypes {
		records[i] = evt(et)
	}
	_, err := adapter.Append(context.Background(), streamID, records, NoStream)
	require.NoError(t, err)
	return adapter
}

func cancelledCtx() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	return ctx
}

func TestNewAdapter(t *testing.T) {
	adapter := NewAdapter()

	assert.NotNil(t, adapter)
	assert.Equal(t, 0, adapter.EventCount())
	assert.Equal(t, 0, adapter.StreamCount())
	assert.NoError(t, adapter.Initialize(context.Background()))
}

func TestMemoryAdapter_Append(t *testing.T) {
	ctx := context.Background()

	t.Run("new stream starts at version 1", func(t *testing.T) {
		adapter := NewAdapter()

		stored, err := adapter.Append(ctx, "Issue-123", []adapters.EventRecord{
			{Type: "IssueCreated", Data: []byte(`{"issueId":"123"}`)},
		}, NoStream)

		require.NoError(t, err)
		require.Len(t, stored, 1)
		assert.Equal(t, "Issue-123", stored[0].StreamID)
		assert.Equal(t, "IssueCreated", stored[0].Type)
		assert.Equal(t, int64(1), stored[0].Version)
		assert.Equal(t, uint64(1), stored[0].GlobalPosition)
		assert.NotEmpty(t, stored[0].ID)
	})

	t.Run("batch versions are contiguous", func(t *testing.T) {
		adapter := NewAdapter()

		stored, err := adapter.Append(ctx, "Issue-123", []adapters.EventRecord{
			evt("IssueCreated"), evt("AssigneeChanged"), evt("StatusChanged"),
		}, NoStream)

		require.NoError(t, err)
		require.Len(t, stored, 3)
		for i, e := range stored {
			assert.Equal(t, int64(i+1), e.Version)
		}
	})

	t.Run("append continues an existing stream", func(t *testing.T) {
		adapter := seeded(t, "Issue-123", "IssueCreated")

		stored, err := adapter.Append(ctx, "Issue-123", []adapters.EventRecord{evt("AssigneeChanged")}, 1)

		require.NoError(t, err)
		assert.Equal(t, int64(2), stored[0].Version)
	})

	t.Run("stale expected version reports both sides", func(t *testing.T) {
		adapter := seeded(t, "Issue-123", "IssueCreated")

		_, err := adapter.Append(ctx, "Issue-123", []adapters.EventRecord{evt("AssigneeChanged")}, 0)

		require.ErrorIs(t, err, adapters.ErrConflict)
		var confErr *adapters.ConflictError
		require.ErrorAs(t, err, &confErr)
		assert.Equal(t, "Issue-123", confErr.StreamID)
		assert.Equal(t, int64(0), confErr.ExpectedVersion)
		assert.Equal(t, int64(1), confErr.ActualVersion)
	})

	t.Run("AnyVersion skips the check", func(t *testing.T) {
		adapter := NewAdapter()

		_, err := adapter.Append(ctx, "Issue-123", []adapters.EventRecord{evt("IssueCreated")}, AnyVersion)
		require.NoError(t, err)
		_, err = adapter.Append(ctx, "Issue-123", []adapters.EventRecord{evt("IssueCreated")}, AnyVersion)
		require.NoError(t, err)

		assert.Equal(t, 2, adapter.EventCount())
	})

	t.Run("argument and sentinel errors", func(t *testing.T) {
		existing := seeded(t, "Issue-123", "IssueCreated")
		closed := NewAdapter()
		closed.Close()

		one := []adapters.EventRecord{evt("IssueCreated")}
		for _, tc := range []struct {
			name     string
			adapter  *MemoryAdapter
			streamID string
			events   []adapters.EventRecord
			expected int64
			wantIs   error
		}{
			{"NoStream against an existing stream", existing, "Issue-123", one, NoStream, adapters.ErrConflict},
			{"StreamExists against an absent stream", NewAdapter(), "Issue-123", one, StreamExists, adapters.ErrStreamNotFound},
			{"empty stream ID", NewAdapter(), "", one, NoStream, adapters.ErrEmptyStreamID},
			{"empty batch", NewAdapter(), "Issue-123", []adapters.EventRecord{}, NoStream, adapters.ErrNoEvents},
			{"unknown negative version", NewAdapter(), "Issue-123", one, -5, adapters.ErrInvalidVersion},
			{"closed adapter", closed, "Issue-123", one, NoStream, adapters.ErrAdapterClosed},
		} {
			t.Run(tc.name, func(t *testing.T) {
				_, err := tc.adapter.Append(ctx, tc.streamID, tc.events, tc.expected)
				assert.ErrorIs(t, err, tc.wantIs)
			})
		}
	})

	t.Run("metadata survives the round trip", func(t *testing.T) {
		adapter := NewAdapter()
		metadata := adapters.Metadata{
			CorrelationID: "corr-123",
			CausationID:   "cause-456",
			UserID:        "user-789",
			Custom:        map[string]string{"key": "value"},
		}

		stored, err := adapter.Append(ctx, "Issue-123", []adapters.EventRecord{
			{Type: "IssueCreated", Data: []byte(`{}`), Metadata: metadata},
		}, NoStream)

		require.NoError(t, err)
		assert.Equal(t, metadata, stored[0].Metadata)
	})

	t.Run("cancelled context", func(t *testing.T) {
		adapter := NewAdapter()

		_, err := adapter.Append(cancelledCtx(), "Issue-123", []adapters.EventRecord{evt("IssueCreated")}, NoStream)

		assert.Error(t, err)
	})
}

func TestMemoryAdapter_Load(t *testing.T) {
	ctx := context.Background()

	t.Run("absent stream yields an empty slice", func(t *testing.T) {
		events, err := NewAdapter().Load(ctx, "Issue-123", 0)

		require.NoError(t, err)
		assert.Empty(t, events)
	})

	t.Run("fromVersion 0 returns everything in order", func(t *testing.T) {
		adapter := seeded(t, "Issue-123", "IssueCreated", "AssigneeChanged")

		events, err := adapter.Load(ctx, "Issue-123", 0)

		require.NoError(t, err)
		require.Len(t, events, 2)
		assert.Equal(t, "IssueCreated", events[0].Type)
		assert.Equal(t, "AssigneeChanged", events[1].Type)
	})

	t.Run("fromVersion skips already-seen events", func(t *testing.T) {
		adapter := seeded(t, "Issue-123", "IssueCreated", "AssigneeChanged", "StatusChanged")

		events, err := adapter.Load(ctx, "Issue-123", 1)

		require.NoError(t, err)
		require.Len(t, events, 2)
		assert.Equal(t, int64(2), events[0].Version)
		assert.Equal(t, int64(3), events[1].Version)
	})

	t.Run("empty stream ID", func(t *testing.T) {
		_, err := NewAdapter().Load(ctx, "", 0)
		assert.ErrorIs(t, err, adapters.ErrEmptyStreamID)
	})

	t.Run("cancelled context", func(t *testing.T) {
		_, err := NewAdapter().Load(cancelledCtx(), "Issue-123", 0)
		assert.Error(t, err)
	})

	t.Run("closed adapter", func(t *testing.T) {
		adapter := seeded(t, "Issue-123", "IssueCreated")
		adapter.Close()

		_, err := adapter.Load(ctx, "Issue-123", 0)
		assert.ErrorIs(t, err, adapters.ErrAdapterClosed)
	})
}

func TestMemoryAdapter_GetStreamInfo(t *testing.T) {
	ctx := context.Background()

	t.Run("absent stream", func(t *testing.T) {
		_, err := NewAdapter().GetStreamInfo(ctx, "Issue-123")
		assert.ErrorIs(t, err, adapters.ErrStreamNotFound)
	})

	t.Run("reports category, version and timestamps", func(t *testing.T) {
		adapter := seeded(t, "Issue-123", "IssueCreated", "AssigneeChanged")

		info, err := adapter.GetStreamInfo(ctx, "Issue-123")

		require.NoError(t, err)
		assert.Equal(t, "Issue-123", info.StreamID)
		assert.Equal(t, "Issue", info.Category)
		assert.Equal(t, int64(2), info.Version)
		assert.False(t, info.CreatedAt.IsZero())
		assert.False(t, info.UpdatedAt.IsZero())
	})

	t.Run("closed adapter", func(t *testing.T) {
		adapter := NewAdapter()
		adapter.Close()

		_, err := adapter.GetStreamInfo(ctx, "Issue-123")
		assert.ErrorIs(t, err, adapters.ErrAdapterClosed)
	})

	t.Run("cancelled context", func(t *testing.T) {
		_, err := NewAdapter().GetStreamInfo(cancelledCtx(), "Issue-123")
		assert.Error(t, err)
	})
}

func TestMemoryAdapter_GetLastPosition(t *testing.T) {
	ctx := context.Background()

	t.Run("empty store sits at 0", func(t *testing.T) {
		pos, err := NewAdapter().GetLastPosition(ctx)

		require.NoError(t, err)
		assert.Equal(t, uint64(0), pos)
	})

	t.Run("counts across streams", func(t *testing.T) {
		adapter := NewAdapter()
		for _, streamID := range []string{"Issue-1", "Issue-2", "Issue-3"} {
			_, err := adapter.Append(ctx, streamID, []adapters.EventRecord{evt("IssueCreated")}, NoStream)
			require.NoError(t, err)
		}

		pos, err := adapter.GetLastPosition(ctx)

		require.NoError(t, err)
		assert.Equal(t, uint64(3), pos)
	})

	t.Run("closed adapter", func(t *testing.T) {
		adapter := NewAdapter()
		adapter.Close()

		_, err := adapter.GetLastPosition(ctx)
		assert.ErrorIs(t, err, ErrAdapterClosed)
	})

	t.Run("cancelled context", func(t *testing.T) {
		_, err := NewAdapter().GetLastPosition(cancelledCtx())
		assert.Error(t, err)
	})
}

func TestMemoryAdapter_Close(t *testing.T) {
	ctx := context.Background()

	adapter := NewAdapter()
	assert.NoError(t, adapter.Close())

	_, err := adapter.Append(ctx, "Issue-123", []adapters.EventRecord{evt("IssueCreated")}, NoStream)
	assert.ErrorIs(t, err, adapters.ErrAdapterClosed)

	_, err = adapter.Load(ctx, "Issue-123", 0)
	assert.ErrorIs(t, err, adapters.ErrAdapterClosed)

	_, err = adapter.GetStreamInfo(ctx, "Issue-123")
	assert.ErrorIs(t, err, adapters.ErrAdapterClosed)
}

func TestMemoryAdapter_Ping(t *testing.T) {
	t.Run("open adapter", func(t *testing.T) {
		assert.NoError(t, NewAdapter().Ping(context.Background()))
	})

	t.Run("closed adapter", func(t *testing.T) {
		adapter := NewAdapter()
		adapter.Close()

		assert.ErrorIs(t, adapter.Ping(context.Background()), adapters.ErrAdapterClosed)
	})

	t.Run("cancelled context", func(t *testing.T) {
		assert.Error(t, NewAdapter().Ping(cancelledCtx()))
	})
}

func TestMemoryAdapter_Reset(t *testing.T) {
	adapter := seeded(t, "Issue-123", "IssueCreated")
	ctx := context.Background()

	adapter.Reset()

	assert.Equal(t, 0, adapter.EventCount())
	assert.Equal(t, 0, adapter.StreamCount())

	pos, err := adapter.GetLastPosition(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), pos)
}

func TestMemoryAdapter_Concurrent(t *testing.T) {
	ctx := context.Background()

	t.Run("appends to distinct streams", func(t *testing.T) {
		adapter := NewAdapter()
		const numStreams = 100

		var wg sync.WaitGroup
		for i := 0; i < numStreams; i++ {
			wg.Add(1)
			go func(n int) {
				defer wg.Done()
				_, err := adapter.Append(ctx, fmt.Sprintf("Issue-%d", n), []adapters.EventRecord{evt("IssueCreated")}, NoStream)
				assert.NoError(t, err)
			}(i)
		}
		wg.Wait()

		assert.Equal(t, numStreams, adapter.EventCount())
		assert.Equal(t, numStreams, adapter.StreamCount())
	})

	t.Run("mixed reads and writes", func(t *testing.T) {
		adapter := seeded(t, "Issue-123", "IssueCreated")

		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(2)
			go func() {
				defer wg.Done()
				_, _ = adapter.Append(ctx, "Issue-123", []adapters.EventRecord{evt("AssigneeChanged")}, AnyVersion)
			}()
			go func() {
				defer wg.Done()
				_, _ = adapter.Load(ctx, "Issue-123", 0)
			}()
		}
		wg.Wait()
	})

	t.Run("global positions stay unique across streams", func(t *testing.T) {
		adapter := NewAdapter()
		positions := make(map[uint64]bool)

		var wg sync.WaitGroup
		var mu sync.Mutex
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func(n int) {
				defer wg.Done()
				stored, err := adapter.Append(ctx, fmt.Sprintf("Issue-%d", n), []adapters.EventRecord{evt("IssueCreated")}, NoStream)
				require.NoError(t, err)
				mu.Lock()
				positions[stored[0].GlobalPosition] = true
				mu.Unlock()
			}(i)
		}
		wg.Wait()

		assert.Len(t, positions, 50)
	})
}

func BenchmarkMemoryAdapter_Append(b *testing.B) {
	adapter := NewAdapter()
	ctx := context.Background()
	events := []adapters.EventRecord{{Type: "IssueCreated", Data: []byte(`{"issueId":"123"}`)}}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = adapter.Append(ctx, fmt.Sprintf("Issue-%d", i), events, AnyVersion)
	}
}

func BenchmarkMemoryAdapter_Load(b *testing.B) {
	adapter := NewAdapter()
	ctx := context.Background()
	_, _ = adapter.Append(ctx, "Issue-bench", []adapters.EventRecord{
		evt("IssueCreated"), evt("AssigneeChanged"), evt("StatusChanged"),
	}, NoStream)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = adapter.Load(ctx, "Issue-bench", 0)
	}
}

func BenchmarkMemoryAdapter_Concurrent(b *testing.B) {
	adapter := NewAdapter()
	ctx := context.Background()
	events := []adapters.EventRecord{evt("IssueCreated")}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			_, _ = adapter.Append(ctx, fmt.Sprintf("Issue-%d", i%1000), events, AnyVersion)
			i++
		}
	})
}
