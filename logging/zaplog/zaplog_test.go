package zaplog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newObserved(t *testing.T) (*Logger, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	return New(zap.New(core)), logs
}

func TestNew(t *testing.T) {
	t.Run("nil logger falls back to nop", func(t *testing.T) {
		l := New(nil)

		require.NotNil(t, l)
		l.Info("ignored")
	})
}

func TestLogger_Levels(t *testing.T) {
	l, logs := newObserved(t)

	l.Debug("replaying stream", "stream_id", "Issue-1")
	l.Info("events appended", "count", 2)
	l.Warn("retrying commit")
	l.Error("commit failed", "error", "version conflict")

	entries := logs.All()
	require.Len(t, entries, 4)

	assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
	assert.Equal(t, "replaying stream", entries[0].Message)
	assert.Equal(t, "Issue-1", entries[0].ContextMap()["stream_id"])

	assert.Equal(t, zapcore.InfoLevel, entries[1].Level)
	assert.Equal(t, int64(2), entries[1].ContextMap()["count"])

	assert.Equal(t, zapcore.WarnLevel, entries[2].Level)
	assert.Equal(t, zapcore.ErrorLevel, entries[3].Level)
}

func TestLogger_With(t *testing.T) {
	l, logs := newObserved(t)

	l.With("stream_id", "Issue-7").Info("loaded")

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "Issue-7", entries[0].ContextMap()["stream_id"])
}

func TestLogger_Named(t *testing.T) {
	l, logs := newObserved(t)

	l.Named("store").Info("initialized")

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "store", entries[0].LoggerName)
}
