package reactor

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type recordingLogger struct {
	entries []LogEntry
}

func (r *recordingLogger) Log(entry LogEntry) {
	r.entries = append(r.entries, entry)
}

func (r *recordingLogger) IsEnabled(LogLevel) bool { return true }

func TestLogifaceLoggerForwardsFields(t *testing.T) {
	rec := &recordingLogger{}
	log := NewLogifaceLogger(rec)

	require.True(t, log.IsEnabled(LevelInfo))

	log.Log(LogEntry{
		Level:     LevelWarn,
		Category:  "poller",
		ReactorID: 1,
		TaskID:    2,
		Message:   "descriptor churn",
		Context:   map[string]any{"fd": 7},
		Err:       errors.New("boom"),
	})

	require.Len(t, rec.entries, 1)
	got := rec.entries[0]
	require.Equal(t, LevelWarn, got.Level)
	require.Equal(t, "descriptor churn", got.Message)
	require.Equal(t, "poller", got.Context["category"])
	require.Equal(t, int64(1), got.Context["reactor_id"])
	require.Equal(t, int64(2), got.Context["task_id"])
	require.Equal(t, 7, got.Context["fd"])
	require.EqualError(t, got.Err, "boom")
	require.False(t, got.Timestamp.IsZero())
}

func TestLevelMappingRoundTrips(t *testing.T) {
	for _, lvl := range []LogLevel{LevelDebug, LevelInfo, LevelWarn, LevelError} {
		require.Equal(t, lvl, fromLogifaceLevel(toLogifaceLevel(lvl)))
	}
}
