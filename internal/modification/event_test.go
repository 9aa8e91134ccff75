package modification

import (
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeEventGolden(t *testing.T) {
	g := goldie.New(t)
	ts := time.Date(2024, 3, 1, 12, 30, 45, 123456789, time.UTC)

	tests := []struct {
		golden string
		event  Event
	}{
		{golden: "log_event", event: LogLine{Timestamp: ts, Level: LevelInformation, Category: "CreateRandomUsersModification", Message: "Creating user 1 of 3..."}},
		{golden: "complete_event", event: Complete{Success: true}},
		{golden: "cancelled_event", event: Failure{Message: CancelledMessage}},
		{golden: "failure_event", event: Failure{Message: "disk full", Detail: "*errors.errorString: disk full"}},
	}
	for _, tt := range tests {
		t.Run(tt.golden, func(t *testing.T) {
			data, err := EncodeEvent(tt.event)
			require.NoError(t, err)
			g.Assert(t, tt.golden, data)
		})
	}
}

func TestEncodeEventConvertsToUTC(t *testing.T) {
	local := time.FixedZone("UTC+2", 2*60*60)
	ts := time.Date(2024, 3, 1, 14, 30, 45, 0, local)

	data, err := EncodeEvent(LogLine{Timestamp: ts, Level: LevelWarning})
	require.NoError(t, err)

	var wire map[string]any
	require.NoError(t, json.Unmarshal(data, &wire))
	assert.Equal(t, "2024-03-01 12:30:45.000", wire["timestamp"])
	assert.Equal(t, "Warning", wire["level"])
}

func TestDecodeEventRoundTrip(t *testing.T) {
	ts := time.Date(2024, 3, 1, 12, 30, 45, 123000000, time.UTC)
	events := []Event{
		LogLine{Timestamp: ts, Level: LevelError, Category: "c", Message: "m"},
		Complete{Success: true},
		Failure{Message: "boom"},
		Failure{Message: "boom", Detail: "trace"},
	}
	for _, want := range events {
		data, err := EncodeEvent(want)
		require.NoError(t, err)

		got, err := DecodeEvent(data)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestDecodeEventErrors(t *testing.T) {
	tests := map[string]string{
		"not json":         `{`,
		"unknown type":     `{"type":"progress"}`,
		"missing type":     `{"success":true}`,
		"bad timestamp":    `{"type":"log","timestamp":"yesterday","level":"Information"}`,
		"wrong field type": `{"type":"complete","success":"yes"}`,
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeEvent([]byte(data))
			assert.Error(t, err)
		})
	}
}

func TestEncodeEventNil(t *testing.T) {
	_, err := EncodeEvent(nil)
	assert.Error(t, err)
}

func TestTerminal(t *testing.T) {
	assert.False(t, LogLine{}.Terminal())
	assert.True(t, Complete{}.Terminal())
	assert.True(t, Failure{}.Terminal())
	assert.Equal(t, EventTypeError, Failure{}.Type())
}

func TestLevels(t *testing.T) {
	assert.Equal(t, LevelDebug, levelFromSlog(slog.LevelDebug))
	assert.Equal(t, LevelInformation, levelFromSlog(slog.LevelInfo))
	assert.Equal(t, LevelInformation, levelFromSlog(slog.LevelInfo+2))
	assert.Equal(t, LevelWarning, levelFromSlog(slog.LevelWarn))
	assert.Equal(t, LevelError, levelFromSlog(slog.LevelError+4))

	for in, want := range map[string]slog.Level{
		"debug":       slog.LevelDebug,
		"Information": slog.LevelInfo,
		"":            slog.LevelInfo,
		"WARN":        slog.LevelWarn,
		"Warning":     slog.LevelWarn,
		"error":       slog.LevelError,
	} {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseLevel("loud")
	assert.Error(t, err)
}
