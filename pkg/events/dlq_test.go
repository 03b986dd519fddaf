package events

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileDLQWritesJSONLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dlq.jsonl")
	dlq, err := NewFileDLQ(path)
	require.NoError(t, err)

	dlq.Write(DLQRecord{
		EventType:   TypeSensorDataReceived,
		HandlerName: "failing-handler",
		Error:       "boom",
		EventData:   json.RawMessage(`{"event_id":"e1"}`),
		Attempts:    3,
		Timestamp:   "2026-08-24T12:00:00Z",
	})
	dlq.Write(DLQRecord{EventType: TypeMaintenancePredicted, HandlerName: "other", Attempts: 1})
	require.NoError(t, dlq.Close())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Len(t, lines, 2)

	var rec DLQRecord
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	assert.Equal(t, TypeSensorDataReceived, rec.EventType)
	assert.Equal(t, "failing-handler", rec.HandlerName)
	assert.Equal(t, 3, rec.Attempts)
}

func TestSerializeEventDataTruncatesOversizedPayload(t *testing.T) {
	big := &SensorDataReceived{
		BaseEvent: NewBase(TypeSensorDataReceived, "corr-big"),
		SensorID:  "pump-1-temp",
		RawData:   map[string]any{"blob": strings.Repeat("x", maxDLQEventBytes)},
	}

	data := serializeEventData(big)
	require.LessOrEqual(t, len(data), maxDLQEventBytes)

	var envelope map[string]any
	require.NoError(t, json.Unmarshal(data, &envelope))
	assert.Equal(t, true, envelope["truncated"])
	assert.Equal(t, big.EventID, envelope["event_id"])
	assert.Equal(t, "corr-big", envelope["correlation_id"])
	assert.Greater(t, envelope["original_bytes"], float64(maxDLQEventBytes))
}

func TestSerializeEventDataNormalPayloadRoundTrips(t *testing.T) {
	e := &SensorDataReceived{
		BaseEvent: NewBase(TypeSensorDataReceived, ""),
		SensorID:  "pump-1-temp",
		RawData:   map[string]any{"value": 71.3},
	}

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(serializeEventData(e), &decoded))
	assert.Equal(t, "pump-1-temp", decoded["sensor_id"])
	assert.Equal(t, e.EventID, decoded["event_id"])
}
