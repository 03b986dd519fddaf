package acquisition

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/predictix/maintflow/pkg/agent"
	"github.com/predictix/maintflow/pkg/events"
	"github.com/predictix/maintflow/pkg/models"
	"github.com/predictix/maintflow/pkg/storage"
)

// captureBus records published events synchronously.
type captureBus struct {
	mu        sync.Mutex
	published []events.Event
}

func (b *captureBus) Publish(e events.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published = append(b.published, e)
	return nil
}

func (b *captureBus) Subscribe(_, _ string, _ events.Handler) {}
func (b *captureBus) Unsubscribe(_, _ string)                 {}

func (b *captureBus) processed() []*events.DataProcessed {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []*events.DataProcessed
	for _, e := range b.published {
		if p, ok := e.(*events.DataProcessed); ok {
			out = append(out, p)
		}
	}
	return out
}

func rawEvent(sensorID string, raw map[string]any) *events.SensorDataReceived {
	return &events.SensorDataReceived{
		BaseEvent: events.NewBase(events.TypeSensorDataReceived, ""),
		SensorID:  sensorID,
		RawData:   raw,
	}
}

func TestProcessRawReadingHappyPath(t *testing.T) {
	bus := &captureBus{}
	store := storage.NewMemoryStore()
	a, err := New(bus, store)
	require.NoError(t, err)
	require.NoError(t, a.Start(context.Background()))

	src := rawEvent("pump-1-temp", map[string]any{
		"value":       71.3,
		"sensor_type": "temperature",
		"unit":        "celsius",
		"quality":     0.98,
		"metadata":    map[string]any{"equipment_id": "pump-1"},
	})
	require.NoError(t, a.processRawReading(context.Background(), src))

	processed := bus.processed()
	require.Len(t, processed, 1)
	p := processed[0]
	assert.Equal(t, src.EventID, p.OriginalEventID)
	assert.Equal(t, src.CorrelationID, p.CorrelationID)
	assert.Equal(t, "pump-1-temp", p.SourceSensorID)
	assert.Equal(t, 71.3, p.ProcessedData.Value)
	assert.Equal(t, models.SensorTypeTemperature, p.ProcessedData.SensorType)
	assert.Equal(t, 0.98, p.ProcessedData.Quality)
	assert.Equal(t, "pump-1", p.ProcessedData.Metadata["equipment_id"])

	// The normalized reading was persisted for historical queries.
	saved, err := store.GetBySensorID(context.Background(), "pump-1-temp", 10, time.Now().UTC().Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, saved, 1)
}

func TestProcessRawReadingExplicitTimestamp(t *testing.T) {
	bus := &captureBus{}
	a, err := New(bus, storage.NewMemoryStore())
	require.NoError(t, err)
	require.NoError(t, a.Start(context.Background()))

	ts := "2026-08-20T11:30:00Z"
	src := rawEvent("pump-1-temp", map[string]any{"value": 70.0, "timestamp": ts})
	require.NoError(t, a.processRawReading(context.Background(), src))

	processed := bus.processed()
	require.Len(t, processed, 1)
	expected, _ := time.Parse(time.RFC3339, ts)
	assert.True(t, expected.Equal(processed[0].ProcessedData.Timestamp))
}

func TestProcessRawReadingValidationErrors(t *testing.T) {
	tests := []struct {
		name     string
		sensorID string
		raw      map[string]any
	}{
		{"missing value", "s1", map[string]any{"unit": "celsius"}},
		{"non-numeric value", "s1", map[string]any{"value": "hot"}},
		{"bad timestamp", "s1", map[string]any{"value": 1.0, "timestamp": "yesterday"}},
		{"empty sensor id", "", map[string]any{"value": 1.0}},
		{"quality out of range", "s1", map[string]any{"value": 1.0, "quality": 1.5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bus := &captureBus{}
			a, err := New(bus, storage.NewMemoryStore())
			require.NoError(t, err)
			require.NoError(t, a.Start(context.Background()))

			err = a.processRawReading(context.Background(), rawEvent(tt.sensorID, tt.raw))
			require.Error(t, err)
			assert.ErrorIs(t, err, agent.ErrDataValidation)
			assert.Empty(t, bus.processed())
		})
	}
}

func TestGuardPublishesProcessingFailure(t *testing.T) {
	bus := &captureBus{}
	a, err := New(bus, storage.NewMemoryStore())
	require.NoError(t, err)
	require.NoError(t, a.Start(context.Background()))

	handler := a.Guard("process_raw_reading", a.processRawReading)
	err = handler(context.Background(), rawEvent("s1", map[string]any{"value": "broken"}))
	require.Error(t, err)

	var failures []*events.DataProcessingFailed
	bus.mu.Lock()
	for _, e := range bus.published {
		if f, ok := e.(*events.DataProcessingFailed); ok {
			failures = append(failures, f)
		}
	}
	bus.mu.Unlock()

	require.Len(t, failures, 1)
	assert.Equal(t, AgentID, failures[0].AgentID)
	assert.Equal(t, events.TypeSensorDataReceived, failures[0].OriginalEventType)
	assert.NotEmpty(t, failures[0].ErrorMessage)
}
