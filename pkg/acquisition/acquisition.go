// Package acquisition normalizes raw ingested sensor payloads into
// validated SensorReadings and hands them to the rest of the pipeline.
package acquisition

import (
	"context"
	"fmt"
	"time"

	"github.com/predictix/maintflow/pkg/agent"
	"github.com/predictix/maintflow/pkg/events"
	"github.com/predictix/maintflow/pkg/models"
	"github.com/predictix/maintflow/pkg/storage"
)

// AgentID is the data acquisition agent's stable identifier.
const AgentID = "data-acquisition-agent"

// Agent consumes SensorDataReceived, validates and persists the reading,
// and publishes DataProcessed.
type Agent struct {
	*agent.Base
	readings storage.ReadingStore
}

// New creates the acquisition agent.
func New(bus agent.EventBus, readings storage.ReadingStore) (*Agent, error) {
	if bus == nil || readings == nil {
		return nil, fmt.Errorf("%w: acquisition agent requires a bus and a reading store", agent.ErrConfiguration)
	}
	return &Agent{
		Base:     agent.NewBase(AgentID, bus),
		readings: readings,
	}, nil
}

// Start registers capabilities, subscribes, and marks the agent running.
func (a *Agent) Start(_ context.Context) error {
	a.RegisterCapability(agent.Capability{
		Name:        "sensor_data_normalization",
		Description: "Validates raw sensor payloads and produces normalized readings",
		InputTypes:  []string{events.TypeSensorDataReceived},
		OutputTypes: []string{events.TypeDataProcessed, events.TypeDataProcessingFailed},
	})
	a.Bus().Subscribe(events.TypeSensorDataReceived, AgentID, a.Guard("process_raw_reading", a.processRawReading))
	a.MarkRunning()
	return nil
}

// Stop unsubscribes and marks the agent stopped.
func (a *Agent) Stop() {
	a.Bus().Unsubscribe(events.TypeSensorDataReceived, AgentID)
	a.MarkStopped()
}

// processRawReading handles one SensorDataReceived event.
func (a *Agent) processRawReading(ctx context.Context, e events.Event) error {
	received, ok := e.(*events.SensorDataReceived)
	if !ok {
		return fmt.Errorf("%w: expected SensorDataReceived, got %s", agent.ErrDataValidation, e.Base().EventType)
	}

	reading, err := parseRawReading(received)
	if err != nil {
		return fmt.Errorf("%w: sensor %s: %w", agent.ErrDataValidation, received.SensorID, err)
	}

	if err := a.readings.SaveReading(ctx, reading); err != nil {
		return fmt.Errorf("failed to persist reading for sensor %s: %w", reading.SensorID, err)
	}

	processed := &events.DataProcessed{
		BaseEvent:       events.DeriveBase(events.TypeDataProcessed, received),
		ProcessedData:   reading,
		OriginalEventID: received.EventID,
		SourceSensorID:  reading.SensorID,
	}
	if err := a.Bus().Publish(processed); err != nil {
		return fmt.Errorf("%w: %w", agent.ErrEventPublish, err)
	}

	a.Log().Debug("Reading processed",
		"sensor_id", reading.SensorID,
		"value", reading.Value,
		"correlation_id", processed.CorrelationID)
	return nil
}

// parseRawReading converts the untyped ingest payload into a validated
// SensorReading. Missing timestamps default to the event timestamp and
// missing quality defaults to 1.0.
func parseRawReading(e *events.SensorDataReceived) (models.SensorReading, error) {
	raw := e.RawData

	sensorID := e.SensorID
	if sensorID == "" {
		sensorID, _ = raw["sensor_id"].(string)
	}

	value, ok := toFloat(raw["value"])
	if !ok {
		return models.SensorReading{}, fmt.Errorf("raw payload has no numeric value field")
	}

	reading := models.SensorReading{
		SensorID:  sensorID,
		Value:     value,
		Timestamp: e.Timestamp,
		Quality:   1.0,
	}

	if s, ok := raw["sensor_type"].(string); ok {
		reading.SensorType = models.SensorType(s)
	}
	if s, ok := raw["unit"].(string); ok {
		reading.Unit = s
	}
	if q, ok := toFloat(raw["quality"]); ok {
		reading.Quality = q
	}
	if ts, ok := raw["timestamp"].(string); ok {
		parsed, err := time.Parse(time.RFC3339, ts)
		if err != nil {
			return models.SensorReading{}, fmt.Errorf("invalid timestamp %q: %w", ts, err)
		}
		reading.Timestamp = parsed.UTC()
	}
	if m, ok := raw["metadata"].(map[string]any); ok {
		reading.Metadata = m
	}

	if err := reading.Validate(); err != nil {
		return models.SensorReading{}, err
	}
	return reading, nil
}

// toFloat accepts the numeric representations JSON decoding may produce.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
