package validation

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/predictix/maintflow/pkg/agent"
	"github.com/predictix/maintflow/pkg/config"
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

func (b *captureBus) validated() []*events.AnomalyValidated {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []*events.AnomalyValidated
	for _, e := range b.published {
		if v, ok := e.(*events.AnomalyValidated); ok {
			out = append(out, v)
		}
	}
	return out
}

// failingReadings simulates an unavailable history backend.
type failingReadings struct{}

func (failingReadings) SaveReading(_ context.Context, _ models.SensorReading) error { return nil }

func (failingReadings) GetBySensorID(_ context.Context, _ string, _ int, _ time.Time) ([]models.SensorReading, error) {
	return nil, errors.New("history backend down")
}

func testValidationConfig() *config.ValidationConfig {
	return &config.ValidationConfig{
		CredibleThreshold:      0.7,
		FalsePositiveThreshold: 0.4,
		HistoricalCheckLimit:   10,
		RecentStabilityWindow:  5,
	}
}

func testReading(value float64, quality float64) models.SensorReading {
	return models.SensorReading{
		SensorID:   "pump-1-temp",
		Value:      value,
		Timestamp:  time.Now().UTC(),
		SensorType: models.SensorTypeTemperature,
		Unit:       "celsius",
		Quality:    quality,
	}
}

func anomalyEvent(reading models.SensorReading, confidence float64, severity models.Severity) *events.AnomalyDetected {
	return &events.AnomalyDetected{
		BaseEvent:      events.NewBase(events.TypeAnomalyDetected, ""),
		TriggeringData: reading,
		Severity:       severity,
		AnomalyDetails: map[string]any{"confidence": confidence},
	}
}

func newTestAgent(t *testing.T, readings storage.ReadingStore) (*Agent, *captureBus) {
	t.Helper()
	bus := &captureBus{}
	a, err := New(bus, testValidationConfig(), NewDefaultRuleEngine(), readings)
	require.NoError(t, err)
	require.NoError(t, a.Start(context.Background()))
	return a, bus
}

func TestValidateCredibleAnomaly(t *testing.T) {
	store := storage.NewMemoryStore()
	a, bus := newTestAgent(t, store)

	src := anomalyEvent(testReading(95, 1.0), 0.75, models.SeverityCritical)
	require.NoError(t, a.validate(context.Background(), src))

	results := bus.validated()
	require.Len(t, results, 1)
	v := results[0]
	// 0.75 initial + 0.10 critical severity reinforcement, no history.
	assert.InDelta(t, 0.85, v.FinalConfidence, 0.001)
	assert.Equal(t, events.ValidationStatusCredible, v.ValidationStatus)
	assert.Equal(t, src.CorrelationID, v.CorrelationID)
	assert.Equal(t, AgentID, v.AgentID)
	assert.NotEmpty(t, v.ValidationReasons)
}

func TestValidateFalsePositiveSuspected(t *testing.T) {
	store := storage.NewMemoryStore()
	a, bus := newTestAgent(t, store)

	// Low quality drags a weak anomaly below the false-positive threshold.
	src := anomalyEvent(testReading(95, 0.2), 0.5, models.SeverityLow)
	require.NoError(t, a.validate(context.Background(), src))

	results := bus.validated()
	require.Len(t, results, 1)
	assert.InDelta(t, 0.30, results[0].FinalConfidence, 0.001)
	assert.Equal(t, events.ValidationStatusFalsePositive, results[0].ValidationStatus)
}

func TestValidateRecentStabilityAdjustment(t *testing.T) {
	store := storage.NewMemoryStore()
	a, bus := newTestAgent(t, store)

	// History hovering within 5% of the current value.
	now := time.Now().UTC()
	for i := 0; i < 5; i++ {
		r := testReading(94.5, 1.0)
		r.Timestamp = now.Add(-time.Duration(i+1) * time.Minute)
		require.NoError(t, store.SaveReading(context.Background(), r))
	}

	reading := testReading(95, 1.0)
	reading.Timestamp = now
	src := anomalyEvent(reading, 0.6, models.SeverityMedium)
	require.NoError(t, a.validate(context.Background(), src))

	results := bus.validated()
	require.Len(t, results, 1)
	assert.InDelta(t, 0.5, results[0].FinalConfidence, 0.001)
	assert.Contains(t, results[0].ValidationReasons, "Recent value stability")
}

func TestValidateRecurringPatternAdjustment(t *testing.T) {
	store := storage.NewMemoryStore()
	a, bus := newTestAgent(t, store)

	// Alternating large jumps: every consecutive pair differs by over 50%.
	now := time.Now().UTC()
	values := []float64{10, 100, 12, 110, 9, 105}
	for i, v := range values {
		r := testReading(v, 1.0)
		r.Timestamp = now.Add(-time.Duration(len(values)-i) * time.Minute)
		require.NoError(t, store.SaveReading(context.Background(), r))
	}

	reading := testReading(500, 1.0)
	reading.Timestamp = now
	src := anomalyEvent(reading, 0.6, models.SeverityMedium)
	require.NoError(t, a.validate(context.Background(), src))

	results := bus.validated()
	require.Len(t, results, 1)
	assert.Contains(t, results[0].ValidationReasons, "Recurring anomaly pattern")
	assert.InDelta(t, 0.55, results[0].FinalConfidence, 0.001)
}

func TestValidateHistoryUnavailable(t *testing.T) {
	a, bus := newTestAgent(t, failingReadings{})

	src := anomalyEvent(testReading(95, 1.0), 0.55, models.SeverityMedium)
	require.NoError(t, a.validate(context.Background(), src))

	results := bus.validated()
	require.Len(t, results, 1)
	v := results[0]
	assert.Equal(t, events.ValidationStatusInvestigate, v.ValidationStatus)

	var mentioned bool
	for _, reason := range v.ValidationReasons {
		if strings.Contains(reason, "Historical context unavailable") {
			mentioned = true
		}
	}
	assert.True(t, mentioned, "reasons should mention the unavailable history")
}

func TestValidateConfidenceClamped(t *testing.T) {
	store := storage.NewMemoryStore()
	a, bus := newTestAgent(t, store)

	src := anomalyEvent(testReading(95, 1.0), 0.98, models.SeverityCritical)
	require.NoError(t, a.validate(context.Background(), src))

	results := bus.validated()
	require.Len(t, results, 1)
	assert.LessOrEqual(t, results[0].FinalConfidence, 1.0)
	assert.Equal(t, events.ValidationStatusCredible, results[0].ValidationStatus)
}

func TestValidateMissingConfidenceIsValidationError(t *testing.T) {
	store := storage.NewMemoryStore()
	a, _ := newTestAgent(t, store)

	src := &events.AnomalyDetected{
		BaseEvent:      events.NewBase(events.TypeAnomalyDetected, ""),
		TriggeringData: testReading(95, 1.0),
		Severity:       models.SeverityMedium,
		AnomalyDetails: map[string]any{},
	}
	err := a.validate(context.Background(), src)
	require.Error(t, err)
	assert.ErrorIs(t, err, agent.ErrDataValidation)
}

func TestRuleEngineDetectorAgreement(t *testing.T) {
	engine := NewDefaultRuleEngine()
	reading := testReading(95, 1.0)
	anomaly := anomalyEvent(reading, 0.6, models.SeverityMedium)
	anomaly.AnomalyDetails["stat_is_anomaly"] = true
	anomaly.AnomalyDetails["ml_prediction"] = -1

	delta, reasons, err := engine.EvaluateRules(anomaly, reading)
	require.NoError(t, err)
	assert.InDelta(t, 0.05, delta, 0.001)
	assert.Contains(t, reasons, "ML and statistical detectors agree")
}
