package prediction

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

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

func (b *captureBus) predictions() []*events.MaintenancePredicted {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []*events.MaintenancePredicted
	for _, e := range b.published {
		if p, ok := e.(*events.MaintenancePredicted); ok {
			out = append(out, p)
		}
	}
	return out
}

func testPredictionConfig() *config.PredictionConfig {
	return &config.PredictionConfig{
		HistoricalDataLimit: 50,
		MinHistoricalPoints: 10,
		ConfidenceGate:      0.7,
	}
}

// seedTrendingHistory stores n readings with a steady upward drift ending
// just before `end`.
func seedTrendingHistory(t *testing.T, store storage.ReadingStore, sensorID string, n int, end time.Time) {
	t.Helper()
	for i := 0; i < n; i++ {
		r := models.SensorReading{
			SensorID:   sensorID,
			Value:      70 + float64(i)*0.5,
			Timestamp:  end.Add(-time.Duration(n-i) * time.Hour),
			SensorType: models.SensorTypeTemperature,
			Unit:       "celsius",
			Quality:    1.0,
			Metadata:   map[string]any{"equipment_id": "pump-1"},
		}
		require.NoError(t, store.SaveReading(context.Background(), r))
	}
}

func validatedEvent(sensorID, status string, confidence float64, ts time.Time) *events.AnomalyValidated {
	return &events.AnomalyValidated{
		BaseEvent:        events.NewBase(events.TypeAnomalyValidated, ""),
		ValidationStatus: status,
		FinalConfidence:  confidence,
		TriggeringReading: models.SensorReading{
			SensorID:   sensorID,
			Value:      95,
			Timestamp:  ts,
			SensorType: models.SensorTypeTemperature,
			Quality:    1.0,
			Metadata:   map[string]any{"equipment_id": "pump-1"},
		},
		ValidatedAt: ts,
	}
}

func newTestAgent(t *testing.T, store storage.ReadingStore) (*Agent, *captureBus) {
	t.Helper()
	bus := &captureBus{}
	a, err := New(bus, testPredictionConfig(), store, NewTrendForecaster())
	require.NoError(t, err)
	require.NoError(t, a.Start(context.Background()))
	return a, bus
}

func TestPredictEmitsMaintenancePredicted(t *testing.T) {
	store := storage.NewMemoryStore()
	a, bus := newTestAgent(t, store)

	now := time.Now().UTC()
	seedTrendingHistory(t, store, "pump-1-temp", 30, now)

	src := validatedEvent("pump-1-temp", events.ValidationStatusCredible, 0.85, now)
	require.NoError(t, a.predict(context.Background(), src))

	predictions := bus.predictions()
	require.Len(t, predictions, 1)
	p := predictions[0]
	assert.Equal(t, "pump-1", p.EquipmentID, "equipment resolved from reading metadata")
	assert.Equal(t, src.CorrelationID, p.CorrelationID)
	assert.True(t, p.PredictedFailureDate.After(now))
	assert.Greater(t, p.TimeToFailureDays, 0.0)
	assert.True(t, p.ConfidenceIntervalLower.Before(p.ConfidenceIntervalUpper) ||
		p.ConfidenceIntervalLower.Equal(p.ConfidenceIntervalUpper))
	assert.GreaterOrEqual(t, p.PredictionConfidence, 0.0)
	assert.LessOrEqual(t, p.PredictionConfidence, 1.0)
	assert.NotEmpty(t, p.MaintenanceType)
	assert.NotEmpty(t, p.RecommendedActions)
}

func TestPredictSkipsWithoutEnoughHistory(t *testing.T) {
	store := storage.NewMemoryStore()
	a, bus := newTestAgent(t, store)

	now := time.Now().UTC()
	seedTrendingHistory(t, store, "pump-1-temp", 5, now)

	src := validatedEvent("pump-1-temp", events.ValidationStatusCredible, 0.85, now)
	require.NoError(t, a.predict(context.Background(), src))
	assert.Empty(t, bus.predictions())
}

func TestPredictSkipsWithZeroHistory(t *testing.T) {
	store := storage.NewMemoryStore()
	a, bus := newTestAgent(t, store)

	src := validatedEvent("unseen-sensor", events.ValidationStatusCredible, 0.9, time.Now().UTC())
	require.NoError(t, a.predict(context.Background(), src))
	assert.Empty(t, bus.predictions())
}

func TestPredictGating(t *testing.T) {
	tests := []struct {
		name       string
		status     string
		confidence float64
		expected   bool
	}{
		{"credible status", events.ValidationStatusCredible, 0.5, true},
		{"confirmed alias", "confirmed", 0.5, true},
		{"uncertain above gate", events.ValidationStatusUncertain, 0.75, true},
		{"uncertain below gate", events.ValidationStatusUncertain, 0.5, false},
		{"false positive below gate", events.ValidationStatusFalsePositive, 0.3, false},
	}

	store := storage.NewMemoryStore()
	a, _ := newTestAgent(t, store)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := validatedEvent("s", tt.status, tt.confidence, time.Now().UTC())
			assert.Equal(t, tt.expected, a.shouldPredict(v))
		})
	}
}

func TestMaintenanceTypeForHorizon(t *testing.T) {
	assert.Equal(t, models.MaintenanceTypeUrgentCorrective, maintenanceTypeForTTF(5))
	assert.Equal(t, models.MaintenanceTypePreventive, maintenanceTypeForTTF(30))
	assert.Equal(t, models.MaintenanceTypeInspection, maintenanceTypeForTTF(200))
}

func TestTrendForecaster(t *testing.T) {
	f := NewTrendForecaster()
	now := time.Now().UTC()

	// Steady upward drift: failure lands in the future, confidence high.
	var rising []models.SensorReading
	for i := 0; i < 20; i++ {
		rising = append(rising, models.SensorReading{
			SensorID:  "s",
			Value:     70 + float64(i),
			Timestamp: now.Add(-time.Duration(20-i) * 24 * time.Hour),
			Quality:   1.0,
		})
	}
	// Forecaster takes history newest first.
	newestFirst := make([]models.SensorReading, len(rising))
	for i, r := range rising {
		newestFirst[len(rising)-1-i] = r
	}

	forecast, err := f.Forecast(context.Background(), newestFirst)
	require.NoError(t, err)
	assert.True(t, forecast.PredictedFailureDate.After(now.Add(-24*time.Hour)))
	assert.Greater(t, forecast.Confidence, 0.7, "clean linear trend should fit well")

	// Flat series: capped horizon, low confidence.
	var flat []models.SensorReading
	for i := 0; i < 20; i++ {
		flat = append(flat, models.SensorReading{
			SensorID:  "s",
			Value:     70,
			Timestamp: now.Add(-time.Duration(20-i) * 24 * time.Hour),
			Quality:   1.0,
		})
	}
	forecast, err = f.Forecast(context.Background(), flat)
	require.NoError(t, err)
	assert.LessOrEqual(t, forecast.Confidence, 0.4)

	// Too little data is an error.
	_, err = f.Forecast(context.Background(), flat[:1])
	require.Error(t, err)
}
