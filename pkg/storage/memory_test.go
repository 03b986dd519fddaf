package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/predictix/maintflow/pkg/models"
)

func reading(sensorID string, value float64, ts time.Time) models.SensorReading {
	return models.SensorReading{
		SensorID:   sensorID,
		Value:      value,
		Timestamp:  ts,
		SensorType: models.SensorTypeTemperature,
		Unit:       "celsius",
		Quality:    1.0,
	}
}

func TestMemoryStoreReadingsNewestFirst(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, store.SaveReading(ctx, reading("s1", 1, now.Add(-3*time.Hour))))
	require.NoError(t, store.SaveReading(ctx, reading("s1", 2, now.Add(-1*time.Hour))))
	require.NoError(t, store.SaveReading(ctx, reading("s1", 3, now.Add(-2*time.Hour))))
	require.NoError(t, store.SaveReading(ctx, reading("s2", 9, now.Add(-1*time.Minute))))

	out, err := store.GetBySensorID(ctx, "s1", 10, now)
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, []float64{2, 3, 1}, []float64{out[0].Value, out[1].Value, out[2].Value})
}

func TestMemoryStoreReadingsBeforeAndLimit(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	now := time.Now().UTC()

	for i := 1; i <= 5; i++ {
		require.NoError(t, store.SaveReading(ctx, reading("s1", float64(i), now.Add(-time.Duration(i)*time.Hour))))
	}

	// Cutoff excludes the two newest readings; limit trims the rest.
	out, err := store.GetBySensorID(ctx, "s1", 2, now.Add(-150*time.Minute))
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, 3.0, out[0].Value)
	assert.Equal(t, 4.0, out[1].Value)
}

func TestMemoryStoreUnknownSensorIsEmpty(t *testing.T) {
	store := NewMemoryStore()
	out, err := store.GetBySensorID(context.Background(), "nope", 10, time.Now())
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestMemoryStoreDecisionUpsert(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	_, err := store.GetDecision(ctx, "maintenance_approval_1")
	assert.ErrorIs(t, err, ErrNotFound)

	first := models.DecisionResponse{RequestID: "maintenance_approval_1", Decision: "defer", DecidedAt: time.Now().UTC()}
	require.NoError(t, store.SaveDecision(ctx, first))

	second := first
	second.Decision = "approve"
	second.DecidedBy = "operator-7"
	require.NoError(t, store.SaveDecision(ctx, second))

	got, err := store.GetDecision(ctx, "maintenance_approval_1")
	require.NoError(t, err)
	assert.Equal(t, "approve", got.Decision)
	assert.Equal(t, "operator-7", got.DecidedBy)
}

func TestMemoryStoreRecentSchedules(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	now := time.Now().UTC()

	for i := 1; i <= 4; i++ {
		require.NoError(t, store.SaveSchedule(ctx, models.MaintenanceSchedule{
			ScheduleID:  string(rune('a' + i)),
			EquipmentID: "P1",
			CreatedAt:   now.Add(-time.Duration(i) * time.Hour),
		}))
	}

	out, err := store.RecentSchedules(ctx, 2)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.True(t, out[0].CreatedAt.After(out[1].CreatedAt))
}
