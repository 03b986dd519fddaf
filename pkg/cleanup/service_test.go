package cleanup

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/predictix/maintflow/pkg/config"
	"github.com/predictix/maintflow/pkg/models"
	"github.com/predictix/maintflow/pkg/storage"
)

func saveReading(t *testing.T, store *storage.MemoryStore, sensorID string, age time.Duration) {
	t.Helper()
	require.NoError(t, store.SaveReading(context.Background(), models.SensorReading{
		SensorID:   sensorID,
		SensorType: models.SensorTypeTemperature,
		Value:      70,
		Timestamp:  time.Now().UTC().Add(-age),
		Quality:    1.0,
	}))
}

func TestPruneOnceRemovesOnlyExpiredReadings(t *testing.T) {
	store := storage.NewMemoryStore()
	saveReading(t, store, "pump-1-temp", 40*24*time.Hour)
	saveReading(t, store, "pump-1-temp", time.Hour)
	saveReading(t, store, "pump-2-temp", 40*24*time.Hour)

	svc := NewService(&config.RetentionConfig{
		ReadingRetention: 30 * 24 * time.Hour,
		Interval:         time.Hour,
	}, store)
	svc.pruneOnce(context.Background())

	remaining, err := store.GetBySensorID(context.Background(), "pump-1-temp", 0, time.Now().UTC().Add(time.Minute))
	require.NoError(t, err)
	assert.Len(t, remaining, 1)

	gone, err := store.GetBySensorID(context.Background(), "pump-2-temp", 0, time.Now().UTC().Add(time.Minute))
	require.NoError(t, err)
	assert.Empty(t, gone)
}

func TestStartStopLifecycle(t *testing.T) {
	store := storage.NewMemoryStore()
	saveReading(t, store, "pump-1-temp", 40*24*time.Hour)

	svc := NewService(&config.RetentionConfig{
		ReadingRetention: 30 * 24 * time.Hour,
		Interval:         time.Hour,
	}, store)

	svc.Start(context.Background())
	// Second Start is a no-op on a running service.
	svc.Start(context.Background())
	svc.Stop()

	// The startup pass already pruned the expired reading.
	remaining, err := store.GetBySensorID(context.Background(), "pump-1-temp", 0, time.Now().UTC().Add(time.Minute))
	require.NoError(t, err)
	assert.Empty(t, remaining)
}
