// Package storage defines the persistence contracts the MaintFlow core
// consumes and provides two implementations: an in-memory store for tests
// and demos, and a PostgreSQL store for production.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/predictix/maintflow/pkg/models"
)

// ErrNotFound indicates the requested record does not exist.
var ErrNotFound = errors.New("record not found")

// ReadingStore persists sensor readings and serves the historical queries
// the validation and prediction agents depend on.
type ReadingStore interface {
	// SaveReading stores one validated reading.
	SaveReading(ctx context.Context, r models.SensorReading) error

	// GetBySensorID returns up to limit readings for one sensor taken
	// strictly before the given timestamp, newest first.
	GetBySensorID(ctx context.Context, sensorID string, limit int, before time.Time) ([]models.SensorReading, error)
}

// ReadingPruner removes readings past a retention cutoff. Consumed by the
// retention service.
type ReadingPruner interface {
	// PruneReadingsBefore deletes readings older than cutoff and returns
	// how many were removed.
	PruneReadingsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// DecisionStore persists human decision responses, keyed by request ID.
type DecisionStore interface {
	// SaveDecision stores a response. Saving the same request ID again is
	// an upsert; responses are idempotent by request_id.
	SaveDecision(ctx context.Context, d models.DecisionResponse) error

	// GetDecision returns the response for a request ID, or ErrNotFound.
	GetDecision(ctx context.Context, requestID string) (models.DecisionResponse, error)
}

// ScheduleStore persists maintenance schedules for readers.
type ScheduleStore interface {
	// SaveSchedule stores one schedule.
	SaveSchedule(ctx context.Context, s models.MaintenanceSchedule) error

	// RecentSchedules returns up to limit schedules, newest first.
	RecentSchedules(ctx context.Context, limit int) ([]models.MaintenanceSchedule, error)
}

// Store aggregates all persistence contracts behind one handle.
type Store interface {
	ReadingStore
	ReadingPruner
	DecisionStore
	ScheduleStore
}
