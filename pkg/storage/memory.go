package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/predictix/maintflow/pkg/models"
)

// MemoryStore is a mutex-protected in-memory Store. It backs unit tests and
// the demo mode of the binary; it is not durable.
type MemoryStore struct {
	mu        sync.RWMutex
	readings  map[string][]models.SensorReading // sensor_id → readings, append order
	decisions map[string]models.DecisionResponse
	schedules []models.MaintenanceSchedule
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		readings:  make(map[string][]models.SensorReading),
		decisions: make(map[string]models.DecisionResponse),
	}
}

// SaveReading stores one reading.
func (s *MemoryStore) SaveReading(_ context.Context, r models.SensorReading) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readings[r.SensorID] = append(s.readings[r.SensorID], r)
	return nil
}

// GetBySensorID returns up to limit readings before the given time, newest first.
func (s *MemoryStore) GetBySensorID(_ context.Context, sensorID string, limit int, before time.Time) ([]models.SensorReading, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.SensorReading
	for _, r := range s.readings[sensorID] {
		if r.Timestamp.Before(before) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// PruneReadingsBefore deletes readings older than cutoff.
func (s *MemoryStore) PruneReadingsBefore(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed int64
	for sensorID, readings := range s.readings {
		kept := readings[:0]
		for _, r := range readings {
			if r.Timestamp.Before(cutoff) {
				removed++
				continue
			}
			kept = append(kept, r)
		}
		if len(kept) == 0 {
			delete(s.readings, sensorID)
			continue
		}
		s.readings[sensorID] = kept
	}
	return removed, nil
}

// SaveDecision upserts a decision response by request ID.
func (s *MemoryStore) SaveDecision(_ context.Context, d models.DecisionResponse) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.decisions[d.RequestID] = d
	return nil
}

// GetDecision returns the stored response or ErrNotFound.
func (s *MemoryStore) GetDecision(_ context.Context, requestID string) (models.DecisionResponse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.decisions[requestID]
	if !ok {
		return models.DecisionResponse{}, ErrNotFound
	}
	return d, nil
}

// SaveSchedule stores one schedule.
func (s *MemoryStore) SaveSchedule(_ context.Context, sched models.MaintenanceSchedule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.schedules = append(s.schedules, sched)
	return nil
}

// RecentSchedules returns up to limit schedules, newest first.
func (s *MemoryStore) RecentSchedules(_ context.Context, limit int) ([]models.MaintenanceSchedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.MaintenanceSchedule, len(s.schedules))
	copy(out, s.schedules)
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
