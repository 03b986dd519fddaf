// Package cleanup provides the data retention service: a background loop
// that prunes sensor readings past their retention window.
package cleanup

import (
	"context"
	"log/slog"
	"time"

	"github.com/predictix/maintflow/pkg/config"
	"github.com/predictix/maintflow/pkg/storage"
)

// Service periodically enforces the reading retention policy. Pruning is
// idempotent and safe to run from multiple replicas sharing one database.
type Service struct {
	config   *config.RetentionConfig
	readings storage.ReadingPruner
	log      *slog.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

// NewService creates a retention service over a reading pruner.
func NewService(cfg *config.RetentionConfig, readings storage.ReadingPruner) *Service {
	return &Service{
		config:   cfg,
		readings: readings,
		log:      slog.With("component", "retention"),
	}
}

// Start launches the background retention loop. Calling Start on a running
// service is a no-op.
func (s *Service) Start(ctx context.Context) {
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go s.run(ctx)

	s.log.Info("Retention service started",
		"reading_retention", s.config.ReadingRetention,
		"interval", s.config.Interval)
}

// Stop signals the retention loop to exit and waits for it to finish.
func (s *Service) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	s.log.Info("Retention service stopped")
}

func (s *Service) run(ctx context.Context) {
	defer close(s.done)

	s.pruneOnce(ctx)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.pruneOnce(ctx)
		}
	}
}

func (s *Service) pruneOnce(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-s.config.ReadingRetention)
	count, err := s.readings.PruneReadingsBefore(ctx, cutoff)
	if err != nil {
		s.log.Error("Retention: pruning readings failed", "cutoff", cutoff, "error", err)
		return
	}
	if count > 0 {
		s.log.Info("Retention: pruned old readings", "count", count, "cutoff", cutoff)
	}
}
