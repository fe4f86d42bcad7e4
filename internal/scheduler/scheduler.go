// Package scheduler runs the periodic price refresh and snapshot cycle inside
// the API process.
package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"folio/internal/logger"
	"folio/internal/services"
	"folio/internal/snapshot"
)

// SnapshotRunner is the part of the snapshot service the scheduler drives.
type SnapshotRunner interface {
	RunSnapshot(ctx context.Context, at time.Time, trigger string) (*snapshot.Result, error)
}

// Scheduler triggers a snapshot run every interval. When a refresher is set,
// prices are refreshed first so the snapshot values fresh quotes.
type Scheduler struct {
	snapshots SnapshotRunner
	refresher services.PriceRefreshRunner
	interval  time.Duration
	log       *zap.SugaredLogger
}

// New creates a Scheduler. refresher may be nil.
func New(snapshots SnapshotRunner, refresher services.PriceRefreshRunner, interval time.Duration) *Scheduler {
	return &Scheduler{
		snapshots: snapshots,
		refresher: refresher,
		interval:  interval,
		log:       logger.Named("scheduler"),
	}
}

// Run blocks until ctx is cancelled. A non-positive interval disables the
// scheduler and Run returns immediately.
func (s *Scheduler) Run(ctx context.Context) error {
	if s.interval <= 0 {
		s.log.Info("snapshot interval is zero, scheduler disabled")
		return nil
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.log.Infow("scheduler started", "interval", s.interval.String())

	for {
		select {
		case <-ctx.Done():
			s.log.Info("scheduler stopping")
			return ctx.Err()
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick runs one cycle. Failures are logged; the next tick retries.
func (s *Scheduler) Tick(ctx context.Context) {
	if s.refresher != nil {
		res, err := s.refresher.Refresh(ctx)
		if err != nil {
			s.log.Warnw("price refresh failed", "error", err)
		} else {
			s.log.Infow("prices refreshed",
				"recorded", res.PricesRecorded,
				"errors", len(res.ErrorMessages),
			)
		}
	}

	res, err := s.snapshots.RunSnapshot(ctx, time.Time{}, services.TriggerScheduler)
	if err != nil {
		s.log.Errorw("scheduled snapshot failed", "error", err)
		return
	}
	s.log.Infow("scheduled snapshot finished",
		"run_id", res.Run.ID,
		"status", res.Run.Status,
		"warnings", len(res.Run.Warnings),
	)
}
