package services

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	apperrors "folio/internal/errors"
	"folio/internal/logger"
	"folio/internal/models"
	"folio/internal/pagination"
	"folio/internal/snapshot"
)

// Snapshot run triggers.
const (
	TriggerAPI       = "api"
	TriggerPipeline  = "pipeline"
	TriggerScheduler = "scheduler"
	TriggerCLI       = "cli"
)

// snapshotService runs recomputations and serves persisted snapshots.
type snapshotService struct {
	db         *gorm.DB
	recomputer *snapshot.Recomputer
	logs       SystemLogServicer
	now        func() time.Time
}

// NewSnapshotService creates a new SnapshotServicer.
func NewSnapshotService(db *gorm.DB, recomputer *snapshot.Recomputer, logs SystemLogServicer) SnapshotServicer {
	return &snapshotService{
		db:         db,
		recomputer: recomputer,
		logs:       logs,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// RunSnapshot recomputes the snapshot at the given instant, or now when at
// is zero. A FAILED run returns ErrSnapshotFailed wrapping the cause.
func (s *snapshotService) RunSnapshot(ctx context.Context, at time.Time, trigger string) (*snapshot.Result, error) {
	if at.IsZero() {
		at = s.now()
	}
	if at.After(s.now().Add(time.Minute)) {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "Snapshot instant cannot be in the future")
	}

	log := logger.Get().With("at", at.UTC().Format(time.RFC3339), "trigger", trigger)
	log.Infow("snapshot run started")

	res, err := s.recomputer.Run(ctx, at, trigger)
	if err != nil {
		log.Errorw("snapshot run failed", "error", err)
		s.logs.Record(models.LogLevelError, "snapshot", "Snapshot run failed", map[string]any{
			"at":      at.UTC(),
			"trigger": trigger,
			"error":   err.Error(),
		})
		return res, apperrors.Wrap(apperrors.ErrSnapshotFailed, err)
	}

	level := models.LogLevelInfo
	if res.Run.Status == snapshot.StatusCompletedWithWarnings {
		level = models.LogLevelWarning
	}
	log.Infow("snapshot run finished",
		"status", res.Run.Status,
		"snapshot_id", res.Run.SnapshotID,
		"warnings", len(res.Run.Warnings),
	)
	s.logs.Record(level, "snapshot", fmt.Sprintf("Snapshot run %s", res.Run.Status), map[string]any{
		"at":          at.UTC(),
		"trigger":     trigger,
		"snapshot_id": res.Run.SnapshotID,
		"warnings":    len(res.Run.Warnings),
	})
	return res, nil
}

// ListSnapshots returns paginated snapshots, newest first, with their
// per-type values.
func (s *snapshotService) ListSnapshots(from, to *time.Time, page pagination.PageRequest) (*pagination.PageResponse[models.Snapshot], error) {
	page.Defaults()

	base := s.db.Model(&models.Snapshot{})
	if from != nil {
		base = base.Where("taken_at >= ?", from.UTC())
	}
	if to != nil {
		base = base.Where("taken_at <= ?", to.UTC())
	}

	var totalItems int64
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, storeErr(err)
	}

	var snapshots []models.Snapshot
	if err := base.Preload("Values").Order("taken_at DESC").Scopes(pagination.Paginate(page)).Find(&snapshots).Error; err != nil {
		return nil, storeErr(err)
	}

	result := pagination.NewPageResponse(snapshots, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// GetSnapshotByID returns a snapshot with its values and holdings.
func (s *snapshotService) GetSnapshotByID(id string) (*models.Snapshot, error) {
	var snap models.Snapshot
	err := s.db.Preload("Values").
		Preload("Holdings", func(db *gorm.DB) *gorm.DB { return db.Order("asset_id ASC") }).
		Where("id = ?", id).
		First(&snap).Error
	if err != nil {
		return nil, notFound(err, apperrors.ErrSnapshotNotFound)
	}
	return &snap, nil
}

// GetPnLSeries returns the snapshot time series in ascending order.
func (s *snapshotService) GetPnLSeries(from, to *time.Time) ([]PnLPoint, error) {
	q := s.db.Model(&models.Snapshot{})
	if from != nil {
		q = q.Where("taken_at >= ?", from.UTC())
	}
	if to != nil {
		q = q.Where("taken_at <= ?", to.UTC())
	}

	var rows []models.Snapshot
	if err := q.Select("taken_at", "total_value", "total_pnl").Order("taken_at ASC").Find(&rows).Error; err != nil {
		return nil, storeErr(err)
	}

	series := make([]PnLPoint, len(rows))
	for i, r := range rows {
		series[i] = PnLPoint{TakenAt: r.TakenAt, TotalValue: r.TotalValue, TotalPnL: r.TotalPnL}
	}
	return series, nil
}

// ListRuns returns paginated run records, most recent first.
func (s *snapshotService) ListRuns(page pagination.PageRequest) (*pagination.PageResponse[models.SnapshotRun], error) {
	page.Defaults()

	var totalItems int64
	base := s.db.Model(&models.SnapshotRun{})
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, storeErr(err)
	}

	var runs []models.SnapshotRun
	if err := base.Order("started_at DESC").Scopes(pagination.Paginate(page)).Find(&runs).Error; err != nil {
		return nil, storeErr(err)
	}

	result := pagination.NewPageResponse(runs, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// DeleteAllSnapshots removes every snapshot with its values and holdings.
// Run records are kept.
func (s *snapshotService) DeleteAllSnapshots() (int64, error) {
	var deleted int64
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&models.SnapshotHolding{}).Error; err != nil {
			return err
		}
		if err := tx.Where("1 = 1").Delete(&models.SnapshotValue{}).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.SnapshotRun{}).Where("snapshot_id IS NOT NULL").Update("snapshot_id", nil).Error; err != nil {
			return err
		}
		res := tx.Where("1 = 1").Delete(&models.Snapshot{})
		if res.Error != nil {
			return res.Error
		}
		deleted = res.RowsAffected
		return nil
	})
	if err != nil {
		return 0, storeErr(err)
	}

	s.logs.Record(models.LogLevelWarning, "snapshot", "All snapshots deleted", map[string]any{"deleted": deleted})
	return deleted, nil
}
