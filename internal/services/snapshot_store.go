package services

import (
	"context"
	"errors"
	"sort"

	"gorm.io/gorm"

	"folio/internal/models"
	"folio/internal/snapshot"
	"folio/internal/valuation"
)

// snapshotStore persists snapshots and run records through gorm.
type snapshotStore struct {
	db *gorm.DB
}

// NewSnapshotStore creates a gorm-backed snapshot.Store.
func NewSnapshotStore(db *gorm.DB) snapshot.Store {
	return &snapshotStore{db: db}
}

// SaveSnapshot commits the snapshot with its value and holding rows in one
// transaction. A stored snapshot at the same instant is kept when its
// fingerprint matches and replaced otherwise.
func (s *snapshotStore) SaveSnapshot(ctx context.Context, snap *snapshot.Snapshot) (*snapshot.Snapshot, error) {
	row := toSnapshotModel(snap)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.Snapshot
		err := tx.Where("taken_at = ?", row.TakenAt).First(&existing).Error
		switch {
		case err == nil && existing.Fingerprint == row.Fingerprint:
			row.ID = existing.ID
			return nil
		case err == nil:
			if err := deleteSnapshotRows(tx, existing.ID); err != nil {
				return err
			}
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return err
		}
		return tx.Create(row).Error
	})
	if err != nil {
		return nil, storeErr(err)
	}

	out := *snap
	out.ID = row.ID
	return &out, nil
}

// SaveRun creates the run record on first save and updates it afterwards.
func (s *snapshotStore) SaveRun(ctx context.Context, run *snapshot.Run) error {
	row := models.SnapshotRun{
		ID:         run.ID,
		TakenAt:    run.At,
		Status:     string(run.Status),
		Trigger:    run.Trigger,
		StartedAt:  run.StartedAt,
		FinishedAt: run.FinishedAt,
		Warnings:   models.StringList(run.Warnings),
		Error:      run.Error,
	}
	if run.SnapshotID != "" {
		id := run.SnapshotID
		row.SnapshotID = &id
	}

	db := s.db.WithContext(ctx)
	if row.ID == "" {
		if err := db.Create(&row).Error; err != nil {
			return storeErr(err)
		}
		run.ID = row.ID
		return nil
	}
	if err := db.Save(&row).Error; err != nil {
		return storeErr(err)
	}
	return nil
}

func deleteSnapshotRows(tx *gorm.DB, snapshotID string) error {
	if err := tx.Where("snapshot_id = ?", snapshotID).Delete(&models.SnapshotHolding{}).Error; err != nil {
		return err
	}
	if err := tx.Where("snapshot_id = ?", snapshotID).Delete(&models.SnapshotValue{}).Error; err != nil {
		return err
	}
	return tx.Where("id = ?", snapshotID).Delete(&models.Snapshot{}).Error
}

func toSnapshotModel(snap *snapshot.Snapshot) *models.Snapshot {
	p := snap.Portfolio
	row := &models.Snapshot{
		TakenAt:       snap.At.UTC(),
		TotalValue:    p.Total.MarketValue,
		TotalInvested: p.Total.Invested,
		RealizedPnL:   p.Total.Realized,
		Distributions: p.Total.Distributions,
		UnrealizedPnL: p.Total.Unrealized,
		TotalPnL:      p.Total.TotalPnL,
		Fingerprint:   snap.Fingerprint,
		Warnings:      models.StringList(p.Warnings),
	}

	for _, ptype := range sortedTypes(p) {
		t := p.ByType[ptype]
		row.Values = append(row.Values, models.SnapshotValue{
			PortfolioType: ptype,
			Value:         t.MarketValue,
			Invested:      t.Invested,
			TotalPnL:      t.TotalPnL,
		})
	}
	for _, h := range p.Holdings {
		row.Holdings = append(row.Holdings, models.SnapshotHolding{
			AssetID:       h.AssetID,
			Asset:         h.Asset,
			Symbol:        h.Symbol,
			ISIN:          h.ISIN,
			PortfolioType: h.PortfolioType,
			Quantity:      h.Quantity,
			AverageCost:   h.AverageCost,
			Invested:      h.Invested,
			MarketPrice:   h.MarketPrice,
			MarketValue:   h.MarketValue,
			Unrealized:    h.Unrealized,
			UnrealizedPct: h.UnrealizedPct,
			PricedAtCost:  h.PricedAtCost,
		})
	}
	return row
}

func sortedTypes(p *valuation.Portfolio) []string {
	types := make([]string, 0, len(p.ByType))
	for k := range p.ByType {
		types = append(types, k)
	}
	sort.Strings(types)
	return types
}
