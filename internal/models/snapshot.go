package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Snapshot is a point-in-time valuation of the whole portfolio.
// Immutable time-series data: no Base embed, no soft deletes.
type Snapshot struct {
	ID            string            `gorm:"type:uuid;primaryKey" json:"id"`
	TakenAt       time.Time         `gorm:"not null;uniqueIndex" json:"taken_at"`
	TotalValue    decimal.Decimal   `gorm:"type:numeric(28,10);not null" json:"total_value"`
	TotalInvested decimal.Decimal   `gorm:"type:numeric(28,10);not null" json:"total_invested"`
	RealizedPnL   decimal.Decimal   `gorm:"column:realized_pnl;type:numeric(28,10);not null" json:"realized_pnl"`
	Distributions decimal.Decimal   `gorm:"type:numeric(28,10);not null" json:"distributions"`
	UnrealizedPnL decimal.Decimal   `gorm:"column:unrealized_pnl;type:numeric(28,10);not null" json:"unrealized_pnl"`
	TotalPnL      decimal.Decimal   `gorm:"column:total_pnl;type:numeric(28,10);not null" json:"total_pnl"`
	Fingerprint   string            `gorm:"not null;size:64" json:"fingerprint"`
	Warnings      StringList        `gorm:"type:text" json:"warnings"`
	CreatedAt     time.Time         `json:"created_at"`
	Values        []SnapshotValue   `gorm:"foreignKey:SnapshotID;constraint:OnDelete:CASCADE" json:"values,omitempty"`
	Holdings      []SnapshotHolding `gorm:"foreignKey:SnapshotID;constraint:OnDelete:CASCADE" json:"holdings,omitempty"`
}

// BeforeCreate hook generates a UUIDv7 for new records
func (s *Snapshot) BeforeCreate(tx *gorm.DB) error {
	assignID(&s.ID)
	return nil
}

// SnapshotValue is the value of one portfolio type inside a snapshot.
type SnapshotValue struct {
	ID            string          `gorm:"type:uuid;primaryKey" json:"id"`
	SnapshotID    string          `gorm:"type:uuid;not null;index" json:"snapshot_id"`
	PortfolioType string          `gorm:"not null" json:"portfolio_type"`
	Value         decimal.Decimal `gorm:"type:numeric(28,10);not null" json:"value"`
	Invested      decimal.Decimal `gorm:"type:numeric(28,10);not null" json:"invested"`
	TotalPnL      decimal.Decimal `gorm:"column:total_pnl;type:numeric(28,10);not null" json:"total_pnl"`
}

// BeforeCreate hook generates a UUIDv7 for new records
func (v *SnapshotValue) BeforeCreate(tx *gorm.DB) error {
	assignID(&v.ID)
	return nil
}

// SnapshotHolding is one open position as valued inside a snapshot.
type SnapshotHolding struct {
	ID            string          `gorm:"type:uuid;primaryKey" json:"id"`
	SnapshotID    string          `gorm:"type:uuid;not null;index" json:"snapshot_id"`
	AssetID       string          `gorm:"not null" json:"asset_id"`
	Asset         string          `gorm:"not null" json:"asset"`
	Symbol        string          `json:"symbol,omitempty"`
	ISIN          string          `gorm:"column:isin" json:"isin,omitempty"`
	PortfolioType string          `gorm:"not null" json:"portfolio_type"`
	Quantity      decimal.Decimal `gorm:"type:numeric(28,10);not null" json:"quantity"`
	AverageCost   decimal.Decimal `gorm:"type:numeric(28,10);not null" json:"average_cost"`
	Invested      decimal.Decimal `gorm:"type:numeric(28,10);not null" json:"invested"`
	MarketPrice   decimal.Decimal `gorm:"type:numeric(28,10);not null" json:"market_price"`
	MarketValue   decimal.Decimal `gorm:"type:numeric(28,10);not null" json:"market_value"`
	Unrealized    decimal.Decimal `gorm:"column:unrealized_pnl;type:numeric(28,10);not null" json:"unrealized_pnl"`
	UnrealizedPct decimal.Decimal `gorm:"column:unrealized_pnl_pct;type:numeric(28,10);not null" json:"unrealized_pnl_pct"`
	PricedAtCost  bool            `gorm:"not null;default:false" json:"priced_at_cost"`
}

// BeforeCreate hook generates a UUIDv7 for new records
func (h *SnapshotHolding) BeforeCreate(tx *gorm.DB) error {
	assignID(&h.ID)
	return nil
}

// SnapshotRun records one recomputation attempt and its outcome.
type SnapshotRun struct {
	ID         string     `gorm:"type:uuid;primaryKey" json:"id"`
	TakenAt    time.Time  `gorm:"not null;index" json:"taken_at"`
	Status     string     `gorm:"not null;size:32" json:"status"`
	Trigger    string     `gorm:"not null;size:16" json:"trigger"`
	StartedAt  time.Time  `gorm:"not null" json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	SnapshotID *string    `gorm:"type:uuid" json:"snapshot_id,omitempty"`
	Warnings   StringList `gorm:"type:text" json:"warnings"`
	Error      string     `json:"error,omitempty"`
}

// BeforeCreate hook generates a UUIDv7 for new records
func (r *SnapshotRun) BeforeCreate(tx *gorm.DB) error {
	assignID(&r.ID)
	return nil
}
