package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Price is a recorded market price in settlement currency.
// Immutable time-series data: no Base embed, no soft deletes.
type Price struct {
	ID         string          `gorm:"type:uuid;primaryKey" json:"id"`
	AssetID    string          `gorm:"not null;uniqueIndex:uq_prices_asset_ts_source,priority:1;index:idx_prices_asset_ts,priority:1" json:"asset_id"`
	RecordedAt time.Time       `gorm:"not null;uniqueIndex:uq_prices_asset_ts_source,priority:2;index:idx_prices_asset_ts,priority:2" json:"recorded_at"`
	Price      decimal.Decimal `gorm:"type:numeric(28,10);not null" json:"price"`
	Source     string          `gorm:"not null;uniqueIndex:uq_prices_asset_ts_source,priority:3" json:"source"`
}

// BeforeCreate hook generates a UUIDv7 for new records
func (p *Price) BeforeCreate(tx *gorm.DB) error {
	assignID(&p.ID)
	return nil
}

// FxRate is a recorded conversion rate: 1 Base = Rate Quote.
type FxRate struct {
	ID         string          `gorm:"type:uuid;primaryKey" json:"id"`
	RecordedAt time.Time       `gorm:"not null;uniqueIndex:uq_fx_rates_ts_pair,priority:1" json:"recorded_at"`
	Base       string          `gorm:"not null;size:8;uniqueIndex:uq_fx_rates_ts_pair,priority:2" json:"base"`
	Quote      string          `gorm:"not null;size:8;uniqueIndex:uq_fx_rates_ts_pair,priority:3" json:"quote"`
	Rate       decimal.Decimal `gorm:"type:numeric(28,10);not null" json:"rate"`
	Source     string          `gorm:"not null" json:"source"`
}

// BeforeCreate hook generates a UUIDv7 for new records
func (f *FxRate) BeforeCreate(tx *gorm.DB) error {
	assignID(&f.ID)
	return nil
}
