package models

import (
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"folio/internal/costbasis"
)

// Transaction operations accepted at ingestion.
const (
	OperationBuy           = string(costbasis.OpBuy)
	OperationSell          = string(costbasis.OpSell)
	OperationDividend      = string(costbasis.OpDividend)
	OperationStakingReward = string(costbasis.OpStakingReward)
	OperationTransferIn    = string(costbasis.OpTransferIn)
	OperationTransferOut   = string(costbasis.OpTransferOut)
)

// Transaction is an immutable-in-meaning record of a portfolio event. Edits
// are allowed but every edit triggers a full replay of the asset.
type Transaction struct {
	Base
	Source        string          `gorm:"not null;default:''" json:"source"`
	PortfolioType string          `gorm:"not null;index" json:"portfolio_type"`
	Operation     string          `gorm:"not null" json:"operation"`
	AssetID       string          `gorm:"not null;index" json:"asset_id"`
	Asset         string          `gorm:"not null" json:"asset"`
	Symbol        string          `json:"symbol,omitempty"`
	ISIN          string          `gorm:"column:isin" json:"isin,omitempty"`
	MIC           string          `gorm:"column:mic" json:"mic,omitempty"`
	Quantity      decimal.Decimal `gorm:"type:numeric(28,10);not null" json:"quantity"`
	UnitPrice     decimal.Decimal `gorm:"type:numeric(28,10);not null" json:"unit_price"`
	Fee           decimal.Decimal `gorm:"type:numeric(28,10);not null" json:"fee"`
	FeeAsset      string          `json:"fee_asset,omitempty"`
	FeeQuantity   decimal.Decimal `gorm:"type:numeric(28,10);not null" json:"fee_quantity"`
	FXRate        decimal.Decimal `gorm:"column:fx_rate;type:numeric(28,10);not null" json:"fx_rate"`
	Total         decimal.Decimal `gorm:"type:numeric(28,10);not null" json:"total"`
	TradedAt      time.Time       `gorm:"not null;index" json:"traded_at"`
	Sequence      int64           `gorm:"not null;index" json:"sequence"`
	Notes         string          `json:"notes,omitempty"`
	ExternalRef   *string         `gorm:"uniqueIndex" json:"external_ref,omitempty"`
}

var lastSequence atomic.Int64

// nextSequence returns a strictly increasing insertion sequence. It follows
// the wall clock so that sequences stay ordered across restarts.
func nextSequence() int64 {
	for {
		prev := lastSequence.Load()
		next := time.Now().UnixNano()
		if next <= prev {
			next = prev + 1
		}
		if lastSequence.CompareAndSwap(prev, next) {
			return next
		}
	}
}

// BeforeCreate assigns the id and insertion sequence.
func (t *Transaction) BeforeCreate(tx *gorm.DB) error {
	if err := t.Base.BeforeCreate(tx); err != nil {
		return err
	}
	if t.Sequence == 0 {
		t.Sequence = nextSequence()
	}
	return nil
}

// ToCostBasis converts the stored row into the engine's input record.
func (t *Transaction) ToCostBasis() costbasis.Transaction {
	return costbasis.Transaction{
		ID:            t.ID,
		Sequence:      t.Sequence,
		AssetID:       t.AssetID,
		Asset:         t.Asset,
		Symbol:        t.Symbol,
		ISIN:          t.ISIN,
		PortfolioType: t.PortfolioType,
		Operation:     costbasis.Operation(t.Operation),
		TradedAt:      t.TradedAt.UTC(),
		Quantity:      t.Quantity,
		UnitPrice:     t.UnitPrice,
		Total:         t.Total,
		Fee:           t.Fee,
		FeeAsset:      t.FeeAsset,
		FeeQuantity:   t.FeeQuantity,
	}
}
