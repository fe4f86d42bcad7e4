package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"folio/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// counter provides unique values across fixtures within a test run.
var counter atomic.Int64

func nextID() int64 {
	return counter.Add(1)
}

// D parses a decimal literal, panicking on malformed input.
func D(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// TxOption customizes a fixture transaction before insert.
type TxOption func(*models.Transaction)

// WithFee sets the settlement-currency fee.
func WithFee(fee string) TxOption {
	return func(tx *models.Transaction) { tx.Fee = D(fee) }
}

// WithExternalRef sets the import reference.
func WithExternalRef(ref string) TxOption {
	return func(tx *models.Transaction) { tx.ExternalRef = &ref }
}

// CreateTestTransaction inserts a transaction on assetID ("<TYPE>:<IDENT>").
func CreateTestTransaction(t *testing.T, db *gorm.DB, assetID, operation, quantity, unitPrice string, tradedAt time.Time, opts ...TxOption) *models.Transaction {
	t.Helper()

	ptype, ident := splitAssetID(assetID)
	tx := &models.Transaction{
		Source:        "TEST",
		PortfolioType: ptype,
		Operation:     operation,
		AssetID:       assetID,
		Asset:         ident,
		Symbol:        ident,
		Quantity:      D(quantity),
		UnitPrice:     D(unitPrice),
		Total:         D(quantity).Mul(D(unitPrice)),
		FXRate:        decimal.NewFromInt(1),
		TradedAt:      tradedAt.UTC(),
	}
	for _, opt := range opts {
		opt(tx)
	}
	if err := db.Create(tx).Error; err != nil {
		t.Fatalf("failed to create test transaction: %v", err)
	}
	return tx
}

// CreateTestPrice records a price for assetID at the given instant.
func CreateTestPrice(t *testing.T, db *gorm.DB, assetID, price string, at time.Time) *models.Price {
	t.Helper()

	p := &models.Price{
		AssetID:    assetID,
		RecordedAt: at.UTC(),
		Price:      D(price),
		Source:     fmt.Sprintf("test-%d", nextID()),
	}
	if err := db.Create(p).Error; err != nil {
		t.Fatalf("failed to create test price: %v", err)
	}
	return p
}

// CreateTestFxRate records a conversion rate.
func CreateTestFxRate(t *testing.T, db *gorm.DB, base, quote, rate string, at time.Time) *models.FxRate {
	t.Helper()

	r := &models.FxRate{
		RecordedAt: at.UTC(),
		Base:       base,
		Quote:      quote,
		Rate:       D(rate),
		Source:     "test",
	}
	if err := db.Create(r).Error; err != nil {
		t.Fatalf("failed to create test fx rate: %v", err)
	}
	return r
}

// CreateTestJournalTrade inserts an open journal trade.
func CreateTestJournalTrade(t *testing.T, db *gorm.DB) *models.JournalTrade {
	t.Helper()

	n := nextID()
	trade := &models.JournalTrade{
		Asset:  fmt.Sprintf("ASSET%d", n),
		Pair:   fmt.Sprintf("ASSET%d/EUR", n),
		Setup:  "breakout",
		Entry:  decimal.NewNullDecimal(D("100")),
		Stop:   decimal.NewNullDecimal(D("95")),
		Target: decimal.NewNullDecimal(D("115")),
		RiskR:  decimal.NewNullDecimal(D("1")),
		Status: models.JournalStatusOpen,
	}
	if err := db.Create(trade).Error; err != nil {
		t.Fatalf("failed to create test journal trade: %v", err)
	}
	return trade
}

func splitAssetID(assetID string) (string, string) {
	for i := 0; i < len(assetID); i++ {
		if assetID[i] == ':' {
			return assetID[:i], assetID[i+1:]
		}
	}
	return models.PortfolioPEA, assetID
}
