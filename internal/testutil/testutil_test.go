package testutil_test

import (
	"testing"
	"time"

	apperrors "folio/internal/errors"
	"folio/internal/models"
	"folio/internal/testutil"
)

func TestSetupTestDB(t *testing.T) {
	db := testutil.SetupTestDB(t)

	var count int64
	for _, table := range []string{"transactions", "prices", "fx_rates", "instruments", "snapshots", "snapshot_values", "snapshot_holdings", "snapshot_runs", "journal_trades", "system_logs"} {
		if err := db.Table(table).Count(&count).Error; err != nil {
			t.Errorf("table %q should exist after migration: %v", table, err)
		}
	}
}

func TestFixtures(t *testing.T) {
	db := testutil.SetupTestDB(t)
	at := time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)

	tx := testutil.CreateTestTransaction(t, db, "PEA:FR0000120271", models.OperationBuy, "10", "55.2", at, testutil.WithFee("1.5"), testutil.WithExternalRef("csv-7"))
	if tx.ID == "" || tx.Sequence == 0 {
		t.Fatalf("expected id and sequence to be assigned, got %q %d", tx.ID, tx.Sequence)
	}

	var stored models.Transaction
	if err := db.First(&stored, "id = ?", tx.ID).Error; err != nil {
		t.Fatalf("failed to reload transaction: %v", err)
	}
	testutil.AssertDecimal(t, stored.Quantity, "10", "quantity")
	testutil.AssertDecimal(t, stored.Fee, "1.5", "fee")
	testutil.AssertDecimal(t, stored.Total, "552", "total")
	if stored.PortfolioType != models.PortfolioPEA {
		t.Errorf("expected PEA, got %s", stored.PortfolioType)
	}
	if stored.ExternalRef == nil || *stored.ExternalRef != "csv-7" {
		t.Errorf("expected external ref csv-7, got %v", stored.ExternalRef)
	}

	price := testutil.CreateTestPrice(t, db, "PEA:FR0000120271", "60", at)
	if price.ID == "" {
		t.Error("expected price id")
	}
}

func TestAssertAppError(t *testing.T) {
	testutil.AssertAppError(t, apperrors.Wrap(apperrors.ErrStoreUnavailable, nil), "STORE_UNAVAILABLE")
}
