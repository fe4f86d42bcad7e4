package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"folio/internal/costbasis"
	"folio/internal/models"
	"folio/internal/testutil"
)

type stubFetcher struct {
	rate  decimal.Decimal
	err   error
	calls int
}

func (f *stubFetcher) Name() string { return "stub" }

func (f *stubFetcher) GetRate(_ context.Context, _, _ string) (decimal.Decimal, error) {
	f.calls++
	return f.rate, f.err
}

func TestFxService_GetRate(t *testing.T) {
	ctx := context.Background()
	t0 := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	t.Run("same_currency", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		rate, err := NewFxService(db, nil).GetRate(ctx, "eur", "EUR", t0)
		testutil.AssertNoError(t, err)
		testutil.AssertDecimal(t, rate, "1", "rate")
	})

	t.Run("stored_pair", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		testutil.CreateTestFxRate(t, db, "USD", "EUR", "0.90", t0)
		testutil.CreateTestFxRate(t, db, "USD", "EUR", "0.95", t0.AddDate(0, 0, 10))

		rate, err := NewFxService(db, nil).GetRate(ctx, "USD", "EUR", t0.AddDate(0, 0, 5))
		testutil.AssertNoError(t, err)
		testutil.AssertDecimal(t, rate, "0.9", "rate")
	})

	t.Run("inverse_pair", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		testutil.CreateTestFxRate(t, db, "EUR", "USD", "1.25", t0)

		rate, err := NewFxService(db, nil).GetRate(ctx, "USD", "EUR", t0)
		testutil.AssertNoError(t, err)
		testutil.AssertDecimal(t, rate, "0.8", "rate")
	})

	t.Run("fetcher_fallback_is_recorded", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		fetcher := &stubFetcher{rate: testutil.D("0.0061")}
		svc := NewFxService(db, fetcher)

		rate, err := svc.GetRate(ctx, "JPY", "EUR", t0)
		testutil.AssertNoError(t, err)
		testutil.AssertDecimal(t, rate, "0.0061", "rate")

		// The second lookup is served from the stored row.
		_, err = svc.GetRate(ctx, "JPY", "EUR", t0)
		testutil.AssertNoError(t, err)
		if fetcher.calls != 1 {
			t.Errorf("expected 1 fetch, got %d", fetcher.calls)
		}

		var stored models.FxRate
		testutil.AssertNoError(t, db.Where("base = ? AND quote = ?", "JPY", "EUR").First(&stored).Error)
		if stored.Source != "stub" {
			t.Errorf("expected source stub, got %s", stored.Source)
		}
	})

	t.Run("unavailable", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := NewFxService(db, &stubFetcher{err: errors.New("offline")})

		_, err := svc.Convert(ctx, testutil.D("10"), "GBP", "EUR", t0)
		if !errors.Is(err, costbasis.ErrConversionUnavailable) {
			t.Errorf("expected ErrConversionUnavailable, got %v", err)
		}
	})
}

func TestFxService_ConvertFeedsEngine(t *testing.T) {
	db := testutil.SetupTestDB(t)
	t0 := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	testutil.CreateTestFxRate(t, db, "BNB", "EUR", "500", t0.Add(-time.Hour))

	engine := costbasis.NewEngine("EUR", NewFxService(db, nil))
	pos := engine.Replay(context.Background(), "CRYPTO:BTC", []costbasis.Transaction{{
		ID: "t1", AssetID: "CRYPTO:BTC", PortfolioType: "CRYPTO", Operation: costbasis.OpBuy,
		TradedAt: t0, Quantity: testutil.D("1"), UnitPrice: testutil.D("60000"),
		FeeAsset: "BNB", FeeQuantity: testutil.D("0.01"),
	}}, time.Time{})

	testutil.AssertDecimal(t, pos.Invested, "60005", "invested")
	if len(pos.Warnings) != 0 {
		t.Errorf("expected no warnings, got %v", pos.Warnings)
	}
}

func TestFxService_RecordRate(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := NewFxService(db, nil)
	at := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	r, err := svc.RecordRate("usd", "eur", testutil.D("0.92"), at, "")
	testutil.AssertNoError(t, err)
	if r.Base != "USD" || r.Quote != "EUR" || r.Source != "manual" {
		t.Errorf("unexpected row %+v", r)
	}

	_, err = svc.RecordRate("EUR", "EUR", testutil.D("1"), at, "")
	testutil.AssertAppError(t, err, "INVALID_INPUT")

	_, err = svc.RecordRate("USD", "EUR", testutil.D("-1"), at, "")
	testutil.AssertAppError(t, err, "INVALID_INPUT")
}
