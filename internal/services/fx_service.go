package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"folio/internal/costbasis"
	apperrors "folio/internal/errors"
	"folio/internal/logger"
	"folio/internal/models"
)

// RateFetcher fetches a live conversion rate from a market-data provider.
type RateFetcher interface {
	Name() string
	GetRate(ctx context.Context, from, to string) (decimal.Decimal, error)
}

// fxService converts amounts using stored rates. When neither the pair nor
// its inverse has been recorded at or before the requested instant, it falls
// back to the fetcher and records the fetched rate at that instant so later
// replays see the same value.
type fxService struct {
	db      *gorm.DB
	fetcher RateFetcher
}

// NewFxService creates a new FxServicer. fetcher may be nil.
func NewFxService(db *gorm.DB, fetcher RateFetcher) FxServicer {
	return &fxService{db: db, fetcher: fetcher}
}

// Convert implements costbasis.Converter.
func (s *fxService) Convert(ctx context.Context, amount decimal.Decimal, from, to string, asOf time.Time) (decimal.Decimal, error) {
	rate, err := s.GetRate(ctx, from, to, asOf)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %s/%s: %v", costbasis.ErrConversionUnavailable, from, to, err)
	}
	return amount.Mul(rate), nil
}

// GetRate returns how many units of quote one unit of base is worth at asOf.
func (s *fxService) GetRate(ctx context.Context, base, quote string, asOf time.Time) (decimal.Decimal, error) {
	base, quote = strings.ToUpper(strings.TrimSpace(base)), strings.ToUpper(strings.TrimSpace(quote))
	if base == "" || quote == "" {
		return decimal.Zero, apperrors.WithMessage(apperrors.ErrInvalidInput, "Currency pair is incomplete")
	}
	if base == quote {
		return decimal.NewFromInt(1), nil
	}
	asOf = asOf.UTC()

	rate, err := s.storedRate(ctx, base, quote, asOf)
	if err == nil {
		return rate, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return decimal.Zero, storeErr(err)
	}

	inverse, err := s.storedRate(ctx, quote, base, asOf)
	if err == nil && inverse.IsPositive() {
		return decimal.NewFromInt(1).DivRound(inverse, 10), nil
	}
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return decimal.Zero, storeErr(err)
	}

	if s.fetcher == nil {
		return decimal.Zero, apperrors.WithMessage(apperrors.ErrNotFound, fmt.Sprintf("No rate recorded for %s/%s", base, quote))
	}
	rate, err = s.fetcher.GetRate(ctx, base, quote)
	if err != nil {
		return decimal.Zero, err
	}
	if _, err := s.RecordRate(base, quote, rate, asOf, s.fetcher.Name()); err != nil {
		logger.Get().Warnw("failed to record fetched fx rate", "pair", base+quote, "error", err)
	}
	return rate, nil
}

func (s *fxService) storedRate(ctx context.Context, base, quote string, asOf time.Time) (decimal.Decimal, error) {
	var row models.FxRate
	err := s.db.WithContext(ctx).
		Where("base = ? AND quote = ? AND recorded_at <= ?", base, quote, asOf).
		Order("recorded_at DESC").
		First(&row).Error
	if err != nil {
		return decimal.Zero, err
	}
	return row.Rate, nil
}

// RecordRate stores a rate, returning the existing row when the pair was
// already recorded at that instant.
func (s *fxService) RecordRate(base, quote string, rate decimal.Decimal, at time.Time, source string) (*models.FxRate, error) {
	base, quote = strings.ToUpper(strings.TrimSpace(base)), strings.ToUpper(strings.TrimSpace(quote))
	if base == "" || quote == "" || base == quote {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "Currency pair must name two different currencies")
	}
	if !rate.IsPositive() {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "Rate must be positive")
	}
	if at.IsZero() {
		at = time.Now()
	}
	if source == "" {
		source = "manual"
	}

	row := models.FxRate{
		Base:       base,
		Quote:      quote,
		Rate:       rate,
		RecordedAt: at.UTC(),
		Source:     source,
	}
	if err := s.db.Where("base = ? AND quote = ? AND recorded_at = ?", base, quote, row.RecordedAt).
		FirstOrCreate(&row).Error; err != nil {
		return nil, storeErr(err)
	}
	return &row, nil
}
