package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	apperrors "folio/internal/errors"
	"folio/internal/models"
	"folio/internal/pagination"
	"folio/internal/valuation"
)

// priceService handles market price storage and point-in-time lookups.
type priceService struct {
	db *gorm.DB
}

// NewPriceService creates a new PriceServicer.
func NewPriceService(db *gorm.DB) PriceServicer {
	return &priceService{db: db}
}

// GetPrice returns the latest price recorded at or before at.
func (s *priceService) GetPrice(ctx context.Context, assetID string, at time.Time) (*valuation.Quote, error) {
	var price models.Price
	err := s.db.WithContext(ctx).
		Where("asset_id = ? AND recorded_at <= ?", assetID, at.UTC()).
		Order("recorded_at DESC").
		First(&price).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, valuation.ErrPriceUnavailable
		}
		return nil, storeErr(err)
	}
	return &valuation.Quote{Price: price.Price, AsOf: price.RecordedAt, Source: price.Source}, nil
}

// RecordPrices inserts price entries, skipping ones already recorded for the
// same asset, timestamp and source.
func (s *priceService) RecordPrices(prices []PriceInput) (int, error) {
	if len(prices) == 0 {
		return 0, apperrors.WithMessage(apperrors.ErrInvalidInput, "Prices array is empty")
	}

	for i, p := range prices {
		if strings.TrimSpace(p.AssetID) == "" {
			return 0, apperrors.WithMessage(apperrors.ErrInvalidInput, "Asset id is required")
		}
		if !p.Price.IsPositive() {
			return 0, apperrors.WithMessage(apperrors.ErrInvalidInput, "Price must be positive")
		}
		if p.RecordedAt.IsZero() {
			prices[i].RecordedAt = time.Now()
		}
		if p.Source == "" {
			prices[i].Source = "manual"
		}
	}

	count := 0
	for _, p := range prices {
		row := models.Price{
			AssetID:    strings.TrimSpace(p.AssetID),
			Price:      p.Price,
			RecordedAt: p.RecordedAt.UTC(),
			Source:     p.Source,
		}
		result := s.db.Where("asset_id = ? AND recorded_at = ? AND source = ?", row.AssetID, row.RecordedAt, row.Source).
			FirstOrCreate(&row)
		if result.Error != nil {
			return count, storeErr(result.Error)
		}
		if result.RowsAffected > 0 {
			count++
		}
	}

	return count, nil
}

// GetPriceHistory returns paginated price history for an asset within a date range.
func (s *priceService) GetPriceHistory(
	assetID string,
	from, to time.Time,
	page pagination.PageRequest,
) (*pagination.PageResponse[models.Price], error) {
	page.Defaults()

	var totalItems int64
	base := s.db.Model(&models.Price{}).
		Where("asset_id = ? AND recorded_at >= ? AND recorded_at <= ?", assetID, from.UTC(), to.UTC())
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, storeErr(err)
	}

	var prices []models.Price
	if err := base.Order("recorded_at DESC").Scopes(pagination.Paginate(page)).Find(&prices).Error; err != nil {
		return nil, storeErr(err)
	}

	result := pagination.NewPageResponse(prices, page.Page, page.PageSize, totalItems)
	return &result, nil
}
