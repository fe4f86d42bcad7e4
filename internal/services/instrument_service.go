package services

import (
	"strings"

	"github.com/Rhymond/go-money"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	apperrors "folio/internal/errors"
	"folio/internal/models"
	"folio/internal/pagination"
)

// Market-data providers an instrument can be bound to.
const (
	ProviderYahoo     = "yahoo"
	ProviderCoinGecko = "coingecko"
)

// instrumentService maps asset ids to provider symbols.
type instrumentService struct {
	db *gorm.DB
}

// NewInstrumentService creates a new InstrumentServicer.
func NewInstrumentService(db *gorm.DB) InstrumentServicer {
	return &instrumentService{db: db}
}

// UpsertInstrument creates the mapping for an asset id or replaces the
// existing one.
func (s *instrumentService) UpsertInstrument(in models.Instrument) (*models.Instrument, error) {
	in.AssetID = strings.ToUpper(strings.TrimSpace(in.AssetID))
	in.Provider = strings.ToLower(strings.TrimSpace(in.Provider))
	in.ProviderSymbol = strings.TrimSpace(in.ProviderSymbol)
	in.Exchange = strings.ToUpper(strings.TrimSpace(in.Exchange))
	in.Currency = strings.ToUpper(strings.TrimSpace(in.Currency))

	if !strings.Contains(in.AssetID, ":") {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "Asset id must look like TYPE:IDENT")
	}
	switch in.Provider {
	case ProviderYahoo, ProviderCoinGecko:
	default:
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "Provider must be yahoo or coingecko")
	}
	if in.ProviderSymbol == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "Provider symbol is required")
	}
	if money.GetCurrency(in.Currency) == nil {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "Currency must be an ISO 4217 code")
	}

	in.ID = ""
	err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "asset_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "provider", "provider_symbol", "exchange", "currency", "updated_at"}),
	}).Create(&in).Error
	if err != nil {
		return nil, storeErr(err)
	}
	return s.GetInstrument(in.AssetID)
}

// GetInstrument returns the mapping for an asset id.
func (s *instrumentService) GetInstrument(assetID string) (*models.Instrument, error) {
	var inst models.Instrument
	if err := s.db.Where("asset_id = ?", strings.ToUpper(strings.TrimSpace(assetID))).First(&inst).Error; err != nil {
		return nil, notFound(err, apperrors.ErrInstrumentNotFound)
	}
	return &inst, nil
}

// ListInstruments returns a paginated list of instruments ordered by asset id.
func (s *instrumentService) ListInstruments(page pagination.PageRequest) (*pagination.PageResponse[models.Instrument], error) {
	page.Defaults()

	var totalItems int64
	base := s.db.Model(&models.Instrument{})
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, storeErr(err)
	}

	var instruments []models.Instrument
	if err := base.Order("asset_id ASC").Scopes(pagination.Paginate(page)).Find(&instruments).Error; err != nil {
		return nil, storeErr(err)
	}

	result := pagination.NewPageResponse(instruments, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// InstrumentsFor returns the mappings that exist for the given asset ids.
func (s *instrumentService) InstrumentsFor(assetIDs []string) (map[string]models.Instrument, error) {
	out := make(map[string]models.Instrument, len(assetIDs))
	if len(assetIDs) == 0 {
		return out, nil
	}

	var instruments []models.Instrument
	if err := s.db.Where("asset_id IN ?", assetIDs).Find(&instruments).Error; err != nil {
		return nil, storeErr(err)
	}
	for _, inst := range instruments {
		out[inst.AssetID] = inst
	}
	return out, nil
}
