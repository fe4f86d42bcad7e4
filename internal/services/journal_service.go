package services

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	apperrors "folio/internal/errors"
	"folio/internal/models"
	"folio/internal/pagination"
)

// journalService manages the trade journal.
type journalService struct {
	db *gorm.DB
}

// NewJournalService creates a new JournalServicer.
func NewJournalService(db *gorm.DB) JournalServicer {
	return &journalService{db: db}
}

// CreateTrade records a new journal trade. Status defaults to OPEN.
func (s *journalService) CreateTrade(in JournalTradeInput) (*models.JournalTrade, error) {
	trade := &models.JournalTrade{Status: models.JournalStatusOpen}
	applyJournalInput(trade, in)

	if err := validateJournalTrade(trade); err != nil {
		return nil, err
	}

	if err := s.db.Create(trade).Error; err != nil {
		return nil, storeErr(err)
	}
	return trade, nil
}

// UpdateTrade applies a partial update. Moving a trade to CLOSED stamps
// ClosedAt when the caller did not send one.
func (s *journalService) UpdateTrade(id string, in JournalTradeInput) (*models.JournalTrade, error) {
	trade, err := s.GetTrade(id)
	if err != nil {
		return nil, err
	}

	applyJournalInput(trade, in)
	if trade.Status == models.JournalStatusClosed && trade.ClosedAt == nil {
		now := time.Now().UTC()
		trade.ClosedAt = &now
	}
	if err := validateJournalTrade(trade); err != nil {
		return nil, err
	}

	if err := s.db.Save(trade).Error; err != nil {
		return nil, storeErr(err)
	}
	return trade, nil
}

// DeleteTrade soft-deletes a journal trade.
func (s *journalService) DeleteTrade(id string) error {
	res := s.db.Where("id = ?", id).Delete(&models.JournalTrade{})
	if res.Error != nil {
		return storeErr(res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.ErrJournalTradeNotFound
	}
	return nil
}

// GetTrade returns a journal trade by id.
func (s *journalService) GetTrade(id string) (*models.JournalTrade, error) {
	var trade models.JournalTrade
	if err := s.db.Where("id = ?", id).First(&trade).Error; err != nil {
		return nil, notFound(err, apperrors.ErrJournalTradeNotFound)
	}
	return &trade, nil
}

// ListTrades returns paginated trades, most recently opened first.
func (s *journalService) ListTrades(status *string, page pagination.PageRequest) (*pagination.PageResponse[models.JournalTrade], error) {
	page.Defaults()

	base := s.db.Model(&models.JournalTrade{})
	if status != nil {
		base = base.Where("status = ?", strings.ToUpper(*status))
	}

	var totalItems int64
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, storeErr(err)
	}

	var trades []models.JournalTrade
	if err := base.Order("opened_at DESC").Order("created_at DESC").Scopes(pagination.Paginate(page)).Find(&trades).Error; err != nil {
		return nil, storeErr(err)
	}

	result := pagination.NewPageResponse(trades, page.Page, page.PageSize, totalItems)
	return &result, nil
}

func applyJournalInput(trade *models.JournalTrade, in JournalTradeInput) {
	if in.Asset != nil {
		trade.Asset = strings.ToUpper(strings.TrimSpace(*in.Asset))
	}
	if in.Pair != nil {
		trade.Pair = strings.ToUpper(strings.TrimSpace(*in.Pair))
	}
	if in.Setup != nil {
		trade.Setup = strings.TrimSpace(*in.Setup)
	}
	if in.Entry != nil {
		trade.Entry = nullDecimal(*in.Entry)
	}
	if in.Stop != nil {
		trade.Stop = nullDecimal(*in.Stop)
	}
	if in.Target != nil {
		trade.Target = nullDecimal(*in.Target)
	}
	if in.RiskR != nil {
		trade.RiskR = nullDecimal(*in.RiskR)
	}
	if in.ResultR != nil {
		trade.ResultR = nullDecimal(*in.ResultR)
	}
	if in.Status != nil {
		trade.Status = strings.ToUpper(strings.TrimSpace(*in.Status))
	}
	if in.OpenedAt != nil {
		t := in.OpenedAt.UTC()
		trade.OpenedAt = &t
	}
	if in.ClosedAt != nil {
		t := in.ClosedAt.UTC()
		trade.ClosedAt = &t
	}
	if in.Notes != nil {
		trade.Notes = *in.Notes
	}
}

func validateJournalTrade(trade *models.JournalTrade) error {
	if trade.Asset == "" {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "Asset is required")
	}
	if trade.Pair == "" {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "Pair is required")
	}
	switch trade.Status {
	case models.JournalStatusOpen:
	case models.JournalStatusClosed:
		if !trade.ResultR.Valid {
			return apperrors.ErrJournalResultMissing
		}
	default:
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "Status must be OPEN or CLOSED")
	}
	if trade.OpenedAt != nil && trade.ClosedAt != nil && trade.ClosedAt.Before(*trade.OpenedAt) {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "Closed date cannot precede opened date")
	}
	return nil
}

func nullDecimal(d decimal.Decimal) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: d, Valid: true}
}
