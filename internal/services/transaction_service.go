package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"folio/internal/costbasis"
	apperrors "folio/internal/errors"
	"folio/internal/models"
	"folio/internal/pagination"
)

// transactionService handles transaction-related business logic.
type transactionService struct {
	db    *gorm.DB
	cache PositionInvalidator
}

// NewTransactionService creates a new TransactionServicer. Every mutation
// invalidates the affected assets in cache before returning.
func NewTransactionService(db *gorm.DB, cache PositionInvalidator) TransactionServicer {
	return &transactionService{db: db, cache: cache}
}

// CreateTransaction validates, normalizes and stores a transaction.
func (s *transactionService) CreateTransaction(in TransactionInput) (*models.Transaction, error) {
	tx, err := buildTransaction(in)
	if err != nil {
		return nil, err
	}

	if err := s.db.Create(tx).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, apperrors.ErrDuplicateTransaction
		}
		return nil, storeErr(err)
	}

	s.cache.Invalidate(tx.AssetID)
	return tx, nil
}

// UpdateTransaction applies a partial update. The asset id is re-derived, so
// an edit can move a transaction between assets; both are invalidated.
func (s *transactionService) UpdateTransaction(id string, upd TransactionUpdate) (*models.Transaction, error) {
	existing, err := s.GetTransactionByID(id)
	if err != nil {
		return nil, err
	}
	previousAsset := existing.AssetID

	in := TransactionInput{
		Source:        existing.Source,
		PortfolioType: existing.PortfolioType,
		Operation:     existing.Operation,
		Asset:         existing.Asset,
		Symbol:        existing.Symbol,
		ISIN:          existing.ISIN,
		MIC:           existing.MIC,
		Quantity:      existing.Quantity,
		UnitPrice:     existing.UnitPrice,
		Fee:           existing.Fee,
		FeeAsset:      existing.FeeAsset,
		FeeQuantity:   existing.FeeQuantity,
		FXRate:        existing.FXRate,
		Total:         existing.Total,
		TradedAt:      existing.TradedAt,
		Notes:         existing.Notes,
		ExternalRef:   existing.ExternalRef,
	}
	applyUpdate(&in, upd)
	// A changed quantity or price invalidates the stored total unless the
	// caller sent a new one.
	if upd.Total == nil && (upd.Quantity != nil || upd.UnitPrice != nil) {
		in.Total = decimal.Zero
	}

	updated, err := buildTransaction(in)
	if err != nil {
		return nil, err
	}
	updated.Base = existing.Base
	updated.Sequence = existing.Sequence

	if err := s.db.Save(updated).Error; err != nil {
		return nil, storeErr(err)
	}

	s.cache.Invalidate(previousAsset, updated.AssetID)
	return updated, nil
}

// DeleteTransaction removes a transaction permanently so that its external
// reference can be imported again.
func (s *transactionService) DeleteTransaction(id string) error {
	existing, err := s.GetTransactionByID(id)
	if err != nil {
		return err
	}

	if err := s.db.Unscoped().Delete(&models.Transaction{}, "id = ?", id).Error; err != nil {
		return storeErr(err)
	}

	s.cache.Invalidate(existing.AssetID)
	return nil
}

// GetTransactionByID returns a transaction by its ID.
func (s *transactionService) GetTransactionByID(id string) (*models.Transaction, error) {
	var tx models.Transaction
	if err := s.db.First(&tx, "id = ?", id).Error; err != nil {
		return nil, notFound(err, apperrors.ErrTransactionNotFound)
	}
	return &tx, nil
}

// ListTransactions returns a filtered page of transactions, newest first.
func (s *transactionService) ListTransactions(page pagination.PageRequest, filter TransactionFilter) (*pagination.PageResponse[models.Transaction], error) {
	page.Defaults()

	base := s.db.Model(&models.Transaction{})
	if filter.AssetID != nil {
		base = base.Where("asset_id = ?", *filter.AssetID)
	}
	if filter.PortfolioType != nil {
		base = base.Where("portfolio_type = ?", models.NormalizePortfolioType(*filter.PortfolioType))
	}
	if filter.Operation != nil {
		base = base.Where("operation = ?", strings.ToUpper(*filter.Operation))
	}
	if filter.FromDate != nil {
		base = base.Where("traded_at >= ?", filter.FromDate.UTC())
	}
	if filter.ToDate != nil {
		base = base.Where("traded_at <= ?", filter.ToDate.UTC())
	}

	var totalItems int64
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, storeErr(err)
	}

	var txs []models.Transaction
	if err := base.Order("traded_at DESC, sequence DESC").Scopes(pagination.Paginate(page)).Find(&txs).Error; err != nil {
		return nil, storeErr(err)
	}

	result := pagination.NewPageResponse(txs, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// ImportTransactions inserts a batch in a single database transaction.
// Invalid rows are rejected individually, rows whose external reference is
// already known (in the store or earlier in the batch) are skipped.
func (s *transactionService) ImportTransactions(inputs []TransactionInput) (*ImportResult, error) {
	if len(inputs) == 0 {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "No transactions to import")
	}

	result := &ImportResult{Rejected: []ImportError{}}

	refs := make([]string, 0, len(inputs))
	for _, in := range inputs {
		if in.ExternalRef != nil && strings.TrimSpace(*in.ExternalRef) != "" {
			refs = append(refs, strings.TrimSpace(*in.ExternalRef))
		}
	}
	known := make(map[string]bool, len(refs))
	if len(refs) > 0 {
		var existing []string
		if err := s.db.Model(&models.Transaction{}).Where("external_ref IN ?", refs).Pluck("external_ref", &existing).Error; err != nil {
			return nil, storeErr(err)
		}
		for _, ref := range existing {
			known[ref] = true
		}
	}

	batch := make([]*models.Transaction, 0, len(inputs))
	for i, in := range inputs {
		tx, err := buildTransaction(in)
		if err != nil {
			appErr, _ := apperrors.As(err)
			result.Rejected = append(result.Rejected, ImportError{Index: i, Code: appErr.Code, Message: appErr.Message})
			continue
		}
		if tx.ExternalRef != nil {
			if known[*tx.ExternalRef] {
				result.Skipped++
				continue
			}
			known[*tx.ExternalRef] = true
		}
		batch = append(batch, tx)
	}

	if len(batch) > 0 {
		if err := s.db.Transaction(func(db *gorm.DB) error {
			return db.CreateInBatches(batch, 200).Error
		}); err != nil {
			if isUniqueConstraintError(err) {
				return nil, apperrors.Wrap(apperrors.ErrDuplicateTransaction, err)
			}
			return nil, storeErr(err)
		}
	}
	result.Inserted = len(batch)

	assets := make([]string, 0, len(batch))
	for _, tx := range batch {
		assets = append(assets, tx.AssetID)
	}
	s.cache.Invalidate(assets...)

	return result, nil
}

// AssetIDs returns every asset with at least one transaction, sorted.
func (s *transactionService) AssetIDs(ctx context.Context) ([]string, error) {
	var ids []string
	if err := s.db.WithContext(ctx).Model(&models.Transaction{}).
		Distinct("asset_id").Order("asset_id ASC").Pluck("asset_id", &ids).Error; err != nil {
		return nil, storeErr(err)
	}
	return ids, nil
}

// ListByAsset returns the asset's transactions ordered by trade time, then
// insertion sequence.
func (s *transactionService) ListByAsset(ctx context.Context, assetID string) ([]costbasis.Transaction, error) {
	var rows []models.Transaction
	if err := s.db.WithContext(ctx).Where("asset_id = ?", assetID).
		Order("traded_at ASC, sequence ASC, id ASC").Find(&rows).Error; err != nil {
		return nil, storeErr(err)
	}
	return toCostBasis(rows), nil
}

// ListAll returns the full history in replay order.
func (s *transactionService) ListAll(ctx context.Context) ([]costbasis.Transaction, error) {
	var rows []models.Transaction
	if err := s.db.WithContext(ctx).
		Order("traded_at ASC, sequence ASC, id ASC").Find(&rows).Error; err != nil {
		return nil, storeErr(err)
	}
	return toCostBasis(rows), nil
}

func toCostBasis(rows []models.Transaction) []costbasis.Transaction {
	out := make([]costbasis.Transaction, len(rows))
	for i := range rows {
		out[i] = rows[i].ToCostBasis()
	}
	return out
}

// buildTransaction normalizes and validates an input into a storable row.
func buildTransaction(in TransactionInput) (*models.Transaction, error) {
	tx := &models.Transaction{
		Source:        strings.ToUpper(strings.TrimSpace(in.Source)),
		PortfolioType: models.NormalizePortfolioType(in.PortfolioType),
		Operation:     strings.ToUpper(strings.TrimSpace(in.Operation)),
		Asset:         strings.TrimSpace(in.Asset),
		Symbol:        strings.ToUpper(strings.TrimSpace(in.Symbol)),
		ISIN:          strings.ToUpper(strings.TrimSpace(in.ISIN)),
		MIC:           strings.ToUpper(strings.TrimSpace(in.MIC)),
		Quantity:      in.Quantity,
		UnitPrice:     in.UnitPrice,
		Fee:           in.Fee,
		FeeAsset:      strings.ToUpper(strings.TrimSpace(in.FeeAsset)),
		FeeQuantity:   in.FeeQuantity,
		FXRate:        in.FXRate,
		Total:         in.Total,
		TradedAt:      in.TradedAt.UTC(),
		Notes:         strings.TrimSpace(in.Notes),
	}
	if in.ExternalRef != nil {
		if ref := strings.TrimSpace(*in.ExternalRef); ref != "" {
			tx.ExternalRef = &ref
		}
	}

	if err := validateTransaction(tx); err != nil {
		return nil, err
	}

	if tx.Asset == "" {
		tx.Asset = firstNonEmpty(tx.Symbol, tx.ISIN)
	}
	if tx.FXRate.IsZero() {
		tx.FXRate = decimal.NewFromInt(1)
	}
	if tx.Total.IsZero() {
		tx.Total = tx.Quantity.Mul(tx.UnitPrice)
	}
	tx.AssetID = models.AssetKey(tx.PortfolioType, tx.ISIN, tx.Symbol, tx.Asset)
	return tx, nil
}

func validateTransaction(tx *models.Transaction) error {
	invalid := func(format string, args ...any) error {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, fmt.Sprintf(format, args...))
	}

	switch {
	case tx.Operation == "":
		return invalid("operation is required")
	case !models.IsKnownPortfolioType(tx.PortfolioType):
		return invalid("unknown portfolio type %q", tx.PortfolioType)
	case tx.Asset == "" && tx.Symbol == "" && tx.ISIN == "":
		return invalid("one of asset, symbol or isin is required")
	case !tx.Quantity.IsPositive():
		return invalid("quantity must be greater than zero")
	case tx.UnitPrice.IsNegative():
		return invalid("unit price must not be negative")
	case tx.Fee.IsNegative():
		return invalid("fee must not be negative")
	case tx.FeeQuantity.IsNegative():
		return invalid("fee quantity must not be negative")
	case tx.Total.IsNegative():
		return invalid("total must not be negative")
	case tx.FXRate.IsNegative():
		return invalid("fx rate must not be negative")
	case tx.TradedAt.IsZero() || tx.TradedAt.Year() < 1970:
		return invalid("traded_at is required")
	}
	return nil
}

func applyUpdate(in *TransactionInput, upd TransactionUpdate) {
	setString := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	setDecimal := func(dst *decimal.Decimal, src *decimal.Decimal) {
		if src != nil {
			*dst = *src
		}
	}

	setString(&in.Source, upd.Source)
	setString(&in.PortfolioType, upd.PortfolioType)
	setString(&in.Operation, upd.Operation)
	setString(&in.Asset, upd.Asset)
	setString(&in.Symbol, upd.Symbol)
	setString(&in.ISIN, upd.ISIN)
	setString(&in.MIC, upd.MIC)
	setString(&in.FeeAsset, upd.FeeAsset)
	setString(&in.Notes, upd.Notes)
	setDecimal(&in.Quantity, upd.Quantity)
	setDecimal(&in.UnitPrice, upd.UnitPrice)
	setDecimal(&in.Fee, upd.Fee)
	setDecimal(&in.FeeQuantity, upd.FeeQuantity)
	setDecimal(&in.FXRate, upd.FXRate)
	setDecimal(&in.Total, upd.Total)
	if upd.TradedAt != nil {
		in.TradedAt = *upd.TradedAt
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
