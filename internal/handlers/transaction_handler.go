package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	apperrors "folio/internal/errors"
	"folio/internal/models"
	"folio/internal/pagination"
	"folio/internal/services"
)

// TransactionHandler handles transaction-related requests.
type TransactionHandler struct {
	transactionService services.TransactionServicer
}

// NewTransactionHandler creates a new TransactionHandler.
func NewTransactionHandler(transactionService services.TransactionServicer) *TransactionHandler {
	return &TransactionHandler{transactionService: transactionService}
}

// CreateTransactionRequest represents the request payload for creating a transaction.
// Decimal fields accept JSON numbers or strings.
type CreateTransactionRequest struct {
	Source        string          `json:"source" binding:"max=64"`
	PortfolioType string          `json:"portfolio_type" binding:"required,portfolio_type"`
	Operation     string          `json:"operation" binding:"required,max=32"`
	Asset         string          `json:"asset" binding:"max=128"`
	Symbol        string          `json:"symbol" binding:"max=32"`
	ISIN          string          `json:"isin" binding:"omitempty,len=12"`
	MIC           string          `json:"mic" binding:"omitempty,len=4"`
	Quantity      decimal.Decimal `json:"quantity" swaggertype:"string" example:"10"`
	UnitPrice     decimal.Decimal `json:"unit_price" swaggertype:"string" example:"101.5"`
	Fee           decimal.Decimal `json:"fee" swaggertype:"string" example:"1.99"`
	FeeAsset      string          `json:"fee_asset" binding:"max=16"`
	FeeQuantity   decimal.Decimal `json:"fee_quantity" swaggertype:"string"`
	FXRate        decimal.Decimal `json:"fx_rate" swaggertype:"string"`
	Total         decimal.Decimal `json:"total" swaggertype:"string"`
	TradedAt      string          `json:"traded_at" binding:"required" example:"2024-03-01T09:30:00Z"`
	Notes         string          `json:"notes" binding:"max=1000"`
	ExternalRef   *string         `json:"external_ref" binding:"omitempty,max=128"`
}

func (r CreateTransactionRequest) toInput() (services.TransactionInput, error) {
	in := services.TransactionInput{
		Source:        r.Source,
		PortfolioType: r.PortfolioType,
		Operation:     r.Operation,
		Asset:         r.Asset,
		Symbol:        r.Symbol,
		ISIN:          r.ISIN,
		MIC:           r.MIC,
		Quantity:      r.Quantity,
		UnitPrice:     r.UnitPrice,
		Fee:           r.Fee,
		FeeAsset:      r.FeeAsset,
		FeeQuantity:   r.FeeQuantity,
		FXRate:        r.FXRate,
		Total:         r.Total,
		Notes:         r.Notes,
		ExternalRef:   r.ExternalRef,
	}
	tradedAt, err := parseFlexibleTime(r.TradedAt)
	if err != nil {
		return in, apperrors.WithMessage(apperrors.ErrInvalidInput, "traded_at: "+err.Error())
	}
	in.TradedAt = tradedAt
	return in, nil
}

// UpdateTransactionRequest represents a partial update; omitted fields are kept.
type UpdateTransactionRequest struct {
	Source        *string          `json:"source" binding:"omitempty,max=64"`
	PortfolioType *string          `json:"portfolio_type" binding:"omitempty,portfolio_type"`
	Operation     *string          `json:"operation" binding:"omitempty,max=32"`
	Asset         *string          `json:"asset" binding:"omitempty,max=128"`
	Symbol        *string          `json:"symbol" binding:"omitempty,max=32"`
	ISIN          *string          `json:"isin" binding:"omitempty,len=12"`
	MIC           *string          `json:"mic" binding:"omitempty,len=4"`
	Quantity      *decimal.Decimal `json:"quantity" swaggertype:"string"`
	UnitPrice     *decimal.Decimal `json:"unit_price" swaggertype:"string"`
	Fee           *decimal.Decimal `json:"fee" swaggertype:"string"`
	FeeAsset      *string          `json:"fee_asset" binding:"omitempty,max=16"`
	FeeQuantity   *decimal.Decimal `json:"fee_quantity" swaggertype:"string"`
	FXRate        *decimal.Decimal `json:"fx_rate" swaggertype:"string"`
	Total         *decimal.Decimal `json:"total" swaggertype:"string"`
	TradedAt      *string          `json:"traded_at"`
	Notes         *string          `json:"notes" binding:"omitempty,max=1000"`
}

// ImportTransactionsRequest represents a batch of transactions to import.
type ImportTransactionsRequest struct {
	Transactions []CreateTransactionRequest `json:"transactions" binding:"required,min=1,max=1000"`
}

// TransactionListQuery holds the filters accepted by ListTransactions.
type TransactionListQuery struct {
	AssetID       string `form:"asset_id"`
	PortfolioType string `form:"portfolio_type" binding:"omitempty,portfolio_type"`
	Operation     string `form:"operation" binding:"omitempty,operation"`
}

// CreateTransaction handles the creation of a new transaction
// @Summary     Create a transaction
// @Description Record a portfolio transaction. The asset's position is replayed on next read.
// @Tags        transactions
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body CreateTransactionRequest true "Transaction details"
// @Success     201 {object} models.Transaction "Transaction created"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     409 {object} ErrorResponse "Duplicate external reference"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /transactions [post]
func (h *TransactionHandler) CreateTransaction(c *gin.Context) {
	var req CreateTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	in, err := req.toInput()
	if err != nil {
		respondWithError(c, err)
		return
	}

	transaction, err := h.transactionService.CreateTransaction(in)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"transaction": transaction})
}

// ImportTransactions handles a batch import
// @Summary     Import transactions
// @Description Insert a batch of transactions. Rows whose external_ref is already known are skipped; invalid rows are reported and not inserted.
// @Tags        transactions
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body ImportTransactionsRequest true "Transactions"
// @Success     200 {object} services.ImportResult "Import summary"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /transactions/import [post]
func (h *TransactionHandler) ImportTransactions(c *gin.Context) {
	var req ImportTransactionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	// A row with an unreadable timestamp keeps a zero TradedAt and is
	// rejected by the service with its index.
	inputs := make([]services.TransactionInput, len(req.Transactions))
	for i, row := range req.Transactions {
		inputs[i], _ = row.toInput()
	}

	result, err := h.transactionService.ImportTransactions(inputs)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetTransactionByID handles the retrieval of a specific transaction
// @Summary     Get transaction by ID
// @Tags        transactions
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Transaction ID"
// @Success     200 {object} models.Transaction "Transaction details"
// @Failure     400 {object} ErrorResponse "Invalid ID"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Transaction not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /transactions/{id} [get]
func (h *TransactionHandler) GetTransactionByID(c *gin.Context) {
	id, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	transaction, err := h.transactionService.GetTransactionByID(id)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"transaction": transaction})
}

// UpdateTransaction handles a partial transaction update
// @Summary     Update a transaction
// @Description Update the given fields of a transaction. Moving it to another asset invalidates both positions.
// @Tags        transactions
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string                   true "Transaction ID"
// @Param       request body UpdateTransactionRequest true "Fields to update"
// @Success     200 {object} models.Transaction "Transaction updated"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Transaction not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /transactions/{id} [put]
func (h *TransactionHandler) UpdateTransaction(c *gin.Context) {
	id, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req UpdateTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	upd := services.TransactionUpdate{
		Source:        req.Source,
		PortfolioType: req.PortfolioType,
		Operation:     req.Operation,
		Asset:         req.Asset,
		Symbol:        req.Symbol,
		ISIN:          req.ISIN,
		MIC:           req.MIC,
		Quantity:      req.Quantity,
		UnitPrice:     req.UnitPrice,
		Fee:           req.Fee,
		FeeAsset:      req.FeeAsset,
		FeeQuantity:   req.FeeQuantity,
		FXRate:        req.FXRate,
		Total:         req.Total,
		Notes:         req.Notes,
	}
	if req.TradedAt != nil {
		t, parseErr := parseFlexibleTime(*req.TradedAt)
		if parseErr != nil {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "traded_at: "+parseErr.Error()))
			return
		}
		upd.TradedAt = &t
	}

	transaction, err := h.transactionService.UpdateTransaction(id, upd)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"transaction": transaction})
}

// DeleteTransaction handles the deletion of a transaction
// @Summary     Delete a transaction
// @Tags        transactions
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Transaction ID"
// @Success     200 {object} map[string]string "Transaction deleted"
// @Failure     400 {object} ErrorResponse "Invalid ID"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Transaction not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /transactions/{id} [delete]
func (h *TransactionHandler) DeleteTransaction(c *gin.Context) {
	id, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	if err := h.transactionService.DeleteTransaction(id); err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Transaction deleted successfully"})
}

// ListTransactions handles the retrieval of transactions
// @Summary     List transactions
// @Description Get a paginated list of transactions with optional filters
// @Tags        transactions
// @Produce     json
// @Security    BearerAuth
// @Param       page           query int    false "Page number (default 1)"
// @Param       page_size      query int    false "Items per page (default 20, max 100)"
// @Param       asset_id       query string false "Filter by asset id (e.g. PEA:FR0000120073)"
// @Param       portfolio_type query string false "Filter by portfolio type (PEA, CTO, CRYPTO)"
// @Param       operation      query string false "Filter by operation (BUY, SELL, DIVIDEND, ...)"
// @Param       from_date      query string false "Filter by start date (RFC3339 or YYYY-MM-DD)"
// @Param       to_date        query string false "Filter by end date (RFC3339 or YYYY-MM-DD)"
// @Success     200 {object} pagination.PageResponse[models.Transaction] "Paginated transactions"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /transactions [get]
func (h *TransactionHandler) ListTransactions(c *gin.Context) {
	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	filter, err := parseTransactionFilter(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	result, err := h.transactionService.ListTransactions(page, filter)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func parseTransactionFilter(c *gin.Context) (services.TransactionFilter, error) {
	var filter services.TransactionFilter

	var q TransactionListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		return filter, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error())
	}
	if q.AssetID != "" {
		assetID := strings.ToUpper(strings.TrimSpace(q.AssetID))
		filter.AssetID = &assetID
	}
	if q.PortfolioType != "" {
		ptype := models.NormalizePortfolioType(q.PortfolioType)
		filter.PortfolioType = &ptype
	}
	if q.Operation != "" {
		op := strings.ToUpper(strings.TrimSpace(q.Operation))
		filter.Operation = &op
	}

	from, to, err := parseTimeRange(c)
	if err != nil {
		return filter, err
	}
	filter.FromDate, filter.ToDate = from, to
	return filter, nil
}
