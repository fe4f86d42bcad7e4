package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	apperrors "folio/internal/errors"
	"folio/internal/pagination"
	"folio/internal/services"
)

// JournalHandler handles the trade journal.
type JournalHandler struct {
	journalService services.JournalServicer
}

// NewJournalHandler creates a new JournalHandler.
func NewJournalHandler(journalService services.JournalServicer) *JournalHandler {
	return &JournalHandler{journalService: journalService}
}

// JournalTradeRequest carries the editable fields of a journal trade. On
// update, omitted fields are kept.
type JournalTradeRequest struct {
	Asset    *string          `json:"asset" binding:"omitempty,max=32" example:"BTC"`
	Pair     *string          `json:"pair" binding:"omitempty,max=32" example:"BTC/USDT"`
	Setup    *string          `json:"setup" binding:"omitempty,max=255"`
	Entry    *decimal.Decimal `json:"entry" swaggertype:"string"`
	Stop     *decimal.Decimal `json:"stop_loss" swaggertype:"string"`
	Target   *decimal.Decimal `json:"take_profit" swaggertype:"string"`
	RiskR    *decimal.Decimal `json:"risk_r" swaggertype:"string"`
	ResultR  *decimal.Decimal `json:"result_r" swaggertype:"string"`
	Status   *string          `json:"status" binding:"omitempty,journal_status" example:"OPEN"`
	OpenedAt *string          `json:"opened_at"`
	ClosedAt *string          `json:"closed_at"`
	Notes    *string          `json:"notes" binding:"omitempty,max=2000"`
}

func (r JournalTradeRequest) toInput() (services.JournalTradeInput, error) {
	in := services.JournalTradeInput{
		Asset:   r.Asset,
		Pair:    r.Pair,
		Setup:   r.Setup,
		Entry:   r.Entry,
		Stop:    r.Stop,
		Target:  r.Target,
		RiskR:   r.RiskR,
		ResultR: r.ResultR,
		Status:  r.Status,
		Notes:   r.Notes,
	}
	var err error
	if in.OpenedAt, err = optionalTime(r.OpenedAt, "opened_at"); err != nil {
		return in, err
	}
	if in.ClosedAt, err = optionalTime(r.ClosedAt, "closed_at"); err != nil {
		return in, err
	}
	return in, nil
}

func optionalTime(s *string, field string) (*time.Time, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	t, err := parseFlexibleTime(*s)
	if err != nil {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, field+": "+err.Error())
	}
	return &t, nil
}

// CreateTrade handles a new journal entry
// @Summary     Create a journal trade
// @Tags        journal
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body JournalTradeRequest true "Trade"
// @Success     201 {object} models.JournalTrade "Trade created"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Router      /journal [post]
func (h *JournalHandler) CreateTrade(c *gin.Context) {
	var req JournalTradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	in, err := req.toInput()
	if err != nil {
		respondWithError(c, err)
		return
	}

	trade, err := h.journalService.CreateTrade(in)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"trade": trade})
}

// UpdateTrade handles a partial journal update
// @Summary     Update a journal trade
// @Description Closing a trade requires result_r
// @Tags        journal
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string              true "Trade ID"
// @Param       request body JournalTradeRequest true "Fields to update"
// @Success     200 {object} models.JournalTrade "Trade updated"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Trade not found"
// @Router      /journal/{id} [put]
func (h *JournalHandler) UpdateTrade(c *gin.Context) {
	id, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req JournalTradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	in, err := req.toInput()
	if err != nil {
		respondWithError(c, err)
		return
	}

	trade, err := h.journalService.UpdateTrade(id, in)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"trade": trade})
}

// GetTrade handles a single journal entry
// @Summary     Get a journal trade
// @Tags        journal
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Trade ID"
// @Success     200 {object} models.JournalTrade "Trade"
// @Failure     400 {object} ErrorResponse "Invalid ID"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Trade not found"
// @Router      /journal/{id} [get]
func (h *JournalHandler) GetTrade(c *gin.Context) {
	id, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	trade, err := h.journalService.GetTrade(id)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"trade": trade})
}

// ListTrades handles the journal listing
// @Summary     List journal trades
// @Tags        journal
// @Produce     json
// @Security    BearerAuth
// @Param       status    query string false "Filter by status (OPEN, CLOSED)"
// @Param       page      query int    false "Page number (default 1)"
// @Param       page_size query int    false "Items per page (default 20, max 100)"
// @Success     200 {object} pagination.PageResponse[models.JournalTrade] "Paginated trades"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Router      /journal [get]
func (h *JournalHandler) ListTrades(c *gin.Context) {
	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	var status *string
	if v := c.Query("status"); v != "" {
		status = &v
	}

	result, err := h.journalService.ListTrades(status, page)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// DeleteTrade handles journal deletion
// @Summary     Delete a journal trade
// @Tags        journal
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Trade ID"
// @Success     200 {object} map[string]string "Trade deleted"
// @Failure     400 {object} ErrorResponse "Invalid ID"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Trade not found"
// @Router      /journal/{id} [delete]
func (h *JournalHandler) DeleteTrade(c *gin.Context) {
	id, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	if err := h.journalService.DeleteTrade(id); err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Trade deleted successfully"})
}
