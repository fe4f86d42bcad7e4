package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	apperrors "folio/internal/errors"
	"folio/internal/pagination"
	"folio/internal/services"
)

// PriceHandler handles market prices and FX rates.
type PriceHandler struct {
	priceService services.PriceServicer
	fxService    services.FxServicer
	refresher    services.PriceRefreshRunner
}

// NewPriceHandler creates a new PriceHandler. refresher may be nil when no
// market-data provider is configured.
func NewPriceHandler(priceService services.PriceServicer, fxService services.FxServicer, refresher services.PriceRefreshRunner) *PriceHandler {
	return &PriceHandler{priceService: priceService, fxService: fxService, refresher: refresher}
}

// PriceEntry is one price to record, in settlement currency.
type PriceEntry struct {
	AssetID    string          `json:"asset_id" binding:"required" example:"PEA:FR0000120073"`
	Price      decimal.Decimal `json:"price" swaggertype:"string" example:"165.42"`
	RecordedAt string          `json:"recorded_at" example:"2024-03-01T17:35:00Z"`
	Source     string          `json:"source" binding:"max=32"`
}

// RecordPricesRequest represents the request payload for recording prices.
type RecordPricesRequest struct {
	Prices []PriceEntry `json:"prices" binding:"required,min=1,max=1000,dive"`
}

// RecordFxRateRequest represents the request payload for recording an FX rate.
type RecordFxRateRequest struct {
	Base       string          `json:"base" binding:"required,iso4217"`
	Quote      string          `json:"quote" binding:"required,iso4217"`
	Rate       decimal.Decimal `json:"rate" swaggertype:"string" example:"0.9214"`
	RecordedAt string          `json:"recorded_at"`
	Source     string          `json:"source" binding:"max=32"`
}

// RecordPrices handles price ingestion
// @Summary     Record prices
// @Description Record market prices in settlement currency. Entries already recorded for the same asset, instant and source are skipped.
// @Tags        pipeline
// @Accept      json
// @Produce     json
// @Param       X-API-Key header   string              true "Pipeline API key"
// @Param       request   body     RecordPricesRequest true "Prices"
// @Success     200       {object} map[string]int      "Recorded count"
// @Failure     400       {object} ErrorResponse       "Invalid input"
// @Failure     401       {object} ErrorResponse       "Invalid API key"
// @Failure     503       {object} ErrorResponse       "Pipeline not configured"
// @Router      /pipeline/prices [post]
func (h *PriceHandler) RecordPrices(c *gin.Context) {
	var req RecordPricesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	inputs := make([]services.PriceInput, len(req.Prices))
	for i, p := range req.Prices {
		inputs[i] = services.PriceInput{
			AssetID: strings.ToUpper(strings.TrimSpace(p.AssetID)),
			Price:   p.Price,
			Source:  p.Source,
		}
		if p.RecordedAt != "" {
			t, err := parseFlexibleTime(p.RecordedAt)
			if err != nil {
				respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "recorded_at: "+err.Error()))
				return
			}
			inputs[i].RecordedAt = t
		}
	}

	count, err := h.priceService.RecordPrices(inputs)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"prices_recorded": count})
}

// GetPriceHistory handles the price history of an asset
// @Summary     Get price history
// @Tags        prices
// @Produce     json
// @Security    BearerAuth
// @Param       asset_id  path  string true  "Asset id"
// @Param       from_date query string false "Start date (RFC3339 or YYYY-MM-DD, default: all)"
// @Param       to_date   query string false "End date (RFC3339 or YYYY-MM-DD, default: now)"
// @Param       page      query int    false "Page number (default 1)"
// @Param       page_size query int    false "Items per page (default 20, max 100)"
// @Success     200 {object} pagination.PageResponse[models.Price] "Paginated prices"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Router      /prices/{asset_id} [get]
func (h *PriceHandler) GetPriceHistory(c *gin.Context) {
	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	fromPtr, toPtr, err := parseTimeRange(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	from, to := time.Unix(0, 0).UTC(), time.Now().UTC()
	if fromPtr != nil {
		from = *fromPtr
	}
	if toPtr != nil {
		to = *toPtr
	}

	assetID := strings.ToUpper(strings.TrimSpace(c.Param("asset_id")))
	result, err := h.priceService.GetPriceHistory(assetID, from, to, page)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// RefreshPrices handles an on-demand market-data refresh
// @Summary     Refresh prices
// @Description Fetch quotes for every open position from the market-data providers and record them
// @Tags        prices
// @Produce     json
// @Security    BearerAuth
// @Success     200 {object} services.RefreshResult "Refresh outcome"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     503 {object} ErrorResponse "No provider configured"
// @Router      /prices/refresh [post]
func (h *PriceHandler) RefreshPrices(c *gin.Context) {
	if h.refresher == nil {
		respondWithError(c, apperrors.ErrRefreshNotConfigured)
		return
	}

	result, err := h.refresher.Refresh(c.Request.Context())
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// RecordFxRate handles FX rate ingestion
// @Summary     Record an FX rate
// @Description Record 1 base = rate quote at an instant (default now)
// @Tags        fx
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body RecordFxRateRequest true "Rate"
// @Success     201 {object} models.FxRate "Rate recorded"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Router      /fx-rates [post]
func (h *PriceHandler) RecordFxRate(c *gin.Context) {
	var req RecordFxRateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	var at time.Time
	if req.RecordedAt != "" {
		t, err := parseFlexibleTime(req.RecordedAt)
		if err != nil {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "recorded_at: "+err.Error()))
			return
		}
		at = t
	}

	rate, err := h.fxService.RecordRate(req.Base, req.Quote, req.Rate, at, req.Source)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"fx_rate": rate})
}

// GetFxRate handles a point-in-time rate lookup
// @Summary     Get an FX rate
// @Description Rate for 1 base in quote at an instant (default now), from stored rates or the inverse pair, falling back to the market-data provider
// @Tags        fx
// @Produce     json
// @Security    BearerAuth
// @Param       base  path  string true  "Base currency"
// @Param       quote path  string true  "Quote currency"
// @Param       at    query string false "Instant (RFC3339 or YYYY-MM-DD)"
// @Success     200 {object} map[string]string "Rate"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "No rate available"
// @Router      /fx-rates/{base}/{quote} [get]
func (h *PriceHandler) GetFxRate(c *gin.Context) {
	at := time.Now().UTC()
	atPtr, err := parseOptionalTimeQuery(c, "at")
	if err != nil {
		respondWithError(c, err)
		return
	}
	if atPtr != nil {
		at = *atPtr
	}

	base, quote := strings.ToUpper(c.Param("base")), strings.ToUpper(c.Param("quote"))
	rate, err := h.fxService.GetRate(c.Request.Context(), base, quote, at)
	if err != nil {
		if _, ok := apperrors.As(err); !ok {
			err = apperrors.WithMessage(apperrors.ErrNotFound, "No rate available for "+base+"/"+quote)
		}
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"base": base, "quote": quote, "at": at, "rate": rate})
}
