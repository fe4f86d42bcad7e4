package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "folio/internal/errors"
	"folio/internal/models"
	"folio/internal/pagination"
	"folio/internal/services"
)

// InstrumentHandler manages market-data symbol mappings.
type InstrumentHandler struct {
	instrumentService services.InstrumentServicer
}

// NewInstrumentHandler creates a new InstrumentHandler.
func NewInstrumentHandler(instrumentService services.InstrumentServicer) *InstrumentHandler {
	return &InstrumentHandler{instrumentService: instrumentService}
}

// UpsertInstrumentRequest represents the request payload for mapping an asset.
type UpsertInstrumentRequest struct {
	AssetID        string `json:"asset_id" binding:"required,max=64" example:"CTO:US0378331005"`
	Name           string `json:"name" binding:"max=255"`
	Provider       string `json:"provider" binding:"required,oneof=yahoo coingecko" example:"yahoo"`
	ProviderSymbol string `json:"provider_symbol" binding:"required,max=64" example:"AAPL"`
	Exchange       string `json:"exchange" binding:"omitempty,len=4" example:"XNAS"`
	Currency       string `json:"currency" binding:"required,iso4217" example:"USD"`
}

// UpsertInstrument handles creating or replacing a mapping
// @Summary     Map an asset to a provider symbol
// @Description Create the market-data mapping for an asset id, or replace the existing one
// @Tags        instruments
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body UpsertInstrumentRequest true "Mapping"
// @Success     200 {object} models.Instrument "Instrument"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Router      /instruments [put]
func (h *InstrumentHandler) UpsertInstrument(c *gin.Context) {
	var req UpsertInstrumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	inst, err := h.instrumentService.UpsertInstrument(models.Instrument{
		AssetID:        req.AssetID,
		Name:           req.Name,
		Provider:       req.Provider,
		ProviderSymbol: req.ProviderSymbol,
		Exchange:       req.Exchange,
		Currency:       req.Currency,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"instrument": inst})
}

// GetInstrument handles a mapping lookup
// @Summary     Get instrument
// @Tags        instruments
// @Produce     json
// @Security    BearerAuth
// @Param       asset_id path string true "Asset id"
// @Success     200 {object} models.Instrument "Instrument"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Instrument not found"
// @Router      /instruments/{asset_id} [get]
func (h *InstrumentHandler) GetInstrument(c *gin.Context) {
	inst, err := h.instrumentService.GetInstrument(c.Param("asset_id"))
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"instrument": inst})
}

// ListInstruments handles the list of mappings
// @Summary     List instruments
// @Tags        instruments
// @Produce     json
// @Security    BearerAuth
// @Param       page      query int false "Page number (default 1)"
// @Param       page_size query int false "Items per page (default 20, max 100)"
// @Success     200 {object} pagination.PageResponse[models.Instrument] "Paginated instruments"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Router      /instruments [get]
func (h *InstrumentHandler) ListInstruments(c *gin.Context) {
	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	result, err := h.instrumentService.ListInstruments(page)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}
