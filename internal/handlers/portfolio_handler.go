package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"folio/internal/services"
)

// PortfolioHandler serves live positions and valuations.
type PortfolioHandler struct {
	portfolioService services.PortfolioServicer
	snapshotService  services.SnapshotServicer
}

// NewPortfolioHandler creates a new PortfolioHandler.
func NewPortfolioHandler(portfolioService services.PortfolioServicer, snapshotService services.SnapshotServicer) *PortfolioHandler {
	return &PortfolioHandler{portfolioService: portfolioService, snapshotService: snapshotService}
}

// GetPortfolio handles the live valuation
// @Summary     Get portfolio valuation
// @Description Value every position at the latest known prices, with totals per portfolio type
// @Tags        portfolio
// @Produce     json
// @Security    BearerAuth
// @Success     200 {object} valuation.Portfolio "Portfolio valuation"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     503 {object} ErrorResponse "Store unavailable"
// @Router      /portfolio [get]
func (h *PortfolioHandler) GetPortfolio(c *gin.Context) {
	portfolio, err := h.portfolioService.GetPortfolio(c.Request.Context())
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, portfolio)
}

// GetPositions handles the list of replayed positions
// @Summary     List positions
// @Description Replayed FIFO positions for every asset, open and closed
// @Tags        portfolio
// @Produce     json
// @Security    BearerAuth
// @Success     200 {object} map[string][]costbasis.Position "Positions"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     503 {object} ErrorResponse "Store unavailable"
// @Router      /portfolio/positions [get]
func (h *PortfolioHandler) GetPositions(c *gin.Context) {
	positions, err := h.portfolioService.GetPositions(c.Request.Context())
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"positions": positions})
}

// GetHolding handles a single asset's detail
// @Summary     Get holding detail
// @Description Position with open lots, per-transaction history and current valuation. A bare ISIN or symbol is accepted when it is unambiguous.
// @Tags        portfolio
// @Produce     json
// @Security    BearerAuth
// @Param       asset_id path string true "Asset id (e.g. PEA:FR0000120073)"
// @Success     200 {object} services.HoldingDetail "Holding detail"
// @Failure     400 {object} ErrorResponse "Ambiguous asset id"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Holding not found"
// @Router      /portfolio/holdings/{asset_id} [get]
func (h *PortfolioHandler) GetHolding(c *gin.Context) {
	detail, err := h.portfolioService.GetHolding(c.Request.Context(), c.Param("asset_id"))
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, detail)
}

// GetPnLSeries handles the P&L time series
// @Summary     Get P&L series
// @Description Snapshot totals over time, oldest first
// @Tags        portfolio
// @Produce     json
// @Security    BearerAuth
// @Param       from_date query string false "Start date (RFC3339 or YYYY-MM-DD)"
// @Param       to_date   query string false "End date (RFC3339 or YYYY-MM-DD)"
// @Success     200 {object} map[string][]services.PnLPoint "P&L series"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Router      /portfolio/pnl [get]
func (h *PortfolioHandler) GetPnLSeries(c *gin.Context) {
	from, to, err := parseTimeRange(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	series, err := h.snapshotService.GetPnLSeries(from, to)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"series": series})
}
