package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "folio/internal/errors"
	"folio/internal/pagination"
	"folio/internal/services"
	"folio/internal/snapshot"
)

// SnapshotHandler handles snapshot runs and history.
type SnapshotHandler struct {
	snapshotService services.SnapshotServicer
}

// NewSnapshotHandler creates a new SnapshotHandler.
func NewSnapshotHandler(snapshotService services.SnapshotServicer) *SnapshotHandler {
	return &SnapshotHandler{snapshotService: snapshotService}
}

// RunSnapshotRequest represents the request payload for a snapshot run.
type RunSnapshotRequest struct {
	At *string `json:"at" example:"2024-03-01T18:00:00Z"`
}

// RunSnapshotResponse is the outcome of a snapshot run.
type RunSnapshotResponse struct {
	Run      *snapshot.Run      `json:"run"`
	Snapshot *snapshot.Snapshot `json:"snapshot,omitempty"`
}

// RunSnapshot handles an on-demand snapshot run
// @Summary     Run a snapshot
// @Description Replay the full history at the given instant (default now), value it and persist the snapshot
// @Tags        snapshots
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body RunSnapshotRequest false "Snapshot instant"
// @Success     200 {object} RunSnapshotResponse "Run outcome"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     503 {object} ErrorResponse "Snapshot run failed"
// @Router      /snapshots/run [post]
func (h *SnapshotHandler) RunSnapshot(c *gin.Context) {
	h.run(c, services.TriggerAPI)
}

// PipelineRunSnapshot handles a snapshot run from the scheduling pipeline
// @Summary     Run a snapshot (pipeline)
// @Description Same as /snapshots/run, authenticated with the pipeline API key
// @Tags        pipeline
// @Accept      json
// @Produce     json
// @Param       X-API-Key header   string             true  "Pipeline API key"
// @Param       request   body     RunSnapshotRequest false "Snapshot instant"
// @Success     200       {object} RunSnapshotResponse "Run outcome"
// @Failure     400       {object} ErrorResponse      "Invalid input"
// @Failure     401       {object} ErrorResponse      "Invalid API key"
// @Failure     503       {object} ErrorResponse      "Pipeline not configured or run failed"
// @Router      /pipeline/snapshots [post]
func (h *SnapshotHandler) PipelineRunSnapshot(c *gin.Context) {
	h.run(c, services.TriggerPipeline)
}

func (h *SnapshotHandler) run(c *gin.Context, trigger string) {
	var req RunSnapshotRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
			return
		}
	}

	var at time.Time
	if req.At != nil && *req.At != "" {
		parsed, err := parseFlexibleTime(*req.At)
		if err != nil {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "at: "+err.Error()))
			return
		}
		at = parsed
	}

	res, err := h.snapshotService.RunSnapshot(c.Request.Context(), at, trigger)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, RunSnapshotResponse{Run: res.Run, Snapshot: res.Snapshot})
}

// ListSnapshots handles the snapshot history
// @Summary     List snapshots
// @Description Paginated snapshots, newest first, with per-type values
// @Tags        snapshots
// @Produce     json
// @Security    BearerAuth
// @Param       from_date query string false "Start date (RFC3339 or YYYY-MM-DD)"
// @Param       to_date   query string false "End date (RFC3339 or YYYY-MM-DD)"
// @Param       page      query int    false "Page number (default 1)"
// @Param       page_size query int    false "Items per page (default 20, max 100)"
// @Success     200 {object} pagination.PageResponse[models.Snapshot] "Paginated snapshots"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Router      /snapshots [get]
func (h *SnapshotHandler) ListSnapshots(c *gin.Context) {
	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	from, to, err := parseTimeRange(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	result, err := h.snapshotService.ListSnapshots(from, to, page)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetSnapshot handles a single snapshot with its holdings
// @Summary     Get snapshot by ID
// @Tags        snapshots
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Snapshot ID"
// @Success     200 {object} models.Snapshot "Snapshot with values and holdings"
// @Failure     400 {object} ErrorResponse "Invalid ID"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Snapshot not found"
// @Router      /snapshots/{id} [get]
func (h *SnapshotHandler) GetSnapshot(c *gin.Context) {
	id, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	snap, err := h.snapshotService.GetSnapshotByID(id)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"snapshot": snap})
}

// ListRuns handles the run history
// @Summary     List snapshot runs
// @Description Paginated run records, most recent first
// @Tags        snapshots
// @Produce     json
// @Security    BearerAuth
// @Param       page      query int false "Page number (default 1)"
// @Param       page_size query int false "Items per page (default 20, max 100)"
// @Success     200 {object} pagination.PageResponse[models.SnapshotRun] "Paginated runs"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Router      /snapshots/runs [get]
func (h *SnapshotHandler) ListRuns(c *gin.Context) {
	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	result, err := h.snapshotService.ListRuns(page)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// DeleteAllSnapshots handles the bulk wipe
// @Summary     Delete all snapshots
// @Description Remove every snapshot with its values and holdings. Run records are kept.
// @Tags        snapshots
// @Produce     json
// @Security    BearerAuth
// @Success     200 {object} map[string]int64 "Deleted count"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     503 {object} ErrorResponse "Store unavailable"
// @Router      /snapshots [delete]
func (h *SnapshotHandler) DeleteAllSnapshots(c *gin.Context) {
	deleted, err := h.snapshotService.DeleteAllSnapshots()
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": deleted})
}
