package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "folio/internal/errors"
	"folio/internal/pagination"
	"folio/internal/services"
)

// SystemLogHandler exposes the operational event log.
type SystemLogHandler struct {
	logService services.SystemLogServicer
}

// NewSystemLogHandler creates a new SystemLogHandler.
func NewSystemLogHandler(logService services.SystemLogServicer) *SystemLogHandler {
	return &SystemLogHandler{logService: logService}
}

// ListLogs handles the system log listing
// @Summary     List system logs
// @Description Snapshot runs, price refreshes and other operational events, newest first
// @Tags        system
// @Produce     json
// @Security    BearerAuth
// @Param       component query string false "Filter by component (snapshot, prices)"
// @Param       page      query int    false "Page number (default 1)"
// @Param       page_size query int    false "Items per page (default 20, max 100)"
// @Success     200 {object} pagination.PageResponse[models.SystemLog] "Paginated log entries"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Router      /system-logs [get]
func (h *SystemLogHandler) ListLogs(c *gin.Context) {
	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	var component *string
	if v := c.Query("component"); v != "" {
		component = &v
	}

	result, err := h.logService.ListLogs(component, page)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}
