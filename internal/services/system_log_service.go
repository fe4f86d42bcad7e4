package services

import (
	"encoding/json"
	"time"

	"gorm.io/gorm"

	"folio/internal/logger"
	"folio/internal/models"
	"folio/internal/pagination"
)

// systemLogService records operational events in the system_logs table.
type systemLogService struct {
	db *gorm.DB
}

// NewSystemLogService creates a new SystemLogServicer.
func NewSystemLogService(db *gorm.DB) SystemLogServicer {
	return &systemLogService{db: db}
}

// Record writes a system log entry. Errors are logged but never propagate
// to avoid disrupting the main operation.
func (s *systemLogService) Record(level, component, message string, meta map[string]any) {
	var metaJSON string
	if meta != nil {
		data, err := json.Marshal(meta)
		if err != nil {
			logger.Get().Errorw("failed to marshal system log meta", "error", err, "component", component)
			metaJSON = "{}"
		} else {
			metaJSON = string(data)
		}
	}

	entry := &models.SystemLog{
		LoggedAt:  time.Now().UTC(),
		Level:     level,
		Component: component,
		Message:   message,
		Meta:      metaJSON,
	}

	if err := s.db.Create(entry).Error; err != nil {
		logger.Get().Errorw("failed to create system log entry",
			"error", err,
			"level", level,
			"component", component,
			"message", message,
		)
	}
}

// ListLogs returns paginated log entries, newest first.
func (s *systemLogService) ListLogs(component *string, page pagination.PageRequest) (*pagination.PageResponse[models.SystemLog], error) {
	page.Defaults()

	base := s.db.Model(&models.SystemLog{})
	if component != nil {
		base = base.Where("component = ?", *component)
	}

	var totalItems int64
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, storeErr(err)
	}

	var logs []models.SystemLog
	if err := base.Order("logged_at DESC").Scopes(pagination.Paginate(page)).Find(&logs).Error; err != nil {
		return nil, storeErr(err)
	}

	result := pagination.NewPageResponse(logs, page.Page, page.PageSize, totalItems)
	return &result, nil
}
