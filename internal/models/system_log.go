package models

import (
	"time"

	"gorm.io/gorm"
)

// System log levels.
const (
	LogLevelInfo    = "INFO"
	LogLevelWarning = "WARNING"
	LogLevelError   = "ERROR"
)

// SystemLog records operational events (snapshot runs, price refreshes) for
// display in the application. Append-only.
type SystemLog struct {
	ID        string    `gorm:"type:uuid;primaryKey" json:"id"`
	LoggedAt  time.Time `gorm:"not null;index" json:"logged_at"`
	Level     string    `gorm:"not null;size:16" json:"level"`
	Component string    `gorm:"not null;size:64;index" json:"component"`
	Message   string    `gorm:"not null" json:"message"`
	Meta      string    `gorm:"type:text" json:"meta,omitempty"`
}

// BeforeCreate hook generates a UUIDv7 for new records
func (l *SystemLog) BeforeCreate(tx *gorm.DB) error {
	assignID(&l.ID)
	if l.LoggedAt.IsZero() {
		l.LoggedAt = time.Now().UTC()
	}
	return nil
}
