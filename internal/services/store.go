package services

import (
	"errors"
	"strings"

	"gorm.io/gorm"

	apperrors "folio/internal/errors"
)

// storeErr marks a persistence failure. The store being down is fatal for
// the operation at hand but never corrupts persisted state.
func storeErr(err error) error {
	return apperrors.Wrap(apperrors.ErrStoreUnavailable, err)
}

// notFound maps gorm.ErrRecordNotFound onto the given sentinel.
func notFound(err error, sentinel *apperrors.AppError) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return sentinel
	}
	return storeErr(err)
}

// isUniqueConstraintError checks if a GORM error is a unique constraint violation.
func isUniqueConstraintError(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || // SQLite
		strings.Contains(msg, "duplicate key value violates unique constraint") // PostgreSQL
}
