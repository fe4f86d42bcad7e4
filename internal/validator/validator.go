// Package validator registers folio's custom binding validators with Gin.
package validator

import (
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"folio/internal/costbasis"
	"folio/internal/models"
)

// Register registers all custom validators with the Gin binding engine.
func Register() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		RegisterOn(v)
	}
}

// RegisterOn registers the custom validators on v.
func RegisterOn(v *validator.Validate) {
	_ = v.RegisterValidation("iso4217", validateISO4217)
	_ = v.RegisterValidation("portfolio_type", validatePortfolioType)
	_ = v.RegisterValidation("operation", validateOperation)
	_ = v.RegisterValidation("journal_status", validateJournalStatus)
}

// validateISO4217 accepts any currency code go-money knows about.
func validateISO4217(fl validator.FieldLevel) bool {
	code := fl.Field().String()
	return code == strings.ToUpper(code) && money.GetCurrency(code) != nil
}

// validatePortfolioType accepts canonical types and their broker aliases.
func validatePortfolioType(fl validator.FieldLevel) bool {
	return models.IsKnownPortfolioType(models.NormalizePortfolioType(fl.Field().String()))
}

func validateOperation(fl validator.FieldLevel) bool {
	return costbasis.Operation(strings.ToUpper(strings.TrimSpace(fl.Field().String()))).Known()
}

func validateJournalStatus(fl validator.FieldLevel) bool {
	switch strings.ToUpper(fl.Field().String()) {
	case models.JournalStatusOpen, models.JournalStatusClosed:
		return true
	}
	return false
}
