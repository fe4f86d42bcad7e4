package validator

import (
	"testing"

	"github.com/go-playground/validator/v10"
)

type sample struct {
	Currency      string `validate:"omitempty,iso4217"`
	PortfolioType string `validate:"omitempty,portfolio_type"`
	Operation     string `validate:"omitempty,operation"`
	Status        string `validate:"omitempty,journal_status"`
}

func TestCustomValidators(t *testing.T) {
	v := validator.New()
	RegisterOn(v)

	tests := []struct {
		name  string
		input sample
		ok    bool
	}{
		{"eur", sample{Currency: "EUR"}, true},
		{"lowercase currency", sample{Currency: "eur"}, false},
		{"unknown currency", sample{Currency: "XYZ"}, false},
		{"pea alias", sample{PortfolioType: "PEA JEUNE"}, true},
		{"crypto", sample{PortfolioType: "crypto"}, true},
		{"unknown portfolio", sample{PortfolioType: "LIVRET"}, false},
		{"sell", sample{Operation: "sell"}, true},
		{"transfer out", sample{Operation: "TRANSFER_OUT"}, true},
		{"split", sample{Operation: "SPLIT"}, false},
		{"open status", sample{Status: "open"}, true},
		{"bad status", sample{Status: "PENDING"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Struct(tt.input)
			if tt.ok && err != nil {
				t.Errorf("expected valid, got %v", err)
			}
			if !tt.ok && err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
