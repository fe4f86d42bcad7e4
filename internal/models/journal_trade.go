package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Journal trade statuses.
const (
	JournalStatusOpen   = "OPEN"
	JournalStatusClosed = "CLOSED"
)

// JournalTrade is a manually entered discretionary trade, kept for review.
// It has no effect on positions.
type JournalTrade struct {
	Base
	Asset    string              `gorm:"not null" json:"asset"`
	Pair     string              `gorm:"not null" json:"pair"`
	Setup    string              `json:"setup,omitempty"`
	Entry    decimal.NullDecimal `gorm:"type:numeric(28,10)" json:"entry"`
	Stop     decimal.NullDecimal `gorm:"column:stop_loss;type:numeric(28,10)" json:"stop_loss"`
	Target   decimal.NullDecimal `gorm:"column:take_profit;type:numeric(28,10)" json:"take_profit"`
	RiskR    decimal.NullDecimal `gorm:"column:risk_r;type:numeric(12,4)" json:"risk_r"`
	ResultR  decimal.NullDecimal `gorm:"column:result_r;type:numeric(12,4)" json:"result_r"`
	Status   string              `gorm:"not null;default:'OPEN'" json:"status"`
	OpenedAt *time.Time          `json:"opened_at,omitempty"`
	ClosedAt *time.Time          `json:"closed_at,omitempty"`
	Notes    string              `json:"notes,omitempty"`
}
