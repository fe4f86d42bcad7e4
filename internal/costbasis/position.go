package costbasis

import (
	"time"

	"github.com/shopspring/decimal"

	"folio/internal/ledger"
)

// Position is the derived state of one asset after a replay. It is never
// persisted; every read rebuilds it.
type Position struct {
	AssetID       string `json:"asset_id"`
	Asset         string `json:"asset"`
	Symbol        string `json:"symbol,omitempty"`
	ISIN          string `json:"isin,omitempty"`
	PortfolioType string `json:"portfolio_type"`

	Quantity      decimal.Decimal `json:"quantity"`
	Invested      decimal.Decimal `json:"invested"`
	AverageCost   decimal.Decimal `json:"average_cost"`
	RealizedPnL   decimal.Decimal `json:"realized_pnl"`
	Distributions decimal.Decimal `json:"distributions"`
	Fees          decimal.Decimal `json:"fees"`

	Lots     []ledger.Lot   `json:"lots"`
	History  []HistoryPoint `json:"history"`
	Warnings []string       `json:"warnings"`

	Overdrawn        bool      `json:"overdrawn"`
	FirstTradeAt     time.Time `json:"first_trade_at"`
	LastTradeAt      time.Time `json:"last_trade_at"`
	TransactionCount int       `json:"transaction_count"`
}

// HistoryPoint is the running position right after one transaction.
type HistoryPoint struct {
	TransactionID string          `json:"transaction_id"`
	TradedAt      time.Time       `json:"traded_at"`
	Operation     Operation       `json:"operation"`
	Quantity      decimal.Decimal `json:"quantity"`
	Invested      decimal.Decimal `json:"invested"`
	RealizedPnL   decimal.Decimal `json:"realized_pnl"`
	Distributions decimal.Decimal `json:"distributions"`
}

// IsOpen reports whether any quantity is still held.
func (p *Position) IsOpen() bool {
	return p.Quantity.IsPositive()
}

func newPosition(assetID string) *Position {
	return &Position{
		AssetID:  assetID,
		Lots:     []ledger.Lot{},
		History:  []HistoryPoint{},
		Warnings: []string{},
	}
}

// observe picks up descriptive fields; later transactions fill gaps left by
// earlier ones.
func (p *Position) observe(tx Transaction) {
	if p.TransactionCount == 0 {
		p.FirstTradeAt = tx.TradedAt
	}
	p.TransactionCount++
	p.LastTradeAt = tx.TradedAt

	if p.Asset == "" {
		p.Asset = tx.Asset
	}
	if p.Symbol == "" {
		p.Symbol = tx.Symbol
	}
	if p.ISIN == "" {
		p.ISIN = tx.ISIN
	}
	if p.PortfolioType == "" {
		p.PortfolioType = tx.PortfolioType
	}
}

func (p *Position) record(tx Transaction, led *ledger.Ledger) {
	p.History = append(p.History, HistoryPoint{
		TransactionID: tx.ID,
		TradedAt:      tx.TradedAt,
		Operation:     tx.Operation,
		Quantity:      led.Quantity(),
		Invested:      led.Invested(),
		RealizedPnL:   p.RealizedPnL,
		Distributions: p.Distributions,
	})
}

func (p *Position) close(led *ledger.Ledger) {
	p.Quantity = led.Quantity()
	p.Invested = led.Invested()
	p.Lots = led.Snapshot()
	if p.Quantity.IsPositive() {
		p.AverageCost = p.Invested.Div(p.Quantity)
	}
}
