// Package valuation prices replayed positions and rolls them up into
// per-portfolio-type and grand totals.
package valuation

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"folio/internal/costbasis"
)

var (
	// ErrPriceUnavailable means no price is recorded at or before the instant.
	ErrPriceUnavailable = errors.New("price unavailable")
	// ErrPriceStale means the latest price is older than the allowed age.
	ErrPriceStale = errors.New("price stale")
)

var hundred = decimal.NewFromInt(100)

// Quote is a recorded market price in settlement currency.
type Quote struct {
	Price  decimal.Decimal
	AsOf   time.Time
	Source string
}

// PriceLookup returns the latest quote recorded at or before at.
type PriceLookup interface {
	GetPrice(ctx context.Context, assetID string, at time.Time) (*Quote, error)
}

// Holding is one open position valued at an instant.
type Holding struct {
	AssetID       string          `json:"asset_id"`
	Asset         string          `json:"asset"`
	Symbol        string          `json:"symbol,omitempty"`
	ISIN          string          `json:"isin,omitempty"`
	PortfolioType string          `json:"portfolio_type"`
	Quantity      decimal.Decimal `json:"quantity"`
	AverageCost   decimal.Decimal `json:"average_cost"`
	Invested      decimal.Decimal `json:"invested"`
	MarketPrice   decimal.Decimal `json:"market_price"`
	MarketValue   decimal.Decimal `json:"market_value"`
	Unrealized    decimal.Decimal `json:"unrealized_pnl"`
	UnrealizedPct decimal.Decimal `json:"unrealized_pnl_pct"`
	RealizedPnL   decimal.Decimal `json:"realized_pnl"`
	Distributions decimal.Decimal `json:"distributions"`
	PricedAtCost  bool            `json:"priced_at_cost"`
	PriceAsOf     *time.Time      `json:"price_as_of,omitempty"`
	PriceSource   string          `json:"price_source,omitempty"`
	Warnings      []string        `json:"warnings"`
}

// Totals aggregates a set of holdings and closed positions.
type Totals struct {
	Invested      decimal.Decimal `json:"invested"`
	MarketValue   decimal.Decimal `json:"market_value"`
	Unrealized    decimal.Decimal `json:"unrealized_pnl"`
	UnrealizedPct decimal.Decimal `json:"unrealized_pnl_pct"`
	Realized      decimal.Decimal `json:"realized_pnl"`
	Distributions decimal.Decimal `json:"distributions"`
	TotalPnL      decimal.Decimal `json:"total_pnl"`
}

// Portfolio is the valuation of every position at one instant.
type Portfolio struct {
	At       time.Time          `json:"at"`
	Holdings []Holding          `json:"holdings"`
	ByType   map[string]*Totals `json:"by_type"`
	Total    Totals             `json:"total"`
	Warnings []string           `json:"warnings"`
}

// Aggregator values positions with prices from a PriceLookup.
type Aggregator struct {
	prices PriceLookup
	maxAge time.Duration
}

// NewAggregator creates an aggregator. Prices older than maxAge relative to
// the valuation instant are treated as stale; zero disables the check.
func NewAggregator(prices PriceLookup, maxAge time.Duration) *Aggregator {
	return &Aggregator{prices: prices, maxAge: maxAge}
}

// Value prices the open positions and rolls up totals. Closed positions only
// contribute realized P&L and distributions. Missing or stale prices value
// the asset at cost and add a warning; they never fail the call.
func (a *Aggregator) Value(ctx context.Context, positions []*costbasis.Position, at time.Time) *Portfolio {
	p := &Portfolio{
		At:       at,
		Holdings: []Holding{},
		ByType:   make(map[string]*Totals),
		Warnings: []string{},
	}

	sorted := make([]*costbasis.Position, len(positions))
	copy(sorted, positions)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].AssetID < sorted[j].AssetID })

	for _, pos := range sorted {
		group := p.group(pos.PortfolioType)
		group.Realized = group.Realized.Add(pos.RealizedPnL)
		group.Distributions = group.Distributions.Add(pos.Distributions)

		for _, w := range pos.Warnings {
			p.Warnings = append(p.Warnings, pos.AssetID+": "+w)
		}

		if !pos.IsOpen() {
			continue
		}

		h := a.value(ctx, pos, at)
		for _, w := range h.Warnings {
			p.Warnings = append(p.Warnings, pos.AssetID+": "+w)
		}
		group.Invested = group.Invested.Add(h.Invested)
		group.MarketValue = group.MarketValue.Add(h.MarketValue)
		p.Holdings = append(p.Holdings, h)
	}

	types := make([]string, 0, len(p.ByType))
	for k := range p.ByType {
		types = append(types, k)
	}
	sort.Strings(types)
	for _, k := range types {
		g := p.ByType[k]
		g.finish()
		p.Total.Invested = p.Total.Invested.Add(g.Invested)
		p.Total.MarketValue = p.Total.MarketValue.Add(g.MarketValue)
		p.Total.Realized = p.Total.Realized.Add(g.Realized)
		p.Total.Distributions = p.Total.Distributions.Add(g.Distributions)
	}
	p.Total.finish()

	return p
}

func (a *Aggregator) value(ctx context.Context, pos *costbasis.Position, at time.Time) Holding {
	h := Holding{
		AssetID:       pos.AssetID,
		Asset:         pos.Asset,
		Symbol:        pos.Symbol,
		ISIN:          pos.ISIN,
		PortfolioType: pos.PortfolioType,
		Quantity:      pos.Quantity,
		AverageCost:   pos.AverageCost,
		Invested:      pos.Invested,
		RealizedPnL:   pos.RealizedPnL,
		Distributions: pos.Distributions,
		Warnings:      []string{},
	}

	quote, err := a.quote(ctx, pos.AssetID, at)
	if err != nil {
		h.PricedAtCost = true
		h.MarketPrice = pos.AverageCost
		h.MarketValue = pos.Invested
		h.Warnings = append(h.Warnings, fmt.Sprintf("valued at cost: %v", err))
	} else {
		asOf := quote.AsOf
		h.MarketPrice = quote.Price
		h.MarketValue = pos.Quantity.Mul(quote.Price)
		h.PriceAsOf = &asOf
		h.PriceSource = quote.Source
	}

	h.Unrealized = h.MarketValue.Sub(h.Invested)
	h.UnrealizedPct = percent(h.Unrealized, h.Invested)
	return h
}

func (a *Aggregator) quote(ctx context.Context, assetID string, at time.Time) (*Quote, error) {
	if a.prices == nil {
		return nil, ErrPriceUnavailable
	}
	q, err := a.prices.GetPrice(ctx, assetID, at)
	if err != nil {
		return nil, err
	}
	if q == nil || !q.Price.IsPositive() {
		return nil, ErrPriceUnavailable
	}
	if a.maxAge > 0 && at.Sub(q.AsOf) > a.maxAge {
		return nil, fmt.Errorf("%w: last price %s", ErrPriceStale, q.AsOf.UTC().Format(time.RFC3339))
	}
	return q, nil
}

func (p *Portfolio) group(portfolioType string) *Totals {
	g, ok := p.ByType[portfolioType]
	if !ok {
		g = &Totals{}
		p.ByType[portfolioType] = g
	}
	return g
}

func (t *Totals) finish() {
	t.Unrealized = t.MarketValue.Sub(t.Invested)
	t.UnrealizedPct = percent(t.Unrealized, t.Invested)
	t.TotalPnL = t.Realized.Add(t.Distributions).Add(t.Unrealized)
}

func percent(part, whole decimal.Decimal) decimal.Decimal {
	if whole.IsZero() {
		return decimal.Zero
	}
	return part.Div(whole).Mul(hundred).Round(4)
}
