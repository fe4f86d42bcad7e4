package provider

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
)

// ForexConverter fetches exchange rates from the Yahoo Finance chart API.
// Rates are cached for the lifetime of the converter, so a fresh instance
// should be used per refresh cycle.
type ForexConverter struct {
	httpClient Doer
	baseURL    string // overridable for tests
	mu         sync.RWMutex
	rates      map[string]decimal.Decimal // "USDEUR" -> 0.92 (1 USD = 0.92 EUR)
}

// NewForexConverter creates a new ForexConverter.
func NewForexConverter(httpClient Doer) *ForexConverter {
	return &ForexConverter{
		httpClient: httpClient,
		baseURL:    yahooChartURL,
		rates:      make(map[string]decimal.Decimal),
	}
}

// Name returns the source recorded alongside fetched rates.
func (f *ForexConverter) Name() string { return "yahoo" }

// GetRate returns how many units of to one unit of from buys.
func (f *ForexConverter) GetRate(ctx context.Context, from, to string) (decimal.Decimal, error) {
	from, to = strings.ToUpper(from), strings.ToUpper(to)
	if from == to {
		return decimal.NewFromInt(1), nil
	}

	pair := from + to
	f.mu.RLock()
	rate, ok := f.rates[pair]
	f.mu.RUnlock()
	if ok {
		return rate, nil
	}

	rate, err := f.fetchRate(ctx, pair)
	if err != nil {
		return decimal.Zero, err
	}

	f.mu.Lock()
	f.rates[pair] = rate
	f.mu.Unlock()

	return rate, nil
}

// Convert converts amount from one currency to another.
func (f *ForexConverter) Convert(ctx context.Context, amount decimal.Decimal, from, to string) (decimal.Decimal, error) {
	rate, err := f.GetRate(ctx, from, to)
	if err != nil {
		return decimal.Zero, err
	}
	return amount.Mul(rate), nil
}

// fetchRate reads a pair through its "XXXYYY=X" ticker.
func (f *ForexConverter) fetchRate(ctx context.Context, pair string) (decimal.Decimal, error) {
	ticker := pair + "=X"
	meta, err := getYahooChart(ctx, f.httpClient, f.baseURL, ticker)
	if err != nil {
		return decimal.Zero, fmt.Errorf("forex: %w", err)
	}
	if meta.RegularMarketPrice <= 0 {
		return decimal.Zero, fmt.Errorf("forex: invalid rate for %s: %f", ticker, meta.RegularMarketPrice)
	}
	return decimal.NewFromFloat(meta.RegularMarketPrice), nil
}
