// Package provider fetches market prices and exchange rates from external
// data sources.
package provider

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

// Kind selects which provider can quote an instrument.
type Kind string

const (
	KindEquity Kind = "equity"
	KindCrypto Kind = "crypto"
)

// Instrument is an asset as seen by a price provider.
type Instrument struct {
	AssetID        string
	Symbol         string
	ProviderSymbol string
	ISIN           string
	Exchange       string
	Kind           Kind
	Currency       string
}

// Quote is a successfully fetched price in the instrument's quote currency.
type Quote struct {
	AssetID    string
	Price      decimal.Decimal
	Currency   string
	RecordedAt time.Time
}

// FetchError represents a failed price fetch for a specific instrument.
type FetchError struct {
	AssetID string
	Symbol  string
	Err     error
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	return fmt.Sprintf("failed to fetch price for %s (%s): %v", e.Symbol, e.AssetID, e.Err)
}

// Unwrap returns the underlying error.
func (e *FetchError) Unwrap() error { return e.Err }

// Provider fetches current market prices for a set of instruments.
type Provider interface {
	// Name identifies the provider; it is recorded as the price source.
	Name() string

	// Supports returns true if this provider can quote the given kind.
	Supports(kind Kind) bool

	// FetchPrices returns as many quotes as it can, plus one error per
	// instrument it could not price.
	FetchPrices(ctx context.Context, instruments []Instrument) ([]Quote, []FetchError)
}

// Doer executes HTTP requests. *http.Client and *LimitedClient satisfy it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// LimitedClient is an HTTP client that waits on a token bucket before every
// request, so all providers sharing it stay under one request rate.
type LimitedClient struct {
	client  *http.Client
	limiter *rate.Limiter
}

// NewLimitedClient allows perSecond requests with the given burst.
func NewLimitedClient(client *http.Client, perSecond float64, burst int) *LimitedClient {
	if burst < 1 {
		burst = 1
	}
	return &LimitedClient{
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(perSecond), burst),
	}
}

// Do blocks until the limiter admits the request or its context ends.
func (c *LimitedClient) Do(req *http.Request) (*http.Response, error) {
	if err := c.limiter.Wait(req.Context()); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}
	return c.client.Do(req)
}

// parsePrice converts a JSON float into a decimal, rejecting non-positive
// values.
func parsePrice(raw float64, ticker string) (decimal.Decimal, error) {
	if raw <= 0 {
		return decimal.Zero, fmt.Errorf("zero price for %s", ticker)
	}
	return decimal.NewFromFloat(raw), nil
}
