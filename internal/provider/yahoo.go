package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	yahooChartURL      = "https://query1.finance.yahoo.com/v8/finance/chart"
	yahooMaxConcurrent = 5
	yahooUA            = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7)"
)

// exchangeSuffixes maps exchange MICs and common names to Yahoo Finance
// ticker suffixes. US venues need no suffix.
var exchangeSuffixes = map[string]string{
	"XPAR":     ".PA",
	"EURONEXT": ".PA",
	"XAMS":     ".AS",
	"XBRU":     ".BR",
	"XLIS":     ".LS",
	"XMIL":     ".MI",
	"XDUB":     ".IR",
	"XETR":     ".DE",
	"XETRA":    ".DE",
	"XFRA":     ".F",
	"XLON":     ".L",
	"LSE":      ".L",
	"XSWX":     ".SW",
	"XMAD":     ".MC",
	"XSTO":     ".ST",
	"XTSE":     ".TO",
}

// yahooChartResponse is the v8 chart API response. Only the meta block is read.
type yahooChartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol             string  `json:"symbol"`
				Currency           string  `json:"currency"`
				RegularMarketPrice float64 `json:"regularMarketPrice"`
			} `json:"meta"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// YahooProvider fetches equity and ETF prices from the Yahoo Finance chart API.
type YahooProvider struct {
	httpClient Doer
	baseURL    string // overridable for tests
}

// NewYahooProvider creates a new Yahoo Finance price provider.
func NewYahooProvider(httpClient Doer) *YahooProvider {
	return &YahooProvider{httpClient: httpClient, baseURL: yahooChartURL}
}

// Name returns the provider id recorded as the price source.
func (p *YahooProvider) Name() string { return "yahoo" }

// Supports returns true for equities only.
func (p *YahooProvider) Supports(kind Kind) bool { return kind == KindEquity }

// buildYahooSymbol converts an instrument to a Yahoo ticker. An explicit
// ProviderSymbol wins; otherwise the exchange suffix is appended.
func buildYahooSymbol(inst Instrument) string {
	if inst.ProviderSymbol != "" {
		return inst.ProviderSymbol
	}
	symbol := strings.ToUpper(inst.Symbol)
	if suffix, ok := exchangeSuffixes[strings.ToUpper(inst.Exchange)]; ok {
		return symbol + suffix
	}
	return symbol
}

// FetchPrices fetches one chart per ticker with bounded concurrency.
func (p *YahooProvider) FetchPrices(ctx context.Context, instruments []Instrument) ([]Quote, []FetchError) {
	if len(instruments) == 0 {
		return nil, nil
	}

	var (
		mu          sync.Mutex
		quotes      []Quote
		fetchErrors []FetchError
	)
	now := time.Now().UTC()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(yahooMaxConcurrent)
	for _, inst := range instruments {
		g.Go(func() error {
			ticker := buildYahooSymbol(inst)
			quote, err := p.fetchChart(gctx, ticker)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				fetchErrors = append(fetchErrors, FetchError{AssetID: inst.AssetID, Symbol: ticker, Err: err})
				return nil
			}
			quote.AssetID = inst.AssetID
			quote.RecordedAt = now
			quotes = append(quotes, *quote)
			return nil
		})
	}
	_ = g.Wait()

	return quotes, fetchErrors
}

// fetchChart reads the latest market price and its currency for one ticker.
func (p *YahooProvider) fetchChart(ctx context.Context, ticker string) (*Quote, error) {
	meta, err := getYahooChart(ctx, p.httpClient, p.baseURL, ticker)
	if err != nil {
		return nil, err
	}
	price, err := parsePrice(meta.RegularMarketPrice, ticker)
	if err != nil {
		return nil, err
	}
	// London listings quote in pence.
	if meta.Currency == "GBp" || meta.Currency == "GBX" {
		return &Quote{Price: price.Shift(-2), Currency: "GBP"}, nil
	}
	return &Quote{Price: price, Currency: strings.ToUpper(meta.Currency)}, nil
}

type yahooMeta struct {
	Symbol             string
	Currency           string
	RegularMarketPrice float64
}

// getYahooChart performs a single v8 chart request and returns its meta block.
func getYahooChart(ctx context.Context, client Doer, baseURL, ticker string) (*yahooMeta, error) {
	endpoint := baseURL + "/" + url.PathEscape(ticker) + "?interval=1d&range=1d"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("User-Agent", yahooUA)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request for %s: %w", ticker, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("request for %s: unexpected status %d", ticker, resp.StatusCode)
	}

	var chartResp yahooChartResponse
	if err := json.NewDecoder(resp.Body).Decode(&chartResp); err != nil {
		return nil, fmt.Errorf("decoding response for %s: %w", ticker, err)
	}
	if chartResp.Chart.Error != nil {
		return nil, fmt.Errorf("chart error for %s: %s: %s", ticker, chartResp.Chart.Error.Code, chartResp.Chart.Error.Description)
	}
	if len(chartResp.Chart.Result) == 0 {
		return nil, fmt.Errorf("no chart results for %s", ticker)
	}

	m := chartResp.Chart.Result[0].Meta
	return &yahooMeta{Symbol: m.Symbol, Currency: m.Currency, RegularMarketPrice: m.RegularMarketPrice}, nil
}
