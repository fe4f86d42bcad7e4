package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"
)

const coinGeckoSimplePriceURL = "https://api.coingecko.com/api/v3/simple/price"

// coinGeckoIDs maps ticker symbols to CoinGecko coin ids.
var coinGeckoIDs = map[string]string{
	"BTC":   "bitcoin",
	"ETH":   "ethereum",
	"SOL":   "solana",
	"BNB":   "binancecoin",
	"ADA":   "cardano",
	"XRP":   "ripple",
	"DOT":   "polkadot",
	"DOGE":  "dogecoin",
	"AVAX":  "avalanche-2",
	"MATIC": "matic-network",
	"POL":   "polygon-ecosystem-token",
	"LINK":  "chainlink",
	"ATOM":  "cosmos",
	"LTC":   "litecoin",
	"USDT":  "tether",
	"USDC":  "usd-coin",
	"EURC":  "euro-coin",
}

// LookupCoinGeckoID resolves a ticker symbol to its CoinGecko id.
func LookupCoinGeckoID(symbol string) (string, bool) {
	id, ok := coinGeckoIDs[strings.ToUpper(strings.TrimSpace(symbol))]
	return id, ok
}

// CoinGeckoProvider fetches crypto prices from the CoinGecko simple price API.
type CoinGeckoProvider struct {
	httpClient Doer
	baseURL    string // overridable for tests
	currency   string
}

// NewCoinGeckoProvider creates a provider quoting in the given currency
// unless an instrument names its own.
func NewCoinGeckoProvider(httpClient Doer, currency string) *CoinGeckoProvider {
	return &CoinGeckoProvider{
		httpClient: httpClient,
		baseURL:    coinGeckoSimplePriceURL,
		currency:   strings.ToUpper(currency),
	}
}

// Name returns the provider id recorded as the price source.
func (p *CoinGeckoProvider) Name() string { return "coingecko" }

// Supports returns true for crypto only.
func (p *CoinGeckoProvider) Supports(kind Kind) bool { return kind == KindCrypto }

type coinGeckoRequest struct {
	inst   Instrument
	coinID string
}

// FetchPrices issues one request per quote currency covering every coin id.
func (p *CoinGeckoProvider) FetchPrices(ctx context.Context, instruments []Instrument) ([]Quote, []FetchError) {
	var fetchErrors []FetchError
	byCurrency := make(map[string][]coinGeckoRequest)

	for _, inst := range instruments {
		coinID := inst.ProviderSymbol
		if coinID == "" {
			var ok bool
			coinID, ok = LookupCoinGeckoID(inst.Symbol)
			if !ok {
				fetchErrors = append(fetchErrors, FetchError{
					AssetID: inst.AssetID,
					Symbol:  inst.Symbol,
					Err:     fmt.Errorf("no CoinGecko mapping for symbol %s", inst.Symbol),
				})
				continue
			}
		}
		currency := strings.ToUpper(inst.Currency)
		if currency == "" {
			currency = p.currency
		}
		byCurrency[currency] = append(byCurrency[currency], coinGeckoRequest{inst: inst, coinID: coinID})
	}

	currencies := make([]string, 0, len(byCurrency))
	for c := range byCurrency {
		currencies = append(currencies, c)
	}
	sort.Strings(currencies)

	var quotes []Quote
	now := time.Now().UTC()
	for _, currency := range currencies {
		q, errs := p.fetchGroup(ctx, currency, byCurrency[currency], now)
		quotes = append(quotes, q...)
		fetchErrors = append(fetchErrors, errs...)
	}
	return quotes, fetchErrors
}

func (p *CoinGeckoProvider) fetchGroup(ctx context.Context, currency string, reqs []coinGeckoRequest, now time.Time) ([]Quote, []FetchError) {
	ids := make([]string, 0, len(reqs))
	seen := make(map[string]bool, len(reqs))
	for _, r := range reqs {
		if !seen[r.coinID] {
			seen[r.coinID] = true
			ids = append(ids, r.coinID)
		}
	}
	vs := strings.ToLower(currency)

	params := url.Values{}
	params.Set("ids", strings.Join(ids, ","))
	params.Set("vs_currencies", vs)

	failAll := func(err error) []FetchError {
		errs := make([]FetchError, len(reqs))
		for i, r := range reqs {
			errs[i] = FetchError{AssetID: r.inst.AssetID, Symbol: r.inst.Symbol, Err: err}
		}
		return errs
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, failAll(fmt.Errorf("building request: %w", err))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, failAll(fmt.Errorf("http request: %w", err))
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, failAll(fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	var body map[string]map[string]float64
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, failAll(fmt.Errorf("decoding response: %w", err))
	}

	var quotes []Quote
	var fetchErrors []FetchError
	for _, r := range reqs {
		raw, ok := body[r.coinID][vs]
		if !ok {
			fetchErrors = append(fetchErrors, FetchError{
				AssetID: r.inst.AssetID,
				Symbol:  r.inst.Symbol,
				Err:     fmt.Errorf("%s not found in response", r.coinID),
			})
			continue
		}
		price, err := parsePrice(raw, r.coinID)
		if err != nil {
			fetchErrors = append(fetchErrors, FetchError{AssetID: r.inst.AssetID, Symbol: r.inst.Symbol, Err: err})
			continue
		}
		quotes = append(quotes, Quote{
			AssetID:    r.inst.AssetID,
			Price:      price,
			Currency:   currency,
			RecordedAt: now,
		})
	}
	return quotes, fetchErrors
}
