package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"
)

// chartResponse builds a v8 chart JSON body for a single symbol.
func chartResponse(symbol string, price float64, currency string) map[string]any {
	return map[string]any{
		"chart": map[string]any{
			"result": []map[string]any{
				{"meta": map[string]any{"symbol": symbol, "currency": currency, "regularMarketPrice": price}},
			},
			"error": nil,
		},
	}
}

// chartErrorResponse builds a v8 chart error body.
func chartErrorResponse(code, description string) map[string]any {
	return map[string]any{
		"chart": map[string]any{
			"result": nil,
			"error":  map[string]string{"code": code, "description": description},
		},
	}
}

// newChartServer serves chart responses per ticker taken from the URL path.
// Tickers missing from priceMap get a chart error.
func newChartServer(priceMap map[string]float64, currency string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ticker := strings.TrimPrefix(r.URL.Path, "/")
		w.Header().Set("Content-Type", "application/json")

		price, ok := priceMap[ticker]
		if !ok {
			_ = json.NewEncoder(w).Encode(chartErrorResponse("Not Found", "No data found, symbol may be delisted"))
			return
		}
		_ = json.NewEncoder(w).Encode(chartResponse(ticker, price, currency))
	}))
}

func quotesByAsset(quotes []Quote) map[string]Quote {
	out := make(map[string]Quote, len(quotes))
	for _, q := range quotes {
		out[q.AssetID] = q
	}
	return out
}

func TestYahooProvider_Supports(t *testing.T) {
	p := NewYahooProvider(http.DefaultClient)
	if !p.Supports(KindEquity) {
		t.Error("expected Supports(equity) = true")
	}
	if p.Supports(KindCrypto) {
		t.Error("expected Supports(crypto) = false")
	}
}

func TestYahooProvider_FetchPrices_Success(t *testing.T) {
	server := newChartServer(map[string]float64{
		"AAPL":  178.72,
		"MC.PA": 702.4,
	}, "EUR")
	defer server.Close()

	p := &YahooProvider{httpClient: server.Client(), baseURL: server.URL}
	instruments := []Instrument{
		{AssetID: "CTO:US0378331005", Symbol: "AAPL", Kind: KindEquity},
		{AssetID: "PEA:FR0000121014", Symbol: "MC", Exchange: "XPAR", Kind: KindEquity},
	}

	quotes, fetchErrors := p.FetchPrices(context.Background(), instruments)
	if len(fetchErrors) != 0 {
		t.Fatalf("expected 0 errors, got %d: %v", len(fetchErrors), fetchErrors)
	}
	if len(quotes) != 2 {
		t.Fatalf("expected 2 quotes, got %d", len(quotes))
	}

	byAsset := quotesByAsset(quotes)
	if got := byAsset["CTO:US0378331005"].Price; !got.Equal(decimal.RequireFromString("178.72")) {
		t.Errorf("AAPL price = %s, want 178.72", got)
	}
	if got := byAsset["PEA:FR0000121014"].Price; !got.Equal(decimal.RequireFromString("702.4")) {
		t.Errorf("MC price = %s, want 702.4", got)
	}
	for _, q := range quotes {
		if q.Currency != "EUR" {
			t.Errorf("%s: currency = %q, want EUR", q.AssetID, q.Currency)
		}
		if q.RecordedAt.IsZero() {
			t.Errorf("%s: RecordedAt not set", q.AssetID)
		}
	}
}

func TestYahooProvider_FetchPrices_PartialFailure(t *testing.T) {
	server := newChartServer(map[string]float64{"AAPL": 178.72}, "USD")
	defer server.Close()

	p := &YahooProvider{httpClient: server.Client(), baseURL: server.URL}
	instruments := []Instrument{
		{AssetID: "a", Symbol: "AAPL", Kind: KindEquity},
		{AssetID: "b", Symbol: "FAKESYM", Kind: KindEquity},
	}

	quotes, fetchErrors := p.FetchPrices(context.Background(), instruments)
	if len(quotes) != 1 {
		t.Errorf("expected 1 quote, got %d", len(quotes))
	}
	if len(fetchErrors) != 1 {
		t.Fatalf("expected 1 error, got %d", len(fetchErrors))
	}
	if fetchErrors[0].AssetID != "b" {
		t.Errorf("expected error for asset b, got %s", fetchErrors[0].AssetID)
	}
	if !strings.Contains(fetchErrors[0].Err.Error(), "Not Found") {
		t.Errorf("expected chart error, got: %v", fetchErrors[0].Err)
	}
}

func TestYahooProvider_FetchPrices_ProviderSymbolWins(t *testing.T) {
	var mu sync.Mutex
	var paths []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		paths = append(paths, r.URL.Path)
		mu.Unlock()
		ticker := strings.TrimPrefix(r.URL.Path, "/")
		_ = json.NewEncoder(w).Encode(chartResponse(ticker, 31.2, "EUR"))
	}))
	defer server.Close()

	p := &YahooProvider{httpClient: server.Client(), baseURL: server.URL}
	instruments := []Instrument{
		{AssetID: "PEA:IE00B4L5Y983", Symbol: "IWDA", Exchange: "XPAR", ProviderSymbol: "IWDA.AS", Kind: KindEquity},
	}

	_, fetchErrors := p.FetchPrices(context.Background(), instruments)
	if len(fetchErrors) != 0 {
		t.Fatalf("unexpected errors: %v", fetchErrors)
	}
	if len(paths) != 1 || paths[0] != "/IWDA.AS" {
		t.Errorf("expected request for /IWDA.AS, got %v", paths)
	}
}

func TestYahooProvider_FetchPrices_PenceConverted(t *testing.T) {
	server := newChartServer(map[string]float64{"VUAG.L": 8512}, "GBp")
	defer server.Close()

	p := &YahooProvider{httpClient: server.Client(), baseURL: server.URL}
	quotes, fetchErrors := p.FetchPrices(context.Background(), []Instrument{
		{AssetID: "CTO:VUAG", Symbol: "VUAG", Exchange: "LSE", Kind: KindEquity},
	})
	if len(fetchErrors) != 0 {
		t.Fatalf("unexpected errors: %v", fetchErrors)
	}
	if quotes[0].Currency != "GBP" {
		t.Errorf("currency = %q, want GBP", quotes[0].Currency)
	}
	if !quotes[0].Price.Equal(decimal.RequireFromString("85.12")) {
		t.Errorf("price = %s, want 85.12", quotes[0].Price)
	}
}

func TestYahooProvider_FetchPrices_BoundedConcurrency(t *testing.T) {
	var maxInFlight atomic.Int32
	var curInFlight atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cur := curInFlight.Add(1)
		for {
			old := maxInFlight.Load()
			if cur <= old || maxInFlight.CompareAndSwap(old, cur) {
				break
			}
		}
		defer curInFlight.Add(-1)

		ticker := strings.TrimPrefix(r.URL.Path, "/")
		_ = json.NewEncoder(w).Encode(chartResponse(ticker, 100, "USD"))
	}))
	defer server.Close()

	p := &YahooProvider{httpClient: server.Client(), baseURL: server.URL}
	instruments := make([]Instrument, 15)
	for i := range instruments {
		sym := "SYM" + string(rune('A'+i))
		instruments[i] = Instrument{AssetID: sym, Symbol: sym, Kind: KindEquity}
	}

	quotes, fetchErrors := p.FetchPrices(context.Background(), instruments)
	if len(fetchErrors) != 0 {
		t.Fatalf("expected 0 errors, got %d: %v", len(fetchErrors), fetchErrors)
	}
	if len(quotes) != 15 {
		t.Errorf("expected 15 quotes, got %d", len(quotes))
	}
	if peak := maxInFlight.Load(); peak > int32(yahooMaxConcurrent) {
		t.Errorf("peak concurrency %d exceeded limit %d", peak, yahooMaxConcurrent)
	}
}

func TestYahooProvider_FetchPrices_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	p := &YahooProvider{httpClient: server.Client(), baseURL: server.URL}
	quotes, fetchErrors := p.FetchPrices(context.Background(), []Instrument{
		{AssetID: "a", Symbol: "AAPL", Kind: KindEquity},
		{AssetID: "b", Symbol: "MSFT", Kind: KindEquity},
	})
	if len(quotes) != 0 {
		t.Errorf("expected 0 quotes, got %d", len(quotes))
	}
	if len(fetchErrors) != 2 {
		t.Fatalf("expected 2 errors, got %d", len(fetchErrors))
	}
	for _, fe := range fetchErrors {
		if !strings.Contains(fe.Err.Error(), "500") {
			t.Errorf("expected error to mention 500, got: %v", fe.Err)
		}
	}
}

func TestYahooProvider_FetchPrices_ZeroPrice(t *testing.T) {
	server := newChartServer(map[string]float64{"DEAD": 0}, "USD")
	defer server.Close()

	p := &YahooProvider{httpClient: server.Client(), baseURL: server.URL}
	quotes, fetchErrors := p.FetchPrices(context.Background(), []Instrument{
		{AssetID: "dead", Symbol: "DEAD", Kind: KindEquity},
	})
	if len(quotes) != 0 {
		t.Errorf("expected 0 quotes for zero price, got %d", len(quotes))
	}
	if len(fetchErrors) != 1 || !strings.Contains(fetchErrors[0].Err.Error(), "zero price") {
		t.Errorf("expected zero price error, got: %v", fetchErrors)
	}
}

func TestBuildYahooSymbol(t *testing.T) {
	tests := []struct {
		name string
		inst Instrument
		want string
	}{
		{"bare symbol", Instrument{Symbol: "aapl"}, "AAPL"},
		{"paris mic", Instrument{Symbol: "AI", Exchange: "XPAR"}, "AI.PA"},
		{"xetra name", Instrument{Symbol: "SAP", Exchange: "xetra"}, "SAP.DE"},
		{"unknown exchange", Instrument{Symbol: "BRK-B", Exchange: "XNYS"}, "BRK-B"},
		{"provider symbol", Instrument{Symbol: "CW8", Exchange: "XPAR", ProviderSymbol: "CW8.PA"}, "CW8.PA"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := buildYahooSymbol(tt.inst); got != tt.want {
				t.Errorf("buildYahooSymbol() = %q, want %q", got, tt.want)
			}
		})
	}
}
