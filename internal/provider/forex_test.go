package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"
)

func newTestForexConverter(server *httptest.Server) *ForexConverter {
	return &ForexConverter{
		httpClient: server.Client(),
		baseURL:    server.URL,
		rates:      make(map[string]decimal.Decimal),
	}
}

func TestForexConverter_GetRate_SameCurrency(t *testing.T) {
	fc := NewForexConverter(http.DefaultClient)

	rate, err := fc.GetRate(context.Background(), "eur", "EUR")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !rate.Equal(decimal.NewFromInt(1)) {
		t.Errorf("rate = %s, want 1", rate)
	}
}

func TestForexConverter_GetRate_CachesPair(t *testing.T) {
	var calls atomic.Int32
	inner := newChartServer(map[string]float64{"USDEUR=X": 0.92}, "EUR")
	defer inner.Close()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		inner.Config.Handler.ServeHTTP(w, r)
	}))
	defer server.Close()

	fc := newTestForexConverter(server)
	for range 3 {
		rate, err := fc.GetRate(context.Background(), "USD", "EUR")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !rate.Equal(decimal.RequireFromString("0.92")) {
			t.Errorf("rate = %s, want 0.92", rate)
		}
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("expected 1 request, got %d", n)
	}
}

func TestForexConverter_Convert(t *testing.T) {
	server := newChartServer(map[string]float64{"USDEUR=X": 0.9}, "EUR")
	defer server.Close()

	fc := newTestForexConverter(server)
	got, err := fc.Convert(context.Background(), decimal.NewFromInt(250), "USD", "EUR")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Equal(decimal.NewFromInt(225)) {
		t.Errorf("Convert = %s, want 225", got)
	}
}

func TestForexConverter_GetRate_UnknownPair(t *testing.T) {
	server := newChartServer(map[string]float64{}, "EUR")
	defer server.Close()

	fc := newTestForexConverter(server)
	_, err := fc.GetRate(context.Background(), "XYZ", "EUR")
	if err == nil {
		t.Fatal("expected error for unknown pair")
	}
	if !strings.Contains(err.Error(), "XYZEUR=X") {
		t.Errorf("expected error to name the ticker, got: %v", err)
	}
}

func TestForexConverter_GetRate_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	fc := newTestForexConverter(server)
	if _, err := fc.GetRate(context.Background(), "USD", "EUR"); err == nil || !strings.Contains(err.Error(), "502") {
		t.Errorf("expected 502 error, got: %v", err)
	}
}
