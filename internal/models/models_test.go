package models

import (
	"testing"
)

func TestNormalizePortfolioType(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"pea", PortfolioPEA},
		{"  PEA   JEUNE ", PortfolioPEA},
		{"pea-pme", PortfolioPEA},
		{"Crypto Binance", PortfolioCrypto},
		{"crypto_binance", PortfolioCrypto},
		{"cto", PortfolioCTO},
		{"livret a", "LIVRET A"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := NormalizePortfolioType(tt.in); got != tt.want {
				t.Errorf("NormalizePortfolioType(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
	if IsKnownPortfolioType("LIVRET A") {
		t.Error("LIVRET A should not be a known portfolio type")
	}
}

func TestAssetKey(t *testing.T) {
	if got := AssetKey("pea jeune", "fr0000120271", "TTE", "TotalEnergies"); got != "PEA:FR0000120271" {
		t.Errorf("isin should win, got %q", got)
	}
	if got := AssetKey("CRYPTO", "", "btc", "Bitcoin"); got != "CRYPTO:BTC" {
		t.Errorf("symbol should win over asset, got %q", got)
	}
	if got := AssetKey("CTO", "", "", "Some Fund"); got != "CTO:SOME FUND" {
		t.Errorf("asset fallback, got %q", got)
	}
}

func TestNextSequence_StrictlyIncreasing(t *testing.T) {
	prev := nextSequence()
	for i := 0; i < 1000; i++ {
		next := nextSequence()
		if next <= prev {
			t.Fatalf("sequence went from %d to %d", prev, next)
		}
		prev = next
	}
}

func TestStringList_RoundTrip(t *testing.T) {
	in := StringList{"a", "b: c"}
	v, err := in.Value()
	if err != nil {
		t.Fatalf("Value: %v", err)
	}

	var out StringList
	if err := out.Scan(v); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(out) != 2 || out[1] != "b: c" {
		t.Errorf("unexpected %v", out)
	}

	var empty StringList
	if err := empty.Scan(nil); err != nil || empty == nil || len(empty) != 0 {
		t.Errorf("nil scan should give empty list, got %v (%v)", empty, err)
	}
}
