package main

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"folio/internal/valuation"
)

func TestFormatAmount(t *testing.T) {
	tests := []struct {
		amount string
		code   string
		digits string
		symbol string
	}{
		{"1234.5", "EUR", "1,234.50", "€"},
		{"-12.345", "USD", "12.35", "$"},
		{"1500", "JPY", "1,500", "¥"},
		{"3", "ZZZ", "3.00", "ZZZ"},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			got := formatAmount(decimal.RequireFromString(tt.amount), tt.code)
			if !strings.Contains(got, tt.digits) || !strings.Contains(got, tt.symbol) {
				t.Errorf("formatAmount(%s, %s) = %q, want %s with %s", tt.amount, tt.code, got, tt.digits, tt.symbol)
			}
		})
	}
}

func TestHoldingsMarkdown(t *testing.T) {
	p := &valuation.Portfolio{
		At: time.Date(2024, 3, 1, 18, 0, 0, 0, time.UTC),
		Holdings: []valuation.Holding{
			{AssetID: "PEA:FR0000120073", Asset: "Air Liquide", PortfolioType: "PEA",
				Quantity: decimal.NewFromInt(3), AverageCost: decimal.NewFromInt(120), MarketPrice: decimal.NewFromInt(130),
				MarketValue: decimal.NewFromInt(390), Unrealized: decimal.NewFromInt(30), UnrealizedPct: decimal.RequireFromString("8.3333")},
			{AssetID: "CRYPTO:BTC", Asset: "BTC", PortfolioType: "CRYPTO", PricedAtCost: true,
				Quantity: decimal.RequireFromString("0.5"), AverageCost: decimal.NewFromInt(40000), MarketPrice: decimal.NewFromInt(40000),
				MarketValue: decimal.NewFromInt(20000)},
		},
		ByType: map[string]*valuation.Totals{
			"PEA": {MarketValue: decimal.NewFromInt(390)},
		},
		Total:    valuation.Totals{MarketValue: decimal.NewFromInt(20390), TotalPnL: decimal.NewFromInt(587)},
		Warnings: []string{"CRYPTO:BTC: no price"},
	}

	md := holdingsMarkdown(p, "EUR")

	if strings.Index(md, "## CRYPTO") > strings.Index(md, "## PEA") {
		t.Error("expected portfolio types in alphabetical order")
	}
	for _, want := range []string{
		"# Portfolio on 2024-03-01 18:00 UTC",
		"| Air Liquide | 3 |",
		"+8.33%",
		"40,000.00",
		" * |",
		"587.00",
		"- CRYPTO:BTC: no price",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("expected markdown to contain %q\n%s", want, md)
		}
	}
}
