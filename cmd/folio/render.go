package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"

	"folio/internal/valuation"
)

// formatAmount renders d in the currency's display format, rounded to the
// currency's minor unit. Unknown codes fall back to a plain decimal.
func formatAmount(d decimal.Decimal, code string) string {
	cur := money.GetCurrency(code)
	if cur == nil {
		return d.StringFixed(2) + " " + code
	}
	minor := d.Shift(int32(cur.Fraction)).Round(0).IntPart()
	return money.New(minor, cur.Code).Display()
}

func formatPct(d decimal.Decimal) string {
	if d.IsPositive() {
		return "+" + d.StringFixed(2) + "%"
	}
	return d.StringFixed(2) + "%"
}

// holdingsMarkdown lays out a valuation as one table per portfolio type,
// followed by the totals and any warnings.
func holdingsMarkdown(p *valuation.Portfolio, currency string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Portfolio on %s\n\n", p.At.Format("2006-01-02 15:04 MST"))

	byType := make(map[string][]valuation.Holding)
	for _, h := range p.Holdings {
		byType[h.PortfolioType] = append(byType[h.PortfolioType], h)
	}
	types := make([]string, 0, len(byType))
	for t := range byType {
		types = append(types, t)
	}
	sort.Strings(types)

	for _, t := range types {
		fmt.Fprintf(&b, "## %s\n\n", t)
		b.WriteString("| Asset | Quantity | Avg cost | Price | Value | Unrealized | % |\n")
		b.WriteString("|---|---:|---:|---:|---:|---:|---:|\n")
		for _, h := range byType[t] {
			price := formatAmount(h.MarketPrice, currency)
			if h.PricedAtCost {
				price += " *"
			}
			fmt.Fprintf(&b, "| %s | %s | %s | %s | %s | %s | %s |\n",
				displayName(h), h.Quantity.String(),
				formatAmount(h.AverageCost, currency), price,
				formatAmount(h.MarketValue, currency),
				formatAmount(h.Unrealized, currency), formatPct(h.UnrealizedPct))
		}
		if g, ok := p.ByType[t]; ok {
			fmt.Fprintf(&b, "\nValue %s, invested %s, total P&L %s\n",
				formatAmount(g.MarketValue, currency), formatAmount(g.Invested, currency), formatAmount(g.TotalPnL, currency))
		}
		b.WriteString("\n")
	}

	b.WriteString("## Total\n\n")
	b.WriteString("| Invested | Value | Unrealized | Realized | Distributions | Total P&L |\n")
	b.WriteString("|---:|---:|---:|---:|---:|---:|\n")
	fmt.Fprintf(&b, "| %s | %s | %s | %s | %s | %s |\n",
		formatAmount(p.Total.Invested, currency), formatAmount(p.Total.MarketValue, currency),
		formatAmount(p.Total.Unrealized, currency), formatAmount(p.Total.Realized, currency),
		formatAmount(p.Total.Distributions, currency), formatAmount(p.Total.TotalPnL, currency))

	if len(p.Warnings) > 0 {
		b.WriteString("\n## Warnings\n\n")
		for _, w := range p.Warnings {
			fmt.Fprintf(&b, "- %s\n", w)
		}
		b.WriteString("\n\\* valued at cost, no usable price\n")
	}
	return b.String()
}

func displayName(h valuation.Holding) string {
	switch {
	case h.Symbol != "" && h.Asset != "" && h.Symbol != h.Asset:
		return fmt.Sprintf("%s (%s)", h.Asset, h.Symbol)
	case h.Asset != "":
		return h.Asset
	default:
		return h.AssetID
	}
}
