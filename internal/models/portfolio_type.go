package models

import "strings"

// Portfolio types recognized by the tracker.
const (
	PortfolioPEA    = "PEA"
	PortfolioCTO    = "CTO"
	PortfolioCrypto = "CRYPTO"
)

// portfolioAliases maps broker-specific account labels onto a canonical type.
var portfolioAliases = map[string]string{
	"PEA-PME":         PortfolioPEA,
	"PEA PME":         PortfolioPEA,
	"PEAJEUNE":        PortfolioPEA,
	"PEA JEUNE":       PortfolioPEA,
	"PEA JEUNE LCL":   PortfolioPEA,
	"CRYPTO BINANCE":  PortfolioCrypto,
	"CRYPTO_BINANCE":  PortfolioCrypto,
	"CRYPTO-BINANCE":  PortfolioCrypto,
	"CRYPTO COINBASE": PortfolioCrypto,
	"CRYPTO KRAKEN":   PortfolioCrypto,
	"COMPTE TITRES":   PortfolioCTO,
	"COMPTE-TITRES":   PortfolioCTO,
}

// NormalizePortfolioType upper-cases, collapses whitespace and resolves
// aliases. Unknown labels are returned normalized but unresolved.
func NormalizePortfolioType(raw string) string {
	s := strings.ToUpper(strings.Join(strings.Fields(raw), " "))
	if canonical, ok := portfolioAliases[s]; ok {
		return canonical
	}
	return s
}

// IsKnownPortfolioType reports whether the (normalized) label is a canonical type.
func IsKnownPortfolioType(s string) bool {
	switch s {
	case PortfolioPEA, PortfolioCTO, PortfolioCrypto:
		return true
	}
	return false
}

// AssetKey derives the stable asset id used to group transactions:
// "<portfolio type>:<ISIN | SYMBOL | ASSET>", first non-empty wins.
func AssetKey(portfolioType, isin, symbol, asset string) string {
	ident := strings.ToUpper(strings.TrimSpace(isin))
	if ident == "" {
		ident = strings.ToUpper(strings.TrimSpace(symbol))
	}
	if ident == "" {
		ident = strings.ToUpper(strings.TrimSpace(asset))
	}
	return NormalizePortfolioType(portfolioType) + ":" + ident
}
