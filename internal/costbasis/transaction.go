package costbasis

import (
	"time"

	"github.com/shopspring/decimal"
)

// Operation is the kind of a portfolio transaction.
type Operation string

const (
	OpBuy           Operation = "BUY"
	OpSell          Operation = "SELL"
	OpDividend      Operation = "DIVIDEND"
	OpStakingReward Operation = "STAKING_REWARD"
	OpTransferIn    Operation = "TRANSFER_IN"
	OpTransferOut   Operation = "TRANSFER_OUT"
)

// Known reports whether the engine knows how to replay the operation.
func (o Operation) Known() bool {
	switch o {
	case OpBuy, OpSell, OpDividend, OpStakingReward, OpTransferIn, OpTransferOut:
		return true
	}
	return false
}

// Transaction is the typed record replayed by the engine. Quantity is always
// positive; Operation gives the direction.
type Transaction struct {
	ID            string
	Sequence      int64
	AssetID       string
	Asset         string
	Symbol        string
	ISIN          string
	PortfolioType string
	Operation     Operation
	TradedAt      time.Time
	Quantity      decimal.Decimal
	UnitPrice     decimal.Decimal
	Total         decimal.Decimal
	Fee           decimal.Decimal
	// FeeAsset and FeeQuantity describe a fee charged in another currency
	// or asset than the settlement currency.
	FeeAsset    string
	FeeQuantity decimal.Decimal
}

// gross returns the settlement value of the transaction before fees.
func (t Transaction) gross() decimal.Decimal {
	if t.UnitPrice.IsPositive() {
		return t.Quantity.Mul(t.UnitPrice)
	}
	return t.Total
}
