// Package costbasis replays an asset's transaction history against a fresh
// FIFO ledger and derives the position, realized P&L and distributions.
//
// The engine keeps no state between calls: the same input always yields the
// same Position.
package costbasis

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"folio/internal/ledger"
)

// ErrConversionUnavailable is returned by a Converter that has no rate for
// the requested pair.
var ErrConversionUnavailable = errors.New("currency conversion unavailable")

// Converter converts an amount between currencies at a given instant.
type Converter interface {
	Convert(ctx context.Context, amount decimal.Decimal, from, to string, asOf time.Time) (decimal.Decimal, error)
}

// Engine replays transactions. It is safe for concurrent use: every call
// builds its own ledger.
type Engine struct {
	currency  string
	converter Converter
}

// NewEngine creates an engine settling in the given currency. converter may
// be nil, in which case every foreign fee is treated as unavailable.
func NewEngine(settlementCurrency string, converter Converter) *Engine {
	return &Engine{currency: strings.ToUpper(settlementCurrency), converter: converter}
}

// Currency returns the settlement currency.
func (e *Engine) Currency() string { return e.currency }

// Sort orders transactions by trade time, then insertion sequence, then id.
// The input slice is not modified.
func Sort(txs []Transaction) []Transaction {
	out := make([]Transaction, len(txs))
	copy(out, txs)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.TradedAt.Equal(b.TradedAt) {
			return a.TradedAt.Before(b.TradedAt)
		}
		if a.Sequence != b.Sequence {
			return a.Sequence < b.Sequence
		}
		return a.ID < b.ID
	})
	return out
}

// Replay rebuilds the position of a single asset from scratch. Transactions
// traded after asOf are ignored; a zero asOf replays everything.
func (e *Engine) Replay(ctx context.Context, assetID string, txs []Transaction, asOf time.Time) *Position {
	pos := newPosition(assetID)
	led := ledger.New()

	for _, tx := range Sort(txs) {
		if !asOf.IsZero() && tx.TradedAt.After(asOf) {
			break
		}
		pos.observe(tx)
		e.apply(ctx, pos, led, tx)
		pos.record(tx, led)
	}

	pos.close(led)
	return pos
}

// ReplayAll groups transactions by asset and replays each group. Positions
// are returned ordered by asset id. Cancellation is only observed between
// assets so that a single replay is never interrupted.
func (e *Engine) ReplayAll(ctx context.Context, txs []Transaction, asOf time.Time) ([]*Position, error) {
	groups := Group(txs)
	ids := make([]string, 0, len(groups))
	for id := range groups {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	positions := make([]*Position, 0, len(ids))
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		pos := e.Replay(ctx, id, groups[id], asOf)
		if pos.TransactionCount == 0 {
			continue
		}
		positions = append(positions, pos)
	}
	return positions, nil
}

// Group splits transactions by asset id.
func Group(txs []Transaction) map[string][]Transaction {
	groups := make(map[string][]Transaction)
	for _, tx := range txs {
		groups[tx.AssetID] = append(groups[tx.AssetID], tx)
	}
	return groups
}

func (e *Engine) apply(ctx context.Context, pos *Position, led *ledger.Ledger, tx Transaction) {
	if !tx.Operation.Known() {
		pos.warnf("unrecognized operation %q on transaction %s, skipped", tx.Operation, tx.ID)
		return
	}
	if !tx.Quantity.IsPositive() {
		pos.warnf("%s transaction %s has no quantity, skipped", tx.Operation, tx.ID)
		return
	}

	fee := e.fee(ctx, pos, tx)
	pos.Fees = pos.Fees.Add(fee)

	switch tx.Operation {
	case OpBuy:
		cost := tx.gross().Add(fee)
		led.OpenLotAtCost(tx.Quantity, cost, tx.TradedAt, tx.ID)

	case OpTransferIn:
		basis := tx.gross()
		if !basis.IsPositive() {
			pos.warnf("inbound transfer %s has no known cost basis, opened at zero cost", tx.ID)
		}
		led.OpenLotAtCost(tx.Quantity, basis.Add(fee), tx.TradedAt, tx.ID)

	case OpSell:
		fragments := e.consume(pos, led, tx)
		gross := tx.gross()
		matched := decimal.Zero
		proceedsLeft, feeLeft := gross, fee
		for _, f := range fragments {
			matched = matched.Add(f.Quantity)
			proceeds := gross.Mul(f.Quantity).Div(tx.Quantity)
			feeShare := fee.Mul(f.Quantity).Div(tx.Quantity)
			if matched.Equal(tx.Quantity) {
				// Last fragment of a fully matched sale takes what is left.
				proceeds, feeShare = proceedsLeft, feeLeft
			}
			proceedsLeft = proceedsLeft.Sub(proceeds)
			feeLeft = feeLeft.Sub(feeShare)
			pos.RealizedPnL = pos.RealizedPnL.Add(proceeds.Sub(f.Cost()).Sub(feeShare))
		}

	case OpTransferOut:
		e.consume(pos, led, tx)

	case OpDividend, OpStakingReward:
		pos.Distributions = pos.Distributions.Add(tx.gross().Sub(fee))
	}
}

func (e *Engine) consume(pos *Position, led *ledger.Ledger, tx Transaction) []ledger.Fragment {
	fragments, err := led.Consume(tx.Quantity, tx.TradedAt)
	var overdraft *ledger.OverdraftError
	if errors.As(err, &overdraft) {
		pos.Overdrawn = true
		pos.warnf("%s %s of %s exceeds open quantity %s (shortfall %s)",
			tx.Operation, tx.ID, overdraft.Requested, overdraft.Available, overdraft.Shortfall())
	}
	return fragments
}

// fee returns the transaction fee in settlement currency. Fee already holds
// that amount when set; otherwise a fee charged in another asset is converted,
// and counts as zero when no rate is available.
func (e *Engine) fee(ctx context.Context, pos *Position, tx Transaction) decimal.Decimal {
	if tx.Fee.IsPositive() || tx.FeeAsset == "" || strings.EqualFold(tx.FeeAsset, e.currency) || !tx.FeeQuantity.IsPositive() {
		return tx.Fee
	}
	if e.converter == nil {
		pos.warnf("fee of %s %s on transaction %s: %v, treated as zero", tx.FeeQuantity, tx.FeeAsset, tx.ID, ErrConversionUnavailable)
		return decimal.Zero
	}
	converted, err := e.converter.Convert(ctx, tx.FeeQuantity, strings.ToUpper(tx.FeeAsset), e.currency, tx.TradedAt)
	if err != nil {
		pos.warnf("fee of %s %s on transaction %s: %v, treated as zero", tx.FeeQuantity, tx.FeeAsset, tx.ID, err)
		return decimal.Zero
	}
	return converted
}

// Warning texts are built with fmt so their content stays deterministic.
func (p *Position) warnf(format string, args ...any) {
	p.Warnings = append(p.Warnings, fmt.Sprintf(format, args...))
}
