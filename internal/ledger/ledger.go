// Package ledger implements the per-asset FIFO queue of open acquisition lots.
//
// A Ledger is not safe for concurrent use. Callers own one Ledger per replay
// and discard it afterwards.
package ledger

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Lot is an open acquisition record. SourceRef identifies the transaction
// that opened it. CostBasis is the total cost of the remaining quantity,
// fee included; UnitCost is derived from it at opening and is informative.
type Lot struct {
	SourceRef  string          `json:"source_ref"`
	AcquiredAt time.Time       `json:"acquired_at"`
	Original   decimal.Decimal `json:"original_quantity"`
	Remaining  decimal.Decimal `json:"remaining_quantity"`
	UnitCost   decimal.Decimal `json:"unit_cost"`
	CostBasis  decimal.Decimal `json:"cost_basis"`
}

// Cost returns the cost basis of the remaining quantity.
func (l Lot) Cost() decimal.Decimal {
	return l.CostBasis
}

// take removes qty from the lot and returns the cost it carried. Taking the
// whole remainder returns the remaining cost exactly.
func (l *Lot) take(qty decimal.Decimal) decimal.Decimal {
	cost := l.CostBasis
	if qty.LessThan(l.Remaining) {
		cost = l.CostBasis.Mul(qty).Div(l.Remaining)
	}
	l.Remaining = l.Remaining.Sub(qty)
	l.CostBasis = l.CostBasis.Sub(cost)
	return cost
}

// Fragment is the part of a lot taken by one Consume call.
type Fragment struct {
	SourceRef  string          `json:"source_ref"`
	AcquiredAt time.Time       `json:"acquired_at"`
	Quantity   decimal.Decimal `json:"quantity"`
	UnitCost   decimal.Decimal `json:"unit_cost"`
	CostBasis  decimal.Decimal `json:"cost_basis"`
}

// Cost returns the cost basis carried by the fragment.
func (f Fragment) Cost() decimal.Decimal {
	return f.CostBasis
}

// OverdraftError reports a disposal larger than the open position.
type OverdraftError struct {
	Requested decimal.Decimal
	Available decimal.Decimal
	AsOf      time.Time
}

// Error implements the error interface.
func (e *OverdraftError) Error() string {
	return fmt.Sprintf("overdraft on %s: requested %s, only %s open",
		e.AsOf.UTC().Format(time.RFC3339), e.Requested, e.Available)
}

// Shortfall returns the quantity that could not be matched against a lot.
func (e *OverdraftError) Shortfall() decimal.Decimal {
	return e.Requested.Sub(e.Available)
}

// Ledger holds the open lots of a single asset in insertion order. Callers
// feed lots in acquisition order; lots sharing a timestamp are consumed in
// the order they were opened.
type Ledger struct {
	lots []Lot
}

// New returns an empty ledger.
func New() *Ledger {
	return &Ledger{}
}

// OpenLot appends a new lot at the tail of the queue. The caller guarantees
// quantity > 0.
func (l *Ledger) OpenLot(quantity, unitCost decimal.Decimal, acquiredAt time.Time, sourceRef string) {
	l.OpenLotAtCost(quantity, quantity.Mul(unitCost), acquiredAt, sourceRef)
}

// OpenLotAtCost appends a lot whose total cost is known. Disposals prorate
// that total, so no precision is lost to a rounded unit cost.
func (l *Ledger) OpenLotAtCost(quantity, cost decimal.Decimal, acquiredAt time.Time, sourceRef string) {
	l.lots = append(l.lots, Lot{
		SourceRef:  sourceRef,
		AcquiredAt: acquiredAt,
		Original:   quantity,
		Remaining:  quantity,
		UnitCost:   cost.Div(quantity),
		CostBasis:  cost,
	})
}

// Consume removes quantity units from the head of the queue, splitting the
// oldest lot when it holds more than needed. The returned fragments are in
// consumption order.
//
// If quantity exceeds the open quantity, every open lot is consumed, the
// fragments taken so far are returned and the error is an *OverdraftError.
func (l *Ledger) Consume(quantity decimal.Decimal, asOf time.Time) ([]Fragment, error) {
	available := l.Quantity()
	left := quantity
	var fragments []Fragment

	for left.IsPositive() && len(l.lots) > 0 {
		head := &l.lots[0]
		take := decimal.Min(head.Remaining, left)

		fragments = append(fragments, Fragment{
			SourceRef:  head.SourceRef,
			AcquiredAt: head.AcquiredAt,
			Quantity:   take,
			UnitCost:   head.UnitCost,
			CostBasis:  head.take(take),
		})

		left = left.Sub(take)
		if !head.Remaining.IsPositive() {
			l.lots = l.lots[1:]
		}
	}

	if left.IsPositive() {
		return fragments, &OverdraftError{Requested: quantity, Available: available, AsOf: asOf}
	}
	return fragments, nil
}

// Quantity returns the sum of remaining lot quantities.
func (l *Ledger) Quantity() decimal.Decimal {
	total := decimal.Zero
	for _, lot := range l.lots {
		total = total.Add(lot.Remaining)
	}
	return total
}

// Invested returns the cost basis of all open lots.
func (l *Ledger) Invested() decimal.Decimal {
	total := decimal.Zero
	for _, lot := range l.lots {
		total = total.Add(lot.Cost())
	}
	return total
}

// Snapshot returns a copy of the open lots, oldest first.
func (l *Ledger) Snapshot() []Lot {
	out := make([]Lot, len(l.lots))
	copy(out, l.lots)
	return out
}

// Len returns the number of open lots.
func (l *Ledger) Len() int { return len(l.lots) }
