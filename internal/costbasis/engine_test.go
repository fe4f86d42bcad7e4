package costbasis

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

var (
	t1 = time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)
	t2 = time.Date(2024, 2, 12, 9, 0, 0, 0, time.UTC)
	t3 = time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC)
	t4 = time.Date(2024, 4, 20, 9, 0, 0, 0, time.UTC)
)

type fakeConverter struct {
	rates map[string]decimal.Decimal
}

func (f fakeConverter) Convert(_ context.Context, amount decimal.Decimal, from, to string, _ time.Time) (decimal.Decimal, error) {
	rate, ok := f.rates[from+to]
	if !ok {
		return decimal.Zero, ErrConversionUnavailable
	}
	return amount.Mul(rate), nil
}

// buy 10 @ 100 (fee 5), buy 5 @ 120, sell 12 @ 150 (fee 6).
func worked() []Transaction {
	return []Transaction{
		{ID: "b1", Sequence: 1, AssetID: "PEA:X", Operation: OpBuy, TradedAt: t1, Quantity: d("10"), UnitPrice: d("100"), Fee: d("5")},
		{ID: "b2", Sequence: 2, AssetID: "PEA:X", Operation: OpBuy, TradedAt: t2, Quantity: d("5"), UnitPrice: d("120")},
		{ID: "s1", Sequence: 3, AssetID: "PEA:X", Operation: OpSell, TradedAt: t3, Quantity: d("12"), UnitPrice: d("150"), Fee: d("6")},
	}
}

func TestReplay_WorkedExample(t *testing.T) {
	e := NewEngine("EUR", nil)
	pos := e.Replay(context.Background(), "PEA:X", worked(), time.Time{})

	// proceeds 1800, cost 10*100.5 + 2*120 = 1245, fee 6
	assert.True(t, pos.RealizedPnL.Equal(d("549")), "realized %s", pos.RealizedPnL)
	assert.True(t, pos.Quantity.Equal(d("3")))
	assert.True(t, pos.Invested.Equal(d("360")))
	assert.True(t, pos.AverageCost.Equal(d("120")))
	assert.True(t, pos.Fees.Equal(d("11")))
	assert.Empty(t, pos.Warnings)

	require.Len(t, pos.Lots, 1)
	assert.Equal(t, "b2", pos.Lots[0].SourceRef)

	require.Len(t, pos.History, 3)
	assert.True(t, pos.History[0].Invested.Equal(d("1005")))
	assert.True(t, pos.History[1].Quantity.Equal(d("15")))
	assert.True(t, pos.History[2].RealizedPnL.Equal(d("549")))
	assert.Equal(t, t1, pos.FirstTradeAt)
	assert.Equal(t, t3, pos.LastTradeAt)
}

func TestReplay_AsOfCutoff(t *testing.T) {
	e := NewEngine("EUR", nil)
	pos := e.Replay(context.Background(), "PEA:X", worked(), t2)

	assert.True(t, pos.Quantity.Equal(d("15")))
	assert.True(t, pos.RealizedPnL.IsZero())
	assert.Equal(t, 2, pos.TransactionCount)
}

func TestReplay_Deterministic(t *testing.T) {
	e := NewEngine("EUR", nil)
	first := e.Replay(context.Background(), "PEA:X", worked(), time.Time{})
	second := e.Replay(context.Background(), "PEA:X", worked(), time.Time{})
	assert.Equal(t, first, second)
}

func TestReplay_InputOrderIrrelevant(t *testing.T) {
	e := NewEngine("EUR", nil)
	want := e.Replay(context.Background(), "PEA:X", worked(), time.Time{})

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 10; i++ {
		txs := worked()
		rng.Shuffle(len(txs), func(a, b int) { txs[a], txs[b] = txs[b], txs[a] })
		got := e.Replay(context.Background(), "PEA:X", txs, time.Time{})
		assert.Equal(t, want, got)
	}
}

func TestReplay_SameTimestampUsesSequence(t *testing.T) {
	txs := []Transaction{
		{ID: "z", Sequence: 1, Operation: OpBuy, TradedAt: t1, Quantity: d("1"), UnitPrice: d("10")},
		{ID: "a", Sequence: 2, Operation: OpBuy, TradedAt: t1, Quantity: d("1"), UnitPrice: d("20")},
		{ID: "s", Sequence: 3, Operation: OpSell, TradedAt: t2, Quantity: d("1"), UnitPrice: d("30")},
	}
	pos := NewEngine("EUR", nil).Replay(context.Background(), "A", txs, time.Time{})

	assert.True(t, pos.RealizedPnL.Equal(d("20")))
	require.Len(t, pos.Lots, 1)
	assert.Equal(t, "a", pos.Lots[0].SourceRef)
}

func TestReplay_TransferOutRealizesNothing(t *testing.T) {
	txs := []Transaction{
		{ID: "b", Operation: OpBuy, TradedAt: t1, Quantity: d("2"), UnitPrice: d("50")},
		{ID: "o", Operation: OpTransferOut, TradedAt: t2, Quantity: d("1")},
	}
	pos := NewEngine("EUR", nil).Replay(context.Background(), "A", txs, time.Time{})

	assert.True(t, pos.RealizedPnL.IsZero())
	assert.True(t, pos.Quantity.Equal(d("1")))
	assert.True(t, pos.Invested.Equal(d("50")))
}

func TestReplay_TransferInWithoutBasis(t *testing.T) {
	txs := []Transaction{
		{ID: "in", Operation: OpTransferIn, TradedAt: t1, Quantity: d("4")},
		{ID: "s", Operation: OpSell, TradedAt: t2, Quantity: d("4"), UnitPrice: d("5")},
	}
	pos := NewEngine("EUR", nil).Replay(context.Background(), "A", txs, time.Time{})

	require.Len(t, pos.Warnings, 1)
	assert.Contains(t, pos.Warnings[0], "no known cost basis")
	assert.True(t, pos.RealizedPnL.Equal(d("20")))
}

func TestReplay_TransferInCarriesBasis(t *testing.T) {
	txs := []Transaction{
		{ID: "in", Operation: OpTransferIn, TradedAt: t1, Quantity: d("2"), UnitPrice: d("30")},
	}
	pos := NewEngine("EUR", nil).Replay(context.Background(), "A", txs, time.Time{})

	assert.Empty(t, pos.Warnings)
	assert.True(t, pos.Invested.Equal(d("60")))
}

func TestReplay_OverdraftIsBestEffort(t *testing.T) {
	txs := []Transaction{
		{ID: "b", Operation: OpBuy, TradedAt: t1, Quantity: d("5"), UnitPrice: d("10")},
		{ID: "s", Operation: OpSell, TradedAt: t2, Quantity: d("10"), UnitPrice: d("12"), Fee: d("10")},
	}
	pos := NewEngine("EUR", nil).Replay(context.Background(), "A", txs, time.Time{})

	// 5 matched units: 5*12 - 5*10 - 10*5/10
	assert.True(t, pos.RealizedPnL.Equal(d("5")), "realized %s", pos.RealizedPnL)
	assert.True(t, pos.Quantity.IsZero())
	assert.True(t, pos.Overdrawn)
	require.Len(t, pos.Warnings, 1)
	assert.Contains(t, pos.Warnings[0], "shortfall 5")
}

func TestReplay_Distributions(t *testing.T) {
	txs := []Transaction{
		{ID: "b", Operation: OpBuy, TradedAt: t1, Quantity: d("10"), UnitPrice: d("10")},
		{ID: "div", Operation: OpDividend, TradedAt: t2, Quantity: d("10"), UnitPrice: d("0.5"), Fee: d("1")},
		{ID: "stk", Operation: OpStakingReward, TradedAt: t3, Quantity: d("1"), Total: d("3")},
	}
	pos := NewEngine("EUR", nil).Replay(context.Background(), "A", txs, time.Time{})

	assert.True(t, pos.Distributions.Equal(d("7")))
	assert.True(t, pos.RealizedPnL.IsZero())
	assert.True(t, pos.Quantity.Equal(d("10")))
}

func TestReplay_UnknownOperationSkipped(t *testing.T) {
	txs := []Transaction{
		{ID: "b", Operation: OpBuy, TradedAt: t1, Quantity: d("1"), UnitPrice: d("10")},
		{ID: "x", Operation: "SPLIT", TradedAt: t2, Quantity: d("1")},
	}
	pos := NewEngine("EUR", nil).Replay(context.Background(), "A", txs, time.Time{})

	assert.True(t, pos.Quantity.Equal(d("1")))
	require.Len(t, pos.Warnings, 1)
	assert.Contains(t, pos.Warnings[0], "SPLIT")
}

func TestReplay_ForeignFee(t *testing.T) {
	conv := fakeConverter{rates: map[string]decimal.Decimal{"USDEUR": d("0.9")}}

	t.Run("converted", func(t *testing.T) {
		txs := []Transaction{
			{ID: "b", Operation: OpBuy, TradedAt: t1, Quantity: d("1"), UnitPrice: d("100"), FeeAsset: "usd", FeeQuantity: d("10")},
		}
		pos := NewEngine("eur", conv).Replay(context.Background(), "A", txs, time.Time{})
		assert.True(t, pos.Invested.Equal(d("109")))
		assert.Empty(t, pos.Warnings)
	})

	t.Run("unavailable", func(t *testing.T) {
		txs := []Transaction{
			{ID: "b", Operation: OpBuy, TradedAt: t1, Quantity: d("1"), UnitPrice: d("100"), FeeAsset: "BNB", FeeQuantity: d("0.01")},
		}
		pos := NewEngine("EUR", conv).Replay(context.Background(), "A", txs, time.Time{})
		assert.True(t, pos.Invested.Equal(d("100")))
		require.Len(t, pos.Warnings, 1)
		assert.Contains(t, pos.Warnings[0], ErrConversionUnavailable.Error())
	})

	t.Run("settlement currency fee used as is", func(t *testing.T) {
		txs := []Transaction{
			{ID: "b", Operation: OpBuy, TradedAt: t1, Quantity: d("1"), UnitPrice: d("100"), Fee: d("2"), FeeAsset: "EUR", FeeQuantity: d("2")},
		}
		pos := NewEngine("EUR", nil).Replay(context.Background(), "A", txs, time.Time{})
		assert.True(t, pos.Invested.Equal(d("102")))
	})

	t.Run("settled fee wins over foreign quantity", func(t *testing.T) {
		txs := []Transaction{
			{ID: "b", Operation: OpBuy, TradedAt: t1, Quantity: d("1"), UnitPrice: d("100"), Fee: d("1.5"), FeeAsset: "BNB", FeeQuantity: d("0.003")},
		}
		pos := NewEngine("EUR", conv).Replay(context.Background(), "A", txs, time.Time{})
		assert.True(t, pos.Invested.Equal(d("101.5")), "invested %s", pos.Invested)
		assert.True(t, pos.Fees.Equal(d("1.5")))
		assert.Empty(t, pos.Warnings)
	})
}

func TestReplay_CostIsExactAcrossSplits(t *testing.T) {
	buy := Transaction{ID: "b", Sequence: 1, Operation: OpBuy, TradedAt: t1, Quantity: d("3"), UnitPrice: d("100"), Fee: d("1")}

	t.Run("open position keeps the paid cost", func(t *testing.T) {
		pos := NewEngine("EUR", nil).Replay(context.Background(), "A", []Transaction{buy}, time.Time{})
		assert.True(t, pos.Invested.Equal(d("301")), "invested %s", pos.Invested)
		require.Len(t, pos.Lots, 1)
		assert.True(t, pos.Lots[0].CostBasis.Equal(d("301")))
	})

	t.Run("full sale in one go", func(t *testing.T) {
		txs := []Transaction{buy,
			{ID: "s", Sequence: 2, Operation: OpSell, TradedAt: t2, Quantity: d("3"), UnitPrice: d("110")},
		}
		pos := NewEngine("EUR", nil).Replay(context.Background(), "A", txs, time.Time{})
		assert.True(t, pos.RealizedPnL.Equal(d("29")), "realized %s", pos.RealizedPnL)
		assert.True(t, pos.Invested.IsZero())
	})

	t.Run("full sale one unit at a time", func(t *testing.T) {
		txs := []Transaction{buy}
		for i, at := range []time.Time{t2, t3, t4} {
			txs = append(txs, Transaction{ID: "s" + string(rune('1'+i)), Sequence: int64(i + 2), Operation: OpSell, TradedAt: at, Quantity: d("1"), UnitPrice: d("110")})
		}
		pos := NewEngine("EUR", nil).Replay(context.Background(), "A", txs, time.Time{})
		assert.True(t, pos.RealizedPnL.Equal(d("29")), "realized %s", pos.RealizedPnL)
		assert.True(t, pos.Invested.IsZero(), "invested %s", pos.Invested)
	})

	t.Run("sale across lots with a fee", func(t *testing.T) {
		txs := []Transaction{buy,
			{ID: "b2", Sequence: 2, Operation: OpBuy, TradedAt: t2, Quantity: d("3"), UnitPrice: d("10")},
			{ID: "s", Sequence: 3, Operation: OpSell, TradedAt: t3, Quantity: d("6"), UnitPrice: d("50"), Fee: d("1")},
		}
		pos := NewEngine("EUR", nil).Replay(context.Background(), "A", txs, time.Time{})
		// proceeds 300, cost 301 + 30, fee 1
		assert.True(t, pos.RealizedPnL.Equal(d("-32")), "realized %s", pos.RealizedPnL)
	})
}

func TestReplayAll(t *testing.T) {
	txs := append(worked(),
		Transaction{ID: "c1", AssetID: "CRYPTO:BTC", Operation: OpBuy, TradedAt: t4, Quantity: d("0.5"), UnitPrice: d("40000")},
	)

	positions, err := NewEngine("EUR", nil).ReplayAll(context.Background(), txs, time.Time{})
	require.NoError(t, err)
	require.Len(t, positions, 2)
	assert.Equal(t, "CRYPTO:BTC", positions[0].AssetID)
	assert.Equal(t, "PEA:X", positions[1].AssetID)
	assert.True(t, positions[0].Invested.Equal(d("20000")))
}

func TestReplayAll_SkipsAssetsWithNothingBeforeAsOf(t *testing.T) {
	txs := append(worked(),
		Transaction{ID: "c1", AssetID: "CRYPTO:BTC", Operation: OpBuy, TradedAt: t4, Quantity: d("1"), UnitPrice: d("1")},
	)
	positions, err := NewEngine("EUR", nil).ReplayAll(context.Background(), txs, t3)
	require.NoError(t, err)
	require.Len(t, positions, 1)
	assert.Equal(t, "PEA:X", positions[0].AssetID)
}

func TestReplayAll_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewEngine("EUR", nil).ReplayAll(ctx, worked(), time.Time{})
	assert.True(t, errors.Is(err, context.Canceled))
}
