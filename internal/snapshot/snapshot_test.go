package snapshot

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"folio/internal/costbasis"
	"folio/internal/valuation"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

var at = time.Date(2024, 6, 30, 20, 0, 0, 0, time.UTC)

type memSource struct {
	txs   []costbasis.Transaction
	err   error
	calls atomic.Int32
	gate  chan struct{}
}

func (m *memSource) ListAll(context.Context) ([]costbasis.Transaction, error) {
	m.calls.Add(1)
	if m.gate != nil {
		<-m.gate
	}
	return m.txs, m.err
}

type memStore struct {
	mu        sync.Mutex
	snapshots []*Snapshot
	runs      []Run
	failSave  bool
	failRuns  bool
}

func (m *memStore) SaveSnapshot(_ context.Context, snap *Snapshot) (*Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSave {
		return nil, errors.New("disk full")
	}
	for _, s := range m.snapshots {
		if s.At.Equal(snap.At) && s.Fingerprint == snap.Fingerprint {
			return s, nil
		}
	}
	stored := *snap
	stored.ID = "snap-" + string(rune('a'+len(m.snapshots)))
	m.snapshots = append(m.snapshots, &stored)
	return &stored, nil
}

func (m *memStore) SaveRun(_ context.Context, run *Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failRuns {
		return errors.New("connection reset")
	}
	m.runs = append(m.runs, *run)
	return nil
}

func (m *memStore) statuses() []Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Status, len(m.runs))
	for i, r := range m.runs {
		out[i] = r.Status
	}
	return out
}

type prices map[string]*valuation.Quote

func (p prices) GetPrice(_ context.Context, id string, _ time.Time) (*valuation.Quote, error) {
	if q, ok := p[id]; ok {
		return q, nil
	}
	return nil, valuation.ErrPriceUnavailable
}

func history() []costbasis.Transaction {
	return []costbasis.Transaction{
		{ID: "1", AssetID: "PEA:A", PortfolioType: "PEA", Operation: costbasis.OpBuy, TradedAt: at.AddDate(0, -2, 0), Quantity: d("10"), UnitPrice: d("100"), Fee: d("5")},
		{ID: "2", AssetID: "CRYPTO:BTC", PortfolioType: "CRYPTO", Operation: costbasis.OpBuy, TradedAt: at.AddDate(0, -1, 0), Quantity: d("0.1"), UnitPrice: d("50000")},
	}
}

func newRecomputer(src TransactionSource, store Store, p prices) *Recomputer {
	return NewRecomputer(src, costbasis.NewEngine("EUR", nil), valuation.NewAggregator(p, 96*time.Hour), store)
}

func TestRun_Completed(t *testing.T) {
	store := &memStore{}
	p := prices{
		"PEA:A":      {Price: d("110"), AsOf: at},
		"CRYPTO:BTC": {Price: d("60000"), AsOf: at},
	}
	res, err := newRecomputer(&memSource{txs: history()}, store, p).Run(context.Background(), at, "api")
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, res.Run.Status)
	assert.Equal(t, []Status{StatusPending, StatusRunning, StatusCompleted}, store.statuses())
	require.NotNil(t, res.Snapshot)
	assert.Equal(t, res.Snapshot.ID, res.Run.SnapshotID)

	pf := res.Snapshot.Portfolio
	assert.True(t, pf.ByType["PEA"].MarketValue.Equal(d("1100")))
	assert.True(t, pf.ByType["CRYPTO"].MarketValue.Equal(d("6000")))
	assert.True(t, pf.Total.MarketValue.Equal(d("7100")))
	assert.True(t, pf.Total.TotalPnL.Equal(d("1095")))
}

func TestRun_MissingPriceCompletesWithWarnings(t *testing.T) {
	store := &memStore{}
	p := prices{"PEA:A": {Price: d("110"), AsOf: at}}

	res, err := newRecomputer(&memSource{txs: history()}, store, p).Run(context.Background(), at, "scheduler")
	require.NoError(t, err)

	assert.Equal(t, StatusCompletedWithWarnings, res.Run.Status)
	require.Len(t, res.Run.Warnings, 1)
	assert.Contains(t, res.Run.Warnings[0], "CRYPTO:BTC")

	var btc, pea valuation.Holding
	for _, h := range res.Snapshot.Portfolio.Holdings {
		switch h.AssetID {
		case "CRYPTO:BTC":
			btc = h
		case "PEA:A":
			pea = h
		}
	}
	assert.True(t, btc.PricedAtCost)
	assert.True(t, btc.MarketValue.Equal(d("5000")))
	assert.False(t, pea.PricedAtCost)
	assert.True(t, pea.MarketValue.Equal(d("1100")))
}

func TestRun_SourceFailureFails(t *testing.T) {
	store := &memStore{}
	res, err := newRecomputer(&memSource{err: errors.New("connection refused")}, store, nil).Run(context.Background(), at, "api")

	require.Error(t, err)
	assert.Equal(t, StatusFailed, res.Run.Status)
	assert.Nil(t, res.Snapshot)
	assert.Empty(t, store.snapshots)
	assert.NotNil(t, res.Run.FinishedAt)
	assert.Contains(t, res.Run.Error, "connection refused")
}

func TestRun_SaveFailureFails(t *testing.T) {
	store := &memStore{failSave: true}
	res, err := newRecomputer(&memSource{txs: history()}, store, prices{}).Run(context.Background(), at, "api")

	require.Error(t, err)
	assert.Equal(t, StatusFailed, res.Run.Status)
	assert.Empty(t, store.snapshots)
}

func TestRun_RunRecordFailureFails(t *testing.T) {
	store := &memStore{failRuns: true}
	res, err := newRecomputer(&memSource{txs: history()}, store, prices{}).Run(context.Background(), at, "cli")

	require.Error(t, err)
	require.NotNil(t, res)
	require.NotNil(t, res.Run)
	assert.Equal(t, StatusFailed, res.Run.Status)
	assert.Equal(t, "cli", res.Run.Trigger)
	assert.Contains(t, res.Run.Error, "connection reset")
	assert.NotNil(t, res.Run.FinishedAt)
	assert.Nil(t, res.Snapshot)
	assert.Empty(t, store.snapshots)
}

func TestRun_Idempotent(t *testing.T) {
	store := &memStore{}
	p := prices{"PEA:A": {Price: d("110"), AsOf: at}, "CRYPTO:BTC": {Price: d("1"), AsOf: at}}
	rc := newRecomputer(&memSource{txs: history()}, store, p)

	first, err := rc.Run(context.Background(), at, "api")
	require.NoError(t, err)
	second, err := rc.Run(context.Background(), at, "api")
	require.NoError(t, err)

	assert.Equal(t, first.Snapshot.Fingerprint, second.Snapshot.Fingerprint)
	assert.Equal(t, first.Snapshot.ID, second.Snapshot.ID)
	assert.Len(t, store.snapshots, 1)
}

func TestRun_ConcurrentSameInstantCoalesced(t *testing.T) {
	src := &memSource{txs: history(), gate: make(chan struct{})}
	rc := newRecomputer(src, &memStore{}, prices{})

	const callers = 5
	var wg sync.WaitGroup
	results := make([]*Result, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = rc.Run(context.Background(), at, "api")
		}(i)
	}

	// Let every caller reach the singleflight group before releasing.
	time.Sleep(50 * time.Millisecond)
	close(src.gate)
	wg.Wait()

	assert.Equal(t, int32(1), src.calls.Load())
	for _, r := range results {
		assert.Same(t, results[0], r)
	}
}

func TestFingerprint_StableForEqualInput(t *testing.T) {
	agg := valuation.NewAggregator(prices{}, 0)
	engine := costbasis.NewEngine("EUR", nil)

	positions, err := engine.ReplayAll(context.Background(), history(), at)
	require.NoError(t, err)
	a, err := Fingerprint(agg.Value(context.Background(), positions, at))
	require.NoError(t, err)

	positions, err = engine.ReplayAll(context.Background(), history(), at)
	require.NoError(t, err)
	b, err := Fingerprint(agg.Value(context.Background(), positions, at))
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
}

func TestStatus_Terminal(t *testing.T) {
	assert.False(t, StatusPending.Terminal())
	assert.False(t, StatusRunning.Terminal())
	assert.True(t, StatusCompleted.Terminal())
	assert.True(t, StatusCompletedWithWarnings.Terminal())
	assert.True(t, StatusFailed.Terminal())
}
