// Package snapshot replays the full transaction history at an instant, values
// it and hands the result to a Store as an immutable snapshot.
package snapshot

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"folio/internal/costbasis"
	"folio/internal/valuation"
)

// Status is the state of a recomputation run.
type Status string

const (
	StatusPending               Status = "PENDING"
	StatusRunning               Status = "RUNNING"
	StatusCompleted             Status = "COMPLETED"
	StatusCompletedWithWarnings Status = "COMPLETED_WITH_WARNINGS"
	StatusFailed                Status = "FAILED"
)

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCompletedWithWarnings || s == StatusFailed
}

// TransactionSource lists the whole transaction history.
type TransactionSource interface {
	ListAll(ctx context.Context) ([]costbasis.Transaction, error)
}

// Store persists snapshots and run records. SaveSnapshot must commit the
// snapshot atomically. When a snapshot with the same instant and fingerprint
// already exists, the stored one is returned unchanged.
type Store interface {
	SaveSnapshot(ctx context.Context, snap *Snapshot) (*Snapshot, error)
	SaveRun(ctx context.Context, run *Run) error
}

// Snapshot is the valuation of the portfolio at one instant.
type Snapshot struct {
	ID          string               `json:"id,omitempty"`
	At          time.Time            `json:"at"`
	Portfolio   *valuation.Portfolio `json:"portfolio"`
	Fingerprint string               `json:"fingerprint"`
}

// Run is the record of one recomputation attempt.
type Run struct {
	ID         string     `json:"id,omitempty"`
	At         time.Time  `json:"at"`
	Status     Status     `json:"status"`
	Trigger    string     `json:"trigger"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	SnapshotID string     `json:"snapshot_id,omitempty"`
	Warnings   []string   `json:"warnings"`
	Error      string     `json:"error,omitempty"`
}

// Result is what a finished run returns to its callers.
type Result struct {
	Run      *Run
	Snapshot *Snapshot
}

// Recomputer runs snapshot recomputations. Concurrent requests for the same
// instant share a single run.
type Recomputer struct {
	source     TransactionSource
	engine     *costbasis.Engine
	aggregator *valuation.Aggregator
	store      Store
	group      singleflight.Group
	now        func() time.Time
}

// NewRecomputer wires a recomputer.
func NewRecomputer(source TransactionSource, engine *costbasis.Engine, aggregator *valuation.Aggregator, store Store) *Recomputer {
	return &Recomputer{
		source:     source,
		engine:     engine,
		aggregator: aggregator,
		store:      store,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Run recomputes the snapshot at the given instant. trigger is recorded on
// the run for observability (api, pipeline, scheduler, cli).
//
// The returned error is non-nil only when the run FAILED; the Result still
// carries the failed run record in that case.
func (r *Recomputer) Run(ctx context.Context, at time.Time, trigger string) (*Result, error) {
	at = at.UTC()
	key := at.Format(time.RFC3339Nano)

	v, err, _ := r.group.Do(key, func() (interface{}, error) {
		return r.run(ctx, at, trigger)
	})
	res, _ := v.(*Result)
	return res, err
}

func (r *Recomputer) run(ctx context.Context, at time.Time, trigger string) (*Result, error) {
	run := &Run{
		At:        at,
		Status:    StatusPending,
		Trigger:   trigger,
		StartedAt: r.now(),
		Warnings:  []string{},
	}
	if err := r.store.SaveRun(ctx, run); err != nil {
		return r.fail(ctx, run, fmt.Errorf("record run: %w", err))
	}

	run.Status = StatusRunning
	if err := r.store.SaveRun(ctx, run); err != nil {
		return r.fail(ctx, run, fmt.Errorf("record run: %w", err))
	}

	txs, err := r.source.ListAll(ctx)
	if err != nil {
		return r.fail(ctx, run, fmt.Errorf("list transactions: %w", err))
	}

	positions, err := r.engine.ReplayAll(ctx, txs, at)
	if err != nil {
		return r.fail(ctx, run, fmt.Errorf("replay: %w", err))
	}

	portfolio := r.aggregator.Value(ctx, positions, at)

	fingerprint, err := Fingerprint(portfolio)
	if err != nil {
		return r.fail(ctx, run, err)
	}

	snap, err := r.store.SaveSnapshot(ctx, &Snapshot{At: at, Portfolio: portfolio, Fingerprint: fingerprint})
	if err != nil {
		return r.fail(ctx, run, fmt.Errorf("save snapshot: %w", err))
	}

	run.SnapshotID = snap.ID
	run.Warnings = append(run.Warnings, portfolio.Warnings...)
	run.Status = StatusCompleted
	if len(run.Warnings) > 0 {
		run.Status = StatusCompletedWithWarnings
	}
	r.finish(ctx, run)

	return &Result{Run: run, Snapshot: snap}, nil
}

func (r *Recomputer) fail(ctx context.Context, run *Run, cause error) (*Result, error) {
	run.Status = StatusFailed
	run.Error = cause.Error()
	r.finish(ctx, run)
	return &Result{Run: run}, cause
}

// finish stamps and stores the terminal state. The snapshot, if any, is
// already committed, so a failure to store the run record does not undo it.
func (r *Recomputer) finish(ctx context.Context, run *Run) {
	finished := r.now()
	run.FinishedAt = &finished
	if err := r.store.SaveRun(context.WithoutCancel(ctx), run); err != nil {
		run.Warnings = append(run.Warnings, fmt.Sprintf("run record not saved: %v", err))
	}
}

// Fingerprint hashes the canonical JSON form of a valuation. Two valuations
// with the same fingerprint are byte-identical.
func Fingerprint(p *valuation.Portfolio) (string, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("encode valuation: %w", err)
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}
