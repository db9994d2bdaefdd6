// Package merge reconciles one source's staging snapshot against the live
// screening table: new screenings are inserted, changed ones updated in
// place, and screenings the source no longer lists are deactivated. All data
// changes for one run happen inside a single database transaction; the
// ingest-run ledger row is committed separately so a failed run still leaves
// an audit trace.
package merge

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/filmrow/marquee/internal/screening"
	"github.com/filmrow/marquee/internal/store"
)

// ErrRunInProgress is returned when another ingest run for the same source
// is still marked running. Two merges for one source must never run
// concurrently; a run orphaned by a crash has to be finalized first
// (see Store.MarkRunError).
var ErrRunInProgress = errors.New("ingest run already in progress for source")

// Stats are the exact row counts of one merge execution.
// RowsInserted + RowsUpdated never exceeds RowsIn, and RowsDeactivated only
// counts previously-active rows the current run did not touch.
type Stats struct {
	RunID           int64
	Token           string
	Source          string
	RowsIn          int
	RowsInserted    int
	RowsUpdated     int
	RowsDeactivated int
}

// RunContext carries the identity of one merge execution through every
// reconciliation step. It is an explicit value, never ambient state: each
// SQL statement that stamps the run id receives it from here.
type RunContext struct {
	Source string
	RunID  int64
	Token  string
	Now    time.Time
	// Cutoff limits reconciliation to screenings starting at or after this
	// instant, leaving past rows untouched. Zero means no cutoff.
	Cutoff time.Time
}

// Failpoint stages, in execution order. A test-installed failpoint can abort
// the reconciliation transaction between steps to exercise atomicity.
const (
	StageAfterInsert     = "after-insert"
	StageAfterUpdate     = "after-update"
	StageAfterDeactivate = "after-deactivate"
)

// Engine reconciles staging snapshots into the live table.
//
// Scheduling is single-threaded and batch-oriented: one Merge call processes
// one source to completion. Merges for different sources are independent;
// the running-status guard refuses a second concurrent run for the same
// source.
type Engine struct {
	st        *store.Store
	now       func() time.Time
	tokens    TokenGenerator
	cutoff    time.Time
	failpoint func(stage string) error
}

// Option configures an Engine.
type Option func(*Engine)

// WithNow overrides the engine clock. Used by tests for deterministic
// timestamps.
func WithNow(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithTokenGenerator overrides the run-token generator.
func WithTokenGenerator(g TokenGenerator) Option {
	return func(e *Engine) { e.tokens = g }
}

// WithCutoff limits reconciliation to screenings starting at or after t.
// Rows in the past are not inserted, updated, or deactivated; history stays
// as the last run that saw it left it.
func WithCutoff(t time.Time) Option {
	return func(e *Engine) { e.cutoff = t }
}

// WithFailpoint installs a fault-injection hook invoked between
// reconciliation steps. A non-nil return aborts the transaction.
// Test use only.
func WithFailpoint(fp func(stage string) error) Option {
	return func(e *Engine) { e.failpoint = fp }
}

// New creates an Engine over the given store.
func New(st *store.Store, opts ...Option) *Engine {
	e := &Engine{
		st:     st,
		now:    time.Now,
		tokens: UUIDv7Generator{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Merge reconciles the staging snapshot for one source against the live
// table and finalizes the ingest-run ledger row.
//
// The run row is inserted and committed in its own short transaction before
// reconciliation begins, so a failed run still leaves a durable error record.
// All insert/update/deactivate work happens in one transaction: either every
// change of the run commits, or none do.
func (e *Engine) Merge(ctx context.Context, source string) (Stats, error) {
	rc, err := e.beginRun(ctx, source)
	if err != nil {
		return Stats{}, err
	}

	stats, err := e.runReconciliation(ctx, rc)
	if err != nil {
		// The reconciliation transaction has rolled back; finalize the
		// committed run row as failed in a separate write.
		if markErr := e.st.MarkRunError(ctx, rc.RunID, err.Error(), e.now()); markErr != nil {
			return Stats{}, errors.Join(err, markErr)
		}
		return Stats{}, err
	}
	return stats, nil
}

// DryRun executes the full reconciliation and rolls everything back,
// returning the stats the merge would have produced. The ledger row is part
// of the rolled-back transaction, so a dry run leaves no trace.
func (e *Engine) DryRun(ctx context.Context, source string) (Stats, error) {
	tx, err := e.st.DB().BeginTx(ctx, nil)
	if err != nil {
		return Stats{}, fmt.Errorf("dry run: begin tx: %w", err)
	}
	defer tx.Rollback()

	rc, err := e.insertRunRow(ctx, tx, source)
	if err != nil {
		return Stats{}, err
	}

	stats, err := e.reconcile(ctx, tx, rc)
	if err != nil {
		return Stats{}, err
	}

	// Intentionally no commit: preview only.
	return stats, nil
}

// beginRun inserts the ingest-run ledger row in its own short transaction
// and commits it, so the row survives a later reconciliation failure.
func (e *Engine) beginRun(ctx context.Context, source string) (RunContext, error) {
	tx, err := e.st.DB().BeginTx(ctx, nil)
	if err != nil {
		return RunContext{}, fmt.Errorf("begin run: begin tx: %w", err)
	}
	defer tx.Rollback()

	rc, err := e.insertRunRow(ctx, tx, source)
	if err != nil {
		return RunContext{}, err
	}

	if err := tx.Commit(); err != nil {
		return RunContext{}, fmt.Errorf("begin run: commit: %w", err)
	}
	return rc, nil
}

// insertRunRow applies the single-writer guard and creates the running
// ledger row inside the caller's transaction.
func (e *Engine) insertRunRow(ctx context.Context, tx *sql.Tx, source string) (RunContext, error) {
	var running int
	err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM ops_ingest_run WHERE source = ? AND status = ?`,
		source, screening.RunStatusRunning,
	).Scan(&running)
	if err != nil {
		return RunContext{}, fmt.Errorf("begin run: check running: %w", err)
	}
	if running > 0 {
		return RunContext{}, fmt.Errorf("%w: %s", ErrRunInProgress, source)
	}

	now := e.now().UTC().Truncate(time.Second)
	token := e.tokens.Generate()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO ops_ingest_run (token, source, started_at, status)
		VALUES (?, ?, ?, ?)
	`, token, source, now.Format(time.RFC3339), screening.RunStatusRunning)
	if err != nil {
		return RunContext{}, fmt.Errorf("begin run: insert ledger row: %w", err)
	}

	runID, err := res.LastInsertId()
	if err != nil {
		return RunContext{}, fmt.Errorf("begin run: ledger row id: %w", err)
	}

	return RunContext{
		Source: source,
		RunID:  runID,
		Token:  token,
		Now:    now,
		Cutoff: e.cutoff,
	}, nil
}

// runReconciliation wraps reconcile in the main transaction and, on success,
// finalizes the ledger row inside the same transaction before committing.
func (e *Engine) runReconciliation(ctx context.Context, rc RunContext) (Stats, error) {
	tx, err := e.st.DB().BeginTx(ctx, nil)
	if err != nil {
		return Stats{}, fmt.Errorf("merge %s: begin tx: %w", rc.Source, err)
	}
	defer tx.Rollback() // No-op if committed

	stats, err := e.reconcile(ctx, tx, rc)
	if err != nil {
		return Stats{}, err
	}

	if err := tx.Commit(); err != nil {
		return Stats{}, fmt.Errorf("merge %s: commit: %w", rc.Source, err)
	}
	return stats, nil
}

// reconcile runs the four merge steps inside the caller's transaction:
// count staging, insert new, update changed, deactivate vanished, then
// finalize the ledger row as success. Any error aborts the transaction.
func (e *Engine) reconcile(ctx context.Context, tx *sql.Tx, rc RunContext) (Stats, error) {
	stats := Stats{RunID: rc.RunID, Token: rc.Token, Source: rc.Source}
	nowS := rc.Now.Format(time.RFC3339)

	staging, err := stagingRows(ctx, tx, rc.Source)
	if err != nil {
		return Stats{}, err
	}
	stats.RowsIn = len(staging)

	live, err := liveByUID(ctx, tx, rc.Source)
	if err != nil {
		return Stats{}, err
	}

	// Partition staging rows by ingest identity: rows with no live match get
	// inserted, matched rows get the null-safe field comparison. The two
	// sets are disjoint, so step ordering within them does not matter.
	var toInsert, matched []screening.StagingRecord
	for _, stg := range staging {
		if _, ok := live[stg.SourceUID]; ok {
			matched = append(matched, stg)
		} else {
			toInsert = append(toInsert, stg)
		}
	}

	for _, stg := range toInsert {
		if beforeCutoff(rc, stg.StartAtUTC) {
			continue
		}
		if err := insertLive(ctx, tx, stg, rc, nowS); err != nil {
			return Stats{}, err
		}
		stats.RowsInserted++
	}
	if err := e.hitFailpoint(StageAfterInsert); err != nil {
		return Stats{}, err
	}

	for _, stg := range matched {
		cur := live[stg.SourceUID]

		// Past rows are history: not rewritten, not stamped. The
		// deactivation scan excludes them by the same predicate.
		if beforeCutoff(rc, cur.StartAtUTC) {
			continue
		}

		// Null-safe per-field comparison. A previously deactivated row
		// counts as changed even when its content matches: it has to be
		// reactivated.
		changed := !screening.ContentEquals(cur.Record, stg.Record) ||
			cur.ContentHash != stg.ContentHash ||
			!cur.IsActive

		if changed {
			if err := updateLive(ctx, tx, cur.ID, stg, rc, nowS); err != nil {
				return Stats{}, err
			}
			stats.RowsUpdated++
		} else {
			// Stamp the run id without touching updated_at or the update
			// counter, so unchanged rows survive the deactivation scan and
			// counters reflect real content drift.
			if err := stampLive(ctx, tx, cur.ID, rc); err != nil {
				return Stats{}, err
			}
		}
	}
	if err := e.hitFailpoint(StageAfterUpdate); err != nil {
		return Stats{}, err
	}

	deactivated, err := deactivateVanished(ctx, tx, rc)
	if err != nil {
		return Stats{}, err
	}
	stats.RowsDeactivated = deactivated

	if err := e.hitFailpoint(StageAfterDeactivate); err != nil {
		return Stats{}, err
	}

	err = finalizeSuccess(ctx, tx, rc, stats, nowS)
	if err != nil {
		return Stats{}, err
	}
	return stats, nil
}

func beforeCutoff(rc RunContext, start time.Time) bool {
	return !rc.Cutoff.IsZero() && start.Before(rc.Cutoff)
}

func (e *Engine) hitFailpoint(stage string) error {
	if e.failpoint == nil {
		return nil
	}
	if err := e.failpoint(stage); err != nil {
		return fmt.Errorf("failpoint %s: %w", stage, err)
	}
	return nil
}
