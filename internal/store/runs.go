package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/filmrow/marquee/internal/screening"
)

const runColumns = `
	id, token, source, started_at, finished_at, status,
	rows_in, rows_inserted, rows_updated, rows_deactivated, message`

// ListRuns returns ingest runs in reverse start order. source filters to one
// source when non-empty; limit <= 0 means no limit.
func (s *Store) ListRuns(ctx context.Context, source string, limit int) ([]screening.IngestRun, error) {
	q := `SELECT ` + runColumns + ` FROM ops_ingest_run`
	args := []any{}
	if source != "" {
		q += ` WHERE source = ?`
		args = append(args, source)
	}
	q += ` ORDER BY id DESC`
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query ingest runs: %w", err)
	}
	defer rows.Close()

	var out []screening.IngestRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ingest runs: %w", err)
	}

	if out == nil {
		out = []screening.IngestRun{}
	}
	return out, nil
}

// RunByID returns one ingest run, or ErrNotFound.
func (s *Store) RunByID(ctx context.Context, id int64) (screening.IngestRun, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+runColumns+` FROM ops_ingest_run WHERE id = ?`, id)

	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return screening.IngestRun{}, ErrNotFound
	}
	if err != nil {
		return screening.IngestRun{}, err
	}
	return run, nil
}

// MarkRunError finalizes a run as failed with a message. Used by the merge
// engine's error path after rolling back the reconciliation transaction, and
// by operators to finalize a run orphaned by a crash.
//
// Only a running run can be finalized this way; finalizing twice is refused.
func (s *Store) MarkRunError(ctx context.Context, id int64, message string, finishedAt time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE ops_ingest_run
		SET finished_at = ?, status = ?, message = ?
		WHERE id = ? AND status = ?
	`, fmtTime(finishedAt), screening.RunStatusError, message, id, screening.RunStatusRunning)
	if err != nil {
		return fmt.Errorf("mark run %d error: %w", id, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark run %d error: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("mark run %d error: run is not running", id)
	}
	return nil
}

func scanRun(row rowScanner) (screening.IngestRun, error) {
	var (
		run       screening.IngestRun
		startedS  string
		finishedS sql.NullString
		message   sql.NullString
	)
	err := row.Scan(
		&run.ID, &run.Token, &run.Source, &startedS, &finishedS, &run.Status,
		&run.RowsIn, &run.RowsInserted, &run.RowsUpdated, &run.RowsDeactivated, &message,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return screening.IngestRun{}, err
		}
		return screening.IngestRun{}, fmt.Errorf("scan ingest run: %w", err)
	}

	if run.StartedAt, err = parseTime(startedS); err != nil {
		return screening.IngestRun{}, err
	}
	if finishedS.Valid {
		t, err := parseTime(finishedS.String)
		if err != nil {
			return screening.IngestRun{}, err
		}
		run.FinishedAt = &t
	}
	run.Message = nullStr(message)
	return run, nil
}
