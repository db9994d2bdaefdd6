package merge

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/filmrow/marquee/internal/screening"
)

// Reconciliation statements. Every statement is scoped to the run's source
// and stamps rc.RunID explicitly; there is no session-level run state.

func stagingRows(ctx context.Context, tx *sql.Tx, source string) ([]screening.StagingRecord, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT film_id, cinema_id, start_at_utc, end_at_utc, runtime_min, tz,
		       source, source_uid, source_url, notes, raw_date, raw_time,
		       content_hash, loaded_at_utc
		FROM stg_screening
		WHERE source = ?
		ORDER BY id ASC
	`, source)
	if err != nil {
		return nil, fmt.Errorf("query staging: %w", err)
	}
	defer rows.Close()

	var out []screening.StagingRecord
	for rows.Next() {
		var (
			rec           screening.StagingRecord
			startS, endS  string
			loadedS       string
			runtime       sql.NullInt64
			notes, rd, rt sql.NullString
		)
		err := rows.Scan(
			&rec.FilmID, &rec.CinemaID, &startS, &endS, &runtime, &rec.TZ,
			&rec.Source, &rec.SourceUID, &rec.SourceURL, &notes, &rd, &rt,
			&rec.ContentHash, &loadedS,
		)
		if err != nil {
			return nil, fmt.Errorf("scan staging row: %w", err)
		}
		if rec.StartAtUTC, err = parseUTC(startS); err != nil {
			return nil, err
		}
		if rec.EndAtUTC, err = parseUTC(endS); err != nil {
			return nil, err
		}
		if rec.LoadedAtUTC, err = parseUTC(loadedS); err != nil {
			return nil, err
		}
		rec.RuntimeMin = int64Ptr(runtime)
		rec.Notes = strPtr(notes)
		rec.RawDate = strPtr(rd)
		rec.RawTime = strPtr(rt)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate staging: %w", err)
	}
	return out, nil
}

func liveByUID(ctx context.Context, tx *sql.Tx, source string) (map[string]screening.LiveRecord, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT id, film_id, cinema_id, start_at_utc, end_at_utc, runtime_min, tz,
		       source, source_uid, source_url, notes, raw_date, raw_time,
		       content_hash, is_active
		FROM screening
		WHERE source = ?
	`, source)
	if err != nil {
		return nil, fmt.Errorf("query live rows: %w", err)
	}
	defer rows.Close()

	out := make(map[string]screening.LiveRecord)
	for rows.Next() {
		var (
			rec           screening.LiveRecord
			startS, endS  string
			runtime       sql.NullInt64
			notes, rd, rt sql.NullString
		)
		err := rows.Scan(
			&rec.ID, &rec.FilmID, &rec.CinemaID, &startS, &endS, &runtime, &rec.TZ,
			&rec.Source, &rec.SourceUID, &rec.SourceURL, &notes, &rd, &rt,
			&rec.ContentHash, &rec.IsActive,
		)
		if err != nil {
			return nil, fmt.Errorf("scan live row: %w", err)
		}
		if rec.StartAtUTC, err = parseUTC(startS); err != nil {
			return nil, err
		}
		if rec.EndAtUTC, err = parseUTC(endS); err != nil {
			return nil, err
		}
		rec.RuntimeMin = int64Ptr(runtime)
		rec.Notes = strPtr(notes)
		rec.RawDate = strPtr(rd)
		rec.RawTime = strPtr(rt)
		out[rec.SourceUID] = rec
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate live rows: %w", err)
	}
	return out, nil
}

func insertLive(ctx context.Context, tx *sql.Tx, stg screening.StagingRecord, rc RunContext, nowS string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO screening
		(film_id, cinema_id, start_at_utc, end_at_utc, runtime_min, tz,
		 source, source_uid, source_url, notes, raw_date, raw_time,
		 content_hash, loaded_at_utc, ingest_run_id, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)
	`,
		stg.FilmID, stg.CinemaID,
		stg.StartAtUTC.Format(time.RFC3339), stg.EndAtUTC.Format(time.RFC3339),
		stg.RuntimeMin, stg.TZ,
		stg.Source, stg.SourceUID, stg.SourceURL,
		stg.Notes, stg.RawDate, stg.RawTime,
		stg.ContentHash, stg.LoadedAtUTC.Format(time.RFC3339),
		rc.RunID, nowS, nowS,
	)
	if err != nil {
		return fmt.Errorf("insert live uid %q: %w", stg.SourceUID, err)
	}
	return nil
}

func updateLive(ctx context.Context, tx *sql.Tx, id int64, stg screening.StagingRecord, rc RunContext, nowS string) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE screening
		SET film_id = ?, cinema_id = ?, start_at_utc = ?, end_at_utc = ?,
		    runtime_min = ?, tz = ?, source_url = ?, notes = ?,
		    raw_date = ?, raw_time = ?, content_hash = ?, loaded_at_utc = ?,
		    ingest_run_id = ?, is_active = 1, updated_at = ?
		WHERE id = ?
	`,
		stg.FilmID, stg.CinemaID,
		stg.StartAtUTC.Format(time.RFC3339), stg.EndAtUTC.Format(time.RFC3339),
		stg.RuntimeMin, stg.TZ, stg.SourceURL, stg.Notes,
		stg.RawDate, stg.RawTime, stg.ContentHash, stg.LoadedAtUTC.Format(time.RFC3339),
		rc.RunID, nowS, id,
	)
	if err != nil {
		return fmt.Errorf("update live uid %q: %w", stg.SourceUID, err)
	}
	return nil
}

// stampLive marks an unchanged matched row as seen by the current run.
// updated_at is deliberately left alone.
func stampLive(ctx context.Context, tx *sql.Tx, id int64, rc RunContext) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE screening SET ingest_run_id = ? WHERE id = ?`, rc.RunID, id)
	if err != nil {
		return fmt.Errorf("stamp live row %d: %w", id, err)
	}
	return nil
}

// deactivateVanished marks active rows of this source that the current run
// did not stamp: the source no longer lists them. Rows before the cutoff are
// left untouched.
func deactivateVanished(ctx context.Context, tx *sql.Tx, rc RunContext) (int, error) {
	q := `
		UPDATE screening
		SET is_active = 0
		WHERE source = ? AND is_active = 1 AND ingest_run_id <> ?`
	args := []any{rc.Source, rc.RunID}
	if !rc.Cutoff.IsZero() {
		q += ` AND start_at_utc >= ?`
		args = append(args, rc.Cutoff.UTC().Format(time.RFC3339))
	}

	res, err := tx.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, fmt.Errorf("deactivate vanished: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("deactivate vanished: rows affected: %w", err)
	}
	return int(n), nil
}

func finalizeSuccess(ctx context.Context, tx *sql.Tx, rc RunContext, stats Stats, nowS string) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE ops_ingest_run
		SET finished_at = ?, status = ?,
		    rows_in = ?, rows_inserted = ?, rows_updated = ?, rows_deactivated = ?
		WHERE id = ?
	`,
		nowS, screening.RunStatusSuccess,
		stats.RowsIn, stats.RowsInserted, stats.RowsUpdated, stats.RowsDeactivated,
		rc.RunID,
	)
	if err != nil {
		return fmt.Errorf("finalize run %d: %w", rc.RunID, err)
	}
	return nil
}

func parseUTC(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t.UTC(), nil
}

func int64Ptr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	n := v.Int64
	return &n
}

func strPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}
