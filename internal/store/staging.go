package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/filmrow/marquee/internal/screening"
)

// ReplaceStaging persists one source's normalized snapshot into the staging
// area, computing the content fingerprint for each record as it writes.
//
// Staging is "what the source currently says", not a diff: the write
// replaces the source's previous staging rows wholesale, so re-running the
// writer before a merge is idempotent. The live table is never consulted.
//
// Records that fail validation are rejected and reported in the returned
// ValidationReport; valid records are still staged. The error return covers
// storage failures only.
func (s *Store) ReplaceStaging(ctx context.Context, source string, records []screening.Record, loadedAt time.Time) (staged int, report screening.ValidationReport, err error) {
	type prepared struct {
		rec  screening.Record
		hash string
	}

	valid := make([]prepared, 0, len(records))
	for i, r := range records {
		if vErr := screening.Validate(r); vErr != nil {
			report = append(report, screening.RecordError{Index: i, Reason: vErr.Error()})
			continue
		}
		c := screening.Canonicalize(r)
		if c.Source != source {
			report = append(report, screening.RecordError{Index: i, Reason: fmt.Sprintf("source %q does not match batch source %q", c.Source, source)})
			continue
		}
		valid = append(valid, prepared{rec: c, hash: screening.Fingerprint(c)})
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, report, fmt.Errorf("replace staging: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	if _, err := tx.ExecContext(ctx, `DELETE FROM stg_screening WHERE source = ?`, source); err != nil {
		return 0, report, fmt.Errorf("replace staging: clear source %q: %w", source, err)
	}

	for _, p := range valid {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO stg_screening
			(film_id, cinema_id, start_at_utc, end_at_utc, runtime_min, tz,
			 source, source_uid, source_url, notes, raw_date, raw_time,
			 content_hash, loaded_at_utc)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			p.rec.FilmID,
			p.rec.CinemaID,
			fmtTime(p.rec.StartAtUTC),
			fmtTime(p.rec.EndAtUTC),
			p.rec.RuntimeMin,
			p.rec.TZ,
			p.rec.Source,
			p.rec.SourceUID,
			p.rec.SourceURL,
			p.rec.Notes,
			p.rec.RawDate,
			p.rec.RawTime,
			p.hash,
			fmtTime(loadedAt),
		)
		if err != nil {
			return 0, report, fmt.Errorf("replace staging: insert uid %q: %w", p.rec.SourceUID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, report, fmt.Errorf("replace staging: commit: %w", err)
	}

	return len(valid), report, nil
}

// StagingCount returns the number of staged rows for a source.
func (s *Store) StagingCount(ctx context.Context, source string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM stg_screening WHERE source = ?`, source,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("staging count: %w", err)
	}
	return n, nil
}

// StagingRows returns a source's staged records in insertion order.
func (s *Store) StagingRows(ctx context.Context, source string) ([]screening.StagingRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
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
		rec, err := scanStagingRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate staging: %w", err)
	}

	if out == nil {
		out = []screening.StagingRecord{}
	}
	return out, nil
}

func scanStagingRecord(rows *sql.Rows) (screening.StagingRecord, error) {
	var (
		rec            screening.StagingRecord
		startS, endS   string
		loadedS        string
		runtime        sql.NullInt64
		notes, rd, rt  sql.NullString
	)
	err := rows.Scan(
		&rec.FilmID, &rec.CinemaID, &startS, &endS, &runtime, &rec.TZ,
		&rec.Source, &rec.SourceUID, &rec.SourceURL, &notes, &rd, &rt,
		&rec.ContentHash, &loadedS,
	)
	if err != nil {
		return screening.StagingRecord{}, fmt.Errorf("scan staging row: %w", err)
	}

	if rec.StartAtUTC, err = parseTime(startS); err != nil {
		return screening.StagingRecord{}, err
	}
	if rec.EndAtUTC, err = parseTime(endS); err != nil {
		return screening.StagingRecord{}, err
	}
	if rec.LoadedAtUTC, err = parseTime(loadedS); err != nil {
		return screening.StagingRecord{}, err
	}
	rec.RuntimeMin = nullInt(runtime)
	rec.Notes = nullStr(notes)
	rec.RawDate = nullStr(rd)
	rec.RawTime = nullStr(rt)
	return rec, nil
}

func nullInt(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	n := v.Int64
	return &n
}

func nullStr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}
