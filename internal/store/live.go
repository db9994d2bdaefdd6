package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/filmrow/marquee/internal/screening"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

const liveColumns = `
	id, film_id, cinema_id, start_at_utc, end_at_utc, runtime_min, tz,
	source, source_uid, source_url, notes, raw_date, raw_time,
	content_hash, loaded_at_utc, ingest_run_id, is_active, created_at, updated_at`

// LiveBySource returns every live row for a source, active or not,
// in deterministic order.
func (s *Store) LiveBySource(ctx context.Context, source string) ([]screening.LiveRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+liveColumns+` FROM screening WHERE source = ? ORDER BY start_at_utc ASC, id ASC`,
		source)
	if err != nil {
		return nil, fmt.Errorf("query live rows: %w", err)
	}
	defer rows.Close()

	return collectLiveRecords(rows)
}

// LiveByUID returns the live row matched by the ingest identity
// (source, source_uid), or ErrNotFound.
func (s *Store) LiveByUID(ctx context.Context, source, sourceUID string) (screening.LiveRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+liveColumns+` FROM screening WHERE source = ? AND source_uid = ?`,
		source, sourceUID)

	rec, err := scanLiveRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return screening.LiveRecord{}, ErrNotFound
	}
	if err != nil {
		return screening.LiveRecord{}, err
	}
	return rec, nil
}

// EnsureCinema inserts a cinema if absent and returns its id.
// Existing rows get website and tz refreshed.
func (s *Store) EnsureCinema(ctx context.Context, name, website, tz string) (int64, error) {
	name = screening.NormSpace(name)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cinema (name, website, tz) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET website = excluded.website, tz = excluded.tz
	`, name, website, tz)
	if err != nil {
		return 0, fmt.Errorf("ensure cinema %q: %w", name, err)
	}

	var id int64
	if err := s.db.QueryRowContext(ctx, `SELECT id FROM cinema WHERE name = ?`, name).Scan(&id); err != nil {
		return 0, fmt.Errorf("ensure cinema %q: %w", name, err)
	}
	return id, nil
}

// EnsureFilm inserts a film if absent and returns its id. Matching is on the
// normalized (title, year) pair, mirroring how upstream scrapes identify films.
//
// Select-then-insert rather than ON CONFLICT: the UNIQUE(title, year)
// constraint treats NULL years as distinct, so an upsert would duplicate
// yearless films on every call. The transaction keeps the pair atomic.
func (s *Store) EnsureFilm(ctx context.Context, title string, year *int64) (int64, error) {
	title = screening.NormSpace(title)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("ensure film %q: %w", title, err)
	}
	defer tx.Rollback() // No-op if committed

	var id int64
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM film WHERE title = ? AND year IS ? ORDER BY id ASC LIMIT 1`, title, year,
	).Scan(&id)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("ensure film %q: %w", title, err)
	}
	if errors.Is(err, sql.ErrNoRows) {
		res, err := tx.ExecContext(ctx, `INSERT INTO film (title, year) VALUES (?, ?)`, title, year)
		if err != nil {
			return 0, fmt.Errorf("ensure film %q: %w", title, err)
		}
		if id, err = res.LastInsertId(); err != nil {
			return 0, fmt.Errorf("ensure film %q: %w", title, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("ensure film %q: %w", title, err)
	}
	return id, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func collectLiveRecords(rows *sql.Rows) ([]screening.LiveRecord, error) {
	var out []screening.LiveRecord
	for rows.Next() {
		rec, err := scanLiveRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate live rows: %w", err)
	}

	if out == nil {
		out = []screening.LiveRecord{}
	}
	return out, nil
}

func scanLiveRecord(row rowScanner) (screening.LiveRecord, error) {
	var (
		rec                            screening.LiveRecord
		startS, endS, loadedS          string
		createdS, updatedS             string
		runtime                        sql.NullInt64
		notes, rd, rt                  sql.NullString
	)
	err := row.Scan(
		&rec.ID, &rec.FilmID, &rec.CinemaID, &startS, &endS, &runtime, &rec.TZ,
		&rec.Source, &rec.SourceUID, &rec.SourceURL, &notes, &rd, &rt,
		&rec.ContentHash, &loadedS, &rec.IngestRunID, &rec.IsActive, &createdS, &updatedS,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return screening.LiveRecord{}, err
		}
		return screening.LiveRecord{}, fmt.Errorf("scan live row: %w", err)
	}

	if rec.StartAtUTC, err = parseTime(startS); err != nil {
		return screening.LiveRecord{}, err
	}
	if rec.EndAtUTC, err = parseTime(endS); err != nil {
		return screening.LiveRecord{}, err
	}
	if rec.LoadedAtUTC, err = parseTime(loadedS); err != nil {
		return screening.LiveRecord{}, err
	}
	if rec.CreatedAt, err = parseTime(createdS); err != nil {
		return screening.LiveRecord{}, err
	}
	if rec.UpdatedAt, err = parseTime(updatedS); err != nil {
		return screening.LiveRecord{}, err
	}
	rec.RuntimeMin = nullInt(runtime)
	rec.Notes = nullStr(notes)
	rec.RawDate = nullStr(rd)
	rec.RawTime = nullStr(rt)
	return rec, nil
}
