package store

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
)

// ScreeningFilter narrows the live-table listing. Zero values mean "no
// constraint" except ActiveOnly, which is an explicit opt-in.
type ScreeningFilter struct {
	Source     string
	CinemaName string
	ActiveOnly bool
	From       *time.Time
	To         *time.Time
	Limit      uint64
}

// ScreeningView is one row of the operator-facing listing: the live
// screening joined with its film title and cinema name.
type ScreeningView struct {
	ID         int64
	FilmTitle  string
	CinemaName string
	StartAtUTC time.Time
	EndAtUTC   time.Time
	Source     string
	SourceUID  string
	IsActive   bool
}

// QueryScreenings lists live screenings joined with film and cinema,
// filtered and ordered by start time.
func (s *Store) QueryScreenings(ctx context.Context, f ScreeningFilter) ([]ScreeningView, error) {
	q := sq.Select(
		"t.id", "f.title", "c.name",
		"t.start_at_utc", "t.end_at_utc",
		"t.source", "t.source_uid", "t.is_active",
	).
		From("screening t").
		Join("film f ON t.film_id = f.id").
		Join("cinema c ON t.cinema_id = c.id").
		OrderBy("t.start_at_utc ASC", "c.name ASC", "f.title ASC")

	if f.Source != "" {
		q = q.Where(sq.Eq{"t.source": f.Source})
	}
	if f.CinemaName != "" {
		q = q.Where(sq.Eq{"c.name": f.CinemaName})
	}
	if f.ActiveOnly {
		q = q.Where(sq.Eq{"t.is_active": true})
	}
	if f.From != nil {
		q = q.Where(sq.GtOrEq{"t.start_at_utc": fmtTime(*f.From)})
	}
	if f.To != nil {
		q = q.Where(sq.Lt{"t.start_at_utc": fmtTime(*f.To)})
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}

	sqlStr, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build screenings query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("query screenings: %w", err)
	}
	defer rows.Close()

	var out []ScreeningView
	for rows.Next() {
		var (
			v            ScreeningView
			startS, endS string
		)
		if err := rows.Scan(&v.ID, &v.FilmTitle, &v.CinemaName, &startS, &endS, &v.Source, &v.SourceUID, &v.IsActive); err != nil {
			return nil, fmt.Errorf("scan screening view: %w", err)
		}
		if v.StartAtUTC, err = parseTime(startS); err != nil {
			return nil, err
		}
		if v.EndAtUTC, err = parseTime(endS); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate screenings: %w", err)
	}

	if out == nil {
		out = []ScreeningView{}
	}
	return out, nil
}
