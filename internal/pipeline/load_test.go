package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/filmrow/marquee/internal/catalog"
	"github.com/filmrow/marquee/internal/store"
)

func viffSource() catalog.Source {
	return catalog.Source{
		ID:       "viff",
		Name:     "VIFF Centre",
		Timezone: "America/Vancouver",
		Website:  "https://viff.org",
	}
}

func writeSnapshot(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "viff_screenings_latest.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func newLoadStep(t *testing.T, snapshot string) (*LoadStep, *store.Store) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "marquee.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	step := &LoadStep{
		Source: viffSource(),
		Path:   writeSnapshot(t, snapshot),
		Store:  st,
		Now:    func() time.Time { return time.Date(2025, 1, 10, 8, 0, 0, 0, time.UTC) },
	}
	return step, st
}

func TestLoadStepStagesSnapshot(t *testing.T) {
	step, st := newLoadStep(t, `[
		{
			"title": "Perfect Days",
			"year": "2023",
			"duration": "124 mins",
			"detail_url": "https://viff.org/films/perfect-days",
			"showtimes": [
				{"date": "2025-01-12", "time": "8:00 PM"},
				{"date": "2025-01-13", "time": "20:30"}
			]
		},
		{
			"title": "Untitled Placeholder",
			"showtimes": []
		}
	]`)

	require.NoError(t, step.Run(context.Background()))

	rows, err := st.StagingRows(context.Background(), "viff")
	require.NoError(t, err)
	require.Len(t, rows, 2, "films without showtimes are skipped")

	first := rows[0]
	// 8:00 PM Vancouver is 04:00 UTC next day in January.
	assert.Equal(t, time.Date(2025, 1, 13, 4, 0, 0, 0, time.UTC), first.StartAtUTC)
	require.NotNil(t, first.RuntimeMin)
	assert.Equal(t, int64(124), *first.RuntimeMin)
	assert.Equal(t, first.StartAtUTC.Add(124*time.Minute), first.EndAtUTC)
	assert.Equal(t, "viff", first.Source)
	assert.Len(t, first.SourceUID, 32)
	assert.Equal(t, "https://viff.org/films/perfect-days", first.SourceURL)
	require.NotNil(t, first.RawDate)
	assert.Equal(t, "2025-01-12", *first.RawDate)

	assert.NotEqual(t, rows[0].SourceUID, rows[1].SourceUID)
}

func TestLoadStepReportsUnparseableShowtimes(t *testing.T) {
	step, st := newLoadStep(t, `[
		{
			"title": "Perfect Days",
			"duration": 124,
			"showtimes": [
				{"date": "2025-01-12", "time": "8:00 PM"},
				{"date": "someday", "time": "late"}
			]
		}
	]`)

	err := step.Run(context.Background())
	require.Error(t, err, "unparseable showtimes must surface, not vanish")
	assert.Contains(t, err.Error(), "staged 1 row(s)")

	rows, qErr := st.StagingRows(context.Background(), "viff")
	require.NoError(t, qErr)
	assert.Len(t, rows, 1, "the valid showtime is staged regardless")
}

func TestLoadStepMissingSnapshot(t *testing.T) {
	step, _ := newLoadStep(t, `[]`)
	step.Path = filepath.Join(t.TempDir(), "missing.json")
	assert.Error(t, step.Run(context.Background()))
}

func TestLoadStepName(t *testing.T) {
	step := &LoadStep{Source: viffSource()}
	assert.Equal(t, "load:viff", step.Name())
}

func TestParseRuntimeMinutes(t *testing.T) {
	n := func(v int64) *int64 { return &v }
	tests := []struct {
		in   any
		want *int64
	}{
		{nil, nil},
		{float64(111), n(111)},
		{"111 mins", n(111)},
		{"98 min", n(98)},
		{" 124 ", n(124)},
		{"TBA", nil},
		{true, nil},
	}
	for _, tt := range tests {
		got := parseRuntimeMinutes(tt.in)
		if tt.want == nil {
			assert.Nil(t, got, "in=%v", tt.in)
		} else {
			require.NotNil(t, got, "in=%v", tt.in)
			assert.Equal(t, *tt.want, *got, "in=%v", tt.in)
		}
	}
}

func TestParseYear(t *testing.T) {
	n := func(v int64) *int64 { return &v }
	tests := []struct {
		in   any
		want *int64
	}{
		{nil, nil},
		{float64(1957), n(1957)},
		{"2023", n(2023)},
		{" 2023 ", n(2023)},
		{"unknown", nil},
		{float64(1492), nil},
		{float64(3000), nil},
	}
	for _, tt := range tests {
		got := parseYear(tt.in)
		if tt.want == nil {
			assert.Nil(t, got, "in=%v", tt.in)
		} else {
			require.NotNil(t, got, "in=%v", tt.in)
			assert.Equal(t, *tt.want, *got, "in=%v", tt.in)
		}
	}
}

func TestParseLocalDateTime(t *testing.T) {
	loc, err := time.LoadLocation("America/Vancouver")
	require.NoError(t, err)
	ref := time.Date(2025, 1, 10, 0, 0, 0, 0, loc)

	tests := []struct {
		name string
		date string
		time string
		want time.Time
	}{
		{
			"iso date with 12h clock",
			"2025-01-12", "8:00 PM",
			time.Date(2025, 1, 12, 20, 0, 0, 0, loc),
		},
		{
			"long date with 24h clock",
			"January 12, 2025", "20:30",
			time.Date(2025, 1, 12, 20, 30, 0, 0, loc),
		},
		{
			"yearless date takes the reference year",
			"Sunday, January 12", "7:15 pm",
			time.Date(2025, 1, 12, 19, 15, 0, 0, loc),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseLocalDateTime(tt.date, tt.time, ref, loc)
			require.NoError(t, err)
			assert.True(t, got.Equal(tt.want), "got %v, want %v", got, tt.want)
		})
	}

	t.Run("yearless date far in the past rolls into next year", func(t *testing.T) {
		decRef := time.Date(2025, 12, 10, 0, 0, 0, 0, loc)
		got, err := parseLocalDateTime("January 5", "7:00pm", decRef, loc)
		require.NoError(t, err)
		want := time.Date(2026, 1, 5, 19, 0, 0, 0, loc)
		assert.True(t, got.Equal(want), "got %v, want %v", got, want)
	})

	t.Run("unparseable inputs error", func(t *testing.T) {
		_, err := parseLocalDateTime("someday", "8:00 PM", ref, loc)
		assert.Error(t, err)
		_, err = parseLocalDateTime("2025-01-12", "late", ref, loc)
		assert.Error(t, err)
	})
}

func TestGuessEnd(t *testing.T) {
	start := time.Date(2025, 1, 12, 20, 0, 0, 0, time.UTC)
	runtime := int64(90)

	assert.Equal(t, start.Add(90*time.Minute), guessEnd(start, &runtime))
	assert.Equal(t, start, guessEnd(start, nil), "no runtime means zero-length, not invented")
}
