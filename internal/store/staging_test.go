package store

import (
	"context"
	"testing"
	"time"

	"github.com/filmrow/marquee/internal/screening"
)

// seedParents inserts one cinema and one film and returns their ids.
func seedParents(t *testing.T, s *Store) (cinemaID, filmID int64) {
	t.Helper()
	ctx := context.Background()

	cinemaID, err := s.EnsureCinema(ctx, "VIFF Centre", "https://viff.org", "America/Vancouver")
	if err != nil {
		t.Fatalf("EnsureCinema() error = %v", err)
	}
	year := int64(2024)
	filmID, err = s.EnsureFilm(ctx, "Perfect Days", &year)
	if err != nil {
		t.Fatalf("EnsureFilm() error = %v", err)
	}
	return cinemaID, filmID
}

func testRecord(cinemaID, filmID int64, uid string, start time.Time) screening.Record {
	runtime := int64(124)
	return screening.Record{
		FilmID:     filmID,
		CinemaID:   cinemaID,
		StartAtUTC: start,
		EndAtUTC:   start.Add(time.Duration(runtime) * time.Minute),
		RuntimeMin: &runtime,
		TZ:         "America/Vancouver",
		Source:     "viff",
		SourceUID:  uid,
		SourceURL:  "https://viff.org/films/perfect-days",
	}
}

func TestReplaceStaging(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	cinemaID, filmID := seedParents(t, s)
	loadedAt := time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)

	records := []screening.Record{
		testRecord(cinemaID, filmID, "v1", time.Date(2025, 1, 2, 20, 0, 0, 0, time.UTC)),
		testRecord(cinemaID, filmID, "v2", time.Date(2025, 1, 3, 20, 0, 0, 0, time.UTC)),
	}

	staged, report, err := s.ReplaceStaging(ctx, "viff", records, loadedAt)
	if err != nil {
		t.Fatalf("ReplaceStaging() error = %v", err)
	}
	if len(report) != 0 {
		t.Fatalf("unexpected rejections: %v", report)
	}
	if staged != 2 {
		t.Errorf("staged = %d, want 2", staged)
	}

	rows, err := s.StagingRows(ctx, "viff")
	if err != nil {
		t.Fatalf("StagingRows() error = %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("len(rows) = %d, want 2", len(rows))
	}
	for _, row := range rows {
		if row.ContentHash != screening.Fingerprint(row.Record) {
			t.Errorf("row %s: stored hash does not match content", row.SourceUID)
		}
		if !row.LoadedAtUTC.Equal(loadedAt) {
			t.Errorf("row %s: loaded_at = %v, want %v", row.SourceUID, row.LoadedAtUTC, loadedAt)
		}
	}
}

func TestReplaceStagingIsSnapshot(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	cinemaID, filmID := seedParents(t, s)
	loadedAt := time.Now().UTC()

	first := []screening.Record{
		testRecord(cinemaID, filmID, "v1", time.Date(2025, 1, 2, 20, 0, 0, 0, time.UTC)),
		testRecord(cinemaID, filmID, "v2", time.Date(2025, 1, 3, 20, 0, 0, 0, time.UTC)),
	}
	if _, _, err := s.ReplaceStaging(ctx, "viff", first, loadedAt); err != nil {
		t.Fatalf("first ReplaceStaging() error = %v", err)
	}

	second := []screening.Record{
		testRecord(cinemaID, filmID, "v3", time.Date(2025, 1, 4, 20, 0, 0, 0, time.UTC)),
	}
	if _, _, err := s.ReplaceStaging(ctx, "viff", second, loadedAt); err != nil {
		t.Fatalf("second ReplaceStaging() error = %v", err)
	}

	count, err := s.StagingCount(ctx, "viff")
	if err != nil {
		t.Fatalf("StagingCount() error = %v", err)
	}
	if count != 1 {
		t.Errorf("count = %d, want 1: replace must discard the previous snapshot", count)
	}

	rows, err := s.StagingRows(ctx, "viff")
	if err != nil {
		t.Fatalf("StagingRows() error = %v", err)
	}
	if len(rows) != 1 || rows[0].SourceUID != "v3" {
		t.Errorf("surviving rows = %+v, want only v3", rows)
	}
}

func TestReplaceStagingLeavesOtherSourcesAlone(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	cinemaID, filmID := seedParents(t, s)
	loadedAt := time.Now().UTC()

	rioRecord := testRecord(cinemaID, filmID, "r1", time.Date(2025, 1, 2, 20, 0, 0, 0, time.UTC))
	rioRecord.Source = "rio"
	if _, _, err := s.ReplaceStaging(ctx, "rio", []screening.Record{rioRecord}, loadedAt); err != nil {
		t.Fatalf("stage rio: %v", err)
	}

	viffRecord := testRecord(cinemaID, filmID, "v1", time.Date(2025, 1, 3, 20, 0, 0, 0, time.UTC))
	if _, _, err := s.ReplaceStaging(ctx, "viff", []screening.Record{viffRecord}, loadedAt); err != nil {
		t.Fatalf("stage viff: %v", err)
	}

	count, err := s.StagingCount(ctx, "rio")
	if err != nil {
		t.Fatalf("StagingCount() error = %v", err)
	}
	if count != 1 {
		t.Errorf("rio staging count = %d, want 1", count)
	}
}

func TestReplaceStagingReportsInvalidRecords(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	cinemaID, filmID := seedParents(t, s)

	bad := testRecord(cinemaID, filmID, "v-bad", time.Date(2025, 1, 2, 20, 0, 0, 0, time.UTC))
	bad.SourceURL = ""
	wrongSource := testRecord(cinemaID, filmID, "v-wrong", time.Date(2025, 1, 3, 20, 0, 0, 0, time.UTC))
	wrongSource.Source = "rio"
	good := testRecord(cinemaID, filmID, "v-good", time.Date(2025, 1, 4, 20, 0, 0, 0, time.UTC))

	staged, report, err := s.ReplaceStaging(ctx, "viff",
		[]screening.Record{bad, wrongSource, good}, time.Now().UTC())
	if err != nil {
		t.Fatalf("ReplaceStaging() error = %v", err)
	}
	if staged != 1 {
		t.Errorf("staged = %d, want 1", staged)
	}
	if len(report) != 2 {
		t.Fatalf("len(report) = %d, want 2: %v", len(report), report)
	}
	if report[0].Index != 0 || report[1].Index != 1 {
		t.Errorf("report indexes = %d, %d; want 0, 1", report[0].Index, report[1].Index)
	}

	rows, err := s.StagingRows(ctx, "viff")
	if err != nil {
		t.Fatalf("StagingRows() error = %v", err)
	}
	if len(rows) != 1 || rows[0].SourceUID != "v-good" {
		t.Errorf("staged rows = %+v, want only v-good", rows)
	}
}

func TestStagingRowsRoundTripOptionalFields(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	cinemaID, filmID := seedParents(t, s)

	r := testRecord(cinemaID, filmID, "v1", time.Date(2025, 1, 2, 20, 0, 0, 0, time.UTC))
	r.RuntimeMin = nil
	notes, rawDate := "Q&A with director", "Jan 2"
	r.Notes = &notes
	r.RawDate = &rawDate

	if _, _, err := s.ReplaceStaging(ctx, "viff", []screening.Record{r}, time.Now().UTC()); err != nil {
		t.Fatalf("ReplaceStaging() error = %v", err)
	}

	rows, err := s.StagingRows(ctx, "viff")
	if err != nil {
		t.Fatalf("StagingRows() error = %v", err)
	}
	got := rows[0].Record
	if got.RuntimeMin != nil {
		t.Errorf("RuntimeMin = %v, want nil", *got.RuntimeMin)
	}
	if got.Notes == nil || *got.Notes != notes {
		t.Errorf("Notes = %v, want %q", got.Notes, notes)
	}
	if got.RawDate == nil || *got.RawDate != rawDate {
		t.Errorf("RawDate = %v, want %q", got.RawDate, rawDate)
	}
	if got.RawTime != nil {
		t.Errorf("RawTime = %v, want nil", *got.RawTime)
	}
}
