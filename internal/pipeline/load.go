package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"time"

	"github.com/filmrow/marquee/internal/catalog"
	"github.com/filmrow/marquee/internal/screening"
	"github.com/filmrow/marquee/internal/store"
)

// filmEntry is the scraped snapshot shape: one film with its showtimes, as
// produced by the per-site scrapers.
type filmEntry struct {
	Title     string     `json:"title"`
	Year      any        `json:"year"`
	Duration  any        `json:"duration"`
	DetailURL string     `json:"detail_url"`
	Showtimes []showtime `json:"showtimes"`
}

type showtime struct {
	Date string `json:"date"`
	Time string `json:"time"`
}

// LoadStep reads one source's scraped snapshot, normalizes each showtime to
// a screening record in UTC, and snapshot-replaces the source's staging
// rows. Its configuration is exactly what it needs: the source declaration,
// the snapshot path and the store.
type LoadStep struct {
	Source catalog.Source
	Path   string
	Store  *store.Store
	Now    func() time.Time
}

func (s *LoadStep) Name() string {
	return "load:" + s.Source.ID
}

// Run stages the snapshot. Records that fail validation are reported through
// the returned error; valid records are staged regardless, so a later merge
// can still promote them.
func (s *LoadStep) Run(ctx context.Context) error {
	loc, err := s.Source.Location()
	if err != nil {
		return err
	}

	data, err := os.ReadFile(s.Path)
	if err != nil {
		return fmt.Errorf("load %s: %w", s.Source.ID, err)
	}

	var films []filmEntry
	if err := json.Unmarshal(data, &films); err != nil {
		return fmt.Errorf("load %s: parse snapshot: %w", s.Source.ID, err)
	}

	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	loadedAt := now().UTC()

	cinemaID, err := s.Store.EnsureCinema(ctx, s.Source.Name, s.Source.Website, s.Source.Timezone)
	if err != nil {
		return fmt.Errorf("load %s: %w", s.Source.ID, err)
	}

	var records []screening.Record
	for _, film := range films {
		if film.Title == "" || len(film.Showtimes) == 0 {
			continue
		}

		filmID, err := s.Store.EnsureFilm(ctx, film.Title, parseYear(film.Year))
		if err != nil {
			return fmt.Errorf("load %s: %w", s.Source.ID, err)
		}
		runtime := parseRuntimeMinutes(film.Duration)

		for _, st := range film.Showtimes {
			startLocal, err := parseLocalDateTime(st.Date, st.Time, loadedAt.In(loc), loc)
			if err != nil {
				// Unparseable showtimes become invalid records so the
				// staging writer reports them instead of dropping them.
				records = append(records, screening.Record{
					Source:  s.Source.ID,
					RawDate: ptr(st.Date),
					RawTime: ptr(st.Time),
				})
				continue
			}

			startUTC := startLocal.UTC()
			endUTC := guessEnd(startUTC, runtime)

			records = append(records, screening.Record{
				FilmID:     filmID,
				CinemaID:   cinemaID,
				StartAtUTC: startUTC,
				EndAtUTC:   endUTC,
				RuntimeMin: runtime,
				TZ:         s.Source.Timezone,
				Source:     s.Source.ID,
				SourceUID:  screening.StableUID(cinemaID, filmID, startUTC),
				SourceURL:  firstNonEmpty(film.DetailURL, s.Source.Website),
				RawDate:    ptr(st.Date),
				RawTime:    ptr(st.Time),
			})
		}
	}

	staged, report, err := s.Store.ReplaceStaging(ctx, s.Source.ID, records, loadedAt)
	if err != nil {
		return fmt.Errorf("load %s: %w", s.Source.ID, err)
	}
	if len(report) > 0 {
		return fmt.Errorf("load %s: staged %d row(s), %w", s.Source.ID, staged, report)
	}
	return nil
}

var runtimeRe = regexp.MustCompile(`(\d+)\s*min`)
var digitsRe = regexp.MustCompile(`(\d+)`)

// parseRuntimeMinutes accepts "111 mins", "98 min", "111", 111 or nil.
func parseRuntimeMinutes(v any) *int64 {
	switch val := v.(type) {
	case nil:
		return nil
	case float64:
		n := int64(val)
		return &n
	case string:
		m := runtimeRe.FindStringSubmatch(val)
		if m == nil {
			m = digitsRe.FindStringSubmatch(val)
		}
		if m == nil {
			return nil
		}
		n, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			return nil
		}
		return &n
	default:
		return nil
	}
}

// parseYear accepts a year as string or number; values outside the range of
// plausible release years are discarded.
func parseYear(v any) *int64 {
	var y int64
	switch val := v.(type) {
	case nil:
		return nil
	case float64:
		y = int64(val)
	case string:
		n, err := strconv.ParseInt(screening.NormSpace(val), 10, 64)
		if err != nil {
			return nil
		}
		y = n
	default:
		return nil
	}
	if y < 1888 || y > 2100 {
		return nil
	}
	return &y
}

// dateLayouts are tried in order against the scraped date label.
var dateLayouts = []string{
	"2006-01-02",
	"January 2, 2006",
	"Monday, January 2, 2006",
	"Jan 2, 2006",
	"Monday, January 2",
	"January 2",
}

// timeLayouts are tried in order against the scraped time label.
var timeLayouts = []string{
	"3:04 PM",
	"3:04PM",
	"3:04 pm",
	"3:04pm",
	"15:04",
}

// parseLocalDateTime combines a scraped date and time label into a local
// timestamp. Layouts without a year get the year inferred relative to the
// scrape time: listings are upcoming, so a date far in the past rolls into
// next year.
func parseLocalDateTime(dateStr, timeStr string, ref time.Time, loc *time.Location) (time.Time, error) {
	dateStr = screening.NormSpace(dateStr)
	timeStr = screening.NormSpace(timeStr)

	var day time.Time
	var withYear bool
	var err error
	for _, layout := range dateLayouts {
		day, err = time.ParseInLocation(layout, dateStr, loc)
		if err == nil {
			withYear = day.Year() != 0
			break
		}
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("unparseable date %q", dateStr)
	}

	var clock time.Time
	for _, layout := range timeLayouts {
		clock, err = time.Parse(layout, timeStr)
		if err == nil {
			break
		}
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("unparseable time %q", timeStr)
	}

	year := day.Year()
	if !withYear {
		year = ref.Year()
	}
	t := time.Date(year, day.Month(), day.Day(), clock.Hour(), clock.Minute(), 0, 0, loc)
	if !withYear && t.Before(ref.AddDate(0, -6, 0)) {
		t = t.AddDate(1, 0, 0)
	}
	return t, nil
}

// guessEnd derives the end time from the runtime; without a runtime the
// screening is treated as zero-length rather than invented.
func guessEnd(startUTC time.Time, runtimeMin *int64) time.Time {
	if runtimeMin == nil {
		return startUTC
	}
	return startUTC.Add(time.Duration(*runtimeMin) * time.Minute)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func ptr(s string) *string {
	return &s
}
