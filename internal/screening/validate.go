package screening

import (
	"errors"
	"fmt"
	"strings"
)

// RecordError reports one rejected staging record. Index is the position of
// the record in the submitted batch.
type RecordError struct {
	Index  int
	Reason string
}

func (e RecordError) Error() string {
	return fmt.Sprintf("record %d: %s", e.Index, e.Reason)
}

// ValidationReport aggregates per-record rejections from one staging write.
// Rejected records are reported, never silently dropped.
type ValidationReport []RecordError

func (r ValidationReport) Error() string {
	if len(r) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, len(r))
	for i, e := range r {
		msgs[i] = e.Error()
	}
	return fmt.Sprintf("%d invalid record(s): %s", len(r), strings.Join(msgs, "; "))
}

// Validate checks the mandatory fields and ordering constraints of a
// normalized record. It does not consult the database; foreign-key validity
// is the store's concern.
func Validate(r Record) error {
	var missing []string
	if r.FilmID == 0 {
		missing = append(missing, "film_id")
	}
	if r.CinemaID == 0 {
		missing = append(missing, "cinema_id")
	}
	if r.StartAtUTC.IsZero() {
		missing = append(missing, "start_at_utc")
	}
	if r.EndAtUTC.IsZero() {
		missing = append(missing, "end_at_utc")
	}
	if strings.TrimSpace(r.Source) == "" {
		missing = append(missing, "source")
	}
	if strings.TrimSpace(r.SourceUID) == "" {
		missing = append(missing, "source_uid")
	}
	if strings.TrimSpace(r.SourceURL) == "" {
		missing = append(missing, "source_url")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required field(s): %s", strings.Join(missing, ", "))
	}

	if r.EndAtUTC.Before(r.StartAtUTC) {
		return errors.New("end_at_utc before start_at_utc")
	}
	return nil
}
