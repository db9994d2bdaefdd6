package screening

import "time"

// Run statuses persisted in ops_ingest_run.
const (
	RunStatusRunning = "running"
	RunStatusSuccess = "success"
	RunStatusError   = "error"
)

// Record is the normalized screening shape shared by the staging and live
// tables. It carries only content fields; bookkeeping (run id, active flag,
// timestamps) lives on LiveRecord.
//
// Optional fields are pointers so that "absent" and "empty" stay
// distinguishable through storage and comparison. Use NullEq to compare them.
type Record struct {
	FilmID     int64
	CinemaID   int64
	StartAtUTC time.Time
	EndAtUTC   time.Time
	RuntimeMin *int64
	TZ         string
	Source     string
	SourceUID  string
	SourceURL  string
	Notes      *string
	RawDate    *string
	RawTime    *string
}

// StagingRecord is one screening as staged for the current ingestion run.
// ContentHash is computed by the staging writer at load time.
type StagingRecord struct {
	Record
	ContentHash string
	LoadedAtUTC time.Time
}

// LiveRecord is the authoritative, queryable screening. Rows are never
// deleted; when a source stops listing a screening the row is deactivated.
type LiveRecord struct {
	ID int64
	Record
	ContentHash string
	LoadedAtUTC time.Time
	IngestRunID int64
	IsActive    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// IngestRun is the audit record of one merge execution for one source.
// Exactly one finalization: status moves from running to success or error.
type IngestRun struct {
	ID              int64
	Token           string
	Source          string
	StartedAt       time.Time
	FinishedAt      *time.Time
	Status          string
	RowsIn          int
	RowsInserted    int
	RowsUpdated     int
	RowsDeactivated int
	Message         *string
}

// NullEq reports whether two optional values are equal under null-safe
// semantics: nil == nil, nil != non-nil, otherwise compare the values.
func NullEq[T comparable](a, b *T) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// ContentEquals reports whether two records agree on every field that
// participates in the content fingerprint, using null-safe comparison for
// optional fields. Bookkeeping fields are not consulted.
func ContentEquals(a, b Record) bool {
	return a.FilmID == b.FilmID &&
		a.CinemaID == b.CinemaID &&
		a.StartAtUTC.Equal(b.StartAtUTC) &&
		a.EndAtUTC.Equal(b.EndAtUTC) &&
		NullEq(a.RuntimeMin, b.RuntimeMin) &&
		a.TZ == b.TZ &&
		a.SourceURL == b.SourceURL &&
		NullEq(a.Notes, b.Notes) &&
		NullEq(a.RawDate, b.RawDate) &&
		NullEq(a.RawTime, b.RawTime)
}
