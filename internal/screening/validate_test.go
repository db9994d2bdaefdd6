package screening

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateAccepts(t *testing.T) {
	assert.NoError(t, Validate(baseRecord()))
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Record)
		wantMsg string
	}{
		{"missing film", func(r *Record) { r.FilmID = 0 }, "film_id"},
		{"missing cinema", func(r *Record) { r.CinemaID = 0 }, "cinema_id"},
		{"missing start", func(r *Record) { r.StartAtUTC = time.Time{} }, "start_at_utc"},
		{"missing end", func(r *Record) { r.EndAtUTC = time.Time{} }, "end_at_utc"},
		{"missing source", func(r *Record) { r.Source = "  " }, "source"},
		{"missing uid", func(r *Record) { r.SourceUID = "" }, "source_uid"},
		{"missing url", func(r *Record) { r.SourceURL = "" }, "source_url"},
		{
			"end before start",
			func(r *Record) { r.EndAtUTC = r.StartAtUTC.Add(-time.Minute) },
			"end_at_utc before start_at_utc",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := baseRecord()
			tt.mutate(&r)

			err := Validate(r)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestValidateReportsAllMissingFields(t *testing.T) {
	err := Validate(Record{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "film_id")
	assert.Contains(t, err.Error(), "source_url")
}

func TestValidationReportError(t *testing.T) {
	report := ValidationReport{
		{Index: 0, Reason: "missing required field(s): film_id"},
		{Index: 2, Reason: "end_at_utc before start_at_utc"},
	}
	msg := report.Error()
	assert.Contains(t, msg, "2 invalid record(s)")
	assert.Contains(t, msg, "record 0: missing required field(s): film_id")
	assert.Contains(t, msg, "record 2:")
}

func TestNullEq(t *testing.T) {
	one, alsoOne, two := int64(1), int64(1), int64(2)

	assert.True(t, NullEq[int64](nil, nil))
	assert.True(t, NullEq(&one, &alsoOne))
	assert.False(t, NullEq(&one, &two))
	assert.False(t, NullEq(&one, nil))
	assert.False(t, NullEq[int64](nil, &one))
}

func TestContentEquals(t *testing.T) {
	a := baseRecord()
	b := baseRecord()
	assert.True(t, ContentEquals(a, b))

	b.Source = "rio"
	b.SourceUID = "other"
	assert.True(t, ContentEquals(a, b), "identity fields are not content")

	c := baseRecord()
	c.Notes = nil
	assert.False(t, ContentEquals(a, c))

	d := baseRecord()
	d.EndAtUTC = d.EndAtUTC.Add(time.Minute)
	assert.False(t, ContentEquals(a, d))
}
