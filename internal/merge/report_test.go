package merge

import (
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
)

func TestStatsReportGolden(t *testing.T) {
	stats := Stats{
		RunID:           42,
		Token:           "0193e4a0-0000-7000-8000-000000000001",
		Source:          "viff",
		RowsIn:          31,
		RowsInserted:    4,
		RowsUpdated:     2,
		RowsDeactivated: 1,
	}

	g := goldie.New(t)
	g.Assert(t, "merge_report", []byte(stats.Report()))
}

func TestStatsString(t *testing.T) {
	stats := Stats{RowsIn: 31, RowsInserted: 4, RowsUpdated: 2, RowsDeactivated: 1}
	assert.Equal(t, "rows_in=31 inserted=4 updated=2 deactivated=1", stats.String())
}
