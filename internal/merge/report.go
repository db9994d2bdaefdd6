package merge

import (
	"fmt"
	"strings"
)

// Report renders the stats of one merge as the operator-facing summary
// printed by the CLI.
func (s Stats) Report() string {
	var b strings.Builder
	fmt.Fprintf(&b, "merge %s: run %d (%s)\n", s.Source, s.RunID, s.Token)
	fmt.Fprintf(&b, "  rows_in          %d\n", s.RowsIn)
	fmt.Fprintf(&b, "  rows_inserted    %d\n", s.RowsInserted)
	fmt.Fprintf(&b, "  rows_updated     %d\n", s.RowsUpdated)
	fmt.Fprintf(&b, "  rows_deactivated %d\n", s.RowsDeactivated)
	return b.String()
}

func (s Stats) String() string {
	return fmt.Sprintf("rows_in=%d inserted=%d updated=%d deactivated=%d",
		s.RowsIn, s.RowsInserted, s.RowsUpdated, s.RowsDeactivated)
}
