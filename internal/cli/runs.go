package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/filmrow/marquee/internal/store"
)

// RunsOptions holds flags for the runs command.
type RunsOptions struct {
	*RootOptions
	Database string
	Source   string
	Limit    int
	Abandon  int64
}

// NewRunsCommand creates the runs command: ingest-run ledger inspection.
func NewRunsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect the ingest-run ledger",
		Long: `List ingest runs with their status and row counters.

A run left in status "running" by a crash blocks further merges for its
source; --abandon finalizes it as an error so ingestion can resume.

Examples:
  marquee runs --db marquee.db
  marquee runs --db marquee.db --source viff --limit 10
  marquee runs --db marquee.db --abandon 42`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRuns(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	cmd.Flags().StringVar(&opts.Source, "source", "", "filter to one source")
	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "maximum runs to list")
	cmd.Flags().Int64Var(&opts.Abandon, "abandon", 0, "finalize the given running run as an error")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runRuns(opts *RunsOptions, cmd *cobra.Command) error {
	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	ctx := cmd.Context()

	if opts.Abandon > 0 {
		err := st.MarkRunError(ctx, opts.Abandon, "abandoned by operator", time.Now())
		if err != nil {
			return WrapExitError(ExitFailure, "failed to abandon run", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "run %d finalized as error\n", opts.Abandon)
		return nil
	}

	runs, err := st.ListRuns(ctx, opts.Source, opts.Limit)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to list runs", err)
	}

	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	if opts.Format == "json" {
		return out.Success(runs)
	}

	if len(runs) == 0 {
		return out.Success("no ingest runs recorded")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%-5s %-12s %-8s %-20s %6s %6s %6s %6s  %s\n",
		"ID", "SOURCE", "STATUS", "STARTED", "IN", "INS", "UPD", "DEACT", "MESSAGE")
	for _, r := range runs {
		msg := ""
		if r.Message != nil {
			msg = *r.Message
		}
		fmt.Fprintf(&b, "%-5d %-12s %-8s %-20s %6d %6d %6d %6d  %s\n",
			r.ID, r.Source, r.Status, r.StartedAt.Format("2006-01-02 15:04:05"),
			r.RowsIn, r.RowsInserted, r.RowsUpdated, r.RowsDeactivated, msg)
	}
	return out.Success(strings.TrimRight(b.String(), "\n"))
}
