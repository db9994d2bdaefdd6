package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/filmrow/marquee/internal/merge"
	"github.com/filmrow/marquee/internal/store"
)

// MergeOptions holds flags for the merge command.
type MergeOptions struct {
	*RootOptions
	Database string
	Source   string
	DryRun   bool
	Cutoff   string
}

// NewMergeCommand creates the merge command: a single-source staging → live
// reconciliation without the rest of the pipeline.
func NewMergeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MergeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "merge",
		Short: "Reconcile one source's staging snapshot into the live table",
		Long: `Reconcile one source's staging snapshot into the live screening table:
insert new screenings, update changed ones, deactivate vanished ones, all in
a single transaction recorded in the ingest-run ledger.

With --dry-run the full reconciliation executes and rolls back, printing the
stats it would have produced.

Examples:
  marquee merge --db marquee.db --source viff
  marquee merge --db marquee.db --source rio --dry-run
  marquee merge --db marquee.db --source viff --cutoff 2025-01-01T00:00:00Z`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMerge(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	cmd.Flags().StringVar(&opts.Source, "source", "", "source to merge (required)")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "preview without applying changes")
	cmd.Flags().StringVar(&opts.Cutoff, "cutoff", "", "only reconcile screenings starting at or after this RFC 3339 instant")
	_ = cmd.MarkFlagRequired("db")
	_ = cmd.MarkFlagRequired("source")

	return cmd
}

func runMerge(opts *MergeOptions, cmd *cobra.Command) error {
	var engineOpts []merge.Option
	if opts.Cutoff != "" {
		cutoff, err := time.Parse(time.RFC3339, opts.Cutoff)
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid --cutoff", err)
		}
		engineOpts = append(engineOpts, merge.WithCutoff(cutoff))
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	engine := merge.New(st, engineOpts...)

	var stats merge.Stats
	if opts.DryRun {
		stats, err = engine.DryRun(cmd.Context(), opts.Source)
	} else {
		stats, err = engine.Merge(cmd.Context(), opts.Source)
	}
	if err != nil {
		if errors.Is(err, merge.ErrRunInProgress) {
			return WrapExitError(ExitFailure, "merge refused", err)
		}
		return WrapExitError(ExitFailure, "merge failed", err)
	}

	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	if opts.Format == "json" {
		return out.Success(stats)
	}
	if opts.DryRun {
		fmt.Fprintln(cmd.OutOrStdout(), "[dry run] transaction rolled back, no changes applied")
	}
	return out.Success(stats.Report())
}
