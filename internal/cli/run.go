package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/filmrow/marquee/internal/catalog"
	"github.com/filmrow/marquee/internal/merge"
	"github.com/filmrow/marquee/internal/pipeline"
	"github.com/filmrow/marquee/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Config      string
	Database    string
	DataDir     string
	Steps       []string
	Merge       bool
	DryRun      bool
	StopOnError bool
	Sources     []string
}

// NewRunCommand creates the run command: the pipeline orchestrator.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the ingestion pipeline",
		Long: `Run the ingestion pipeline: load scraped snapshots into staging, invoke
the configured external enrichment steps, and - only with --merge or an
explicit --steps selection - promote staging to the live table.

The merge mutates the authoritative screening table, so it never runs by
default.

Examples:
  marquee run --config marquee.yaml
  marquee run --merge
  marquee run --steps load,merge --source viff
  marquee run --stop-on-error --merge`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Config, "config", "marquee.yaml", "path to pipeline config")
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (overrides config)")
	cmd.Flags().StringVar(&opts.DataDir, "data-dir", "", "snapshot directory (overrides config)")
	cmd.Flags().StringSliceVar(&opts.Steps, "steps", nil, "run only the named steps (comma list)")
	cmd.Flags().BoolVar(&opts.Merge, "merge", false, "additionally run the merge step")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "run merges inside a rolled-back transaction")
	cmd.Flags().BoolVar(&opts.StopOnError, "stop-on-error", false, "abort remaining steps on first failure")
	cmd.Flags().StringSliceVar(&opts.Sources, "source", nil, "restrict to the named sources")

	return cmd
}

func runPipeline(opts *RunOptions, cmd *cobra.Command) error {
	cfg, err := pipeline.LoadConfig(opts.Config)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}

	// Precedence: flag > environment > config file.
	if env := os.Getenv("MARQUEE_DB"); env != "" {
		cfg.Database = env
	}
	if opts.Database != "" {
		cfg.Database = opts.Database
	}
	if opts.DataDir != "" {
		cfg.DataDir = opts.DataDir
	}

	cat, err := catalog.Load(cfg.CatalogDir)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load source catalog", err)
	}

	sources := opts.Sources
	if len(sources) == 0 {
		sources = cfg.Sources
	}
	if len(sources) == 0 {
		sources = cat.IDs()
	}

	st, err := store.Open(cfg.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	steps, err := buildSteps(cfg, cat, st, sources, opts)
	if err != nil {
		return err
	}
	if len(steps) == 0 {
		return NewExitError(ExitCommandError, "no steps selected")
	}

	runner := &pipeline.Runner{Steps: steps, StopOnError: opts.StopOnError}
	results, runErr := runner.Run(cmd.Context())

	fmt.Fprintln(cmd.OutOrStdout(), "pipeline results:")
	fmt.Fprint(cmd.OutOrStdout(), pipeline.Summary(results))

	if runErr != nil {
		return WrapExitError(ExitFailure, "pipeline failed", runErr)
	}
	return nil
}

// buildSteps assembles the step list in the fixed default order: load,
// external enrichment, merge. --steps filters the list; merge is included
// only with --merge or when named explicitly.
func buildSteps(cfg pipeline.Config, cat *catalog.Catalog, st *store.Store, sources []string, opts *RunOptions) ([]pipeline.Step, error) {
	selected := func(kind, full string) bool {
		if len(opts.Steps) == 0 {
			return true
		}
		for _, want := range opts.Steps {
			want = strings.TrimSpace(want)
			if want == kind || want == full {
				return true
			}
		}
		return false
	}
	mergeWanted := opts.Merge || selectedExplicitly(opts.Steps, "merge")

	var steps []pipeline.Step

	for _, id := range sources {
		src, err := cat.Get(id)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "invalid source", err)
		}
		if selected("load", "load:"+id) {
			steps = append(steps, &pipeline.LoadStep{
				Source: src,
				Path:   filepath.Join(cfg.DataDir, id+"_screenings_latest.json"),
				Store:  st,
			})
		}
	}

	for _, ext := range cfg.External {
		if selected(ext.Name, ext.Name) {
			steps = append(steps, pipeline.NewExecStep(ext))
		}
	}

	if mergeWanted {
		engine := merge.New(st)
		for _, id := range sources {
			if selected("merge", "merge:"+id) {
				steps = append(steps, &pipeline.MergeStep{
					Source: id,
					Engine: engine,
					DryRun: opts.DryRun,
				})
			}
		}
	}

	return steps, nil
}

func selectedExplicitly(steps []string, kind string) bool {
	for _, s := range steps {
		s = strings.TrimSpace(s)
		if s == kind || strings.HasPrefix(s, kind+":") {
			return true
		}
	}
	return false
}
