package pipeline

import (
	"context"
	"log/slog"

	"github.com/filmrow/marquee/internal/merge"
)

// MergeStep promotes one source's staging snapshot to the live table.
// It mutates the authoritative table, so the orchestrator only includes it
// on explicit opt-in.
type MergeStep struct {
	Source string
	Engine *merge.Engine
	DryRun bool

	// Stats receives the merge outcome when non-nil, so the CLI can render
	// the report without reaching into the step.
	Stats func(merge.Stats)
}

func (s *MergeStep) Name() string {
	return "merge:" + s.Source
}

func (s *MergeStep) Run(ctx context.Context) error {
	var (
		stats merge.Stats
		err   error
	)
	if s.DryRun {
		stats, err = s.Engine.DryRun(ctx, s.Source)
	} else {
		stats, err = s.Engine.Merge(ctx, s.Source)
	}
	if err != nil {
		return err
	}

	slog.Info("merge finished", "source", s.Source, "run_id", stats.RunID,
		"rows_in", stats.RowsIn, "inserted", stats.RowsInserted,
		"updated", stats.RowsUpdated, "deactivated", stats.RowsDeactivated,
		"dry_run", s.DryRun)
	if s.Stats != nil {
		s.Stats(stats)
	}
	return nil
}
