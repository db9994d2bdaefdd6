package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// ErrStepsFailed is returned by Runner.Run when at least one executed step
// failed. Per-step errors are in the results.
var ErrStepsFailed = errors.New("one or more pipeline steps failed")

// Runner executes steps in order. Failures are isolated per step: later
// steps still run unless StopOnError is set, in which case the remaining
// steps are recorded as skipped.
type Runner struct {
	Steps       []Step
	StopOnError bool
}

// Run executes the configured steps sequentially. The returned results cover
// every configured step, including skipped ones. The error is non-nil when
// any executed step failed; nothing is swallowed silently.
func (r *Runner) Run(ctx context.Context) ([]Result, error) {
	results := make([]Result, 0, len(r.Steps))
	failed := false
	halted := false

	for _, step := range r.Steps {
		if halted {
			results = append(results, Result{Step: step.Name(), Skipped: true})
			continue
		}

		slog.Info("step starting", "step", step.Name())
		start := time.Now()
		err := step.Run(ctx)
		res := Result{Step: step.Name(), Err: err, Duration: time.Since(start)}
		results = append(results, res)

		if err != nil {
			failed = true
			slog.Error("step failed", "step", step.Name(), "duration", res.Duration, "error", err)
			if r.StopOnError {
				halted = true
			}
			continue
		}
		slog.Info("step finished", "step", step.Name(), "duration", res.Duration)
	}

	if failed {
		return results, ErrStepsFailed
	}
	return results, nil
}

// Summary renders one line per result for the CLI.
func Summary(results []Result) string {
	out := ""
	for _, res := range results {
		switch {
		case res.Skipped:
			out += fmt.Sprintf("  %-24s skipped\n", res.Step)
		case res.Err != nil:
			out += fmt.Sprintf("  %-24s failed: %v\n", res.Step, res.Err)
		default:
			out += fmt.Sprintf("  %-24s ok (%s)\n", res.Step, res.Duration.Round(time.Millisecond))
		}
	}
	return out
}
