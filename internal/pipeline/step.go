// Package pipeline sequences the ingestion steps: loading scraped snapshots
// into staging, invoking external enrichment collaborators, and promoting
// staging to live via the merge engine.
//
// Each step carries its own typed configuration and sees nothing else - in
// particular, a step never receives the orchestrator's command line. External
// steps run with exactly the argv their config declares.
package pipeline

import (
	"context"
	"time"
)

// Step is one named unit of pipeline work.
type Step interface {
	Name() string
	Run(ctx context.Context) error
}

// Result records the outcome of one executed step.
type Result struct {
	Step     string
	Err      error
	Duration time.Duration
	Skipped  bool
}
