package pipeline

import (
	"context"
	"fmt"
	"os"
	"os/exec"
)

// ExecStep runs an external collaborator (external-ID resolution, metadata
// enrichment) as a subprocess.
//
// Configuration isolation: the subprocess receives exactly the argv and env
// declared in its config. The orchestrator's own command line is never
// forwarded, so a step cannot accidentally interpret flags meant for the
// pipeline.
type ExecStep struct {
	StepName string
	Command  string
	Args     []string
	Env      map[string]string
	Dir      string
}

// NewExecStep builds an ExecStep from its declared config.
func NewExecStep(cfg ExternalConfig) *ExecStep {
	return &ExecStep{
		StepName: cfg.Name,
		Command:  cfg.Command,
		Args:     cfg.Args,
		Env:      cfg.Env,
		Dir:      cfg.Dir,
	}
}

func (s *ExecStep) Name() string {
	return s.StepName
}

func (s *ExecStep) Run(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, s.Command, s.Args...)
	cmd.Dir = s.Dir
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	env := os.Environ()
	for k, v := range s.Env {
		env = append(env, k+"="+v)
	}
	cmd.Env = env

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("external step %s: %w", s.StepName, err)
	}
	return nil
}
