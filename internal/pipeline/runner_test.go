package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStep struct {
	name string
	err  error
	runs *[]string
}

func (s fakeStep) Name() string { return s.name }

func (s fakeStep) Run(ctx context.Context) error {
	*s.runs = append(*s.runs, s.name)
	return s.err
}

func TestRunnerExecutesInOrder(t *testing.T) {
	var runs []string
	r := &Runner{Steps: []Step{
		fakeStep{name: "load:viff", runs: &runs},
		fakeStep{name: "load:rio", runs: &runs},
		fakeStep{name: "merge:viff", runs: &runs},
	}}

	results, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"load:viff", "load:rio", "merge:viff"}, runs)
	require.Len(t, results, 3)
	for _, res := range results {
		assert.NoError(t, res.Err)
		assert.False(t, res.Skipped)
	}
}

func TestRunnerIsolatesFailures(t *testing.T) {
	var runs []string
	boom := errors.New("scrape failed")
	r := &Runner{Steps: []Step{
		fakeStep{name: "load:viff", err: boom, runs: &runs},
		fakeStep{name: "load:rio", runs: &runs},
	}}

	results, err := r.Run(context.Background())
	require.ErrorIs(t, err, ErrStepsFailed)

	assert.Equal(t, []string{"load:viff", "load:rio"}, runs,
		"a failed step must not block later steps")
	require.Len(t, results, 2)
	assert.ErrorIs(t, results[0].Err, boom)
	assert.NoError(t, results[1].Err)
}

func TestRunnerStopOnError(t *testing.T) {
	var runs []string
	boom := errors.New("scrape failed")
	r := &Runner{
		Steps: []Step{
			fakeStep{name: "load:viff", err: boom, runs: &runs},
			fakeStep{name: "load:rio", runs: &runs},
			fakeStep{name: "merge:viff", runs: &runs},
		},
		StopOnError: true,
	}

	results, err := r.Run(context.Background())
	require.ErrorIs(t, err, ErrStepsFailed)

	assert.Equal(t, []string{"load:viff"}, runs)
	require.Len(t, results, 3, "skipped steps are still recorded")
	assert.True(t, results[1].Skipped)
	assert.True(t, results[2].Skipped)
}

func TestSummary(t *testing.T) {
	results := []Result{
		{Step: "load:viff"},
		{Step: "load:rio", Err: errors.New("scrape failed")},
		{Step: "merge:viff", Skipped: true},
	}
	out := Summary(results)
	assert.Contains(t, out, "load:viff")
	assert.Contains(t, out, "ok")
	assert.Contains(t, out, "failed: scrape failed")
	assert.Contains(t, out, "skipped")
}
