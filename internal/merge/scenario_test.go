package merge

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/filmrow/marquee/internal/screening"
)

// Scenario fixtures drive multi-run merge sequences from YAML: each run
// stages a snapshot and asserts the exact counters the merge reports.

type scenarioFile struct {
	Scenarios []scenario `yaml:"scenarios"`
}

type scenario struct {
	Name   string        `yaml:"name"`
	Source string        `yaml:"source"`
	Runs   []scenarioRun `yaml:"runs"`
}

type scenarioRun struct {
	Staging []scenarioRecord `yaml:"staging"`
	Expect  scenarioExpect   `yaml:"expect"`
}

type scenarioRecord struct {
	UID     string    `yaml:"uid"`
	Start   time.Time `yaml:"start"`
	Runtime *int64    `yaml:"runtime"`
	Notes   *string   `yaml:"notes"`
}

type scenarioExpect struct {
	RowsIn      int `yaml:"rows_in"`
	Inserted    int `yaml:"inserted"`
	Updated     int `yaml:"updated"`
	Deactivated int `yaml:"deactivated"`
}

func loadScenarios(t *testing.T) []scenario {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", "scenarios.yaml"))
	require.NoError(t, err)

	var f scenarioFile
	require.NoError(t, yaml.Unmarshal(data, &f))
	require.NotEmpty(t, f.Scenarios)
	return f.Scenarios
}

func (sr scenarioRecord) toRecord(env *mergeEnv, source string) screening.Record {
	end := sr.Start.Add(2 * time.Hour)
	if sr.Runtime != nil {
		end = sr.Start.Add(time.Duration(*sr.Runtime) * time.Minute)
	}
	return screening.Record{
		FilmID:     env.filmID,
		CinemaID:   env.cinemaID,
		StartAtUTC: sr.Start,
		EndAtUTC:   end,
		RuntimeMin: sr.Runtime,
		TZ:         "America/Vancouver",
		Source:     source,
		SourceUID:  sr.UID,
		SourceURL:  "https://example.org/" + sr.UID,
		Notes:      sr.Notes,
	}
}

func TestMergeScenarios(t *testing.T) {
	for _, sc := range loadScenarios(t) {
		t.Run(sc.Name, func(t *testing.T) {
			env := newMergeEnv(t)
			ctx := context.Background()
			eng := env.engine()

			for i, run := range sc.Runs {
				records := make([]screening.Record, len(run.Staging))
				for j, sr := range run.Staging {
					records[j] = sr.toRecord(env, sc.Source)
				}
				env.stage(sc.Source, records...)

				stats, err := eng.Merge(ctx, sc.Source)
				require.NoError(t, err, "run %d", i+1)

				assert.Equal(t, run.Expect.RowsIn, stats.RowsIn, "run %d rows_in", i+1)
				assert.Equal(t, run.Expect.Inserted, stats.RowsInserted, "run %d inserted", i+1)
				assert.Equal(t, run.Expect.Updated, stats.RowsUpdated, "run %d updated", i+1)
				assert.Equal(t, run.Expect.Deactivated, stats.RowsDeactivated, "run %d deactivated", i+1)

				env.advance(time.Hour)
			}
		})
	}
}
