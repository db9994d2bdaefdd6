// Package catalog loads the declarative source catalog: one entry per
// scraped cinema website, declaring its id, display name, IANA timezone and
// venue website. Sources are defined in CUE files so malformed entries fail
// at load time rather than mid-pipeline.
package catalog

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
)

// ErrSourceUnknown is returned when a source id is not declared in the
// catalog.
var ErrSourceUnknown = errors.New("unknown source")

// Source describes one scraped cinema website.
type Source struct {
	ID       string `json:"-"`
	Name     string `json:"name"`
	Timezone string `json:"timezone"`
	Website  string `json:"website,omitempty"`
}

// Location resolves the source's IANA timezone. Load already verified the
// name, so failure here indicates a changed tz database.
func (s Source) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return nil, fmt.Errorf("source %s: timezone %q: %w", s.ID, s.Timezone, err)
	}
	return loc, nil
}

// Catalog is the loaded, validated set of sources.
type Catalog struct {
	sources map[string]Source
}

// Load reads every CUE file in dir and decodes the `source` struct into a
// Catalog. Each entry must carry a non-empty name and a resolvable IANA
// timezone.
func Load(dir string) (*Catalog, error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("catalog directory not found: %s", dir)
	}
	if err != nil {
		return nil, fmt.Errorf("error accessing catalog directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("not a directory: %s", dir)
	}

	cueFiles, err := findCUEFiles(dir)
	if err != nil {
		return nil, fmt.Errorf("error scanning catalog directory: %w", err)
	}
	if len(cueFiles) == 0 {
		return nil, fmt.Errorf("no CUE files found in %s", dir)
	}

	ctx := cuecontext.New()
	cfg := &load.Config{Dir: dir}
	instances := load.Instances([]string{"."}, cfg)
	if len(instances) == 0 {
		return nil, errors.New("no CUE instances loaded")
	}

	inst := instances[0]
	if inst.Err != nil {
		return nil, fmt.Errorf("loading CUE files: %w", inst.Err)
	}

	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, fmt.Errorf("building CUE value: %w", err)
	}

	sourcesVal := value.LookupPath(cue.ParsePath("source"))
	if !sourcesVal.Exists() {
		return nil, errors.New("catalog declares no `source` entries")
	}

	iter, err := sourcesVal.Fields()
	if err != nil {
		return nil, fmt.Errorf("iterating sources: %w", err)
	}

	cat := &Catalog{sources: make(map[string]Source)}
	for iter.Next() {
		id := iter.Label()

		var src Source
		if err := iter.Value().Decode(&src); err != nil {
			return nil, fmt.Errorf("source %s: %w", id, err)
		}
		src.ID = id

		if strings.TrimSpace(src.Name) == "" {
			return nil, fmt.Errorf("source %s: name is required", id)
		}
		if _, err := time.LoadLocation(src.Timezone); err != nil {
			return nil, fmt.Errorf("source %s: invalid timezone %q", id, src.Timezone)
		}

		cat.sources[id] = src
	}

	if len(cat.sources) == 0 {
		return nil, errors.New("catalog declares no sources")
	}
	return cat, nil
}

// Get returns a declared source or ErrSourceUnknown.
func (c *Catalog) Get(id string) (Source, error) {
	src, ok := c.sources[id]
	if !ok {
		return Source{}, fmt.Errorf("%w: %s", ErrSourceUnknown, id)
	}
	return src, nil
}

// IDs returns the declared source ids in sorted order.
func (c *Catalog) IDs() []string {
	ids := make([]string, 0, len(c.sources))
	for id := range c.sources {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func findCUEFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if filepath.Ext(e.Name()) == ".cue" {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	return files, nil
}
