package pipeline

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the YAML pipeline configuration. Flags and environment
// variables override it at the CLI layer.
type Config struct {
	// Database is the path to the SQLite database.
	Database string `yaml:"database"`
	// DataDir holds the scraped snapshot files, one per source,
	// named <source>_screenings_latest.json.
	DataDir string `yaml:"data_dir"`
	// CatalogDir holds the CUE source catalog.
	CatalogDir string `yaml:"catalog_dir"`
	// Sources lists the source ids to process. Empty means every source
	// declared in the catalog.
	Sources []string `yaml:"sources"`
	// External declares the out-of-process enrichment steps (external-ID
	// resolution, metadata enrichment). Each runs with exactly the argv
	// declared here.
	External []ExternalConfig `yaml:"external_steps"`
}

// ExternalConfig is the typed configuration of one external step.
type ExternalConfig struct {
	Name    string            `yaml:"name"`
	Command string            `yaml:"command"`
	Args    []string          `yaml:"args"`
	Env     map[string]string `yaml:"env"`
	Dir     string            `yaml:"dir"`
}

// LoadConfig reads and validates a YAML config file. Unknown keys are
// rejected so typos fail loudly.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}

	if cfg.Database == "" {
		return Config{}, fmt.Errorf("config %s: database is required", path)
	}
	if cfg.CatalogDir == "" {
		return Config{}, fmt.Errorf("config %s: catalog_dir is required", path)
	}
	for i, ext := range cfg.External {
		if ext.Name == "" || ext.Command == "" {
			return Config{}, fmt.Errorf("config %s: external_steps[%d]: name and command are required", path, i)
		}
	}
	return cfg, nil
}
