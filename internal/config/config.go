// Package config loads runtime settings from an optional .codegraph.yml
// at the repository root, with defaults matching the pipeline's tuning.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"
)

// Config holds the tunable settings of an index run.
type Config struct {
	// Workers bounds the definition pass's worker pool. Zero means 80% of
	// the available CPUs, at least one.
	Workers int `yaml:"workers"`
	// MaxFileSize is the mmap threshold in bytes. Zero keeps the default.
	MaxFileSize int64 `yaml:"max_file_size"`
	// MaxParseBytes rejects files larger than this. Zero means unlimited.
	MaxParseBytes int64 `yaml:"max_parse_bytes"`
	// MemBudget is the heap budget in bytes for the GC nudge. Zero
	// disables it.
	MemBudget uint64 `yaml:"mem_budget"`
	// GCHeapFraction is the heap fraction of MemBudget that triggers the
	// GC nudge.
	GCHeapFraction float64 `yaml:"gc_heap_fraction"`
	// Ignore lists extra directory patterns to skip during discovery.
	Ignore []string `yaml:"ignore"`
	// DBPath overrides the default database location.
	DBPath string `yaml:"db_path"`
}

// ConfigFileName is the per-repository config file.
const ConfigFileName = ".codegraph.yml"

// Default returns a Config with every field at its default.
func Default() *Config {
	return &Config{
		GCHeapFraction: 0.80,
	}
}

// Load reads the config file at path. A missing file yields defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if cfg.GCHeapFraction <= 0 || cfg.GCHeapFraction > 1 {
		cfg.GCHeapFraction = 0.80
	}
	return cfg, nil
}

// LoadFromRepo loads .codegraph.yml from the repository root.
func LoadFromRepo(repoPath string) (*Config, error) {
	return Load(filepath.Join(repoPath, ConfigFileName))
}

// EffectiveWorkers resolves the worker count: an explicit positive value
// wins, otherwise 80% of CPUs with a floor of one.
func (c *Config) EffectiveWorkers() int {
	if c.Workers > 0 {
		return c.Workers
	}
	n := int(float64(runtime.NumCPU()) * 0.8)
	if n < 1 {
		n = 1
	}
	return n
}
