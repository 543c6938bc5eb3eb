package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Workers != 0 {
		t.Errorf("Workers = %d, want 0", cfg.Workers)
	}
	if cfg.GCHeapFraction != 0.80 {
		t.Errorf("GCHeapFraction = %v, want 0.80", cfg.GCHeapFraction)
	}
}

func TestLoadFromRepo(t *testing.T) {
	dir := t.TempDir()
	content := "workers: 4\nmax_file_size: 1048576\nignore:\n  - generated\n"
	if err := os.WriteFile(filepath.Join(dir, ConfigFileName), []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromRepo(dir)
	if err != nil {
		t.Fatalf("LoadFromRepo: %v", err)
	}
	if cfg.Workers != 4 {
		t.Errorf("Workers = %d, want 4", cfg.Workers)
	}
	if cfg.MaxFileSize != 1048576 {
		t.Errorf("MaxFileSize = %d", cfg.MaxFileSize)
	}
	if len(cfg.Ignore) != 1 || cfg.Ignore[0] != "generated" {
		t.Errorf("Ignore = %v", cfg.Ignore)
	}
}

func TestLoadRejectsBadYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ConfigFileName)
	if err := os.WriteFile(path, []byte("workers: [not a number\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestEffectiveWorkers(t *testing.T) {
	cfg := Default()
	if got := cfg.EffectiveWorkers(); got < 1 {
		t.Errorf("EffectiveWorkers = %d, want >= 1", got)
	}
	cfg.Workers = 3
	if got := cfg.EffectiveWorkers(); got != 3 {
		t.Errorf("EffectiveWorkers = %d, want 3", got)
	}
}

func TestGCHeapFractionClamped(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ConfigFileName)
	if err := os.WriteFile(path, []byte("gc_heap_fraction: 7.5\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.GCHeapFraction != 0.80 {
		t.Errorf("GCHeapFraction = %v, want clamp to 0.80", cfg.GCHeapFraction)
	}
}
