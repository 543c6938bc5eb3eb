package memguard

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestStrategySelection(t *testing.T) {
	r := NewReader(nil)
	r.MmapThreshold = 1024

	if got := r.Strategy(512); got != StrategyDirect {
		t.Errorf("below threshold: got %s, want direct", got)
	}
	if got := r.Strategy(1024); got != StrategyDirect {
		t.Errorf("at threshold: got %s, want direct", got)
	}
	if got := r.Strategy(1025); got != StrategyMmap {
		t.Errorf("just above threshold: got %s, want mmap", got)
	}
	if got := r.Strategy(4096); got != StrategyMmap {
		t.Errorf("above threshold: got %s, want mmap", got)
	}
}

func TestReadDirect(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "small.py")
	content := []byte("def f(): pass\n")
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatal(err)
	}

	r := NewReader(nil)
	src, err := r.ReadForParse(path)
	if err != nil {
		t.Fatalf("ReadForParse: %v", err)
	}
	defer src.Close()
	if !bytes.Equal(src.Data, content) {
		t.Errorf("data mismatch: %q", src.Data)
	}
}

func TestReadMmap(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "big.py")
	content := bytes.Repeat([]byte("def f(): pass\n"), 64)
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatal(err)
	}

	r := NewReader(nil)
	r.MmapThreshold = 16 // force the mmap path
	src, err := r.ReadForParse(path)
	if err != nil {
		t.Fatalf("ReadForParse: %v", err)
	}
	if !bytes.Equal(src.Data, content) {
		t.Errorf("mmapped data mismatch (%d bytes)", len(src.Data))
	}
	if err := src.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
	if src.Data != nil {
		t.Error("Data should be nil after Close")
	}
}

func TestReadEmptyFileAboveThreshold(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "empty.py")
	if err := os.WriteFile(path, nil, 0o600); err != nil {
		t.Fatal(err)
	}

	r := NewReader(nil)
	r.MmapThreshold = -1 // every file, even an empty one, takes the mmap branch
	src, err := r.ReadForParse(path)
	if err != nil {
		t.Fatalf("ReadForParse: %v", err)
	}
	defer src.Close()
	if len(src.Data) != 0 {
		t.Errorf("expected empty data, got %d bytes", len(src.Data))
	}
}

func TestHardCeiling(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "huge.py")
	if err := os.WriteFile(path, bytes.Repeat([]byte("x"), 128), 0o600); err != nil {
		t.Fatal(err)
	}

	r := NewReader(nil)
	r.MaxParseBytes = 64
	_, err := r.ReadForParse(path)
	if !errors.Is(err, ErrMemoryLimit) {
		t.Fatalf("expected ErrMemoryLimit, got %v", err)
	}
}

func TestReadMissingFile(t *testing.T) {
	r := NewReader(nil)
	if _, err := r.ReadForParse(filepath.Join(t.TempDir(), "missing.py")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestMaybeGCDisabledWithoutBudget(t *testing.T) {
	r := NewReader(nil)
	if r.MaybeGC() {
		t.Error("MaybeGC should be a no-op without a budget")
	}
}
