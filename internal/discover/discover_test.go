package discover

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/codegraphhq/codegraph/internal/lang"
)

func writeFile(t *testing.T, dir, rel, content string) {
	t.Helper()
	path := filepath.Join(dir, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
}

func TestDiscoverBasic(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "main.go", "package main\n")
	writeFile(t, dir, "app.py", "def main(): pass\n")
	writeFile(t, dir, "README.md", "# readme\n")

	files, err := Discover(context.Background(), dir, nil)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("expected 2 files, got %d", len(files))
	}
	for _, f := range files {
		if f.Path == "" || f.RelPath == "" || f.Language == "" {
			t.Errorf("incomplete FileInfo: %+v", f)
		}
	}
}

func TestDiscoverPrunesIgnoredDirs(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "src/app.py", "def main(): pass\n")
	writeFile(t, dir, "node_modules/pkg/index.js", "module.exports = {}\n")
	writeFile(t, dir, ".git/hooks/pre-commit.py", "pass\n")

	files, err := Discover(context.Background(), dir, nil)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(files) != 1 {
		t.Fatalf("expected 1 file, got %d: %+v", len(files), files)
	}
	if files[0].RelPath != "src/app.py" {
		t.Errorf("unexpected file %s", files[0].RelPath)
	}
}

func TestDiscoverIgnoreFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ".cgignore", "# comment\ngenerated\n")
	writeFile(t, dir, "src/app.py", "def main(): pass\n")
	writeFile(t, dir, "generated/gen.py", "def gen(): pass\n")

	files, err := Discover(context.Background(), dir, nil)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(files) != 1 || files[0].RelPath != "src/app.py" {
		t.Fatalf("expected only src/app.py, got %+v", files)
	}
}

func TestDiscoverExtraIgnore(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "src/app.py", "def main(): pass\n")
	writeFile(t, dir, "proto/gen.py", "def gen(): pass\n")

	files, err := Discover(context.Background(), dir, &Options{ExtraIgnore: []string{"proto"}})
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(files) != 1 || files[0].RelPath != "src/app.py" {
		t.Fatalf("expected only src/app.py, got %+v", files)
	}
}

func TestDiscoverLanguageDetection(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.rs", "fn main() {}\n")

	files, err := Discover(context.Background(), dir, nil)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(files) != 1 || files[0].Language != lang.Rust {
		t.Fatalf("expected one Rust file, got %+v", files)
	}
}

func TestDiscoverCancellation(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "main.go", "package main\n")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := Discover(ctx, dir, nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
