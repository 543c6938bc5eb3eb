// Package discover walks a repository and collects the source files the
// pipeline can parse, pruning ignored directories early.
package discover

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/codegraphhq/codegraph/internal/lang"
)

// IgnoreDirs are directory names skipped during discovery.
var IgnoreDirs = map[string]bool{
	".cache": true, ".eggs": true, ".env": true, ".git": true,
	".gradle": true, ".hg": true, ".idea": true, ".mypy_cache": true,
	".nox": true, ".npm": true, ".nyc_output": true, ".pnpm-store": true,
	".pytest_cache": true, ".ruff_cache": true, ".svn": true,
	".tox": true, ".venv": true, ".vs": true, ".vscode": true,
	".yarn": true, "__pycache__": true, "bin": true,
	"bower_components": true, "build": true, "coverage": true,
	"dist": true, "env": true, "htmlcov": true, "node_modules": true,
	"obj": true, "out": true, "Pods": true, "site-packages": true,
	"target": true, "temp": true, "tmp": true, "vendor": true,
	"venv": true,
}

// IgnoreSuffixes are file suffixes skipped during discovery.
var IgnoreSuffixes = map[string]bool{
	".tmp": true, "~": true, ".pyc": true, ".pyo": true,
	".o": true, ".a": true, ".so": true, ".dll": true, ".class": true,
}

// FileInfo describes one discovered source file.
type FileInfo struct {
	Path     string        // absolute path
	RelPath  string        // slash-separated path relative to the repo root
	Language lang.Language // detected from the extension
}

// Options configures discovery.
type Options struct {
	IgnoreFile  string   // explicit .cgignore path; defaults to <repo>/.cgignore
	ExtraIgnore []string // additional directory patterns (from config)
}

func shouldSkipDir(name, rel string, extraIgnore []string) bool {
	if IgnoreDirs[name] {
		return true
	}
	for _, pattern := range extraIgnore {
		if matched, _ := filepath.Match(pattern, name); matched {
			return true
		}
		if matched, _ := filepath.Match(pattern, rel); matched {
			return true
		}
	}
	return false
}

// Discover walks repoPath and returns every parsable source file. Ignored
// directories are pruned, not descended into.
func Discover(ctx context.Context, repoPath string, opts *Options) ([]FileInfo, error) {
	repoPath, err := filepath.Abs(repoPath)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var extraIgnore []string
	ignPath := filepath.Join(repoPath, ".cgignore")
	if opts != nil && opts.IgnoreFile != "" {
		ignPath = opts.IgnoreFile
	}
	extraIgnore, _ = loadIgnoreFile(ignPath)
	if opts != nil {
		extraIgnore = append(extraIgnore, opts.ExtraIgnore...)
	}

	var files []FileInfo

	err = filepath.Walk(repoPath, func(path string, info os.FileInfo, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if walkErr != nil {
			// unreadable entry, skip the subtree and keep walking
			return filepath.SkipDir
		}

		rel, _ := filepath.Rel(repoPath, path)

		if info.IsDir() {
			if rel != "." && shouldSkipDir(info.Name(), rel, extraIgnore) {
				return filepath.SkipDir
			}
			return nil
		}

		for suffix := range IgnoreSuffixes {
			if strings.HasSuffix(path, suffix) {
				return nil
			}
		}

		if l, ok := lang.LanguageForExtension(filepath.Ext(path)); ok {
			files = append(files, FileInfo{
				Path:     path,
				RelPath:  filepath.ToSlash(rel),
				Language: l,
			})
		}
		return nil
	})

	return files, err
}

func loadIgnoreFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var patterns []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" && !strings.HasPrefix(line, "#") {
			patterns = append(patterns, line)
		}
	}
	return patterns, scanner.Err()
}
