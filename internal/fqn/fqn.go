// Package fqn derives dotted qualified names for graph entities.
//
// The canonical shape is <project>.<rel_path_parts_dotted>.<name>, e.g.
// myproject.services.auth.login for function login in services/auth.py.
package fqn

import (
	"path/filepath"
	"strings"

	"github.com/codegraphhq/codegraph/internal/lang"
)

// Compute returns the qualified name for an entity named name defined in
// the file at relPath. Module-scope file basenames (Python __init__,
// JS/TS index, Lua init) collapse into the containing directory so the
// package and its entry file share one module qualified name.
func Compute(project, relPath, name string) string {
	ext := filepath.Ext(relPath)
	trimmed := strings.TrimSuffix(relPath, ext)
	parts := strings.Split(filepath.ToSlash(trimmed), "/")

	if len(parts) > 0 {
		last := parts[len(parts)-1]
		if collapses(ext, last) {
			parts = parts[:len(parts)-1]
		}
	}

	all := append([]string{project}, parts...)
	if name != "" {
		all = append(all, name)
	}
	return strings.Join(all, ".")
}

func collapses(ext, base string) bool {
	spec := lang.ForExtension(ext)
	if spec == nil {
		return false
	}
	for _, scoped := range spec.ModuleScopeNames {
		if base == scoped {
			return true
		}
	}
	return false
}

// ModuleQN returns the qualified name of the module for a source file.
func ModuleQN(project, relPath string) string {
	return Compute(project, relPath, "")
}

// FolderQN returns the qualified name of a directory under the project root.
func FolderQN(project, relDir string) string {
	parts := strings.Split(filepath.ToSlash(relDir), "/")
	all := append([]string{project}, parts...)
	return strings.Join(all, ".")
}

// Parent returns the qualified name with its last segment removed, or ""
// when qn has a single segment.
func Parent(qn string) string {
	idx := strings.LastIndex(qn, ".")
	if idx < 0 {
		return ""
	}
	return qn[:idx]
}
