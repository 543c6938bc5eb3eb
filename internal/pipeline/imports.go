package pipeline

import (
	"path/filepath"
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/codegraphhq/codegraph/internal/fqn"
	"github.com/codegraphhq/codegraph/internal/lang"
	"github.com/codegraphhq/codegraph/internal/parser"
)

// parseImports builds the local-name -> resolved-QN map for one file.
// Only Go and Python have extractors; other languages return nil and their
// modules simply contribute no IMPORTS edges.
func parseImports(root *tree_sitter.Node, source []byte, language lang.Language, projectName, relPath string) map[string]string {
	switch language {
	case lang.Go:
		return parseGoImports(root, source, projectName)
	case lang.Python:
		return parsePythonImports(root, source, projectName, relPath)
	default:
		return nil
	}
}

// parseGoImports walks import_declaration nodes. Each import_spec carries
// a path string and an optional alias; blank and dot imports keep the
// path-derived local name.
func parseGoImports(root *tree_sitter.Node, source []byte, projectName string) map[string]string {
	imports := make(map[string]string)
	parser.Walk(root, func(node *tree_sitter.Node) bool {
		if node.Kind() != "import_declaration" {
			return true
		}
		parser.Walk(node, func(spec *tree_sitter.Node) bool {
			if spec.Kind() != "import_spec" {
				return true
			}
			pathNode := spec.ChildByFieldName("path")
			if pathNode == nil {
				return false
			}
			importPath := stripQuotes(parser.NodeText(pathNode, source))
			if importPath == "" {
				return false
			}
			localName := lastPathSegment(importPath)
			if nameNode := spec.ChildByFieldName("name"); nameNode != nil {
				alias := parser.NodeText(nameNode, source)
				if alias != "" && alias != "." && alias != "_" {
					localName = alias
				}
			}
			imports[localName] = resolveGoImportPath(importPath, projectName)
			return false
		})
		return false
	})
	return imports
}

// resolveGoImportPath maps a Go import path onto the project QN space.
// "github.com/org/proj/pkg/foo" becomes "proj.pkg.foo" when "proj" matches
// the project name; external paths keep their segments joined with dots.
func resolveGoImportPath(importPath, projectName string) string {
	parts := strings.Split(importPath, "/")
	for i, part := range parts {
		if part == projectName {
			return strings.Join(parts[i:], ".")
		}
	}
	return strings.Join(parts, ".")
}

// parsePythonImports handles import_statement and import_from_statement
// nodes, including aliases and leading-dot relative imports.
func parsePythonImports(root *tree_sitter.Node, source []byte, projectName, relPath string) map[string]string {
	imports := make(map[string]string)
	parser.Walk(root, func(node *tree_sitter.Node) bool {
		switch node.Kind() {
		case "import_statement":
			collectPythonImport(node, source, projectName, imports)
			return false
		case "import_from_statement":
			collectPythonFromImport(node, source, projectName, relPath, imports)
			return false
		}
		return true
	})
	return imports
}

func collectPythonImport(node *tree_sitter.Node, source []byte, projectName string, imports map[string]string) {
	for i := uint(0); i < node.NamedChildCount(); i++ {
		child := node.NamedChild(i)
		if child == nil {
			continue
		}
		switch child.Kind() {
		case "dotted_name":
			name := parser.NodeText(child, source)
			imports[lastDotSegment(name)] = resolvePythonModule(name, projectName)
		case "aliased_import":
			nameNode := child.ChildByFieldName("name")
			if nameNode == nil {
				continue
			}
			name := parser.NodeText(nameNode, source)
			localName := lastDotSegment(name)
			if aliasNode := child.ChildByFieldName("alias"); aliasNode != nil {
				localName = parser.NodeText(aliasNode, source)
			}
			imports[localName] = resolvePythonModule(name, projectName)
		}
	}
}

func collectPythonFromImport(node *tree_sitter.Node, source []byte, projectName, relPath string, imports map[string]string) {
	moduleNode := node.ChildByFieldName("module_name")
	var modulePath string
	relative := false
	if moduleNode != nil {
		modulePath = parser.NodeText(moduleNode, source)
		relative = strings.HasPrefix(modulePath, ".")
	} else if strings.HasPrefix(parser.NodeText(node, source), "from .") {
		// "from . import X" has no module_name field.
		relative = true
		modulePath = "."
	}

	var base string
	if relative {
		base = resolveRelativePythonImport(modulePath, relPath, projectName)
	} else {
		base = resolvePythonModule(modulePath, projectName)
	}

	record := func(name, localName string) {
		if base != "" {
			imports[localName] = base + "." + name
		} else {
			imports[localName] = name
		}
	}

	for i := uint(0); i < node.NamedChildCount(); i++ {
		child := node.NamedChild(i)
		if child == nil {
			continue
		}
		switch child.Kind() {
		case "dotted_name":
			name := parser.NodeText(child, source)
			if name == modulePath {
				// The module_name itself shows up as a dotted_name child.
				continue
			}
			record(name, lastDotSegment(name))
		case "aliased_import":
			nameNode := child.ChildByFieldName("name")
			if nameNode == nil {
				continue
			}
			name := parser.NodeText(nameNode, source)
			localName := lastDotSegment(name)
			if aliasNode := child.ChildByFieldName("alias"); aliasNode != nil {
				localName = parser.NodeText(aliasNode, source)
			}
			record(name, localName)
		}
	}
}

// resolvePythonModule prefixes an absolute module path with the project
// name: "foo.bar" -> "proj.foo.bar".
func resolvePythonModule(modulePath, projectName string) string {
	if modulePath == "" {
		return projectName
	}
	return projectName + "." + modulePath
}

// resolveRelativePythonImport resolves "from ..utils import X" against the
// importing file's directory. One dot anchors at the file's own package;
// each further dot steps a directory up.
func resolveRelativePythonImport(modulePath, relPath, projectName string) string {
	dots := 0
	for _, ch := range modulePath {
		if ch != '.' {
			break
		}
		dots++
	}
	remainder := strings.TrimLeft(modulePath, ".")

	dir := filepath.Dir(relPath)
	for i := 1; i < dots; i++ {
		dir = filepath.Dir(dir)
	}

	base := projectName
	if dir != "." && dir != "" {
		base = fqn.FolderQN(projectName, dir)
	}
	if remainder != "" {
		return base + "." + remainder
	}
	return base
}

func stripQuotes(s string) string {
	if len(s) >= 2 {
		first, last := s[0], s[len(s)-1]
		if (first == '"' && last == '"') || (first == '\'' && last == '\'') || (first == '`' && last == '`') {
			return s[1 : len(s)-1]
		}
	}
	return s
}

func lastPathSegment(path string) string {
	parts := strings.Split(path, "/")
	return parts[len(parts)-1]
}

func lastDotSegment(name string) string {
	parts := strings.Split(name, ".")
	return parts[len(parts)-1]
}
