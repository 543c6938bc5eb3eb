package pipeline

import (
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/codegraphhq/codegraph/internal/fqn"
	"github.com/codegraphhq/codegraph/internal/lang"
	"github.com/codegraphhq/codegraph/internal/parser"
)

// funcNameNode locates the name node of a function-like declaration.
// Most grammars expose a "name" field; C-family grammars bury the name
// inside a declarator chain, which is followed until an identifier-like
// node appears.
func funcNameNode(node *tree_sitter.Node) *tree_sitter.Node {
	if name := node.ChildByFieldName("name"); name != nil {
		return name
	}
	decl := node.ChildByFieldName("declarator")
	for decl != nil {
		kind := decl.Kind()
		if kind == "identifier" || kind == "field_identifier" ||
			kind == "qualified_identifier" || kind == "destructor_name" ||
			kind == "operator_name" {
			return decl
		}
		next := decl.ChildByFieldName("declarator")
		if next == nil {
			next = decl.ChildByFieldName("name")
		}
		decl = next
	}
	return nil
}

// computeFuncQN builds the qualified name of a function-like node.
//
// The ancestor chain is walked toward the root. Enclosing functions
// contribute their names, so nested functions get scope-chained names
// like "proj.pkg.mod.outer.inner". The first enclosing class short
// circuits the walk: the node is a method and its name is scoped to the
// class. A chain whose intermediate names cannot be extracted yields
// ("", false) and the entity is skipped.
func computeFuncQN(node *tree_sitter.Node, source []byte, projectName, relPath string, spec *lang.LanguageSpec) (string, bool) {
	nameNode := funcNameNode(node)
	if nameNode == nil {
		return "", false
	}
	name := parser.NodeText(nameNode, source)
	if name == "" {
		return "", false
	}

	// Receiver methods scope to their receiver type, not the module.
	if node.Kind() == "method_declaration" {
		if recv := goReceiverType(node, source); recv != "" {
			return fqn.Compute(projectName, relPath, recv) + "." + name, true
		}
	}

	funcTypes := toSet(spec.FunctionNodeTypes)
	classTypes := toSet(spec.ClassNodeTypes)

	var chain []string
	for cur := node.Parent(); cur != nil; cur = cur.Parent() {
		kind := cur.Kind()
		if classTypes[kind] {
			classNameNode := cur.ChildByFieldName("name")
			if classNameNode == nil {
				return "", false
			}
			className := parser.NodeText(classNameNode, source)
			if className == "" {
				return "", false
			}
			return fqn.Compute(projectName, relPath, className) + "." + name, true
		}
		if funcTypes[kind] {
			enclosing := funcNameNode(cur)
			if enclosing == nil {
				return "", false
			}
			enclosingName := parser.NodeText(enclosing, source)
			if enclosingName == "" {
				return "", false
			}
			chain = append(chain, enclosingName)
		}
	}

	if len(chain) == 0 {
		return fqn.Compute(projectName, relPath, name), false
	}
	// chain was collected innermost-out; reverse into lexical order.
	parts := make([]string, 0, len(chain)+1)
	for i := len(chain) - 1; i >= 0; i-- {
		parts = append(parts, chain[i])
	}
	parts = append(parts, name)
	return fqn.Compute(projectName, relPath, strings.Join(parts, ".")), false
}

// findEnclosingFunction walks upward from a call site to the nearest
// function-like ancestor and returns its qualified name. Calls at module
// top level return "".
func findEnclosingFunction(node *tree_sitter.Node, source []byte, projectName, relPath string, spec *lang.LanguageSpec) string {
	funcTypes := toSet(spec.FunctionNodeTypes)
	for cur := node.Parent(); cur != nil; cur = cur.Parent() {
		if funcTypes[cur.Kind()] {
			qn, _ := computeFuncQN(cur, source, projectName, relPath, spec)
			return qn
		}
	}
	return ""
}

// hasAncestorKind reports whether any ancestor of node has one of the
// given kinds.
func hasAncestorKind(node *tree_sitter.Node, kinds map[string]bool) bool {
	for cur := node.Parent(); cur != nil; cur = cur.Parent() {
		if kinds[cur.Kind()] {
			return true
		}
	}
	return false
}

func toSet(vals []string) map[string]bool {
	set := make(map[string]bool, len(vals))
	for _, v := range vals {
		set[v] = true
	}
	return set
}
