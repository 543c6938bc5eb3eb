package pipeline

import (
	"testing"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/codegraphhq/codegraph/internal/lang"
	"github.com/codegraphhq/codegraph/internal/parser"
)

func findFunctionNode(t *testing.T, root *tree_sitter.Node, src []byte, name string, spec *lang.LanguageSpec) *tree_sitter.Node {
	t.Helper()
	funcTypes := toSet(spec.FunctionNodeTypes)
	var found *tree_sitter.Node
	parser.Walk(root, func(node *tree_sitter.Node) bool {
		if funcTypes[node.Kind()] {
			if n := funcNameNode(node); n != nil && parser.NodeText(n, src) == name {
				found = node
				return false
			}
		}
		return true
	})
	if found == nil {
		t.Fatalf("function %q not found", name)
	}
	return found
}

func TestComputeFuncQNTopLevel(t *testing.T) {
	src := []byte("def solo():\n    pass\n")
	tree, err := parser.Parse(lang.Python, src)
	if err != nil {
		t.Fatal(err)
	}
	defer tree.Close()
	spec := lang.ForLanguage(lang.Python)

	node := findFunctionNode(t, tree.RootNode(), src, "solo", spec)
	qn, isMethod := computeFuncQN(node, src, "proj", "pkg/mod.py", spec)
	if qn != "proj.pkg.mod.solo" || isMethod {
		t.Errorf("qn = %q method = %v", qn, isMethod)
	}
}

func TestComputeFuncQNNested(t *testing.T) {
	src := []byte("def outer():\n    def inner():\n        def deepest():\n            pass\n")
	tree, err := parser.Parse(lang.Python, src)
	if err != nil {
		t.Fatal(err)
	}
	defer tree.Close()
	spec := lang.ForLanguage(lang.Python)

	node := findFunctionNode(t, tree.RootNode(), src, "deepest", spec)
	qn, _ := computeFuncQN(node, src, "proj", "pkg/mod.py", spec)
	if qn != "proj.pkg.mod.outer.inner.deepest" {
		t.Errorf("qn = %q, want full scope chain", qn)
	}
}

func TestComputeFuncQNMethod(t *testing.T) {
	src := []byte("class Box:\n    def open(self):\n        pass\n")
	tree, err := parser.Parse(lang.Python, src)
	if err != nil {
		t.Fatal(err)
	}
	defer tree.Close()
	spec := lang.ForLanguage(lang.Python)

	node := findFunctionNode(t, tree.RootNode(), src, "open", spec)
	qn, isMethod := computeFuncQN(node, src, "proj", "pkg/mod.py", spec)
	if !isMethod {
		t.Fatal("expected method detection")
	}
	if qn != "proj.pkg.mod.Box.open" {
		t.Errorf("qn = %q, want class-scoped name", qn)
	}
}

func TestComputeFuncQNInitCollapse(t *testing.T) {
	src := []byte("def setup():\n    pass\n")
	tree, err := parser.Parse(lang.Python, src)
	if err != nil {
		t.Fatal(err)
	}
	defer tree.Close()
	spec := lang.ForLanguage(lang.Python)

	node := findFunctionNode(t, tree.RootNode(), src, "setup", spec)
	qn, _ := computeFuncQN(node, src, "proj", "pkg/__init__.py", spec)
	if qn != "proj.pkg.setup" {
		t.Errorf("qn = %q, want __init__ collapsed into package scope", qn)
	}
}

func TestFindEnclosingFunctionTopLevelCall(t *testing.T) {
	src := []byte("print('hi')\n")
	tree, err := parser.Parse(lang.Python, src)
	if err != nil {
		t.Fatal(err)
	}
	defer tree.Close()
	spec := lang.ForLanguage(lang.Python)

	var call *tree_sitter.Node
	parser.Walk(tree.RootNode(), func(node *tree_sitter.Node) bool {
		if node.Kind() == "call" {
			call = node
			return false
		}
		return true
	})
	if call == nil {
		t.Fatal("no call node")
	}
	if qn := findEnclosingFunction(call, src, "proj", "mod.py", spec); qn != "" {
		t.Errorf("module-level call attributed to %q", qn)
	}
}
