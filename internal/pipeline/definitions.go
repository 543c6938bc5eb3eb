package pipeline

import (
	"path/filepath"
	"strings"
	"unicode"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/codegraphhq/codegraph/internal/discover"
	"github.com/codegraphhq/codegraph/internal/fqn"
	"github.com/codegraphhq/codegraph/internal/lang"
	"github.com/codegraphhq/codegraph/internal/memguard"
	"github.com/codegraphhq/codegraph/internal/parser"
	"github.com/codegraphhq/codegraph/internal/store"
)

// registryEntry is one function or method discovered by a worker, merged
// into the shared registry by the coordinator.
type registryEntry struct {
	QN   string
	Kind string
}

// parseResult is the self-contained output of parsing one file. Workers
// never touch shared state; everything the merge step needs is here.
type parseResult struct {
	File     discover.FileInfo
	ModuleQN string
	Source   []byte
	Tree     *tree_sitter.Tree
	guard    *memguard.Source

	Nodes        []*store.Node
	PendingEdges []pendingEdge
	Registry     []registryEntry
	ImportMap    map[string]string

	Err *FileError
}

// parseFileAST reads, parses and extracts one file. It is a pure function
// of its inputs; failures are recorded on the result, never raised.
func parseFileAST(projectName string, f discover.FileInfo, reader *memguard.Reader) *parseResult {
	res := &parseResult{File: f}

	spec := lang.ForLanguage(f.Language)
	if spec == nil {
		return res
	}

	src, err := reader.ReadForParse(f.Path)
	if err != nil {
		res.Err = &FileError{RelPath: f.RelPath, Stage: StageRead, Err: err}
		return res
	}
	data := stripBOM(src.Data)

	tree, err := parser.Parse(f.Language, data)
	if err != nil {
		_ = src.Close()
		res.Err = &FileError{RelPath: f.RelPath, Stage: StageParse, Err: err}
		return res
	}

	res.guard = src
	res.Source = data
	res.Tree = tree
	res.ModuleQN = fqn.ModuleQN(projectName, f.RelPath)
	root := tree.RootNode()

	// A module whose basename collapses (__init__, index, init) shares
	// its QN with the directory node from pass 1; that node already
	// represents the scope, so no separate Module node is written.
	if !moduleScopeCollapses(f.RelPath, spec) {
		res.Nodes = append(res.Nodes, &store.Node{
			Project:       projectName,
			Label:         LabelModule,
			Name:          simpleName(res.ModuleQN),
			QualifiedName: res.ModuleQN,
			FilePath:      f.RelPath,
			StartLine:     1,
			EndLine:       safeRowToLine(root.EndPosition().Row),
		})
		res.PendingEdges = append(res.PendingEdges, pendingEdge{
			SourceQN: fileNodeQN(projectName, f.RelPath),
			TargetQN: res.ModuleQN,
			Type:     EdgeContainsModule,
		})
	}

	funcTypes := toSet(spec.FunctionNodeTypes)
	classTypes := toSet(spec.ClassNodeTypes)

	parser.Walk(root, func(node *tree_sitter.Node) bool {
		kind := node.Kind()
		switch {
		case funcTypes[kind]:
			extractFunction(res, node, projectName, spec)
			// Descend so nested functions get scope-chained names.
			return true
		case classTypes[kind]:
			extractClass(res, node, projectName, spec)
			return false
		}
		return true
	})

	res.ImportMap = parseImports(root, data, f.Language, projectName, f.RelPath)
	return res
}

// moduleScopeCollapses reports whether the file's basename merges into
// its directory scope for the file's language.
func moduleScopeCollapses(relPath string, spec *lang.LanguageSpec) bool {
	base := filepath.Base(relPath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	for _, name := range spec.ModuleScopeNames {
		if stem == name {
			return true
		}
	}
	return false
}

// extractFunction emits a Function (or Go Method) node and its DEFINES
// edge. Functions whose qualified name cannot be synthesized are skipped.
func extractFunction(res *parseResult, node *tree_sitter.Node, projectName string, spec *lang.LanguageSpec) {
	f := res.File

	if spec.Language == lang.Go && node.Kind() == "method_declaration" {
		extractGoMethod(res, node, projectName)
		return
	}

	qn, isMethod := computeFuncQN(node, res.Source, projectName, f.RelPath, spec)
	if qn == "" || isMethod {
		// Methods are collected through their class.
		return
	}
	name := simpleName(qn)

	parentQN := findEnclosingFunction(node, res.Source, projectName, f.RelPath, spec)
	if parentQN == "" {
		parentQN = res.ModuleQN
	}

	res.Nodes = append(res.Nodes, &store.Node{
		Project:       projectName,
		Label:         LabelFunction,
		Name:          name,
		QualifiedName: qn,
		FilePath:      f.RelPath,
		StartLine:     safeRowToLine(node.StartPosition().Row),
		EndLine:       safeRowToLine(node.EndPosition().Row),
		Properties:    functionProps(node, res.Source, name, spec),
	})
	res.PendingEdges = append(res.PendingEdges, pendingEdge{SourceQN: parentQN, TargetQN: qn, Type: EdgeDefines})
	res.Registry = append(res.Registry, registryEntry{QN: qn, Kind: LabelFunction})
}

// extractGoMethod attributes a method_declaration to its receiver type,
// so the method shares the type's QN prefix and DEFINES_METHOD edge.
func extractGoMethod(res *parseResult, node *tree_sitter.Node, projectName string) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := parser.NodeText(nameNode, res.Source)
	recvType := goReceiverType(node, res.Source)
	if name == "" || recvType == "" {
		return
	}

	classQN := fqn.Compute(projectName, res.File.RelPath, recvType)
	qn := classQN + "." + name
	res.Nodes = append(res.Nodes, &store.Node{
		Project:       projectName,
		Label:         LabelMethod,
		Name:          name,
		QualifiedName: qn,
		FilePath:      res.File.RelPath,
		StartLine:     safeRowToLine(node.StartPosition().Row),
		EndLine:       safeRowToLine(node.EndPosition().Row),
		Properties:    functionProps(node, res.Source, name, lang.ForLanguage(lang.Go)),
	})
	res.PendingEdges = append(res.PendingEdges, pendingEdge{SourceQN: classQN, TargetQN: qn, Type: EdgeDefinesMethod})
	res.Registry = append(res.Registry, registryEntry{QN: qn, Kind: LabelMethod})
}

// goReceiverType extracts the receiver's base type name, stripping
// pointers and type parameters.
func goReceiverType(node *tree_sitter.Node, source []byte) string {
	recv := node.ChildByFieldName("receiver")
	if recv == nil {
		return ""
	}
	var typeText string
	for i := uint(0); i < recv.NamedChildCount(); i++ {
		child := recv.NamedChild(i)
		if child == nil || child.Kind() != "parameter_declaration" {
			continue
		}
		if t := child.ChildByFieldName("type"); t != nil {
			typeText = parser.NodeText(t, source)
		}
		break
	}
	typeText = strings.TrimPrefix(typeText, "*")
	if idx := strings.IndexByte(typeText, '['); idx >= 0 {
		typeText = typeText[:idx]
	}
	return typeText
}

// extractClass emits a class-like node, its DEFINES edge, and one Method
// per function-shaped node in its body.
func extractClass(res *parseResult, node *tree_sitter.Node, projectName string, spec *lang.LanguageSpec) {
	f := res.File
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	className := parser.NodeText(nameNode, res.Source)
	if className == "" {
		return
	}

	classQN := fqn.Compute(projectName, f.RelPath, className)
	res.Nodes = append(res.Nodes, &store.Node{
		Project:       projectName,
		Label:         classLabel(node, spec),
		Name:          className,
		QualifiedName: classQN,
		FilePath:      f.RelPath,
		StartLine:     safeRowToLine(node.StartPosition().Row),
		EndLine:       safeRowToLine(node.EndPosition().Row),
		Properties:    classProps(node, res.Source, className, spec),
	})
	res.PendingEdges = append(res.PendingEdges, pendingEdge{SourceQN: res.ModuleQN, TargetQN: classQN, Type: EdgeDefines})

	funcTypes := toSet(spec.FunctionNodeTypes)
	classTypes := toSet(spec.ClassNodeTypes)
	first := true
	parser.Walk(node, func(child *tree_sitter.Node) bool {
		if first {
			first = false
			return true
		}
		kind := child.Kind()
		if classTypes[kind] {
			// Nested class: recurse, its methods belong to it.
			extractClass(res, child, projectName, spec)
			return false
		}
		if !funcTypes[kind] {
			return true
		}
		methodNameNode := funcNameNode(child)
		if methodNameNode == nil {
			return false
		}
		methodName := parser.NodeText(methodNameNode, res.Source)
		if methodName == "" {
			return false
		}
		qn := classQN + "." + methodName
		res.Nodes = append(res.Nodes, &store.Node{
			Project:       projectName,
			Label:         LabelMethod,
			Name:          methodName,
			QualifiedName: qn,
			FilePath:      f.RelPath,
			StartLine:     safeRowToLine(child.StartPosition().Row),
			EndLine:       safeRowToLine(child.EndPosition().Row),
			Properties:    functionProps(child, res.Source, methodName, spec),
		})
		res.PendingEdges = append(res.PendingEdges, pendingEdge{SourceQN: classQN, TargetQN: qn, Type: EdgeDefinesMethod})
		res.Registry = append(res.Registry, registryEntry{QN: qn, Kind: LabelMethod})
		// Nested functions inside methods stay private to the method.
		return false
	})
}

// classLabel refines class-like nodes into Class / Interface / Enum / Type.
func classLabel(node *tree_sitter.Node, spec *lang.LanguageSpec) string {
	kind := node.Kind()
	switch {
	case strings.Contains(kind, "interface"):
		return LabelInterface
	case strings.Contains(kind, "enum"):
		return LabelEnum
	case kind == "type_alias", kind == "type_alias_declaration":
		return LabelType
	}
	if spec.Language == lang.Go && kind == "type_spec" {
		if t := node.ChildByFieldName("type"); t != nil {
			switch t.Kind() {
			case "interface_type":
				return LabelInterface
			case "struct_type":
				return LabelClass
			default:
				return LabelType
			}
		}
	}
	return LabelClass
}

func functionProps(node *tree_sitter.Node, source []byte, name string, spec *lang.LanguageSpec) map[string]any {
	props := map[string]any{
		"is_exported": isExported(name, spec.Language),
	}
	if params := node.ChildByFieldName("parameters"); params != nil {
		props["signature"] = parser.NodeText(params, source)
	}
	if doc := extractDocstring(node, source, spec.Language); doc != "" {
		props["docstring"] = doc
	}
	if decs := extractDecorators(node, source, spec); len(decs) > 0 {
		props["decorators"] = decs
	}
	return props
}

func classProps(node *tree_sitter.Node, source []byte, name string, spec *lang.LanguageSpec) map[string]any {
	props := map[string]any{
		"is_exported": isExported(name, spec.Language),
	}
	if doc := extractDocstring(node, source, spec.Language); doc != "" {
		props["docstring"] = doc
	}
	if decs := extractDecorators(node, source, spec); len(decs) > 0 {
		props["decorators"] = decs
	}
	return props
}

// extractDocstring returns the Python docstring of a definition: the first
// statement of the body when it is a bare string literal. Other languages
// return "".
func extractDocstring(node *tree_sitter.Node, source []byte, language lang.Language) string {
	if language != lang.Python {
		return ""
	}
	body := node.ChildByFieldName("body")
	if body == nil || body.NamedChildCount() == 0 {
		return ""
	}
	stmt := body.NamedChild(0)
	if stmt == nil || stmt.Kind() != "expression_statement" || stmt.NamedChildCount() == 0 {
		return ""
	}
	expr := stmt.NamedChild(0)
	if expr == nil || expr.Kind() != "string" {
		return ""
	}
	return strings.Trim(parser.NodeText(expr, source), "\"' \n\t")
}

// extractDecorators collects decorator text from a decorated definition.
func extractDecorators(node *tree_sitter.Node, source []byte, spec *lang.LanguageSpec) []string {
	if len(spec.DecoratorNodeTypes) == 0 {
		return nil
	}
	decTypes := toSet(spec.DecoratorNodeTypes)
	parent := node.Parent()
	if parent == nil || parent.Kind() != "decorated_definition" {
		return nil
	}
	var decorators []string
	for i := uint(0); i < parent.NamedChildCount(); i++ {
		child := parent.NamedChild(i)
		if child != nil && decTypes[child.Kind()] {
			decorators = append(decorators, strings.TrimPrefix(parser.NodeText(child, source), "@"))
		}
	}
	return decorators
}

// isExported applies each language's visibility convention: leading
// underscore is private in Python and friends, capitalization rules Go.
func isExported(name string, language lang.Language) bool {
	if name == "" {
		return false
	}
	switch language {
	case lang.Go:
		return unicode.IsUpper([]rune(name)[0])
	default:
		return !strings.HasPrefix(name, "_")
	}
}
