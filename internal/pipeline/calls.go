package pipeline

import (
	"context"
	"sort"
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	"golang.org/x/sync/errgroup"

	"github.com/codegraphhq/codegraph/internal/discover"
	"github.com/codegraphhq/codegraph/internal/lang"
	"github.com/codegraphhq/codegraph/internal/parser"
)

// passCalls replays the cached ASTs and resolves call sites against the
// registry. The registry and AST cache are read-only here, so files are
// processed in parallel; each worker fills its own edge slice.
func (p *Pipeline) passCalls(ctx context.Context, _ []discover.FileInfo) error {
	relPaths := make([]string, 0, len(p.astCache))
	for rel := range p.astCache {
		relPaths = append(relPaths, rel)
	}
	sort.Strings(relPaths)

	perFile := make([][]pendingEdge, len(relPaths))
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.EffectiveWorkers())
	for i, rel := range relPaths {
		i, rel := i, rel
		g.Go(func() error {
			perFile[i] = p.resolveFileCalls(p.astCache[rel])
			return nil
		})
	}
	_ = g.Wait()

	var edges []pendingEdge
	for _, fileEdges := range perFile {
		edges = append(edges, fileEdges...)
	}
	if err := resolvePendingEdges(p.store, p.projectName, edges); err != nil {
		return err
	}
	p.log.Info("pass3.done", "files", len(relPaths), "calls", len(edges))
	return nil
}

// resolveFileCalls walks one cached AST for call-capture nodes. A call is
// attributed to its nearest enclosing function; module-level calls and
// unresolvable callees are dropped.
func (p *Pipeline) resolveFileCalls(cached *cachedAST) []pendingEdge {
	spec := lang.ForLanguage(cached.Language)
	if spec == nil || len(spec.CallNodeTypes) == 0 {
		return nil
	}
	callTypes := toSet(spec.CallNodeTypes)

	var edges []pendingEdge
	seen := map[string]bool{}
	parser.Walk(cached.Tree.RootNode(), func(node *tree_sitter.Node) bool {
		if !callTypes[node.Kind()] {
			return true
		}
		calleeName := extractCalleeName(node, cached.Source, cached.Language)
		if calleeName == "" {
			return true
		}
		callerQN := findEnclosingFunction(node, cached.Source, p.projectName, cached.File.RelPath, spec)
		if callerQN == "" {
			return true
		}
		targetQN := p.registry.Resolve(calleeName, cached.ModuleQN, p.projectName)
		if targetQN == "" {
			// ResolutionMiss: the edge is silently dropped.
			return true
		}
		key := callerQN + "\x00" + targetQN
		if !seen[key] {
			seen[key] = true
			edges = append(edges, pendingEdge{SourceQN: callerQN, TargetQN: targetQN, Type: EdgeCalls})
		}
		return true
	})
	return edges
}

// extractCalleeName pulls the bare callee name out of a call-capture node.
// Dotted accesses (attribute, member, selector) yield the rightmost
// segment; Java exposes the name as a field, Kotlin as the first child of
// the call expression.
func extractCalleeName(node *tree_sitter.Node, source []byte, language lang.Language) string {
	var target *tree_sitter.Node
	switch language {
	case lang.Java:
		target = node.ChildByFieldName("name")
	case lang.Kotlin:
		if node.NamedChildCount() > 0 {
			target = node.NamedChild(0)
		}
	default:
		target = node.ChildByFieldName("function")
		if target == nil {
			target = node.ChildByFieldName("name")
		}
		if target == nil && node.NamedChildCount() > 0 {
			target = node.NamedChild(0)
		}
	}
	if target == nil {
		return ""
	}
	return calleeFromTarget(target, source)
}

func calleeFromTarget(target *tree_sitter.Node, source []byte) string {
	switch target.Kind() {
	case "attribute":
		if attr := target.ChildByFieldName("attribute"); attr != nil {
			return parser.NodeText(attr, source)
		}
	case "member_expression":
		if prop := target.ChildByFieldName("property"); prop != nil {
			return parser.NodeText(prop, source)
		}
	case "selector_expression", "field_expression":
		if field := target.ChildByFieldName("field"); field != nil {
			return parser.NodeText(field, source)
		}
	case "member_access_expression", "navigation_expression", "scoped_identifier", "qualified_identifier":
		if name := target.ChildByFieldName("name"); name != nil {
			return parser.NodeText(name, source)
		}
	}
	return lastIdentSegment(parser.NodeText(target, source))
}

// lastIdentSegment reduces "a.b::c->d" to its final identifier, or ""
// when the text is not identifier-shaped.
func lastIdentSegment(text string) string {
	seps := []string{".", "::", "->"}
	for _, sep := range seps {
		if idx := strings.LastIndex(text, sep); idx >= 0 {
			text = text[idx+len(sep):]
		}
	}
	if idx := strings.IndexByte(text, '('); idx >= 0 {
		text = text[:idx]
	}
	text = strings.TrimSpace(text)
	if !isIdentName(text) {
		return ""
	}
	return text
}

func isIdentName(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		alpha := r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
		if i == 0 && !alpha {
			return false
		}
		if !alpha && !(r >= '0' && r <= '9') {
			return false
		}
	}
	return true
}
