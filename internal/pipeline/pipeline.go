// Package pipeline builds the code graph in four sequential passes:
// structure, definitions, calls, cycles. Only the definition pass (and
// file hashing) fans out to workers; every shared structure is merged by
// a single goroutine after the pass barrier.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"time"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	"golang.org/x/sync/errgroup"

	"github.com/codegraphhq/codegraph/internal/config"
	"github.com/codegraphhq/codegraph/internal/discover"
	"github.com/codegraphhq/codegraph/internal/fqn"
	"github.com/codegraphhq/codegraph/internal/lang"
	"github.com/codegraphhq/codegraph/internal/memguard"
	"github.com/codegraphhq/codegraph/internal/store"
)

// Node labels.
const (
	LabelProject   = "Project"
	LabelPackage   = "Package"
	LabelFolder    = "Folder"
	LabelFile      = "File"
	LabelModule    = "Module"
	LabelFunction  = "Function"
	LabelMethod    = "Method"
	LabelClass     = "Class"
	LabelInterface = "Interface"
	LabelEnum      = "Enum"
	LabelType      = "Type"
)

// Edge types.
const (
	EdgeContainsPackage    = "CONTAINS_PACKAGE"
	EdgeContainsFolder     = "CONTAINS_FOLDER"
	EdgeContainsFile       = "CONTAINS_FILE"
	EdgeContainsModule     = "CONTAINS_MODULE"
	EdgeDefines            = "DEFINES"
	EdgeDefinesMethod      = "DEFINES_METHOD"
	EdgeCalls              = "CALLS"
	EdgeImports            = "IMPORTS"
	EdgeCircularDependency = "CIRCULAR_DEPENDENCY"
)

// pendingEdge is an edge expressed in qualified names, resolved to row IDs
// at batch-write time. Edges whose endpoints are unknown are dropped.
type pendingEdge struct {
	SourceQN   string
	TargetQN   string
	Type       string
	Properties map[string]any
}

// Pipeline runs the passes for one project. All mutable state lives here,
// never in package globals; a Pipeline is good for a single Run.
type Pipeline struct {
	store       *store.Store
	cfg         *config.Config
	log         *slog.Logger
	reader      *memguard.Reader
	repoPath    string
	projectName string

	// rel dir -> directory node QN, built in pass 1
	structural map[string]string
	// rel path -> cached parse, built in pass 2, read-only in pass 3
	astCache map[string]*cachedAST
	registry *FunctionRegistry
	// module QN -> local name -> resolved QN
	importMaps map[string]map[string]string
	// module QN set for trimming import targets to module granularity
	moduleSet map[string]bool

	failures   []*FileError
	lastCycles [][]string
}

// New creates a Pipeline for a repository.
func New(s *store.Store, repoPath string, cfg *config.Config, logger *slog.Logger) *Pipeline {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = slog.Default()
	}
	reader := memguard.NewReader(logger)
	if cfg.MaxFileSize > 0 {
		reader.MmapThreshold = cfg.MaxFileSize
	}
	reader.MaxParseBytes = cfg.MaxParseBytes
	reader.MemBudget = cfg.MemBudget
	reader.GCHeapFraction = cfg.GCHeapFraction

	return &Pipeline{
		store:       s,
		cfg:         cfg,
		log:         logger,
		reader:      reader,
		repoPath:    repoPath,
		projectName: ProjectNameFromPath(repoPath),
		structural:  make(map[string]string),
		astCache:    make(map[string]*cachedAST),
		registry:    NewFunctionRegistry(),
		importMaps:  make(map[string]map[string]string),
		moduleSet:   make(map[string]bool),
	}
}

// ProjectName returns the derived project name.
func (p *Pipeline) ProjectName() string { return p.projectName }

// ProjectNameFromPath derives a project name from a repository path.
// Dots and spaces would corrupt qualified names, so they are replaced.
func ProjectNameFromPath(repoPath string) string {
	base := filepath.Base(filepath.Clean(repoPath))
	var sb strings.Builder
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			sb.WriteRune(r)
		default:
			sb.WriteByte('_')
		}
	}
	name := sb.String()
	if name == "" {
		return "project"
	}
	return name
}

// Run executes the pipeline. Per-file failures are collected into the
// Result; only run-level problems (discovery, storage) return an error.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	start := time.Now()
	p.log.Info("pipeline.start", "project", p.projectName, "repo", p.repoPath)

	files, err := discover.Discover(ctx, p.repoPath, &discover.Options{ExtraIgnore: p.cfg.Ignore})
	if err != nil {
		return nil, fmt.Errorf("discover: %w", err)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].RelPath < files[j].RelPath })
	p.log.Info("pipeline.discovered", "files", len(files))

	if err := p.store.UpsertProject(p.projectName, p.repoPath); err != nil {
		return nil, fmt.Errorf("upsert project: %w", err)
	}

	result := &Result{Project: p.projectName, Files: len(files)}

	hashes, changed, deleted, hadPrior, err := p.classifyFiles(ctx, files)
	if err != nil {
		return nil, err
	}
	if hadPrior {
		result.Incremental = true
		result.ChangedFiles = len(changed) + len(deleted)
		if result.ChangedFiles == 0 {
			p.log.Info("pipeline.noop", "project", p.projectName, "files", len(files))
			result.NoOp = true
			result.Nodes, _ = p.store.CountNodes(p.projectName)
			result.Edges, _ = p.store.CountEdges(p.projectName)
			return result, nil
		}
		if err := p.dropStaleFiles(changed, deleted); err != nil {
			return nil, err
		}
	}

	if err := p.runPasses(ctx, files); err != nil {
		return nil, err
	}

	if err := p.updateFileHashes(hashes, deleted); err != nil {
		return nil, err
	}

	nodes, err := p.store.CountNodes(p.projectName)
	if err != nil {
		return nil, err
	}
	edges, err := p.store.CountEdges(p.projectName)
	if err != nil {
		return nil, err
	}
	result.Nodes = nodes
	result.Edges = edges
	result.Cycles = p.lastCycles
	result.Failures = p.failures

	p.log.Info("pipeline.done",
		"project", p.projectName,
		"nodes", nodes,
		"edges", edges,
		"failures", len(p.failures),
		"elapsed", time.Since(start).Round(time.Millisecond))
	return result, nil
}

func (p *Pipeline) runPasses(ctx context.Context, files []discover.FileInfo) error {
	type pass struct {
		name string
		run  func(context.Context, []discover.FileInfo) error
	}
	passes := []pass{
		{"structure", p.passStructure},
		{"definitions", p.passDefinitions},
		{"calls", p.passCalls},
		{"cycles", p.passCycles},
	}
	defer p.teardownASTCache()

	for i, ps := range passes {
		if err := ctx.Err(); err != nil {
			return err
		}
		passStart := time.Now()
		if err := ps.run(ctx, files); err != nil {
			return fmt.Errorf("pass %s: %w", ps.name, err)
		}
		p.log.Info("pass.timing", "pass", i+1, "name", ps.name,
			"elapsed", time.Since(passStart).Round(time.Millisecond))
	}
	return nil
}

// classifyFiles hashes every discovered file in parallel and splits the
// result against the stored hashes. A file that cannot be hashed counts as
// changed; the definition pass will record the real failure.
func (p *Pipeline) classifyFiles(ctx context.Context, files []discover.FileInfo) (hashes map[string]string, changed []string, deleted []string, hadPrior bool, err error) {
	prior, err := p.store.GetFileHashes(p.projectName)
	if err != nil {
		return nil, nil, nil, false, fmt.Errorf("load file hashes: %w", err)
	}

	type hashed struct {
		rel  string
		hash string
	}
	results := make([]hashed, len(files))
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.EffectiveWorkers())
	for i, f := range files {
		i, f := i, f
		g.Go(func() error {
			h, hashErr := fileHash(f.Path)
			if hashErr != nil {
				h = ""
			}
			results[i] = hashed{rel: f.RelPath, hash: h}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, nil, false, err
	}

	hashes = make(map[string]string, len(files))
	for _, r := range results {
		hashes[r.rel] = r.hash
		if r.hash == "" || prior[r.rel] != r.hash {
			changed = append(changed, r.rel)
		}
	}
	for rel := range prior {
		if _, ok := hashes[rel]; !ok {
			deleted = append(deleted, rel)
		}
	}
	sort.Strings(changed)
	sort.Strings(deleted)
	return hashes, changed, deleted, len(prior) > 0, nil
}

// dropStaleFiles removes the graph rows of changed and deleted files so
// the pass sequence rebuilds them from a clean slate.
func (p *Pipeline) dropStaleFiles(changed, deleted []string) error {
	return p.store.WithTransaction(func(tx *store.Store) error {
		for _, rel := range append(append([]string{}, changed...), deleted...) {
			if err := tx.DeleteNodesByFile(p.projectName, rel); err != nil {
				return fmt.Errorf("drop nodes for %s: %w", rel, err)
			}
		}
		for _, rel := range deleted {
			if err := tx.DeleteFileHash(p.projectName, rel); err != nil {
				return fmt.Errorf("drop hash for %s: %w", rel, err)
			}
		}
		return nil
	})
}

// updateFileHashes records the hash of every file that made it through
// the pass sequence cleanly. Failed files keep no stored hash, so the
// next run re-parses them and re-reports the failure instead of taking
// the no-op path.
func (p *Pipeline) updateFileHashes(hashes map[string]string, deleted []string) error {
	failed := make(map[string]bool, len(p.failures))
	for _, f := range p.failures {
		failed[f.RelPath] = true
	}
	return p.store.WithTransaction(func(tx *store.Store) error {
		for rel, h := range hashes {
			if h == "" || failed[rel] {
				continue
			}
			if err := tx.UpsertFileHash(p.projectName, rel, h); err != nil {
				return fmt.Errorf("upsert hash for %s: %w", rel, err)
			}
		}
		for _, rel := range deleted {
			if err := tx.DeleteFileHash(p.projectName, rel); err != nil {
				return fmt.Errorf("delete hash for %s: %w", rel, err)
			}
		}
		return nil
	})
}

// resolvePendingEdges maps QN pairs to row IDs and writes the edges that
// have both endpoints. Missing endpoints are dropped silently; a pending
// edge to an unresolved symbol is not an error.
func resolvePendingEdges(s *store.Store, project string, edges []pendingEdge) error {
	if len(edges) == 0 {
		return nil
	}
	qnSet := make(map[string]bool, len(edges)*2)
	for _, e := range edges {
		qnSet[e.SourceQN] = true
		qnSet[e.TargetQN] = true
	}
	qns := make([]string, 0, len(qnSet))
	for qn := range qnSet {
		qns = append(qns, qn)
	}
	idMap, err := s.FindNodeIDsByQNs(project, qns)
	if err != nil {
		return fmt.Errorf("resolve edge endpoints: %w", err)
	}

	rows := make([]*store.Edge, 0, len(edges))
	for _, e := range edges {
		src, okS := idMap[e.SourceQN]
		dst, okT := idMap[e.TargetQN]
		if !okS || !okT {
			continue
		}
		rows = append(rows, &store.Edge{
			Project:    project,
			SourceID:   src,
			TargetID:   dst,
			Type:       e.Type,
			Properties: e.Properties,
		})
	}
	return s.InsertEdgeBatch(rows)
}

func (p *Pipeline) recordFailure(relPath, stage string, err error) {
	p.failures = append(p.failures, &FileError{RelPath: relPath, Stage: stage, Err: err})
}

// teardownASTCache releases every cached tree and mapped source.
func (p *Pipeline) teardownASTCache() {
	for _, cached := range p.astCache {
		if cached.Tree != nil {
			cached.Tree.Close()
		}
		if cached.guard != nil {
			_ = cached.guard.Close()
		}
	}
	p.astCache = make(map[string]*cachedAST)
}

// fileNodeQN returns the File node's qualified name. The suffix keeps it
// distinct from the Module node derived from the same path.
func fileNodeQN(projectName, relPath string) string {
	dir := filepath.Dir(relPath)
	stem := strings.TrimSuffix(filepath.Base(relPath), filepath.Ext(relPath))
	if dir == "." || dir == "" {
		return projectName + "." + stem + ".__file__"
	}
	return fqn.FolderQN(projectName, dir) + "." + stem + ".__file__"
}

// cachedAST is one pass-2 parse kept alive for pass 3.
type cachedAST struct {
	File     discover.FileInfo
	Language lang.Language
	ModuleQN string
	Source   []byte
	Tree     *tree_sitter.Tree
	guard    *memguard.Source
}
