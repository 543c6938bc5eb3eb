package pipeline

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/codegraphhq/codegraph/internal/discover"
	"github.com/codegraphhq/codegraph/internal/store"
)

// collectDefinitions parses files with a bounded worker pool. Each worker
// writes only into its own slot of the result slice; Wait() is the pass
// barrier after which the results are safe to merge sequentially.
func (p *Pipeline) collectDefinitions(ctx context.Context, files []discover.FileInfo, workers int) []*parseResult {
	results := make([]*parseResult, len(files))

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, f := range files {
		i, f := i, f
		g.Go(func() error {
			results[i] = parseFileAST(p.projectName, f, p.reader)
			p.reader.MaybeGC()
			return nil
		})
	}
	// Workers never return errors; per-file failures ride on the results.
	_ = g.Wait()
	return results
}

// passDefinitions runs the definition collection pass: parallel parse,
// then a single-goroutine merge into the registry, import maps and AST
// cache, then batched node and edge writes. The registry is complete
// before this function returns, so pass 3 never observes a partial merge.
func (p *Pipeline) passDefinitions(ctx context.Context, files []discover.FileInfo) error {
	workers := p.cfg.EffectiveWorkers()
	p.log.Info("pass2.start", "files", len(files), "workers", workers)

	results := p.collectDefinitions(ctx, files, workers)

	var nodes []*store.Node
	var edges []pendingEdge
	for _, res := range results {
		if res == nil {
			continue
		}
		if res.Err != nil {
			p.failures = append(p.failures, res.Err)
			p.log.Warn("pass2.file.err", "file", res.Err.RelPath, "stage", res.Err.Stage, "err", res.Err.Err)
			continue
		}
		if res.Tree == nil {
			continue
		}
		p.astCache[res.File.RelPath] = &cachedAST{
			File:     res.File,
			Language: res.File.Language,
			ModuleQN: res.ModuleQN,
			Source:   res.Source,
			Tree:     res.Tree,
			guard:    res.guard,
		}
		p.moduleSet[res.ModuleQN] = true
		if len(res.ImportMap) > 0 {
			p.importMaps[res.ModuleQN] = res.ImportMap
		}
		for _, entry := range res.Registry {
			p.registry.Register(entry.QN, entry.Kind)
		}
		nodes = append(nodes, res.Nodes...)
		edges = append(edges, res.PendingEdges...)
	}

	if err := p.store.WithTransaction(func(tx *store.Store) error {
		if _, err := tx.UpsertNodeBatch(nodes); err != nil {
			return fmt.Errorf("write definition nodes: %w", err)
		}
		return resolvePendingEdges(tx, p.projectName, edges)
	}); err != nil {
		return err
	}

	p.log.Info("pass2.done", "modules", len(p.astCache), "registry", p.registry.Size())
	return nil
}
