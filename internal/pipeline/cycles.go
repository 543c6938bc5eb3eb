package pipeline

import (
	"context"
	"sort"
	"strings"

	"github.com/codegraphhq/codegraph/internal/discover"
	"github.com/codegraphhq/codegraph/internal/fqn"
)

// passCycles trims the import maps to module granularity, writes IMPORTS
// edges between internal modules, and emits CIRCULAR_DEPENDENCY edges for
// every detected cycle.
func (p *Pipeline) passCycles(_ context.Context, _ []discover.FileInfo) error {
	deps := p.moduleDependencies()

	var edges []pendingEdge
	for moduleQN, targets := range deps {
		for target := range targets {
			edges = append(edges, pendingEdge{SourceQN: moduleQN, TargetQN: target, Type: EdgeImports})
		}
	}

	cycles := DetectCycles(deps)
	p.lastCycles = cycles
	for cycleID, cycle := range cycles {
		// The closing element repeats the first, so consecutive pairs
		// already cover the wraparound edge.
		for i := 0; i+1 < len(cycle); i++ {
			edges = append(edges, pendingEdge{
				SourceQN:   cycle[i],
				TargetQN:   cycle[i+1],
				Type:       EdgeCircularDependency,
				Properties: map[string]any{"cycle_id": cycleID, "length": len(cycle) - 1},
			})
		}
	}

	if err := resolvePendingEdges(p.store, p.projectName, edges); err != nil {
		return err
	}
	p.log.Info("pass4.done", "modules", len(deps), "cycles", len(cycles))
	return nil
}

// moduleDependencies reduces the import maps to module -> module edges.
// An import target that is not itself a known module is trimmed to its
// parent scope; targets outside the project contribute nothing.
func (p *Pipeline) moduleDependencies() map[string]map[string]bool {
	deps := make(map[string]map[string]bool, len(p.importMaps))
	for moduleQN, imports := range p.importMaps {
		for _, target := range imports {
			dep := ""
			switch {
			case p.moduleSet[target]:
				dep = target
			case p.moduleSet[fqn.Parent(target)]:
				dep = fqn.Parent(target)
			}
			if dep == "" || dep == moduleQN {
				continue
			}
			if deps[moduleQN] == nil {
				deps[moduleQN] = make(map[string]bool)
			}
			deps[moduleQN][dep] = true
		}
	}
	return deps
}

// DetectCycles finds elementary cycles in the module dependency graph.
// Each cycle is returned rotated so its lexicographically smallest module
// comes first and closed by repeating that module at the end, so the
// first and last elements are always equal. Duplicates are removed and
// the result sorted for deterministic output. Self-imports surface as
// two-element cycles.
func DetectCycles(deps map[string]map[string]bool) [][]string {
	modules := make([]string, 0, len(deps))
	for m := range deps {
		modules = append(modules, m)
	}
	sort.Strings(modules)

	visited := make(map[string]bool)
	onStack := make(map[string]bool)
	seen := make(map[string]bool)
	var cycles [][]string

	var visit func(module string, path []string)
	visit = func(module string, path []string) {
		visited[module] = true
		onStack[module] = true
		path = append(path, module)

		targets := make([]string, 0, len(deps[module]))
		for t := range deps[module] {
			targets = append(targets, t)
		}
		sort.Strings(targets)

		for _, target := range targets {
			if onStack[target] {
				// Found a back edge; the cycle is the path suffix from
				// the target onward.
				start := -1
				for i, m := range path {
					if m == target {
						start = i
						break
					}
				}
				if start < 0 {
					continue
				}
				cycle := normalizeCycle(path[start:])
				key := strings.Join(cycle, "\x00")
				if !seen[key] {
					seen[key] = true
					cycles = append(cycles, cycle)
				}
				continue
			}
			if !visited[target] {
				// Copy the path so sibling branches do not share backing
				// arrays.
				branch := make([]string, len(path))
				copy(branch, path)
				visit(target, branch)
			}
		}
		onStack[module] = false
	}

	for _, m := range modules {
		if !visited[m] {
			visit(m, nil)
		}
	}

	sort.Slice(cycles, func(i, j int) bool {
		return strings.Join(cycles[i], ".") < strings.Join(cycles[j], ".")
	})
	return cycles
}

// normalizeCycle rotates a cycle so the lexicographically smallest member
// is first, then closes it by repeating that member at the end.
func normalizeCycle(cycle []string) []string {
	if len(cycle) == 0 {
		return nil
	}
	smallest := 0
	for i := 1; i < len(cycle); i++ {
		if cycle[i] < cycle[smallest] {
			smallest = i
		}
	}
	rotated := make([]string, 0, len(cycle)+1)
	rotated = append(rotated, cycle[smallest:]...)
	rotated = append(rotated, cycle[:smallest]...)
	rotated = append(rotated, cycle[smallest])
	return rotated
}
