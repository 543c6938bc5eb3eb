package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/codegraphhq/codegraph/internal/discover"
	"github.com/codegraphhq/codegraph/internal/fqn"
	"github.com/codegraphhq/codegraph/internal/lang"
	"github.com/codegraphhq/codegraph/internal/store"
)

// passStructure walks the ancestor directories of every discovered file
// and writes the Project / Package / Folder / File skeleton. A directory
// is a Package when any registered language's indicator file exists in it,
// a Folder otherwise. Parents resolve through the directory map; roots
// fall back to the Project node.
func (p *Pipeline) passStructure(ctx context.Context, files []discover.FileInfo) error {
	dirs := collectDirs(files)
	indicators := lang.AllPackageIndicators()

	nodes := []*store.Node{{
		Project:       p.projectName,
		Label:         LabelProject,
		Name:          p.projectName,
		QualifiedName: p.projectName,
	}}
	var edges []pendingEdge

	for _, dir := range dirs {
		qn := fqn.FolderQN(p.projectName, dir)
		p.structural[dir] = qn

		label := LabelFolder
		edgeType := EdgeContainsFolder
		if p.isPackageDir(dir, indicators) {
			label = LabelPackage
			edgeType = EdgeContainsPackage
		}

		parentQN := p.projectName
		if parent := filepath.Dir(dir); parent != "." && parent != "" {
			if pqn, ok := p.structural[parent]; ok {
				parentQN = pqn
			}
		}

		nodes = append(nodes, &store.Node{
			Project:       p.projectName,
			Label:         label,
			Name:          filepath.Base(dir),
			QualifiedName: qn,
			FilePath:      dir,
		})
		edges = append(edges, pendingEdge{SourceQN: parentQN, TargetQN: qn, Type: edgeType})
	}

	for _, f := range files {
		qn := fileNodeQN(p.projectName, f.RelPath)
		parentQN := p.projectName
		if dir := filepath.Dir(f.RelPath); dir != "." && dir != "" {
			if pqn, ok := p.structural[dir]; ok {
				parentQN = pqn
			}
		}
		nodes = append(nodes, &store.Node{
			Project:       p.projectName,
			Label:         LabelFile,
			Name:          filepath.Base(f.RelPath),
			QualifiedName: qn,
			FilePath:      f.RelPath,
			Properties:    map[string]any{"language": string(f.Language)},
		})
		edges = append(edges, pendingEdge{SourceQN: parentQN, TargetQN: qn, Type: EdgeContainsFile})
	}

	return p.store.WithTransaction(func(tx *store.Store) error {
		if _, err := tx.UpsertNodeBatch(nodes); err != nil {
			return fmt.Errorf("write structure nodes: %w", err)
		}
		return resolvePendingEdges(tx, p.projectName, edges)
	})
}

// collectDirs gathers every ancestor directory of the files, sorted so
// parents precede children.
func collectDirs(files []discover.FileInfo) []string {
	set := map[string]bool{}
	for _, f := range files {
		dir := filepath.Dir(f.RelPath)
		for dir != "." && dir != "" && dir != "/" {
			set[dir] = true
			dir = filepath.Dir(dir)
		}
	}
	dirs := make([]string, 0, len(set))
	for d := range set {
		dirs = append(dirs, d)
	}
	sort.Strings(dirs)
	return dirs
}

// isPackageDir checks a directory for any indicator file. Indicators with
// a wildcard (e.g. "*.csproj") are matched by glob.
func (p *Pipeline) isPackageDir(relDir string, indicators []string) bool {
	abs := filepath.Join(p.repoPath, relDir)
	for _, ind := range indicators {
		if strings.ContainsRune(ind, '*') {
			matches, err := filepath.Glob(filepath.Join(abs, ind))
			if err == nil && len(matches) > 0 {
				return true
			}
			continue
		}
		if _, err := os.Stat(filepath.Join(abs, ind)); err == nil {
			return true
		}
	}
	return false
}
