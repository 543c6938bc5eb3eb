package store

import (
	"fmt"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	if err := s.UpsertProject("test", "/tmp/test"); err != nil {
		t.Fatalf("UpsertProject: %v", err)
	}
	return s
}

func TestOpenMemory(t *testing.T) {
	s, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	s.Close()
}

func TestNodeUpsert(t *testing.T) {
	s := openTestStore(t)

	n := &Node{
		Project:       "test",
		Label:         "Function",
		Name:          "Foo",
		QualifiedName: "test.main.Foo",
		FilePath:      "main.go",
		StartLine:     10,
		EndLine:       20,
		Properties:    map[string]any{"signature": "func Foo(x int) error"},
	}
	id, err := s.UpsertNode(n)
	if err != nil {
		t.Fatalf("UpsertNode: %v", err)
	}
	if id == 0 {
		t.Fatal("expected non-zero id")
	}

	found, err := s.FindNodeByQN("test", "test.main.Foo")
	if err != nil {
		t.Fatalf("FindNodeByQN: %v", err)
	}
	if found == nil || found.Name != "Foo" {
		t.Fatalf("unexpected node: %+v", found)
	}
	if found.Properties["signature"] != "func Foo(x int) error" {
		t.Errorf("unexpected signature: %v", found.Properties["signature"])
	}

	// re-upsert with a new span must keep one row
	n.StartLine = 12
	if _, err := s.UpsertNode(n); err != nil {
		t.Fatalf("UpsertNode again: %v", err)
	}
	count, err := s.CountNodes("test")
	if err != nil {
		t.Fatalf("CountNodes: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 node, got %d", count)
	}
}

func TestNodeBatchUpsert(t *testing.T) {
	s := openTestStore(t)

	var nodes []*Node
	for i := 0; i < 300; i++ {
		nodes = append(nodes, &Node{
			Project:       "test",
			Label:         "Function",
			Name:          fmt.Sprintf("fn%d", i),
			QualifiedName: fmt.Sprintf("test.mod.fn%d", i),
			FilePath:      "mod.py",
		})
	}
	ids, err := s.UpsertNodeBatch(nodes)
	if err != nil {
		t.Fatalf("UpsertNodeBatch: %v", err)
	}
	if len(ids) != 300 {
		t.Fatalf("expected 300 ids, got %d", len(ids))
	}
	for qn, id := range ids {
		if id == 0 {
			t.Fatalf("zero id for %s", qn)
		}
	}

	// idempotent: second batch leaves the same rows
	if _, err := s.UpsertNodeBatch(nodes); err != nil {
		t.Fatalf("UpsertNodeBatch again: %v", err)
	}
	count, _ := s.CountNodes("test")
	if count != 300 {
		t.Errorf("expected 300 nodes after re-upsert, got %d", count)
	}
}

func TestEdgeInsertAndDedup(t *testing.T) {
	s := openTestStore(t)

	a, _ := s.UpsertNode(&Node{Project: "test", Label: "Function", Name: "a", QualifiedName: "test.m.a"})
	b, _ := s.UpsertNode(&Node{Project: "test", Label: "Function", Name: "b", QualifiedName: "test.m.b"})

	if _, err := s.InsertEdge(&Edge{Project: "test", SourceID: a, TargetID: b, Type: "CALLS"}); err != nil {
		t.Fatalf("InsertEdge: %v", err)
	}
	if _, err := s.InsertEdge(&Edge{Project: "test", SourceID: a, TargetID: b, Type: "CALLS"}); err != nil {
		t.Fatalf("InsertEdge dup: %v", err)
	}
	count, err := s.CountEdges("test")
	if err != nil {
		t.Fatalf("CountEdges: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 edge after duplicate insert, got %d", count)
	}

	edges, err := s.FindEdgesBySourceAndType(a, "CALLS")
	if err != nil {
		t.Fatalf("FindEdgesBySourceAndType: %v", err)
	}
	if len(edges) != 1 || edges[0].TargetID != b {
		t.Fatalf("unexpected edges: %+v", edges)
	}
}

func TestEdgeBatch(t *testing.T) {
	s := openTestStore(t)

	var nodes []*Node
	for i := 0; i < 200; i++ {
		nodes = append(nodes, &Node{Project: "test", Label: "Function", Name: fmt.Sprintf("f%d", i), QualifiedName: fmt.Sprintf("test.m.f%d", i)})
	}
	ids, err := s.UpsertNodeBatch(nodes)
	if err != nil {
		t.Fatalf("UpsertNodeBatch: %v", err)
	}

	var edges []*Edge
	for i := 1; i < 200; i++ {
		edges = append(edges, &Edge{
			Project:  "test",
			SourceID: ids["test.m.f0"],
			TargetID: ids[fmt.Sprintf("test.m.f%d", i)],
			Type:     "CALLS",
		})
	}
	if err := s.InsertEdgeBatch(edges); err != nil {
		t.Fatalf("InsertEdgeBatch: %v", err)
	}
	count, _ := s.CountEdges("test")
	if count != 199 {
		t.Errorf("expected 199 edges, got %d", count)
	}
}

func TestCountsByLabel(t *testing.T) {
	s := openTestStore(t)

	s.UpsertNode(&Node{Project: "test", Label: "Module", Name: "m", QualifiedName: "test.m"})
	s.UpsertNode(&Node{Project: "test", Label: "Function", Name: "f", QualifiedName: "test.m.f"})
	s.UpsertNode(&Node{Project: "test", Label: "Function", Name: "g", QualifiedName: "test.m.g"})

	byLabel, err := s.CountNodesByLabel("test")
	if err != nil {
		t.Fatalf("CountNodesByLabel: %v", err)
	}
	if byLabel["Function"] != 2 || byLabel["Module"] != 1 {
		t.Errorf("unexpected counts: %v", byLabel)
	}
}

func TestFileHashes(t *testing.T) {
	s := openTestStore(t)

	if err := s.UpsertFileHash("test", "a.py", "abc"); err != nil {
		t.Fatalf("UpsertFileHash: %v", err)
	}
	if err := s.UpsertFileHash("test", "a.py", "def"); err != nil {
		t.Fatalf("UpsertFileHash update: %v", err)
	}
	hashes, err := s.GetFileHashes("test")
	if err != nil {
		t.Fatalf("GetFileHashes: %v", err)
	}
	if len(hashes) != 1 || hashes["a.py"] != "def" {
		t.Fatalf("unexpected hashes: %v", hashes)
	}
	if err := s.DeleteFileHash("test", "a.py"); err != nil {
		t.Fatalf("DeleteFileHash: %v", err)
	}
	hashes, _ = s.GetFileHashes("test")
	if len(hashes) != 0 {
		t.Errorf("expected no hashes, got %v", hashes)
	}
}

func TestDeleteNodesByFile(t *testing.T) {
	s := openTestStore(t)

	s.UpsertNode(&Node{Project: "test", Label: "Function", Name: "f", QualifiedName: "test.a.f", FilePath: "a.py"})
	s.UpsertNode(&Node{Project: "test", Label: "Function", Name: "g", QualifiedName: "test.b.g", FilePath: "b.py"})

	if err := s.DeleteNodesByFile("test", "a.py"); err != nil {
		t.Fatalf("DeleteNodesByFile: %v", err)
	}
	count, _ := s.CountNodes("test")
	if count != 1 {
		t.Errorf("expected 1 node, got %d", count)
	}
}

func TestWithTransactionRollback(t *testing.T) {
	s := openTestStore(t)

	err := s.WithTransaction(func(tx *Store) error {
		if _, err := tx.UpsertNode(&Node{Project: "test", Label: "Function", Name: "f", QualifiedName: "test.m.f"}); err != nil {
			return err
		}
		return fmt.Errorf("forced failure")
	})
	if err == nil {
		t.Fatal("expected error from transaction")
	}
	count, _ := s.CountNodes("test")
	if count != 0 {
		t.Errorf("expected rollback, got %d nodes", count)
	}
}
