package pipeline

import (
	"reflect"
	"testing"
)

func TestResolveSameModulePrecedence(t *testing.T) {
	r := NewFunctionRegistry()
	r.Register("proj.other.helper", LabelFunction)
	r.Register("proj.pkg.mod.helper", LabelFunction)

	got := r.Resolve("helper", "proj.pkg.mod", "proj")
	if got != "proj.pkg.mod.helper" {
		t.Errorf("Resolve = %q, want same-module match", got)
	}
}

func TestResolveProjectRootProbe(t *testing.T) {
	r := NewFunctionRegistry()
	r.Register("proj.main", LabelFunction)

	if got := r.Resolve("main", "proj.pkg.mod", "proj"); got != "proj.main" {
		t.Errorf("Resolve = %q, want project-root match", got)
	}
}

func TestResolveParentScopeProbe(t *testing.T) {
	r := NewFunctionRegistry()
	r.Register("proj.pkg.setup", LabelFunction)

	if got := r.Resolve("setup", "proj.pkg.mod", "proj"); got != "proj.pkg.setup" {
		t.Errorf("Resolve = %q, want parent-scope match", got)
	}
}

func TestResolveFallbackDistinctiveName(t *testing.T) {
	r := NewFunctionRegistry()
	// Snake case makes the name distinctive even across top-level scopes.
	r.Register("proj.far.away.compute_all", LabelFunction)

	if got := r.Resolve("compute_all", "proj.pkg.mod", "proj"); got != "proj.far.away.compute_all" {
		t.Errorf("Resolve = %q, want distinctive-name fallback", got)
	}
}

func TestResolveFallbackLongName(t *testing.T) {
	r := NewFunctionRegistry()
	// 11 characters, no underscore: just over the length gate.
	r.Register("other.scope.initializeX", LabelFunction)

	if got := r.Resolve("initializeX", "proj.pkg.mod", "proj"); got != "other.scope.initializeX" {
		t.Errorf("Resolve = %q, want long-name fallback", got)
	}
}

func TestResolveFallbackShortNameScopeGate(t *testing.T) {
	r := NewFunctionRegistry()
	r.Register("other.scope.run", LabelFunction)
	r.Register("proj.pkg.deep.run", LabelFunction)

	// "run" is short and has no underscore, so only a candidate sharing
	// the caller's first two segments is admitted.
	if got := r.Resolve("run", "proj.pkg.mod", "proj"); got != "proj.pkg.deep.run" {
		t.Errorf("Resolve = %q, want scope-gated candidate", got)
	}
}

func TestResolveShortNameNoScopeMatch(t *testing.T) {
	r := NewFunctionRegistry()
	r.Register("other.scope.run", LabelFunction)

	if got := r.Resolve("run", "proj.pkg.mod", "proj"); got != "" {
		t.Errorf("Resolve = %q, want miss for out-of-scope short name", got)
	}
}

func TestResolveMissIsSilent(t *testing.T) {
	r := NewFunctionRegistry()
	if got := r.Resolve("nothing", "proj.pkg.mod", "proj"); got != "" {
		t.Errorf("Resolve = %q, want empty", got)
	}
}

func TestResolveHeuristicBoundary(t *testing.T) {
	// Exactly 10 characters and no underscore: the length gate must not
	// fire, so cross-scope candidates are rejected.
	r := NewFunctionRegistry()
	r.Register("other.scope.abcdefghij", LabelFunction)
	if got := r.Resolve("abcdefghij", "proj.pkg.mod", "proj"); got != "" {
		t.Errorf("10-char name resolved cross-scope: %q", got)
	}

	r.Register("other.scope.abcdefghijk", LabelFunction)
	if got := r.Resolve("abcdefghijk", "proj.pkg.mod", "proj"); got != "other.scope.abcdefghijk" {
		t.Errorf("11-char name should resolve cross-scope, got %q", got)
	}
}

func TestResolveSortedCandidates(t *testing.T) {
	r := NewFunctionRegistry()
	// Registration order must not matter; the smallest QN wins.
	r.Register("z.scope.compute_all", LabelFunction)
	r.Register("a.scope.compute_all", LabelFunction)

	if got := r.Resolve("compute_all", "proj.pkg.mod", "proj"); got != "a.scope.compute_all" {
		t.Errorf("Resolve = %q, want lexicographically first candidate", got)
	}
}

func TestRegistryFirstRegistrationWins(t *testing.T) {
	r := NewFunctionRegistry()
	r.Register("proj.mod.f", LabelFunction)
	r.Register("proj.mod.f", LabelMethod)

	if kind := r.Kind("proj.mod.f"); kind != LabelFunction {
		t.Errorf("Kind = %q, want first registration kept", kind)
	}
	if r.Size() != 1 {
		t.Errorf("Size = %d, want 1", r.Size())
	}
}

func TestFindByNameSorted(t *testing.T) {
	r := NewFunctionRegistry()
	r.Register("b.mod.f", LabelFunction)
	r.Register("a.mod.f", LabelFunction)
	r.Register("c.mod.f", LabelFunction)

	want := []string{"a.mod.f", "b.mod.f", "c.mod.f"}
	if got := r.FindByName("f"); !reflect.DeepEqual(got, want) {
		t.Errorf("FindByName = %v, want %v", got, want)
	}
}
