package fqn

import "testing"

func TestCompute(t *testing.T) {
	cases := []struct {
		project, relPath, name, want string
	}{
		{"proj", "pkg/mod1.py", "helper", "proj.pkg.mod1.helper"},
		{"proj", "pkg/__init__.py", "setup", "proj.pkg.setup"},
		{"proj", "src/index.ts", "boot", "proj.src.boot"},
		{"proj", "src/index.js", "", "proj.src"},
		{"proj", "lib/init.lua", "load", "proj.lib.load"},
		{"proj", "main.go", "run", "proj.main.run"},
		// "index" only collapses for languages that treat it as module scope
		{"proj", "search/index.go", "Build", "proj.search.index.Build"},
		{"proj", "a/b/c.py", "f", "proj.a.b.c.f"},
	}
	for _, c := range cases {
		if got := Compute(c.project, c.relPath, c.name); got != c.want {
			t.Errorf("Compute(%q, %q, %q) = %q, want %q", c.project, c.relPath, c.name, got, c.want)
		}
	}
}

func TestModuleQN(t *testing.T) {
	if got := ModuleQN("proj", "pkg/mod2.py"); got != "proj.pkg.mod2" {
		t.Errorf("ModuleQN = %q", got)
	}
	if got := ModuleQN("proj", "pkg/__init__.py"); got != "proj.pkg" {
		t.Errorf("ModuleQN for __init__ = %q", got)
	}
}

func TestFolderQN(t *testing.T) {
	if got := FolderQN("proj", "docs/img"); got != "proj.docs.img" {
		t.Errorf("FolderQN = %q", got)
	}
}

func TestParent(t *testing.T) {
	if got := Parent("proj.pkg.mod"); got != "proj.pkg" {
		t.Errorf("Parent = %q", got)
	}
	if got := Parent("proj"); got != "" {
		t.Errorf("Parent of root = %q, want empty", got)
	}
}
