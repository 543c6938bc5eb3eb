package pipeline

import (
	"sort"
	"strings"
	"sync"
)

// FunctionRegistry indexes every Function and Method discovered in pass 2
// by qualified name and by simple name. Writes happen only in the
// coordinator's merge step; pass 3 reads it concurrently.
type FunctionRegistry struct {
	mu sync.RWMutex
	// exact maps qualifiedName -> kind ("Function" or "Method")
	exact map[string]string
	// byName maps simpleName -> sorted []qualifiedName
	byName map[string][]string
}

// NewFunctionRegistry creates an empty registry.
func NewFunctionRegistry() *FunctionRegistry {
	return &FunctionRegistry{
		exact:  make(map[string]string),
		byName: make(map[string][]string),
	}
}

// Register adds an entry. The first registration of a qualified name wins;
// re-registration with a different kind is ignored.
func (r *FunctionRegistry) Register(qualifiedName, kind string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.exact[qualifiedName]; ok {
		return
	}
	r.exact[qualifiedName] = kind

	simple := simpleName(qualifiedName)
	names := r.byName[simple]
	idx := sort.SearchStrings(names, qualifiedName)
	if idx < len(names) && names[idx] == qualifiedName {
		return
	}
	names = append(names, "")
	copy(names[idx+1:], names[idx:])
	names[idx] = qualifiedName
	r.byName[simple] = names
}

// Exists reports whether a qualified name is registered.
func (r *FunctionRegistry) Exists(qualifiedName string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.exact[qualifiedName]
	return ok
}

// Kind returns the registered kind for a qualified name, or "".
func (r *FunctionRegistry) Kind(qualifiedName string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.exact[qualifiedName]
}

// FindByName returns the sorted qualified names sharing a simple name.
func (r *FunctionRegistry) FindByName(name string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]string, len(r.byName[name]))
	copy(result, r.byName[name])
	return result
}

// Size returns the number of registered entries.
func (r *FunctionRegistry) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.exact)
}

// Resolve maps a bare callee name to a registered qualified name, or ""
// when the call cannot be attributed.
//
// Exact probes run first, in priority order: the caller's own module, the
// project root, then the caller module's parent scope. When none hit, the
// simple-name index is scanned in sorted order and candidates are admitted
// by likelySameFunction. A miss is silent; unresolved calls produce no
// edge.
func (r *FunctionRegistry) Resolve(calleeName, moduleQN, projectName string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	probes := []string{
		moduleQN + "." + calleeName,
		projectName + "." + calleeName,
	}
	if parent := parentScope(moduleQN); parent != "" && parent != projectName {
		probes = append(probes, parent+"."+calleeName)
	}
	for _, probe := range probes {
		if _, ok := r.exact[probe]; ok {
			return probe
		}
	}

	for _, candidate := range r.byName[calleeName] {
		if likelySameFunction(calleeName, candidate, moduleQN) {
			return candidate
		}
	}
	return ""
}

// likelySameFunction decides whether a cross-module candidate plausibly is
// the called function. Distinctive names (long, or snake_case) are trusted
// on name identity alone; short generic names additionally require the
// candidate to live under the caller's top-level scope. The rule is
// deliberately lossy: it trades missed edges for a usable precision on
// generic names like "get" or "run".
func likelySameFunction(callName, candidateQN, callerModuleQN string) bool {
	if len(callName) > 10 || strings.Contains(callName, "_") {
		return true
	}
	return headSegments(candidateQN, 2) == headSegments(callerModuleQN, 2)
}

// headSegments returns the first n dot-separated segments of qn.
func headSegments(qn string, n int) string {
	idx := 0
	for i := 0; i < n; i++ {
		next := strings.Index(qn[idx:], ".")
		if next < 0 {
			return qn
		}
		idx += next + 1
	}
	return qn[:idx-1]
}

// parentScope strips the last segment of a module qualified name.
func parentScope(moduleQN string) string {
	if idx := strings.LastIndex(moduleQN, "."); idx >= 0 {
		return moduleQN[:idx]
	}
	return ""
}

// simpleName extracts the last dot-separated segment.
func simpleName(qn string) string {
	if idx := strings.LastIndex(qn, "."); idx >= 0 {
		return qn[idx+1:]
	}
	return qn
}
