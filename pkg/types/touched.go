package types

import (
	"path/filepath"
	"sort"
	"sync"
)

// TouchedFileSet records the absolute paths written, linked or deliberately
// preserved during one materialization pass. It is frozen before cleanup;
// touching a frozen set is a programming error and panics.
type TouchedFileSet struct {
	mu     sync.RWMutex
	paths  map[string]struct{}
	frozen bool
}

// NewTouchedFileSet returns an empty, writable set.
func NewTouchedFileSet() *TouchedFileSet {
	return &TouchedFileSet{paths: make(map[string]struct{})}
}

// Touch records a path. Relative paths are made absolute.
func (t *TouchedFileSet) Touch(p string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.frozen {
		panic("touched file set is frozen: " + p)
	}
	t.paths[normalize(p)] = struct{}{}
}

// Contains reports whether a path was touched.
func (t *TouchedFileSet) Contains(p string) bool {
	if t == nil {
		return false
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.paths[normalize(p)]
	return ok
}

// Freeze makes the set read-only and returns it.
func (t *TouchedFileSet) Freeze() *TouchedFileSet {
	t.mu.Lock()
	t.frozen = true
	t.mu.Unlock()
	return t
}

// Frozen reports whether Freeze was called.
func (t *TouchedFileSet) Frozen() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.frozen
}

// Len returns the number of touched paths.
func (t *TouchedFileSet) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.paths)
}

// Paths returns the touched paths sorted.
func (t *TouchedFileSet) Paths() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]string, 0, len(t.paths))
	for p := range t.paths {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

func normalize(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return filepath.Clean(p)
}
