// Package pathutil computes the relative path a file occupies within a
// snapshot root, the key under which the snapshotter records it.
package pathutil

import (
	"path/filepath"
	"strings"
)

// Relative returns p expressed as a forward-slash path relative to base. If p
// cannot be resolved against base (a race on read, a symlink cycle, or p
// simply not living under base) it falls back to p unchanged, which callers
// treat as an opaque key rather than a structured path.
func Relative(p, base string) string {
	absBase, err := filepath.Abs(base)
	if err != nil {
		return p
	}
	absPath, err := filepath.Abs(p)
	if err != nil {
		return p
	}
	// Resolve symlinks so two different spellings of the same file land on
	// the same relative key. If p itself cannot be resolved, fall back to p;
	// an unresolvable base is used as given.
	resolved, err := filepath.EvalSymlinks(absPath)
	if err != nil {
		return p
	}
	absPath = resolved
	if resolved, err := filepath.EvalSymlinks(absBase); err == nil {
		absBase = resolved
	}
	rel, err := filepath.Rel(absBase, absPath)
	if err != nil || strings.HasPrefix(rel, "..") {
		return p
	}
	return filepath.ToSlash(rel)
}
