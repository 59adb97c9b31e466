// Package walker enumerates the regular files beneath a directory tree for
// the snapshotter. Its job is enumeration only, nothing content- or
// store-aware.
package walker

import (
	"io/fs"
	"path/filepath"

	"github.com/arumry/backuptool/internal/backuplog"
)

// VisitFunc is called once per regular file found beneath root, with its
// path joined onto root (absolute only when root is). Returning an error here aborts the walk entirely; callers
// that want to skip a single bad file and continue should handle the error
// themselves and return nil.
type VisitFunc func(path string) error

// Walk traverses root and invokes visit for every regular file it finds.
// Symbolic links are never followed — a symlink entry is skipped outright,
// whether it points to a file or a directory. Errors encountered while
// listing a directory entry (permission denied, a vanished entry) are
// logged and skipped rather than aborting the whole walk; only an error
// returned by visit itself propagates out of Walk.
func Walk(root string, visit VisitFunc) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			backuplog.Warn("skipping directory entry", "path", path, "err", err)
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if d.Type()&fs.ModeSymlink != 0 {
			backuplog.Warn("skipping symlink", "path", path)
			return nil
		}
		if !d.Type().IsRegular() {
			backuplog.Warn("skipping non-regular file", "path", path)
			return nil
		}
		return visit(path)
	})
}
