// Package restorer implements the "restore" command: materialize a
// snapshot's files into an output directory.
package restorer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/arumry/backuptool/internal/backuplog"
	"github.com/arumry/backuptool/internal/store"
)

// Summary reports what a Restore call actually wrote, for the command's
// final status line.
type Summary struct {
	FilesRestored int
	BytesWritten  int64
}

// Restore materializes snapshotID's files beneath outputDir, creating it
// and any missing parent directories as needed. A per-file write failure is
// logged and skipped; a missing blob is fatal, since it violates invariant 1
// (every file record must reference an existing blob).
func Restore(ctx context.Context, s *store.Store, snapshotID int64, outputDir string) (Summary, error) {
	exists, err := s.SnapshotExists(ctx, snapshotID)
	if err != nil {
		return Summary{}, fmt.Errorf("restorer: check snapshot %d: %w", snapshotID, err)
	}
	if !exists {
		return Summary{}, fmt.Errorf("restorer: snapshot %d: %w", snapshotID, store.ErrNotFound)
	}

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return Summary{}, fmt.Errorf("restorer: create output directory %s: %w", outputDir, err)
	}

	files, err := s.GetSnapshotFiles(ctx, snapshotID)
	if err != nil {
		return Summary{}, fmt.Errorf("restorer: list files for snapshot %d: %w", snapshotID, err)
	}

	var summary Summary
	for _, fe := range files {
		target := filepath.Join(outputDir, filepath.FromSlash(fe.RelPath))

		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			backuplog.Warn("skipping file, cannot create parent directory", "path", target, "err", err)
			continue
		}

		data, err := s.GetBlob(ctx, fe.Digest)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return Summary{}, fmt.Errorf("restorer: blob %s referenced by %s is missing: %w", fe.Digest, fe.RelPath, store.ErrIntegrity)
			}
			return Summary{}, fmt.Errorf("restorer: fetch blob for %s: %w", fe.RelPath, err)
		}

		if err := os.WriteFile(target, data, 0o644); err != nil {
			backuplog.Warn("skipping file, write failed", "path", target, "err", err)
			continue
		}

		summary.FilesRestored++
		summary.BytesWritten += int64(len(data))
	}

	backuplog.Info("snapshot restored",
		"id", snapshotID,
		"files", summary.FilesRestored,
		"bytes", summary.BytesWritten)
	return summary, nil
}
