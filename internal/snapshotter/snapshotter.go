// Package snapshotter implements the "snapshot" command: walk a directory,
// dedupe each file's bytes against the store, and record file-to-snapshot
// membership.
package snapshotter

import (
	"context"
	"fmt"
	"os"

	"github.com/arumry/backuptool/internal/backuplog"
	"github.com/arumry/backuptool/internal/digest"
	"github.com/arumry/backuptool/internal/pathutil"
	"github.com/arumry/backuptool/internal/store"
	"github.com/arumry/backuptool/internal/walker"
)

// Summary reports what a Create call actually did, for the command's final
// status line.
type Summary struct {
	SnapshotID   int64
	FilesScanned int
	BytesScanned int64
	FilesDeduped int
}

// Create walks targetDir, stores each file's content-addressed blob, and
// records a new snapshot linking them all. Per-file errors — a read
// failure or a permission problem — are logged as warnings and the file is
// skipped; the snapshot still commits with whatever files succeeded.
// Database errors are fatal and abort the whole command via the
// transaction's rollback.
func Create(ctx context.Context, s *store.Store, targetDir string) (Summary, error) {
	var summary Summary

	err := s.Tx(ctx, func(o *store.Ops) error {
		sid, err := o.CreateSnapshot(ctx, targetDir)
		if err != nil {
			return fmt.Errorf("snapshotter: create snapshot: %w", err)
		}
		summary.SnapshotID = sid

		return walker.Walk(targetDir, func(path string) error {
			data, err := os.ReadFile(path)
			if err != nil {
				backuplog.Warn("skipping unreadable file", "path", path, "err", err)
				return nil
			}

			rel := pathutil.Relative(path, targetDir)
			d := digest.Sum(data)
			size := int64(len(data))

			existed, err := o.StoreBlob(ctx, d, data)
			if err != nil {
				return fmt.Errorf("snapshotter: store blob for %s: %w", rel, err)
			}
			if err := o.AddFileToSnapshot(ctx, sid, rel, d, size); err != nil {
				return fmt.Errorf("snapshotter: add file %s: %w", rel, err)
			}

			summary.FilesScanned++
			summary.BytesScanned += size
			if existed {
				summary.FilesDeduped++
			}
			return nil
		})
	})
	if err != nil {
		return Summary{}, err
	}

	backuplog.Info("snapshot created",
		"id", summary.SnapshotID,
		"files", summary.FilesScanned,
		"bytes", summary.BytesScanned,
		"deduped", summary.FilesDeduped)
	return summary, nil
}
