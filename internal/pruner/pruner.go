// Package pruner implements the "prune" command: remove one snapshot and
// garbage-collect whatever file records and blobs it held exclusively.
//
// The two-step shape — delete the referencing row, then sweep everything
// left unreferenced — keeps deletion and garbage collection independent:
// removing a snapshot never needs to know in advance what it frees, it
// just needs to leave orphaned rows for the sweep to find, expressed
// declaratively as NOT IN anti-joins since the whole table fits in one
// SQLite file.
package pruner

import (
	"context"
	"fmt"

	"github.com/arumry/backuptool/internal/backuplog"
	"github.com/arumry/backuptool/internal/store"
)

// Prune verifies snapshotID exists, then deletes it and cascades the
// cleanup of any file records and blobs left with no remaining reference.
// All of this runs inside a single transaction: on any failure the database
// is left exactly as it was before the call.
func Prune(ctx context.Context, s *store.Store, snapshotID int64) error {
	return s.Tx(ctx, func(o *store.Ops) error {
		exists, err := o.SnapshotExists(ctx, snapshotID)
		if err != nil {
			return fmt.Errorf("pruner: check snapshot %d: %w", snapshotID, err)
		}
		if !exists {
			return fmt.Errorf("pruner: snapshot %d: %w", snapshotID, store.ErrNotFound)
		}

		if err := o.DeleteSnapshot(ctx, snapshotID); err != nil {
			return fmt.Errorf("pruner: delete snapshot %d: %w", snapshotID, err)
		}
		if err := o.CleanupOrphans(ctx); err != nil {
			return fmt.Errorf("pruner: cleanup orphans after pruning %d: %w", snapshotID, err)
		}

		backuplog.Info("snapshot pruned", "id", snapshotID)
		return nil
	})
}
