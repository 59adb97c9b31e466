// Package lister implements the "list" command: a per-snapshot size
// summary table.
//
// The wire format is a compatibility surface other tooling parses by
// whitespace, with column widths kept fixed for human readers, so it is
// rendered with manual fmt.Fprintf column padding
// rather than a generic table-rendering library — see DESIGN.md for why
// olekukonko/tablewriter isn't a fit here.
package lister

import (
	"context"
	"fmt"
	"io"

	"github.com/arumry/backuptool/internal/store"
)

const (
	idWidth        = 8
	timestampWidth = 19
	sizeWidth      = 4
)

// List writes the snapshot summary table to w: a header, one row per
// snapshot ordered by ID ascending, and a trailing total row equal to the
// sum of every row's unique (distinct) size.
func List(ctx context.Context, s *store.Store, w io.Writer) error {
	reports, err := s.ListSnapshots(ctx)
	if err != nil {
		return fmt.Errorf("lister: list snapshots: %w", err)
	}

	fmt.Fprintf(w, "%-*s  %-*s  %-*s  %s\n", idWidth, "SNAPSHOT", timestampWidth, "TIMESTAMP", sizeWidth, "SIZE", "DISTINCT_SIZE")

	var grandTotal int64
	for _, r := range reports {
		fmt.Fprintf(w, "%-*d  %-*s  %-*d  %d\n",
			idWidth, r.ID,
			timestampWidth, r.Timestamp.UTC().Format("2006-01-02 15:04:05"),
			sizeWidth, r.TotalSize,
			r.UniqueSize)
		grandTotal += r.UniqueSize
	}

	fmt.Fprintf(w, "%-*s  %-*s  %-*s  %d\n", idWidth, "total", timestampWidth, "", sizeWidth, "", grandTotal)
	return nil
}
