// Package index keeps the derived stores in sync with the EndNote
// export: change detection, per-record commits, extraction, embeddings.
package index

import (
	"github.com/gokmengokhan/endnote-mcp/internal/library"
)

// Changes partitions an import batch against the stored state.
// ToInsert, ToUpdate, and Unchanged are disjoint and together cover the
// whole batch; Removed lists stored records absent from the batch.
type Changes struct {
	ToInsert  []*library.Reference
	ToUpdate  []*library.Reference
	Unchanged []*library.Reference
	Removed   []int
}

// Total returns the batch size covered by the partition.
func (c *Changes) Total() int {
	return len(c.ToInsert) + len(c.ToUpdate) + len(c.Unchanged)
}

// Detect classifies batch against existing rec_number -> content_hash.
// Pure function of identity presence and hash equality: a stored record
// with an unfinalized (empty) hash always classifies as ToUpdate, which
// is how interrupted commits heal on the next run.
func Detect(batch []*library.Reference, existing map[int]string) *Changes {
	changes := &Changes{}
	seen := make(map[int]bool, len(batch))

	for _, ref := range batch {
		seen[ref.RecNumber] = true
		storedHash, exists := existing[ref.RecNumber]
		switch {
		case !exists:
			changes.ToInsert = append(changes.ToInsert, ref)
		case storedHash != "" && storedHash == ref.ComputeContentHash():
			changes.Unchanged = append(changes.Unchanged, ref)
		default:
			changes.ToUpdate = append(changes.ToUpdate, ref)
		}
	}

	for rec := range existing {
		if !seen[rec] {
			changes.Removed = append(changes.Removed, rec)
		}
	}
	return changes
}
