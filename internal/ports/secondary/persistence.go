// Package secondary defines the interfaces the application depends on:
// the local metadata store, the remote stores, and the opaque frame
// request handler. Adapters implement these.
package secondary

import (
	"context"

	"github.com/example/dicomcache/internal/dataset"
)

// Database is the local metadata store contract. Batches are explicit:
// no insert is visible to readers until EndBatch commits, and a store
// supports at most one open batch at a time (caller discipline, not
// enforced).
type Database interface {
	// Initialize applies or verifies the on-disk schema. Idempotent.
	Initialize() error

	// StartBatch opens a batch insert session spanning the metadata and
	// tag-cache databases.
	StartBatch(ctx context.Context) error

	// EndBatch commits both databases and clears per-batch state.
	EndBatch() error

	// AbortBatch rolls back both databases and clears per-batch state.
	AbortBatch() error

	// Insert upserts one instance record and its frame locator. Returns
	// false when the record cannot be inserted (missing identity fields,
	// uninitialized schema); the batch remains usable.
	Insert(ctx context.Context, ds *dataset.Dataset, frameLocator string) (bool, error)
}

// StoreCounts summarizes the local store contents.
type StoreCounts struct {
	Patients int
	Studies  int
	Series   int
	Images   int
	Tags     int
}
