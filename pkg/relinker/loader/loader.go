// Package loader defines the record source interface every backend
// (in-memory, JSONL, SQLite) implements.
package loader

import (
	"context"

	"github.com/cognicore/relinker/pkg/relinker/record"
)

// Loader is the read side of a record source: everything the pipeline
// needs to pull records for blocking and scoring.
type Loader interface {
	// LoadAll returns every record in the source.
	LoadAll(ctx context.Context) ([]record.Record, error)

	// LoadBatch returns up to size records starting at offset, in a
	// stable order, for callers that want to stream through a source
	// larger than memory allows in one pass.
	LoadBatch(ctx context.Context, size, offset int) ([]record.Record, error)
}
