// Package memloader is an in-memory reference loader.Loader, useful for
// tests and small one-shot linkage runs.
package memloader

import (
	"context"
	"sort"
	"sync"

	"github.com/cognicore/relinker/pkg/relinker/record"
)

// Loader holds records in memory behind a mutex, returning defensive
// copies so callers can't mutate shared state.
type Loader struct {
	mu      sync.RWMutex
	records []record.Record
}

// New constructs a Loader seeded with the given records.
func New(records []record.Record) *Loader {
	l := &Loader{}
	l.records = append(l.records, records...)
	sort.Slice(l.records, func(i, j int) bool { return l.records[i].ID < l.records[j].ID })
	return l
}

// Add appends a record, keeping the backing slice sorted by id.
func (l *Loader) Add(r record.Record) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = append(l.records, r)
	sort.Slice(l.records, func(i, j int) bool { return l.records[i].ID < l.records[j].ID })
}

// LoadAll returns a copy of every held record.
func (l *Loader) LoadAll(ctx context.Context) ([]record.Record, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]record.Record, len(l.records))
	copy(out, l.records)
	return out, nil
}

// LoadBatch returns up to size records starting at offset.
func (l *Loader) LoadBatch(ctx context.Context, size, offset int) ([]record.Record, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if offset >= len(l.records) {
		return nil, nil
	}
	end := offset + size
	if end > len(l.records) {
		end = len(l.records)
	}

	out := make([]record.Record, end-offset)
	copy(out, l.records[offset:end])
	return out, nil
}
