// Package jsonlloader is a loader.Loader backed by a JSON-lines file,
// one record object per line.
package jsonlloader

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/cognicore/relinker/pkg/relinker/record"
)

// Loader reads records from a JSONL file. Each line must decode to
// {"id": "...", "fields": {...}}; malformed lines are logged and
// skipped rather than aborting the whole load.
type Loader struct {
	path string
}

// New constructs a Loader reading from path.
func New(path string) *Loader {
	return &Loader{path: path}
}

type jsonRecord struct {
	ID     string            `json:"id"`
	Fields map[string]string `json:"fields"`
}

// LoadAll reads the whole file into memory, skipping malformed lines.
func (l *Loader) LoadAll(ctx context.Context) ([]record.Record, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return nil, fmt.Errorf("read file %s: %w", l.path, err)
	}

	var records []record.Record
	lines := strings.Split(string(data), "\n")
	for i, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		var jr jsonRecord
		if err := json.Unmarshal([]byte(line), &jr); err != nil {
			log.Printf("Warning: skipping malformed JSON at line %d in %s: %v", i+1, l.path, err)
			continue
		}
		records = append(records, record.Record{ID: jr.ID, Fields: jr.Fields})
	}

	return records, nil
}

// LoadBatch loads the whole file and slices it, since JSONL has no
// cheap random access. Fine for the reference/small-corpus use case
// this loader targets; a streaming backend belongs in a larger store.
func (l *Loader) LoadBatch(ctx context.Context, size, offset int) ([]record.Record, error) {
	all, err := l.LoadAll(ctx)
	if err != nil {
		return nil, err
	}
	if offset >= len(all) {
		return nil, nil
	}
	end := offset + size
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}
