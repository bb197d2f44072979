// Package sqliteloader is a loader.Loader backed by a SQLite database,
// reading records stored as (id, field, value) triples so the schema
// stays agnostic to which fields a given linkage run cares about.
package sqliteloader

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/cognicore/relinker/pkg/relinker/record"
)

// Loader reads records from a SQLite database opened in WAL mode.
type Loader struct {
	db *sql.DB
}

// Open opens (creating if necessary) a SQLite database at path and
// ensures the record_fields table exists.
func Open(ctx context.Context, path string) (*Loader, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, err
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, err
	}

	return &Loader{db: db}, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS record_fields (
	record_id TEXT NOT NULL,
	field     TEXT NOT NULL,
	value     TEXT NOT NULL,
	PRIMARY KEY (record_id, field)
);
`

// Close closes the underlying database handle.
func (l *Loader) Close() error {
	return l.db.Close()
}

// PutRecord upserts one record's fields, replacing any existing row for
// the same (record_id, field) pair.
func (l *Loader) PutRecord(ctx context.Context, r record.Record) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for field, value := range r.Fields {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO record_fields (record_id, field, value) VALUES (?, ?, ?)`,
			r.ID, field, value); err != nil {
			return fmt.Errorf("put record field: %w", err)
		}
	}
	return tx.Commit()
}

// LoadAll reads every record out of the database, grouping rows back
// into records by record_id, ordered by record_id.
func (l *Loader) LoadAll(ctx context.Context) ([]record.Record, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT record_id, field, value FROM record_fields ORDER BY record_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanRecords(rows)
}

// LoadBatch reads up to size distinct records starting at offset,
// ordered by record_id.
func (l *Loader) LoadBatch(ctx context.Context, size, offset int) ([]record.Record, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT record_id, field, value FROM record_fields
		WHERE record_id IN (
			SELECT DISTINCT record_id FROM record_fields
			ORDER BY record_id LIMIT ? OFFSET ?
		)
		ORDER BY record_id`, size, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanRecords(rows)
}

func scanRecords(rows *sql.Rows) ([]record.Record, error) {
	var out []record.Record
	var current *record.Record

	for rows.Next() {
		var id, field, value string
		if err := rows.Scan(&id, &field, &value); err != nil {
			return nil, err
		}

		if current == nil || current.ID != id {
			if current != nil {
				out = append(out, *current)
			}
			current = &record.Record{ID: id, Fields: make(map[string]string)}
		}
		current.Fields[field] = value
	}
	if current != nil {
		out = append(out, *current)
	}

	return out, rows.Err()
}
