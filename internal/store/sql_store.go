package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// SQLStore persists documents in a single `documents` table. Fields are kept as
// a JSON object in a TEXT column so the same schema runs on PostgreSQL and
// SQLite; `position` preserves insertion order per collection.
type SQLStore struct {
	db  *sqlx.DB
	now func() time.Time
}

var _ RemoteStore = (*SQLStore)(nil)

type documentRow struct {
	ID     string `db:"id"`
	Fields string `db:"fields"`
}

// NewSQLStore wraps an open sqlx handle. Placeholders are rebound for the
// handle's driver.
func NewSQLStore(db *sqlx.DB) *SQLStore {
	return &SQLStore{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// FetchAll lists a collection ordered by insertion position.
func (s *SQLStore) FetchAll(ctx context.Context, collection string) ([]Record, error) {
	query := s.db.Rebind(`SELECT id, fields FROM documents WHERE collection = ? ORDER BY position ASC, id ASC`)
	var rows []documentRow
	if err := s.db.SelectContext(ctx, &rows, query, collection); err != nil {
		return nil, unavailable(err, "fetch", collection)
	}
	records := make([]Record, 0, len(rows))
	for _, row := range rows {
		fields, err := decodeFields(row.Fields)
		if err != nil {
			return nil, malformed(err, collection, row.ID)
		}
		records = append(records, Record{ID: row.ID, Fields: fields})
	}
	return records, nil
}

// WriteField merges one field into the stored document inside a transaction.
func (s *SQLStore) WriteField(ctx context.Context, collection, id, field string, value interface{}) error {
	if err := validateKey(collection, id, field); err != nil {
		return err
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return unavailable(fmt.Errorf("begin write tx: %w", err), "write", collection)
	}

	if err := s.writeField(ctx, tx, collection, id, field, value); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return unavailable(fmt.Errorf("commit write tx: %w", err), "write", collection)
	}
	return nil
}

func (s *SQLStore) writeField(ctx context.Context, tx *sqlx.Tx, collection, id, field string, value interface{}) error {
	var raw string
	err := tx.GetContext(ctx, &raw, tx.Rebind(`SELECT fields FROM documents WHERE collection = ? AND id = ?`), collection, id)
	exists := true
	switch {
	case errors.Is(err, sql.ErrNoRows):
		exists = false
		raw = "{}"
	case err != nil:
		return unavailable(fmt.Errorf("load document: %w", err), "write", collection)
	}

	fields, err := decodeFields(raw)
	if err != nil {
		return malformed(err, collection, id)
	}
	fields[field] = value
	encoded, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", collection, id, err)
	}

	if exists {
		const update = `UPDATE documents SET fields = ?, updated_at = ? WHERE collection = ? AND id = ?`
		if _, err := tx.ExecContext(ctx, tx.Rebind(update), string(encoded), s.now(), collection, id); err != nil {
			return unavailable(fmt.Errorf("update document: %w", err), "write", collection)
		}
		return nil
	}

	var position int64
	const next = `SELECT COALESCE(MAX(position), 0) + 1 FROM documents WHERE collection = ?`
	if err := tx.GetContext(ctx, &position, tx.Rebind(next), collection); err != nil {
		return unavailable(fmt.Errorf("next position: %w", err), "write", collection)
	}
	const insert = `INSERT INTO documents (collection, id, position, fields, updated_at) VALUES (?, ?, ?, ?, ?)`
	if _, err := tx.ExecContext(ctx, tx.Rebind(insert), collection, id, position, string(encoded), s.now()); err != nil {
		return unavailable(fmt.Errorf("insert document: %w", err), "write", collection)
	}
	return nil
}

// Close releases the database handle.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

func decodeFields(raw string) (map[string]interface{}, error) {
	fields := make(map[string]interface{})
	if raw == "" {
		return fields, nil
	}
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return nil, err
	}
	if fields == nil {
		// a stored JSON null
		fields = make(map[string]interface{})
	}
	return fields, nil
}
