package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ericfisherdev/selectorpass/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.RecordStore = (*RecordRepo)(nil)

// RecordRepo is the SQLite implementation of the RecordStore port interface.
// Each key is one row; values are stored as JSON text.
type RecordRepo struct {
	db *DB
}

// NewRecordRepo creates a new RecordRepo backed by the given DB.
func NewRecordRepo(db *DB) *RecordRepo {
	return &RecordRepo{db: db}
}

// Get returns the values stored under keys. Missing keys are omitted.
func (r *RecordRepo) Get(ctx context.Context, keys ...string) (map[string]json.RawMessage, error) {
	out := make(map[string]json.RawMessage, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(keys)), ",")
	query := `SELECT key, value FROM records WHERE key IN (` + placeholders + `)`

	args := make([]any, len(keys))
	for i, k := range keys {
		args[i] = k
	}

	rows, err := r.db.Reader.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("get records: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		out[key] = json.RawMessage(value)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}

	return out, nil
}

// Set writes every entry of record in a single transaction. On conflict the
// stored value is replaced.
func (r *RecordRepo) Set(ctx context.Context, record map[string]json.RawMessage) error {
	tx, err := r.db.Writer.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin set records: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const query = `
		INSERT INTO records (key, value, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at
	`

	for key, value := range record {
		if !json.Valid(value) {
			return fmt.Errorf("set record %q: value is not valid JSON", key)
		}
		if _, err := tx.ExecContext(ctx, query, key, string(value)); err != nil {
			return fmt.Errorf("set record %q: %w", key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit set records: %w", err)
	}
	return nil
}
