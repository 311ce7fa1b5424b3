package driven

import (
	"context"
	"encoding/json"
)

// RecordStore is the driven port for the persistent key-value substrate.
// It enforces no schema; values are opaque JSON documents.
type RecordStore interface {
	// Get returns the stored values for the requested keys. Keys with no
	// stored value are absent from the result.
	Get(ctx context.Context, keys ...string) (map[string]json.RawMessage, error)

	// Set writes every key in record, replacing existing values.
	Set(ctx context.Context, record map[string]json.RawMessage) error
}
