package sqlite

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDB_FileSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "selectorpass.db")
	ctx := context.Background()

	db, err := NewDB(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, path, db.Path())

	version, err := RunMigrations(db.Writer)
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)

	require.NoError(t, NewRecordRepo(db).Set(ctx, map[string]json.RawMessage{
		"view_state": json.RawMessage(`{"addDomainExpanded":true}`),
	}))
	require.NoError(t, db.Close())

	db, err = NewDB(ctx, path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	version, err = RunMigrations(db.Writer)
	require.NoError(t, err, "migrations are idempotent")
	assert.Equal(t, uint(1), version)

	got, err := NewRecordRepo(db).Get(ctx, "view_state")
	require.NoError(t, err)
	assert.JSONEq(t, `{"addDomainExpanded":true}`, string(got["view_state"]))
}
