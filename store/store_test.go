package store

import (
	"context"
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestStore creates an in-memory database with schema and a store on it.
func newTestStore(t *testing.T) (*sql.DB, *Store) {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, CreateSchema(db))
	return db, NewStore(db, "g")
}

func TestPutNodeGeneratesID(t *testing.T) {
	_, s := newTestStore(t)

	id, err := s.PutNode(context.Background(), "", "Person", map[string]any{"name": "Alice"})
	require.NoError(t, err)
	assert.NotEmpty(t, id)
}

func TestPutNodeVersioning(t *testing.T) {
	db, s := newTestStore(t)
	ctx := context.Background()

	_, err := s.PutNode(ctx, "p1", "Person", map[string]any{"name": "Alice", "age": 30})
	require.NoError(t, err)
	_, err = s.PutNode(ctx, "p1", "Person", map[string]any{"name": "Alice", "age": 31})
	require.NoError(t, err)

	var total, current, version int
	require.NoError(t, db.QueryRow(
		`SELECT COUNT(*) FROM nodes WHERE graph_id = 'g' AND id = 'p1'`).Scan(&total))
	require.NoError(t, db.QueryRow(
		`SELECT COUNT(*) FROM nodes WHERE graph_id = 'g' AND id = 'p1' AND valid_to IS NULL`).Scan(&current))
	require.NoError(t, db.QueryRow(
		`SELECT version FROM nodes WHERE graph_id = 'g' AND id = 'p1' AND valid_to IS NULL`).Scan(&version))

	assert.Equal(t, 2, total)
	assert.Equal(t, 1, current)
	assert.Equal(t, 2, version)
}

func TestPutEdgeAndDelete(t *testing.T) {
	db, s := newTestStore(t)
	ctx := context.Background()

	_, err := s.PutNode(ctx, "p1", "Person", nil)
	require.NoError(t, err)
	_, err = s.PutNode(ctx, "p2", "Person", nil)
	require.NoError(t, err)

	eid, err := s.PutEdge(ctx, "", "knows", "p1", "p2", map[string]any{"since": "2020"})
	require.NoError(t, err)
	require.NotEmpty(t, eid)

	require.NoError(t, s.DeleteEdge(ctx, eid))

	var deleted sql.NullString
	require.NoError(t, db.QueryRow(
		`SELECT deleted_at FROM edges WHERE graph_id = 'g' AND id = ? AND valid_to IS NULL`, eid).Scan(&deleted))
	assert.True(t, deleted.Valid)

	// Double delete reports not found.
	assert.Error(t, s.DeleteEdge(ctx, eid))
	assert.Error(t, s.DeleteNode(ctx, "ghost"))
}
