package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
)

// Store writes nodes and edges for one graph. Writes are versioned: each
// put closes the current row (sets valid_to) and inserts a fresh one, so
// temporal queries can see historical versions.
type Store struct {
	db      *sql.DB
	graphID string
	now     func() time.Time
}

// NewStore creates a store over an open database handle.
func NewStore(db *sql.DB, graphID string) *Store {
	return &Store{db: db, graphID: graphID, now: time.Now}
}

// GraphID returns the graph this store writes to.
func (s *Store) GraphID() string { return s.graphID }

// timeFormat is fixed width so lexicographic order matches chronological
// order in the TEXT temporal columns.
const timeFormat = "2006-01-02T15:04:05.000000000Z"

func (s *Store) timestamp() string {
	return s.now().UTC().Format(timeFormat)
}

func encodeProps(props map[string]any) (string, error) {
	if props == nil {
		return "{}", nil
	}
	raw, err := json.Marshal(props)
	if err != nil {
		return "", fmt.Errorf("encode props: %w", err)
	}
	return string(raw), nil
}

// PutNode inserts a node or a new version of it. An empty id generates one;
// the effective id is returned.
func (s *Store) PutNode(ctx context.Context, id, kind string, props map[string]any) (string, error) {
	if id == "" {
		id = uuid.New().String()
	}
	blob, err := encodeProps(props)
	if err != nil {
		return "", err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() // Safe to call even after commit

	now := s.timestamp()
	version, createdAt, err := s.closeCurrentNode(ctx, tx, id, now)
	if err != nil {
		return "", err
	}
	if createdAt == "" {
		createdAt = now
	}

	insert := squirrel.Insert("nodes").
		Columns("graph_id", "id", "kind", "props", "version", "valid_from", "valid_to", "created_at", "updated_at", "deleted_at").
		Values(s.graphID, id, kind, blob, version+1, now, nil, createdAt, now, nil).
		PlaceholderFormat(squirrel.Question)
	if _, err := insert.RunWith(tx).ExecContext(ctx); err != nil {
		return "", fmt.Errorf("insert node %s: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit node %s: %w", id, err)
	}
	return id, nil
}

// closeCurrentNode ends the node's current version. Returns the closed
// version number (0 when the node is new) and its created_at.
func (s *Store) closeCurrentNode(ctx context.Context, tx *sql.Tx, id, now string) (int, string, error) {
	var version int
	var createdAt string
	err := tx.QueryRowContext(ctx,
		`SELECT version, created_at FROM nodes WHERE graph_id = ? AND id = ? AND valid_to IS NULL`,
		s.graphID, id).Scan(&version, &createdAt)
	if err == sql.ErrNoRows {
		return 0, "", nil
	}
	if err != nil {
		return 0, "", fmt.Errorf("load current node %s: %w", id, err)
	}
	_, err = tx.ExecContext(ctx,
		`UPDATE nodes SET valid_to = ? WHERE graph_id = ? AND id = ? AND valid_to IS NULL`,
		now, s.graphID, id)
	if err != nil {
		return 0, "", fmt.Errorf("close node version %s: %w", id, err)
	}
	return version, createdAt, nil
}

// PutEdge inserts an edge or a new version of it. An empty id generates
// one; the effective id is returned.
func (s *Store) PutEdge(ctx context.Context, id, kind, fromID, toID string, props map[string]any) (string, error) {
	if id == "" {
		id = uuid.New().String()
	}
	blob, err := encodeProps(props)
	if err != nil {
		return "", err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := s.timestamp()
	var createdAt string
	err = tx.QueryRowContext(ctx,
		`SELECT created_at FROM edges WHERE graph_id = ? AND id = ? AND valid_to IS NULL`,
		s.graphID, id).Scan(&createdAt)
	switch {
	case err == sql.ErrNoRows:
		createdAt = now
	case err != nil:
		return "", fmt.Errorf("load current edge %s: %w", id, err)
	default:
		if _, err := tx.ExecContext(ctx,
			`UPDATE edges SET valid_to = ? WHERE graph_id = ? AND id = ? AND valid_to IS NULL`,
			now, s.graphID, id); err != nil {
			return "", fmt.Errorf("close edge version %s: %w", id, err)
		}
	}

	insert := squirrel.Insert("edges").
		Columns("graph_id", "id", "kind", "from_id", "to_id", "props", "valid_from", "valid_to", "created_at", "updated_at", "deleted_at").
		Values(s.graphID, id, kind, fromID, toID, blob, now, nil, createdAt, now, nil).
		PlaceholderFormat(squirrel.Question)
	if _, err := insert.RunWith(tx).ExecContext(ctx); err != nil {
		return "", fmt.Errorf("insert edge %s: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit edge %s: %w", id, err)
	}
	return id, nil
}

// DeleteNode soft-deletes the current version of a node.
func (s *Store) DeleteNode(ctx context.Context, id string) error {
	now := s.timestamp()
	res, err := s.db.ExecContext(ctx,
		`UPDATE nodes SET deleted_at = ?, updated_at = ? WHERE graph_id = ? AND id = ? AND valid_to IS NULL AND deleted_at IS NULL`,
		now, now, s.graphID, id)
	if err != nil {
		return fmt.Errorf("delete node %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("delete node %s: not found", id)
	}
	return nil
}

// DeleteEdge soft-deletes the current version of an edge.
func (s *Store) DeleteEdge(ctx context.Context, id string) error {
	now := s.timestamp()
	res, err := s.db.ExecContext(ctx,
		`UPDATE edges SET deleted_at = ?, updated_at = ? WHERE graph_id = ? AND id = ? AND valid_to IS NULL AND deleted_at IS NULL`,
		now, now, s.graphID, id)
	if err != nil {
		return fmt.Errorf("delete edge %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("delete edge %s: not found", id)
	}
	return nil
}
