// Package store owns the physical layout the query engine compiles
// against — the nodes and edges tables — plus the minimal CRUD the engine's
// tests and embedders use to populate a graph. The query engine itself
// never imports this package.
package store

import (
	"database/sql"
	"fmt"
)

const createNodesTable = `
CREATE TABLE IF NOT EXISTS nodes (
	graph_id   TEXT NOT NULL,
	id         TEXT NOT NULL,
	kind       TEXT NOT NULL,
	props      TEXT NOT NULL DEFAULT '{}',
	version    INTEGER NOT NULL DEFAULT 1,
	valid_from TEXT NOT NULL,
	valid_to   TEXT,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	deleted_at TEXT,
	PRIMARY KEY (graph_id, id, valid_from)
)`

const createEdgesTable = `
CREATE TABLE IF NOT EXISTS edges (
	graph_id   TEXT NOT NULL,
	id         TEXT NOT NULL,
	kind       TEXT NOT NULL,
	from_id    TEXT NOT NULL,
	to_id      TEXT NOT NULL,
	props      TEXT NOT NULL DEFAULT '{}',
	valid_from TEXT NOT NULL,
	valid_to   TEXT,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	deleted_at TEXT,
	PRIMARY KEY (graph_id, id, valid_from)
)`

// getAllIndexes returns the secondary indexes the compiler's access paths
// rely on (kind filters and join columns).
func getAllIndexes() []string {
	return []string{
		`CREATE INDEX IF NOT EXISTS idx_nodes_kind ON nodes(graph_id, kind)`,
		`CREATE INDEX IF NOT EXISTS idx_nodes_current ON nodes(graph_id, id) WHERE valid_to IS NULL`,
		`CREATE INDEX IF NOT EXISTS idx_edges_kind ON edges(graph_id, kind)`,
		`CREATE INDEX IF NOT EXISTS idx_edges_from ON edges(graph_id, from_id)`,
		`CREATE INDEX IF NOT EXISTS idx_edges_to ON edges(graph_id, to_id)`,
	}
}

// CreateSchema creates the nodes and edges tables plus their indexes.
// All DDL runs in one transaction.
func CreateSchema(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin schema transaction: %w", err)
	}
	defer tx.Rollback() // Safe to call even after commit

	tables := []struct {
		name string
		ddl  string
	}{
		{"nodes", createNodesTable},
		{"edges", createEdgesTable},
	}
	for _, table := range tables {
		if _, err := tx.Exec(table.ddl); err != nil {
			return fmt.Errorf("create %s table: %w", table.name, err)
		}
	}
	for i, idx := range getAllIndexes() {
		if _, err := tx.Exec(idx); err != nil {
			return fmt.Errorf("create index %d: %w", i+1, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema transaction: %w", err)
	}
	return nil
}
