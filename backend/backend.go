// Package backend defines the execution surface the query engine drives.
// Implementations run compiled SQL and return rows as column-name to value
// maps; they own connection lifecycle and cancellation.
package backend

import (
	"context"

	"github.com/mvp-joe/typequery/dialect"
)

// Row is one result row keyed by output column name.
type Row map[string]any

// Backend executes compiled SQL.
type Backend interface {
	// Execute runs a compiled statement and returns its rows in the order
	// the database produced them.
	Execute(ctx context.Context, compiled *dialect.CompiledSql) ([]Row, error)
	// Close releases the backend's resources.
	Close() error
}

// RawExecutor is the optional fast path for prepared queries: SQL text plus
// fully bound parameters, skipping recompilation.
type RawExecutor interface {
	ExecuteRaw(ctx context.Context, sqlText string, params []any) ([]Row, error)
}

// SqlExtractor optionally exposes a compiled statement's text and
// parameters so prepared queries can pre-extract them.
type SqlExtractor interface {
	CompileSql(compiled *dialect.CompiledSql) (string, []any, error)
}
