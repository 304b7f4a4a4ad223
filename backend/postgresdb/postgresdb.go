// Package postgresdb is the PostgreSQL execution backend (lib/pq driver).
package postgresdb

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/mvp-joe/typequery/backend"
	"github.com/mvp-joe/typequery/dialect"
)

// Backend executes compiled SQL against a PostgreSQL database.
type Backend struct {
	db     *sql.DB
	ownsDB bool
}

// Open creates a backend from a lib/pq DSN.
func Open(dsn string) (*Backend, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres database: %w", err)
	}
	return &Backend{db: db, ownsDB: true}, nil
}

// Wrap creates a backend over an existing handle owned by the caller.
func Wrap(db *sql.DB) *Backend {
	return &Backend{db: db}
}

// DB exposes the underlying handle.
func (b *Backend) DB() *sql.DB { return b.db }

// Execute implements backend.Backend.
func (b *Backend) Execute(ctx context.Context, compiled *dialect.CompiledSql) ([]backend.Row, error) {
	return b.ExecuteRaw(ctx, compiled.SQL, compiled.Args)
}

// ExecuteRaw implements backend.RawExecutor.
func (b *Backend) ExecuteRaw(ctx context.Context, sqlText string, params []any) ([]backend.Row, error) {
	rows, err := b.db.QueryContext(ctx, sqlText, params...)
	if err != nil {
		return nil, fmt.Errorf("execute query: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read columns: %w", err)
	}
	var out []backend.Row
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		row := make(backend.Row, len(cols))
		for i, c := range cols {
			v := values[i]
			if raw, ok := v.([]byte); ok {
				v = string(raw)
			}
			row[c] = v
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return out, nil
}

// CompileSql implements backend.SqlExtractor.
func (b *Backend) CompileSql(compiled *dialect.CompiledSql) (string, []any, error) {
	return compiled.SQL, compiled.Args, nil
}

// Close implements backend.Backend. Wrapped handles stay open.
func (b *Backend) Close() error {
	if !b.ownsDB {
		return nil
	}
	return b.db.Close()
}
