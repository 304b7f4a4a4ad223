// Package sqlitedb is the SQLite execution backend. It registers the
// sqlite-vec extension so the sqlite dialect's vec_distance_* calls
// resolve, and returns rows as generic column maps.
package sqlitedb

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"

	"github.com/mvp-joe/typequery/backend"
	"github.com/mvp-joe/typequery/dialect"
)

var vecOnce sync.Once

// InitVectorExtension registers sqlite-vec with all future connections.
// Idempotent; called automatically by Open.
func InitVectorExtension() {
	vecOnce.Do(sqlite_vec.Auto)
}

// Backend executes compiled SQL against a SQLite database.
type Backend struct {
	db     *sql.DB
	ownsDB bool
}

// Open creates a backend on a new database handle. Use ":memory:" for an
// in-memory database.
func Open(path string) (*Backend, error) {
	InitVectorExtension()
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	return &Backend{db: db, ownsDB: true}, nil
}

// Wrap creates a backend over an existing handle owned by the caller.
func Wrap(db *sql.DB) *Backend {
	InitVectorExtension()
	return &Backend{db: db}
}

// DB exposes the underlying handle (schema creation, seeding).
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
	return scanRows(rows)
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

// scanRows materializes rows as column maps, normalizing []byte to string
// so JSON blobs are directly decodable.
func scanRows(rows *sql.Rows) ([]backend.Row, error) {
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
