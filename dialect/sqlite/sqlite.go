// Package sqlite compiles query ASTs to SQLite SQL. JSON properties are
// read with json_extract, variable-length traversals use WITH RECURSIVE,
// and vector similarity relies on the sqlite-vec extension's distance
// functions (registered by the sqlite backend).
package sqlite

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/mvp-joe/typequery/ast"
	"github.com/mvp-joe/typequery/dialect"
	"github.com/mvp-joe/typequery/dialect/internal/sqlgen"
	"github.com/mvp-joe/typequery/qerr"
	"github.com/mvp-joe/typequery/schema"
)

// Compiler is the SQLite dialect adapter.
type Compiler struct {
	gen sqlgen.Generator
}

// New creates the SQLite compiler.
func New() *Compiler {
	c := &Compiler{}
	c.gen = sqlgen.Generator{F: flavor{}}
	return c
}

// Name implements dialect.Compiler.
func (c *Compiler) Name() string { return "sqlite" }

// CompileQuery implements dialect.Compiler.
func (c *Compiler) CompileQuery(q *ast.Query, graphID string, opts dialect.Options) (*dialect.CompiledSql, error) {
	return c.gen.CompileQuery(q, graphID, opts)
}

// CompileSetOperation implements dialect.Compiler.
func (c *Compiler) CompileSetOperation(op *dialect.SetOperation, graphID string, opts dialect.Options) (*dialect.CompiledSql, error) {
	return c.gen.CompileSetOperation(op, graphID, opts)
}

// SupportsVectors implements dialect.Compiler.
func (c *Compiler) SupportsVectors() bool { return true }

// FormatEmbedding implements dialect.Compiler.
func (c *Compiler) FormatEmbedding(vec []float32) (any, error) {
	return flavor{}.FormatEmbedding(vec)
}

// VectorDistance implements dialect.Compiler.
func (c *Compiler) VectorDistance(column string, metric ast.VectorMetric) (string, error) {
	return flavor{}.VectorDistance(column, metric)
}

// BindValue implements dialect.Compiler.
func (c *Compiler) BindValue(v any) any { return flavor{}.BindValue(v) }

type flavor struct{}

func (flavor) Name() string                      { return "sqlite" }
func (flavor) Placeholder() sq.PlaceholderFormat { return sq.Question }
func (flavor) SupportsVectors() bool             { return true }

// jsonPath renders a '$.a.b' path, quoting segments that are not plain
// identifiers.
func jsonPath(path []string) string {
	var b strings.Builder
	b.WriteString("$")
	for _, seg := range path {
		if isPlainSegment(seg) {
			b.WriteString("." + seg)
		} else {
			b.WriteString(`."` + strings.ReplaceAll(seg, `"`, `""`) + `"`)
		}
	}
	return b.String()
}

func isPlainSegment(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_':
		case r >= '0' && r <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func (flavor) JSONValue(col string, path []string, vt schema.ValueType) string {
	// json_extract already yields typed values (numbers, text, 0/1).
	return fmt.Sprintf("json_extract(%s, '%s')", col, jsonPath(path))
}

func (flavor) JSONText(col string, path []string) string {
	return fmt.Sprintf("json_extract(%s, '%s')", col, jsonPath(path))
}

func (flavor) JSONArrayLength(col string, path []string) string {
	return fmt.Sprintf("json_array_length(%s, '%s')", col, jsonPath(path))
}

func (flavor) JSONPathExists(col string, path []string) string {
	return fmt.Sprintf("json_type(%s, '%s') IS NOT NULL", col, jsonPath(path))
}

func (flavor) JSONPathIsJSONNull(col string, path []string) string {
	return fmt.Sprintf("json_type(%s, '%s') = 'null'", col, jsonPath(path))
}

func (f flavor) ArrayPredicate(col string, path []string, op ast.ArrayOpKind, values []any, length int) (string, []any, error) {
	p := jsonPath(path)
	each := fmt.Sprintf("SELECT 1 FROM json_each(%s, '%s') WHERE json_each.value", col, p)
	switch op {
	case ast.ArrContains:
		return fmt.Sprintf("EXISTS (%s = ?)", each), values, nil
	case ast.ArrContainsAll:
		parts := make([]string, len(values))
		for i := range values {
			parts[i] = fmt.Sprintf("EXISTS (%s = ?)", each)
		}
		return "(" + strings.Join(parts, " AND ") + ")", values, nil
	case ast.ArrContainsAny:
		if len(values) == 0 {
			return "1=0", nil, nil
		}
		holes := strings.TrimSuffix(strings.Repeat("?,", len(values)), ",")
		return fmt.Sprintf("EXISTS (%s IN (%s))", each, holes), values, nil
	case ast.ArrIsEmpty:
		return fmt.Sprintf("COALESCE(%s, 0) = 0", f.JSONArrayLength(col, path)), nil, nil
	case ast.ArrIsNotEmpty:
		return fmt.Sprintf("%s > 0", f.JSONArrayLength(col, path)), nil, nil
	case ast.ArrLengthEq:
		return fmt.Sprintf("%s = ?", f.JSONArrayLength(col, path)), []any{length}, nil
	case ast.ArrLengthGt:
		return fmt.Sprintf("%s > ?", f.JSONArrayLength(col, path)), []any{length}, nil
	case ast.ArrLengthGte:
		return fmt.Sprintf("%s >= ?", f.JSONArrayLength(col, path)), []any{length}, nil
	case ast.ArrLengthLt:
		return fmt.Sprintf("%s < ?", f.JSONArrayLength(col, path)), []any{length}, nil
	case ast.ArrLengthLte:
		return fmt.Sprintf("%s <= ?", f.JSONArrayLength(col, path)), []any{length}, nil
	default:
		return "", nil, &qerr.UnsupportedPredicateError{Dialect: "sqlite", Reason: fmt.Sprintf("array op %q", op)}
	}
}

func (flavor) VectorDistance(expr string, metric ast.VectorMetric) (string, error) {
	switch metric {
	case ast.MetricCosine:
		return fmt.Sprintf("vec_distance_cosine(%s, ?)", expr), nil
	case ast.MetricL2:
		return fmt.Sprintf("vec_distance_L2(%s, ?)", expr), nil
	default:
		// sqlite-vec has no inner-product distance function.
		return "", &qerr.UnsupportedPredicateError{Dialect: "sqlite", Reason: fmt.Sprintf("vector metric %q", metric)}
	}
}

func (flavor) FormatEmbedding(vec []float32) (any, error) {
	// sqlite-vec accepts JSON text vectors.
	raw, err := json.Marshal(vec)
	if err != nil {
		return nil, fmt.Errorf("format embedding: %w", err)
	}
	return string(raw), nil
}

// LikeOperator returns LIKE for both cases: SQLite's LIKE is already
// case-insensitive for ASCII and has no ILIKE.
func (flavor) LikeOperator(bool) string { return "LIKE" }

func (flavor) PathInit(fromExpr, toExpr string) string {
	return fmt.Sprintf("'/' || %s || '/' || %s || '/'", fromExpr, toExpr)
}

func (flavor) PathAppend(pathExpr, toExpr string) string {
	return fmt.Sprintf("%s || %s || '/'", pathExpr, toExpr)
}

func (flavor) PathExcludes(pathExpr, idExpr string) string {
	return fmt.Sprintf("instr(%s, '/' || %s || '/') = 0", pathExpr, idExpr)
}

func (flavor) BindValue(v any) any {
	switch x := v.(type) {
	case time.Time:
		return x.UTC().Format(ast.TimeFormat)
	case []float32, []float64, []string, []int, []any, map[string]any:
		raw, err := json.Marshal(x)
		if err != nil {
			return v
		}
		return string(raw)
	default:
		return v
	}
}
