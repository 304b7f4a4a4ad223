// Package postgres compiles query ASTs to PostgreSQL SQL. JSON properties
// are read with jsonb path operators, variable-length traversals use WITH
// RECURSIVE over text[] visited paths, and vector similarity uses pgvector
// distance operators.
package postgres

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

// Compiler is the PostgreSQL dialect adapter.
type Compiler struct {
	gen sqlgen.Generator
}

// New creates the PostgreSQL compiler.
func New() *Compiler {
	c := &Compiler{}
	c.gen = sqlgen.Generator{F: flavor{}}
	return c
}

// Name implements dialect.Compiler.
func (c *Compiler) Name() string { return "postgres" }

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

func (flavor) Name() string                      { return "postgres" }
func (flavor) Placeholder() sq.PlaceholderFormat { return sq.Dollar }
func (flavor) SupportsVectors() bool             { return true }

// pgPath renders a '{a,b}' jsonb path literal.
func pgPath(path []string) string {
	quoted := make([]string, len(path))
	for i, seg := range path {
		quoted[i] = strings.ReplaceAll(strings.ReplaceAll(seg, `\`, `\\`), `"`, `\"`)
		if strings.ContainsAny(quoted[i], ",{} ") {
			quoted[i] = `"` + quoted[i] + `"`
		}
	}
	return "{" + strings.Join(quoted, ",") + "}"
}

func (flavor) JSONValue(col string, path []string, vt schema.ValueType) string {
	text := fmt.Sprintf("%s #>> '%s'", col, pgPath(path))
	switch vt {
	case schema.TypeNumber:
		return fmt.Sprintf("(%s)::numeric", text)
	case schema.TypeBoolean:
		return fmt.Sprintf("(%s)::boolean", text)
	case schema.TypeDate:
		return fmt.Sprintf("(%s)::timestamptz", text)
	case schema.TypeEmbedding:
		return fmt.Sprintf("(%s)::vector", text)
	default:
		return text
	}
}

func (flavor) JSONText(col string, path []string) string {
	return fmt.Sprintf("%s #>> '%s'", col, pgPath(path))
}

func (flavor) JSONArrayLength(col string, path []string) string {
	return fmt.Sprintf("jsonb_array_length(%s #> '%s')", col, pgPath(path))
}

func (flavor) JSONPathExists(col string, path []string) string {
	return fmt.Sprintf("(%s #> '%s') IS NOT NULL", col, pgPath(path))
}

func (flavor) JSONPathIsJSONNull(col string, path []string) string {
	return fmt.Sprintf("(%s #> '%s') = 'null'::jsonb", col, pgPath(path))
}

// jsonArray encodes values as a JSON array literal for jsonb containment.
func jsonArray(values []any) (string, error) {
	raw, err := json.Marshal(values)
	if err != nil {
		return "", fmt.Errorf("encode containment array: %w", err)
	}
	return string(raw), nil
}

func (f flavor) ArrayPredicate(col string, path []string, op ast.ArrayOpKind, values []any, length int) (string, []any, error) {
	p := pgPath(path)
	contained := fmt.Sprintf("(%s #> '%s') @> ?::jsonb", col, p)
	switch op {
	case ast.ArrContains, ast.ArrContainsAll:
		arr, err := jsonArray(values)
		if err != nil {
			return "", nil, err
		}
		return contained, []any{arr}, nil
	case ast.ArrContainsAny:
		if len(values) == 0 {
			return "1=0", nil, nil
		}
		parts := make([]string, len(values))
		args := make([]any, len(values))
		for i, v := range values {
			arr, err := jsonArray([]any{v})
			if err != nil {
				return "", nil, err
			}
			parts[i] = contained
			args[i] = arr
		}
		return "(" + strings.Join(parts, " OR ") + ")", args, nil
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
		return "", nil, &qerr.UnsupportedPredicateError{Dialect: "postgres", Reason: fmt.Sprintf("array op %q", op)}
	}
}

func (flavor) VectorDistance(expr string, metric ast.VectorMetric) (string, error) {
	switch metric {
	case ast.MetricCosine:
		return fmt.Sprintf("(%s <=> ?::vector)", expr), nil
	case ast.MetricL2:
		return fmt.Sprintf("(%s <-> ?::vector)", expr), nil
	case ast.MetricInnerProduct:
		// <#> is negative inner product, so ascending order is correct.
		return fmt.Sprintf("(%s <#> ?::vector)", expr), nil
	default:
		return "", &qerr.UnsupportedPredicateError{Dialect: "postgres", Reason: fmt.Sprintf("vector metric %q", metric)}
	}
}

func (flavor) FormatEmbedding(vec []float32) (any, error) {
	raw, err := json.Marshal(vec)
	if err != nil {
		return nil, fmt.Errorf("format embedding: %w", err)
	}
	// pgvector's text input format matches a JSON number array.
	return string(raw), nil
}

func (flavor) LikeOperator(caseInsensitive bool) string {
	if caseInsensitive {
		return "ILIKE"
	}
	return "LIKE"
}

func (flavor) PathInit(fromExpr, toExpr string) string {
	return fmt.Sprintf("ARRAY[%s, %s]", fromExpr, toExpr)
}

func (flavor) PathAppend(pathExpr, toExpr string) string {
	return fmt.Sprintf("%s || %s", pathExpr, toExpr)
}

func (flavor) PathExcludes(pathExpr, idExpr string) string {
	return fmt.Sprintf("NOT (%s = ANY(%s))", idExpr, pathExpr)
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
