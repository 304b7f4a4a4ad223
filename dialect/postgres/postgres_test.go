package postgres

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvp-joe/typequery/ast"
	"github.com/mvp-joe/typequery/dialect"
	"github.com/mvp-joe/typequery/schema"
)

func simpleQuery() *ast.Query {
	return &ast.Query{
		GraphID: "g",
		Start:   ast.StartSpec{Alias: "p", Kinds: []string{"Person"}},
		Predicates: []ast.NodePredicate{{
			TargetAlias: "p",
			TargetType:  "node",
			Expr: &ast.Comparison{
				Field: ast.FieldRef{Alias: "p", Path: ast.PathProps, JSONPointer: []string{"age"}, ValueType: schema.TypeNumber},
				Op:    ast.OpGt,
				Value: ast.Lit(28),
			},
		}},
		Projection: []ast.ProjectedField{
			{OutputName: "p__id", Source: ast.FieldRef{Alias: "p", Path: ast.PathID}},
		},
	}
}

func TestCompileUsesDollarPlaceholders(t *testing.T) {
	compiled, err := New().CompileQuery(simpleQuery(), "g", dialect.Options{})
	require.NoError(t, err)

	assert.NotContains(t, compiled.SQL, "?")
	assert.Contains(t, compiled.SQL, "$1")
	assert.Equal(t, strings.Count(compiled.SQL, "$"), len(compiled.Args))
}

func TestCompileJSONPaths(t *testing.T) {
	compiled, err := New().CompileQuery(simpleQuery(), "g", dialect.Options{})
	require.NoError(t, err)
	assert.Contains(t, compiled.SQL, "(p.props #>> '{age}')::numeric")
}

func TestCompileVectorOperators(t *testing.T) {
	q := simpleQuery()
	q.Predicates = []ast.NodePredicate{{
		TargetAlias: "p",
		TargetType:  "node",
		Expr: &ast.VectorSimilarity{
			Field:  ast.FieldRef{Alias: "p", Path: ast.PathProps, JSONPointer: []string{"vec"}, ValueType: schema.TypeEmbedding},
			Vector: []float32{1, 0},
			K:      4,
			Metric: ast.MetricInnerProduct,
		},
	}}
	compiled, err := New().CompileQuery(q, "g", dialect.Options{})
	require.NoError(t, err)

	assert.Contains(t, compiled.SQL, "<#>")
	assert.Contains(t, compiled.SQL, "::vector")
	assert.Contains(t, compiled.SQL, "LIMIT 4")
}

func TestCompileRecursiveUsesArrays(t *testing.T) {
	q := simpleQuery()
	q.Predicates = nil
	q.Traversals = []ast.Traversal{{
		EdgeAlias:     "e",
		EdgeKinds:     []string{"knows"},
		Direction:     ast.DirectionOut,
		NodeAlias:     "f",
		NodeKinds:     []string{"Person"},
		JoinFromAlias: "p",
		JoinEdgeField: "from_id",
		Recursive:     &ast.RecursiveSpec{MinDepth: 1, MaxDepth: 3, CyclePolicy: ast.CyclePrevent},
	}}
	compiled, err := New().CompileQuery(q, "g", dialect.Options{})
	require.NoError(t, err)

	assert.Contains(t, compiled.SQL, "WITH RECURSIVE")
	assert.Contains(t, compiled.SQL, "ARRAY[")
	assert.Contains(t, compiled.SQL, "= ANY(")
}

func TestILike(t *testing.T) {
	q := simpleQuery()
	q.Predicates = []ast.NodePredicate{{
		TargetAlias: "p",
		TargetType:  "node",
		Expr: &ast.StringOp{
			Field:   ast.FieldRef{Alias: "p", Path: ast.PathProps, JSONPointer: []string{"name"}, ValueType: schema.TypeString},
			Op:      ast.StrILike,
			Pattern: ast.Lit("al%"),
		},
	}}
	compiled, err := New().CompileQuery(q, "g", dialect.Options{})
	require.NoError(t, err)
	assert.Contains(t, compiled.SQL, "ILIKE")
}
