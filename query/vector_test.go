package query

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvp-joe/typequery/ast"
)

func TestVectorSimilaritySearch(t *testing.T) {
	e, s := newTestEngine(t)
	ctx := context.Background()
	_, err := s.PutNode(ctx, "p1", "Person", map[string]any{"name": "Alice", "age": 30, "vec": []any{1, 0, 0}})
	require.NoError(t, err)
	_, err = s.PutNode(ctx, "p2", "Person", map[string]any{"name": "Bob", "age": 25, "vec": []any{0, 1, 0}})
	require.NoError(t, err)
	_, err = s.PutNode(ctx, "p3", "Person", map[string]any{"name": "Carol", "age": 40})
	require.NoError(t, err)

	q := e.From("Person", "p").
		WhereNode("p", func(p Fields) Predicate {
			return p.Embedding("vec").SimilarTo([]float32{1, 0, 0}, 2)
		}).
		Select(func(c Ctx) any { return c.Node("p").Get("name") })

	results, err := q.Execute(ctx)
	require.NoError(t, err)
	// Nearest first; Carol has no embedding and is excluded.
	assert.Equal(t, []any{"Alice", "Bob"}, results)
}

func TestVectorSimilarityMinScore(t *testing.T) {
	e, s := newTestEngine(t)
	ctx := context.Background()
	_, err := s.PutNode(ctx, "p1", "Person", map[string]any{"name": "Alice", "vec": []any{1, 0, 0}})
	require.NoError(t, err)
	_, err = s.PutNode(ctx, "p2", "Person", map[string]any{"name": "Bob", "vec": []any{0, 1, 0}})
	require.NoError(t, err)

	minScore := 0.5
	q := e.From("Person", "p").
		WhereNode("p", func(p Fields) Predicate {
			return p.Embedding("vec").SimilarTo([]float32{1, 0, 0}, 10, SimilarToOptions{
				Metric:   ast.MetricCosine,
				MinScore: &minScore,
			})
		}).
		Select(func(c Ctx) any { return c.Node("p").Get("name") })

	results, err := q.Execute(ctx)
	require.NoError(t, err)
	assert.Equal(t, []any{"Alice"}, results)
}

func TestVectorCombinedWithScalarFilter(t *testing.T) {
	e, s := newTestEngine(t)
	ctx := context.Background()
	_, err := s.PutNode(ctx, "p1", "Person", map[string]any{"name": "Alice", "age": 30, "vec": []any{1, 0, 0}})
	require.NoError(t, err)
	_, err = s.PutNode(ctx, "p2", "Person", map[string]any{"name": "Bob", "age": 25, "vec": []any{1, 0, 0}})
	require.NoError(t, err)

	q := e.From("Person", "p").
		WhereNode("p", func(p Fields) Predicate {
			return And(
				p.Number("age").Gt(28),
				p.Embedding("vec").SimilarTo([]float32{1, 0, 0}, 5),
			)
		}).
		Select(func(c Ctx) any { return c.Node("p").Get("name") })

	results, err := q.Execute(ctx)
	require.NoError(t, err)
	assert.Equal(t, []any{"Alice"}, results)
}
