package query

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvp-joe/typequery/qerr"
)

func TestSimpleFilterAndProjection(t *testing.T) {
	e, s := newTestEngine(t)
	seedPeople(t, s)

	q := e.From("Person", "p").
		WhereNode("p", func(p Fields) Predicate { return p.Number("age").Gt(28) }).
		OrderBy("p", "age", Asc).
		Select(func(c Ctx) any {
			return map[string]any{"n": c.Node("p").Get("name")}
		})

	results, err := q.Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []any{
		map[string]any{"n": "Alice"},
		map[string]any{"n": "Carol"},
	}, results)
}

func TestSelectiveAndFullPathsAgree(t *testing.T) {
	e, s := newTestEngine(t)
	seedPeople(t, s)

	build := func() *ExecutableQuery {
		return e.From("Person", "p").
			WhereNode("p", func(p Fields) Predicate { return p.Number("age").Gt(28) }).
			OrderBy("p", "age", Asc).
			Select(func(c Ctx) any {
				p := c.Node("p")
				return map[string]any{"name": p.Get("name"), "age": p.Get("age")}
			})
	}

	optimized := build()
	full := build()
	full.optimizeDisabled = true

	got, err := optimized.Execute(context.Background())
	require.NoError(t, err)
	want, err := full.Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, map[string]any{"name": "Alice", "age": float64(30)}, got[0])
}

func TestOptionalTraversalAbsentEdge(t *testing.T) {
	e, s := newTestEngine(t)
	seedPeople(t, s)
	seedKnows(t, s, "e1", "p1", "p2", nil)

	q := e.From("Person", "p").
		OptionalTraverse("knows", "e").To("Person", "f").
		OrderBy("p", "name", Asc).
		Select(func(c Ctx) any {
			friend := "—"
			if f := c.Node("f"); f != nil {
				friend = f.Get("name").(string)
			}
			return map[string]any{"self": c.Node("p").Get("name"), "friend": friend}
		})

	results, err := q.Execute(context.Background())
	require.NoError(t, err)
	// Bob and Carol have no outgoing knows; LEFT JOIN keeps them with an
	// absent friend.
	assert.Equal(t, []any{
		map[string]any{"self": "Alice", "friend": "Bob"},
		map[string]any{"self": "Bob", "friend": "—"},
		map[string]any{"self": "Carol", "friend": "—"},
	}, results)
}

func TestWholeAliasSelectionFallsBack(t *testing.T) {
	e, s := newTestEngine(t)
	seedPeople(t, s)

	q := e.From("Person", "p").
		OrderBy("p", "age", Asc).
		Select(func(c Ctx) any {
			return map[string]any{"whole": c.Node("p")}
		})

	results, err := q.Execute(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 3)

	// The tracking pass detected a whole-alias return and took the
	// full-blob path: the mapped nodes carry complete data.
	first := results[0].(map[string]any)["whole"].(*SelectableNode)
	assert.Equal(t, "p2", first.ID())
	assert.Equal(t, "Person", first.Kind())
	assert.Equal(t, "Bob", first.Get("name"))
	assert.Equal(t, int64(1), first.Meta().Version)
	assert.True(t, q.optimizeDisabled)
}

func TestRuntimeSelectiveFallback(t *testing.T) {
	e, s := newTestEngine(t)
	seedPeople(t, s)

	// The tracking placeholders never equal "Carol", so the nick read is
	// missing from the plan and only surfaces on real rows; the executor
	// must fall back to the full-blob path and memoize that.
	q := e.From("Person", "p").
		OrderBy("p", "name", Asc).
		Select(func(c Ctx) any {
			p := c.Node("p")
			if p.Get("name") == "Carol" {
				return map[string]any{"nick": p.Get("nick")}
			}
			return map[string]any{"name": p.Get("name")}
		})

	results, err := q.Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []any{
		map[string]any{"name": "Alice"},
		map[string]any{"name": "Bob"},
		map[string]any{"nick": nil},
	}, results)
	assert.True(t, q.optimizeDisabled)

	// Subsequent executions skip the optimized attempt and still succeed.
	again, err := q.Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, results, again)
}

func TestEdgeAccess(t *testing.T) {
	e, s := newTestEngine(t)
	seedPeople(t, s)
	seedKnows(t, s, "e1", "p1", "p2", map[string]any{"since": "2019"})

	q := e.From("Person", "p").
		Traverse("knows", "e").To("Person", "f").
		Select(func(c Ctx) any {
			edge := c.Edge("e")
			return map[string]any{
				"from":  edge.FromID(),
				"to":    edge.ToID(),
				"since": edge.Get("since"),
				"kind":  edge.Kind(),
			}
		})

	results, err := q.Execute(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, map[string]any{
		"from":  "p1",
		"to":    "p2",
		"since": "2019",
		"kind":  "knows",
	}, results[0])
}

func TestExecuteRejectsParameterReferences(t *testing.T) {
	e, s := newTestEngine(t)
	seedPeople(t, s)

	q := e.From("Person", "p").
		WhereNode("p", func(p Fields) Predicate { return p.String("name").Eq(Param("n")) }).
		Select(func(c Ctx) any { return c.Node("p").Get("age") })

	_, err := q.Execute(context.Background())
	require.Error(t, err)
	assert.True(t, qerr.IsKind(err, qerr.KindValidation))
}

func TestPredicateOperators(t *testing.T) {
	e, s := newTestEngine(t)
	ctx := context.Background()
	seedPeople(t, s)

	run := func(t *testing.T, fn func(p Fields) Predicate) []string {
		t.Helper()
		q := e.From("Person", "p").
			WhereNode("p", fn).
			OrderBy("p", "name", Asc).
			Select(func(c Ctx) any { return c.Node("p").Get("name") })
		results, err := q.Execute(ctx)
		require.NoError(t, err)
		names := make([]string, len(results))
		for i, r := range results {
			names[i] = r.(string)
		}
		return names
	}

	t.Run("between", func(t *testing.T) {
		assert.Equal(t, []string{"Alice", "Bob"},
			run(t, func(p Fields) Predicate { return p.Number("age").Between(20, 32) }))
	})
	t.Run("in", func(t *testing.T) {
		assert.Equal(t, []string{"Bob", "Carol"},
			run(t, func(p Fields) Predicate { return p.String("name").In("Bob", "Carol") }))
	})
	t.Run("notIn", func(t *testing.T) {
		assert.Equal(t, []string{"Alice"},
			run(t, func(p Fields) Predicate { return p.String("name").NotIn("Bob", "Carol") }))
	})
	t.Run("contains", func(t *testing.T) {
		assert.Equal(t, []string{"Alice"},
			run(t, func(p Fields) Predicate { return p.String("name").Contains("lic") }))
	})
	t.Run("startsWith", func(t *testing.T) {
		assert.Equal(t, []string{"Carol"},
			run(t, func(p Fields) Predicate { return p.String("name").StartsWith("Car") }))
	})
	t.Run("endsWith", func(t *testing.T) {
		assert.Equal(t, []string{"Bob"},
			run(t, func(p Fields) Predicate { return p.String("name").EndsWith("ob") }))
	})
	t.Run("and-or-not", func(t *testing.T) {
		assert.Equal(t, []string{"Alice", "Carol"},
			run(t, func(p Fields) Predicate {
				return Or(p.String("name").Eq("Alice"), p.Number("age").Gt(35)).
					And(Not(p.String("name").Eq("Bob")))
			}))
	})
	t.Run("isNull", func(t *testing.T) {
		assert.Equal(t, []string{"Alice", "Bob", "Carol"},
			run(t, func(p Fields) Predicate { return p.String("nick").IsNull() }))
	})
}

func TestArrayAndObjectPredicates(t *testing.T) {
	e, s := newTestEngine(t)
	ctx := context.Background()
	_, err := s.PutNode(ctx, "p1", "Person", map[string]any{
		"name": "Alice", "age": 30,
		"tags":    []any{"admin", "eng"},
		"address": map[string]any{"city": "Berlin"},
	})
	require.NoError(t, err)
	_, err = s.PutNode(ctx, "p2", "Person", map[string]any{
		"name": "Bob", "age": 25,
		"tags":    []any{},
		"address": map[string]any{"city": "Paris"},
	})
	require.NoError(t, err)

	run := func(t *testing.T, fn func(p Fields) Predicate) []string {
		t.Helper()
		q := e.From("Person", "p").
			WhereNode("p", fn).
			OrderBy("p", "name", Asc).
			Select(func(c Ctx) any { return c.Node("p").Get("name") })
		results, err := q.Execute(ctx)
		require.NoError(t, err)
		names := make([]string, len(results))
		for i, r := range results {
			names[i] = r.(string)
		}
		return names
	}

	t.Run("arrayContains", func(t *testing.T) {
		assert.Equal(t, []string{"Alice"},
			run(t, func(p Fields) Predicate { return p.Array("tags").Contains("admin") }))
	})
	t.Run("arrayIsEmpty", func(t *testing.T) {
		assert.Equal(t, []string{"Bob"},
			run(t, func(p Fields) Predicate { return p.Array("tags").IsEmpty() }))
	})
	t.Run("arrayLength", func(t *testing.T) {
		assert.Equal(t, []string{"Alice"},
			run(t, func(p Fields) Predicate { return p.Array("tags").LengthGte(2) }))
	})
	t.Run("containsAny", func(t *testing.T) {
		assert.Equal(t, []string{"Alice"},
			run(t, func(p Fields) Predicate { return p.Array("tags").ContainsAny("ghost", "eng") }))
	})
	t.Run("pathEquals", func(t *testing.T) {
		assert.Equal(t, []string{"Alice"},
			run(t, func(p Fields) Predicate { return p.Object("address").Path("city").Equals("Berlin") }))
	})
	t.Run("hasKey", func(t *testing.T) {
		assert.Equal(t, []string{"Alice", "Bob"},
			run(t, func(p Fields) Predicate { return p.Object("address").HasKey("city") }))
	})
	t.Run("pathIsNotNull", func(t *testing.T) {
		assert.Equal(t, []string{"Alice", "Bob"},
			run(t, func(p Fields) Predicate { return p.Object("address").Path("city").IsNotNull() }))
	})
}

func TestPathEqualsRejectsNonScalarTarget(t *testing.T) {
	e, _ := newTestEngine(t)

	q := e.From("Person", "p").
		WhereNode("p", func(p Fields) Predicate {
			// address itself is an object; equality on it must fail fast.
			return p.Object("address").Path().Equals(map[string]any{"city": "x"})
		}).
		Select(func(c Ctx) any { return c.Node("p").Get("name") })

	_, err := q.Execute(context.Background())
	require.Error(t, err)
	assert.True(t, qerr.IsKind(err, qerr.KindValidation))
}

func TestExistsSubquery(t *testing.T) {
	e, s := newTestEngine(t)
	ctx := context.Background()
	seedPeople(t, s)
	seedKnows(t, s, "e1", "p1", "p2", nil)

	sub, err := e.From("Person", "sq").
		WhereNode("sq", func(p Fields) Predicate { return p.Number("age").Gt(100) }).
		ToAst()
	require.NoError(t, err)

	q := e.From("Person", "p").
		WhereNode("p", func(p Fields) Predicate {
			return p.Number("age").Gt(0).And(NotExists(sub))
		}).
		OrderBy("p", "name", Asc).
		Select(func(c Ctx) any { return c.Node("p").Get("name") })

	results, err := q.Execute(ctx)
	require.NoError(t, err)
	assert.Len(t, results, 3)
}

func TestInSubquery(t *testing.T) {
	e, s := newTestEngine(t)
	ctx := context.Background()
	seedPeople(t, s)
	seedKnows(t, s, "e1", "p1", "p2", nil)

	// ids of every person (the subquery has no traversal)
	sub, err := e.From("Person", "k").ToAst()
	require.NoError(t, err)

	q := e.From("Person", "p").
		WhereNode("p", func(p Fields) Predicate { return p.ID().InSubquery(sub) }).
		OrderBy("p", "name", Asc).
		Select(func(c Ctx) any { return c.Node("p").Get("name") })

	results, err := q.Execute(ctx)
	require.NoError(t, err)
	assert.Equal(t, []any{"Alice", "Bob", "Carol"}, results)
}

func TestTemporalModes(t *testing.T) {
	e, s := newTestEngine(t)
	ctx := context.Background()

	_, err := s.PutNode(ctx, "p1", "Person", map[string]any{"name": "Alice", "age": 30})
	require.NoError(t, err)
	time.Sleep(10 * time.Millisecond)
	asOf := time.Now()
	time.Sleep(10 * time.Millisecond)
	_, err = s.PutNode(ctx, "p1", "Person", map[string]any{"name": "Alice", "age": 31})
	require.NoError(t, err)

	ages := func(t *testing.T, q *ExecutableQuery) []any {
		t.Helper()
		results, err := q.Execute(ctx)
		require.NoError(t, err)
		return results
	}

	sel := func(c Ctx) any { return c.Node("p").Get("age") }

	current := ages(t, e.From("Person", "p").Select(sel))
	assert.Equal(t, []any{float64(31)}, current)

	all := ages(t, e.From("Person", "p").TemporalAll().OrderBy("p", "age", Asc).Select(sel))
	assert.Equal(t, []any{float64(30), float64(31)}, all)

	old := ages(t, e.From("Person", "p").TemporalAsOf(asOf).Select(sel))
	assert.Equal(t, []any{float64(30)}, old)
}

func TestSoftDeletedNodesAreInvisible(t *testing.T) {
	e, s := newTestEngine(t)
	ctx := context.Background()
	seedPeople(t, s)
	require.NoError(t, s.DeleteNode(ctx, "p2"))

	results, err := e.From("Person", "p").
		OrderBy("p", "name", Asc).
		Select(func(c Ctx) any { return c.Node("p").Get("name") }).
		Execute(ctx)
	require.NoError(t, err)
	assert.Equal(t, []any{"Alice", "Carol"}, results)
}
