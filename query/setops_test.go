package query

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func namesQuery(e *Engine, fn func(p Fields) Predicate) *ExecutableQuery {
	b := e.From("Person", "p")
	if fn != nil {
		b = b.WhereNode("p", fn)
	}
	return b.OrderBy("p", "name", Asc).
		Select(func(c Ctx) any { return c.Node("p").Get("name") })
}

func TestUnion(t *testing.T) {
	e, s := newTestEngine(t)
	ctx := context.Background()
	seedPeople(t, s)

	young := namesQuery(e, func(p Fields) Predicate { return p.Number("age").Lt(31) })
	named := namesQuery(e, func(p Fields) Predicate { return p.String("name").Eq("Alice") })

	results, err := young.Union(named).Execute(ctx)
	require.NoError(t, err)

	names := map[string]int{}
	for _, r := range results {
		names[r.(string)]++
	}
	// Alice appears in both sides; UNION deduplicates.
	assert.Equal(t, map[string]int{"Alice": 1, "Bob": 1}, names)
}

func TestUnionAllKeepsDuplicates(t *testing.T) {
	e, s := newTestEngine(t)
	ctx := context.Background()
	seedPeople(t, s)

	alice := func(p Fields) Predicate { return p.String("name").Eq("Alice") }

	results, err := namesQuery(e, alice).UnionAll(namesQuery(e, alice)).Execute(ctx)
	require.NoError(t, err)
	assert.Equal(t, []any{"Alice", "Alice"}, results)
}

func TestIntersectAndExcept(t *testing.T) {
	e, s := newTestEngine(t)
	ctx := context.Background()
	seedPeople(t, s)

	all := func() *ExecutableQuery { return namesQuery(e, nil) }
	young := func() *ExecutableQuery {
		return namesQuery(e, func(p Fields) Predicate { return p.Number("age").Lt(31) })
	}

	inter, err := all().Intersect(young()).Execute(ctx)
	require.NoError(t, err)
	names := map[string]int{}
	for _, r := range inter {
		names[r.(string)]++
	}
	assert.Equal(t, map[string]int{"Alice": 1, "Bob": 1}, names)

	except, err := all().Except(young()).Execute(ctx)
	require.NoError(t, err)
	assert.Equal(t, []any{"Carol"}, except)
}

func TestUnionAssociativity(t *testing.T) {
	e, s := newTestEngine(t)
	ctx := context.Background()
	seedPeople(t, s)

	q := func(name string) *ExecutableQuery {
		return namesQuery(e, func(p Fields) Predicate { return p.String("name").Eq(name) })
	}

	leftDeep, err := q("Alice").UnionAll(q("Bob")).UnionAll(q("Carol")).Execute(ctx)
	require.NoError(t, err)
	rightish, err := q("Alice").UnionAll(q("Bob")).Execute(ctx)
	require.NoError(t, err)
	tail, err := q("Carol").Execute(ctx)
	require.NoError(t, err)

	counts := func(items []any) map[string]int {
		out := map[string]int{}
		for _, r := range items {
			out[r.(string)]++
		}
		return out
	}
	combined := counts(rightish)
	for k, v := range counts(tail) {
		combined[k] += v
	}
	assert.Equal(t, combined, counts(leftDeep))
}

func TestSetOperationLimit(t *testing.T) {
	e, s := newTestEngine(t)
	ctx := context.Background()
	seedPeople(t, s)

	results, err := namesQuery(e, nil).UnionAll(namesQuery(e, nil)).Limit(4).Execute(ctx)
	require.NoError(t, err)
	assert.Len(t, results, 4)
}
