package query

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvp-joe/typequery/backend"
	"github.com/mvp-joe/typequery/dialect"
	"github.com/mvp-joe/typequery/qerr"
)

func preparedAgeByName(t *testing.T, e *Engine) *PreparedQuery {
	t.Helper()
	p, err := e.From("Person", "p").
		WhereNode("p", func(f Fields) Predicate { return f.String("name").Eq(Param("n")) }).
		Select(func(c Ctx) any { return c.Node("p").Get("age") }).
		Prepare()
	require.NoError(t, err)
	return p
}

func TestPreparedQueryReuse(t *testing.T) {
	e, s := newTestEngine(t)
	ctx := context.Background()
	seedPeople(t, s)

	p := preparedAgeByName(t, e)
	assert.Equal(t, []string{"n"}, p.ParamNames())

	alice, err := p.Execute(ctx, map[string]any{"n": "Alice"})
	require.NoError(t, err)
	assert.Equal(t, []any{float64(30)}, alice)

	bob, err := p.Execute(ctx, map[string]any{"n": "Bob"})
	require.NoError(t, err)
	assert.Equal(t, []any{float64(25)}, bob)

	// Re-binding the first value again works (no per-call state leaks).
	again, err := p.Execute(ctx, map[string]any{"n": "Alice"})
	require.NoError(t, err)
	assert.Equal(t, alice, again)
}

func TestPreparedBindingValidation(t *testing.T) {
	e, s := newTestEngine(t)
	ctx := context.Background()
	seedPeople(t, s)
	p := preparedAgeByName(t, e)

	t.Run("unexpected", func(t *testing.T) {
		_, err := p.Execute(ctx, map[string]any{"n": "Alice", "extra": 1})
		require.Error(t, err)
		assert.True(t, qerr.IsKind(err, qerr.KindConfiguration))
		var qe *qerr.Error
		require.ErrorAs(t, err, &qe)
		assert.Equal(t, []string{"extra"}, qe.Details["unexpectedParameters"])
	})

	t.Run("missing", func(t *testing.T) {
		_, err := p.Execute(ctx, map[string]any{})
		require.Error(t, err)
		var qe *qerr.Error
		require.ErrorAs(t, err, &qe)
		assert.Equal(t, []string{"n"}, qe.Details["missingParameters"])
	})

	t.Run("nil binding", func(t *testing.T) {
		_, err := p.Execute(ctx, map[string]any{"n": nil})
		require.Error(t, err)
		assert.True(t, qerr.IsKind(err, qerr.KindConfiguration))
	})
}

func TestPreparedStringOpParamMustBeString(t *testing.T) {
	e, s := newTestEngine(t)
	ctx := context.Background()
	seedPeople(t, s)

	p, err := e.From("Person", "p").
		WhereNode("p", func(f Fields) Predicate { return f.String("name").Contains(Param("pat")) }).
		Select(func(c Ctx) any { return c.Node("p").Get("name") }).
		Prepare()
	require.NoError(t, err)

	_, err = p.Execute(ctx, map[string]any{"pat": 42})
	require.Error(t, err)
	assert.True(t, qerr.IsKind(err, qerr.KindConfiguration))

	names, err := p.Execute(ctx, map[string]any{"pat": "aro"})
	require.NoError(t, err)
	assert.Equal(t, []any{"Carol"}, names)
}

func TestPreparedBetweenParams(t *testing.T) {
	e, s := newTestEngine(t)
	ctx := context.Background()
	seedPeople(t, s)

	p, err := e.From("Person", "p").
		WhereNode("p", func(f Fields) Predicate { return f.Number("age").Between(Param("lo"), Param("hi")) }).
		OrderBy("p", "age", Asc).
		Select(func(c Ctx) any { return c.Node("p").Get("name") }).
		Prepare()
	require.NoError(t, err)

	names, err := p.Execute(ctx, map[string]any{"lo": 24, "hi": 31})
	require.NoError(t, err)
	assert.Equal(t, []any{"Bob", "Alice"}, names)

	names, err = p.Execute(ctx, map[string]any{"lo": 39, "hi": 50})
	require.NoError(t, err)
	assert.Equal(t, []any{"Carol"}, names)
}

// noRaw hides the raw fast path so prepared execution has to substitute
// literals and recompile.
type noRaw struct {
	inner backend.Backend
}

func (n noRaw) Execute(ctx context.Context, compiled *dialect.CompiledSql) ([]backend.Row, error) {
	return n.inner.Execute(ctx, compiled)
}

func (n noRaw) Close() error { return n.inner.Close() }

func TestPreparedFallbackWithoutRawPath(t *testing.T) {
	e, s := newTestEngine(t)
	ctx := context.Background()
	seedPeople(t, s)

	e2 := NewEngine(testGraphDef(), e.compiler, noRaw{e.backend})
	q := e2.From("Person", "p").
		WhereNode("p", func(f Fields) Predicate { return f.String("name").Eq(Param("n")) }).
		Select(func(c Ctx) any { return c.Node("p").Get("age") })
	p, err := q.Prepare()
	require.NoError(t, err)

	got, err := p.Execute(ctx, map[string]any{"n": "Carol"})
	require.NoError(t, err)
	assert.Equal(t, []any{float64(40)}, got)
}
