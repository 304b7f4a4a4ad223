package query

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvp-joe/typequery/qerr"
	"github.com/mvp-joe/typequery/schema"
)

func TestBuilderAliasValidation(t *testing.T) {
	e, _ := newTestEngine(t)

	cases := map[string]*Builder{
		"reserved keyword": e.From("Person", "select"),
		"cte prefix":       e.From("Person", "cte_p"),
		"bad shape":        e.From("Person", "1p"),
	}
	for name, b := range cases {
		_, err := b.ToAst()
		require.Error(t, err, name)
		assert.True(t, qerr.IsKind(err, qerr.KindValidation), name)
	}
}

func TestBuilderAliasUniqueness(t *testing.T) {
	e, _ := newTestEngine(t)

	_, err := e.From("Person", "p").
		Traverse("knows", "p").To("Person", "f").
		ToAst()
	require.Error(t, err)
	assert.True(t, qerr.IsKind(err, qerr.KindValidation))

	_, err = e.From("Person", "p").
		Traverse("knows", "e").To("Person", "e").
		ToAst()
	require.Error(t, err)
}

func TestBuilderUnknownKinds(t *testing.T) {
	e, _ := newTestEngine(t)

	_, err := e.From("Ghost", "p").ToAst()
	require.Error(t, err)
	assert.True(t, qerr.IsKind(err, qerr.KindKindNotFound))

	_, err = e.From("Person", "p").Traverse("ghost_edge", "e").To("Person", "f").ToAst()
	require.Error(t, err)
	assert.True(t, qerr.IsKind(err, qerr.KindKindNotFound))
}

func TestBuilderEdgeTargetValidation(t *testing.T) {
	e, _ := newTestEngine(t)

	// knows goes Person -> Person; Company is not a valid target.
	_, err := e.From("Person", "p").
		Traverse("knows", "e").To("Company", "c").
		ToAst()
	require.Error(t, err)
	assert.True(t, qerr.IsKind(err, qerr.KindEndpoint))

	// works_at reaches Company forward, and Person against the direction.
	_, err = e.From("Person", "p").
		Traverse("works_at", "e").To("Company", "c").
		ToAst()
	assert.NoError(t, err)

	_, err = e.From("Company", "c").
		Traverse("works_at", "e", In()).To("Person", "p").
		ToAst()
	assert.NoError(t, err)

	_, err = e.From("Company", "c").
		Traverse("works_at", "e", In()).To("Company", "c2").
		ToAst()
	require.Error(t, err)
}

func TestBuilderImmutability(t *testing.T) {
	e, _ := newTestEngine(t)

	base := e.From("Person", "p")
	withFilter := base.WhereNode("p", func(p Fields) Predicate { return p.Number("age").Gt(1) })
	withOrder := base.OrderBy("p", "age", Asc)

	baseAst, err := base.ToAst()
	require.NoError(t, err)
	filterAst, err := withFilter.ToAst()
	require.NoError(t, err)
	orderAst, err := withOrder.ToAst()
	require.NoError(t, err)

	assert.Empty(t, baseAst.Predicates)
	assert.Empty(t, baseAst.OrderBy)
	assert.Len(t, filterAst.Predicates, 1)
	assert.Empty(t, filterAst.OrderBy)
	assert.Len(t, orderAst.OrderBy, 1)
	assert.Empty(t, orderAst.Predicates)
}

func TestBuilderVectorPlacement(t *testing.T) {
	e, _ := newTestEngine(t)

	vec := func(p Fields) Predicate {
		return p.Embedding("vec").SimilarTo([]float32{1, 0, 0}, 5)
	}

	// Top-level and AND placements build fine.
	_, err := e.From("Person", "p").WhereNode("p", vec).ToAst()
	assert.NoError(t, err)
	_, err = e.From("Person", "p").
		WhereNode("p", func(p Fields) Predicate {
			return And(p.Number("age").Gt(1), vec(p))
		}).ToAst()
	assert.NoError(t, err)

	// Vector under OR or NOT fails at build time.
	_, err = e.From("Person", "p").
		WhereNode("p", func(p Fields) Predicate {
			return Or(p.Number("age").Gt(1), vec(p))
		}).ToAst()
	require.Error(t, err)
	assert.True(t, qerr.IsKind(err, qerr.KindValidation))

	_, err = e.From("Person", "p").
		WhereNode("p", func(p Fields) Predicate { return Not(vec(p)) }).
		ToAst()
	require.Error(t, err)
}

func TestBuilderWhereTargetsMatchAliasType(t *testing.T) {
	e, _ := newTestEngine(t)

	_, err := e.From("Person", "p").
		Traverse("knows", "e").To("Person", "f").
		WhereEdge("p", func(f Fields) Predicate { return f.ID().Eq("x") }).
		ToAst()
	require.Error(t, err)

	_, err = e.From("Person", "p").
		WhereNode("ghost", func(f Fields) Predicate { return f.ID().Eq("x") }).
		ToAst()
	require.Error(t, err)
}

func TestBuilderSubclassExpansion(t *testing.T) {
	def := testGraphDef()
	def.Nodes["Employee"] = def.Nodes["Person"]
	e, s := newTestEngine(t, WithRegistry(testRegistry()))
	_ = s

	// The engine in this test lacks the Employee kind, so rebuild with it.
	e2 := NewEngine(def, e.compiler, e.backend, WithRegistry(testRegistry()))
	q, err := e2.From("Person", "p", IncludeSubClasses()).ToAst()
	require.NoError(t, err)
	assert.Equal(t, []string{"Person", "Employee"}, q.Start.Kinds)
	assert.True(t, q.Start.IncludeSubClasses)
}

func TestBuilderImplyingEdgeExpansion(t *testing.T) {
	def := testGraphDef()
	def.Edges["manages"] = &schema.EdgeKind{
		Name:   "manages",
		Schema: schema.Schema{},
		From:   []string{"Person"},
		To:     []string{"Person"},
	}
	e, _ := newTestEngine(t)
	e2 := NewEngine(def, e.compiler, e.backend, WithRegistry(testRegistry()))

	q, err := e2.From("Person", "p").
		Traverse("knows", "e", Expand(ExpandImplying)).To("Person", "f").
		ToAst()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"knows", "manages"}, q.Traversals[0].EdgeKinds)
}

func TestBuilderPipe(t *testing.T) {
	e, s := newTestEngine(t)
	seedPeople(t, s)

	adults := func(b *Builder) *Builder {
		return b.WhereNode("p", func(p Fields) Predicate { return p.Number("age").Gte(30) })
	}
	ordered := func(b *Builder) *Builder { return b.OrderBy("p", "age", Asc) }

	results, err := e.From("Person", "p").
		Pipe(adults, ordered).
		Select(func(c Ctx) any { return c.Node("p").Get("name") }).
		Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []any{"Alice", "Carol"}, results)
}
