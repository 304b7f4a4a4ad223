package query

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mvp-joe/typequery/backend/sqlitedb"
	"github.com/mvp-joe/typequery/dialect/sqlite"
	"github.com/mvp-joe/typequery/ontology"
	"github.com/mvp-joe/typequery/schema"
	"github.com/mvp-joe/typequery/store"
)

// testGraphDef declares the Person/Company graph the engine tests run on.
func testGraphDef() *schema.GraphDef {
	return &schema.GraphDef{
		ID: "g",
		Nodes: map[string]*schema.NodeKind{
			"Person": {
				Name: "Person",
				Schema: schema.Schema{
					"name":    schema.String(),
					"age":     schema.Number(),
					"nick":    schema.String().Optional(),
					"tags":    schema.Array(schema.String()),
					"address": schema.Object(map[string]*schema.FieldSpec{"city": schema.String()}),
					"vec":     schema.Embedding(3),
				},
			},
			"Company": {
				Name: "Company",
				Schema: schema.Schema{
					"name": schema.String(),
				},
			},
		},
		Edges: map[string]*schema.EdgeKind{
			"knows": {
				Name:   "knows",
				Schema: schema.Schema{"since": schema.String().Optional()},
				From:   []string{"Person"},
				To:     []string{"Person"},
			},
			"works_at": {
				Name:   "works_at",
				Schema: schema.Schema{},
				From:   []string{"Person"},
				To:     []string{"Company"},
			},
		},
	}
}

// newTestEngine builds an engine over an in-memory SQLite database with the
// physical schema created, plus a store for seeding.
func newTestEngine(t *testing.T, opts ...Option) (*Engine, *store.Store) {
	t.Helper()
	be, err := sqlitedb.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { be.Close() })
	require.NoError(t, store.CreateSchema(be.DB()))

	e := NewEngine(testGraphDef(), sqlite.New(), be, opts...)
	return e, store.NewStore(be.DB(), "g")
}

// seedPeople writes the S1 population: Alice 30, Bob 25, Carol 40.
func seedPeople(t *testing.T, s *store.Store) {
	t.Helper()
	ctx := context.Background()
	people := []struct {
		id    string
		props map[string]any
	}{
		{"p1", map[string]any{"name": "Alice", "age": 30}},
		{"p2", map[string]any{"name": "Bob", "age": 25}},
		{"p3", map[string]any{"name": "Carol", "age": 40}},
	}
	for _, p := range people {
		_, err := s.PutNode(ctx, p.id, "Person", p.props)
		require.NoError(t, err)
	}
}

// seedKnows adds one knows edge.
func seedKnows(t *testing.T, s *store.Store, id, from, to string, props map[string]any) {
	t.Helper()
	_, err := s.PutEdge(context.Background(), id, "knows", from, to, props)
	require.NoError(t, err)
}

// testRegistry declares Employee <: Person and a manages->knows implication.
func testRegistry() ontology.Registry {
	r := ontology.NewStaticRegistry()
	r.AddSubClass("Employee", "Person")
	r.AddImplies("manages", "knows")
	return r
}
