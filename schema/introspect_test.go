package schema

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testGraphDef() *GraphDef {
	return &GraphDef{
		ID: "g",
		Nodes: map[string]*NodeKind{
			"Person": {
				Name: "Person",
				Schema: Schema{
					"name":    String(),
					"age":     Number(),
					"active":  Bool(),
					"joined":  Date(),
					"tags":    Array(String()),
					"address": Object(map[string]*FieldSpec{"city": String(), "zip": String()}),
					"scores":  Record(Number()),
					"vec":     Embedding(4),
					"optVec":  Embedding(8).Optional(),
					"role":    Enum("admin", "user"),
					"level":   Enum(1, 2, 3),
					"note":    String().Optional(),
				},
			},
			"Company": {
				Name: "Company",
				Schema: Schema{
					"name":    String(),
					"age":     Number(),
					"address": Object(map[string]*FieldSpec{"city": String(), "country": String()}),
					"tags":    Array(Number()),
				},
			},
		},
		Edges: map[string]*EdgeKind{
			"knows": {
				Name:   "knows",
				Schema: Schema{"since": String().Optional()},
				From:   []string{"Person"},
				To:     []string{"Person"},
			},
		},
	}
}

func TestFieldTypeInfoScalars(t *testing.T) {
	in := NewIntrospector(testGraphDef())

	cases := []struct {
		field string
		want  ValueType
	}{
		{"name", TypeString},
		{"age", TypeNumber},
		{"active", TypeBoolean},
		{"joined", TypeDate},
		{"role", TypeString},
		{"level", TypeNumber},
		{"note", TypeString},
	}
	for _, tc := range cases {
		info := in.FieldTypeInfo("Person", tc.field)
		require.NotNil(t, info, "field %s", tc.field)
		assert.Equal(t, tc.want, info.ValueType, "field %s", tc.field)
	}
}

func TestFieldTypeInfoComposite(t *testing.T) {
	in := NewIntrospector(testGraphDef())

	tags := in.FieldTypeInfo("Person", "tags")
	require.NotNil(t, tags)
	assert.Equal(t, TypeArray, tags.ValueType)
	assert.Equal(t, TypeString, tags.ElementType)
	require.NotNil(t, tags.ElementTypeInfo)
	assert.Equal(t, TypeString, tags.ElementTypeInfo.ValueType)

	addr := in.FieldTypeInfo("Person", "address")
	require.NotNil(t, addr)
	assert.Equal(t, TypeObject, addr.ValueType)
	assert.Equal(t, TypeString, addr.Shape["city"].ValueType)

	scores := in.FieldTypeInfo("Person", "scores")
	require.NotNil(t, scores)
	assert.Equal(t, TypeObject, scores.ValueType)
	assert.Equal(t, TypeNumber, scores.RecordValueType)
}

func TestFieldTypeInfoEmbedding(t *testing.T) {
	in := NewIntrospector(testGraphDef())

	vec := in.FieldTypeInfo("Person", "vec")
	require.NotNil(t, vec)
	assert.Equal(t, TypeEmbedding, vec.ValueType)
	assert.Equal(t, 4, vec.Dimensions)

	// The embedding marker survives optional wrapping.
	optVec := in.FieldTypeInfo("Person", "optVec")
	require.NotNil(t, optVec)
	assert.Equal(t, TypeEmbedding, optVec.ValueType)
	assert.Equal(t, 8, optVec.Dimensions)
}

func TestFieldTypeInfoUnknownKindOrField(t *testing.T) {
	in := NewIntrospector(testGraphDef())

	assert.Nil(t, in.FieldTypeInfo("Ghost", "name"))
	assert.Nil(t, in.FieldTypeInfo("Person", "ghost"))
	assert.Nil(t, in.EdgeFieldTypeInfo("ghost", "since"))
}

func TestEdgeFieldTypeInfo(t *testing.T) {
	in := NewIntrospector(testGraphDef())

	info := in.EdgeFieldTypeInfo("knows", "since")
	require.NotNil(t, info)
	assert.Equal(t, TypeString, info.ValueType)
}

func TestSharedFieldTypeInfo(t *testing.T) {
	in := NewIntrospector(testGraphDef())

	// Same scalar type across kinds survives.
	name := in.SharedFieldTypeInfo([]string{"Person", "Company"}, "name")
	require.NotNil(t, name)
	assert.Equal(t, TypeString, name.ValueType)

	// A field missing on any kind yields nothing.
	assert.Nil(t, in.SharedFieldTypeInfo([]string{"Person", "Company"}, "active"))

	// Arrays with differing element types merge to unknown elements.
	tags := in.SharedFieldTypeInfo([]string{"Person", "Company"}, "tags")
	require.NotNil(t, tags)
	assert.Equal(t, TypeArray, tags.ValueType)
	assert.Equal(t, TypeUnknown, tags.ElementType)

	// Objects intersect their shapes.
	addr := in.SharedFieldTypeInfo([]string{"Person", "Company"}, "address")
	require.NotNil(t, addr)
	assert.Equal(t, TypeObject, addr.ValueType)
	assert.Contains(t, addr.Shape, "city")
	assert.NotContains(t, addr.Shape, "zip")
	assert.NotContains(t, addr.Shape, "country")
}

func TestSharedFieldTypeInfoMismatch(t *testing.T) {
	def := testGraphDef()
	def.Nodes["Robot"] = &NodeKind{
		Name:   "Robot",
		Schema: Schema{"name": Number()},
	}
	in := NewIntrospector(def)

	assert.Nil(t, in.SharedFieldTypeInfo([]string{"Person", "Robot"}, "name"))
}

func TestLiteralAndUnionResolution(t *testing.T) {
	def := &GraphDef{
		ID: "g",
		Nodes: map[string]*NodeKind{
			"K": {Name: "K", Schema: Schema{
				"litStr":   Literal("x"),
				"litDate":  Literal(time.Now()),
				"uniform":  Union(String(), String()),
				"mixed":    Union(String(), Number()),
				"wrapped":  Number().Nullable().Default(3),
				"untyped":  Unknown(),
			}},
		},
	}
	in := NewIntrospector(def)

	assert.Equal(t, TypeString, in.FieldTypeInfo("K", "litStr").ValueType)
	assert.Equal(t, TypeDate, in.FieldTypeInfo("K", "litDate").ValueType)
	assert.Equal(t, TypeString, in.FieldTypeInfo("K", "uniform").ValueType)
	assert.Nil(t, in.FieldTypeInfo("K", "mixed"))
	assert.Equal(t, TypeNumber, in.FieldTypeInfo("K", "wrapped").ValueType)
	assert.Equal(t, TypeUnknown, in.FieldTypeInfo("K", "untyped").ValueType)
}

func TestIntrospectorMemoization(t *testing.T) {
	in := NewIntrospector(testGraphDef())

	first := in.FieldTypeInfo("Person", "address")
	second := in.FieldTypeInfo("Person", "address")
	require.NotNil(t, first)
	require.NotNil(t, second)

	// Results are clones: mutating one must not leak into the cache.
	first.Shape["city"] = &FieldTypeInfo{ValueType: TypeNumber}
	assert.Equal(t, TypeString, second.Shape["city"].ValueType)
	third := in.FieldTypeInfo("Person", "address")
	assert.Equal(t, TypeString, third.Shape["city"].ValueType)
}
