package ontology

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExpandSubClasses(t *testing.T) {
	r := NewStaticRegistry()
	r.AddSubClass("Employee", "Person")
	r.AddSubClass("Manager", "Employee")
	r.AddSubClass("Company", "Organization")

	assert.Equal(t, []string{"Person", "Employee", "Manager"}, r.ExpandSubClasses("Person"))
	assert.Equal(t, []string{"Employee", "Manager"}, r.ExpandSubClasses("Employee"))
	assert.Equal(t, []string{"Manager"}, r.ExpandSubClasses("Manager"))
}

func TestExpandUnknownKind(t *testing.T) {
	r := NewStaticRegistry()
	assert.Equal(t, []string{"Ghost"}, r.ExpandSubClasses("Ghost"))
	assert.Equal(t, []string{"ghost_edge"}, r.ExpandImplyingEdges("ghost_edge"))
}

func TestExpandImplyingEdges(t *testing.T) {
	r := NewStaticRegistry()
	r.AddImplies("manages", "knows")
	r.AddImplies("mentors", "knows")

	got := r.ExpandImplyingEdges("knows")
	assert.Equal(t, "knows", got[0])
	assert.ElementsMatch(t, []string{"knows", "manages", "mentors"}, got)
	assert.Equal(t, []string{"manages"}, r.ExpandImplyingEdges("manages"))
}

func TestInverseEdges(t *testing.T) {
	r := NewStaticRegistry()
	r.AddInverse("parent_of", "child_of")

	inv, ok := r.GetInverseEdge("parent_of")
	assert.True(t, ok)
	assert.Equal(t, "child_of", inv)

	inv, ok = r.GetInverseEdge("child_of")
	assert.True(t, ok)
	assert.Equal(t, "parent_of", inv)

	_, ok = r.GetInverseEdge("knows")
	assert.False(t, ok)
}

func TestNoneRegistry(t *testing.T) {
	assert.Equal(t, []string{"Person"}, None.ExpandSubClasses("Person"))
	_, ok := None.GetInverseEdge("knows")
	assert.False(t, ok)
}
