// Package ontology expands kinds through subclass, implying-edge, and
// inverse-edge relations. The query engine consumes it only through the
// Registry interface.
package ontology

import (
	"sort"

	"github.com/dominikbraun/graph"
)

// Registry is the lookup surface the query engine uses to expand kinds.
type Registry interface {
	// ExpandSubClasses returns the kind plus all of its (transitive)
	// subclasses.
	ExpandSubClasses(kind string) []string
	// ExpandImplyingEdges returns the edge kind plus all narrower edge
	// kinds that imply it.
	ExpandImplyingEdges(edgeKind string) []string
	// GetInverseEdge returns the declared inverse of an edge kind, if any.
	GetInverseEdge(edgeKind string) (string, bool)
}

// StaticRegistry is a Registry built from explicitly declared relations.
// Closures are computed by walking directed relation graphs; results are
// deterministic (sorted after the seed kind).
type StaticRegistry struct {
	subClasses graph.Graph[string, string] // superclass -> subclass
	implies    graph.Graph[string, string] // implied edge -> implying edge
	inverses   map[string]string
}

// NewStaticRegistry creates an empty registry.
func NewStaticRegistry() *StaticRegistry {
	return &StaticRegistry{
		subClasses: graph.New(graph.StringHash, graph.Directed()),
		implies:    graph.New(graph.StringHash, graph.Directed()),
		inverses:   make(map[string]string),
	}
}

// AddSubClass declares sub as a subclass of super.
func (r *StaticRegistry) AddSubClass(sub, super string) {
	addRelation(r.subClasses, super, sub)
}

// AddImplies declares that the narrower edge kind implies the broader one.
func (r *StaticRegistry) AddImplies(narrower, broader string) {
	addRelation(r.implies, broader, narrower)
}

// AddInverse declares a and b as inverse edge kinds of each other.
func (r *StaticRegistry) AddInverse(a, b string) {
	r.inverses[a] = b
	r.inverses[b] = a
}

// ExpandSubClasses implements Registry.
func (r *StaticRegistry) ExpandSubClasses(kind string) []string {
	return expand(r.subClasses, kind)
}

// ExpandImplyingEdges implements Registry.
func (r *StaticRegistry) ExpandImplyingEdges(edgeKind string) []string {
	return expand(r.implies, edgeKind)
}

// GetInverseEdge implements Registry.
func (r *StaticRegistry) GetInverseEdge(edgeKind string) (string, bool) {
	inv, ok := r.inverses[edgeKind]
	return inv, ok
}

func addRelation(g graph.Graph[string, string], from, to string) {
	_ = g.AddVertex(from) // ErrVertexAlreadyExists is fine
	_ = g.AddVertex(to)
	_ = g.AddEdge(from, to)
}

// expand walks the relation graph from seed and returns seed plus every
// reachable vertex. Unknown seeds expand to just themselves.
func expand(g graph.Graph[string, string], seed string) []string {
	reached := make(map[string]bool)
	err := graph.DFS(g, seed, func(v string) bool {
		reached[v] = true
		return false
	})
	if err != nil {
		return []string{seed}
	}
	delete(reached, seed)
	out := make([]string, 0, len(reached)+1)
	out = append(out, seed)
	rest := make([]string, 0, len(reached))
	for v := range reached {
		rest = append(rest, v)
	}
	sort.Strings(rest)
	return append(out, rest...)
}

// None is a Registry with no relations declared; every expansion returns
// the input kind alone.
var None Registry = noneRegistry{}

type noneRegistry struct{}

func (noneRegistry) ExpandSubClasses(kind string) []string      { return []string{kind} }
func (noneRegistry) ExpandImplyingEdges(kind string) []string   { return []string{kind} }
func (noneRegistry) GetInverseEdge(string) (string, bool)       { return "", false }
