package schema

// NodeKind declares a node type: a unique name plus its property schema.
type NodeKind struct {
	Name   string
	Schema Schema
}

// EdgeKind declares an edge type. From and To list the node kinds allowed
// on each endpoint; both must be non-empty.
type EdgeKind struct {
	Name   string
	Schema Schema
	From   []string
	To     []string
}

// GraphDef maps kind names to their descriptors for one graph.
type GraphDef struct {
	ID    string
	Nodes map[string]*NodeKind
	Edges map[string]*EdgeKind
}

// Node returns the node kind descriptor, or nil when unknown.
func (g *GraphDef) Node(name string) *NodeKind {
	if g == nil {
		return nil
	}
	return g.Nodes[name]
}

// Edge returns the edge kind descriptor, or nil when unknown.
func (g *GraphDef) Edge(name string) *EdgeKind {
	if g == nil {
		return nil
	}
	return g.Edges[name]
}

// AllowsTarget reports whether kind is a valid traversal target for the
// edge in the given direction ("out" checks To, "in" checks From).
func (e *EdgeKind) AllowsTarget(direction string, kind string) bool {
	side := e.To
	if direction == "in" {
		side = e.From
	}
	for _, k := range side {
		if k == kind {
			return true
		}
	}
	return false
}
