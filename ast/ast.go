// Package ast holds the immutable in-memory representation of a graph
// query: start kind, traversals, predicate trees, projection, ordering,
// grouping, and cursors. Builders construct values of this package; dialect
// compilers lower them to SQL.
package ast

import (
	"github.com/mvp-joe/typequery/schema"
)

// Direction is the traversal direction over an edge.
type Direction string

const (
	DirectionOut Direction = "out"
	DirectionIn  Direction = "in"
)

// CyclePolicy controls how variable-length traversals treat revisited nodes.
type CyclePolicy string

const (
	CyclePrevent CyclePolicy = "prevent"
	CycleAllow   CyclePolicy = "allow"
)

// MaxRecursiveDepth is the ceiling on variable-length traversal depth.
// RecursiveSpec.MaxDepth of -1 means "up to the ceiling"; values above it
// are rejected at build time.
const MaxRecursiveDepth = 10

// TimeFormat is the fixed-width UTC timestamp layout stored in the
// temporal columns. Fixed width keeps lexicographic comparison equal to
// chronological comparison (RFC3339Nano trims trailing zeros and does not).
const TimeFormat = "2006-01-02T15:04:05.000000000Z"

// TemporalMode selects which row versions a query sees.
type TemporalMode struct {
	Mode string // "current" | "all" | "asOf"
	AsOf string // ISO-8601, set when Mode == "asOf"
}

// System column paths a FieldRef may address.
const (
	PathID     = "id"
	PathKind   = "kind"
	PathFromID = "from_id"
	PathToID   = "to_id"
	PathProps  = "props"
)

// FieldRef addresses one column of one alias: either a system column or a
// JSON pointer into the props blob.
type FieldRef struct {
	Alias       string
	Path        string   // one of the Path* constants
	JSONPointer []string // segments under props, first is the field name
	ValueType   schema.ValueType
	ElementType schema.ValueType
}

// Field returns the top-level props field name, or the system path.
func (f FieldRef) Field() string {
	if f.Path == PathProps && len(f.JSONPointer) > 0 {
		return f.JSONPointer[0]
	}
	return f.Path
}

// StartSpec is the root node source of a query.
type StartSpec struct {
	Alias             string
	Kinds             []string
	IncludeSubClasses bool
}

// RecursiveSpec configures a variable-length traversal.
type RecursiveSpec struct {
	MinDepth    int
	MaxDepth    int // -1 = unlimited (bounded by MaxRecursiveDepth)
	CyclePolicy CyclePolicy
	PathAlias   string
	DepthAlias  string
}

// Traversal is one edge hop from JoinFromAlias to NodeAlias.
type Traversal struct {
	EdgeAlias        string
	EdgeKinds        []string
	InverseEdgeKinds []string
	Direction        Direction
	NodeAlias        string
	NodeKinds        []string
	JoinFromAlias    string
	JoinEdgeField    string // "from_id" | "to_id": the edge column joined to the source alias
	Optional         bool
	Recursive        *RecursiveSpec
}

// NodePredicate attaches a predicate expression to one alias.
type NodePredicate struct {
	TargetAlias string
	TargetType  string // "node" | "edge"
	Expr        Expr
}

// OrderSpec is one ORDER BY entry.
type OrderSpec struct {
	Field FieldRef
	Desc  bool
}

// ProjectedField is one output column of the full-blob projection.
type ProjectedField struct {
	OutputName string
	Source     FieldRef
	CteAlias   string
}

// SelectiveField records that alias.field must be materialized to the
// column OutputName in the selective-projection shape.
type SelectiveField struct {
	Alias         string
	Field         string
	OutputName    string
	IsSystemField bool
	ValueType     schema.ValueType
}

// AggregateFunc names an aggregate operation.
type AggregateFunc string

const (
	AggCount         AggregateFunc = "count"
	AggCountDistinct AggregateFunc = "countDistinct"
	AggSum           AggregateFunc = "sum"
	AggAvg           AggregateFunc = "avg"
	AggMin           AggregateFunc = "min"
	AggMax           AggregateFunc = "max"
)

// AggregateExpr is an aggregate over a field (or over an alias for count).
type AggregateExpr struct {
	Func  AggregateFunc
	Field *FieldRef // nil for count-of-alias
	Alias string    // target alias for count-of-alias
}

// AggregateProjection is one output of an aggregate query: either a plain
// group field or an aggregate expression.
type AggregateProjection struct {
	OutputName string
	Field      *FieldRef
	Aggregate  *AggregateExpr
}

// Query is the complete immutable query AST.
type Query struct {
	GraphID         string
	Start           StartSpec
	Traversals      []Traversal
	Predicates      []NodePredicate
	Projection      []ProjectedField
	Aggregates      []AggregateProjection
	Temporal        TemporalMode
	OrderBy         []OrderSpec
	Limit           *int
	Offset          *int
	GroupBy         []FieldRef
	Having          Expr
	SelectiveFields []SelectiveField
}

// Aliases returns every node and edge alias in declaration order: start
// first, then per traversal its edge alias followed by its node alias.
func (q *Query) Aliases() []string {
	out := []string{q.Start.Alias}
	for _, t := range q.Traversals {
		out = append(out, t.EdgeAlias, t.NodeAlias)
	}
	return out
}

// TraversalFor returns the traversal whose node or edge alias matches, or
// nil for the start alias and unknown aliases.
func (q *Query) TraversalFor(alias string) *Traversal {
	for i := range q.Traversals {
		t := &q.Traversals[i]
		if t.NodeAlias == alias || t.EdgeAlias == alias {
			return t
		}
	}
	return nil
}

// IsEdgeAlias reports whether alias names an edge in this query.
func (q *Query) IsEdgeAlias(alias string) bool {
	for i := range q.Traversals {
		if q.Traversals[i].EdgeAlias == alias {
			return true
		}
	}
	return false
}

// Clone returns a deep copy. Builders use it so every fluent step yields an
// independent value; predicate expressions are immutable and shared.
func (q *Query) Clone() *Query {
	out := *q
	out.Start.Kinds = append([]string(nil), q.Start.Kinds...)
	out.Traversals = make([]Traversal, len(q.Traversals))
	for i, t := range q.Traversals {
		t.EdgeKinds = append([]string(nil), t.EdgeKinds...)
		t.InverseEdgeKinds = append([]string(nil), t.InverseEdgeKinds...)
		t.NodeKinds = append([]string(nil), t.NodeKinds...)
		if t.Recursive != nil {
			r := *t.Recursive
			t.Recursive = &r
		}
		out.Traversals[i] = t
	}
	out.Predicates = append([]NodePredicate(nil), q.Predicates...)
	out.Projection = append([]ProjectedField(nil), q.Projection...)
	out.Aggregates = append([]AggregateProjection(nil), q.Aggregates...)
	out.OrderBy = append([]OrderSpec(nil), q.OrderBy...)
	out.GroupBy = append([]FieldRef(nil), q.GroupBy...)
	out.SelectiveFields = append([]SelectiveField(nil), q.SelectiveFields...)
	if q.Limit != nil {
		v := *q.Limit
		out.Limit = &v
	}
	if q.Offset != nil {
		v := *q.Offset
		out.Offset = &v
	}
	return &out
}
