// Package dialect defines the interface between the query engine and the
// per-database SQL compilers, plus the compiled-SQL value that backends
// execute.
package dialect

import (
	"github.com/mvp-joe/typequery/ast"
)

// CompiledSql is a lowered query: SQL text plus its positional arguments.
// Args may contain Param sentinels when the source AST referenced named
// parameters; prepared queries fill those slots at bind time.
type CompiledSql struct {
	SQL  string
	Args []any
}

// Param is the sentinel placed in CompiledSql.Args for a named parameter
// reference.
type Param struct {
	Name string
	// StringOp marks parameters used as a string-operation pattern; their
	// bindings must be strings.
	StringOp bool
}

// ParamSlots returns the index and name of every parameter sentinel in the
// compiled arguments.
func (c *CompiledSql) ParamSlots() map[int]Param {
	slots := make(map[int]Param)
	for i, a := range c.Args {
		if p, ok := a.(Param); ok {
			slots[i] = p
		}
	}
	return slots
}

// Options carries per-compilation switches. Reserved for dialect-specific
// hints; the zero value is always valid.
type Options struct {
	// NoSelective disables selective projection even when the AST carries
	// selective fields; used by the executor's fallback path.
	NoSelective bool
}

// SetOperator is a SQL set operation.
type SetOperator string

const (
	Union     SetOperator = "union"
	UnionAll  SetOperator = "unionAll"
	Intersect SetOperator = "intersect"
	Except    SetOperator = "except"
)

// SetNode is one node of a set-operation tree: either a leaf query or an
// operator over two subtrees.
type SetNode struct {
	Query *ast.Query // leaf when non-nil
	Op    SetOperator
	Left  *SetNode
	Right *SetNode
}

// SetOperation is a complete set-operation tree with outer limit/offset
// applied to the combined result.
type SetOperation struct {
	Root   *SetNode
	Limit  *int
	Offset *int
}

// Compiler lowers query ASTs to a dialect's SQL.
type Compiler interface {
	// Name identifies the dialect ("sqlite" or "postgres").
	Name() string
	// CompileQuery lowers a query AST. It must fail with
	// *qerr.UnsupportedPredicateError for predicate shapes the dialect
	// cannot express.
	CompileQuery(q *ast.Query, graphID string, opts Options) (*CompiledSql, error)
	// CompileSetOperation lowers a set-operation tree by compiling each
	// leaf independently and joining them with the operator.
	CompileSetOperation(op *SetOperation, graphID string, opts Options) (*CompiledSql, error)
	// SupportsVectors reports whether the dialect can compile
	// vector-similarity predicates at all.
	SupportsVectors() bool
	// FormatEmbedding converts a query vector to the dialect's bound
	// representation.
	FormatEmbedding(vec []float32) (any, error)
	// VectorDistance renders the distance between the embedding stored in
	// column and a bound query vector (one placeholder) under the metric.
	VectorDistance(column string, metric ast.VectorMetric) (string, error)
	// BindValue converts a host value to the dialect's bound-parameter
	// representation (time.Time becomes an ISO-8601 string).
	BindValue(v any) any
}
