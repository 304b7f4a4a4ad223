package query

import (
	"context"

	"github.com/mvp-joe/typequery/ast"
	"github.com/mvp-joe/typequery/dialect"
	"github.com/mvp-joe/typequery/qerr"
)

// UnionableQuery is a tree of set operations over compiled queries. Rows of
// the combined result are mapped using the left-most query's alias shape
// and select callback.
type UnionableQuery struct {
	e      *Engine
	node   *dialect.SetNode
	left   *ExecutableQuery
	limit  *int
	offset *int
	err    error
}

func (x *ExecutableQuery) setLeaf() (*dialect.SetNode, error) {
	if x.err != nil {
		return nil, x.err
	}
	if ast.HasParams(x.q) {
		return nil, qerr.Validation("parameters", "set operations do not support parameter references")
	}
	return &dialect.SetNode{Query: x.q}, nil
}

func (x *ExecutableQuery) setOp(op dialect.SetOperator, other *ExecutableQuery) *UnionableQuery {
	u := &UnionableQuery{e: x.e, left: x}
	l, err := x.setLeaf()
	if err != nil {
		u.err = err
		return u
	}
	r, err := other.setLeaf()
	if err != nil {
		u.err = err
		return u
	}
	u.node = &dialect.SetNode{Op: op, Left: l, Right: r}
	return u
}

// Union combines with another query, deduplicating rows.
func (x *ExecutableQuery) Union(other *ExecutableQuery) *UnionableQuery {
	return x.setOp(dialect.Union, other)
}

// UnionAll combines with another query, keeping duplicates.
func (x *ExecutableQuery) UnionAll(other *ExecutableQuery) *UnionableQuery {
	return x.setOp(dialect.UnionAll, other)
}

// Intersect keeps rows present in both queries.
func (x *ExecutableQuery) Intersect(other *ExecutableQuery) *UnionableQuery {
	return x.setOp(dialect.Intersect, other)
}

// Except keeps rows of this query absent from the other.
func (x *ExecutableQuery) Except(other *ExecutableQuery) *UnionableQuery {
	return x.setOp(dialect.Except, other)
}

func (u *UnionableQuery) chain(op dialect.SetOperator, other *ExecutableQuery) *UnionableQuery {
	if u.err != nil {
		return u
	}
	r, err := other.setLeaf()
	if err != nil {
		out := *u
		out.err = err
		return &out
	}
	out := *u
	out.node = &dialect.SetNode{Op: op, Left: u.node, Right: r}
	return &out
}

// Union extends the tree with another query.
func (u *UnionableQuery) Union(other *ExecutableQuery) *UnionableQuery {
	return u.chain(dialect.Union, other)
}

// UnionAll extends the tree with another query, keeping duplicates.
func (u *UnionableQuery) UnionAll(other *ExecutableQuery) *UnionableQuery {
	return u.chain(dialect.UnionAll, other)
}

// Intersect intersects the tree with another query.
func (u *UnionableQuery) Intersect(other *ExecutableQuery) *UnionableQuery {
	return u.chain(dialect.Intersect, other)
}

// Except subtracts another query from the tree.
func (u *UnionableQuery) Except(other *ExecutableQuery) *UnionableQuery {
	return u.chain(dialect.Except, other)
}

// Limit caps the combined result.
func (u *UnionableQuery) Limit(n int) *UnionableQuery {
	out := *u
	out.limit = &n
	return &out
}

// Offset skips rows of the combined result.
func (u *UnionableQuery) Offset(n int) *UnionableQuery {
	out := *u
	out.offset = &n
	return &out
}

// Operation returns the set-operation tree for compilation.
func (u *UnionableQuery) Operation() (*dialect.SetOperation, error) {
	if u.err != nil {
		return nil, u.err
	}
	return &dialect.SetOperation{Root: u.node, Limit: u.limit, Offset: u.offset}, nil
}

// Execute compiles each leaf independently, joins them with the operators,
// and maps rows using the left query's alias shape. When the two sides'
// projections diverge, the mapping is undefined.
func (u *UnionableQuery) Execute(ctx context.Context) ([]any, error) {
	op, err := u.Operation()
	if err != nil {
		return nil, err
	}
	compiled, err := u.e.compiler.CompileSetOperation(op, u.left.q.GraphID, dialect.Options{NoSelective: true})
	if err != nil {
		return nil, err
	}
	rows, err := u.e.backend.Execute(ctx, compiled)
	if err != nil {
		return nil, err
	}
	return mapResults(u.left.q, rows, u.left.selectFn), nil
}
