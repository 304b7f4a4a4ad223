package sqlgen

import (
	"fmt"
	"strings"

	"github.com/mvp-joe/typequery/ast"
	"github.com/mvp-joe/typequery/dialect"
	"github.com/mvp-joe/typequery/qerr"
)

// fragment is a rendered SQL snippet with its positional arguments.
type fragment struct {
	sql  string
	args []any
}

// columnRef resolves a FieldRef to the physical column expression in the
// outer query. Edge aliases read the edge_* columns of their traversal's
// target-node CTE.
func (g *Generator) columnRef(q *ast.Query, f ast.FieldRef) (string, error) {
	table := f.Alias
	prefix := ""
	if q.IsEdgeAlias(f.Alias) {
		t := q.TraversalFor(f.Alias)
		if t == nil {
			return "", qerr.Validation(f.Alias, "unknown alias %q", f.Alias)
		}
		table = t.NodeAlias
		prefix = "edge_"
	}
	switch f.Path {
	case ast.PathProps:
		col := fmt.Sprintf("%s.%sprops", table, prefix)
		if len(f.JSONPointer) == 0 {
			// The whole blob (full-materialization projection).
			return col, nil
		}
		return g.F.JSONValue(col, f.JSONPointer, f.ValueType), nil
	case ast.PathID, ast.PathKind, ast.PathFromID, ast.PathToID,
		"version", "valid_from", "valid_to", "created_at", "updated_at", "deleted_at":
		return fmt.Sprintf("%s.%s%s", table, prefix, f.Path), nil
	case "depth", "path":
		// Recursive traversal outputs live unprefixed on the node CTE.
		return fmt.Sprintf("%s.%s", table, f.Path), nil
	default:
		return "", qerr.Validation(f.Alias, "unknown field path %q", f.Path)
	}
}

// rawPropsColumn returns the props column for a FieldRef's alias (used for
// JSON operations that need the blob itself).
func (g *Generator) rawPropsColumn(q *ast.Query, f ast.FieldRef) string {
	table := f.Alias
	prefix := ""
	if q.IsEdgeAlias(f.Alias) {
		if t := q.TraversalFor(f.Alias); t != nil {
			table = t.NodeAlias
			prefix = "edge_"
		}
	}
	return fmt.Sprintf("%s.%sprops", table, prefix)
}

// bindValue converts a predicate Value to a bound argument; parameter
// references become dialect.Param sentinels filled at prepare time.
func (g *Generator) bindValue(v ast.Value, stringOp bool) any {
	if v.IsParam() {
		return dialect.Param{Name: v.Param, StringOp: stringOp}
	}
	return g.F.BindValue(v.Lit)
}

// compileExpr lowers a predicate expression. Vector-similarity leaves must
// have been extracted beforehand.
func (g *Generator) compileExpr(q *ast.Query, graphID string, expr ast.Expr) (fragment, error) {
	switch e := expr.(type) {
	case *ast.Comparison:
		return g.compileComparison(q, e)
	case *ast.StringOp:
		return g.compileStringOp(q, e)
	case *ast.Between:
		col, err := g.columnRef(q, e.Field)
		if err != nil {
			return fragment{}, err
		}
		return fragment{
			sql:  fmt.Sprintf("%s BETWEEN ? AND ?", col),
			args: []any{g.bindValue(e.Low, false), g.bindValue(e.High, false)},
		}, nil
	case *ast.NullCheck:
		col, err := g.columnRef(q, e.Field)
		if err != nil {
			return fragment{}, err
		}
		op := "IS NULL"
		if !e.IsNull {
			op = "IS NOT NULL"
		}
		return fragment{sql: fmt.Sprintf("%s %s", col, op)}, nil
	case *ast.ArrayOp:
		return g.compileArrayOp(q, e)
	case *ast.ObjectOp:
		return g.compileObjectOp(q, e)
	case *ast.AggregateComparison:
		agg, err := g.aggregateExpr(q, &e.Agg)
		if err != nil {
			return fragment{}, err
		}
		op, err := comparisonOperator(e.Op)
		if err != nil {
			return fragment{}, err
		}
		return fragment{
			sql:  fmt.Sprintf("%s %s ?", agg, op),
			args: []any{g.bindValue(e.Value, false)},
		}, nil
	case *ast.And:
		return g.compileJunction(q, graphID, e.Operands, "AND", "1=1")
	case *ast.Or:
		return g.compileJunction(q, graphID, e.Operands, "OR", "1=0")
	case *ast.Not:
		inner, err := g.compileExpr(q, graphID, e.Operand)
		if err != nil {
			return fragment{}, err
		}
		return fragment{sql: fmt.Sprintf("NOT (%s)", inner.sql), args: inner.args}, nil
	case *ast.Exists:
		sub, err := g.compileSubquery(e.Query, graphID)
		if err != nil {
			return fragment{}, err
		}
		kw := "EXISTS"
		if e.Negated {
			kw = "NOT EXISTS"
		}
		return fragment{sql: fmt.Sprintf("%s (%s)", kw, sub.SQL), args: sub.Args}, nil
	case *ast.InSubquery:
		col, err := g.columnRef(q, e.Field)
		if err != nil {
			return fragment{}, err
		}
		sub, err := g.compileSubquery(e.Query, graphID)
		if err != nil {
			return fragment{}, err
		}
		kw := "IN"
		if e.Negated {
			kw = "NOT IN"
		}
		return fragment{sql: fmt.Sprintf("%s %s (%s)", col, kw, sub.SQL), args: sub.Args}, nil
	case *ast.VectorSimilarity:
		return fragment{}, fmt.Errorf("internal: vector leaf reached expression compiler")
	default:
		return fragment{}, &qerr.UnsupportedPredicateError{
			Dialect: g.F.Name(),
			Reason:  fmt.Sprintf("unhandled predicate %T", expr),
		}
	}
}

func (g *Generator) compileJunction(q *ast.Query, graphID string, operands []ast.Expr, op, empty string) (fragment, error) {
	if len(operands) == 0 {
		return fragment{sql: empty}, nil
	}
	parts := make([]string, 0, len(operands))
	var args []any
	for _, o := range operands {
		f, err := g.compileExpr(q, graphID, o)
		if err != nil {
			return fragment{}, err
		}
		parts = append(parts, "("+f.sql+")")
		args = append(args, f.args...)
	}
	return fragment{sql: strings.Join(parts, " "+op+" "), args: args}, nil
}

func comparisonOperator(op ast.CompareOp) (string, error) {
	switch op {
	case ast.OpEq:
		return "=", nil
	case ast.OpNeq:
		return "!=", nil
	case ast.OpGt:
		return ">", nil
	case ast.OpGte:
		return ">=", nil
	case ast.OpLt:
		return "<", nil
	case ast.OpLte:
		return "<=", nil
	default:
		return "", fmt.Errorf("internal: %q is not a scalar comparison", op)
	}
}

func (g *Generator) compileComparison(q *ast.Query, e *ast.Comparison) (fragment, error) {
	col, err := g.columnRef(q, e.Field)
	if err != nil {
		return fragment{}, err
	}
	switch e.Op {
	case ast.OpIn, ast.OpNin:
		if len(e.Values) == 0 {
			// Empty IN list: no row matches; empty NOT IN matches all.
			if e.Op == ast.OpIn {
				return fragment{sql: "1=0"}, nil
			}
			return fragment{sql: "1=1"}, nil
		}
		holes := strings.TrimSuffix(strings.Repeat("?,", len(e.Values)), ",")
		kw := "IN"
		if e.Op == ast.OpNin {
			kw = "NOT IN"
		}
		args := make([]any, len(e.Values))
		for i, v := range e.Values {
			args[i] = g.bindValue(v, false)
		}
		return fragment{sql: fmt.Sprintf("%s %s (%s)", col, kw, holes), args: args}, nil
	default:
		op, err := comparisonOperator(e.Op)
		if err != nil {
			return fragment{}, err
		}
		return fragment{
			sql:  fmt.Sprintf("%s %s ?", col, op),
			args: []any{g.bindValue(e.Value, false)},
		}, nil
	}
}

func (g *Generator) compileStringOp(q *ast.Query, e *ast.StringOp) (fragment, error) {
	col, err := g.columnRef(q, e.Field)
	if err != nil {
		return fragment{}, err
	}
	arg := g.bindValue(e.Pattern, true)
	like := g.F.LikeOperator(e.Op == ast.StrILike)
	switch e.Op {
	case ast.StrContains:
		return fragment{sql: fmt.Sprintf("%s %s '%%' || ? || '%%'", col, like), args: []any{arg}}, nil
	case ast.StrStartsWith:
		return fragment{sql: fmt.Sprintf("%s %s ? || '%%'", col, like), args: []any{arg}}, nil
	case ast.StrEndsWith:
		return fragment{sql: fmt.Sprintf("%s %s '%%' || ?", col, like), args: []any{arg}}, nil
	case ast.StrLike, ast.StrILike:
		return fragment{sql: fmt.Sprintf("%s %s ?", col, like), args: []any{arg}}, nil
	default:
		return fragment{}, &qerr.UnsupportedPredicateError{Dialect: g.F.Name(), Reason: fmt.Sprintf("string op %q", e.Op)}
	}
}

func (g *Generator) compileArrayOp(q *ast.Query, e *ast.ArrayOp) (fragment, error) {
	if e.Field.Path != ast.PathProps {
		return fragment{}, &qerr.UnsupportedPredicateError{
			Dialect: g.F.Name(),
			Reason:  "array operation on a scalar system column",
		}
	}
	col := g.rawPropsColumn(q, e.Field)
	values := make([]any, len(e.Values))
	for i, v := range e.Values {
		values[i] = g.F.BindValue(v.Lit)
	}
	sql, args, err := g.F.ArrayPredicate(col, e.Field.JSONPointer, e.Op, values, e.Length)
	if err != nil {
		return fragment{}, err
	}
	return fragment{sql: sql, args: args}, nil
}

func (g *Generator) compileObjectOp(q *ast.Query, e *ast.ObjectOp) (fragment, error) {
	if e.Field.Path != ast.PathProps {
		return fragment{}, &qerr.UnsupportedPredicateError{
			Dialect: g.F.Name(),
			Reason:  "path operation on a scalar system column",
		}
	}
	col := g.rawPropsColumn(q, e.Field)
	full := append(append([]string{}, e.Field.JSONPointer...), e.Pointer...)
	switch e.Op {
	case ast.ObjHasKey, ast.ObjHasPath:
		return fragment{sql: g.F.JSONPathExists(col, full)}, nil
	case ast.ObjPathEquals:
		expr := g.F.JSONValue(col, full, e.Value.Type)
		return fragment{sql: fmt.Sprintf("%s = ?", expr), args: []any{g.bindValue(e.Value, false)}}, nil
	case ast.ObjPathContains:
		sql, args, err := g.F.ArrayPredicate(col, full, ast.ArrContains, []any{g.F.BindValue(e.Value.Lit)}, 0)
		if err != nil {
			return fragment{}, err
		}
		return fragment{sql: sql, args: args}, nil
	case ast.ObjPathIsNull:
		return fragment{sql: fmt.Sprintf("(NOT %s OR %s)",
			g.F.JSONPathExists(col, full), g.F.JSONPathIsJSONNull(col, full))}, nil
	case ast.ObjPathIsNotNull:
		return fragment{sql: fmt.Sprintf("(%s AND NOT %s)",
			g.F.JSONPathExists(col, full), g.F.JSONPathIsJSONNull(col, full))}, nil
	default:
		return fragment{}, &qerr.UnsupportedPredicateError{Dialect: g.F.Name(), Reason: fmt.Sprintf("object op %q", e.Op)}
	}
}

// aggregateExpr renders an aggregate expression for projection or HAVING.
func (g *Generator) aggregateExpr(q *ast.Query, a *ast.AggregateExpr) (string, error) {
	if a.Field == nil {
		// count over an alias
		idRef := ast.FieldRef{Alias: a.Alias, Path: ast.PathID}
		col, err := g.columnRef(q, idRef)
		if err != nil {
			return "", err
		}
		switch a.Func {
		case ast.AggCount:
			return fmt.Sprintf("COUNT(%s)", col), nil
		case ast.AggCountDistinct:
			return fmt.Sprintf("COUNT(DISTINCT %s)", col), nil
		default:
			return "", qerr.Validation(a.Alias, "aggregate %q requires a field", a.Func)
		}
	}
	col, err := g.columnRef(q, *a.Field)
	if err != nil {
		return "", err
	}
	switch a.Func {
	case ast.AggCount:
		return fmt.Sprintf("COUNT(%s)", col), nil
	case ast.AggCountDistinct:
		return fmt.Sprintf("COUNT(DISTINCT %s)", col), nil
	case ast.AggSum:
		return fmt.Sprintf("SUM(%s)", col), nil
	case ast.AggAvg:
		return fmt.Sprintf("AVG(%s)", col), nil
	case ast.AggMin:
		return fmt.Sprintf("MIN(%s)", col), nil
	case ast.AggMax:
		return fmt.Sprintf("MAX(%s)", col), nil
	default:
		return "", qerr.Validation(string(a.Func), "unknown aggregate function %q", a.Func)
	}
}

// extractVectors removes vector-similarity leaves from an expression,
// returning the remaining expression (nil when nothing is left) and the
// extracted leaves. Placement validation has already guaranteed the leaves
// sit in a top-level AND chain.
func extractVectors(expr ast.Expr) (ast.Expr, []*ast.VectorSimilarity) {
	switch e := expr.(type) {
	case *ast.VectorSimilarity:
		return nil, []*ast.VectorSimilarity{e}
	case *ast.And:
		var rest []ast.Expr
		var vecs []*ast.VectorSimilarity
		for _, op := range e.Operands {
			r, v := extractVectors(op)
			if r != nil {
				rest = append(rest, r)
			}
			vecs = append(vecs, v...)
		}
		if len(vecs) == 0 {
			return expr, nil
		}
		switch len(rest) {
		case 0:
			return nil, vecs
		case 1:
			return rest[0], vecs
		default:
			return &ast.And{Operands: rest}, vecs
		}
	default:
		return expr, nil
	}
}
