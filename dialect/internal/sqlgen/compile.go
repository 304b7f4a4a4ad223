package sqlgen

import (
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"github.com/mvp-joe/typequery/ast"
	"github.com/mvp-joe/typequery/dialect"
	"github.com/mvp-joe/typequery/qerr"
	"github.com/mvp-joe/typequery/schema"
)

// Generator lowers query ASTs to SQL for one flavor.
type Generator struct {
	F Flavor
}

// nodeColumns are the per-alias columns every node CTE projects.
var nodeColumns = []string{
	"id", "kind", "props", "version",
	"valid_from", "valid_to", "created_at", "updated_at", "deleted_at",
}

// edgeColumns are the edge columns a traversal target CTE projects
// (aliased with an edge_ prefix).
var edgeColumns = []string{
	"id", "kind", "props", "from_id", "to_id",
	"valid_from", "valid_to", "created_at", "updated_at", "deleted_at",
}

// cteDef is one CTE of the generated statement.
type cteDef struct {
	name string
	sql  string
	args []any
}

// CompileQuery lowers a query AST to the flavor's SQL. This is the public
// entry: it renders with '?' placeholders and converts them last.
func (g *Generator) CompileQuery(q *ast.Query, graphID string, opts dialect.Options) (*dialect.CompiledSql, error) {
	compiled, err := g.compile(q, graphID, opts)
	if err != nil {
		return nil, err
	}
	return g.finish(compiled)
}

// finish converts '?' placeholders to the flavor's format.
func (g *Generator) finish(c *dialect.CompiledSql) (*dialect.CompiledSql, error) {
	sql, err := g.F.Placeholder().ReplacePlaceholders(c.SQL)
	if err != nil {
		return nil, fmt.Errorf("placeholder conversion: %w", err)
	}
	return &dialect.CompiledSql{SQL: sql, Args: c.Args}, nil
}

// compile renders with '?' placeholders so it can nest inside subqueries.
func (g *Generator) compile(q *ast.Query, graphID string, opts dialect.Options) (*dialect.CompiledSql, error) {
	ctes, recursive, err := g.buildCTEs(q, graphID)
	if err != nil {
		return nil, err
	}

	cols, err := g.projectionColumns(q, opts)
	if err != nil {
		return nil, err
	}

	sel := sq.Select(cols...).
		From(fmt.Sprintf("cte_%s AS %s", q.Start.Alias, q.Start.Alias)).
		PlaceholderFormat(sq.Question)

	for i := range q.Traversals {
		t := &q.Traversals[i]
		kw := "JOIN"
		if t.Optional {
			kw = "LEFT JOIN"
		}
		sel = sel.JoinClause(fmt.Sprintf("%s cte_%s AS %s ON %s.join_id = %s.id",
			kw, t.NodeAlias, t.NodeAlias, t.NodeAlias, t.JoinFromAlias))
	}

	// Predicates. Vector leaves are pulled out and handled below.
	var vectors []*ast.VectorSimilarity
	for _, p := range q.Predicates {
		rest, vecs := extractVectors(p.Expr)
		vectors = append(vectors, vecs...)
		if rest == nil {
			continue
		}
		frag, err := g.compileExpr(q, graphID, rest)
		if err != nil {
			return nil, err
		}
		sel = sel.Where(sq.Expr(frag.sql, frag.args...))
	}

	orderBy, limit, err := g.applyVectors(q, vectors, &sel)
	if err != nil {
		return nil, err
	}

	for _, f := range q.GroupBy {
		col, err := g.columnRef(q, f)
		if err != nil {
			return nil, err
		}
		sel = sel.GroupBy(col)
	}
	if q.Having != nil {
		frag, err := g.compileExpr(q, graphID, q.Having)
		if err != nil {
			return nil, err
		}
		sel = sel.Having(sq.Expr(frag.sql, frag.args...))
	}

	for _, o := range q.OrderBy {
		col, err := g.columnRef(q, o.Field)
		if err != nil {
			return nil, err
		}
		dir := " ASC"
		if o.Desc {
			dir = " DESC"
		}
		orderBy = append(orderBy, col+dir)
	}
	if len(orderBy) > 0 {
		sel = sel.OrderBy(orderBy...)
	}

	if limit == nil {
		limit = q.Limit
	} else if q.Limit != nil && *q.Limit < *limit {
		limit = q.Limit
	}
	if limit != nil {
		sel = sel.Limit(uint64(*limit))
	}
	if q.Offset != nil {
		sel = sel.Offset(uint64(*q.Offset))
	}

	if len(ctes) > 0 {
		with := "WITH "
		if recursive {
			with = "WITH RECURSIVE "
		}
		defs := make([]string, len(ctes))
		var withArgs []any
		for i, c := range ctes {
			defs[i] = fmt.Sprintf("%s AS (%s)", c.name, c.sql)
			withArgs = append(withArgs, c.args...)
		}
		sel = sel.Prefix(with+strings.Join(defs, ", "), withArgs...)
	}

	sqlText, args, err := sel.ToSql()
	if err != nil {
		return nil, fmt.Errorf("assemble query: %w", err)
	}
	return &dialect.CompiledSql{SQL: sqlText, Args: args}, nil
}

// applyVectors turns extracted vector-similarity leaves into a distance
// filter, distance ordering, and a K limit.
func (g *Generator) applyVectors(q *ast.Query, vectors []*ast.VectorSimilarity, sel *sq.SelectBuilder) ([]string, *int, error) {
	if len(vectors) == 0 {
		return nil, nil, nil
	}
	if !g.F.SupportsVectors() {
		return nil, nil, &qerr.UnsupportedPredicateError{Dialect: g.F.Name(), Reason: "vector search not supported"}
	}
	var orderBy []string
	var limit *int
	for i, v := range vectors {
		col := g.rawPropsColumn(q, v.Field)
		expr := g.F.JSONValue(col, v.Field.JSONPointer, schema.TypeEmbedding)
		dist, err := g.F.VectorDistance(expr, v.Metric)
		if err != nil {
			return nil, nil, err
		}
		qv, err := g.F.FormatEmbedding(v.Vector)
		if err != nil {
			return nil, nil, err
		}
		// Rows without the embedding would otherwise sort before every
		// match (NULL orders first ascending).
		*sel = sel.Where(expr + " IS NOT NULL")
		if v.MinScore != nil {
			// The distance column's direction depends on the metric:
			// cosine similarity >= s means distance <= 1-s; l2 filters by
			// distance directly; inner product is stored negated.
			var bound float64
			switch v.Metric {
			case ast.MetricCosine:
				bound = 1 - *v.MinScore
			case ast.MetricL2:
				bound = *v.MinScore
			case ast.MetricInnerProduct:
				bound = -*v.MinScore
			}
			*sel = sel.Where(sq.Expr(dist+" <= ?", qv, bound))
		}
		// Project the distance once and order by the alias so the bound
		// query vector appears exactly once per occurrence.
		alias := fmt.Sprintf("__vec_distance_%d", i)
		*sel = sel.Column(sq.Alias(sq.Expr(dist, qv), alias))
		orderBy = append(orderBy, alias+" ASC")
		k := v.K
		if limit == nil || k < *limit {
			limit = &k
		}
	}
	return orderBy, limit, nil
}

// projectionColumns renders the SELECT list for the active projection mode.
func (g *Generator) projectionColumns(q *ast.Query, opts dialect.Options) ([]string, error) {
	if len(q.Aggregates) > 0 {
		cols := make([]string, 0, len(q.Aggregates))
		for _, a := range q.Aggregates {
			var expr string
			var err error
			if a.Aggregate != nil {
				expr, err = g.aggregateExpr(q, a.Aggregate)
			} else if a.Field != nil {
				expr, err = g.columnRef(q, *a.Field)
			} else {
				err = qerr.Validation(a.OutputName, "empty aggregate projection")
			}
			if err != nil {
				return nil, err
			}
			cols = append(cols, fmt.Sprintf("%s AS %s", expr, a.OutputName))
		}
		return cols, nil
	}

	if len(q.SelectiveFields) > 0 && !opts.NoSelective {
		return g.selectiveColumns(q)
	}

	cols := make([]string, 0, len(q.Projection))
	for _, p := range q.Projection {
		expr, err := g.columnRef(q, p.Source)
		if err != nil {
			return nil, err
		}
		cols = append(cols, fmt.Sprintf("%s AS %s", expr, p.OutputName))
	}
	if len(cols) == 0 {
		// A bare AST (subquery use) projects the start id.
		expr, err := g.columnRef(q, ast.FieldRef{Alias: q.Start.Alias, Path: ast.PathID})
		if err != nil {
			return nil, err
		}
		cols = append(cols, expr)
	}
	return cols, nil
}

// selectiveColumns projects only the fields the select callback touches.
// Scalar props use typed extraction; arrays, objects, and embeddings come
// back as raw JSON text for the executor to decode.
func (g *Generator) selectiveColumns(q *ast.Query) ([]string, error) {
	cols := make([]string, 0, len(q.SelectiveFields))
	for _, f := range q.SelectiveFields {
		expr, err := g.selectiveColumn(q, f)
		if err != nil {
			return nil, err
		}
		cols = append(cols, fmt.Sprintf("%s AS %s", expr, f.OutputName))
	}
	return cols, nil
}

func (g *Generator) selectiveColumn(q *ast.Query, f ast.SelectiveField) (string, error) {
	if f.IsSystemField {
		path := strings.TrimPrefix(f.Field, "meta.")
		return g.columnRef(q, ast.FieldRef{Alias: f.Alias, Path: path})
	}
	ref := ast.FieldRef{Alias: f.Alias, Path: ast.PathProps, JSONPointer: []string{f.Field}}
	col := g.rawPropsColumn(q, ref)
	switch f.ValueType {
	case schema.TypeArray, schema.TypeObject, schema.TypeEmbedding:
		return g.F.JSONText(col, ref.JSONPointer), nil
	default:
		return g.F.JSONValue(col, ref.JSONPointer, f.ValueType), nil
	}
}

// compileSubquery lowers a nested query for EXISTS / IN. IN subqueries need
// a single output column; a bare AST already projects just the start id.
func (g *Generator) compileSubquery(q *ast.Query, graphID string) (*dialect.CompiledSql, error) {
	sub := q
	if len(q.Projection) > 1 {
		sub = q.Clone()
		sub.Projection = sub.Projection[:1]
	}
	return g.compile(sub, graphID, dialect.Options{NoSelective: true})
}

// buildCTEs renders one CTE per node alias (plus a walk CTE per recursive
// traversal). The second result reports whether WITH RECURSIVE is needed.
func (g *Generator) buildCTEs(q *ast.Query, graphID string) ([]cteDef, bool, error) {
	var ctes []cteDef
	recursive := false

	ctes = append(ctes, g.startCTE(q, graphID))

	for i := range q.Traversals {
		t := &q.Traversals[i]
		if t.Recursive != nil {
			walk, final, err := g.recursiveCTEs(q, t, graphID)
			if err != nil {
				return nil, false, err
			}
			ctes = append(ctes, walk, final)
			recursive = true
			continue
		}
		ctes = append(ctes, g.edgeCTE(q, t, graphID))
	}
	return ctes, recursive, nil
}

func (g *Generator) startCTE(q *ast.Query, graphID string) cteDef {
	var b strings.Builder
	args := []any{graphID}
	b.WriteString("SELECT ")
	for i, c := range nodeColumns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("n." + c)
	}
	b.WriteString(" FROM nodes n WHERE n.graph_id = ?")
	writeKindFilter(&b, &args, "n.kind", q.Start.Kinds)
	g.writeTemporal(&b, &args, "n", q.Temporal)
	return cteDef{name: "cte_" + q.Start.Alias, sql: b.String(), args: args}
}

// joinTargetExprs returns the SQL expressions for the edge's join-side and
// target-side node ids, honoring direction and inverse edge kinds.
func joinTargetExprs(t *ast.Traversal, args *[]any) (string, string) {
	joinCol, targetCol := "e.from_id", "e.to_id"
	if t.Direction == ast.DirectionIn {
		joinCol, targetCol = "e.to_id", "e.from_id"
	}
	if len(t.InverseEdgeKinds) == 0 {
		return joinCol, targetCol
	}
	// Inverse kinds traverse the edge the opposite way round.
	in := strings.TrimSuffix(strings.Repeat("?,", len(t.InverseEdgeKinds)), ",")
	caseExpr := func(a, b string) string {
		return fmt.Sprintf("CASE WHEN e.kind IN (%s) THEN %s ELSE %s END", in, b, a)
	}
	join := caseExpr(joinCol, targetCol)
	*args = append(*args, kindArgs(t.InverseEdgeKinds)...)
	target := caseExpr(targetCol, joinCol)
	*args = append(*args, kindArgs(t.InverseEdgeKinds)...)
	return join, target
}

func kindArgs(kinds []string) []any {
	out := make([]any, len(kinds))
	for i, k := range kinds {
		out[i] = k
	}
	return out
}

func writeKindFilter(b *strings.Builder, args *[]any, col string, kinds []string) {
	if len(kinds) == 0 {
		return
	}
	fmt.Fprintf(b, " AND %s IN (%s)", col, strings.TrimSuffix(strings.Repeat("?,", len(kinds)), ","))
	*args = append(*args, kindArgs(kinds)...)
}

// writeTemporal appends the temporal-mode condition for one table alias.
func (g *Generator) writeTemporal(b *strings.Builder, args *[]any, prefix string, mode ast.TemporalMode) {
	switch mode.Mode {
	case "", "current":
		fmt.Fprintf(b, " AND %s.valid_to IS NULL AND %s.deleted_at IS NULL", prefix, prefix)
	case "all":
		// No restriction.
	case "asOf":
		fmt.Fprintf(b, " AND %s.valid_from <= ? AND (%s.valid_to IS NULL OR %s.valid_to > ?)", prefix, prefix, prefix)
		*args = append(*args, mode.AsOf, mode.AsOf)
		fmt.Fprintf(b, " AND (%s.deleted_at IS NULL OR %s.deleted_at > ?)", prefix, prefix)
		*args = append(*args, mode.AsOf)
	}
}

// edgeCTE renders the CTE for a single-hop traversal target: the target
// node's columns, the edge's columns under an edge_ prefix, and the join_id
// column the outer query joins on.
func (g *Generator) edgeCTE(q *ast.Query, t *ast.Traversal, graphID string) cteDef {
	var b strings.Builder
	var args []any

	allKinds := append(append([]string{}, t.EdgeKinds...), t.InverseEdgeKinds...)

	b.WriteString("SELECT ")
	for i, c := range nodeColumns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("n." + c)
	}
	for _, c := range edgeColumns {
		fmt.Fprintf(&b, ", e.%s AS edge_%s", c, c)
	}
	joinExpr, targetExpr := joinTargetExprs(t, &args)
	fmt.Fprintf(&b, ", %s AS join_id", joinExpr)

	fmt.Fprintf(&b, " FROM edges e JOIN nodes n ON n.graph_id = e.graph_id AND n.id = %s", targetExpr)
	b.WriteString(" WHERE e.graph_id = ?")
	args = append(args, graphID)
	writeKindFilter(&b, &args, "e.kind", allKinds)
	writeKindFilter(&b, &args, "n.kind", t.NodeKinds)
	g.writeTemporal(&b, &args, "e", q.Temporal)
	g.writeTemporal(&b, &args, "n", q.Temporal)

	return cteDef{name: "cte_" + t.NodeAlias, sql: b.String(), args: args}
}

// recursiveCTEs renders the walk CTE and the target CTE for a
// variable-length traversal.
func (g *Generator) recursiveCTEs(q *ast.Query, t *ast.Traversal, graphID string) (cteDef, cteDef, error) {
	spec := t.Recursive
	maxDepth := spec.MaxDepth
	if maxDepth == -1 {
		maxDepth = ast.MaxRecursiveDepth
	}
	minDepth := spec.MinDepth
	if minDepth < 1 {
		minDepth = 1
	}

	allKinds := append(append([]string{}, t.EdgeKinds...), t.InverseEdgeKinds...)
	walkName := "cte_walk_" + t.NodeAlias

	// hopSelect scans candidate edges once, exposing join_id/target_id so
	// the walk members can reference them without re-rendering the
	// direction expressions (which may carry their own arguments).
	hopSelect := func(args *[]any) string {
		var hb strings.Builder
		joinExpr, targetExpr := joinTargetExprs(t, args)
		fmt.Fprintf(&hb, "SELECT %s AS join_id, %s AS target_id, e.id AS edge_id FROM edges e WHERE e.graph_id = ?",
			joinExpr, targetExpr)
		*args = append(*args, graphID)
		writeKindFilter(&hb, args, "e.kind", allKinds)
		g.writeTemporal(&hb, args, "e", q.Temporal)
		return hb.String()
	}

	var b strings.Builder
	var args []any

	// Base case: depth-1 hops.
	fmt.Fprintf(&b, "SELECT h.join_id, h.target_id, 1 AS depth, %s AS path, h.edge_id FROM (",
		g.F.PathInit("h.join_id", "h.target_id"))
	b.WriteString(hopSelect(&args))
	b.WriteString(") h")

	b.WriteString(" UNION ALL ")

	// Recursive case: extend each walk by one edge.
	fmt.Fprintf(&b, "SELECT w.join_id, h.target_id, w.depth + 1, %s, h.edge_id FROM %s w JOIN (",
		g.F.PathAppend("w.path", "h.target_id"), walkName)
	b.WriteString(hopSelect(&args))
	b.WriteString(") h ON h.join_id = w.target_id WHERE w.depth < ?")
	args = append(args, maxDepth)
	if spec.CyclePolicy != ast.CycleAllow {
		fmt.Fprintf(&b, " AND %s", g.F.PathExcludes("w.path", "h.target_id"))
	}

	walk := cteDef{name: walkName, sql: b.String(), args: args}

	// Target CTE: hydrate node and edge columns for each reached node.
	var fb strings.Builder
	var fargs []any
	fb.WriteString("SELECT ")
	for i, c := range nodeColumns {
		if i > 0 {
			fb.WriteString(", ")
		}
		fb.WriteString("n." + c)
	}
	for _, c := range edgeColumns {
		fmt.Fprintf(&fb, ", ee.%s AS edge_%s", c, c)
	}
	fb.WriteString(", w.join_id, w.depth, w.path")
	fmt.Fprintf(&fb, " FROM %s w JOIN nodes n ON n.graph_id = ? AND n.id = w.target_id", walkName)
	fargs = append(fargs, graphID)
	fb.WriteString(" JOIN edges ee ON ee.graph_id = ? AND ee.id = w.edge_id")
	fargs = append(fargs, graphID)
	fb.WriteString(" WHERE w.depth >= ?")
	fargs = append(fargs, minDepth)
	writeKindFilter(&fb, &fargs, "n.kind", t.NodeKinds)
	g.writeTemporal(&fb, &fargs, "n", q.Temporal)

	final := cteDef{name: "cte_" + t.NodeAlias, sql: fb.String(), args: fargs}
	return walk, final, nil
}

// CompileSetOperation compiles each leaf independently and joins them with
// the operator; the outer limit/offset applies to the combined result.
func (g *Generator) CompileSetOperation(op *dialect.SetOperation, graphID string, opts dialect.Options) (*dialect.CompiledSql, error) {
	sqlText, args, err := g.renderSetNode(op.Root, graphID, opts, true)
	if err != nil {
		return nil, err
	}
	if op.Limit != nil {
		sqlText += fmt.Sprintf(" LIMIT %d", *op.Limit)
	}
	if op.Offset != nil {
		sqlText += fmt.Sprintf(" OFFSET %d", *op.Offset)
	}
	return g.finish(&dialect.CompiledSql{SQL: sqlText, Args: args})
}

func setOperatorSQL(op dialect.SetOperator) (string, error) {
	switch op {
	case dialect.Union:
		return "UNION", nil
	case dialect.UnionAll:
		return "UNION ALL", nil
	case dialect.Intersect:
		return "INTERSECT", nil
	case dialect.Except:
		return "EXCEPT", nil
	default:
		return "", qerr.Validation(string(op), "unknown set operator %q", op)
	}
}

// renderSetNode renders a set-operation subtree. Leaves and nested
// compounds are wrapped in derived tables so operator precedence follows
// the tree shape, not the dialect's defaults.
func (g *Generator) renderSetNode(n *dialect.SetNode, graphID string, opts dialect.Options, top bool) (string, []any, error) {
	if n.Query != nil {
		c, err := g.compile(n.Query, graphID, opts)
		if err != nil {
			return "", nil, err
		}
		return fmt.Sprintf("SELECT * FROM (%s) AS sq_leaf", c.SQL), c.Args, nil
	}
	opSQL, err := setOperatorSQL(n.Op)
	if err != nil {
		return "", nil, err
	}
	left, largs, err := g.renderSetNode(n.Left, graphID, opts, false)
	if err != nil {
		return "", nil, err
	}
	right, rargs, err := g.renderSetNode(n.Right, graphID, opts, false)
	if err != nil {
		return "", nil, err
	}
	combined := fmt.Sprintf("%s %s %s", left, opSQL, right)
	args := append(largs, rargs...)
	if top {
		return combined, args, nil
	}
	return fmt.Sprintf("SELECT * FROM (%s) AS sq_set", combined), args, nil
}
