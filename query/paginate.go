package query

import (
	"context"
	"encoding/json"

	"github.com/mvp-joe/typequery/ast"
	"github.com/mvp-joe/typequery/backend"
	"github.com/mvp-joe/typequery/dialect"
	"github.com/mvp-joe/typequery/qerr"
)

// DefaultPageSize is used when neither First nor Last is given.
const DefaultPageSize = 20

// PaginateOptions selects a page: forward with First/After or backward with
// Last/Before.
type PaginateOptions struct {
	First  int
	After  string
	Last   int
	Before string
}

// Page is one pagination result.
type Page struct {
	Items       []any
	NextCursor  string
	PrevCursor  string
	HasNextPage bool
	HasPrevPage bool
}

// Paginate fetches one keyset page. The query must carry a non-empty
// ORDER BY; cursors are validated against its column identifiers.
func (x *ExecutableQuery) Paginate(ctx context.Context, opts PaginateOptions) (*Page, error) {
	if x.err != nil {
		return nil, x.err
	}
	if ast.HasParams(x.q) {
		return nil, qerr.Validation("parameters",
			"query references named parameters; use Prepare().Execute(bindings)")
	}
	if len(x.q.OrderBy) == 0 {
		return nil, qerr.Validation("orderBy", "paginate requires a non-empty orderBy").
			WithSuggestion("add OrderBy before paginating")
	}

	backward := opts.Last > 0 || opts.Before != ""
	limit := DefaultPageSize
	switch {
	case backward && opts.Last > 0:
		limit = opts.Last
	case !backward && opts.First > 0:
		limit = opts.First
	}

	cursorStr := opts.After
	if backward {
		cursorStr = opts.Before
	}
	var cursor *ast.CursorData
	if cursorStr != "" {
		decoded, err := ast.DecodeCursor(cursorStr)
		if err != nil {
			return nil, err
		}
		if err := ast.ValidateCursorFor(decoded, x.q.OrderBy); err != nil {
			return nil, err
		}
		cursor = &decoded
	}

	q2 := x.q.Clone()
	if cursor != nil {
		expr := buildCursorExpr(q2.OrderBy, cursor.Vals, !backward)
		q2.Predicates = append(q2.Predicates, ast.NodePredicate{
			TargetAlias: q2.Start.Alias,
			TargetType:  "node",
			Expr:        expr,
		})
	}
	if backward {
		for i := range q2.OrderBy {
			q2.OrderBy[i].Desc = !q2.OrderBy[i].Desc
		}
	}
	fetch := limit + 1
	q2.Limit = &fetch
	q2.Offset = nil

	items, rawVals, err := x.paginateRows(ctx, q2)
	if err != nil {
		return nil, err
	}

	hasMore := len(items) > limit
	if hasMore {
		items = items[:limit]
		rawVals = rawVals[:limit]
	}
	if backward {
		reverseSlice(items)
		reverseSlice(rawVals)
	}

	page := &Page{Items: items}
	if len(items) == 0 {
		return page, nil
	}

	first, err := x.encodeBoundary(rawVals[0], ast.CursorBackward)
	if err != nil {
		return nil, err
	}
	last, err := x.encodeBoundary(rawVals[len(rawVals)-1], ast.CursorForward)
	if err != nil {
		return nil, err
	}

	if backward {
		page.HasNextPage = true
		page.NextCursor = last
		page.HasPrevPage = hasMore
		if hasMore {
			page.PrevCursor = first
		}
	} else {
		page.HasNextPage = hasMore
		if hasMore {
			page.NextCursor = last
		}
		page.HasPrevPage = opts.After != ""
		if page.HasPrevPage {
			page.PrevCursor = first
		}
	}
	return page, nil
}

// paginateRows executes the page query, preferring the selective shape when
// the plan exists and every ORDER BY field is a single-segment property.
// It returns mapped items plus the per-row ORDER BY values for cursors.
func (x *ExecutableQuery) paginateRows(ctx context.Context, q2 *ast.Query) ([]any, [][]any, error) {
	if plan, ok := x.paginationPlan(); ok {
		items, rawVals, err := x.paginateSelective(ctx, q2, plan)
		if err == nil {
			return items, rawVals, nil
		}
		if !qerr.IsMissingSelectiveField(err) && !qerr.IsUnsupportedPredicate(err) {
			return nil, nil, err
		}
	}

	compiled, err := x.e.compiler.CompileQuery(q2, q2.GraphID, dialect.Options{NoSelective: true})
	if err != nil {
		return nil, nil, err
	}
	rows, err := x.e.backend.Execute(ctx, compiled)
	if err != nil {
		return nil, nil, err
	}
	items := mapResults(x.q, rows, x.selectFn)
	rawVals := make([][]any, len(rows))
	for i, row := range rows {
		rawVals[i] = extractCursorValues(row, x.q.OrderBy)
	}
	return items, rawVals, nil
}

// paginationPlan returns the selective plan augmented with the ORDER BY
// fields, or ok=false when the optimized paginate does not apply (no plan,
// or an ORDER BY field that is not a single-segment property).
func (x *ExecutableQuery) paginationPlan() ([]ast.SelectiveField, bool) {
	plan, ok := x.selectivePlan()
	if !ok {
		return nil, false
	}
	for _, spec := range x.q.OrderBy {
		if spec.Field.Path != ast.PathProps || len(spec.Field.JSONPointer) != 1 {
			return nil, false
		}
	}
	augmented := append([]ast.SelectiveField(nil), plan...)
	for _, spec := range x.q.OrderBy {
		alias, field := spec.Field.Alias, spec.Field.JSONPointer[0]
		if hasSelectiveField(augmented, alias, field) {
			continue
		}
		augmented = append(augmented, ast.SelectiveField{
			Alias:      alias,
			Field:      field,
			OutputName: alias + "__" + field,
			ValueType:  spec.Field.ValueType,
		})
	}
	return augmented, true
}

func hasSelectiveField(plan []ast.SelectiveField, alias, field string) bool {
	for _, f := range plan {
		if f.Alias == alias && f.Field == field {
			return true
		}
	}
	return false
}

func (x *ExecutableQuery) paginateSelective(ctx context.Context, q2 *ast.Query, plan []ast.SelectiveField) ([]any, [][]any, error) {
	q := q2.Clone()
	q.SelectiveFields = plan
	compiled, err := x.e.compiler.CompileQuery(q, q.GraphID, dialect.Options{})
	if err != nil {
		return nil, nil, err
	}
	rows, err := x.e.backend.Execute(ctx, compiled)
	if err != nil {
		return nil, nil, err
	}
	items, err := mapSelectiveResults(x.q, plan, rows, x.selectFn)
	if err != nil {
		return nil, nil, err
	}
	rawVals := make([][]any, len(rows))
	for i, row := range rows {
		vals := make([]any, len(x.q.OrderBy))
		for j, spec := range x.q.OrderBy {
			vals[j] = row[spec.Field.Alias+"__"+spec.Field.JSONPointer[0]]
		}
		rawVals[i] = vals
	}
	return items, rawVals, nil
}

func (x *ExecutableQuery) encodeBoundary(vals []any, direction string) (string, error) {
	return ast.EncodeCursor(ast.CursorData{
		V:    ast.CursorVersion,
		D:    direction,
		Vals: vals,
		Cols: ast.ColumnIDs(x.q.OrderBy),
	})
}

// extractCursorValues reads the ORDER BY values out of a full-blob row.
func extractCursorValues(row backend.Row, orderBy []ast.OrderSpec) []any {
	vals := make([]any, len(orderBy))
	for i, spec := range orderBy {
		vals[i] = extractCursorValue(row, spec)
	}
	return vals
}

func extractCursorValue(row backend.Row, spec ast.OrderSpec) any {
	f := spec.Field
	if f.Path != ast.PathProps {
		return row[f.Alias+"__"+f.Path]
	}
	raw := asString(row[f.Alias+"__props"])
	if raw == "" {
		return nil
	}
	var decoded map[string]any
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		return nil
	}
	var v any = decoded
	for _, seg := range f.JSONPointer {
		m, ok := v.(map[string]any)
		if !ok {
			return nil
		}
		v = m[seg]
	}
	return v
}

// buildCursorExpr synthesizes the row-wise keyset predicate for a page
// boundary: (c1 op v1) OR (c1 = v1 AND c2 op v2) OR ... NULL boundary
// values become IS NULL in equality positions and IS NOT NULL in
// comparison positions.
func buildCursorExpr(orderBy []ast.OrderSpec, vals []any, forward bool) ast.Expr {
	var disjuncts []ast.Expr
	for i := range orderBy {
		var conjuncts []ast.Expr
		for j := 0; j < i; j++ {
			conjuncts = append(conjuncts, cursorEquality(orderBy[j].Field, vals[j]))
		}
		conjuncts = append(conjuncts, cursorComparison(orderBy[i], vals[i], forward))
		if len(conjuncts) == 1 {
			disjuncts = append(disjuncts, conjuncts[0])
		} else {
			disjuncts = append(disjuncts, &ast.And{Operands: conjuncts})
		}
	}
	if len(disjuncts) == 1 {
		return disjuncts[0]
	}
	return &ast.Or{Operands: disjuncts}
}

func cursorEquality(field ast.FieldRef, val any) ast.Expr {
	if val == nil {
		return &ast.NullCheck{Field: field, IsNull: true}
	}
	return &ast.Comparison{Field: field, Op: ast.OpEq, Value: ast.Lit(val)}
}

func cursorComparison(spec ast.OrderSpec, val any, forward bool) ast.Expr {
	if val == nil {
		// Approximates NULLS-last ordering for forward pagination.
		return &ast.NullCheck{Field: spec.Field, IsNull: false}
	}
	op := ast.OpGt
	asc := !spec.Desc
	if asc != forward {
		op = ast.OpLt
	}
	return &ast.Comparison{Field: spec.Field, Op: op, Value: ast.Lit(val)}
}

func reverseSlice[T any](s []T) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}
