package ast

// WalkExpr visits every node of a predicate tree in depth-first order.
// Subqueries inside Exists / InSubquery are not descended into; callers
// that need them handle those variants themselves.
func WalkExpr(expr Expr, visit func(Expr)) {
	if expr == nil {
		return
	}
	visit(expr)
	switch e := expr.(type) {
	case *And:
		for _, op := range e.Operands {
			WalkExpr(op, visit)
		}
	case *Or:
		for _, op := range e.Operands {
			WalkExpr(op, visit)
		}
	case *Not:
		WalkExpr(e.Operand, visit)
	}
}

// ParamInfo describes the parameters referenced by a query.
type ParamInfo struct {
	// Names is every parameter name referenced anywhere in the query.
	Names map[string]bool
	// StringOpParams are the names used as a string-operation pattern;
	// their bindings must be strings.
	StringOpParams map[string]bool
}

// CollectParams gathers parameter references across all predicates and the
// HAVING clause, recursing into subqueries.
func CollectParams(q *Query) ParamInfo {
	info := ParamInfo{Names: map[string]bool{}, StringOpParams: map[string]bool{}}
	collectQueryParams(q, &info)
	return info
}

// HasParams reports whether any parameter reference appears in the query.
func HasParams(q *Query) bool {
	info := CollectParams(q)
	return len(info.Names) > 0
}

func collectQueryParams(q *Query, info *ParamInfo) {
	for _, p := range q.Predicates {
		collectExprParams(p.Expr, info)
	}
	collectExprParams(q.Having, info)
}

func collectExprParams(expr Expr, info *ParamInfo) {
	if expr == nil {
		return
	}
	record := func(v Value) {
		if v.IsParam() {
			info.Names[v.Param] = true
		}
	}
	switch e := expr.(type) {
	case *Comparison:
		record(e.Value)
		for _, v := range e.Values {
			record(v)
		}
	case *StringOp:
		if e.Pattern.IsParam() {
			info.Names[e.Pattern.Param] = true
			info.StringOpParams[e.Pattern.Param] = true
		}
	case *Between:
		record(e.Low)
		record(e.High)
	case *ArrayOp:
		for _, v := range e.Values {
			record(v)
		}
	case *ObjectOp:
		record(e.Value)
	case *AggregateComparison:
		record(e.Value)
	case *And:
		for _, op := range e.Operands {
			collectExprParams(op, info)
		}
	case *Or:
		for _, op := range e.Operands {
			collectExprParams(op, info)
		}
	case *Not:
		collectExprParams(e.Operand, info)
	case *Exists:
		collectQueryParams(e.Query, info)
	case *InSubquery:
		collectQueryParams(e.Query, info)
	}
}

// SubstituteParams returns a copy of the query with every parameter
// reference replaced by its bound literal. Bindings are assumed validated.
func SubstituteParams(q *Query, bindings map[string]any) *Query {
	out := q.Clone()
	for i := range out.Predicates {
		out.Predicates[i].Expr = substituteExpr(out.Predicates[i].Expr, bindings)
	}
	out.Having = substituteExpr(out.Having, bindings)
	return out
}

func substituteValue(v Value, bindings map[string]any) Value {
	if !v.IsParam() {
		return v
	}
	return Lit(bindings[v.Param])
}

func substituteExpr(expr Expr, bindings map[string]any) Expr {
	if expr == nil {
		return nil
	}
	switch e := expr.(type) {
	case *Comparison:
		out := *e
		out.Value = substituteValue(e.Value, bindings)
		if e.Values != nil {
			out.Values = make([]Value, len(e.Values))
			for i, v := range e.Values {
				out.Values[i] = substituteValue(v, bindings)
			}
		}
		return &out
	case *StringOp:
		out := *e
		out.Pattern = substituteValue(e.Pattern, bindings)
		return &out
	case *Between:
		out := *e
		out.Low = substituteValue(e.Low, bindings)
		out.High = substituteValue(e.High, bindings)
		return &out
	case *ArrayOp:
		out := *e
		if e.Values != nil {
			out.Values = make([]Value, len(e.Values))
			for i, v := range e.Values {
				out.Values[i] = substituteValue(v, bindings)
			}
		}
		return &out
	case *ObjectOp:
		out := *e
		out.Value = substituteValue(e.Value, bindings)
		return &out
	case *AggregateComparison:
		out := *e
		out.Value = substituteValue(e.Value, bindings)
		return &out
	case *And:
		out := &And{Operands: make([]Expr, len(e.Operands))}
		for i, op := range e.Operands {
			out.Operands[i] = substituteExpr(op, bindings)
		}
		return out
	case *Or:
		out := &Or{Operands: make([]Expr, len(e.Operands))}
		for i, op := range e.Operands {
			out.Operands[i] = substituteExpr(op, bindings)
		}
		return out
	case *Not:
		return &Not{Operand: substituteExpr(e.Operand, bindings)}
	case *Exists:
		return &Exists{Query: SubstituteParams(e.Query, bindings), Negated: e.Negated}
	case *InSubquery:
		out := *e
		out.Query = SubstituteParams(e.Query, bindings)
		return &out
	default:
		return expr
	}
}
