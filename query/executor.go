package query

import (
	"context"

	"github.com/mvp-joe/typequery/ast"
	"github.com/mvp-joe/typequery/backend"
	"github.com/mvp-joe/typequery/dialect"
	"github.com/mvp-joe/typequery/qerr"
)

// ExecutableQuery is a finalized query ready to run. Compiled SQL and the
// selective-field plan are computed lazily and cached per instance; the
// caches are not synchronized, so share an instance across tasks only with
// external serialization.
type ExecutableQuery struct {
	e        *Engine
	q        *ast.Query
	selectFn SelectFunc
	err      error

	cachedCompiled          *dialect.CompiledSql
	cachedOptimizedCompiled *dialect.CompiledSql
	cachedSelectiveFields   []ast.SelectiveField
	selectiveTried          bool
	optimizeDisabled        bool
}

// Ast returns the query's immutable AST (full-blob projection shape).
func (x *ExecutableQuery) Ast() (*ast.Query, error) {
	if x.err != nil {
		return nil, x.err
	}
	return x.q.Clone(), nil
}

// Execute compiles (or reuses) the SQL, runs it, and maps rows through the
// select callback. The selective-projection path is attempted first; the
// two internal fallback signals route execution back to the full-blob
// shape and are memoized so later calls skip the failed attempt.
func (x *ExecutableQuery) Execute(ctx context.Context) ([]any, error) {
	if x.err != nil {
		return nil, x.err
	}
	if ast.HasParams(x.q) {
		return nil, qerr.Validation("parameters",
			"query references named parameters; use Prepare().Execute(bindings)").
			WithSuggestion("call Prepare first and pass bindings to its Execute")
	}

	if results, done, err := x.executeOptimized(ctx); done {
		return results, err
	}
	return x.executeFull(ctx)
}

// executeOptimized attempts the selective path. done=false means "fall back
// to the full-blob path".
func (x *ExecutableQuery) executeOptimized(ctx context.Context) (results []any, done bool, err error) {
	plan, ok := x.selectivePlan()
	if !ok {
		return nil, false, nil
	}
	compiled, err := x.optimizedCompiled(plan)
	if err != nil {
		if qerr.IsUnsupportedPredicate(err) {
			x.optimizeDisabled = true
			return nil, false, nil
		}
		return nil, true, err
	}
	rows, err := x.e.backend.Execute(ctx, compiled)
	if err != nil {
		return nil, true, err
	}
	results, err = mapSelectiveResults(x.q, plan, rows, x.selectFn)
	if err != nil {
		if qerr.IsMissingSelectiveField(err) {
			x.optimizeDisabled = true
			return nil, false, nil
		}
		return nil, true, err
	}
	return results, true, nil
}

func (x *ExecutableQuery) executeFull(ctx context.Context) ([]any, error) {
	compiled, err := x.fullCompiled()
	if err != nil {
		return nil, err
	}
	rows, err := x.e.backend.Execute(ctx, compiled)
	if err != nil {
		return nil, err
	}
	return mapResults(x.q, rows, x.selectFn), nil
}

// selectivePlan runs the tracking passes once and caches the outcome.
func (x *ExecutableQuery) selectivePlan() ([]ast.SelectiveField, bool) {
	if x.optimizeDisabled {
		return nil, false
	}
	if !x.selectiveTried {
		x.selectiveTried = true
		plan, ok := trackSelect(x.q, x.selectFn, x.e.intro)
		if !ok {
			x.optimizeDisabled = true
			return nil, false
		}
		x.cachedSelectiveFields = plan
	}
	return x.cachedSelectiveFields, x.cachedSelectiveFields != nil
}

func (x *ExecutableQuery) optimizedCompiled(plan []ast.SelectiveField) (*dialect.CompiledSql, error) {
	if x.cachedOptimizedCompiled != nil {
		return x.cachedOptimizedCompiled, nil
	}
	q := x.q.Clone()
	q.SelectiveFields = plan
	compiled, err := x.e.compiler.CompileQuery(q, x.q.GraphID, dialect.Options{})
	if err != nil {
		return nil, err
	}
	x.cachedOptimizedCompiled = compiled
	return compiled, nil
}

func (x *ExecutableQuery) fullCompiled() (*dialect.CompiledSql, error) {
	if x.cachedCompiled != nil {
		return x.cachedCompiled, nil
	}
	compiled, err := x.e.compiler.CompileQuery(x.q, x.q.GraphID, dialect.Options{NoSelective: true})
	if err != nil {
		return nil, err
	}
	x.cachedCompiled = compiled
	return compiled, nil
}

// mapResults maps full-blob rows through the select callback, preserving
// the backend's row order. Inputs are not mutated.
func mapResults(q *ast.Query, rows []backend.Row, fn SelectFunc) []any {
	out := make([]any, 0, len(rows))
	for _, row := range rows {
		out = append(out, fn(buildSelectContext(q, row)))
	}
	return out
}

// ExecutableAggregateQuery runs an aggregate projection and returns rows as
// output-name keyed maps.
type ExecutableAggregateQuery struct {
	e   *Engine
	q   *ast.Query
	err error

	cachedCompiled *dialect.CompiledSql
}

// Execute compiles (once) and runs the aggregate query.
func (x *ExecutableAggregateQuery) Execute(ctx context.Context) ([]map[string]any, error) {
	if x.err != nil {
		return nil, x.err
	}
	if ast.HasParams(x.q) {
		return nil, qerr.Validation("parameters",
			"query references named parameters; use Prepare().Execute(bindings)")
	}
	if x.cachedCompiled == nil {
		compiled, err := x.e.compiler.CompileQuery(x.q, x.q.GraphID, dialect.Options{})
		if err != nil {
			return nil, err
		}
		x.cachedCompiled = compiled
	}
	rows, err := x.e.backend.Execute(ctx, x.cachedCompiled)
	if err != nil {
		return nil, err
	}
	out := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		m := make(map[string]any, len(row))
		for k, v := range row {
			m[k] = v
		}
		out = append(out, m)
	}
	return out, nil
}
