package query

import (
	"context"
	"sort"

	"github.com/mvp-joe/typequery/ast"
	"github.com/mvp-joe/typequery/backend"
	"github.com/mvp-joe/typequery/dialect"
	"github.com/mvp-joe/typequery/qerr"
)

// PreparedQuery holds a query compiled once for repeated execution with
// different bindings. Both the selective-optimized form (when the tracking
// passes allow one) and the full-blob form are pre-compiled; execution
// falls back from the former to the latter per call.
type PreparedQuery struct {
	x    *ExecutableQuery
	info ast.ParamInfo

	full      *dialect.CompiledSql
	optimized *dialect.CompiledSql
	plan      []ast.SelectiveField
}

// Prepare compiles the query's artifacts and gathers parameter metadata.
func (x *ExecutableQuery) Prepare() (*PreparedQuery, error) {
	if x.err != nil {
		return nil, x.err
	}
	p := &PreparedQuery{x: x, info: ast.CollectParams(x.q)}

	full, err := x.fullCompiled()
	if err != nil {
		return nil, err
	}
	p.full = full

	if plan, ok := x.selectivePlan(); ok {
		optimized, err := x.optimizedCompiled(plan)
		switch {
		case err == nil:
			p.optimized = optimized
			p.plan = plan
		case qerr.IsUnsupportedPredicate(err):
			// Permanently unavailable for this dialect; the full form
			// serves every call.
		default:
			return nil, err
		}
	}
	return p, nil
}

// ParamNames returns the sorted parameter names the query requires.
func (p *PreparedQuery) ParamNames() []string {
	names := make([]string, 0, len(p.info.Names))
	for n := range p.info.Names {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// validateBindings enforces the binding contract: every required name
// present, no unexpected names, no nil values, and string values for
// string-operation parameters.
func (p *PreparedQuery) validateBindings(bindings map[string]any) error {
	var missing, unexpected []string
	for name := range p.info.Names {
		if _, ok := bindings[name]; !ok {
			missing = append(missing, name)
		}
	}
	for name := range bindings {
		if !p.info.Names[name] {
			unexpected = append(unexpected, name)
		}
	}
	sort.Strings(missing)
	sort.Strings(unexpected)
	if len(missing) > 0 {
		return qerr.Configuration("missing parameters: %v", missing).
			WithDetail("missingParameters", missing)
	}
	if len(unexpected) > 0 {
		return qerr.Configuration("unexpected parameters: %v", unexpected).
			WithDetail("unexpectedParameters", unexpected)
	}
	for name, v := range bindings {
		if v == nil {
			return qerr.Configuration("parameter %q is nil; bind an absent pattern instead", name)
		}
		if p.info.StringOpParams[name] {
			if _, ok := v.(string); !ok {
				return qerr.Configuration("parameter %q is used as a string-operation pattern and must be a string", name)
			}
		}
	}
	return nil
}

// Execute validates bindings and runs the query, preferring the raw fast
// path and the selective form. Selective fallback is decided per call:
// different bindings may or may not trigger it.
func (p *PreparedQuery) Execute(ctx context.Context, bindings map[string]any) ([]any, error) {
	if err := p.validateBindings(bindings); err != nil {
		return nil, err
	}
	if raw, ok := p.x.e.backend.(backend.RawExecutor); ok {
		return p.executeRaw(ctx, raw, bindings)
	}
	return p.executeSubstituted(ctx, bindings)
}

// executeRaw fills parameter slots in the pre-compiled argument lists and
// executes the SQL text directly.
func (p *PreparedQuery) executeRaw(ctx context.Context, raw backend.RawExecutor, bindings map[string]any) ([]any, error) {
	if p.optimized != nil {
		rows, err := raw.ExecuteRaw(ctx, p.optimized.SQL, p.fillParams(p.optimized.Args, bindings))
		if err != nil {
			return nil, err
		}
		results, err := mapSelectiveResults(p.x.q, p.plan, rows, p.x.selectFn)
		if err == nil {
			return results, nil
		}
		if !qerr.IsMissingSelectiveField(err) {
			return nil, err
		}
	}
	rows, err := raw.ExecuteRaw(ctx, p.full.SQL, p.fillParams(p.full.Args, bindings))
	if err != nil {
		return nil, err
	}
	return mapResults(p.x.q, rows, p.x.selectFn), nil
}

// executeSubstituted is the fallback when the backend has no raw path:
// parameter references are replaced with literals and the AST recompiled.
func (p *PreparedQuery) executeSubstituted(ctx context.Context, bindings map[string]any) ([]any, error) {
	substituted := ast.SubstituteParams(p.x.q, bindings)

	if p.plan != nil {
		q := substituted.Clone()
		q.SelectiveFields = p.plan
		compiled, err := p.x.e.compiler.CompileQuery(q, q.GraphID, dialect.Options{})
		if err == nil {
			rows, err := p.x.e.backend.Execute(ctx, compiled)
			if err != nil {
				return nil, err
			}
			results, err := mapSelectiveResults(p.x.q, p.plan, rows, p.x.selectFn)
			if err == nil {
				return results, nil
			}
			if !qerr.IsMissingSelectiveField(err) {
				return nil, err
			}
		} else if !qerr.IsUnsupportedPredicate(err) {
			return nil, err
		}
	}

	compiled, err := p.x.e.compiler.CompileQuery(substituted, substituted.GraphID, dialect.Options{NoSelective: true})
	if err != nil {
		return nil, err
	}
	rows, err := p.x.e.backend.Execute(ctx, compiled)
	if err != nil {
		return nil, err
	}
	return mapResults(p.x.q, rows, p.x.selectFn), nil
}

// fillParams copies the argument list, replacing parameter sentinels with
// bound values converted through the dialect's bind step.
func (p *PreparedQuery) fillParams(args []any, bindings map[string]any) []any {
	out := make([]any, len(args))
	for i, a := range args {
		if param, ok := a.(dialect.Param); ok {
			out[i] = p.x.e.compiler.BindValue(bindings[param.Name])
			continue
		}
		out[i] = a
	}
	return out
}
