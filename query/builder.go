package query

import (
	"time"

	"github.com/mvp-joe/typequery/ast"
	"github.com/mvp-joe/typequery/qerr"
)

// OrderDirection is an ORDER BY direction.
type OrderDirection string

const (
	Asc  OrderDirection = "asc"
	Desc OrderDirection = "desc"
)

// aliasInfo tracks what a declared alias names.
type aliasInfo struct {
	kinds    []string
	isEdge   bool
	optional bool
}

// Builder accumulates a query. Every fluent operation returns a fresh
// builder; validation failures stick to the builder and surface from
// ToAst, Select, or Aggregate.
type Builder struct {
	e       *Engine
	q       *ast.Query
	aliases map[string]aliasInfo
	current string // alias new traversals join from by default
	err     error
}

// From roots a query at a node kind. includeSubClasses expands the kind
// through the ontology registry.
func (e *Engine) From(kind, alias string, opts ...FromOption) *Builder {
	var cfg fromConfig
	for _, o := range opts {
		o(&cfg)
	}
	b := &Builder{
		e:       e,
		q:       &ast.Query{GraphID: e.def.ID},
		aliases: map[string]aliasInfo{},
		current: alias,
	}
	if err := ast.ValidateAlias(alias); err != nil {
		b.err = err
		return b
	}
	kinds := []string{kind}
	if cfg.includeSubClasses {
		kinds = e.registry.ExpandSubClasses(kind)
	}
	for _, k := range kinds {
		if e.def.Node(k) == nil {
			b.err = qerr.New(qerr.KindKindNotFound, "unknown node kind %q", k)
			return b
		}
	}
	b.q.Start = ast.StartSpec{Alias: alias, Kinds: kinds, IncludeSubClasses: cfg.includeSubClasses}
	b.aliases[alias] = aliasInfo{kinds: kinds}
	return b
}

type fromConfig struct {
	includeSubClasses bool
}

// FromOption configures From and To.
type FromOption func(*fromConfig)

// IncludeSubClasses expands the kind to itself plus all subclasses.
func IncludeSubClasses() FromOption {
	return func(c *fromConfig) { c.includeSubClasses = true }
}

// clone returns an independent copy of the builder.
func (b *Builder) clone() *Builder {
	out := &Builder{
		e:       b.e,
		q:       b.q.Clone(),
		aliases: make(map[string]aliasInfo, len(b.aliases)),
		current: b.current,
		err:     b.err,
	}
	for k, v := range b.aliases {
		out.aliases[k] = v
	}
	return out
}

func (b *Builder) fail(err error) *Builder {
	out := b.clone()
	if out.err == nil {
		out.err = err
	}
	return out
}

func (b *Builder) checkNewAlias(alias string) error {
	if err := ast.ValidateAlias(alias); err != nil {
		return err
	}
	if _, exists := b.aliases[alias]; exists {
		return qerr.Validation(alias, "alias %q already in use", alias)
	}
	return nil
}

// EdgeExpand selects ontology-based edge-kind expansion for a traversal.
type EdgeExpand string

const (
	ExpandNone     EdgeExpand = "none"
	ExpandImplying EdgeExpand = "implying"
	ExpandInverse  EdgeExpand = "inverse"
	ExpandAll      EdgeExpand = "all"
)

type traverseConfig struct {
	direction ast.Direction
	expand    EdgeExpand
	from      string
}

// TraverseOption configures Traverse and OptionalTraverse.
type TraverseOption func(*traverseConfig)

// In traverses against the edge direction (matching on to_id).
func In() TraverseOption {
	return func(c *traverseConfig) { c.direction = ast.DirectionIn }
}

// Expand selects ontology expansion of the edge kind.
func Expand(mode EdgeExpand) TraverseOption {
	return func(c *traverseConfig) { c.expand = mode }
}

// FromAlias joins the traversal from the given node alias instead of the
// current one.
func FromAlias(alias string) TraverseOption {
	return func(c *traverseConfig) { c.from = alias }
}

// TraversalBuilder is the intermediate state between Traverse and To.
type TraversalBuilder struct {
	b   *Builder
	t   ast.Traversal
	err error
}

// Traverse starts an edge hop. The traversal is finalized by To.
func (b *Builder) Traverse(edgeKind, edgeAlias string, opts ...TraverseOption) *TraversalBuilder {
	return b.traverse(edgeKind, edgeAlias, false, opts)
}

// OptionalTraverse starts an edge hop with LEFT-JOIN semantics: rows
// survive with an absent target when no matching edge exists.
func (b *Builder) OptionalTraverse(edgeKind, edgeAlias string, opts ...TraverseOption) *TraversalBuilder {
	return b.traverse(edgeKind, edgeAlias, true, opts)
}

func (b *Builder) traverse(edgeKind, edgeAlias string, optional bool, opts []TraverseOption) *TraversalBuilder {
	cfg := traverseConfig{direction: ast.DirectionOut, expand: ExpandNone, from: b.current}
	for _, o := range opts {
		o(&cfg)
	}
	tb := &TraversalBuilder{b: b, err: b.err}
	if tb.err != nil {
		return tb
	}
	if err := b.checkNewAlias(edgeAlias); err != nil {
		tb.err = err
		return tb
	}
	src, ok := b.aliases[cfg.from]
	if !ok || src.isEdge {
		tb.err = qerr.Validation(cfg.from, "traversal source %q is not a node alias", cfg.from)
		return tb
	}
	if b.e.def.Edge(edgeKind) == nil {
		tb.err = qerr.New(qerr.KindKindNotFound, "unknown edge kind %q", edgeKind)
		return tb
	}

	edgeKinds := []string{edgeKind}
	var inverseKinds []string
	switch cfg.expand {
	case ExpandImplying:
		edgeKinds = b.e.registry.ExpandImplyingEdges(edgeKind)
	case ExpandInverse:
		if inv, ok := b.e.registry.GetInverseEdge(edgeKind); ok {
			inverseKinds = []string{inv}
		}
	case ExpandAll:
		edgeKinds = b.e.registry.ExpandImplyingEdges(edgeKind)
		for _, k := range edgeKinds {
			if inv, ok := b.e.registry.GetInverseEdge(k); ok {
				inverseKinds = append(inverseKinds, inv)
			}
		}
	}

	joinField := "from_id"
	if cfg.direction == ast.DirectionIn {
		joinField = "to_id"
	}
	tb.t = ast.Traversal{
		EdgeAlias:        edgeAlias,
		EdgeKinds:        edgeKinds,
		InverseEdgeKinds: inverseKinds,
		Direction:        cfg.direction,
		JoinFromAlias:    cfg.from,
		JoinEdgeField:    joinField,
		Optional:         optional,
	}
	return tb
}

// RecursiveOptions configures a variable-length traversal.
type RecursiveOptions struct {
	MinHops     int  // default 1
	MaxHops     int  // 0 means the ceiling; -1 also means the ceiling
	AllowCycles bool // default: cycles are prevented
	Depth       bool // expose the hop count as <alias>_depth
	Path        bool // expose the visited ids as <alias>_path
}

// Recursive makes the traversal variable-length.
func (tb *TraversalBuilder) Recursive(opts RecursiveOptions) *TraversalBuilder {
	if tb.err != nil {
		return tb
	}
	out := *tb
	maxHops := opts.MaxHops
	if maxHops == 0 {
		maxHops = -1
	}
	policy := ast.CyclePrevent
	if opts.AllowCycles {
		policy = ast.CycleAllow
	}
	out.t.Recursive = &ast.RecursiveSpec{
		MinDepth:    opts.MinHops,
		MaxDepth:    maxHops,
		CyclePolicy: policy,
	}
	if opts.Depth {
		out.t.Recursive.DepthAlias = "__pending_depth"
	}
	if opts.Path {
		out.t.Recursive.PathAlias = "__pending_path"
	}
	if err := ast.ValidateRecursiveSpec(&ast.RecursiveSpec{
		MinDepth: out.t.Recursive.MinDepth, MaxDepth: out.t.Recursive.MaxDepth,
		CyclePolicy: policy,
	}); err != nil {
		out.err = err
	}
	return &out
}

// To finalizes the traversal at a target node kind. Target validity is
// checked against the edge's declared endpoint kinds for the traversal
// direction.
func (tb *TraversalBuilder) To(kind, alias string, opts ...FromOption) *Builder {
	if tb.err != nil {
		return tb.b.fail(tb.err)
	}
	b := tb.b
	var cfg fromConfig
	for _, o := range opts {
		o(&cfg)
	}
	if err := b.checkNewAlias(alias); err != nil {
		return b.fail(err)
	}
	if alias == tb.t.EdgeAlias {
		return b.fail(qerr.Validation(alias, "alias %q already in use", alias))
	}

	kinds := []string{kind}
	if cfg.includeSubClasses {
		kinds = b.e.registry.ExpandSubClasses(kind)
	}
	for _, k := range kinds {
		if b.e.def.Node(k) == nil {
			return b.fail(qerr.New(qerr.KindKindNotFound, "unknown node kind %q", k))
		}
	}

	// The declared endpoint check is skipped for ontology-expanded target
	// kinds: only the asked-for kind must be a declared endpoint.
	direction := string(tb.t.Direction)
	valid := false
	for _, ek := range tb.t.EdgeKinds {
		def := b.e.def.Edge(ek)
		if def != nil && def.AllowsTarget(direction, kind) {
			valid = true
			break
		}
	}
	if !valid {
		return b.fail(qerr.New(qerr.KindEndpoint,
			"kind %q is not a valid %q-direction target of edge %v", kind, direction, tb.t.EdgeKinds))
	}

	out := b.clone()
	t := tb.t
	t.NodeAlias = alias
	t.NodeKinds = kinds
	if t.Recursive != nil {
		if t.Recursive.DepthAlias == "__pending_depth" {
			t.Recursive.DepthAlias = alias + "_depth"
		}
		if t.Recursive.PathAlias == "__pending_path" {
			t.Recursive.PathAlias = alias + "_path"
		}
	}
	out.q.Traversals = append(out.q.Traversals, t)
	out.aliases[t.EdgeAlias] = aliasInfo{kinds: t.EdgeKinds, isEdge: true, optional: t.Optional}
	out.aliases[alias] = aliasInfo{kinds: kinds, optional: t.Optional}
	out.current = alias
	return out
}

// WhereNode attaches a predicate to a node alias. The callback receives a
// typed field accessor for the alias's kinds.
func (b *Builder) WhereNode(alias string, fn func(Fields) Predicate) *Builder {
	return b.where(alias, false, fn)
}

// WhereEdge attaches a predicate to an edge alias.
func (b *Builder) WhereEdge(alias string, fn func(Fields) Predicate) *Builder {
	return b.where(alias, true, fn)
}

func (b *Builder) where(alias string, wantEdge bool, fn func(Fields) Predicate) *Builder {
	if b.err != nil {
		return b
	}
	info, ok := b.aliases[alias]
	if !ok {
		return b.fail(qerr.Validation(alias, "unknown alias %q", alias))
	}
	if info.isEdge != wantEdge {
		kind := "node"
		if wantEdge {
			kind = "edge"
		}
		return b.fail(qerr.Validation(alias, "alias %q is not a %s alias", alias, kind))
	}
	p := fn(b.fieldsFor(alias, info))
	if p.err != nil {
		return b.fail(p.err)
	}
	if err := ast.ValidateVectorPlacement(p.expr); err != nil {
		return b.fail(err)
	}
	targetType := "node"
	if wantEdge {
		targetType = "edge"
	}
	out := b.clone()
	out.q.Predicates = append(out.q.Predicates, ast.NodePredicate{
		TargetAlias: alias,
		TargetType:  targetType,
		Expr:        p.expr,
	})
	return out
}

func (b *Builder) fieldsFor(alias string, info aliasInfo) Fields {
	return Fields{
		alias:  alias,
		kinds:  info.kinds,
		isEdge: info.isEdge,
		intro:  b.e.intro,
	}
}

// OrderBy records ordering on a property field of an alias. The field's
// value type is resolved through the introspector so the compiler can
// extract it with the right shape.
func (b *Builder) OrderBy(alias, field string, dir OrderDirection) *Builder {
	if b.err != nil {
		return b
	}
	info, ok := b.aliases[alias]
	if !ok {
		return b.fail(qerr.Validation(alias, "unknown alias %q", alias))
	}
	out := b.clone()
	f := Fields{alias: alias, kinds: info.kinds, isEdge: info.isEdge, intro: b.e.intro}
	ref := f.fieldRef(field)
	out.q.OrderBy = append(out.q.OrderBy, ast.OrderSpec{Field: ref, Desc: dir == Desc})
	return out
}

// Limit caps the number of result rows.
func (b *Builder) Limit(n int) *Builder {
	out := b.clone()
	out.q.Limit = &n
	return out
}

// Offset skips the first n result rows.
func (b *Builder) Offset(n int) *Builder {
	out := b.clone()
	out.q.Offset = &n
	return out
}

// TemporalAll makes the query see every row version.
func (b *Builder) TemporalAll() *Builder {
	out := b.clone()
	out.q.Temporal = ast.TemporalMode{Mode: "all"}
	return out
}

// TemporalAsOf makes the query see the versions valid at t.
func (b *Builder) TemporalAsOf(t time.Time) *Builder {
	out := b.clone()
	out.q.Temporal = ast.TemporalMode{Mode: "asOf", AsOf: t.UTC().Format(ast.TimeFormat)}
	return out
}

// GroupBy groups by a property field of an alias.
func (b *Builder) GroupBy(alias, field string) *Builder {
	if b.err != nil {
		return b
	}
	info, ok := b.aliases[alias]
	if !ok {
		return b.fail(qerr.Validation(alias, "unknown alias %q", alias))
	}
	out := b.clone()
	f := Fields{alias: alias, kinds: info.kinds, isEdge: info.isEdge, intro: b.e.intro}
	out.q.GroupBy = append(out.q.GroupBy, f.fieldRef(field))
	return out
}

// GroupByNode groups by a node alias's id.
func (b *Builder) GroupByNode(alias string) *Builder {
	if b.err != nil {
		return b
	}
	if _, ok := b.aliases[alias]; !ok {
		return b.fail(qerr.Validation(alias, "unknown alias %q", alias))
	}
	out := b.clone()
	out.q.GroupBy = append(out.q.GroupBy, ast.FieldRef{Alias: alias, Path: ast.PathID})
	return out
}

// Having attaches an aggregate predicate, built with Count, Sum, and the
// other aggregate helpers.
func (b *Builder) Having(p Predicate) *Builder {
	if b.err != nil {
		return b
	}
	if p.err != nil {
		return b.fail(p.err)
	}
	out := b.clone()
	out.q.Having = p.expr
	return out
}

// Pipe applies a query fragment; composition is left-to-right.
func (b *Builder) Pipe(fragments ...func(*Builder) *Builder) *Builder {
	out := b
	for _, f := range fragments {
		out = f(out)
	}
	return out
}

// ToAst materializes the accumulated immutable AST, surfacing any deferred
// validation failure.
func (b *Builder) ToAst() (*ast.Query, error) {
	if b.err != nil {
		return nil, b.err
	}
	return b.q.Clone(), nil
}

// Select finalizes the query with a projection callback and returns an
// executable query. The full-blob projection covers every alias; the
// executor may instead run a selective shape when tracking shows the
// callback touches only specific fields.
func (b *Builder) Select(fn SelectFunc) *ExecutableQuery {
	x := &ExecutableQuery{e: b.e, selectFn: fn, err: b.err}
	if b.err != nil {
		return x
	}
	q := b.q.Clone()
	q.Projection = fullBlobProjection(q)
	x.q = q
	return x
}

// fullBlobProjection projects every column of every alias: nine per node,
// ten per edge, plus depth/path for recursive traversals that expose them.
func fullBlobProjection(q *ast.Query) []ast.ProjectedField {
	var out []ast.ProjectedField
	node := func(alias string) {
		for _, col := range []string{"id", "kind", "props", "version", "valid_from", "valid_to", "created_at", "updated_at", "deleted_at"} {
			out = append(out, ast.ProjectedField{
				OutputName: alias + "__" + col,
				Source:     ast.FieldRef{Alias: alias, Path: col},
				CteAlias:   "cte_" + alias,
			})
		}
	}
	node(q.Start.Alias)
	for i := range q.Traversals {
		t := &q.Traversals[i]
		for _, col := range []string{"id", "kind", "props", "from_id", "to_id", "valid_from", "valid_to", "created_at", "updated_at", "deleted_at"} {
			out = append(out, ast.ProjectedField{
				OutputName: t.EdgeAlias + "__" + col,
				Source:     ast.FieldRef{Alias: t.EdgeAlias, Path: col},
				CteAlias:   "cte_" + t.NodeAlias,
			})
		}
		node(t.NodeAlias)
		if t.Recursive != nil {
			if t.Recursive.DepthAlias != "" {
				out = append(out, ast.ProjectedField{
					OutputName: t.NodeAlias + "__depth",
					Source:     ast.FieldRef{Alias: t.NodeAlias, Path: "depth"},
					CteAlias:   "cte_" + t.NodeAlias,
				})
			}
			if t.Recursive.PathAlias != "" {
				out = append(out, ast.ProjectedField{
					OutputName: t.NodeAlias + "__path",
					Source:     ast.FieldRef{Alias: t.NodeAlias, Path: "path"},
					CteAlias:   "cte_" + t.NodeAlias,
				})
			}
		}
	}
	return out
}

// Aggregate finalizes the query with an aggregate projection: a map from
// output name to either a Field group key or an aggregate term.
func (b *Builder) Aggregate(projection map[string]AggregateTerm) *ExecutableAggregateQuery {
	x := &ExecutableAggregateQuery{e: b.e, err: b.err}
	if b.err != nil {
		return x
	}
	q := b.q.Clone()
	for name, term := range projection {
		p, err := term.aggregateProjection(name)
		if err != nil {
			x.err = err
			return x
		}
		q.Aggregates = append(q.Aggregates, p)
	}
	sortAggregates(q.Aggregates)
	x.q = q
	return x
}

func sortAggregates(aggs []ast.AggregateProjection) {
	for i := 1; i < len(aggs); i++ {
		for j := i; j > 0 && aggs[j].OutputName < aggs[j-1].OutputName; j-- {
			aggs[j], aggs[j-1] = aggs[j-1], aggs[j]
		}
	}
}
