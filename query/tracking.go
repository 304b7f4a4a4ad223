package query

import (
	"sort"
	"strings"

	"github.com/mvp-joe/typequery/ast"
	"github.com/mvp-joe/typequery/schema"
)

// placeholderMode selects the values tracking passes feed the callback.
type placeholderMode int

const (
	modeTruthy placeholderMode = iota
	modeFalsy
	modeMax
)

// nodeMetaFields and edgeMetaFields are the meta tokens recorded when a
// callback reads Meta().
var nodeMetaFields = []string{
	"meta.version", "meta.valid_from", "meta.valid_to",
	"meta.created_at", "meta.updated_at", "meta.deleted_at",
}

var edgeMetaFields = []string{
	"meta.valid_from", "meta.valid_to",
	"meta.created_at", "meta.updated_at", "meta.deleted_at",
}

// accessTracker records which alias fields the select callback touches.
type accessTracker struct {
	fields map[string]map[string]bool
}

func newAccessTracker() *accessTracker {
	return &accessTracker{fields: map[string]map[string]bool{}}
}

func (t *accessTracker) record(alias, field string) {
	m, ok := t.fields[alias]
	if !ok {
		m = map[string]bool{}
		t.fields[alias] = m
	}
	m[field] = true
}

func (t *accessTracker) empty() bool {
	for _, m := range t.fields {
		if len(m) > 0 {
			return false
		}
	}
	return true
}

// trackingSource feeds placeholders to the callback while recording every
// access.
type trackingSource struct {
	alias   string
	kinds   []string
	isEdge  bool
	mode    placeholderMode
	tracker *accessTracker
	intro   *schema.Introspector
}

func (s *trackingSource) get(field string) any {
	s.tracker.record(s.alias, field)
	var info *schema.FieldTypeInfo
	if s.isEdge {
		info = s.intro.SharedEdgeFieldTypeInfo(s.kinds, field)
	} else {
		info = s.intro.SharedFieldTypeInfo(s.kinds, field)
	}
	vt := schema.TypeUnknown
	if info != nil {
		vt = info.ValueType
	}
	return placeholder(vt, s.mode)
}

func (s *trackingSource) system(col string) any {
	s.tracker.record(s.alias, col)
	switch s.mode {
	case modeFalsy:
		return ""
	case modeMax:
		return strings.Repeat("x", 64)
	default:
		return "x"
	}
}

func (s *trackingSource) meta() Meta {
	fields := nodeMetaFields
	if s.isEdge {
		fields = edgeMetaFields
	}
	for _, f := range fields {
		s.tracker.record(s.alias, f)
	}
	if s.mode == modeFalsy {
		return Meta{}
	}
	return Meta{
		Version:   1,
		ValidFrom: "2024-01-01T00:00:00Z",
		CreatedAt: "2024-01-01T00:00:00Z",
		UpdatedAt: "2024-01-01T00:00:00Z",
	}
}

// placeholder returns the mode's stand-in value for a value type. The max
// mode uses larger values so length- and range-sensitive branches are
// walked too.
func placeholder(vt schema.ValueType, mode placeholderMode) any {
	switch vt {
	case schema.TypeNumber:
		switch mode {
		case modeFalsy:
			return float64(0)
		case modeMax:
			return float64(1 << 30)
		default:
			return float64(1)
		}
	case schema.TypeBoolean:
		return mode != modeFalsy
	case schema.TypeArray:
		if mode == modeMax {
			return []any{"x"}
		}
		return []any{}
	case schema.TypeObject:
		return map[string]any{}
	case schema.TypeEmbedding:
		if mode == modeMax {
			return []any{float64(1), float64(1)}
		}
		return []any{}
	case schema.TypeDate:
		switch mode {
		case modeFalsy:
			return ""
		case modeMax:
			return "9999-12-31T23:59:59Z"
		default:
			return "2024-01-01T00:00:00Z"
		}
	default:
		switch mode {
		case modeFalsy:
			return ""
		case modeMax:
			return strings.Repeat("x", 64)
		default:
			return "x"
		}
	}
}

// trackingCtx is the Ctx handed to the callback during tracking passes.
type trackingCtx struct {
	q       *ast.Query
	aliases map[string]aliasShape
	absent  map[string]bool
	mode    placeholderMode
	tracker *accessTracker
	intro   *schema.Introspector
}

type aliasShape struct {
	kinds    []string
	isEdge   bool
	optional bool
}

func (c *trackingCtx) source(alias string) *trackingSource {
	shape := c.aliases[alias]
	return &trackingSource{
		alias:   alias,
		kinds:   shape.kinds,
		isEdge:  shape.isEdge,
		mode:    c.mode,
		tracker: c.tracker,
		intro:   c.intro,
	}
}

func (c *trackingCtx) Node(alias string) *SelectableNode {
	if c.absent[alias] {
		return nil
	}
	if shape, ok := c.aliases[alias]; !ok || shape.isEdge {
		return nil
	}
	return &SelectableNode{alias: alias, src: c.source(alias)}
}

func (c *trackingCtx) Edge(alias string) *SelectableEdge {
	if c.absent[alias] {
		return nil
	}
	if shape, ok := c.aliases[alias]; !ok || !shape.isEdge {
		return nil
	}
	return &SelectableEdge{alias: alias, src: c.source(alias)}
}

func (c *trackingCtx) Depth(alias string) int {
	c.tracker.record(alias, "depth")
	if c.mode == modeFalsy {
		return 0
	}
	return 1
}

func (c *trackingCtx) Path(alias string) []string {
	c.tracker.record(alias, "path")
	if c.mode == modeMax {
		return []string{"x"}
	}
	return []string{}
}

// aliasShapes derives per-alias shape info from the AST.
func aliasShapes(q *ast.Query) map[string]aliasShape {
	out := map[string]aliasShape{
		q.Start.Alias: {kinds: q.Start.Kinds},
	}
	for i := range q.Traversals {
		t := &q.Traversals[i]
		out[t.EdgeAlias] = aliasShape{kinds: t.EdgeKinds, isEdge: true, optional: t.Optional}
		out[t.NodeAlias] = aliasShape{kinds: t.NodeKinds, optional: t.Optional}
	}
	return out
}

// trackSelect instruments the callback. It returns the selective-field plan
// and whether optimization is possible: a callback that panics during
// tracking, touches nothing, or returns a whole alias object disables it.
func trackSelect(q *ast.Query, fn SelectFunc, intro *schema.Introspector) (plan []ast.SelectiveField, ok bool) {
	shapes := aliasShapes(q)
	tracker := newAccessTracker()

	passes := []struct {
		mode   placeholderMode
		absent map[string]bool
	}{
		{mode: modeTruthy},
		{mode: modeFalsy},
		{mode: modeMax},
	}
	// With optional traversals, a further pass hides those aliases so the
	// callback's fallback branches are walked too.
	absent := map[string]bool{}
	for alias, shape := range shapes {
		if shape.optional {
			absent[alias] = true
		}
	}
	if len(absent) > 0 {
		passes = append(passes, struct {
			mode   placeholderMode
			absent map[string]bool
		}{mode: modeTruthy, absent: absent})
	}

	for _, pass := range passes {
		ctx := &trackingCtx{
			q:       q,
			aliases: shapes,
			absent:  pass.absent,
			mode:    pass.mode,
			tracker: tracker,
			intro:   intro,
		}
		result, panicked := runTrackingPass(fn, ctx)
		if panicked {
			return nil, false
		}
		if _, whole := findSelectable(result); whole {
			return nil, false
		}
	}

	if tracker.empty() {
		return nil, false
	}
	return buildSelectiveFields(q, tracker, shapes, intro), true
}

func runTrackingPass(fn SelectFunc, ctx Ctx) (result any, panicked bool) {
	defer func() {
		if recover() != nil {
			panicked = true
		}
	}()
	return fn(ctx), false
}

// systemFieldTokens are field tokens that map to physical columns rather
// than props extraction.
func isSystemToken(field string) bool {
	switch field {
	case "id", "kind", "from_id", "to_id", "depth", "path":
		return true
	}
	return strings.HasPrefix(field, "meta.")
}

// buildSelectiveFields turns recorded accesses into the sorted selective
// plan, guaranteeing an id column for every optional alias so absence is
// detectable.
func buildSelectiveFields(q *ast.Query, tracker *accessTracker, shapes map[string]aliasShape, intro *schema.Introspector) []ast.SelectiveField {
	recorded := tracker.fields
	for alias, shape := range shapes {
		if shape.optional {
			if recorded[alias] == nil {
				recorded[alias] = map[string]bool{}
			}
			recorded[alias]["id"] = true
		}
	}

	var plan []ast.SelectiveField
	for alias, fields := range recorded {
		shape := shapes[alias]
		for field := range fields {
			sf := ast.SelectiveField{
				Alias:         alias,
				Field:         field,
				OutputName:    alias + "__" + strings.ReplaceAll(field, ".", "_"),
				IsSystemField: isSystemToken(field),
			}
			if !sf.IsSystemField {
				var info *schema.FieldTypeInfo
				if shape.isEdge {
					info = intro.SharedEdgeFieldTypeInfo(shape.kinds, field)
				} else {
					info = intro.SharedFieldTypeInfo(shape.kinds, field)
				}
				if info != nil {
					sf.ValueType = info.ValueType
				}
			}
			plan = append(plan, sf)
		}
	}
	sort.Slice(plan, func(i, j int) bool {
		if plan[i].Alias != plan[j].Alias {
			return plan[i].Alias < plan[j].Alias
		}
		return plan[i].Field < plan[j].Field
	})
	return plan
}
