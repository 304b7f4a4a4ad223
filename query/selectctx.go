package query

import (
	"encoding/json"
	"strings"

	"github.com/mvp-joe/typequery/backend"
	"github.com/mvp-joe/typequery/ast"
)

// SelectFunc shapes one result row. It runs against three kinds of context:
// tracking (to discover accessed fields), selective rows, and full rows.
type SelectFunc func(c Ctx) any

// Ctx gives a select callback access to the row's aliases. Node and Edge
// return nil for optional traversals that did not match.
type Ctx interface {
	Node(alias string) *SelectableNode
	Edge(alias string) *SelectableEdge
	// Depth returns the hop count of a recursive traversal's target alias.
	Depth(alias string) int
	// Path returns the visited node ids of a recursive traversal.
	Path(alias string) []string
}

// Meta carries a node's system metadata. Timestamps are ISO-8601 strings;
// empty means NULL.
type Meta struct {
	Version   int64
	ValidFrom string
	ValidTo   string
	CreatedAt string
	UpdatedAt string
	DeletedAt string
}

// EdgeMeta carries an edge's system metadata (edges are unversioned).
type EdgeMeta struct {
	ValidFrom string
	ValidTo   string
	CreatedAt string
	UpdatedAt string
	DeletedAt string
}

// valueSource backs a selectable with data: a materialized row, a
// selective-projection row, or a tracking recorder.
type valueSource interface {
	get(field string) any
	system(col string) any
	meta() Meta
}

// SelectableNode is the mapped result value for one node alias.
type SelectableNode struct {
	alias string
	src   valueSource
}

// ID returns the node id.
func (n *SelectableNode) ID() string { return asString(n.src.system("id")) }

// Kind returns the node kind.
func (n *SelectableNode) Kind() string { return asString(n.src.system("kind")) }

// Get returns a property value; nil when the property is absent or null.
func (n *SelectableNode) Get(field string) any { return n.src.get(field) }

// Meta returns the node's system metadata.
func (n *SelectableNode) Meta() Meta { return n.src.meta() }

// SelectableEdge is the mapped result value for one edge alias.
type SelectableEdge struct {
	alias string
	src   valueSource
}

// ID returns the edge id.
func (e *SelectableEdge) ID() string { return asString(e.src.system("id")) }

// Kind returns the edge kind.
func (e *SelectableEdge) Kind() string { return asString(e.src.system("kind")) }

// FromID returns the edge's source node id.
func (e *SelectableEdge) FromID() string { return asString(e.src.system("from_id")) }

// ToID returns the edge's target node id.
func (e *SelectableEdge) ToID() string { return asString(e.src.system("to_id")) }

// Get returns a property value; nil when the property is absent or null.
func (e *SelectableEdge) Get(field string) any { return e.src.get(field) }

// Meta returns the edge's system metadata.
func (e *SelectableEdge) Meta() EdgeMeta {
	m := e.src.meta()
	return EdgeMeta{
		ValidFrom: m.ValidFrom,
		ValidTo:   m.ValidTo,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
		DeletedAt: m.DeletedAt,
	}
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asInt64(v any) int64 {
	switch x := v.(type) {
	case int64:
		return x
	case int:
		return int64(x)
	case float64:
		return int64(x)
	default:
		return 0
	}
}

// blobSource is the full-materialization source: decoded props plus system
// columns from a <alias>__<col> row slice.
type blobSource struct {
	props map[string]any
	sys   map[string]any
	m     Meta
}

func (b *blobSource) get(field string) any  { return b.props[field] }
func (b *blobSource) system(col string) any { return b.sys[col] }
func (b *blobSource) meta() Meta            { return b.m }

// newBlobSource builds a source from one alias's columns of a row.
// NULL scalars inside props become absent keys.
func newBlobSource(row backend.Row, alias string) *blobSource {
	col := func(name string) any { return row[alias+"__"+name] }
	src := &blobSource{
		props: map[string]any{},
		sys: map[string]any{
			"id":      col("id"),
			"kind":    col("kind"),
			"from_id": col("from_id"),
			"to_id":   col("to_id"),
		},
		m: Meta{
			Version:   asInt64(col("version")),
			ValidFrom: asString(col("valid_from")),
			ValidTo:   asString(col("valid_to")),
			CreatedAt: asString(col("created_at")),
			UpdatedAt: asString(col("updated_at")),
			DeletedAt: asString(col("deleted_at")),
		},
	}
	if raw := asString(col("props")); raw != "" {
		var decoded map[string]any
		if err := json.Unmarshal([]byte(raw), &decoded); err == nil {
			for k, v := range decoded {
				if v == nil {
					continue // NULL scalars are absent at the leaf level
				}
				src.props[k] = v
			}
		}
	}
	return src
}

// rowCtx is the Ctx over one materialized row.
type rowCtx struct {
	nodes  map[string]*SelectableNode
	edges  map[string]*SelectableEdge
	depths map[string]int
	paths  map[string][]string
}

func (c *rowCtx) Node(alias string) *SelectableNode  { return c.nodes[alias] }
func (c *rowCtx) Edge(alias string) *SelectableEdge  { return c.edges[alias] }
func (c *rowCtx) Depth(alias string) int             { return c.depths[alias] }
func (c *rowCtx) Path(alias string) []string         { return c.paths[alias] }

// normalizePath converts a dialect's physical visited-path value into node
// ids: '/a/b/' from sqlite, '{a,b}' from postgres text[] scans.
func normalizePath(v any) []string {
	s := asString(v)
	if s == "" {
		return nil
	}
	switch {
	case strings.HasPrefix(s, "/"):
		return splitNonEmpty(s, "/")
	case strings.HasPrefix(s, "{") && strings.HasSuffix(s, "}"):
		return splitNonEmpty(s[1:len(s)-1], ",")
	default:
		return []string{s}
	}
}

func splitNonEmpty(s, sep string) []string {
	parts := strings.Split(s, sep)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// buildSelectContext maps one full-blob row to a Ctx. Optional traversal
// aliases with a NULL id are absent. Inputs are never mutated.
func buildSelectContext(q *ast.Query, row backend.Row) *rowCtx {
	ctx := &rowCtx{
		nodes:  map[string]*SelectableNode{},
		edges:  map[string]*SelectableEdge{},
		depths: map[string]int{},
		paths:  map[string][]string{},
	}
	addNode := func(alias string) {
		if row[alias+"__id"] == nil {
			return
		}
		ctx.nodes[alias] = &SelectableNode{alias: alias, src: newBlobSource(row, alias)}
	}
	addNode(q.Start.Alias)
	for i := range q.Traversals {
		t := &q.Traversals[i]
		addNode(t.NodeAlias)
		if row[t.EdgeAlias+"__id"] != nil {
			ctx.edges[t.EdgeAlias] = &SelectableEdge{alias: t.EdgeAlias, src: newBlobSource(row, t.EdgeAlias)}
		}
		if t.Recursive != nil {
			if t.Recursive.DepthAlias != "" {
				ctx.depths[t.NodeAlias] = int(asInt64(row[t.NodeAlias+"__depth"]))
			}
			if t.Recursive.PathAlias != "" {
				ctx.paths[t.NodeAlias] = normalizePath(row[t.NodeAlias+"__path"])
			}
		}
	}
	return ctx
}
