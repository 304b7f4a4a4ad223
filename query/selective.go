package query

import (
	"encoding/json"
	"reflect"
	"strconv"

	"github.com/mvp-joe/typequery/ast"
	"github.com/mvp-joe/typequery/backend"
	"github.com/mvp-joe/typequery/qerr"
	"github.com/mvp-joe/typequery/schema"
)

// selectivePlan indexes the plan's fields per alias.
type selectivePlan struct {
	byAlias map[string]map[string]ast.SelectiveField
	shapes  map[string]aliasShape
}

func newSelectivePlan(q *ast.Query, fields []ast.SelectiveField) *selectivePlan {
	p := &selectivePlan{
		byAlias: map[string]map[string]ast.SelectiveField{},
		shapes:  aliasShapes(q),
	}
	for _, f := range fields {
		m, ok := p.byAlias[f.Alias]
		if !ok {
			m = map[string]ast.SelectiveField{}
			p.byAlias[f.Alias] = m
		}
		m[f.Field] = f
	}
	return p
}

// selectiveSource reads only planned fields from a selective row; any other
// access raises MissingSelectiveFieldError through a panic that
// mapSelectiveResults converts back into an error.
type selectiveSource struct {
	alias  string
	isEdge bool
	row    backend.Row
	fields map[string]ast.SelectiveField
}

func (s *selectiveSource) lookup(field string) any {
	sf, ok := s.fields[field]
	if !ok {
		panic(&qerr.MissingSelectiveFieldError{Alias: s.alias, Field: field})
	}
	v := s.row[sf.OutputName]
	if v == nil {
		return nil
	}
	switch sf.ValueType {
	case schema.TypeArray, schema.TypeObject, schema.TypeEmbedding:
		// Raw JSON text from the compiler's selective extraction.
		if raw, ok := v.(string); ok {
			var decoded any
			if err := json.Unmarshal([]byte(raw), &decoded); err == nil {
				return decoded
			}
		}
		return v
	default:
		return normalizeScalar(sf.ValueType, v)
	}
}

// normalizeScalar aligns driver-specific scalar representations with the
// full-blob path's JSON-decoded values, so the two projection modes produce
// equal results.
func normalizeScalar(vt schema.ValueType, v any) any {
	switch vt {
	case schema.TypeNumber:
		switch x := v.(type) {
		case int64:
			return float64(x)
		case int:
			return float64(x)
		case string:
			if f, err := strconv.ParseFloat(x, 64); err == nil {
				return f
			}
		}
	case schema.TypeBoolean:
		switch x := v.(type) {
		case int64:
			return x != 0
		case string:
			switch x {
			case "t", "true", "1":
				return true
			case "f", "false", "0":
				return false
			}
		}
	}
	return v
}

func (s *selectiveSource) get(field string) any  { return s.lookup(field) }
func (s *selectiveSource) system(col string) any { return s.lookup(col) }

func (s *selectiveSource) meta() Meta {
	fields := nodeMetaFields
	if s.isEdge {
		fields = edgeMetaFields
	}
	vals := map[string]any{}
	for _, f := range fields {
		vals[f] = s.lookup(f)
	}
	return Meta{
		Version:   asInt64(vals["meta.version"]),
		ValidFrom: asString(vals["meta.valid_from"]),
		ValidTo:   asString(vals["meta.valid_to"]),
		CreatedAt: asString(vals["meta.created_at"]),
		UpdatedAt: asString(vals["meta.updated_at"]),
		DeletedAt: asString(vals["meta.deleted_at"]),
	}
}

// selectiveCtx is the Ctx over one selective row.
type selectiveCtx struct {
	plan *selectivePlan
	row  backend.Row
}

func (c *selectiveCtx) aliasFields(alias string) map[string]ast.SelectiveField {
	if m, ok := c.plan.byAlias[alias]; ok {
		return m
	}
	// No planned fields: any access must trigger fallback.
	return map[string]ast.SelectiveField{}
}

func (c *selectiveCtx) aliasAbsent(alias string) bool {
	shape := c.plan.shapes[alias]
	if !shape.optional {
		return false
	}
	idField, ok := c.plan.byAlias[alias]["id"]
	if !ok {
		return false
	}
	return c.row[idField.OutputName] == nil
}

func (c *selectiveCtx) Node(alias string) *SelectableNode {
	shape, ok := c.plan.shapes[alias]
	if !ok || shape.isEdge {
		return nil
	}
	if c.aliasAbsent(alias) {
		return nil
	}
	return &SelectableNode{alias: alias, src: &selectiveSource{
		alias:  alias,
		row:    c.row,
		fields: c.aliasFields(alias),
	}}
}

func (c *selectiveCtx) Edge(alias string) *SelectableEdge {
	shape, ok := c.plan.shapes[alias]
	if !ok || !shape.isEdge {
		return nil
	}
	if c.aliasAbsent(alias) {
		return nil
	}
	return &SelectableEdge{alias: alias, src: &selectiveSource{
		alias:  alias,
		isEdge: true,
		row:    c.row,
		fields: c.aliasFields(alias),
	}}
}

func (c *selectiveCtx) Depth(alias string) int {
	src := &selectiveSource{alias: alias, row: c.row, fields: c.aliasFields(alias)}
	return int(asInt64(src.lookup("depth")))
}

func (c *selectiveCtx) Path(alias string) []string {
	src := &selectiveSource{alias: alias, row: c.row, fields: c.aliasFields(alias)}
	return normalizePath(src.lookup("path"))
}

// mapSelectiveResults maps selective rows through the callback. A read
// outside the plan or a whole-alias return surfaces as
// *qerr.MissingSelectiveFieldError so the executor can fall back.
func mapSelectiveResults(q *ast.Query, fields []ast.SelectiveField, rows []backend.Row, fn SelectFunc) ([]any, error) {
	plan := newSelectivePlan(q, fields)
	out := make([]any, 0, len(rows))
	for _, row := range rows {
		result, err := applySelective(plan, row, fn)
		if err != nil {
			return nil, err
		}
		out = append(out, result)
	}
	return out, nil
}

func applySelective(plan *selectivePlan, row backend.Row, fn SelectFunc) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			if missing, ok := r.(*qerr.MissingSelectiveFieldError); ok {
				err = missing
				return
			}
			panic(r)
		}
	}()
	result = fn(&selectiveCtx{plan: plan, row: row})
	if alias, found := findSelectable(result); found {
		return nil, &qerr.MissingSelectiveFieldError{Alias: alias, Field: "whole node/edge selection"}
	}
	return result, nil
}

// Alias names the query alias this node was mapped from.
func (n *SelectableNode) Alias() string { return n.alias }

// Alias names the query alias this edge was mapped from.
func (e *SelectableEdge) Alias() string { return e.alias }

// findSelectable locates a whole SelectableNode/SelectableEdge inside a
// callback result and reports its alias when readable.
func findSelectable(v any) (string, bool) {
	return findSelectableValue(reflect.ValueOf(v), 0)
}

func findSelectableValue(v reflect.Value, depth int) (string, bool) {
	if depth > 6 || !v.IsValid() {
		return "", false
	}
	if v.CanInterface() {
		switch x := v.Interface().(type) {
		case *SelectableNode:
			if x != nil {
				return x.Alias(), true
			}
			return "", false
		case *SelectableEdge:
			if x != nil {
				return x.Alias(), true
			}
			return "", false
		case SelectableNode:
			return x.Alias(), true
		case SelectableEdge:
			return x.Alias(), true
		}
	} else {
		switch v.Type() {
		case reflect.TypeOf(&SelectableNode{}), reflect.TypeOf(&SelectableEdge{}),
			reflect.TypeOf(SelectableNode{}), reflect.TypeOf(SelectableEdge{}):
			return "", true
		}
	}
	switch v.Kind() {
	case reflect.Interface, reflect.Pointer:
		if v.IsNil() {
			return "", false
		}
		return findSelectableValue(v.Elem(), depth+1)
	case reflect.Map:
		for _, k := range v.MapKeys() {
			if alias, ok := findSelectableValue(v.MapIndex(k), depth+1); ok {
				return alias, true
			}
		}
	case reflect.Slice, reflect.Array:
		for i := 0; i < v.Len(); i++ {
			if alias, ok := findSelectableValue(v.Index(i), depth+1); ok {
				return alias, true
			}
		}
	case reflect.Struct:
		for i := 0; i < v.NumField(); i++ {
			if alias, ok := findSelectableValue(v.Field(i), depth+1); ok {
				return alias, true
			}
		}
	}
	return "", false
}
