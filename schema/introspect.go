package schema

import (
	"github.com/maypok86/otter"
)

// introspectCacheSize bounds the per-kind memoization cache. Each entry is
// the fully resolved field map for one kind, so even large graphs stay well
// under this.
const introspectCacheSize = 4096

// Introspector resolves field type information against a graph definition.
// It is safe for concurrent readers after construction; all lookups are
// total and resolve to nil instead of failing.
type Introspector struct {
	def   *GraphDef
	nodes otter.Cache[string, map[string]*FieldTypeInfo]
	edges otter.Cache[string, map[string]*FieldTypeInfo]
}

// NewIntrospector creates an introspector for the given graph definition.
func NewIntrospector(def *GraphDef) *Introspector {
	nodes, err := otter.MustBuilder[string, map[string]*FieldTypeInfo](introspectCacheSize).Build()
	if err != nil {
		panic(err) // capacity is a positive constant; cannot fail
	}
	edges, err := otter.MustBuilder[string, map[string]*FieldTypeInfo](introspectCacheSize).Build()
	if err != nil {
		panic(err)
	}
	return &Introspector{def: def, nodes: nodes, edges: edges}
}

// FieldTypeInfo resolves the type info for one field of a node kind.
// Returns nil when the kind or field is unknown.
func (in *Introspector) FieldTypeInfo(kind, field string) *FieldTypeInfo {
	fields := in.nodeFields(kind)
	if fields == nil {
		return nil
	}
	return fields[field].clone()
}

// EdgeFieldTypeInfo resolves the type info for one field of an edge kind.
func (in *Introspector) EdgeFieldTypeInfo(kind, field string) *FieldTypeInfo {
	fields := in.edgeFields(kind)
	if fields == nil {
		return nil
	}
	return fields[field].clone()
}

// SharedFieldTypeInfo computes the type info shared by a set of node kinds.
// Returns nil when any kind lacks the field or the per-kind infos do not
// merge to a common type.
func (in *Introspector) SharedFieldTypeInfo(kinds []string, field string) *FieldTypeInfo {
	return in.shared(kinds, field, in.FieldTypeInfo)
}

// SharedEdgeFieldTypeInfo is the edge-kind variant of SharedFieldTypeInfo.
func (in *Introspector) SharedEdgeFieldTypeInfo(kinds []string, field string) *FieldTypeInfo {
	return in.shared(kinds, field, in.EdgeFieldTypeInfo)
}

func (in *Introspector) shared(kinds []string, field string, lookup func(string, string) *FieldTypeInfo) *FieldTypeInfo {
	if len(kinds) == 0 {
		return nil
	}
	var merged *FieldTypeInfo
	for i, kind := range kinds {
		info := lookup(kind, field)
		if info == nil {
			return nil
		}
		if i == 0 {
			merged = info
			continue
		}
		merged = mergeTypeInfo(merged, info)
		if merged == nil {
			return nil
		}
	}
	return merged
}

func (in *Introspector) nodeFields(kind string) map[string]*FieldTypeInfo {
	if cached, ok := in.nodes.Get(kind); ok {
		return cached
	}
	nk := in.def.Node(kind)
	if nk == nil {
		return nil
	}
	fields := resolveSchema(nk.Schema)
	in.nodes.Set(kind, fields)
	return fields
}

func (in *Introspector) edgeFields(kind string) map[string]*FieldTypeInfo {
	if cached, ok := in.edges.Get(kind); ok {
		return cached
	}
	ek := in.def.Edge(kind)
	if ek == nil {
		return nil
	}
	fields := resolveSchema(ek.Schema)
	in.edges.Set(kind, fields)
	return fields
}

func resolveSchema(s Schema) map[string]*FieldTypeInfo {
	out := make(map[string]*FieldTypeInfo, len(s))
	for name, spec := range s {
		if info := ResolveFieldSpec(spec); info != nil {
			out[name] = info
		}
	}
	return out
}

// ResolveFieldSpec walks one field spec to its type info. The embedding
// marker is checked both before and after unwrapping so optional embeddings
// resolve correctly.
func ResolveFieldSpec(spec *FieldSpec) *FieldTypeInfo {
	if spec == nil {
		return nil
	}
	if spec.con == conEmbedding {
		return &FieldTypeInfo{ValueType: TypeEmbedding, Dimensions: spec.dims}
	}
	s := spec.unwrap()
	if s == nil {
		return nil
	}
	switch s.con {
	case conEmbedding:
		return &FieldTypeInfo{ValueType: TypeEmbedding, Dimensions: s.dims}
	case conString:
		return &FieldTypeInfo{ValueType: TypeString}
	case conNumber:
		return &FieldTypeInfo{ValueType: TypeNumber}
	case conBool:
		return &FieldTypeInfo{ValueType: TypeBoolean}
	case conDate:
		return &FieldTypeInfo{ValueType: TypeDate}
	case conLiteral:
		return &FieldTypeInfo{ValueType: inferScalar(s.literal)}
	case conEnum:
		return &FieldTypeInfo{ValueType: enumValueType(s.enumVals)}
	case conArray:
		elem := ResolveFieldSpec(s.elem)
		info := &FieldTypeInfo{ValueType: TypeArray, ElementType: TypeUnknown}
		if elem != nil {
			info.ElementType = elem.ValueType
			info.ElementTypeInfo = elem
		}
		return info
	case conObject:
		shape := make(map[string]*FieldTypeInfo, len(s.shape))
		for k, v := range s.shape {
			if fi := ResolveFieldSpec(v); fi != nil {
				shape[k] = fi
			}
		}
		return &FieldTypeInfo{ValueType: TypeObject, Shape: shape}
	case conRecord:
		info := &FieldTypeInfo{ValueType: TypeObject}
		if rv := ResolveFieldSpec(s.record); rv != nil {
			info.RecordValueType = rv.ValueType
		}
		return info
	case conUnion:
		return unionValueType(s.members)
	case conUnknown:
		return &FieldTypeInfo{ValueType: TypeUnknown}
	default:
		return nil
	}
}

// enumValueType resolves an enum to string, or to the common scalar type
// when every enum value shares one.
func enumValueType(values []any) ValueType {
	if len(values) == 0 {
		return TypeString
	}
	common := inferScalar(values[0])
	for _, v := range values[1:] {
		if inferScalar(v) != common {
			return TypeString
		}
	}
	if common == TypeUnknown {
		return TypeString
	}
	return common
}

// unionValueType merges union members; mixed unions resolve to nil so the
// caller falls back to untyped handling.
func unionValueType(members []*FieldSpec) *FieldTypeInfo {
	var merged *FieldTypeInfo
	for i, m := range members {
		info := ResolveFieldSpec(m)
		if info == nil {
			return nil
		}
		if i == 0 {
			merged = info
			continue
		}
		merged = mergeTypeInfo(merged, info)
		if merged == nil {
			return nil
		}
	}
	return merged
}
