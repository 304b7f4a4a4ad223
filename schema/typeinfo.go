package schema

// ValueType classifies a property field's runtime type.
type ValueType string

const (
	TypeString    ValueType = "string"
	TypeNumber    ValueType = "number"
	TypeBoolean   ValueType = "boolean"
	TypeDate      ValueType = "date"
	TypeArray     ValueType = "array"
	TypeObject    ValueType = "object"
	TypeEmbedding ValueType = "embedding"
	TypeUnknown   ValueType = "unknown"
)

// FieldTypeInfo is the introspected metadata for one field.
//
// Dimensions is set only for embedding fields. ElementType/ElementTypeInfo
// only for arrays. Shape/RecordValueType only for objects.
type FieldTypeInfo struct {
	ValueType       ValueType
	ElementType     ValueType
	ElementTypeInfo *FieldTypeInfo
	Shape           map[string]*FieldTypeInfo
	RecordValueType ValueType
	Dimensions      int
}

// clone returns a deep copy so cached values stay immutable.
func (fi *FieldTypeInfo) clone() *FieldTypeInfo {
	if fi == nil {
		return nil
	}
	out := *fi
	out.ElementTypeInfo = fi.ElementTypeInfo.clone()
	if fi.Shape != nil {
		out.Shape = make(map[string]*FieldTypeInfo, len(fi.Shape))
		for k, v := range fi.Shape {
			out.Shape[k] = v.clone()
		}
	}
	return &out
}

// mergeTypeInfo computes the shared type info of two fields. A mismatched
// top-level value type yields nil. Arrays merge by common element type
// (unknown when the element types differ); objects merge by intersecting
// shape keys and merging the survivors recursively.
func mergeTypeInfo(a, b *FieldTypeInfo) *FieldTypeInfo {
	if a == nil || b == nil {
		return nil
	}
	if a.ValueType != b.ValueType {
		return nil
	}
	switch a.ValueType {
	case TypeArray:
		out := &FieldTypeInfo{ValueType: TypeArray, ElementType: TypeUnknown}
		if a.ElementType == b.ElementType {
			out.ElementType = a.ElementType
			out.ElementTypeInfo = mergeTypeInfo(a.ElementTypeInfo, b.ElementTypeInfo)
		}
		return out
	case TypeObject:
		out := &FieldTypeInfo{ValueType: TypeObject}
		if a.Shape != nil && b.Shape != nil {
			shape := make(map[string]*FieldTypeInfo)
			for k, av := range a.Shape {
				bv, ok := b.Shape[k]
				if !ok {
					continue
				}
				if merged := mergeTypeInfo(av, bv); merged != nil {
					shape[k] = merged
				}
			}
			if len(shape) > 0 {
				out.Shape = shape
			}
		}
		if a.RecordValueType != "" && a.RecordValueType == b.RecordValueType {
			out.RecordValueType = a.RecordValueType
		}
		return out
	case TypeEmbedding:
		if a.Dimensions != b.Dimensions {
			return nil
		}
		return &FieldTypeInfo{ValueType: TypeEmbedding, Dimensions: a.Dimensions}
	default:
		return &FieldTypeInfo{ValueType: a.ValueType}
	}
}
