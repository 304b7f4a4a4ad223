// Package schema declares node and edge kinds, their property schemas, and
// the introspection used to resolve per-field type information.
package schema

import "time"

// constructor identifies the concrete shape of a field spec.
type constructor int

const (
	conUnknown constructor = iota
	conString
	conNumber
	conBool
	conDate
	conEnum
	conLiteral
	conArray
	conObject
	conRecord
	conEmbedding
	conUnion
	conWrapper
)

// FieldSpec describes one property field of a node or edge schema.
// Specs are built with the constructor functions below and are treated as
// immutable after construction.
type FieldSpec struct {
	con constructor

	elem     *FieldSpec            // array element
	shape    map[string]*FieldSpec // object shape
	record   *FieldSpec            // record value spec
	enumVals []any
	literal  any
	dims     int           // embedding dimensions
	members  []*FieldSpec  // union members
	inner    *FieldSpec    // wrapper target
	wrap     wrapperKind

	optionalFlag bool
	nullableFlag bool
	defaultVal   any
	hasDefault   bool
	readOnlyFlag bool
}

type wrapperKind int

const (
	wrapOptional wrapperKind = iota
	wrapNullable
	wrapDefault
	wrapReadOnly
)

// Schema maps property names to their field specs.
type Schema map[string]*FieldSpec

// String declares a string field.
func String() *FieldSpec { return &FieldSpec{con: conString} }

// Number declares a numeric field.
func Number() *FieldSpec { return &FieldSpec{con: conNumber} }

// Bool declares a boolean field.
func Bool() *FieldSpec { return &FieldSpec{con: conBool} }

// Date declares a timestamp field.
func Date() *FieldSpec { return &FieldSpec{con: conDate} }

// Enum declares a field restricted to a fixed set of values.
func Enum(values ...any) *FieldSpec {
	return &FieldSpec{con: conEnum, enumVals: values}
}

// Literal declares a field fixed to a single value. The value type is
// inferred from the runtime value (time.Time resolves to date).
func Literal(value any) *FieldSpec {
	return &FieldSpec{con: conLiteral, literal: value}
}

// Array declares an array field with the given element spec.
func Array(elem *FieldSpec) *FieldSpec {
	return &FieldSpec{con: conArray, elem: elem}
}

// Object declares an object field with a fixed shape.
func Object(shape map[string]*FieldSpec) *FieldSpec {
	return &FieldSpec{con: conObject, shape: shape}
}

// Record declares a dictionary-like object whose values all share one spec.
func Record(value *FieldSpec) *FieldSpec {
	return &FieldSpec{con: conRecord, record: value}
}

// Embedding declares a vector field with a fixed dimensionality.
func Embedding(dimensions int) *FieldSpec {
	return &FieldSpec{con: conEmbedding, dims: dimensions}
}

// Union declares a field that may take any of the member shapes.
func Union(members ...*FieldSpec) *FieldSpec {
	return &FieldSpec{con: conUnion, members: members}
}

// Unknown declares a field with no type information.
func Unknown() *FieldSpec { return &FieldSpec{con: conUnknown} }

// Optional wraps the spec to mark the field optional.
func (f *FieldSpec) Optional() *FieldSpec {
	return &FieldSpec{con: conWrapper, wrap: wrapOptional, inner: f, optionalFlag: true}
}

// Nullable wraps the spec to permit explicit nulls.
func (f *FieldSpec) Nullable() *FieldSpec {
	return &FieldSpec{con: conWrapper, wrap: wrapNullable, inner: f, nullableFlag: true}
}

// Default wraps the spec with a default value. The value is recorded on the
// spec only; nothing in this module fills it in when a node is written.
func (f *FieldSpec) Default(value any) *FieldSpec {
	return &FieldSpec{con: conWrapper, wrap: wrapDefault, inner: f, defaultVal: value, hasDefault: true}
}

// ReadOnly wraps the spec to mark the field read-only. The mark is recorded
// on the spec only; the store does not reject later writes to the field.
func (f *FieldSpec) ReadOnly() *FieldSpec {
	return &FieldSpec{con: conWrapper, wrap: wrapReadOnly, inner: f, readOnlyFlag: true}
}

// unwrap strips wrapper layers until it reaches a concrete constructor.
func (f *FieldSpec) unwrap() *FieldSpec {
	s := f
	for s != nil && s.con == conWrapper {
		s = s.inner
	}
	return s
}

// IsOptional reports whether any wrapper layer marks the field optional.
func (f *FieldSpec) IsOptional() bool {
	for s := f; s != nil && s.con == conWrapper; s = s.inner {
		if s.optionalFlag {
			return true
		}
	}
	return false
}

// inferScalar maps a runtime value to its scalar ValueType.
func inferScalar(v any) ValueType {
	switch v.(type) {
	case string:
		return TypeString
	case int, int32, int64, float32, float64:
		return TypeNumber
	case bool:
		return TypeBoolean
	case time.Time:
		return TypeDate
	default:
		return TypeUnknown
	}
}
