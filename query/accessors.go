package query

import (
	"time"

	"github.com/mvp-joe/typequery/ast"
	"github.com/mvp-joe/typequery/qerr"
	"github.com/mvp-joe/typequery/schema"
)

// Predicate is a composed filter expression. Invalid constructions carry
// their error and surface when the predicate is attached to a builder.
type Predicate struct {
	expr ast.Expr
	err  error
}

// And combines predicates conjunctively.
func And(ps ...Predicate) Predicate {
	return junction(ps, func(ops []ast.Expr) ast.Expr { return &ast.And{Operands: ops} })
}

// Or combines predicates disjunctively.
func Or(ps ...Predicate) Predicate {
	return junction(ps, func(ops []ast.Expr) ast.Expr { return &ast.Or{Operands: ops} })
}

// Not negates a predicate.
func Not(p Predicate) Predicate {
	if p.err != nil {
		return p
	}
	return Predicate{expr: &ast.Not{Operand: p.expr}}
}

// And chains this predicate with others conjunctively.
func (p Predicate) And(others ...Predicate) Predicate {
	return And(append([]Predicate{p}, others...)...)
}

// Or chains this predicate with others disjunctively.
func (p Predicate) Or(others ...Predicate) Predicate {
	return Or(append([]Predicate{p}, others...)...)
}

func junction(ps []Predicate, build func([]ast.Expr) ast.Expr) Predicate {
	ops := make([]ast.Expr, 0, len(ps))
	for _, p := range ps {
		if p.err != nil {
			return p
		}
		ops = append(ops, p.expr)
	}
	return Predicate{expr: build(ops)}
}

// Exists wraps a finished sub-AST as an EXISTS predicate.
func Exists(sub *ast.Query) Predicate {
	return Predicate{expr: &ast.Exists{Query: sub}}
}

// NotExists wraps a finished sub-AST as a NOT EXISTS predicate.
func NotExists(sub *ast.Query) Predicate {
	return Predicate{expr: &ast.Exists{Query: sub, Negated: true}}
}

// Fields is the typed accessor handed to where callbacks. The accessor for
// each field is chosen from the introspected value type; accessing a field
// through the wrong typed method still works but compiles untyped.
type Fields struct {
	alias  string
	kinds  []string
	isEdge bool
	intro  *schema.Introspector
}

// typeInfo resolves the shared type info of a field across the alias's
// kinds.
func (f Fields) typeInfo(field string) *schema.FieldTypeInfo {
	if f.isEdge {
		return f.intro.SharedEdgeFieldTypeInfo(f.kinds, field)
	}
	return f.intro.SharedFieldTypeInfo(f.kinds, field)
}

// fieldRef builds the props FieldRef for a field, carrying its introspected
// value type.
func (f Fields) fieldRef(field string) ast.FieldRef {
	ref := ast.FieldRef{Alias: f.alias, Path: ast.PathProps, JSONPointer: []string{field}}
	if info := f.typeInfo(field); info != nil {
		ref.ValueType = info.ValueType
		ref.ElementType = info.ElementType
	}
	return ref
}

func systemRef(alias, path string) ast.FieldRef {
	return ast.FieldRef{Alias: alias, Path: path, ValueType: schema.TypeString}
}

// ID addresses the alias's id column.
func (f Fields) ID() StringField {
	return StringField{scalarField{ref: systemRef(f.alias, ast.PathID)}}
}

// Kind addresses the alias's kind column.
func (f Fields) Kind() StringField {
	return StringField{scalarField{ref: systemRef(f.alias, ast.PathKind)}}
}

// FromID addresses an edge alias's from_id column.
func (f Fields) FromID() StringField {
	return StringField{scalarField{ref: systemRef(f.alias, ast.PathFromID)}}
}

// ToID addresses an edge alias's to_id column.
func (f Fields) ToID() StringField {
	return StringField{scalarField{ref: systemRef(f.alias, ast.PathToID)}}
}

// Number accesses a numeric property.
func (f Fields) Number(name string) NumberField {
	ref := f.fieldRef(name)
	if ref.ValueType == "" {
		ref.ValueType = schema.TypeNumber
	}
	return NumberField{scalarField{ref: ref}}
}

// String accesses a string property.
func (f Fields) String(name string) StringField {
	ref := f.fieldRef(name)
	if ref.ValueType == "" {
		ref.ValueType = schema.TypeString
	}
	return StringField{scalarField{ref: ref}}
}

// Bool accesses a boolean property.
func (f Fields) Bool(name string) BoolField {
	ref := f.fieldRef(name)
	if ref.ValueType == "" {
		ref.ValueType = schema.TypeBoolean
	}
	return BoolField{scalarField{ref: ref}}
}

// Date accesses a timestamp property. Comparators accept time.Time or
// ISO-8601 strings.
func (f Fields) Date(name string) DateField {
	ref := f.fieldRef(name)
	if ref.ValueType == "" {
		ref.ValueType = schema.TypeDate
	}
	return DateField{scalarField{ref: ref}}
}

// Array accesses an array property.
func (f Fields) Array(name string) ArrayField {
	ref := f.fieldRef(name)
	ref.ValueType = schema.TypeArray
	return ArrayField{ref: ref}
}

// Object accesses an object property.
func (f Fields) Object(name string) ObjectField {
	ref := f.fieldRef(name)
	ref.ValueType = schema.TypeObject
	return ObjectField{ref: ref, info: f.typeInfo(name)}
}

// Embedding accesses an embedding property.
func (f Fields) Embedding(name string) EmbeddingField {
	ref := f.fieldRef(name)
	ref.ValueType = schema.TypeEmbedding
	return EmbeddingField{ref: ref}
}

// toValue converts a caller-supplied operand (literal or Param) to an AST
// value.
func toValue(v any) ast.Value {
	if p, ok := v.(NamedParam); ok {
		return ast.ParamRef(p.Name)
	}
	return ast.Lit(v)
}

func toValues(vs []any) []ast.Value {
	out := make([]ast.Value, len(vs))
	for i, v := range vs {
		out[i] = toValue(v)
	}
	return out
}

// scalarField carries the comparison operations shared by every scalar
// accessor.
type scalarField struct {
	ref ast.FieldRef
}

func (s scalarField) compare(op ast.CompareOp, v any) Predicate {
	return Predicate{expr: &ast.Comparison{Field: s.ref, Op: op, Value: toValue(v)}}
}

// Eq matches field = v.
func (s scalarField) Eq(v any) Predicate { return s.compare(ast.OpEq, v) }

// Neq matches field != v.
func (s scalarField) Neq(v any) Predicate { return s.compare(ast.OpNeq, v) }

// Gt matches field > v.
func (s scalarField) Gt(v any) Predicate { return s.compare(ast.OpGt, v) }

// Gte matches field >= v.
func (s scalarField) Gte(v any) Predicate { return s.compare(ast.OpGte, v) }

// Lt matches field < v.
func (s scalarField) Lt(v any) Predicate { return s.compare(ast.OpLt, v) }

// Lte matches field <= v.
func (s scalarField) Lte(v any) Predicate { return s.compare(ast.OpLte, v) }

// Between matches low <= field <= high.
func (s scalarField) Between(low, high any) Predicate {
	return Predicate{expr: &ast.Between{Field: s.ref, Low: toValue(low), High: toValue(high)}}
}

// IsNull matches absent or null fields.
func (s scalarField) IsNull() Predicate {
	return Predicate{expr: &ast.NullCheck{Field: s.ref, IsNull: true}}
}

// IsNotNull matches present, non-null fields.
func (s scalarField) IsNotNull() Predicate {
	return Predicate{expr: &ast.NullCheck{Field: s.ref, IsNull: false}}
}

// In matches membership in a literal list.
func (s scalarField) In(vs ...any) Predicate {
	return Predicate{expr: &ast.Comparison{Field: s.ref, Op: ast.OpIn, Values: toValues(vs)}}
}

// NotIn matches absence from a literal list.
func (s scalarField) NotIn(vs ...any) Predicate {
	return Predicate{expr: &ast.Comparison{Field: s.ref, Op: ast.OpNin, Values: toValues(vs)}}
}

// InSubquery matches membership in a single-column subquery.
func (s scalarField) InSubquery(sub *ast.Query) Predicate {
	return Predicate{expr: &ast.InSubquery{Field: s.ref, Query: sub}}
}

// NotInSubquery matches absence from a single-column subquery.
func (s scalarField) NotInSubquery(sub *ast.Query) Predicate {
	return Predicate{expr: &ast.InSubquery{Field: s.ref, Query: sub, Negated: true}}
}

// NumberField accesses a numeric property.
type NumberField struct {
	scalarField
}

// BoolField accesses a boolean property.
type BoolField struct {
	scalarField
}

// StringField adds string matching to the scalar operations.
type StringField struct {
	scalarField
}

func (s StringField) stringOp(op ast.StringOpKind, pattern any) Predicate {
	return Predicate{expr: &ast.StringOp{Field: s.ref, Op: op, Pattern: toValue(pattern)}}
}

// Contains matches fields containing the substring.
func (s StringField) Contains(pattern any) Predicate {
	return s.stringOp(ast.StrContains, pattern)
}

// StartsWith matches fields beginning with the prefix.
func (s StringField) StartsWith(pattern any) Predicate {
	return s.stringOp(ast.StrStartsWith, pattern)
}

// EndsWith matches fields ending with the suffix.
func (s StringField) EndsWith(pattern any) Predicate {
	return s.stringOp(ast.StrEndsWith, pattern)
}

// Like matches a SQL LIKE pattern.
func (s StringField) Like(pattern any) Predicate {
	return s.stringOp(ast.StrLike, pattern)
}

// ILike matches a case-insensitive LIKE pattern.
func (s StringField) ILike(pattern any) Predicate {
	return s.stringOp(ast.StrILike, pattern)
}

// DateField accesses a timestamp property. Operand values may be time.Time
// or ISO-8601 strings; both bind as ISO-8601.
type DateField struct {
	scalarField
}

// normalizeDateOperand keeps string operands as-is and formats time.Time.
func normalizeDateOperand(v any) any {
	if t, ok := v.(time.Time); ok {
		return t.UTC().Format(ast.TimeFormat)
	}
	return v
}

// Eq matches field = v.
func (d DateField) Eq(v any) Predicate { return d.compare(ast.OpEq, normalizeDateOperand(v)) }

// Gt matches field > v.
func (d DateField) Gt(v any) Predicate { return d.compare(ast.OpGt, normalizeDateOperand(v)) }

// Gte matches field >= v.
func (d DateField) Gte(v any) Predicate { return d.compare(ast.OpGte, normalizeDateOperand(v)) }

// Lt matches field < v.
func (d DateField) Lt(v any) Predicate { return d.compare(ast.OpLt, normalizeDateOperand(v)) }

// Lte matches field <= v.
func (d DateField) Lte(v any) Predicate { return d.compare(ast.OpLte, normalizeDateOperand(v)) }

// Between matches low <= field <= high.
func (d DateField) Between(low, high any) Predicate {
	return d.scalarField.Between(normalizeDateOperand(low), normalizeDateOperand(high))
}

// ArrayField accesses an array property.
type ArrayField struct {
	ref ast.FieldRef
}

func (a ArrayField) arrayOp(op ast.ArrayOpKind, values []any, length int) Predicate {
	return Predicate{expr: &ast.ArrayOp{Field: a.ref, Op: op, Values: toValues(values), Length: length}}
}

// Contains matches arrays containing the value.
func (a ArrayField) Contains(v any) Predicate { return a.arrayOp(ast.ArrContains, []any{v}, 0) }

// ContainsAll matches arrays containing every value.
func (a ArrayField) ContainsAll(vs ...any) Predicate { return a.arrayOp(ast.ArrContainsAll, vs, 0) }

// ContainsAny matches arrays containing at least one value.
func (a ArrayField) ContainsAny(vs ...any) Predicate { return a.arrayOp(ast.ArrContainsAny, vs, 0) }

// IsEmpty matches empty or missing arrays.
func (a ArrayField) IsEmpty() Predicate { return a.arrayOp(ast.ArrIsEmpty, nil, 0) }

// IsNotEmpty matches arrays with at least one element.
func (a ArrayField) IsNotEmpty() Predicate { return a.arrayOp(ast.ArrIsNotEmpty, nil, 0) }

// LengthEq matches arrays of exactly n elements.
func (a ArrayField) LengthEq(n int) Predicate { return a.arrayOp(ast.ArrLengthEq, nil, n) }

// LengthGt matches arrays longer than n.
func (a ArrayField) LengthGt(n int) Predicate { return a.arrayOp(ast.ArrLengthGt, nil, n) }

// LengthGte matches arrays of at least n elements.
func (a ArrayField) LengthGte(n int) Predicate { return a.arrayOp(ast.ArrLengthGte, nil, n) }

// LengthLt matches arrays shorter than n.
func (a ArrayField) LengthLt(n int) Predicate { return a.arrayOp(ast.ArrLengthLt, nil, n) }

// LengthLte matches arrays of at most n elements.
func (a ArrayField) LengthLte(n int) Predicate { return a.arrayOp(ast.ArrLengthLte, nil, n) }

// ObjectField accesses an object property.
type ObjectField struct {
	ref  ast.FieldRef
	info *schema.FieldTypeInfo
}

// HasKey matches objects declaring the key.
func (o ObjectField) HasKey(key string) Predicate {
	return Predicate{expr: &ast.ObjectOp{Field: o.ref, Op: ast.ObjHasKey, Pointer: []string{key}}}
}

// HasPath matches objects where the nested path resolves.
func (o ObjectField) HasPath(segs ...string) Predicate {
	return Predicate{expr: &ast.ObjectOp{Field: o.ref, Op: ast.ObjHasPath, Pointer: segs}}
}

// Path descends to a nested location for path-level operations.
func (o ObjectField) Path(segs ...string) ObjectPath {
	return ObjectPath{field: o, segs: segs}
}

// Get descends one key, carrying the resolved shape for further descent.
func (o ObjectField) Get(key string) ObjectField {
	out := ObjectField{ref: o.ref}
	out.ref.JSONPointer = append(append([]string{}, o.ref.JSONPointer...), key)
	if o.info != nil && o.info.Shape != nil {
		out.info = o.info.Shape[key]
	}
	return out
}

// ObjectPath is a nested location inside an object property.
type ObjectPath struct {
	field ObjectField
	segs  []string
}

// resolvedType walks the object shape to the path target, when known.
func (p ObjectPath) resolvedType() *schema.FieldTypeInfo {
	info := p.field.info
	for _, seg := range p.segs {
		if info == nil || info.Shape == nil {
			return nil
		}
		info = info.Shape[seg]
	}
	return info
}

// Equals matches a scalar value at the path. Array and object targets are
// rejected: equality is a scalar-only contract.
func (p ObjectPath) Equals(v any) Predicate {
	if info := p.resolvedType(); info != nil {
		switch info.ValueType {
		case schema.TypeArray, schema.TypeObject:
			return Predicate{err: qerr.Validation(p.field.ref.Alias,
				"pathEquals target is %s; only scalar paths support equality", info.ValueType)}
		}
	}
	val := toValue(v)
	return Predicate{expr: &ast.ObjectOp{Field: p.field.ref, Op: ast.ObjPathEquals, Pointer: p.segs, Value: val}}
}

// Contains matches when the array at the path contains the value. The
// target must resolve to an array when the shape is known.
func (p ObjectPath) Contains(v any) Predicate {
	if info := p.resolvedType(); info != nil && info.ValueType != schema.TypeArray {
		return Predicate{err: qerr.Validation(p.field.ref.Alias,
			"pathContains target is %s; an array is required", info.ValueType)}
	}
	return Predicate{expr: &ast.ObjectOp{Field: p.field.ref, Op: ast.ObjPathContains, Pointer: p.segs, Value: toValue(v)}}
}

// IsNull matches missing paths and explicit JSON nulls.
func (p ObjectPath) IsNull() Predicate {
	return Predicate{expr: &ast.ObjectOp{Field: p.field.ref, Op: ast.ObjPathIsNull, Pointer: p.segs}}
}

// IsNotNull matches present, non-null paths.
func (p ObjectPath) IsNotNull() Predicate {
	return Predicate{expr: &ast.ObjectOp{Field: p.field.ref, Op: ast.ObjPathIsNotNull, Pointer: p.segs}}
}

// AsNumber reads the path as a numeric scalar accessor.
func (p ObjectPath) AsNumber() NumberField {
	return NumberField{scalarField{ref: p.leafRef(schema.TypeNumber)}}
}

// AsString reads the path as a string scalar accessor.
func (p ObjectPath) AsString() StringField {
	return StringField{scalarField{ref: p.leafRef(schema.TypeString)}}
}

func (p ObjectPath) leafRef(vt schema.ValueType) ast.FieldRef {
	ref := p.field.ref
	ref.JSONPointer = append(append([]string{}, ref.JSONPointer...), p.segs...)
	ref.ValueType = vt
	if info := p.resolvedType(); info != nil {
		ref.ValueType = info.ValueType
	}
	return ref
}

// SimilarToOptions tunes a vector similarity predicate.
type SimilarToOptions struct {
	Metric   ast.VectorMetric // default cosine
	MinScore *float64
}

// EmbeddingField accesses an embedding property.
type EmbeddingField struct {
	ref ast.FieldRef
}

// SimilarTo restricts results to the k nearest neighbors of the vector.
// Placement is validated when the predicate is attached: vector leaves may
// only appear at the top level or under AND.
func (e EmbeddingField) SimilarTo(vec []float32, k int, opts ...SimilarToOptions) Predicate {
	cfg := SimilarToOptions{Metric: ast.MetricCosine}
	if len(opts) > 0 {
		cfg = opts[0]
		if cfg.Metric == "" {
			cfg.Metric = ast.MetricCosine
		}
	}
	if k <= 0 {
		return Predicate{err: qerr.Validation(e.ref.Alias, "similarTo requires k > 0")}
	}
	return Predicate{expr: &ast.VectorSimilarity{
		Field:    e.ref,
		Vector:   vec,
		K:        k,
		Metric:   cfg.Metric,
		MinScore: cfg.MinScore,
	}}
}

// AggregateTerm is an entry of an aggregate projection: either a group key
// field or an aggregate expression.
type AggregateTerm interface {
	aggregateProjection(outputName string) (ast.AggregateProjection, error)
}

// FieldTerm projects a group-key field.
type FieldTerm struct {
	ref ast.FieldRef
}

// Field references alias.field for grouping projections.
func Field(alias, field string) FieldTerm {
	return FieldTerm{ref: ast.FieldRef{Alias: alias, Path: ast.PathProps, JSONPointer: []string{field}}}
}

func (f FieldTerm) aggregateProjection(outputName string) (ast.AggregateProjection, error) {
	ref := f.ref
	return ast.AggregateProjection{OutputName: outputName, Field: &ref}, nil
}

// AggRef is an aggregate expression usable in Aggregate projections and,
// through its comparators, in Having.
type AggRef struct {
	agg ast.AggregateExpr
}

// Count counts rows by an alias's id.
func Count(alias string) AggRef {
	return AggRef{agg: ast.AggregateExpr{Func: ast.AggCount, Alias: alias}}
}

// CountDistinct counts distinct values of alias.field.
func CountDistinct(alias, field string) AggRef {
	return aggOver(ast.AggCountDistinct, alias, field)
}

// Sum sums alias.field.
func Sum(alias, field string) AggRef { return aggOver(ast.AggSum, alias, field) }

// Avg averages alias.field.
func Avg(alias, field string) AggRef { return aggOver(ast.AggAvg, alias, field) }

// Min takes the minimum of alias.field.
func Min(alias, field string) AggRef { return aggOver(ast.AggMin, alias, field) }

// Max takes the maximum of alias.field.
func Max(alias, field string) AggRef { return aggOver(ast.AggMax, alias, field) }

func aggOver(fn ast.AggregateFunc, alias, field string) AggRef {
	ref := ast.FieldRef{Alias: alias, Path: ast.PathProps, JSONPointer: []string{field}, ValueType: schema.TypeNumber}
	return AggRef{agg: ast.AggregateExpr{Func: fn, Field: &ref}}
}

func (a AggRef) aggregateProjection(outputName string) (ast.AggregateProjection, error) {
	agg := a.agg
	return ast.AggregateProjection{OutputName: outputName, Aggregate: &agg}, nil
}

func (a AggRef) compare(op ast.CompareOp, v any) Predicate {
	return Predicate{expr: &ast.AggregateComparison{Agg: a.agg, Op: op, Value: toValue(v)}}
}

// Eq matches aggregate = v.
func (a AggRef) Eq(v any) Predicate { return a.compare(ast.OpEq, v) }

// Gt matches aggregate > v.
func (a AggRef) Gt(v any) Predicate { return a.compare(ast.OpGt, v) }

// Gte matches aggregate >= v.
func (a AggRef) Gte(v any) Predicate { return a.compare(ast.OpGte, v) }

// Lt matches aggregate < v.
func (a AggRef) Lt(v any) Predicate { return a.compare(ast.OpLt, v) }

// Lte matches aggregate <= v.
func (a AggRef) Lte(v any) Predicate { return a.compare(ast.OpLte, v) }
