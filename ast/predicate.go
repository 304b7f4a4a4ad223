package ast

import (
	"time"

	"github.com/mvp-joe/typequery/schema"
)

// Expr is a node of a predicate expression tree. The concrete variants are
// the structs below; dialect compilers switch on them.
type Expr interface {
	exprNode()
}

// Value is a predicate operand: a literal with an inferred value type, or a
// named parameter reference.
type Value struct {
	Lit   any
	Type  schema.ValueType
	Param string // non-empty for parameter references
}

// IsParam reports whether the value is a parameter reference.
func (v Value) IsParam() bool { return v.Param != "" }

// Lit wraps a literal into a Value, inferring its value type.
func Lit(v any) Value {
	return Value{Lit: v, Type: inferLiteralType(v)}
}

// ParamRef wraps a parameter name into a Value.
func ParamRef(name string) Value {
	return Value{Param: name}
}

func inferLiteralType(v any) schema.ValueType {
	switch v.(type) {
	case string:
		return schema.TypeString
	case int, int32, int64, float32, float64:
		return schema.TypeNumber
	case bool:
		return schema.TypeBoolean
	case time.Time:
		return schema.TypeDate
	case []any, []string, []int, []float64:
		return schema.TypeArray
	case map[string]any:
		return schema.TypeObject
	default:
		return schema.TypeUnknown
	}
}

// CompareOp is a scalar comparison operator.
type CompareOp string

const (
	OpEq  CompareOp = "eq"
	OpNeq CompareOp = "neq"
	OpGt  CompareOp = "gt"
	OpGte CompareOp = "gte"
	OpLt  CompareOp = "lt"
	OpLte CompareOp = "lte"
	OpIn  CompareOp = "in"
	OpNin CompareOp = "notIn"
)

// Comparison compares a field against a value (or value list for in/notIn).
type Comparison struct {
	Field  FieldRef
	Op     CompareOp
	Value  Value
	Values []Value // for in / notIn
}

// StringOpKind is a string-matching operation.
type StringOpKind string

const (
	StrContains   StringOpKind = "contains"
	StrStartsWith StringOpKind = "startsWith"
	StrEndsWith   StringOpKind = "endsWith"
	StrLike       StringOpKind = "like"
	StrILike      StringOpKind = "ilike"
)

// StringOp matches a string field against a pattern.
type StringOp struct {
	Field   FieldRef
	Op      StringOpKind
	Pattern Value
}

// Between checks low <= field <= high.
type Between struct {
	Field FieldRef
	Low   Value
	High  Value
}

// NullCheck tests a field for NULL / NOT NULL.
type NullCheck struct {
	Field  FieldRef
	IsNull bool
}

// ArrayOpKind is an operation on an array-valued field.
type ArrayOpKind string

const (
	ArrContains   ArrayOpKind = "contains"
	ArrContainsAll ArrayOpKind = "containsAll"
	ArrContainsAny ArrayOpKind = "containsAny"
	ArrIsEmpty    ArrayOpKind = "isEmpty"
	ArrIsNotEmpty ArrayOpKind = "isNotEmpty"
	ArrLengthEq   ArrayOpKind = "lengthEq"
	ArrLengthGt   ArrayOpKind = "lengthGt"
	ArrLengthGte  ArrayOpKind = "lengthGte"
	ArrLengthLt   ArrayOpKind = "lengthLt"
	ArrLengthLte  ArrayOpKind = "lengthLte"
)

// ArrayOp applies an array operation to a field.
type ArrayOp struct {
	Field  FieldRef
	Op     ArrayOpKind
	Values []Value
	Length int // for length* ops
}

// ObjectOpKind is an operation on an object-valued field.
type ObjectOpKind string

const (
	ObjHasKey        ObjectOpKind = "hasKey"
	ObjHasPath       ObjectOpKind = "hasPath"
	ObjPathEquals    ObjectOpKind = "pathEquals"
	ObjPathContains  ObjectOpKind = "pathContains"
	ObjPathIsNull    ObjectOpKind = "pathIsNull"
	ObjPathIsNotNull ObjectOpKind = "pathIsNotNull"
)

// ObjectOp applies a path operation to an object field. Pointer is the path
// below the field itself.
type ObjectOp struct {
	Field   FieldRef
	Op      ObjectOpKind
	Pointer []string
	Value   Value
}

// VectorMetric selects the distance function for vector similarity.
type VectorMetric string

const (
	MetricCosine       VectorMetric = "cosine"
	MetricL2           VectorMetric = "l2"
	MetricInnerProduct VectorMetric = "inner_product"
)

// VectorSimilarity restricts results to the K nearest neighbors of Vector
// under Metric, optionally filtered by MinScore in the metric's direction.
type VectorSimilarity struct {
	Field    FieldRef
	Vector   []float32
	K        int
	Metric   VectorMetric
	MinScore *float64
}

// AggregateComparison compares an aggregate against a value (HAVING).
type AggregateComparison struct {
	Agg   AggregateExpr
	Op    CompareOp
	Value Value
}

// And is the conjunction of its operands.
type And struct {
	Operands []Expr
}

// Or is the disjunction of its operands.
type Or struct {
	Operands []Expr
}

// Not negates its operand.
type Not struct {
	Operand Expr
}

// Exists holds a subquery used as an EXISTS / NOT EXISTS predicate.
type Exists struct {
	Query   *Query
	Negated bool
}

// InSubquery tests field membership in a single-column subquery.
type InSubquery struct {
	Field   FieldRef
	Query   *Query
	Negated bool
}

func (*Comparison) exprNode()          {}
func (*StringOp) exprNode()            {}
func (*Between) exprNode()             {}
func (*NullCheck) exprNode()           {}
func (*ArrayOp) exprNode()             {}
func (*ObjectOp) exprNode()            {}
func (*VectorSimilarity) exprNode()    {}
func (*AggregateComparison) exprNode() {}
func (*And) exprNode()                 {}
func (*Or) exprNode()                  {}
func (*Not) exprNode()                 {}
func (*Exists) exprNode()              {}
func (*InSubquery) exprNode()          {}
