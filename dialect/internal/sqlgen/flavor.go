// Package sqlgen is the shared AST-to-SQL lowering used by both dialect
// compilers. The dialect-specific pieces (JSON extraction, vector distance,
// recursive path encoding, placeholder format) are supplied through the
// Flavor interface; everything else — CTE assembly, joins, predicate and
// projection rendering — is common.
package sqlgen

import (
	sq "github.com/Masterminds/squirrel"

	"github.com/mvp-joe/typequery/ast"
	"github.com/mvp-joe/typequery/schema"
)

// Flavor is the per-dialect surface the shared generator depends on.
// Fragments returned by Flavor methods use '?' placeholders; the generator
// converts them with Placeholder() as its final step.
type Flavor interface {
	Name() string

	// Placeholder converts '?' placeholders to the dialect's format.
	Placeholder() sq.PlaceholderFormat

	// JSONValue extracts the JSON value at path under col, shaped for
	// comparison and ordering given the field's value type.
	JSONValue(col string, path []string, vt schema.ValueType) string

	// JSONText extracts the raw JSON text at path (selective projection of
	// arrays, objects, and embeddings; the executor decodes it).
	JSONText(col string, path []string) string

	// JSONArrayLength returns the length of the array at path.
	JSONArrayLength(col string, path []string) string

	// JSONPathExists tests that path resolves to any value (including
	// JSON null).
	JSONPathExists(col string, path []string) string

	// JSONPathIsJSONNull tests that path resolves to an explicit JSON null.
	JSONPathIsJSONNull(col string, path []string) string

	// ArrayPredicate renders a containment or emptiness test over the
	// array at path. values are pre-bound literals; the returned args line
	// up with the fragment's placeholders.
	ArrayPredicate(col string, path []string, op ast.ArrayOpKind, values []any, length int) (string, []any, error)

	// VectorDistance renders the distance between the embedding at expr
	// and a bound query vector (exactly one placeholder).
	VectorDistance(expr string, metric ast.VectorMetric) (string, error)

	// FormatEmbedding converts a query vector to the dialect's bound form.
	FormatEmbedding(vec []float32) (any, error)

	// LikeOperator returns the dialect's pattern-match operator;
	// caseInsensitive selects ILIKE semantics.
	LikeOperator(caseInsensitive bool) string

	// PathInit, PathAppend, and PathExcludes render the visited-path
	// bookkeeping of recursive traversals in the dialect's physical form.
	PathInit(fromExpr, toExpr string) string
	PathAppend(pathExpr, toExpr string) string
	PathExcludes(pathExpr, idExpr string) string

	// BindValue converts a host value to the dialect's bound-parameter
	// representation.
	BindValue(v any) any

	// SupportsVectors reports whether vector predicates compile at all.
	SupportsVectors() bool
}
