package ast

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/mvp-joe/typequery/qerr"
)

var aliasPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,62}$`)

// reservedKeywords is the fixed SQL keyword set aliases must avoid
// (matched case-insensitively).
var reservedKeywords = map[string]bool{
	"select": true, "from": true, "where": true, "and": true, "or": true,
	"not": true, "in": true, "is": true, "null": true, "true": true,
	"false": true, "as": true, "on": true, "join": true, "left": true,
	"right": true, "inner": true, "outer": true, "cross": true, "full": true,
	"group": true, "by": true, "having": true, "order": true, "asc": true,
	"desc": true, "limit": true, "offset": true, "union": true,
	"intersect": true, "except": true, "all": true, "distinct": true,
	"case": true, "when": true, "then": true, "else": true, "end": true,
	"exists": true, "between": true, "like": true, "ilike": true,
	"insert": true, "update": true, "delete": true, "create": true,
	"drop": true, "alter": true, "table": true, "index": true, "view": true,
	"with": true, "recursive": true,
}

// ValidateAlias checks alias shape, the reserved keyword set, and the cte_
// prefix ban.
func ValidateAlias(alias string) error {
	if !aliasPattern.MatchString(alias) {
		return qerr.Validation(alias, "invalid alias %q: must match %s", alias, aliasPattern.String())
	}
	if strings.HasPrefix(alias, "cte_") {
		return qerr.Validation(alias, "invalid alias %q: the cte_ prefix is reserved", alias)
	}
	if reservedKeywords[strings.ToLower(alias)] {
		return qerr.Validation(alias, "invalid alias %q: reserved SQL keyword", alias)
	}
	return nil
}

// ValidateRecursiveSpec checks depth bounds against the recursion ceiling.
func ValidateRecursiveSpec(spec *RecursiveSpec) error {
	if spec == nil {
		return nil
	}
	if spec.MaxDepth != -1 && spec.MinDepth > spec.MaxDepth {
		return qerr.Validation("recursive", "minHops %d exceeds maxHops %d", spec.MinDepth, spec.MaxDepth)
	}
	if spec.MaxDepth > MaxRecursiveDepth {
		return qerr.Validation("recursive", "maxHops %d exceeds the recursion ceiling %d", spec.MaxDepth, MaxRecursiveDepth)
	}
	if spec.PathAlias != "" {
		if err := ValidateAlias(spec.PathAlias); err != nil {
			return err
		}
	}
	if spec.DepthAlias != "" {
		if err := ValidateAlias(spec.DepthAlias); err != nil {
			return err
		}
	}
	return nil
}

// ValidateVectorPlacement enforces that a vector_similarity leaf appears
// only at the top level of a predicate expression or inside a chain of AND
// combinators from the top; never under OR or NOT. The returned error's
// path detail points at the offending node.
func ValidateVectorPlacement(expr Expr) error {
	return checkVectorPlacement(expr, "", true)
}

func checkVectorPlacement(expr Expr, path string, andChain bool) error {
	switch e := expr.(type) {
	case *VectorSimilarity:
		if !andChain {
			return qerr.Validation(joinPath(path, "vector_similarity"),
				"vector similarity predicates may not appear under or/not")
		}
		return nil
	case *And:
		for i, op := range e.Operands {
			if err := checkVectorPlacement(op, joinPath(path, fmt.Sprintf("and[%d]", i)), andChain); err != nil {
				return err
			}
		}
		return nil
	case *Or:
		for i, op := range e.Operands {
			if err := checkVectorPlacement(op, joinPath(path, fmt.Sprintf("or[%d]", i)), false); err != nil {
				return err
			}
		}
		return nil
	case *Not:
		return checkVectorPlacement(e.Operand, joinPath(path, "not"), false)
	default:
		return nil
	}
}

func joinPath(base, seg string) string {
	if base == "" {
		return seg
	}
	return base + "." + seg
}
