package ast

import (
	"encoding/base64"
	"encoding/json"
	"strings"

	"github.com/mvp-joe/typequery/qerr"
)

// CursorVersion is the highest cursor format version this engine emits and
// accepts.
const CursorVersion = 1

// Cursor direction tags.
const (
	CursorForward  = "f"
	CursorBackward = "b"
)

// CursorData is the decoded form of an opaque pagination cursor: the ORDER
// BY values at a page boundary plus the column identifiers they belong to.
type CursorData struct {
	V    int      `json:"v"`
	D    string   `json:"d"`
	Vals []any    `json:"vals"`
	Cols []string `json:"cols"`
}

// BuildColumnID derives the stable cursor column identifier for one ORDER
// BY entry: the alias plus the flattened JSON-pointer segments.
func BuildColumnID(spec OrderSpec) string {
	parts := []string{spec.Field.Alias}
	if spec.Field.Path == PathProps {
		parts = append(parts, spec.Field.JSONPointer...)
	} else {
		parts = append(parts, spec.Field.Path)
	}
	return strings.Join(parts, ".")
}

// ColumnIDs derives the cursor column identifiers for an ORDER BY list.
func ColumnIDs(orderBy []OrderSpec) []string {
	out := make([]string, len(orderBy))
	for i, s := range orderBy {
		out[i] = BuildColumnID(s)
	}
	return out
}

// EncodeCursor serializes cursor data to URL-safe base64 with padding
// stripped. The output never contains '+', '/', or '='.
func EncodeCursor(c CursorData) (string, error) {
	raw, err := json.Marshal(c)
	if err != nil {
		return "", qerr.Validation("cursor", "encode cursor: %v", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// DecodeCursor parses an opaque cursor string. It rejects invalid base64,
// versions above CursorVersion, unknown direction tags, and mismatched
// vals/cols lengths.
func DecodeCursor(s string) (CursorData, error) {
	var c CursorData
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return c, qerr.Validation("cursor", "invalid cursor encoding").WithCause(err)
	}
	if err := json.Unmarshal(raw, &c); err != nil {
		return c, qerr.Validation("cursor", "invalid cursor payload").WithCause(err)
	}
	if c.V > CursorVersion {
		return c, qerr.Validation("cursor", "cursor version %d not supported (max %d)", c.V, CursorVersion)
	}
	if c.D != CursorForward && c.D != CursorBackward {
		return c, qerr.Validation("cursor", "unknown cursor direction %q", c.D)
	}
	if len(c.Vals) != len(c.Cols) {
		return c, qerr.Validation("cursor", "cursor has %d values for %d columns", len(c.Vals), len(c.Cols))
	}
	return c, nil
}

// ValidateCursorFor checks that a decoded cursor belongs to a query with
// the given ORDER BY columns.
func ValidateCursorFor(c CursorData, orderBy []OrderSpec) error {
	ids := ColumnIDs(orderBy)
	if len(ids) != len(c.Cols) {
		return qerr.Validation("cursor", "cursor columns do not match query ORDER BY").
			WithDetail("expected", ids).WithDetail("got", c.Cols)
	}
	for i, id := range ids {
		if c.Cols[i] != id {
			return qerr.Validation("cursor", "cursor column %q does not match ORDER BY column %q", c.Cols[i], id).
				WithDetail("expected", ids).WithDetail("got", c.Cols)
		}
	}
	return nil
}
