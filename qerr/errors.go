// Package qerr defines the typed errors surfaced by the query engine.
//
// Errors fall into two families. User-recoverable errors (validation,
// configuration, not-found and constraint violations) are returned to
// callers as *Error values carrying a machine-readable Kind plus optional
// suggestion and details. Internal signals (UnsupportedPredicate,
// MissingSelectiveField) are caught inside the executor to trigger a
// fallback path and only escape when both paths fail.
package qerr

import (
	"errors"
	"fmt"
	"strings"
)

// Kind identifies a category of engine error.
type Kind string

const (
	KindValidation           Kind = "ValidationError"
	KindConfiguration        Kind = "ConfigurationError"
	KindNodeNotFound         Kind = "NodeNotFoundError"
	KindEdgeNotFound         Kind = "EdgeNotFoundError"
	KindEndpointNotFound     Kind = "EndpointNotFoundError"
	KindVersionConflict      Kind = "VersionConflictError"
	KindRestrictedDelete     Kind = "RestrictedDeleteError"
	KindSchemaMismatch       Kind = "SchemaMismatchError"
	KindMigration            Kind = "MigrationError"
	KindUnsupportedPredicate Kind = "UnsupportedPredicateError"
	KindKindNotFound         Kind = "KindNotFoundError"
	KindUniqueness           Kind = "UniquenessError"
	KindCardinality          Kind = "CardinalityError"
	KindEndpoint             Kind = "EndpointError"
	KindDisjoint             Kind = "DisjointError"
)

// Error is the user-visible failure type for the engine.
type Error struct {
	Kind       Kind
	Message    string
	Suggestion string
	Details    map[string]any
	Cause      error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	b.WriteString(": ")
	b.WriteString(e.Message)
	if e.Suggestion != "" {
		b.WriteString(" (")
		b.WriteString(e.Suggestion)
		b.WriteString(")")
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Cause }

// Is matches errors by Kind so callers can use errors.Is with a bare
// &Error{Kind: ...} target.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Message == "" || t.Message == e.Message)
}

// New creates an error of the given kind.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Validation creates a ValidationError. The path identifies the offending
// field or AST node for programmatic handling.
func Validation(path string, format string, args ...any) *Error {
	e := New(KindValidation, format, args...)
	if path != "" {
		e.Details = map[string]any{"path": path}
	}
	return e
}

// Configuration creates a ConfigurationError.
func Configuration(format string, args ...any) *Error {
	return New(KindConfiguration, format, args...)
}

// WithSuggestion attaches a human-readable remediation hint.
func (e *Error) WithSuggestion(s string) *Error {
	e.Suggestion = s
	return e
}

// WithDetail attaches one structured detail entry.
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = map[string]any{}
	}
	e.Details[key] = value
	return e
}

// WithCause attaches the underlying error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// KindOf returns the Kind of err if it is (or wraps) an *Error, else "".
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err is (or wraps) an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// UnsupportedPredicateError signals that a dialect cannot express a
// predicate shape. The executor treats it as "fall back to the full-blob
// path"; it reaches callers only when the fallback also fails.
type UnsupportedPredicateError struct {
	Dialect string
	Reason  string
}

func (e *UnsupportedPredicateError) Error() string {
	return fmt.Sprintf("unsupported predicate for dialect %s: %s", e.Dialect, e.Reason)
}

// IsUnsupportedPredicate reports whether err wraps an
// UnsupportedPredicateError.
func IsUnsupportedPredicate(err error) bool {
	var e *UnsupportedPredicateError
	return errors.As(err, &e)
}

// MissingSelectiveFieldError signals that a select callback read a field
// the selective-projection plan did not include, or returned a whole
// node/edge object. The executor catches it and re-runs on the full-blob
// path.
type MissingSelectiveFieldError struct {
	Alias string
	Field string
}

func (e *MissingSelectiveFieldError) Error() string {
	return fmt.Sprintf("selective projection for alias %q missing field %q", e.Alias, e.Field)
}

// IsMissingSelectiveField reports whether err wraps a
// MissingSelectiveFieldError.
func IsMissingSelectiveField(err error) bool {
	var e *MissingSelectiveFieldError
	return errors.As(err, &e)
}
