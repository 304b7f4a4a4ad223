package query

// NamedParam marks a value as a deferred parameter reference. Queries
// containing parameters must be prepared; Execute rejects them.
type NamedParam struct {
	Name string
}

// Param creates a named parameter reference usable wherever a literal is
// accepted on the right-hand side of a comparison, as a string-operation
// pattern, or as a between bound.
func Param(name string) NamedParam {
	return NamedParam{Name: name}
}
