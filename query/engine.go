// Package query is the public query surface of the engine: a fluent,
// immutable builder over a graph definition, compiled per dialect and
// executed against a backend.
package query

import (
	"github.com/mvp-joe/typequery/backend"
	"github.com/mvp-joe/typequery/dialect"
	"github.com/mvp-joe/typequery/ontology"
	"github.com/mvp-joe/typequery/schema"
)

// Engine bundles the immutable collaborators a query needs: the graph
// definition and its introspector, the dialect compiler, the ontology
// registry, and the execution backend. All of them are safe for concurrent
// readers after construction.
type Engine struct {
	def      *schema.GraphDef
	intro    *schema.Introspector
	compiler dialect.Compiler
	registry ontology.Registry
	backend  backend.Backend
}

// Option configures an Engine.
type Option func(*Engine)

// WithRegistry sets the ontology registry used for subclass and edge-kind
// expansion. Defaults to ontology.None.
func WithRegistry(r ontology.Registry) Option {
	return func(e *Engine) { e.registry = r }
}

// NewEngine creates an engine over a graph definition.
func NewEngine(def *schema.GraphDef, compiler dialect.Compiler, be backend.Backend, opts ...Option) *Engine {
	e := &Engine{
		def:      def,
		intro:    schema.NewIntrospector(def),
		compiler: compiler,
		registry: ontology.None,
		backend:  be,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Introspector exposes the engine's schema introspector.
func (e *Engine) Introspector() *schema.Introspector { return e.intro }

// Close releases the backend.
func (e *Engine) Close() error { return e.backend.Close() }
