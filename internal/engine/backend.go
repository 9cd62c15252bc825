package engine

import (
	"context"
	"time"
)

// Backend is a connected external reasoning/query engine.
//
// Implementations report failures as *errs.Error values carrying the
// LOAD, REASONING, QUERY, IO or CONNECTION category. Uncategorized errors
// are treated as connection failures by Open and as query failures by
// Execute.
type Backend interface {
	// Load reads the ontology at source into the engine.
	Load(ctx context.Context, source string) (OntologyInfo, error)

	// Reason classifies the loaded ontology and materializes the inferred
	// axioms so queries can match them directly.
	Reason(ctx context.Context, opts ReasonOptions) (ReasonStats, error)

	// Query evaluates query against the materialized ontology and writes
	// the results as CSV to destination.
	Query(ctx context.Context, query, destination string) error

	// Close releases the engine. It must be safe to call more than once.
	Close() error
}

// Dialer connects to a Backend.
type Dialer func(ctx context.Context) (Backend, error)

// OntologyInfo describes the ontology loaded by a Backend.
type OntologyInfo struct {
	// Source is the path or URI the ontology was loaded from.
	Source string `json:"source"`

	// IRI is the ontology IRI, if declared.
	IRI string `json:"iri,omitempty"`

	// Version is the owl:versionInfo annotation, if declared.
	Version string `json:"version,omitempty"`

	// Axioms is the asserted axiom count, if the backend reports it.
	Axioms int `json:"axioms,omitempty"`
}

// Default reasoning parameters.
const DefaultReasoner = "ELK"

// DefaultAxiomGenerators are the inferred axiom kinds materialized by
// default: subclass, class-assertion and property-assertion axioms.
var DefaultAxiomGenerators = []string{"SubClass", "ClassAssertion", "PropertyAssertion"}

// ReasonOptions controls the classification/materialization pass.
type ReasonOptions struct {
	// Reasoner names the reasoner to use (e.g. "ELK").
	Reasoner string `json:"reasoner"`

	// AxiomGenerators lists the kinds of inferred axioms to materialize.
	AxiomGenerators []string `json:"axiom_generators"`
}

// withDefaults fills unset fields.
func (o ReasonOptions) withDefaults() ReasonOptions {
	if o.Reasoner == "" {
		o.Reasoner = DefaultReasoner
	}
	if len(o.AxiomGenerators) == 0 {
		o.AxiomGenerators = append([]string(nil), DefaultAxiomGenerators...)
	}
	return o
}

// ReasonStats summarizes a reasoning pass.
type ReasonStats struct {
	// InferredAxioms is the number of axioms added by materialization,
	// if the backend reports it.
	InferredAxioms int `json:"inferred_axioms,omitempty"`

	// Duration is the wall time of the pass as measured by the Session.
	Duration time.Duration `json:"-"`
}
