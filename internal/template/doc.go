// Package template holds the parametrized SPARQL queries behind each
// supported analytical question.
//
// Built-in templates are embedded into the binary from queries/*.rq and
// are addressed by operation name (the file name without extension).
// User-supplied query files are read from disk on demand.
//
// Templates contain named placeholders in SPARQL variable syntax
// (?cell_type, ?anatomical_structure, ...). Substitution is performed by
// package bind; this package never mutates a template body.
package template
