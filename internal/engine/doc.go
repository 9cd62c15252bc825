// Package engine manages the session with the external reasoning/query
// engine.
//
// The engine itself (ontology loading, classification, SPARQL evaluation)
// lives in another process. This package defines the Backend contract a
// transport must satisfy and wraps one connected Backend in a Session with
// a fixed lifecycle:
//
//	Uninitialized -> Loading -> Reasoning -> Ready -> Closed
//
// Open drives the session from Uninitialized to Ready. Loading and
// reasoning happen exactly once per Session; every query afterwards runs
// against the same materialized ontology. Any failure on the way to Ready
// releases the backend and Open returns an error instead of a Session.
//
// Once Ready, Execute may be called any number of times. A rejected query
// leaves the Session Ready. After Close, every call fails with a
// CLOSED_SESSION error without contacting the backend.
//
// Transports live in subpackages: bridge (long-lived subprocess speaking
// JSON lines) and robot (the ROBOT command line).
//
// Sessions serialize their calls. Callers that need parallelism open one
// Session per worker and pay the load/reason cost for each.
package engine
