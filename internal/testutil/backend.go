package testutil

import (
	"context"
	"sync"

	"github.com/roach88/hubmapy/internal/engine"
	"github.com/roach88/hubmapy/internal/result"
)

// FakeBackend is an in-memory engine.Backend for tests.
//
// Queries are answered by Responder (default: a Fixture built with
// DefaultFixture). Every call is counted so tests can assert that the
// engine was, or was not, contacted.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type FakeBackend struct {
	// Info is returned by Load.
	Info engine.OntologyInfo

	// Stats is returned by Reason.
	Stats engine.ReasonStats

	// DialErr, LoadErr, ReasonErr and CloseErr make the matching call fail.
	DialErr   error
	LoadErr   error
	ReasonErr error
	CloseErr  error

	// Responder answers queries. Nil means DefaultFixture().Respond.
	Responder func(query string) (*result.Result, error)

	mu         sync.Mutex
	calls      Calls
	queries    []string
	lastReason engine.ReasonOptions
	lastSource string
}

// Calls counts FakeBackend method invocations.
type Calls struct {
	Dials   int
	Loads   int
	Reasons int
	Queries int
	Closes  int
}

// NewFakeBackend creates a FakeBackend answering from DefaultFixture.
func NewFakeBackend() *FakeBackend {
	return &FakeBackend{
		Info:  engine.OntologyInfo{IRI: "http://purl.org/ccf/latest/ccf.owl", Version: "1.0.0-test"},
		Stats: engine.ReasonStats{InferredAxioms: 42},
	}
}

// Dialer returns an engine.Dialer yielding this backend.
func (f *FakeBackend) Dialer() engine.Dialer {
	return func(ctx context.Context) (engine.Backend, error) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.calls.Dials++
		if f.DialErr != nil {
			return nil, f.DialErr
		}
		return f, nil
	}
}

// Load implements engine.Backend.
func (f *FakeBackend) Load(ctx context.Context, source string) (engine.OntologyInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls.Loads++
	f.lastSource = source
	if f.LoadErr != nil {
		return engine.OntologyInfo{}, f.LoadErr
	}
	return f.Info, nil
}

// Reason implements engine.Backend.
func (f *FakeBackend) Reason(ctx context.Context, opts engine.ReasonOptions) (engine.ReasonStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls.Reasons++
	f.lastReason = opts
	if f.ReasonErr != nil {
		return engine.ReasonStats{}, f.ReasonErr
	}
	return f.Stats, nil
}

// Query implements engine.Backend by writing the responder's result as
// CSV to destination.
func (f *FakeBackend) Query(ctx context.Context, query, destination string) error {
	f.mu.Lock()
	f.calls.Queries++
	f.queries = append(f.queries, query)
	respond := f.Responder
	f.mu.Unlock()

	if respond == nil {
		respond = DefaultFixture().Respond
	}
	res, err := respond(query)
	if err != nil {
		return err
	}
	return result.Write(destination, res)
}

// Close implements engine.Backend.
func (f *FakeBackend) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls.Closes++
	return f.CloseErr
}

// Calls returns a snapshot of the call counters.
func (f *FakeBackend) Calls() Calls {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// SubmittedQueries returns every query text passed to Query, in order.
func (f *FakeBackend) SubmittedQueries() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.queries...)
}

// LastReasonOptions returns the options of the most recent Reason call.
func (f *FakeBackend) LastReasonOptions() engine.ReasonOptions {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastReason
}

// LastSource returns the source of the most recent Load call.
func (f *FakeBackend) LastSource() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastSource
}
