package engine

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/roach88/hubmapy/internal/errs"
)

// Session is one open connection to the external engine together with
// the ontology snapshot it has loaded and reasoned over.
type Session struct {
	mu      sync.Mutex
	backend Backend
	state   State
	info    OntologyInfo
	stats   ReasonStats
	queries int
	logger  *slog.Logger
}

// Option configures Open.
type Option func(*sessionConfig)

type sessionConfig struct {
	reason ReasonOptions
	logger *slog.Logger
}

// WithLogger sets the logger used for lifecycle events.
// Default: a logger that discards everything.
func WithLogger(l *slog.Logger) Option {
	return func(c *sessionConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithReasoner selects the reasoner (default: ELK).
func WithReasoner(name string) Option {
	return func(c *sessionConfig) {
		c.reason.Reasoner = name
	}
}

// WithAxiomGenerators selects the inferred axiom kinds to materialize
// (default: DefaultAxiomGenerators).
func WithAxiomGenerators(kinds ...string) Option {
	return func(c *sessionConfig) {
		c.reason.AxiomGenerators = kinds
	}
}

// Open connects to the engine, loads the ontology at source and reasons
// over it. On any failure the backend is closed and no Session is
// returned.
//
// Errors: CONNECTION if dial fails, LOAD if the ontology cannot be
// loaded, REASONING if materialization fails.
func Open(ctx context.Context, dial Dialer, source string, opts ...Option) (*Session, error) {
	cfg := sessionConfig{logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(&cfg)
	}
	cfg.reason = cfg.reason.withDefaults()

	s := &Session{state: StateUninitialized, logger: cfg.logger}

	backend, err := dial(ctx)
	if err != nil {
		s.state = StateClosed
		return nil, categorize(err, errs.CodeConnection, "session.open", "cannot connect to reasoning engine")
	}
	s.backend = backend

	fail := func(err error) (*Session, error) {
		if closeErr := backend.Close(); closeErr != nil {
			s.logger.Warn("error releasing engine after failed open", "error", closeErr)
		}
		s.state = StateClosed
		return nil, err
	}

	s.state = StateLoading
	s.logger.Info("loading ontology", "source", source)
	info, err := backend.Load(ctx, source)
	if err != nil {
		return fail(categorize(err, errs.CodeLoad, "session.load", fmt.Sprintf("cannot load ontology %s", source)))
	}
	if info.Source == "" {
		info.Source = source
	}
	s.info = info

	s.state = StateReasoning
	s.logger.Info("reasoning over ontology",
		"reasoner", cfg.reason.Reasoner,
		"axiom_generators", cfg.reason.AxiomGenerators)
	start := time.Now()
	stats, err := backend.Reason(ctx, cfg.reason)
	if err != nil {
		return fail(categorize(err, errs.CodeReasoning, "session.reason", "materialization failed"))
	}
	stats.Duration = time.Since(start)
	s.stats = stats

	s.state = StateReady
	s.logger.Info("ontology ready",
		"version", info.Version,
		"inferred_axioms", stats.InferredAxioms,
		"duration", stats.Duration)
	return s, nil
}

// Execute evaluates a bound query and writes the CSV results to
// destination. The parent directory of destination must exist.
//
// Errors: CLOSED_SESSION after Close (the backend is not contacted), IO
// if destination's directory is unusable, QUERY if the engine rejects
// the query. None of these change the session state.
func (s *Session) Execute(ctx context.Context, query, destination string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateClosed {
		return errClosed
	}
	if s.state != StateReady {
		return errs.New(errs.CodeConnection, "session.execute", fmt.Sprintf("session is %s", s.state))
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("session.execute: %w", err)
	}
	if err := checkDestination(destination); err != nil {
		return err
	}

	s.logger.Debug("submitting query", "destination", destination)
	start := time.Now()
	if err := s.backend.Query(ctx, query, destination); err != nil {
		return categorize(err, errs.CodeQuery, "session.execute", "query failed")
	}
	s.queries++
	s.logger.Debug("query complete", "destination", destination, "duration", time.Since(start))
	return nil
}

// checkDestination verifies the results file can be created.
func checkDestination(destination string) error {
	dir := filepath.Dir(destination)
	info, err := os.Stat(dir)
	if err != nil {
		return errs.Wrap(errs.CodeIO, "session.execute", fmt.Sprintf("results directory %s unavailable", dir), err)
	}
	if !info.IsDir() {
		return errs.New(errs.CodeIO, "session.execute", fmt.Sprintf("results directory %s is not a directory", dir))
	}
	return nil
}

// Close releases the engine. Safe to call more than once; only the first
// call contacts the backend.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateClosed {
		return nil
	}
	s.state = StateClosed
	s.logger.Info("closing reasoning engine", "queries", s.queries)
	if err := s.backend.Close(); err != nil {
		return errs.Wrap(errs.CodeConnection, "session.close", "error releasing engine", err)
	}
	return nil
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Ontology describes the loaded ontology snapshot.
func (s *Session) Ontology() OntologyInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.info
}

// ReasonStats returns the statistics of the reasoning pass.
func (s *Session) ReasonStats() ReasonStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Queries returns the number of successfully executed queries.
func (s *Session) Queries() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queries
}
