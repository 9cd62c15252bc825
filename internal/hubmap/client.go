package hubmap

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/roach88/hubmapy/internal/bind"
	"github.com/roach88/hubmapy/internal/catalog"
	"github.com/roach88/hubmapy/internal/engine"
	"github.com/roach88/hubmapy/internal/errs"
	"github.com/roach88/hubmapy/internal/result"
	"github.com/roach88/hubmapy/internal/store"
	"github.com/roach88/hubmapy/internal/template"
)

// Default result names for ad hoc queries.
const (
	DefaultQueryName     = "hubmap_query"
	DefaultFileQueryName = "user_query"
)

// TimestampLayout is appended to result names when TimestampResults is set.
const TimestampLayout = "20060102T150405Z"

// RunRecorder persists executed queries. *store.Store implements it.
type RunRecorder interface {
	RecordRun(ctx context.Context, run store.Run) (string, error)
}

// Options configures a Client.
type Options struct {
	// Ontology is a path or file: URI passed to the engine.
	Ontology string

	// OutputDir receives result files. Created if missing. Defaults to
	// the working directory.
	OutputDir string

	// TimestampResults writes <name>-<UTC timestamp>.csv instead of
	// overwriting <name>.csv.
	TimestampResults bool

	// Reasoner and AxiomGenerators override the engine defaults.
	Reasoner        string
	AxiomGenerators []string

	// History records every query when set.
	History RunRecorder

	Logger *slog.Logger

	// Now is the clock used for timestamps. Defaults to time.Now.
	Now func() time.Time

	// Catalog and Templates default to the built-in operations.
	Catalog   *catalog.Catalog
	Templates *template.Store
}

// Client runs catalog operations against one reasoning session.
type Client struct {
	session   *engine.Session
	catalog   *catalog.Catalog
	templates *template.Store
	history   RunRecorder
	logger    *slog.Logger
	now       func() time.Time
	outputDir string
	timestamp bool
}

// New creates the output directory, then opens a session: the engine is
// dialed, the ontology loaded and reasoned over. Nothing is left running
// on failure.
//
// Errors: IO if the output directory cannot be created, CONNECTION, LOAD
// or REASONING from the session.
func New(ctx context.Context, dial engine.Dialer, opts Options) (*Client, error) {
	c := &Client{
		catalog:   opts.Catalog,
		templates: opts.Templates,
		history:   opts.History,
		logger:    opts.Logger,
		now:       opts.Now,
		outputDir: opts.OutputDir,
		timestamp: opts.TimestampResults,
	}
	if c.logger == nil {
		c.logger = slog.New(slog.DiscardHandler)
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.outputDir == "" {
		c.outputDir = "."
	}
	if c.templates == nil {
		c.templates = template.New()
	}
	if c.catalog == nil {
		cat, err := catalog.Default()
		if err != nil {
			return nil, err
		}
		c.catalog = cat
	}
	if err := c.catalog.Verify(c.templates); err != nil {
		return nil, fmt.Errorf("hubmap: %w", err)
	}

	if err := os.MkdirAll(c.outputDir, 0o755); err != nil {
		return nil, errs.Wrap(errs.CodeIO, "hubmap.new", fmt.Sprintf("cannot create output directory %s", c.outputDir), err)
	}

	sessionOpts := []engine.Option{engine.WithLogger(c.logger)}
	if opts.Reasoner != "" {
		sessionOpts = append(sessionOpts, engine.WithReasoner(opts.Reasoner))
	}
	if len(opts.AxiomGenerators) > 0 {
		sessionOpts = append(sessionOpts, engine.WithAxiomGenerators(opts.AxiomGenerators...))
	}
	session, err := engine.Open(ctx, dial, opts.Ontology, sessionOpts...)
	if err != nil {
		return nil, err
	}
	c.session = session
	return c, nil
}

// Close releases the engine. Safe to call more than once; every later
// query fails with CLOSED_SESSION.
func (c *Client) Close() error {
	return c.session.Close()
}

// State reports the session state.
func (c *Client) State() engine.State {
	return c.session.State()
}

// Ontology describes the loaded ontology.
func (c *Client) Ontology() engine.OntologyInfo {
	return c.session.Ontology()
}

// Operations lists the supported operations.
func (c *Client) Operations() []catalog.Operation {
	return c.catalog.Operations()
}

// Run executes a catalog operation. Arguments override the operation's
// placeholder defaults; empty values and undeclared names are ignored.
// The result file is named after the operation.
func (c *Client) Run(ctx context.Context, operation string, args map[string]string) (*result.Result, error) {
	if err := c.checkOpen("hubmap.run"); err != nil {
		return nil, err
	}
	query, err := c.BoundQuery(operation, args)
	if err != nil {
		return nil, err
	}
	return c.execute(ctx, operation, query, operation)
}

// BoundQuery returns the query text Run would submit, without executing
// it.
//
// Errors: NOT_FOUND for an unknown operation, MISSING_BINDING if a
// declared placeholder survives binding.
func (c *Client) BoundQuery(operation string, args map[string]string) (string, error) {
	op, ok := c.catalog.Lookup(operation)
	if !ok {
		return "", errs.New(errs.CodeNotFound, "hubmap.bound_query", fmt.Sprintf("unknown operation %q", operation))
	}
	tmpl, err := c.templates.Load(op.Template)
	if err != nil {
		return "", err
	}
	query := bind.Bind(tmpl.Body, op.Bindings(args))
	if err := bind.Check(query, op.Names()); err != nil {
		return "", fmt.Errorf("operation %s: %w", operation, err)
	}
	return query, nil
}

// Query executes raw query text. An empty name means DefaultQueryName.
func (c *Client) Query(ctx context.Context, query, name string) (*result.Result, error) {
	if err := c.checkOpen("hubmap.query"); err != nil {
		return nil, err
	}
	if name == "" {
		name = DefaultQueryName
	}
	return c.execute(ctx, name, query, name)
}

// QueryFromFile executes the query in the file at path as written; no
// placeholders are bound. An empty name means DefaultFileQueryName.
//
// Errors: IO if the file cannot be read, QUERY if the engine rejects it.
func (c *Client) QueryFromFile(ctx context.Context, path, name string) (*result.Result, error) {
	if err := c.checkOpen("hubmap.query_from_file"); err != nil {
		return nil, err
	}
	tmpl, err := c.templates.LoadFile(path)
	if err != nil {
		return nil, err
	}
	if name == "" {
		name = DefaultFileQueryName
	}
	c.logger.Debug("loaded query file", "path", tmpl.Source)
	return c.execute(ctx, name, tmpl.Body, name)
}

func (c *Client) checkOpen(op string) error {
	if c.session.State() == engine.StateClosed {
		return errs.New(errs.CodeClosedSession, op, "session is closed")
	}
	return nil
}

// execute runs query, reads its results back and records the run.
func (c *Client) execute(ctx context.Context, operation, query, name string) (*result.Result, error) {
	started := c.now()
	dest, err := c.resultPath(name, started)
	if err != nil {
		return nil, err
	}

	c.logger.Info("executing query", "operation", operation, "destination", dest)
	c.logger.Debug("bound query", "operation", operation, "query", query)

	var res *result.Result
	err = c.session.Execute(ctx, query, dest)
	if err == nil {
		res, err = result.Read(dest)
	}
	finished := c.now()

	if !errs.IsClosedSession(err) {
		c.record(ctx, operation, query, dest, res, err, started, finished)
	}
	if err != nil {
		c.logger.Debug("query failed", "operation", operation, "error", err)
		return nil, err
	}

	c.logger.Info("query complete",
		"operation", operation,
		"rows", res.Len(),
		"duration", finished.Sub(started))
	return res, nil
}

// resultPath maps a result name to a file in the output directory.
func (c *Client) resultPath(name string, at time.Time) (string, error) {
	if name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return "", errs.New(errs.CodeIO, "hubmap.result_path", fmt.Sprintf("invalid result name %q", name))
	}
	if c.timestamp {
		name += "-" + at.UTC().Format(TimestampLayout)
	}
	return filepath.Join(c.outputDir, name+".csv"), nil
}

func (c *Client) record(ctx context.Context, operation, query, dest string, res *result.Result, runErr error, started, finished time.Time) {
	if c.history == nil {
		return
	}
	run := store.Run{
		Operation:       operation,
		QueryHash:       store.QueryHash(query),
		OntologyVersion: c.session.Ontology().Version,
		StartedAt:       started,
		FinishedAt:      finished,
	}
	if runErr != nil {
		run.Status = store.StatusError
		run.Error = runErr.Error()
	} else {
		run.Status = store.StatusOK
		run.ResultPath = dest
		run.RowCount = res.Len()
	}
	id, err := c.history.RecordRun(ctx, run)
	if err != nil {
		c.logger.Warn("failed to record query run", "operation", operation, "error", err)
		return
	}
	c.logger.Debug("recorded query run", "run_id", id)
}
