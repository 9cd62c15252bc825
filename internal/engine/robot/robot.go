// Package robot drives the ROBOT command line (http://robot.obolibrary.org)
// as a reasoning/query engine.
//
// Reasoning runs once: Reason invokes "robot reason" and keeps the
// reasoned ontology in a work directory. Each Query then invokes
// "robot query" against that file, so the classification cost is paid a
// single time per session even though the ontology is re-read per query.
package robot

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/roach88/hubmapy/internal/engine"
	"github.com/roach88/hubmapy/internal/errs"
)

// DefaultCommand is the ROBOT launcher looked up on PATH.
const DefaultCommand = "robot"

// versionScanLimit bounds how much of the ontology is scanned for
// owl:versionInfo.
const versionScanLimit = 1 << 20

var (
	versionInfoRe  = regexp.MustCompile(`owl:versionInfo[^>]*>([^<]+)<`)
	ontologyIRIRe  = regexp.MustCompile(`<owl:Ontology[^>]*rdf:about="([^"]+)"`)
	robotVersionRe = regexp.MustCompile(`(?i)version\s+(\S+)`)
)

// Config describes how to run ROBOT.
type Config struct {
	// Command is the ROBOT launcher and any leading arguments
	// (default: ["robot"]).
	Command []string

	// Env is appended to the current process environment.
	Env []string

	// WorkDir holds the reasoned ontology and query files. When empty a
	// temporary directory is created and removed on Close.
	WorkDir string

	// Logger receives command lines and ROBOT output at debug level.
	Logger *slog.Logger
}

// Backend runs ROBOT subcommands. It implements engine.Backend.
type Backend struct {
	cfg         Config
	logger      *slog.Logger
	version     string
	workDir     string
	ownsWorkDir bool

	mu       sync.Mutex
	source   string
	reasoned string
	queries  int
	closed   bool
}

var _ engine.Backend = (*Backend)(nil)

// Dialer returns an engine.Dialer that connects a new Backend.
func Dialer(cfg Config) engine.Dialer {
	return func(ctx context.Context) (engine.Backend, error) {
		b, err := Connect(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return b, nil
	}
}

// Connect verifies that ROBOT can be launched and prepares the work
// directory. Returns a CONNECTION error if ROBOT is missing or broken.
func Connect(ctx context.Context, cfg Config) (*Backend, error) {
	if len(cfg.Command) == 0 {
		cfg.Command = []string{DefaultCommand}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	if _, err := exec.LookPath(cfg.Command[0]); err != nil {
		return nil, errs.Wrap(errs.CodeConnection, "robot.connect",
			fmt.Sprintf("ROBOT launcher %q not found", cfg.Command[0]), err)
	}

	b := &Backend{cfg: cfg, logger: logger}
	stdout, stderr, err := b.run(ctx, "--version")
	if err != nil {
		return nil, errs.Wrap(errs.CodeConnection, "robot.connect", "ROBOT did not start"+suffix(stderr), err)
	}
	if m := robotVersionRe.FindStringSubmatch(stdout); m != nil {
		b.version = m[1]
	}

	if cfg.WorkDir != "" {
		if err := os.MkdirAll(cfg.WorkDir, 0o755); err != nil {
			return nil, errs.Wrap(errs.CodeIO, "robot.connect", "cannot create work directory", err)
		}
		b.workDir = cfg.WorkDir
	} else {
		dir, err := os.MkdirTemp("", "hubmapy-robot-*")
		if err != nil {
			return nil, errs.Wrap(errs.CodeIO, "robot.connect", "cannot create work directory", err)
		}
		b.workDir = dir
		b.ownsWorkDir = true
	}

	logger.Info("connected to ROBOT", "version", b.version, "work_dir", b.workDir)
	return b, nil
}

// Version returns the ROBOT version reported at connect time.
func (b *Backend) Version() string {
	return b.version
}

// Load implements engine.Backend. ROBOT parses the ontology during
// Reason; Load checks that the source is a readable file and reads its
// IRI and owl:versionInfo.
func (b *Backend) Load(ctx context.Context, source string) (engine.OntologyInfo, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return engine.OntologyInfo{}, errs.New(errs.CodeConnection, "robot.load", "backend closed")
	}

	path := strings.TrimPrefix(source, "file:")
	f, err := os.Open(path)
	if err != nil {
		return engine.OntologyInfo{}, errs.Wrap(errs.CodeLoad, "robot.load", fmt.Sprintf("cannot open ontology %s", path), err)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return engine.OntologyInfo{}, errs.Wrap(errs.CodeLoad, "robot.load", fmt.Sprintf("cannot stat ontology %s", path), err)
	}
	if st.IsDir() {
		return engine.OntologyInfo{}, errs.New(errs.CodeLoad, "robot.load", fmt.Sprintf("ontology %s is a directory", path))
	}

	head, err := io.ReadAll(io.LimitReader(bufio.NewReader(f), versionScanLimit))
	if err != nil {
		return engine.OntologyInfo{}, errs.Wrap(errs.CodeLoad, "robot.load", fmt.Sprintf("cannot read ontology %s", path), err)
	}

	info := engine.OntologyInfo{Source: source}
	if m := ontologyIRIRe.FindSubmatch(head); m != nil {
		info.IRI = string(m[1])
	}
	if m := versionInfoRe.FindSubmatch(head); m != nil {
		info.Version = strings.TrimSpace(string(m[1]))
	}

	b.source = path
	b.reasoned = ""
	return info, nil
}

// Reason implements engine.Backend by running "robot reason" once and
// keeping the output for later queries.
func (b *Backend) Reason(ctx context.Context, opts engine.ReasonOptions) (engine.ReasonStats, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return engine.ReasonStats{}, errs.New(errs.CodeConnection, "robot.reason", "backend closed")
	}
	if b.source == "" {
		return engine.ReasonStats{}, errs.New(errs.CodeReasoning, "robot.reason", "no ontology loaded")
	}

	out := filepath.Join(b.workDir, "reasoned.owl")
	args := []string{
		"reason",
		"--reasoner", opts.Reasoner,
		"--axiom-generators", strings.Join(opts.AxiomGenerators, " "),
		"--input", b.source,
		"--output", out,
	}
	_, stderr, err := b.run(ctx, args...)
	if err != nil {
		if isNotStarted(err) {
			return engine.ReasonStats{}, errs.Wrap(errs.CodeConnection, "robot.reason", "cannot run ROBOT", err)
		}
		code := errs.CodeReasoning
		if strings.Contains(stderr, "INVALID ONTOLOGY FILE") || strings.Contains(stderr, "ONTOLOGY FILE ERROR") {
			code = errs.CodeLoad
		}
		return engine.ReasonStats{}, errs.Wrap(code, "robot.reason", strings.TrimSpace(stderr), err)
	}

	b.reasoned = out
	return engine.ReasonStats{}, nil
}

// Query implements engine.Backend by running "robot query" against the
// reasoned ontology.
func (b *Backend) Query(ctx context.Context, query, destination string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return errs.New(errs.CodeConnection, "robot.query", "backend closed")
	}
	if b.reasoned == "" {
		return errs.New(errs.CodeQuery, "robot.query", "ontology has not been reasoned")
	}

	b.queries++
	qfile := filepath.Join(b.workDir, fmt.Sprintf("query-%d.rq", b.queries))
	if err := os.WriteFile(qfile, []byte(query), 0o644); err != nil {
		return errs.Wrap(errs.CodeIO, "robot.query", "cannot write query file", err)
	}
	defer os.Remove(qfile)

	_, stderr, err := b.run(ctx,
		"query",
		"--input", b.reasoned,
		"--format", "csv",
		"--query", qfile, destination,
	)
	if err != nil {
		if isNotStarted(err) {
			return errs.Wrap(errs.CodeConnection, "robot.query", "cannot run ROBOT", err)
		}
		return errs.Wrap(errs.CodeQuery, "robot.query", strings.TrimSpace(stderr), err)
	}
	return nil
}

// Close removes the work directory if Connect created it. Safe to call
// more than once.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	if b.ownsWorkDir {
		if err := os.RemoveAll(b.workDir); err != nil {
			return fmt.Errorf("remove work directory: %w", err)
		}
	}
	return nil
}

// run executes one ROBOT subcommand and returns its output.
func (b *Backend) run(ctx context.Context, args ...string) (string, string, error) {
	argv := append(append([]string(nil), b.cfg.Command[1:]...), args...)
	cmd := exec.CommandContext(ctx, b.cfg.Command[0], argv...)
	cmd.Env = append(os.Environ(), b.cfg.Env...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	b.logger.Debug("running ROBOT", "args", args)
	err := cmd.Run()
	if stderr.Len() > 0 {
		b.logger.Debug("ROBOT output", "stderr", strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), stderr.String(), err
}

// isNotStarted reports whether err means the process never ran.
func isNotStarted(err error) bool {
	var exitErr *exec.ExitError
	return !errors.As(err, &exitErr)
}

func suffix(stderr string) string {
	stderr = strings.TrimSpace(stderr)
	if stderr == "" {
		return ""
	}
	return ": " + stderr
}
