package bridge

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/roach88/hubmapy/internal/engine"
	"github.com/roach88/hubmapy/internal/errs"
)

// Defaults for Config.
const (
	DefaultHandshakeTimeout = 30 * time.Second
	DefaultShutdownTimeout  = 5 * time.Second
	stderrTailLines         = 20
)

// Config describes how to launch the engine process.
type Config struct {
	// Command is the engine executable followed by its arguments.
	Command []string

	// Env is appended to the current process environment.
	Env []string

	// Dir is the working directory of the engine (default: current).
	Dir string

	// HandshakeTimeout bounds process start plus the hello exchange.
	HandshakeTimeout time.Duration

	// ShutdownTimeout bounds the graceful shutdown before the process is killed.
	ShutdownTimeout time.Duration

	// Logger receives engine stderr at debug level.
	Logger *slog.Logger
}

// Client is a connected engine process. It implements engine.Backend.
//
// Calls are serialized. Load and Reason honour context cancellation by
// killing the engine; Query checks the context only before submission,
// because an abandoned request would leave the stream out of step.
type Client struct {
	cfg    Config
	logger *slog.Logger

	cmd        *exec.Cmd
	stdin      io.WriteCloser
	enc        *json.Encoder
	dec        *json.Decoder
	stderr     *tail
	stderrDone chan struct{}

	mu     sync.Mutex
	nextID int64
	broken error
	hello  HelloResult

	closeOnce sync.Once
	closeErr  error
}

var _ engine.Backend = (*Client)(nil)

// Dialer returns an engine.Dialer that starts a new engine process.
func Dialer(cfg Config) engine.Dialer {
	return func(ctx context.Context) (engine.Backend, error) {
		c, err := Start(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
}

// Start launches the engine and performs the handshake.
// Returns a CONNECTION error if the process cannot be started, exits
// early, speaks another protocol version or misses the handshake timeout.
func Start(ctx context.Context, cfg Config) (*Client, error) {
	if len(cfg.Command) == 0 || cfg.Command[0] == "" {
		return nil, errs.New(errs.CodeConnection, "bridge.start", "no engine command configured")
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = DefaultShutdownTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	cmd := exec.Command(cfg.Command[0], cfg.Command[1:]...)
	cmd.Env = append(os.Environ(), cfg.Env...)
	cmd.Dir = cfg.Dir
	cmd.WaitDelay = cfg.ShutdownTimeout

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, errs.Wrap(errs.CodeConnection, "bridge.start", "stdin pipe", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, errs.Wrap(errs.CodeConnection, "bridge.start", "stdout pipe", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, errs.Wrap(errs.CodeConnection, "bridge.start", "stderr pipe", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, errs.Wrap(errs.CodeConnection, "bridge.start",
			fmt.Sprintf("cannot start engine %q", cfg.Command[0]), err)
	}
	logger.Debug("engine process started", "command", cfg.Command, "pid", cmd.Process.Pid)

	c := &Client{
		cfg:        cfg,
		logger:     logger,
		cmd:        cmd,
		stdin:      stdin,
		enc:        json.NewEncoder(stdin),
		dec:        json.NewDecoder(bufio.NewReader(stdout)),
		stderr:     newTail(stderrTailLines),
		stderrDone: make(chan struct{}),
	}
	go c.drainStderr(stderr)

	hctx, cancel := context.WithTimeout(ctx, cfg.HandshakeTimeout)
	defer cancel()

	var hello HelloResult
	err = c.call(hctx, MethodHello, HelloParams{Client: "hubmapy", Protocol: ProtocolVersion}, &hello, true)
	if err == nil && hello.Protocol != ProtocolVersion {
		err = errs.New(errs.CodeConnection, "bridge.hello",
			fmt.Sprintf("engine speaks protocol %d, want %d", hello.Protocol, ProtocolVersion))
	}
	if err != nil {
		c.kill()
		_ = cmd.Wait()
		return nil, errs.Wrap(errs.CodeConnection, "bridge.start", "handshake failed", err)
	}
	c.hello = hello
	logger.Info("connected to reasoning engine", "engine", hello.Engine, "version", hello.Version)
	return c, nil
}

// Engine returns the engine's self-description from the handshake.
func (c *Client) Engine() HelloResult {
	return c.hello
}

// Load implements engine.Backend.
func (c *Client) Load(ctx context.Context, source string) (engine.OntologyInfo, error) {
	var info engine.OntologyInfo
	if err := c.call(ctx, MethodLoad, LoadParams{Source: source}, &info, true); err != nil {
		return engine.OntologyInfo{}, err
	}
	info.Source = source
	return info, nil
}

// Reason implements engine.Backend.
func (c *Client) Reason(ctx context.Context, opts engine.ReasonOptions) (engine.ReasonStats, error) {
	var stats engine.ReasonStats
	if err := c.call(ctx, MethodReason, opts, &stats, true); err != nil {
		return engine.ReasonStats{}, err
	}
	return stats, nil
}

// Query implements engine.Backend.
func (c *Client) Query(ctx context.Context, query, destination string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("bridge.query: %w", err)
	}
	var res QueryResult
	params := QueryParams{Query: query, Destination: destination, Format: "csv"}
	if err := c.call(ctx, MethodQuery, params, &res, false); err != nil {
		return err
	}
	c.logger.Debug("engine wrote results", "destination", destination, "rows", res.Rows)
	return nil
}

// Close asks the engine to shut down, then waits for it to exit, killing
// it after ShutdownTimeout. Safe to call more than once.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.shutdown()
	})
	return c.closeErr
}

func (c *Client) shutdown() error {
	sctx, cancel := context.WithTimeout(context.Background(), c.cfg.ShutdownTimeout)
	defer cancel()

	if err := c.call(sctx, MethodShutdown, nil, nil, true); err != nil {
		c.logger.Debug("engine shutdown request failed", "error", err)
	}
	_ = c.stdin.Close()

	done := make(chan error, 1)
	go func() { done <- c.cmd.Wait() }()

	select {
	case err := <-done:
		<-c.stderrDone
		if err != nil && !isKilled(err) {
			return errs.Wrap(errs.CodeConnection, "bridge.close", "engine exited with error", err)
		}
		return nil
	case <-time.After(c.cfg.ShutdownTimeout):
		c.logger.Warn("engine did not exit, killing", "pid", c.cmd.Process.Pid)
		_ = c.cmd.Process.Kill()
		<-done
		<-c.stderrDone
		return nil
	}
}

// call performs one request/response exchange. When cancellable is set,
// a done context kills the engine and marks the client broken.
func (c *Client) call(ctx context.Context, method string, params, out any, cancellable bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	op := "bridge." + method
	if c.broken != nil {
		return errs.Wrap(errs.CodeConnection, op, "engine connection lost", c.broken)
	}
	if err := ctx.Err(); err != nil {
		return errs.Wrap(errs.CodeConnection, op, "not sent", err)
	}

	c.nextID++
	req := Request{ID: c.nextID, Method: method, Params: params}

	if !cancellable {
		err, lost := c.roundTrip(req, out)
		if lost != nil {
			c.broken = lost
		}
		return err
	}

	type outcome struct{ err, lost error }
	done := make(chan outcome, 1)
	go func() {
		err, lost := c.roundTrip(req, out)
		done <- outcome{err, lost}
	}()

	select {
	case o := <-done:
		if o.lost != nil {
			c.broken = o.lost
		}
		return o.err
	case <-ctx.Done():
		c.broken = ctx.Err()
		c.kill()
		return errs.Wrap(errs.CodeConnection, op, "engine did not answer in time", ctx.Err())
	}
}

// roundTrip writes req and reads its response. lost is non-nil when the
// stream can no longer be trusted.
func (c *Client) roundTrip(req Request, out any) (err, lost error) {
	op := "bridge." + req.Method

	if err := c.enc.Encode(req); err != nil {
		return errs.Wrap(errs.CodeConnection, op, "cannot write to engine"+c.stderrSuffix(), err), err
	}

	var resp Response
	if err := c.dec.Decode(&resp); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return errs.Wrap(errs.CodeConnection, op, "engine exited"+c.stderrSuffix(), err), err
		}
		return errs.Wrap(errs.CodeConnection, op, "malformed engine response"+c.stderrSuffix(), err), err
	}
	if resp.ID != req.ID {
		lost := fmt.Errorf("response id %d, want %d", resp.ID, req.ID)
		return errs.Wrap(errs.CodeConnection, op, "engine protocol out of step", lost), lost
	}
	if resp.Error != nil {
		return resp.Error.toError(req.Method), nil
	}
	if out != nil && len(resp.Result) > 0 {
		if err := json.Unmarshal(resp.Result, out); err != nil {
			return errs.Wrap(errs.CodeConnection, op, "malformed result", err), nil
		}
	}
	return nil, nil
}

func (c *Client) kill() {
	if c.cmd.Process != nil {
		_ = c.cmd.Process.Kill()
	}
}

func (c *Client) drainStderr(r io.Reader) {
	defer close(c.stderrDone)
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Text()
		c.stderr.add(line)
		c.logger.Debug("engine", "stderr", line)
	}
}

func (c *Client) stderrSuffix() string {
	lines := c.stderr.lines()
	if len(lines) == 0 {
		return ""
	}
	return " (engine stderr: " + strings.Join(lines, " | ") + ")"
}

func isKilled(err error) bool {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return !exitErr.Exited()
	}
	return false
}

// tail keeps the last n lines written to it.
type tail struct {
	mu  sync.Mutex
	n   int
	buf []string
}

func newTail(n int) *tail {
	return &tail{n: n}
}

func (t *tail) add(line string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, line)
	if len(t.buf) > t.n {
		t.buf = t.buf[len(t.buf)-t.n:]
	}
}

func (t *tail) lines() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.buf...)
}
