package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/hubmapy/internal/engine"
	"github.com/roach88/hubmapy/internal/errs"
	"github.com/roach88/hubmapy/internal/result"
	"github.com/roach88/hubmapy/internal/testutil"
)

// TestHelperEngine is not a real test. It is re-executed as the engine
// child process by helperConfig.
func TestHelperEngine(t *testing.T) {
	if os.Getenv("HUBMAPY_HELPER_ENGINE") != "1" {
		return
	}
	runFakeEngine(os.Stdin, os.Stdout, os.Getenv("HUBMAPY_HELPER_MODE"))
	os.Exit(0)
}

func helperConfig(mode string) Config {
	return Config{
		Command:          []string{os.Args[0], "-test.run=TestHelperEngine", "--"},
		Env:              []string{"HUBMAPY_HELPER_ENGINE=1", "HUBMAPY_HELPER_MODE=" + mode},
		HandshakeTimeout: 10 * time.Second,
		ShutdownTimeout:  5 * time.Second,
	}
}

// runFakeEngine speaks the bridge protocol, answering queries from the
// default fixture.
func runFakeEngine(in io.Reader, out io.Writer, mode string) {
	dec := json.NewDecoder(in)
	enc := json.NewEncoder(out)

	var ontology string
	reasoned := false

	reply := func(id int64, v any) { _ = enc.Encode(map[string]any{"id": id, "result": v}) }
	fail := func(id int64, code, msg string) {
		_ = enc.Encode(map[string]any{"id": id, "error": map[string]string{"code": code, "message": msg}})
	}

	for {
		var req struct {
			ID     int64           `json:"id"`
			Method string          `json:"method"`
			Params json.RawMessage `json:"params"`
		}
		if err := dec.Decode(&req); err != nil {
			return
		}

		switch req.Method {
		case MethodHello:
			switch mode {
			case "silent":
				time.Sleep(time.Minute)
				return
			case "crash":
				fmt.Fprintln(os.Stderr, "fatal: engine could not allocate heap")
				os.Exit(3)
			case "junk":
				fmt.Fprintln(out, "Picked up JAVA_TOOL_OPTIONS: -Xmx4g")
				continue
			case "oldproto":
				reply(req.ID, HelloResult{Engine: "fake", Version: "0.0.1", Protocol: 0})
				continue
			}
			reply(req.ID, HelloResult{Engine: "fake", Version: "0.0.1", Protocol: ProtocolVersion})

		case MethodLoad:
			var p LoadParams
			_ = json.Unmarshal(req.Params, &p)
			data, err := os.ReadFile(strings.TrimPrefix(p.Source, "file:"))
			if err != nil {
				fail(req.ID, "LOAD", "ONTOLOGY FILE ERROR: "+err.Error())
				continue
			}
			if strings.Contains(string(data), "malformed") {
				fail(req.ID, "LOAD", "could not parse ontology")
				continue
			}
			ontology = string(data)
			reply(req.ID, map[string]any{"iri": "http://purl.org/ccf/latest/ccf.owl", "version": "1.5.0", "axioms": 120})

		case MethodReason:
			var p engine.ReasonOptions
			_ = json.Unmarshal(req.Params, &p)
			if p.Reasoner != "ELK" {
				fail(req.ID, "REASONING", "unknown reasoner "+p.Reasoner)
				continue
			}
			if strings.Contains(ontology, "inconsistent") {
				fail(req.ID, "REASONING", "ontology is inconsistent")
				continue
			}
			reasoned = true
			reply(req.ID, map[string]any{"inferred_axioms": 7})

		case MethodQuery:
			var p QueryParams
			_ = json.Unmarshal(req.Params, &p)
			if !reasoned {
				fail(req.ID, "QUERY", "no reasoned dataset")
				continue
			}
			res, err := testutil.DefaultFixture().Respond(p.Query)
			if err != nil {
				fail(req.ID, "QUERY", err.Error())
				continue
			}
			if err := result.Write(p.Destination, res); err != nil {
				fail(req.ID, "IO", err.Error())
				continue
			}
			reply(req.ID, QueryResult{Rows: res.Len()})

		case MethodShutdown:
			reply(req.ID, map[string]any{})
			return

		default:
			fail(req.ID, "UNKNOWN", "unknown method "+req.Method)
		}
	}
}

func writeOntology(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ccf.owl")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

const countQuery = `SELECT ?anatomical_structure_label (COUNT(DISTINCT ?tissue_block) AS ?tissue_block_count)
WHERE { ?tissue_block ccf:collides_with ?anatomical_structure_label . }
GROUP BY ?anatomical_structure_label`

func TestClientLifecycle(t *testing.T) {
	ctx := context.Background()
	c, err := Start(ctx, helperConfig(""))
	require.NoError(t, err)
	defer c.Close()

	assert.Equal(t, "fake", c.Engine().Engine)

	source := writeOntology(t, "<rdf:RDF/>")
	info, err := c.Load(ctx, source)
	require.NoError(t, err)
	assert.Equal(t, source, info.Source)
	assert.Equal(t, "1.5.0", info.Version)
	assert.Equal(t, 120, info.Axioms)

	stats, err := c.Reason(ctx, engine.ReasonOptions{Reasoner: "ELK"})
	require.NoError(t, err)
	assert.Equal(t, 7, stats.InferredAxioms)

	dest := filepath.Join(t.TempDir(), "count.csv")
	require.NoError(t, c.Query(ctx, countQuery, dest))

	res, err := result.Read(dest)
	require.NoError(t, err)
	assert.Equal(t, []string{"anatomical_structure_label", "tissue_block_count"}, res.Columns)
	assert.Equal(t, 2, res.Len())

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
}

func TestClientQueryErrorKeepsConnection(t *testing.T) {
	ctx := context.Background()
	c, err := Start(ctx, helperConfig(""))
	require.NoError(t, err)
	defer c.Close()

	_, err = c.Load(ctx, writeOntology(t, "<rdf:RDF/>"))
	require.NoError(t, err)
	_, err = c.Reason(ctx, engine.ReasonOptions{Reasoner: "ELK"})
	require.NoError(t, err)

	err = c.Query(ctx, "SELEKT ?x WHERE { ?x ?p ?o }", filepath.Join(t.TempDir(), "bad.csv"))
	require.Error(t, err)
	assert.True(t, errs.IsQuery(err))
	assert.Contains(t, err.Error(), "Encountered")

	require.NoError(t, c.Query(ctx, countQuery, filepath.Join(t.TempDir(), "ok.csv")))
}

func TestClientLoadAndReasonErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("missing ontology", func(t *testing.T) {
		c, err := Start(ctx, helperConfig(""))
		require.NoError(t, err)
		defer c.Close()

		_, err = c.Load(ctx, filepath.Join(t.TempDir(), "absent.owl"))
		require.Error(t, err)
		assert.Equal(t, errs.CodeLoad, errs.CodeOf(err))
		assert.Contains(t, err.Error(), "ONTOLOGY FILE ERROR")
	})

	t.Run("malformed ontology", func(t *testing.T) {
		c, err := Start(ctx, helperConfig(""))
		require.NoError(t, err)
		defer c.Close()

		_, err = c.Load(ctx, writeOntology(t, "malformed"))
		assert.Equal(t, errs.CodeLoad, errs.CodeOf(err))
	})

	t.Run("inconsistent ontology", func(t *testing.T) {
		c, err := Start(ctx, helperConfig(""))
		require.NoError(t, err)
		defer c.Close()

		_, err = c.Load(ctx, writeOntology(t, "inconsistent"))
		require.NoError(t, err)
		_, err = c.Reason(ctx, engine.ReasonOptions{Reasoner: "ELK"})
		assert.Equal(t, errs.CodeReasoning, errs.CodeOf(err))
	})

	t.Run("unknown wire code falls back to method category", func(t *testing.T) {
		werr := &WireError{Code: "UNKNOWN", Message: "x"}
		assert.Equal(t, errs.CodeReasoning, errs.CodeOf(werr.toError(MethodReason)))
		assert.Equal(t, errs.CodeQuery, errs.CodeOf(werr.toError(MethodQuery)))
	})
}

func TestStartFailures(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"no command", Config{}},
		{"missing executable", Config{Command: []string{filepath.Join(os.TempDir(), "no-such-engine-binary")}}},
		{"engine crashes during handshake", helperConfig("crash")},
		{"engine writes junk to stdout", helperConfig("junk")},
		{"protocol mismatch", helperConfig("oldproto")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := Start(context.Background(), tt.cfg)
			require.Error(t, err)
			assert.Nil(t, c)
			assert.Equal(t, errs.CodeConnection, errs.CodeOf(err))
		})
	}
}

func TestStartHandshakeTimeout(t *testing.T) {
	cfg := helperConfig("silent")
	cfg.HandshakeTimeout = 300 * time.Millisecond

	start := time.Now()
	_, err := Start(context.Background(), cfg)
	require.Error(t, err)
	assert.Equal(t, errs.CodeConnection, errs.CodeOf(err))
	assert.Less(t, time.Since(start), 10*time.Second)
}

func TestSessionOverBridge(t *testing.T) {
	ctx := context.Background()
	s, err := engine.Open(ctx, Dialer(helperConfig("")), writeOntology(t, "<rdf:RDF/>"))
	require.NoError(t, err)

	assert.Equal(t, "1.5.0", s.Ontology().Version)
	require.NoError(t, s.Execute(ctx, countQuery, filepath.Join(t.TempDir(), "c.csv")))

	require.NoError(t, s.Close())
	err = s.Execute(ctx, countQuery, filepath.Join(t.TempDir(), "c.csv"))
	assert.True(t, errs.IsClosedSession(err))
}

func TestSessionOverBridgeLoadFailureClosesEngine(t *testing.T) {
	s, err := engine.Open(context.Background(), Dialer(helperConfig("")), filepath.Join(t.TempDir(), "absent.owl"))
	require.Error(t, err)
	assert.Nil(t, s)
	assert.Equal(t, errs.CodeLoad, errs.CodeOf(err))
}

func TestTailKeepsLastLines(t *testing.T) {
	tl := newTail(2)
	tl.add("a")
	tl.add("b")
	tl.add("c")
	assert.Equal(t, []string{"b", "c"}, tl.lines())
}
