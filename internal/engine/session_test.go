package engine_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/hubmapy/internal/engine"
	"github.com/roach88/hubmapy/internal/errs"
	"github.com/roach88/hubmapy/internal/result"
	"github.com/roach88/hubmapy/internal/testutil"
)

func openFake(t *testing.T, fb *testutil.FakeBackend, opts ...engine.Option) *engine.Session {
	t.Helper()
	s, err := engine.Open(context.Background(), fb.Dialer(), "ccf.owl", opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpenLoadsAndReasonsOnce(t *testing.T) {
	fb := testutil.NewFakeBackend()
	s := openFake(t, fb)

	assert.Equal(t, engine.StateReady, s.State())
	assert.Equal(t, "1.0.0-test", s.Ontology().Version)
	assert.Equal(t, "ccf.owl", s.Ontology().Source)
	assert.Equal(t, 42, s.ReasonStats().InferredAxioms)

	dir := t.TempDir()
	for i := 0; i < 3; i++ {
		require.NoError(t, s.Execute(context.Background(), "SELECT ?x WHERE { ?x ?p ?o }", filepath.Join(dir, "q.csv")))
	}

	calls := fb.Calls()
	assert.Equal(t, 1, calls.Loads)
	assert.Equal(t, 1, calls.Reasons)
	assert.Equal(t, 3, calls.Queries)
	assert.Equal(t, 3, s.Queries())
}

func TestOpenDefaultReasonOptions(t *testing.T) {
	fb := testutil.NewFakeBackend()
	openFake(t, fb)

	opts := fb.LastReasonOptions()
	assert.Equal(t, engine.DefaultReasoner, opts.Reasoner)
	assert.Equal(t, []string{"SubClass", "ClassAssertion", "PropertyAssertion"}, opts.AxiomGenerators)
}

func TestOpenCustomReasonOptions(t *testing.T) {
	fb := testutil.NewFakeBackend()
	openFake(t, fb, engine.WithReasoner("HermiT"), engine.WithAxiomGenerators("SubClass"))

	opts := fb.LastReasonOptions()
	assert.Equal(t, "HermiT", opts.Reasoner)
	assert.Equal(t, []string{"SubClass"}, opts.AxiomGenerators)
}

func TestOpenFailures(t *testing.T) {
	tests := []struct {
		name       string
		configure  func(fb *testutil.FakeBackend)
		code       errs.Code
		wantCloses int
	}{
		{
			name:      "dial fails",
			configure: func(fb *testutil.FakeBackend) { fb.DialErr = errors.New("executable file not found") },
			code:      errs.CodeConnection,
		},
		{
			name:       "load fails uncategorized",
			configure:  func(fb *testutil.FakeBackend) { fb.LoadErr = errors.New("no such file") },
			code:       errs.CodeLoad,
			wantCloses: 1,
		},
		{
			name: "load fails categorized",
			configure: func(fb *testutil.FakeBackend) {
				fb.LoadErr = errs.New(errs.CodeConnection, "bridge", "engine exited")
			},
			code:       errs.CodeConnection,
			wantCloses: 1,
		},
		{
			name:       "reasoning fails",
			configure:  func(fb *testutil.FakeBackend) { fb.ReasonErr = errors.New("ontology is inconsistent") },
			code:       errs.CodeReasoning,
			wantCloses: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fb := testutil.NewFakeBackend()
			tt.configure(fb)

			s, err := engine.Open(context.Background(), fb.Dialer(), "ccf.owl")
			require.Error(t, err)
			assert.Nil(t, s)
			assert.Equal(t, tt.code, errs.CodeOf(err))
			assert.True(t, errs.Fatal(err))
			assert.Equal(t, tt.wantCloses, fb.Calls().Closes)
		})
	}
}

func TestExecuteQueryErrorKeepsSessionReady(t *testing.T) {
	fb := testutil.NewFakeBackend()
	s := openFake(t, fb)
	dir := t.TempDir()

	err := s.Execute(context.Background(), "SELEKT nothing", filepath.Join(dir, "bad.csv"))
	require.Error(t, err)
	assert.True(t, errs.IsQuery(err))
	assert.Equal(t, engine.StateReady, s.State())

	require.NoError(t, s.Execute(context.Background(), "SELECT ?x WHERE { }", filepath.Join(dir, "good.csv")))
	_, err = result.Read(filepath.Join(dir, "good.csv"))
	require.NoError(t, err)
}

func TestExecuteUncategorizedErrorIsQueryError(t *testing.T) {
	fb := testutil.NewFakeBackend()
	fb.Responder = func(string) (*result.Result, error) { return nil, errors.New("boom") }
	s := openFake(t, fb)

	err := s.Execute(context.Background(), "SELECT ?x WHERE { }", filepath.Join(t.TempDir(), "x.csv"))
	assert.True(t, errs.IsQuery(err))
}

func TestExecuteUnwritableDestination(t *testing.T) {
	fb := testutil.NewFakeBackend()
	s := openFake(t, fb)

	missingDir := filepath.Join(t.TempDir(), "nope", "out.csv")
	err := s.Execute(context.Background(), "SELECT ?x WHERE { }", missingDir)
	require.Error(t, err)
	assert.Equal(t, errs.CodeIO, errs.CodeOf(err))

	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, nil, 0644))
	err = s.Execute(context.Background(), "SELECT ?x WHERE { }", filepath.Join(file, "out.csv"))
	assert.Equal(t, errs.CodeIO, errs.CodeOf(err))

	assert.Equal(t, 0, fb.Calls().Queries)
}

func TestExecuteCancelledContext(t *testing.T) {
	fb := testutil.NewFakeBackend()
	s := openFake(t, fb)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := s.Execute(ctx, "SELECT ?x WHERE { }", filepath.Join(t.TempDir(), "x.csv"))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, fb.Calls().Queries)
}

func TestCloseIsIdempotentAndBlocksFurtherCalls(t *testing.T) {
	fb := testutil.NewFakeBackend()
	s, err := engine.Open(context.Background(), fb.Dialer(), "ccf.owl")
	require.NoError(t, err)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.Equal(t, engine.StateClosed, s.State())
	assert.Equal(t, 1, fb.Calls().Closes)

	err = s.Execute(context.Background(), "SELECT ?x WHERE { }", filepath.Join(t.TempDir(), "x.csv"))
	require.Error(t, err)
	assert.True(t, errs.IsClosedSession(err))
	assert.Equal(t, 0, fb.Calls().Queries)
}

func TestCloseReportsBackendError(t *testing.T) {
	fb := testutil.NewFakeBackend()
	fb.CloseErr = errors.New("process already exited")
	s, err := engine.Open(context.Background(), fb.Dialer(), "ccf.owl")
	require.NoError(t, err)

	err = s.Close()
	require.Error(t, err)
	assert.Equal(t, errs.CodeConnection, errs.CodeOf(err))
	assert.NoError(t, s.Close())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "uninitialized", engine.StateUninitialized.String())
	assert.Equal(t, "loading", engine.StateLoading.String())
	assert.Equal(t, "reasoning", engine.StateReasoning.String())
	assert.Equal(t, "ready", engine.StateReady.String())
	assert.Equal(t, "closed", engine.StateClosed.String())
	assert.Equal(t, "unknown", engine.State(99).String())
}
