package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/hubmapy/internal/testutil"
)

func testRun(op string, started time.Time) Run {
	return Run{
		Operation:       op,
		QueryHash:       QueryHash("SELECT ?x WHERE { ?x a ?y }"),
		ResultPath:      "/tmp/out/" + op + ".csv",
		RowCount:        3,
		OntologyVersion: "2.3.0",
		StartedAt:       started,
		FinishedAt:      started.Add(1500 * time.Millisecond),
	}
}

func TestRecordRun_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t, WithIDGenerator(testutil.NewSequentialIDGenerator("run")))

	started := time.Date(2021, 3, 4, 15, 30, 0, 0, time.UTC)
	id, err := s.RecordRun(ctx, testRun("tissue_block_count_for_all_anatomical_structures", started))
	require.NoError(t, err)
	assert.Equal(t, "run-1", id)

	got, err := s.GetRun(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "tissue_block_count_for_all_anatomical_structures", got.Operation)
	assert.Equal(t, StatusOK, got.Status)
	assert.Equal(t, 3, got.RowCount)
	assert.Equal(t, "2.3.0", got.OntologyVersion)
	assert.True(t, got.StartedAt.Equal(started))
	assert.Equal(t, 1500*time.Millisecond, got.Duration())
}

func TestRecordRun_DefaultIDIsUUIDv7(t *testing.T) {
	s := createTestStore(t)

	id, err := s.RecordRun(context.Background(), testRun("user_query", time.Now()))
	require.NoError(t, err)

	parsed, err := uuid.Parse(id)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), parsed.Version())
}

func TestRecordRun_ErrorStatus(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	run := testRun("user_query", time.Now())
	run.Error = "session.execute: QUERY: query failed"
	run.ResultPath = ""
	id, err := s.RecordRun(ctx, run)
	require.NoError(t, err)

	got, err := s.GetRun(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StatusError, got.Status)
	assert.Equal(t, run.Error, got.Error)
}

func TestRecordRun_RequiresOperation(t *testing.T) {
	s := createTestStore(t)
	_, err := s.RecordRun(context.Background(), Run{})
	assert.Error(t, err)
}

func TestRecordRun_DuplicateID(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	run := testRun("user_query", time.Now())
	run.ID = "fixed"
	_, err := s.RecordRun(ctx, run)
	require.NoError(t, err)
	_, err = s.RecordRun(ctx, run)
	assert.Error(t, err)
}

func TestListRuns_NewestFirst(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t, WithIDGenerator(testutil.NewSequentialIDGenerator("run")))
	clock := testutil.NewDeterministicClock()

	for _, op := range []string{"first", "second", "third"} {
		_, err := s.RecordRun(ctx, testRun(op, clock.Now()))
		require.NoError(t, err)
	}

	runs, err := s.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, "third", runs[0].Operation)
	assert.Equal(t, "first", runs[2].Operation)

	runs, err = s.ListRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "second", runs[1].Operation)
}

func TestListRuns_SubSecondOrdering(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	base := time.Date(2021, 3, 4, 15, 30, 5, 0, time.UTC)

	_, err := s.RecordRun(ctx, testRun("later", base.Add(500*time.Millisecond)))
	require.NoError(t, err)
	_, err = s.RecordRun(ctx, testRun("earlier", base))
	require.NoError(t, err)

	runs, err := s.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "later", runs[0].Operation)
}

func TestListRuns_Empty(t *testing.T) {
	s := createTestStore(t)
	runs, err := s.ListRuns(context.Background(), 10)
	require.NoError(t, err)
	assert.NotNil(t, runs)
	assert.Empty(t, runs)
}

func TestGetRun_NotFound(t *testing.T) {
	s := createTestStore(t)
	_, err := s.GetRun(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, sql.ErrNoRows))
}

func TestQueryHash(t *testing.T) {
	// Precomposed (U+00E9) and decomposed (e + U+0301) accent.
	composed := "SELECT ?x WHERE { ?x rdfs:label \"caf\u00e9\" }"
	decomposed := "SELECT ?x WHERE { ?x rdfs:label \"cafe\u0301\" }"

	assert.Equal(t, QueryHash(composed), QueryHash(decomposed))
	assert.NotEqual(t, QueryHash(composed), QueryHash("SELECT ?y WHERE { ?y a ?z }"))
	assert.Len(t, QueryHash(composed), 64)
}
