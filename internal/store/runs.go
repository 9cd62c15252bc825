package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Status is the outcome of a run.
type Status string

const (
	StatusOK    Status = "ok"
	StatusError Status = "error"
)

// Run is one executed query.
type Run struct {
	ID              string    `json:"id"`
	Operation       string    `json:"operation"`
	QueryHash       string    `json:"query_hash"`
	ResultPath      string    `json:"result_path,omitempty"`
	RowCount        int       `json:"row_count"`
	Status          Status    `json:"status"`
	Error           string    `json:"error,omitempty"`
	OntologyVersion string    `json:"ontology_version,omitempty"`
	StartedAt       time.Time `json:"started_at"`
	FinishedAt      time.Time `json:"finished_at"`
}

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// RecordRun inserts a run and returns its ID. A new ID is generated when
// run.ID is empty. An empty Status is recorded as ok unless Error is set.
func (s *Store) RecordRun(ctx context.Context, run Run) (string, error) {
	if run.ID == "" {
		run.ID = s.ids.Generate()
	}
	if run.Status == "" {
		run.Status = StatusOK
		if run.Error != "" {
			run.Status = StatusError
		}
	}
	if run.Operation == "" {
		return "", fmt.Errorf("record run: operation is required")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs
		(id, operation, query_hash, result_path, row_count, status, error, ontology_version, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run.ID,
		run.Operation,
		run.QueryHash,
		run.ResultPath,
		run.RowCount,
		string(run.Status),
		run.Error,
		run.OntologyVersion,
		run.StartedAt.UTC().Format(timeLayout),
		run.FinishedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return "", fmt.Errorf("record run: %w", err)
	}
	return run.ID, nil
}

// ListRuns returns the most recent runs, newest first. A limit of zero
// or less returns every run.
//
// Returns an empty slice (not nil) if no runs exist.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, operation, query_hash, result_path, row_count, status, error, ontology_version, started_at, finished_at
		FROM runs
		ORDER BY started_at DESC, id COLLATE BINARY DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// GetRun returns the run with the given ID. The error wraps
// sql.ErrNoRows when no such run exists.
func (s *Store) GetRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, operation, query_hash, result_path, row_count, status, error, ontology_version, started_at, finished_at
		FROM runs
		WHERE id = ?
	`, id)
	run, err := scanRun(row)
	if err != nil {
		return Run{}, fmt.Errorf("get run %s: %w", id, err)
	}
	return run, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (Run, error) {
	var (
		run               Run
		status            string
		started, finished string
	)
	err := row.Scan(
		&run.ID,
		&run.Operation,
		&run.QueryHash,
		&run.ResultPath,
		&run.RowCount,
		&status,
		&run.Error,
		&run.OntologyVersion,
		&started,
		&finished,
	)
	if err == sql.ErrNoRows {
		return Run{}, err
	}
	if err != nil {
		return Run{}, fmt.Errorf("scan run: %w", err)
	}
	run.Status = Status(status)
	if run.StartedAt, err = time.Parse(timeLayout, started); err != nil {
		return Run{}, fmt.Errorf("scan run %s: started_at: %w", run.ID, err)
	}
	if run.FinishedAt, err = time.Parse(timeLayout, finished); err != nil {
		return Run{}, fmt.Errorf("scan run %s: finished_at: %w", run.ID, err)
	}
	return run, nil
}

// Duration returns how long the run took.
func (r Run) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
