package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/equalcollective/xray/domain"
	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// migrate runs database migrations.
func (s *SQLiteStore) migrate() error {
	// Steps carry no foreign key on run_id: batches are best-effort and a
	// step may be ingested before its run record arrives.
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			status TEXT NOT NULL,
			total_cost REAL NOT NULL DEFAULT 0,
			tags TEXT,
			started_at DATETIME NOT NULL,
			completed_at DATETIME,
			error TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_name ON runs(name, started_at)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at)`,
		`CREATE TABLE IF NOT EXISTS steps (
			step_id TEXT PRIMARY KEY,
			run_id TEXT NOT NULL,
			parent_step_id TEXT,
			name TEXT NOT NULL,
			kind TEXT NOT NULL,
			reasoning TEXT,
			inputs TEXT,
			outputs TEXT,
			metadata TEXT,
			cost REAL NOT NULL DEFAULT 0,
			started_at DATETIME NOT NULL,
			completed_at DATETIME,
			error TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_steps_run ON steps(run_id, started_at)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\n%s", err, m)
		}
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// UpsertRun inserts a run or updates its mutable fields.
func (s *SQLiteStore) UpsertRun(ctx context.Context, run *domain.Run) error {
	tags, err := marshalJSON(run.Tags)
	if err != nil {
		return fmt.Errorf("failed to marshal tags: %w", err)
	}
	var completedAt sql.NullTime
	if run.CompletedAt != nil {
		completedAt = sql.NullTime{Time: *run.CompletedAt, Valid: true}
	}
	errStr := nullString(run.Error)

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (run_id, name, status, total_cost, tags, started_at, completed_at, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(run_id) DO UPDATE SET
			name = excluded.name,
			status = excluded.status,
			total_cost = excluded.total_cost,
			tags = excluded.tags,
			completed_at = excluded.completed_at,
			error = excluded.error`,
		run.RunID, run.Name, run.Status, run.TotalCost, tags, run.StartedAt, completedAt, errStr)
	return err
}

// GetRun retrieves a run by ID. Returns nil when the run does not exist.
func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*domain.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT run_id, name, status, total_cost, tags, started_at, completed_at, error
		 FROM runs WHERE run_id = ?`, runID)

	run, err := scanRun(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return run, nil
}

// ListRuns lists runs, most recent first.
func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]domain.Run, error) {
	query := `SELECT run_id, name, status, total_cost, tags, started_at, completed_at, error FROM runs WHERE 1=1`
	args := []interface{}{}

	if filter.Name != "" {
		query += ` AND name = ?`
		args = append(args, filter.Name)
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, filter.Status)
	}

	query += ` ORDER BY started_at DESC`
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []domain.Run
	for rows.Next() {
		run, err := scanRun(rows.Scan)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// UpsertStep inserts a step or updates its mutable fields.
func (s *SQLiteStore) UpsertStep(ctx context.Context, step *domain.Step) error {
	inputs, err := marshalJSON(step.Inputs)
	if err != nil {
		return fmt.Errorf("failed to marshal inputs: %w", err)
	}
	outputs, err := marshalJSON(step.Outputs)
	if err != nil {
		return fmt.Errorf("failed to marshal outputs: %w", err)
	}
	metadata, err := marshalJSON(step.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	var completedAt sql.NullTime
	if step.CompletedAt != nil {
		completedAt = sql.NullTime{Time: *step.CompletedAt, Valid: true}
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO steps (step_id, run_id, parent_step_id, name, kind, reasoning, inputs, outputs, metadata, cost, started_at, completed_at, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(step_id) DO UPDATE SET
			outputs = excluded.outputs,
			metadata = excluded.metadata,
			cost = excluded.cost,
			completed_at = excluded.completed_at,
			error = excluded.error`,
		step.StepID, step.RunID, nullString(step.ParentStepID), step.Name, step.Kind,
		nullString(step.Reasoning), inputs, outputs, metadata, step.Cost,
		step.StartedAt, completedAt, nullString(step.Error))
	return err
}

// GetSteps retrieves all steps for a run in chronological order.
func (s *SQLiteStore) GetSteps(ctx context.Context, runID string) ([]domain.Step, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT step_id, run_id, parent_step_id, name, kind, reasoning, inputs, outputs, metadata, cost, started_at, completed_at, error
		 FROM steps WHERE run_id = ? ORDER BY started_at ASC, step_id ASC`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var steps []domain.Step
	for rows.Next() {
		var step domain.Step
		var parentStepID, reasoning, inputs, outputs, metadata, errStr sql.NullString
		var completedAt sql.NullTime
		if err := rows.Scan(&step.StepID, &step.RunID, &parentStepID, &step.Name, &step.Kind,
			&reasoning, &inputs, &outputs, &metadata, &step.Cost,
			&step.StartedAt, &completedAt, &errStr); err != nil {
			return nil, err
		}
		step.ParentStepID = parentStepID.String
		step.Reasoning = reasoning.String
		step.Error = errStr.String
		if completedAt.Valid {
			step.CompletedAt = &completedAt.Time
		}
		step.Inputs = unmarshalJSON(inputs)
		step.Outputs = unmarshalJSON(outputs)
		step.Metadata = unmarshalJSON(metadata)
		steps = append(steps, step)
	}
	return steps, rows.Err()
}

type scanFunc func(dest ...any) error

func scanRun(scan scanFunc) (*domain.Run, error) {
	var run domain.Run
	var tags, errStr sql.NullString
	var completedAt sql.NullTime
	if err := scan(&run.RunID, &run.Name, &run.Status, &run.TotalCost, &tags,
		&run.StartedAt, &completedAt, &errStr); err != nil {
		return nil, err
	}
	if tags.Valid && tags.String != "" {
		_ = json.Unmarshal([]byte(tags.String), &run.Tags)
	}
	if completedAt.Valid {
		run.CompletedAt = &completedAt.Time
	}
	run.Error = errStr.String
	return &run, nil
}

// marshalJSON serializes an arbitrary payload to a nullable TEXT column.
func marshalJSON(v any) (sql.NullString, error) {
	if v == nil {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

// unmarshalJSON restores a TEXT column into a generic payload. Malformed
// stored JSON degrades to the raw string instead of failing the read.
func unmarshalJSON(col sql.NullString) any {
	if !col.Valid || col.String == "" {
		return nil
	}
	var v any
	if err := json.Unmarshal([]byte(col.String), &v); err != nil {
		return col.String
	}
	return v
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
