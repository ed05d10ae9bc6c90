// Package history keeps a local SQLite record of orchestration runs so
// the status CLI and the local API can answer "what happened last"
// without asking the backend.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// History manages the run history database.
type History struct {
	db *sql.DB
}

// New opens (and if needed initializes) the history database.
func New(dbPath string) (*History, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite has a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	h := &History{db: db}
	if err := h.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return h, nil
}

// Close closes the database connection.
func (h *History) Close() error {
	return h.db.Close()
}

func (h *History) initSchema() error {
	_, err := h.db.Exec(`
		CREATE TABLE IF NOT EXISTS runs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			kind TEXT NOT NULL,
			project TEXT NOT NULL,
			environment TEXT NOT NULL,
			service TEXT NOT NULL,
			status TEXT NOT NULL,
			started_at TEXT NOT NULL,
			completed_at TEXT,
			duration_seconds REAL,
			deployment_id TEXT,
			servers_json TEXT,
			error_message TEXT
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}

	_, err = h.db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_identity_started
		ON runs(project, environment, service, started_at DESC)
	`)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	return nil
}

// BeginRun inserts an in-progress run and returns its row id.
func (h *History) BeginRun(ctx context.Context, run *Run) (int64, error) {
	startedAt := run.StartedAt
	if startedAt.IsZero() {
		startedAt = time.Now()
	}

	result, err := h.db.ExecContext(ctx, `
		INSERT INTO runs
		(kind, project, environment, service, status, started_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		run.Kind,
		run.Project,
		run.Environment,
		run.Service,
		string(StatusInProgress),
		startedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert run: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID: %w", err)
	}
	return id, nil
}

// CompleteRun finalizes a previously begun run.
func (h *History) CompleteRun(ctx context.Context, id int64, status Status, deploymentID, serversJSON, errorMessage string) error {
	now := time.Now().UTC()

	_, err := h.db.ExecContext(ctx, `
		UPDATE runs
		SET status = ?,
		    completed_at = ?,
		    duration_seconds = (julianday(?) - julianday(started_at)) * 86400,
		    deployment_id = NULLIF(?, ''),
		    servers_json = NULLIF(?, ''),
		    error_message = NULLIF(?, '')
		WHERE id = ?
	`,
		string(status),
		now.Format(time.RFC3339),
		now.Format(time.RFC3339),
		deploymentID,
		serversJSON,
		errorMessage,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to complete run: %w", err)
	}
	return nil
}

const runColumns = `id, kind, project, environment, service, status, started_at,
	       completed_at, duration_seconds, deployment_id, servers_json, error_message`

// LatestRun returns the most recent run for a service identity, or nil
// if none is recorded.
func (h *History) LatestRun(ctx context.Context, project, environment, service string) (*Run, error) {
	row := h.db.QueryRowContext(ctx, `
		SELECT `+runColumns+`
		FROM runs
		WHERE project = ? AND environment = ? AND service = ?
		ORDER BY id DESC
		LIMIT 1
	`, project, environment, service)

	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query latest run: %w", err)
	}
	return run, nil
}

// RecentRuns returns run history for a service identity, newest first.
func (h *History) RecentRuns(ctx context.Context, project, environment, service string, limit int) ([]Run, error) {
	rows, err := h.db.QueryContext(ctx, `
		SELECT `+runColumns+`
		FROM runs
		WHERE project = ? AND environment = ? AND service = ?
		ORDER BY id DESC
		LIMIT ?
	`, project, environment, service, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query run history: %w", err)
	}
	defer rows.Close()

	return collectRuns(rows)
}

// AllServicesStatus returns the latest run for every service identity
// seen so far.
func (h *History) AllServicesStatus(ctx context.Context) ([]Run, error) {
	rows, err := h.db.QueryContext(ctx, `
		SELECT `+runColumns+`
		FROM runs r1
		WHERE id = (
			SELECT MAX(id) FROM runs r2
			WHERE r2.project = r1.project
			  AND r2.environment = r1.environment
			  AND r2.service = r1.service
		)
		ORDER BY project, environment, service
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query services status: %w", err)
	}
	defer rows.Close()

	return collectRuns(rows)
}

func collectRuns(rows *sql.Rows) ([]Run, error) {
	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return runs, nil
}

// scanner is an interface both *sql.Row and *sql.Rows implement.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(s scanner) (*Run, error) {
	var run Run
	var status string
	var startedAtStr string
	var completedAtStr sql.NullString

	err := s.Scan(
		&run.ID,
		&run.Kind,
		&run.Project,
		&run.Environment,
		&run.Service,
		&status,
		&startedAtStr,
		&completedAtStr,
		&run.DurationSeconds,
		&run.DeploymentID,
		&run.ServersJSON,
		&run.ErrorMessage,
	)
	if err != nil {
		return nil, err
	}

	run.Status = Status(status)

	startedAt, err := time.Parse(time.RFC3339, startedAtStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse started_at timestamp: %w", err)
	}
	run.StartedAt = startedAt

	if completedAtStr.Valid {
		completedAt, err := time.Parse(time.RFC3339, completedAtStr.String)
		if err != nil {
			return nil, fmt.Errorf("failed to parse completed_at timestamp: %w", err)
		}
		run.CompletedAt = &completedAt
	}

	return &run, nil
}
