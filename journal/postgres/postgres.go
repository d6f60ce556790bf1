// Package postgres implements warden.Journal using PostgreSQL, for
// deployments where several hosts share one journal.
//
// Journal accepts an externally-owned *pgxpool.Pool via constructor
// injection. The caller creates and closes the pool.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nevindra/warden"
)

// Journal implements warden.Journal backed by PostgreSQL.
type Journal struct {
	pool *pgxpool.Pool
}

var _ warden.Journal = (*Journal)(nil)

// New creates a Journal using an existing pgxpool.Pool.
// The caller owns the pool and is responsible for closing it.
func New(pool *pgxpool.Pool) *Journal {
	return &Journal{pool: pool}
}

// Init creates all required tables.
func (j *Journal) Init(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			container_id TEXT NOT NULL,
			image TEXT NOT NULL,
			working_dir TEXT NOT NULL,
			expire_seconds INTEGER NOT NULL,
			started_at BIGINT NOT NULL,
			ended_at BIGINT NOT NULL DEFAULT 0,
			outcome TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS runs_started_idx ON runs(started_at)`,

		`CREATE TABLE IF NOT EXISTS execs (
			id BIGSERIAL PRIMARY KEY,
			run_id TEXT NOT NULL,
			command TEXT NOT NULL,
			exit_code INTEGER NOT NULL,
			duration_ms BIGINT NOT NULL,
			at BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS execs_run_idx ON execs(run_id)`,
	}

	for _, stmt := range stmts {
		if _, err := j.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres: init: %w", err)
		}
	}
	return nil
}

// RecordStart inserts or updates a run.
func (j *Journal) RecordStart(ctx context.Context, run warden.Run) error {
	_, err := j.pool.Exec(ctx,
		`INSERT INTO runs (id, container_id, image, working_dir, expire_seconds, started_at, ended_at, outcome)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (id) DO UPDATE SET
		   container_id = EXCLUDED.container_id,
		   image = EXCLUDED.image,
		   working_dir = EXCLUDED.working_dir,
		   expire_seconds = EXCLUDED.expire_seconds,
		   started_at = EXCLUDED.started_at`,
		run.ID, run.ContainerID, run.Image, run.WorkingDir, run.ExpireSeconds, run.StartedAt, run.EndedAt, run.Outcome)
	if err != nil {
		return fmt.Errorf("postgres: record start: %w", err)
	}
	return nil
}

// RecordExec appends one command execution to a run.
func (j *Journal) RecordExec(ctx context.Context, exec warden.Exec) error {
	_, err := j.pool.Exec(ctx,
		`INSERT INTO execs (run_id, command, exit_code, duration_ms, at)
		 VALUES ($1, $2, $3, $4, $5)`,
		exec.RunID, exec.Command, exec.ExitCode, exec.DurationMs, exec.At)
	if err != nil {
		return fmt.Errorf("postgres: record exec: %w", err)
	}
	return nil
}

// RecordExit closes a run with its outcome.
func (j *Journal) RecordExit(ctx context.Context, runID, outcome string, endedAt int64) error {
	_, err := j.pool.Exec(ctx,
		`UPDATE runs SET outcome = $1, ended_at = $2 WHERE id = $3`,
		outcome, endedAt, runID)
	if err != nil {
		return fmt.Errorf("postgres: record exit: %w", err)
	}
	return nil
}

// Runs returns the most recent runs, newest first.
func (j *Journal) Runs(ctx context.Context, limit int) ([]warden.Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := j.pool.Query(ctx,
		`SELECT id, container_id, image, working_dir, expire_seconds, started_at, ended_at, outcome
		 FROM runs
		 ORDER BY started_at DESC, id DESC
		 LIMIT $1`,
		limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: runs: %w", err)
	}
	defer rows.Close()

	var runs []warden.Run
	for rows.Next() {
		var r warden.Run
		if err := rows.Scan(&r.ID, &r.ContainerID, &r.Image, &r.WorkingDir, &r.ExpireSeconds, &r.StartedAt, &r.EndedAt, &r.Outcome); err != nil {
			return nil, fmt.Errorf("postgres: scan run: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate runs: %w", err)
	}
	return runs, nil
}

// Execs returns the executions recorded for a run, oldest first.
func (j *Journal) Execs(ctx context.Context, runID string) ([]warden.Exec, error) {
	rows, err := j.pool.Query(ctx,
		`SELECT run_id, command, exit_code, duration_ms, at
		 FROM execs
		 WHERE run_id = $1
		 ORDER BY id`,
		runID)
	if err != nil {
		return nil, fmt.Errorf("postgres: execs: %w", err)
	}
	defer rows.Close()

	var execs []warden.Exec
	for rows.Next() {
		var e warden.Exec
		if err := rows.Scan(&e.RunID, &e.Command, &e.ExitCode, &e.DurationMs, &e.At); err != nil {
			return nil, fmt.Errorf("postgres: scan exec: %w", err)
		}
		execs = append(execs, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate execs: %w", err)
	}
	return execs, nil
}

// Close is a no-op; the pool is owned by the caller.
func (j *Journal) Close() error {
	return nil
}
