// Package sqlite implements warden.Journal using pure-Go SQLite.
// Zero CGO required.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/nevindra/warden"

	_ "modernc.org/sqlite" // pure-Go SQLite driver
)

// JournalOption configures a SQLite Journal.
type JournalOption func(*Journal)

// WithLogger sets a structured logger for the journal.
// When set, the journal emits debug logs for every operation including
// timing and key parameters. If not set, no logs are emitted.
func WithLogger(l *slog.Logger) JournalOption {
	return func(j *Journal) { j.logger = l }
}

// Journal implements warden.Journal backed by a local SQLite file.
type Journal struct {
	db     *sql.DB
	logger *slog.Logger
}

var _ warden.Journal = (*Journal)(nil)

// nopLogger is a logger that discards all output.
var nopLogger = slog.New(discardHandler{})

type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (d discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return d }
func (d discardHandler) WithGroup(string) slog.Handler           { return d }

// New creates a Journal using a local SQLite file at dbPath.
// It opens a single shared connection pool with SetMaxOpenConns(1) so that
// all goroutines serialize through one connection, eliminating SQLITE_BUSY
// errors caused by concurrent writers opening independent connections.
func New(dbPath string, opts ...JournalOption) *Journal {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		// sql.Open only fails when the driver is not registered; with the
		// blank import above that never happens.
		panic(fmt.Sprintf("sqlite: open driver: %v", err))
	}
	db.SetMaxOpenConns(1)
	j := &Journal{db: db, logger: nopLogger}
	for _, o := range opts {
		o(j)
	}
	j.logger.Debug("sqlite: journal opened", "path", dbPath)
	return j
}

// Init creates all required tables.
func (j *Journal) Init(ctx context.Context) error {
	start := time.Now()
	j.logger.Debug("sqlite: init started")
	tables := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			container_id TEXT NOT NULL,
			image TEXT NOT NULL,
			working_dir TEXT NOT NULL,
			expire_seconds INTEGER NOT NULL,
			started_at INTEGER NOT NULL,
			ended_at INTEGER NOT NULL DEFAULT 0,
			outcome TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS execs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			command TEXT NOT NULL,
			exit_code INTEGER NOT NULL,
			duration_ms INTEGER NOT NULL,
			at INTEGER NOT NULL
		)`,
	}

	for _, ddl := range tables {
		if _, err := j.db.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}

	// Indexes on frequently queried columns.
	_, _ = j.db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at)`)
	_, _ = j.db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_execs_run ON execs(run_id)`)

	j.logger.Info("sqlite: init completed", "duration", time.Since(start))
	return nil
}

// RecordStart inserts or replaces a run.
func (j *Journal) RecordStart(ctx context.Context, run warden.Run) error {
	start := time.Now()
	j.logger.Debug("sqlite: record start", "id", run.ID, "container_id", run.ContainerID, "image", run.Image)

	_, err := j.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO runs (id, container_id, image, working_dir, expire_seconds, started_at, ended_at, outcome)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.ContainerID, run.Image, run.WorkingDir, run.ExpireSeconds, run.StartedAt, run.EndedAt, run.Outcome,
	)
	if err != nil {
		j.logger.Error("sqlite: record start failed", "id", run.ID, "error", err, "duration", time.Since(start))
		return fmt.Errorf("record start: %w", err)
	}
	j.logger.Debug("sqlite: record start ok", "id", run.ID, "duration", time.Since(start))
	return nil
}

// RecordExec appends one command execution to a run.
func (j *Journal) RecordExec(ctx context.Context, exec warden.Exec) error {
	start := time.Now()
	j.logger.Debug("sqlite: record exec", "run_id", exec.RunID, "exit_code", exec.ExitCode)

	_, err := j.db.ExecContext(ctx,
		`INSERT INTO execs (run_id, command, exit_code, duration_ms, at)
		 VALUES (?, ?, ?, ?, ?)`,
		exec.RunID, exec.Command, exec.ExitCode, exec.DurationMs, exec.At,
	)
	if err != nil {
		j.logger.Error("sqlite: record exec failed", "run_id", exec.RunID, "error", err, "duration", time.Since(start))
		return fmt.Errorf("record exec: %w", err)
	}
	j.logger.Debug("sqlite: record exec ok", "run_id", exec.RunID, "duration", time.Since(start))
	return nil
}

// RecordExit closes a run with its outcome.
func (j *Journal) RecordExit(ctx context.Context, runID, outcome string, endedAt int64) error {
	start := time.Now()
	j.logger.Debug("sqlite: record exit", "id", runID, "outcome", outcome)

	_, err := j.db.ExecContext(ctx,
		`UPDATE runs SET outcome = ?, ended_at = ? WHERE id = ?`,
		outcome, endedAt, runID,
	)
	if err != nil {
		j.logger.Error("sqlite: record exit failed", "id", runID, "error", err, "duration", time.Since(start))
		return fmt.Errorf("record exit: %w", err)
	}
	j.logger.Debug("sqlite: record exit ok", "id", runID, "duration", time.Since(start))
	return nil
}

// Runs returns the most recent runs, newest first.
func (j *Journal) Runs(ctx context.Context, limit int) ([]warden.Run, error) {
	start := time.Now()
	if limit <= 0 {
		limit = 50
	}
	j.logger.Debug("sqlite: runs", "limit", limit)

	rows, err := j.db.QueryContext(ctx,
		`SELECT id, container_id, image, working_dir, expire_seconds, started_at, ended_at, outcome
		 FROM runs
		 ORDER BY started_at DESC, id DESC
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		j.logger.Error("sqlite: runs failed", "error", err, "duration", time.Since(start))
		return nil, fmt.Errorf("runs: %w", err)
	}
	defer rows.Close()

	var runs []warden.Run
	for rows.Next() {
		var r warden.Run
		if err := rows.Scan(&r.ID, &r.ContainerID, &r.Image, &r.WorkingDir, &r.ExpireSeconds, &r.StartedAt, &r.EndedAt, &r.Outcome); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("runs: %w", err)
	}
	j.logger.Debug("sqlite: runs ok", "count", len(runs), "duration", time.Since(start))
	return runs, nil
}

// Execs returns the executions recorded for a run, oldest first.
func (j *Journal) Execs(ctx context.Context, runID string) ([]warden.Exec, error) {
	start := time.Now()
	j.logger.Debug("sqlite: execs", "run_id", runID)

	rows, err := j.db.QueryContext(ctx,
		`SELECT run_id, command, exit_code, duration_ms, at
		 FROM execs
		 WHERE run_id = ?
		 ORDER BY id`,
		runID,
	)
	if err != nil {
		j.logger.Error("sqlite: execs failed", "run_id", runID, "error", err, "duration", time.Since(start))
		return nil, fmt.Errorf("execs: %w", err)
	}
	defer rows.Close()

	var execs []warden.Exec
	for rows.Next() {
		var e warden.Exec
		if err := rows.Scan(&e.RunID, &e.Command, &e.ExitCode, &e.DurationMs, &e.At); err != nil {
			return nil, fmt.Errorf("scan exec: %w", err)
		}
		execs = append(execs, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("execs: %w", err)
	}
	j.logger.Debug("sqlite: execs ok", "count", len(execs), "duration", time.Since(start))
	return execs, nil
}

// Close releases the underlying database handle.
func (j *Journal) Close() error {
	return j.db.Close()
}
