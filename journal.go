package warden

import "context"

// Run is one sandbox lifetime as recorded in the journal.
type Run struct {
	// ID is the controller-assigned run identifier (UUIDv7).
	ID string
	// ContainerID is the substrate identifier returned by Sandbox.Start.
	ContainerID string
	// Image is the sandbox image the run was started from.
	Image string
	// WorkingDir is the host directory mounted as the workspace.
	WorkingDir string
	// ExpireSeconds is the bounded lifetime, 0 for indefinite policies.
	ExpireSeconds int
	// StartedAt and EndedAt are Unix seconds; EndedAt is 0 while running.
	StartedAt int64
	EndedAt   int64
	// Outcome describes how the run ended ("stopped", "expired"), empty
	// while running.
	Outcome string
}

// Exec is one command executed inside a running sandbox.
type Exec struct {
	RunID      string
	Command    string
	ExitCode   int
	DurationMs int64
	At         int64
}

// Journal abstracts durable records of sandbox lifecycles for audit and
// debugging. Implementations: journal/sqlite (local file),
// journal/postgres (shared database).
type Journal interface {
	// RecordStart inserts a run once its sandbox reaches readiness.
	RecordStart(ctx context.Context, run Run) error

	// RecordExec appends one command execution to a run.
	RecordExec(ctx context.Context, exec Exec) error

	// RecordExit closes a run with its outcome.
	RecordExit(ctx context.Context, runID, outcome string, endedAt int64) error

	// Runs returns the most recent runs, newest first.
	Runs(ctx context.Context, limit int) ([]Run, error)

	// Execs returns the executions recorded for a run, oldest first.
	Execs(ctx context.Context, runID string) ([]Exec, error)

	// Lifecycle.
	Init(ctx context.Context) error
	Close() error
}
