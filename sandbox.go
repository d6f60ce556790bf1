package warden

import (
	"context"
	"time"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
)

// Sandbox manages isolated execution environments. Implementations control
// the isolation substrate (Docker containers, VMs, remote services). All
// operations address a specific environment by the identifier returned
// from Start.
type Sandbox interface {
	// Start creates and boots one sandbox environment, blocking until it
	// is ready to accept commands or the start timeout elapses. It returns
	// the environment's identifier.
	Start(ctx context.Context, opts StartOptions) (string, error)

	// Stop gracefully terminates a running sandbox environment.
	Stop(ctx context.Context, containerID string) error

	// Execute runs a command inside a running sandbox and returns its exit
	// code with captured stdout and stderr. A positive timeout bounds the
	// execution; zero means no bound beyond ctx.
	Execute(ctx context.Context, containerID string, command []string, timeout time.Duration) (ExecResult, error)
}

// StartOptions configures one sandbox environment.
type StartOptions struct {
	// WorkingDir is the host directory mounted read-write at /workspace
	// inside the sandbox. It must exist.
	WorkingDir string

	// Env is extra environment for the sandbox process, applied on top of
	// the variables the controller always sets (EXPIRE_SECONDS, SHELL).
	Env map[string]string

	// Expiry is the lifetime policy handed to the in-sandbox supervisor.
	// The zero value applies the 300-second default.
	Expiry ExpiryPolicy

	// StartTimeout bounds the wait for the environment to become ready.
	// Zero means the implementation default (30s for the Docker sandbox).
	StartTimeout time.Duration
}

// ExecResult is the outcome of one command execution inside a sandbox.
type ExecResult struct {
	// ExitCode is the command's exit status (0 = success).
	ExitCode int
	// Stdout holds the raw standard output bytes.
	Stdout []byte
	// Stderr holds the raw standard error bytes.
	Stderr []byte
}

// Text returns the combined output as display-safe UTF-8: stdout followed
// by stderr, with ill-formed byte sequences replaced by U+FFFD. Use the
// raw Stdout/Stderr fields when byte fidelity matters.
func (r ExecResult) Text() string {
	out := string(r.Stdout)
	if len(r.Stderr) > 0 {
		if out != "" {
			out += "\n"
		}
		out += string(r.Stderr)
	}
	clean, _, _ := transform.String(runes.ReplaceIllFormed(), out)
	return clean
}

// ExecFunc executes commands inside one specific sandbox environment.
type ExecFunc func(ctx context.Context, command []string, timeout time.Duration) (ExecResult, error)

// Executor returns an ExecFunc bound to a single running sandbox, so
// callers that only run commands need not carry the Sandbox and the
// identifier separately.
func Executor(s Sandbox, containerID string) ExecFunc {
	return func(ctx context.Context, command []string, timeout time.Duration) (ExecResult, error) {
		return s.Execute(ctx, containerID, command, timeout)
	}
}
