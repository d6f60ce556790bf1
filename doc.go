// Package warden manages the lifecycle of disposable execution sandboxes.
//
// A sandbox is an isolated, time-bounded environment in which external
// callers run arbitrary shell commands against a fresh filesystem. Warden
// covers both sides of that lifecycle: the controller that creates,
// drives, and tears down sandbox containers, and the supervisor process
// that runs inside each container, announces readiness, enforces the
// expiry policy, and exits with a status the controller can interpret.
//
// # Quick Start
//
// Start a sandbox, run a command in it, and stop it:
//
//	sb := docker.New()
//	id, err := sb.Start(ctx, warden.StartOptions{
//		WorkingDir: "/tmp/task",
//		Expiry:     warden.HoldFor(120),
//	})
//	if err != nil {
//		return err
//	}
//	defer sb.Stop(ctx, id)
//
//	res, err := sb.Execute(ctx, id, []string{"cat", "notes.txt"}, 10*time.Second)
//
// # Core Interfaces
//
// The root package defines the contracts that all components implement:
//
//   - [Sandbox] — start, stop, and execute commands in one isolated environment
//   - [Journal] — durable records of sandbox runs and executed commands
//   - [ExpiryPolicy] — the evaluated lifetime decision for one sandbox
//   - [ExecFunc] — an executor closure bound to a single running sandbox
//
// # Expiry
//
// Every sandbox carries an expiry policy evaluated once at supervisor
// start: a positive duration holds the environment open for exactly that
// many seconds before a clean self-termination, while zero or negative
// durations hold it open until externally stopped. [EvaluateExpiry] is the
// pure decision function; [ExpiryFromEnv] parses the EXPIRE_SECONDS wire
// value the controller plants in the container environment.
//
// # Included Implementations
//
// Sandboxes: docker (Docker Engine API, workspace bind mount, readiness
// polling, demuxed exec). Journals: journal/sqlite (local file),
// journal/postgres (shared database). The observer package wraps any
// [Sandbox] with OpenTelemetry traces, metrics, and logs.
//
// The cmd/supervisor binary is the container entrypoint; cmd/warden is the
// operator CLI over the controller library.
package warden
