// Command warden manages Docker sandboxes from the host side.
//
// Usage:
//
//	warden start [flags]                                 start a sandbox, print its container ID
//	warden exec [flags] <container-id> -- <command ...>  run a command in a sandbox
//	warden run [flags] -- <command ...>                  start a sandbox, run one command, stop it
//	warden stop [flags] <container-id>                   stop a sandbox
//	warden runs [flags]                                  list recorded runs
//	warden build [flags]                                 build the sandbox image
//
// Configuration comes from warden.toml (override the path with -config)
// and WARDEN_* environment variables. The exec and run commands exit with
// the executed command's exit code.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	log.SetFlags(log.Ldate | log.Ltime | log.Lmsgprefix)
	log.SetPrefix("[warden] ")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:]); err != nil {
		var ec exitCodeError
		if errors.As(err, &ec) {
			os.Exit(ec.code)
		}
		log.Fatalf("%v", err)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usage()
	}
	cmd, rest := args[0], args[1:]
	switch cmd {
	case "start":
		return cmdStart(ctx, rest)
	case "exec":
		return cmdExec(ctx, rest)
	case "run":
		return cmdRun(ctx, rest)
	case "stop":
		return cmdStop(ctx, rest)
	case "runs":
		return cmdRuns(ctx, rest)
	case "build":
		return cmdBuild(ctx, rest)
	case "help", "-h", "-help", "--help":
		fmt.Fprint(os.Stderr, usageText)
		return nil
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", cmd)
		return usage()
	}
}

// exitCodeError carries a process exit code through the error return so
// main can propagate the exit code of a command run inside the sandbox.
type exitCodeError struct {
	code int
}

func (e exitCodeError) Error() string { return fmt.Sprintf("exit code %d", e.code) }

const usageText = `usage: warden <command> [flags] [args]

commands:
  start    start a sandbox and print its container ID
  exec     run a command: exec <container-id> -- <command ...>
  run      start a sandbox, run one command, stop it: run -- <command ...>
  stop     stop a sandbox: stop <container-id>
  runs     list recorded runs from the journal
  build    build the sandbox image
`

func usage() error {
	fmt.Fprint(os.Stderr, usageText)
	return exitCodeError{code: 2}
}
