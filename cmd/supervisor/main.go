// Command supervisor is the entrypoint process inside a sandbox container.
//
// It reads EXPIRE_SECONDS once at startup, announces the sandbox lifecycle
// on stdout and then waits: for the expiry deadline when one is configured,
// or for SIGTERM/SIGINT from the container runtime. Because it runs as PID 1
// it also reaps orphaned child processes for the whole container.
//
// The process exits 0 when the sandbox expires on its own or is stopped by a
// signal, and non-zero only for startup faults such as an unparsable
// EXPIRE_SECONDS value.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	warden "github.com/nevindra/warden"
	"github.com/nevindra/warden/supervisor"
)

func main() {
	log.SetFlags(log.Ldate | log.Ltime | log.Lmsgprefix)
	log.SetPrefix("[supervisor] ")

	// Diagnostics go to stderr through the standard logger; stdout carries
	// only the announcement lines the host side scrapes.
	policy, err := warden.ExpiryFromEnv(os.Getenv(warden.EnvExpireSeconds))
	if err != nil {
		log.Fatalf("configuration fault: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reaper := supervisor.NewReaper()
	reaper.Start()
	defer reaper.Stop()

	sup := supervisor.New(policy)
	outcome, err := sup.Run(ctx)
	if err != nil {
		log.Fatalf("lifecycle fault: %v", err)
	}
	log.Printf("exiting: %s", outcome)
}
