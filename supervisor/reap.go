package supervisor

import (
	"os"
	"os/signal"

	"golang.org/x/sys/unix"
)

// Reaper waits on exited child processes. The supervisor is PID 1 inside
// the sandbox container, so every process orphaned by a shell pipeline or a
// backgrounded job re-parents to it; without a reaper they linger as
// zombies until the container dies.
//
// The container image ships no init layer, so the supervisor registers for
// SIGCHLD itself rather than delegating to one.
type Reaper struct {
	sigc chan os.Signal
	done chan struct{}
}

// NewReaper creates a Reaper. Call Start to begin reaping.
func NewReaper() *Reaper {
	return &Reaper{
		sigc: make(chan os.Signal, 16),
		done: make(chan struct{}),
	}
}

// Start registers for SIGCHLD and reaps in a background goroutine. It
// sweeps once immediately so children that exited before registration are
// collected too.
func (r *Reaper) Start() {
	signal.Notify(r.sigc, unix.SIGCHLD)
	go func() {
		defer close(r.done)
		reap()
		for range r.sigc {
			reap()
		}
	}()
}

// Stop unregisters the SIGCHLD handler and waits for the reaping goroutine
// to drain and exit.
func (r *Reaper) Stop() {
	signal.Stop(r.sigc)
	close(r.sigc)
	<-r.done
}

// reap collects every child that has exited. SIGCHLD coalesces, so a
// single signal may stand for several exits; loop until the kernel has
// nothing left for us.
func reap() {
	for {
		var status unix.WaitStatus
		pid, err := unix.Wait4(-1, &status, unix.WNOHANG, nil)
		if err == unix.EINTR {
			continue
		}
		if err != nil || pid <= 0 {
			return
		}
	}
}
