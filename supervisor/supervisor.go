// Package supervisor implements the lifecycle of the sandbox container
// entrypoint. A Supervisor announces startup on stdout, reports the expiry
// policy it will enforce, signals readiness for external commands, and then
// waits until either the expiry deadline passes or its context is cancelled
// by a termination signal.
//
// The announcement lines are a wire format of sorts: container managers
// watch stdout for the readiness line before handing the sandbox to
// callers, and for the expiry line to learn that the sandbox shut itself
// down. Their text and order are stable.
//
// [Reaper] complements the Supervisor when the process runs as PID 1, where
// orphaned children re-parent to it and must be waited on.
package supervisor

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync/atomic"

	"github.com/nevindra/warden"
	"github.com/nevindra/warden/clock"
)

// State describes where the supervisor is in its lifecycle.
type State int32

const (
	// StateStarting is the initial state, before readiness is announced.
	StateStarting State = iota
	// StateReadyIndefinite means readiness was announced and no expiry
	// deadline is armed.
	StateReadyIndefinite
	// StateReadyBounded means readiness was announced and the supervisor
	// is counting down to its expiry deadline.
	StateReadyBounded
	// StateExpired means the expiry deadline passed.
	StateExpired
	// StateTerminated means the supervisor was shut down from outside.
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateReadyIndefinite:
		return "ready-indefinite"
	case StateReadyBounded:
		return "ready-bounded"
	case StateExpired:
		return "expired"
	case StateTerminated:
		return "terminated"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Outcome reports why Run returned.
type Outcome int

const (
	// OutcomeExpired means the expiry deadline passed and the supervisor
	// shut the sandbox down on its own.
	OutcomeExpired Outcome = iota + 1
	// OutcomeTerminated means the supervisor's context was cancelled,
	// normally by SIGTERM or SIGINT.
	OutcomeTerminated
)

func (o Outcome) String() string {
	switch o {
	case OutcomeExpired:
		return "expired"
	case OutcomeTerminated:
		return "terminated"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

type config struct {
	out io.Writer
	clk clock.Clock
}

func defaultConfig() config {
	return config{
		out: os.Stdout,
		clk: clock.Real(),
	}
}

// Option customizes a Supervisor.
type Option func(*config)

// WithOutput redirects the announcement lines. The default is os.Stdout.
func WithOutput(w io.Writer) Option {
	return func(c *config) {
		c.out = w
	}
}

// WithClock substitutes the clock used for the expiry countdown. The
// default is the real time package.
func WithClock(clk clock.Clock) Option {
	return func(c *config) {
		c.clk = clk
	}
}

// Supervisor runs the sandbox lifecycle. Construct it with New and drive it
// with Run; State may be read from other goroutines at any time.
type Supervisor struct {
	policy warden.ExpiryPolicy
	cfg    config
	state  atomic.Int32
}

// New creates a Supervisor enforcing the given expiry policy. An unset
// policy falls back to the default of warden.DefaultExpireSeconds.
func New(policy warden.ExpiryPolicy, opts ...Option) *Supervisor {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Supervisor{policy: policy.OrDefault(), cfg: cfg}
}

// State returns the current lifecycle state.
func (s *Supervisor) State() State {
	return State(s.state.Load())
}

func (s *Supervisor) setState(st State) {
	s.state.Store(int32(st))
}

// Run announces startup, the expiry policy, and readiness, then blocks
// until the sandbox expires or ctx is cancelled. It returns the outcome and
// a nil error in both cases; a non-nil error means an announcement could
// not be written and the sandbox never became usable.
func (s *Supervisor) Run(ctx context.Context) (Outcome, error) {
	if err := s.announce("sandbox supervisor started"); err != nil {
		return 0, err
	}

	if s.policy.Indefinite() {
		if err := s.announce("sandbox will not auto-expire"); err != nil {
			return 0, err
		}
		if err := s.announce("sandbox ready for external commands"); err != nil {
			return 0, err
		}
		s.setState(StateReadyIndefinite)

		<-ctx.Done()
		s.setState(StateTerminated)
		return OutcomeTerminated, nil
	}

	seconds := s.policy.Seconds()
	if err := s.announce("sandbox will expire in %d seconds", seconds); err != nil {
		return 0, err
	}
	if err := s.announce("sandbox ready for external commands"); err != nil {
		return 0, err
	}
	s.setState(StateReadyBounded)

	select {
	case <-s.cfg.clk.After(s.policy.Duration()):
		s.setState(StateExpired)
		if err := s.announce("sandbox expired after %d seconds", seconds); err != nil {
			return OutcomeExpired, err
		}
		return OutcomeExpired, nil
	case <-ctx.Done():
		s.setState(StateTerminated)
		return OutcomeTerminated, nil
	}
}

func (s *Supervisor) announce(format string, args ...any) error {
	if _, err := fmt.Fprintf(s.cfg.out, format+"\n", args...); err != nil {
		return fmt.Errorf("announce: %w", err)
	}
	return nil
}
