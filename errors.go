package warden

import (
	"errors"
	"fmt"
	"time"
)

// ErrTimeout matches every sandbox timeout error via errors.Is, covering
// both ErrStartTimeout and ErrExecTimeout.
var ErrTimeout = errors.New("sandbox: timeout")

// ErrSandbox reports a failed sandbox operation.
type ErrSandbox struct {
	Op      string // "build", "start", "stop", "execute"
	Message string
}

func (e *ErrSandbox) Error() string {
	return fmt.Sprintf("sandbox %s: %s", e.Op, e.Message)
}

// ErrStartTimeout reports a sandbox that did not become ready in time.
type ErrStartTimeout struct {
	Timeout time.Duration
}

func (e *ErrStartTimeout) Error() string {
	return fmt.Sprintf("sandbox start: not ready within %s", e.Timeout)
}

func (e *ErrStartTimeout) Is(target error) bool { return target == ErrTimeout }

// ErrExecTimeout reports a command execution that exceeded its timeout.
type ErrExecTimeout struct {
	Timeout time.Duration
}

func (e *ErrExecTimeout) Error() string {
	return fmt.Sprintf("sandbox execute: command timed out after %s", e.Timeout)
}

func (e *ErrExecTimeout) Is(target error) bool { return target == ErrTimeout }
