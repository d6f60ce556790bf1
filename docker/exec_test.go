package docker

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/nevindra/warden"
)

func TestExecuteDemuxesOutput(t *testing.T) {
	d := &fakeDaemon{
		t:           t,
		containerID: testContainerID,
		exitCode:    2,
		execStdout:  "hello out\n",
		execStderr:  "hello err\n",
	}
	sb := d.sandbox(t)

	res, err := sb.Execute(context.Background(), testContainerID, []string{"ls", "-la"}, 0)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.ExitCode != 2 {
		t.Errorf("exit code = %d, want 2", res.ExitCode)
	}
	if got := string(res.Stdout); got != "hello out\n" {
		t.Errorf("stdout = %q, want %q", got, "hello out\n")
	}
	if got := string(res.Stderr); got != "hello err\n" {
		t.Errorf("stderr = %q, want %q", got, "hello err\n")
	}
	if got, want := res.Text(), "hello out\n\nhello err\n"; got != want {
		t.Errorf("Text() = %q, want %q", got, want)
	}
}

func TestExecuteMissingContainer(t *testing.T) {
	d := &fakeDaemon{t: t, containerID: testContainerID}
	sb := d.sandbox(t)

	res, err := sb.Execute(context.Background(), "deadbeefdeadbeefdead", []string{"true"}, 0)
	if err != nil {
		t.Fatalf("Execute: %v, want the failure as a result", err)
	}
	if res.ExitCode != 1 {
		t.Errorf("exit code = %d, want 1", res.ExitCode)
	}
	if !strings.Contains(string(res.Stderr), "container not found") {
		t.Errorf("stderr = %q, want a not-found message", res.Stderr)
	}
}

func TestExecuteTimeout(t *testing.T) {
	d := &fakeDaemon{
		t:           t,
		containerID: testContainerID,
		execStdout:  "too late\n",
		execDelay:   300 * time.Millisecond,
	}
	sb := d.sandbox(t)

	_, err := sb.Execute(context.Background(), testContainerID, []string{"sleep", "60"}, 30*time.Millisecond)
	if !errors.Is(err, warden.ErrTimeout) {
		t.Fatalf("Execute error = %v, want ErrTimeout", err)
	}
	var et *warden.ErrExecTimeout
	if !errors.As(err, &et) {
		t.Fatalf("Execute error = %v, want *warden.ErrExecTimeout", err)
	}
	if et.Timeout != 30*time.Millisecond {
		t.Errorf("timeout = %v, want 30ms", et.Timeout)
	}
}

func TestExecutorRunsInSandbox(t *testing.T) {
	d := &fakeDaemon{t: t, containerID: testContainerID, execStdout: "bound\n"}
	sb := d.sandbox(t)

	run := warden.Executor(sb, testContainerID)
	res, err := run(context.Background(), []string{"echo", "bound"}, 0)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.ExitCode != 0 {
		t.Errorf("exit code = %d, want 0", res.ExitCode)
	}
	if got := string(res.Stdout); got != "bound\n" {
		t.Errorf("stdout = %q, want %q", got, "bound\n")
	}
}
