package docker

import (
	"bytes"
	"context"
	"errors"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"

	"github.com/nevindra/warden"
)

// Execute runs a command inside the container and returns its exit code and
// demultiplexed output. A timeout greater than zero bounds the whole
// execution and maps to warden.ErrExecTimeout when exceeded. Daemon errors
// such as a missing container come back as an ExecResult with exit code 1
// and the error text on stderr, mirroring what a failing shell command
// would produce.
func (s *Sandbox) Execute(ctx context.Context, containerID string, command []string, timeout time.Duration) (warden.ExecResult, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	res, err := s.exec(ctx, containerID, command)
	if err == nil {
		return res, nil
	}
	switch {
	case timeout > 0 && errors.Is(err, context.DeadlineExceeded):
		return warden.ExecResult{}, &warden.ErrExecTimeout{Timeout: timeout}
	case ctx.Err() != nil:
		return warden.ExecResult{}, ctx.Err()
	case client.IsErrNotFound(err):
		return warden.ExecResult{ExitCode: 1, Stderr: []byte("container not found: " + shortID(containerID))}, nil
	default:
		return warden.ExecResult{ExitCode: 1, Stderr: []byte(err.Error())}, nil
	}
}

func (s *Sandbox) exec(ctx context.Context, containerID string, command []string) (warden.ExecResult, error) {
	cli, err := s.client()
	if err != nil {
		return warden.ExecResult{}, err
	}

	created, err := cli.ContainerExecCreate(ctx, containerID, container.ExecOptions{
		Cmd:          command,
		AttachStdout: true,
		AttachStderr: true,
	})
	if err != nil {
		return warden.ExecResult{}, err
	}

	att, err := cli.ContainerExecAttach(ctx, created.ID, container.ExecStartOptions{})
	if err != nil {
		return warden.ExecResult{}, err
	}
	defer att.Close()

	// The hijacked stream is not governed by ctx, so the copy runs in a
	// goroutine and a cancelled ctx closes the stream out from under it.
	var stdout, stderr bytes.Buffer
	copied := make(chan error, 1)
	go func() {
		_, err := stdcopy.StdCopy(&stdout, &stderr, att.Reader)
		copied <- err
	}()

	select {
	case err := <-copied:
		if err != nil {
			return warden.ExecResult{}, err
		}
	case <-ctx.Done():
		att.Close()
		return warden.ExecResult{}, ctx.Err()
	}

	insp, err := cli.ContainerExecInspect(ctx, created.ID)
	if err != nil {
		return warden.ExecResult{}, err
	}
	return warden.ExecResult{
		ExitCode: insp.ExitCode,
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
	}, nil
}
