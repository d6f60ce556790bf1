// Package docker runs warden sandboxes as Docker containers.
//
// Start creates a container from the sandbox image, binds the caller's
// working directory to /workspace inside it, hands the expiry policy to the
// supervisor entrypoint through EXPIRE_SECONDS, and polls the daemon until
// the container reports running. Build produces the sandbox image from an
// embedded Dockerfile when no custom one is configured, and Start triggers
// it automatically for missing images unless auto build is disabled.
package docker

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/docker/docker/api/types/build"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/jsonmessage"
	"github.com/docker/go-connections/nat"

	"github.com/nevindra/warden"
)

const (
	// DefaultImageName tags the sandbox image built from the embedded
	// Dockerfile.
	DefaultImageName = "warden-sandbox:latest"

	// DefaultStartTimeout bounds how long Start waits for the container
	// to report running when StartOptions carries no timeout.
	DefaultStartTimeout = 30 * time.Second

	// workspacePath is where the working directory is mounted inside the
	// container.
	workspacePath = "/workspace"
)

// Sandbox runs sandboxes on a Docker daemon. The zero value is not usable;
// construct it with New.
type Sandbox struct {
	cfg config

	once   sync.Once
	cli    client.APIClient
	cliErr error
}

var _ warden.Sandbox = (*Sandbox)(nil)

// New creates a Docker-backed sandbox runner. The daemon connection is
// established lazily on first use, so New never fails.
func New(opts ...Option) *Sandbox {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Sandbox{cfg: cfg}
}

func (s *Sandbox) client() (client.APIClient, error) {
	s.once.Do(func() {
		if s.cfg.client != nil {
			s.cli = s.cfg.client
			return
		}
		s.cli, s.cliErr = client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	})
	return s.cli, s.cliErr
}

// Build produces the sandbox image. When force is false and the daemon
// already has the image, the build is skipped.
func (s *Sandbox) Build(ctx context.Context, force bool) error {
	cli, err := s.client()
	if err != nil {
		return &warden.ErrSandbox{Op: "build", Message: err.Error()}
	}

	if !force {
		_, err := cli.ImageInspect(ctx, s.cfg.image)
		if err == nil {
			return nil
		}
		if !client.IsErrNotFound(err) {
			return &warden.ErrSandbox{Op: "build", Message: err.Error()}
		}
	}

	buildCtx, dockerfile, err := s.buildContext()
	if err != nil {
		return err
	}
	resp, err := cli.ImageBuild(ctx, buildCtx, build.ImageBuildOptions{
		Tags:        []string{s.cfg.image},
		Dockerfile:  dockerfile,
		Remove:      true,
		ForceRemove: true,
	})
	if err != nil {
		return &warden.ErrSandbox{Op: "build", Message: err.Error()}
	}
	defer resp.Body.Close()

	// The daemon reports build failures inside the JSON progress stream,
	// not through the response status.
	if err := jsonmessage.DisplayJSONMessagesStream(resp.Body, io.Discard, 0, false, nil); err != nil {
		return &warden.ErrSandbox{Op: "build", Message: err.Error()}
	}
	return nil
}

// Start creates and starts a sandbox container and blocks until it reports
// running. It returns the container ID to pass to Execute and Stop.
func (s *Sandbox) Start(ctx context.Context, opts warden.StartOptions) (string, error) {
	cli, err := s.client()
	if err != nil {
		return "", &warden.ErrSandbox{Op: "start", Message: err.Error()}
	}

	if s.cfg.autoBuild {
		if err := s.Build(ctx, false); err != nil {
			return "", err
		}
	}

	workingDir := opts.WorkingDir
	if workingDir == "" {
		workingDir = "."
	}
	absDir, err := filepath.Abs(workingDir)
	if err != nil {
		return "", &warden.ErrSandbox{Op: "start", Message: err.Error()}
	}
	if info, err := os.Stat(absDir); err != nil || !info.IsDir() {
		return "", &warden.ErrSandbox{Op: "start", Message: "working directory does not exist: " + absDir}
	}

	env := []string{
		warden.EnvExpireSeconds + "=" + opts.Expiry.EnvValue(),
		"SHELL=/bin/bash",
	}
	for k, v := range opts.Env {
		env = append(env, k+"="+v)
	}

	var (
		exposed  nat.PortSet
		bindings nat.PortMap
	)
	if len(s.cfg.portSpecs) > 0 {
		exposed, bindings, err = nat.ParsePortSpecs(s.cfg.portSpecs)
		if err != nil {
			return "", &warden.ErrSandbox{Op: "start", Message: err.Error()}
		}
	}

	created, err := cli.ContainerCreate(ctx,
		&container.Config{
			Image:        s.cfg.image,
			Env:          env,
			WorkingDir:   workspacePath,
			OpenStdin:    true,
			Tty:          true,
			ExposedPorts: exposed,
		},
		&container.HostConfig{
			Binds:        []string{absDir + ":" + workspacePath + ":rw"},
			AutoRemove:   true,
			PortBindings: bindings,
		},
		nil, nil, "")
	if err != nil {
		if client.IsErrNotFound(err) {
			return "", &warden.ErrSandbox{Op: "start", Message: "image not found: " + s.cfg.image}
		}
		return "", &warden.ErrSandbox{Op: "start", Message: err.Error()}
	}

	if err := cli.ContainerStart(ctx, created.ID, container.StartOptions{}); err != nil {
		return "", &warden.ErrSandbox{Op: "start", Message: err.Error()}
	}

	timeout := opts.StartTimeout
	if timeout <= 0 {
		timeout = DefaultStartTimeout
	}
	if err := s.waitForReady(ctx, cli, created.ID, timeout); err != nil {
		return "", err
	}
	return created.ID, nil
}

// waitForReady polls the container until it reports running. A container
// that stops instead is a start failure, not a timeout; transient inspect
// errors are retried until the deadline.
func (s *Sandbox) waitForReady(ctx context.Context, cli client.APIClient, id string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(s.cfg.pollInterval)
	defer ticker.Stop()

	for {
		insp, err := cli.ContainerInspect(ctx, id)
		if err == nil && insp.State != nil {
			switch insp.State.Status {
			case "running":
				return nil
			case "exited", "dead":
				return &warden.ErrSandbox{
					Op:      "start",
					Message: fmt.Sprintf("container %s stopped before becoming ready (status: %s)", shortID(id), insp.State.Status),
				}
			}
		}

		if time.Now().After(deadline) {
			return &warden.ErrStartTimeout{Timeout: timeout}
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Stop gracefully stops the container, letting it shut down for the
// configured stop timeout before the daemon kills it.
func (s *Sandbox) Stop(ctx context.Context, containerID string) error {
	cli, err := s.client()
	if err != nil {
		return &warden.ErrSandbox{Op: "stop", Message: err.Error()}
	}

	secs := int(s.cfg.stopTimeout / time.Second)
	if err := cli.ContainerStop(ctx, containerID, container.StopOptions{Timeout: &secs}); err != nil {
		if client.IsErrNotFound(err) {
			return &warden.ErrSandbox{Op: "stop", Message: "container not found: " + shortID(containerID)}
		}
		return &warden.ErrSandbox{Op: "stop", Message: err.Error()}
	}
	return nil
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
