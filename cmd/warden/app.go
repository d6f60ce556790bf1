package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	warden "github.com/nevindra/warden"
	"github.com/nevindra/warden/docker"
	"github.com/nevindra/warden/internal/config"
	"github.com/nevindra/warden/journal/postgres"
	"github.com/nevindra/warden/journal/sqlite"
	"github.com/nevindra/warden/observer"
)

// app holds the wired-up pieces every subcommand needs: the sandbox
// (observed when the observer is enabled), the journal and the
// observability shutdown hook.
type app struct {
	cfg      config.Config
	docker   *docker.Sandbox
	sandbox  warden.Sandbox
	journal  warden.Journal
	pool     *pgxpool.Pool
	shutdown func(context.Context) error
}

func newApp(ctx context.Context, cfg config.Config) (*app, error) {
	a := &app{cfg: cfg, docker: docker.New(sandboxOptions(cfg)...)}
	a.sandbox = a.docker
	a.shutdown = func(context.Context) error { return nil }

	if cfg.Observer.Enabled {
		inst, stop, err := observer.Init(ctx)
		if err != nil {
			return nil, fmt.Errorf("observer: %w", err)
		}
		a.sandbox = observer.WrapSandbox(a.docker, inst)
		a.shutdown = stop
	}

	switch {
	case cfg.Journal.DSN != "":
		pool, err := pgxpool.New(ctx, cfg.Journal.DSN)
		if err != nil {
			a.close(ctx)
			return nil, fmt.Errorf("journal: %w", err)
		}
		a.pool = pool
		a.journal = postgres.New(pool)
	case cfg.Journal.Path != "":
		a.journal = sqlite.New(cfg.Journal.Path)
	}
	if a.journal != nil {
		if err := a.journal.Init(ctx); err != nil {
			a.close(ctx)
			return nil, fmt.Errorf("journal: %w", err)
		}
	}
	return a, nil
}

func (a *app) close(ctx context.Context) {
	if a.journal != nil {
		if err := a.journal.Close(); err != nil {
			log.Printf("journal close: %v", err)
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}
	if err := a.shutdown(ctx); err != nil {
		log.Printf("observer shutdown: %v", err)
	}
}

// sandboxOptions translates the sandbox section of the config into
// docker options.
func sandboxOptions(cfg config.Config) []docker.Option {
	opts := []docker.Option{
		docker.WithImage(cfg.Sandbox.Image),
		docker.WithAutoBuild(cfg.Sandbox.AutoBuild),
	}
	if cfg.Sandbox.Dockerfile != "" {
		opts = append(opts, docker.WithDockerfile(cfg.Sandbox.Dockerfile))
	}
	if cfg.Sandbox.BuildContext != "" {
		opts = append(opts, docker.WithBuildContext(cfg.Sandbox.BuildContext))
	}
	if cfg.Sandbox.StopTimeoutSeconds > 0 {
		opts = append(opts, docker.WithStopTimeout(time.Duration(cfg.Sandbox.StopTimeoutSeconds)*time.Second))
	}
	if len(cfg.Sandbox.Ports) > 0 {
		opts = append(opts, docker.WithPorts(cfg.Sandbox.Ports...))
	}
	return opts
}
