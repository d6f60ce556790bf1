package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	warden "github.com/nevindra/warden"
	"github.com/nevindra/warden/docker"
	"github.com/nevindra/warden/internal/config"
)

func cmdStart(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("start", flag.ExitOnError)
	cfgPath := fs.String("config", "", "path to a warden.toml config file")
	image := fs.String("image", "", "sandbox image, overrides config")
	workdir := fs.String("workdir", "", "host directory mounted at /workspace")
	expire := fs.String("expire", "", "seconds until expiry, 0 or negative for never")
	fs.Parse(args)

	cfg, expiry, err := loadConfig(*cfgPath, *image, *workdir, *expire)
	if err != nil {
		return err
	}
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close(ctx)

	runID, containerID, err := startSandbox(ctx, a, expiry)
	if err != nil {
		return err
	}
	log.Printf("run %s started (%s)", runID, expiry.OrDefault())
	fmt.Println(containerID)
	return nil
}

func cmdExec(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("exec", flag.ExitOnError)
	cfgPath := fs.String("config", "", "path to a warden.toml config file")
	timeout := fs.Duration("timeout", 0, "kill the command after this long, 0 for no limit")
	fs.Parse(args)

	rest := fs.Args()
	if len(rest) < 2 {
		return usage()
	}
	id := rest[0]
	command := splitDashDash(rest[1:])
	if len(command) == 0 {
		return usage()
	}

	a, err := newApp(ctx, config.Load(*cfgPath))
	if err != nil {
		return err
	}
	defer a.close(ctx)

	res, err := a.sandbox.Execute(ctx, id, command, *timeout)
	if err != nil {
		return err
	}
	os.Stdout.Write(res.Stdout)
	os.Stderr.Write(res.Stderr)
	if res.ExitCode != 0 {
		return exitCodeError{code: res.ExitCode}
	}
	return nil
}

func cmdRun(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	cfgPath := fs.String("config", "", "path to a warden.toml config file")
	image := fs.String("image", "", "sandbox image, overrides config")
	workdir := fs.String("workdir", "", "host directory mounted at /workspace")
	expire := fs.String("expire", "", "seconds until expiry, 0 or negative for never")
	timeout := fs.Duration("timeout", 0, "kill the command after this long, 0 for no limit")
	fs.Parse(args)

	command := splitDashDash(fs.Args())
	if len(command) == 0 {
		return usage()
	}

	cfg, expiry, err := loadConfig(*cfgPath, *image, *workdir, *expire)
	if err != nil {
		return err
	}
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close(ctx)

	runID, containerID, err := startSandbox(ctx, a, expiry)
	if err != nil {
		return err
	}

	began := time.Now()
	res, execErr := a.sandbox.Execute(ctx, containerID, command, *timeout)

	if a.journal != nil && execErr == nil {
		entry := warden.Exec{
			RunID:      runID,
			Command:    strings.Join(command, " "),
			ExitCode:   res.ExitCode,
			DurationMs: time.Since(began).Milliseconds(),
			At:         warden.NowUnix(),
		}
		if err := a.journal.RecordExec(ctx, entry); err != nil {
			log.Printf("journal: record exec: %v", err)
		}
	}

	// Stop must still run when ctx was cancelled by a signal mid-command.
	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Minute)
	defer cancel()
	if err := a.sandbox.Stop(stopCtx, containerID); err != nil {
		log.Printf("stop: %v", err)
	}
	if a.journal != nil {
		if err := a.journal.RecordExit(stopCtx, runID, "stopped", warden.NowUnix()); err != nil {
			log.Printf("journal: record exit: %v", err)
		}
	}

	if execErr != nil {
		return execErr
	}
	os.Stdout.Write(res.Stdout)
	os.Stderr.Write(res.Stderr)
	if res.ExitCode != 0 {
		return exitCodeError{code: res.ExitCode}
	}
	return nil
}

func cmdStop(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("stop", flag.ExitOnError)
	cfgPath := fs.String("config", "", "path to a warden.toml config file")
	fs.Parse(args)

	if fs.NArg() != 1 {
		return usage()
	}

	a, err := newApp(ctx, config.Load(*cfgPath))
	if err != nil {
		return err
	}
	defer a.close(ctx)

	id := fs.Arg(0)
	if err := a.sandbox.Stop(ctx, id); err != nil {
		return err
	}
	log.Printf("stopped %s", shortID(id))
	return nil
}

func cmdRuns(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("runs", flag.ExitOnError)
	cfgPath := fs.String("config", "", "path to a warden.toml config file")
	limit := fs.Int("limit", 20, "maximum number of runs to list")
	fs.Parse(args)

	a, err := newApp(ctx, config.Load(*cfgPath))
	if err != nil {
		return err
	}
	defer a.close(ctx)
	if a.journal == nil {
		return fmt.Errorf("no journal configured")
	}

	runs, err := a.journal.Runs(ctx, *limit)
	if err != nil {
		return err
	}
	for _, r := range runs {
		outcome := r.Outcome
		if outcome == "" {
			outcome = "running"
		}
		fmt.Printf("%s  %s  %-10s  %-18s  %s\n",
			r.ID,
			time.Unix(r.StartedAt, 0).Format("2006-01-02 15:04:05"),
			outcome,
			warden.EvaluateExpiry(r.ExpireSeconds),
			shortID(r.ContainerID))
	}
	return nil
}

func cmdBuild(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("build", flag.ExitOnError)
	cfgPath := fs.String("config", "", "path to a warden.toml config file")
	image := fs.String("image", "", "sandbox image, overrides config")
	force := fs.Bool("force", false, "rebuild even when the image already exists")
	fs.Parse(args)

	cfg := config.Load(*cfgPath)
	if *image != "" {
		cfg.Sandbox.Image = *image
	}

	sb := docker.New(sandboxOptions(cfg)...)
	if err := sb.Build(ctx, *force); err != nil {
		return err
	}
	log.Printf("image %s ready", cfg.Sandbox.Image)
	return nil
}

// loadConfig applies flag overrides on top of the file and env config and
// evaluates the effective expiry policy.
func loadConfig(path, image, workdir, expire string) (config.Config, warden.ExpiryPolicy, error) {
	cfg := config.Load(path)
	if image != "" {
		cfg.Sandbox.Image = image
	}
	if workdir != "" {
		cfg.Sandbox.Workspace = workdir
	}
	expiry := warden.EvaluateExpiry(cfg.Sandbox.ExpireSeconds)
	if expire != "" {
		n, err := strconv.Atoi(expire)
		if err != nil {
			return cfg, expiry, fmt.Errorf("parse -expire value %q: %w", expire, err)
		}
		expiry = warden.EvaluateExpiry(n)
	}
	return cfg, expiry, nil
}

// startSandbox starts a container and records the run in the journal. A
// journal failure does not tear down a sandbox that already started.
func startSandbox(ctx context.Context, a *app, expiry warden.ExpiryPolicy) (runID, containerID string, err error) {
	opts := warden.StartOptions{
		WorkingDir:   a.cfg.Sandbox.Workspace,
		Expiry:       expiry,
		StartTimeout: time.Duration(a.cfg.Sandbox.StartTimeoutSeconds) * time.Second,
	}
	containerID, err = a.sandbox.Start(ctx, opts)
	if err != nil {
		return "", "", err
	}
	runID = warden.NewRunID()
	if a.journal != nil {
		run := warden.Run{
			ID:            runID,
			ContainerID:   containerID,
			Image:         a.cfg.Sandbox.Image,
			WorkingDir:    a.cfg.Sandbox.Workspace,
			ExpireSeconds: expiry.OrDefault().Seconds(),
			StartedAt:     warden.NowUnix(),
		}
		if err := a.journal.RecordStart(ctx, run); err != nil {
			log.Printf("journal: record start: %v", err)
		}
	}
	return runID, containerID, nil
}

// splitDashDash strips the "--" separating flags from the command words.
func splitDashDash(args []string) []string {
	if len(args) > 0 && args[0] == "--" {
		return args[1:]
	}
	return args
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
