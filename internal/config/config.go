package config

import (
	"os"
	"strconv"

	"github.com/BurntSushi/toml"

	"github.com/nevindra/warden"
	"github.com/nevindra/warden/docker"
)

type Config struct {
	Sandbox  SandboxConfig  `toml:"sandbox"`
	Journal  JournalConfig  `toml:"journal"`
	Observer ObserverConfig `toml:"observer"`
}

type SandboxConfig struct {
	Image               string   `toml:"image"`
	Dockerfile          string   `toml:"dockerfile"`
	BuildContext        string   `toml:"build_context"`
	AutoBuild           bool     `toml:"auto_build"`
	Workspace           string   `toml:"workspace"`
	ExpireSeconds       int      `toml:"expire_seconds"`
	StartTimeoutSeconds int      `toml:"start_timeout_seconds"`
	StopTimeoutSeconds  int      `toml:"stop_timeout_seconds"`
	Ports               []string `toml:"ports"`
}

type JournalConfig struct {
	// Path is a SQLite file; DSN selects PostgreSQL instead when set.
	Path string `toml:"path"`
	DSN  string `toml:"dsn"`
}

type ObserverConfig struct {
	Enabled bool `toml:"enabled"`
}

// Default returns a Config with all defaults applied.
func Default() Config {
	return Config{
		Sandbox: SandboxConfig{
			Image:               docker.DefaultImageName,
			AutoBuild:           true,
			Workspace:           ".",
			ExpireSeconds:       warden.DefaultExpireSeconds,
			StartTimeoutSeconds: 30,
			StopTimeoutSeconds:  10,
		},
		Journal: JournalConfig{Path: "warden.db"},
	}
}

// Load reads config: defaults -> TOML file -> env vars (env wins).
func Load(path string) Config {
	cfg := Default()

	if path == "" {
		path = os.Getenv("WARDEN_CONFIG")
	}
	if path == "" {
		path = "warden.toml"
	}

	if data, err := os.ReadFile(path); err == nil {
		_ = toml.Unmarshal(data, &cfg)
	}

	// Env overrides
	if v := os.Getenv("WARDEN_IMAGE"); v != "" {
		cfg.Sandbox.Image = v
	}
	if v := os.Getenv("WARDEN_WORKSPACE"); v != "" {
		cfg.Sandbox.Workspace = v
	}
	if v := os.Getenv("WARDEN_EXPIRE_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Sandbox.ExpireSeconds = n
		}
	}
	if v := os.Getenv("WARDEN_JOURNAL_PATH"); v != "" {
		cfg.Journal.Path = v
	}
	if v := os.Getenv("WARDEN_JOURNAL_DSN"); v != "" {
		cfg.Journal.DSN = v
	}
	if os.Getenv("WARDEN_OBSERVER_ENABLED") == "true" || os.Getenv("WARDEN_OBSERVER_ENABLED") == "1" {
		cfg.Observer.Enabled = true
	}

	return cfg
}
