package docker

import (
	"time"

	"github.com/docker/docker/client"
)

type config struct {
	image        string
	dockerfile   string
	contextDir   string
	autoBuild    bool
	stopTimeout  time.Duration
	pollInterval time.Duration
	portSpecs    []string
	client       client.APIClient
}

func defaultConfig() config {
	return config{
		image:        DefaultImageName,
		autoBuild:    true,
		stopTimeout:  10 * time.Second,
		pollInterval: 500 * time.Millisecond,
	}
}

// Option customizes a Sandbox.
type Option func(*config)

// WithImage sets the image the sandbox runs. The default is
// DefaultImageName.
func WithImage(image string) Option {
	return func(c *config) {
		c.image = image
	}
}

// WithDockerfile builds the sandbox image from the given Dockerfile instead
// of the embedded default. The build context is the Dockerfile's directory
// unless WithBuildContext overrides it.
func WithDockerfile(path string) Option {
	return func(c *config) {
		c.dockerfile = path
	}
}

// WithBuildContext sets the directory sent to the daemon as the image build
// context. The directory must contain a Dockerfile unless WithDockerfile
// names one.
func WithBuildContext(dir string) Option {
	return func(c *config) {
		c.contextDir = dir
	}
}

// WithAutoBuild controls whether Start builds the image when it is missing
// from the daemon. Enabled by default.
func WithAutoBuild(enabled bool) Option {
	return func(c *config) {
		c.autoBuild = enabled
	}
}

// WithStopTimeout sets how long Stop lets the container shut down before
// the daemon kills it. The default is 10 seconds.
func WithStopTimeout(d time.Duration) Option {
	return func(c *config) {
		c.stopTimeout = d
	}
}

// WithPollInterval sets how often Start polls the container state while
// waiting for readiness. The default is 500ms.
func WithPollInterval(d time.Duration) Option {
	return func(c *config) {
		c.pollInterval = d
	}
}

// WithPorts publishes container ports using docker's port mapping
// syntax, for example "8080:80/tcp". Mappings are parsed when Start runs.
func WithPorts(specs ...string) Option {
	return func(c *config) {
		c.portSpecs = append(c.portSpecs, specs...)
	}
}

// WithClient injects a Docker API client. Without it the sandbox builds one
// from the environment (DOCKER_HOST and friends) on first use.
func WithClient(cli client.APIClient) Option {
	return func(c *config) {
		c.client = cli
	}
}
