package docker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"

	"github.com/nevindra/warden"
)

const (
	testContainerID = "cafebabe0123456789abcdef"
	testExecID      = "exec-1"
)

var apiVersionPrefix = regexp.MustCompile(`^/v[0-9.]+`)

type hostPort struct {
	HostIP   string `json:"HostIp"`
	HostPort string `json:"HostPort"`
}

type createRequest struct {
	Image        string
	Env          []string
	WorkingDir   string
	OpenStdin    bool
	Tty          bool
	ExposedPorts map[string]struct{}
	HostConfig   struct {
		Binds        []string
		AutoRemove   bool
		PortBindings map[string][]hostPort
	}
}

// fakeDaemon speaks just enough of the Docker Engine API for the sandbox
// code paths under test. Configure its fields before issuing requests.
type fakeDaemon struct {
	t *testing.T

	containerID string
	imageExists bool
	inspect     []string // container status per inspect call, last repeats
	exitCode    int
	execStdout  string
	execStderr  string
	execDelay   time.Duration

	mu       sync.Mutex
	builds   int
	stops    int
	created  *createRequest
	inspectN int
}

func (d *fakeDaemon) sandbox(t *testing.T, opts ...Option) *Sandbox {
	t.Helper()
	ts := httptest.NewServer(d)
	t.Cleanup(ts.Close)

	cli, err := client.NewClientWithOpts(
		client.WithHost("tcp://"+ts.Listener.Addr().String()),
		client.WithAPIVersionNegotiation(),
	)
	if err != nil {
		t.Fatalf("new docker client: %v", err)
	}
	t.Cleanup(func() { _ = cli.Close() })

	base := []Option{WithClient(cli), WithAutoBuild(false), WithPollInterval(time.Millisecond)}
	return New(append(base, opts...)...)
}

func (d *fakeDaemon) buildCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.builds
}

func (d *fakeDaemon) stopCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stops
}

func (d *fakeDaemon) createdRequest() *createRequest {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.created
}

func (d *fakeDaemon) writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

func (d *fakeDaemon) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := apiVersionPrefix.ReplaceAllString(r.URL.Path, "")

	switch {
	case path == "/_ping":
		w.Header().Set("Api-Version", "1.47")
		w.Header().Set("OSType", "linux")
		w.WriteHeader(http.StatusOK)

	case r.Method == http.MethodGet && strings.HasPrefix(path, "/images/") && strings.HasSuffix(path, "/json"):
		if d.imageExists {
			d.writeJSON(w, http.StatusOK, `{"Id":"sha256:feedface"}`)
			return
		}
		name := strings.TrimSuffix(strings.TrimPrefix(path, "/images/"), "/json")
		d.writeJSON(w, http.StatusNotFound, `{"message":"No such image: `+name+`"}`)

	case r.Method == http.MethodPost && path == "/build":
		_, _ = io.Copy(io.Discard, r.Body)
		d.mu.Lock()
		d.builds++
		d.mu.Unlock()
		d.writeJSON(w, http.StatusOK, `{"stream":"build complete"}`)

	case r.Method == http.MethodPost && path == "/containers/create":
		var req createRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			d.writeJSON(w, http.StatusInternalServerError, `{"message":"bad create request"}`)
			return
		}
		d.mu.Lock()
		d.created = &req
		d.mu.Unlock()
		d.writeJSON(w, http.StatusCreated, `{"Id":"`+d.containerID+`"}`)

	case r.Method == http.MethodPost && path == "/containers/"+d.containerID+"/start":
		w.WriteHeader(http.StatusNoContent)

	case r.Method == http.MethodGet && path == "/containers/"+d.containerID+"/json":
		d.mu.Lock()
		status := "running"
		if len(d.inspect) > 0 {
			idx := d.inspectN
			if idx >= len(d.inspect) {
				idx = len(d.inspect) - 1
			}
			status = d.inspect[idx]
			d.inspectN++
		}
		d.mu.Unlock()
		d.writeJSON(w, http.StatusOK,
			fmt.Sprintf(`{"Id":%q,"State":{"Status":%q,"Running":%v}}`, d.containerID, status, status == "running"))

	case r.Method == http.MethodPost && strings.HasPrefix(path, "/containers/") && strings.HasSuffix(path, "/stop"):
		id := strings.TrimSuffix(strings.TrimPrefix(path, "/containers/"), "/stop")
		if id != d.containerID {
			d.writeJSON(w, http.StatusNotFound, `{"message":"No such container: `+id+`"}`)
			return
		}
		d.mu.Lock()
		d.stops++
		d.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)

	case r.Method == http.MethodPost && strings.HasPrefix(path, "/containers/") && strings.HasSuffix(path, "/exec"):
		id := strings.TrimSuffix(strings.TrimPrefix(path, "/containers/"), "/exec")
		if id != d.containerID {
			d.writeJSON(w, http.StatusNotFound, `{"message":"No such container: `+id+`"}`)
			return
		}
		d.writeJSON(w, http.StatusCreated, `{"Id":"`+testExecID+`"}`)

	case r.Method == http.MethodPost && path == "/exec/"+testExecID+"/start":
		hj, ok := w.(http.Hijacker)
		if !ok {
			d.writeJSON(w, http.StatusInternalServerError, `{"message":"hijack unsupported"}`)
			return
		}
		conn, _, err := hj.Hijack()
		if err != nil {
			return
		}
		defer conn.Close()
		fmt.Fprint(conn, "HTTP/1.1 101 UPGRADED\r\n"+
			"Content-Type: application/vnd.docker.raw-stream\r\n"+
			"Connection: Upgrade\r\nUpgrade: tcp\r\n\r\n")
		if d.execDelay > 0 {
			time.Sleep(d.execDelay)
		}
		_, _ = stdcopy.NewStdWriter(conn, stdcopy.Stdout).Write([]byte(d.execStdout))
		_, _ = stdcopy.NewStdWriter(conn, stdcopy.Stderr).Write([]byte(d.execStderr))

	case r.Method == http.MethodGet && path == "/exec/"+testExecID+"/json":
		d.writeJSON(w, http.StatusOK, fmt.Sprintf(`{"ExitCode":%d,"Running":false}`, d.exitCode))

	default:
		d.t.Logf("fake daemon: unhandled %s %s", r.Method, r.URL.Path)
		d.writeJSON(w, http.StatusNotFound, `{"message":"page not found"}`)
	}
}

func hasString(list []string, want string) bool {
	for _, s := range list {
		if s == want {
			return true
		}
	}
	return false
}

func TestStartCreatesContainer(t *testing.T) {
	d := &fakeDaemon{t: t, containerID: testContainerID, inspect: []string{"created", "running"}}
	sb := d.sandbox(t)
	dir := t.TempDir()

	id, err := sb.Start(context.Background(), warden.StartOptions{
		WorkingDir: dir,
		Env:        map[string]string{"API_TOKEN": "abc123"},
		Expiry:     warden.HoldFor(120),
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if id != testContainerID {
		t.Errorf("Start returned %q, want %q", id, testContainerID)
	}

	req := d.createdRequest()
	if req == nil {
		t.Fatal("no create request reached the daemon")
	}
	if req.Image != DefaultImageName {
		t.Errorf("image = %q, want %q", req.Image, DefaultImageName)
	}
	for _, env := range []string{"EXPIRE_SECONDS=120", "SHELL=/bin/bash", "API_TOKEN=abc123"} {
		if !hasString(req.Env, env) {
			t.Errorf("env missing %q, got %v", env, req.Env)
		}
	}
	if req.WorkingDir != "/workspace" {
		t.Errorf("working dir = %q, want /workspace", req.WorkingDir)
	}
	if !req.Tty || !req.OpenStdin {
		t.Error("container should allocate a tty with stdin open")
	}
	if want := dir + ":/workspace:rw"; !hasString(req.HostConfig.Binds, want) {
		t.Errorf("binds missing %q, got %v", want, req.HostConfig.Binds)
	}
	if !req.HostConfig.AutoRemove {
		t.Error("container should be auto-removed")
	}
}

func TestStartExpiryEnv(t *testing.T) {
	tests := []struct {
		name   string
		expiry warden.ExpiryPolicy
		want   string
	}{
		{"bounded", warden.HoldFor(45), "EXPIRE_SECONDS=45"},
		{"indefinite", warden.HoldIndefinitely(), "EXPIRE_SECONDS=0"},
		{"unset falls back to default", warden.ExpiryPolicy{}, "EXPIRE_SECONDS=300"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &fakeDaemon{t: t, containerID: testContainerID}
			sb := d.sandbox(t)

			_, err := sb.Start(context.Background(), warden.StartOptions{
				WorkingDir: t.TempDir(),
				Expiry:     tt.expiry,
			})
			if err != nil {
				t.Fatalf("Start: %v", err)
			}
			req := d.createdRequest()
			if !hasString(req.Env, tt.want) {
				t.Errorf("env missing %q, got %v", tt.want, req.Env)
			}
		})
	}
}

func TestStartPublishesPorts(t *testing.T) {
	d := &fakeDaemon{t: t, containerID: testContainerID}
	sb := d.sandbox(t, WithPorts("8080:80/tcp"))

	if _, err := sb.Start(context.Background(), warden.StartOptions{WorkingDir: t.TempDir()}); err != nil {
		t.Fatalf("Start: %v", err)
	}

	req := d.createdRequest()
	if _, ok := req.ExposedPorts["80/tcp"]; !ok {
		t.Errorf("port 80/tcp not exposed, got %v", req.ExposedPorts)
	}
	bindings := req.HostConfig.PortBindings["80/tcp"]
	if len(bindings) != 1 || bindings[0].HostPort != "8080" {
		t.Errorf("port bindings = %v, want host port 8080", bindings)
	}
}

func TestStartCustomImage(t *testing.T) {
	d := &fakeDaemon{t: t, containerID: testContainerID, imageExists: true}
	sb := d.sandbox(t, WithImage("custom/sandbox:v2"))

	if _, err := sb.Start(context.Background(), warden.StartOptions{WorkingDir: t.TempDir()}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if got := d.createdRequest().Image; got != "custom/sandbox:v2" {
		t.Errorf("image = %q, want custom/sandbox:v2", got)
	}
}

func TestStartMissingWorkingDir(t *testing.T) {
	d := &fakeDaemon{t: t, containerID: testContainerID}
	sb := d.sandbox(t)

	_, err := sb.Start(context.Background(), warden.StartOptions{
		WorkingDir: filepath.Join(t.TempDir(), "does-not-exist"),
	})
	var se *warden.ErrSandbox
	if !errors.As(err, &se) {
		t.Fatalf("Start error = %v, want *warden.ErrSandbox", err)
	}
	if se.Op != "start" {
		t.Errorf("op = %q, want start", se.Op)
	}
	if d.createdRequest() != nil {
		t.Error("container was created despite the missing working directory")
	}
}

func TestStartContainerDiesBeforeReady(t *testing.T) {
	d := &fakeDaemon{t: t, containerID: testContainerID, inspect: []string{"created", "exited"}}
	sb := d.sandbox(t)

	_, err := sb.Start(context.Background(), warden.StartOptions{WorkingDir: t.TempDir()})
	var se *warden.ErrSandbox
	if !errors.As(err, &se) {
		t.Fatalf("Start error = %v, want *warden.ErrSandbox", err)
	}
	if !strings.Contains(se.Message, "exited") {
		t.Errorf("message = %q, want the container status in it", se.Message)
	}
	if errors.Is(err, warden.ErrTimeout) {
		t.Error("a dead container is not a timeout")
	}
}

func TestStartTimeout(t *testing.T) {
	d := &fakeDaemon{t: t, containerID: testContainerID, inspect: []string{"created"}}
	sb := d.sandbox(t)

	_, err := sb.Start(context.Background(), warden.StartOptions{
		WorkingDir:   t.TempDir(),
		StartTimeout: 25 * time.Millisecond,
	})
	if !errors.Is(err, warden.ErrTimeout) {
		t.Fatalf("Start error = %v, want ErrTimeout", err)
	}
	var st *warden.ErrStartTimeout
	if !errors.As(err, &st) {
		t.Fatalf("Start error = %v, want *warden.ErrStartTimeout", err)
	}
	if st.Timeout != 25*time.Millisecond {
		t.Errorf("timeout = %v, want 25ms", st.Timeout)
	}
}

func TestStartAutoBuild(t *testing.T) {
	d := &fakeDaemon{t: t, containerID: testContainerID}
	sb := d.sandbox(t, WithAutoBuild(true))

	if _, err := sb.Start(context.Background(), warden.StartOptions{WorkingDir: t.TempDir()}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if got := d.buildCount(); got != 1 {
		t.Errorf("builds = %d, want 1", got)
	}
}

func TestStop(t *testing.T) {
	d := &fakeDaemon{t: t, containerID: testContainerID}
	sb := d.sandbox(t)

	if err := sb.Stop(context.Background(), testContainerID); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if got := d.stopCount(); got != 1 {
		t.Errorf("stops = %d, want 1", got)
	}
}

func TestStopMissingContainer(t *testing.T) {
	d := &fakeDaemon{t: t, containerID: testContainerID}
	sb := d.sandbox(t)

	err := sb.Stop(context.Background(), "deadbeefdeadbeefdead")
	var se *warden.ErrSandbox
	if !errors.As(err, &se) {
		t.Fatalf("Stop error = %v, want *warden.ErrSandbox", err)
	}
	if !strings.Contains(se.Message, "container not found") {
		t.Errorf("message = %q, want a not-found message", se.Message)
	}
}

func TestBuild(t *testing.T) {
	tests := []struct {
		name       string
		exists     bool
		force      bool
		wantBuilds int
	}{
		{"skips existing image", true, false, 0},
		{"builds missing image", false, false, 1},
		{"force rebuilds existing image", true, true, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &fakeDaemon{t: t, containerID: testContainerID, imageExists: tt.exists}
			sb := d.sandbox(t)

			if err := sb.Build(context.Background(), tt.force); err != nil {
				t.Fatalf("Build: %v", err)
			}
			if got := d.buildCount(); got != tt.wantBuilds {
				t.Errorf("builds = %d, want %d", got, tt.wantBuilds)
			}
		})
	}
}
