// Copyright 2026 The Drover Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

//go:build unix

package e2e

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/drover-sh/drover/internal/ctlclient"
)

// pool is one supervised drover process under test.
type pool struct {
	t       *testing.T
	cmd     *exec.Cmd
	api     *ctlclient.Client
	addr    string // host:port the workers serve on
	socket  string // control socket path
	journal string // journal path when withJournal was used
	httpc   *http.Client
	output  *safeBuffer

	done    chan struct{}
	exitErr error // valid once done is closed
}

type poolConfig struct {
	workers    int
	port       int
	dir        string
	flags      []string
	workerArgs []string
	env        map[string]string
	journal    bool
}

type poolOption func(*poolConfig)

func withWorkers(n int) poolOption {
	return func(c *poolConfig) { c.workers = n }
}

func withPort(p int) poolOption {
	return func(c *poolConfig) { c.port = p }
}

// withFlags appends extra drover flags ahead of the "--" separator.
func withFlags(flags ...string) poolOption {
	return func(c *poolConfig) { c.flags = append(c.flags, flags...) }
}

// withDir sets the supervisor's working directory, which is what the
// -reload watcher observes.
func withDir(dir string) poolOption {
	return func(c *poolConfig) { c.dir = dir }
}

func withWorkerArgs(args ...string) poolOption {
	return func(c *poolConfig) { c.workerArgs = append(c.workerArgs, args...) }
}

func withEnv(key, value string) poolOption {
	return func(c *poolConfig) { c.env[key] = value }
}

func withJournal() poolOption {
	return func(c *poolConfig) { c.journal = true }
}

// startPool launches drover with the test worker and registers cleanup.
// It does not wait for readiness; tests that need a serving pool call
// waitRunning, tests for failed starts call waitExit.
func startPool(t *testing.T, opts ...poolOption) *pool {
	t.Helper()

	cfg := poolConfig{
		workers: 2,
		env: map[string]string{
			// Keep crash/restart tests fast; the default backoff cap
			// stretches a two-restart test past a minute.
			"DROVER_BACKOFF_CAP":      "100ms",
			"DROVER_STARTUP_TIMEOUT":  "10s",
			"DROVER_GRACE_PERIOD":     "5s",
			"DROVER_SHUTDOWN_TIMEOUT": "10s",
		},
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.port == 0 {
		cfg.port = freePort(t)
	}

	p := &pool{
		t:      t,
		addr:   fmt.Sprintf("127.0.0.1:%d", cfg.port),
		socket: shortSocketPath(t),
		output: &safeBuffer{},
		done:   make(chan struct{}),
		httpc: &http.Client{
			Timeout: 5 * time.Second,
			// Fresh connections make the kernel's accept balancing
			// observable instead of pinning a keep-alive to one worker.
			Transport: &http.Transport{DisableKeepAlives: true},
		},
	}

	args := []string{
		"-host", "127.0.0.1",
		"-port", strconv.Itoa(cfg.port),
		"-workers", strconv.Itoa(cfg.workers),
		"-control-socket", p.socket,
	}
	args = append(args, cfg.flags...)
	if cfg.journal {
		p.journal = filepath.Join(t.TempDir(), "journal.jsonl")
		cfg.env["DROVER_JOURNAL"] = p.journal
	}
	args = append(args, "--", workerBin)
	args = append(args, cfg.workerArgs...)

	cmd := exec.Command(droverBin, args...)
	cmd.Dir = cfg.dir
	cmd.Env = scrubEnv(cfg.env)
	cmd.Stdout = p.output
	cmd.Stderr = p.output
	if err := cmd.Start(); err != nil {
		t.Fatalf("start drover: %v", err)
	}
	p.cmd = cmd

	go func() {
		p.exitErr = cmd.Wait()
		close(p.done)
	}()

	client, err := ctlclient.New(ctlclient.WithTransport(ctlclient.NewUnixTransport(p.socket)))
	if err != nil {
		t.Fatalf("control client: %v", err)
	}
	p.api = client

	t.Cleanup(func() {
		p.stop()
		if t.Failed() {
			t.Logf("drover output:\n%s", p.output.String())
		}
	})
	return p
}

// scrubEnv builds the child environment: the ambient environment minus
// any DROVER_ variables, plus the overrides. A developer's exported
// drover settings must not leak into the tests.
func scrubEnv(overrides map[string]string) []string {
	env := make([]string, 0, len(os.Environ())+len(overrides))
	for _, kv := range os.Environ() {
		if strings.HasPrefix(kv, "DROVER_") {
			continue
		}
		env = append(env, kv)
	}
	for k, v := range overrides {
		env = append(env, k+"="+v)
	}
	return env
}

// stop terminates the supervisor if a test has not already shut it down.
func (p *pool) stop() {
	select {
	case <-p.done:
		return
	default:
	}

	p.cmd.Process.Signal(syscall.SIGTERM)
	select {
	case <-p.done:
	case <-time.After(20 * time.Second):
		p.cmd.Process.Kill()
		<-p.done
	}
}

// signal delivers sig to the supervisor process.
func (p *pool) signal(sig os.Signal) {
	p.t.Helper()
	if err := p.cmd.Process.Signal(sig); err != nil {
		p.t.Fatalf("signal %v: %v", sig, err)
	}
}

// exitCode reports the supervisor's exit code; valid once it has exited.
func (p *pool) exitCode() int {
	if p.exitErr == nil {
		return 0
	}
	var exit *exec.ExitError
	if errors.As(p.exitErr, &exit) {
		return exit.ExitCode()
	}
	return -1
}

// waitExit blocks until the supervisor exits and returns its exit code.
func (p *pool) waitExit(timeout time.Duration) int {
	p.t.Helper()
	select {
	case <-p.done:
	case <-time.After(timeout):
		p.t.Fatalf("drover still running after %v\n%s", timeout, p.output.String())
	}
	if p.exitErr != nil {
		var exit *exec.ExitError
		if !errors.As(p.exitErr, &exit) {
			p.t.Fatalf("drover exit: %v", p.exitErr)
		}
	}
	return p.exitCode()
}

// waitRunning polls the control API until the pool reports every worker
// live. The control socket only appears once the pool is running, so
// dial errors mean "keep waiting".
func (p *pool) waitRunning(timeout time.Duration) {
	p.t.Helper()
	deadline := time.Now().Add(timeout)
	for {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		health, err := p.api.Health(ctx)
		cancel()
		if err == nil && health.Status == "ok" {
			return
		}
		if time.Now().After(deadline) {
			p.t.Fatalf("pool not running after %v (health: %+v, err: %v)\n%s",
				timeout, health, err, p.output.String())
		}
		select {
		case <-p.done:
			p.t.Fatalf("drover exited with code %d while starting\n%s", p.exitCode(), p.output.String())
		case <-time.After(50 * time.Millisecond):
		}
	}
}

// waitStatus polls /v1/status until pred accepts a snapshot, and
// returns it.
func (p *pool) waitStatus(timeout time.Duration, want string, pred func(*ctlclient.StatusResponse) bool) *ctlclient.StatusResponse {
	p.t.Helper()
	deadline := time.Now().Add(timeout)
	var last *ctlclient.StatusResponse
	for {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		status, err := p.api.Status(ctx)
		cancel()
		if err == nil {
			last = status
			if pred(status) {
				return status
			}
		}
		if time.Now().After(deadline) {
			p.t.Fatalf("pool never reached %s within %v (last status: %+v)\n%s",
				want, timeout, last, p.output.String())
		}
		select {
		case <-p.done:
			p.t.Fatalf("drover exited with code %d while waiting for %s\n%s", p.exitCode(), want, p.output.String())
		case <-time.After(50 * time.Millisecond):
		}
	}
}

// status fetches one pool snapshot.
func (p *pool) status() *ctlclient.StatusResponse {
	p.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	status, err := p.api.Status(ctx)
	if err != nil {
		p.t.Fatalf("status: %v", err)
	}
	return status
}

// health fetches one health snapshot.
func (p *pool) health() *ctlclient.HealthResponse {
	p.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	health, err := p.api.Health(ctx)
	if err != nil {
		p.t.Fatalf("health: %v", err)
	}
	return health
}

// get issues one HTTP request against the pool's shared socket.
func (p *pool) get(path string) (string, error) {
	resp, err := p.httpc.Get("http://" + p.addr + path)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("GET %s: status %d", path, resp.StatusCode)
	}
	return string(body), nil
}

// mustGet is get with failure handling.
func (p *pool) mustGet(path string) string {
	p.t.Helper()
	body, err := p.get(path)
	if err != nil {
		p.t.Fatalf("GET %s: %v", path, err)
	}
	return body
}

// ctl runs droverctl against this pool's control socket.
func (p *pool) ctl(args ...string) (stdout, stderr string, code int) {
	p.t.Helper()
	return runCtl(p.t, append([]string{"--socket", p.socket}, args...)...)
}

// runCtl runs the droverctl binary and returns its output and exit code.
func runCtl(t *testing.T, args ...string) (stdout, stderr string, code int) {
	t.Helper()

	var out, errOut bytes.Buffer
	cmd := exec.Command(droverctlBin, args...)
	cmd.Env = scrubEnv(nil)
	cmd.Stdout = &out
	cmd.Stderr = &errOut

	err := cmd.Run()
	if err != nil {
		var exit *exec.ExitError
		if !errors.As(err, &exit) {
			t.Fatalf("run droverctl %v: %v", args, err)
		}
		return out.String(), errOut.String(), exit.ExitCode()
	}
	return out.String(), errOut.String(), 0
}

// freePort reserves an ephemeral port and frees it for the supervisor
// to bind.
func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("reserve port: %v", err)
	}
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port
}

// shortSocketPath returns a control socket path short enough for the
// sun_path limit; t.TempDir grows past it under long test names.
func shortSocketPath(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "drover")
	if err != nil {
		t.Fatalf("socket dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })
	return filepath.Join(dir, "d.sock")
}

// safeBuffer collects child output from both stdio pipes.
type safeBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *safeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *safeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
