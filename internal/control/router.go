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

package control

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"runtime"
	"time"

	drovererrors "github.com/drover-sh/drover/pkg/errors"

	"github.com/drover-sh/drover/internal/metrics"
	"github.com/drover-sh/drover/internal/supervisor"
)

// Supervisor is the view of the running supervisor the control API
// exposes. *lifecycle.Controller implements it.
type Supervisor interface {
	// State is the lifecycle state name: running, draining, and so on.
	State() string

	// Addr is the bound listen address the workers share.
	Addr() string

	// StartedAt is when the pool reached running.
	StartedAt() time.Time

	// Status snapshots every worker identity.
	Status() []supervisor.WorkerRecord

	// Workers is the desired pool size.
	Workers() int

	// RunningCount is how many workers are currently live.
	RunningCount() int

	// Reload performs a rolling restart and blocks until it completes.
	Reload(ctx context.Context, trigger string) error

	// RequestShutdown asks the supervisor to drain and exit.
	RequestShutdown(reason string)
}

// router dispatches control API requests to the supervisor.
type router struct {
	mux *http.ServeMux
	cfg Config
	sup Supervisor
}

func newRouter(cfg Config, sup Supervisor) *router {
	r := &router{
		mux: http.NewServeMux(),
		cfg: cfg,
		sup: sup,
	}

	r.mux.HandleFunc("GET /v1/health", r.handleHealth)
	r.mux.HandleFunc("GET /v1/status", r.handleStatus)
	r.mux.HandleFunc("GET /v1/version", r.handleVersion)
	r.mux.HandleFunc("POST /v1/reload", r.handleReload)
	r.mux.HandleFunc("POST /v1/shutdown", r.handleShutdown)
	r.mux.Handle("GET /metrics", metrics.Handler())

	// Root endpoint for basic connectivity check
	r.mux.HandleFunc("GET /", r.handleRoot)

	return r
}

// ServeHTTP implements http.Handler.
func (r *router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// HealthResponse is the response format for /v1/health.
type HealthResponse struct {
	Status    string `json:"status"`
	State     string `json:"state"`
	Timestamp string `json:"timestamp"`
	Uptime    string `json:"uptime,omitempty"`
	Live      int    `json:"live"`
	Desired   int    `json:"desired"`
}

// handleHealth handles GET /v1/health. It answers 200 while at least one
// worker is live in a running pool, 503 otherwise, so it plugs directly
// into load balancer probes.
func (r *router) handleHealth(w http.ResponseWriter, req *http.Request) {
	state := r.sup.State()
	live := r.sup.RunningCount()
	desired := r.sup.Workers()

	status := "ok"
	code := http.StatusOK
	switch {
	case state != "running":
		status = state
		code = http.StatusServiceUnavailable
	case live == 0:
		status = "down"
		code = http.StatusServiceUnavailable
	case live < desired:
		status = "degraded"
	}

	var uptime string
	if started := r.sup.StartedAt(); !started.IsZero() {
		uptime = time.Since(started).Round(time.Second).String()
	}

	writeJSON(w, code, HealthResponse{
		Status:    status,
		State:     state,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Uptime:    uptime,
		Live:      live,
		Desired:   desired,
	})
}

// StatusResponse is the response format for /v1/status.
type StatusResponse struct {
	State     string                    `json:"state"`
	PID       int                       `json:"pid"`
	Addr      string                    `json:"addr,omitempty"`
	Version   string                    `json:"version,omitempty"`
	StartedAt time.Time                 `json:"started_at,omitzero"`
	Uptime    string                    `json:"uptime,omitempty"`
	Desired   int                       `json:"desired"`
	Live      int                       `json:"live"`
	Workers   []supervisor.WorkerRecord `json:"workers"`
}

// handleStatus handles GET /v1/status.
func (r *router) handleStatus(w http.ResponseWriter, req *http.Request) {
	resp := StatusResponse{
		State:   r.sup.State(),
		PID:     os.Getpid(),
		Addr:    r.sup.Addr(),
		Version: r.cfg.Version,
		Desired: r.sup.Workers(),
		Live:    r.sup.RunningCount(),
		Workers: r.sup.Status(),
	}
	if started := r.sup.StartedAt(); !started.IsZero() {
		resp.StartedAt = started
		resp.Uptime = time.Since(started).Round(time.Second).String()
	}

	writeJSON(w, http.StatusOK, resp)
}

// VersionResponse is the response format for /v1/version.
type VersionResponse struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// handleVersion handles GET /v1/version.
func (r *router) handleVersion(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, http.StatusOK, VersionResponse{
		Version:   r.cfg.Version,
		Commit:    r.cfg.Commit,
		BuildDate: r.cfg.BuildDate,
		GoVersion: runtime.Version(),
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	})
}

// ReloadResponse is the response format for /v1/reload.
type ReloadResponse struct {
	Status  string                    `json:"status"`
	Workers []supervisor.WorkerRecord `json:"workers,omitempty"`
}

// handleReload handles POST /v1/reload. The call is synchronous: it
// returns once every worker has been replaced, or with the first
// replacement failure.
func (r *router) handleReload(w http.ResponseWriter, req *http.Request) {
	if err := r.sup.Reload(req.Context(), "api"); err != nil {
		switch {
		case drovererrors.Is(err, supervisor.ErrReloadInProgress):
			writeError(w, http.StatusConflict, err.Error())
		case drovererrors.Is(err, supervisor.ErrNotRunning):
			writeError(w, http.StatusConflict, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("rolling restart failed: %v", err))
		}
		return
	}

	writeJSON(w, http.StatusOK, ReloadResponse{
		Status:  "reloaded",
		Workers: r.sup.Status(),
	})
}

// ShutdownResponse is the response format for /v1/shutdown.
type ShutdownResponse struct {
	Status string `json:"status"`
}

// handleShutdown handles POST /v1/shutdown. The shutdown happens after
// the response is written; repeated calls are harmless.
func (r *router) handleShutdown(w http.ResponseWriter, req *http.Request) {
	r.sup.RequestShutdown("api")
	writeJSON(w, http.StatusAccepted, ShutdownResponse{Status: "draining"})
}

// handleRoot handles GET / for basic connectivity.
func (r *router) handleRoot(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"name":    "drover",
		"version": r.cfg.Version,
	})
}
