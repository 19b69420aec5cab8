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

// Package control serves the supervisor's control API: health, status,
// rolling restart, and graceful shutdown, over a Unix socket and
// optionally TCP.
package control

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/drover-sh/drover/internal/config"
	"github.com/drover-sh/drover/internal/log"
)

// Config describes the control API listeners and identity.
type Config struct {
	// SocketPath is the Unix socket to serve on. Empty disables it.
	SocketPath string

	// TCPAddr optionally serves the API over TCP (host:port).
	TCPAddr string

	// AllowRemote permits a non-loopback TCPAddr.
	AllowRemote bool

	// AuthToken is the bearer token required on TCP connections. Unix
	// socket clients are trusted by file permission instead.
	AuthToken string

	// Build identity, reported by /v1/version.
	Version   string
	Commit    string
	BuildDate string

	// Logger receives request logs. Nil uses slog.Default.
	Logger *slog.Logger
}

// Server is the control API server. One http.Server fans in from every
// configured listener.
type Server struct {
	cfg    Config
	logger *slog.Logger
	server *http.Server

	mu        sync.Mutex
	listeners []net.Listener
	started   bool
}

// New creates a control server for the given supervisor view.
func New(cfg Config, sup Supervisor) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = log.WithComponent(logger, "control")

	router := newRouter(cfg, sup)

	var handler http.Handler = router
	if cfg.AuthToken != "" {
		handler = requireBearer(cfg.AuthToken, handler)
	}
	handler = log.NewHTTPMiddleware(logger).Wrap(handler)

	return &Server{
		cfg:    cfg,
		logger: logger,
		server: &http.Server{
			Handler:      handler,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}
}

// Start binds every configured listener and begins serving. A bind
// failure on any listener fails the whole start; serve errors after a
// successful start are logged, not returned.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return fmt.Errorf("control server already started")
	}

	if s.cfg.SocketPath == "" && s.cfg.TCPAddr == "" {
		return fmt.Errorf("control server has no listener configured")
	}

	if s.cfg.SocketPath != "" {
		ln, err := newUnixListener(s.cfg.SocketPath)
		if err != nil {
			return err
		}
		s.listeners = append(s.listeners, ln)
	}

	if s.cfg.TCPAddr != "" {
		ln, err := newTCPListener(s.cfg.TCPAddr, s.cfg.AllowRemote, s.cfg.AuthToken)
		if err != nil {
			s.closeListeners()
			return err
		}
		s.listeners = append(s.listeners, ln)
	}

	for _, ln := range s.listeners {
		s.logger.Info("control API listening",
			log.String("network", ln.Addr().Network()),
			log.String("addr", ln.Addr().String()),
		)
		go func(ln net.Listener) {
			if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
				s.logger.Error("control API serve failed",
					log.String("addr", ln.Addr().String()),
					log.Error(err),
				)
			}
		}(ln)
	}

	s.started = true
	return nil
}

// Shutdown stops the server, waiting for in-flight requests, and removes
// the socket file.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	started := s.started
	s.mu.Unlock()
	if !started {
		return nil
	}

	err := s.server.Shutdown(ctx)

	if s.cfg.SocketPath != "" {
		if rmErr := os.Remove(s.cfg.SocketPath); rmErr != nil && !os.IsNotExist(rmErr) {
			s.logger.Warn("socket file removal failed", log.Error(rmErr))
		}
	}
	return err
}

func (s *Server) closeListeners() {
	for _, ln := range s.listeners {
		ln.Close()
	}
	s.listeners = nil
}

// newUnixListener creates the Unix socket listener: private directory,
// stale socket removed, socket mode 0600 so only the owner can control
// the supervisor.
func newUnixListener(socketPath string) (net.Listener, error) {
	dir := filepath.Dir(socketPath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create socket directory: %w", err)
	}

	if err := os.Remove(socketPath); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to remove existing socket: %w", err)
	}

	ln, err := net.Listen("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on Unix socket: %w", err)
	}

	if err := os.Chmod(socketPath, 0600); err != nil {
		ln.Close()
		return nil, fmt.Errorf("failed to set socket permissions: %w", err)
	}

	return ln, nil
}

// newTCPListener creates the optional TCP listener. Non-loopback binds
// are refused without allowRemote, and refused outright without a token:
// the control API can shut the whole service down.
func newTCPListener(addr string, allowRemote bool, token string) (net.Listener, error) {
	if host, _, err := net.SplitHostPort(addr); err == nil && !config.IsLoopbackHost(host) {
		if !allowRemote {
			return nil, fmt.Errorf(
				"binding the control API to %s exposes shutdown and reload to the network; set control.allow_remote to permit it", addr)
		}
		if token == "" {
			return nil, fmt.Errorf(
				"refusing to bind the control API to %s without control.auth_token", addr)
		}
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on TCP: %w", err)
	}
	return ln, nil
}
