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

// Command drover supervises a pool of HTTP worker processes sharing one
// listening socket.
//
// Usage:
//
//	drover [flags] -- command [args...]
//
// The command after "--" is spawned once per worker; each worker inherits
// the shared socket and must speak the readiness contract (see pkg/worker
// for the Go harness). drover runs in the foreground until the pool has
// drained.
//
// Exit codes: 0 clean stop, 2 invalid configuration, 3 socket bind
// failure, 4 workers failed to start, 1 any other runtime failure.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/drover-sh/drover/internal/config"
	"github.com/drover-sh/drover/internal/lifecycle"
	"github.com/drover-sh/drover/internal/log"
	drovererrors "github.com/drover-sh/drover/pkg/errors"
)

// Version information (injected via ldflags at build time)
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		configPath    = flag.String("config", "", "Path to YAML configuration file")
		host          = flag.String("host", "", "Bind address for the shared socket")
		port          = flag.Int("port", 0, "Bind port for the shared socket")
		workers       = flag.Int("workers", 0, "Number of worker processes (default: CPU count)")
		controlSocket = flag.String("control-socket", "", "Unix socket path for the control API")
		controlTCP    = flag.String("control-tcp", "", "TCP address for the control API (host:port)")
		pidFile       = flag.String("pid-file", "", "Path to the supervisor PID file")
		reload        = flag.Bool("reload", false, "Watch the working directory and rolling-restart on changes")
		allowRemote   = flag.Bool("allow-remote", false, "Allow the control API to bind non-loopback addresses (SECURITY WARNING)")
		showVersion   = flag.Bool("version", false, "Show version information")
	)
	flag.Usage = usage
	flag.Parse()

	if *showVersion {
		fmt.Printf("drover %s (commit: %s, built: %s)\n", version, commit, buildDate)
		return 0
	}

	// Initialize structured logging from environment; the controller
	// replaces this with the config-driven logger once it exists.
	logger := log.New(log.FromEnv())
	slog.SetDefault(logger)

	command := flag.Args()
	if len(command) == 0 {
		fmt.Fprintln(os.Stderr, "drover: no worker command given")
		fmt.Fprintln(os.Stderr, "")
		usage()
		return drovererrors.ExitConfig
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("Failed to load config", log.Error(err))
		return drovererrors.ExitCode(err)
	}

	// Apply CLI flag overrides
	if *host != "" {
		cfg.Server.Host = *host
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *workers != 0 {
		cfg.Server.Workers = *workers
	}
	if *controlSocket != "" {
		cfg.Control.SocketPath = *controlSocket
	}
	if *controlTCP != "" {
		cfg.Control.TCPAddr = *controlTCP
	}
	if *pidFile != "" {
		cfg.PIDFile = *pidFile
	}
	if *reload {
		cfg.Reload.Enabled = true
	}
	if *allowRemote {
		cfg.Control.AllowRemote = true
		logger.Warn("--allow-remote is enabled. The control API will accept connections from any network address; it can stop and reload this service, so keep a strong auth token on it.")
	}

	// Flags bypass Load's validation, so check the merged result.
	if err := cfg.Validate(); err != nil {
		logger.Error("Invalid configuration", log.Error(err))
		return drovererrors.ExitConfig
	}

	ctrl, err := lifecycle.New(cfg, command, lifecycle.Options{
		Version:   version,
		Commit:    commit,
		BuildDate: buildDate,
	})
	if err != nil {
		logger.Error("Failed to create supervisor", log.Error(err))
		return drovererrors.ExitCode(err)
	}
	slog.SetDefault(ctrl.Logger())

	// Run blocks until the pool has drained; it owns signal handling
	// (SIGTERM/SIGINT drain, SIGHUP rolling restart).
	if err := ctrl.Run(context.Background()); err != nil {
		slog.Error("Supervisor failed", log.Error(err))
		return drovererrors.ExitCode(err)
	}

	return 0
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: drover [flags] -- command [args...]

Supervise a pool of worker processes serving HTTP on one shared socket.
The command after "--" is launched once per worker.

Examples:
  drover -- ./myserver
  drover -workers 4 -port 8080 -- ./myserver --flag value
  drover -reload -- ./myserver

Flags:
`)
	flag.PrintDefaults()
}
