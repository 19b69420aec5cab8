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

package worker

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/drover-sh/drover/internal/netbind"
)

// DefaultGracePeriod is the drain window assumed outside supervision.
const DefaultGracePeriod = 30 * time.Second

// Supervised reports whether the process was launched by a drover
// supervisor.
func Supervised() bool {
	return os.Getenv(netbind.ListenFDEnv) != ""
}

// ID returns the worker's stable identity assigned by the supervisor,
// or -1 outside supervision.
func ID() int {
	id, err := strconv.Atoi(os.Getenv(netbind.WorkerIDEnv))
	if err != nil {
		return -1
	}
	return id
}

// GracePeriod returns the drain window granted by the supervisor, or
// DefaultGracePeriod outside supervision.
func GracePeriod() time.Duration {
	if v := os.Getenv(netbind.GracePeriodEnv); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return DefaultGracePeriod
}

// Listen returns the listener the application should serve on.
//
// Under supervision this adopts the inherited socket named by
// DROVER_LISTEN_FD; every worker in the pool accepts from the same
// kernel queue. Standalone it binds DROVER_HOST:DROVER_PORT directly.
// The adopted descriptor is consumed: Listen duplicates it into the
// listener and closes the original.
func Listen() (net.Listener, error) {
	fdStr := os.Getenv(netbind.ListenFDEnv)
	if fdStr == "" {
		return listenStandalone()
	}

	fd, err := strconv.Atoi(fdStr)
	if err != nil || fd < 3 {
		return nil, fmt.Errorf("worker: invalid %s value %q", netbind.ListenFDEnv, fdStr)
	}

	f := os.NewFile(uintptr(fd), "drover-listener")
	if f == nil {
		return nil, fmt.Errorf("worker: descriptor %d is not open", fd)
	}

	// FileListener dups the descriptor, so the original is closed here
	// rather than leaked.
	ln, err := net.FileListener(f)
	f.Close()
	if err != nil {
		return nil, fmt.Errorf("worker: adopt listener from fd %d: %w", fd, err)
	}

	return ln, nil
}

// listenStandalone binds directly, so a binary built on this package
// also runs without a supervisor in front of it.
func listenStandalone() (net.Listener, error) {
	host := os.Getenv("DROVER_HOST")
	if host == "" {
		host = "0.0.0.0"
	}
	port := os.Getenv("DROVER_PORT")
	if port == "" {
		port = "8000"
	}

	ln, err := net.Listen("tcp", net.JoinHostPort(host, port))
	if err != nil {
		return nil, fmt.Errorf("worker: standalone bind: %w", err)
	}
	return ln, nil
}

// Ready tells the supervisor the worker is accepting requests, by
// writing one line on the readiness pipe named by DROVER_READY_FD and
// closing it. The supervisor does not route readiness probes; this
// write is the only readiness signal a worker ever sends, and it must
// be sent exactly once. Outside supervision Ready is a no-op.
//
// Run calls Ready itself; applications using Run must not.
func Ready() error {
	fdStr := os.Getenv(netbind.ReadyFDEnv)
	if fdStr == "" {
		return nil
	}

	fd, err := strconv.Atoi(fdStr)
	if err != nil || fd < 3 {
		return fmt.Errorf("worker: invalid %s value %q", netbind.ReadyFDEnv, fdStr)
	}

	f := os.NewFile(uintptr(fd), "drover-ready")
	if f == nil {
		return fmt.Errorf("worker: descriptor %d is not open", fd)
	}
	defer f.Close()

	if _, err := f.Write([]byte("ready\n")); err != nil {
		return fmt.Errorf("worker: signal readiness: %w", err)
	}

	return nil
}
