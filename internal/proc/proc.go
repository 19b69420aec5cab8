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

// Package proc launches and observes worker processes. It abstracts the
// operating system process behind small interfaces so the supervisor can be
// tested without spawning anything.
package proc

import (
	"context"
	"os"
	"time"
)

// Spec describes one worker process to launch.
type Spec struct {
	// Command is the worker argv. Command[0] is resolved via PATH.
	Command []string

	// Dir is the working directory. Empty means inherit.
	Dir string

	// Env holds extra KEY=VALUE pairs appended after the inherited
	// environment and the descriptor contract variables.
	Env []string

	// Listener is the shared listening socket, inherited by the child
	// as fd 3. The launcher never closes it.
	Listener *os.File

	// WorkerID is the stable identity (0..N-1) of the slot being filled.
	WorkerID int

	// Generation identifies the spawn attempt filling the slot.
	Generation string

	// GracePeriod is advertised to the worker so it knows how long it
	// has to drain on SIGTERM.
	GracePeriod time.Duration
}

// ExitStatus is a worker process' exit status.
type ExitStatus struct {
	PID  int
	Code int // -1 when terminated by a signal
	Err  error
}

// Signaled reports whether the process was ended by a signal rather than
// exiting on its own.
func (s ExitStatus) Signaled() bool { return s.Code == -1 }

// Handle is a running worker process.
type Handle interface {
	// PID returns the operating system process ID.
	PID() int

	// Ready returns a channel that is closed once the worker has written
	// its readiness line. A worker that exits before reporting never
	// closes it.
	Ready() <-chan struct{}

	// Signal delivers a signal to the process.
	Signal(sig os.Signal) error

	// Kill terminates the process immediately (SIGKILL).
	Kill() error

	// Wait blocks until the process exits and all of its output has been
	// forwarded, then returns the exit status. It may be called from any
	// goroutine, more than once.
	Wait() ExitStatus
}

// Launcher spawns worker processes.
type Launcher interface {
	Start(ctx context.Context, spec Spec) (Handle, error)
}
