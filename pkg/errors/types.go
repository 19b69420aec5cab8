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

package errors

import (
	"fmt"
	"time"
)

// ConfigError represents configuration problems.
// Use this for invalid configuration values, malformed config files, or
// missing required settings. Configuration errors are fatal and never retried.
type ConfigError struct {
	// Key is the configuration key that has the problem (e.g., "server.port", "server.workers")
	Key string

	// Reason explains what's wrong with the configuration
	Reason string

	// Cause is the underlying error (e.g., file read error, parse error)
	Cause error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("config error at %s: %s", e.Key, e.Reason)
	}
	return fmt.Sprintf("config error: %s", e.Reason)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *ConfigError) Unwrap() error {
	return e.Cause
}

// ErrorType identifies the error category.
func (e *ConfigError) ErrorType() string { return "config" }

// IsRetryable reports whether the operation should be retried.
func (e *ConfigError) IsRetryable() bool { return false }

// BindError represents a failure to bind the listening socket.
// Address in use, permission denied, and invalid addresses all land here.
// Bind errors are fatal: without the socket there is nothing to supervise.
type BindError struct {
	// Addr is the host:port the bind was attempted on
	Addr string

	// Cause is the underlying error from the network layer
	Cause error
}

// Error implements the error interface.
func (e *BindError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("bind %s: %v", e.Addr, e.Cause)
	}
	return fmt.Sprintf("bind %s failed", e.Addr)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *BindError) Unwrap() error {
	return e.Cause
}

// ErrorType identifies the error category.
func (e *BindError) ErrorType() string { return "bind" }

// IsRetryable reports whether the operation should be retried.
func (e *BindError) IsRetryable() bool { return false }

// StartupError represents a pool that failed to come up: one or more workers
// did not report ready within the startup timeout, or exited before reporting
// ready. The supervisor tears down any workers it already started before
// returning this error, so no partial pool is left running.
type StartupError struct {
	// Worker is the identity (0..N-1) of the worker that failed, or -1
	// when the failure is not attributable to a single identity
	Worker int

	// Reason explains why startup failed
	Reason string

	// Cause is the underlying error (if any)
	Cause error
}

// Error implements the error interface.
func (e *StartupError) Error() string {
	if e.Worker >= 0 {
		return fmt.Sprintf("startup failed: worker %d: %s", e.Worker, e.Reason)
	}
	return fmt.Sprintf("startup failed: %s", e.Reason)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *StartupError) Unwrap() error {
	return e.Cause
}

// ErrorType identifies the error category.
func (e *StartupError) ErrorType() string { return "startup" }

// IsRetryable reports whether the operation should be retried.
func (e *StartupError) IsRetryable() bool { return false }

// WorkerCrash represents an unexpected worker exit during steady-state
// operation. Crashes are absorbed by the supervisor, which restarts the
// worker after a backoff delay, so this error is observed in events and
// logs rather than propagated up.
type WorkerCrash struct {
	// Worker is the identity (0..N-1) of the crashed worker
	Worker int

	// Code is the worker's exit code (-1 when killed by a signal)
	Code int
}

// Error implements the error interface.
func (e *WorkerCrash) Error() string {
	return fmt.Sprintf("worker %d exited unexpectedly with code %d", e.Worker, e.Code)
}

// ErrorType identifies the error category.
func (e *WorkerCrash) ErrorType() string { return "worker_crash" }

// IsRetryable reports whether the operation should be retried.
func (e *WorkerCrash) IsRetryable() bool { return true }

// PersistentWorkerFailure represents a worker identity whose restart budget
// is exhausted: it crashed more than the configured maximum number of times
// within the sliding window. The supervisor stops restarting that identity
// and keeps operating the rest of the pool at reduced capacity, so this is
// surfaced as a degraded-capacity warning, never a fatal error.
type PersistentWorkerFailure struct {
	// Worker is the identity (0..N-1) that exhausted its budget
	Worker int

	// Restarts is how many restarts were attempted within the window
	Restarts int

	// Window is the sliding window the budget applies to
	Window time.Duration
}

// Error implements the error interface.
func (e *PersistentWorkerFailure) Error() string {
	return fmt.Sprintf("worker %d failed persistently: %d restarts within %v, giving up", e.Worker, e.Restarts, e.Window)
}

// ErrorType identifies the error category.
func (e *PersistentWorkerFailure) ErrorType() string { return "persistent_worker_failure" }

// IsRetryable reports whether the operation should be retried.
func (e *PersistentWorkerFailure) IsRetryable() bool { return false }
