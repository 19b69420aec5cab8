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

/*
Package lifecycle drives the supervisor from first bind to last exit.

The Controller owns the whole run: it binds the shared socket, starts the
worker pool, serves the control API, and reacts to signals until the pool
has drained. A state Machine tracks where the run is and rejects
transitions the lifecycle does not allow:

	idle -> binding -> starting -> running -> draining -> stopped

Binding and starting may fail into the terminal failed state; a
termination request from any serving state passes through draining.

# PID File Management

PID files are security-sensitive as they decide which process receives
shutdown signals. The package uses exclusive file locking (flock) and
atomic creation (O_EXCL) to prevent race conditions and symlink attacks:

	pidFile := lifecycle.NewPIDFile("/run/drover/drover.pid")
	if err := pidFile.Acquire(os.Getpid()); err != nil {
	    // Another supervisor is running, or the location is unsafe.
	}
	defer pidFile.Release()

# Process Validation

Signals are sent only to processes that are verifiably drover
supervisors, so a recycled PID never gets an unrelated process killed:

	pid, err := pidFile.Read()
	if err != nil {
	    // Handle error
	}

	if !lifecycle.IsProcessRunning(pid) {
	    // PID file is stale.
	}

# Health Checking

Health polling uses exponential backoff to wait for the pool to come up:

	checker := lifecycle.NewHealthChecker("http://localhost:8080/v1/health")
	if err := checker.WaitUntilHealthy(30 * time.Second); err != nil {
	    // Supervisor failed to start.
	}
*/
package lifecycle
