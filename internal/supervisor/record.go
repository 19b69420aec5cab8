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

package supervisor

import "time"

// Status is the lifecycle status of one worker identity.
type Status string

const (
	// StatusStarting means the process is launched but has not reported
	// ready.
	StatusStarting Status = "starting"
	// StatusReady means the worker reported readiness but the pool as a
	// whole is not serving yet.
	StatusReady Status = "ready"
	// StatusServing means the worker is accepting connections in a
	// running pool.
	StatusServing Status = "serving"
	// StatusDraining means the worker was told to finish in-flight work
	// and exit.
	StatusDraining Status = "draining"
	// StatusExited means the process has exited; ExitCode says how.
	StatusExited Status = "exited"
	// StatusFailed means the identity exhausted its restart budget and
	// is no longer respawned.
	StatusFailed Status = "failed"
)

// Live reports whether the status counts toward serving capacity.
func (s Status) Live() bool {
	return s == StatusReady || s == StatusServing
}

// WorkerRecord is a point-in-time snapshot of one worker identity.
type WorkerRecord struct {
	// ID is the stable identity, 0 through Workers-1. It survives
	// restarts; Generation does not.
	ID int `json:"id"`

	// Generation identifies the current (or last) spawn attempt.
	Generation string `json:"generation,omitempty"`

	// PID is the operating system process ID of the current (or last)
	// process, 0 before the first spawn succeeds.
	PID int `json:"pid,omitempty"`

	// Status is the current lifecycle status.
	Status Status `json:"status"`

	// StartedAt is when the current generation was spawned.
	StartedAt time.Time `json:"started_at,omitzero"`

	// ReadyAt is when the current generation reported ready.
	ReadyAt time.Time `json:"ready_at,omitzero"`

	// Restarts counts crash-triggered respawns over the pool's lifetime.
	Restarts int `json:"restarts"`

	// ExitCode is set once Status is exited.
	ExitCode *int `json:"exit_code,omitempty"`

	// LastError describes the most recent failure, if any.
	LastError string `json:"last_error,omitempty"`
}
