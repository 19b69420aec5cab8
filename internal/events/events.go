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

// Package events defines the structured events the supervisor emits over a
// pool's lifetime and the journal sinks that record them.
package events

import (
	"time"

	"github.com/google/uuid"
)

// eventType describes an event type.
type eventType = string

const (
	eventSocketBound      eventType = "socket_bound"
	eventPoolStarting     eventType = "pool_starting"
	eventPoolReady        eventType = "pool_ready"
	eventPoolDegraded     eventType = "pool_degraded"
	eventPoolStopped      eventType = "pool_stopped"
	eventStateChanged     eventType = "state_changed"
	eventWorkerSpawned    eventType = "worker_spawned"
	eventWorkerSpawnError eventType = "worker_spawn_error"
	eventWorkerReady      eventType = "worker_ready"
	eventWorkerExited     eventType = "worker_exited"
	eventWorkerRestarting eventType = "worker_restarting"
	eventWorkerGaveUp     eventType = "worker_gave_up"
	eventWorkerKilled     eventType = "worker_killed"
	eventDrainBegun       eventType = "drain_begun"
	eventReloadRequested  eventType = "reload_requested"
	eventWorkerReplaced   eventType = "worker_replaced"
)

// Event is an interface describing known events.
type Event interface {
	Type() string
	event()
}

// NewRunID returns a fresh identifier for one supervisor run. Every journal
// entry written during the run carries it.
func NewRunID() string {
	return uuid.NewString()
}

// NewGeneration returns a fresh identifier for one spawn attempt of a worker
// identity.
func NewGeneration() string {
	return uuid.NewString()
}

// New creates an empty event from its type string. It is used to decode
// journal entries. Nil is returned for unknown types.
func New(eventType string) Event {
	switch eventType {
	case eventSocketBound:
		return &SocketBound{}
	case eventPoolStarting:
		return &PoolStarting{}
	case eventPoolReady:
		return &PoolReady{}
	case eventPoolDegraded:
		return &PoolDegraded{}
	case eventPoolStopped:
		return &PoolStopped{}
	case eventStateChanged:
		return &StateChanged{}
	case eventWorkerSpawned:
		return &WorkerSpawned{}
	case eventWorkerSpawnError:
		return &WorkerSpawnError{}
	case eventWorkerReady:
		return &WorkerReady{}
	case eventWorkerExited:
		return &WorkerExited{}
	case eventWorkerRestarting:
		return &WorkerRestarting{}
	case eventWorkerGaveUp:
		return &WorkerGaveUp{}
	case eventWorkerKilled:
		return &WorkerKilled{}
	case eventDrainBegun:
		return &DrainBegun{}
	case eventReloadRequested:
		return &ReloadRequested{}
	case eventWorkerReplaced:
		return &WorkerReplaced{}
	default:
		return nil
	}
}

// SocketBound is emitted once the shared listening socket is bound.
type SocketBound struct {
	Addr string `json:"addr"`
}

func (ev *SocketBound) Type() string { return eventSocketBound }
func (ev *SocketBound) event()       {}

// PoolStarting is emitted when the supervisor begins spawning workers.
type PoolStarting struct {
	Workers int    `json:"workers"`
	Addr    string `json:"addr"`
	Command string `json:"command"`
}

func (ev *PoolStarting) Type() string { return eventPoolStarting }
func (ev *PoolStarting) event()       {}

// PoolReady is emitted once every worker has reported ready.
type PoolReady struct {
	Workers int           `json:"workers"`
	Took    time.Duration `json:"took"`
}

func (ev *PoolReady) Type() string { return eventPoolReady }
func (ev *PoolReady) event()       {}

// PoolDegraded is emitted when the pool is serving with fewer live workers
// than configured, after a worker identity ran out of restart budget.
type PoolDegraded struct {
	Live int `json:"live"`
	Want int `json:"want"`
}

func (ev *PoolDegraded) Type() string { return eventPoolDegraded }
func (ev *PoolDegraded) event()       {}

// PoolStopped is emitted after the last worker has exited and the socket is
// closed.
type PoolStopped struct {
	Forced int `json:"forced,omitempty"` // workers that needed SIGKILL
}

func (ev *PoolStopped) Type() string { return eventPoolStopped }
func (ev *PoolStopped) event()       {}

// StateChanged records a lifecycle transition.
type StateChanged struct {
	From string `json:"from"`
	To   string `json:"to"`
}

func (ev *StateChanged) Type() string { return eventStateChanged }
func (ev *StateChanged) event()       {}

// WorkerSpawned is emitted when a worker process has been started.
type WorkerSpawned struct {
	Worker     int    `json:"worker"`
	Generation string `json:"generation"`
	PID        int    `json:"pid"`
}

func (ev *WorkerSpawned) Type() string { return eventWorkerSpawned }
func (ev *WorkerSpawned) event()       {}

// WorkerSpawnError is emitted when a worker process fails to start at all.
type WorkerSpawnError struct {
	Worker     int    `json:"worker"`
	Generation string `json:"generation"`
	Reason     string `json:"reason"`
}

func (ev *WorkerSpawnError) Type() string { return eventWorkerSpawnError }
func (ev *WorkerSpawnError) event()       {}

// WorkerReady is emitted when a worker reports it is accepting connections.
type WorkerReady struct {
	Worker     int           `json:"worker"`
	Generation string        `json:"generation"`
	PID        int           `json:"pid"`
	Took       time.Duration `json:"took"`
}

func (ev *WorkerReady) Type() string { return eventWorkerReady }
func (ev *WorkerReady) event()       {}

// WorkerExited is emitted when a worker process has exited for any reason.
type WorkerExited struct {
	Worker     int    `json:"worker"`
	Generation string `json:"generation"`
	PID        int    `json:"pid"`
	Code       int    `json:"code"` // -1 if terminated by a signal
	Draining   bool   `json:"draining,omitempty"`
	Err        string `json:"error,omitempty"`
}

// Clean reports whether the exit was a clean drain.
func (ev *WorkerExited) Clean() bool { return ev.Code == 0 }

func (ev *WorkerExited) Type() string { return eventWorkerExited }
func (ev *WorkerExited) event()       {}

// WorkerRestarting is emitted before a crashed worker identity is respawned.
type WorkerRestarting struct {
	Worker  int           `json:"worker"`
	Backoff time.Duration `json:"backoff"`
	Failure int           `json:"failure"` // consecutive failure count
}

func (ev *WorkerRestarting) Type() string { return eventWorkerRestarting }
func (ev *WorkerRestarting) event()       {}

// WorkerGaveUp is emitted when a worker identity exhausts its restart budget
// and is abandoned. The pool keeps serving at reduced capacity.
type WorkerGaveUp struct {
	Worker   int           `json:"worker"`
	Restarts int           `json:"restarts"`
	Window   time.Duration `json:"window"`
}

func (ev *WorkerGaveUp) Type() string { return eventWorkerGaveUp }
func (ev *WorkerGaveUp) event()       {}

// WorkerKilled is emitted when a worker overran the shutdown deadline and
// was forcibly terminated.
type WorkerKilled struct {
	Worker int `json:"worker"`
	PID    int `json:"pid"`
}

func (ev *WorkerKilled) Type() string { return eventWorkerKilled }
func (ev *WorkerKilled) event()       {}

// DrainBegun is emitted when graceful shutdown starts.
type DrainBegun struct {
	Reason  string `json:"reason"` // signal name or "api"
	Workers int    `json:"workers"`
}

func (ev *DrainBegun) Type() string { return eventDrainBegun }
func (ev *DrainBegun) event()       {}

// ReloadRequested is emitted when a rolling restart is triggered.
type ReloadRequested struct {
	Trigger string `json:"trigger"` // "sighup", "api", or "watch"
}

func (ev *ReloadRequested) Type() string { return eventReloadRequested }
func (ev *ReloadRequested) event()       {}

// WorkerReplaced is emitted when a rolling restart has swapped one worker
// generation for a fresh one.
type WorkerReplaced struct {
	Worker        int    `json:"worker"`
	OldGeneration string `json:"old_generation"`
	NewGeneration string `json:"new_generation"`
}

func (ev *WorkerReplaced) Type() string { return eventWorkerReplaced }
func (ev *WorkerReplaced) event()       {}
