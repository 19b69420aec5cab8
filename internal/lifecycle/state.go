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

package lifecycle

import (
	"log/slog"
	"sync"

	"github.com/drover-sh/drover/internal/events"
	"github.com/drover-sh/drover/internal/log"
	"github.com/drover-sh/drover/internal/metrics"
	drovererrors "github.com/drover-sh/drover/pkg/errors"
)

// State is a lifecycle controller state.
type State string

const (
	// StateIdle is the initial state, before configuration is accepted.
	StateIdle State = "idle"
	// StateBinding means the listening socket is being bound.
	StateBinding State = "binding"
	// StateStarting means workers are spawning and readiness is awaited.
	StateStarting State = "starting"
	// StateRunning is the only state in which traffic is served.
	StateRunning State = "running"
	// StateDraining means workers are finishing in-flight work and exiting.
	StateDraining State = "draining"
	// StateStopped is the terminal state of a clean shutdown.
	StateStopped State = "stopped"
	// StateFailed is the terminal state of a failed launch.
	StateFailed State = "failed"
)

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	return s == StateStopped || s == StateFailed
}

// transitions lists the legal edges. Running is reachable only through
// Binding and Starting; nothing skips a state, and a termination request
// always passes through Draining.
var transitions = map[State][]State{
	StateIdle:     {StateBinding, StateFailed},
	StateBinding:  {StateStarting, StateFailed},
	StateStarting: {StateRunning, StateDraining, StateFailed},
	StateRunning:  {StateDraining},
	StateDraining: {StateStopped},
	StateStopped:  {},
	StateFailed:   {},
}

// Machine tracks the controller state and journals every transition.
type Machine struct {
	mu      sync.RWMutex
	state   State
	journal events.Journal
	logger  *slog.Logger
}

// NewMachine creates a machine in StateIdle.
func NewMachine(journal events.Journal, logger *slog.Logger) *Machine {
	if journal == nil {
		journal = events.Nop()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Machine{
		state:   StateIdle,
		journal: journal,
		logger:  logger,
	}
}

// Current returns the current state.
func (m *Machine) Current() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// To moves the machine to next, rejecting edges the lifecycle does not
// allow.
func (m *Machine) To(next State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !legalTransition(m.state, next) {
		return drovererrors.Newf("illegal state transition %s -> %s", m.state, next)
	}

	prev := m.state
	m.state = next
	metrics.SetState(string(next))

	m.logger.Info("state changed",
		log.String("from", string(prev)),
		log.String("to", string(next)),
	)
	if err := m.journal.Write(&events.StateChanged{From: string(prev), To: string(next)}); err != nil {
		m.logger.Warn("journal write failed", log.Error(err))
	}
	return nil
}

func legalTransition(from, to State) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
