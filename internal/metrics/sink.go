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

package metrics

import (
	"github.com/drover-sh/drover/internal/events"
)

// Sink translates supervisor events into metric updates. It sits in the
// journal fan-out next to the log and file sinks.
type Sink struct{}

var _ events.Journal = Sink{}

// NewSink creates the metrics journal sink.
func NewSink() Sink { return Sink{} }

func (Sink) Write(ev events.Event) error {
	RecordEvent(ev.Type())

	switch e := ev.(type) {
	case *events.WorkerSpawned:
		RecordSpawn(e.Worker)
	case *events.WorkerReady:
		ObserveStartup(e.Took.Seconds())
	case *events.WorkerExited:
		RecordExit(e.Worker, exitOutcome(e))
	case *events.WorkerRestarting:
		RecordRestart(e.Worker)
	case *events.StateChanged:
		SetState(e.To)
	case *events.ReloadRequested:
		RecordReload(e.Trigger)
	}

	return nil
}

func exitOutcome(ev *events.WorkerExited) string {
	switch {
	case ev.Code == 0:
		return "clean"
	case ev.Code == -1:
		return "signal"
	default:
		return "crash"
	}
}
