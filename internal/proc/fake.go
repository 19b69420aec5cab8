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

package proc

import (
	"context"
	"os"
	"sync"
	"syscall"
	"time"
)

// FakeLauncher hands out in-memory processes for tests. Behavior is scripted
// through OnStart, which runs for every spawn and may arm the handle before
// the caller sees it. Without a script every handle reports ready at once
// and drains cleanly on SIGTERM.
type FakeLauncher struct {
	// Err, when set, makes Start fail.
	Err error

	// OnStart scripts each spawn. spawn counts launches per worker
	// identity, starting at 0.
	OnStart func(spec Spec, spawn int, h *FakeHandle)

	mu      sync.Mutex
	spawns  map[int]int
	specs   []Spec
	handles []*FakeHandle
	nextPID int
}

// NewFakeLauncher creates a launcher with no script.
func NewFakeLauncher() *FakeLauncher {
	return &FakeLauncher{spawns: make(map[int]int)}
}

func (l *FakeLauncher) Start(ctx context.Context, spec Spec) (Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	if l.Err != nil {
		err := l.Err
		l.mu.Unlock()
		return nil, err
	}
	if l.spawns == nil {
		l.spawns = make(map[int]int)
	}
	spawn := l.spawns[spec.WorkerID]
	l.spawns[spec.WorkerID]++
	l.nextPID++
	h := NewFakeHandle(1000 + l.nextPID)
	l.specs = append(l.specs, spec)
	l.handles = append(l.handles, h)
	script := l.OnStart
	l.mu.Unlock()

	if script != nil {
		script(spec, spawn, h)
	} else {
		h.MarkReady()
	}

	return h, nil
}

// Handles returns every handle started so far, in launch order.
func (l *FakeLauncher) Handles() []*FakeHandle {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*FakeHandle, len(l.handles))
	copy(out, l.handles)
	return out
}

// Specs returns every launch spec seen so far, in launch order.
func (l *FakeLauncher) Specs() []Spec {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Spec, len(l.specs))
	copy(out, l.specs)
	return out
}

// Spawns returns how many times the given worker identity was launched.
func (l *FakeLauncher) Spawns(workerID int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.spawns[workerID]
}

// FakeHandle is an in-memory process. Tests drive it with MarkReady and
// Exit; SIGTERM behavior is configurable.
type FakeHandle struct {
	// IgnoreTerm makes SIGTERM a no-op, simulating a worker stuck in a
	// handler. Kill still ends it.
	IgnoreTerm bool

	// TermDelay postpones the exit triggered by SIGTERM, simulating
	// in-flight requests draining.
	TermDelay time.Duration

	// TermExitCode is the exit code used when SIGTERM ends the process.
	TermExitCode int

	pid   int
	ready chan struct{}
	done  chan struct{}

	readyOnce sync.Once
	exitOnce  sync.Once
	status    ExitStatus

	mu      sync.Mutex
	signals []os.Signal
}

// NewFakeHandle creates a running fake process with the given PID.
func NewFakeHandle(pid int) *FakeHandle {
	return &FakeHandle{
		pid:   pid,
		ready: make(chan struct{}),
		done:  make(chan struct{}),
	}
}

// MarkReady closes the readiness channel, as a real worker does by writing
// its ready line.
func (h *FakeHandle) MarkReady() {
	h.readyOnce.Do(func() { close(h.ready) })
}

// Exit ends the process with the given code. Later calls are ignored.
func (h *FakeHandle) Exit(code int) {
	h.exitOnce.Do(func() {
		h.status = ExitStatus{PID: h.pid, Code: code}
		close(h.done)
	})
}

// Exited reports whether the process has ended.
func (h *FakeHandle) Exited() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

// Signals returns every signal delivered so far.
func (h *FakeHandle) Signals() []os.Signal {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]os.Signal, len(h.signals))
	copy(out, h.signals)
	return out
}

func (h *FakeHandle) PID() int { return h.pid }

func (h *FakeHandle) Ready() <-chan struct{} { return h.ready }

func (h *FakeHandle) Signal(sig os.Signal) error {
	h.mu.Lock()
	h.signals = append(h.signals, sig)
	h.mu.Unlock()

	if sig != syscall.SIGTERM || h.IgnoreTerm {
		return nil
	}

	if h.TermDelay > 0 {
		go func() {
			timer := time.NewTimer(h.TermDelay)
			defer timer.Stop()
			select {
			case <-timer.C:
				h.Exit(h.TermExitCode)
			case <-h.done:
			}
		}()
		return nil
	}

	h.Exit(h.TermExitCode)
	return nil
}

func (h *FakeHandle) Kill() error {
	h.mu.Lock()
	h.signals = append(h.signals, syscall.SIGKILL)
	h.mu.Unlock()

	h.Exit(-1)
	return nil
}

func (h *FakeHandle) Wait() ExitStatus {
	<-h.done
	return h.status
}
