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
	"errors"
	"syscall"
	"testing"
	"time"
)

func TestFakeLauncher_DefaultIsReady(t *testing.T) {
	l := NewFakeLauncher()

	h, err := l.Start(context.Background(), Spec{WorkerID: 0})
	if err != nil {
		t.Fatalf("Start returned error: %v", err)
	}

	select {
	case <-h.Ready():
	default:
		t.Error("default handle should be ready immediately")
	}
}

func TestFakeLauncher_ScriptPerSpawn(t *testing.T) {
	l := NewFakeLauncher()
	l.OnStart = func(spec Spec, spawn int, h *FakeHandle) {
		if spawn == 0 {
			h.Exit(1)
			return
		}
		h.MarkReady()
	}

	first, _ := l.Start(context.Background(), Spec{WorkerID: 3})
	if status := first.Wait(); status.Code != 1 {
		t.Errorf("first spawn should crash with code 1, got %d", status.Code)
	}

	second, _ := l.Start(context.Background(), Spec{WorkerID: 3})
	select {
	case <-second.Ready():
	case <-time.After(time.Second):
		t.Error("second spawn should be ready")
	}

	if got := l.Spawns(3); got != 2 {
		t.Errorf("expected 2 spawns for worker 3, got %d", got)
	}
	if got := l.Spawns(0); got != 0 {
		t.Errorf("expected 0 spawns for worker 0, got %d", got)
	}
}

func TestFakeLauncher_Err(t *testing.T) {
	l := NewFakeLauncher()
	l.Err = errors.New("fork failed")

	if _, err := l.Start(context.Background(), Spec{}); err == nil {
		t.Fatal("expected launch error")
	}
}

func TestFakeHandle_TermDrains(t *testing.T) {
	h := NewFakeHandle(42)
	h.TermDelay = 10 * time.Millisecond

	if h.Exited() {
		t.Fatal("handle exited before any signal")
	}

	if err := h.Signal(syscall.SIGTERM); err != nil {
		t.Fatalf("Signal returned error: %v", err)
	}

	status := h.Wait()
	if status.Code != 0 {
		t.Errorf("expected clean drain exit, got code %d", status.Code)
	}
	if status.PID != 42 {
		t.Errorf("expected PID 42, got %d", status.PID)
	}

	sigs := h.Signals()
	if len(sigs) != 1 || sigs[0] != syscall.SIGTERM {
		t.Errorf("expected recorded SIGTERM, got %v", sigs)
	}
}

func TestFakeHandle_IgnoresTermUntilKilled(t *testing.T) {
	h := NewFakeHandle(7)
	h.IgnoreTerm = true

	h.Signal(syscall.SIGTERM)
	if h.Exited() {
		t.Fatal("handle should survive SIGTERM")
	}

	h.Kill()
	status := h.Wait()
	if !status.Signaled() {
		t.Errorf("expected signaled exit after kill, got code %d", status.Code)
	}

	sigs := h.Signals()
	if len(sigs) != 2 || sigs[1] != syscall.SIGKILL {
		t.Errorf("expected SIGTERM then SIGKILL, got %v", sigs)
	}
}

func TestFakeHandle_FirstExitWins(t *testing.T) {
	h := NewFakeHandle(1)
	h.Exit(2)
	h.Exit(5)

	if status := h.Wait(); status.Code != 2 {
		t.Errorf("expected first exit code 2 to stick, got %d", status.Code)
	}
}
