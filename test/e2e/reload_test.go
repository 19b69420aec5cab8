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

//go:build unix

package e2e

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/drover-sh/drover/internal/ctlclient"
)

func TestReloadReplacesEveryWorkerWithoutDowntime(t *testing.T) {
	skipShort(t)

	p := startPool(t, withWorkers(2))
	p.waitRunning(15 * time.Second)

	before := p.status()
	oldGens := make(map[int]string, len(before.Workers))
	oldPIDs := make(map[int]int, len(before.Workers))
	for _, w := range before.Workers {
		oldGens[w.ID] = w.Generation
		oldPIDs[w.ID] = w.PID
	}

	// Hammer the pool while it rolls; the shared socket must keep
	// answering throughout.
	var fails atomic.Int32
	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			if _, err := p.get("/"); err != nil {
				fails.Add(1)
				t.Logf("request failed during reload: %v", err)
			}
			time.Sleep(10 * time.Millisecond)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	resp, err := p.api.Reload(ctx)
	cancel()
	close(stop)
	wg.Wait()

	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if resp.Status != "reloaded" {
		t.Errorf("reload status = %q, want reloaded", resp.Status)
	}
	if len(resp.Workers) != 2 {
		t.Errorf("reload reported %d workers, want 2", len(resp.Workers))
	}
	if n := fails.Load(); n > 0 {
		t.Errorf("%d requests failed during the rolling restart", n)
	}

	after := p.status()
	if after.State != "running" {
		t.Errorf("state after reload = %q, want running", after.State)
	}
	if after.Live != 2 {
		t.Errorf("live after reload = %d, want 2", after.Live)
	}
	for _, w := range after.Workers {
		if w.Generation == oldGens[w.ID] {
			t.Errorf("worker %d kept generation %s across reload", w.ID, w.Generation)
		}
		if w.PID == oldPIDs[w.ID] {
			t.Errorf("worker %d kept pid %d across reload", w.ID, w.PID)
		}
	}
}

func TestSighupTriggersRollingRestart(t *testing.T) {
	skipShort(t)

	p := startPool(t, withWorkers(2))
	p.waitRunning(15 * time.Second)

	oldPIDs := currentPIDs(p)
	p.signal(syscall.SIGHUP)
	waitRolled(p, oldPIDs)

	// Still serving after the roll.
	p.mustGet("/")
}

func TestFileChangeTriggersReload(t *testing.T) {
	skipShort(t)

	dir := t.TempDir()
	p := startPool(t, withWorkers(2), withFlags("-reload"), withDir(dir))
	p.waitRunning(15 * time.Second)

	oldPIDs := currentPIDs(p)

	// A new file in the watched working directory rolls the pool after
	// the debounce window.
	if err := os.WriteFile(filepath.Join(dir, "app.py"), []byte("# v2\n"), 0o644); err != nil {
		t.Fatalf("write watched file: %v", err)
	}

	waitRolled(p, oldPIDs)
	p.mustGet("/")
}

// currentPIDs snapshots worker PIDs by identity.
func currentPIDs(p *pool) map[int]int {
	p.t.Helper()
	status := p.status()
	pids := make(map[int]int, len(status.Workers))
	for _, w := range status.Workers {
		pids[w.ID] = w.PID
	}
	return pids
}

// waitRolled blocks until every worker runs under a new PID and the
// pool is back at full strength.
func waitRolled(p *pool, oldPIDs map[int]int) {
	p.t.Helper()
	p.waitStatus(30*time.Second, "a fully rolled pool", func(s *ctlclient.StatusResponse) bool {
		if s.State != "running" || s.Live != len(oldPIDs) {
			return false
		}
		for _, w := range s.Workers {
			if w.PID == oldPIDs[w.ID] || w.PID == 0 {
				return false
			}
		}
		return true
	})
}
