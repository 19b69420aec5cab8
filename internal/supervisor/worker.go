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

import (
	"log/slog"
	"sync"
	"syscall"
	"time"

	"golang.org/x/time/rate"

	"github.com/drover-sh/drover/internal/events"
	"github.com/drover-sh/drover/internal/log"
	"github.com/drover-sh/drover/internal/proc"
	drovererrors "github.com/drover-sh/drover/pkg/errors"
)

// workerSlot tracks the runtime state of one worker identity.
type workerSlot struct {
	id int

	// limiter is the restart budget for this identity.
	limiter *rate.Limiter

	// replaceCh receives rolling-restart requests. The monitor only
	// listens while the worker is live.
	replaceCh chan *replaceRequest

	// done is closed when the monitor goroutine returns.
	done chan struct{}

	mu       sync.RWMutex
	record   WorkerRecord
	failures int // consecutive failures, resets on readiness
}

// replaceRequest asks a monitor to swap its worker for a fresh generation.
type replaceRequest struct {
	oldGen string
	done   chan error
}

func newWorkerSlot(id int, limiter *rate.Limiter) *workerSlot {
	return &workerSlot{
		id:        id,
		limiter:   limiter,
		replaceCh: make(chan *replaceRequest),
		done:      make(chan struct{}),
		record:    WorkerRecord{ID: id, Status: StatusStarting},
	}
}

func (s *workerSlot) snapshot() WorkerRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec := s.record
	if s.record.ExitCode != nil {
		code := *s.record.ExitCode
		rec.ExitCode = &code
	}
	return rec
}

// beginGeneration resets the record for a fresh spawn attempt.
func (s *workerSlot) beginGeneration(gen string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record.Generation = gen
	s.record.PID = 0
	s.record.Status = StatusStarting
	s.record.StartedAt = time.Now()
	s.record.ReadyAt = time.Time{}
	s.record.ExitCode = nil
	s.record.LastError = ""
}

func (s *workerSlot) setPID(pid int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record.PID = pid
}

// markReady records readiness. In a running pool the worker goes straight
// to serving; during pool startup it holds at ready until every identity
// has reported.
func (s *workerSlot) markReady(poolRunning bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record.ReadyAt = time.Now()
	if poolRunning {
		s.record.Status = StatusServing
	} else {
		s.record.Status = StatusReady
	}
	s.failures = 0
}

// promote moves a ready worker to serving.
func (s *workerSlot) promote() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.record.Status == StatusReady {
		s.record.Status = StatusServing
	}
}

func (s *workerSlot) markDraining() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record.Status = StatusDraining
}

func (s *workerSlot) markExited(st proc.ExitStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record.Status = StatusExited
	code := st.Code
	s.record.ExitCode = &code
	switch {
	case st.Err != nil:
		s.record.LastError = st.Err.Error()
	case st.Code > 0:
		s.record.LastError = (&drovererrors.WorkerCrash{Worker: s.id, Code: st.Code}).Error()
	}
}

func (s *workerSlot) markFailed(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record.Status = StatusFailed
	s.record.LastError = err.Error()
}

// countRestart increments the restart counters and returns the consecutive
// failure count used for backoff.
func (s *workerSlot) countRestart() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record.Restarts++
	s.failures++
	return s.failures
}

// spawn launches one fresh generation for the slot. Called by Start for
// the initial spawns (in identity order) and by monitors for respawns.
func (p *Pool) spawn(slot *workerSlot) (proc.Handle, string, error) {
	gen := events.NewGeneration()
	slot.beginGeneration(gen)
	wlog := log.WithWorker(p.logger, slot.id, gen)

	handle, err := p.cfg.Launcher.Start(p.ctx, proc.Spec{
		Command:     p.cfg.Command,
		Dir:         p.cfg.Dir,
		Env:         p.cfg.Env,
		Listener:    p.cfg.ListenerFile,
		WorkerID:    slot.id,
		Generation:  gen,
		GracePeriod: p.cfg.GracePeriod,
	})
	if err != nil {
		p.emit(&events.WorkerSpawnError{Worker: slot.id, Generation: gen, Reason: err.Error()})
		wlog.Error("spawn failed", log.Error(err))
		return nil, gen, err
	}

	slot.setPID(handle.PID())
	p.emit(&events.WorkerSpawned{Worker: slot.id, Generation: gen, PID: handle.PID()})
	wlog.Debug("worker spawned", log.Int(log.PIDKey, handle.PID()))
	return handle, gen, nil
}

// runWorker is the monitor goroutine owning one worker identity. It enters
// with the initial generation already spawned, waits for readiness, reaps
// exits, and loops through respawn with backoff until the restart budget
// runs out or the pool drains.
func (p *Pool) runWorker(slot *workerSlot, handle proc.Handle, gen string) {
	defer p.wg.Done()
	defer close(slot.done)

	firstSpawn := true
	var pendingReplace *replaceRequest

	for {
		if handle == nil {
			var err error
			handle, gen, err = p.spawn(slot)
			if err != nil {
				if pendingReplace != nil {
					pendingReplace.done <- err
					pendingReplace = nil
				}
				if p.stopping() {
					slot.markFailed(err)
					return
				}
				if !p.awaitRespawn(slot, log.WithWorker(p.logger, slot.id, gen)) {
					return
				}
				continue
			}
		}

		wlog := log.WithWorker(p.logger, slot.id, gen)
		exitCh := make(chan proc.ExitStatus, 1)
		go func(h proc.Handle) { exitCh <- h.Wait() }(handle)

		select {
		case <-handle.Ready():
			took := time.Since(slot.snapshot().StartedAt)
			slot.markReady(p.running.Load())
			p.updateLiveGauge()
			p.emit(&events.WorkerReady{Worker: slot.id, Generation: gen, PID: handle.PID(), Took: took})
			wlog.Info("worker ready", log.Duration("took", took))

			if firstSpawn {
				p.startupCh <- startupResult{id: slot.id}
				firstSpawn = false
			}
			if pendingReplace != nil {
				p.emit(&events.WorkerReplaced{
					Worker:        slot.id,
					OldGeneration: pendingReplace.oldGen,
					NewGeneration: gen,
				})
				pendingReplace.done <- nil
				pendingReplace = nil
			}

		case st := <-exitCh:
			// Exited before reporting ready.
			p.recordExit(slot, st, false)
			wlog.Warn("worker exited before ready", log.Int("code", st.Code))

			crash := &drovererrors.WorkerCrash{Worker: slot.id, Code: st.Code}
			if pendingReplace != nil {
				pendingReplace.done <- crash
				pendingReplace = nil
			}
			if firstSpawn {
				p.startupCh <- startupResult{id: slot.id, err: crash}
				return
			}
			if p.stopping() {
				return
			}
			if !p.awaitRespawn(slot, wlog) {
				return
			}
			handle = nil
			continue

		case <-p.ctx.Done():
			p.drainWorker(slot, handle, exitCh, wlog)
			if pendingReplace != nil {
				pendingReplace.done <- drovererrors.New("pool is shutting down")
			}
			return
		}

		// Steady state: the worker is serving. Wait for it to exit, for
		// the pool to drain, or for a rolling-restart request.
		select {
		case st := <-exitCh:
			if p.stopping() {
				// The pool began draining and this worker exited in
				// response (or coincidentally); either way it is done.
				p.recordExit(slot, st, true)
				return
			}
			p.recordExit(slot, st, false)
			wlog.Warn("worker exited unexpectedly", log.Int("code", st.Code))
			if !p.awaitRespawn(slot, wlog) {
				return
			}

		case <-p.ctx.Done():
			p.drainWorker(slot, handle, exitCh, wlog)
			return

		case req := <-slot.replaceCh:
			req.oldGen = gen
			wlog.Info("replacing worker")
			p.drainWorker(slot, handle, exitCh, wlog)
			if p.stopping() {
				req.done <- drovererrors.New("pool is shutting down")
				return
			}
			pendingReplace = req
		}

		handle = nil
	}
}

// recordExit journals and records one process exit.
func (p *Pool) recordExit(slot *workerSlot, st proc.ExitStatus, draining bool) {
	slot.markExited(st)
	p.updateLiveGauge()

	ev := &events.WorkerExited{
		Worker:     slot.id,
		Generation: slot.snapshot().Generation,
		PID:        st.PID,
		Code:       st.Code,
		Draining:   draining,
	}
	if st.Err != nil {
		ev.Err = st.Err.Error()
	}
	p.emit(ev)
}

// drainWorker asks one worker to finish in-flight work and exit, killing
// it if it outlives ShutdownTimeout. Every monitor drains its own worker,
// so a pool-wide drain runs concurrently across workers.
func (p *Pool) drainWorker(slot *workerSlot, handle proc.Handle, exitCh <-chan proc.ExitStatus, wlog *slog.Logger) {
	slot.markDraining()
	p.updateLiveGauge()

	if err := handle.Signal(syscall.SIGTERM); err != nil {
		// The process may have exited in the meantime; the reap below
		// settles it either way.
		wlog.Debug("drain signal failed", log.Error(err))
	}

	timer := time.NewTimer(p.cfg.ShutdownTimeout)
	defer timer.Stop()

	select {
	case st := <-exitCh:
		p.recordExit(slot, st, true)
		wlog.Info("worker drained", log.Int("code", st.Code))

	case <-timer.C:
		wlog.Warn("worker exceeded shutdown timeout, killing",
			log.Duration("timeout", p.cfg.ShutdownTimeout))
		handle.Kill()
		p.forced.Add(1)
		p.emit(&events.WorkerKilled{Worker: slot.id, PID: handle.PID()})

		st := <-exitCh
		p.recordExit(slot, st, true)
	}
}

// awaitRespawn consumes restart budget and sleeps out the backoff before
// the next spawn attempt. It returns false when the identity is out of
// budget (the slot is marked failed and abandoned) or the pool is
// draining.
func (p *Pool) awaitRespawn(slot *workerSlot, wlog *slog.Logger) bool {
	if !slot.limiter.Allow() {
		failure := &drovererrors.PersistentWorkerFailure{
			Worker:   slot.id,
			Restarts: p.cfg.MaxRestarts,
			Window:   p.cfg.RestartWindow,
		}
		slot.markFailed(failure)
		p.updateLiveGauge()
		p.emit(&events.WorkerGaveUp{
			Worker:   slot.id,
			Restarts: p.cfg.MaxRestarts,
			Window:   p.cfg.RestartWindow,
		})
		p.emit(&events.PoolDegraded{Live: p.RunningCount(), Want: p.cfg.Workers})
		wlog.Error("restart budget exhausted, giving up on worker", log.Error(failure))
		return false
	}

	failures := slot.countRestart()
	backoff := backoffFor(failures, p.cfg.BackoffCap)
	p.emit(&events.WorkerRestarting{Worker: slot.id, Backoff: backoff, Failure: failures})
	wlog.Info("restarting worker",
		log.Duration("backoff", backoff),
		log.Int("consecutive_failures", failures),
	)

	timer := time.NewTimer(backoff)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-p.ctx.Done():
		return false
	}
}

// stopping reports whether the pool has begun draining or tearing down.
func (p *Pool) stopping() bool {
	return p.draining.Load() || p.ctx.Err() != nil
}

// backoffFor computes the restart delay for the nth consecutive failure:
// 1s, 2s, 4s, doubling up to limit.
func backoffFor(failures int, limit time.Duration) time.Duration {
	if failures <= 1 {
		return min(time.Second, limit)
	}
	if failures > 32 {
		return limit
	}
	backoff := time.Duration(1<<uint(failures-1)) * time.Second
	if backoff > limit {
		backoff = limit
	}
	return backoff
}
