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

// Package supervisor keeps a fixed-size pool of worker processes serving
// one shared listening socket.
//
// Each worker identity (0..N-1) is owned by a dedicated monitor goroutine
// that spawns the process, awaits its readiness line, reaps its exit, and
// decides between respawn, give-up, and drain. The pool fails startup as a
// unit, restarts crashed workers with exponential backoff under a
// per-identity budget, and drains every worker concurrently on shutdown.
package supervisor

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/drover-sh/drover/internal/events"
	"github.com/drover-sh/drover/internal/log"
	"github.com/drover-sh/drover/internal/metrics"
	"github.com/drover-sh/drover/internal/proc"
	drovererrors "github.com/drover-sh/drover/pkg/errors"
)

// Defaults applied by New when Config leaves a knob zero.
const (
	DefaultStartupTimeout  = 30 * time.Second
	DefaultGracePeriod     = 30 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
	DefaultRestartWindow   = 60 * time.Second
	DefaultBackoffCap      = 30 * time.Second
)

var (
	// ErrNotRunning is returned by Reload before the pool has started or
	// once it has begun draining.
	ErrNotRunning = drovererrors.New("pool is not running")

	// ErrReloadInProgress is returned by Reload while another rolling
	// restart is still underway.
	ErrReloadInProgress = drovererrors.New("rolling restart already in progress")
)

// Config describes the pool.
type Config struct {
	// Command is the worker argv.
	Command []string

	// Dir is the working directory for workers. Empty means inherit.
	Dir string

	// Env holds extra KEY=VALUE pairs for workers.
	Env []string

	// Workers is the pool size.
	Workers int

	// ListenerFile is the shared listening socket passed to every worker.
	ListenerFile *os.File

	// Addr is the bound address, for events and logs.
	Addr string

	// StartupTimeout bounds the wait for the whole pool to become ready.
	StartupTimeout time.Duration

	// GracePeriod is advertised to workers as their drain budget.
	GracePeriod time.Duration

	// ShutdownTimeout bounds how long a draining worker may take before
	// it is killed.
	ShutdownTimeout time.Duration

	// MaxRestarts is the per-identity restart budget within
	// RestartWindow. Zero disables restarts entirely.
	MaxRestarts int

	// RestartWindow is the sliding window the budget refills over.
	RestartWindow time.Duration

	// BackoffCap caps the exponential restart backoff.
	BackoffCap time.Duration

	// Launcher spawns worker processes.
	Launcher proc.Launcher

	// Journal receives lifecycle events. Nil discards them.
	Journal events.Journal

	// Logger receives supervisor logs. Nil uses slog.Default.
	Logger *slog.Logger
}

// Pool supervises the worker processes.
type Pool struct {
	cfg     Config
	logger  *slog.Logger
	journal events.Journal

	ctx    context.Context
	cancel context.CancelFunc

	// mu guards slots; the slice is written once by Start and read by
	// status and drain paths.
	mu    sync.RWMutex
	slots []*workerSlot
	wg    sync.WaitGroup

	// startupCh collects each identity's first readiness or failure.
	startupCh chan startupResult

	started   atomic.Bool
	running   atomic.Bool
	draining  atomic.Bool
	reloading atomic.Bool
	forced    atomic.Int64

	stopOnce sync.Once
	doneOnce sync.Once
}

type startupResult struct {
	id  int
	err error
}

// New creates a pool. Zero duration knobs fall back to the package
// defaults; a negative MaxRestarts is treated as zero.
func New(cfg Config) *Pool {
	if cfg.StartupTimeout <= 0 {
		cfg.StartupTimeout = DefaultStartupTimeout
	}
	if cfg.GracePeriod <= 0 {
		cfg.GracePeriod = DefaultGracePeriod
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.RestartWindow <= 0 {
		cfg.RestartWindow = DefaultRestartWindow
	}
	if cfg.BackoffCap <= 0 {
		cfg.BackoffCap = DefaultBackoffCap
	}
	if cfg.MaxRestarts < 0 {
		cfg.MaxRestarts = 0
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	journal := cfg.Journal
	if journal == nil {
		journal = events.Nop()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Pool{
		cfg:       cfg,
		logger:    log.WithComponent(logger, "supervisor"),
		journal:   journal,
		ctx:       ctx,
		cancel:    cancel,
		startupCh: make(chan startupResult, cfg.Workers),
	}
}

// Start spawns every worker identity in order and waits until all of them
// have reported ready, bounded by StartupTimeout. If any worker fails to
// start, exits before reporting ready, or the timeout lapses, every
// already-started worker is terminated and a StartupError is returned. No
// partial pool survives a failed start.
func (p *Pool) Start(ctx context.Context) error {
	if p.started.Swap(true) {
		return drovererrors.New("pool already started")
	}

	began := time.Now()
	metrics.SetDesired(p.cfg.Workers)
	p.emit(&events.PoolStarting{
		Workers: p.cfg.Workers,
		Addr:    p.cfg.Addr,
		Command: strings.Join(p.cfg.Command, " "),
	})

	slots := make([]*workerSlot, p.cfg.Workers)
	for id := 0; id < p.cfg.Workers; id++ {
		slots[id] = newWorkerSlot(id, p.restartLimiter())
	}
	p.mu.Lock()
	p.slots = slots
	p.mu.Unlock()

	// Identities spawn in order; readiness is awaited as a set below, so a
	// slow worker does not hold up the others.
	for _, slot := range slots {
		handle, gen, err := p.spawn(slot)
		if err != nil {
			slot.markFailed(err)
			return p.failStartup(&drovererrors.StartupError{
				Worker: slot.id,
				Reason: "worker failed to start",
				Cause:  err,
			})
		}
		p.wg.Add(1)
		go p.runWorker(slot, handle, gen)
	}

	timer := time.NewTimer(p.cfg.StartupTimeout)
	defer timer.Stop()

	for ready := 0; ready < p.cfg.Workers; {
		select {
		case res := <-p.startupCh:
			if res.err != nil {
				return p.failStartup(&drovererrors.StartupError{
					Worker: res.id,
					Reason: "worker exited before becoming ready",
					Cause:  res.err,
				})
			}
			ready++

		case <-timer.C:
			return p.failStartup(&drovererrors.StartupError{
				Worker: -1,
				Reason: "timed out waiting for workers to become ready",
			})

		case <-ctx.Done():
			return p.failStartup(&drovererrors.StartupError{
				Worker: -1,
				Reason: "startup canceled",
				Cause:  ctx.Err(),
			})
		}
	}

	p.running.Store(true)
	p.promoteToServing()
	p.updateLiveGauge()
	p.emit(&events.PoolReady{Workers: p.cfg.Workers, Took: time.Since(began)})
	p.logger.Info("all workers ready",
		log.Int("workers", p.cfg.Workers),
		log.Duration("took", time.Since(began)),
	)

	return nil
}

// failStartup tears the partial pool down and returns err.
func (p *Pool) failStartup(err *drovererrors.StartupError) error {
	p.logger.Error("startup failed, terminating started workers", log.Error(err))
	p.draining.Store(true)
	p.cancel()
	p.wg.Wait()
	return err
}

// Stop drains the pool: every live worker receives SIGTERM at once, then
// the pool waits for all of them to exit, killing any that outlive
// ShutdownTimeout. Stop is idempotent and safe to call concurrently; every
// call blocks until the pool has fully stopped (or ctx is done).
func (p *Pool) Stop(ctx context.Context, reason string) error {
	if !p.started.Load() {
		return nil
	}

	p.stopOnce.Do(func() {
		p.emit(&events.DrainBegun{Reason: reason, Workers: p.RunningCount()})
		p.logger.Info("draining pool", log.String("reason", reason))
		p.draining.Store(true)
		p.running.Store(false)
		p.cancel()
	})

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	p.doneOnce.Do(func() {
		p.emit(&events.PoolStopped{Forced: int(p.forced.Load())})
		p.updateLiveGauge()
	})
	return nil
}

// Reload performs a rolling restart: one identity at a time, the old
// process is drained and a fresh generation is spawned; the next identity
// is not touched until the replacement reports ready. Identities that have
// been given up on are skipped. The first replacement that fails to become
// ready aborts the remainder. Only one rolling restart runs at a time;
// overlapping calls get ErrReloadInProgress rather than queueing.
func (p *Pool) Reload(ctx context.Context, trigger string) error {
	if !p.running.Load() {
		return ErrNotRunning
	}
	if p.reloading.Swap(true) {
		return ErrReloadInProgress
	}
	defer p.reloading.Store(false)

	p.emit(&events.ReloadRequested{Trigger: trigger})
	p.logger.Info("rolling restart", log.String("trigger", trigger))

	for _, slot := range p.slotList() {
		if !slot.snapshot().Status.Live() {
			continue
		}

		req := &replaceRequest{done: make(chan error, 1)}
		select {
		case slot.replaceCh <- req:
		case <-slot.done:
			return drovererrors.Newf("worker %d is no longer supervised", slot.id)
		case <-p.ctx.Done():
			return drovererrors.New("pool is shutting down")
		case <-ctx.Done():
			return ctx.Err()
		}

		select {
		case err := <-req.done:
			if err != nil {
				return drovererrors.Wrapf(err, "replace worker %d", slot.id)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return nil
}

// Status returns a snapshot of every worker record, ordered by identity.
func (p *Pool) Status() []WorkerRecord {
	slots := p.slotList()
	records := make([]WorkerRecord, 0, len(slots))
	for _, slot := range slots {
		records = append(records, slot.snapshot())
	}
	return records
}

// RunningCount returns how many workers are ready or serving.
func (p *Pool) RunningCount() int {
	count := 0
	for _, slot := range p.slotList() {
		if slot.snapshot().Status.Live() {
			count++
		}
	}
	return count
}

// Workers returns the configured pool size.
func (p *Pool) Workers() int {
	return p.cfg.Workers
}

func (p *Pool) slotList() []*workerSlot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.slots
}

// restartLimiter builds the per-identity restart budget: a token bucket
// holding MaxRestarts tokens that refills over RestartWindow.
func (p *Pool) restartLimiter() *rate.Limiter {
	refill := rate.Limit(float64(p.cfg.MaxRestarts) / p.cfg.RestartWindow.Seconds())
	return rate.NewLimiter(refill, p.cfg.MaxRestarts)
}

// promoteToServing flips every ready worker to serving once the pool as a
// whole is running.
func (p *Pool) promoteToServing() {
	for _, slot := range p.slotList() {
		slot.promote()
	}
}

// updateLiveGauge publishes the live worker count and the failed identity
// count.
func (p *Pool) updateLiveGauge() {
	live, failed := 0, 0
	for _, slot := range p.slotList() {
		switch rec := slot.snapshot(); {
		case rec.Status.Live():
			live++
		case rec.Status == StatusFailed:
			failed++
		}
	}
	metrics.SetLive(live)
	metrics.SetFailed(failed)
}

func (p *Pool) emit(ev events.Event) {
	if err := p.journal.Write(ev); err != nil {
		p.logger.Warn("journal write failed",
			log.String(log.EventKey, ev.Type()),
			log.Error(err),
		)
	}
}
