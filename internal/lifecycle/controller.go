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
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/drover-sh/drover/internal/config"
	"github.com/drover-sh/drover/internal/control"
	"github.com/drover-sh/drover/internal/events"
	"github.com/drover-sh/drover/internal/log"
	"github.com/drover-sh/drover/internal/metrics"
	"github.com/drover-sh/drover/internal/netbind"
	"github.com/drover-sh/drover/internal/proc"
	"github.com/drover-sh/drover/internal/supervisor"
	"github.com/drover-sh/drover/internal/watch"
	drovererrors "github.com/drover-sh/drover/pkg/errors"
)

// Options contains supervisor identity set at build time.
type Options struct {
	Version   string
	Commit    string
	BuildDate string
}

// Controller owns one supervisor run: it binds the shared socket, starts
// the worker pool, brings up the control API and reload watcher, and
// reacts to signals until the pool has drained. The error returned by Run
// decides the process exit code.
type Controller struct {
	cfg     *config.Config
	opts    Options
	command []string

	base    *slog.Logger
	logger  *slog.Logger
	journal events.Journal
	machine *Machine
	runID   string

	fileJournal *events.FileJournal
	pidFile     *PIDFile
	launcher    proc.Launcher

	listener  *netbind.Listener
	pool      *supervisor.Pool
	control   *control.Server
	watcher   *watch.Watcher
	startedAt time.Time

	started    atomic.Bool
	shutdownCh chan string
}

// New assembles a controller from validated configuration. The worker
// command is everything after "--" on the drover command line.
func New(cfg *config.Config, command []string, opts Options) (*Controller, error) {
	if len(command) == 0 {
		return nil, &drovererrors.ConfigError{
			Key:    "command",
			Reason: "no worker command given",
		}
	}

	base := log.New(&log.Config{
		Level:     cfg.Log.Level,
		Format:    log.Format(cfg.Log.Format),
		AddSource: cfg.Log.AddSource,
	})
	logger := log.WithComponent(base, "lifecycle")

	runID := events.NewRunID()
	sinks := []events.Journal{
		events.NewLogJournal(log.WithComponent(base, "event")),
		metrics.NewSink(),
	}

	var fileJournal *events.FileJournal
	if cfg.JournalPath != "" {
		fj, err := events.OpenFile(cfg.JournalPath, runID)
		if err != nil {
			return nil, &drovererrors.ConfigError{
				Key:    "journal_path",
				Reason: "cannot open event journal",
				Cause:  err,
			}
		}
		fileJournal = fj
		sinks = append(sinks, fj)
	}
	journal := events.Multi(sinks...)

	c := &Controller{
		cfg:         cfg,
		opts:        opts,
		command:     command,
		base:        base,
		logger:      logger,
		journal:     journal,
		machine:     NewMachine(journal, logger),
		runID:       runID,
		fileJournal: fileJournal,
		launcher:    proc.NewExecLauncher(log.WithComponent(base, "worker")),
		shutdownCh:  make(chan string, 1),
	}
	if cfg.PIDFile != "" {
		c.pidFile = NewPIDFile(cfg.PIDFile)
	}
	return c, nil
}

// Logger returns the controller's base logger so the command line front
// end can adopt it as the process default.
func (c *Controller) Logger() *slog.Logger {
	return c.base
}

// RunID returns the identifier stamped on every journal entry of this run.
func (c *Controller) RunID() string {
	return c.runID
}

// Run drives the lifecycle until the pool has drained or a setup step has
// failed. It blocks for the whole supervisor lifetime and is safe to call
// once.
func (c *Controller) Run(ctx context.Context) error {
	if c.started.Swap(true) {
		return drovererrors.New("controller already started")
	}
	defer c.closeJournal()

	if c.pidFile != nil {
		if err := c.pidFile.Acquire(os.Getpid()); err != nil {
			c.fail()
			return &drovererrors.ConfigError{
				Key:    "pid_file",
				Reason: "cannot acquire PID file",
				Cause:  err,
			}
		}
		defer func() {
			if err := c.pidFile.Release(); err != nil {
				c.logger.Warn("PID file release failed", log.Error(err))
			}
		}()
	}

	if err := proc.EnableSubreaper(); err != nil {
		c.logger.Debug("child subreaper unavailable", log.Error(err))
	}

	// The socket is bound before any worker exists and stays open for the
	// whole run, so restarts inherit the same accept queue.
	if err := c.machine.To(StateBinding); err != nil {
		return err
	}
	ln, err := netbind.Bind(c.cfg.BindAddr())
	if err != nil {
		c.fail()
		return err
	}
	c.listener = ln
	defer ln.Close()

	c.emit(&events.SocketBound{Addr: ln.Addr().String()})
	c.logger.Info("socket bound",
		log.String("addr", ln.Addr().String()),
		log.Int("workers", c.cfg.Server.Workers),
	)

	c.pool = supervisor.New(supervisor.Config{
		Command:         c.command,
		Workers:         c.cfg.Server.Workers,
		ListenerFile:    ln.File(),
		Addr:            ln.Addr().String(),
		StartupTimeout:  c.cfg.Supervise.StartupTimeout,
		GracePeriod:     c.cfg.Supervise.GracePeriod,
		ShutdownTimeout: c.cfg.Supervise.ShutdownTimeout,
		MaxRestarts:     c.cfg.Supervise.MaxRestarts,
		RestartWindow:   c.cfg.Supervise.RestartWindow,
		BackoffCap:      c.cfg.Supervise.BackoffCap,
		Launcher:        c.launcher,
		Journal:         c.journal,
		Logger:          c.base,
	})

	if err := c.machine.To(StateStarting); err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigCh)

	startCtx, cancelStart := context.WithCancel(context.Background())
	defer cancelStart()

	startDone := make(chan error, 1)
	go func() { startDone <- c.pool.Start(startCtx) }()

	var interrupt string
	var startErr error
startup:
	for {
		select {
		case err := <-startDone:
			startErr = err
			break startup
		case sig := <-sigCh:
			if sig == syscall.SIGHUP {
				c.logger.Debug("ignoring SIGHUP during startup")
				continue
			}
			interrupt = sig.String()
			cancelStart()
		case <-ctx.Done():
			interrupt = "context canceled"
			cancelStart()
		}
	}

	if interrupt != "" {
		// The operator interrupted startup; whatever had started is
		// already torn down, the drain is bookkeeping.
		c.logger.Info("startup interrupted", log.String("reason", interrupt))
		return c.shutdown(interrupt)
	}
	if startErr != nil {
		c.fail()
		return startErr
	}

	if err := c.machine.To(StateRunning); err != nil {
		return err
	}
	c.startedAt = time.Now()

	c.startControl()
	c.startWatcher(ctx)

	for {
		select {
		case sig := <-sigCh:
			switch sig {
			case syscall.SIGHUP:
				c.triggerReload("sighup")
			default:
				return c.shutdown(sig.String())
			}
		case reason := <-c.shutdownCh:
			return c.shutdown(reason)
		case <-ctx.Done():
			return c.shutdown("context canceled")
		}
	}
}

// shutdown drains the pool and stops every auxiliary component, always
// attempting the full sequence.
func (c *Controller) shutdown(reason string) error {
	if err := c.machine.To(StateDraining); err != nil {
		return err
	}

	if c.watcher != nil {
		if err := c.watcher.Stop(); err != nil {
			c.logger.Warn("reload watcher stop failed", log.Error(err))
		}
	}

	// The pool SIGKILLs stragglers once ShutdownTimeout lapses; the
	// headroom covers reaping.
	drainCtx, cancel := context.WithTimeout(context.Background(), c.cfg.Supervise.ShutdownTimeout+5*time.Second)
	defer cancel()
	if err := c.pool.Stop(drainCtx, reason); err != nil {
		c.logger.Error("drain did not complete", log.Error(err))
	}

	if c.control != nil {
		ctlCtx, cancelCtl := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancelCtl()
		if err := c.control.Shutdown(ctlCtx); err != nil {
			c.logger.Warn("control API shutdown failed", log.Error(err))
		}
	}

	if err := c.listener.Close(); err != nil {
		c.logger.Warn("listener close failed", log.Error(err))
	}

	if err := c.machine.To(StateStopped); err != nil {
		return err
	}
	c.logger.Info("supervisor stopped", log.String("reason", reason))
	return nil
}

// startControl brings up the control API. Losing it is not fatal: the
// pool keeps serving without a control plane.
func (c *Controller) startControl() {
	if !c.cfg.Control.Enabled {
		return
	}

	srv := control.New(control.Config{
		SocketPath:  c.cfg.Control.SocketPath,
		TCPAddr:     c.cfg.Control.TCPAddr,
		AllowRemote: c.cfg.Control.AllowRemote,
		AuthToken:   c.cfg.Control.AuthToken,
		Version:     c.opts.Version,
		Commit:      c.opts.Commit,
		BuildDate:   c.opts.BuildDate,
		Logger:      c.base,
	}, c)
	if err := srv.Start(); err != nil {
		c.logger.Error("control API unavailable", log.Error(err))
		return
	}
	c.control = srv
}

// startWatcher brings up the file watcher behind --reload. Same policy as
// the control API: a watcher failure degrades, never aborts.
func (c *Controller) startWatcher(ctx context.Context) {
	if !c.cfg.Reload.Enabled {
		return
	}

	w, err := watch.New(watch.Config{
		Paths:    c.cfg.Reload.Paths,
		Include:  c.cfg.Reload.Include,
		Exclude:  c.cfg.Reload.Exclude,
		Debounce: c.cfg.Reload.Debounce,
		Logger:   c.base,
		OnChange: func(paths []string) {
			c.logger.Info("file change detected",
				log.Int("files", len(paths)),
				log.String("path", paths[0]),
			)
			c.triggerReload("watch")
		},
	})
	if err != nil {
		c.logger.Error("reload watcher unavailable", log.Error(err))
		return
	}
	if err := w.Start(ctx); err != nil {
		c.logger.Error("reload watcher unavailable", log.Error(err))
		return
	}
	c.watcher = w
}

var _ control.Supervisor = (*Controller)(nil)

// Reload performs a rolling restart of the pool. The pool allows one
// rolling restart at a time; overlapping requests are rejected.
func (c *Controller) Reload(ctx context.Context, trigger string) error {
	if c.pool == nil {
		return supervisor.ErrNotRunning
	}
	return c.pool.Reload(ctx, trigger)
}

// triggerReload runs a rolling restart in the background, for signal and
// file-watch triggers that must not block the run loop.
func (c *Controller) triggerReload(trigger string) {
	go func() {
		if err := c.Reload(context.Background(), trigger); err != nil {
			c.logger.Warn("rolling restart failed",
				log.String("trigger", trigger),
				log.Error(err),
			)
		}
	}()
}

// RequestShutdown asks the run loop to drain. Duplicate requests are
// dropped; the first reason wins.
func (c *Controller) RequestShutdown(reason string) {
	select {
	case c.shutdownCh <- reason:
	default:
	}
}

// State returns the current lifecycle state name.
func (c *Controller) State() string {
	return string(c.machine.Current())
}

// Addr returns the bound listening address, or "" before the bind.
func (c *Controller) Addr() string {
	if c.listener == nil {
		return ""
	}
	return c.listener.Addr().String()
}

// StartedAt returns when the pool reached Running.
func (c *Controller) StartedAt() time.Time {
	return c.startedAt
}

// Status returns a snapshot of every worker record.
func (c *Controller) Status() []supervisor.WorkerRecord {
	if c.pool == nil {
		return nil
	}
	return c.pool.Status()
}

// Workers returns the configured pool size.
func (c *Controller) Workers() int {
	if c.pool == nil {
		return 0
	}
	return c.pool.Workers()
}

// RunningCount returns how many workers are currently live.
func (c *Controller) RunningCount() int {
	if c.pool == nil {
		return 0
	}
	return c.pool.RunningCount()
}

// fail moves the machine to Failed, tolerating an already-terminal state.
func (c *Controller) fail() {
	if c.machine.Current().Terminal() {
		return
	}
	if err := c.machine.To(StateFailed); err != nil {
		c.logger.Warn("state transition rejected", log.Error(err))
	}
}

func (c *Controller) emit(ev events.Event) {
	if err := c.journal.Write(ev); err != nil {
		c.logger.Warn("journal write failed",
			log.String(log.EventKey, ev.Type()),
			log.Error(err),
		)
	}
}

func (c *Controller) closeJournal() {
	if c.fileJournal != nil {
		if err := c.fileJournal.Close(); err != nil {
			c.logger.Warn("journal close failed", log.Error(err))
		}
	}
}
