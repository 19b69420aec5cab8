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

package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

// ErrForcedExit is returned by Run when requests were still in flight
// after the grace period and their connections were reset.
var ErrForcedExit = errors.New("worker: forced exit after grace period")

// options configures Run.
type options struct {
	logger      *slog.Logger
	gracePeriod time.Duration
	configure   func(*http.Server)
}

// Option configures Run.
type Option func(*options)

// WithLogger sets the logger for harness and http.Server messages.
// Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithGracePeriod overrides the drain window. Defaults to the period
// the supervisor granted via the environment.
func WithGracePeriod(d time.Duration) Option {
	return func(o *options) {
		o.gracePeriod = d
	}
}

// WithServerTuning exposes the http.Server before it starts, for
// timeouts and limits the defaults don't cover.
func WithServerTuning(fn func(*http.Server)) Option {
	return func(o *options) {
		o.configure = fn
	}
}

// Run serves handler on the worker's listener until the context is
// canceled or SIGTERM/SIGINT arrives, then stops accepting and drains
// in-flight requests within the grace period.
//
// A clean drain returns nil and the process should exit 0. If the
// grace period elapses with requests still in flight, their
// connections are closed and Run returns ErrForcedExit; callers should
// exit non-zero. Handler panics never reach Run: net/http confines
// them to their connection.
func Run(ctx context.Context, handler http.Handler, opts ...Option) error {
	o := options{
		logger:      slog.Default(),
		gracePeriod: GracePeriod(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	ln, err := Listen()
	if err != nil {
		return err
	}

	server := &http.Server{
		Handler:  handler,
		ErrorLog: slog.NewLogLogger(o.logger.Handler(), slog.LevelError),
	}
	if o.configure != nil {
		o.configure(server)
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.Serve(ln)
	}()

	// The socket has been listening since the supervisor bound it, so
	// connections are already queuing; accepting them is what readiness
	// means.
	if err := Ready(); err != nil {
		o.logger.Warn("failed to signal readiness", slog.String("error", err.Error()))
	}
	o.logger.Info("worker serving",
		slog.Int("worker", ID()),
		slog.String("addr", ln.Addr().String()),
		slog.Duration("grace_period", o.gracePeriod),
	)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(stop)

	select {
	case err := <-serveErr:
		// The listener failed underneath us; nothing to drain.
		return fmt.Errorf("worker: serve: %w", err)
	case <-ctx.Done():
		o.logger.Info("drain requested", slog.String("cause", "context canceled"))
	case sig := <-stop:
		o.logger.Info("drain requested", slog.String("cause", sig.String()))
	}

	drainCtx, cancel := context.WithTimeout(context.Background(), o.gracePeriod)
	defer cancel()

	if err := server.Shutdown(drainCtx); err != nil {
		// Still-open requests have used up their budget; reset them.
		server.Close()
		o.logger.Warn("grace period elapsed with requests in flight")
		return ErrForcedExit
	}

	o.logger.Info("worker drained")
	return nil
}
