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
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"sync"

	"github.com/drover-sh/drover/internal/log"
	"github.com/drover-sh/drover/internal/netbind"
	drovererrors "github.com/drover-sh/drover/pkg/errors"
)

// ExecLauncher starts real operating system processes. Worker stdout and
// stderr are forwarded line by line to the launcher's logger, tagged with
// the worker identity and stream name.
type ExecLauncher struct {
	logger *slog.Logger
}

// NewExecLauncher creates a launcher that forwards worker output to logger.
func NewExecLauncher(logger *slog.Logger) *ExecLauncher {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExecLauncher{logger: logger}
}

// Start launches the worker described by spec.
//
// The child inherits the supervisor's environment plus the descriptor
// contract: the shared listener as fd 3 and the write end of a readiness
// pipe as fd 4, with DROVER_LISTEN_FD, DROVER_READY_FD, DROVER_WORKER_ID,
// and DROVER_GRACE_PERIOD naming them.
func (l *ExecLauncher) Start(ctx context.Context, spec Spec) (Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(spec.Command) == 0 {
		return nil, drovererrors.New("worker command is empty")
	}
	if spec.Listener == nil {
		return nil, drovererrors.New("worker spec has no listener")
	}

	readyR, readyW, err := os.Pipe()
	if err != nil {
		return nil, drovererrors.Wrap(err, "create readiness pipe")
	}

	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		readyR.Close()
		readyW.Close()
		return nil, drovererrors.Wrap(err, "create stdout pipe")
	}
	stderrR, stderrW, err := os.Pipe()
	if err != nil {
		readyR.Close()
		readyW.Close()
		stdoutR.Close()
		stdoutW.Close()
		return nil, drovererrors.Wrap(err, "create stderr pipe")
	}

	cmd := exec.Command(spec.Command[0], spec.Command[1:]...)
	cmd.Dir = spec.Dir
	cmd.Stdout = stdoutW
	cmd.Stderr = stderrW
	cmd.ExtraFiles = []*os.File{spec.Listener, readyW}
	cmd.SysProcAttr = sysProcAttr()
	cmd.Env = append(os.Environ(),
		fmt.Sprintf("%s=%d", netbind.ListenFDEnv, netbind.WorkerListenFD),
		fmt.Sprintf("%s=%d", netbind.ReadyFDEnv, netbind.WorkerReadyFD),
		fmt.Sprintf("%s=%d", netbind.WorkerIDEnv, spec.WorkerID),
		fmt.Sprintf("%s=%s", netbind.GracePeriodEnv, spec.GracePeriod.String()),
	)
	cmd.Env = append(cmd.Env, spec.Env...)

	h := &execHandle{
		cmd:    cmd,
		ready:  make(chan struct{}),
		exited: make(chan struct{}),
	}

	// Fork and reap on a dedicated goroutine pinned to its OS thread, so
	// the thread Pdeathsig is tied to stays alive until the child exits.
	// See https://github.com/golang/go/issues/27505.
	startErr := make(chan error, 1)
	go func() {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()

		if err := cmd.Start(); err != nil {
			startErr <- err
			return
		}
		startErr <- nil

		h.reap(cmd.Wait())
	}()

	if err := <-startErr; err != nil {
		readyR.Close()
		readyW.Close()
		stdoutR.Close()
		stdoutW.Close()
		stderrR.Close()
		stderrW.Close()
		return nil, drovererrors.Wrapf(err, "start worker %d", spec.WorkerID)
	}

	// The child holds its own copies now.
	readyW.Close()
	stdoutW.Close()
	stderrW.Close()

	logger := log.WithWorker(l.logger, spec.WorkerID, spec.Generation)

	go h.watchReady(readyR)

	h.forwarders.Add(2)
	go h.forwardOutput(stdoutR, logger, "stdout")
	go h.forwardOutput(stderrR, logger, "stderr")

	return h, nil
}

// execHandle wraps a started exec.Cmd.
type execHandle struct {
	cmd        *exec.Cmd
	ready      chan struct{}
	exited     chan struct{}
	status     ExitStatus
	forwarders sync.WaitGroup
}

func (h *execHandle) PID() int {
	return h.cmd.Process.Pid
}

func (h *execHandle) Ready() <-chan struct{} {
	return h.ready
}

func (h *execHandle) Signal(sig os.Signal) error {
	return h.cmd.Process.Signal(sig)
}

func (h *execHandle) Kill() error {
	return h.cmd.Process.Kill()
}

// reap records the exit status and releases waiters.
func (h *execHandle) reap(err error) {
	h.status = ExitStatus{PID: h.cmd.Process.Pid}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		h.status.Code = 0
	case drovererrors.As(err, &exitErr):
		h.status.Code = exitErr.ExitCode()
	default:
		h.status.Code = -1
		h.status.Err = err
	}

	close(h.exited)
}

// Wait blocks until the process exits and its output pipes have drained.
func (h *execHandle) Wait() ExitStatus {
	<-h.exited

	// After exit the write ends are closed, so the forwarders see EOF
	// promptly. Waiting on them keeps crash output from being dropped.
	h.forwarders.Wait()

	return h.status
}

// watchReady reads one line from the readiness pipe, then closes it. Any
// complete line counts; workers write "ready". EOF without a line means the
// worker exited first, and the ready channel is never closed.
func (h *execHandle) watchReady(r *os.File) {
	defer r.Close()

	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && line == "" {
		return
	}
	close(h.ready)
}

// forwardOutput copies one output stream into the log, a line at a time.
func (h *execHandle) forwardOutput(r *os.File, logger *slog.Logger, stream string) {
	defer h.forwarders.Done()
	defer r.Close()

	reader := bufio.NewReader(r)
	for {
		line, err := reader.ReadString('\n')
		if line = strings.TrimRight(line, "\n"); line != "" {
			logger.Info(line, slog.String("stream", stream))
		}
		if err != nil {
			if err != io.EOF {
				logger.Debug("output stream closed", slog.String("stream", stream), log.Error(err))
			}
			return
		}
	}
}
