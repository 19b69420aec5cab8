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

// Package netbind owns the pool's single listening socket.
//
// The socket is bound exactly once, before any worker starts, and every
// worker inherits a descriptor for the same socket. All workers therefore
// accept from one kernel accept queue; the supervisor itself never accepts
// a connection.
package netbind

import (
	"net"
	"os"
	"sync"

	drovererrors "github.com/drover-sh/drover/pkg/errors"
)

// Environment contract between the supervisor and worker processes.
// internal/proc sets these when launching a worker; pkg/worker reads them.
const (
	// ListenFDEnv names the file descriptor of the inherited listening
	// socket in the worker process.
	ListenFDEnv = "DROVER_LISTEN_FD"

	// ReadyFDEnv names the write end of the readiness pipe. The worker
	// writes a single "ready" line and closes it once it is accepting.
	ReadyFDEnv = "DROVER_READY_FD"

	// WorkerIDEnv carries the worker's stable identity (0..N-1).
	WorkerIDEnv = "DROVER_WORKER_ID"

	// GracePeriodEnv carries the drain grace period as a Go duration
	// string. Workers must finish in-flight requests within it.
	GracePeriodEnv = "DROVER_GRACE_PERIOD"
)

// Descriptor numbers in the child process. ExtraFiles appends after
// stdin/stdout/stderr, so the first extra file is always fd 3.
const (
	WorkerListenFD = 3
	WorkerReadyFD  = 4
)

// Listener wraps the shared listening socket. It is bound once by the
// supervisor and stays open for the supervisor's whole lifetime so worker
// restarts inherit the same socket even when every worker has exited.
type Listener struct {
	ln   *net.TCPListener
	file *os.File

	closeOnce sync.Once
	closeErr  error
}

// Bind creates the pool's listening socket on addr (host:port). The
// returned error is a *drovererrors.BindError for any failure: address
// already in use, permission denied, or an unresolvable address.
func Bind(addr string) (*Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, &drovererrors.BindError{Addr: addr, Cause: err}
	}

	tcpLn := ln.(*net.TCPListener)

	// Export the descriptor once. The dup shares the same open socket,
	// so children appended via ExtraFiles accept from the same queue.
	file, err := tcpLn.File()
	if err != nil {
		ln.Close()
		return nil, &drovererrors.BindError{Addr: addr, Cause: err}
	}

	return &Listener{ln: tcpLn, file: file}, nil
}

// File returns the descriptor handed to worker processes via ExtraFiles.
// The same *os.File is reused for every spawn; os/exec dups it into the
// child, leaving the parent's copy open.
func (l *Listener) File() *os.File {
	return l.file
}

// Addr returns the bound address. With port 0 in the bind address this
// reports the kernel-assigned port.
func (l *Listener) Addr() net.Addr {
	return l.ln.Addr()
}

// Port returns the bound TCP port.
func (l *Listener) Port() int {
	return l.ln.Addr().(*net.TCPAddr).Port
}

// Close releases the socket. It is idempotent: the first call closes both
// the listener and the exported descriptor, later calls return the first
// result.
func (l *Listener) Close() error {
	l.closeOnce.Do(func() {
		err := l.ln.Close()
		if ferr := l.file.Close(); err == nil {
			err = ferr
		}
		l.closeErr = err
	})
	return l.closeErr
}
