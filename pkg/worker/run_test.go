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
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strconv"
	"syscall"
	"testing"
	"time"

	"github.com/drover-sh/drover/internal/netbind"
)

// supervisedEnv fakes the supervisor's side of the descriptor contract:
// a bound socket exported as a descriptor and a readiness pipe. It
// returns the socket address and the read end of the pipe. Run consumes
// both descriptors.
func supervisedEnv(t *testing.T) (string, *os.File) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to bind: %v", err)
	}
	addr := ln.Addr().String()

	f, err := ln.(*net.TCPListener).File()
	if err != nil {
		t.Fatalf("Failed to export descriptor: %v", err)
	}
	ln.Close()

	readyR, readyW, err := os.Pipe()
	if err != nil {
		t.Fatalf("Failed to create pipe: %v", err)
	}

	t.Setenv(netbind.ListenFDEnv, strconv.Itoa(int(f.Fd())))
	t.Setenv(netbind.ReadyFDEnv, strconv.Itoa(int(readyW.Fd())))
	t.Setenv(netbind.WorkerIDEnv, "0")
	t.Setenv(netbind.GracePeriodEnv, "2s")

	return addr, readyR
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// awaitReady blocks until the worker writes its readiness line.
func awaitReady(t *testing.T, r *os.File) {
	t.Helper()

	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil {
		t.Fatalf("Failed to read readiness line: %v", err)
	}
	if line != "ready\n" {
		t.Fatalf("Expected 'ready\\n', got %q", line)
	}
}

func TestRunServesUntilCanceled(t *testing.T) {
	addr, readyR := supervisedEnv(t)
	defer readyR.Close()

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, "hello")
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, handler, WithLogger(quietLogger()))
	}()

	awaitReady(t, readyR)

	resp, err := http.Get("http://" + addr + "/")
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected 200, got %d", resp.StatusCode)
	}
	if string(body) != "hello\n" {
		t.Errorf("Expected body 'hello', got %q", body)
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Expected clean drain, got %v", err)
	}
}

func TestRunDrainsInflightRequests(t *testing.T) {
	addr, readyR := supervisedEnv(t)
	defer readyR.Close()

	entered := make(chan struct{})
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(entered)
		time.Sleep(300 * time.Millisecond)
		fmt.Fprintln(w, "slow done")
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, handler, WithLogger(quietLogger()))
	}()

	awaitReady(t, readyR)

	type result struct {
		body string
		err  error
	}
	results := make(chan result, 1)
	go func() {
		resp, err := http.Get("http://" + addr + "/")
		if err != nil {
			results <- result{err: err}
			return
		}
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		results <- result{body: string(body), err: err}
	}()

	// Cancel while the request is in flight; the drain must let it
	// finish.
	<-entered
	cancel()

	res := <-results
	if res.err != nil {
		t.Fatalf("In-flight request failed: %v", res.err)
	}
	if res.body != "slow done\n" {
		t.Errorf("Expected full response, got %q", res.body)
	}

	if err := <-done; err != nil {
		t.Errorf("Expected clean drain, got %v", err)
	}
}

func TestRunForcedExitAfterGracePeriod(t *testing.T) {
	addr, readyR := supervisedEnv(t)
	defer readyR.Close()

	entered := make(chan struct{})
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(entered)
		time.Sleep(5 * time.Second)
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, handler,
			WithLogger(quietLogger()),
			WithGracePeriod(100*time.Millisecond),
		)
	}()

	awaitReady(t, readyR)

	reqErr := make(chan error, 1)
	go func() {
		resp, err := http.Get("http://" + addr + "/")
		if err == nil {
			resp.Body.Close()
		}
		reqErr <- err
	}()

	<-entered
	cancel()

	if err := <-done; !errors.Is(err, ErrForcedExit) {
		t.Errorf("Expected ErrForcedExit, got %v", err)
	}
	if err := <-reqErr; err == nil {
		t.Error("Expected the abandoned request to fail, got nil")
	}
}

func TestRunDrainsOnSIGTERM(t *testing.T) {
	addr, readyR := supervisedEnv(t)
	defer readyR.Close()

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, "ok")
	})

	done := make(chan error, 1)
	go func() {
		done <- Run(context.Background(), handler, WithLogger(quietLogger()))
	}()

	awaitReady(t, readyR)

	resp, err := http.Get("http://" + addr + "/")
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	resp.Body.Close()

	// The supervisor drains workers with SIGTERM.
	if err := syscall.Kill(os.Getpid(), syscall.SIGTERM); err != nil {
		t.Fatalf("Failed to signal: %v", err)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Expected clean drain on SIGTERM, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after SIGTERM")
	}
}

func TestRunStandalone(t *testing.T) {
	t.Setenv(netbind.ListenFDEnv, "")
	t.Setenv(netbind.ReadyFDEnv, "")
	t.Setenv("DROVER_HOST", "127.0.0.1")
	t.Setenv("DROVER_PORT", "0")

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, http.NotFoundHandler(), WithLogger(quietLogger()))
	}()

	// No readiness pipe outside supervision; the bind either worked or
	// Run returns the error below.
	time.Sleep(50 * time.Millisecond)
	cancel()

	if err := <-done; err != nil {
		t.Errorf("Expected clean standalone run, got %v", err)
	}
}
