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

package ctl

import (
	"strings"
	"testing"
	"time"

	"github.com/drover-sh/drover/internal/ctlclient"
)

func TestFormatPID(t *testing.T) {
	if got := formatPID(0); got != "-" {
		t.Errorf("formatPID(0) = %q, want -", got)
	}
	if got := formatPID(1234); got != "1234" {
		t.Errorf("formatPID(1234) = %q", got)
	}
}

func TestFormatWorkerUptime(t *testing.T) {
	if got := formatWorkerUptime(ctlclient.WorkerStatus{}); got != "-" {
		t.Errorf("uptime without start time = %q, want -", got)
	}

	worker := ctlclient.WorkerStatus{StartedAt: time.Now().Add(-90 * time.Second)}
	got := formatWorkerUptime(worker)
	if !strings.HasSuffix(got, "s") {
		t.Errorf("uptime = %q, expected a duration", got)
	}
}

func TestFormatWorkerDetails(t *testing.T) {
	if got := formatWorkerDetails(ctlclient.WorkerStatus{}); got != "" {
		t.Errorf("empty worker details = %q", got)
	}

	code := 137
	if got := formatWorkerDetails(ctlclient.WorkerStatus{ExitCode: &code}); got != "exit code 137" {
		t.Errorf("exit code details = %q", got)
	}

	long := strings.Repeat("e", 80)
	got := formatWorkerDetails(ctlclient.WorkerStatus{LastError: long})
	if !strings.HasSuffix(got, "...") || len(got) != 53 {
		t.Errorf("long error not truncated: %q", got)
	}

	// Last error wins over a recorded exit code
	got = formatWorkerDetails(ctlclient.WorkerStatus{LastError: "spawn failed", ExitCode: &code})
	if got != "spawn failed" {
		t.Errorf("details = %q, want the error", got)
	}
}

func TestRenderState(t *testing.T) {
	for _, state := range []string{"idle", "binding", "starting", "running", "draining", "stopped", "failed"} {
		if got := renderState(state); !strings.Contains(got, state) {
			t.Errorf("renderState(%q) = %q, should contain the state", state, got)
		}
	}
}

func TestRenderWorkerStatus(t *testing.T) {
	for _, status := range []string{"starting", "ready", "serving", "draining", "exited", "failed"} {
		if got := renderWorkerStatus(status); !strings.Contains(got, status) {
			t.Errorf("renderWorkerStatus(%q) = %q, should contain the status", status, got)
		}
	}
}
