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
	"testing"

	"github.com/drover-sh/drover/internal/ctlclient"
)

func TestNewRootCommand(t *testing.T) {
	cmd := NewRootCommand()

	if cmd.Use != "droverctl" {
		t.Errorf("expected use 'droverctl', got %q", cmd.Use)
	}

	if cmd.Short == "" {
		t.Error("expected short description to be set")
	}

	if cmd.Long == "" {
		t.Error("expected long description to be set")
	}

	want := map[string]bool{
		"status":  false,
		"stop":    false,
		"reload":  false,
		"health":  false,
		"version": false,
		"events":  false,
	}
	for _, sub := range cmd.Commands() {
		if _, ok := want[sub.Name()]; ok {
			want[sub.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("subcommand %q not registered", name)
		}
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	for _, name := range []string{"host", "socket", "token", "json", "quiet"} {
		if cmd.PersistentFlags().Lookup(name) == nil {
			t.Errorf("%s flag not registered", name)
		}
	}
}

func TestSetVersion(t *testing.T) {
	SetVersion("1.2.3", "abc123", "2026-08-25")

	if version != "1.2.3" {
		t.Errorf("expected version '1.2.3', got %q", version)
	}
	if commit != "abc123" {
		t.Errorf("expected commit 'abc123', got %q", commit)
	}
	if buildDate != "2026-08-25" {
		t.Errorf("expected build date '2026-08-25', got %q", buildDate)
	}
}

func TestControlHostPrecedence(t *testing.T) {
	defer func() {
		hostFlag = ""
		socketFlag = ""
	}()

	t.Setenv(ctlclient.HostEnv, "tcp://127.0.0.1:9999")

	// --host beats everything
	hostFlag = "unix:///tmp/flag.sock"
	socketFlag = "/tmp/ignored.sock"
	if got := controlHost(); got != "unix:///tmp/flag.sock" {
		t.Errorf("with --host set: got %q", got)
	}

	// --socket beats the environment
	hostFlag = ""
	if got := controlHost(); got != "unix:///tmp/ignored.sock" {
		t.Errorf("with --socket set: got %q", got)
	}

	// environment is the fallback
	socketFlag = ""
	if got := controlHost(); got != "tcp://127.0.0.1:9999" {
		t.Errorf("with environment only: got %q", got)
	}
}

func TestNewClientUsesSocketFlag(t *testing.T) {
	socketFlag = "/tmp/ctl-test.sock"
	defer func() { socketFlag = "" }()

	c, err := newClient()
	if err != nil {
		t.Fatalf("newClient: %v", err)
	}

	if c.Endpoint() != "unix:///tmp/ctl-test.sock" {
		t.Errorf("endpoint = %q, want unix:///tmp/ctl-test.sock", c.Endpoint())
	}
}

func TestNewClientRejectsBadHost(t *testing.T) {
	hostFlag = "gopher://nope"
	defer func() { hostFlag = "" }()

	if _, err := newClient(); err == nil {
		t.Fatal("expected an error for an unsupported scheme")
	}
}
