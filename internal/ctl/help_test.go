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
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

// runHelp executes droverctl with the given args and captures its output.
func runHelp(t *testing.T, args ...string) (string, error) {
	t.Helper()

	jsonFlag = false
	t.Cleanup(func() { jsonFlag = false })

	root := NewRootCommand()
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)

	err := root.Execute()
	return buf.String(), err
}

func TestHelpJSONListsAllCommands(t *testing.T) {
	out, err := runHelp(t, "help", "--json")
	if err != nil {
		t.Fatalf("help --json: %v", err)
	}

	var resp HelpResponse
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("decode output: %v\noutput: %s", err, out)
	}

	if resp.Command != nil {
		t.Errorf("expected no single command in a listing, got %+v", resp.Command)
	}

	found := make(map[string]bool)
	for _, c := range resp.Commands {
		found[c.Name] = true
	}
	for _, name := range []string{"status", "stop", "reload", "health", "version", "events", "help"} {
		if !found[name] {
			t.Errorf("command %q missing from listing", name)
		}
	}

	globals := make(map[string]string)
	for _, f := range resp.GlobalFlags {
		globals[f.Name] = f.Shorthand
	}
	for _, name := range []string{"host", "socket", "token", "json", "quiet"} {
		if _, ok := globals[name]; !ok {
			t.Errorf("global flag %q missing", name)
		}
	}
	if globals["quiet"] != "q" {
		t.Errorf("quiet shorthand = %q, want q", globals["quiet"])
	}
}

func TestHelpJSONSingleCommand(t *testing.T) {
	out, err := runHelp(t, "help", "events", "--json")
	if err != nil {
		t.Fatalf("help events --json: %v", err)
	}

	var resp HelpResponse
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("decode output: %v\noutput: %s", err, out)
	}

	if resp.Command == nil {
		t.Fatal("expected command metadata, got none")
	}
	if resp.Command.Name != "events" {
		t.Errorf("command name = %q, want events", resp.Command.Name)
	}
	if len(resp.Commands) != 0 {
		t.Errorf("expected no listing for a single command, got %d entries", len(resp.Commands))
	}
	if resp.Command.Examples == "" {
		t.Error("expected examples to be populated")
	}

	flags := make(map[string]string)
	for _, f := range resp.Command.Flags {
		flags[f.Name] = f.Shorthand
	}
	for _, name := range []string{"type", "run", "tail"} {
		if _, ok := flags[name]; !ok {
			t.Errorf("flag %q missing from events metadata", name)
		}
	}
	if flags["tail"] != "n" {
		t.Errorf("tail shorthand = %q, want n", flags["tail"])
	}
}

func TestHelpTextOutput(t *testing.T) {
	out, err := runHelp(t, "help")
	if err != nil {
		t.Fatalf("help: %v", err)
	}

	if strings.HasPrefix(strings.TrimSpace(out), "{") {
		t.Errorf("expected rendered help text, got JSON:\n%s", out)
	}
	if !strings.Contains(out, "droverctl") {
		t.Errorf("help text does not mention droverctl:\n%s", out)
	}
}

func TestHelpUnknownCommand(t *testing.T) {
	_, err := runHelp(t, "help", "bogus")
	if err == nil {
		t.Fatal("expected an error for an unknown command")
	}
	if !strings.Contains(err.Error(), "not found") {
		t.Errorf("error = %q, want it to mention the command was not found", err)
	}
}
