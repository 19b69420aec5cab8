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

package log

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"strings"
	"testing"
)

// clearEnv removes every logging-related variable so tests start from a
// known environment regardless of the invoking shell.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"DROVER_DEBUG", "DROVER_LOG_LEVEL", "DROVER_LOG_FORMAT", "DROVER_LOG_SOURCE",
		"LOG_LEVEL", "LOG_FORMAT", "LOG_SOURCE",
	} {
		os.Unsetenv(key)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Level != "info" {
		t.Errorf("expected default level 'info', got %q", cfg.Level)
	}

	if cfg.Format != FormatAuto {
		t.Errorf("expected default format 'auto', got %q", cfg.Format)
	}

	if cfg.Output != os.Stderr {
		t.Errorf("expected default output to be os.Stderr")
	}

	if cfg.AddSource {
		t.Errorf("expected default AddSource to be false")
	}
}

func TestFromEnv(t *testing.T) {
	tests := []struct {
		name     string
		envVars  map[string]string
		expected *Config
	}{
		{
			name:    "defaults when no env vars",
			envVars: map[string]string{},
			expected: &Config{
				Level:     "info",
				Format:    FormatAuto,
				Output:    os.Stderr,
				AddSource: false,
			},
		},
		{
			name: "LOG_LEVEL=debug",
			envVars: map[string]string{
				"LOG_LEVEL": "debug",
			},
			expected: &Config{
				Level:     "debug",
				Format:    FormatAuto,
				Output:    os.Stderr,
				AddSource: false,
			},
		},
		{
			name: "DROVER_LOG_LEVEL takes precedence over LOG_LEVEL",
			envVars: map[string]string{
				"DROVER_LOG_LEVEL": "error",
				"LOG_LEVEL":        "debug",
			},
			expected: &Config{
				Level:     "error",
				Format:    FormatAuto,
				Output:    os.Stderr,
				AddSource: false,
			},
		},
		{
			name: "DROVER_DEBUG enables debug and source",
			envVars: map[string]string{
				"DROVER_DEBUG":     "1",
				"DROVER_LOG_LEVEL": "error",
			},
			expected: &Config{
				Level:     "debug",
				Format:    FormatAuto,
				Output:    os.Stderr,
				AddSource: true,
			},
		},
		{
			name: "LOG_LEVEL=WARN (case insensitive)",
			envVars: map[string]string{
				"LOG_LEVEL": "WARN",
			},
			expected: &Config{
				Level:     "warn",
				Format:    FormatAuto,
				Output:    os.Stderr,
				AddSource: false,
			},
		},
		{
			name: "LOG_FORMAT=text",
			envVars: map[string]string{
				"LOG_FORMAT": "text",
			},
			expected: &Config{
				Level:     "info",
				Format:    FormatText,
				Output:    os.Stderr,
				AddSource: false,
			},
		},
		{
			name: "DROVER_LOG_FORMAT takes precedence over LOG_FORMAT",
			envVars: map[string]string{
				"DROVER_LOG_FORMAT": "json",
				"LOG_FORMAT":        "text",
			},
			expected: &Config{
				Level:     "info",
				Format:    FormatJSON,
				Output:    os.Stderr,
				AddSource: false,
			},
		},
		{
			name: "LOG_SOURCE=1",
			envVars: map[string]string{
				"LOG_SOURCE": "1",
			},
			expected: &Config{
				Level:     "info",
				Format:    FormatAuto,
				Output:    os.Stderr,
				AddSource: true,
			},
		},
		{
			name: "all env vars",
			envVars: map[string]string{
				"DROVER_LOG_LEVEL":  "trace",
				"DROVER_LOG_FORMAT": "text",
				"DROVER_LOG_SOURCE": "1",
			},
			expected: &Config{
				Level:     "trace",
				Format:    FormatText,
				Output:    os.Stderr,
				AddSource: true,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.envVars {
				os.Setenv(k, v)
			}
			defer clearEnv(t)

			cfg := FromEnv()

			if cfg.Level != tt.expected.Level {
				t.Errorf("expected level %q, got %q", tt.expected.Level, cfg.Level)
			}
			if cfg.Format != tt.expected.Format {
				t.Errorf("expected format %q, got %q", tt.expected.Format, cfg.Format)
			}
			if cfg.AddSource != tt.expected.AddSource {
				t.Errorf("expected AddSource %v, got %v", tt.expected.AddSource, cfg.AddSource)
			}
		})
	}
}

func TestNew_JSONOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&Config{Level: "info", Format: FormatJSON, Output: &buf})

	logger.Info("pool started", slog.Int("workers", 4))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if entry["msg"] != "pool started" {
		t.Errorf("expected msg 'pool started', got %v", entry["msg"])
	}
	if entry["workers"] != float64(4) {
		t.Errorf("expected workers=4, got %v", entry["workers"])
	}
}

func TestNew_TextOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&Config{Level: "info", Format: FormatText, Output: &buf})

	logger.Info("pool started")

	if !strings.Contains(buf.String(), "msg=\"pool started\"") {
		t.Errorf("expected text format output, got %q", buf.String())
	}
}

func TestNew_AutoFormatResolvesToJSONForBuffers(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&Config{Level: "info", Format: FormatAuto, Output: &buf})

	logger.Info("hello")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("auto format on a non-terminal should be JSON: %v", err)
	}
}

func TestNew_LevelFiltering(t *testing.T) {
	tests := []struct {
		name      string
		level     string
		logAt     slog.Level
		wantEmpty bool
	}{
		{"info hides debug", "info", slog.LevelDebug, true},
		{"info shows info", "info", slog.LevelInfo, false},
		{"error hides warn", "error", slog.LevelWarn, true},
		{"trace shows trace", "trace", LevelTrace, false},
		{"debug hides trace", "debug", LevelTrace, true},
		{"unknown defaults to info", "bogus", slog.LevelInfo, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := New(&Config{Level: tt.level, Format: FormatJSON, Output: &buf})

			logger.Log(nil, tt.logAt, "message")

			if got := buf.Len() == 0; got != tt.wantEmpty {
				t.Errorf("level %q at %v: empty=%v, want %v", tt.level, tt.logAt, got, tt.wantEmpty)
			}
		})
	}
}

func TestNew_NilConfig(t *testing.T) {
	logger := New(nil)
	if logger == nil {
		t.Fatal("expected a usable logger for nil config")
	}
}

func TestWithComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&Config{Level: "info", Format: FormatJSON, Output: &buf})

	WithComponent(logger, "supervisor").Info("ready")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if entry["component"] != "supervisor" {
		t.Errorf("expected component=supervisor, got %v", entry["component"])
	}
}

func TestWithWorker(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&Config{Level: "info", Format: FormatJSON, Output: &buf})

	WithWorker(logger, 2, "gen-abc").Info("spawned")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if entry[WorkerKey] != float64(2) {
		t.Errorf("expected worker=2, got %v", entry[WorkerKey])
	}
	if entry[GenerationKey] != "gen-abc" {
		t.Errorf("expected generation=gen-abc, got %v", entry[GenerationKey])
	}
}

func TestAttrHelpers(t *testing.T) {
	if got := String("k", "v"); got.Key != "k" || got.Value.String() != "v" {
		t.Errorf("String helper produced %v", got)
	}
	if got := Int("n", 7); got.Value.Int64() != 7 {
		t.Errorf("Int helper produced %v", got)
	}
	if got := Int64("n", 9); got.Value.Int64() != 9 {
		t.Errorf("Int64 helper produced %v", got)
	}
	if got := Bool("b", true); !got.Value.Bool() {
		t.Errorf("Bool helper produced %v", got)
	}
	if got := Duration("wait", 1500); got.Key != "wait_ms" || got.Value.Int64() != 1500 {
		t.Errorf("Duration helper produced %v", got)
	}

	err := errors.New("boom")
	if got := Error(err); got.Key != "error" {
		t.Errorf("Error helper produced key %q", got.Key)
	}
}

func TestTrace(t *testing.T) {
	t.Run("emitted at trace level", func(t *testing.T) {
		var buf bytes.Buffer
		logger := New(&Config{Level: "trace", Format: FormatJSON, Output: &buf})

		Trace(logger, "worker stderr", String("line", "listening"))

		if buf.Len() == 0 {
			t.Fatal("expected trace output")
		}
		var entry map[string]any
		if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if entry["line"] != "listening" {
			t.Errorf("expected line attr, got %v", entry["line"])
		}
	})

	t.Run("suppressed at info level", func(t *testing.T) {
		var buf bytes.Buffer
		logger := New(&Config{Level: "info", Format: FormatJSON, Output: &buf})

		Trace(logger, "worker stderr")

		if buf.Len() != 0 {
			t.Errorf("expected no output, got %q", buf.String())
		}
	})
}
