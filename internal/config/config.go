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

// Package config loads and validates drover configuration from YAML files
// and environment variables. Precedence, lowest to highest: built-in
// defaults, config file, environment. Command-line flags are applied by the
// caller on top of the loaded config.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	drovererrors "github.com/drover-sh/drover/pkg/errors"
)

// ErrInvalidConfig is returned when configuration validation fails.
var ErrInvalidConfig = errors.New("config: invalid configuration")

// Config is the root configuration for the drover supervisor.
type Config struct {
	// Server configures the shared listening socket and pool size.
	Server ServerConfig `yaml:"server"`

	// Supervise configures restart, readiness, and drain behavior.
	Supervise SuperviseConfig `yaml:"supervise"`

	// Control configures the control API listeners.
	Control ControlConfig `yaml:"control"`

	// Reload configures file-watch-triggered rolling restarts.
	Reload ReloadConfig `yaml:"reload"`

	// Log configures the structured logger.
	Log LogConfig `yaml:"log"`

	// PIDFile is the path of the supervisor PID file. Empty disables it.
	PIDFile string `yaml:"pid_file"`

	// JournalPath is the path of the JSONL event journal. Empty disables it.
	JournalPath string `yaml:"journal_path"`
}

// ServerConfig describes the listening socket shared by all workers.
type ServerConfig struct {
	// Host is the bind address. 0.0.0.0 listens on all interfaces.
	Host string `yaml:"host"`

	// Port is the bind port (1-65535).
	Port int `yaml:"port"`

	// Workers is the number of worker processes to maintain.
	// Defaults to runtime.NumCPU(); an explicit value must be positive.
	Workers int `yaml:"workers"`
}

// SuperviseConfig bounds worker startup, restart, and shutdown.
type SuperviseConfig struct {
	// StartupTimeout bounds the wait for a spawned worker to report ready.
	StartupTimeout time.Duration `yaml:"startup_timeout"`

	// GracePeriod is advertised to workers as their drain budget.
	GracePeriod time.Duration `yaml:"grace_period"`

	// ShutdownTimeout bounds the whole-pool drain before force-kill.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// MaxRestarts is the per-worker restart budget within RestartWindow.
	MaxRestarts int `yaml:"max_restarts"`

	// RestartWindow is the sliding window for the restart budget.
	RestartWindow time.Duration `yaml:"restart_window"`

	// BackoffCap caps the exponential restart backoff.
	BackoffCap time.Duration `yaml:"backoff_cap"`
}

// ControlConfig describes the control API listeners.
type ControlConfig struct {
	// Enabled turns the control API on. Default: true.
	Enabled bool `yaml:"enabled"`

	// SocketPath is the Unix socket the control API listens on.
	SocketPath string `yaml:"socket_path"`

	// TCPAddr optionally exposes the control API over TCP (host:port).
	TCPAddr string `yaml:"tcp_addr"`

	// AllowRemote permits binding TCPAddr to a non-loopback interface.
	AllowRemote bool `yaml:"allow_remote"`

	// AuthToken is the bearer token required on remote TCP connections.
	AuthToken string `yaml:"auth_token"`
}

// ReloadConfig describes file-watch-triggered rolling restarts.
type ReloadConfig struct {
	// Enabled turns the file watcher on. Default: false.
	Enabled bool `yaml:"enabled"`

	// Paths are the directories to watch recursively.
	Paths []string `yaml:"paths"`

	// Include are doublestar patterns a changed path must match.
	Include []string `yaml:"include"`

	// Exclude are doublestar patterns that suppress a change event.
	Exclude []string `yaml:"exclude"`

	// Debounce coalesces bursts of change events into one reload.
	Debounce time.Duration `yaml:"debounce"`
}

// LogConfig configures the structured logger.
type LogConfig struct {
	// Level is the minimum log level (trace, debug, info, warn, error).
	Level string `yaml:"level"`

	// Format is the output format (json, text, auto).
	Format string `yaml:"format"`

	// AddSource adds source file and line attributes to log records.
	AddSource bool `yaml:"source"`
}

// DefaultExcludes are reload patterns ignored out of the box: VCS metadata,
// editor temp files, and compiled artifacts that churn during builds.
var DefaultExcludes = []string{
	"**/.git/**",
	"**/.hg/**",
	"**/.svn/**",
	"**/node_modules/**",
	"**/__pycache__/**",
	"**/*.swp",
	"**/*.tmp",
	"**/*~",
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:    "0.0.0.0",
			Port:    8000,
			Workers: runtime.NumCPU(),
		},
		Supervise: SuperviseConfig{
			StartupTimeout:  30 * time.Second,
			GracePeriod:     30 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			MaxRestarts:     5,
			RestartWindow:   60 * time.Second,
			BackoffCap:      30 * time.Second,
		},
		Control: ControlConfig{
			Enabled:    true,
			SocketPath: DefaultSocketPath(),
		},
		Reload: ReloadConfig{
			Enabled:  false,
			Paths:    []string{"."},
			Include:  []string{"**/*"},
			Exclude:  append([]string(nil), DefaultExcludes...),
			Debounce: 300 * time.Millisecond,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "auto",
		},
	}
}

// Load builds the configuration: defaults, then the YAML file at configPath
// (optional when empty), then environment overrides, then validation.
// Errors are *drovererrors.ConfigError so callers map them to exit code 2.
func Load(configPath string) (*Config, error) {
	cfg := Default()

	if configPath != "" {
		if err := cfg.loadFromFile(configPath); err != nil {
			return nil, &drovererrors.ConfigError{
				Key:    "config_file",
				Reason: fmt.Sprintf("failed to load from %s", configPath),
				Cause:  err,
			}
		}
	}

	// Fill zero values back in; a sparse file only overrides what it names,
	// but explicit zeros for list fields fall back to defaults here.
	cfg.applyDefaults()

	cfg.loadFromEnv()

	if err := cfg.Validate(); err != nil {
		return nil, &drovererrors.ConfigError{
			Key:    "validation",
			Reason: "configuration validation failed",
			Cause:  err,
		}
	}

	return cfg, nil
}

// BindAddr returns the host:port the listening socket binds to.
func (c *Config) BindAddr() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}

// loadFromFile merges a YAML file over the current values.
func (c *Config) loadFromFile(path string) error {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(home, path[2:])
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}

	return nil
}

// applyDefaults fills zero values so a minimal or hand-built Config is usable.
// Bools are left alone; an explicit false stays false.
func (c *Config) applyDefaults() {
	defaults := Default()

	if c.Server.Host == "" {
		c.Server.Host = defaults.Server.Host
	}
	if c.Server.Port == 0 {
		c.Server.Port = defaults.Server.Port
	}

	if c.Supervise.StartupTimeout == 0 {
		c.Supervise.StartupTimeout = defaults.Supervise.StartupTimeout
	}
	if c.Supervise.GracePeriod == 0 {
		c.Supervise.GracePeriod = defaults.Supervise.GracePeriod
	}
	if c.Supervise.ShutdownTimeout == 0 {
		c.Supervise.ShutdownTimeout = defaults.Supervise.ShutdownTimeout
	}
	if c.Supervise.RestartWindow == 0 {
		c.Supervise.RestartWindow = defaults.Supervise.RestartWindow
	}
	if c.Supervise.BackoffCap == 0 {
		c.Supervise.BackoffCap = defaults.Supervise.BackoffCap
	}

	if c.Control.SocketPath == "" {
		c.Control.SocketPath = defaults.Control.SocketPath
	}

	if len(c.Reload.Paths) == 0 {
		c.Reload.Paths = append([]string(nil), defaults.Reload.Paths...)
	}
	if len(c.Reload.Include) == 0 {
		c.Reload.Include = append([]string(nil), defaults.Reload.Include...)
	}
	if c.Reload.Exclude == nil {
		c.Reload.Exclude = append([]string(nil), defaults.Reload.Exclude...)
	}
	if c.Reload.Debounce == 0 {
		c.Reload.Debounce = defaults.Reload.Debounce
	}

	if c.Log.Level == "" {
		c.Log.Level = defaults.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = defaults.Log.Format
	}
}

// loadFromEnv merges DROVER_* environment variables over the current values.
func (c *Config) loadFromEnv() {
	// Server configuration
	if val := os.Getenv("DROVER_HOST"); val != "" {
		c.Server.Host = val
	}
	if val := os.Getenv("DROVER_PORT"); val != "" {
		if port, err := strconv.Atoi(val); err == nil {
			c.Server.Port = port
		}
	}
	if val := os.Getenv("DROVER_WORKERS"); val != "" {
		if workers, err := strconv.Atoi(val); err == nil {
			c.Server.Workers = workers
		}
	}

	// Supervision configuration
	if val := os.Getenv("DROVER_STARTUP_TIMEOUT"); val != "" {
		if duration, err := time.ParseDuration(val); err == nil {
			c.Supervise.StartupTimeout = duration
		}
	}
	if val := os.Getenv("DROVER_GRACE_PERIOD"); val != "" {
		if duration, err := time.ParseDuration(val); err == nil {
			c.Supervise.GracePeriod = duration
		}
	}
	if val := os.Getenv("DROVER_SHUTDOWN_TIMEOUT"); val != "" {
		if duration, err := time.ParseDuration(val); err == nil {
			c.Supervise.ShutdownTimeout = duration
		}
	}
	if val := os.Getenv("DROVER_MAX_RESTARTS"); val != "" {
		if restarts, err := strconv.Atoi(val); err == nil {
			c.Supervise.MaxRestarts = restarts
		}
	}
	if val := os.Getenv("DROVER_RESTART_WINDOW"); val != "" {
		if duration, err := time.ParseDuration(val); err == nil {
			c.Supervise.RestartWindow = duration
		}
	}
	if val := os.Getenv("DROVER_BACKOFF_CAP"); val != "" {
		if duration, err := time.ParseDuration(val); err == nil {
			c.Supervise.BackoffCap = duration
		}
	}

	// Control API configuration
	if val := os.Getenv("DROVER_CONTROL_ENABLED"); val != "" {
		c.Control.Enabled = val == "1" || strings.ToLower(val) == "true"
	}
	if val := os.Getenv("DROVER_CONTROL_SOCKET"); val != "" {
		c.Control.SocketPath = val
	}
	if val := os.Getenv("DROVER_CONTROL_TCP"); val != "" {
		c.Control.TCPAddr = val
	}
	if val := os.Getenv("DROVER_CONTROL_ALLOW_REMOTE"); val != "" {
		c.Control.AllowRemote = val == "1" || strings.ToLower(val) == "true"
	}
	if val := os.Getenv("DROVER_CONTROL_TOKEN"); val != "" {
		c.Control.AuthToken = val
	}

	// Reload configuration
	if val := os.Getenv("DROVER_RELOAD"); val != "" {
		c.Reload.Enabled = val == "1" || strings.ToLower(val) == "true"
	}
	if val := os.Getenv("DROVER_RELOAD_PATHS"); val != "" {
		paths := strings.Split(val, ",")
		for i, p := range paths {
			paths[i] = strings.TrimSpace(p)
		}
		c.Reload.Paths = paths
	}

	// PID file and journal
	if val := os.Getenv("DROVER_PID_FILE"); val != "" {
		c.PIDFile = val
	}
	if val := os.Getenv("DROVER_JOURNAL"); val != "" {
		c.JournalPath = val
	}

	// Log configuration
	if val := os.Getenv("DROVER_LOG_LEVEL"); val != "" {
		c.Log.Level = strings.ToLower(val)
	}
	if val := os.Getenv("DROVER_LOG_FORMAT"); val != "" {
		c.Log.Format = strings.ToLower(val)
	}
	if val := os.Getenv("DROVER_LOG_SOURCE"); val != "" {
		c.Log.AddSource = val == "1" || strings.ToLower(val) == "true"
	}
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	var errs []string

	// Server
	if c.Server.Host == "" {
		errs = append(errs, "server.host must not be empty")
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be between 1 and 65535, got %d", c.Server.Port))
	}
	if c.Server.Workers <= 0 {
		errs = append(errs, fmt.Sprintf("server.workers must be positive, got %d", c.Server.Workers))
	}

	// Supervision
	if c.Supervise.StartupTimeout <= 0 {
		errs = append(errs, fmt.Sprintf("supervise.startup_timeout must be positive, got %v", c.Supervise.StartupTimeout))
	}
	if c.Supervise.GracePeriod <= 0 {
		errs = append(errs, fmt.Sprintf("supervise.grace_period must be positive, got %v", c.Supervise.GracePeriod))
	}
	if c.Supervise.ShutdownTimeout <= 0 {
		errs = append(errs, fmt.Sprintf("supervise.shutdown_timeout must be positive, got %v", c.Supervise.ShutdownTimeout))
	}
	if c.Supervise.MaxRestarts < 0 {
		errs = append(errs, fmt.Sprintf("supervise.max_restarts must be non-negative, got %d", c.Supervise.MaxRestarts))
	}
	if c.Supervise.RestartWindow <= 0 {
		errs = append(errs, fmt.Sprintf("supervise.restart_window must be positive, got %v", c.Supervise.RestartWindow))
	}
	if c.Supervise.BackoffCap <= 0 {
		errs = append(errs, fmt.Sprintf("supervise.backoff_cap must be positive, got %v", c.Supervise.BackoffCap))
	}

	// Control API
	if c.Control.Enabled && c.Control.SocketPath == "" && c.Control.TCPAddr == "" {
		errs = append(errs, "control.socket_path or control.tcp_addr is required when control.enabled is true")
	}
	if c.Control.TCPAddr != "" {
		host, _, err := net.SplitHostPort(c.Control.TCPAddr)
		if err != nil {
			errs = append(errs, fmt.Sprintf("control.tcp_addr %q is not a valid host:port: %v", c.Control.TCPAddr, err))
		} else if !IsLoopbackHost(host) {
			if !c.Control.AllowRemote {
				errs = append(errs, fmt.Sprintf("control.tcp_addr %q binds a non-loopback interface; set control.allow_remote to permit it", c.Control.TCPAddr))
			}
			if c.Control.AuthToken == "" {
				errs = append(errs, "control.auth_token is required when control.tcp_addr is remote")
			}
		}
	}

	// Reload
	if c.Reload.Enabled {
		if len(c.Reload.Paths) == 0 {
			errs = append(errs, "reload.paths must not be empty when reload.enabled is true")
		}
		if c.Reload.Debounce <= 0 {
			errs = append(errs, fmt.Sprintf("reload.debounce must be positive, got %v", c.Reload.Debounce))
		}
	}

	// Log
	validLevels := map[string]bool{"trace": true, "debug": true, "info": true, "warn": true, "warning": true, "error": true}
	if !validLevels[c.Log.Level] {
		errs = append(errs, fmt.Sprintf("log.level must be one of [trace, debug, info, warn, warning, error], got %q", c.Log.Level))
	}
	validFormats := map[string]bool{"json": true, "text": true, "auto": true}
	if !validFormats[c.Log.Format] {
		errs = append(errs, fmt.Sprintf("log.format must be one of [json, text, auto], got %q", c.Log.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w:\n  - %s", ErrInvalidConfig, strings.Join(errs, "\n  - "))
	}

	return nil
}

// IsLoopbackHost reports whether host names a loopback interface.
// An empty host binds all interfaces and is therefore not loopback.
func IsLoopbackHost(host string) bool {
	if host == "localhost" {
		return true
	}
	if ip := net.ParseIP(host); ip != nil {
		return ip.IsLoopback()
	}
	return false
}

// DefaultSocketPath returns the default control socket path.
func DefaultSocketPath() string {
	// Use XDG_RUNTIME_DIR if available (Linux)
	if runtimeDir := os.Getenv("XDG_RUNTIME_DIR"); runtimeDir != "" {
		return filepath.Join(runtimeDir, "drover", "drover.sock")
	}

	// Fall back to ~/.drover/drover.sock
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "/tmp/drover.sock"
	}

	return filepath.Join(homeDir, ".drover", "drover.sock")
}
