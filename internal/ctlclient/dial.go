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

package ctlclient

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"syscall"
)

// Environment variable names for client configuration.
const (
	// HostEnv selects the control endpoint: unix:///path/to/socket or
	// tcp://host:port. Empty means the default control socket.
	HostEnv = "DROVER_CONTROL_HOST"

	// TokenEnv carries the bearer token for TCP endpoints.
	TokenEnv = "DROVER_CONTROL_TOKEN"
)

// ParseHost parses a DROVER_CONTROL_HOST value into a transport.
// Supports:
//   - unix:///path/to/socket
//   - tcp://host:port
//
// If host is empty, returns a transport for the default socket path.
func ParseHost(host string) (*Transport, error) {
	if host == "" {
		return DefaultTransport(), nil
	}

	switch {
	case strings.HasPrefix(host, "unix://"):
		return NewUnixTransport(strings.TrimPrefix(host, "unix://")), nil

	case strings.HasPrefix(host, "tcp://"):
		return NewTCPTransport(strings.TrimPrefix(host, "tcp://")), nil

	default:
		return nil, fmt.Errorf("invalid %s format: %s (must start with unix:// or tcp://)", HostEnv, host)
	}
}

// FromEnvironment creates a client configured from environment
// variables.
func FromEnvironment() (*Client, error) {
	transport, err := ParseHost(os.Getenv(HostEnv))
	if err != nil {
		return nil, err
	}

	opts := []Option{WithTransport(transport)}

	if token := os.Getenv(TokenEnv); token != "" {
		opts = append(opts, WithToken(token))
	}

	return New(opts...)
}

// NotRunningError indicates no supervisor answered on the control
// endpoint.
type NotRunningError struct {
	Endpoint string
	Err      error
}

func (e *NotRunningError) Error() string {
	return fmt.Sprintf("drover is not running (control endpoint: %s)", e.Endpoint)
}

func (e *NotRunningError) Unwrap() error {
	return e.Err
}

// Guidance returns user-friendly guidance for the not-running case.
func (e *NotRunningError) Guidance() string {
	return `Drover does not appear to be running.

Start it with:
  drover -- your-server [args...]

If it is running with a non-default control socket, point droverctl at it:
  droverctl --socket /path/to/drover.sock status
  DROVER_CONTROL_HOST=unix:///path/to/drover.sock droverctl status`
}

// IsNotRunning checks if an error indicates the supervisor is not
// running at the control endpoint.
func IsNotRunning(err error) bool {
	if err == nil {
		return false
	}

	var nr *NotRunningError
	if errors.As(err, &nr) {
		return true
	}

	return isConnectionError(err)
}

// isConnectionError reports whether err is a dial failure: a refused
// connection or a missing socket file.
func isConnectionError(err error) bool {
	return errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, os.ErrNotExist)
}
