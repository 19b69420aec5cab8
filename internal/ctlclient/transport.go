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
	"context"
	"net"
	"net/http"
	"time"

	"github.com/drover-sh/drover/internal/config"
)

// Transport creates an HTTP transport for connecting to the control
// API. Exactly one of SocketPath or TCPAddr should be set.
type Transport struct {
	// SocketPath is the Unix socket path for local connections.
	SocketPath string

	// TCPAddr is the TCP address for remote connections.
	TCPAddr string
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	return t.httpTransport().RoundTrip(req)
}

// httpTransport creates the underlying HTTP transport.
func (t *Transport) httpTransport() *http.Transport {
	transport := &http.Transport{
		MaxIdleConns:       10,
		IdleConnTimeout:    90 * time.Second,
		DisableCompression: true,
	}

	if t.SocketPath != "" {
		// Unix socket connection
		transport.DialContext = func(ctx context.Context, _, _ string) (net.Conn, error) {
			d := net.Dialer{}
			return d.DialContext(ctx, "unix", t.SocketPath)
		}
	} else if t.TCPAddr != "" {
		// TCP connection
		transport.DialContext = func(ctx context.Context, _, _ string) (net.Conn, error) {
			d := net.Dialer{Timeout: 10 * time.Second}
			return d.DialContext(ctx, "tcp", t.TCPAddr)
		}
	}

	return transport
}

// Endpoint describes the dial target, for error messages.
func (t *Transport) Endpoint() string {
	if t.SocketPath != "" {
		return "unix://" + t.SocketPath
	}
	return "tcp://" + t.TCPAddr
}

// DefaultTransport creates a transport for the default control socket.
func DefaultTransport() *Transport {
	return &Transport{
		SocketPath: config.DefaultSocketPath(),
	}
}

// NewUnixTransport creates a transport for a Unix socket.
func NewUnixTransport(socketPath string) *Transport {
	return &Transport{
		SocketPath: socketPath,
	}
}

// NewTCPTransport creates a transport for a TCP connection.
func NewTCPTransport(addr string) *Transport {
	return &Transport{
		TCPAddr: addr,
	}
}
