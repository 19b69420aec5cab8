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
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client is a client for the drover control API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	endpoint   string
}

// New creates a control API client with the given options.
func New(opts ...Option) (*Client, error) {
	c := &Client{
		baseURL: "http://drover", // Host is ignored over a Unix socket
	}

	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}

	// If no HTTP client set, dial the default control socket
	if c.httpClient == nil {
		transport := DefaultTransport()
		c.httpClient = &http.Client{Transport: transport}
		c.endpoint = transport.Endpoint()
	}

	return c, nil
}

// Option configures a Client.
type Option func(*Client) error

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) error {
		c.httpClient = client
		return nil
	}
}

// WithTransport sets a custom transport.
func WithTransport(transport http.RoundTripper) Option {
	return func(c *Client) error {
		c.httpClient = &http.Client{Transport: transport}
		if t, ok := transport.(*Transport); ok {
			c.endpoint = t.Endpoint()
		}
		return nil
	}
}

// WithToken sets the bearer token for authentication.
func WithToken(token string) Option {
	return func(c *Client) error {
		c.token = token
		return nil
	}
}

// Endpoint describes the control endpoint the client dials, or "" when
// a custom HTTP client was supplied.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// HealthResponse is the response from /v1/health.
type HealthResponse struct {
	Status    string `json:"status"`
	State     string `json:"state"`
	Timestamp string `json:"timestamp"`
	Uptime    string `json:"uptime,omitempty"`
	Live      int    `json:"live"`
	Desired   int    `json:"desired"`
}

// WorkerStatus is one worker identity in a pool snapshot.
type WorkerStatus struct {
	ID         int       `json:"id"`
	Generation string    `json:"generation,omitempty"`
	PID        int       `json:"pid,omitempty"`
	Status     string    `json:"status"`
	StartedAt  time.Time `json:"started_at,omitzero"`
	ReadyAt    time.Time `json:"ready_at,omitzero"`
	Restarts   int       `json:"restarts"`
	ExitCode   *int      `json:"exit_code,omitempty"`
	LastError  string    `json:"last_error,omitempty"`
}

// StatusResponse is the response from /v1/status.
type StatusResponse struct {
	State     string         `json:"state"`
	PID       int            `json:"pid"`
	Addr      string         `json:"addr,omitempty"`
	Version   string         `json:"version,omitempty"`
	StartedAt time.Time      `json:"started_at,omitzero"`
	Uptime    string         `json:"uptime,omitempty"`
	Desired   int            `json:"desired"`
	Live      int            `json:"live"`
	Workers   []WorkerStatus `json:"workers"`
}

// VersionResponse is the response from /v1/version.
type VersionResponse struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// ReloadResponse is the response from /v1/reload.
type ReloadResponse struct {
	Status  string         `json:"status"`
	Workers []WorkerStatus `json:"workers,omitempty"`
}

// ShutdownResponse is the response from /v1/shutdown.
type ShutdownResponse struct {
	Status string `json:"status"`
}

// Health returns the supervisor health. The control API answers 503
// with a health body while the pool is down or not yet running, so a
// degraded supervisor decodes rather than erroring.
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/health", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.addAuth(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.requestError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusServiceUnavailable {
		return nil, apiError(resp)
	}

	var health HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return nil, fmt.Errorf("failed to decode health response: %w", err)
	}

	return &health, nil
}

// Status returns a snapshot of the supervisor and every worker.
func (c *Client) Status(ctx context.Context) (*StatusResponse, error) {
	resp, err := c.get(ctx, "/v1/status")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var status StatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("failed to decode status response: %w", err)
	}

	return &status, nil
}

// Version returns the supervisor version information.
func (c *Client) Version(ctx context.Context) (*VersionResponse, error) {
	resp, err := c.get(ctx, "/v1/version")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var version VersionResponse
	if err := json.NewDecoder(resp.Body).Decode(&version); err != nil {
		return nil, fmt.Errorf("failed to decode version response: %w", err)
	}

	return &version, nil
}

// Reload asks the supervisor for a rolling restart and blocks until
// every worker has been replaced. A reload already in progress answers
// 409, surfaced as an error.
func (c *Client) Reload(ctx context.Context) (*ReloadResponse, error) {
	resp, err := c.post(ctx, "/v1/reload")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var result ReloadResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode reload response: %w", err)
	}

	return &result, nil
}

// Shutdown asks the supervisor to drain and exit. The drain happens
// after the response is written.
func (c *Client) Shutdown(ctx context.Context) (*ShutdownResponse, error) {
	resp, err := c.post(ctx, "/v1/shutdown")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var result ShutdownResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode shutdown response: %w", err)
	}

	return &result, nil
}

// Ping checks if the supervisor is reachable.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.Health(ctx)
	return err
}

// get performs a GET request to the control API.
func (c *Client) get(ctx context.Context, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	c.addAuth(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.requestError(err)
	}

	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		return nil, apiError(resp)
	}

	return resp, nil
}

// post performs a POST request to the control API.
func (c *Client) post(ctx context.Context, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	c.addAuth(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.requestError(err)
	}

	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		return nil, apiError(resp)
	}

	return resp, nil
}

// addAuth adds the bearer token to the request if configured.
func (c *Client) addAuth(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

// requestError classifies transport failures so callers can tell an
// absent supervisor from a broken one.
func (c *Client) requestError(err error) error {
	if c.endpoint != "" && isConnectionError(err) {
		return &NotRunningError{Endpoint: c.endpoint, Err: err}
	}
	return fmt.Errorf("request failed: %w", err)
}

// apiError converts an error response into an error, preferring the
// body's error field over the raw payload.
func apiError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)

	var e struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &e); err == nil && e.Error != "" {
		return fmt.Errorf("supervisor returned error %d: %s", resp.StatusCode, e.Error)
	}

	return fmt.Errorf("supervisor returned error %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
}
