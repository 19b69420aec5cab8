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

package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

var (
	// ErrHealthCheckTimeout is returned when health checks exceed the timeout.
	ErrHealthCheckTimeout = errors.New("health check timeout")

	// ErrHealthCheckFailed is returned when the health endpoint returns an error.
	ErrHealthCheckFailed = errors.New("health check failed")
)

// HealthChecker polls the control API health endpoint with exponential
// backoff. It is used to wait for a starting pool to begin serving: the
// endpoint returns a success status only once the supervisor is running.
type HealthChecker struct {
	endpoint        string
	client          *http.Client
	initialInterval time.Duration
	maxInterval     time.Duration
	multiplier      float64
}

// HealthCheckResult is the outcome of a single poll.
type HealthCheckResult struct {
	Healthy      bool
	StatusCode   int
	ResponseTime time.Duration
	Error        error
}

// NewHealthChecker creates a checker for the given health endpoint URL.
// Default backoff: 50ms initial, 2x multiplier, 1s max interval.
func NewHealthChecker(endpoint string) *HealthChecker {
	return &HealthChecker{
		endpoint: endpoint,
		client: &http.Client{
			Timeout: 5 * time.Second,
		},
		initialInterval: 50 * time.Millisecond,
		maxInterval:     1 * time.Second,
		multiplier:      2.0,
	}
}

// WithBackoff configures custom backoff parameters.
func (h *HealthChecker) WithBackoff(initial, max time.Duration, multiplier float64) *HealthChecker {
	h.initialInterval = initial
	h.maxInterval = max
	h.multiplier = multiplier
	return h
}

// WithHTTPClient sets a custom HTTP client. Polling a Unix control socket
// needs a client whose transport dials the socket.
func (h *HealthChecker) WithHTTPClient(client *http.Client) *HealthChecker {
	h.client = client
	return h
}

// Check performs a single health poll. Any 2xx status counts as healthy; a
// 503 means the pool is not (yet) serving.
func (h *HealthChecker) Check(ctx context.Context) *HealthCheckResult {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.endpoint, nil)
	if err != nil {
		return &HealthCheckResult{
			Error: fmt.Errorf("%w: build request: %v", ErrHealthCheckFailed, err),
		}
	}

	resp, err := h.client.Do(req)
	took := time.Since(start)
	if err != nil {
		return &HealthCheckResult{
			ResponseTime: took,
			Error:        fmt.Errorf("%w: %v", ErrHealthCheckFailed, err),
		}
	}
	defer resp.Body.Close()

	return &HealthCheckResult{
		Healthy:      resp.StatusCode >= 200 && resp.StatusCode < 300,
		StatusCode:   resp.StatusCode,
		ResponseTime: took,
	}
}

// WaitUntilHealthy polls the endpoint until it reports healthy or the
// timeout lapses.
func (h *HealthChecker) WaitUntilHealthy(timeout time.Duration) error {
	return h.WaitUntilHealthyWithCallback(timeout, nil)
}

// WaitUntilHealthyWithCallback is WaitUntilHealthy with a per-attempt
// callback, for reporting progress while a slow pool starts.
func (h *HealthChecker) WaitUntilHealthyWithCallback(timeout time.Duration, callback func(*HealthCheckResult, int)) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	interval := h.initialInterval
	attempts := 0

	for {
		attempts++
		result := h.Check(ctx)

		if callback != nil {
			callback(result, attempts)
		}
		if result.Healthy {
			return nil
		}

		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			if result.Error != nil {
				return fmt.Errorf("%w after %d attempts: %v", ErrHealthCheckTimeout, attempts, result.Error)
			}
			return fmt.Errorf("%w after %d attempts (last status %d)", ErrHealthCheckTimeout, attempts, result.StatusCode)
		case <-timer.C:
		}

		interval = time.Duration(float64(interval) * h.multiplier)
		if interval > h.maxInterval {
			interval = h.maxInterval
		}
	}
}
