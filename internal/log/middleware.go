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
	"log/slog"
	"net/http"
	"time"
)

// statusRecorder captures the response status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// HTTPMiddleware wraps an http.Handler with structured request logging.
// It logs one line per request when it completes, carrying the method,
// path, remote address, response status, and duration.
type HTTPMiddleware struct {
	logger *slog.Logger
}

// NewHTTPMiddleware creates a new HTTP request logging middleware.
func NewHTTPMiddleware(logger *slog.Logger) *HTTPMiddleware {
	return &HTTPMiddleware{
		logger: logger,
	}
}

// Wrap returns a handler that logs each request served by next.
func (m *HTTPMiddleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		duration := time.Since(start).Milliseconds()

		level := slog.LevelDebug
		message := "request completed"
		if rec.status >= http.StatusInternalServerError {
			level = slog.LevelError
			message = "request failed"
		}

		m.logger.Log(r.Context(), level, message,
			"event", "http_request",
			"method", r.Method,
			"path", r.URL.Path,
			"remote", r.RemoteAddr,
			"status", rec.status,
			"duration_ms", duration,
		)
	})
}
