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

package control

import (
	"crypto/subtle"
	"fmt"
	"net/http"
	"strings"
)

// requireBearer wraps next with bearer token authentication for TCP
// clients. Unix socket clients are exempt: reaching the socket already
// required passing its 0600 file permission. /v1/health stays open so
// probes work without credentials.
func requireBearer(token string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isUnixSocketRequest(r) {
			next.ServeHTTP(w, r)
			return
		}

		if r.URL.Path == "/v1/health" {
			next.ServeHTTP(w, r)
			return
		}

		got, err := extractBearerToken(r)
		if err != nil {
			unauthorized(w, err.Error())
			return
		}
		if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			unauthorized(w, "invalid bearer token")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// extractBearerToken extracts the Bearer token from the Authorization
// header. Returns the token value (without "Bearer " prefix) and an
// error if invalid.
func extractBearerToken(r *http.Request) (string, error) {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return "", fmt.Errorf("missing Authorization header")
	}

	// Check Bearer prefix (case-insensitive per RFC 6750)
	const bearerPrefix = "Bearer "
	if !strings.HasPrefix(auth, bearerPrefix) && !strings.HasPrefix(auth, "bearer ") {
		return "", fmt.Errorf("invalid Authorization header format, expected 'Bearer <token>'")
	}

	token := strings.TrimSpace(auth[len(bearerPrefix):])
	if token == "" {
		return "", fmt.Errorf("empty bearer token")
	}

	return token, nil
}

// isUnixSocketRequest checks if the request came via Unix socket.
// This is determined by checking if the remote address is empty or starts
// with "@" (abstract Unix socket) or "/" (file-based Unix socket).
func isUnixSocketRequest(r *http.Request) bool {
	addr := r.RemoteAddr
	return addr == "" || strings.HasPrefix(addr, "@") || strings.HasPrefix(addr, "/")
}

func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="drover"`)
	writeError(w, http.StatusUnauthorized, message)
}
