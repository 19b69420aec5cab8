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
	"errors"
	"fmt"
	"os"

	"github.com/drover-sh/drover/internal/ctlclient"
)

// Exit codes for droverctl. Scripts branch on these: health checks in
// particular distinguish an unhealthy pool from an absent supervisor.
const (
	ExitSuccess    = 0
	ExitFailure    = 1
	ExitUnhealthy  = 2
	ExitNotRunning = 3
)

// ExitError is an error that carries an exit code.
type ExitError struct {
	Code    int
	Message string
	Cause   error
}

func (e *ExitError) Error() string {
	if e.Cause != nil {
		if e.Message == "" {
			return e.Cause.Error()
		}
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Cause
}

// notRunningError wraps a connection failure so HandleExitError maps it
// to ExitNotRunning and prints the guidance text.
func notRunningError(err error) *ExitError {
	return &ExitError{Code: ExitNotRunning, Cause: err}
}

// HandleExitError prints err and exits with its code. Errors without an
// ExitError in their chain exit ExitFailure.
func HandleExitError(err error) {
	if err == nil {
		return
	}

	code := ExitFailure
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		code = exitErr.Code
	}

	if msg := err.Error(); msg != "" {
		fmt.Fprintln(os.Stderr, "Error:", msg)
	}

	// A dead supervisor gets recovery steps, not just an errno.
	var nr *ctlclient.NotRunningError
	if errors.As(err, &nr) {
		fmt.Fprintln(os.Stderr)
		fmt.Fprintln(os.Stderr, nr.Guidance())
	}

	os.Exit(code)
}
