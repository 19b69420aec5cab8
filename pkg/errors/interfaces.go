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

package errors

// ErrorClassifier defines methods for programmatic error handling.
// Errors that implement this interface can be classified by type
// for restart decisions, exit-code mapping, or specific handling paths.
type ErrorClassifier interface {
	error

	// ErrorType returns a string identifying the error category.
	// Examples: "config", "bind", "startup", "worker_crash"
	ErrorType() string

	// IsRetryable returns true if the operation should be retried.
	IsRetryable() bool
}

// Exit codes reported by the launch command. Clean shutdown is 0; the three
// fatal startup-phase failures get distinct codes so operators and process
// managers can tell them apart from a runtime crash.
const (
	ExitOK      = 0
	ExitRuntime = 1
	ExitConfig  = 2
	ExitBind    = 3
	ExitStartup = 4
)

// ExitCode maps an error to the process exit code contract.
// nil means a clean stop.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}

	var configErr *ConfigError
	if As(err, &configErr) {
		return ExitConfig
	}

	var bindErr *BindError
	if As(err, &bindErr) {
		return ExitBind
	}

	var startupErr *StartupError
	if As(err, &startupErr) {
		return ExitStartup
	}

	return ExitRuntime
}
