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

// droverctl controls a running drover supervisor over its control API.
package main

import (
	"github.com/drover-sh/drover/internal/ctl"
)

// Version information (injected via ldflags at build time)
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	ctl.SetVersion(version, commit, buildDate)

	rootCmd := ctl.NewRootCommand()

	if err := rootCmd.Execute(); err != nil {
		ctl.HandleExitError(err)
	}
}
