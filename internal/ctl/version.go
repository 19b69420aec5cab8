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
	"context"
	"encoding/json"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/drover-sh/drover/internal/ctlclient"
)

// VersionInfo contains version metadata
type VersionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"build_date"`
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long: `Display version, commit hash, and build date for droverctl, plus the
same for the running supervisor when one is reachable.`,
		RunE: runVersion,
	}
}

func runVersion(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	// Best effort: the client version still prints when nothing answers.
	var server *ctlclient.VersionResponse
	if c, err := newClient(); err == nil {
		server, _ = c.Version(ctx)
	}

	info := VersionInfo{
		Version:   version,
		Commit:    commit,
		BuildDate: buildDate,
	}

	if jsonFlag {
		output := map[string]any{"client": info}
		if server != nil {
			output["server"] = server
		}
		return json.NewEncoder(os.Stdout).Encode(output)
	}

	cmd.Printf("droverctl version %s\n", info.Version)
	cmd.Printf("  commit:     %s\n", info.Commit)
	cmd.Printf("  build date: %s\n", info.BuildDate)

	cmd.Println()
	if server == nil {
		cmd.Println(Muted.Render("drover is not running; server version unavailable"))
		return nil
	}

	cmd.Printf("drover version %s\n", server.Version)
	cmd.Printf("  commit:     %s\n", server.Commit)
	cmd.Printf("  build date: %s\n", server.BuildDate)
	cmd.Printf("  go version: %s\n", server.GoVersion)
	cmd.Printf("  platform:   %s/%s\n", server.OS, server.Arch)

	return nil
}
