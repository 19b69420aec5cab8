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
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/drover-sh/drover/internal/ctlclient"
)

var reloadTimeout time.Duration

func newReloadCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reload",
		Short: "Rolling-restart all workers",
		Long: `Replace every worker with a fresh process, one at a time.

Each replacement is spawned and waited ready before its predecessor is
drained, so serving capacity never drops. The command blocks until the
last worker has been swapped. A reload already in progress is refused.`,
		Example: `  # Example 1: Roll the pool after deploying a new binary
  droverctl reload

  # Example 2: Allow more time for slow-starting workers
  droverctl reload --timeout 15m`,
		RunE: runReload,
	}

	cmd.Flags().DurationVar(&reloadTimeout, "timeout", 5*time.Minute, "How long to wait for the rolling restart to finish")

	return cmd
}

func runReload(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), reloadTimeout)
	defer cancel()

	c, err := newClient()
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}

	resp, err := c.Reload(ctx)
	if err != nil {
		if ctlclient.IsNotRunning(err) {
			return notRunningError(err)
		}
		return fmt.Errorf("reload failed: %w", err)
	}

	if jsonFlag {
		return json.NewEncoder(os.Stdout).Encode(resp)
	}

	if !quietFlag {
		fmt.Println(RenderOK(fmt.Sprintf("rolling restart complete (%d workers)", len(resp.Workers))))
	}

	return nil
}
