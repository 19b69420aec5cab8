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

func newStopCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Gracefully stop the supervisor",
		Long: `Ask the supervisor to drain and exit.

Workers stop accepting new connections, finish their in-flight requests
within the grace period, and exit. The command returns as soon as the
drain is acknowledged; it does not wait for the process to exit.`,
		Example: `  # Example 1: Drain and stop
  droverctl stop

  # Example 2: Stop a supervisor on a non-default socket
  droverctl --socket /run/drover/drover.sock stop`,
		RunE: runStop,
	}
}

func runStop(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	c, err := newClient()
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}

	resp, err := c.Shutdown(ctx)
	if err != nil {
		if ctlclient.IsNotRunning(err) {
			return notRunningError(err)
		}
		return fmt.Errorf("failed to request shutdown: %w", err)
	}

	if jsonFlag {
		return json.NewEncoder(os.Stdout).Encode(resp)
	}

	if !quietFlag {
		fmt.Printf("%s %s\n",
			RenderOK("drain requested"),
			Muted.Render("(drover exits once in-flight requests finish)"))
	}

	return nil
}
