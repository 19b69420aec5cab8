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
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/drover-sh/drover/internal/ctlclient"
)

func newStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show supervisor and worker status",
		Long: `Display the lifecycle state of the supervisor and a snapshot of every
worker identity in the pool: status, PID, restart count, and uptime.`,
		Example: `  # Example 1: Check pool status
  droverctl status

  # Example 2: Get the full snapshot as JSON
  droverctl status --json

  # Example 3: Count live workers
  droverctl status --json | jq -r '.live'`,
		RunE: runStatus,
	}
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	c, err := newClient()
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}

	status, err := c.Status(ctx)
	if err != nil {
		if ctlclient.IsNotRunning(err) {
			return notRunningError(err)
		}
		return fmt.Errorf("failed to get status: %w", err)
	}

	if jsonFlag {
		return json.NewEncoder(os.Stdout).Encode(status)
	}

	outputStatusText(status)
	return nil
}

func outputStatusText(status *ctlclient.StatusResponse) {
	fmt.Println(Header.Render("Drover Status"))
	fmt.Println()

	fmt.Printf("%s %s\n", Muted.Render("State:"), renderState(status.State))
	fmt.Printf("%s %d\n", Muted.Render("PID:"), status.PID)
	if status.Addr != "" {
		fmt.Printf("%s %s\n", Muted.Render("Address:"), status.Addr)
	}
	if status.Version != "" {
		fmt.Printf("%s %s\n", Muted.Render("Version:"), status.Version)
	}
	if status.Uptime != "" {
		fmt.Printf("%s %s\n", Muted.Render("Uptime:"), status.Uptime)
	}

	workerStyle := StatusOK
	if status.Live < status.Desired {
		workerStyle = StatusWarn
	}
	fmt.Printf("%s %s\n", Muted.Render("Workers:"), workerStyle.Render(fmt.Sprintf("%d/%d live", status.Live, status.Desired)))

	if len(status.Workers) == 0 {
		return
	}

	fmt.Println()
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATUS\tPID\tRESTARTS\tUPTIME\tDETAILS")
	for _, worker := range status.Workers {
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%s\t%s\n",
			worker.ID,
			renderWorkerStatus(worker.Status),
			formatPID(worker.PID),
			worker.Restarts,
			formatWorkerUptime(worker),
			formatWorkerDetails(worker),
		)
	}
	w.Flush()
}

func formatPID(pid int) string {
	if pid == 0 {
		return "-"
	}
	return fmt.Sprintf("%d", pid)
}

func formatWorkerUptime(worker ctlclient.WorkerStatus) string {
	if worker.StartedAt.IsZero() {
		return "-"
	}
	return time.Since(worker.StartedAt).Round(time.Second).String()
}

func formatWorkerDetails(worker ctlclient.WorkerStatus) string {
	if worker.LastError != "" {
		msg := worker.LastError
		if len(msg) > 50 {
			msg = msg[:50] + "..."
		}
		return msg
	}
	if worker.ExitCode != nil {
		return fmt.Sprintf("exit code %d", *worker.ExitCode)
	}
	return ""
}
