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
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/drover-sh/drover/internal/ctlclient"
	"github.com/drover-sh/drover/internal/lifecycle"
)

var (
	healthWait    bool
	healthTimeout time.Duration
)

func newHealthCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check pool health",
		Long: `Check whether the pool is serving.

Exit codes: 0 when the pool is healthy or degraded (still serving),
2 when it is not serving, 3 when no supervisor answers on the control
endpoint. With --wait the command polls until the pool reports healthy
or the timeout lapses, which is useful right after starting drover.`,
		Example: `  # Example 1: One-shot health check
  droverctl health

  # Example 2: Block until the pool is serving
  drover -- ./server & droverctl health --wait

  # Example 3: Script on the health status
  droverctl health --json | jq -r '.status'`,
		RunE: runHealth,
	}

	cmd.Flags().BoolVar(&healthWait, "wait", false, "Poll until the pool reports healthy")
	cmd.Flags().DurationVar(&healthTimeout, "timeout", 60*time.Second, "Give up waiting after this long (with --wait)")

	return cmd
}

func runHealth(cmd *cobra.Command, args []string) error {
	if healthWait {
		if err := waitHealthy(); err != nil {
			return err
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c, err := newClient()
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}

	health, err := c.Health(ctx)
	if err != nil {
		if ctlclient.IsNotRunning(err) {
			return notRunningError(err)
		}
		return fmt.Errorf("health check failed: %w", err)
	}

	// ok and degraded both mean the pool is serving; anything else is
	// the 503 side of the health endpoint.
	serving := health.Status == "ok" || health.Status == "degraded"

	if jsonFlag {
		if err := json.NewEncoder(os.Stdout).Encode(health); err != nil {
			return err
		}
		if !serving {
			os.Exit(ExitUnhealthy)
		}
		return nil
	}

	if !quietFlag {
		outputHealthText(health)
	}
	if !serving {
		os.Exit(ExitUnhealthy)
	}

	return nil
}

func outputHealthText(health *ctlclient.HealthResponse) {
	detail := fmt.Sprintf("(state: %s, %d/%d workers live", health.State, health.Live, health.Desired)
	if health.Uptime != "" {
		detail += ", up " + health.Uptime
	}
	detail += ")"

	switch health.Status {
	case "ok":
		fmt.Printf("%s %s\n", RenderOK("drover is healthy"), Muted.Render(detail))
	case "degraded":
		fmt.Printf("%s %s\n", RenderWarn("drover is degraded"), Muted.Render(detail))
	default:
		fmt.Printf("%s %s\n", RenderError("drover is not serving"), Muted.Render(detail))
	}
}

// waitHealthy polls the health endpoint until the pool is serving. The
// poller speaks plain HTTP, so it gets a client dialing the control
// endpoint rather than the network.
func waitHealthy() error {
	transport, err := controlTransport()
	if err != nil {
		return err
	}

	if !quietFlag && !jsonFlag {
		fmt.Println(Muted.Render("waiting for drover to report healthy..."))
	}

	checker := lifecycle.NewHealthChecker("http://drover/v1/health").
		WithHTTPClient(&http.Client{Transport: transport, Timeout: 5 * time.Second})

	if err := checker.WaitUntilHealthy(healthTimeout); err != nil {
		return &ExitError{Code: ExitUnhealthy, Message: "pool did not become healthy", Cause: err}
	}

	return nil
}
