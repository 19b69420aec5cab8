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

// Package ctl implements the droverctl commands. Every command talks to a
// running supervisor over its control API via internal/ctlclient.
package ctl

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/drover-sh/drover/internal/ctlclient"
)

// Global flag values - set by the root command
var (
	hostFlag   string
	socketFlag string
	tokenFlag  string
	jsonFlag   bool
	quietFlag  bool

	// Build-time version information
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

// SetVersion sets the version information (called from main).
func SetVersion(v, c, b string) {
	version = v
	commit = c
	buildDate = b
}

// NewRootCommand creates the root Cobra command for droverctl.
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "droverctl",
		Short: "Control a running drover supervisor",
		Long: `droverctl talks to a running drover supervisor over its control API.

By default it dials the supervisor's Unix control socket. Point it at a
non-default endpoint with --socket, --host, or the ` + ctlclient.HostEnv + `
environment variable (unix:///path/to/socket or tcp://host:port).`,
		SilenceUsage:  true, // Don't show usage on errors
		SilenceErrors: true, // We handle errors ourselves for proper exit codes
	}

	cmd.PersistentFlags().StringVar(&hostFlag, "host", "", "Control endpoint (unix:///path or tcp://host:port)")
	cmd.PersistentFlags().StringVar(&socketFlag, "socket", "", "Control socket path (shorthand for --host unix://PATH)")
	cmd.PersistentFlags().StringVar(&tokenFlag, "token", "", "Bearer token for TCP control endpoints")
	cmd.PersistentFlags().BoolVar(&jsonFlag, "json", false, "Output in JSON format")
	cmd.PersistentFlags().BoolVarP(&quietFlag, "quiet", "q", false, "Suppress non-error output")

	cmd.AddCommand(newStatusCommand())
	cmd.AddCommand(newStopCommand())
	cmd.AddCommand(newReloadCommand())
	cmd.AddCommand(newHealthCommand())
	cmd.AddCommand(newVersionCommand())
	cmd.AddCommand(newEventsCommand())
	cmd.SetHelpCommand(newHelpCommand(cmd))

	return cmd
}

// controlHost resolves the endpoint address from flags and environment.
// Precedence: --host, --socket, then the environment.
func controlHost() string {
	if hostFlag != "" {
		return hostFlag
	}
	if socketFlag != "" {
		return "unix://" + socketFlag
	}
	return os.Getenv(ctlclient.HostEnv)
}

// controlTransport builds the transport for the resolved endpoint.
func controlTransport() (*ctlclient.Transport, error) {
	return ctlclient.ParseHost(controlHost())
}

// newClient creates a control API client from flags and environment.
func newClient() (*ctlclient.Client, error) {
	transport, err := controlTransport()
	if err != nil {
		return nil, err
	}

	opts := []ctlclient.Option{ctlclient.WithTransport(transport)}

	token := tokenFlag
	if token == "" {
		token = os.Getenv(ctlclient.TokenEnv)
	}
	if token != "" {
		opts = append(opts, ctlclient.WithToken(token))
	}

	return ctlclient.New(opts...)
}
