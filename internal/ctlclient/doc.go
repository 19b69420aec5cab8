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

/*
Package ctlclient provides an HTTP client for the drover control API.

droverctl and other tooling use it to talk to a running supervisor over
the control endpoint. Both Unix socket and TCP connections are
supported.

# Basic Usage

Create a client and make requests:

	c, err := ctlclient.New()
	if err != nil {
	    log.Fatal(err)
	}

	// Snapshot the worker pool
	status, err := c.Status(ctx)

	// Rolling-restart every worker
	result, err := c.Reload(ctx)

	// Drain and stop the supervisor
	_, err = c.Shutdown(ctx)

# Connection Options

Configure the client with options:

	// Bearer token for TCP endpoints
	c, _ := ctlclient.New(ctlclient.WithToken("my-token"))

	// Explicit endpoint
	c, _ := ctlclient.New(ctlclient.WithTransport(
	    ctlclient.NewUnixTransport("/tmp/drover.sock")))

	// Custom HTTP client (e.g. for testing)
	c, _ := ctlclient.New(ctlclient.WithHTTPClient(httpClient))

# Transport

The default transport connects to the default control socket:

	$XDG_RUNTIME_DIR/drover/drover.sock  (when XDG_RUNTIME_DIR is set)
	~/.drover/drover.sock                (otherwise)

Override with the DROVER_CONTROL_HOST environment variable:

	export DROVER_CONTROL_HOST=unix:///run/drover/drover.sock
	export DROVER_CONTROL_HOST=tcp://127.0.0.1:9444

A bearer token for TCP endpoints comes from DROVER_CONTROL_TOKEN.

# API Methods

The client provides methods matching the control API:

  - Health: liveness and lifecycle state
  - Status: full worker pool snapshot
  - Version: supervisor build information
  - Reload: rolling restart, blocks until complete
  - Shutdown: graceful drain
*/
package ctlclient
