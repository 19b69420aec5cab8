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
Package worker implements the drover side of a hosted application.

A drover worker inherits the pool's shared listening socket as a file
descriptor and reports readiness over a pipe, both named by environment
variables the supervisor sets. This package adopts the descriptors so
an application does not have to know the contract.

# Basic Usage

Most applications only need Run:

	func main() {
	    handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	        fmt.Fprintln(w, "hello")
	    })

	    if err := worker.Run(context.Background(), handler); err != nil {
	        log.Fatal(err)
	    }
	}

Run serves the handler on the inherited socket, signals readiness once
accepting, and on SIGTERM (or context cancellation) stops accepting and
drains in-flight requests within the grace period the supervisor
granted. A clean drain returns nil; requests still in flight when the
grace period elapses are cut loose and Run returns ErrForcedExit.

# Manual Control

Applications that manage their own server use the pieces directly:

	ln, err := worker.Listen()
	if err != nil {
	    log.Fatal(err)
	}

	// ... start serving on ln ...

	if err := worker.Ready(); err != nil {
	    log.Printf("readiness: %v", err)
	}

Ready must be reported only once the application is genuinely ready to
serve: the supervisor counts the worker's capacity from that moment.

# Standalone Fallback

Outside supervision (no DROVER_LISTEN_FD in the environment) Listen
binds DROVER_HOST:DROVER_PORT directly, defaulting to 0.0.0.0:8000, and
Ready is a no-op. The same binary therefore runs supervised and
standalone without a code change.
*/
package worker
