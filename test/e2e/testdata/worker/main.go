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

// A scriptable worker application for the end-to-end tests. In the
// default mode it is also a minimal example of hosting an HTTP server
// under drover with pkg/worker.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/drover-sh/drover/pkg/worker"
)

func main() {
	var (
		mode        = flag.String("mode", "serve", "serve, crash (exit before listening), or hang (listen but never report ready)")
		crashWorker = flag.Int("crash-worker", -1, "worker ID that exits shortly after becoming ready")
		crashAfter  = flag.Duration("crash-after", 200*time.Millisecond, "how long the crash-worker serves before exiting")
	)
	flag.Parse()

	switch *mode {
	case "crash":
		os.Exit(3)
	case "hang":
		if _, err := worker.Listen(); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		select {}
	}

	if *crashWorker >= 0 && worker.ID() == *crashWorker {
		time.AfterFunc(*crashAfter, func() { os.Exit(3) })
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "worker %d pid %d\n", worker.ID(), os.Getpid())
	})
	mux.HandleFunc("/slow", func(w http.ResponseWriter, r *http.Request) {
		delay := 200 * time.Millisecond
		if q := r.URL.Query().Get("d"); q != "" {
			if d, err := time.ParseDuration(q); err == nil {
				delay = d
			}
		}
		time.Sleep(delay)
		fmt.Fprintf(w, "slow done worker %d\n", worker.ID())
	})

	if err := worker.Run(context.Background(), mux); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
