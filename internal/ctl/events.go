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
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/drover-sh/drover/internal/events"
)

var (
	eventsType string
	eventsRun  string
	eventsTail int
)

func newEventsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events <journal-file>",
		Short: "Inspect a supervisor event journal",
		Long: `Read the JSONL event journal drover writes when started with a
journal_path (or DROVER_JOURNAL). Every worker spawn, crash, restart,
reload, and lifecycle transition is recorded there.`,
		Example: `  # Example 1: Show the whole journal
  droverctl events /var/log/drover/journal.jsonl

  # Example 2: Only worker crashes, last 20
  droverctl events --type worker_exited -n 20 journal.jsonl

  # Example 3: Replay one supervisor run as JSON
  droverctl events --run 4cc29d3a --json journal.jsonl`,
		Args: cobra.ExactArgs(1),
		RunE: runEvents,
	}

	cmd.Flags().StringVar(&eventsType, "type", "", "Filter by event type (e.g. worker_ready)")
	cmd.Flags().StringVar(&eventsRun, "run", "", "Filter by supervisor run ID (prefix match)")
	cmd.Flags().IntVarP(&eventsTail, "tail", "n", 0, "Only show the last N events")

	return cmd
}

func runEvents(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open journal: %w", err)
	}
	defer f.Close()

	entries, err := readJournal(f)
	if err != nil {
		return fmt.Errorf("failed to read journal: %w", err)
	}

	if eventsTail > 0 && len(entries) > eventsTail {
		entries = entries[len(entries)-eventsTail:]
	}

	if jsonFlag {
		enc := json.NewEncoder(os.Stdout)
		for _, entry := range entries {
			if err := enc.Encode(entry); err != nil {
				return err
			}
		}
		return nil
	}

	// Display as table
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tEVENT\tRUN\tDETAILS")
	for _, entry := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			formatTime(entry.Time),
			entry.Type,
			truncateID(entry.Run),
			formatEventDetails(entry.Data),
		)
	}
	w.Flush()

	return nil
}

// readJournal consumes the journal, applying the type and run filters.
func readJournal(r io.Reader) ([]events.Entry, error) {
	reader := events.NewReader(r)

	var entries []events.Entry
	for {
		entry, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return entries, nil
		}
		if err != nil {
			return nil, err
		}

		if eventsType != "" && entry.Type != eventsType {
			continue
		}
		// Prefix match lets operators paste IDs truncated by the table.
		if eventsRun != "" && !strings.HasPrefix(entry.Run, eventsRun) {
			continue
		}
		entries = append(entries, entry)
	}
}

func formatEventDetails(data events.Event) string {
	switch ev := data.(type) {
	case *events.SocketBound:
		return fmt.Sprintf("addr: %s", ev.Addr)
	case *events.PoolStarting:
		return fmt.Sprintf("workers: %d, command: %s", ev.Workers, ev.Command)
	case *events.PoolReady:
		return fmt.Sprintf("workers: %d, took: %s", ev.Workers, ev.Took.Round(time.Millisecond))
	case *events.PoolDegraded:
		return fmt.Sprintf("live: %d/%d", ev.Live, ev.Want)
	case *events.PoolStopped:
		if ev.Forced > 0 {
			return fmt.Sprintf("force-killed: %d", ev.Forced)
		}
		return ""
	case *events.StateChanged:
		return fmt.Sprintf("%s -> %s", ev.From, ev.To)
	case *events.WorkerSpawned:
		return fmt.Sprintf("worker: %d, pid: %d", ev.Worker, ev.PID)
	case *events.WorkerSpawnError:
		return fmt.Sprintf("worker: %d, reason: %s", ev.Worker, truncateMessage(ev.Reason))
	case *events.WorkerReady:
		return fmt.Sprintf("worker: %d, pid: %d, took: %s", ev.Worker, ev.PID, ev.Took.Round(time.Millisecond))
	case *events.WorkerExited:
		details := fmt.Sprintf("worker: %d, code: %d", ev.Worker, ev.Code)
		if ev.Err != "" {
			details += ", error: " + truncateMessage(ev.Err)
		}
		return details
	case *events.WorkerRestarting:
		return fmt.Sprintf("worker: %d, backoff: %s, failure: %d", ev.Worker, ev.Backoff, ev.Failure)
	case *events.WorkerGaveUp:
		return fmt.Sprintf("worker: %d, %d restarts in %s", ev.Worker, ev.Restarts, ev.Window)
	case *events.WorkerKilled:
		return fmt.Sprintf("worker: %d, pid: %d", ev.Worker, ev.PID)
	case *events.DrainBegun:
		return fmt.Sprintf("reason: %s, workers: %d", ev.Reason, ev.Workers)
	case *events.ReloadRequested:
		return fmt.Sprintf("trigger: %s", ev.Trigger)
	case *events.WorkerReplaced:
		return fmt.Sprintf("worker: %d, generation: %s -> %s", ev.Worker,
			truncateID(ev.OldGeneration), truncateID(ev.NewGeneration))
	default:
		// Unknown event types decode with a nil payload
		return ""
	}
}

func truncateID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

func truncateMessage(msg string) string {
	if len(msg) > 50 {
		return msg[:50] + "..."
	}
	return msg
}

func formatTime(t time.Time) string {
	if time.Since(t) < 24*time.Hour {
		return t.Format("15:04:05")
	}
	return t.Format("2006-01-02 15:04")
}
