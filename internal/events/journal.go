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

package events

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	drovererrors "github.com/drover-sh/drover/pkg/errors"
)

// Journal records supervisor events. Implementations must be safe for
// concurrent use; monitor goroutines write from many places at once.
type Journal interface {
	Write(Event) error
}

// Entry is the envelope around one journaled event.
type Entry struct {
	Time time.Time `json:"time"`
	Run  string    `json:"run,omitempty"`
	Type string    `json:"type"`
	Data Event     `json:"data"`
}

type writerJournal struct {
	mu  sync.Mutex
	w   io.Writer
	run string
}

// NewWriterJournal creates a journal that appends line-delimited JSON
// entries to w, each stamped with the run identifier.
func NewWriterJournal(w io.Writer, run string) Journal {
	return &writerJournal{w: w, run: run}
}

func (j *writerJournal) Write(ev Event) error {
	buf := bytes.Buffer{}
	buf.Grow(512)

	entry := Entry{
		Time: time.Now(),
		Run:  j.run,
		Type: ev.Type(),
		Data: ev,
	}
	if err := json.NewEncoder(&buf).Encode(entry); err != nil {
		return drovererrors.Wrap(err, "marshal event")
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	if _, err := j.w.Write(buf.Bytes()); err != nil {
		return drovererrors.Wrap(err, "write event")
	}
	return nil
}

// FileJournal appends entries to a journal file.
type FileJournal struct {
	Journal
	f *os.File
}

// OpenFile opens (or creates) the journal file at path for appending.
func OpenFile(path, run string) (*FileJournal, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return nil, drovererrors.Wrap(err, "open journal")
	}
	return &FileJournal{Journal: NewWriterJournal(f, run), f: f}, nil
}

// Close flushes nothing (writes are unbuffered) and closes the file.
func (j *FileJournal) Close() error {
	return j.f.Close()
}

// logJournal mirrors events into a slog logger so every lifecycle fact
// shows up in the regular log stream even with no journal file configured.
type logJournal struct {
	logger *slog.Logger
}

// NewLogJournal creates a journal that logs each event.
func NewLogJournal(logger *slog.Logger) Journal {
	return &logJournal{logger: logger}
}

func (j *logJournal) Write(ev Event) error {
	level := slog.LevelInfo
	switch e := ev.(type) {
	case *WorkerGaveUp:
		level = slog.LevelError
	case *WorkerSpawnError, *PoolDegraded, *WorkerKilled:
		level = slog.LevelWarn
	case *WorkerExited:
		if !e.Clean() && !e.Draining {
			level = slog.LevelWarn
		}
	}

	j.logger.LogAttrs(context.Background(), level, ev.Type(), slog.Any("data", ev))
	return nil
}

type multiJournal struct {
	journals []Journal
}

// Multi creates a journal that fans out each event to every given journal.
// The first write error is returned after all journals have been tried.
func Multi(js ...Journal) Journal {
	return &multiJournal{journals: js}
}

func (j *multiJournal) Write(ev Event) error {
	var firstErr error
	for _, journal := range j.journals {
		if err := journal.Write(ev); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

type nopJournal struct{}

// Nop returns a journal that discards every event.
func Nop() Journal { return nopJournal{} }

func (nopJournal) Write(Event) error { return nil }
