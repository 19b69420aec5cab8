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
	"bufio"
	"encoding/json"
	"io"

	drovererrors "github.com/drover-sh/drover/pkg/errors"
)

// Reader parses journals written by NewWriterJournal, oldest entry first.
type Reader struct {
	s *bufio.Scanner
}

// NewReader creates a journal reader.
func NewReader(r io.Reader) *Reader {
	return &Reader{s: bufio.NewScanner(r)}
}

// Read returns the next entry. io.EOF is returned once the journal is fully
// consumed. Blank lines are skipped; entries with unknown event types are
// returned with a nil Data so callers can still see the envelope.
func (r *Reader) Read() (Entry, error) {
	for r.s.Scan() {
		line := r.s.Bytes()
		if len(line) == 0 {
			continue
		}

		var raw struct {
			Time json.RawMessage `json:"time"`
			Run  string          `json:"run"`
			Type string          `json:"type"`
			Data json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(line, &raw); err != nil {
			return Entry{}, drovererrors.Wrap(err, "parse journal entry")
		}

		entry := Entry{Run: raw.Run, Type: raw.Type}
		if err := json.Unmarshal(raw.Time, &entry.Time); err != nil {
			return Entry{}, drovererrors.Wrap(err, "parse journal timestamp")
		}

		if ev := New(raw.Type); ev != nil {
			if err := json.Unmarshal(raw.Data, ev); err != nil {
				return Entry{}, drovererrors.Wrapf(err, "parse %s event", raw.Type)
			}
			entry.Data = ev
		}

		return entry, nil
	}

	if err := r.s.Err(); err != nil {
		return Entry{}, err
	}
	return Entry{}, io.EOF
}
