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

package watch

import (
	"sort"
	"sync"
	"time"
)

// debouncer coalesces a burst of changed paths into one callback. Every
// Add restarts the window; the callback fires once no new change has
// arrived for a full window, with the de-duplicated set of paths seen.
//
// One shared window, not one per path: ten files saved together should
// trigger one reload, not ten.
type debouncer struct {
	window  time.Duration
	onFlush func([]string)

	mu      sync.Mutex
	timer   *time.Timer
	pending map[string]struct{}
	stopped bool
}

func newDebouncer(window time.Duration, onFlush func([]string)) *debouncer {
	return &debouncer{
		window:  window,
		onFlush: onFlush,
		pending: make(map[string]struct{}),
	}
}

// Add records a changed path and restarts the debounce window.
func (d *debouncer) Add(path string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	d.pending[path] = struct{}{}
	if d.timer == nil {
		d.timer = time.AfterFunc(d.window, d.flush)
	} else {
		d.timer.Reset(d.window)
	}
}

// flush runs on the timer goroutine once the window lapses.
func (d *debouncer) flush() {
	d.mu.Lock()
	if d.stopped || len(d.pending) == 0 {
		d.mu.Unlock()
		return
	}
	paths := make([]string, 0, len(d.pending))
	for p := range d.pending {
		paths = append(paths, p)
	}
	d.pending = make(map[string]struct{})
	d.mu.Unlock()

	sort.Strings(paths)

	// Outside the lock: the callback may take its time.
	d.onFlush(paths)
}

// Stop discards pending paths and prevents further callbacks. A flush
// already past the stopped check may still deliver.
func (d *debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
	}
	d.pending = nil
}

// Pending returns how many distinct paths await the next flush.
func (d *debouncer) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}
