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

// Package watch turns filesystem changes into reload triggers. It watches
// directories recursively through fsnotify, filters paths through
// doublestar include and exclude patterns, and coalesces bursts of events
// into a single callback per debounce window.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/drover-sh/drover/internal/log"
)

// Config describes what to watch and what to do on changes.
type Config struct {
	// Paths are the roots to watch. Directories are watched recursively,
	// including directories created later.
	Paths []string

	// Include are doublestar patterns a changed path must match. An empty
	// list admits every path.
	Include []string

	// Exclude are doublestar patterns that suppress a change.
	Exclude []string

	// Debounce is how long a burst of changes is coalesced before the
	// callback fires. Zero uses 300ms.
	Debounce time.Duration

	// OnChange receives the sorted, de-duplicated paths that changed
	// during one debounce window. It runs on a timer goroutine and must
	// not block for long.
	OnChange func(paths []string)

	// Logger receives watcher logs. Nil uses slog.Default.
	Logger *slog.Logger
}

// Watcher drives fsnotify for a set of directory trees.
type Watcher struct {
	paths    []string
	fsw      *fsnotify.Watcher
	matcher  *matcher
	debounce *debouncer
	logger   *slog.Logger
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// New validates the configuration and prepares a watcher. Nothing is
// watched until Start.
func New(cfg Config) (*Watcher, error) {
	if cfg.OnChange == nil {
		return nil, fmt.Errorf("watch: OnChange callback is required")
	}
	if len(cfg.Paths) == 0 {
		return nil, fmt.Errorf("watch: no paths to watch")
	}

	m, err := newMatcher(cfg.Include, cfg.Exclude)
	if err != nil {
		return nil, err
	}

	window := cfg.Debounce
	if window <= 0 {
		window = 300 * time.Millisecond
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	return &Watcher{
		paths:    cfg.Paths,
		fsw:      fsw,
		matcher:  m,
		debounce: newDebouncer(window, cfg.OnChange),
		logger:   log.WithComponent(logger, "watch"),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// Start registers every configured root and begins delivering changes. A
// root that cannot be watched fails the whole start.
func (w *Watcher) Start(ctx context.Context) error {
	for _, root := range w.paths {
		abs, err := filepath.Abs(root)
		if err != nil {
			w.fsw.Close()
			return fmt.Errorf("cannot resolve watch path %s: %w", root, err)
		}
		if err := w.addTree(abs); err != nil {
			w.fsw.Close()
			return err
		}
	}

	go w.eventLoop(ctx)
	w.logger.Info("watching for file changes",
		log.Int("roots", len(w.paths)),
		log.Duration("debounce", w.debounce.window),
	)
	return nil
}

// Stop ends the watch. Changes still sitting in the debounce window are
// discarded: a reload during shutdown is never wanted.
func (w *Watcher) Stop() error {
	close(w.stopCh)
	<-w.doneCh
	w.debounce.Stop()
	return w.fsw.Close()
}

func (w *Watcher) eventLoop(ctx context.Context) {
	defer close(w.doneCh)

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Error("file watch error", log.Error(err))
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	// Chmod-only events churn constantly on some systems and never mean
	// the content changed.
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}

	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			// fsnotify does not recurse: pick up the new subtree.
			if err := w.addTree(event.Name); err != nil {
				w.logger.Debug("cannot watch new directory",
					log.String("path", event.Name),
					log.Error(err),
				)
			}
			return
		}
	}

	if !w.matcher.Match(event.Name) {
		return
	}

	w.logger.Debug("file changed",
		log.String("path", event.Name),
		log.String("op", event.Op.String()),
	)
	w.debounce.Add(event.Name)
}

// addTree watches root and, if it is a directory, every non-excluded
// directory below it.
func (w *Watcher) addTree(root string) error {
	info, err := os.Stat(root)
	if err != nil {
		return fmt.Errorf("cannot watch %s: %w", root, err)
	}
	if !info.IsDir() {
		if err := w.fsw.Add(root); err != nil {
			return fmt.Errorf("cannot watch %s: %w", root, err)
		}
		return nil
	}

	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			w.logger.Debug("skipping unreadable path",
				log.String("path", path),
				log.Error(err),
			)
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if w.matcher.excludedDir(path) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			// The directory may have vanished between the walk and the
			// add; keep watching the rest of the tree.
			w.logger.Debug("cannot watch directory",
				log.String("path", path),
				log.Error(err),
			)
		}
		return nil
	})
}
