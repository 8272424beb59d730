// Copyright 2025 Tom Barlow
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

package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Provider hands out the catalog snapshot a call should use. Callers take one
// snapshot per call and use it throughout.
type Provider interface {
	Current() *Snapshot
}

// Current lets a fixed Snapshot act as its own Provider.
func (s *Snapshot) Current() *Snapshot {
	return s
}

// Watcher keeps a snapshot of a catalog file and reloads it when the file
// changes. A reload that fails keeps the previous snapshot.
type Watcher struct {
	path      string
	fsWatcher *fsnotify.Watcher
	logger    *slog.Logger
	debounce  time.Duration
	onReload  func(*Snapshot, error)

	current atomic.Pointer[Snapshot]

	// mu protects timer
	mu    sync.Mutex
	timer *time.Timer

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// WatcherConfig configures a Watcher.
type WatcherConfig struct {
	// Path is the catalog file to load and watch.
	Path string

	// Logger is used for structured logging (optional).
	Logger *slog.Logger

	// DebounceDelay collapses bursts of writes into one reload (defaults to 200ms).
	DebounceDelay time.Duration

	// OnReload is called after every reload attempt (optional).
	OnReload func(*Snapshot, error)
}

// NewWatcher loads the catalog file and starts watching it.
func NewWatcher(cfg WatcherConfig) (*Watcher, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("catalog path is required")
	}
	absPath, err := filepath.Abs(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path %s: %w", cfg.Path, err)
	}

	initial, err := LoadFile(absPath)
	if err != nil {
		return nil, err
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	// Editors often replace files by rename, so watch the directory.
	if err := fsWatcher.Add(filepath.Dir(absPath)); err != nil {
		fsWatcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", filepath.Dir(absPath), err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	debounce := cfg.DebounceDelay
	if debounce == 0 {
		debounce = 200 * time.Millisecond
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := &Watcher{
		path:      absPath,
		fsWatcher: fsWatcher,
		logger:    logger,
		debounce:  debounce,
		onReload:  cfg.OnReload,
		ctx:       ctx,
		cancel:    cancel,
	}
	w.current.Store(initial)

	w.wg.Add(1)
	go w.processEvents()

	logger.Debug("watching catalog", "path", absPath, "node_types", initial.Len())
	return w, nil
}

// Current implements Provider.
func (w *Watcher) Current() *Snapshot {
	return w.current.Load()
}

// Reload reads the catalog file now and swaps in the new snapshot on success.
func (w *Watcher) Reload() error {
	snap, err := LoadFile(w.path)
	if err == nil {
		w.current.Store(snap)
		w.logger.Info("catalog reloaded", "path", w.path, "node_types", snap.Len())
	} else {
		w.logger.Error("catalog reload failed, keeping previous snapshot", "path", w.path, "error", err)
	}
	if w.onReload != nil {
		w.onReload(snap, err)
	}
	return err
}

func (w *Watcher) processEvents() {
	defer w.wg.Done()

	for {
		select {
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				w.scheduleReload()
			}

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("catalog watcher error", "error", err)

		case <-w.ctx.Done():
			return
		}
	}
}

func (w *Watcher) scheduleReload() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		if w.ctx.Err() != nil {
			return
		}
		_ = w.Reload()
	})
}

// Close stops watching. The last snapshot stays available through Current.
func (w *Watcher) Close() error {
	w.cancel()

	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()

	w.wg.Wait()
	return w.fsWatcher.Close()
}
