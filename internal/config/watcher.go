// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/KillingSpark/unitd/internal/events"
)

const defaultReloadDebounce = 200 * time.Millisecond

// reloadDebouncer coalesces a burst of fsnotify events into one call,
// the same role trellis's watcher.Debouncer plays for binary-changed
// events.
type reloadDebouncer struct {
	mu       sync.Mutex
	duration time.Duration
	timer    *time.Timer
}

func newReloadDebouncer(d time.Duration) *reloadDebouncer {
	if d <= 0 {
		d = defaultReloadDebounce
	}
	return &reloadDebouncer{duration: d}
}

func (d *reloadDebouncer) trigger(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.duration, fn)
}

func (d *reloadDebouncer) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

// DirWatcher watches a set of unit directories and calls OnReload,
// debounced, whenever a unit file is created, written, removed, or
// renamed inside them. Grounded on trellis
// internal/watcher/binary.go's BinaryWatcher: same ref-counted
// fsnotify.Watcher.Add/Remove and debounced-callback shape, adapted
// from "one watch set per service binary" to "one watch set per unit
// directory feeding a single reload callback" and from a
// restart-cooldown to a plain debounce (spec.md's reload has no
// cooldown requirement).
type DirWatcher struct {
	watcher   *fsnotify.Watcher
	debouncer *reloadDebouncer
	bus       events.EventBus

	mu    sync.Mutex
	dirs  map[string]int
	dirOf map[string]string // canonical path -> path as added, for Remove symmetry

	closeCh chan struct{}
	wg      sync.WaitGroup

	OnReload func()
}

// NewDirWatcher creates a DirWatcher. bus may be nil; if set, a
// "config.reload" event is published alongside every debounced
// OnReload call.
func NewDirWatcher(bus events.EventBus, debounce time.Duration) (*DirWatcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config: create fsnotify watcher: %w", err)
	}
	w := &DirWatcher{
		watcher:   fsWatcher,
		debouncer: newReloadDebouncer(debounce),
		bus:       bus,
		dirs:      make(map[string]int),
		dirOf:     make(map[string]string),
		closeCh:   make(chan struct{}),
	}
	w.wg.Add(1)
	go w.processEvents()
	return w, nil
}

// Watch adds a directory to the watch set, ref-counted so the same
// directory can be registered from multiple call sites without fsnotify
// errors on double-Add.
func (w *DirWatcher) Watch(dir string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.dirs[dir]++
	if w.dirs[dir] == 1 {
		if err := w.watcher.Add(dir); err != nil {
			w.dirs[dir]--
			if w.dirs[dir] == 0 {
				delete(w.dirs, dir)
			}
			return fmt.Errorf("config: watch %s: %w", dir, err)
		}
	}
	return nil
}

// Unwatch drops one reference to dir, removing the fsnotify watch once
// the count reaches zero.
func (w *DirWatcher) Unwatch(dir string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.dirs[dir]--
	if w.dirs[dir] <= 0 {
		w.watcher.Remove(dir)
		delete(w.dirs, dir)
	}
}

// Close stops the watcher and releases its fsnotify handle.
func (w *DirWatcher) Close() error {
	close(w.closeCh)
	w.debouncer.stop()
	err := w.watcher.Close()
	w.wg.Wait()
	return err
}

func (w *DirWatcher) processEvents() {
	defer w.wg.Done()
	for {
		select {
		case <-w.closeCh:
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)
		case _, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
		}
	}
}

// handleEvent ignores Chmod: it fires on file permission changes, not
// content changes, and would otherwise debounce-trigger a reload for
// every unrelated stat of a unit file.
func (w *DirWatcher) handleEvent(ev fsnotify.Event) {
	if ev.Has(fsnotify.Chmod) {
		return
	}
	w.debouncer.trigger(func() {
		if w.bus != nil {
			w.bus.Publish(context.Background(), events.Event{
				Type:    "config.reload",
				Payload: map[string]interface{}{"path": ev.Name},
			})
		}
		if w.OnReload != nil {
			w.OnReload()
		}
	})
}
