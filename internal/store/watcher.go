// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

// Watcher reports external modification of a file store's backing file so
// views can re-read their state. It is advisory only: readers always
// re-read from the store, so a missed event costs freshness, not
// correctness, and concurrent external writers remain unsupported.
type Watcher struct {
	fsw  *fsnotify.Watcher
	path string
	done chan struct{}
}

// NewWatcher watches the given file store and invokes onChange (from the
// watcher goroutine) whenever the backing file is written or replaced.
func NewWatcher(fs *FileStore, onChange func()) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	// Watch the directory, not the file: the atomic-rename write pattern
	// replaces the file node on every persist.
	dir := filepath.Dir(fs.Path())
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, err
	}

	w := &Watcher{
		fsw:  fsw,
		path: fs.Path(),
		done: make(chan struct{}),
	}

	go w.loop(onChange)
	return w, nil
}

func (w *Watcher) loop(onChange func()) {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if event.Name != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				onChange()
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			log.Warn("store: watch error", "err", err)
		}
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	close(w.done)
	return w.fsw.Close()
}
