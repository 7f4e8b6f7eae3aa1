// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/jeranaias/deepchat-tui/internal/util"
)

// DefaultStateFile is the file name used inside the deepchat data directory.
const DefaultStateFile = "state.json"

// FileStore persists all keys in a single JSON document, written atomically
// with fsync so a crash leaves either the old or the new complete file.
//
// Reads always go back to disk so externally written values (another
// process sharing the same file) are observed; there is no conflict
// resolution between concurrent writers.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore creates a file store at path. The file does not need to
// exist; a missing or corrupt file reads as an empty store.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// NewDefaultFileStore creates a file store under dir (typically
// ~/.deepchat), creating the directory if needed.
func NewDefaultFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	return NewFileStore(filepath.Join(dir, DefaultStateFile)), nil
}

// Path returns the backing file path.
func (s *FileStore) Path() string {
	return s.path
}

// Get returns the value for key and whether it was present.
func (s *FileStore) Get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.read()
	v, ok := m[key]
	return v, ok
}

// Set writes the value for key.
func (s *FileStore) Set(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.read()
	m[key] = value
	s.write(m)
}

// Remove deletes the key.
func (s *FileStore) Remove(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.read()
	if _, ok := m[key]; !ok {
		return
	}
	delete(m, key)
	s.write(m)
}

// read loads the backing file. Missing or corrupt data yields an empty map;
// corruption is logged but never surfaced.
func (s *FileStore) read() map[string]string {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn("store: unreadable state file, treating as empty", "path", s.path, "err", err)
		}
		return make(map[string]string)
	}

	var m map[string]string
	if err := json.Unmarshal(data, &m); err != nil {
		log.Warn("store: corrupt state file, treating as empty", "path", s.path, "err", err)
		return make(map[string]string)
	}
	if m == nil {
		m = make(map[string]string)
	}
	return m
}

// write persists the map. Failures are logged; the store contract is total
// so they are not returned.
func (s *FileStore) write(m map[string]string) {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		log.Error("store: failed to encode state", "err", err)
		return
	}
	if err := util.AtomicWriteFile(s.path, data, 0600); err != nil {
		log.Error("store: failed to write state file", "path", s.path, "err", err)
	}
}
