// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package store provides the durable key-value store backing chat state.
//
// The contract is deliberately total: Get, Set and Remove never return
// errors and never panic, and every operation is safe to call before any
// initialization has happened. Backends log failures and degrade to
// empty/absent values instead of surfacing storage errors to callers.
package store

import "sync"

// Well-known keys. The session collection is stored as ONE serialized list
// under KeySessions, so every session mutation rewrites the whole
// collection; that keeps writes atomic-looking at the cost of bounding the
// session count by what fits in one value.
const (
	KeyAPIKey           = "deepseek_api_key"
	KeySessions         = "chat_sessions"
	KeyCurrentSessionID = "current_session_id"
)

// Store is a synchronous key-value store.
type Store interface {
	// Get returns the value for key and whether it was present.
	Get(key string) (string, bool)
	// Set writes the value for key.
	Set(key, value string)
	// Remove deletes the key. Removing an absent key is a no-op.
	Remove(key string)
}

// =============================================================================
// MEMORY STORE
// =============================================================================

// MemStore is a map-backed Store for tests and ephemeral runs.
type MemStore struct {
	mu sync.RWMutex
	m  map[string]string
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{m: make(map[string]string)}
}

// Get returns the value for key and whether it was present.
func (s *MemStore) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.m[key]
	return v, ok
}

// Set writes the value for key.
func (s *MemStore) Set(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[key] = value
}

// Remove deletes the key.
func (s *MemStore) Remove(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, key)
}
