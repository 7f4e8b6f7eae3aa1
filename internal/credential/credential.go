// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package credential manages the persisted DeepSeek API key.
//
// A key is only persisted after it has been verified against the live API,
// so a stored key is always one that authenticated at least once.
package credential

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/jeranaias/deepchat-tui/internal/deepseek"
	"github.com/jeranaias/deepchat-tui/internal/store"
)

var (
	// ErrInvalidFormat indicates the key does not look like a DeepSeek key.
	ErrInvalidFormat = errors.New("API key format is invalid")

	// ErrRejected indicates the API refused the key.
	ErrRejected = errors.New("API key was rejected")
)

// Manager loads, verifies, and persists the API key, keeping the client's
// key in sync with the store.
type Manager struct {
	store  store.Store
	client *deepseek.Client
}

// NewManager creates a manager and loads any persisted key into the client.
func NewManager(s store.Store, c *deepseek.Client) *Manager {
	if key, ok := s.Get(store.KeyAPIKey); ok && key != "" {
		c.SetAPIKey(key)
	}
	return &Manager{store: s, client: c}
}

// APIKey returns the persisted key, if any.
func (m *Manager) APIKey() (string, bool) {
	key, ok := m.store.Get(store.KeyAPIKey)
	return key, ok && key != ""
}

// IsConfigured reports whether a key is persisted.
func (m *Manager) IsConfigured() bool {
	_, ok := m.APIKey()
	return ok
}

// Save verifies the candidate key against the live API and persists it on
// success. On failure the previous key, if any, stays active.
func (m *Manager) Save(ctx context.Context, key string) error {
	key = strings.TrimSpace(key)
	if !deepseek.ValidateKeyFormat(key) {
		return ErrInvalidFormat
	}

	prev, _ := m.store.Get(store.KeyAPIKey)
	m.client.SetAPIKey(key)

	ok, err := m.client.ValidateKey(ctx)
	if err != nil {
		m.client.SetAPIKey(prev)
		return fmt.Errorf("could not verify API key: %w", err)
	}
	if !ok {
		m.client.SetAPIKey(prev)
		return ErrRejected
	}

	m.store.Set(store.KeyAPIKey, key)
	log.Info("credential: API key verified and saved")
	return nil
}

// Clear removes the persisted key and deconfigures the client.
func (m *Manager) Clear() {
	m.store.Remove(store.KeyAPIKey)
	m.client.SetAPIKey("")
}
