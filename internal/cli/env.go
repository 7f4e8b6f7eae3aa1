// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jeranaias/deepchat-tui/internal/config"
	"github.com/jeranaias/deepchat-tui/internal/credential"
	"github.com/jeranaias/deepchat-tui/internal/deepseek"
	"github.com/jeranaias/deepchat-tui/internal/session"
	"github.com/jeranaias/deepchat-tui/internal/store"
)

// =============================================================================
// SHARED COMMAND ENVIRONMENT
// =============================================================================

// Env wires configuration, storage, and the API client the way every command
// needs them. Close it when done; only the sqlite backend holds resources.
type Env struct {
	Cfg    *config.Config
	Store  store.Store
	Repo   *session.Repository
	Client *deepseek.Client
	Creds  *credential.Manager

	// FileStore is non-nil when the file backend is active; the TUI uses it
	// to watch for external writes.
	FileStore *store.FileStore

	closer func() error
}

// OpenEnv loads config and opens the configured storage backend.
func OpenEnv() (*Env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	dir, err := cfg.StateDir()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("could not create state directory: %w", err)
	}

	env := &Env{Cfg: cfg}

	switch strings.ToLower(cfg.Storage.Backend) {
	case "sqlite":
		s, err := store.NewSQLiteStore(filepath.Join(dir, "deepchat.db"))
		if err != nil {
			return nil, fmt.Errorf("could not open sqlite store: %w", err)
		}
		env.Store = s
		env.closer = s.Close
	default:
		fs, err := store.NewDefaultFileStore(dir)
		if err != nil {
			return nil, fmt.Errorf("could not open file store: %w", err)
		}
		env.Store = fs
		env.FileStore = fs
	}

	env.Client = deepseek.NewClient("").
		WithBaseURL(cfg.API.BaseURL).
		WithModel(cfg.API.Model).
		WithTimeout(time.Duration(cfg.API.TimeoutSecs) * time.Second)
	env.Creds = credential.NewManager(env.Store, env.Client)
	env.Repo = session.NewRepository(env.Store)
	return env, nil
}

// Close releases backend resources.
func (e *Env) Close() error {
	if e.closer != nil {
		return e.closer()
	}
	return nil
}
