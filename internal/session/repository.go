// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session provides CRUD operations over persisted chat sessions.
//
// The Repository is the sole writer of session state in the store; every
// other component mutates sessions only through it. Readers always re-read
// from the store rather than trusting cached copies, so externally written
// state is observed on the next call.
package session

import (
	"encoding/json"

	"github.com/charmbracelet/log"

	"github.com/jeranaias/deepchat-tui/internal/model"
	"github.com/jeranaias/deepchat-tui/internal/store"
)

// Repository manages the persisted session collection and the
// current-session pointer.
type Repository struct {
	store store.Store
}

// NewRepository creates a repository over the given store.
func NewRepository(s store.Store) *Repository {
	return &Repository{store: s}
}

// =============================================================================
// READ OPERATIONS
// =============================================================================

// List returns the persisted session collection in insertion order.
// A missing or corrupt collection reads as empty; this never fails.
func (r *Repository) List() []model.Session {
	return r.read()
}

// Current resolves the current-session pointer against the collection.
// Returns nil if the pointer is unset or dangling.
func (r *Repository) Current() *model.Session {
	id, ok := r.store.Get(store.KeyCurrentSessionID)
	if !ok || id == "" {
		return nil
	}
	return findSession(r.read(), id)
}

// CurrentID returns the raw current-session pointer, which may be unset or
// dangling; use Current to resolve it.
func (r *Repository) CurrentID() (string, bool) {
	id, ok := r.store.Get(store.KeyCurrentSessionID)
	return id, ok && id != ""
}

// Get returns the session with the given id, or nil.
func (r *Repository) Get(id string) *model.Session {
	return findSession(r.read(), id)
}

// =============================================================================
// WRITE OPERATIONS
// =============================================================================

// Create appends a new session to the collection, persists it, and makes it
// the current session.
func (r *Repository) Create(title string) model.Session {
	sess := model.NewSession(title)

	sessions := append(r.read(), sess)
	r.write(sessions)
	r.SetCurrent(sess.ID)

	return sess
}

// SetCurrent unconditionally overwrites the current-session pointer. By
// contract the id is not validated here; dangling pointers resolve to
// nothing on read and are healed by EnsureInitialized.
func (r *Repository) SetCurrent(id string) {
	r.store.Set(store.KeyCurrentSessionID, id)
}

// Update merges the patch into the matching session, refreshes UpdatedAt,
// persists, and returns the merged record. Returns nil without error if the
// id is unknown.
func (r *Repository) Update(id string, patch model.SessionPatch) *model.Session {
	sessions := r.read()
	sess := findSession(sessions, id)
	if sess == nil {
		return nil
	}

	if patch.Title != nil {
		sess.Title = *patch.Title
	}
	if patch.Messages != nil {
		sess.Messages = *patch.Messages
	}
	sess.Touch()

	r.write(sessions)
	out := sess.Clone()
	return &out
}

// AppendMessage appends a message to the session's message sequence,
// refreshes UpdatedAt, persists, and returns the updated record. Returns
// nil if the session is unknown.
func (r *Repository) AppendMessage(sessionID string, msg model.Message) *model.Session {
	sessions := r.read()
	sess := findSession(sessions, sessionID)
	if sess == nil {
		return nil
	}

	sess.Messages = append(sess.Messages, msg)
	sess.Touch()

	r.write(sessions)
	out := sess.Clone()
	return &out
}

// Delete removes the matching session; it reports false as a no-op if the
// id is unknown. If the deleted session was current, the pointer moves to
// the first remaining session, or is cleared when none remain.
func (r *Repository) Delete(id string) bool {
	sessions := r.read()

	idx := -1
	for i := range sessions {
		if sessions[i].ID == id {
			idx = i
			break
		}
	}
	if idx == -1 {
		return false
	}

	sessions = append(sessions[:idx], sessions[idx+1:]...)
	r.write(sessions)

	if cur, ok := r.CurrentID(); ok && cur == id {
		if len(sessions) > 0 {
			r.SetCurrent(sessions[0].ID)
		} else {
			r.store.Remove(store.KeyCurrentSessionID)
		}
	}

	return true
}

// EnsureInitialized makes the store usable: with no sessions it creates
// exactly one default session (which becomes current); with sessions but no
// usable current pointer it points at the first session. Idempotent.
func (r *Repository) EnsureInitialized() {
	sessions := r.read()

	if len(sessions) == 0 {
		r.Create(model.DefaultSessionTitle)
		return
	}

	// Heal an unset or dangling pointer.
	if id, ok := r.CurrentID(); !ok || findSession(sessions, id) == nil {
		r.SetCurrent(sessions[0].ID)
	}
}

// =============================================================================
// STORE ACCESS
// =============================================================================

// read loads and sanitizes the collection. Parse failures read as an empty
// collection and are logged, never surfaced.
func (r *Repository) read() []model.Session {
	raw, ok := r.store.Get(store.KeySessions)
	if !ok || raw == "" {
		return []model.Session{}
	}

	var sessions []model.Session
	if err := json.Unmarshal([]byte(raw), &sessions); err != nil {
		log.Warn("session: corrupt session collection, treating as empty", "err", err)
		return []model.Session{}
	}
	return model.SanitizeSessions(sessions)
}

// write persists the whole collection under the single sessions key.
func (r *Repository) write(sessions []model.Session) {
	data, err := json.Marshal(sessions)
	if err != nil {
		log.Error("session: failed to encode session collection", "err", err)
		return
	}
	r.store.Set(store.KeySessions, string(data))
}

func findSession(sessions []model.Session, id string) *model.Session {
	for i := range sessions {
		if sessions[i].ID == id {
			return &sessions[i]
		}
	}
	return nil
}
