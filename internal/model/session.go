// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"crypto/rand"
	"encoding/hex"
	"strconv"
	"time"
)

// DefaultSessionTitle is the title given to sessions created without one.
const DefaultSessionTitle = "New Chat"

// =============================================================================
// SESSION TYPE
// =============================================================================

// Session holds a titled, ordered conversation thread.
//
// Sessions are persisted as one ordered list; their position in that list is
// insertion order, not recency. Identity is the ID, generated at creation
// time and immutable.
type Session struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NewSession creates a session with a generated ID and the given title.
// An empty title falls back to DefaultSessionTitle.
func NewSession(title string) Session {
	if title == "" {
		title = DefaultSessionTitle
	}
	now := time.Now()
	return Session{
		ID:        newSessionID(now),
		Title:     title,
		Messages:  []Message{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Touch refreshes the UpdatedAt timestamp.
func (s *Session) Touch() {
	s.UpdatedAt = time.Now()
}

// MessageCount returns the number of messages in the session.
func (s *Session) MessageCount() int {
	return len(s.Messages)
}

// MessageByID returns a pointer into the session's message slice, or nil.
func (s *Session) MessageByID(id string) *Message {
	for i := range s.Messages {
		if s.Messages[i].ID == id {
			return &s.Messages[i]
		}
	}
	return nil
}

// LastMessage returns the most recent message, or nil if the session is empty.
func (s *Session) LastMessage() *Message {
	if len(s.Messages) == 0 {
		return nil
	}
	return &s.Messages[len(s.Messages)-1]
}

// Preview returns a short preview from the first user message.
func (s *Session) Preview(maxLen int) string {
	for _, msg := range s.Messages {
		if msg.Role == RoleUser && msg.Content != "" {
			return msg.Preview(maxLen)
		}
	}
	return ""
}

// Clone returns a deep copy of the session. Callers that hand sessions to
// observers use this so later in-place mutation cannot leak.
func (s *Session) Clone() Session {
	clone := *s
	clone.Messages = make([]Message, len(s.Messages))
	copy(clone.Messages, s.Messages)
	return clone
}

// =============================================================================
// SESSION PATCH
// =============================================================================

// SessionPatch describes a partial update to a session. Nil fields are left
// untouched by Repository.Update.
type SessionPatch struct {
	Title    *string
	Messages *[]Message
}

// =============================================================================
// SCHEMA COERCION
// =============================================================================

// SanitizeSessions validates records loaded from storage. Persisted data is
// never trusted implicitly: sessions without ids are dropped, messages with
// empty ids or unknown roles are dropped, and zero timestamps are backfilled.
// The input order is preserved. Never fails.
func SanitizeSessions(sessions []Session) []Session {
	out := make([]Session, 0, len(sessions))
	for _, s := range sessions {
		if s.ID == "" {
			continue
		}
		if s.Title == "" {
			s.Title = DefaultSessionTitle
		}
		if s.CreatedAt.IsZero() {
			s.CreatedAt = time.Now()
		}
		if s.UpdatedAt.IsZero() {
			s.UpdatedAt = s.CreatedAt
		}
		msgs := make([]Message, 0, len(s.Messages))
		for _, m := range s.Messages {
			if m.ID == "" || !m.Role.Valid() {
				continue
			}
			if m.Timestamp.IsZero() {
				m.Timestamp = s.UpdatedAt
			}
			msgs = append(msgs, m)
		}
		s.Messages = msgs
		out = append(out, s)
	}
	return out
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// newSessionID creates a unique session ID from a millisecond timestamp plus
// a random suffix, so rapid creation within the same millisecond cannot
// collide.
func newSessionID(t time.Time) string {
	bytes := make([]byte, 4)
	rand.Read(bytes)
	return strconv.FormatInt(t.UnixMilli(), 10) + "-" + hex.EncodeToString(bytes)
}
