// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"strings"
	"testing"
	"time"
)

// =============================================================================
// MESSAGE TESTS
// =============================================================================

func TestNewMessage(t *testing.T) {
	msg := NewUserMessage("hello")

	if msg.ID == "" {
		t.Error("Expected non-empty message ID")
	}
	if msg.Role != RoleUser {
		t.Errorf("Role = %q, want %q", msg.Role, RoleUser)
	}
	if msg.Content != "hello" {
		t.Errorf("Content = %q, want %q", msg.Content, "hello")
	}
	if msg.Timestamp.IsZero() {
		t.Error("Expected timestamp to be set")
	}
}

func TestNewAssistantPlaceholder(t *testing.T) {
	msg := NewAssistantPlaceholder()

	if msg.Role != RoleAssistant {
		t.Errorf("Role = %q, want %q", msg.Role, RoleAssistant)
	}
	if !msg.IsEmpty() {
		t.Error("Placeholder should have empty content")
	}
}

func TestMessageIDsUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		msg := NewUserMessage("x")
		if seen[msg.ID] {
			t.Fatalf("Duplicate message ID %q", msg.ID)
		}
		seen[msg.ID] = true
	}
}

func TestMessagePreview(t *testing.T) {
	tests := []struct {
		content string
		maxLen  int
		want    string
	}{
		{"hello", 10, "hello"},
		{"hello world", 8, "hello..."},
		{"line1\nline2", 20, "line1 line2"},
		{"hi", 2, "hi"},
		{"日本語のテスト日本語のテスト", 10, "日本語のテスト..."},
	}

	for _, tc := range tests {
		msg := Message{Content: tc.content}
		if got := msg.Preview(tc.maxLen); got != tc.want {
			t.Errorf("Preview(%q, %d) = %q, want %q", tc.content, tc.maxLen, got, tc.want)
		}
	}
}

func TestRoleValid(t *testing.T) {
	if !RoleUser.Valid() || !RoleAssistant.Valid() {
		t.Error("user and assistant should be valid persisted roles")
	}
	if RoleSystem.Valid() {
		t.Error("system is wire-only and should not be a valid persisted role")
	}
	if Role("tool").Valid() {
		t.Error("unknown roles should be invalid")
	}
}

// =============================================================================
// SESSION TESTS
// =============================================================================

func TestNewSession(t *testing.T) {
	sess := NewSession("")

	if sess.ID == "" {
		t.Error("Expected non-empty session ID")
	}
	if sess.Title != DefaultSessionTitle {
		t.Errorf("Title = %q, want %q", sess.Title, DefaultSessionTitle)
	}
	if sess.Messages == nil || len(sess.Messages) != 0 {
		t.Error("New session should have an empty, non-nil message slice")
	}
	if !sess.CreatedAt.Equal(sess.UpdatedAt) {
		t.Error("CreatedAt and UpdatedAt should match at creation")
	}
}

func TestSessionIDsUniqueWithinMillisecond(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		sess := NewSession("t")
		if seen[sess.ID] {
			t.Fatalf("Duplicate session ID %q after %d creations", sess.ID, i)
		}
		seen[sess.ID] = true
	}
}

func TestSessionMessageByID(t *testing.T) {
	sess := NewSession("t")
	msg := NewUserMessage("hi")
	sess.Messages = append(sess.Messages, msg)

	got := sess.MessageByID(msg.ID)
	if got == nil {
		t.Fatal("MessageByID returned nil for existing message")
	}

	// Returned pointer aliases the slice so streaming can mutate in place.
	got.Content = "changed"
	if sess.Messages[0].Content != "changed" {
		t.Error("MessageByID should return a pointer into the session")
	}

	if sess.MessageByID("nope") != nil {
		t.Error("MessageByID should return nil for unknown id")
	}
}

func TestSessionClone(t *testing.T) {
	sess := NewSession("t")
	sess.Messages = append(sess.Messages, NewUserMessage("hi"))

	clone := sess.Clone()
	clone.Messages[0].Content = "mutated"

	if sess.Messages[0].Content != "hi" {
		t.Error("Clone should not share message storage with the original")
	}
}

// =============================================================================
// SANITIZE TESTS
// =============================================================================

func TestSanitizeSessions(t *testing.T) {
	now := time.Now()
	in := []Session{
		{ID: "", Title: "dropped"},
		{
			ID:    "s1",
			Title: "",
			Messages: []Message{
				{ID: "m1", Role: RoleUser, Content: "ok", Timestamp: now},
				{ID: "", Role: RoleUser, Content: "no id"},
				{ID: "m2", Role: Role("tool"), Content: "bad role"},
				{ID: "m3", Role: RoleAssistant, Content: "ok too"},
			},
		},
	}

	out := SanitizeSessions(in)

	if len(out) != 1 {
		t.Fatalf("Expected 1 surviving session, got %d", len(out))
	}
	if out[0].Title != DefaultSessionTitle {
		t.Errorf("Empty title should be coerced to %q", DefaultSessionTitle)
	}
	if out[0].CreatedAt.IsZero() || out[0].UpdatedAt.IsZero() {
		t.Error("Zero timestamps should be backfilled")
	}
	if len(out[0].Messages) != 2 {
		t.Fatalf("Expected 2 surviving messages, got %d", len(out[0].Messages))
	}
	if out[0].Messages[0].ID != "m1" || out[0].Messages[1].ID != "m3" {
		t.Error("Sanitize should preserve message order")
	}
	if out[0].Messages[1].Timestamp.IsZero() {
		t.Error("Zero message timestamps should be backfilled")
	}
}

func TestSanitizeSessionsEmpty(t *testing.T) {
	out := SanitizeSessions(nil)
	if out == nil || len(out) != 0 {
		t.Error("Sanitizing nil should yield an empty, non-nil slice")
	}
}

func TestSessionPreviewSkipsAssistant(t *testing.T) {
	sess := NewSession("t")
	sess.Messages = append(sess.Messages,
		NewMessage(RoleAssistant, "assistant first"),
		NewUserMessage("the question"),
	)

	if got := sess.Preview(50); !strings.Contains(got, "the question") {
		t.Errorf("Preview should come from the first user message, got %q", got)
	}
}
