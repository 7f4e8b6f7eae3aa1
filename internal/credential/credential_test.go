// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package credential

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jeranaias/deepchat-tui/internal/deepseek"
	"github.com/jeranaias/deepchat-tui/internal/store"
)

const goodKey = "sk-0123456789abcdef012345"

// apiStub answers chat completions, accepting only goodKey.
func apiStub(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+goodKey {
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprint(w, `{"error":{"message":"bad key"}}`)
			return
		}
		fmt.Fprint(w, `{"choices":[{"message":{"content":"ok"}}]}`)
	}))
}

func TestSaveVerifiesThenPersists(t *testing.T) {
	server := apiStub(t)
	defer server.Close()

	s := store.NewMemStore()
	client := deepseek.NewClient("").WithBaseURL(server.URL)
	m := NewManager(s, client)

	if err := m.Save(context.Background(), goodKey); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if key, ok := m.APIKey(); !ok || key != goodKey {
		t.Errorf("APIKey() = %q, %v; want persisted key", key, ok)
	}
	if !client.IsConfigured() {
		t.Error("client should be configured after Save")
	}
}

func TestSaveRejectedKeyNotPersisted(t *testing.T) {
	server := apiStub(t)
	defer server.Close()

	s := store.NewMemStore()
	client := deepseek.NewClient("").WithBaseURL(server.URL)
	m := NewManager(s, client)

	err := m.Save(context.Background(), "sk-wrong-key-abcdef012345")
	if !errors.Is(err, ErrRejected) {
		t.Fatalf("err = %v, want ErrRejected", err)
	}

	if _, ok := m.APIKey(); ok {
		t.Error("rejected key must not be persisted")
	}
	if client.IsConfigured() {
		t.Error("client must not keep a rejected key")
	}
}

func TestSaveRejectedKeyKeepsPrevious(t *testing.T) {
	server := apiStub(t)
	defer server.Close()

	s := store.NewMemStore()
	s.Set(store.KeyAPIKey, goodKey)
	client := deepseek.NewClient("").WithBaseURL(server.URL)
	m := NewManager(s, client)

	if err := m.Save(context.Background(), "sk-wrong-key-abcdef012345"); !errors.Is(err, ErrRejected) {
		t.Fatalf("err = %v, want ErrRejected", err)
	}

	if key, _ := m.APIKey(); key != goodKey {
		t.Errorf("previous key should survive a failed Save, got %q", key)
	}
	if !client.IsConfigured() {
		t.Error("client should fall back to the previous key")
	}
}

func TestSaveInvalidFormat(t *testing.T) {
	m := NewManager(store.NewMemStore(), deepseek.NewClient(""))

	if err := m.Save(context.Background(), "not-a-key"); !errors.Is(err, ErrInvalidFormat) {
		t.Errorf("err = %v, want ErrInvalidFormat", err)
	}
}

func TestNewManagerLoadsPersistedKey(t *testing.T) {
	s := store.NewMemStore()
	s.Set(store.KeyAPIKey, goodKey)
	client := deepseek.NewClient("")

	m := NewManager(s, client)

	if !m.IsConfigured() {
		t.Error("manager should see the persisted key")
	}
	if !client.IsConfigured() {
		t.Error("client should pick up the persisted key")
	}
}

func TestClear(t *testing.T) {
	s := store.NewMemStore()
	s.Set(store.KeyAPIKey, goodKey)
	client := deepseek.NewClient("")
	m := NewManager(s, client)

	m.Clear()

	if m.IsConfigured() {
		t.Error("key should be gone after Clear")
	}
	if client.IsConfigured() {
		t.Error("client should be deconfigured after Clear")
	}
}
