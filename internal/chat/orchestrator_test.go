// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/deepchat-tui/internal/deepseek"
	"github.com/jeranaias/deepchat-tui/internal/model"
	"github.com/jeranaias/deepchat-tui/internal/session"
	"github.com/jeranaias/deepchat-tui/internal/store"
)

// sseServer streams the given deltas and then the end-of-stream sentinel.
func sseServer(deltas ...string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, d := range deltas {
			fmt.Fprintf(w, "data: {\"choices\":[{\"delta\":{\"content\":%q}}]}\n\n", d)
			flusher.Flush()
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
}

func newOrchestrator(serverURL string) (*Orchestrator, *session.Repository) {
	repo := session.NewRepository(store.NewMemStore())
	client := deepseek.NewClient("sk-test-key-0123456789abcdef").WithBaseURL(serverURL)
	return NewOrchestrator(repo, client), repo
}

// eventLog records events; safe to inspect once Send has returned.
type eventLog struct {
	events []Event
}

func (l *eventLog) observe(ev Event) {
	l.events = append(l.events, ev)
}

func (l *eventLog) ofKind(kind EventKind) []Event {
	var out []Event
	for _, ev := range l.events {
		if ev.Kind == kind {
			out = append(out, ev)
		}
	}
	return out
}

// =============================================================================
// SEND: SUCCESS
// =============================================================================

func TestSendStreamsAndPersists(t *testing.T) {
	server := sseServer("He", "llo")
	defer server.Close()

	o, repo := newOrchestrator(server.URL)
	var lg eventLog
	o.SetObserver(lg.observe)

	require.NoError(t, o.Send(context.Background(), "hi there"))

	// Working copy: user message then assistant reply.
	working := o.CurrentSession()
	require.Len(t, working.Messages, 2)
	assert.Equal(t, model.RoleUser, working.Messages[0].Role)
	assert.Equal(t, "hi there", working.Messages[0].Content)
	assert.Equal(t, model.RoleAssistant, working.Messages[1].Role)
	assert.Equal(t, "Hello", working.Messages[1].Content)

	// Persisted copy matches.
	stored := repo.Current()
	require.NotNil(t, stored)
	require.Len(t, stored.Messages, 2)
	assert.Equal(t, "Hello", stored.Messages[1].Content)

	assert.Equal(t, StateIdle, o.State())
	assert.NoError(t, o.Err())

	// Observer saw both appends, each delta with its cumulative text, and
	// a clean settle.
	assert.Len(t, lg.ofKind(EventMessageAppended), 2)

	deltas := lg.ofKind(EventStreamDelta)
	require.Len(t, deltas, 2)
	assert.Equal(t, "He", deltas[0].Delta)
	assert.Equal(t, "He", deltas[0].Cumulative)
	assert.Equal(t, "llo", deltas[1].Delta)
	assert.Equal(t, "Hello", deltas[1].Cumulative)
	assert.Equal(t, working.Messages[1].ID, deltas[0].MessageID)

	settled := lg.ofKind(EventSettled)
	require.Len(t, settled, 1)
	assert.NoError(t, settled[0].Err)
}

func TestSendAutoTitlesFromFirstMessage(t *testing.T) {
	server := sseServer("ok")
	defer server.Close()

	o, _ := newOrchestrator(server.URL)
	require.NoError(t, o.Send(context.Background(), "explain goroutines"))

	assert.Equal(t, "explain goroutines", o.CurrentSession().Title)

	// A second send must not retitle.
	require.NoError(t, o.Send(context.Background(), "something else"))
	assert.Equal(t, "explain goroutines", o.CurrentSession().Title)
}

func TestSendBuildsHistoryFromPriorTurns(t *testing.T) {
	var gotMessages int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req deepseek.ChatRequest
		if err := decodeJSON(r, &req); err != nil {
			t.Fatal(err)
		}
		gotMessages = len(req.Messages)
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"r\"}}]}\n\ndata: [DONE]\n\n")
	}))
	defer server.Close()

	o, _ := newOrchestrator(server.URL)
	require.NoError(t, o.Send(context.Background(), "first"))
	require.NoError(t, o.Send(context.Background(), "second"))

	// Second request carries: first user turn, first reply, second user turn.
	assert.Equal(t, 3, gotMessages)
}

// =============================================================================
// SEND: PRECONDITIONS
// =============================================================================

func TestSendWithoutAPIKeyMutatesNothing(t *testing.T) {
	repo := session.NewRepository(store.NewMemStore())
	o := NewOrchestrator(repo, deepseek.NewClient(""))

	err := o.Send(context.Background(), "hi")
	assert.ErrorIs(t, err, deepseek.ErrNotConfigured)

	assert.Empty(t, o.CurrentSession().Messages, "precondition failure must not mutate the session")
	assert.Empty(t, repo.Current().Messages)
	assert.Equal(t, StateIdle, o.State())
}

func TestSendEmptyMessage(t *testing.T) {
	server := sseServer("ok")
	defer server.Close()

	o, _ := newOrchestrator(server.URL)

	assert.ErrorIs(t, o.Send(context.Background(), "   \n  "), ErrEmptyMessage)
	assert.Empty(t, o.CurrentSession().Messages)
}

func TestSendWhileBusy(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"x\"}}]}\n\n")
		w.(http.Flusher).Flush()
		<-release
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	o, _ := newOrchestrator(server.URL)

	streaming := make(chan struct{})
	o.SetObserver(func(ev Event) {
		if ev.Kind == EventStreamDelta {
			select {
			case streaming <- struct{}{}:
			default:
			}
		}
	})

	done := make(chan error, 1)
	go func() { done <- o.Send(context.Background(), "long one") }()

	select {
	case <-streaming:
	case <-time.After(3 * time.Second):
		t.Fatal("first send never started streaming")
	}

	assert.ErrorIs(t, o.Send(context.Background(), "impatient"), ErrBusy)
	_, err := o.CreateSession("nope")
	assert.ErrorIs(t, err, ErrBusy)

	close(release)
	require.NoError(t, <-done)
}

func TestSendPersistsPlaceholderBeforeStreaming(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"x\"}}]}\n\n")
		w.(http.Flusher).Flush()
		<-release
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	o, repo := newOrchestrator(server.URL)

	streaming := make(chan struct{})
	o.SetObserver(func(ev Event) {
		if ev.Kind == EventStreamDelta {
			select {
			case streaming <- struct{}{}:
			default:
			}
		}
	})

	done := make(chan error, 1)
	go func() { done <- o.Send(context.Background(), "hi") }()

	select {
	case <-streaming:
	case <-time.After(3 * time.Second):
		t.Fatal("send never started streaming")
	}

	// An external reader mid-stream sees both turns: the user message and
	// the still-empty assistant placeholder.
	stored := repo.Current()
	require.NotNil(t, stored)
	require.Len(t, stored.Messages, 2)
	assert.Equal(t, model.RoleUser, stored.Messages[0].Role)
	assert.Equal(t, model.RoleAssistant, stored.Messages[1].Role)
	assert.True(t, stored.Messages[1].IsEmpty(), "deltas are persisted at settle, not mid-stream")

	close(release)
	require.NoError(t, <-done)
}

func TestStateStreamingBeforeFirstDelta(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.(http.Flusher).Flush()
		<-release
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	o, _ := newOrchestrator(server.URL)

	done := make(chan error, 1)
	go func() { done <- o.Send(context.Background(), "hi") }()

	// Streaming is entered when the placeholder lands, not on the first
	// delta; a stream that never produces one still reports it.
	require.Eventually(t, func() bool {
		return o.State() == StateStreaming
	}, 3*time.Second, 10*time.Millisecond, "state should be streaming before any delta arrives")

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, StateIdle, o.State())
}

// =============================================================================
// SEND: FAILURE
// =============================================================================

func TestSendZeroChunkFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `{"error":{"message":"boom"}}`)
	}))
	defer server.Close()

	o, repo := newOrchestrator(server.URL)
	var lg eventLog
	o.SetObserver(lg.observe)

	err := o.Send(context.Background(), "hi")
	require.Error(t, err)

	// The user turn survives the failure; the assistant turn stays empty.
	stored := repo.Current()
	require.Len(t, stored.Messages, 2)
	assert.Equal(t, "hi", stored.Messages[0].Content)
	assert.True(t, stored.Messages[1].IsEmpty())

	assert.Equal(t, StateIdle, o.State())
	assert.Error(t, o.Err())

	settled := lg.ofKind(EventSettled)
	require.Len(t, settled, 1)
	assert.Error(t, settled[0].Err)
}

func TestSendBrokenStreamKeepsPartial(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"partial\"}}]}\n\n")
		w.(http.Flusher).Flush()
		panic(http.ErrAbortHandler)
	}))
	defer server.Close()

	o, repo := newOrchestrator(server.URL)

	err := o.Send(context.Background(), "hi")
	require.Error(t, err)

	stored := repo.Current()
	require.Len(t, stored.Messages, 2)
	assert.Equal(t, "partial", stored.Messages[1].Content, "partial reply must be kept")

	assert.Equal(t, StateIdle, o.State())
}

func TestSendErrorIsHumanReadable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":{"message":"invalid key"}}`)
	}))
	defer server.Close()

	o, _ := newOrchestrator(server.URL)

	err := o.Send(context.Background(), "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "setup", "auth failures should point at setup")
	assert.NotContains(t, err.Error(), "401")
}

// =============================================================================
// SESSION OPERATIONS
// =============================================================================

func TestNewOrchestratorInitializesStorage(t *testing.T) {
	repo := session.NewRepository(store.NewMemStore())
	o := NewOrchestrator(repo, deepseek.NewClient(""))

	sess := o.CurrentSession()
	assert.NotEmpty(t, sess.ID)
	assert.Equal(t, model.DefaultSessionTitle, sess.Title)
}

func TestCreateAndSwitchSession(t *testing.T) {
	o, _ := newOrchestrator("")

	first := o.CurrentSession()
	created, err := o.CreateSession("second")
	require.NoError(t, err)
	assert.Equal(t, created.ID, o.CurrentSession().ID)

	require.NoError(t, o.SwitchSession(first.ID))
	assert.Equal(t, first.ID, o.CurrentSession().ID)

	// Unknown id is a no-op.
	require.NoError(t, o.SwitchSession("ghost"))
	assert.Equal(t, first.ID, o.CurrentSession().ID)
}

func TestDeleteCurrentSessionRecovers(t *testing.T) {
	o, _ := newOrchestrator("")

	only := o.CurrentSession()
	require.NoError(t, o.DeleteSession(only.ID))

	// Deleting the last session leaves a fresh one in place.
	replacement := o.CurrentSession()
	assert.NotEmpty(t, replacement.ID)
	assert.NotEqual(t, only.ID, replacement.ID)
}

func TestRenameSession(t *testing.T) {
	o, _ := newOrchestrator("")

	sess := o.CurrentSession()
	o.RenameSession(sess.ID, "renamed")

	assert.Equal(t, "renamed", o.CurrentSession().Title)

	o.RenameSession("ghost", "nope")
	assert.Equal(t, "renamed", o.CurrentSession().Title)
}

func TestRefreshPicksUpExternalWrite(t *testing.T) {
	s := store.NewMemStore()
	repo := session.NewRepository(s)
	o := NewOrchestrator(repo, deepseek.NewClient(""))

	// Another writer over the same store appends a message.
	other := session.NewRepository(s)
	other.AppendMessage(o.CurrentSession().ID, model.NewUserMessage("from elsewhere"))

	o.Refresh()

	msgs := o.CurrentSession().Messages
	require.Len(t, msgs, 1)
	assert.Equal(t, "from elsewhere", msgs[0].Content)
}

// decodeJSON decodes a request body.
func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}
