// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat coordinates sessions, the API client, and the streaming
// lifecycle behind the UI.
//
// Each send moves through Idle -> Sending -> Streaming and settles back to
// Idle, whether the stream completed or broke. The user message and an empty
// assistant placeholder are persisted before the request is issued; while the
// response streams in, the placeholder is mutated in place (matched by ID) in
// the working copy, and its final text is persisted when the send settles.
package chat

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/jeranaias/deepchat-tui/internal/deepseek"
	"github.com/jeranaias/deepchat-tui/internal/model"
	"github.com/jeranaias/deepchat-tui/internal/session"
)

// =============================================================================
// STATES AND EVENTS
// =============================================================================

// State is the send lifecycle state.
type State int

const (
	// StateIdle means no send is in flight.
	StateIdle State = iota

	// StateSending means the send passed its preconditions and the user
	// message is being recorded; the request is not yet issued.
	StateSending

	// StateStreaming means the assistant placeholder is in place and the
	// request is in flight.
	StateStreaming
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSending:
		return "sending"
	case StateStreaming:
		return "streaming"
	default:
		return "unknown"
	}
}

// EventKind identifies what an Event reports.
type EventKind int

const (
	// EventSessionsChanged means the session list or the current session
	// changed outside of a send.
	EventSessionsChanged EventKind = iota

	// EventMessageAppended means a message was added to the working copy.
	EventMessageAppended

	// EventStreamDelta means a content delta arrived for MessageID.
	EventStreamDelta

	// EventSettled means the send finished; Err is nil on success.
	EventSettled
)

// Event is a notification delivered synchronously to the observer.
type Event struct {
	Kind       EventKind
	Session    model.Session
	MessageID  string
	Delta      string
	Cumulative string
	Err        error
}

// Observer receives orchestrator events. Calls are made synchronously from
// the goroutine driving the send, with the orchestrator lock held; observers
// must not call back into the orchestrator.
type Observer func(Event)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrBusy indicates a send is already in flight.
	ErrBusy = errors.New("a send is already in progress")

	// ErrEmptyMessage indicates the send content was blank.
	ErrEmptyMessage = errors.New("message is empty")

	// ErrNoSession indicates no current session exists.
	ErrNoSession = errors.New("no current session")
)

// titlePreviewLen bounds auto-derived session titles.
const titlePreviewLen = 40

// =============================================================================
// ORCHESTRATOR
// =============================================================================

// Orchestrator owns the working copy of the current session and drives
// sends against the API.
type Orchestrator struct {
	mu       sync.Mutex
	repo     *session.Repository
	client   *deepseek.Client
	observer Observer

	state   State
	working model.Session
	lastErr error
}

// NewOrchestrator creates an orchestrator, initializes storage, and loads
// the current session as the working copy.
func NewOrchestrator(repo *session.Repository, client *deepseek.Client) *Orchestrator {
	repo.EnsureInitialized()

	o := &Orchestrator{
		repo:   repo,
		client: client,
		state:  StateIdle,
	}
	o.reload()
	return o
}

// SetObserver registers the event observer. Pass nil to detach.
func (o *Orchestrator) SetObserver(obs Observer) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.observer = obs
}

// notify delivers an event to the observer. Caller holds o.mu.
func (o *Orchestrator) notify(ev Event) {
	if o.observer != nil {
		ev.Session = o.working.Clone()
		o.observer(ev)
	}
}

// reload replaces the working copy from storage. Caller holds o.mu or is
// the constructor.
func (o *Orchestrator) reload() {
	if cur := o.repo.Current(); cur != nil {
		o.working = cur.Clone()
	} else {
		o.working = model.Session{}
	}
}

// =============================================================================
// READ ACCESSORS
// =============================================================================

// State returns the current lifecycle state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// IsLoading reports whether a send is in flight.
func (o *Orchestrator) IsLoading() bool {
	return o.State() != StateIdle
}

// Err returns the error from the most recent settled send, or nil.
func (o *Orchestrator) Err() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.lastErr
}

// CurrentSession returns a snapshot of the working copy.
func (o *Orchestrator) CurrentSession() model.Session {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.working.Clone()
}

// Sessions returns the persisted session list.
func (o *Orchestrator) Sessions() []model.Session {
	return o.repo.List()
}

// Client returns the API client the orchestrator sends with.
func (o *Orchestrator) Client() *deepseek.Client {
	return o.client
}

// =============================================================================
// SESSION OPERATIONS
// =============================================================================

// CreateSession creates a session, makes it current, and loads it as the
// working copy. Refused while a send is in flight.
func (o *Orchestrator) CreateSession(title string) (model.Session, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state != StateIdle {
		return model.Session{}, ErrBusy
	}

	sess := o.repo.Create(title)
	o.working = sess.Clone()
	o.notify(Event{Kind: EventSessionsChanged})
	return sess, nil
}

// SwitchSession makes the session with the given id current. Unknown ids
// are a no-op. Refused while a send is in flight.
func (o *Orchestrator) SwitchSession(id string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state != StateIdle {
		return ErrBusy
	}

	if o.repo.Get(id) == nil {
		return nil
	}
	o.repo.SetCurrent(id)
	o.reload()
	o.notify(Event{Kind: EventSessionsChanged})
	return nil
}

// DeleteSession removes the session. Deleting the current session switches
// the working copy to whatever becomes current, creating a fresh session if
// none remain. Refused while a send is in flight.
func (o *Orchestrator) DeleteSession(id string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state != StateIdle {
		return ErrBusy
	}

	if !o.repo.Delete(id) {
		return nil
	}
	o.repo.EnsureInitialized()
	o.reload()
	o.notify(Event{Kind: EventSessionsChanged})
	return nil
}

// RenameSession sets the session title. Unknown ids are a no-op.
func (o *Orchestrator) RenameSession(id, title string) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.repo.Update(id, model.SessionPatch{Title: &title}) == nil {
		return
	}
	if o.working.ID == id {
		o.working.Title = title
	}
	o.notify(Event{Kind: EventSessionsChanged})
}

// Refresh re-reads the working copy from storage, picking up externally
// written state. No-op while a send is in flight.
func (o *Orchestrator) Refresh() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state != StateIdle {
		return
	}
	o.reload()
	o.notify(Event{Kind: EventSessionsChanged})
}

// =============================================================================
// SEND
// =============================================================================

// Send submits the user's message to the current session and streams the
// assistant's reply. It blocks until the send settles; run it from a
// goroutine when driving a UI.
//
// Preconditions fail before anything is persisted: a blank message, a
// missing API key, a missing session, or a send already in flight. Once they
// pass, the user message and an empty assistant placeholder are persisted
// before the request goes out; a failure never unwinds them, and whatever
// partial reply arrived stays in the transcript alongside the error.
func (o *Orchestrator) Send(ctx context.Context, content string) error {
	content = strings.TrimSpace(content)

	o.mu.Lock()
	if err := o.checkSendable(content); err != nil {
		o.mu.Unlock()
		return err
	}
	o.state = StateSending
	o.lastErr = nil

	userMsg := model.NewUserMessage(content)
	o.working.Messages = append(o.working.Messages, userMsg)
	o.autoTitle(content)
	o.repo.Update(o.working.ID, model.SessionPatch{
		Title:    &o.working.Title,
		Messages: &o.working.Messages,
	})
	o.notify(Event{Kind: EventMessageAppended, MessageID: userMsg.ID})

	// The empty placeholder is persisted too, so external readers and a
	// crash mid-stream both see the assistant turn.
	placeholder := model.NewAssistantPlaceholder()
	o.working.Messages = append(o.working.Messages, placeholder)
	o.repo.Update(o.working.ID, model.SessionPatch{Messages: &o.working.Messages})
	o.notify(Event{Kind: EventMessageAppended, MessageID: placeholder.ID})
	o.state = StateStreaming

	wire := o.wireHistory(placeholder.ID)
	o.mu.Unlock()

	text, err := o.client.ChatStream(ctx, wire, func(delta, cumulative string) {
		o.mu.Lock()
		defer o.mu.Unlock()
		if msg := o.working.MessageByID(placeholder.ID); msg != nil {
			msg.Content = cumulative
		}
		o.notify(Event{
			Kind:       EventStreamDelta,
			MessageID:  placeholder.ID,
			Delta:      delta,
			Cumulative: cumulative,
		})
	})

	return o.settle(placeholder.ID, text, err)
}

// checkSendable validates send preconditions. Caller holds o.mu.
func (o *Orchestrator) checkSendable(content string) error {
	if o.state != StateIdle {
		return ErrBusy
	}
	if content == "" {
		return ErrEmptyMessage
	}
	if !o.client.IsConfigured() {
		return deepseek.ErrNotConfigured
	}
	if o.working.ID == "" {
		return ErrNoSession
	}
	return nil
}

// autoTitle derives a title from the first user message of a session that
// still carries the default title. Caller holds o.mu.
func (o *Orchestrator) autoTitle(content string) {
	if o.working.Title != model.DefaultSessionTitle {
		return
	}
	userCount := 0
	for _, m := range o.working.Messages {
		if m.Role == model.RoleUser {
			userCount++
		}
	}
	if userCount != 1 {
		return
	}
	title := model.Message{Content: content}.Preview(titlePreviewLen)
	if title != "" {
		o.working.Title = title
	}
}

// wireHistory builds the request payload from the working copy, skipping
// the streaming placeholder and any empty messages. Caller holds o.mu.
func (o *Orchestrator) wireHistory(placeholderID string) []deepseek.ChatMessage {
	wire := make([]deepseek.ChatMessage, 0, len(o.working.Messages))
	for _, m := range o.working.Messages {
		if m.ID == placeholderID || m.IsEmpty() {
			continue
		}
		wire = append(wire, deepseek.ChatMessage{
			Role:    m.Role.String(),
			Content: m.Content,
		})
	}
	return wire
}

// settle finalizes a send: the assistant message is frozen at whatever text
// arrived, the session is persisted, and the state returns to Idle.
func (o *Orchestrator) settle(placeholderID, text string, sendErr error) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if msg := o.working.MessageByID(placeholderID); msg != nil {
		msg.Content = text
	}
	o.repo.Update(o.working.ID, model.SessionPatch{Messages: &o.working.Messages})

	o.state = StateIdle
	o.lastErr = humanize(sendErr)
	o.notify(Event{Kind: EventSettled, MessageID: placeholderID, Err: o.lastErr})

	if sendErr != nil {
		log.Warn("chat: send settled with error", "err", sendErr)
	}
	return o.lastErr
}

// humanize maps transport errors to messages fit for the transcript.
func humanize(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, deepseek.ErrNotConfigured):
		return errors.New("no API key configured; run setup first")
	case errors.Is(err, deepseek.ErrAuthFailed):
		return errors.New("the API rejected your key; run setup to replace it")
	case errors.Is(err, deepseek.ErrRateLimited):
		return errors.New("rate limited by the API; wait a moment and try again")
	case errors.Is(err, deepseek.ErrInsufficientBalance):
		return errors.New("your DeepSeek account is out of credit")
	case errors.Is(err, context.Canceled):
		return errors.New("request canceled")
	case errors.Is(err, context.DeadlineExceeded):
		return errors.New("request timed out")
	default:
		var streamErr *deepseek.StreamError
		if errors.As(err, &streamErr) {
			return errors.New("connection lost mid-response; partial reply kept")
		}
		return err
	}
}
