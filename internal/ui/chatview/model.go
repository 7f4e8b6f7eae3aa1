// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chatview implements the interactive chat screen.
//
// The view drives a chat.Orchestrator. Sends run on their own goroutine and
// stream back through an event channel; every event re-renders the transcript
// so the assistant reply grows in place.
package chatview

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"

	"github.com/jeranaias/deepchat-tui/internal/chat"
	"github.com/jeranaias/deepchat-tui/internal/config"
	"github.com/jeranaias/deepchat-tui/internal/credential"
	"github.com/jeranaias/deepchat-tui/internal/ui/styles"
)

// =============================================================================
// MODES
// =============================================================================

type mode int

const (
	// modeChat is the normal transcript-and-input screen.
	modeChat mode = iota
	// modeSessions overlays the session picker.
	modeSessions
	// modeSetup prompts for an API key.
	modeSetup
)

// eventBuffer bounds how far streaming can run ahead of rendering.
const eventBuffer = 512

// =============================================================================
// MODEL
// =============================================================================

// Model is the Bubble Tea model for the chat screen.
type Model struct {
	orch  *chat.Orchestrator
	creds *credential.Manager
	cfg   *config.Config
	theme *styles.Theme
	keys  KeyMap

	viewport viewport.Model
	input    textinput.Model
	keyInput textinput.Model
	spin     spinner.Model
	renderer *glamour.TermRenderer

	events chan chat.Event

	mode        mode
	themeName   string
	cursor      int
	width       int
	height      int
	ready       bool
	sending     bool
	errText     string
	setupStatus string
}

// New builds the chat view. The orchestrator's observer is claimed by the
// returned model; events flow through an internal channel into Update.
func New(orch *chat.Orchestrator, creds *credential.Manager, cfg *config.Config) *Model {
	input := textinput.New()
	input.Placeholder = "Ask anything..."
	input.CharLimit = 0
	input.Focus()

	keyInput := textinput.New()
	keyInput.Placeholder = "sk-..."
	keyInput.EchoMode = textinput.EchoPassword
	keyInput.EchoCharacter = '*'

	theme := styles.NewTheme(cfg.UI.Theme)

	spin := spinner.New()
	spin.Spinner = spinner.Dot
	spin.Style = theme.Spinner

	m := &Model{
		orch:      orch,
		creds:     creds,
		cfg:       cfg,
		theme:     theme,
		themeName: cfg.UI.Theme,
		keys:      DefaultKeyMap(),
		input:     input,
		keyInput:  keyInput,
		spin:      spin,
		events:    make(chan chat.Event, eventBuffer),
	}

	if !creds.IsConfigured() {
		m.mode = modeSetup
		m.keyInput.Focus()
		m.input.Blur()
	}

	// The observer runs with the orchestrator lock held, so it must never
	// block: a full channel drops its oldest pending event to make room.
	// Every event carries a complete session snapshot, so rendering only
	// the most recent ones loses nothing.
	orch.SetObserver(func(ev chat.Event) {
		for {
			select {
			case m.events <- ev:
				return
			default:
			}
			select {
			case <-m.events:
			default:
			}
		}
	})
	return m
}

// Init starts the cursor blink, the spinner, and the event pump.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		m.spin.Tick,
		waitForEvent(m.events),
	)
}

// =============================================================================
// UPDATE
// =============================================================================

// Update handles incoming messages.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.handleResize(msg)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case eventMsg:
		m.handleEvent(chat.Event(msg))
		return m, waitForEvent(m.events)

	case sendDoneMsg:
		m.sending = false
		return m, nil

	case keySavedMsg:
		if msg.err != nil {
			m.setupStatus = msg.err.Error()
			return m, nil
		}
		m.setupStatus = ""
		m.keyInput.SetValue("")
		m.enterChatMode()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}

	return m.updateFocused(msg)
}

// updateFocused routes leftover messages to whichever input has focus.
func (m *Model) updateFocused(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.mode {
	case modeSetup:
		m.keyInput, cmd = m.keyInput.Update(msg)
	case modeChat:
		m.input, cmd = m.input.Update(msg)
	}
	return m, cmd
}

// handleEvent reacts to one orchestrator event.
func (m *Model) handleEvent(ev chat.Event) {
	switch ev.Kind {
	case chat.EventMessageAppended, chat.EventStreamDelta:
		m.errText = ""
		m.updateViewport()
		m.viewport.GotoBottom()
	case chat.EventSettled:
		if ev.Err != nil {
			m.errText = ev.Err.Error()
		}
		m.updateViewport()
		m.viewport.GotoBottom()
	case chat.EventSessionsChanged:
		m.updateViewport()
	}
}

// handleResize recomputes layout for the new terminal size.
func (m *Model) handleResize(msg tea.WindowSizeMsg) {
	m.width = msg.Width
	m.height = msg.Height
	m.theme.SetSize(msg.Width, msg.Height)

	// Header, error line, input box, and status bar share the column.
	const reservedRows = 7
	vpHeight := msg.Height - reservedRows
	if vpHeight < 3 {
		vpHeight = 3
	}

	if !m.ready {
		m.viewport = viewport.New(msg.Width, vpHeight)
		m.ready = true
	} else {
		m.viewport.Width = msg.Width
		m.viewport.Height = vpHeight
	}

	m.input.Width = msg.Width - 8
	m.keyInput.Width = msg.Width - 8
	m.rebuildRenderer()
	m.updateViewport()
	m.viewport.GotoBottom()
}

// rebuildRenderer recreates the markdown renderer for the current width.
func (m *Model) rebuildRenderer() {
	if !m.cfg.UI.Markdown {
		m.renderer = nil
		return
	}
	wrap := m.width - 4
	if wrap < 20 {
		wrap = 20
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(wrap),
	)
	if err != nil {
		m.renderer = nil
		return
	}
	m.renderer = r
}

// =============================================================================
// KEY HANDLING
// =============================================================================

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Quit) {
		return m, tea.Quit
	}

	switch m.mode {
	case modeSetup:
		return m.handleSetupKey(msg)
	case modeSessions:
		return m.handleSessionsKey(msg)
	default:
		return m.handleChatKey(msg)
	}
}

func (m *Model) handleChatKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Send):
		content := strings.TrimSpace(m.input.Value())
		if content == "" || m.sending {
			return m, nil
		}
		m.input.SetValue("")
		m.errText = ""
		m.sending = true
		return m, m.sendCmd(content)

	case key.Matches(msg, m.keys.NewSession):
		if _, err := m.orch.CreateSession(""); err != nil {
			m.errText = err.Error()
		}
		return m, nil

	case key.Matches(msg, m.keys.Sessions):
		m.mode = modeSessions
		m.cursor = m.currentSessionIndex()
		m.input.Blur()
		return m, nil

	case key.Matches(msg, m.keys.Setup):
		m.mode = modeSetup
		m.keyInput.Focus()
		m.input.Blur()
		return m, nil

	case key.Matches(msg, m.keys.Theme):
		m.toggleTheme()
		return m, nil

	case key.Matches(msg, m.keys.ScrollUp):
		m.viewport.HalfViewUp()
		return m, nil

	case key.Matches(msg, m.keys.ScrollDown):
		m.viewport.HalfViewDown()
		return m, nil

	case key.Matches(msg, m.keys.Back):
		m.errText = ""
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) handleSessionsKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	sessions := m.orch.Sessions()

	switch {
	case key.Matches(msg, m.keys.Back), key.Matches(msg, m.keys.Sessions):
		m.enterChatMode()
		return m, nil

	case key.Matches(msg, m.keys.CursorUp):
		if m.cursor > 0 {
			m.cursor--
		}
		return m, nil

	case key.Matches(msg, m.keys.CursorDown):
		if m.cursor < len(sessions)-1 {
			m.cursor++
		}
		return m, nil

	case key.Matches(msg, m.keys.Select):
		if m.cursor >= 0 && m.cursor < len(sessions) {
			if err := m.orch.SwitchSession(sessions[m.cursor].ID); err != nil {
				m.errText = err.Error()
			}
		}
		m.enterChatMode()
		return m, nil

	case key.Matches(msg, m.keys.Delete):
		if m.cursor >= 0 && m.cursor < len(sessions) {
			if err := m.orch.DeleteSession(sessions[m.cursor].ID); err != nil {
				m.errText = err.Error()
			}
			if m.cursor >= len(m.orch.Sessions()) {
				m.cursor = len(m.orch.Sessions()) - 1
			}
		}
		return m, nil

	case key.Matches(msg, m.keys.NewSession):
		if _, err := m.orch.CreateSession(""); err != nil {
			m.errText = err.Error()
		}
		m.enterChatMode()
		return m, nil
	}

	return m, nil
}

func (m *Model) handleSetupKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Send):
		candidate := strings.TrimSpace(m.keyInput.Value())
		if candidate == "" {
			return m, nil
		}
		m.setupStatus = "verifying..."
		return m, m.saveKeyCmd(candidate)

	case key.Matches(msg, m.keys.Back):
		// Leaving setup requires a working key.
		if m.creds.IsConfigured() {
			m.setupStatus = ""
			m.enterChatMode()
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.keyInput, cmd = m.keyInput.Update(msg)
	return m, cmd
}

// toggleTheme flips between the dark and light palettes. "auto" resolves
// first, so the initial toggle lands on the variant not currently shown.
func (m *Model) toggleTheme() {
	if styles.ResolveVariant(m.themeName) == "light" {
		m.themeName = "dark"
	} else {
		m.themeName = "light"
	}
	m.theme = styles.NewTheme(m.themeName)
	m.theme.SetSize(m.width, m.height)
	m.spin.Style = m.theme.Spinner
	m.updateViewport()
}

// enterChatMode returns focus to the message input.
func (m *Model) enterChatMode() {
	m.mode = modeChat
	m.keyInput.Blur()
	m.input.Focus()
	m.updateViewport()
	m.viewport.GotoBottom()
}

// currentSessionIndex locates the current session in the persisted list.
func (m *Model) currentSessionIndex() int {
	id := m.orch.CurrentSession().ID
	for i, s := range m.orch.Sessions() {
		if s.ID == id {
			return i
		}
	}
	return 0
}

// updateViewport re-renders the transcript into the viewport.
func (m *Model) updateViewport() {
	if !m.ready {
		return
	}
	m.viewport.SetContent(m.renderTranscript())
}
