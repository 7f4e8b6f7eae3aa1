// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chatview

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/deepchat-tui/internal/chat"
)

// =============================================================================
// MESSAGES
// =============================================================================

// eventMsg carries one orchestrator event into the Bubble Tea loop.
type eventMsg chat.Event

// sendDoneMsg reports that a blocking Send returned. The settled event
// already carries the outcome; this just unblocks input focus handling.
type sendDoneMsg struct {
	err error
}

// keySavedMsg reports the outcome of an API key verification.
type keySavedMsg struct {
	err error
}

// =============================================================================
// COMMANDS
// =============================================================================

// waitForEvent blocks until the orchestrator publishes an event.
// Re-issue it after every eventMsg to keep draining the channel.
func waitForEvent(ch <-chan chat.Event) tea.Cmd {
	return func() tea.Msg {
		return eventMsg(<-ch)
	}
}

// sendCmd runs a blocking send off the UI goroutine.
func (m *Model) sendCmd(content string) tea.Cmd {
	return func() tea.Msg {
		return sendDoneMsg{err: m.orch.Send(context.Background(), content)}
	}
}

// saveKeyCmd verifies and persists an API key off the UI goroutine.
func (m *Model) saveKeyCmd(key string) tea.Cmd {
	return func() tea.Msg {
		return keySavedMsg{err: m.creds.Save(context.Background(), key)}
	}
}
