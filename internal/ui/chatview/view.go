// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chatview

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/deepchat-tui/internal/model"
	"github.com/jeranaias/deepchat-tui/internal/ui/styles"
)

// =============================================================================
// VIEW
// =============================================================================

// View renders the current screen.
func (m *Model) View() string {
	if !m.ready {
		return "loading..."
	}

	switch m.mode {
	case modeSetup:
		return m.renderSetup()
	case modeSessions:
		return m.renderSessions()
	default:
		return m.renderChat()
	}
}

func (m *Model) renderChat() string {
	var b strings.Builder

	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	b.WriteString(m.viewport.View())
	b.WriteString("\n")

	if m.errText != "" {
		b.WriteString(m.theme.ErrorBox.Width(m.width - 2).Render(m.errText))
		b.WriteString("\n")
	}

	b.WriteString(m.renderInput())
	b.WriteString("\n")
	b.WriteString(m.renderStatusBar())
	return b.String()
}

func (m *Model) renderHeader() string {
	sess := m.orch.CurrentSession()
	title := sess.Title
	if title == "" {
		title = model.DefaultSessionTitle
	}

	left := m.theme.Header.Render("deepchat")
	mid := m.theme.MessageText.Render(title)
	if m.theme.GetLayoutMode() == styles.LayoutNarrow {
		return left
	}
	right := m.theme.Muted.Render(m.orch.Client().Model())

	gap := m.width - lipgloss.Width(left) - lipgloss.Width(mid) - lipgloss.Width(right) - 2
	if gap < 1 {
		gap = 1
	}
	return left + " " + mid + strings.Repeat(" ", gap) + right
}

func (m *Model) renderInput() string {
	prompt := m.theme.InputPrompt.Render("> ")
	return m.theme.InputBox.Width(m.width - 2).Render(prompt + m.input.View())
}

func (m *Model) renderStatusBar() string {
	var status string
	if m.sending {
		status = m.spin.View() + " " + m.theme.Muted.Render("thinking...")
	} else {
		status = m.theme.Help.Render(
			"enter send · ctrl+n new · ctrl+s sessions · ctrl+t theme · ctrl+k key · ctrl+c quit")
	}
	return m.theme.StatusBar.Render(status)
}

// =============================================================================
// TRANSCRIPT
// =============================================================================

// renderTranscript renders every message of the working session.
func (m *Model) renderTranscript() string {
	sess := m.orch.CurrentSession()
	if len(sess.Messages) == 0 {
		return m.theme.Muted.Render("\n  No messages yet. Say something.")
	}

	parts := make([]string, 0, len(sess.Messages))
	for _, msg := range sess.Messages {
		parts = append(parts, m.renderMessage(msg))
	}
	return strings.Join(parts, "\n")
}

func (m *Model) renderMessage(msg model.Message) string {
	var label string
	switch msg.Role {
	case model.RoleUser:
		label = m.theme.UserLabel.Render("You")
	default:
		label = m.theme.AssistantLabel.Render("Assistant")
	}
	ts := m.theme.Timestamp.Render(msg.Timestamp.Format("15:04"))

	body := msg.Content
	if body == "" {
		body = m.theme.Muted.Render("...")
	} else if msg.Role == model.RoleAssistant && m.renderer != nil {
		if rendered, err := m.renderer.Render(body); err == nil {
			body = strings.TrimRight(rendered, "\n")
		}
	} else {
		body = m.theme.MessageText.Width(m.width - 4).Render(body)
	}

	return fmt.Sprintf("%s %s\n%s\n", label, ts, body)
}

// =============================================================================
// SESSION PICKER
// =============================================================================

func (m *Model) renderSessions() string {
	var b strings.Builder
	b.WriteString(m.theme.Header.Render("Sessions"))
	b.WriteString("\n\n")

	sessions := m.orch.Sessions()
	currentID := m.orch.CurrentSession().ID
	for i, s := range sessions {
		line := s.Title
		if s.ID == currentID {
			line += " *"
		}
		count := m.theme.SessionCount.Render(
			fmt.Sprintf(" (%d messages, %s)", s.MessageCount(), s.UpdatedAt.Format("Jan 2 15:04")))

		if i == m.cursor {
			b.WriteString(m.theme.SessionActive.Render("> " + line))
		} else {
			b.WriteString(m.theme.SessionItem.Render("  " + line))
		}
		b.WriteString(count)
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.theme.Help.Render("enter open · n new · d delete · esc back"))
	return b.String()
}

// =============================================================================
// SETUP
// =============================================================================

func (m *Model) renderSetup() string {
	var b strings.Builder
	b.WriteString(m.theme.Header.Render("API Key Setup"))
	b.WriteString("\n\n")
	b.WriteString(m.theme.MessageText.Render(
		"Paste your DeepSeek API key. It is verified against the API before\nbeing stored."))
	b.WriteString("\n\n")
	b.WriteString(m.theme.InputBox.Width(m.width - 2).Render(m.keyInput.View()))
	b.WriteString("\n")

	if m.setupStatus != "" {
		b.WriteString(m.theme.ErrorBox.Width(m.width - 2).Render(m.setupStatus))
		b.WriteString("\n")
	}

	hint := "enter verify and save"
	if m.creds.IsConfigured() {
		hint += " · esc back"
	}
	b.WriteString(m.theme.Help.Render(hint))
	return b.String()
}
