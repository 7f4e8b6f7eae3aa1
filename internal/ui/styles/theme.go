// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package styles centralizes lipgloss styling for the terminal UI.
package styles

import (
	"github.com/charmbracelet/lipgloss"
)

// =============================================================================
// LAYOUT MODES
// =============================================================================

// LayoutMode describes how much horizontal room the terminal offers.
type LayoutMode int

const (
	// LayoutNarrow is under 60 columns; chrome is trimmed to essentials.
	LayoutNarrow LayoutMode = iota
	// LayoutMedium is 60-99 columns.
	LayoutMedium
	// LayoutWide is 100 columns or more; the session sidebar fits.
	LayoutWide
)

// =============================================================================
// THEME
// =============================================================================

// Theme holds the configured styles for every UI element. Create one with
// NewTheme and call SetSize whenever the terminal resizes.
type Theme struct {
	palette Palette
	width   int
	height  int

	// Chrome
	Header    lipgloss.Style
	StatusBar lipgloss.Style
	Help      lipgloss.Style

	// Transcript
	UserLabel      lipgloss.Style
	AssistantLabel lipgloss.Style
	MessageText    lipgloss.Style
	Timestamp      lipgloss.Style
	ErrorBox       lipgloss.Style

	// Input
	InputPrompt lipgloss.Style
	InputBox    lipgloss.Style

	// Session list
	SessionItem   lipgloss.Style
	SessionActive lipgloss.Style
	SessionCount  lipgloss.Style

	// Misc
	Spinner lipgloss.Style
	Muted   lipgloss.Style
}

// NewTheme builds a theme for the given theme name ("auto", "dark", "light").
func NewTheme(name string) *Theme {
	t := &Theme{
		palette: resolvePalette(name),
		width:   80,
		height:  24,
	}
	t.initStyles()
	return t
}

// initStyles derives every style from the palette.
func (t *Theme) initStyles() {
	p := t.palette

	t.Header = lipgloss.NewStyle().
		Bold(true).
		Foreground(p.Primary).
		Padding(0, 1)

	t.StatusBar = lipgloss.NewStyle().
		Foreground(p.Muted).
		Padding(0, 1)

	t.Help = lipgloss.NewStyle().
		Foreground(p.Muted)

	t.UserLabel = lipgloss.NewStyle().
		Bold(true).
		Foreground(p.Accent)

	t.AssistantLabel = lipgloss.NewStyle().
		Bold(true).
		Foreground(p.Primary)

	t.MessageText = lipgloss.NewStyle().
		Foreground(p.Text)

	t.Timestamp = lipgloss.NewStyle().
		Foreground(p.Muted)

	t.ErrorBox = lipgloss.NewStyle().
		Foreground(p.Error).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(p.Error).
		Padding(0, 1)

	t.InputPrompt = lipgloss.NewStyle().
		Bold(true).
		Foreground(p.Accent)

	t.InputBox = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(p.Border).
		Padding(0, 1)

	t.SessionItem = lipgloss.NewStyle().
		Foreground(p.Text).
		Padding(0, 1)

	t.SessionActive = lipgloss.NewStyle().
		Bold(true).
		Foreground(p.Primary).
		Background(p.Surface).
		Padding(0, 1)

	t.SessionCount = lipgloss.NewStyle().
		Foreground(p.Muted)

	t.Spinner = lipgloss.NewStyle().
		Foreground(p.Secondary)

	t.Muted = lipgloss.NewStyle().
		Foreground(p.Muted)
}

// SetSize records the terminal dimensions.
func (t *Theme) SetSize(width, height int) {
	t.width = width
	t.height = height
}

// Width returns the last recorded terminal width.
func (t *Theme) Width() int { return t.width }

// GetLayoutMode classifies the current width.
func (t *Theme) GetLayoutMode() LayoutMode {
	switch {
	case t.width < 60:
		return LayoutNarrow
	case t.width < 100:
		return LayoutMedium
	default:
		return LayoutWide
	}
}
