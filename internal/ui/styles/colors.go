// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// =============================================================================
// COLOR PALETTE
// =============================================================================

// Palette holds the resolved colors for one theme variant.
type Palette struct {
	Primary   lipgloss.Color
	Secondary lipgloss.Color
	Accent    lipgloss.Color
	Text      lipgloss.Color
	Muted     lipgloss.Color
	Error     lipgloss.Color
	Success   lipgloss.Color
	Border    lipgloss.Color
	Surface   lipgloss.Color
}

// darkPalette is tuned for dark terminal backgrounds.
var darkPalette = Palette{
	Primary:   lipgloss.Color("39"),  // bright blue
	Secondary: lipgloss.Color("141"), // violet
	Accent:    lipgloss.Color("86"),  // cyan-green
	Text:      lipgloss.Color("252"),
	Muted:     lipgloss.Color("243"),
	Error:     lipgloss.Color("203"),
	Success:   lipgloss.Color("78"),
	Border:    lipgloss.Color("238"),
	Surface:   lipgloss.Color("236"),
}

// lightPalette is tuned for light terminal backgrounds.
var lightPalette = Palette{
	Primary:   lipgloss.Color("27"),
	Secondary: lipgloss.Color("91"),
	Accent:    lipgloss.Color("29"),
	Text:      lipgloss.Color("235"),
	Muted:     lipgloss.Color("245"),
	Error:     lipgloss.Color("160"),
	Success:   lipgloss.Color("28"),
	Border:    lipgloss.Color("250"),
	Surface:   lipgloss.Color("254"),
}

// ResolveVariant maps a theme name to the concrete variant it renders as.
// "auto" queries the terminal background; unknown names fall back to dark.
func ResolveVariant(theme string) string {
	switch theme {
	case "light", "dark":
		return theme
	default:
		if termenv.HasDarkBackground() {
			return "dark"
		}
		return "light"
	}
}

// resolvePalette picks the palette for the configured theme name.
func resolvePalette(theme string) Palette {
	if ResolveVariant(theme) == "light" {
		return lightPalette
	}
	return darkPalette
}
