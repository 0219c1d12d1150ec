// ABOUTME: Lipgloss styles for CLI output and theme handling
// ABOUTME: Theme "dark"/"light" pins the background; "system" lets lipgloss detect it

package ui

import (
	"github.com/charmbracelet/lipgloss"
)

// Theme values accepted from settings and the store.
const (
	ThemeDark   = "dark"
	ThemeLight  = "light"
	ThemeSystem = "system"
)

// Styles is the palette used for result lines and diagnostics.
type Styles struct {
	Success lipgloss.Style
	Error   lipgloss.Style
	Warn    lipgloss.Style
	Dim     lipgloss.Style
	Accent  lipgloss.Style
}

// ApplyTheme tells lipgloss which background to assume. It must run before
// any bubbletea program starts so no OSC background query is sent.
func ApplyTheme(theme string) {
	switch theme {
	case ThemeDark:
		lipgloss.SetHasDarkBackground(true)
	case ThemeLight:
		lipgloss.SetHasDarkBackground(false)
	}
}

// NewStyles returns the palette. Colors adapt to the background.
func NewStyles() Styles {
	return Styles{
		Success: lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "28", Dark: "42"}),
		Error:   lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "160", Dark: "203"}).Bold(true),
		Warn:    lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "130", Dark: "214"}),
		Dim:     lipgloss.NewStyle().Faint(true),
		Accent:  lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "62", Dark: "111"}),
	}
}
