// ABOUTME: Renders prose replies as terminal markdown via glamour
// ABOUTME: Falls back to the raw text if glamour cannot build a renderer

package ui

import (
	"strings"

	"github.com/charmbracelet/glamour"
)

// RenderMarkdown renders md for a terminal of the given width using the
// theme's style (auto-detected for "system").
func RenderMarkdown(md, theme string, width int) string {
	if strings.TrimSpace(md) == "" {
		return ""
	}
	if width <= 0 {
		width = defaultWidth
	}

	style := glamour.WithAutoStyle()
	switch theme {
	case ThemeDark:
		style = glamour.WithStandardStyle("dark")
	case ThemeLight:
		style = glamour.WithStandardStyle("light")
	}

	renderer, err := glamour.NewTermRenderer(style, glamour.WithWordWrap(width))
	if err != nil {
		return md
	}
	rendered, err := renderer.Render(md)
	if err != nil {
		return md
	}
	return strings.TrimRight(rendered, "\n ")
}
