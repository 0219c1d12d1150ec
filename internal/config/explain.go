// ABOUTME: Human-readable rendering of the effective configuration
// ABOUTME: Used by "arcanum config explain" to show merged settings and value sources

package config

import (
	"fmt"
	"sort"
	"strings"
)

// MaskKey hides all but the last four characters of an API key.
func MaskKey(key string) string {
	if key == "" {
		return ""
	}
	if len(key) <= 4 {
		return strings.Repeat("*", len(key))
	}
	return strings.Repeat("*", 8) + key[len(key)-4:]
}

// Explain renders the resolved provider and the non-zero settings.
func Explain(s *Settings, p *Provider) string {
	if s == nil {
		s = &Settings{}
	}

	var b strings.Builder

	if p != nil {
		b.WriteString("=== Provider ===\n")
		fmt.Fprintf(&b, "  Endpoint:     %s (%s)\n", p.Endpoint, p.Sources["endpoint"])
		fmt.Fprintf(&b, "  Model:        %s (%s)\n", p.Model, p.Sources["model"])
		fmt.Fprintf(&b, "  APIKey:       %s (%s)\n", MaskKey(p.APIKey), p.Sources["api_key"])
		b.WriteString("\n")
	}

	b.WriteString("=== Settings ===\n")
	if s.OutputDir != "" {
		fmt.Fprintf(&b, "  OutputDir:    %s\n", s.OutputDir)
	}
	if s.AspectRatio != "" {
		fmt.Fprintf(&b, "  AspectRatio:  %s\n", s.AspectRatio)
	}
	if s.ImageSize != "" {
		fmt.Fprintf(&b, "  ImageSize:    %s\n", s.ImageSize)
	}
	if s.GoogleSearch {
		b.WriteString("  GoogleSearch: true\n")
	}
	if s.Theme != "" {
		fmt.Fprintf(&b, "  Theme:        %s\n", s.Theme)
	}
	if s.Verbose {
		b.WriteString("  Verbose:      true\n")
	}

	if len(s.Env) > 0 {
		b.WriteString("\n=== Env ===\n")
		keys := make([]string, 0, len(s.Env))
		for k := range s.Env {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "  %s=%s\n", k, s.Env[k])
		}
	}

	return b.String()
}
