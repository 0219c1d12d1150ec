// ABOUTME: Template application ({prompt} placeholder) and lookup by ID or fuzzy name
// ABOUTME: Fuzzy ranking uses sahilm/fuzzy over "id name" strings

package prompts

import (
	"strings"

	"github.com/sahilm/fuzzy"
)

// Placeholder marks where the user prompt goes in a template.
const Placeholder = "{prompt}"

// Apply combines a template with the user prompt. Every placeholder is
// replaced; without one, the prompt is appended on a new line.
func Apply(t Template, prompt string) string {
	if strings.Contains(t.Prompt, Placeholder) {
		return strings.ReplaceAll(t.Prompt, Placeholder, prompt)
	}
	if strings.TrimSpace(prompt) == "" {
		return t.Prompt
	}
	return t.Prompt + "\n" + prompt
}

// entrySource adapts entries to fuzzy.Source.
type entrySource []Entry

func (s entrySource) String(i int) string { return s[i].ID + " " + s[i].Name }
func (s entrySource) Len() int            { return len(s) }

// Find returns the entry whose ID equals query (case-insensitive), else the
// best fuzzy match on ID and name.
func Find(entries []Entry, query string) (Entry, bool) {
	query = strings.TrimSpace(query)
	if query == "" {
		return Entry{}, false
	}
	for _, e := range entries {
		if strings.EqualFold(e.ID, query) {
			return e, true
		}
	}
	matches := fuzzy.FindFrom(query, entrySource(entries))
	if len(matches) == 0 {
		return Entry{}, false
	}
	return entries[matches[0].Index], true
}
