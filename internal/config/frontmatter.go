// ABOUTME: Generic YAML frontmatter parser for Markdown prompt templates
// ABOUTME: Splits a leading ---/--- block from the body and decodes it into T

package config

import (
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

const fence = "---"

// ErrUnterminatedFrontmatter is returned when the opening fence has no match.
var ErrUnterminatedFrontmatter = errors.New("unterminated frontmatter: missing closing ---")

// ParseFrontmatter decodes the YAML block at the top of content into T and
// returns it with the remaining body. Content without an opening fence is
// returned unchanged with a zero T.
func ParseFrontmatter[T any](content string) (T, string, error) {
	var meta T

	head, body, found, err := splitFrontmatter(content)
	if err != nil || !found {
		return meta, body, err
	}
	if strings.TrimSpace(head) == "" {
		return meta, body, nil
	}
	if err := yaml.Unmarshal([]byte(head), &meta); err != nil {
		var zero T
		return zero, "", fmt.Errorf("parse frontmatter YAML: %w", err)
	}
	return meta, body, nil
}

// splitFrontmatter separates the fenced header from the body. Line endings
// are normalized to LF when a header is present.
func splitFrontmatter(content string) (head, body string, found bool, err error) {
	text := strings.ReplaceAll(content, "\r\n", "\n")
	rest, ok := strings.CutPrefix(text, fence+"\n")
	if !ok {
		return "", content, false, nil
	}

	lines := strings.SplitAfter(rest, "\n")
	for i, line := range lines {
		if strings.TrimRight(line, "\n") != fence {
			continue
		}
		head = strings.Join(lines[:i], "")
		body = strings.Join(lines[i+1:], "")
		return head, body, true, nil
	}
	return "", "", false, ErrUnterminatedFrontmatter
}
