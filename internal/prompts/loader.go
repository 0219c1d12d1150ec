// ABOUTME: Style template loader with disk-first, store, then embedded precedence
// ABOUTME: Disk templates are Markdown files with YAML frontmatter; the body is the prompt

package prompts

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"slices"
	"strings"

	"github.com/Shizuku-Yume/Arcanum/internal/config"
	pilog "github.com/Shizuku-Yume/Arcanum/internal/log"
	"github.com/Shizuku-Yume/Arcanum/internal/store"
)

// Template is a named prompt template. It shares the persisted shape.
type Template = store.StyleTemplate

// Source tells where a template was loaded from.
type Source string

const (
	SourceDisk     Source = "disk"
	SourceStore    Source = "store"
	SourceEmbedded Source = "builtin"
)

// Entry is a loaded template and its origin.
type Entry struct {
	Template
	Source Source
	Path   string // File path for disk and builtin templates
}

// CustomPromptStore is the part of the store holding user templates.
type CustomPromptStore interface {
	CustomPrompts() []store.StyleTemplate
}

// frontmatter is the YAML header of a template file.
type frontmatter struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

// Loader collects templates from directories, the store and the builtins.
type Loader struct {
	dirs     []string
	store    CustomPromptStore
	embedded fs.FS
}

// NewLoader creates a loader. dirs are searched in order and earlier
// directories win; st may be nil.
func NewLoader(dirs []string, st CustomPromptStore) *Loader {
	sub, err := fs.Sub(embeddedFS, "templates")
	if err != nil {
		panic(fmt.Sprintf("embedded templates sub-fs: %v", err))
	}
	return &Loader{dirs: dirs, store: st, embedded: sub}
}

// Load returns every template, deduplicated by ID, sorted by ID. Precedence:
// disk directories in order, then the store, then the builtins. Unreadable
// or malformed files are logged and skipped.
func (l *Loader) Load() []Entry {
	seen := make(map[string]bool)
	var entries []Entry
	add := func(e Entry) {
		if e.ID == "" || seen[e.ID] {
			return
		}
		seen[e.ID] = true
		entries = append(entries, e)
	}

	for _, dir := range l.dirs {
		for _, e := range loadDir(os.DirFS(dir), dir, SourceDisk) {
			add(e)
		}
	}
	if l.store != nil {
		for _, t := range l.store.CustomPrompts() {
			add(Entry{Template: t, Source: SourceStore})
		}
	}
	for _, e := range loadDir(l.embedded, "builtin", SourceEmbedded) {
		add(e)
	}

	slices.SortFunc(entries, func(a, b Entry) int { return strings.Compare(a.ID, b.ID) })
	return entries
}

func loadDir(fsys fs.FS, root string, src Source) []Entry {
	names, err := fs.Glob(fsys, "*.md")
	if err != nil {
		return nil
	}
	var entries []Entry
	for _, name := range names {
		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				pilog.Warn("prompts: reading %s/%s: %v", root, name, err)
			}
			continue
		}
		t, err := ParseTemplate(strings.TrimSuffix(name, ".md"), string(data))
		if err != nil {
			pilog.Warn("prompts: %s/%s: %v", root, name, err)
			continue
		}
		entries = append(entries, Entry{Template: t, Source: src, Path: path.Join(root, name)})
	}
	return entries
}

// ParseTemplate reads a Markdown template. The frontmatter id defaults to
// defaultID and the name to the id.
func ParseTemplate(defaultID, content string) (Template, error) {
	meta, body, err := config.ParseFrontmatter[frontmatter](content)
	if err != nil {
		return Template{}, err
	}
	t := Template{
		ID:          strings.TrimSpace(meta.ID),
		Name:        strings.TrimSpace(meta.Name),
		Description: strings.TrimSpace(meta.Description),
		Prompt:      strings.TrimSpace(body),
	}
	if t.ID == "" {
		t.ID = defaultID
	}
	if t.Name == "" {
		t.Name = t.ID
	}
	if t.Prompt == "" {
		return Template{}, fmt.Errorf("template %q has an empty body", t.ID)
	}
	return t, nil
}
