// ABOUTME: Image reference extraction from an assembled message via ordered strategies
// ABOUTME: One reducer deduplicates by exact string and keeps first-seen order

// Package extract finds image references (http(s) URLs or base64 data URIs)
// in an assistant message whose shape varies by provider.
//
// Strategies run in a fixed order over the same message. Each returns the
// candidates it recognizes; a single reducer appends them, dropping exact
// duplicates. The bare-URL strategy is a last resort and only runs when every
// earlier strategy came back empty.
package extract

import (
	"regexp"
	"strings"

	"github.com/Shizuku-Yume/Arcanum/pkg/imagegen"
)

var (
	base64ImageRe   = regexp.MustCompile(`data:image/[a-zA-Z0-9+]+;base64,[^\s"]+`)
	markdownImageRe = regexp.MustCompile(`!\[.*?\]\((data:image/[^)]+|https?://[^)\s]+)\)`)
	inlineDataURIRe = regexp.MustCompile(`data:image/[a-zA-Z0-9+/;,=]+`)
	bareURLRe       = regexp.MustCompile(`https?://[^\s)"']+`)
)

// Strategy is one independent matcher over a message.
type Strategy struct {
	Name string
	// OnlyIfEmpty restricts the strategy to messages where nothing was found yet.
	OnlyIfEmpty bool
	Match       func(msg *imagegen.Message) []string
}

// Strategies is the precedence order used by ImageURLs.
var Strategies = []Strategy{
	{Name: "images", Match: fromImages},
	{Name: "leading-data-uri", Match: fromLeadingDataURI},
	{Name: "markdown", Match: fromMarkdown},
	{Name: "inline-data-uri", Match: fromInlineDataURIs},
	{Name: "bare-url", OnlyIfEmpty: true, Match: fromBareURLs},
}

// Find is one strategy's contribution, after deduplication.
type Find struct {
	Strategy string
	Refs     []string
}

// ImageURLs returns every image reference in msg, deduplicated, in
// first-seen order across all strategies.
func ImageURLs(msg *imagegen.Message) []string {
	refs, _ := run(msg, Strategies)
	return refs
}

// Trace runs the strategies and reports which one contributed each reference.
func Trace(msg *imagegen.Message) []Find {
	_, finds := run(msg, Strategies)
	return finds
}

func run(msg *imagegen.Message, strategies []Strategy) ([]string, []Find) {
	var acc accumulator
	var finds []Find
	if msg == nil {
		return nil, nil
	}
	for _, s := range strategies {
		if s.OnlyIfEmpty && len(acc.refs) > 0 {
			continue
		}
		added := acc.add(s.Match(msg))
		if len(added) > 0 {
			finds = append(finds, Find{Strategy: s.Name, Refs: added})
		}
	}
	return acc.refs, finds
}

// accumulator is the dedup-and-append reducer.
type accumulator struct {
	refs []string
	seen map[string]struct{}
}

// add appends the unseen, non-empty candidates and returns them.
func (a *accumulator) add(candidates []string) []string {
	if a.seen == nil {
		a.seen = make(map[string]struct{})
	}
	var added []string
	for _, c := range candidates {
		if c == "" {
			continue
		}
		if _, dup := a.seen[c]; dup {
			continue
		}
		a.seen[c] = struct{}{}
		a.refs = append(a.refs, c)
		added = append(added, c)
	}
	return added
}

func fromImages(msg *imagegen.Message) []string {
	var refs []string
	for _, img := range msg.Images {
		if img.ImageURL != nil && img.ImageURL.URL != "" {
			refs = append(refs, img.ImageURL.URL)
		}
	}
	return refs
}

// fromLeadingDataURI handles content that is itself one or more data URIs.
// Content that starts like a data URI but matches no base64 run is taken whole.
func fromLeadingDataURI(msg *imagegen.Message) []string {
	if !strings.HasPrefix(msg.Content, "data:image/") {
		return nil
	}
	if matches := base64ImageRe.FindAllString(msg.Content, -1); len(matches) > 0 {
		return matches
	}
	return []string{msg.Content}
}

func fromMarkdown(msg *imagegen.Message) []string {
	var refs []string
	for _, m := range markdownImageRe.FindAllStringSubmatch(msg.Content, -1) {
		refs = append(refs, m[1])
	}
	return refs
}

func fromInlineDataURIs(msg *imagegen.Message) []string {
	return inlineDataURIRe.FindAllString(msg.Content, -1)
}

func fromBareURLs(msg *imagegen.Message) []string {
	return bareURLRe.FindAllString(msg.Content, -1)
}
