// Package render turns answer text into display sections with inline bold
// spans, bullet items and citation links resolved against the selected
// search results.
//
// Sections are delimited by header lines ("## Title") only. Blank lines
// separate paragraphs inside a section; they never start a new section.
package render

import (
	"regexp"
	"strconv"
	"strings"

	"answer-engine/internal/domain"
)

const (
	bulletGlyph     = "•"
	whitespaceChars = " \t"
)

var (
	headerLine   = regexp.MustCompile(`^#{1,6}[ \t]`)
	citationSpan = regexp.MustCompile(`\[[\d,\s]*\d[\d,\s]*\]`)
	boldSpan     = regexp.MustCompile(`\*\*(.+?)\*\*`)
)

// Parse splits text into sections. Citation markers resolve against sources
// by 1-based position; markers outside the list yield unresolved links.
func Parse(text string, sources []domain.Result) []domain.Section {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	if strings.TrimSpace(text) == "" {
		return nil
	}

	var (
		sections []domain.Section
		current  = domain.Section{}
		started  bool
		pending  []string
	)

	flushParagraph := func() {
		if len(pending) == 0 {
			return
		}
		segs := parseInline(strings.Join(pending, " "), sources)
		if len(segs) > 0 {
			current.Paragraphs = append(current.Paragraphs, domain.Paragraph{Segments: segs})
		}
		pending = pending[:0]
	}
	flushSection := func() {
		flushParagraph()
		if started || len(current.Paragraphs) > 0 {
			sections = append(sections, current)
		}
	}

	for _, line := range strings.Split(text, "\n") {
		if headerLine.MatchString(line) {
			flushSection()
			current = domain.Section{Title: headerTitle(line)}
			started = true
			continue
		}
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			flushParagraph()
			continue
		}
		pending = append(pending, trimmed)
	}
	flushSection()
	return sections
}

func headerTitle(line string) string {
	return strings.TrimSpace(strings.TrimLeft(line, "#"+whitespaceChars))
}

// parseInline splits paragraph text around citation spans, then splits the
// remaining text around bullets and bold spans.
func parseInline(text string, sources []domain.Result) []domain.Segment {
	var segs []domain.Segment
	last := 0
	for _, loc := range citationSpan.FindAllStringIndex(text, -1) {
		indices := parseIndices(text[loc[0]:loc[1]])
		if len(indices) == 0 {
			continue
		}
		segs = append(segs, parseText(text[last:loc[0]])...)
		segs = append(segs, domain.Segment{
			Kind:  domain.SegmentCitation,
			Links: resolveLinks(indices, sources),
		})
		last = loc[1]
	}
	return append(segs, parseText(text[last:])...)
}

// parseIndices reads "[1, 3]" as [1 3]. Fragments that are not integers
// are skipped.
func parseIndices(span string) []int {
	inner := strings.TrimSuffix(strings.TrimPrefix(span, "["), "]")
	var out []int
	for _, part := range strings.Split(inner, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			continue
		}
		out = append(out, n)
	}
	return out
}

func resolveLinks(indices []int, sources []domain.Result) []domain.CitationLink {
	links := make([]domain.CitationLink, 0, len(indices))
	for _, n := range indices {
		link := domain.CitationLink{Index: n}
		if n >= 1 && n <= len(sources) {
			src := sources[n-1]
			link.URL = src.URL
			link.Title = src.DisplayTitle()
			link.Resolved = true
		}
		links = append(links, link)
	}
	return links
}

// parseText handles text between citations. Each bullet glyph emits a bullet
// marker segment; the item's content follows as ordinary segments.
func parseText(text string) []domain.Segment {
	parts := strings.Split(text, bulletGlyph)
	segs := parseBold(parts[0])
	for _, item := range parts[1:] {
		segs = append(segs, domain.Segment{Kind: domain.SegmentBullet})
		segs = append(segs, parseBold(strings.TrimLeft(item, whitespaceChars))...)
	}
	return segs
}

func parseBold(text string) []domain.Segment {
	var segs []domain.Segment
	last := 0
	for _, m := range boldSpan.FindAllStringSubmatchIndex(text, -1) {
		segs = appendText(segs, text[last:m[0]])
		if inner := text[m[2]:m[3]]; strings.TrimSpace(inner) != "" {
			segs = append(segs, domain.Segment{Kind: domain.SegmentBold, Text: inner})
		}
		last = m[1]
	}
	return appendText(segs, text[last:])
}

func appendText(segs []domain.Segment, text string) []domain.Segment {
	if text == "" {
		return segs
	}
	return append(segs, domain.Segment{Kind: domain.SegmentText, Text: text})
}
