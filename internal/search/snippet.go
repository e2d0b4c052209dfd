package search

import (
	"strings"
	"unicode/utf8"
)

// SnippetMaxRunes bounds the length of a snippet before the ellipsis.
const SnippetMaxRunes = 200

// compactEventTypes are already one-line summaries and are shown as stored.
var compactEventTypes = map[string]bool{
	"git.commit":     true,
	"git.tag":        true,
	"commit_file":    true,
	"co_change":      true,
	"co-change":      true,
	"belief.surface": true,
}

// Snippet returns a short, single-line preview of a result's content.
// Commit and co-change content passes through untouched; pattern documents
// show their title and first prose line.
func Snippet(r *FusedResult) string {
	eventType := r.Metadata.EventType
	switch {
	case compactEventTypes[eventType]:
		return r.Content
	case strings.HasPrefix(eventType, "pattern."):
		return patternSnippet(r.Content)
	default:
		return truncateRunes(r.Content, SnippetMaxRunes)
	}
}

// truncateRunes collapses every whitespace run to one space before cutting.
func truncateRunes(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max]) + "..."
}

// patternSnippet renders "# Title\n\nstatus: ...\nFirst line" as
// "Title - First line", skipping frontmatter-like lines.
func patternSnippet(content string) string {
	var lines []string
	for _, l := range strings.Split(content, "\n") {
		if t := strings.TrimSpace(l); t != "" {
			lines = append(lines, t)
		}
	}
	if len(lines) == 0 {
		return truncateRunes(content, SnippetMaxRunes)
	}

	title := strings.TrimSpace(strings.TrimLeft(lines[0], "#"))
	for _, l := range lines[1:] {
		if strings.HasPrefix(l, "**") || strings.HasPrefix(l, "---") ||
			strings.HasPrefix(l, "id:") || strings.HasPrefix(l, "status:") {
			continue
		}
		return truncateRunes(title+" - "+l, SnippetMaxRunes)
	}
	return title
}
