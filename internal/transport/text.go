package transport

import (
	"html"
	"regexp"
	"strings"
)

var (
	paragraphTag = regexp.MustCompile(`(?i)</?p[^>]*>|<br\s*/?>`)
	anyTag       = regexp.MustCompile(`</?[^>]+>`)
)

// PlainText turns status HTML into text: paragraphs and line breaks become
// newlines, other tags are dropped, entities are unescaped.
func PlainText(content string) string {
	s := paragraphTag.ReplaceAllString(content, "\n")
	s = anyTag.ReplaceAllString(s, "")
	return strings.TrimSpace(html.UnescapeString(s))
}
