package catalog

import (
	"html"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var (
	strict     = bluemonday.StrictPolicy()
	lineBreaks = regexp.MustCompile(`(?i)<br\s*/?>`)
	blankRuns  = regexp.MustCompile(`\n{3,}`)
	spaceRuns  = regexp.MustCompile(`[ \t]+`)
)

// Sanitize turns an HTML-ish description into plain text. Line breaks survive
// as newlines; every other tag is dropped.
func Sanitize(s string) string {
	if s == "" {
		return ""
	}
	s = lineBreaks.ReplaceAllString(s, "\n")
	s = html.UnescapeString(strict.Sanitize(s))

	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSpace(spaceRuns.ReplaceAllString(l, " "))
	}
	s = strings.Join(lines, "\n")
	return strings.TrimSpace(blankRuns.ReplaceAllString(s, "\n\n"))
}

// Redact masks every case-insensitive occurrence of title in text.
func Redact(text, title string) string {
	title = strings.TrimSpace(title)
	if text == "" || title == "" {
		return text
	}
	re, err := regexp.Compile(`(?i)` + regexp.QuoteMeta(title))
	if err != nil {
		return text
	}
	return re.ReplaceAllString(text, "▇▇▇")
}
