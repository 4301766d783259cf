package search

import (
	"html"
	"regexp"
	"strings"
	"time"
)

// Highlight HTML-escapes body, then wraps every case-insensitive occurrence
// of each whitespace-delimited query word in <mark> tags, escaping the
// matched text itself. Words apply in query order as sequential
// substitutions, so a later word can re-match text already inside an earlier
// word's markup; that overlap behavior is deliberate and covered by tests.
func Highlight(body, query string) string {
	safe := html.EscapeString(body)
	for _, word := range strings.Fields(query) {
		re, err := regexp.Compile("(?i)" + regexp.QuoteMeta(word))
		if err != nil {
			continue
		}
		safe = re.ReplaceAllStringFunc(safe, func(m string) string {
			return "<mark>" + html.EscapeString(m) + "</mark>"
		})
	}
	return safe
}

const unknownDate = "Unknown date"

// Time formats are limited in range when converting from epoch milliseconds;
// values far outside the representable window render as the placeholder
// rather than failing the request.
const maxReasonableMs = int64(1) << 48 // ~year 10889

// FormatTimestamp renders an epoch-millisecond timestamp as a local
// human-readable date/time string.
func FormatTimestamp(ms int64) string {
	if ms < 0 || ms > maxReasonableMs {
		return unknownDate
	}
	t := time.UnixMilli(ms)
	if t.Year() < 1 || t.Year() > 9999 {
		return unknownDate
	}
	return t.Format("2006-01-02 03:04 PM")
}
