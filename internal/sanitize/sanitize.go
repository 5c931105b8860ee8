// Package sanitize normalizes decoded text for transport and prompting.
package sanitize

import (
	"regexp"
	"strings"
)

var spaceRuns = regexp.MustCompile(`[ \t][ \t]+`)

// Clean strips NUL bytes, replaces runes outside the printable ASCII range
// and outside the Latin-1 supplement / Latin Extended-A band with a space,
// collapses runs of spaces and tabs, and trims the result.
//
// Keeping the Latin band preserves accented Western-European text while
// discarding emoji, control codes, and most non-Latin scripts. Clean is
// idempotent.
func Clean(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	for _, r := range s {
		switch {
		case r == 0:
			// dropped entirely
		case r == '\t' || r == '\r' || r == '\n':
			b.WriteRune(r)
		case r >= ' ' && r <= '~':
			b.WriteRune(r)
		case r >= 0x00A0 && r <= 0x017F:
			b.WriteRune(r)
		default:
			b.WriteByte(' ')
		}
	}

	out := spaceRuns.ReplaceAllString(b.String(), " ")
	return strings.TrimSpace(out)
}
