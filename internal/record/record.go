// Package record defines the unit of retrieval and its projections.
package record

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Kind discriminates the two record variants.
type Kind string

const (
	KindEmail      Kind = "email"
	KindAttachment Kind = "attachment"
)

// minAttachmentBody is the minimum extracted-text length for an attachment
// record to be worth keeping. Quality filter, not a format requirement.
const minAttachmentBody = 20

// DefaultPreviewLen bounds index-entry previews.
const DefaultPreviewLen = 160

// Outcome records how an attachment's text extraction went. The body always
// carries readable text (possibly a placeholder); Outcome makes failure
// visible to callers and tests instead of hiding it in the body string.
type Outcome struct {
	OK     bool   `json:"ok"`
	Reason string `json:"reason,omitempty"`
}

// Extracted returns a successful outcome.
func Extracted() Outcome { return Outcome{OK: true} }

// ExtractionFailed returns a failed outcome with a reason.
func ExtractionFailed(reason string) Outcome { return Outcome{OK: false, Reason: reason} }

// Record is one normalized corpus entry: either an email reduced to text or
// an attachment's extracted text.
type Record struct {
	ID       int    `json:"id"`
	Filename string `json:"filename"`
	Kind     Kind   `json:"type"`

	// email variant
	From    string `json:"from,omitempty"`
	To      string `json:"to,omitempty"`
	Subject string `json:"subject,omitempty"`
	Date    string `json:"date,omitempty"`

	// attachment variant
	FileType   string  `json:"fileType,omitempty"`
	Extraction Outcome `json:"-"`

	Body string `json:"body"`
}

// HasContent reports whether the record carries enough identifying content
// to keep. Emails need at least one of from/to/subject/body; attachments
// need a minimum body length. Failed extractions are always kept so the
// failure stays visible in the corpus.
func (r Record) HasContent() bool {
	switch r.Kind {
	case KindEmail:
		return r.From != "" || r.To != "" || r.Subject != "" || r.Body != ""
	case KindAttachment:
		if !r.Extraction.OK {
			return true
		}
		return len(r.Body) > minAttachmentBody
	}
	return false
}

// Serialize renders the record as one JSON object for chunk transport.
func (r Record) Serialize() string {
	b, err := json.Marshal(r)
	if err != nil {
		// Marshal of a plain struct cannot fail; keep a readable fallback.
		return fmt.Sprintf(`{"id":%d,"filename":%q}`, r.ID, r.Filename)
	}
	return string(b)
}

// SerializeCompact is Serialize with the body truncated to previewLen.
func (r Record) SerializeCompact(previewLen int) string {
	r.Body = TruncateAtWordBoundary(r.Body, previewLen)
	return r.Serialize()
}

// IndexEntry is the compact projection used by two-pass retrieval. It never
// holds the full body.
type IndexEntry struct {
	ID       int    `json:"id"`
	Filename string `json:"filename"`
	Kind     Kind   `json:"type"`
	Preview  string `json:"preview"`
	Length   int    `json:"length"`
}

// NewIndexEntry projects a record into its index form.
func NewIndexEntry(r Record, previewLen int) IndexEntry {
	if previewLen <= 0 {
		previewLen = DefaultPreviewLen
	}
	preview := r.Body
	if r.Kind == KindEmail && r.Subject != "" {
		preview = r.Subject + ": " + r.Body
	}
	preview = strings.Join(strings.Fields(preview), " ")
	return IndexEntry{
		ID:       r.ID,
		Filename: r.Filename,
		Kind:     r.Kind,
		Preview:  TruncateAtWordBoundary(preview, previewLen),
		Length:   len(r.Body),
	}
}

// Serialize renders the entry as one JSON object.
func (e IndexEntry) Serialize() string {
	b, err := json.Marshal(e)
	if err != nil {
		return fmt.Sprintf(`{"id":%d,"filename":%q}`, e.ID, e.Filename)
	}
	return string(b)
}

// TruncateAtWordBoundary truncates text to at most maxLen bytes at a word
// boundary, appending "..." if truncated. A cut never splits a UTF-8 rune.
func TruncateAtWordBoundary(text string, maxLen int) string {
	if len(text) <= maxLen {
		return text
	}

	cutoff := maxLen - 3
	if cutoff <= 0 {
		return text[:runeBoundaryBefore(text, maxLen)]
	}
	cutoff = runeBoundaryBefore(text, cutoff)

	lastSpace := strings.LastIndex(text[:cutoff], " ")
	if lastSpace > 0 {
		return text[:lastSpace] + "..."
	}
	return text[:cutoff] + "..."
}

// runeBoundaryBefore backs i up to the nearest rune start.
func runeBoundaryBefore(s string, i int) int {
	for i > 0 && !utf8.RuneStart(s[i]) {
		i--
	}
	return i
}
