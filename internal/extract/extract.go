// Package extract pulls best-effort plain text out of office-document bytes.
//
// Extractors are deliberately forgiving: they return whatever readable text
// they can find, and an error only when a file is unreadable outright. The
// corpus loader turns errors into visible placeholder records.
package extract

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// Extractor converts raw document bytes into plain text.
type Extractor interface {
	Extract(filename string, data []byte) (string, error)
}

// Registry maps lower-cased file extensions (without dot) to extractors.
type Registry struct {
	byExt map[string]Extractor
}

// NewRegistry returns a registry with all built-in extractors registered.
func NewRegistry() *Registry {
	r := &Registry{byExt: map[string]Extractor{}}
	r.Register("txt", textExtractor{})
	r.Register("csv", textExtractor{})
	r.Register("docx", docxExtractor{})
	r.Register("pptx", pptxExtractor{})
	r.Register("xlsx", xlsxExtractor{})
	r.Register("pdf", pdfExtractor{})
	r.Register("doc", legacyDocExtractor{})
	return r
}

// Register adds or replaces the extractor for an extension.
func (r *Registry) Register(ext string, e Extractor) {
	r.byExt[strings.ToLower(ext)] = e
}

// For returns the extractor for an extension, if one is registered.
func (r *Registry) For(ext string) (Extractor, bool) {
	e, ok := r.byExt[strings.ToLower(strings.TrimPrefix(ext, "."))]
	return e, ok
}

// Extensions returns the registered extensions.
func (r *Registry) Extensions() []string {
	out := make([]string, 0, len(r.byExt))
	for ext := range r.byExt {
		out = append(out, ext)
	}
	return out
}

// textExtractor handles plain-text formats. Invalid UTF-8 is reinterpreted
// as Latin-1, matching the rest of the decoding pipeline.
type textExtractor struct{}

func (textExtractor) Extract(filename string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("%s: empty file", filename)
	}
	if utf8.Valid(data) {
		return string(data), nil
	}
	out, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
	if err != nil {
		return string(data), nil
	}
	return string(out), nil
}

// legacyDocExtractor scans binary .doc files for printable runs. The OLE
// compound format is not parsed; this recovers the readable fraction only.
type legacyDocExtractor struct{}

func (legacyDocExtractor) Extract(filename string, data []byte) (string, error) {
	text := printableRuns(data, 5)
	if len(text) < 20 {
		return "", fmt.Errorf("%s: no readable text found", filename)
	}
	return text, nil
}

// printableRuns collects runs of at least minRun printable ASCII bytes,
// joined by newlines.
func printableRuns(data []byte, minRun int) string {
	var b strings.Builder
	var run []byte

	flush := func() {
		if len(run) >= minRun {
			if b.Len() > 0 {
				b.WriteByte('\n')
			}
			b.Write(run)
		}
		run = run[:0]
	}

	for _, c := range data {
		if c == '\t' || (c >= ' ' && c <= '~') {
			run = append(run, c)
		} else {
			flush()
		}
	}
	flush()
	return b.String()
}
