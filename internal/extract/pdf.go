package extract

import (
	"bytes"
	"compress/flate"
	"compress/zlib"
	"fmt"
	"io"
	"regexp"
	"strings"
)

// pdfExtractor recovers text from PDF content streams on a best-effort
// basis: Flate-compressed streams are inflated and literal strings feeding
// the Tj/TJ text-show operators are collected. Encrypted or exotically
// encoded documents yield little or nothing, which the caller reports as an
// extraction failure.
type pdfExtractor struct{}

var (
	pdfStreamRe  = regexp.MustCompile(`(?s)stream\r?\n(.*?)endstream`)
	pdfLiteralRe = regexp.MustCompile(`\(((?:[^()\\]|\\.)*)\)\s*(?:Tj|TJ|'|")`)
	pdfArrayRe   = regexp.MustCompile(`\[((?:[^\[\]])*)\]\s*TJ`)
	pdfInnerRe   = regexp.MustCompile(`\(((?:[^()\\]|\\.)*)\)`)
)

func (pdfExtractor) Extract(filename string, data []byte) (string, error) {
	if len(data) < 5 || !bytes.HasPrefix(data, []byte("%PDF")) {
		return "", fmt.Errorf("%s: missing %%PDF signature", filename)
	}

	var b strings.Builder
	for _, m := range pdfStreamRe.FindAllSubmatch(data, -1) {
		content := inflateStream(m[1])
		collectPDFText(&b, content)
	}

	text := strings.TrimSpace(b.String())
	if len(text) < 20 {
		// no usable content streams; fall back to raw printable runs
		text = printableRuns(data, 6)
		if len(text) < 20 {
			return "", fmt.Errorf("%s: no extractable text", filename)
		}
	}
	return text, nil
}

// inflateStream tries zlib then raw deflate, returning the input unchanged
// when neither applies (uncompressed or unsupported filter).
func inflateStream(raw []byte) []byte {
	if zr, err := zlib.NewReader(bytes.NewReader(raw)); err == nil {
		if out, err := io.ReadAll(io.LimitReader(zr, maxOOXMLPart)); err == nil && len(out) > 0 {
			zr.Close()
			return out
		}
		zr.Close()
	}
	fr := flate.NewReader(bytes.NewReader(raw))
	if out, err := io.ReadAll(io.LimitReader(fr, maxOOXMLPart)); err == nil && len(out) > 0 {
		fr.Close()
		return out
	}
	fr.Close()
	return raw
}

// collectPDFText appends the literal strings used by text-show operators.
func collectPDFText(b *strings.Builder, content []byte) {
	for _, m := range pdfLiteralRe.FindAllSubmatch(content, -1) {
		writePDFLiteral(b, m[1])
	}
	for _, arr := range pdfArrayRe.FindAllSubmatch(content, -1) {
		for _, m := range pdfInnerRe.FindAllSubmatch(arr[1], -1) {
			writePDFLiteral(b, m[1])
		}
	}
}

// writePDFLiteral unescapes a PDF literal string and appends it.
func writePDFLiteral(b *strings.Builder, lit []byte) {
	if b.Len() > 0 {
		b.WriteByte(' ')
	}
	for i := 0; i < len(lit); i++ {
		c := lit[i]
		if c != '\\' || i+1 >= len(lit) {
			b.WriteByte(c)
			continue
		}
		i++
		switch lit[i] {
		case 'n':
			b.WriteByte('\n')
		case 'r', 't':
			b.WriteByte(' ')
		case '(', ')', '\\':
			b.WriteByte(lit[i])
		default:
			b.WriteByte(lit[i])
		}
	}
}
