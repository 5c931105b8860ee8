// Package mimetext reduces a raw MIME message to a single text blob.
//
// The decoder walks multipart bodies recursively, keeps text/plain and
// text/html leaves, and degrades to a flat decode whenever the framing is
// malformed. It never fails: garbage in, best-effort text out.
package mimetext

import (
	"encoding/base64"
	"regexp"
	"strings"

	"golang.org/x/text/encoding/charmap"

	"github.com/rgale/corpusqa/internal/headers"
	"github.com/rgale/corpusqa/internal/htmlstrip"
)

var (
	boundaryQuotedRe = regexp.MustCompile(`(?i)boundary="([^"]+)"`)
	boundaryBareRe   = regexp.MustCompile(`(?i)boundary=([^;\s]+)`)
	softBreakRe      = regexp.MustCompile(`=\r?\n`)
	whitespaceRe     = regexp.MustCompile(`\s+`)
)

// SplitHeaderBody splits a raw message at the first blank-line separator.
// CRLF CRLF is preferred over LF LF. If neither is present the whole input
// is the header block and the body is empty.
func SplitHeaderBody(raw string) (head, body string) {
	if i := strings.Index(raw, "\r\n\r\n"); i >= 0 {
		return raw[:i], raw[i+4:]
	}
	if i := strings.Index(raw, "\n\n"); i >= 0 {
		return raw[:i], raw[i+2:]
	}
	return raw, ""
}

// MediaType returns the lower-cased media type from a header map, defaulting
// to text/plain when the content-type header is absent or empty.
func MediaType(h headers.Map) string {
	ct := h.Get("content-type")
	if ct == "" {
		return "text/plain"
	}
	if i := strings.Index(ct, ";"); i >= 0 {
		ct = ct[:i]
	}
	return strings.ToLower(strings.TrimSpace(ct))
}

// boundaryOf extracts the multipart boundary parameter from a content-type
// header value, or "" when none is declared.
func boundaryOf(contentType string) string {
	if m := boundaryQuotedRe.FindStringSubmatch(contentType); m != nil {
		return m[1]
	}
	if m := boundaryBareRe.FindStringSubmatch(contentType); m != nil {
		return m[1]
	}
	return ""
}

// DecodeTransfer reverses the content-transfer-encoding declared in h.
//
// base64 bodies are decoded after stripping whitespace and taken as UTF-8.
// quoted-printable bodies drop soft line breaks, unescape =XX bytes, and are
// reinterpreted as Latin-1 re-encoded to UTF-8. quoted-printable escapes raw
// bytes, so the two-step policy is what keeps 8-bit Western text readable.
// Any other encoding, or any decode failure, returns the body unchanged.
func DecodeTransfer(body string, h headers.Map) string {
	enc := strings.ToLower(h.Get("content-transfer-encoding"))
	switch {
	case strings.Contains(enc, "base64"):
		compact := whitespaceRe.ReplaceAllString(body, "")
		raw, err := base64.StdEncoding.DecodeString(compact)
		if err != nil {
			return body
		}
		return string(raw)

	case strings.Contains(enc, "quoted-printable"):
		unfolded := softBreakRe.ReplaceAllString(body, "")
		raw, err := decodeQPBytes(unfolded)
		if err != nil {
			return body
		}
		out, err := charmap.ISO8859_1.NewDecoder().Bytes(raw)
		if err != nil {
			return body
		}
		return string(out)

	default:
		return body
	}
}

// decodeQPBytes replaces =XX hex escapes with the corresponding byte.
func decodeQPBytes(s string) ([]byte, error) {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '=' {
			out = append(out, c)
			continue
		}
		if i+2 >= len(s) {
			return nil, errTruncatedEscape
		}
		hi, ok1 := hexVal(s[i+1])
		lo, ok2 := hexVal(s[i+2])
		if !ok1 || !ok2 {
			return nil, errBadEscape
		}
		out = append(out, hi<<4|lo)
		i += 2
	}
	return out, nil
}

func hexVal(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}

// Decode reduces a message body plus its headers to one text blob.
//
// Multipart bodies are split on the declared boundary and each part is
// decoded recursively; text/plain and text/html leaves are kept, everything
// else is skipped. When no part yields text, or the boundary is missing, the
// whole body is decoded as a flat leaf.
func Decode(body string, h headers.Map) string {
	media := MediaType(h)

	if strings.HasPrefix(media, "multipart/") {
		if boundary := boundaryOf(h.Get("content-type")); boundary != "" {
			if text := decodeMultipart(body, boundary); text != "" {
				return text
			}
		}
	}

	return decodeLeaf(body, h, media)
}

// decodeLeaf decodes a single non-multipart part.
func decodeLeaf(body string, h headers.Map, media string) string {
	text := DecodeTransfer(body, h)
	if media == "text/html" {
		return htmlstrip.Text(text)
	}
	return text
}

// decodeMultipart walks the parts delimited by --boundary and joins the
// decoded text leaves with a blank line, preserving part order.
func decodeMultipart(body, boundary string) string {
	var texts []string

	for _, fragment := range splitParts(body, boundary) {
		part := strings.TrimSpace(fragment)
		if part == "" || part == "--" {
			continue
		}
		part = strings.TrimSpace(strings.TrimSuffix(part, "--"))

		head, partBody := SplitHeaderBody(part)
		ph := headers.ParseBlock(head)
		media := MediaType(ph)

		var text string
		switch {
		case strings.HasPrefix(media, "multipart/"):
			text = Decode(partBody, ph)
		case media == "text/plain" || media == "text/html":
			text = decodeLeaf(partBody, ph, media)
		default:
			// non-text part (attachment, image, unknown): skipped
			continue
		}

		if text = strings.TrimSpace(text); text != "" {
			texts = append(texts, text)
		}
	}

	return strings.Join(texts, "\n\n")
}

// splitParts returns the fragments between occurrences of the --boundary
// delimiter, scanning by offset. The preamble before the first delimiter is
// discarded; the fragment after the final delimiter (normally the "--"
// terminator) is returned for the caller to filter.
func splitParts(body, boundary string) []string {
	delim := "--" + boundary

	start := strings.Index(body, delim)
	if start < 0 {
		return nil
	}

	var parts []string
	pos := start + len(delim)
	for {
		next := strings.Index(body[pos:], delim)
		if next < 0 {
			parts = append(parts, body[pos:])
			return parts
		}
		parts = append(parts, body[pos:pos+next])
		pos += next + len(delim)
	}
}

var (
	errTruncatedEscape = errString("truncated quoted-printable escape")
	errBadEscape       = errString("invalid quoted-printable escape")
)

type errString string

func (e errString) Error() string { return string(e) }
