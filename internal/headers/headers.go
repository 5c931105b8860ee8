// Package headers parses raw RFC-822 header blocks and decodes
// RFC 2047 encoded words found in header values.
package headers

import (
	"encoding/base64"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/text/encoding/charmap"
)

// Map holds header values keyed by lower-cased header name.
type Map map[string]string

// Get returns the value for a header name, case-insensitively.
func (m Map) Get(name string) string {
	return m[strings.ToLower(name)]
}

// ParseBlock parses a raw header block into a Map.
//
// Lines beginning with whitespace fold into the previous header's value,
// space-joined. Other lines split at the first colon into a lower-cased key
// and a trimmed value; the last occurrence of a key wins. Lines with no colon
// that cannot fold are dropped.
func ParseBlock(block string) Map {
	m := Map{}
	var current string

	for _, line := range strings.Split(block, "\n") {
		line = strings.TrimSuffix(line, "\r")

		if current != "" && (strings.HasPrefix(line, " ") || strings.HasPrefix(line, "\t")) {
			folded := strings.TrimSpace(line)
			if folded == "" {
				continue
			}
			if m[current] == "" {
				m[current] = folded
			} else {
				m[current] += " " + folded
			}
			continue
		}

		idx := strings.Index(line, ":")
		if idx < 0 {
			continue
		}
		key := strings.ToLower(strings.TrimSpace(line[:idx]))
		if key == "" {
			continue
		}
		m[key] = strings.TrimSpace(line[idx+1:])
		current = key
	}

	return m
}

// encodedWordRe matches RFC 2047 encoded words: =?charset?B|Q?data?=
var encodedWordRe = regexp.MustCompile(`=\?([^?]+)\?([bBqQ])\?([^?]*)\?=`)

// DecodeEncodedWords decodes every =?charset?enc?data?= token in value.
// Decoding is best-effort per token: a token that fails to decode is left
// as its literal text while the remaining tokens still decode.
func DecodeEncodedWords(value string) string {
	if !strings.Contains(value, "=?") {
		return value
	}
	return encodedWordRe.ReplaceAllStringFunc(value, func(token string) string {
		sub := encodedWordRe.FindStringSubmatch(token)
		if sub == nil {
			return token
		}
		decoded, err := decodeWord(sub[1], sub[2], sub[3])
		if err != nil {
			return token
		}
		return decoded
	})
}

// decodeWord decodes a single encoded-word payload.
func decodeWord(charset, encoding, data string) (string, error) {
	var raw []byte

	switch strings.ToUpper(encoding) {
	case "B":
		b, err := base64.StdEncoding.DecodeString(data)
		if err != nil {
			return "", err
		}
		raw = b
	case "Q":
		b, err := decodeQEncoding(data)
		if err != nil {
			return "", err
		}
		raw = b
	default:
		return "", fmt.Errorf("unknown encoding %q", encoding)
	}

	if strings.Contains(strings.ToLower(charset), "utf-8") {
		return string(raw), nil
	}
	return latin1ToUTF8(raw), nil
}

// decodeQEncoding reverses Q-encoding: underscores become spaces and =XX
// hex escapes become the corresponding byte. Unlike body quoted-printable
// there is no soft-line-break pass.
func decodeQEncoding(data string) ([]byte, error) {
	data = strings.ReplaceAll(data, "_", " ")
	out := make([]byte, 0, len(data))
	for i := 0; i < len(data); i++ {
		c := data[i]
		if c != '=' {
			out = append(out, c)
			continue
		}
		if i+2 >= len(data) {
			return nil, fmt.Errorf("truncated hex escape at %d", i)
		}
		hi, ok1 := hexVal(data[i+1])
		lo, ok2 := hexVal(data[i+2])
		if !ok1 || !ok2 {
			return nil, fmt.Errorf("bad hex escape %q", data[i:i+3])
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

// latin1ToUTF8 reinterprets raw bytes as ISO-8859-1 and re-encodes as UTF-8.
func latin1ToUTF8(raw []byte) string {
	out, err := charmap.ISO8859_1.NewDecoder().Bytes(raw)
	if err != nil {
		// Latin-1 maps every byte; decoding cannot fail in practice.
		return string(raw)
	}
	return string(out)
}
