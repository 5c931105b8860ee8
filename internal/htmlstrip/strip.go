// Package htmlstrip converts HTML markup to plain text.
package htmlstrip

import (
	"strings"

	"golang.org/x/net/html"
)

// skipElements are elements whose text content should be discarded.
var skipElements = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
}

// Text strips markup from an HTML fragment. Element tags become a single
// space, <br> and closing </p> become newlines, and the content of
// style/script blocks is dropped. Entities are unescaped by the tokenizer.
func Text(s string) string {
	tz := html.NewTokenizer(strings.NewReader(s))
	var b strings.Builder
	skipDepth := 0

	for {
		tt := tz.Next()
		switch tt {
		case html.ErrorToken:
			return b.String()

		case html.StartTagToken, html.SelfClosingTagToken:
			tn, _ := tz.TagName()
			tag := string(tn)
			if skipElements[tag] && tt == html.StartTagToken {
				skipDepth++
				continue
			}
			if tag == "br" {
				b.WriteByte('\n')
			} else {
				b.WriteByte(' ')
			}

		case html.EndTagToken:
			tn, _ := tz.TagName()
			tag := string(tn)
			if skipElements[tag] {
				if skipDepth > 0 {
					skipDepth--
				}
				continue
			}
			if tag == "p" {
				b.WriteByte('\n')
			} else {
				b.WriteByte(' ')
			}

		case html.TextToken:
			if skipDepth > 0 {
				continue
			}
			b.Write(tz.Text())

		case html.CommentToken, html.DoctypeToken:
			// markup only, no text
		}
	}
}
