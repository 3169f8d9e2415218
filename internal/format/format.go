// Package format turns provider supplied text into plain text.
package format

import (
	"strings"

	"golang.org/x/net/html"
)

// PlainText strips markup, decodes entities and collapses whitespace
func PlainText(s string) string {
	if s == "" {
		return ""
	}

	var b strings.Builder
	z := html.NewTokenizer(strings.NewReader(s))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return strings.Join(strings.Fields(b.String()), " ")
		case html.TextToken:
			b.Write(z.Text())
		case html.StartTagToken, html.SelfClosingTagToken:
			// <br> and block tags separate words
			b.WriteByte(' ')
		}
	}
}

// Truncate shortens s to at most n runes
func Truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	return string(r[:n])
}
