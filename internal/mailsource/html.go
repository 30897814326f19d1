package mailsource

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
)

var blockElements = map[string]bool{
	"br": true, "p": true, "div": true, "tr": true, "li": true,
	"table": true, "h1": true, "h2": true, "h3": true, "h4": true,
}

// HTMLToText returns the visible text of an HTML body, one line per block
// element. Script and style contents are dropped.
func HTMLToText(src string) (string, error) {
	z := html.NewTokenizer(strings.NewReader(src))

	var b strings.Builder
	skip := 0
	for {
		switch z.Next() {
		case html.ErrorToken:
			if err := z.Err(); err != nil && !errors.Is(err, io.EOF) {
				return "", fmt.Errorf("HTMLToText: %w", err)
			}
			return strings.TrimSpace(b.String()), nil
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			tag := string(name)
			if tag == "script" || tag == "style" {
				skip++
			}
			if blockElements[tag] {
				b.WriteByte('\n')
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			tag := string(name)
			if (tag == "script" || tag == "style") && skip > 0 {
				skip--
			}
			if blockElements[tag] {
				b.WriteByte('\n')
			}
		case html.TextToken:
			if skip == 0 {
				b.Write(z.Text())
			}
		}
	}
}
