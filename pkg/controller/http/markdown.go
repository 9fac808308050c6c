package http

import (
	"bytes"
	"html"

	"github.com/yuin/goldmark"
)

var md = goldmark.New()

// renderMarkdown converts assistant markdown to HTML. Raw HTML in the source
// is not passed through.
func renderMarkdown(text string) string {
	var buf bytes.Buffer
	if err := md.Convert([]byte(text), &buf); err != nil {
		return html.EscapeString(text)
	}
	return buf.String()
}
