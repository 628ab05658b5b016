package body

import (
	"strings"

	"github.com/bassamadnan/rfimail/reply"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
	"google.golang.org/api/gmail/v1"
)

var stripPolicy = bluemonday.StrictPolicy()

// PlainText extracts the visible reply from every text/plain node.
type PlainText struct {
	MaxDepth int
}

func (p PlainText) Extract(payload *gmail.MessagePart) (Content, error) {
	return walk(payload, mimePlain, p.MaxDepth, plainLeaf)
}

func plainLeaf(part *gmail.MessagePart, data []byte) (string, string, error) {
	text := stripMarkup(toUTF8(data, partCharset(part)))
	return reply.ParseReply(text), text, nil
}

// stripMarkup removes tags some clients leave in plain-text parts. The
// sanitizer escapes what it keeps, so entities are decoded afterwards to
// bring quote markers back.
func stripMarkup(text string) string {
	return strings.TrimSpace(html.UnescapeString(stripPolicy.Sanitize(text)))
}
