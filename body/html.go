package body

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"google.golang.org/api/gmail/v1"
)

// historyRE marks where HTML clients start rendering the quoted thread as
// ordinary text.
var historyRE = regexp.MustCompile(`(From|To|RE|FWD|FW|wrote):`)

// HTML extracts visible text from every text/html node.
type HTML struct {
	MaxDepth int
}

func (h HTML) Extract(payload *gmail.MessagePart) (Content, error) {
	return walk(payload, mimeHTML, h.MaxDepth, htmlLeaf)
}

func htmlLeaf(part *gmail.MessagePart, data []byte) (string, string, error) {
	doc, err := html.Parse(strings.NewReader(toUTF8(data, partCharset(part))))
	if err != nil {
		return "", "", fmt.Errorf("parse html: %w", err)
	}

	var rendered bytes.Buffer
	if err := html.Render(&rendered, doc); err != nil {
		return "", "", fmt.Errorf("render html: %w", err)
	}

	return truncateHistory(visibleText(doc)), rendered.String(), nil
}

// visibleText joins the document's text nodes with single spaces.
func visibleText(doc *html.Node) string {
	var words []string
	var walkNode func(n *html.Node)
	walkNode = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch strings.ToLower(n.Data) {
			case "script", "style", "head", "noscript", "template":
				return
			}
		}
		if n.Type == html.TextNode {
			words = append(words, strings.Fields(n.Data)...)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walkNode(c)
		}
	}
	walkNode(doc)
	return strings.Join(words, " ")
}

func truncateHistory(text string) string {
	if loc := historyRE.FindStringIndex(text); loc != nil {
		return text[:loc[0]]
	}
	return text
}
