package body

import (
	"fmt"

	"google.golang.org/api/gmail/v1"
)

// Attachment describes a part that has to be fetched separately.
type Attachment struct {
	Filename     string `json:"filename"`
	AttachmentID string `json:"attachmentId"`
	MimeType     string `json:"mimeType,omitempty"`
	PartID       string `json:"partId,omitempty"`
	Size         int64  `json:"size,omitempty"`
}

// Result is everything Composite found in one payload.
type Result struct {
	Content
	Text        Content
	HTML        Content
	Attachments []Attachment
}

// Composite runs both text extractors over the whole tree and picks one
// body. Plain text wins unless PreferHTML is set and HTML text was found.
type Composite struct {
	PreferHTML bool
	MaxDepth   int
}

func (c Composite) Extract(payload *gmail.MessagePart) (Content, error) {
	res, err := c.ExtractAll(payload)
	if err != nil {
		return Content{}, err
	}
	return res.Content, nil
}

// ExtractAll extracts both bodies and all attachment descriptors.
func (c Composite) ExtractAll(payload *gmail.MessagePart) (*Result, error) {
	htmlContent, err := HTML{MaxDepth: c.MaxDepth}.Extract(payload)
	if err != nil {
		return nil, fmt.Errorf("html body: %w", err)
	}
	textContent, err := PlainText{MaxDepth: c.MaxDepth}.Extract(payload)
	if err != nil {
		return nil, fmt.Errorf("plain body: %w", err)
	}
	attachments, err := Attachments(payload, c.MaxDepth)
	if err != nil {
		return nil, err
	}

	return &Result{
		Content: Content{
			Body: choose(c.PreferHTML, textContent.Body, htmlContent.Body),
			Raw:  choose(c.PreferHTML, textContent.Raw, htmlContent.Raw),
		},
		Text:        textContent,
		HTML:        htmlContent,
		Attachments: attachments,
	}, nil
}

func choose(preferHTML bool, text, html string) string {
	switch {
	case preferHTML && html != "":
		return html
	case text != "":
		return text
	default:
		return text + html
	}
}

// Attachments lists every node carrying both a filename and an attachment
// id, at any depth, in depth-first order.
func Attachments(payload *gmail.MessagePart, maxDepth int) ([]Attachment, error) {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}

	var out []Attachment
	var visit func(part *gmail.MessagePart, depth int) error
	visit = func(part *gmail.MessagePart, depth int) error {
		if part == nil {
			return nil
		}
		if depth > maxDepth {
			return fmt.Errorf("attachments: %w: deeper than %d levels", ErrTooDeep, maxDepth)
		}
		if part.Filename != "" && part.Body != nil && part.Body.AttachmentId != "" {
			out = append(out, Attachment{
				Filename:     part.Filename,
				AttachmentID: part.Body.AttachmentId,
				MimeType:     part.MimeType,
				PartID:       part.PartId,
				Size:         part.Body.Size,
			})
		}
		for _, child := range part.Parts {
			if err := visit(child, depth+1); err != nil {
				return err
			}
		}
		return nil
	}

	if err := visit(payload, 0); err != nil {
		return nil, err
	}
	return out, nil
}
