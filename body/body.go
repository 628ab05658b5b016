// Package body walks Gmail payload trees and extracts readable text and
// attachment descriptors from them.
package body

import (
	"errors"
	"fmt"
	"strings"

	"google.golang.org/api/gmail/v1"
)

// DefaultMaxDepth bounds recursion when an extractor has no MaxDepth set.
const DefaultMaxDepth = 64

const (
	mimePlain = "text/plain"
	mimeHTML  = "text/html"
)

var (
	// ErrDecode is returned when a part body is not valid URL-safe base64.
	ErrDecode = errors.New("undecodable body data")
	// ErrTooDeep is returned when a payload nests deeper than MaxDepth.
	ErrTooDeep = errors.New("payload nested too deeply")
)

// Content is the text an extractor pulled out of a payload. Raw holds the
// text as it looked before reply filtering, for debugging.
type Content struct {
	Body string
	Raw  string
}

// Extractor pulls text out of a payload tree. Implementations hold no
// per-call state and may be shared between goroutines.
type Extractor interface {
	Extract(payload *gmail.MessagePart) (Content, error)
}

// leafFunc turns the decoded data of a matching node into (body, raw).
type leafFunc func(part *gmail.MessagePart, data []byte) (string, string, error)

// walk visits every node depth-first and feeds nodes of the given mime type
// that carry inline data to fn.
func walk(payload *gmail.MessagePart, mimeType string, maxDepth int, fn leafFunc) (Content, error) {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}

	var bodies, raws []string
	var visit func(part *gmail.MessagePart, depth int) error
	visit = func(part *gmail.MessagePart, depth int) error {
		if part == nil {
			return nil
		}
		if depth > maxDepth {
			return fmt.Errorf("%w: deeper than %d levels", ErrTooDeep, maxDepth)
		}

		if mediaType(part.MimeType) == mimeType && part.Body != nil && part.Body.Data != "" {
			data, err := decodeData(part.Body.Data)
			if err != nil {
				return fmt.Errorf("part %q: %w", part.PartId, err)
			}
			text, raw, err := fn(part, data)
			if err != nil {
				return fmt.Errorf("part %q: %w", part.PartId, err)
			}
			if text != "" {
				bodies = append(bodies, text)
			}
			if raw != "" {
				raws = append(raws, raw)
			}
		}

		for _, child := range part.Parts {
			if err := visit(child, depth+1); err != nil {
				return err
			}
		}
		return nil
	}

	if err := visit(payload, 0); err != nil {
		return Content{}, err
	}
	return Content{
		Body: strings.Join(bodies, "\n"),
		Raw:  strings.Join(raws, "\n"),
	}, nil
}

func mediaType(mimeType string) string {
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = mimeType[:i]
	}
	return strings.ToLower(strings.TrimSpace(mimeType))
}
