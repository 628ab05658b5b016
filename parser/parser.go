// Package parser turns Gmail API messages into normalized, classified
// records.
package parser

import (
	"time"

	"github.com/bassamadnan/rfimail/body"
	"github.com/bassamadnan/rfimail/subject"
	"google.golang.org/api/gmail/v1"
)

// Options tune body extraction.
type Options struct {
	// PreferHTML picks the HTML body over the plain-text one when both exist.
	PreferHTML bool
	// MaxDepth caps payload nesting. Zero means body.DefaultMaxDepth.
	MaxDepth int
}

// Parser holds only read-only configuration, so one Parser can be reused
// for any number of messages and shared between goroutines.
type Parser struct {
	classifier *subject.Classifier
	extractor  body.Composite
}

// New returns a Parser classifying subjects with classifier.
func New(classifier *subject.Classifier, opts Options) *Parser {
	return &Parser{
		classifier: classifier,
		extractor:  body.Composite{PreferHTML: opts.PreferHTML, MaxDepth: opts.MaxDepth},
	}
}

// Parse normalizes msg. Any failure is a *MalformedInputError; a subject
// that matches nothing is not a failure.
func (p *Parser) Parse(msg *gmail.Message) (*Message, error) {
	if msg == nil {
		return nil, &MalformedInputError{Err: ErrNilMessage}
	}
	if msg.Payload == nil {
		return nil, &MalformedInputError{MessageID: msg.Id, Err: ErrMissingPayload}
	}

	h := parseHeaders(msg.Payload.Headers)

	extracted, err := p.extractor.ExtractAll(msg.Payload)
	if err != nil {
		return nil, &MalformedInputError{MessageID: msg.Id, Err: err}
	}

	// Gmail's receive time beats the sender's clock.
	date := h.date
	if msg.InternalDate > 0 {
		date = time.UnixMilli(msg.InternalDate).UTC()
	}

	return &Message{
		parsed:       true,
		id:           msg.Id,
		threadID:     msg.ThreadId,
		mimeType:     msg.Payload.MimeType,
		rawSubject:   h.subject,
		from:         h.from,
		to:           h.to,
		cc:           h.cc,
		date:         date,
		internalDate: msg.InternalDate,
		xMailer:      h.xMailer,
		body:         extracted.Body,
		rawBody:      extracted.Raw,
		attachments:  extracted.Attachments,
		subject:      p.classifier.Classify(h.subject),
	}, nil
}
