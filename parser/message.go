package parser

import (
	"time"

	"github.com/bassamadnan/rfimail/body"
	"github.com/bassamadnan/rfimail/subject"
)

// Message is a normalized, classified email. It is only ever produced by
// Parser.Parse and never changes afterwards. Calling any accessor on a zero
// Message panics with ErrNotParsed.
type Message struct {
	parsed bool

	id           string
	threadID     string
	mimeType     string
	rawSubject   string
	from         string
	to           []string
	cc           []string
	date         time.Time
	xMailer      string
	body         string
	rawBody      string
	attachments  []body.Attachment
	subject      subject.Result
	internalDate int64
}

func (m *Message) check() {
	if m == nil || !m.parsed {
		panic(ErrNotParsed)
	}
}

func (m *Message) ID() string       { m.check(); return m.id }
func (m *Message) ThreadID() string { m.check(); return m.threadID }
func (m *Message) MimeType() string { m.check(); return m.mimeType }

// Subject is the subject with reply and forward prefixes removed.
func (m *Message) Subject() string { m.check(); return m.subject.Subject }

// RawSubject is the Subject header as received.
func (m *Message) RawSubject() string { m.check(); return m.rawSubject }

// From is the sender address. It is "Unknown" when the message had no From
// header and empty when the header held no address.
func (m *Message) From() string { m.check(); return m.from }

// To returns the distinct recipient addresses. Their order carries no
// meaning.
func (m *Message) To() []string { m.check(); return append([]string(nil), m.to...) }

// Cc returns the distinct carbon copy addresses. Their order carries no
// meaning.
func (m *Message) Cc() []string { m.check(); return append([]string(nil), m.cc...) }

// Date is the provider's internal timestamp, or the Date header when the
// provider did not set one.
func (m *Message) Date() time.Time { m.check(); return m.date }

func (m *Message) InternalDate() int64 { m.check(); return m.internalDate }
func (m *Message) XMailer() string     { m.check(); return m.xMailer }

// Body is the text the sender wrote, without quoted history or signature.
func (m *Message) Body() string { m.check(); return m.body }

// RawBody is the extracted text before reply filtering.
func (m *Message) RawBody() string { m.check(); return m.rawBody }

func (m *Message) Attachments() []body.Attachment {
	m.check()
	return append([]body.Attachment(nil), m.attachments...)
}

func (m *Message) ThreadType() string { m.check(); return m.subject.ThreadType }
func (m *Message) JobName() string    { m.check(); return m.subject.JobName }

// Classification returns the full subject classification including scores.
func (m *Message) Classification() subject.Result { m.check(); return m.subject }

// Record is the flat, serializable form of a Message.
type Record struct {
	MessageID         string            `json:"messageId"`
	ThreadID          string            `json:"threadId"`
	MimeType          string            `json:"mimeType"`
	Subject           string            `json:"subject"`
	RawSubject        string            `json:"rawSubject"`
	From              string            `json:"from"`
	To                []string          `json:"to"`
	Cc                []string          `json:"cc"`
	Date              time.Time         `json:"date"`
	XMailer           string            `json:"xMailer"`
	Body              string            `json:"body"`
	DebugUnparsedBody string            `json:"debugUnparsedBody"`
	ThreadType        string            `json:"threadType"`
	JobName           string            `json:"jobName"`
	ThreadTypeScore   int               `json:"threadTypeScore"`
	JobNameScore      int               `json:"jobNameScore"`
	Attachments       []body.Attachment `json:"attachments"`
}

// Record flattens m.
func (m *Message) Record() Record {
	m.check()
	return Record{
		MessageID:         m.id,
		ThreadID:          m.threadID,
		MimeType:          m.mimeType,
		Subject:           m.subject.Subject,
		RawSubject:        m.rawSubject,
		From:              m.from,
		To:                m.To(),
		Cc:                m.Cc(),
		Date:              m.date,
		XMailer:           m.xMailer,
		Body:              m.body,
		DebugUnparsedBody: m.rawBody,
		ThreadType:        m.subject.ThreadType,
		JobName:           m.subject.JobName,
		ThreadTypeScore:   m.subject.ThreadTypeScore,
		JobNameScore:      m.subject.JobNameScore,
		Attachments:       m.Attachments(),
	}
}
