// Package eml converts RFC 822 messages into the Gmail API message shape so
// that offline mail goes through the same parser as Gmail mail.
package eml

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
	"google.golang.org/api/gmail/v1"
)

// Options override identifiers the converter would otherwise derive from
// the message headers.
type Options struct {
	// ID replaces the Message-Id based id, e.g. with an IMAP UID.
	ID string
	// ThreadID replaces the References based thread id.
	ThreadID string
	LabelIDs []string
}

// ConvertFile reads and converts the .eml file at path.
func ConvertFile(path string, opts Options) (*gmail.Message, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open eml: %w", err)
	}
	defer f.Close()
	return Convert(f, opts)
}

// Convert reads one message from r. Text parts are decoded to UTF-8 and
// re-encoded as URL-safe base64; parts with a filename become attachments
// that carry an id but no inline data, the way Gmail returns them.
func Convert(r io.Reader, opts Options) (*gmail.Message, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read message: %w", err)
	}

	entity, err := message.Read(bytes.NewReader(raw))
	if err != nil && !message.IsUnknownCharset(err) && !message.IsUnknownEncoding(err) {
		return nil, fmt.Errorf("parse message: %w", err)
	}

	payload, err := convertEntity(entity, "")
	if err != nil {
		return nil, err
	}

	h := mail.Header{Header: entity.Header}
	msg := &gmail.Message{
		Id:           opts.ID,
		ThreadId:     opts.ThreadID,
		LabelIds:     opts.LabelIDs,
		Payload:      payload,
		SizeEstimate: int64(len(raw)),
	}

	if msg.Id == "" {
		msg.Id = messageID(h, raw)
	}
	if msg.ThreadId == "" {
		msg.ThreadId = threadID(h, msg.Id)
	}
	if date, err := h.Date(); err == nil && !date.IsZero() {
		msg.InternalDate = date.UnixMilli()
	}
	return msg, nil
}

func convertEntity(e *message.Entity, partID string) (*gmail.MessagePart, error) {
	mediaType, params, _ := e.Header.ContentType()
	if mediaType == "" {
		mediaType = "text/plain"
	}

	// the body reader already yields UTF-8, so say so in the copied headers
	if strings.HasPrefix(mediaType, "text/") && params["charset"] != "" {
		params["charset"] = "utf-8"
		e.Header.SetContentType(mediaType, params)
	}

	part := &gmail.MessagePart{
		PartId:   partID,
		MimeType: mediaType,
		Headers:  convertHeaders(e.Header),
		Body:     &gmail.MessagePartBody{},
	}

	if mr := e.MultipartReader(); mr != nil {
		for i := 0; ; i++ {
			child, err := mr.NextPart()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil && !message.IsUnknownCharset(err) && !message.IsUnknownEncoding(err) {
				return nil, fmt.Errorf("read part %s: %w", childID(partID, i), err)
			}
			converted, err := convertEntity(child, childID(partID, i))
			if err != nil {
				return nil, err
			}
			part.Parts = append(part.Parts, converted)
		}
		return part, nil
	}

	data, err := io.ReadAll(e.Body)
	if err != nil {
		return nil, fmt.Errorf("read part %q body: %w", partID, err)
	}
	part.Body.Size = int64(len(data))

	ah := mail.AttachmentHeader{Header: e.Header}
	if filename, _ := ah.Filename(); filename != "" {
		part.Filename = filename
		part.Body.AttachmentId = "part-" + partID
		return part, nil
	}
	part.Body.Data = base64.URLEncoding.EncodeToString(data)
	return part, nil
}

func convertHeaders(h message.Header) []*gmail.MessagePartHeader {
	var out []*gmail.MessagePartHeader
	fields := h.Fields()
	for fields.Next() {
		value, err := fields.Text()
		if err != nil {
			value = fields.Value()
		}
		out = append(out, &gmail.MessagePartHeader{Name: fields.Key(), Value: value})
	}
	return out
}

func childID(parent string, i int) string {
	if parent == "" {
		return strconv.Itoa(i)
	}
	return parent + "." + strconv.Itoa(i)
}

// messageID uses the Message-Id header and falls back to a content hash so
// the same file always gets the same id.
func messageID(h mail.Header, raw []byte) string {
	if id, err := h.MessageID(); err == nil && id != "" {
		return id
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:16])
}

// threadID is the first id in References, then In-Reply-To, then the
// message itself.
func threadID(h mail.Header, id string) string {
	for _, key := range []string{"References", "In-Reply-To"} {
		if ids, err := h.MsgIDList(key); err == nil && len(ids) > 0 {
			return ids[0]
		}
	}
	return id
}
