package body

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/gmail/v1"
)

func enc(s string) string {
	return base64.URLEncoding.EncodeToString([]byte(s))
}

func leaf(id, mimeType, text string) *gmail.MessagePart {
	return &gmail.MessagePart{
		PartId:   id,
		MimeType: mimeType,
		Body:     &gmail.MessagePartBody{Data: enc(text), Size: int64(len(text))},
	}
}

func container(id, mimeType string, parts ...*gmail.MessagePart) *gmail.MessagePart {
	return &gmail.MessagePart{
		PartId:   id,
		MimeType: mimeType,
		Body:     &gmail.MessagePartBody{},
		Parts:    parts,
	}
}

func nest(levels int, inner *gmail.MessagePart) *gmail.MessagePart {
	node := inner
	for i := 0; i < levels; i++ {
		node = container("", "multipart/mixed", node)
	}
	return node
}

func TestCompositeBodyAndAttachment(t *testing.T) {
	invoice := &gmail.MessagePart{
		PartId:   "1.0",
		MimeType: "application/pdf",
		Filename: "invoice.pdf",
		Body:     &gmail.MessagePartBody{AttachmentId: "AABB", Size: 2048},
	}
	payload := container("", "multipart/mixed",
		leaf("0", "text/plain", "Hello"),
		container("1", "multipart/mixed", invoice),
	)

	res, err := Composite{}.ExtractAll(payload)
	require.NoError(t, err)

	assert.Equal(t, "Hello", res.Body)
	require.Len(t, res.Attachments, 1)
	assert.Equal(t, Attachment{
		Filename:     "invoice.pdf",
		AttachmentID: "AABB",
		MimeType:     "application/pdf",
		PartID:       "1.0",
		Size:         2048,
	}, res.Attachments[0])
}

func TestHTMLTruncatesQuotedHistory(t *testing.T) {
	payload := leaf("", "text/html",
		`<html><head><title>x</title><style>p{color:red}</style></head>`+
			`<body><p>Reply content here</p><div>From: someone@x.com Sent: Monday</div></body></html>`)

	got, err := HTML{}.Extract(payload)
	require.NoError(t, err)

	assert.Equal(t, "Reply content here ", got.Body)
	assert.Contains(t, got.Raw, "<div>From: someone@x.com Sent: Monday</div>")
}

func TestHTMLWithoutHistory(t *testing.T) {
	got, err := HTML{}.Extract(leaf("", "text/html", "<div>  Just\n  a   note </div><script>alert(1)</script>"))
	require.NoError(t, err)
	assert.Equal(t, "Just a note", got.Body)
}

func TestAttachmentsDeeplyNested(t *testing.T) {
	drawing := &gmail.MessagePart{
		MimeType: "application/pdf",
		Filename: "drawing.pdf",
		Body:     &gmail.MessagePartBody{AttachmentId: "deep-id"},
	}
	payload := nest(5, drawing)

	got, err := Attachments(payload, 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "drawing.pdf", got[0].Filename)
	assert.Equal(t, "deep-id", got[0].AttachmentID)
}

func TestAttachmentsSkipIncompleteNodes(t *testing.T) {
	payload := container("", "multipart/mixed",
		&gmail.MessagePart{Filename: "", Body: &gmail.MessagePartBody{AttachmentId: "no-name"}},
		&gmail.MessagePart{Filename: "inline.png", Body: &gmail.MessagePartBody{}},
		&gmail.MessagePart{Filename: "nobody.txt"},
	)

	got, err := Attachments(payload, 0)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestCompositeBodySelection(t *testing.T) {
	alternative := container("", "multipart/alternative",
		leaf("0", "text/plain", "Plain hello"),
		leaf("1", "text/html", "<p>Html hello</p>"),
	)
	htmlOnly := container("", "multipart/alternative",
		leaf("0", "text/html", "<p>Html only</p>"),
	)

	tests := []struct {
		name       string
		payload    *gmail.MessagePart
		preferHTML bool
		want       string
	}{
		{"plain preferred by default", alternative, false, "Plain hello"},
		{"html when preferred", alternative, true, "Html hello"},
		{"html fallback when no plain", htmlOnly, false, "Html only"},
		{"nothing extractable", container("", "multipart/mixed"), false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Composite{PreferHTML: tt.preferHTML}.Extract(tt.payload)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Body)
		})
	}
}

func TestPlainTextSegmentsReply(t *testing.T) {
	got, err := PlainText{}.Extract(leaf("", "text/plain", "Thanks!\n\n> old message\n> more"))
	require.NoError(t, err)

	assert.Equal(t, "Thanks!", got.Body)
	assert.Equal(t, "Thanks!\n\n> old message\n> more", got.Raw)
}

func TestPlainTextStripsMarkup(t *testing.T) {
	got, err := PlainText{}.Extract(leaf("", "text/plain", "<b>Hi</b> there &amp; welcome"))
	require.NoError(t, err)
	assert.Equal(t, "Hi there & welcome", got.Body)
}

func TestPlainTextJoinsLeaves(t *testing.T) {
	payload := container("", "multipart/mixed",
		leaf("0", "text/plain", "first"),
		container("1", "multipart/mixed", leaf("1.0", "text/plain", "second")),
	)
	got, err := PlainText{}.Extract(payload)
	require.NoError(t, err)
	assert.Equal(t, "first\nsecond", got.Body)
}

func TestPlainTextCharset(t *testing.T) {
	part := &gmail.MessagePart{
		MimeType: "text/plain",
		Headers: []*gmail.MessagePartHeader{
			{Name: "Content-Type", Value: `text/plain; charset="iso-8859-1"`},
		},
		Body: &gmail.MessagePartBody{Data: base64.URLEncoding.EncodeToString([]byte("caf\xe9"))},
	}
	got, err := PlainText{}.Extract(part)
	require.NoError(t, err)
	assert.Equal(t, "café", got.Body)
}

func TestExtractErrors(t *testing.T) {
	t.Run("bad base64", func(t *testing.T) {
		payload := container("", "multipart/mixed", &gmail.MessagePart{
			MimeType: "text/plain",
			Body:     &gmail.MessagePartBody{Data: "@@not base64@@"},
		})
		_, err := Composite{}.ExtractAll(payload)
		assert.ErrorIs(t, err, ErrDecode)
	})

	t.Run("too deep", func(t *testing.T) {
		payload := nest(5, leaf("", "text/plain", "deep"))
		_, err := Composite{MaxDepth: 3}.ExtractAll(payload)
		assert.ErrorIs(t, err, ErrTooDeep)

		res, err := Composite{MaxDepth: 5}.ExtractAll(payload)
		require.NoError(t, err)
		assert.Equal(t, "deep", res.Body)
	})
}

func TestDecodeDataPadding(t *testing.T) {
	for _, data := range []string{"SGk", "SGk=", base64.URLEncoding.EncodeToString([]byte("Hi"))} {
		got, err := decodeData(data)
		require.NoError(t, err)
		assert.Equal(t, "Hi", string(got))
	}
}
