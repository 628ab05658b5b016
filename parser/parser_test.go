package parser

import (
	"encoding/json"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/bassamadnan/rfimail/body"
	"github.com/bassamadnan/rfimail/subject"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/gmail/v1"
)

func loadFixtures(t *testing.T) map[string]*gmail.Message {
	t.Helper()
	data, err := os.ReadFile("testdata/messages.json")
	require.NoError(t, err)

	var file struct {
		Messages []*gmail.Message `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(data, &file))

	out := make(map[string]*gmail.Message, len(file.Messages))
	for _, m := range file.Messages {
		out[m.Id] = m
	}
	return out
}

func newTestParser(t *testing.T) *Parser {
	t.Helper()
	c, err := subject.NewClassifier(subject.Vocabulary{
		ThreadTypes: []string{"RFI", "Submittal"},
		JobNames:    []string{"TestJob", "Site B"},
	}, 50)
	require.NoError(t, err)
	return New(c, Options{})
}

func TestParseMultipartMessage(t *testing.T) {
	msg := loadFixtures(t)["msg-rfi"]
	require.NotNil(t, msg)

	got, err := newTestParser(t).Parse(msg)
	require.NoError(t, err)

	assert.Equal(t, "msg-rfi", got.ID())
	assert.Equal(t, "thread-1", got.ThreadID())
	assert.Equal(t, "multipart/mixed", got.MimeType())
	assert.Equal(t, "RFI TestJob Urgent Electrical Question", got.Subject())
	assert.Equal(t, "RE: RFI TestJob Urgent Electrical Question", got.RawSubject())
	assert.Equal(t, "jane@example.com", got.From())
	assert.ElementsMatch(t, []string{"bob@example.com", "alice@example.com"}, got.To())
	assert.ElementsMatch(t, []string{"pm@example.com"}, got.Cc())
	assert.Equal(t, "Microsoft Outlook 16.0", got.XMailer())
	assert.True(t, time.Date(2006, 1, 2, 22, 4, 5, 0, time.UTC).Equal(got.Date()))

	assert.Equal(t, "Please see the panel schedule question below.\n\nThanks,\nJane", got.Body())
	assert.Contains(t, got.RawBody(), "> Which panel feeds the east wing?")

	assert.Equal(t, []body.Attachment{{
		Filename:     "panel-schedule.pdf",
		AttachmentID: "ANGjdJ8panel",
		MimeType:     "application/pdf",
		PartID:       "1",
		Size:         52311,
	}}, got.Attachments())

	assert.Equal(t, "RFI", got.ThreadType())
	assert.Equal(t, "TestJob", got.JobName())
}

func TestParseSinglePartDefaults(t *testing.T) {
	got, err := newTestParser(t).Parse(loadFixtures(t)["msg-plain"])
	require.NoError(t, err)

	assert.Equal(t, "text/plain", got.MimeType())
	assert.Equal(t, "Unknown", got.From())
	assert.Empty(t, got.To())
	assert.Empty(t, got.Cc())
	assert.Equal(t, "Unknown", got.XMailer())
	assert.Equal(t, time.UnixMilli(1700000000000).UTC(), got.Date())
	assert.Equal(t, "Hello there", got.Body())
	assert.Empty(t, got.Attachments())
	assert.Equal(t, subject.Unknown, got.ThreadType())
	assert.Equal(t, subject.Unknown, got.JobName())
}

func TestParseMissingSubject(t *testing.T) {
	msg := &gmail.Message{
		Id: "m1",
		Payload: &gmail.MessagePart{
			MimeType: "text/plain",
			Headers:  []*gmail.MessagePartHeader{{Name: "From", Value: "no address here"}},
			Body:     &gmail.MessagePartBody{},
		},
	}
	got, err := newTestParser(t).Parse(msg)
	require.NoError(t, err)

	assert.Equal(t, "Unknown", got.RawSubject())
	assert.Equal(t, "", got.From())
	assert.Equal(t, "", got.Body())
	assert.True(t, got.Date().IsZero())
}

func TestParseMalformed(t *testing.T) {
	p := newTestParser(t)

	t.Run("nil message", func(t *testing.T) {
		_, err := p.Parse(nil)
		assert.True(t, IsMalformedInput(err))
		assert.ErrorIs(t, err, ErrNilMessage)
	})

	t.Run("missing payload", func(t *testing.T) {
		_, err := p.Parse(loadFixtures(t)["msg-nopayload"])
		require.Error(t, err)
		assert.True(t, IsMalformedInput(err))
		assert.ErrorIs(t, err, ErrMissingPayload)

		var malformed *MalformedInputError
		require.True(t, errors.As(err, &malformed))
		assert.Equal(t, "msg-nopayload", malformed.MessageID)
	})

	t.Run("undecodable body", func(t *testing.T) {
		msg := &gmail.Message{
			Id: "bad",
			Payload: &gmail.MessagePart{
				MimeType: "text/plain",
				Body:     &gmail.MessagePartBody{Data: "!!!"},
			},
		}
		_, err := p.Parse(msg)
		assert.True(t, IsMalformedInput(err))
		assert.ErrorIs(t, err, body.ErrDecode)
	})
}

func TestParseIsIdempotent(t *testing.T) {
	msg := loadFixtures(t)["msg-rfi"]

	first, err := newTestParser(t).Parse(msg)
	require.NoError(t, err)
	second, err := newTestParser(t).Parse(msg)
	require.NoError(t, err)

	assert.Equal(t, first.Record(), second.Record())
}

func TestParserSharedAcrossGoroutines(t *testing.T) {
	p := newTestParser(t)
	fixtures := loadFixtures(t)
	want, err := p.Parse(fixtures["msg-rfi"])
	require.NoError(t, err)

	var wg sync.WaitGroup
	records := make([]Record, 8)
	for i := range records {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			m, err := p.Parse(fixtures["msg-rfi"])
			if err == nil {
				records[i] = m.Record()
			}
		}(i)
	}
	wg.Wait()

	for _, rec := range records {
		assert.Equal(t, want.Record(), rec)
	}
}

func TestZeroMessagePanics(t *testing.T) {
	var m Message
	assert.PanicsWithValue(t, ErrNotParsed, func() { _ = m.Body() })
	assert.PanicsWithValue(t, ErrNotParsed, func() { _ = m.Record() })

	var nilMsg *Message
	assert.PanicsWithValue(t, ErrNotParsed, func() { _ = nilMsg.ID() })
}

func TestExtractAddresses(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"Jane Doe <jane@example.com>", []string{"jane@example.com"}},
		{"a@x.com, b@y.org, a@x.com", []string{"a@x.com", "b@y.org"}},
		{`"Smith, J" <j.smith+rfi@corp.co.uk>`, []string{"j.smith+rfi@corp.co.uk"}},
		{"undisclosed-recipients:;", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.ElementsMatch(t, tt.want, extractAddresses(tt.in))
		})
	}
}

func TestParsePrefersInternalDate(t *testing.T) {
	header := time.Date(2024, 3, 7, 8, 0, 0, 0, time.UTC)
	received := time.Date(2024, 3, 7, 7, 0, 0, 0, time.UTC)

	tests := []struct {
		name         string
		internalDate int64
		want         time.Time
	}{
		{name: "internal date set", internalDate: received.UnixMilli(), want: received},
		{name: "internal date missing", internalDate: 0, want: header},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := &gmail.Message{
				Id:           "m1",
				InternalDate: tt.internalDate,
				Payload: &gmail.MessagePart{
					MimeType: "text/plain",
					Headers: []*gmail.MessagePartHeader{
						{Name: "Date", Value: "Thu, 7 Mar 2024 08:00:00 +0000"},
					},
					Body: &gmail.MessagePartBody{},
				},
			}
			got, err := newTestParser(t).Parse(msg)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got.Date()), "got %v", got.Date())
		})
	}
}

func TestParseDate(t *testing.T) {
	want := time.Date(2024, 3, 5, 14, 30, 0, 0, time.UTC)
	for _, value := range []string{
		"Tue, 05 Mar 2024 14:30:00 +0000",
		"Tue, 5 Mar 2024 14:30:00 +0000",
		"Tue, 5 Mar 2024 14:30:00 +0000 (UTC)",
		"5 Mar 2024 14:30:00 +0000",
	} {
		got, ok := parseDate(value)
		require.True(t, ok, value)
		assert.True(t, want.Equal(got), value)
	}

	_, ok := parseDate("yesterday")
	assert.False(t, ok)
}
