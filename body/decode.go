package body

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/emersion/go-message"
	"github.com/emersion/go-message/charset"
	"golang.org/x/text/encoding/charmap"
	"google.golang.org/api/gmail/v1"
)

func init() {
	// common mail charsets missing from the default index
	charset.RegisterEncoding("windows-1252", charmap.Windows1252)
	charset.RegisterEncoding("cp1252", charmap.Windows1252)
	charset.RegisterEncoding("iso-8859-1", charmap.ISO8859_1)
	charset.RegisterEncoding("iso-8859-15", charmap.ISO8859_15)
}

// decodeData decodes Gmail's URL-safe base64. Padding is optional.
func decodeData(data string) ([]byte, error) {
	b, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(data, "="))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return b, nil
}

// partCharset returns the charset parameter of the part's Content-Type
// header, or "" when there is none.
func partCharset(part *gmail.MessagePart) string {
	for _, h := range part.Headers {
		if h == nil || !strings.EqualFold(h.Name, "Content-Type") {
			continue
		}
		var hdr message.Header
		hdr.Set("Content-Type", h.Value)
		_, params, err := hdr.ContentType()
		if err != nil {
			return ""
		}
		return params["charset"]
	}
	return ""
}

// toUTF8 converts data from the named charset. Unknown charsets are read as
// is and invalid sequences are replaced.
func toUTF8(data []byte, label string) string {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "", "utf-8", "utf8", "us-ascii", "ascii":
	default:
		r, err := charset.Reader(label, bytes.NewReader(data))
		if err == nil {
			if converted, err := io.ReadAll(r); err == nil {
				data = converted
			}
		}
	}
	if utf8.Valid(data) {
		return string(data)
	}
	return strings.ToValidUTF8(string(data), "�")
}
