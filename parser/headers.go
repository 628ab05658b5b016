package parser

import (
	"net/textproto"
	"regexp"
	"strings"
	"time"

	"google.golang.org/api/gmail/v1"
)

const unknownHeader = "Unknown"

var addressRE = regexp.MustCompile(`[a-zA-Z0-9+._-]+@[a-zA-Z0-9._-]+\.[a-zA-Z0-9_-]+`)

// Layouts seen in the wild, tried in order.
var dateLayouts = []string{
	time.RFC1123Z,
	"Mon, 2 Jan 2006 15:04:05 -0700 (MST)",
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"2 Jan 2006 15:04:05 -0700",
	time.RFC1123,
	time.RFC822Z,
	time.RFC822,
}

type headers struct {
	subject string
	from    string
	to      []string
	cc      []string
	xMailer string
	date    time.Time
}

func parseHeaders(list []*gmail.MessagePartHeader) headers {
	h := headers{subject: unknownHeader, from: unknownHeader, xMailer: unknownHeader}
	for _, header := range list {
		if header == nil {
			continue
		}
		switch textproto.CanonicalMIMEHeaderKey(header.Name) {
		case "Subject":
			h.subject = header.Value
		case "From":
			h.from = ""
			if addrs := extractAddresses(header.Value); len(addrs) > 0 {
				h.from = addrs[0]
			}
		case "To":
			h.to = extractAddresses(header.Value)
		case "Cc":
			h.cc = extractAddresses(header.Value)
		case "X-Mailer":
			h.xMailer = header.Value
		case "Date":
			if t, ok := parseDate(header.Value); ok {
				h.date = t
			}
		}
	}
	return h
}

// extractAddresses returns the distinct addresses found in value. Display
// names and angle brackets are dropped.
func extractAddresses(value string) []string {
	matches := addressRE.FindAllString(value, -1)
	seen := make(map[string]struct{}, len(matches))
	out := make([]string, 0, len(matches))
	for _, addr := range matches {
		if _, ok := seen[addr]; ok {
			continue
		}
		seen[addr] = struct{}{}
		out = append(out, addr)
	}
	return out
}

func parseDate(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}

	// retry without a trailing zone comment such as " (UTC)"
	if open := strings.LastIndex(value, " ("); open != -1 {
		if end := strings.LastIndex(value, ")"); end > open {
			stripped := strings.TrimSpace(value[:open] + value[end+1:])
			for _, layout := range dateLayouts {
				if t, err := time.Parse(layout, stripped); err == nil {
					return t, true
				}
			}
		}
	}
	return time.Time{}, false
}
