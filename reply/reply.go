// Package reply splits a plain-text email body into fragments and recovers
// the part the sender actually wrote.
package reply

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	sigRE         = regexp.MustCompile(`^(--|__|-\w)|^Sent from my (\w+\s*){1,3}`)
	quoteHeaderRE = regexp.MustCompile(`^On.*wrote:$`)
	headerRE      = regexp.MustCompile(`^\*?(From|Sent|To|Subject):\*? .+`)
	boundaryRE    = regexp.MustCompile(`^ ?[_-]{7,}`)
)

// Email is a segmented message body.
type Email struct {
	text      string
	fragments []*Fragment
}

// Read segments text into fragments. It never fails; an empty input yields
// a single empty, hidden fragment.
func Read(text string) *Email {
	text = preprocess(text)
	s := &scanner{}

	lines := strings.Split(text, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		s.scanLine(lines[i])
	}
	s.finishFragment()

	// scanning was bottom-up
	for i, j := 0, len(s.fragments)-1; i < j; i, j = i+1, j-1 {
		s.fragments[i], s.fragments[j] = s.fragments[j], s.fragments[i]
	}
	return &Email{text: text, fragments: s.fragments}
}

// ParseReply returns only the visible reply of text.
func ParseReply(text string) string {
	return Read(text).Reply()
}

// Fragments returns the fragments in top-to-bottom order.
func (e *Email) Fragments() []*Fragment {
	out := make([]*Fragment, len(e.fragments))
	copy(out, e.fragments)
	return out
}

// Text returns the body after preprocessing. Joining the raw text of every
// fragment with "\n" yields exactly this string.
func (e *Email) Text() string { return e.text }

// Reply joins the content of fragments that are neither hidden nor quoted.
func (e *Email) Reply() string {
	var parts []string
	for _, f := range e.fragments {
		if f.Hidden || f.Quoted {
			continue
		}
		parts = append(parts, f.Content())
	}
	return strings.Join(parts, "\n")
}

type scanner struct {
	fragment     *Fragment
	fragments    []*Fragment
	foundVisible bool
}

func (s *scanner) scanLine(line string) {
	trimmed := strings.TrimSpace(line)
	isQuoteHeader := quoteHeaderRE.MatchString(line)
	isQuoted := strings.HasPrefix(line, ">")
	isHeader := isQuoteHeader || headerRE.MatchString(line)
	blank := trimmed == ""

	if s.fragment != nil && blank {
		// lines are collected in reverse, so the last appended line is the
		// topmost one seen so far
		last := s.fragment.lines[len(s.fragment.lines)-1]
		if sigRE.MatchString(strings.TrimSpace(last)) {
			s.fragment.Signature = true
			s.finishFragment()
		}
	}

	if s.fragment != nil &&
		((s.fragment.Headers == isHeader && s.fragment.Quoted == isQuoted) ||
			(s.fragment.Quoted && (isQuoteHeader || blank))) {
		s.fragment.lines = append(s.fragment.lines, line)
		return
	}

	s.finishFragment()
	s.fragment = &Fragment{Quoted: isQuoted, Headers: isHeader, lines: []string{line}}
}

func (s *scanner) finishFragment() {
	f := s.fragment
	if f == nil {
		return
	}
	s.fragment = nil
	f.finish()

	if f.Headers {
		// everything below a header block belongs to the quoted history
		s.foundVisible = false
		for _, prev := range s.fragments {
			prev.Hidden = true
		}
	}

	switch {
	case s.foundVisible:
		f.Hidden = true
	case f.Quoted || f.Headers || f.Signature || strings.TrimSpace(f.Content()) == "":
		f.Hidden = true
	default:
		s.foundVisible = true
	}
	s.fragments = append(s.fragments, f)
}

func preprocess(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = collapseQuoteHeader(text)
	return splitGluedBoundaries(text)
}

// collapseQuoteHeader joins a quote header that was wrapped over several
// lines ("On Mon, ... \n ... wrote:") into one line. Only the innermost
// header, i.e. the last "On " that still has a "wrote:" after it, is joined.
func collapseQuoteHeader(text string) string {
	lastWrote := strings.LastIndex(text, "wrote:")
	if lastWrote < 0 {
		return text
	}

	start := -1
	for i := 0; i+2 < len(text); i++ {
		if text[i] != 'O' || text[i+1] != 'n' || !isSpace(text[i+2]) {
			continue
		}
		if i+4 > lastWrote {
			break
		}
		start = i
	}
	if start < 0 {
		return text
	}

	end := strings.Index(text[start+4:], "wrote:")
	if end < 0 {
		return text
	}
	end += start + 4 + len("wrote:")

	header := strings.ReplaceAll(text[start:end], "\n", "")
	return text[:start] + header + text[end:]
}

// splitGluedBoundaries puts a blank line between a non-empty line and the
// signature boundary ("-------" or "_______") directly beneath it, which
// Outlook glues to the reply.
func splitGluedBoundaries(text string) string {
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	for i, line := range lines {
		if i > 0 && lines[i-1] != "" && boundaryRE.MatchString(line) {
			out = append(out, "")
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}

func isSpace(b byte) bool {
	return b < unicode.MaxASCII && unicode.IsSpace(rune(b))
}
