package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/bassamadnan/rfimail/parser"
	"github.com/bassamadnan/rfimail/subject"
	"github.com/charmbracelet/lipgloss"
)

// truncate shortens s to at most maxLen runes, ending in "..." when cut.
func truncate(s string, maxLen int) string {
	rs := []rune(s)
	if len(rs) <= maxLen {
		return s
	}
	if maxLen <= 0 {
		return ""
	}
	if maxLen < 3 {
		return string(rs[:maxLen])
	}
	return string(rs[:maxLen-3]) + "..."
}

// formatListDate shows the time for today's records and the day otherwise.
func formatListDate(t, now time.Time) string {
	if t.IsZero() {
		return "???"
	}
	t, now = t.Local(), now.Local()
	if t.Year() == now.Year() && t.YearDay() == now.YearDay() {
		return t.Format("15:04")
	}
	return t.Format("Jan02")
}

// senderName drops the address part of "Name <addr>".
func senderName(from string) string {
	if idx := strings.Index(from, "<"); idx > 0 {
		return strings.TrimSpace(from[:idx])
	}
	return from
}

func badge(value string, style lipgloss.Style) string {
	if value == "" || value == subject.Unknown {
		return UnknownBadgeStyle.Render(subject.Unknown)
	}
	return style.Render(value)
}

// classification renders the thread type and job name badges.
func classification(rec parser.Record) string {
	return badge(rec.ThreadType, ThreadTypeBadgeStyle) + " " + badge(rec.JobName, JobNameBadgeStyle)
}

func displaySubject(rec parser.Record) string {
	if rec.Subject == "" || rec.Subject == subject.Unknown {
		return "(No Subject)"
	}
	return rec.Subject
}

// formatListItem renders one record as a box of listItemHeight lines.
// textWidth is the width of the text between the vertical bars.
func formatListItem(rec parser.Record, isSelected bool, textWidth int, now time.Time) string {
	boxCharStyle, subjectStyle, secondaryStyle, blockStyle := NormalBoxCharStyle, NormalSubjectStyle, NormalSecondaryTextStyle, ListItemStyle
	if isSelected {
		boxCharStyle, subjectStyle, secondaryStyle, blockStyle = SelectedBoxCharStyle, SelectedSubjectStyle, SelectedSecondaryTextStyle, SelectedListItemStyle
	}

	pad := func(s string) string {
		return fmt.Sprintf("%-*s", textWidth, truncate(s, textWidth))
	}

	from := senderName(rec.From)
	if from == "" || from == subject.Unknown {
		from = "(Unknown Sender)"
	}
	dateStr := formatListDate(rec.Date, now)
	fromDate := dateStr
	if maxFrom := textWidth - len(dateStr) - 1; maxFrom >= 1 {
		fromDate = truncate(from, maxFrom) + " " + dateStr
	}

	tag := rec.ThreadType + " / " + rec.JobName

	bar := strings.Repeat(BoxHorizontal, textWidth+2)
	row := func(text string, style lipgloss.Style) string {
		return boxCharStyle.Render(BoxVertical) + " " + style.Render(pad(text)) + " " + boxCharStyle.Render(BoxVertical)
	}
	lines := []string{
		boxCharStyle.Render(BoxTopLeft + bar + BoxTopRight),
		row(displaySubject(rec), subjectStyle),
		row(fromDate, secondaryStyle),
		row(tag, secondaryStyle),
		boxCharStyle.Render(BoxBottomLeft + bar + BoxBottomRight),
	}
	return blockStyle.Render(strings.Join(lines, "\n"))
}

func formatDateLong(t time.Time) string {
	if t.IsZero() {
		return "N/A"
	}
	return t.Local().Format(time.RFC1123Z)
}

func headerLine(key, value string) string {
	return fmt.Sprintf("%s %s", HeaderKeyStyle.Render(key+":"), HeaderValStyle.Render(value))
}

// RenderRecord is the styled, non-interactive form of a record used by the
// parse command.
func RenderRecord(rec parser.Record) string {
	lines := []string{
		TitleStyle.Render(displaySubject(rec)),
		"",
		headerLine("Message", rec.MessageID),
		headerLine("Thread", rec.ThreadID),
		headerLine("From", rec.From),
	}
	if len(rec.To) > 0 {
		lines = append(lines, headerLine("To", strings.Join(rec.To, ", ")))
	}
	if len(rec.Cc) > 0 {
		lines = append(lines, headerLine("Cc", strings.Join(rec.Cc, ", ")))
	}
	lines = append(lines,
		headerLine("Date", formatDateLong(rec.Date)),
		headerLine("Mailer", rec.XMailer),
		headerLine("Class", classification(rec)+DimStyle.Render(fmt.Sprintf("  scores %d/%d", rec.ThreadTypeScore, rec.JobNameScore))),
	)
	for _, a := range rec.Attachments {
		lines = append(lines, headerLine("Attachment", fmt.Sprintf("%s (%s)", a.Filename, a.MimeType)))
	}
	lines = append(lines, BodyStyle.Render(strings.ReplaceAll(rec.Body, "\r\n", "\n")))
	return strings.Join(lines, "\n")
}
