package tui

import (
	"fmt"
	"strings"

	"github.com/bassamadnan/rfimail/parser"
	"github.com/charmbracelet/lipgloss"
)

func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing terminal size..."
	}

	contentHeight := max(m.height-statusBarHeight, 0)

	var main string
	switch m.currentView {
	case viewLoading:
		main = lipgloss.Place(m.width, contentHeight, lipgloss.Center, lipgloss.Center, m.statusBarText)
	case viewDashboard:
		listWidth, previewWidth := m.paneWidths()
		main = lipgloss.JoinHorizontal(lipgloss.Top,
			m.renderList(listWidth, contentHeight),
			m.renderPreview(previewWidth, contentHeight))
	case viewFocused:
		main = m.renderFocused(m.width, contentHeight)
	}

	return AppStyle.Render(lipgloss.JoinVertical(lipgloss.Left, main, m.renderStatusBar()))
}

// paneWidths splits the screen roughly 35/65, giving each pane its minimum
// when there is room for both.
func (m Model) paneWidths() (list, preview int) {
	if m.width < minListPaneWidth+minPreviewPaneWidth {
		if m.width < minListPaneWidth {
			return m.width, 0
		}
		return minListPaneWidth, m.width - minListPaneWidth
	}
	list = max(int(float64(m.width)*0.35), minListPaneWidth)
	list = min(list, m.width-minPreviewPaneWidth)
	return list, m.width - list
}

func (m Model) renderList(paneWidth, paneHeight int) string {
	title := "Records"
	if m.typeFilter != "" {
		title = fmt.Sprintf("Records: %s", m.typeFilter)
	}
	renderedTitle := ListTitleStyle.Render(title)

	textWidth := max(paneWidth-ListItemStyle.GetHorizontalPadding()-4, 10)
	fit := max(paneHeight-lipgloss.Height(renderedTitle), 0) / listItemHeight

	start := min(max(m.viewportTop, 0), len(m.visible))
	end := min(start+fit, len(m.visible))

	var items []string
	if paneWidth > 0 && paneHeight > 0 {
		now := m.opts.Now()
		for i := start; i < end; i++ {
			items = append(items, formatListItem(m.visible[i], i == m.selectedIdx, textWidth, now))
		}
	}

	body := lipgloss.JoinVertical(lipgloss.Left, renderedTitle, strings.Join(items, "\n"))
	return ListStyle.Width(paneWidth).Height(paneHeight).Render(body)
}

// recordHeaders renders the header block shown above a body.
func recordHeaders(rec parser.Record, width int, full bool) string {
	lines := []string{headerLine("From", truncate(rec.From, width))}
	if full {
		lines = append(lines, headerLine("To", strings.Join(rec.To, ", ")))
		if len(rec.Cc) > 0 {
			lines = append(lines, headerLine("Cc", strings.Join(rec.Cc, ", ")))
		}
	}
	lines = append(lines,
		headerLine("Date", formatDateLong(rec.Date)),
		headerLine("Subject", truncate(displaySubject(rec), width)),
		headerLine("Class", classification(rec)),
	)
	if full {
		for _, a := range rec.Attachments {
			lines = append(lines, headerLine("Attachment", a.Filename))
		}
	} else if n := len(rec.Attachments); n > 0 {
		lines = append(lines, DimStyle.Render(fmt.Sprintf("%d attachment(s)", n)))
	}
	lines = append(lines, strings.Repeat(BoxHorizontal, max(width/2, 1)))
	return strings.Join(lines, "\n")
}

func (m Model) renderPreview(paneWidth, paneHeight int) string {
	if paneWidth <= 0 || paneHeight <= 0 {
		return ""
	}
	innerWidth := paneWidth - ContentBoxStyle.GetHorizontalPadding()
	maxContent := max(paneHeight-lipgloss.Height(TitleStyle.Render(" "))-ContentBoxStyle.GetVerticalPadding(), 0)

	rec, ok := m.selected()
	if !ok {
		welcome := lipgloss.NewStyle().Width(innerWidth).MaxHeight(maxContent).Padding(1).
			Render("[rfimail]\n\nNo record selected or the list is empty.")
		return ContentBoxStyle.Width(paneWidth).Height(paneHeight).Render(
			lipgloss.JoinVertical(lipgloss.Top, TitleStyle.Render("Home"), welcome))
	}

	title := TitleStyle.Render("Preview: " + truncate(displaySubject(rec), paneWidth-TitleStyle.GetHorizontalPadding()-12))
	headers := recordHeaders(rec, paneWidth-12, false)

	lines := bodyLines(rec.Body)
	bodyHeight := max(maxContent-lipgloss.Height(headers)-BodyStyle.GetMarginTop(), 0)
	start := m.previewScrollPos
	if bodyHeight > 0 && len(lines) > bodyHeight {
		start = min(start, len(lines)-bodyHeight)
	}
	start = min(max(start, 0), len(lines))
	end := min(start+bodyHeight, len(lines))

	content := lipgloss.NewStyle().Width(innerWidth).MaxHeight(maxContent).Render(
		lipgloss.JoinVertical(lipgloss.Left, headers, BodyStyle.Render(strings.Join(lines[start:end], "\n"))))
	return ContentBoxStyle.Width(paneWidth).Height(paneHeight).Render(
		lipgloss.JoinVertical(lipgloss.Top, title, content))
}

func (m Model) renderFocused(paneWidth, paneHeight int) string {
	if paneWidth <= 0 || paneHeight <= 0 {
		return ""
	}
	innerWidth := paneWidth - ContentBoxStyle.GetHorizontalPadding()
	maxContent := max(paneHeight-lipgloss.Height(TitleStyle.Render(" "))-ContentBoxStyle.GetVerticalPadding(), 0)

	rec, ok := m.selected()
	if !ok {
		return ContentBoxStyle.Width(paneWidth).Height(paneHeight).Render(
			lipgloss.JoinVertical(lipgloss.Top, TitleStyle.Render("Error"),
				lipgloss.NewStyle().Width(innerWidth).Padding(1).Render("No record selected.")))
	}

	title := TitleStyle.Render("Full View: " + truncate(displaySubject(rec), paneWidth-TitleStyle.GetHorizontalPadding()-15))
	content := lipgloss.NewStyle().Width(innerWidth).MaxHeight(maxContent).Render(
		lipgloss.JoinVertical(lipgloss.Left,
			recordHeaders(rec, innerWidth, true),
			BodyStyle.Render(strings.Join(bodyLines(rec.Body), "\n"))))
	return ContentBoxStyle.Width(paneWidth).Height(paneHeight).Render(
		lipgloss.JoinVertical(lipgloss.Top, title, content))
}

func (m Model) renderStatusBar() string {
	style := StatusBarNormalStyle
	if m.statusIsError {
		style = StatusBarErrorStyle
	} else if m.statusIsTemp {
		style = StatusBarSuccessStyle
	}
	return style.Width(m.width).Render(truncate(m.statusBarText, m.width))
}
