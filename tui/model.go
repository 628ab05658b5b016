// Package tui is the terminal dashboard for records arriving from the
// ingest monitor.
package tui

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/bassamadnan/rfimail/parser"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
)

type viewState int

const (
	viewLoading viewState = iota
	viewDashboard
	viewFocused
)

const (
	listItemHeight      = 5
	minListPaneWidth    = 30
	minPreviewPaneWidth = 40
	statusBarHeight     = 1
	loadingText         = "Waiting for the first poll..."
)

// Options configure the dashboard.
type Options struct {
	// Source is shown in the status bar.
	Source       string
	PollInterval time.Duration
	Logger       *log.Logger
	// Now is the clock. Defaults to time.Now.
	Now func() time.Time
}

type Model struct {
	records <-chan parser.Record
	opts    Options
	logger  *log.Logger

	all     []parser.Record
	visible []parser.Record
	// typeFilter is "" for every record or one thread type
	typeFilter string

	selectedIdx      int
	viewportTop      int
	previewScrollPos int

	currentView viewState

	width, height int
	statusBarText string
	statusIsError bool
	statusIsTemp  bool

	monitorDone bool
}

// NewModel returns a dashboard fed by records. The channel's owner closes
// it when monitoring stops.
func NewModel(records <-chan parser.Record, opts Options) Model {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return Model{
		records:       records,
		opts:          opts,
		logger:        logger,
		currentView:   viewLoading,
		statusBarText: loadingText,
	}
}

func (m Model) Init() tea.Cmd {
	m.logger.Debug("Dashboard started", "source", m.opts.Source)
	return tea.Batch(
		waitForRecordCmd(m.records),
		statusTickCmd(time.Second),
	)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.ensureSelectedVisible()
		if m.currentView == viewLoading && (len(m.all) > 0 || m.monitorDone) {
			m.currentView = viewDashboard
			m.setStandardStatus()
		}

	case tea.KeyMsg:
		if key := msg.String(); key == "ctrl+c" || key == "q" {
			m.updateStatusBar("Quitting...")
			return m, tea.Quit
		}
		switch m.currentView {
		case viewDashboard:
			m.handleDashboardKey(msg.String())
		case viewFocused:
			if msg.String() == "esc" {
				m.currentView = viewDashboard
				m.setStandardStatus()
			}
		}

	case NewRecordMsg:
		rec := parser.Record(msg)
		if m.addRecord(rec) && m.currentView != viewLoading {
			m.showTemporaryStatus(fmt.Sprintf("New %s: %s", rec.ThreadType, truncate(displaySubject(rec), 30)), 4*time.Second, &cmds)
		}
		if m.currentView == viewLoading {
			m.currentView = viewDashboard
			m.setStandardStatus()
		}
		cmds = append(cmds, waitForRecordCmd(m.records))

	case MonitorStoppedMsg:
		m.monitorDone = true
		m.logger.Info("Monitor channel closed")
		if m.currentView == viewLoading {
			m.currentView = viewDashboard
		}
		if !m.statusIsTemp {
			m.setStandardStatus()
		}

	case ErrorMsg:
		m.logger.Error("Dashboard error", "error", msg.Err)
		m.updateStatusError(fmt.Sprintf("Error: %v", msg.Err))

	case StatusTickMsg:
		if !m.statusIsTemp && !m.statusIsError && m.currentView != viewLoading {
			m.setStandardStatus()
		}
		cmds = append(cmds, statusTickCmd(time.Second))

	case clearTempStatusMsg:
		if m.statusIsTemp {
			m.statusIsTemp = false
			m.setStandardStatus()
		}
	}

	return m, tea.Batch(cmds...)
}

func (m *Model) handleDashboardKey(key string) {
	switch key {
	case "up", "k":
		if m.selectedIdx > 0 {
			m.selectedIdx--
			m.previewScrollPos = 0
			m.ensureSelectedVisible()
		}
	case "down", "j":
		if m.selectedIdx < len(m.visible)-1 {
			m.selectedIdx++
			m.previewScrollPos = 0
			m.ensureSelectedVisible()
		}
	case "enter":
		if _, ok := m.selected(); ok {
			m.currentView = viewFocused
			m.setStandardStatus()
		}
	case "K":
		if m.previewScrollPos > 0 {
			m.previewScrollPos--
		}
	case "J":
		if rec, ok := m.selected(); ok {
			if m.previewScrollPos < len(bodyLines(rec.Body))-1 {
				m.previewScrollPos++
			}
		}
	case "f":
		m.cycleFilter()
		m.setStandardStatus()
	}
}

// addRecord inserts rec newest first, replacing an earlier copy of the same
// message, and keeps the current selection. It reports whether rec was new.
func (m *Model) addRecord(rec parser.Record) bool {
	selectedID := ""
	if cur, ok := m.selected(); ok {
		selectedID = cur.ThreadID + "/" + cur.MessageID
	}

	isNew := true
	for i, r := range m.all {
		if r.ThreadID == rec.ThreadID && r.MessageID == rec.MessageID {
			m.all[i] = rec
			isNew = false
			break
		}
	}
	if isNew {
		m.all = append(m.all, rec)
	}
	sort.SliceStable(m.all, func(i, j int) bool {
		return m.all[i].Date.After(m.all[j].Date)
	})
	m.refilter(selectedID)
	return isNew
}

// threadTypes lists the distinct thread types present, sorted.
func (m *Model) threadTypes() []string {
	seen := map[string]bool{}
	var types []string
	for _, r := range m.all {
		if !seen[r.ThreadType] {
			seen[r.ThreadType] = true
			types = append(types, r.ThreadType)
		}
	}
	sort.Strings(types)
	return types
}

// cycleFilter moves from all records through each thread type and back.
func (m *Model) cycleFilter() {
	types := m.threadTypes()
	next := ""
	if m.typeFilter == "" && len(types) > 0 {
		next = types[0]
	} else {
		for i, t := range types {
			if t == m.typeFilter && i+1 < len(types) {
				next = types[i+1]
				break
			}
		}
	}
	m.typeFilter = next
	m.selectedIdx = 0
	m.previewScrollPos = 0
	m.refilter("")
}

func (m *Model) refilter(selectedID string) {
	visible := make([]parser.Record, 0, len(m.all))
	for _, r := range m.all {
		if m.typeFilter == "" || r.ThreadType == m.typeFilter {
			visible = append(visible, r)
		}
	}
	m.visible = visible

	if selectedID != "" {
		for i, r := range m.visible {
			if r.ThreadID+"/"+r.MessageID == selectedID {
				m.selectedIdx = i
				break
			}
		}
	}
	if m.selectedIdx >= len(m.visible) {
		m.selectedIdx = len(m.visible) - 1
	}
	if m.selectedIdx < 0 {
		m.selectedIdx = 0
	}
	m.ensureSelectedVisible()
}

func (m Model) selected() (parser.Record, bool) {
	if m.selectedIdx < 0 || m.selectedIdx >= len(m.visible) {
		return parser.Record{}, false
	}
	return m.visible[m.selectedIdx], true
}

func (m *Model) showTemporaryStatus(text string, duration time.Duration, cmds *[]tea.Cmd) {
	m.statusBarText = text
	m.statusIsError = false
	m.statusIsTemp = true
	*cmds = append(*cmds, tea.Tick(duration, func(time.Time) tea.Msg {
		return clearTempStatusMsg{}
	}))
}

func (m *Model) updateStatusBar(text string) {
	m.statusBarText = text
	m.statusIsError = false
	m.statusIsTemp = false
}

func (m *Model) updateStatusError(text string) {
	m.statusBarText = text
	m.statusIsError = true
	m.statusIsTemp = false
}

func (m *Model) setStandardStatus() {
	if m.statusIsTemp {
		return
	}

	state := "Watching"
	if m.monitorDone {
		state = "Monitor Off"
	}
	filter := "all"
	if m.typeFilter != "" {
		filter = m.typeFilter
	}
	status := fmt.Sprintf(" %s %s (every %v) | %s | %d/%d records [%s] ",
		state, m.opts.Source, m.opts.PollInterval, m.opts.Now().Format("15:04:05"),
		len(m.visible), len(m.all), filter)

	hints := "[q]:Quit"
	switch m.currentView {
	case viewDashboard:
		hints += " | [↑↓/jk]:Nav | [Enter]:Full | [KJ]:Scroll | [f]:Filter"
	case viewFocused:
		hints += " | [Esc]:Back"
	}
	m.updateStatusBar(status + "| " + hints)
}

func (m Model) visibleListHeight() int {
	titleHeight := lipgloss.Height(ListTitleStyle.Render(" "))
	return max(m.height-statusBarHeight-titleHeight, 0)
}

func (m *Model) ensureSelectedVisible() {
	if len(m.visible) == 0 {
		m.viewportTop = 0
		return
	}

	fit := m.visibleListHeight() / listItemHeight
	if fit <= 0 {
		m.viewportTop = m.selectedIdx
		return
	}
	if m.selectedIdx < m.viewportTop {
		m.viewportTop = m.selectedIdx
	} else if m.selectedIdx >= m.viewportTop+fit {
		m.viewportTop = m.selectedIdx - fit + 1
	}
	m.viewportTop = min(max(m.viewportTop, 0), max(len(m.visible)-fit, 0))
}

func bodyLines(body string) []string {
	return strings.Split(strings.ReplaceAll(body, "\r\n", "\n"), "\n")
}
