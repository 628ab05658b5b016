package tui

import (
	"time"

	"github.com/bassamadnan/rfimail/parser"
	tea "github.com/charmbracelet/bubbletea"
)

// waitForRecordCmd blocks on records and turns the next one into a
// NewRecordMsg. Update re-queues it after every record.
func waitForRecordCmd(records <-chan parser.Record) tea.Cmd {
	return func() tea.Msg {
		rec, ok := <-records
		if !ok {
			return MonitorStoppedMsg{}
		}
		return NewRecordMsg(rec)
	}
}

func statusTickCmd(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(t time.Time) tea.Msg {
		return StatusTickMsg{Time: t}
	})
}
