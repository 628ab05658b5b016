package tui

import (
	"time"

	"github.com/bassamadnan/rfimail/parser"
)

// NewRecordMsg carries a record the monitor just stored.
type NewRecordMsg parser.Record

// ErrorMsg reports a failure from a command.
type ErrorMsg struct{ Err error }

func (e ErrorMsg) Error() string { return e.Err.Error() }

// StatusTickMsg refreshes the status bar clock.
type StatusTickMsg struct{ Time time.Time }

// MonitorStoppedMsg is sent once the record channel is closed.
type MonitorStoppedMsg struct{}

type clearTempStatusMsg struct{}
