// Package store persists parsed message records, their threads and
// attachments, and the history of ingest runs in SQLite.
package store

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// MessageFilter controls filtering and pagination for message queries.
// Empty strings match everything.
type MessageFilter struct {
	ThreadType string
	JobName    string
	ThreadID   string
	Limit      int
	Offset     int
}

// Thread is a conversation as first classified, with its message count.
type Thread struct {
	ID            string    `json:"id"`
	Subject       string    `json:"subject"`
	ThreadType    string    `json:"threadType"`
	JobName       string    `json:"jobName"`
	FirstSeenAt   time.Time `json:"firstSeenAt"`
	LastMessageAt time.Time `json:"lastMessageAt"`
	MessageCount  int       `json:"messageCount"`
}

// Run is one batch ingest. FinishedAt is zero while the run is in progress.
type Run struct {
	ID         string    `json:"id"`
	Source     string    `json:"source"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
	Found      int       `json:"found"`
	Stored     int       `json:"stored"`
	Skipped    int       `json:"skipped"`
	Failed     int       `json:"failed"`
	Error      string    `json:"error,omitempty"`
}
