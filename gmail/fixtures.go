package gmail

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"google.golang.org/api/gmail/v1"
)

// ErrNotFound is returned by FixtureSource lookups for unknown ids.
var ErrNotFound = errors.New("not found")

// FixtureSource serves threads.json and messages.json from a directory, both
// in the Gmail API's JSON shape. It stands in for Client in demos and tests.
type FixtureSource struct {
	threads  []*gmail.Thread
	messages []*gmail.Message

	mu        sync.Mutex
	processed []string
}

// NewFixtureSource loads dir/threads.json and dir/messages.json. Either file
// may be missing, but not both.
func NewFixtureSource(dir string) (*FixtureSource, error) {
	var threadsFile struct {
		Threads []*gmail.Thread `json:"threads"`
	}
	var messagesFile struct {
		Messages []*gmail.Message `json:"messages"`
	}

	foundThreads, err := readFixture(filepath.Join(dir, "threads.json"), &threadsFile)
	if err != nil {
		return nil, err
	}
	foundMessages, err := readFixture(filepath.Join(dir, "messages.json"), &messagesFile)
	if err != nil {
		return nil, err
	}
	if !foundThreads && !foundMessages {
		return nil, fmt.Errorf("no threads.json or messages.json in %s", dir)
	}
	return &FixtureSource{threads: threadsFile.Threads, messages: messagesFile.Messages}, nil
}

func readFixture(path string, v any) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	return true, nil
}

func (f *FixtureSource) Name() string { return "fixtures" }

func (f *FixtureSource) ListThreadIDs(_ context.Context, _ string) ([]string, error) {
	ids := make([]string, 0, len(f.threads))
	for _, t := range f.threads {
		ids = append(ids, t.Id)
	}
	return ids, nil
}

func (f *FixtureSource) Thread(_ context.Context, id string) (*gmail.Thread, error) {
	for _, t := range f.threads {
		if t.Id == id {
			return t, nil
		}
	}
	return nil, fmt.Errorf("thread %s: %w", id, ErrNotFound)
}

// Message looks in messages.json first, then inside the threads.
func (f *FixtureSource) Message(_ context.Context, id string) (*gmail.Message, error) {
	for _, m := range f.messages {
		if m.Id == id {
			return m, nil
		}
	}
	for _, t := range f.threads {
		for _, m := range t.Messages {
			if m.Id == id {
				return m, nil
			}
		}
	}
	return nil, fmt.Errorf("message %s: %w", id, ErrNotFound)
}

// Fetch streams the messages of every thread, or messages.json when there
// are no threads. It does not close out.
func (f *FixtureSource) Fetch(ctx context.Context, out chan<- *gmail.Message) error {
	msgs := f.messages
	if len(f.threads) > 0 {
		msgs = nil
		for _, t := range f.threads {
			msgs = append(msgs, t.Messages...)
		}
	}
	for _, m := range msgs {
		select {
		case out <- m:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// MarkProcessed only records the ids; see Processed.
func (f *FixtureSource) MarkProcessed(_ context.Context, ids []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.processed = append(f.processed, ids...)
	return nil
}

func (f *FixtureSource) Processed() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.processed)
}

func (f *FixtureSource) Attachment(_ context.Context, messageID, attachmentID string) ([]byte, error) {
	return nil, fmt.Errorf("attachment %s of %s: %w", attachmentID, messageID, ErrNotFound)
}
