// Package mailbox feeds offline and non-Gmail mail into the ingest pipeline.
// Every message is converted to the Gmail message shape with package eml.
package mailbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/bassamadnan/rfimail/eml"
	"github.com/charmbracelet/log"
	mboxlib "github.com/emersion/go-mbox"
	"google.golang.org/api/gmail/v1"
)

// MboxSource streams the messages of one mbox file. Mbox files are never
// modified, so it has no MarkProcessed.
type MboxSource struct {
	path   string
	logger *log.Logger
}

func NewMboxSource(path string, logger *log.Logger) (*MboxSource, error) {
	if path == "" {
		return nil, fmt.Errorf("mbox path is empty")
	}
	return &MboxSource{path: path, logger: logger}, nil
}

func (s *MboxSource) Name() string { return "mbox" }

// Fetch converts and sends every message to out. A message that cannot be
// converted is logged and skipped. Fetch does not close out.
func (s *MboxSource) Fetch(ctx context.Context, out chan<- *gmail.Message) error {
	file, err := os.Open(s.path)
	if err != nil {
		return fmt.Errorf("open mbox: %w", err)
	}
	defer file.Close()
	return s.stream(ctx, mboxlib.NewReader(file), out)
}

func (s *MboxSource) stream(ctx context.Context, reader *mboxlib.Reader, out chan<- *gmail.Message) error {
	for idx := 0; ; idx++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		msgReader, err := reader.NextMessage()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("mbox message %d: %w", idx, err)
		}

		raw, err := io.ReadAll(msgReader)
		if err != nil {
			return fmt.Errorf("mbox message %d read: %w", idx, err)
		}

		msg, err := eml.Convert(bytes.NewReader(raw), eml.Options{})
		if err != nil {
			s.logger.Warn("Skipping unreadable mbox message", "path", s.path, "index", idx, "error", err)
			continue
		}

		select {
		case out <- msg:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
