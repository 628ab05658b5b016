package mailbox

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"strconv"

	"github.com/bassamadnan/rfimail/config"
	"github.com/bassamadnan/rfimail/eml"
	"github.com/charmbracelet/log"
	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"google.golang.org/api/gmail/v1"
)

// IMAPSource reads unseen messages from one IMAP mailbox. Message ids are
// the IMAP UIDs so that MarkProcessed can flag them \Seen afterwards.
type IMAPSource struct {
	cfg    config.IMAPConfig
	logger *log.Logger
}

func NewIMAPSource(cfg config.IMAPConfig, logger *log.Logger) (*IMAPSource, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("imap host is empty")
	}
	if cfg.Port <= 0 {
		return nil, fmt.Errorf("imap port must be positive")
	}
	if cfg.Mailbox == "" {
		cfg.Mailbox = "INBOX"
	}
	return &IMAPSource{cfg: cfg, logger: logger}, nil
}

func (s *IMAPSource) Name() string { return "imap" }

// connect dials, logs in and selects the mailbox. The returned cleanup logs
// out and closes the connection; it also runs if ctx is cancelled first.
func (s *IMAPSource) connect(ctx context.Context) (*imapclient.Client, func(), error) {
	address := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	options := &imapclient.Options{
		TLSConfig: &tls.Config{ServerName: s.cfg.Host},
	}

	var (
		client *imapclient.Client
		err    error
	)
	switch s.cfg.Security {
	case "starttls":
		client, err = imapclient.DialStartTLS(address, options)
	case "none":
		client, err = imapclient.DialInsecure(address, options)
	default:
		client, err = imapclient.DialTLS(address, options)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("dial imap %s: %w", address, err)
	}

	if err := client.Login(s.cfg.Username, s.cfg.Password).Wait(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("imap login failed for %s: %w", s.cfg.Username, err)
	}
	if _, err := client.Select(s.cfg.Mailbox, nil).Wait(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("selecting %s: %w", s.cfg.Mailbox, err)
	}
	s.logger.Debug("IMAP connection established", "address", address, "user", s.cfg.Username, "mailbox", s.cfg.Mailbox)

	stopClose := context.AfterFunc(ctx, func() {
		_ = client.Close()
	})
	cleanup := func() {
		stopClose()
		if ctx.Err() == nil {
			if err := client.Logout().Wait(); err != nil {
				s.logger.Warn("IMAP logout failed", "error", err)
			}
		}
		_ = client.Close()
	}
	return client, cleanup, nil
}

// Fetch sends every unseen message of the mailbox to out. Messages are read
// with BODY.PEEK[] so fetching alone does not mark them seen. Fetch does not
// close out.
func (s *IMAPSource) Fetch(ctx context.Context, out chan<- *gmail.Message) error {
	client, cleanup, err := s.connect(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	searchData, err := client.UIDSearch(&imap.SearchCriteria{
		NotFlag: []imap.Flag{imap.FlagSeen},
	}, nil).Wait()
	if err != nil {
		return fmt.Errorf("searching unseen messages: %w", err)
	}
	uids := searchData.AllUIDs()
	s.logger.Info("Found unseen messages", "mailbox", s.cfg.Mailbox, "count", len(uids))
	if len(uids) == 0 {
		return nil
	}

	section := &imap.FetchItemBodySection{Peek: true}
	fetchCmd := client.Fetch(imap.UIDSetNum(uids...), &imap.FetchOptions{
		UID:         true,
		BodySection: []*imap.FetchItemBodySection{section},
	})
	defer fetchCmd.Close()

	for {
		data := fetchCmd.Next()
		if data == nil {
			break
		}
		buf, err := data.Collect()
		if err != nil {
			s.logger.Warn("Skipping IMAP message", "error", err)
			continue
		}

		raw := buf.FindBodySection(section)
		if raw == nil {
			s.logger.Warn("IMAP message has no body", "uid", buf.UID)
			continue
		}
		msg, err := eml.Convert(bytes.NewReader(raw), eml.Options{
			ID:       formatUID(buf.UID),
			LabelIDs: []string{s.cfg.Mailbox},
		})
		if err != nil {
			s.logger.Warn("Skipping unreadable IMAP message", "uid", buf.UID, "error", err)
			continue
		}

		select {
		case out <- msg:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if err := fetchCmd.Close(); err != nil {
		return fmt.Errorf("fetching messages: %w", err)
	}
	return nil
}

// MarkProcessed flags the given UIDs \Seen.
func (s *IMAPSource) MarkProcessed(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	uids, err := parseUIDs(ids)
	if err != nil {
		return err
	}

	client, cleanup, err := s.connect(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	storeCmd := client.Store(imap.UIDSetNum(uids...), &imap.StoreFlags{
		Op:     imap.StoreFlagsAdd,
		Silent: true,
		Flags:  []imap.Flag{imap.FlagSeen},
	}, nil)
	if err := storeCmd.Close(); err != nil {
		return fmt.Errorf("flag %d messages seen: %w", len(uids), err)
	}
	return nil
}

func formatUID(uid imap.UID) string {
	return strconv.FormatUint(uint64(uid), 10)
}

func parseUIDs(ids []string) ([]imap.UID, error) {
	uids := make([]imap.UID, 0, len(ids))
	for _, id := range ids {
		n, err := strconv.ParseUint(id, 10, 32)
		if err != nil || n == 0 {
			return nil, fmt.Errorf("invalid IMAP UID %q", id)
		}
		uids = append(uids, imap.UID(n))
	}
	return uids, nil
}
