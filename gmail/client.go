// Package gmail talks to the Gmail API: listing unread threads, fetching full
// messages, fetching attachments and marking processed mail as read.
package gmail

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/bassamadnan/rfimail/config"
	"github.com/charmbracelet/log"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

const (
	// batchModify accepts at most this many ids per call.
	maxBatchModify = 1000
	unreadLabel    = "UNREAD"
)

type Client struct {
	srv    *gmail.Service
	user   string
	query  string
	logger *log.Logger
}

// NewClient builds an authorized client from the OAuth client secrets in
// cfg.CredentialsFile and the token held by tokens. Run Authorize first when
// no token is stored.
func NewClient(ctx context.Context, cfg config.GmailConfig, tokens TokenStore, logger *log.Logger) (*Client, error) {
	oauthConfig, err := loadOAuthConfig(cfg.CredentialsFile)
	if err != nil {
		return nil, err
	}
	tok, err := tokens.Load()
	if err != nil {
		if errors.Is(err, ErrNoToken) {
			return nil, fmt.Errorf("no Gmail token found, run `rfimail auth` first: %w", err)
		}
		return nil, fmt.Errorf("unable to load token: %w", err)
	}

	ts := newSavingTokenSource(oauthConfig.TokenSource(ctx, tok), tok, tokens, logger)
	httpClient := oauth2.NewClient(ctx, oauth2.ReuseTokenSource(tok, ts))
	srv, err := gmail.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("unable to create Gmail service: %w", err)
	}
	return newClient(srv, cfg, logger), nil
}

func newClient(srv *gmail.Service, cfg config.GmailConfig, logger *log.Logger) *Client {
	user := cfg.User
	if user == "" {
		user = "me"
	}
	return &Client{srv: srv, user: user, query: cfg.Query, logger: logger}
}

func loadOAuthConfig(path string) (*oauth2.Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read client secret file: %w", err)
	}
	oauthConfig, err := google.ConfigFromJSON(b, gmail.GmailModifyScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse client secret file to config: %w", err)
	}
	return oauthConfig, nil
}

// Authorize runs the interactive consent flow: it prints the consent URL to
// out, reads the authorization code from in and stores the resulting token.
func Authorize(ctx context.Context, cfg config.GmailConfig, tokens TokenStore, in io.Reader, out io.Writer) error {
	oauthConfig, err := loadOAuthConfig(cfg.CredentialsFile)
	if err != nil {
		return err
	}

	authURL := oauthConfig.AuthCodeURL("state-token", oauth2.AccessTypeOffline, oauth2.ApprovalForce)
	fmt.Fprintf(out, "Go to the following link in your browser then type the "+
		"authorization code: \n%v\n", authURL)

	var authCode string
	if _, err := fmt.Fscan(in, &authCode); err != nil {
		return fmt.Errorf("unable to read authorization code: %w", err)
	}
	tok, err := oauthConfig.Exchange(ctx, strings.TrimSpace(authCode))
	if err != nil {
		return fmt.Errorf("unable to retrieve token from web: %w", err)
	}
	if err := tokens.Save(tok); err != nil {
		return err
	}
	fmt.Fprintln(out, "Token saved.")
	return nil
}

func (c *Client) Name() string { return "gmail" }

// ListThreadIDs returns the ids of every thread matching query, following
// pagination.
func (c *Client) ListThreadIDs(ctx context.Context, query string) ([]string, error) {
	var ids []string
	err := c.srv.Users.Threads.List(c.user).Q(query).Pages(ctx, func(resp *gmail.ListThreadsResponse) error {
		for _, t := range resp.Threads {
			ids = append(ids, t.Id)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list threads %q: %w", query, err)
	}
	return ids, nil
}

// Thread fetches a thread with every message in full format.
func (c *Client) Thread(ctx context.Context, id string) (*gmail.Thread, error) {
	t, err := c.srv.Users.Threads.Get(c.user, id).Format("full").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("get thread %s: %w", id, err)
	}
	return t, nil
}

func (c *Client) Message(ctx context.Context, id string) (*gmail.Message, error) {
	m, err := c.srv.Users.Messages.Get(c.user, id).Format("full").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("get message %s: %w", id, err)
	}
	return m, nil
}

// Fetch sends every message of every thread matching the configured query
// to out, oldest thread last as the API orders them. A thread that cannot be
// fetched is logged and skipped. Fetch does not close out.
func (c *Client) Fetch(ctx context.Context, out chan<- *gmail.Message) error {
	ids, err := c.ListThreadIDs(ctx, c.query)
	if err != nil {
		return err
	}
	c.logger.Info("Listed threads", "query", c.query, "count", len(ids))

	for _, id := range ids {
		t, err := c.Thread(ctx, id)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.Warn("Skipping thread", "thread", id, "error", err)
			continue
		}
		for _, m := range t.Messages {
			select {
			case out <- m:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return nil
}

// MarkProcessed removes the UNREAD label from ids so the next run's query
// no longer matches them.
func (c *Client) MarkProcessed(ctx context.Context, ids []string) error {
	for start := 0; start < len(ids); start += maxBatchModify {
		end := min(start+maxBatchModify, len(ids))
		req := &gmail.BatchModifyMessagesRequest{
			Ids:            ids[start:end],
			RemoveLabelIds: []string{unreadLabel},
		}
		if err := c.srv.Users.Messages.BatchModify(c.user, req).Context(ctx).Do(); err != nil {
			return fmt.Errorf("mark %d messages read: %w", end-start, err)
		}
	}
	if len(ids) > 0 {
		c.logger.Debug("Marked messages read", "count", len(ids))
	}
	return nil
}

// Attachment downloads and decodes one attachment body.
func (c *Client) Attachment(ctx context.Context, messageID, attachmentID string) ([]byte, error) {
	b, err := c.srv.Users.Messages.Attachments.Get(c.user, messageID, attachmentID).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("get attachment %s of %s: %w", attachmentID, messageID, err)
	}
	data, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(b.Data, "="))
	if err != nil {
		return nil, fmt.Errorf("decode attachment %s: %w", attachmentID, err)
	}
	return data, nil
}
