package cmd

import (
	"context"
	"fmt"

	"github.com/bassamadnan/rfimail/api"
	"github.com/bassamadnan/rfimail/config"
	"github.com/bassamadnan/rfimail/gmail"
	"github.com/bassamadnan/rfimail/ingest"
	"github.com/bassamadnan/rfimail/mailbox"
	"github.com/bassamadnan/rfimail/parser"
	"github.com/bassamadnan/rfimail/store"
)

const (
	sourceGmail    = "gmail"
	sourceIMAP     = "imap"
	sourceMbox     = "mbox"
	sourceFixtures = "fixtures"
)

// source builds the configured ingest source. The second value downloads
// attachments and is nil for sources without attachment storage.
func (a *app) source(ctx context.Context) (ingest.Source, api.AttachmentFetcher, error) {
	switch name := a.cfg.Ingest.Source; name {
	case sourceGmail:
		tokens, err := gmail.NewTokenStore(a.cfg.Gmail)
		if err != nil {
			return nil, nil, err
		}
		c, err := gmail.NewClient(ctx, a.cfg.Gmail, tokens, a.logger)
		if err != nil {
			return nil, nil, err
		}
		return c, c, nil
	case sourceIMAP:
		s, err := mailbox.NewIMAPSource(a.cfg.IMAP, a.logger)
		if err != nil {
			return nil, nil, err
		}
		return s, nil, nil
	case sourceMbox:
		s, err := mailbox.NewMboxSource(a.cfg.Mbox.Path, a.logger)
		if err != nil {
			return nil, nil, err
		}
		return s, nil, nil
	case sourceFixtures:
		s, err := gmail.NewFixtureSource(a.cfg.Ingest.FixturesDir)
		if err != nil {
			return nil, nil, err
		}
		return s, nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown source %q (want gmail, imap, mbox or fixtures)", name)
	}
}

// pipeline is everything a batch run needs.
type pipeline struct {
	vocab       *config.Manager
	parser      *parser.Parser
	store       *store.SQLiteStore
	runner      *ingest.Runner
	source      ingest.Source
	attachments api.AttachmentFetcher
}

func (p *pipeline) Close() error { return p.store.Close() }

// pipeline opens the store and wires the runner to the configured source.
// withSource false skips the source, for commands that only read.
func (a *app) pipeline(ctx context.Context, withSource bool) (*pipeline, error) {
	vocab, err := a.vocabulary()
	if err != nil {
		return nil, err
	}
	p, err := a.parser(vocab)
	if err != nil {
		return nil, err
	}

	var src ingest.Source
	var att api.AttachmentFetcher
	if withSource {
		if src, att, err = a.source(ctx); err != nil {
			return nil, err
		}
	}

	st, err := store.Open(a.cfg.Store.Path)
	if err != nil {
		return nil, err
	}
	runner := ingest.NewRunner(p, st, ingest.Options{
		Workers:  a.cfg.Ingest.Workers,
		MarkRead: a.cfg.Ingest.MarkRead,
		Filters:  vocab,
	}, a.logger)

	return &pipeline{vocab: vocab, parser: p, store: st, runner: runner, source: src, attachments: att}, nil
}
