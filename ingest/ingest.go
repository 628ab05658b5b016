// Package ingest runs batch imports: messages stream from a source, a pool
// of workers parses, filters and stores them, and processed messages are
// acknowledged back to the source.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/bassamadnan/rfimail/config"
	"github.com/bassamadnan/rfimail/parser"
	"github.com/bassamadnan/rfimail/store"
	"github.com/charmbracelet/log"
	"google.golang.org/api/gmail/v1"
)

// Source produces messages. Fetch sends every message of one batch to out
// and must not close it.
type Source interface {
	Name() string
	Fetch(ctx context.Context, out chan<- *gmail.Message) error
}

// Acknowledger is implemented by sources that can flag messages as done,
// such as marking them read.
type Acknowledger interface {
	MarkProcessed(ctx context.Context, ids []string) error
}

// Store is the persistence the runner needs.
type Store interface {
	UpsertMessage(ctx context.Context, rec parser.Record, runID string) error
	MessageExists(ctx context.Context, threadID, messageID string) (bool, error)
	StartRun(ctx context.Context, source string) (store.Run, error)
	FinishRun(ctx context.Context, run store.Run) error
}

// FilterProvider hands out the current skip rules. config.Manager is one.
type FilterProvider interface {
	Filters() config.Filters
}

type Options struct {
	Workers int
	// MarkRead acknowledges stored and skipped messages to sources that
	// implement Acknowledger. Failed messages are left for the next run.
	MarkRead bool
	Filters  FilterProvider
}

// Result summarizes one run.
type Result struct {
	RunID     string   `json:"runId"`
	Source    string   `json:"source"`
	Found     int      `json:"found"`
	Stored    int      `json:"stored"`
	Skipped   int      `json:"skipped"`
	Failed    int      `json:"failed"`
	FailedIDs []string `json:"failedIds"`
	// Records are the newly stored messages in completion order.
	Records []parser.Record `json:"-"`
}

type Runner struct {
	parser *parser.Parser
	store  Store
	opts   Options
	logger *log.Logger
}

func NewRunner(p *parser.Parser, s Store, opts Options, logger *log.Logger) *Runner {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &Runner{parser: p, store: s, opts: opts, logger: logger}
}

type status int

const (
	statusStored status = iota
	statusSkipped
	statusFailed
)

type outcome struct {
	id     string
	status status
	record parser.Record
}

// Run performs one batch from src. Malformed or unstorable messages are
// logged and counted but never abort the run. The returned error reports a
// failing source, store bookkeeping or acknowledgement; the Result is still
// filled in as far as the run got.
func (r *Runner) Run(ctx context.Context, src Source) (*Result, error) {
	run, err := r.store.StartRun(ctx, src.Name())
	if err != nil {
		return nil, err
	}
	result := &Result{RunID: run.ID, Source: src.Name(), FailedIDs: []string{}}
	r.logger.Info("Ingest run started", "run", run.ID, "source", src.Name(), "workers", r.opts.Workers)

	msgs := make(chan *gmail.Message, r.opts.Workers)
	outcomes := make(chan outcome, r.opts.Workers)
	fetchErr := make(chan error, 1)

	go func() {
		defer close(msgs)
		fetchErr <- src.Fetch(ctx, msgs)
	}()

	var wg sync.WaitGroup
	for i := 0; i < r.opts.Workers; i++ {
		wg.Add(1)
		go r.worker(ctx, &wg, run.ID, msgs, outcomes)
	}
	go func() {
		wg.Wait()
		close(outcomes)
	}()

	var done []string
	for o := range outcomes {
		result.Found++
		switch o.status {
		case statusStored:
			result.Stored++
			result.Records = append(result.Records, o.record)
			done = append(done, o.id)
		case statusSkipped:
			result.Skipped++
			done = append(done, o.id)
		case statusFailed:
			result.Failed++
			result.FailedIDs = append(result.FailedIDs, o.id)
		}
	}

	var errs []error
	if err := <-fetchErr; err != nil {
		errs = append(errs, fmt.Errorf("fetch from %s: %w", src.Name(), err))
	}
	if ack, ok := src.(Acknowledger); ok && r.opts.MarkRead && len(done) > 0 && ctx.Err() == nil {
		if err := ack.MarkProcessed(ctx, done); err != nil {
			errs = append(errs, fmt.Errorf("acknowledge %d messages: %w", len(done), err))
		}
	}
	runErr := errors.Join(errs...)

	run.Found, run.Stored, run.Skipped, run.Failed = result.Found, result.Stored, result.Skipped, result.Failed
	if runErr != nil {
		run.Error = runErr.Error()
	}
	// the run row is finished even when ctx was cancelled mid-run
	if err := r.store.FinishRun(context.WithoutCancel(ctx), run); err != nil {
		runErr = errors.Join(runErr, err)
	}

	r.logger.Info("Ingest run complete",
		"run", run.ID, "found", result.Found, "stored", result.Stored,
		"skipped", result.Skipped, "failed", result.Failed)
	return result, runErr
}

func (r *Runner) worker(ctx context.Context, wg *sync.WaitGroup, runID string, msgs <-chan *gmail.Message, outcomes chan<- outcome) {
	defer wg.Done()
	for m := range msgs {
		outcomes <- r.process(ctx, runID, m)
	}
}

func (r *Runner) process(ctx context.Context, runID string, m *gmail.Message) outcome {
	var id string
	if m != nil {
		id = m.Id
	}

	if m != nil && m.Id != "" && m.ThreadId != "" {
		exists, err := r.store.MessageExists(ctx, m.ThreadId, m.Id)
		if err != nil {
			r.logger.Error("Could not check message", "message", id, "error", err)
			return outcome{id: id, status: statusFailed}
		}
		if exists {
			r.logger.Debug("Already stored", "message", id)
			return outcome{id: id, status: statusSkipped}
		}
	}

	msg, err := r.parser.Parse(m)
	if err != nil {
		if parser.IsMalformedInput(err) {
			r.logger.Warn("Malformed message", "message", id, "error", err)
		} else {
			r.logger.Error("Could not parse message", "message", id, "error", err)
		}
		return outcome{id: id, status: statusFailed}
	}
	rec := msg.Record()

	if r.opts.Filters != nil {
		if skip, rule := r.opts.Filters.Filters().Skip(rec.From, rec.RawSubject); skip {
			r.logger.Debug("Filtered message", "message", id, "from", rec.From, "rule", rule)
			return outcome{id: id, status: statusSkipped}
		}
	}

	if err := r.store.UpsertMessage(ctx, rec, runID); err != nil {
		r.logger.Error("Could not store message", "message", id, "error", err)
		return outcome{id: id, status: statusFailed}
	}
	r.logger.Debug("Stored message", "message", id, "thread_type", rec.ThreadType, "job_name", rec.JobName)
	return outcome{id: id, status: statusStored, record: rec}
}
