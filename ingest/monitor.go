package ingest

import (
	"context"
	"time"

	"github.com/bassamadnan/rfimail/parser"
)

// Monitor runs a batch from src right away and then every interval until
// ctx is done, sending each newly stored record to out. A failing run is
// logged and the next tick tries again. Monitor does not close out.
func (r *Runner) Monitor(ctx context.Context, src Source, interval time.Duration, out chan<- parser.Record) {
	r.logger.Info("Monitor started", "source", src.Name(), "interval", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if !r.monitorOnce(ctx, src, out) {
			r.logger.Info("Monitor stopping")
			return
		}
		select {
		case <-ctx.Done():
			r.logger.Info("Monitor stopping")
			return
		case <-ticker.C:
		}
	}
}

// monitorOnce reports false once ctx is done.
func (r *Runner) monitorOnce(ctx context.Context, src Source, out chan<- parser.Record) bool {
	result, err := r.Run(ctx, src)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		r.logger.Error("Monitor run failed", "source", src.Name(), "error", err)
	}
	if result == nil {
		return ctx.Err() == nil
	}
	if result.Stored == 0 {
		r.logger.Debug("No new messages this poll", "source", src.Name())
	}
	for _, rec := range result.Records {
		select {
		case out <- rec:
		case <-ctx.Done():
			return false
		}
	}
	return true
}
