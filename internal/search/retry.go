// ABOUTME: Retry wrapper for the search backend with escalating per-attempt timeouts
// ABOUTME: Notifies the user once that the search is taking longer than usual

package search

import (
	"context"
	"log/slog"
	"time"
)

// Retrying wraps a Searcher with a fixed retry budget. Each retry widens
// the per-attempt timeout by TimeoutStep. The first failure triggers
// Notify exactly once so the user knows the bot is still working.
type Retrying struct {
	Searcher Searcher
	Retries  int           // number of retries after the first attempt
	Initial  time.Duration // first attempt timeout
	Step     time.Duration // added to the timeout on every retry

	// Notify is called once, before the first retry. May be nil.
	Notify func(ctx context.Context) error

	Logger *slog.Logger
}

// Search runs the query until it succeeds or the retry budget is spent.
// The final error is the last attempt's error.
func (r *Retrying) Search(ctx context.Context, teamID, query string, opts Options) ([3]Tier, error) {
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}

	remaining := r.Retries
	timeout := r.Initial
	notified := false

	for {
		opts.Timeout = timeout
		tiers, err := r.Searcher.Search(ctx, teamID, query, opts)
		if err == nil {
			return tiers, nil
		}
		if remaining == 0 {
			return [3]Tier{}, err
		}
		if !notified && r.Notify != nil {
			if nerr := r.Notify(ctx); nerr != nil {
				logger.Warn("failed to send search progress notice", "error", nerr)
			}
			notified = true
		}
		timeout += r.Step
		remaining--
		logger.Warn("retrying search request",
			"error", err,
			"remaining", remaining,
			"timeout", timeout)
	}
}
