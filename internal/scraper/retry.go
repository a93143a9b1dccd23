package scraper

import (
	"context"
	"log/slog"
	"time"
)

// Retrier wraps a fallible operation with bounded, linearly backed-off
// retries. The delay before attempt n+1 is BaseDelay*n. Errors that
// Retryable classifies as terminal (blocks, permanent fetch failures)
// short-circuit; when attempts are exhausted the last error propagates
// unchanged.
type Retrier struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Logger      *slog.Logger
}

// NewRetrier creates a retry policy. maxAttempts below 1 is clamped to 1.
func NewRetrier(maxAttempts int, baseDelay time.Duration, logger *slog.Logger) *Retrier {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Retrier{
		MaxAttempts: maxAttempts,
		BaseDelay:   baseDelay,
		Logger:      logger.With("component", "retrier"),
	}
}

// Do runs op until it succeeds, fails terminally, or attempts run out.
func (r *Retrier) Do(ctx context.Context, op func() error) error {
	var err error
	for attempt := 1; attempt <= r.MaxAttempts; attempt++ {
		err = op()
		if err == nil {
			return nil
		}
		if !Retryable(err) {
			return err
		}
		if attempt == r.MaxAttempts {
			r.Logger.Error("all attempts failed", "attempts", r.MaxAttempts, "error", err)
			break
		}

		delay := r.BaseDelay * time.Duration(attempt)
		r.Logger.Warn("attempt failed, retrying",
			"attempt", attempt,
			"max_attempts", r.MaxAttempts,
			"delay", delay,
			"error", err,
		)
		select {
		case <-ctx.Done():
			return err
		case <-time.After(delay):
		}
	}
	return err
}
