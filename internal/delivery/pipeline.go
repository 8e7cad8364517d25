package delivery

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hazyhaar/clipwatch/highlight"
)

// TerminalError reports retry exhaustion for one item of a batch.
// Items before Index were delivered; the batch as a whole failed.
type TerminalError struct {
	Index    int // zero-based position of the failing item
	Attempts int
	Err      error
}

func (e *TerminalError) Error() string {
	return fmt.Sprintf("delivery: item %d failed after %d attempts: %v", e.Index, e.Attempts, e.Err)
}

func (e *TerminalError) Unwrap() error { return e.Err }

// Result summarises one batch submission.
type Result struct {
	Delivered int   // items accepted before the first terminal failure
	Err       error // nil on full success; *TerminalError otherwise
}

// Pipeline sends a confirmed batch sequentially, in stable order. Item i
// is never transmitted before item i-1's outcome is known: a mid-batch
// failure must not leave later items sent while earlier ones retry.
type Pipeline struct {
	endpoint Endpoint
	attempts int
	delay    time.Duration
	logger   *slog.Logger
	sleep    func(ctx context.Context, d time.Duration) error
}

// Config for a Pipeline.
type Config struct {
	Endpoint Endpoint
	// Attempts is the total tries per item. Default: 3.
	Attempts int
	// Delay is the fixed inter-attempt wait. Flat, not exponential: the
	// coarser backoff belongs to the relay layer. Default: 1s.
	Delay  time.Duration
	Logger *slog.Logger
}

// New creates a Pipeline.
func New(cfg Config) *Pipeline {
	if cfg.Attempts <= 0 {
		cfg.Attempts = 3
	}
	if cfg.Delay <= 0 {
		cfg.Delay = time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Pipeline{
		endpoint: cfg.Endpoint,
		attempts: cfg.Attempts,
		delay:    cfg.Delay,
		logger:   cfg.Logger,
		sleep:    sleepCtx,
	}
}

// Deliver finalises and sends each record in order. Tags and sheet apply
// uniformly to the whole batch; submittedAt stamps every payload. The
// context is checked before every attempt and every inter-attempt delay,
// so a cancelled session stops the batch between items.
func (p *Pipeline) Deliver(ctx context.Context, batch []highlight.Record, tags []string, sheetID string, submittedAt time.Time) Result {
	for i, rec := range batch {
		payload := rec.Finalize(tags, sheetID, submittedAt)
		if err := p.sendItem(ctx, i, payload); err != nil {
			return Result{Delivered: i, Err: err}
		}
	}
	p.logger.Info("delivery: batch delivered", "items", len(batch), "sheet", sheetID)
	return Result{Delivered: len(batch)}
}

func (p *Pipeline) sendItem(ctx context.Context, index int, payload highlight.Payload) error {
	var lastErr error
	for attempt := 1; attempt <= p.attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return &TerminalError{Index: index, Attempts: attempt - 1, Err: err}
		}
		if attempt > 1 {
			if err := p.sleep(ctx, p.delay); err != nil {
				return &TerminalError{Index: index, Attempts: attempt - 1, Err: err}
			}
		}

		err := p.endpoint.Send(ctx, payload)
		if err == nil {
			return nil
		}
		lastErr = err
		p.logger.Warn("delivery: send failed",
			"item", index, "attempt", attempt, "max_attempts", p.attempts, "error", err)
	}
	return &TerminalError{Index: index, Attempts: p.attempts, Err: lastErr}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
