package delivery

import (
	"context"
	"log/slog"
	"time"

	"github.com/hazyhaar/clipwatch/highlight"
)

// RetryingEndpoint wraps an Endpoint with coarse retry and doubling
// backoff. This is the relay-level policy, distinct from the pipeline's
// flat per-item retry, and is off by default (retries = 0): stacking both
// multiplies attempts, so enable it only for flaky transports.
type RetryingEndpoint struct {
	inner   Endpoint
	retries int
	backoff time.Duration
	logger  *slog.Logger
	sleep   func(ctx context.Context, d time.Duration) error
}

// WithRelayRetry wraps endpoint. retries ≤ 0 returns endpoint unchanged.
func WithRelayRetry(endpoint Endpoint, retries int, baseBackoff time.Duration, logger *slog.Logger) Endpoint {
	if retries <= 0 {
		return endpoint
	}
	if baseBackoff <= 0 {
		baseBackoff = 2 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RetryingEndpoint{
		inner:   endpoint,
		retries: retries,
		backoff: baseBackoff,
		logger:  logger,
		sleep:   sleepCtx,
	}
}

func (r *RetryingEndpoint) Send(ctx context.Context, p highlight.Payload) error {
	var lastErr error
	for attempt := 0; attempt <= r.retries; attempt++ {
		err := r.inner.Send(ctx, p)
		if err == nil {
			return nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return lastErr
		}
		if attempt < r.retries {
			wait := r.backoff * (1 << uint(attempt))
			r.logger.Warn("delivery: relay retry",
				"attempt", attempt+1, "max_retries", r.retries,
				"backoff_ms", wait.Milliseconds(), "error", err)
			if err := r.sleep(ctx, wait); err != nil {
				return lastErr
			}
		}
	}
	return lastErr
}
