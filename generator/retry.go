package generator

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"pdpl_assistant/logging"
)

// RetryPolicy bounds a retried call. CallTimeout applies to each attempt.
type RetryPolicy struct {
	Attempts    int
	Backoff     time.Duration
	CallTimeout time.Duration
}

type retryClient struct {
	next   Client
	policy RetryPolicy
	logger *slog.Logger
}

// WithRetry retries rate-limited, upstream and invalid-response failures with doubling backoff.
func WithRetry(next Client, p RetryPolicy) Client {
	if p.Attempts < 1 {
		p.Attempts = 1
	}
	return &retryClient{next: next, policy: p, logger: logging.New("generator")}
}

func (r *retryClient) Generate(ctx context.Context, req Request) (json.RawMessage, error) {
	backoff := r.policy.Backoff
	var lastErr error
	for attempt := 0; attempt < r.policy.Attempts; attempt++ {
		raw, err := r.once(ctx, req)
		if err == nil {
			return raw, nil
		}
		lastErr = err
		if attempt+1 >= r.policy.Attempts || !Retryable(ctx, err) {
			break
		}
		r.logger.WarnContext(ctx, "generation attempt failed, retrying",
			"schema", req.schemaName(),
			"attempt", attempt+1,
			"backoff_ms", backoff.Milliseconds(),
			"error", err,
		)
		if err := sleepWithCtx(ctx, backoff); err != nil {
			break
		}
		backoff *= 2
	}
	return nil, wrapError(req.schemaName(), lastErr)
}

func (r *retryClient) once(ctx context.Context, req Request) (json.RawMessage, error) {
	if r.policy.CallTimeout <= 0 {
		return r.next.Generate(ctx, req)
	}
	callCtx, cancel := context.WithTimeout(ctx, r.policy.CallTimeout)
	defer cancel()
	return r.next.Generate(callCtx, req)
}

type rateLimitedClient struct {
	next    Client
	limiter *rate.Limiter
}

// WithRateLimit paces outbound calls through a shared token bucket.
func WithRateLimit(next Client, limiter *rate.Limiter) Client {
	return &rateLimitedClient{next: next, limiter: limiter}
}

func (c *rateLimitedClient) Generate(ctx context.Context, req Request) (json.RawMessage, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, wrapError(req.schemaName(), err)
	}
	return c.next.Generate(ctx, req)
}

func sleepWithCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
