package report

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"go.uber.org/zap"

	"github.com/jmerrifield20/riskposture/internal/metrics"
	"github.com/jmerrifield20/riskposture/pkg/client"
)

// RetryPolicy bounds how the Runner backs off from upstream rate limits.
// Only *client.RateLimitedError is retried; every other error is returned
// at once. MaxRetries of zero disables retrying.
type RetryPolicy struct {
	MaxRetries      uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultRetryPolicy retries a rate-limited operation three times.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:      3,
		InitialInterval: 2 * time.Second,
		MaxInterval:     30 * time.Second,
	}
}

// retryAfter stretches the next exponential interval to the server's
// Retry-After hint when that hint is longer.
type retryAfter struct {
	backoff.BackOff

	mu   sync.Mutex
	hint time.Duration
}

func (b *retryAfter) observe(err error) {
	d, _ := client.RetryAfter(err)
	b.mu.Lock()
	b.hint = d
	b.mu.Unlock()
}

func (b *retryAfter) NextBackOff() time.Duration {
	next := b.BackOff.NextBackOff()
	if next == backoff.Stop {
		return next
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.hint > next {
		next = b.hint
	}
	b.hint = 0
	return next
}

// withRetry runs fn, retrying it while it fails with a rate limit.
func (r *Runner) withRetry(ctx context.Context, op string, fn func() error) error {
	if r.retry.MaxRetries == 0 {
		err := fn()
		if client.IsRateLimited(err) {
			metrics.RecordRateLimited(op)
		}
		return err
	}

	eb := backoff.NewExponentialBackOff()
	if r.retry.InitialInterval > 0 {
		eb.InitialInterval = r.retry.InitialInterval
	}
	if r.retry.MaxInterval > 0 {
		eb.MaxInterval = r.retry.MaxInterval
	}
	eb.MaxElapsedTime = 0

	hinted := &retryAfter{BackOff: eb}
	b := backoff.WithContext(backoff.WithMaxRetries(hinted, r.retry.MaxRetries), ctx)

	return backoff.RetryNotify(func() error {
		err := fn()
		if err == nil {
			return nil
		}
		if !client.IsRateLimited(err) {
			return backoff.Permanent(err)
		}
		metrics.RecordRateLimited(op)
		hinted.observe(err)
		return err
	}, b, func(err error, wait time.Duration) {
		r.logger.Warn("rate limited, backing off",
			zap.String("operation", op),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
	})
}
