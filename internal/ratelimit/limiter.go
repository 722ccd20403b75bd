package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/emperorhan/revision-indexer/internal/metrics"
	"golang.org/x/time/rate"
)

// Limiter wraps a token-bucket rate limiter for classifier calls.
type Limiter struct {
	limiter *rate.Limiter
	model   string
}

// NewLimiter creates a rate limiter that allows rps requests per second
// with a burst capacity of burst tokens. A non-positive rps disables limiting.
func NewLimiter(rps float64, burst int, model string) *Limiter {
	limit := rate.Limit(rps)
	if rps <= 0 {
		limit = rate.Inf
	}
	if burst <= 0 {
		burst = 1
	}
	return &Limiter{
		limiter: rate.NewLimiter(limit, burst),
		model:   model,
	}
}

// Wait blocks until the limiter allows one event, or ctx is done.
// A reservation whose delay would outlive ctx's deadline is cancelled up
// front so the token is not burned for a call that cannot happen.
func (l *Limiter) Wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r := l.limiter.Reserve()
	if !r.OK() {
		return fmt.Errorf("rate: cannot reserve token")
	}
	delay := r.Delay()
	if delay <= 0 {
		return nil
	}
	if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < delay {
		r.Cancel()
		return fmt.Errorf("rate: wait %s exceeds deadline: %w", delay, context.DeadlineExceeded)
	}

	metrics.ClassifierRateLimitWaits.WithLabelValues(l.model).Inc()
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		r.Cancel()
		return ctx.Err()
	}
}

// CallStatus buckets a classifier call outcome for the calls_total metric.
func CallStatus(err error) string {
	if err == nil {
		return "ok"
	}
	var sc interface{ StatusCode() int }
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.As(err, &sc):
		switch code := sc.StatusCode(); {
		case code == 429:
			return "rate_limited"
		case code >= 500:
			return "server_error"
		default:
			return "client_error"
		}
	default:
		return "error"
	}
}
