package llm

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrRateLimited is returned when rate-limit retries are exhausted.
// Surfacing a terminal error instead of retrying forever keeps a sustained
// throttle from wedging the whole query.
var ErrRateLimited = errors.New("rate limit retries exhausted")

const (
	// DefaultMaxAttempts bounds tries per unit of work.
	DefaultMaxAttempts = 5
	// DefaultBaseDelay is the first retry delay; later delays double.
	DefaultBaseDelay = 2 * time.Second
)

// Retrier wraps a Gateway with bounded exponential backoff on rate limits.
// Any error other than a RateLimitError passes through untouched.
type Retrier struct {
	gw          Gateway
	maxAttempts int
	baseDelay   time.Duration
	sleepFunc   func(time.Duration)
}

// NewRetrier creates a Retrier with default policy.
func NewRetrier(gw Gateway) *Retrier {
	return &Retrier{
		gw:          gw,
		maxAttempts: DefaultMaxAttempts,
		baseDelay:   DefaultBaseDelay,
		sleepFunc:   time.Sleep,
	}
}

// WithPolicy overrides attempts and base delay. Zero values keep defaults.
func (r *Retrier) WithPolicy(maxAttempts int, baseDelay time.Duration) *Retrier {
	if maxAttempts > 0 {
		r.maxAttempts = maxAttempts
	}
	if baseDelay > 0 {
		r.baseDelay = baseDelay
	}
	return r
}

// Complete calls the gateway, retrying rate-limited attempts with
// exponentially growing delays until maxAttempts is reached.
func (r *Retrier) Complete(ctx context.Context, msgs []Message) (string, error) {
	var lastErr error

	for attempt := 0; attempt < r.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		if attempt > 0 && r.sleepFunc != nil && r.baseDelay > 0 {
			delay := r.baseDelay * time.Duration(1<<(attempt-1)) // exponential: 1x, 2x, 4x, ...
			r.sleepFunc(delay)
		}

		out, err := r.gw.Complete(ctx, msgs)
		if err == nil {
			return out, nil
		}

		var rl *RateLimitError
		if !errors.As(err, &rl) {
			return "", err
		}
		lastErr = err
	}

	return "", fmt.Errorf("%w after %d attempts: %v", ErrRateLimited, r.maxAttempts, lastErr)
}
