package utils

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"
)

var (
	jitterSource = rand.Float64
	sleep        = time.Sleep
)

// Backoff is an exponential retry policy shared by every external call site.
type Backoff struct {
	MaxAttempts int           `mapstructure:"max-attempts"`
	BaseDelay   time.Duration `mapstructure:"base-delay"`
	MaxDelay    time.Duration `mapstructure:"max-delay"`
	// Jitter is the fraction of the delay randomly added or removed, between 0 and 1.
	Jitter float64 `mapstructure:"jitter"`
}

// DefaultBackoff retries three times starting at two seconds.
func DefaultBackoff() Backoff {
	return Backoff{
		MaxAttempts: 3,
		BaseDelay:   2 * time.Second,
		MaxDelay:    20 * time.Second,
		Jitter:      0.2,
	}
}

// Delay returns the wait before the given retry, counting from 1.
func (b Backoff) Delay(retry int) time.Duration {
	if retry < 1 || b.BaseDelay <= 0 {
		return 0
	}

	d := b.BaseDelay
	for i := 1; i < retry; i++ {
		d *= 2
		if b.MaxDelay > 0 && d >= b.MaxDelay {
			d = b.MaxDelay
			break
		}
	}

	if b.Jitter > 0 {
		j := b.Jitter
		if j > 1 {
			j = 1
		}
		spread := float64(d) * j
		d = time.Duration(float64(d) - spread + 2*spread*jitterSource())
	}

	if b.MaxDelay > 0 && d > b.MaxDelay {
		d = b.MaxDelay
	}

	return d
}

// Do calls fn until it succeeds, returns an error rejected by retryable, or the
// attempts run out. Waiting between attempts honours ctx.
func (b Backoff) Do(ctx context.Context, retryable func(error) bool, fn func(context.Context) error) error {
	attempts := b.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}

		if retryable == nil || !retryable(err) {
			return err
		}

		if attempt == attempts {
			break
		}

		if waitErr := WaitFor(ctx, b.Delay(attempt)); waitErr != nil {
			return fmt.Errorf("waiting before retry: %w", waitErr)
		}
	}

	return fmt.Errorf("giving up after %d attempts: %w", attempts, err)
}

// WaitFor blocks for d unless ctx ends first.
func WaitFor(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		sleep(d)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}
