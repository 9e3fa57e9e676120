package retry

import (
	"context"
	"math/rand"
	"time"
)

// Policy is a bounded retry policy shared by the external-service clients.
// Retryable decides whether an error is worth another attempt; a nil
// predicate retries every error.
type Policy struct {
	MaxAttempts int
	Backoff     time.Duration
	Jitter      bool
	Retryable   func(error) bool
}

// Do runs fn up to MaxAttempts times, sleeping Backoff between attempts.
// It returns nil on the first success, the last error otherwise. Context
// cancellation aborts the wait and returns ctx.Err().
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var err error
	for i := 0; i < attempts; i++ {
		err = fn(ctx)
		if err == nil {
			return nil
		}
		if p.Retryable != nil && !p.Retryable(err) {
			return err
		}
		if i == attempts-1 {
			break
		}
		if !sleepWithContext(ctx, p.delay()) {
			return ctx.Err()
		}
	}
	return err
}

func (p Policy) delay() time.Duration {
	if !p.Jitter {
		return p.Backoff
	}
	return withJitter(p.Backoff)
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func withJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	// +/-20% jitter.
	r := rand.New(rand.NewSource(time.Now().UnixNano()))
	j := 0.8 + r.Float64()*0.4
	return time.Duration(float64(d) * j)
}
