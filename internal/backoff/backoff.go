// Package backoff provides the retry policy used around transcription calls:
// exponential delays with a cap and uniform jitter, expressed as an explicit
// policy value so it can be tested without real I/O.
package backoff

import (
	"context"
	"math/rand"
	"time"
)

// Policy describes an exponential-backoff retry schedule. The zero value is
// not usable; construct with Default or fill every field.
type Policy struct {
	MaxAttempts    int
	BaseDelay      time.Duration
	MaxDelay       time.Duration
	JitterFraction float64 // upper bound of uniform jitter, as a fraction of the delay

	// Sleep is swapped in tests; nil means a real context-aware wait.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Default is the schedule tuned for the rate-limited transcription backend:
// 15s base, doubling per attempt, capped at 300s, up to 10% jitter, 5 attempts.
func Default() Policy {
	return Policy{
		MaxAttempts:    5,
		BaseDelay:      15 * time.Second,
		MaxDelay:       300 * time.Second,
		JitterFraction: 0.1,
	}
}

// Delay returns the wait before retrying after the given zero-based attempt,
// jitter included.
func (p Policy) Delay(attempt int) time.Duration {
	d := p.BaseDelay << attempt
	if d > p.MaxDelay || d <= 0 {
		d = p.MaxDelay
	}
	jitter := time.Duration(rand.Int63n(int64(float64(d)*p.JitterFraction) + 1))
	return d + jitter
}

// Retry runs fn up to MaxAttempts times, sleeping between attempts. The last
// error is returned unwrapped on exhaustion so callers see the original
// backend failure. Context cancellation cuts the schedule short.
func (p Policy) Retry(ctx context.Context, fn func() error) error {
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepCtx
	}
	var err error
	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if attempt == p.MaxAttempts-1 {
			break
		}
		if serr := sleep(ctx, p.Delay(attempt)); serr != nil {
			return serr
		}
	}
	return err
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
