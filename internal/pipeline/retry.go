package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"os"
	"time"

	"go-stream-extract/internal/model"
	"go-stream-extract/internal/source"
)

// RetryConfig defines retry behavior for byte-source opens
type RetryConfig struct {
	MaxAttempts       int           `json:"max_attempts"`
	InitialDelay      time.Duration `json:"initial_delay"`
	MaxDelay          time.Duration `json:"max_delay"`
	BackoffMultiplier float64       `json:"backoff_multiplier"`
	Jitter            bool          `json:"jitter"`
}

// DefaultOpenRetry bounds transient open failures before they promote to
// fatal for the locator.
var DefaultOpenRetry = RetryConfig{
	MaxAttempts:       3,
	InitialDelay:      1 * time.Second,
	MaxDelay:          30 * time.Second,
	BackoffMultiplier: 2.0,
	Jitter:            true,
}

// delay computes the exponential backoff for a (1-based) attempt.
func (c RetryConfig) delay(attempt int) time.Duration {
	d := time.Duration(float64(c.InitialDelay) * math.Pow(c.BackoffMultiplier, float64(attempt-1)))
	if d > c.MaxDelay {
		d = c.MaxDelay
	}
	if c.Jitter {
		d += time.Duration(rand.Int63n(int64(d)/10 + 1))
	}
	return d
}

// openWithRetry opens a locator's byte stream, retrying transient I/O
// failures with bounded backoff. Auth and not-found failures never retry:
// they are fatal for the locator immediately.
func openWithRetry(ctx context.Context, registry *source.Registry, loc model.SourceLocator, cfg RetryConfig) (io.ReadCloser, error) {
	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		rc, err := registry.Open(ctx, loc)
		if err == nil {
			return rc, nil
		}
		lastErr = err
		if !errors.Is(err, model.ErrTransientIO) {
			return nil, err
		}
		if attempt == cfg.MaxAttempts {
			break
		}
		wait := cfg.delay(attempt)
		fmt.Fprintf(os.Stderr, "🔄 Retry %d/%d for %s in %v: %v\n", attempt, cfg.MaxAttempts, loc, wait, err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}
	return nil, fmt.Errorf("open %s: retries exhausted: %w", loc, lastErr)
}
