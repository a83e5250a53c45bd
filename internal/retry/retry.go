// Package retry runs storage operations with bounded exponential backoff.
package retry

import (
	"context"
	"errors"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/mesh-intelligence/fieldforms/pkg/types"
)

// Config controls the backoff schedule.
type Config struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	JitterFactor float64 // fraction of the delay, 0.0-1.0
}

// DefaultConfig retries three times starting at 50ms, doubling up to 2s
// with 10% jitter.
func DefaultConfig() *Config {
	return &Config{
		MaxRetries:   3,
		InitialDelay: 50 * time.Millisecond,
		MaxDelay:     2 * time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.1,
	}
}

// NoRetry runs the operation once.
func NoRetry() *Config { return &Config{} }

func jitter(d time.Duration, factor float64) time.Duration {
	if factor <= 0 {
		return d
	}
	return time.Duration(float64(d) + float64(d)*factor*(rand.Float64()*2-1))
}

// Do calls fn until it succeeds, returns a permanent error, or the retry
// budget is spent. Context cancellation during a wait returns ctx.Err().
func Do(ctx context.Context, cfg *Config, fn func() error) error {
	_, err := DoWithResult(ctx, cfg, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// DoWithResult is Do for functions that return a value.
func DoWithResult[T any](ctx context.Context, cfg *Config, fn func() (T, error)) (T, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	var (
		result T
		err    error
	)
	delay := cfg.InitialDelay
	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		result, err = fn()
		if err == nil || !IsRetryable(err) {
			return result, err
		}
		if attempt == cfg.MaxRetries {
			break
		}
		select {
		case <-time.After(jitter(delay, cfg.JitterFactor)):
		case <-ctx.Done():
			return result, ctx.Err()
		}
		delay = min(time.Duration(float64(delay)*cfg.Multiplier), cfg.MaxDelay)
	}
	return result, err
}

// permanent lists errors that will fail the same way on every attempt.
var permanent = []error{
	types.ErrNotFound,
	types.ErrInvalidID,
	types.ErrInvalidData,
	types.ErrInvalidFilter,
	types.ErrTableNotFound,
	types.ErrCupboardDetached,
	types.ErrValidation,
	context.Canceled,
	context.DeadlineExceeded,
}

var transientPatterns = []string{
	"database is locked",
	"sqlite_busy",
	"busy",
	"connection refused",
	"connection reset",
	"broken pipe",
	"timeout",
	"timed out",
	"too many connections",
	"deadlock",
	"temporary failure",
	"no space left",
	"resource temporarily unavailable",
}

// IsRetryable reports whether err looks transient. Sentinel table and
// validation errors are never retried; anything else is matched against
// known lock, connection and I/O messages.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	for _, p := range permanent {
		if errors.Is(err, p) {
			return false
		}
	}
	msg := strings.ToLower(err.Error())
	for _, p := range transientPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}
