package resilience

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
)

// RetryConfig controls retry behavior with exponential backoff and jitter.
type RetryConfig struct {
	// Source labels retry logs (an adapter name, a host, "postgres").
	Source string

	// MaxAttempts is the total number of attempts (including the first try).
	// A value of 1 means no retries. Default: 3.
	MaxAttempts int

	// InitialBackoff is the base delay before the first retry. Default: 500ms.
	InitialBackoff time.Duration

	// MaxBackoff caps the backoff duration. Default: 10s.
	MaxBackoff time.Duration

	// Multiplier scales the backoff after each attempt. Default: 2.0.
	Multiplier float64

	// JitterFraction adds random jitter as a fraction of the computed delay
	// (0.0 = no jitter, 0.5 = ±50%).
	JitterFraction float64

	// ShouldRetry optionally overrides the default transient-error check.
	ShouldRetry func(err error) bool

	// OnRetry is called before each retry sleep with attempt number and error.
	// When nil and Source is set, retries are logged under Source.
	OnRetry func(attempt int, err error)
}

// DefaultRetryConfig returns the retry configuration used for source fetches.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     10 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.25,
	}
}

// SourceRetryConfig builds a RetryConfig for source from the configured
// number of retries (attempts = retries + 1).
func SourceRetryConfig(source string, maxRetries int) RetryConfig {
	cfg := DefaultRetryConfig()
	cfg.Source = source
	cfg.MaxAttempts = max(maxRetries, 0) + 1
	return cfg
}

// Do executes fn with retry logic according to cfg. Only transient errors
// are retried. Context cancellation stops retries immediately.
func Do(ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) error) error {
	_, err := DoVal(ctx, cfg, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// DoVal is Do for functions that return a value. A retry whose backoff would
// end after the context deadline is not attempted; the last error is returned
// instead so an adapter's timeout is spent on work, not on sleeping.
func DoVal[T any](ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) (T, error)) (T, error) {
	cfg = cfg.withDefaults()

	var (
		zero T
		err  error
	)
	for attempt := 1; ; attempt++ {
		var val T
		if val, err = fn(ctx); err == nil {
			return val, nil
		}
		if attempt >= cfg.MaxAttempts || ctx.Err() != nil || !cfg.ShouldRetry(err) {
			break
		}

		delay := cfg.backoff(attempt - 1)
		if deadline, ok := ctx.Deadline(); ok && time.Now().Add(delay).After(deadline) {
			zap.L().Debug("retry skipped, backoff exceeds deadline",
				zap.String("source", cfg.Source),
				zap.Int("attempt", attempt),
				zap.Duration("backoff", delay),
			)
			break
		}

		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, err)
		}
		if !sleep(ctx, delay) {
			break
		}
	}
	return zero, err
}

func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (cfg RetryConfig) withDefaults() RetryConfig {
	def := DefaultRetryConfig()
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = def.InitialBackoff
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = def.MaxBackoff
	}
	if cfg.Multiplier <= 0 {
		cfg.Multiplier = def.Multiplier
	}
	cfg.JitterFraction = max(cfg.JitterFraction, 0)
	if cfg.ShouldRetry == nil {
		cfg.ShouldRetry = IsTransient
	}
	if cfg.OnRetry == nil && cfg.Source != "" {
		cfg.OnRetry = RetryLogger(cfg.Source)
	}
	return cfg
}

// backoff returns the delay before retry n (0-based), capped at MaxBackoff
// and spread by JitterFraction.
func (cfg RetryConfig) backoff(n int) time.Duration {
	delay := min(float64(cfg.InitialBackoff)*math.Pow(cfg.Multiplier, float64(n)), float64(cfg.MaxBackoff))
	if cfg.JitterFraction > 0 {
		delay *= 1 + (rand.Float64()*2-1)*cfg.JitterFraction
	}
	return time.Duration(max(delay, 0))
}

// RetryLogger returns an OnRetry callback that logs each retry of a source fetch.
func RetryLogger(source string) func(int, error) {
	return func(attempt int, err error) {
		zap.L().Warn("retrying source fetch",
			zap.String("source", source),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	}
}
