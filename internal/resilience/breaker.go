package resilience

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// ErrBreakerOpen is returned when a source's breaker rejects a call.
var ErrBreakerOpen = eris.New("resilience: breaker open")

// BreakerConfig configures a per-source circuit breaker.
type BreakerConfig struct {
	Name string

	// Trips is the number of consecutive transient failures that opens the breaker.
	Trips uint32

	// OpenTimeout is how long the breaker stays open before probing again.
	OpenTimeout time.Duration

	// HalfOpenProbes is the number of calls allowed through while half-open.
	HalfOpenProbes uint32
}

// DefaultBreakerConfig returns the breaker settings used for source adapters.
func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{
		Name:           name,
		Trips:          5,
		OpenTimeout:    60 * time.Second,
		HalfOpenProbes: 1,
	}
}

// Breaker wraps gobreaker so that only transient failures count against a source.
// A page that parses to nothing or a 404 is not an outage.
type Breaker struct {
	cb *gobreaker.CircuitBreaker
}

// NewBreaker creates a Breaker from cfg.
func NewBreaker(cfg BreakerConfig) *Breaker {
	if cfg.Trips == 0 {
		cfg.Trips = 5
	}
	if cfg.HalfOpenProbes == 0 {
		cfg.HalfOpenProbes = 1
	}
	trips := cfg.Trips
	return &Breaker{cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.HalfOpenProbes,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= trips
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !IsTransient(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			zap.L().Warn("source breaker state changed",
				zap.String("source", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})}
}

// State returns the breaker state as a string ("closed", "half-open", "open").
func (b *Breaker) State() string {
	return b.cb.State().String()
}

// Call runs fn through the breaker b. A nil breaker calls fn directly.
func Call[T any](ctx context.Context, b *Breaker, fn func(ctx context.Context) (T, error)) (T, error) {
	if b == nil {
		return fn(ctx)
	}

	var zero T
	out, err := b.cb.Execute(func() (any, error) {
		return fn(ctx)
	})
	if err != nil {
		if eris.Is(err, gobreaker.ErrOpenState) || eris.Is(err, gobreaker.ErrTooManyRequests) {
			return zero, eris.Wrapf(ErrBreakerOpen, "source %s", b.cb.Name())
		}
		return zero, err
	}
	return out.(T), nil
}
