package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBreaker_OpensOnTransientFailures(t *testing.T) {
	b := NewBreaker(BreakerConfig{Name: "companiesmarketcap", Trips: 2, OpenTimeout: time.Minute})
	ctx := context.Background()

	fail := func(_ context.Context) (int, error) {
		return 0, NewTransientError(errors.New("upstream down"), 503)
	}

	_, err := Call(ctx, b, fail)
	require.Error(t, err)
	_, err = Call(ctx, b, fail)
	require.Error(t, err)
	assert.Equal(t, "open", b.State())

	var called bool
	_, err = Call(ctx, b, func(_ context.Context) (int, error) {
		called = true
		return 1, nil
	})
	assert.ErrorIs(t, err, ErrBreakerOpen)
	assert.False(t, called)
}

func TestBreaker_IgnoresPermanentErrors(t *testing.T) {
	b := NewBreaker(BreakerConfig{Name: "edgar", Trips: 1, OpenTimeout: time.Minute})

	for i := 0; i < 3; i++ {
		_, err := Call(context.Background(), b, func(_ context.Context) (string, error) {
			return "", NewStatusError("https://example.com/nope", 404)
		})
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrBreakerOpen)
	}
	assert.Equal(t, "closed", b.State())
}

func TestCall_NilBreakerPassesThrough(t *testing.T) {
	v, err := Call(context.Background(), nil, func(_ context.Context) (string, error) {
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
}

func TestDefaultBreakerConfig(t *testing.T) {
	cfg := DefaultBreakerConfig("pharmacompass")
	assert.Equal(t, "pharmacompass", cfg.Name)
	assert.Equal(t, uint32(5), cfg.Trips)
	assert.Equal(t, 60*time.Second, cfg.OpenTimeout)
}
