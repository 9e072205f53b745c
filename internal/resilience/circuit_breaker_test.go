package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errIgnored = errors.New("not found")

func newManager(enabled bool) *CircuitBreakerManager {
	return NewCircuitBreakerManager(CircuitBreakerConfig{
		Enabled:          enabled,
		MaxRequests:      1,
		Interval:         time.Minute,
		Timeout:          time.Minute,
		FailureThreshold: 2,
	}, zerolog.Nop(), func(err error) bool { return errors.Is(err, errIgnored) })
}

func TestBreakerTripsAfterConsecutiveFailures(t *testing.T) {
	cbm := newManager(true)
	ctx := context.Background()
	boom := errors.New("boom")

	fail := func(context.Context) (any, error) { return nil, boom }
	for i := 0; i < 2; i++ {
		_, err := cbm.ExecuteWithContext(ctx, "notion", fail)
		require.ErrorIs(t, err, boom)
	}

	assert.Equal(t, gobreaker.StateOpen, cbm.GetState("notion"))

	_, err := cbm.ExecuteWithContext(ctx, "notion", func(context.Context) (any, error) { return "ok", nil })
	require.Error(t, err)
	assert.True(t, IsCircuitBreakerError(err))
}

func TestIgnoredErrorsDoNotTrip(t *testing.T) {
	cbm := newManager(true)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := cbm.ExecuteWithContext(ctx, "notion", func(context.Context) (any, error) { return nil, errIgnored })
		require.ErrorIs(t, err, errIgnored)
	}
	assert.Equal(t, gobreaker.StateClosed, cbm.GetState("notion"))
}

func TestDisabledManagerPassesThrough(t *testing.T) {
	cbm := newManager(false)
	assert.Nil(t, cbm.GetBreaker("notion"))

	out, err := cbm.ExecuteWithContext(context.Background(), "notion", func(context.Context) (any, error) { return 42, nil })
	require.NoError(t, err)
	assert.Equal(t, 42, out)
	assert.False(t, cbm.IsEnabled())
}

func TestCancelledContextShortCircuits(t *testing.T) {
	cbm := newManager(true)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	_, err := cbm.ExecuteWithContext(ctx, "notion", func(context.Context) (any, error) {
		called = true
		return nil, nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}
