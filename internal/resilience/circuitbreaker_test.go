package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	errDown     = errors.New("server down")
	errRejected = errors.New("invalid password")
)

func fixedClock(cb *CircuitBreaker, start time.Time) *time.Time {
	now := start
	cb.now = func() time.Time { return now }
	return &now
}

func TestCircuitBreaker_OpensAndRecovers(t *testing.T) {
	cb := NewCircuitBreaker("FTMO-Demo", CircuitBreakerConfig{FailureThreshold: 2, SuccessThreshold: 1, Cooldown: time.Minute})
	now := fixedClock(cb, time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC))
	ctx := context.Background()

	fail := func() error { return errDown }
	assert.ErrorIs(t, cb.Execute(ctx, fail), errDown)
	assert.Equal(t, CircuitClosed, cb.State())
	assert.ErrorIs(t, cb.Execute(ctx, fail), errDown)
	assert.Equal(t, CircuitOpen, cb.State())

	called := false
	err := cb.Execute(ctx, func() error { called = true; return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)

	stats := cb.Stats()
	require.NotNil(t, stats.RetryAt)
	assert.Equal(t, now.Add(time.Minute), *stats.RetryAt)
	assert.Equal(t, "server down", stats.LastError)

	*now = now.Add(2 * time.Minute)
	v, err := ExecuteWithResult(cb, ctx, func() (string, error) { return "ok", nil })
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
	assert.Equal(t, CircuitClosed, cb.State())

	stats = cb.Stats()
	assert.Equal(t, int64(3), stats.Requests)
	assert.Equal(t, int64(2), stats.Failures)
	assert.Equal(t, int64(1), stats.Rejected)
	assert.Nil(t, stats.RetryAt)
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	cb := NewCircuitBreaker("x", CircuitBreakerConfig{FailureThreshold: 1, SuccessThreshold: 2, Cooldown: time.Second})
	now := fixedClock(cb, time.Now())
	ctx := context.Background()

	_ = cb.Execute(ctx, func() error { return errDown })
	require.Equal(t, CircuitOpen, cb.State())

	*now = now.Add(2 * time.Second)
	_ = cb.Execute(ctx, func() error { return errDown })
	assert.Equal(t, CircuitOpen, cb.State())

	*now = now.Add(2 * time.Second)
	require.NoError(t, cb.Execute(ctx, func() error { return nil }))
	assert.Equal(t, CircuitHalfOpen, cb.State())
	require.NoError(t, cb.Execute(ctx, func() error { return nil }))
	assert.Equal(t, CircuitClosed, cb.State())
}

func TestCircuitBreaker_IgnoresCallerErrors(t *testing.T) {
	cb := NewCircuitBreaker("x", CircuitBreakerConfig{
		FailureThreshold: 1,
		Cooldown:         time.Minute,
		IsFailure:        func(err error) bool { return !errors.Is(err, errRejected) },
	})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		assert.ErrorIs(t, cb.Execute(ctx, func() error { return errRejected }), errRejected)
	}
	assert.Equal(t, CircuitClosed, cb.State())
}

func TestCircuitBreaker_CancelledCallsDoNotCount(t *testing.T) {
	cb := NewCircuitBreaker("slow", CircuitBreakerConfig{FailureThreshold: 1, Cooldown: time.Minute})
	ctx, cancel := context.WithCancel(context.Background())

	err := cb.Execute(ctx, func() error { cancel(); return ctx.Err() })
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, CircuitClosed, cb.State())

	called := false
	err = cb.Execute(ctx, func() error { called = true; return nil })
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestRegistry(t *testing.T) {
	r := NewRegistry(DefaultCircuitBreakerConfig())
	a := r.Get("b-server")
	assert.Same(t, a, r.Get("b-server"))
	r.Get("a-server")

	stats := r.Stats()
	require.Len(t, stats, 2)
	assert.Equal(t, "a-server", stats[0].Name)
	assert.Equal(t, CircuitClosed, stats[1].State)
}
