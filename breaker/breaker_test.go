package breaker

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iwt-cmd/awx/clog"
)

var errBackend = errors.New("backend down")

func newTestBreaker(t *testing.T, cfg *Config, opts ...Option) Breaker {
	t.Helper()
	brk, err := New(cfg, opts...)
	require.NoError(t, err)
	return brk
}

func TestNewValidation(t *testing.T) {
	_, err := New(nil)
	assert.ErrorIs(t, err, ErrConfigNil)

	_, err = New(&Config{FailureRatio: 1.5})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	cfg := &Config{}
	_, err = New(cfg)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), cfg.MaxRequests)
	assert.Equal(t, 60*time.Second, cfg.Timeout)
	assert.InDelta(t, 0.6, cfg.FailureRatio, 1e-9)
	assert.Equal(t, uint32(10), cfg.MinimumRequests)
}

func TestExecuteSuccess(t *testing.T) {
	brk := newTestBreaker(t, &Config{MinimumRequests: 3})

	result, err := brk.Execute(context.Background(), "redis", func() (any, error) {
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", result)

	state, err := brk.State("redis")
	require.NoError(t, err)
	assert.Equal(t, StateClosed, state)
}

func TestExecuteEmptyKey(t *testing.T) {
	brk := newTestBreaker(t, &Config{})
	_, err := brk.Execute(context.Background(), "", func() (any, error) { return nil, nil })
	assert.ErrorIs(t, err, ErrKeyEmpty)

	_, err = brk.State("")
	assert.ErrorIs(t, err, ErrKeyEmpty)
}

func TestTripsAndRejects(t *testing.T) {
	var buf bytes.Buffer
	logger, err := clog.New(&clog.Config{Level: "info", Format: "json"}, clog.WithWriter(&buf))
	require.NoError(t, err)

	brk := newTestBreaker(t, &Config{MinimumRequests: 2, FailureRatio: 0.5, Timeout: time.Hour}, WithLogger(logger))
	ctx := context.Background()
	failing := func() (any, error) { return nil, errBackend }

	for i := 0; i < 2; i++ {
		_, err := brk.Execute(ctx, "redis", failing)
		assert.ErrorIs(t, err, errBackend)
	}

	state, err := brk.State("redis")
	require.NoError(t, err)
	assert.Equal(t, StateOpen, state)
	assert.Contains(t, buf.String(), "circuit breaker state changed")

	called := false
	_, err = brk.Execute(ctx, "redis", func() (any, error) {
		called = true
		return nil, nil
	})
	assert.ErrorIs(t, err, ErrOpenState)
	assert.False(t, called)

	// 其他键互不影响
	_, err = brk.Execute(ctx, "postgres", func() (any, error) { return 1, nil })
	assert.NoError(t, err)
}

func TestHalfOpenRecovers(t *testing.T) {
	brk := newTestBreaker(t, &Config{MinimumRequests: 1, FailureRatio: 0.5, Timeout: 20 * time.Millisecond})
	ctx := context.Background()

	_, _ = brk.Execute(ctx, "redis", func() (any, error) { return nil, errBackend })
	state, _ := brk.State("redis")
	require.Equal(t, StateOpen, state)

	require.Eventually(t, func() bool {
		s, _ := brk.State("redis")
		return s == StateHalfOpen
	}, time.Second, 5*time.Millisecond)

	_, err := brk.Execute(ctx, "redis", func() (any, error) { return "ok", nil })
	require.NoError(t, err)
	state, _ = brk.State("redis")
	assert.Equal(t, StateClosed, state)
}

func TestCanceledIsNotFailure(t *testing.T) {
	brk := newTestBreaker(t, &Config{MinimumRequests: 1, FailureRatio: 0.1, Timeout: time.Hour})
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := brk.Execute(ctx, "redis", func() (any, error) { return nil, context.Canceled })
		assert.ErrorIs(t, err, context.Canceled)
	}
	state, _ := brk.State("redis")
	assert.Equal(t, StateClosed, state)
}

func TestFallback(t *testing.T) {
	var gotKey string
	brk := newTestBreaker(t, &Config{MinimumRequests: 1, Timeout: time.Hour},
		WithFallback(func(_ context.Context, key string, err error) error {
			gotKey = key
			assert.ErrorIs(t, err, ErrOpenState)
			return nil
		}))
	ctx := context.Background()

	_, _ = brk.Execute(ctx, "redis", func() (any, error) { return nil, errBackend })
	result, err := brk.Execute(ctx, "redis", func() (any, error) { return "unreachable", nil })
	assert.NoError(t, err)
	assert.Nil(t, result)
	assert.Equal(t, "redis", gotKey)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "half_open", StateHalfOpen.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "unknown", State(9).String())
}
