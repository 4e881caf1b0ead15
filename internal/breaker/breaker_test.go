package breaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/arrowhead-dev/llmbridge/internal/llmerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

func failingCall(context.Context) error { return errBoom }
func okCall(context.Context) error      { return nil }

func TestCallPassesThroughWhenDisabled(t *testing.T) {
	b := New(Config{Disabled: true, FailureThreshold: 1, RecoveryTimeout: time.Hour})

	for i := 0; i < 5; i++ {
		_ = b.Call(context.Background(), failingCall)
	}

	assert.Equal(t, Closed, b.State())
}

func TestOpensAfterFailureThreshold(t *testing.T) {
	b := New(Config{FailureThreshold: 3, SuccessThreshold: 1, RecoveryTimeout: 50 * time.Millisecond})

	for i := 0; i < 3; i++ {
		err := b.Call(context.Background(), failingCall)
		assert.ErrorIs(t, err, errBoom)
	}

	assert.Equal(t, Open, b.State())

	err := b.Call(context.Background(), okCall)
	assert.True(t, errors.Is(err, llmerr.ErrCircuitOpen))
}

func TestHalfOpenAfterRecoveryTimeoutAndClosesOnSuccess(t *testing.T) {
	b := New(Config{FailureThreshold: 3, SuccessThreshold: 1, RecoveryTimeout: 10 * time.Millisecond})

	for i := 0; i < 3; i++ {
		_ = b.Call(context.Background(), failingCall)
	}

	require.Equal(t, Open, b.State())

	time.Sleep(20 * time.Millisecond)

	err := b.Call(context.Background(), okCall)
	require.NoError(t, err)
	assert.Equal(t, Closed, b.State())
}

func TestHalfOpenFailureReopens(t *testing.T) {
	b := New(Config{FailureThreshold: 2, SuccessThreshold: 2, RecoveryTimeout: 10 * time.Millisecond})

	_ = b.Call(context.Background(), failingCall)
	_ = b.Call(context.Background(), failingCall)
	require.Equal(t, Open, b.State())

	time.Sleep(20 * time.Millisecond)

	err := b.Call(context.Background(), failingCall)
	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, Open, b.State())
}

func TestHalfOpenRequiresSuccessThresholdBeforeClosing(t *testing.T) {
	b := New(Config{FailureThreshold: 1, SuccessThreshold: 2, RecoveryTimeout: 10 * time.Millisecond})

	_ = b.Call(context.Background(), failingCall)
	require.Equal(t, Open, b.State())

	time.Sleep(20 * time.Millisecond)

	require.NoError(t, b.Call(context.Background(), okCall))
	assert.Equal(t, HalfOpen, b.State())

	require.NoError(t, b.Call(context.Background(), okCall))
	assert.Equal(t, Closed, b.State())
}

func TestRequestTimeoutCountsAsFailure(t *testing.T) {
	b := New(Config{FailureThreshold: 1, SuccessThreshold: 1, RecoveryTimeout: time.Hour, RequestTimeout: 5 * time.Millisecond})

	err := b.Call(context.Background(), func(ctx context.Context) error {
		time.Sleep(50 * time.Millisecond)
		return nil
	})

	require.Error(t, err)
	assert.Equal(t, llmerr.KindTimeout, llmerr.KindOf(err))
	assert.Equal(t, Open, b.State())
	assert.EqualValues(t, 1, b.Counters().TimedOut)
}

func TestForceOpenAndForceCloseOverrideNaturalState(t *testing.T) {
	b := New(Config{FailureThreshold: 10, SuccessThreshold: 1, RecoveryTimeout: time.Hour})

	b.ForceOpen()
	err := b.Call(context.Background(), okCall)
	assert.True(t, errors.Is(err, llmerr.ErrCircuitOpen))

	b.ForceClose()
	err = b.Call(context.Background(), failingCall)
	assert.ErrorIs(t, err, errBoom)

	b.Reset()
	assert.Equal(t, Closed, b.State())
}

func TestCountersTrackCallOutcomes(t *testing.T) {
	b := New(Config{FailureThreshold: 100, SuccessThreshold: 1, RecoveryTimeout: time.Hour})

	_ = b.Call(context.Background(), okCall)
	_ = b.Call(context.Background(), failingCall)

	counters := b.Counters()
	assert.EqualValues(t, 2, counters.Total)
	assert.EqualValues(t, 1, counters.Successful)
	assert.EqualValues(t, 1, counters.Failed)
}
