package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/arrowhead-dev/llmbridge/internal/llmerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireRejectsRequestLargerThanCapacity(t *testing.T) {
	b := New(Config{RequestsPerSecond: 10, BurstCapacity: 5})

	err := b.Acquire(context.Background(), 6)
	require.Error(t, err)
	assert.True(t, errors.Is(err, llmerr.ErrRequestTooLarge))
	assert.EqualValues(t, 1, b.Counters().Rejected)
}

func TestAcquireSucceedsImmediatelyWithinBurst(t *testing.T) {
	b := New(Config{RequestsPerSecond: 10, BurstCapacity: 5})

	start := time.Now()
	err := b.Acquire(context.Background(), 5)
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 50*time.Millisecond)
	assert.EqualValues(t, 1, b.Counters().Successful)
}

func TestAcquireSleepsWhenBucketIsExhausted(t *testing.T) {
	b := New(Config{RequestsPerSecond: 20, BurstCapacity: 1})

	require.NoError(t, b.Acquire(context.Background(), 1))

	start := time.Now()
	err := b.Acquire(context.Background(), 1)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestAcquireRespectsContextCancellation(t *testing.T) {
	b := New(Config{RequestsPerSecond: 1, BurstCapacity: 1})

	require.NoError(t, b.Acquire(context.Background(), 1))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := b.Acquire(ctx, 1)
	require.Error(t, err)
	assert.EqualValues(t, 1, b.Counters().Rejected)
}

func TestAcquireDisabledBucketAlwaysSucceeds(t *testing.T) {
	b := New(Config{Disabled: true, RequestsPerSecond: 1, BurstCapacity: 1})

	for i := 0; i < 10; i++ {
		require.NoError(t, b.Acquire(context.Background(), 1))
	}

	assert.Zero(t, b.Counters().Total)
}

func TestAdjustRateIncreasesAndDecreasesWithinClamp(t *testing.T) {
	b := New(Config{RequestsPerSecond: 10, BurstCapacity: 5, Adaptive: true})

	b.AdjustRate(true)
	assert.InDelta(t, 11.0, b.EffectiveRate(), 0.01)

	for i := 0; i < 20; i++ {
		b.AdjustRate(true)
	}
	assert.LessOrEqual(t, b.EffectiveRate(), 20.0)

	for i := 0; i < 40; i++ {
		b.AdjustRate(false)
	}
	assert.GreaterOrEqual(t, b.EffectiveRate(), 2.5)
}

func TestAdjustRateIsNoOpWhenNotAdaptive(t *testing.T) {
	b := New(Config{RequestsPerSecond: 10, BurstCapacity: 5})

	b.AdjustRate(true)
	assert.Equal(t, 10.0, b.EffectiveRate())
}
