package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJitteredLimiterEnforcesGap(t *testing.T) {
	limiter := NewJitteredLimiter(30*time.Millisecond, 30*time.Millisecond)
	ctx := context.Background()

	require.NoError(t, limiter.Wait(ctx))

	started := time.Now()
	require.NoError(t, limiter.Wait(ctx))
	assert.GreaterOrEqual(t, time.Since(started), 25*time.Millisecond)
}

func TestJitteredLimiterFirstCallImmediate(t *testing.T) {
	limiter := NewJitteredLimiter(time.Hour, time.Hour)
	limiter.lastAction = time.Now().Add(-2 * time.Hour)

	started := time.Now()
	require.NoError(t, limiter.Wait(context.Background()))
	assert.Less(t, time.Since(started), 100*time.Millisecond)
}

func TestJitteredLimiterHonorsContext(t *testing.T) {
	limiter := NewJitteredLimiter(time.Hour, time.Hour)
	require.NoError(t, limiter.Wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, limiter.Wait(ctx), context.DeadlineExceeded)
}

func TestAdaptiveLimiterBacksOff(t *testing.T) {
	limiter := NewAdaptiveLimiter(2*time.Second, 4*time.Second)

	for i := 0; i < 3; i++ {
		limiter.RecordError()
	}

	limiter.mu.Lock()
	defer limiter.mu.Unlock()
	assert.Equal(t, 3*time.Second, limiter.minDelay)
	assert.Equal(t, 6*time.Second, limiter.maxDelay)
}

func TestAdaptiveLimiterRelaxes(t *testing.T) {
	limiter := NewAdaptiveLimiter(10*time.Second, 20*time.Second)

	for i := 0; i < 6; i++ {
		limiter.RecordSuccess()
	}

	limiter.mu.Lock()
	defer limiter.mu.Unlock()
	assert.Equal(t, 9*time.Second, limiter.minDelay)
}

func TestAdaptiveLimiterCapsBackoff(t *testing.T) {
	limiter := NewAdaptiveLimiter(50*time.Second, 110*time.Second)

	for i := 0; i < 3; i++ {
		limiter.RecordError()
	}

	limiter.mu.Lock()
	defer limiter.mu.Unlock()
	assert.Equal(t, 60*time.Second, limiter.minDelay)
	assert.Equal(t, 120*time.Second, limiter.maxDelay)
}
