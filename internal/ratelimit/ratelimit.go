package ratelimit

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// Limiter paces page visits so a storefront never sees a burst of requests.
type Limiter interface {
	Wait(ctx context.Context) error
	SetDelay(min, max time.Duration)
}

// JitteredLimiter enforces a randomized minimum gap between actions. The
// jitter keeps the visit cadence from looking mechanical.
type JitteredLimiter struct {
	mu         sync.Mutex
	minDelay   time.Duration
	maxDelay   time.Duration
	lastAction time.Time
}

func NewJitteredLimiter(minDelay, maxDelay time.Duration) *JitteredLimiter {
	return &JitteredLimiter{minDelay: minDelay, maxDelay: maxDelay}
}

func (l *JitteredLimiter) Wait(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	elapsed := time.Since(l.lastAction)
	if delay := l.nextDelay(); elapsed < delay {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay - elapsed):
		}
	}

	l.lastAction = time.Now()
	return nil
}

func (l *JitteredLimiter) SetDelay(min, max time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.minDelay = min
	l.maxDelay = max
}

func (l *JitteredLimiter) nextDelay() time.Duration {
	if l.maxDelay <= l.minDelay {
		return l.minDelay
	}
	return l.minDelay + time.Duration(rand.Int63n(int64(l.maxDelay-l.minDelay)))
}

// AdaptiveLimiter stretches its delays after repeated failures and slowly
// relaxes them again while scrapes keep succeeding.
type AdaptiveLimiter struct {
	*JitteredLimiter
	errorStreak   int
	successStreak int
	errorLimit    int
	backoffFactor float64
}

func NewAdaptiveLimiter(minDelay, maxDelay time.Duration) *AdaptiveLimiter {
	return &AdaptiveLimiter{
		JitteredLimiter: NewJitteredLimiter(minDelay, maxDelay),
		errorLimit:      3,
		backoffFactor:   1.5,
	}
}

func (a *AdaptiveLimiter) RecordSuccess() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.successStreak++
	a.errorStreak = 0

	if a.successStreak > 5 {
		relaxed := time.Duration(float64(a.minDelay) * 0.9)
		if relaxed < time.Second {
			relaxed = time.Second
		}
		a.minDelay = relaxed
		a.successStreak = 0
	}
}

func (a *AdaptiveLimiter) RecordError() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.errorStreak++
	a.successStreak = 0

	if a.errorStreak >= a.errorLimit {
		a.minDelay = capDelay(time.Duration(float64(a.minDelay)*a.backoffFactor), 60*time.Second)
		a.maxDelay = capDelay(time.Duration(float64(a.maxDelay)*a.backoffFactor), 120*time.Second)
		a.errorStreak = 0
	}
}

func capDelay(d, max time.Duration) time.Duration {
	if d > max {
		return max
	}
	return d
}
