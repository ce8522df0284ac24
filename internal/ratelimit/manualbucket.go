package ratelimit

import (
	"sync"
	"time"
)

// TokenBucket is the teacher's original continuous-refill token bucket
// (internal/exchange/ratelimit.go's TokenBucket), kept as a building block
// rather than deleted. It no longer gates outgoing HTTP requests — Limiter
// above does that, backed by golang.org/x/time/rate — but the same
// continuous-refill shape is exactly what the WebSocket manager's
// backpressure sampler needs: a cheap way to ask "has it been at least X
// since the last sample?" without pulling in a full ticker per
// subscription. wsengine.Manager uses one TokenBucket per subscriber queue to
// throttle how often it logs/counts a sustained overflow.
type TokenBucket struct {
	mu       sync.Mutex
	tokens   float64
	capacity float64
	rate     float64 // tokens per second
	lastTime time.Time
}

// NewTokenBucket creates a bucket with the given burst capacity and
// per-second refill rate, starting full.
func NewTokenBucket(capacity, ratePerSecond float64) *TokenBucket {
	return &TokenBucket{
		tokens:   capacity,
		capacity: capacity,
		rate:     ratePerSecond,
		lastTime: time.Now(),
	}
}

// TryTake reports whether a token is available right now, consuming it if
// so. Unlike Limiter.Acquire, this never blocks — callers that don't get a
// token simply skip whatever they were going to do (e.g. emit a log line).
func (tb *TokenBucket) TryTake() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(tb.lastTime).Seconds()
	tb.tokens += elapsed * tb.rate
	if tb.tokens > tb.capacity {
		tb.tokens = tb.capacity
	}
	tb.lastTime = now

	if tb.tokens >= 1 {
		tb.tokens--
		return true
	}
	return false
}
