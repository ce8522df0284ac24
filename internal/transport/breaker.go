package transport

import (
	"sync"
	"time"

	"github.com/perpx/unified/pkg/unified"
)

// breakerState is one of the three states spec §4.2 names.
type breakerState int

const (
	breakerClosed breakerState = iota
	breakerOpen
	breakerHalfOpen
)

// BreakerConfig tunes the circuit breaker. Zero values fall back to spec
// §4.2's defaults.
type BreakerConfig struct {
	FailureThreshold int           // default 5
	ResetTimeout     time.Duration // default 30s
	SuccessThreshold int           // default 1
}

func (c BreakerConfig) withDefaults() BreakerConfig {
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = 5
	}
	if c.ResetTimeout <= 0 {
		c.ResetTimeout = 30 * time.Second
	}
	if c.SuccessThreshold <= 0 {
		c.SuccessThreshold = 1
	}
	return c
}

// breaker is the per-Client circuit breaker — shared across every request
// made through one Client instance, never per-endpoint, per spec §4.2.
type breaker struct {
	mu sync.Mutex

	cfg BreakerConfig

	state            breakerState
	consecutiveFails int
	successes        int
	openedAt         time.Time
	probeInFlight    bool
}

func newBreaker(cfg BreakerConfig) *breaker {
	return &breaker{cfg: cfg.withDefaults(), state: breakerClosed}
}

// allow reports whether a request may proceed. When the breaker is OPEN
// and resetTimeout has elapsed since openedAt, it transitions to HALF_OPEN
// and allows exactly one probe through.
func (b *breaker) allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case breakerClosed:
		return nil
	case breakerHalfOpen:
		// Only one probe at a time; a request already admitted as the
		// probe is tracked via recordSuccess/recordFailure, so a second
		// concurrent caller arriving while the probe is outstanding is
		// still rejected.
		if b.probeInFlight {
			return unified.New(unified.CategoryCircuitOpen, "", "circuit breaker half-open, probe in flight")
		}
		b.probeInFlight = true
		return nil
	case breakerOpen:
		if time.Since(b.openedAt) >= b.cfg.ResetTimeout {
			b.state = breakerHalfOpen
			b.successes = 0
			b.probeInFlight = true
			return nil
		}
		return unified.New(unified.CategoryCircuitOpen, "", "circuit breaker open")
	default:
		return nil
	}
}

func (b *breaker) recordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case breakerHalfOpen:
		b.probeInFlight = false
		b.successes++
		if b.successes >= b.cfg.SuccessThreshold {
			b.state = breakerClosed
			b.consecutiveFails = 0
			b.successes = 0
		}
	case breakerClosed:
		b.consecutiveFails = 0
	}
}

func (b *breaker) recordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case breakerHalfOpen:
		b.probeInFlight = false
		b.state = breakerOpen
		b.openedAt = time.Now()
		b.successes = 0
	case breakerClosed:
		b.consecutiveFails++
		if b.consecutiveFails >= b.cfg.FailureThreshold {
			b.state = breakerOpen
			b.openedAt = time.Now()
		}
	}
}

// snapshot returns the current state, for tests and diagnostics.
func (b *breaker) snapshot() breakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
