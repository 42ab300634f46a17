package chain

import (
	"sync"
	"time"
)

// Default breaker tuning.
const (
	DefaultBreakerThreshold = 2
	DefaultBreakerCooldown  = 15 * time.Second
)

// breaker is a per-endpoint circuit breaker. It opens after threshold
// consecutive failures and stays open for cooldown, during which the
// endpoint is skipped by the failover loop.
type breaker struct {
	mu        sync.Mutex
	threshold int
	cooldown  time.Duration
	failures  int
	openUntil time.Time
	now       func() time.Time
}

func newBreaker(threshold int, cooldown time.Duration) *breaker {
	if threshold <= 0 {
		threshold = DefaultBreakerThreshold
	}
	if cooldown <= 0 {
		cooldown = DefaultBreakerCooldown
	}
	return &breaker{threshold: threshold, cooldown: cooldown, now: time.Now}
}

// allow reports whether a call may be attempted.
func (b *breaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.now().After(b.openUntil)
}

// success resets the failure streak.
func (b *breaker) success() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
}

// failure records one failed call, opening the breaker at the threshold.
func (b *breaker) failure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures++
	if b.failures >= b.threshold {
		b.openUntil = b.now().Add(b.cooldown)
		b.failures = 0
	}
}
