package supervisor

import (
	"sync"
	"time"
)

// BreakerState is the circuit breaker's current state. There is no
// half-open state: after resetTimeout elapses the breaker closes and the
// next call is a full trial whose outcome restarts the count.
type BreakerState int

const (
	BreakerClosed BreakerState = iota
	BreakerOpen
)

func (s BreakerState) String() string {
	if s == BreakerOpen {
		return "open"
	}
	return "closed"
}

// breaker counts consecutive completed failures and rejects calls while
// open. The reset is lazy: evaluated on the next allow() rather than by a
// background timer.
type breaker struct {
	mu           sync.Mutex
	threshold    int
	resetTimeout time.Duration

	failures int
	state    BreakerState
	openedAt time.Time

	now func() time.Time // stubbed in tests
}

func newBreaker(threshold int, resetTimeout time.Duration) *breaker {
	return &breaker{
		threshold:    threshold,
		resetTimeout: resetTimeout,
		now:          time.Now,
	}
}

// allow returns nil if a call may proceed, or *CircuitOpenError if the
// breaker is open. An elapsed reset window transitions back to closed and
// zeroes the failure counter.
func (b *breaker) allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == BreakerClosed {
		return nil
	}

	elapsed := b.now().Sub(b.openedAt)
	if elapsed >= b.resetTimeout {
		b.state = BreakerClosed
		b.failures = 0
		return nil
	}
	return &CircuitOpenError{RetryAfter: b.resetTimeout - elapsed}
}

// recordFailure increments the consecutive-failure counter and opens the
// breaker at threshold. Only completed invocations (non-zero exit, timeout,
// spawn error) call this — circuit-open rejections never do.
func (b *breaker) recordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	if b.failures >= b.threshold && b.state == BreakerClosed {
		b.state = BreakerOpen
		b.openedAt = b.now()
	}
}

// recordSuccess zeroes the consecutive-failure counter.
func (b *breaker) recordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures = 0
}

func (b *breaker) snapshot() (BreakerState, int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	// Report "closed" once the reset window has elapsed, even before the
	// next allow() performs the lazy transition.
	if b.state == BreakerOpen && b.now().Sub(b.openedAt) >= b.resetTimeout {
		return BreakerClosed, 0
	}
	return b.state, b.failures
}
