package supervisor

import (
	"errors"
	"testing"
	"time"
)

// fakeClock lets breaker tests advance time without sleeping.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestBreaker(threshold int, reset time.Duration) (*breaker, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	b := newBreaker(threshold, reset)
	b.now = clock.now
	return b, clock
}

func TestBreaker_OpensAtThreshold(t *testing.T) {
	b, _ := newTestBreaker(3, time.Minute)

	b.recordFailure()
	b.recordFailure()
	if err := b.allow(); err != nil {
		t.Fatalf("breaker opened below threshold: %v", err)
	}

	b.recordFailure()
	err := b.allow()
	var openErr *CircuitOpenError
	if !errors.As(err, &openErr) {
		t.Fatalf("expected *CircuitOpenError at threshold, got %v", err)
	}
	if openErr.RetryAfter > time.Minute || openErr.RetryAfter <= 0 {
		t.Errorf("RetryAfter = %v, want in (0, 1m]", openErr.RetryAfter)
	}
}

func TestBreaker_LazyResetClosesAndZeroesCounter(t *testing.T) {
	b, clock := newTestBreaker(2, time.Minute)

	b.recordFailure()
	b.recordFailure()
	if err := b.allow(); err == nil {
		t.Fatal("expected open breaker")
	}

	clock.advance(59 * time.Second)
	if err := b.allow(); err == nil {
		t.Fatal("reset window has not elapsed yet")
	}

	clock.advance(2 * time.Second)
	if err := b.allow(); err != nil {
		t.Fatalf("expected closed breaker after reset window: %v", err)
	}

	state, failures := b.snapshot()
	if state != BreakerClosed || failures != 0 {
		t.Errorf("snapshot = %v/%d, want closed/0", state, failures)
	}

	// The counter restarted: one failure must not reopen.
	b.recordFailure()
	if err := b.allow(); err != nil {
		t.Errorf("breaker reopened after a single post-reset failure: %v", err)
	}
}

func TestBreaker_SuccessResetsCounter(t *testing.T) {
	b, _ := newTestBreaker(3, time.Minute)

	b.recordFailure()
	b.recordFailure()
	b.recordSuccess()
	b.recordFailure()
	b.recordFailure()

	if err := b.allow(); err != nil {
		t.Errorf("breaker opened despite intervening success: %v", err)
	}
}

func TestBreaker_SnapshotWhileOpen(t *testing.T) {
	b, clock := newTestBreaker(1, time.Minute)

	b.recordFailure()
	state, failures := b.snapshot()
	if state != BreakerOpen || failures != 1 {
		t.Errorf("snapshot = %v/%d, want open/1", state, failures)
	}

	// After the window the snapshot reports closed even before the lazy
	// transition in allow().
	clock.advance(2 * time.Minute)
	state, failures = b.snapshot()
	if state != BreakerClosed || failures != 0 {
		t.Errorf("snapshot after window = %v/%d, want closed/0", state, failures)
	}
}
