package infra

import (
	"testing"
	"time"
)

func TestCircuitBreaker_OpensAfterFailures(t *testing.T) {
	cb := NewCircuitBreaker("test", 3, 1, time.Minute)

	for i := 0; i < 3; i++ {
		if !cb.Allow() {
			t.Fatalf("breaker rejected request %d while closed", i)
		}
		cb.RecordFailure()
	}

	if cb.State() != BreakerOpen {
		t.Fatalf("state = %v, want OPEN", cb.State())
	}
	if cb.Allow() {
		t.Error("open breaker must reject requests")
	}
}

func TestCircuitBreaker_RecoversThroughHalfOpen(t *testing.T) {
	cb := NewCircuitBreaker("test", 1, 2, 10*time.Millisecond)

	cb.RecordFailure()
	if cb.State() != BreakerOpen {
		t.Fatal("breaker should open after threshold")
	}

	time.Sleep(20 * time.Millisecond)

	if !cb.Allow() {
		t.Fatal("breaker should allow a probe after timeout")
	}
	cb.RecordSuccess()
	cb.RecordSuccess()

	if cb.State() != BreakerClosed {
		t.Errorf("state = %v, want CLOSED after recovery", cb.State())
	}
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	cb := NewCircuitBreaker("test", 1, 2, 10*time.Millisecond)

	cb.RecordFailure()
	time.Sleep(20 * time.Millisecond)
	cb.Allow() // transitions to half-open
	cb.RecordFailure()

	if cb.State() != BreakerOpen {
		t.Errorf("state = %v, want OPEN after half-open failure", cb.State())
	}
}

func TestCalculateBackoffBounds(t *testing.T) {
	cases := []struct {
		retry int
		want  time.Duration
	}{
		{-1, baseDelay},
		{0, 1 * time.Second},
		{1, 2 * time.Second},
		{4, 16 * time.Second},
		{10, maxDelay},
		{64, maxDelay},
	}
	for _, c := range cases {
		if got := CalculateBackoff(c.retry); got != c.want {
			t.Errorf("CalculateBackoff(%d) = %v, want %v", c.retry, got, c.want)
		}
	}
}
