package infra

import (
	"log/slog"
	"sync"
	"time"
)

// BreakerState represents the circuit breaker state.
type BreakerState int

const (
	BreakerClosed   BreakerState = iota // normal operation
	BreakerOpen                         // failing, reject requests
	BreakerHalfOpen                     // testing recovery
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "CLOSED"
	case BreakerOpen:
		return "OPEN"
	case BreakerHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// CircuitBreaker isolates a flapping RPC endpoint. A rejected request is
// treated by callers exactly like a fetch failure: the cycle is skipped and
// the previous snapshot kept.
type CircuitBreaker struct {
	name string
	mu   sync.Mutex

	state        BreakerState
	failureCount int
	successCount int
	lastFailure  time.Time

	failureThreshold int
	successThreshold int
	timeout          time.Duration
}

// NewCircuitBreaker creates a breaker with the given thresholds.
func NewCircuitBreaker(name string, failureThreshold, successThreshold int, timeout time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		name:             name,
		state:            BreakerClosed,
		failureThreshold: failureThreshold,
		successThreshold: successThreshold,
		timeout:          timeout,
	}
}

// DefaultCircuitBreaker returns a breaker with conservative defaults.
func DefaultCircuitBreaker(name string) *CircuitBreaker {
	return NewCircuitBreaker(name, 5, 2, 30*time.Second)
}

// Allow reports whether a request should proceed.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case BreakerClosed:
		return true
	case BreakerOpen:
		if time.Since(cb.lastFailure) > cb.timeout {
			cb.state = BreakerHalfOpen
			cb.successCount = 0
			slog.Info("circuit breaker half-open", slog.String("name", cb.name))
			return true
		}
		return false
	case BreakerHalfOpen:
		return true
	default:
		return false
	}
}

// RecordSuccess records a successful operation.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case BreakerClosed:
		cb.failureCount = 0
	case BreakerHalfOpen:
		cb.successCount++
		if cb.successCount >= cb.successThreshold {
			cb.state = BreakerClosed
			cb.failureCount = 0
			cb.successCount = 0
			slog.Info("circuit breaker closed", slog.String("name", cb.name))
		}
	}
}

// RecordFailure records a failed operation.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.lastFailure = time.Now()

	switch cb.state {
	case BreakerClosed:
		cb.failureCount++
		if cb.failureCount >= cb.failureThreshold {
			cb.state = BreakerOpen
			slog.Warn("circuit breaker open",
				slog.String("name", cb.name),
				slog.Int("failures", cb.failureCount))
		}
	case BreakerHalfOpen:
		cb.state = BreakerOpen
		cb.successCount = 0
		slog.Warn("circuit breaker re-opened", slog.String("name", cb.name))
	}
}

// State returns the current state for monitoring.
func (cb *CircuitBreaker) State() BreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}
