package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// ErrUnavailable reports that a downstream dependency cannot serve a call,
// either because the circuit rejected it outright or because the attempted
// call failed. Callers must not distinguish the two cases for correctness;
// the wrapped message differs only for logging.
var ErrUnavailable = errors.New("dependency unavailable")

// BreakerState is the current position of the three-state machine.
type BreakerState int

const (
	StateClosed BreakerState = iota
	StateOpen
	StateHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	}
	return "unknown"
}

// BreakerSettings configures one Breaker. Zero values fall back to the
// defaults (5 consecutive failures, 30s recovery, 3 half-open probes).
type BreakerSettings struct {
	Name             string
	FailureThreshold int
	RecoveryTimeout  time.Duration
	HalfOpenRequests int
	Clock            func() time.Time // nil = time.Now; injectable for tests
	RejectionCounter *atomic.Int64    // incremented on each rejected call; nil disables
}

// Breaker protects one downstream dependency with a circuit breaker.
// One instance per dependency, process-lifetime, injected into the engine.
// All state mutation happens under a single mutex; thresholds are plain
// consecutive counts, not windowed rates.
type Breaker struct {
	name             string
	failureThreshold int
	recoveryTimeout  time.Duration
	halfOpenRequests int
	now              func() time.Time
	rejections       *atomic.Int64

	mu                  sync.Mutex
	state               BreakerState
	consecutiveFailures int
	lastFailureAt       time.Time
	halfOpenSuccesses   int
	halfOpenInFlight    int
}

// NewBreaker creates a closed breaker for one named dependency.
func NewBreaker(s BreakerSettings) *Breaker {
	if s.FailureThreshold <= 0 {
		s.FailureThreshold = 5
	}
	if s.RecoveryTimeout <= 0 {
		s.RecoveryTimeout = 30 * time.Second
	}
	if s.HalfOpenRequests <= 0 {
		s.HalfOpenRequests = 3
	}
	if s.Clock == nil {
		s.Clock = time.Now
	}
	return &Breaker{
		name:             s.Name,
		failureThreshold: s.FailureThreshold,
		recoveryTimeout:  s.RecoveryTimeout,
		halfOpenRequests: s.HalfOpenRequests,
		now:              s.Clock,
		rejections:       s.RejectionCounter,
		state:            StateClosed,
	}
}

// State returns the current state for logging and metrics.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// BreakerCall runs fn under b's availability accounting. A rejected call
// returns ErrUnavailable without invoking fn; a failed call returns
// ErrUnavailable wrapping fn's error, which stays reachable through
// errors.As so callers can recognize fatal business errors (policy
// rejections) inside an availability failure.
func BreakerCall[T any](b *Breaker, fn func() (T, error)) (T, error) {
	var zero T
	if !b.allow() {
		if b.rejections != nil {
			b.rejections.Add(1)
		}
		return zero, fmt.Errorf("%s: circuit open: %w", b.name, ErrUnavailable)
	}
	v, err := fn()
	if err != nil {
		b.onFailure()
		return zero, fmt.Errorf("%s: call failed: %w: %w", b.name, err, ErrUnavailable)
	}
	b.onSuccess()
	return v, nil
}

// allow decides whether a call may proceed, transitioning OPEN → HALF_OPEN
// when the recovery timeout has elapsed.
func (b *Breaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return true
	case StateOpen:
		if b.now().Sub(b.lastFailureAt) >= b.recoveryTimeout {
			b.transition(StateHalfOpen)
			b.halfOpenInFlight = 1
			return true
		}
		return false
	case StateHalfOpen:
		if b.halfOpenInFlight >= b.halfOpenRequests {
			return false
		}
		b.halfOpenInFlight++
		return true
	}
	return false
}

func (b *Breaker) onSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		b.consecutiveFailures = 0
	case StateHalfOpen:
		b.halfOpenSuccesses++
		b.halfOpenInFlight--
		if b.halfOpenSuccesses >= b.halfOpenRequests {
			b.transition(StateClosed)
		}
	}
}

func (b *Breaker) onFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.lastFailureAt = b.now()
	switch b.state {
	case StateClosed:
		b.consecutiveFailures++
		if b.consecutiveFailures >= b.failureThreshold {
			b.transition(StateOpen)
		}
	case StateHalfOpen:
		// One failed probe discards all half-open progress.
		b.transition(StateOpen)
	}
}

// transition mutates state under b.mu and resets the counters the new
// state starts from. Logged, never raised to callers.
func (b *Breaker) transition(to BreakerState) {
	from := b.state
	b.state = to
	switch to {
	case StateClosed:
		b.consecutiveFailures = 0
		b.halfOpenSuccesses = 0
		b.halfOpenInFlight = 0
	case StateHalfOpen:
		b.halfOpenSuccesses = 0
		b.halfOpenInFlight = 0
	}
	slog.Info("breaker state change",
		slog.String("dependency", b.name),
		slog.String("from", from.String()),
		slog.String("to", to.String()),
	)
}
