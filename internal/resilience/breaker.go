package resilience

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned when the breaker rejects a call without
// attempting it.
var ErrCircuitOpen = errors.New("resilience: circuit open")

// State is the observable circuit breaker state.
type State string

const (
	StateClosed   State = "CLOSED"
	StateOpen     State = "OPEN"
	StateHalfOpen State = "HALF_OPEN"
)

// halfOpenSuccessTarget is the number of consecutive HALF_OPEN successes
// required before the breaker closes again.
const halfOpenSuccessTarget = 3

type BreakerConfig struct {
	FailureThreshold int
	ResetTimeout     time.Duration
}

func (c BreakerConfig) withDefaults() BreakerConfig {
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = 5
	}
	if c.ResetTimeout <= 0 {
		c.ResetTimeout = 60 * time.Second
	}
	return c
}

// BreakerSnapshot is a point-in-time view of breaker state and counters.
type BreakerSnapshot struct {
	State           State     `json:"state"`
	Failures        int       `json:"failures"`
	HalfOpenSuccess int       `json:"half_open_successes"`
	LastFailureAt   time.Time `json:"last_failure_at"`
}

// CircuitBreaker guards one external dependency. Calls are rejected while
// OPEN until ResetTimeout has elapsed since the last failure, after which a
// probe call transitions the breaker to HALF_OPEN.
type CircuitBreaker struct {
	cfg BreakerConfig

	mu              sync.Mutex
	state           State
	failures        int
	halfOpenSuccess int
	lastFailure     time.Time

	now       func() time.Time
	onChanged func(from, to State)
}

func NewCircuitBreaker(cfg BreakerConfig) *CircuitBreaker {
	return &CircuitBreaker{cfg: cfg.withDefaults(), state: StateClosed, now: time.Now}
}

// OnStateChange registers a hook invoked (outside the lock) on every
// transition. Used for logging and metrics.
func (cb *CircuitBreaker) OnStateChange(fn func(from, to State)) {
	cb.mu.Lock()
	cb.onChanged = fn
	cb.mu.Unlock()
}

// Do runs fn when the breaker permits it and records the outcome.
func (cb *CircuitBreaker) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := cb.allow(); err != nil {
		return err
	}
	err := fn(ctx)
	if err != nil {
		cb.recordFailure()
		return err
	}
	cb.recordSuccess()
	return nil
}

func (cb *CircuitBreaker) allow() error {
	cb.mu.Lock()
	switch cb.state {
	case StateClosed, StateHalfOpen:
		cb.mu.Unlock()
		return nil
	case StateOpen:
		if cb.now().Sub(cb.lastFailure) > cb.cfg.ResetTimeout {
			notify := cb.transition(StateHalfOpen)
			cb.halfOpenSuccess = 0
			cb.mu.Unlock()
			notify()
			return nil
		}
		cb.mu.Unlock()
		return ErrCircuitOpen
	}
	cb.mu.Unlock()
	return ErrCircuitOpen
}

func (cb *CircuitBreaker) recordSuccess() {
	cb.mu.Lock()
	notify := func() {}
	switch cb.state {
	case StateClosed:
		cb.failures = 0
	case StateHalfOpen:
		cb.halfOpenSuccess++
		if cb.halfOpenSuccess >= halfOpenSuccessTarget {
			notify = cb.transition(StateClosed)
			cb.failures = 0
		}
	}
	cb.mu.Unlock()
	notify()
}

func (cb *CircuitBreaker) recordFailure() {
	cb.mu.Lock()
	notify := func() {}
	cb.lastFailure = cb.now()
	switch cb.state {
	case StateClosed:
		cb.failures++
		if cb.failures >= cb.cfg.FailureThreshold {
			notify = cb.transition(StateOpen)
		}
	case StateHalfOpen:
		notify = cb.transition(StateOpen)
	}
	cb.mu.Unlock()
	notify()
}

// Reset forces the breaker CLOSED with all counters zeroed.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	notify := func() {}
	if cb.state != StateClosed {
		notify = cb.transition(StateClosed)
	}
	cb.failures = 0
	cb.halfOpenSuccess = 0
	cb.lastFailure = time.Time{}
	cb.mu.Unlock()
	notify()
}

func (cb *CircuitBreaker) Snapshot() BreakerSnapshot {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return BreakerSnapshot{
		State:           cb.state,
		Failures:        cb.failures,
		HalfOpenSuccess: cb.halfOpenSuccess,
		LastFailureAt:   cb.lastFailure,
	}
}

// transition must be called with the lock held; the returned func fires the
// change hook and must be called after unlocking.
func (cb *CircuitBreaker) transition(to State) func() {
	from := cb.state
	cb.state = to
	hook := cb.onChanged
	if hook == nil || from == to {
		return func() {}
	}
	return func() { hook(from, to) }
}
