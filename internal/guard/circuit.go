package guard

import (
	"fmt"
	"sync"
	"time"
)

// CircuitState represents the state of a circuit breaker.
type CircuitState int

const (
	CircuitClosed CircuitState = iota
	CircuitOpen
	CircuitHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half_open"
	default:
		return "closed"
	}
}

// Result is the outcome of a breaker check.
type Result struct {
	Allowed bool
	Reason  string
}

// CircuitBreaker keeps one circuit per key, typically a downstream topic.
type CircuitBreaker struct {
	mu            sync.Mutex
	circuits      map[string]*circuit
	failThreshold int
	resetTimeout  time.Duration
	halfOpenMax   int
	now           func() time.Time
}

type circuit struct {
	state       CircuitState
	failures    int
	successes   int
	probes      int
	lastFailure time.Time
}

// NewCircuitBreaker creates a circuit breaker with configurable thresholds.
func NewCircuitBreaker(failThreshold int, resetTimeout time.Duration) *CircuitBreaker {
	if failThreshold < 1 {
		failThreshold = 1
	}
	return &CircuitBreaker{
		circuits:      make(map[string]*circuit),
		failThreshold: failThreshold,
		resetTimeout:  resetTimeout,
		halfOpenMax:   1,
		now:           time.Now,
	}
}

// Check returns whether the circuit for key allows a call.
func (cb *CircuitBreaker) Check(key string) Result {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	c := cb.get(key)
	switch c.state {
	case CircuitOpen:
		since := cb.now().Sub(c.lastFailure)
		if since > cb.resetTimeout {
			c.state = CircuitHalfOpen
			c.successes = 0
			c.probes = 1
			return Result{Allowed: true}
		}
		return Result{Reason: fmt.Sprintf("circuit open for %s, resets in %s", key, cb.resetTimeout-since)}
	case CircuitHalfOpen:
		if c.probes >= cb.halfOpenMax {
			return Result{Reason: "circuit half-open, max probes reached"}
		}
		c.probes++
		return Result{Allowed: true}
	default:
		return Result{Allowed: true}
	}
}

// RecordSuccess marks a successful call for key.
func (cb *CircuitBreaker) RecordSuccess(key string) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	c := cb.get(key)
	switch c.state {
	case CircuitHalfOpen:
		c.successes++
		if c.successes >= cb.halfOpenMax {
			c.state = CircuitClosed
			c.failures = 0
			c.probes = 0
		}
	case CircuitClosed:
		c.failures = 0
	}
}

// RecordFailure marks a failed call for key. A failed half-open probe reopens
// the circuit immediately.
func (cb *CircuitBreaker) RecordFailure(key string) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	c := cb.get(key)
	c.failures++
	c.lastFailure = cb.now()

	if c.state == CircuitHalfOpen || c.failures >= cb.failThreshold {
		c.state = CircuitOpen
		c.probes = 0
	}
}

// State returns the current state of key's circuit.
func (cb *CircuitBreaker) State(key string) CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.get(key).state
}

func (cb *CircuitBreaker) get(key string) *circuit {
	c, ok := cb.circuits[key]
	if !ok {
		c = &circuit{state: CircuitClosed}
		cb.circuits[key] = c
	}
	return c
}
