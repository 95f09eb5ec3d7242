package recorder

import (
	"sync"
	"time"
)

// CircuitBreaker prevents thundering herd on log store outages. When the
// store is unhealthy the circuit opens and appends degrade immediately
// instead of each request waiting out the append timeout.
type CircuitBreaker struct {
	mu sync.RWMutex

	threshold int           // consecutive failures to trigger open
	cooldown  time.Duration // how long to stay open

	failures  int
	openUntil time.Time
	isOpen    bool
}

// NewCircuitBreaker creates a circuit breaker.
func NewCircuitBreaker(threshold int, cooldown time.Duration) *CircuitBreaker {
	if threshold <= 0 {
		threshold = 5
	}
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	return &CircuitBreaker{
		threshold: threshold,
		cooldown:  cooldown,
	}
}

// Allow returns true if the circuit is closed, or half-open after cooldown.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.RLock()
	if !cb.isOpen {
		cb.mu.RUnlock()
		return true
	}
	expired := time.Now().After(cb.openUntil)
	cb.mu.RUnlock()

	if !expired {
		return false
	}

	// Cooldown elapsed; transition to half-open and let one attempt probe
	// the store.
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.isOpen && time.Now().After(cb.openUntil) {
		cb.isOpen = false
		cb.failures = 0
	}
	return !cb.isOpen
}

// RecordSuccess closes the circuit.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.failures = 0
	cb.isOpen = false
}

// RecordFailure counts a failed append, opening the circuit at the threshold.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.failures++
	if cb.failures >= cb.threshold {
		cb.isOpen = true
		cb.openUntil = time.Now().Add(cb.cooldown)
	}
}

// IsOpen reports whether the circuit is currently open.
func (cb *CircuitBreaker) IsOpen() bool {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.isOpen
}
