package resilience

import (
	"errors"
	"sync"
	"time"

	"github.com/AntoinePinto/docu-talk/pkg/logger"
)

// ErrCircuitOpen is returned when the breaker short-circuits a call.
var ErrCircuitOpen = errors.New("circuit open")

// State is the breaker position.
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half-open"
)

// CircuitBreakerConfig tunes one breaker.
type CircuitBreakerConfig struct {
	Name             string
	FailureThreshold uint
	SuccessThreshold uint
	RetryTimeout     time.Duration
}

// DefaultCircuitBreakerConfig opens after 5 consecutive failures, probes
// again after a minute and closes after 2 successful probes.
func DefaultCircuitBreakerConfig(name string) CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Name:             name,
		FailureThreshold: 5,
		SuccessThreshold: 2,
		RetryTimeout:     time.Minute,
	}
}

// CircuitBreaker guards calls to the model provider. Consecutive failures
// open the circuit; after the retry timeout a limited number of probe calls
// decide whether to close it again.
type CircuitBreaker struct {
	cfg CircuitBreakerConfig
	log *logger.Logger

	mu          sync.Mutex
	state       State
	failures    uint
	probes      uint
	reopenAfter time.Time
}

// NewCircuitBreaker builds a closed breaker.
func NewCircuitBreaker(cfg CircuitBreakerConfig, log *logger.Logger) *CircuitBreaker {
	return &CircuitBreaker{cfg: cfg, log: log, state: StateClosed}
}

// Execute runs fn unless the circuit is open. The error from fn is returned
// unchanged; a short-circuited call returns ErrCircuitOpen.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if !cb.admit() {
		cb.log.Warn("Circuit breaker rejecting call", "name", cb.cfg.Name)
		return ErrCircuitOpen
	}

	if err := fn(); err != nil {
		cb.onFailure(err)
		return err
	}
	cb.onSuccess()
	return nil
}

// GetState reports the current breaker position.
func (cb *CircuitBreaker) GetState() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

func (cb *CircuitBreaker) admit() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return true
	case StateOpen:
		if time.Now().After(cb.reopenAfter) {
			cb.state = StateHalfOpen
			cb.probes = 0
			cb.log.Info("Circuit breaker half-open", "name", cb.cfg.Name)
			return true
		}
		return false
	case StateHalfOpen:
		return cb.probes < cb.cfg.SuccessThreshold
	}
	return false
}

func (cb *CircuitBreaker) onSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		cb.failures = 0
	case StateHalfOpen:
		cb.probes++
		if cb.probes >= cb.cfg.SuccessThreshold {
			cb.state = StateClosed
			cb.failures = 0
			cb.log.Info("Circuit breaker closed", "name", cb.cfg.Name)
		}
	}
}

func (cb *CircuitBreaker) onFailure(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		cb.failures++
		if cb.failures >= cb.cfg.FailureThreshold {
			cb.trip(err)
		}
	case StateHalfOpen:
		cb.trip(err)
	}
}

// trip opens the circuit. Caller holds the lock.
func (cb *CircuitBreaker) trip(err error) {
	cb.state = StateOpen
	cb.reopenAfter = time.Now().Add(cb.cfg.RetryTimeout)
	cb.log.Warn("Circuit breaker opened",
		"name", cb.cfg.Name,
		"error", err.Error(),
		"retry_at", cb.reopenAfter.Format(time.RFC3339),
	)
}
