package llm

import (
	"sync"
	"time"
)

// BreakerState represents the current state of the circuit breaker.
type BreakerState string

const (
	// BreakerClosed indicates normal operation, calls pass through.
	BreakerClosed BreakerState = "closed"
	// BreakerOpen indicates the model is considered unavailable and calls
	// are rejected without reaching it.
	BreakerOpen BreakerState = "open"
	// BreakerHalfOpen indicates the recovery timeout has elapsed and a
	// single probe call is allowed through.
	BreakerHalfOpen BreakerState = "half_open"
)

// CircuitBreaker guards calls to the language model. Callers must pair
// every admitted call with exactly one RecordSuccess or RecordFailure.
//
// Thread Safety: Safe for concurrent use.
type CircuitBreaker interface {
	// Allow reports whether a call may proceed. In half_open it admits
	// only the single probe.
	Allow() bool

	// RecordSuccess reports a successful call, closing the breaker from
	// half_open and clearing the failure streak.
	RecordSuccess()

	// RecordFailure reports a failed or timed-out call.
	RecordFailure()

	// State returns the current breaker state.
	State() BreakerState

	// Stats returns counters about breaker activity.
	Stats() BreakerStats
}

// BreakerStats contains counters about breaker activity.
type BreakerStats struct {
	// State is the current breaker state.
	State BreakerState
	// ConsecutiveFailures is the current failure streak in closed state.
	ConsecutiveFailures int
	// TotalOpens is how many times the breaker has opened.
	TotalOpens int64
	// TotalRejected is how many calls were rejected while open.
	TotalRejected int64
	// LastOpenedAt is when the breaker last opened.
	LastOpenedAt time.Time
}

// BreakerConfig holds configuration for the consecutive-failure breaker.
type BreakerConfig struct {
	// FailureThreshold is the consecutive failure count that opens the
	// breaker (default: 3).
	FailureThreshold int `mapstructure:"failureThreshold"`
	// RecoveryTimeout is how long the breaker stays open before allowing
	// a probe (default: 30s).
	RecoveryTimeout time.Duration `mapstructure:"recoveryTimeout"`
}

// DefaultBreakerConfig returns a BreakerConfig with default values.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 3,
		RecoveryTimeout:  30 * time.Second,
	}
}

// ConsecutiveBreaker is a circuit breaker that opens after a configured
// number of consecutive failures, stays open for a recovery timeout and
// then admits one probe in half_open. The probe's outcome decides between
// closing and re-opening.
type ConsecutiveBreaker struct {
	config BreakerConfig

	mu            sync.Mutex
	state         BreakerState
	failures      int
	openedAt      time.Time
	probeInFlight bool

	totalOpens    int64
	totalRejected int64

	// now is replaceable in tests
	now func() time.Time
}

// NewConsecutiveBreaker creates a breaker in the closed state.
func NewConsecutiveBreaker(config BreakerConfig) *ConsecutiveBreaker {
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = 3
	}
	if config.RecoveryTimeout <= 0 {
		config.RecoveryTimeout = 30 * time.Second
	}
	return &ConsecutiveBreaker{
		config: config,
		state:  BreakerClosed,
		now:    time.Now,
	}
}

// Allow reports whether a call may proceed.
func (b *ConsecutiveBreaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerClosed:
		return true

	case BreakerOpen:
		if b.now().Sub(b.openedAt) >= b.config.RecoveryTimeout {
			b.state = BreakerHalfOpen
			b.probeInFlight = true
			return true
		}
		b.totalRejected++
		return false

	case BreakerHalfOpen:
		if b.probeInFlight {
			b.totalRejected++
			return false
		}
		b.probeInFlight = true
		return true
	}

	return false
}

// RecordSuccess reports a successful call.
func (b *ConsecutiveBreaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerHalfOpen:
		b.state = BreakerClosed
		b.failures = 0
		b.probeInFlight = false
		b.openedAt = time.Time{}
	case BreakerClosed:
		b.failures = 0
	}
}

// RecordFailure reports a failed or timed-out call.
func (b *ConsecutiveBreaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerHalfOpen:
		b.open()
	case BreakerClosed:
		b.failures++
		if b.failures >= b.config.FailureThreshold {
			b.open()
		}
	}
}

// State returns the current breaker state without advancing it.
func (b *ConsecutiveBreaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Stats returns counters about breaker activity.
func (b *ConsecutiveBreaker) Stats() BreakerStats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return BreakerStats{
		State:               b.state,
		ConsecutiveFailures: b.failures,
		TotalOpens:          b.totalOpens,
		TotalRejected:       b.totalRejected,
		LastOpenedAt:        b.openedAt,
	}
}

// open transitions to the open state. Caller holds the lock.
func (b *ConsecutiveBreaker) open() {
	b.state = BreakerOpen
	b.openedAt = b.now()
	b.failures = 0
	b.probeInFlight = false
	b.totalOpens++
}

// Compile-time interface check
var _ CircuitBreaker = (*ConsecutiveBreaker)(nil)
