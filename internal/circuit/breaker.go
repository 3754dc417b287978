// Package circuit implements the three-state Circuit Breaker (spec §4.6),
// grounded on rcourtman-Pulse/internal/ai/circuit's Breaker but simplified
// to a single failure_threshold and a single recovery_timeout — the spec
// defines no exponential backoff or success-threshold, just Closed/Open/
// HalfOpen with one trial call on recovery.
package circuit

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// State is one of Closed/Open/HalfOpen (spec §3: Circuit Breaker State).
type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Breaker is a mutex-guarded failure-rate gate admitting calls per
// spec §4.6's exact transition rules.
type Breaker struct {
	mu sync.Mutex

	failureThreshold int
	recoveryTimeout  time.Duration
	log              zerolog.Logger

	state         State
	failureCount  int
	lastFailureAt time.Time

	halfOpenProbeInFlight bool
}

// New constructs a Breaker starting Closed.
func New(failureThreshold int, recoveryTimeout time.Duration, log zerolog.Logger) *Breaker {
	if failureThreshold <= 0 {
		failureThreshold = 1
	}
	return &Breaker{
		failureThreshold: failureThreshold,
		recoveryTimeout:  recoveryTimeout,
		log:              log,
		state:            Closed,
	}
}

// Allow reports whether a call may proceed, transitioning Open → HalfOpen
// once recovery_timeout has elapsed (spec §4.6). In HalfOpen only a single
// trial call is admitted at a time.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Closed:
		return true
	case Open:
		if time.Since(b.lastFailureAt) >= b.recoveryTimeout {
			b.transition(HalfOpen)
			b.halfOpenProbeInFlight = true
			return true
		}
		return false
	case HalfOpen:
		if b.halfOpenProbeInFlight {
			return false
		}
		b.halfOpenProbeInFlight = true
		return true
	default:
		return true
	}
}

// RecordSuccess reports a successful call. In HalfOpen this closes the
// breaker and resets the failure counter (spec §4.6).
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case HalfOpen:
		b.transition(Closed)
		b.failureCount = 0
		b.halfOpenProbeInFlight = false
	case Closed:
		b.failureCount = 0
	}
}

// RecordFailure reports a failed call. In Closed it increments the failure
// counter, opening the breaker once failure_threshold is reached. In
// HalfOpen a single failure reopens it and resets the recovery timer
// (spec §4.6: "failure → Open (reset timer)").
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.lastFailureAt = time.Now()

	switch b.state {
	case Closed:
		b.failureCount++
		if b.failureCount >= b.failureThreshold {
			b.transition(Open)
		}
	case HalfOpen:
		b.halfOpenProbeInFlight = false
		b.transition(Open)
	}
}

func (b *Breaker) transition(to State) {
	from := b.state
	b.state = to
	if from != to {
		b.log.Info().Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state transition")
	}
}

// Snapshot is the Circuit Breaker State record from spec §3.
type Snapshot struct {
	State            State
	FailureCount     int
	LastFailureAt    time.Time
	FailureThreshold int
	RecoveryTimeout  time.Duration
}

func (b *Breaker) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Snapshot{
		State:            b.state,
		FailureCount:     b.failureCount,
		LastFailureAt:    b.lastFailureAt,
		FailureThreshold: b.failureThreshold,
		RecoveryTimeout:  b.recoveryTimeout,
	}
}

// ForceOpen lets the Health Monitor proactively trip the breaker when the
// aggregate health score drops below a threshold (spec §4.6, §4.8).
func (b *Breaker) ForceOpen() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lastFailureAt = time.Now()
	b.transition(Open)
}
