// Package breaker implements the per-team circuit breaker that suppresses
// repeated remediation during sustained outages.
//
// The breaker counts consecutive critical assessments, not call failures:
// assessments keep running while the breaker is open so observability
// never goes dark, but the escalation path is cut off.
package breaker

import (
	"time"

	"vigil/internal/check"
	"vigil/internal/health"
)

// State is the breaker position.
type State uint8

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown_state"
	}
}

// Transition validates a state change and returns the new state. Invalid
// transitions trip a debug assertion and leave the state unchanged.
func (s State) Transition(to State) State {
	ok := false
	switch s {
	case StateClosed:
		ok = to == StateOpen
	case StateOpen:
		ok = to == StateHalfOpen
	case StateHalfOpen:
		ok = to == StateClosed || to == StateOpen
	}
	check.Assertf(ok, "breaker transition: %s -> %s", s, to)
	if !ok {
		return s
	}
	return to
}

// Breaker is one team's failure-counting state machine. It is not
// self-locking: the owning team state guards it.
type Breaker struct {
	failureThreshold    int
	openTimeout         time.Duration
	state               State
	consecutiveFailures int
	openedAt            time.Time
}

// New returns a closed Breaker.
func New(failureThreshold int, openTimeout time.Duration) *Breaker {
	check.Assert(failureThreshold >= 1, "breaker.New: failureThreshold must be at least 1")
	return &Breaker{
		failureThreshold: failureThreshold,
		openTimeout:      openTimeout,
		state:            StateClosed,
	}
}

// Record feeds one assessment outcome into the state machine.
//
// An expired open window first moves the breaker to half-open, so the same
// assessment that ends the window also decides the half-open probe.
func (b *Breaker) Record(status health.Status, now time.Time) {
	if b.state == StateOpen && now.Sub(b.openedAt) >= b.openTimeout {
		b.state = b.state.Transition(StateHalfOpen)
	}

	critical := status == health.StatusCritical

	switch b.state {
	case StateClosed:
		if !critical {
			b.consecutiveFailures = 0
			return
		}
		b.consecutiveFailures++
		if b.consecutiveFailures >= b.failureThreshold {
			b.state = b.state.Transition(StateOpen)
			b.openedAt = now
		}
	case StateOpen:
		// Window still running: keep counting for observability only.
		if critical {
			b.consecutiveFailures++
		}
	case StateHalfOpen:
		if critical {
			b.consecutiveFailures++
			b.state = b.state.Transition(StateOpen)
			b.openedAt = now
		} else {
			b.consecutiveFailures = 0
			b.state = b.state.Transition(StateClosed)
		}
	}
}

// AllowRemediation reports whether the escalation controller may dispatch.
// Open always denies; closed and half-open allow.
func (b *Breaker) AllowRemediation() bool {
	return b.state != StateOpen
}

// State returns the current position.
func (b *Breaker) State() State { return b.state }

// ConsecutiveFailures returns the running critical streak.
func (b *Breaker) ConsecutiveFailures() int { return b.consecutiveFailures }

// OpenedAt returns when the breaker last opened. Zero if never opened.
func (b *Breaker) OpenedAt() time.Time { return b.openedAt }
