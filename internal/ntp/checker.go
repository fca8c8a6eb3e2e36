// Package ntp verifies that the local wall clock can be trusted. The
// business-hours safety gate refuses to act on a clock with a large NTP
// offset, since the gate's whole premise is knowing what time it is.
package ntp

import (
	"context"
	"sync"
	"time"

	"github.com/beevik/ntp"

	"vigil/internal/check"
	"vigil/internal/health"
)

const (
	defaultPool      = "pool.ntp.org"
	defaultInterval  = 60 * time.Second
	defaultThreshold = 500 * time.Millisecond
)

// Phase is the clock-trust state.
type Phase uint8

const (
	PhaseUnchecked Phase = iota + 1
	PhaseHealthy
	PhaseUnhealthyOffset
	PhaseError
)

func (p Phase) String() string {
	switch p {
	case PhaseUnchecked:
		return "unchecked"
	case PhaseHealthy:
		return "healthy"
	case PhaseUnhealthyOffset:
		return "unhealthy_offset"
	case PhaseError:
		return "error"
	default:
		return "unknown"
	}
}

// Status is one clock-trust observation.
type Status struct {
	Offset    time.Duration
	Phase     Phase
	Error     string
	CheckedAt time.Time
}

// Trusted reports whether the wall clock may gate remediation decisions.
// Only a confirmed bad offset is untrusted: an unreachable NTP pool keeps
// the last local verdict rather than blocking healing outright.
func (s Status) Trusted() bool {
	return s.Phase != PhaseUnhealthyOffset
}

// Checker periodically measures clock offset against an NTP pool.
type Checker struct {
	mu        sync.RWMutex
	status    Status
	pool      string
	interval  time.Duration
	threshold time.Duration
	clock     health.Clock

	// query measures the offset against the pool. Swapped out in tests.
	query func(pool string) (time.Duration, error)
}

// NewChecker creates a Checker against the default pool.
func NewChecker(clock health.Clock) *Checker {
	check.Assert(clock != nil, "ntp.NewChecker: clock must not be nil")
	return &Checker{
		pool:      defaultPool,
		interval:  defaultInterval,
		threshold: defaultThreshold,
		status:    Status{Phase: PhaseUnchecked},
		clock:     clock,
		query:     queryPool,
	}
}

func queryPool(pool string) (time.Duration, error) {
	resp, err := ntp.Query(pool)
	if err != nil {
		return 0, err
	}
	return resp.ClockOffset, nil
}

// Run checks immediately, then on every interval until ctx is cancelled.
func (n *Checker) Run(ctx context.Context) {
	n.check()

	ticker := time.NewTicker(n.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n.check()
		}
	}
}

func (n *Checker) check() {
	offset, err := n.query(n.pool)

	n.mu.Lock()
	defer n.mu.Unlock()

	now := n.clock.Now()
	if err != nil {
		// An unreachable pool keeps the last trust verdict: it can
		// neither clear a confirmed bad offset nor condemn a clock
		// that was never measured bad.
		phase := PhaseError
		if n.status.Phase == PhaseUnhealthyOffset {
			phase = PhaseUnhealthyOffset
		}
		n.status = Status{Offset: n.status.Offset, Phase: phase, Error: err.Error(), CheckedAt: now}
		return
	}

	phase := PhaseUnhealthyOffset
	if offset.Abs() < n.threshold {
		phase = PhaseHealthy
	}
	n.status = Status{Offset: offset, Phase: phase, CheckedAt: now}
}

// Status returns the latest observation.
func (n *Checker) Status() Status {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.status
}
