// Package flap detects oscillating status transitions and suppresses
// noisy re-triggering of escalation.
package flap

import (
	"time"

	"vigil/internal/health"
)

const (
	// DefaultWindow is the sliding window over which transitions count.
	DefaultWindow = 10 * time.Minute
	// DefaultThreshold is the transition count that marks flapping.
	DefaultThreshold = 3
	// DefaultStabilization is how long escalation stays suppressed after
	// flapping is detected.
	DefaultStabilization = 5 * time.Minute
	// maxTransitions bounds the ring buffer; older entries are dropped.
	maxTransitions = 64
)

type transition struct {
	at time.Time
	to health.Status
}

// Detector tracks status-tier transitions for one team. Not self-locking.
type Detector struct {
	window        time.Duration
	threshold     int
	stabilization time.Duration

	transitions     []transition
	last            health.Status
	flapping        bool
	suppressedUntil time.Time
}

// New returns a Detector with the default window, threshold, and
// stabilization period.
func New() *Detector {
	return &Detector{
		window:        DefaultWindow,
		threshold:     DefaultThreshold,
		stabilization: DefaultStabilization,
	}
}

// NewWithConfig returns a Detector with explicit tuning.
func NewWithConfig(window time.Duration, threshold int, stabilization time.Duration) *Detector {
	return &Detector{window: window, threshold: threshold, stabilization: stabilization}
}

// Record feeds one assessment status. It updates the transition window and
// the flapping flag.
func (d *Detector) Record(status health.Status, now time.Time) {
	if d.last != health.StatusUnknown && status != d.last {
		d.transitions = append(d.transitions, transition{at: now, to: status})
		if len(d.transitions) > maxTransitions {
			d.transitions = d.transitions[len(d.transitions)-maxTransitions:]
		}
	}
	d.last = status
	d.prune(now)

	if len(d.transitions) >= d.threshold {
		d.flapping = true
		d.suppressedUntil = now.Add(d.stabilization)
		return
	}

	// Clear only after the stabilization period has passed and the
	// transition window has quieted down.
	if d.flapping && now.After(d.suppressedUntil) {
		d.flapping = false
	}
}

func (d *Detector) prune(now time.Time) {
	cutoff := now.Add(-d.window)
	keep := d.transitions[:0]
	for _, t := range d.transitions {
		if t.at.After(cutoff) {
			keep = append(keep, t)
		}
	}
	d.transitions = keep
}

// IsFlapping reports whether the team is currently marked as flapping.
func (d *Detector) IsFlapping() bool { return d.flapping }

// SuppressedUntil returns when suppression ends. Zero if never flapped.
func (d *Detector) SuppressedUntil() time.Time { return d.suppressedUntil }

// Suppressed reports whether escalation must be held back at now.
func (d *Detector) Suppressed(now time.Time) bool {
	return d.flapping && now.Before(d.suppressedUntil)
}

// TransitionCount returns the transitions currently inside the window.
func (d *Detector) TransitionCount() int { return len(d.transitions) }
