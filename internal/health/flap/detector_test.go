package flap

import (
	"testing"
	"time"

	"vigil/internal/health"
)

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func TestFlappingRequiresThresholdTransitions(t *testing.T) {
	d := New()

	// healthy -> critical -> healthy: two transitions, below threshold.
	d.Record(health.StatusHealthy, t0)
	d.Record(health.StatusCritical, t0.Add(time.Minute))
	d.Record(health.StatusHealthy, t0.Add(2*time.Minute))
	if d.IsFlapping() {
		t.Fatalf("flapping after %d transitions", d.TransitionCount())
	}

	// Third transition inside the window trips detection.
	d.Record(health.StatusCritical, t0.Add(3*time.Minute))
	if !d.IsFlapping() {
		t.Fatal("not flapping after 3 transitions in window")
	}
	if !d.Suppressed(t0.Add(3 * time.Minute)) {
		t.Fatal("escalation not suppressed while flapping")
	}
}

func TestStableStatusNeverFlaps(t *testing.T) {
	d := New()
	now := t0
	for i := 0; i < 30; i++ {
		d.Record(health.StatusCritical, now)
		now = now.Add(30 * time.Second)
	}
	if d.IsFlapping() {
		t.Fatal("sustained critical must not count as flapping")
	}
	if d.TransitionCount() != 0 {
		t.Fatalf("transitions = %d, want 0", d.TransitionCount())
	}
}

func TestSuppressionClearsAfterStabilization(t *testing.T) {
	d := NewWithConfig(10*time.Minute, 3, 5*time.Minute)

	d.Record(health.StatusHealthy, t0)
	d.Record(health.StatusCritical, t0.Add(time.Minute))
	d.Record(health.StatusHealthy, t0.Add(2*time.Minute))
	d.Record(health.StatusCritical, t0.Add(3*time.Minute))
	if !d.IsFlapping() {
		t.Fatal("expected flapping")
	}

	// Quiet period: transitions age out of the window and stabilization
	// passes.
	quiet := t0.Add(20 * time.Minute)
	d.Record(health.StatusCritical, quiet)
	if d.IsFlapping() {
		t.Fatal("still flapping after quiet stabilization period")
	}
	if d.Suppressed(quiet) {
		t.Fatal("still suppressed after quiet stabilization period")
	}
}

func TestTransitionsOutsideWindowIgnored(t *testing.T) {
	d := New()

	d.Record(health.StatusHealthy, t0)
	d.Record(health.StatusCritical, t0.Add(time.Minute))
	d.Record(health.StatusHealthy, t0.Add(2*time.Minute))

	// Third transition arrives after the first two left the window.
	d.Record(health.StatusCritical, t0.Add(15*time.Minute))
	if d.IsFlapping() {
		t.Fatal("transitions spread beyond the window must not flap")
	}
	if d.TransitionCount() != 1 {
		t.Fatalf("transitions in window = %d, want 1", d.TransitionCount())
	}
}

func TestFirstObservationIsNotATransition(t *testing.T) {
	d := New()
	d.Record(health.StatusCritical, t0)
	if d.TransitionCount() != 0 {
		t.Fatalf("transitions = %d, want 0 for first observation", d.TransitionCount())
	}
}
