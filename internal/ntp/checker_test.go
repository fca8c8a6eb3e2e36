package ntp

import (
	"context"
	"errors"
	"testing"
	"time"

	"vigil/internal/health"
)

func TestTrusted(t *testing.T) {
	tests := []struct {
		phase Phase
		want  bool
	}{
		{PhaseUnchecked, true},
		{PhaseHealthy, true},
		{PhaseError, true},
		{PhaseUnhealthyOffset, false},
	}
	for _, tt := range tests {
		t.Run(tt.phase.String(), func(t *testing.T) {
			if got := (Status{Phase: tt.phase}).Trusted(); got != tt.want {
				t.Fatalf("Trusted() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCheckerStartsUnchecked(t *testing.T) {
	c := NewChecker(health.RealClock{})
	if got := c.Status().Phase; got != PhaseUnchecked {
		t.Fatalf("initial phase = %v, want unchecked", got)
	}
}

func TestRunChecksImmediately(t *testing.T) {
	c := NewChecker(health.RealClock{})
	c.query = func(string) (time.Duration, error) { return 12 * time.Millisecond, nil }

	// A cancelled context still performs the initial check before Run
	// returns.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c.Run(ctx)

	got := c.Status()
	if got.Phase != PhaseHealthy || got.Offset != 12*time.Millisecond {
		t.Fatalf("status = %+v, want healthy 12ms", got)
	}
}

func TestOffsetBeyondThresholdUntrusted(t *testing.T) {
	c := NewChecker(health.RealClock{})
	c.query = func(string) (time.Duration, error) { return -2 * time.Second, nil }
	c.check()

	got := c.Status()
	if got.Phase != PhaseUnhealthyOffset || got.Trusted() {
		t.Fatalf("status = %+v, want untrusted unhealthy offset", got)
	}
}

func TestPoolErrorKeepsLastVerdict(t *testing.T) {
	c := NewChecker(health.RealClock{})

	// Confirmed bad offset, then the pool goes away. The clock stays
	// untrusted.
	c.query = func(string) (time.Duration, error) { return 2 * time.Second, nil }
	c.check()
	c.query = func(string) (time.Duration, error) { return 0, errors.New("no route to host") }
	c.check()

	got := c.Status()
	if got.Trusted() {
		t.Fatalf("pool outage cleared a confirmed bad offset: %+v", got)
	}
	if got.Phase != PhaseUnhealthyOffset || got.Error == "" {
		t.Fatalf("status = %+v, want unhealthy offset with error recorded", got)
	}

	// A clock never measured bad stays trusted through a pool outage.
	c2 := NewChecker(health.RealClock{})
	c2.query = func(string) (time.Duration, error) { return time.Millisecond, nil }
	c2.check()
	c2.query = func(string) (time.Duration, error) { return 0, errors.New("timeout") }
	c2.check()

	got = c2.Status()
	if !got.Trusted() || got.Phase != PhaseError {
		t.Fatalf("status = %+v, want trusted error phase", got)
	}
}

func TestPhaseStrings(t *testing.T) {
	if got := PhaseUnhealthyOffset.String(); got != "unhealthy_offset" {
		t.Fatalf("String() = %q", got)
	}
	if got := Phase(99).String(); got != "unknown" {
		t.Fatalf("String() = %q for out-of-range phase", got)
	}
}
