package breaker

import (
	"testing"
	"time"

	"vigil/internal/health"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func feed(b *Breaker, now time.Time, statuses ...health.Status) time.Time {
	for _, s := range statuses {
		now = now.Add(30 * time.Second)
		b.Record(s, now)
	}
	return now
}

func TestOpensExactlyAtThreshold(t *testing.T) {
	b := New(3, 5*time.Minute)

	now := feed(b, t0, health.StatusCritical, health.StatusCritical)
	if b.State() != StateClosed {
		t.Fatalf("state after 2 criticals = %v, want closed", b.State())
	}
	if !b.AllowRemediation() {
		t.Fatal("closed breaker must allow remediation")
	}

	feed(b, now, health.StatusCritical)
	if b.State() != StateOpen {
		t.Fatalf("state after 3 criticals = %v, want open", b.State())
	}
	if b.AllowRemediation() {
		t.Fatal("open breaker must deny remediation")
	}
	if b.OpenedAt().IsZero() {
		t.Fatal("openedAt not recorded")
	}
}

func TestNonCriticalResetsStreak(t *testing.T) {
	b := New(3, 5*time.Minute)

	now := feed(b, t0, health.StatusCritical, health.StatusCritical, health.StatusHealthy)
	if b.ConsecutiveFailures() != 0 {
		t.Fatalf("failures = %d, want 0 after recovery", b.ConsecutiveFailures())
	}

	// The streak must be consecutive: two more criticals do not open.
	feed(b, now, health.StatusCritical, health.StatusCritical)
	if b.State() != StateClosed {
		t.Fatalf("state = %v, want closed", b.State())
	}
}

func TestOpenWindowExpiryProbesSameAssessment(t *testing.T) {
	b := New(3, 5*time.Minute)
	now := feed(b, t0, health.StatusCritical, health.StatusCritical, health.StatusCritical)

	// Still inside the window: stays open even for healthy assessments.
	b.Record(health.StatusHealthy, now.Add(time.Minute))
	if b.State() != StateOpen {
		t.Fatalf("state inside window = %v, want open", b.State())
	}

	// First assessment past the window is the half-open probe; a healthy
	// one closes immediately.
	b.Record(health.StatusHealthy, now.Add(6*time.Minute))
	if b.State() != StateClosed {
		t.Fatalf("state after healthy probe = %v, want closed", b.State())
	}
	if b.ConsecutiveFailures() != 0 {
		t.Fatalf("failures = %d, want 0", b.ConsecutiveFailures())
	}
}

func TestHalfOpenCriticalReopens(t *testing.T) {
	b := New(3, 5*time.Minute)
	now := feed(b, t0, health.StatusCritical, health.StatusCritical, health.StatusCritical)
	opened := b.OpenedAt()

	probe := now.Add(6 * time.Minute)
	b.Record(health.StatusCritical, probe)
	if b.State() != StateOpen {
		t.Fatalf("state after critical probe = %v, want open", b.State())
	}
	if !b.OpenedAt().After(opened) {
		t.Fatal("reopen must restart the open window")
	}
}

func TestDegradedIsNotCritical(t *testing.T) {
	b := New(2, 5*time.Minute)
	feed(b, t0, health.StatusDegraded, health.StatusDegraded, health.StatusDegraded)
	if b.State() != StateClosed {
		t.Fatalf("state = %v, want closed; degraded must not trip the breaker", b.State())
	}
}

func TestStateStrings(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateClosed, "closed"},
		{StateOpen, "open"},
		{StateHalfOpen, "half_open"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Fatalf("String() = %q, want %q", got, tt.want)
		}
	}
}
