package collect_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"vigil/internal/adapter/fake"
	"vigil/internal/collect"
	"vigil/internal/health"
)

func TestGuardPassesThrough(t *testing.T) {
	inner := fake.NewCollector(health.SourceLogs)
	inner.Queue(health.LogsSample{Errors: 2})
	g := collect.Guard(inner)

	if got := g.Source(); got != health.SourceLogs {
		t.Fatalf("source = %v", got)
	}
	sample, err := g.Fetch(context.Background(), "payments", 5*time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if sample.(health.LogsSample).Errors != 2 {
		t.Fatalf("sample = %+v", sample)
	}
}

func TestGuardTripsToSourceUnavailable(t *testing.T) {
	inner := fake.NewCollector(health.SourceMetrics)
	inner.Fail(errors.New("connection refused"))
	g := collect.Guard(inner)

	// First failures pass the backend error through while the breaker
	// accumulates counts.
	for i := 0; i < 3; i++ {
		if _, err := g.Fetch(context.Background(), "payments", time.Minute); err == nil {
			t.Fatal("expected failure")
		}
	}

	// Tripped: the backend is no longer called and the failure reads as
	// an unavailable source.
	calls := inner.Count("Fetch")
	_, err := g.Fetch(context.Background(), "payments", time.Minute)
	if !errors.Is(err, collect.ErrSourceUnavailable) {
		t.Fatalf("err = %v, want ErrSourceUnavailable", err)
	}
	if got := inner.Count("Fetch"); got != calls {
		t.Fatalf("backend called %d times after trip, want %d", got, calls)
	}
}

func TestGuardRecovers(t *testing.T) {
	inner := fake.NewCollector(health.SourceHealthChecks)
	inner.Queue(health.ProbeSample{ExitCode: 0})
	g := collect.Guard(inner)

	if _, err := g.Fetch(context.Background(), "payments", time.Minute); err != nil {
		t.Fatal(err)
	}
	inner.Fail(errors.New("probe host down"))
	if _, err := g.Fetch(context.Background(), "payments", time.Minute); err == nil {
		t.Fatal("expected failure")
	}
	inner.Fail(nil)
	if _, err := g.Fetch(context.Background(), "payments", time.Minute); err != nil {
		t.Fatalf("recovered backend still failing: %v", err)
	}
}
