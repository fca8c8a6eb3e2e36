package fake

import (
	"context"
	"errors"
	"testing"
	"time"

	"vigil/internal/collect"
	"vigil/internal/health"
)

func TestCollectorRepeatsLastSample(t *testing.T) {
	c := NewCollector(health.SourceMetrics)
	c.Queue(
		&health.MetricsSample{ErrorRate: 0.01},
		&health.MetricsSample{ErrorRate: 0.05},
	)

	ctx := context.Background()
	want := []float64{0.01, 0.05, 0.05}
	for i, w := range want {
		s, err := c.Fetch(ctx, "payments", time.Minute)
		if err != nil {
			t.Fatalf("fetch %d: %v", i, err)
		}
		got := s.(*health.MetricsSample).ErrorRate
		if got != w {
			t.Fatalf("fetch %d: error rate %v, want %v", i, got, w)
		}
	}
	if n := c.Count("Fetch"); n != 3 {
		t.Fatalf("recorded %d calls, want 3", n)
	}
}

func TestCollectorEmptyIsUnavailable(t *testing.T) {
	c := NewCollector(health.SourceLogs)
	if _, err := c.Fetch(context.Background(), "payments", time.Minute); !errors.Is(err, collect.ErrSourceUnavailable) {
		t.Fatalf("err = %v, want ErrSourceUnavailable", err)
	}
}

func TestCollectorFail(t *testing.T) {
	c := NewCollector(health.SourceMetrics)
	c.Queue(&health.MetricsSample{})
	boom := errors.New("boom")
	c.Fail(boom)
	if _, err := c.Fetch(context.Background(), "payments", time.Minute); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	c.Fail(nil)
	if _, err := c.Fetch(context.Background(), "payments", time.Minute); err != nil {
		t.Fatalf("after clearing: %v", err)
	}
}
