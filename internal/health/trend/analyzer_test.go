package trend

import (
	"testing"
	"time"
)

var t0 = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func record(a *Analyzer, scores ...float64) {
	now := t0
	for _, s := range scores {
		a.Record(s, now)
		now = now.Add(30 * time.Second)
	}
}

func TestDirectionDegrading(t *testing.T) {
	a := New()
	// Long stretch at 95, recent samples falling hard.
	scores := make([]float64, 0, 25)
	for i := 0; i < 20; i++ {
		scores = append(scores, 95)
	}
	scores = append(scores, 80, 75, 70, 65, 60)
	record(a, scores...)

	if got := a.Direction(); got != DirectionDegrading {
		t.Fatalf("direction = %v, want degrading", got)
	}
}

func TestDirectionImproving(t *testing.T) {
	a := New()
	scores := make([]float64, 0, 25)
	for i := 0; i < 20; i++ {
		scores = append(scores, 60)
	}
	scores = append(scores, 75, 80, 85, 90, 95)
	record(a, scores...)

	if got := a.Direction(); got != DirectionImproving {
		t.Fatalf("direction = %v, want improving", got)
	}
}

func TestDirectionStableWithinNoise(t *testing.T) {
	a := New()
	scores := make([]float64, 30)
	for i := range scores {
		scores[i] = 90
		if i%2 == 0 {
			scores[i] = 91
		}
	}
	record(a, scores...)

	if got := a.Direction(); got != DirectionStable {
		t.Fatalf("direction = %v, want stable", got)
	}
}

func TestDirectionNeedsHistory(t *testing.T) {
	a := New()
	if got := a.Direction(); got != DirectionStable {
		t.Fatalf("empty analyzer direction = %v, want stable", got)
	}
	a.Record(10, t0)
	if got := a.Direction(); got != DirectionStable {
		t.Fatalf("single sample direction = %v, want stable", got)
	}
}

func TestConfidenceGrowsWithSamples(t *testing.T) {
	a := New()
	a.Record(90, t0)
	few := a.Confidence()

	record(a, 90, 90, 90, 90, 90, 90, 90, 90, 90, 90, 90, 90, 90, 90, 90, 90, 90, 90, 90)
	many := a.Confidence()

	if many <= few {
		t.Fatalf("confidence did not grow: %v -> %v", few, many)
	}
	if many > 1 {
		t.Fatalf("confidence %v above 1", many)
	}
}

func TestConfidenceShrinksWithVariance(t *testing.T) {
	steady := New()
	record(steady, 90, 90, 90, 90, 90, 90, 90, 90, 90, 90, 90, 90, 90, 90, 90, 90, 90, 90, 90, 90)

	jumpy := New()
	record(jumpy, 20, 95, 15, 98, 10, 92, 25, 99, 18, 94, 22, 96, 12, 91, 28, 97, 16, 93, 24, 95)

	if jumpy.Confidence() >= steady.Confidence() {
		t.Fatalf("noisy history confidence %v not below steady %v", jumpy.Confidence(), steady.Confidence())
	}
}

func TestHistoryBounded(t *testing.T) {
	a := New()
	now := t0
	for i := 0; i < DefaultCapacity+40; i++ {
		a.Record(float64(i % 100), now)
		now = now.Add(30 * time.Second)
	}
	if a.Len() != DefaultCapacity {
		t.Fatalf("history length = %d, want %d", a.Len(), DefaultCapacity)
	}
}
