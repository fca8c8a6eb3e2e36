// Package trend maintains rolling composite-score history and reports the
// direction a team's health is moving in, with a confidence estimate.
package trend

import (
	"math"
	"time"
)

const (
	// DefaultCapacity bounds the score history per team.
	DefaultCapacity = 60
	// DefaultShortWindow and DefaultLongWindow are the sample counts whose
	// averages are compared to derive direction.
	DefaultShortWindow = 5
	DefaultLongWindow  = 20
	// DefaultNoise is the minimum average delta treated as a real move.
	DefaultNoise = 2.0
	// varianceScale tunes how quickly confidence decays with noisy data.
	varianceScale = 100.0
)

// Direction reports which way scores are moving.
type Direction uint8

const (
	DirectionStable Direction = iota
	DirectionImproving
	DirectionDegrading
)

func (d Direction) String() string {
	switch d {
	case DirectionImproving:
		return "improving"
	case DirectionDegrading:
		return "degrading"
	default:
		return "stable"
	}
}

type point struct {
	at    time.Time
	score float64
}

// Analyzer holds one team's bounded score history. Not self-locking.
type Analyzer struct {
	capacity    int
	shortWindow int
	longWindow  int
	noise       float64

	history []point
}

// New returns an Analyzer with the default tuning.
func New() *Analyzer {
	return &Analyzer{
		capacity:    DefaultCapacity,
		shortWindow: DefaultShortWindow,
		longWindow:  DefaultLongWindow,
		noise:       DefaultNoise,
	}
}

// Record appends one composite score, evicting the oldest past capacity.
func (a *Analyzer) Record(score float64, now time.Time) {
	a.history = append(a.history, point{at: now, score: score})
	if len(a.history) > a.capacity {
		a.history = a.history[len(a.history)-a.capacity:]
	}
}

// Len returns the number of recorded samples.
func (a *Analyzer) Len() int { return len(a.history) }

// Direction compares the short-window average against the long-window
// average. Moves smaller than the noise threshold read as stable.
func (a *Analyzer) Direction() Direction {
	if len(a.history) < 2 {
		return DirectionStable
	}
	short := a.tailMean(a.shortWindow)
	long := a.tailMean(a.longWindow)
	switch {
	case short-long > a.noise:
		return DirectionImproving
	case long-short > a.noise:
		return DirectionDegrading
	default:
		return DirectionStable
	}
}

// Confidence scales with sample count and inversely with variance,
// bounded to [0,1].
func (a *Analyzer) Confidence() float64 {
	n := len(a.history)
	if n == 0 {
		return 0
	}
	sampleFactor := float64(n) / float64(a.longWindow)
	if sampleFactor > 1 {
		sampleFactor = 1
	}
	varFactor := 1.0 / (1.0 + a.variance()/varianceScale)
	c := sampleFactor * varFactor
	if c > 1 {
		c = 1
	}
	return c
}

// Scores returns a copy of the recorded scores, oldest first.
func (a *Analyzer) Scores() []float64 {
	out := make([]float64, len(a.history))
	for i, p := range a.history {
		out[i] = p.score
	}
	return out
}

func (a *Analyzer) tailMean(n int) float64 {
	if n > len(a.history) {
		n = len(a.history)
	}
	if n == 0 {
		return 0
	}
	var sum float64
	for _, p := range a.history[len(a.history)-n:] {
		sum += p.score
	}
	return sum / float64(n)
}

func (a *Analyzer) variance() float64 {
	n := len(a.history)
	if n < 2 {
		return 0
	}
	mean := a.tailMean(n)
	var sum float64
	for _, p := range a.history {
		d := p.score - mean
		sum += d * d
	}
	v := sum / float64(n)
	if math.IsNaN(v) {
		return 0
	}
	return v
}
