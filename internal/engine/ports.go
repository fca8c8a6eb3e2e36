package engine

import (
	"time"

	"vigil/internal/health"
	"vigil/internal/ntp"
)

// Sink receives engine observability output. Implementations must accept
// concurrent writers; it is the only resource shared across teams.
//
// Production: sink.Prometheus (+ sqlite annotations).
// Testing: adapter/fake.Sink.
type Sink interface {
	EmitMetric(name string, labels map[string]string, value float64)
	EmitAnnotation(text string, tags []string)
}

// Recorder persists assessment history and healing attempts.
//
// Production: store/sqlite.Store.
// Testing: adapter/fake.Recorder.
type Recorder interface {
	SaveAssessment(a health.Assessment) error
	SaveAttempt(teamID string, at time.Time, action, level string, success bool) error
	SaveBreakerState(teamID, state string, consecutiveFailures int, openedAt time.Time) error
}

// ClockSource reports whether the wall clock is trustworthy enough for
// time-based safety gates.
//
// Production: ntp.Checker.
// Testing: a fixed Status.
type ClockSource interface {
	Status() ntp.Status
}

// staticClockSource trusts the clock unconditionally, for deployments
// without NTP checking.
type staticClockSource struct{}

func (staticClockSource) Status() ntp.Status { return ntp.Status{Phase: ntp.PhaseUnchecked} }
