// Package health holds the shared domain types for team health assessment:
// telemetry sources, samples, status tiers, and assessments.
package health

import "time"

// Source identifies one telemetry source feeding a sub-score.
type Source string

const (
	SourceMetrics      Source = "metrics"
	SourceLogs         Source = "logs"
	SourceHealthChecks Source = "healthchecks"
)

// Sources lists all telemetry sources in scoring order.
var Sources = []Source{SourceMetrics, SourceLogs, SourceHealthChecks}

// Status is the tier derived from a composite score.
type Status uint8

const (
	StatusUnknown Status = iota
	StatusHealthy
	StatusDegraded
	StatusCritical
)

func (s Status) String() string {
	switch s {
	case StatusHealthy:
		return "healthy"
	case StatusDegraded:
		return "degraded"
	case StatusCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// ParseStatus maps a stored string back to a Status.
func ParseStatus(s string) Status {
	switch s {
	case "healthy":
		return StatusHealthy
	case "degraded":
		return StatusDegraded
	case "critical":
		return StatusCritical
	default:
		return StatusUnknown
	}
}

// Sample is a normalized telemetry sample fetched by one collector.
type Sample interface {
	Source() Source
}

// MetricsSample carries the metric-series readings for one window.
// Availability and ErrorRate are fractions in [0,1]; utilization in percent.
type MetricsSample struct {
	ErrorRate       float64
	ResponseTimeP95 time.Duration
	Availability    float64
	CPUPercent      float64
	MemoryPercent   float64
}

func (MetricsSample) Source() Source { return SourceMetrics }

// LogsSample carries pattern match counts per severity for one window.
type LogsSample struct {
	Warnings  int
	Errors    int
	Criticals int
}

func (LogsSample) Source() Source { return SourceLogs }

// ProbeSample is the result of one active health-check probe.
type ProbeSample struct {
	ExitCode int
	Duration time.Duration
	TimedOut bool
}

func (ProbeSample) Source() Source { return SourceHealthChecks }

// SubScores maps each available source to its 0-100 sub-score.
// A missing key means the source was unavailable for the cycle.
type SubScores map[Source]float64

// Assessment is one completed health evaluation for a team.
type Assessment struct {
	TeamID    string
	Timestamp time.Time
	SubScores SubScores
	Composite float64
	Status    Status
}

// Clock abstracts time for deterministic tests.
type Clock interface {
	Now() time.Time
}

// RealClock is the production Clock.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }
