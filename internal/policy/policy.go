// Package policy loads and validates the per-team assessment policy document.
//
// A single YAML file carries engine settings plus one entry per team,
// following the kubeconfig-style load/save conventions: reading a missing
// file is an error at startup, parse and validation errors are wrapped.
package policy

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrInvalidPolicy marks any validation failure in a policy document.
var ErrInvalidPolicy = errors.New("invalid team policy")

// Tier is the criticality classification of a team.
type Tier string

const (
	TierProduction Tier = "production"
	TierTesting    Tier = "testing"
)

// Action names accepted in a healing policy, in default escalation order.
const (
	ActionGracefulRestart   = "graceful_restart"
	ActionContainerRestart  = "container_restart"
	ActionEnvironmentSwitch = "environment_switch"
	ActionNotify            = "notify"
)

// DefaultActions is the default ordered remediation ladder.
var DefaultActions = []string{
	ActionGracefulRestart,
	ActionContainerRestart,
	ActionEnvironmentSwitch,
	ActionNotify,
}

// Weights distributes scoring influence across telemetry sources.
// The three weights must sum to 100.
type Weights struct {
	Metrics      int `yaml:"metrics"`
	Logs         int `yaml:"logs"`
	HealthChecks int `yaml:"healthchecks"`
}

// Thresholds are the per-team violation limits used by the scorer.
type Thresholds struct {
	ErrorRateMax         float64 `yaml:"error_rate_max"`
	ResponseTimeP95MaxMS int     `yaml:"response_time_p95_max_ms"`
	AvailabilityMin      float64 `yaml:"availability_min"`
	CPUMaxPercent        float64 `yaml:"cpu_max_percent"`
	MemoryMaxPercent     float64 `yaml:"memory_max_percent"`
}

// ResponseTimeP95Max returns the latency limit as a duration.
func (t Thresholds) ResponseTimeP95Max() time.Duration {
	return time.Duration(t.ResponseTimeP95MaxMS) * time.Millisecond
}

// SLITargets are the reliability objectives compared against rolling actuals.
type SLITargets struct {
	Availability float64 `yaml:"availability"`
	ErrorRate    float64 `yaml:"error_rate"`
	MTTRMinutes  float64 `yaml:"mttr_minutes"`
}

// BusinessHours optionally restricts automatic remediation to working hours.
// Hours are local, StartHour inclusive, EndHour exclusive.
type BusinessHours struct {
	Enabled      bool `yaml:"enabled"`
	StartHour    int  `yaml:"start_hour"`
	EndHour      int  `yaml:"end_hour"`
	WeekdaysOnly bool `yaml:"weekdays_only"`
}

// HealingPolicy controls automatic remediation for one team.
type HealingPolicy struct {
	Enabled             bool          `yaml:"enabled"`
	Actions             []string      `yaml:"actions"`
	MaxAttempts         int           `yaml:"max_attempts"`
	MinHealthyInstances int           `yaml:"min_healthy_instances"`
	MaxRestartsPerHour  int           `yaml:"max_restarts_per_hour"`
	BusinessHours       BusinessHours `yaml:"business_hours"`
}

// BreakerConfig tunes the per-team circuit breaker.
type BreakerConfig struct {
	FailureThreshold   int `yaml:"failure_threshold"`
	OpenTimeoutSeconds int `yaml:"open_timeout_seconds"`
}

// OpenTimeout returns the open window as a duration.
func (c BreakerConfig) OpenTimeout() time.Duration {
	return time.Duration(c.OpenTimeoutSeconds) * time.Second
}

// TeamPolicy is the full assessment and healing policy for one team.
type TeamPolicy struct {
	TeamID     string        `yaml:"team_id"`
	Tier       Tier          `yaml:"tier"`
	Weights    Weights       `yaml:"weights"`
	Thresholds Thresholds    `yaml:"thresholds"`
	SLITargets SLITargets    `yaml:"sli_targets"`
	Healing    HealingPolicy `yaml:"healing_policy"`
	Breaker    BreakerConfig `yaml:"circuit_breaker_config"`

	// Blue/green deployment fields, used by the environment-switch action.
	BlueGreenEnabled  bool   `yaml:"blue_green_enabled"`
	ActiveEnvironment string `yaml:"active_environment"`

	// HealthCheck is the probe command run for the healthchecks source.
	HealthCheck []string `yaml:"health_check"`
}

// Settings are engine-wide knobs shared by all teams.
type Settings struct {
	PrometheusURL      string `yaml:"prometheus_url"`
	LokiURL            string `yaml:"loki_url"`
	OrchestratorURL    string `yaml:"orchestrator_url"`
	WebhookURL         string `yaml:"webhook_url"`
	StateDB            string `yaml:"state_db"`
	IntervalSeconds    int    `yaml:"interval_seconds"`
	MaxConcurrent      int    `yaml:"max_concurrent"`
	FetchTimeoutSecond int    `yaml:"fetch_timeout_seconds"`
	WindowSeconds      int    `yaml:"window_seconds"`
}

// Interval returns the scheduling interval, defaulting to 30s.
func (s Settings) Interval() time.Duration {
	if s.IntervalSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(s.IntervalSeconds) * time.Second
}

// FetchTimeout returns the per-collector timeout, defaulting to 10s.
func (s Settings) FetchTimeout() time.Duration {
	if s.FetchTimeoutSecond <= 0 {
		return 10 * time.Second
	}
	return time.Duration(s.FetchTimeoutSecond) * time.Second
}

// Window returns the telemetry lookback window, defaulting to 5m.
func (s Settings) Window() time.Duration {
	if s.WindowSeconds <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(s.WindowSeconds) * time.Second
}

// StatePath returns the sqlite state database path, defaulting to
// /var/lib/vigil/state.db.
func (s Settings) StatePath() string {
	if s.StateDB == "" {
		return "/var/lib/vigil/state.db"
	}
	return s.StateDB
}

// Concurrency returns the team worker pool size, defaulting to 4.
func (s Settings) Concurrency() int {
	if s.MaxConcurrent <= 0 {
		return 4
	}
	return s.MaxConcurrent
}

// Set is a validated policy document.
type Set struct {
	Settings Settings     `yaml:"settings"`
	Teams    []TeamPolicy `yaml:"teams"`
}

// Load reads and validates a policy document from path.
func Load(path string) (*Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a policy document.
func Parse(data []byte) (*Set, error) {
	var set Set
	if err := yaml.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("parse policy document: %w", err)
	}
	if err := set.Validate(); err != nil {
		return nil, err
	}
	return &set, nil
}

// Dump re-marshals the document for the config command.
func (s *Set) Dump() ([]byte, error) {
	data, err := yaml.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal policy document: %w", err)
	}
	return data, nil
}

// Team returns the policy for id. The bool is false when id is unknown.
func (s *Set) Team(id string) (TeamPolicy, bool) {
	for _, t := range s.Teams {
		if t.TeamID == id {
			return t, true
		}
	}
	return TeamPolicy{}, false
}

// TeamIDs returns all team ids in document order.
func (s *Set) TeamIDs() []string {
	ids := make([]string, 0, len(s.Teams))
	for _, t := range s.Teams {
		ids = append(ids, t.TeamID)
	}
	return ids
}
