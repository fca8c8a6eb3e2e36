package policy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validDoc = `
settings:
  prometheus_url: http://prometheus:9090
  loki_url: http://loki:3100
  state_db: /tmp/vigil.db
  interval_seconds: 60
teams:
  - team_id: payments
    tier: production
    weights: {metrics: 40, logs: 30, healthchecks: 30}
    thresholds:
      error_rate_max: 0.05
      response_time_p95_max_ms: 500
      availability_min: 0.99
      cpu_max_percent: 80
      memory_max_percent: 85
    sli_targets: {availability: 0.999, error_rate: 0.01, mttr_minutes: 15}
    healing_policy:
      enabled: true
      max_attempts: 2
      min_healthy_instances: 1
    blue_green_enabled: true
    health_check: ["/usr/local/bin/check-payments"]
  - team_id: search
    tier: testing
    weights: {metrics: 50, logs: 50, healthchecks: 0}
    thresholds:
      error_rate_max: 0.1
      availability_min: 0.95
      cpu_max_percent: 90
      memory_max_percent: 90
    healing_policy:
      enabled: false
`

func TestParseValidDocument(t *testing.T) {
	set, err := Parse([]byte(validDoc))
	require.NoError(t, err)
	require.Len(t, set.Teams, 2)

	payments, ok := set.Team("payments")
	require.True(t, ok)
	assert.Equal(t, TierProduction, payments.Tier)
	assert.True(t, payments.BlueGreenEnabled)
	assert.Equal(t, []string{"/usr/local/bin/check-payments"}, payments.HealthCheck)

	assert.Equal(t, time.Minute, set.Settings.Interval())
	assert.Equal(t, 10*time.Second, set.Settings.FetchTimeout())
	assert.Equal(t, "/tmp/vigil.db", set.Settings.StatePath())
}

func TestParseAppliesDefaults(t *testing.T) {
	set, err := Parse([]byte(validDoc))
	require.NoError(t, err)

	payments, _ := set.Team("payments")
	assert.Equal(t, DefaultActions, payments.Healing.Actions)
	assert.Equal(t, 2, payments.Healing.MaxAttempts, "explicit value kept")
	assert.Equal(t, 6, payments.Healing.MaxRestartsPerHour)
	assert.Equal(t, 3, payments.Breaker.FailureThreshold)
	assert.Equal(t, 5*time.Minute, payments.Breaker.OpenTimeout())
	assert.Equal(t, "blue", payments.ActiveEnvironment)

	search, _ := set.Team("search")
	assert.Equal(t, 3, search.Healing.MaxAttempts)
}

func TestSettingsDefaults(t *testing.T) {
	var s Settings
	assert.Equal(t, 30*time.Second, s.Interval())
	assert.Equal(t, 10*time.Second, s.FetchTimeout())
	assert.Equal(t, 5*time.Minute, s.Window())
	assert.Equal(t, 4, s.Concurrency())
	assert.Equal(t, "/var/lib/vigil/state.db", s.StatePath())
}

func TestValidateRejections(t *testing.T) {
	base := func() TeamPolicy {
		return TeamPolicy{
			TeamID:  "payments",
			Tier:    TierProduction,
			Weights: Weights{Metrics: 40, Logs: 30, HealthChecks: 30},
			Thresholds: Thresholds{
				ErrorRateMax: 0.05, AvailabilityMin: 0.99,
				CPUMaxPercent: 80, MemoryMaxPercent: 85,
			},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*TeamPolicy)
		wantMsg string
	}{
		{"empty team id", func(p *TeamPolicy) { p.TeamID = " " }, "empty team_id"},
		{"unknown tier", func(p *TeamPolicy) { p.Tier = "staging" }, "tier must be"},
		{"weights sum", func(p *TeamPolicy) { p.Weights.Metrics = 50 }, "sum to 100"},
		{"negative weight", func(p *TeamPolicy) { p.Weights = Weights{Metrics: 120, Logs: -20, HealthChecks: 0} }, "non-negative"},
		{"error rate range", func(p *TeamPolicy) { p.Thresholds.ErrorRateMax = 1.5 }, "error_rate_max"},
		{"availability range", func(p *TeamPolicy) { p.Thresholds.AvailabilityMin = -0.1 }, "availability_min"},
		{"cpu percent range", func(p *TeamPolicy) { p.Thresholds.CPUMaxPercent = 150 }, "resource limits"},
		{"sli availability", func(p *TeamPolicy) { p.SLITargets.Availability = 2 }, "sli availability"},
		{"negative mttr", func(p *TeamPolicy) { p.SLITargets.MTTRMinutes = -1 }, "mttr_minutes"},
		{"unknown action", func(p *TeamPolicy) { p.Healing.Actions = []string{"reboot_planet", ActionNotify} }, "unknown healing action"},
		{"missing notify terminator", func(p *TeamPolicy) { p.Healing.Actions = []string{ActionGracefulRestart} }, "must end with"},
		{"business hours window", func(p *TeamPolicy) {
			p.Healing.BusinessHours = BusinessHours{Enabled: true, StartHour: 17, EndHour: 9}
		}, "business_hours"},
		{"environment switch without blue green", func(p *TeamPolicy) {
			p.Healing.Enabled = true
			p.BlueGreenEnabled = false
		}, "requires blue_green_enabled"},
		{"bad active environment", func(p *TeamPolicy) { p.ActiveEnvironment = "purple" }, "active_environment"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pol := base()
			tt.mutate(&pol)
			set := Set{Teams: []TeamPolicy{pol}}

			err := set.Validate()
			require.ErrorIs(t, err, ErrInvalidPolicy)
			assert.ErrorContains(t, err, tt.wantMsg)
		})
	}
}

func TestValidateRejectsEmptyAndDuplicateTeams(t *testing.T) {
	err := (&Set{}).Validate()
	require.ErrorIs(t, err, ErrInvalidPolicy)
	assert.ErrorContains(t, err, "no teams")

	set, err := Parse([]byte(validDoc))
	require.NoError(t, err)
	set.Teams = append(set.Teams, set.Teams[0])
	err = set.Validate()
	require.ErrorIs(t, err, ErrInvalidPolicy)
	assert.ErrorContains(t, err, "duplicate team")
}

func TestParseRejectsMalformedYAML(t *testing.T) {
	_, err := Parse([]byte("settings: [not a map"))
	require.Error(t, err)
}

func TestDumpRoundTrips(t *testing.T) {
	set, err := Parse([]byte(validDoc))
	require.NoError(t, err)

	data, err := set.Dump()
	require.NoError(t, err)

	again, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, set.Teams, again.Teams)
}
