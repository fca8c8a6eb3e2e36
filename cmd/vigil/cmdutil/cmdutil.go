// Package cmdutil holds the construction code shared by the vigil
// subcommands: policy loading, adapter wiring, and engine assembly.
package cmdutil

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"vigil/internal/collect"
	"vigil/internal/engine"
	"vigil/internal/escalate"
	"vigil/internal/health"
	"vigil/internal/notify"
	"vigil/internal/ntp"
	"vigil/internal/policy"
	"vigil/internal/remedy"
	"vigil/internal/sink"
	"vigil/internal/store/sqlite"
)

// DefaultPolicyPath is used when --config is not given and VIGIL_CONFIG
// is unset.
const DefaultPolicyPath = "/etc/vigil/policies.yaml"

const (
	// HeartbeatInterval is how often the monitor daemon marks itself
	// alive in the state store.
	HeartbeatInterval = 15 * time.Second

	// heartbeatStaleAfter is how old a heartbeat may be before the
	// daemon is presumed gone. Two missed beats plus slack.
	heartbeatStaleAfter = 45 * time.Second
)

// MonitorActive reports whether a monitor daemon recently wrote its
// heartbeat to the store. Commands that dispatch remediation themselves
// use it to avoid racing the daemon's cycle for the same team.
func MonitorActive(st *sqlite.Store, now time.Time) (bool, error) {
	at, ok, err := st.LastHeartbeat()
	if err != nil {
		return false, err
	}
	return ok && now.Sub(at) < heartbeatStaleAfter, nil
}

// ConfigFlag binds the shared --config flag and resolves its value.
type ConfigFlag struct {
	Path string
}

func (f *ConfigFlag) Bind(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVarP(&f.Path, "config", "c", "", "Policy file path")
}

// Resolve returns the effective policy path: flag, then VIGIL_CONFIG,
// then the default.
func (f *ConfigFlag) Resolve() string {
	if f.Path != "" {
		return f.Path
	}
	if env := os.Getenv("VIGIL_CONFIG"); env != "" {
		return env
	}
	return DefaultPolicyPath
}

// LoadSet loads and validates the policy document.
func (f *ConfigFlag) LoadSet() (*policy.Set, error) {
	return policy.Load(f.Resolve())
}

// Runtime bundles everything a running engine needs that has a lifecycle
// of its own.
type Runtime struct {
	Engine *engine.Engine
	Store  *sqlite.Store
	Sink   *sink.Prometheus
	Clock  *ntp.Checker
}

// Close releases the runtime's resources.
func (r *Runtime) Close() error {
	if r.Store != nil {
		return r.Store.Close()
	}
	return nil
}

// BuildRuntime wires collectors, remediation adapters, notification, and
// persistence from the policy settings and assembles the engine. Sources
// without a configured endpoint are simply absent; the scorer
// renormalizes over whatever is available. With dryRun the engine still
// assesses and records, but never dispatches remediation or external
// alerts.
func BuildRuntime(ctx context.Context, set *policy.Set, dryRun bool) (*Runtime, error) {
	collectors, err := buildCollectors(set)
	if err != nil {
		return nil, err
	}

	rem, err := buildRemediator(set.Settings)
	if err != nil {
		return nil, err
	}

	var notifier escalate.Notifier = notify.Log{}
	if set.Settings.WebhookURL != "" && !dryRun {
		notifier = notify.NewWebhook(set.Settings.WebhookURL)
	}

	st, err := sqlite.Open(set.Settings.StatePath())
	if err != nil {
		return nil, fmt.Errorf("open state db: %w", err)
	}

	clock := health.RealClock{}
	checker := ntp.NewChecker(clock)

	promSink := sink.NewPrometheus(st)

	eng := engine.New(ctx, set, engine.Deps{
		Collectors:   collectors,
		Remediator:   rem,
		Notifier:     notifier,
		Sink:         promSink,
		Recorder:     st,
		ClockCheck:   checker,
		Clock:        clock,
		FetchTimeout: set.Settings.FetchTimeout(),
		Window:       set.Settings.Window(),
		DryRun:       dryRun,
	})

	return &Runtime{Engine: eng, Store: st, Sink: promSink, Clock: checker}, nil
}

func buildCollectors(set *policy.Set) ([]collect.Collector, error) {
	var collectors []collect.Collector

	if url := set.Settings.PrometheusURL; url != "" {
		p, err := collect.NewPrometheus(url)
		if err != nil {
			return nil, fmt.Errorf("prometheus collector: %w", err)
		}
		collectors = append(collectors, collect.Guard(p))
	}

	if url := set.Settings.LokiURL; url != "" {
		l, err := collect.NewLoki(url)
		if err != nil {
			return nil, fmt.Errorf("loki collector: %w", err)
		}
		collectors = append(collectors, collect.Guard(l))
	}

	// Probe commands come from each team's policy, so the prober is
	// always wired; teams without a command report no probe sample.
	commands := make(map[string][]string, len(set.Teams))
	for _, t := range set.Teams {
		if len(t.HealthCheck) > 0 {
			commands[t.TeamID] = t.HealthCheck
		}
	}
	if len(commands) > 0 {
		prober := collect.NewProber(func(teamID string) []string {
			return commands[teamID]
		})
		collectors = append(collectors, prober)
	}

	return collectors, nil
}

func buildRemediator(s policy.Settings) (escalate.Remediator, error) {
	if s.OrchestratorURL != "" {
		return remedy.NewOrchestrator(s.OrchestratorURL)
	}
	return remedy.NewDocker()
}

// OpenStore opens just the state database, for read-only commands that
// do not need a full runtime.
func OpenStore(set *policy.Set) (*sqlite.Store, error) {
	st, err := sqlite.Open(set.Settings.StatePath())
	if err != nil {
		return nil, fmt.Errorf("open state db: %w", err)
	}
	return st, nil
}

// FormatAge renders a duration since t suitable for table cells.
func FormatAge(now, t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	d := now.Sub(t).Round(time.Second)
	if d < 0 {
		d = 0
	}
	return d.String()
}
