package collect

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/prometheus/client_golang/api"
	promv1 "github.com/prometheus/client_golang/api/prometheus/v1"
	"github.com/prometheus/common/model"

	"vigil/internal/health"
	"vigil/internal/logging"
)

// QuerySet holds the PromQL templates for the metrics source. Each template
// receives the team id and the window (e.g. "5m") as verbs, in that order.
type QuerySet struct {
	ErrorRate       string
	ResponseTimeP95 string
	Availability    string
	CPUPercent      string
	MemoryPercent   string
}

// DefaultQueries assumes per-team labeled series as exported by the
// standard service instrumentation.
var DefaultQueries = QuerySet{
	ErrorRate:       `sum(rate(http_requests_total{team=%q,code=~"5.."}[%s])) / sum(rate(http_requests_total{team=%q}[%s]))`,
	ResponseTimeP95: `histogram_quantile(0.95, sum(rate(http_request_duration_seconds_bucket{team=%q}[%s])) by (le))`,
	Availability:    `avg_over_time(up{team=%q}[%s])`,
	CPUPercent:      `avg(rate(process_cpu_seconds_total{team=%q}[%s])) * 100`,
	MemoryPercent:   `avg(avg_over_time(process_memory_percent{team=%q}[%s]))`,
}

// Prometheus queries a Prometheus-compatible backend for the metric-series
// sample of a team.
type Prometheus struct {
	api     promv1.API
	queries QuerySet
	clock   health.Clock
	log     *slog.Logger
}

// NewPrometheus creates a collector against the given base URL.
func NewPrometheus(baseURL string) (*Prometheus, error) {
	client, err := api.NewClient(api.Config{Address: baseURL})
	if err != nil {
		return nil, fmt.Errorf("create prometheus client: %w", err)
	}
	return NewPrometheusWithAPI(promv1.NewAPI(client)), nil
}

// NewPrometheusWithAPI wraps an existing API handle (used by tests).
func NewPrometheusWithAPI(papi promv1.API) *Prometheus {
	return &Prometheus{
		api:     papi,
		queries: DefaultQueries,
		clock:   health.RealClock{},
		log:     logging.Component("prometheus-collector"),
	}
}

// WithClock overrides the evaluation timestamp source.
func (p *Prometheus) WithClock(c health.Clock) *Prometheus {
	p.clock = c
	return p
}

func (p *Prometheus) Source() health.Source { return health.SourceMetrics }

// Fetch runs all metric queries for the team. A backend failure makes the
// whole source unavailable; an individual empty result reads as zero.
func (p *Prometheus) Fetch(ctx context.Context, teamID string, window time.Duration) (health.Sample, error) {
	win := model.Duration(window).String()
	now := p.clock.Now()

	errRate, err := p.scalar(ctx, fmt.Sprintf(p.queries.ErrorRate, teamID, win, teamID, win), now)
	if err != nil {
		return nil, fmt.Errorf("%w: error rate query: %v", ErrSourceUnavailable, err)
	}
	p95, err := p.scalar(ctx, fmt.Sprintf(p.queries.ResponseTimeP95, teamID, win), now)
	if err != nil {
		return nil, fmt.Errorf("%w: latency query: %v", ErrSourceUnavailable, err)
	}
	avail, err := p.scalar(ctx, fmt.Sprintf(p.queries.Availability, teamID, win), now)
	if err != nil {
		return nil, fmt.Errorf("%w: availability query: %v", ErrSourceUnavailable, err)
	}
	cpu, err := p.scalar(ctx, fmt.Sprintf(p.queries.CPUPercent, teamID, win), now)
	if err != nil {
		return nil, fmt.Errorf("%w: cpu query: %v", ErrSourceUnavailable, err)
	}
	mem, err := p.scalar(ctx, fmt.Sprintf(p.queries.MemoryPercent, teamID, win), now)
	if err != nil {
		return nil, fmt.Errorf("%w: memory query: %v", ErrSourceUnavailable, err)
	}

	return health.MetricsSample{
		ErrorRate:       errRate,
		ResponseTimeP95: time.Duration(p95 * float64(time.Second)),
		Availability:    avail,
		CPUPercent:      cpu,
		MemoryPercent:   mem,
	}, nil
}

// scalar evaluates an instant query and returns the first vector sample.
// Empty results and NaN (rate over no data) read as zero.
func (p *Prometheus) scalar(ctx context.Context, query string, at time.Time) (float64, error) {
	result, warnings, err := p.api.Query(ctx, query, at)
	if err != nil {
		return 0, err
	}
	for _, w := range warnings {
		p.log.Debug("prometheus query warning", "query", query, "warning", w)
	}

	switch v := result.(type) {
	case model.Vector:
		if len(v) == 0 {
			return 0, nil
		}
		f := float64(v[0].Value)
		if math.IsNaN(f) {
			return 0, nil
		}
		return f, nil
	case *model.Scalar:
		f := float64(v.Value)
		if math.IsNaN(f) {
			return 0, nil
		}
		return f, nil
	default:
		return 0, fmt.Errorf("unexpected result type %q", result.Type())
	}
}
