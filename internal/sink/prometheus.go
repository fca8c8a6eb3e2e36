// Package sink publishes engine observability output. The Prometheus sink
// registers gauges on demand so the engine can emit any metric name without
// a central catalog; annotations go to the state store and the log.
package sink

import (
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"vigil/internal/engine"
	"vigil/internal/health"
)

var _ engine.Sink = (*Prometheus)(nil)

// AnnotationWriter persists annotations. store/sqlite.Store satisfies it.
type AnnotationWriter interface {
	SaveAnnotation(at time.Time, text string, tags []string) error
}

// Prometheus is a concurrent-writer-safe engine.Sink backed by a
// prometheus registry.
type Prometheus struct {
	registry    *prometheus.Registry
	annotations AnnotationWriter
	clock       health.Clock

	mu     sync.Mutex
	gauges map[string]*prometheus.GaugeVec
}

// NewPrometheus creates a sink on its own registry. annotations may be nil.
func NewPrometheus(annotations AnnotationWriter) *Prometheus {
	return &Prometheus{
		registry:    prometheus.NewRegistry(),
		annotations: annotations,
		clock:       health.RealClock{},
		gauges:      make(map[string]*prometheus.GaugeVec),
	}
}

// Registry exposes the underlying registry for scraping.
func (p *Prometheus) Registry() *prometheus.Registry { return p.registry }

// EmitMetric sets a gauge, creating the vector on first use. Metrics with
// the same name must keep a stable label set; a mismatch is logged and
// dropped rather than crashing the cycle.
func (p *Prometheus) EmitMetric(name string, labels map[string]string, value float64) {
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	p.mu.Lock()
	vec, ok := p.gauges[name]
	if !ok {
		vec = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: name,
			Help: "vigil engine metric " + name,
		}, keys)
		if err := p.registry.Register(vec); err != nil {
			p.mu.Unlock()
			slog.Warn("register metric failed", "metric", name, "err", err)
			return
		}
		p.gauges[name] = vec
	}
	p.mu.Unlock()

	g, err := vec.GetMetricWith(labels)
	if err != nil {
		slog.Warn("emit metric failed", "metric", name, "labels", labels, "err", err)
		return
	}
	g.Set(value)
}

// EmitAnnotation records a timestamped annotation.
func (p *Prometheus) EmitAnnotation(text string, tags []string) {
	slog.Info("annotation", "text", text, "tags", strings.Join(tags, ","))
	if p.annotations == nil {
		return
	}
	if err := p.annotations.SaveAnnotation(p.clock.Now(), text, tags); err != nil {
		slog.Warn("persist annotation failed", "err", err)
	}
}
