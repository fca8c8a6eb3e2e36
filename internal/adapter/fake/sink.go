package fake

import (
	"sync"

	"vigil/internal/engine"
)

var _ engine.Sink = (*Sink)(nil)

// Metric is one emitted gauge value.
type Metric struct {
	Name   string
	Labels map[string]string
	Value  float64
}

// Annotation is one emitted event annotation.
type Annotation struct {
	Text string
	Tags []string
}

// Sink collects emitted metrics and annotations for assertion in tests.
type Sink struct {
	mu          sync.Mutex
	metrics     []Metric
	annotations []Annotation
}

func (s *Sink) EmitMetric(name string, labels map[string]string, value float64) {
	cp := make(map[string]string, len(labels))
	for k, v := range labels {
		cp[k] = v
	}
	s.mu.Lock()
	s.metrics = append(s.metrics, Metric{Name: name, Labels: cp, Value: value})
	s.mu.Unlock()
}

func (s *Sink) EmitAnnotation(text string, tags []string) {
	s.mu.Lock()
	s.annotations = append(s.annotations, Annotation{Text: text, Tags: append([]string(nil), tags...)})
	s.mu.Unlock()
}

// Metrics returns emitted metrics. If name is "", returns all.
func (s *Sink) Metrics(name string) []Metric {
	s.mu.Lock()
	defer s.mu.Unlock()
	if name == "" {
		out := make([]Metric, len(s.metrics))
		copy(out, s.metrics)
		return out
	}
	var out []Metric
	for _, m := range s.metrics {
		if m.Name == name {
			out = append(out, m)
		}
	}
	return out
}

// Annotations returns all emitted annotations.
func (s *Sink) Annotations() []Annotation {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Annotation, len(s.annotations))
	copy(out, s.annotations)
	return out
}
