// Package prom adapts Prometheus collectors to the observability
// MetricFactory interface, so the metrics extension can be wired straight
// into an application's Prometheus registry.
package prom

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/fortunelabs/entitled/observability"
)

// compile-time interface check
var _ observability.MetricFactory = (*Factory)(nil)

// Factory creates Prometheus-backed counters and histograms. Metric names
// use dots as namespace separators; they are rewritten to underscores to fit
// Prometheus naming rules. Requests for the same name return the same
// collector.
type Factory struct {
	registerer prometheus.Registerer

	mu         sync.Mutex
	counters   map[string]prometheus.Counter
	histograms map[string]prometheus.Histogram
}

// New creates a Factory registering collectors with reg. Pass
// prometheus.DefaultRegisterer to use the process-global registry.
func New(reg prometheus.Registerer) *Factory {
	return &Factory{
		registerer: reg,
		counters:   make(map[string]prometheus.Counter),
		histograms: make(map[string]prometheus.Histogram),
	}
}

// Counter implements observability.MetricFactory.
func (f *Factory) Counter(name string) observability.Counter {
	f.mu.Lock()
	defer f.mu.Unlock()

	if c, ok := f.counters[name]; ok {
		return c
	}
	c := prometheus.NewCounter(prometheus.CounterOpts{
		Name: promName(name) + "_total",
	})
	f.registerer.MustRegister(c)
	f.counters[name] = c
	return c
}

// Histogram implements observability.MetricFactory.
func (f *Factory) Histogram(name string) observability.Histogram {
	f.mu.Lock()
	defer f.mu.Unlock()

	if h, ok := f.histograms[name]; ok {
		return h
	}
	h := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    promName(name),
		Buckets: prometheus.DefBuckets,
	})
	f.registerer.MustRegister(h)
	f.histograms[name] = h
	return h
}

func promName(name string) string {
	return strings.NewReplacer(".", "_", "-", "_").Replace(name)
}
