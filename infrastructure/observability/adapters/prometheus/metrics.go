// Package prometheus adapts ports.Metrics to the Prometheus client library.
// Collectors are created on first use and live in a private registry so a
// batch run can push everything it recorded to a Pushgateway when it ends.
package prometheus

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"hospitalsync/application/ports"
)

var invalidNameChars = regexp.MustCompile(`[^a-zA-Z0-9_]`)

// sizeBuckets covers 1KB to 1GB, matching dataset file sizes
var sizeBuckets = []float64{
	1024,       // 1KB
	10240,      // 10KB
	102400,     // 100KB
	1048576,    // 1MB
	10485760,   // 10MB
	104857600,  // 100MB
	1073741824, // 1GB
}

// collectors is shared between a Metrics and its WithTags children
type collectors struct {
	mu         sync.Mutex
	registry   *prometheus.Registry
	namespace  string
	counters   map[string]*prometheus.CounterVec
	histograms map[string]*prometheus.HistogramVec
	gauges     map[string]*prometheus.GaugeVec
	labels     map[string][]string
}

// Metrics implements ports.Metrics. The label set of a metric is fixed by
// its first observation; later observations fill missing labels with "" and
// drop unknown ones.
type Metrics struct {
	tags map[string]string
	c    *collectors
}

// New creates Prometheus metrics whose names are prefixed with namespace
func New(namespace string) *Metrics {
	return &Metrics{
		tags: map[string]string{},
		c: &collectors{
			registry:   prometheus.NewRegistry(),
			namespace:  invalidNameChars.ReplaceAllString(namespace, "_"),
			counters:   make(map[string]*prometheus.CounterVec),
			histograms: make(map[string]*prometheus.HistogramVec),
			gauges:     make(map[string]*prometheus.GaugeVec),
			labels:     make(map[string][]string),
		},
	}
}

// Registry exposes the private registry (gathering, tests)
func (m *Metrics) Registry() *prometheus.Registry {
	return m.c.registry
}

// IncrementCounter increments a counter metric
func (m *Metrics) IncrementCounter(name string, tags map[string]string) {
	all := m.combineTags(tags)

	m.c.mu.Lock()
	vec, ok := m.c.counters[name]
	if !ok {
		labels := sortedKeys(all)
		vec = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: m.c.namespace,
			Name:      metricName(name),
			Help:      fmt.Sprintf("Counter %s", name),
		}, labels)
		m.c.register(name, labels, vec)
		m.c.counters[name] = vec
	}
	values := m.c.labelValues(name, all)
	m.c.mu.Unlock()

	vec.WithLabelValues(values...).Inc()
}

// RecordHistogram records a histogram value. Names ending in "bytes" use
// size buckets, everything else the default latency buckets.
func (m *Metrics) RecordHistogram(name string, value float64, tags map[string]string) {
	all := m.combineTags(tags)

	m.c.mu.Lock()
	vec, ok := m.c.histograms[name]
	if !ok {
		buckets := prometheus.DefBuckets
		if strings.HasSuffix(metricName(name), "_bytes") {
			buckets = sizeBuckets
		}
		labels := sortedKeys(all)
		vec = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: m.c.namespace,
			Name:      metricName(name),
			Help:      fmt.Sprintf("Histogram %s", name),
			Buckets:   buckets,
		}, labels)
		m.c.register(name, labels, vec)
		m.c.histograms[name] = vec
	}
	values := m.c.labelValues(name, all)
	m.c.mu.Unlock()

	vec.WithLabelValues(values...).Observe(value)
}

// RecordGauge records a gauge value
func (m *Metrics) RecordGauge(name string, value float64, tags map[string]string) {
	all := m.combineTags(tags)

	m.c.mu.Lock()
	vec, ok := m.c.gauges[name]
	if !ok {
		labels := sortedKeys(all)
		vec = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: m.c.namespace,
			Name:      metricName(name),
			Help:      fmt.Sprintf("Gauge %s", name),
		}, labels)
		m.c.register(name, labels, vec)
		m.c.gauges[name] = vec
	}
	values := m.c.labelValues(name, all)
	m.c.mu.Unlock()

	vec.WithLabelValues(values...).Set(value)
}

// WithTags returns a new Metrics instance with additional tags
func (m *Metrics) WithTags(tags map[string]string) ports.Metrics {
	return &Metrics{
		tags: m.combineTags(tags),
		c:    m.c,
	}
}

// Push sends the registry to a Pushgateway under the given job name
func (m *Metrics) Push(url, job string) error {
	if err := push.New(url, job).Gatherer(m.c.registry).Push(); err != nil {
		return fmt.Errorf("failed to push metrics to %s: %w", url, err)
	}
	return nil
}

// register must be called with mu held
func (c *collectors) register(name string, labels []string, collector prometheus.Collector) {
	c.labels[name] = labels
	// A name clash across metric types is a programming error
	c.registry.MustRegister(collector)
}

// labelValues must be called with mu held
func (c *collectors) labelValues(name string, tags map[string]string) []string {
	labels := c.labels[name]
	values := make([]string, len(labels))
	for i, l := range labels {
		values[i] = tags[l]
	}
	return values
}

func (m *Metrics) combineTags(tags map[string]string) map[string]string {
	all := make(map[string]string, len(m.tags)+len(tags))
	for k, v := range m.tags {
		all[invalidNameChars.ReplaceAllString(k, "_")] = v
	}
	for k, v := range tags {
		all[invalidNameChars.ReplaceAllString(k, "_")] = v
	}
	return all
}

func metricName(name string) string {
	return invalidNameChars.ReplaceAllString(name, "_")
}

func sortedKeys(tags map[string]string) []string {
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
