package stdout

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"hospitalsync/application/ports"
)

// store is the in-memory state shared by a Metrics and everything derived
// from it with WithTags
type store struct {
	mu         sync.RWMutex
	counters   map[string]int64
	histograms map[string][]float64
	gauges     map[string]float64
}

// Metrics implements ports.Metrics by printing each observation
type Metrics struct {
	tags   map[string]string
	logger *log.Logger
	json   bool
	store  *store
}

// MetricsOption configures Metrics
type MetricsOption func(*Metrics)

// WithMetricsWriter sends metric lines to w instead of stdout
func WithMetricsWriter(w io.Writer) MetricsOption {
	return func(m *Metrics) {
		m.logger = log.New(w, "", 0)
	}
}

// WithJSONMetrics switches output to one JSON object per line
func WithJSONMetrics(enabled bool) MetricsOption {
	return func(m *Metrics) {
		m.json = enabled
	}
}

// NewMetrics creates a new stdout metrics instance
func NewMetrics(opts ...MetricsOption) *Metrics {
	m := &Metrics{
		tags:   make(map[string]string),
		logger: log.New(os.Stdout, "", 0),
		store: &store{
			counters:   make(map[string]int64),
			histograms: make(map[string][]float64),
			gauges:     make(map[string]float64),
		},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// IncrementCounter increments a counter metric
func (m *Metrics) IncrementCounter(name string, tags map[string]string) {
	allTags := m.combineTags(tags)
	key := buildKey(name, allTags)

	m.store.mu.Lock()
	m.store.counters[key]++
	value := m.store.counters[key]
	m.store.mu.Unlock()

	m.logMetric("COUNTER", name, float64(value), allTags, nil)
}

// RecordHistogram records a histogram value
func (m *Metrics) RecordHistogram(name string, value float64, tags map[string]string) {
	allTags := m.combineTags(tags)
	key := buildKey(name, allTags)

	m.store.mu.Lock()
	m.store.histograms[key] = append(m.store.histograms[key], value)
	stats := calculateStats(m.store.histograms[key])
	m.store.mu.Unlock()

	m.logMetric("HISTOGRAM", name, value, allTags, &stats)
}

// RecordGauge records a gauge value
func (m *Metrics) RecordGauge(name string, value float64, tags map[string]string) {
	allTags := m.combineTags(tags)
	key := buildKey(name, allTags)

	m.store.mu.Lock()
	m.store.gauges[key] = value
	m.store.mu.Unlock()

	m.logMetric("GAUGE", name, value, allTags, nil)
}

// WithTags returns a new Metrics instance with additional tags
func (m *Metrics) WithTags(tags map[string]string) ports.Metrics {
	return &Metrics{
		tags:   m.combineTags(tags),
		logger: m.logger,
		json:   m.json,
		store:  m.store, // Share the same storage
	}
}

// GetCounter returns the current value of a counter (useful for testing).
// tags must include the instance's default tags.
func (m *Metrics) GetCounter(name string, tags map[string]string) int64 {
	m.store.mu.RLock()
	defer m.store.mu.RUnlock()
	return m.store.counters[buildKey(name, m.combineTags(tags))]
}

// GetHistogram returns all values recorded for a histogram (useful for testing)
func (m *Metrics) GetHistogram(name string, tags map[string]string) []float64 {
	m.store.mu.RLock()
	defer m.store.mu.RUnlock()

	values := m.store.histograms[buildKey(name, m.combineTags(tags))]
	result := make([]float64, len(values))
	copy(result, values)
	return result
}

// GetGauge returns the current value of a gauge (useful for testing)
func (m *Metrics) GetGauge(name string, tags map[string]string) float64 {
	m.store.mu.RLock()
	defer m.store.mu.RUnlock()
	return m.store.gauges[buildKey(name, m.combineTags(tags))]
}

// buildKey creates a unique key for a metric with tags
func buildKey(name string, tags map[string]string) string {
	if len(tags) == 0 {
		return name
	}
	return fmt.Sprintf("%s{%s}", name, joinTags(tags, ":", ","))
}

func joinTags(tags map[string]string, kvSep, sep string) string {
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+kvSep+tags[k])
	}
	return strings.Join(pairs, sep)
}

// combineTags merges default tags with provided tags
func (m *Metrics) combineTags(tags map[string]string) map[string]string {
	allTags := make(map[string]string, len(m.tags)+len(tags))
	for k, v := range m.tags {
		allTags[k] = v
	}
	for k, v := range tags {
		allTags[k] = v
	}
	return allTags
}

func (m *Metrics) logMetric(metricType, name string, value float64, tags map[string]string, stats *histogramStats) {
	timestamp := time.Now().UTC().Format(time.RFC3339)

	if m.json {
		entry := map[string]interface{}{
			"timestamp": timestamp,
			"type":      "metric",
			"metric":    metricType,
			"name":      name,
			"value":     value,
			"tags":      tags,
		}
		if stats != nil {
			entry["stats"] = map[string]interface{}{
				"count": stats.count,
				"min":   stats.min,
				"max":   stats.max,
				"avg":   stats.avg,
			}
		}
		b, err := json.Marshal(entry)
		if err != nil {
			m.logger.Printf("Failed to marshal metric: %v", err)
			return
		}
		m.logger.Println(string(b))
		return
	}

	tagStr := ""
	if len(tags) > 0 {
		tagStr = " " + joinTags(tags, "=", " ")
	}

	if stats != nil {
		m.logger.Printf("%s [METRIC] HISTOGRAM %s=%.2f count=%d min=%.2f max=%.2f avg=%.2f%s",
			timestamp, name, value, stats.count, stats.min, stats.max, stats.avg, tagStr)
		return
	}
	m.logger.Printf("%s [METRIC] %s %s=%.2f%s", timestamp, metricType, name, value, tagStr)
}

// histogramStats holds basic statistics for histogram values
type histogramStats struct {
	count int
	min   float64
	max   float64
	avg   float64
}

// calculateStats computes basic statistics for histogram values
func calculateStats(values []float64) histogramStats {
	if len(values) == 0 {
		return histogramStats{}
	}

	stats := histogramStats{
		count: len(values),
		min:   values[0],
		max:   values[0],
	}

	sum := 0.0
	for _, v := range values {
		sum += v
		if v < stats.min {
			stats.min = v
		}
		if v > stats.max {
			stats.max = v
		}
	}

	stats.avg = sum / float64(len(values))
	return stats
}
