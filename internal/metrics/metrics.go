// Package metrics records batch counters on a private prometheus registry
// and can export them as a node_exporter textfile.
package metrics

import (
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ppiankov/qidlink/internal/model"
)

// Metrics groups the collectors for one run. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	registry       *prometheus.Registry
	rows           *prometheus.CounterVec
	sourceFailures *prometheus.CounterVec
	detailLookups  *prometheus.CounterVec
	httpRequests   *prometheus.CounterVec
	bestConfidence prometheus.Histogram
	rowDuration    prometheus.Histogram
}

// New creates and registers all collectors
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		rows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "qidlink",
			Name:      "rows_total",
			Help:      "Rows processed, by outcome.",
		}, []string{"outcome"}),
		sourceFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "qidlink",
			Name:      "source_failures_total",
			Help:      "Lookups that failed after all retries, by source.",
		}, []string{"source"}),
		detailLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "qidlink",
			Name:      "detail_lookups_total",
			Help:      "Entity detail lookups through the memo, by result.",
		}, []string{"result"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "qidlink",
			Name:      "http_requests_total",
			Help:      "HTTP attempts against the knowledge base, by endpoint and status.",
		}, []string{"endpoint", "status"}),
		bestConfidence: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "qidlink",
			Name:      "best_confidence",
			Help:      "Confidence of the top-ranked candidate per resolved row.",
			Buckets:   prometheus.LinearBuckets(0.1, 0.1, 10),
		}),
		rowDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "qidlink",
			Name:      "row_duration_seconds",
			Help:      "Wall time spent resolving one row.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
	}

	m.registry.MustRegister(m.rows, m.sourceFailures, m.detailLookups, m.httpRequests, m.bestConfidence, m.rowDuration)
	return m
}

// Registry exposes the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveRow records one processed row
func (m *Metrics) ObserveRow(outcome model.Outcome, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.rows.WithLabelValues(outcome.Kind.String()).Inc()
	if outcome.Kind == model.OutcomeSkipped {
		return
	}
	m.rowDuration.Observe(elapsed.Seconds())
	if len(outcome.Candidates) > 0 {
		m.bestConfidence.Observe(outcome.Candidates[0].Confidence)
	}
}

// SourceFailure records a lookup that exhausted its retries
func (m *Metrics) SourceFailure(source string) {
	if m == nil {
		return
	}
	m.sourceFailures.WithLabelValues(source).Inc()
}

// DetailLookup records a memo lookup result (hit, miss, error)
func (m *Metrics) DetailLookup(result string) {
	if m == nil {
		return
	}
	m.detailLookups.WithLabelValues(result).Inc()
}

// HTTPRequest records one HTTP attempt. Status 0 means a transport error.
func (m *Metrics) HTTPRequest(endpoint string, status int) {
	if m == nil {
		return
	}
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	m.httpRequests.WithLabelValues(endpoint, label).Inc()
}

// WriteTextfile writes all metrics in the text exposition format
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
