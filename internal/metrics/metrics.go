// Package metrics holds the Prometheus collectors for a report run. A run
// is a short-lived process, so the collectors are written to a node_exporter
// textfile at the end instead of being scraped.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "cryptoreport"

// Metrics is a set of collectors bound to its own registry. All methods
// are safe on a nil receiver so components can run without metrics.
type Metrics struct {
	registry *prometheus.Registry

	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	limiterWait     prometheus.Histogram
	tokens          *prometheus.CounterVec
	rankingDegraded prometheus.Counter
	breakerState    *prometheus.GaugeVec
	lastRun         prometheus.Gauge
}

// New creates collectors registered on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_requests_total",
			Help:      "Provider HTTP requests by model and outcome.",
		}, []string{"model", "status"}),
		requestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_request_duration_seconds",
			Help:      "Time spent in provider HTTP requests.",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}, []string{"model"}),
		limiterWait: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "rate_limiter_wait_seconds",
			Help:      "Time spent waiting for a rate limiter slot.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}),
		tokens: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tracked_tokens_total",
			Help:      "Tracked token lookups by fetch status.",
		}, []string{"status"}),
		rankingDegraded: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ranking_degraded_total",
			Help:      "Runs whose top-N listing failed so no ranking was produced.",
		}),
		breakerState: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_open",
			Help:      "1 while the named provider circuit breaker is open.",
		}, []string{"name"}),
		lastRun: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last report was generated.",
		}),
	}
}

// Registry returns the underlying registry, for tests and exporters.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveRequest records one provider request.
func (m *Metrics) ObserveRequest(model, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(model, status).Inc()
	m.requestDuration.WithLabelValues(model).Observe(d.Seconds())
}

// ObserveLimiterWait records how long a caller waited for a rate limiter slot.
func (m *Metrics) ObserveLimiterWait(d time.Duration) {
	if m == nil {
		return
	}
	m.limiterWait.Observe(d.Seconds())
}

// ObserveToken counts a tracked token by status.
func (m *Metrics) ObserveToken(status string) {
	if m == nil {
		return
	}
	m.tokens.WithLabelValues(status).Inc()
}

// RankingDegraded counts a run that produced no ranking.
func (m *Metrics) RankingDegraded() {
	if m == nil {
		return
	}
	m.rankingDegraded.Inc()
}

// SetBreakerOpen flags the named breaker as open or closed.
func (m *Metrics) SetBreakerOpen(name string, open bool) {
	if m == nil {
		return
	}
	v := 0.0
	if open {
		v = 1
	}
	m.breakerState.WithLabelValues(name).Set(v)
}

// MarkRun stamps the completion time of a run.
func (m *Metrics) MarkRun(t time.Time) {
	if m == nil {
		return
	}
	m.lastRun.Set(float64(t.Unix()))
}

// WriteTextfile writes every collector in the Prometheus text format.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
