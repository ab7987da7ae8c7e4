// Package metrics exposes Prometheus counters for the candle pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder implements the outcome, upstream and cache recorders used across the service.
// A nil *Recorder records nothing.
type Recorder struct {
	gatherer        prometheus.Gatherer
	outcomes        *prometheus.CounterVec
	upstream        *prometheus.CounterVec
	upstreamLatency *prometheus.HistogramVec
	cacheLookups    *prometheus.CounterVec
}

// New registers the collectors on reg. Pass prometheus.NewRegistry() in tests.
func New(reg *prometheus.Registry) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		gatherer: reg,
		outcomes: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fx_resolve_outcomes_total",
				Help: "Resolved candle requests by timeframe and cascade outcome",
			},
			[]string{"timeframe", "outcome"},
		),
		upstream: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fx_upstream_requests_total",
				Help: "Upstream time series calls by interval and result",
			},
			[]string{"interval", "result"},
		),
		upstreamLatency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fx_upstream_duration_seconds",
				Help:    "Duration of upstream time series calls in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"interval"},
		),
		cacheLookups: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fx_cache_lookups_total",
				Help: "Tiered cache lookups by partition and result",
			},
			[]string{"partition", "result"},
		),
	}
}

// RecordOutcome counts one resolved request.
func (r *Recorder) RecordOutcome(timeframe, outcome string) {
	if r == nil {
		return
	}
	r.outcomes.WithLabelValues(timeframe, outcome).Inc()
}

// RecordUpstream counts one upstream call and its latency.
func (r *Recorder) RecordUpstream(interval, result string, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.upstream.WithLabelValues(interval, result).Inc()
	r.upstreamLatency.WithLabelValues(interval).Observe(elapsed.Seconds())
}

// RecordCacheLookup counts one cache read.
func (r *Recorder) RecordCacheLookup(partition, result string) {
	if r == nil {
		return
	}
	r.cacheLookups.WithLabelValues(partition, result).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(r.gatherer, promhttp.HandlerOpts{})
}
