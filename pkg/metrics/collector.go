// Package metrics exposes Prometheus metrics for the upload/download flow.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Submission outcomes
const (
	OutcomeSuccess    = "success"
	OutcomeFailure    = "failure"
	OutcomeRejected   = "rejected"
	OutcomeSuperseded = "superseded"
)

// Collector holds the flow metrics. A nil *Collector is valid and records nothing.
type Collector struct {
	registry *prometheus.Registry

	submissionsTotal   *prometheus.CounterVec
	submissionDuration prometheus.Histogram
	artifactSize       prometheus.Histogram
	stateTransitions   *prometheus.CounterVec
	inflight           prometheus.Gauge
	releasedArtifacts  prometheus.Counter
}

// NewCollector creates a collector backed by its own registry
func NewCollector(namespace string) *Collector {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,
		submissionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "submissions_total",
				Help:      "Total number of submit calls by outcome",
			},
			[]string{"outcome"},
		),
		submissionDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "submission_duration_seconds",
				Help:      "Duration of generate requests in seconds",
				Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
			},
		),
		artifactSize: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "artifact_size_bytes",
				Help:      "Size of received artifacts in bytes",
				Buckets:   prometheus.ExponentialBuckets(1024, 4, 10),
			},
		),
		stateTransitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "state_transitions_total",
				Help:      "Flow state transitions",
			},
			[]string{"from", "to"},
		),
		inflight: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "inflight_submissions",
				Help:      "Generate requests currently in flight",
			},
		),
		releasedArtifacts: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "released_artifacts_total",
				Help:      "Artifact references released after being superseded or torn down",
			},
		),
	}
}

// Registry returns the underlying registry
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// Handler serves the registry in the Prometheus text format
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// RecordSubmission records the outcome of a submit call
func (c *Collector) RecordSubmission(outcome string, duration time.Duration) {
	if c == nil {
		return
	}
	c.submissionsTotal.WithLabelValues(outcome).Inc()
	if duration > 0 {
		c.submissionDuration.Observe(duration.Seconds())
	}
}

// RecordArtifact records the size of a received artifact
func (c *Collector) RecordArtifact(size int64) {
	if c == nil {
		return
	}
	c.artifactSize.Observe(float64(size))
}

// RecordTransition records a state change
func (c *Collector) RecordTransition(from, to string) {
	if c == nil || from == to {
		return
	}
	c.stateTransitions.WithLabelValues(from, to).Inc()
}

// InFlight adjusts the in-flight gauge
func (c *Collector) InFlight(delta float64) {
	if c == nil {
		return
	}
	c.inflight.Add(delta)
}

// RecordRelease counts a released artifact reference
func (c *Collector) RecordRelease() {
	if c == nil {
		return
	}
	c.releasedArtifacts.Inc()
}
