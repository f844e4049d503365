// Package metrics exposes Prometheus counters for the kiosk service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// TriggerOutcomes counts palm detection evaluations by outcome.
	TriggerOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "photobooth_trigger_outcomes_total",
		Help: "Palm detection evaluations by outcome.",
	}, []string{"outcome"})

	// PipelineRuns counts transformation pipeline completions by status.
	PipelineRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "photobooth_pipeline_runs_total",
		Help: "Transformation pipeline completions by status.",
	}, []string{"status"})

	// PipelineSteps counts individual pipeline step failures that were
	// absorbed by a degrade path.
	PipelineSteps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "photobooth_pipeline_step_degraded_total",
		Help: "Pipeline steps that failed and were degraded past.",
	}, []string{"step"})

	// PipelineDuration observes end-to-end transformation latency.
	PipelineDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "photobooth_pipeline_duration_seconds",
		Help:    "End-to-end transformation latency.",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
	})

	// StorageMode is 1 when durable object storage is reachable.
	StorageMode = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "photobooth_storage_available",
		Help: "Whether durable object storage is configured and reachable.",
	})
)

// Handler returns the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
