// Package telemetry holds the Prometheus collectors shared by the generator
// and the HTTP server.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "chain_of_density"

var (
	// GenerationAttempts counts text-generation calls by stage (initial,
	// rewrite) and outcome (ok, invalid, error).
	GenerationAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "generation_attempts_total",
		Help:      "Text-generation calls by stage and outcome.",
	}, []string{"stage", "outcome"})

	// ValidationFailures counts rejected responses by failure kind.
	ValidationFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "validation_failures_total",
		Help:      "Rejected generation responses by failure kind.",
	}, []string{"kind"})

	StepDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "step_duration_seconds",
		Help:      "Wall time of one accepted chain step including retries.",
		Buckets:   prometheus.ExponentialBuckets(0.25, 2, 10),
	}, []string{"stage"})

	Chains = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "chains_total",
		Help:      "Finished chains by outcome.",
	}, []string{"outcome"})

	EntityDensity = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "entity_token_ratio",
		Help:      "Entity/token ratio of accepted summaries.",
		Buckets:   prometheus.LinearBuckets(0, 0.02, 10),
	})
)
