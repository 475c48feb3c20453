// Package metrics provides Prometheus metrics for the embedding service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "kioku"

var (
	// RequestsTotal counts resolved embedding requests; a batch of N counts N.
	RequestsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "requests_total",
		Help:      "Total embedding requests served (batch elements counted individually)",
	})

	// CacheHitsTotal counts requests answered from the cache.
	CacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cache_hits_total",
		Help:      "Total embedding requests served from the cache",
	})

	// GenerationsTotal counts successful model invocations.
	GenerationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "generations_total",
		Help:      "Total successful embedding generations by the model",
	})

	// GenerationFailuresTotal counts model invocations that returned an error.
	GenerationFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "generation_failures_total",
		Help:      "Total embedding generations that failed",
	})

	// GenerationDuration observes model invocation latency in seconds.
	GenerationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "generation_duration_seconds",
		Help:      "Latency of embedding generation by the model",
		Buckets:   prometheus.DefBuckets,
	})

	// CacheEntries tracks the current number of cached embeddings.
	CacheEntries = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "cache_entries",
		Help:      "Current number of entries in the embedding cache",
	})
)
