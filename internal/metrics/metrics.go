// Package metrics holds the Prometheus collectors of the generation service.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	activeGenerations = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "streamgen_generations_active",
		Help: "Number of generation workers currently running",
	})

	totalRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streamgen_requests_total",
		Help: "Total number of requests by endpoint",
	}, []string{"endpoint"})

	generationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "streamgen_generation_duration_seconds",
		Help:    "Wall time of a streamed generation, including pacing",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
	}, []string{"endpoint"})

	totalFragments = promauto.NewCounter(prometheus.CounterOpts{
		Name: "streamgen_fragments_total",
		Help: "Total text fragments written to clients",
	})

	totalErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streamgen_errors_total",
		Help: "Total errors by type",
	}, []string{"type"})
)

// Error types recorded by RecordError.
const (
	ErrorValidation = "validation"
	ErrorPreStream  = "pre_stream"
	ErrorMidStream  = "mid_stream"
	ErrorBackend    = "backend"
)

// Handler serves the default registry in the exposition format.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordRequest counts one request to endpoint.
func RecordRequest(endpoint string) {
	totalRequests.WithLabelValues(endpoint).Inc()
}

// GenerationStarted marks a worker as running and returns the function that
// records its completion.
func GenerationStarted(endpoint string) func(fragments int) {
	activeGenerations.Inc()
	start := time.Now()
	return func(fragments int) {
		activeGenerations.Dec()
		generationDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
		totalFragments.Add(float64(fragments))
	}
}

// RecordError counts one error of the given type.
func RecordError(errType string) {
	totalErrors.WithLabelValues(errType).Inc()
}
