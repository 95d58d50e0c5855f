package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ba_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~16s
		},
		[]string{"method", "route", "status"},
	)

	UpstreamCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ba_upstream_call_duration_seconds",
			Help:    "Duration of calls to external collaborators (parser, llm, storage, smtp)",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 14), // 10ms to ~160s
		},
		[]string{"service", "operation", "outcome"},
	)

	FilesProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ba_files_processed_total",
			Help: "Files sent through text extraction",
		},
		[]string{"status"}, // processed, failed
	)

	AIGenerations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ba_ai_generations_total",
			Help: "AI generations by kind and outcome",
		},
		[]string{"kind", "outcome"}, // kind: roadmap, summary, chat
	)
)

func RecordHTTPRequest(method, route, status string, d time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, route, status).Observe(d.Seconds())
}

// RecordUpstreamCall observes one external call; err decides the outcome label.
func RecordUpstreamCall(service, operation string, d time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	UpstreamCallDuration.WithLabelValues(service, operation, outcome).Observe(d.Seconds())
}

func IncFileProcessed(status string) {
	FilesProcessed.WithLabelValues(status).Inc()
}

func IncAIGeneration(kind string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	AIGenerations.WithLabelValues(kind, outcome).Inc()
}
