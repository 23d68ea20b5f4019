package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	JobsInQueue      *prometheus.GaugeVec
	JobsTotal        *prometheus.CounterVec
	AdmissionDenials *prometheus.CounterVec
	DiscoverDuration prometheus.Histogram
	IngestDuration   *prometheus.HistogramVec
)

func Init() {
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	JobsInQueue = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ingest_jobs_in_queue",
			Help: "Current number of jobs in the queue, by status.",
		},
		[]string{"status"},
	)

	JobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_jobs_total",
			Help: "Total number of processed jobs.",
		},
		[]string{"outcome"}, // outcome: completed, retry, failed
	)

	AdmissionDenials = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_admission_denials_total",
			Help: "Requests denied by the rate limiter, by scope.",
		},
		[]string{"scope"}, // scope: global, resource, model
	)

	DiscoverDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ingest_discover_duration_seconds",
			Help:    "Duration of conversation discovery passes.",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300},
		},
	)

	IngestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ingest_job_duration_seconds",
			Help:    "End-to-end duration of a single ingestion job.",
			Buckets: []float64{1, 5, 10, 15, 30, 60, 120},
		},
		[]string{"outcome"},
	)
}
