package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	UploadBytes = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_upload_bytes",
			Help:    "Size of multipart upload request bodies",
			Buckets: prometheus.ExponentialBuckets(64*1024, 4, 7),
		},
		[]string{"path"},
	)

	MediaObjectsWritten = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_objects_written_total",
			Help: "Stored media objects written to the backend",
		},
		[]string{"namespace"},
	)

	MediaCompensations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_compensations_total",
			Help: "Compensating deletes issued after a failed operation",
		},
		[]string{"namespace", "reason"},
	)

	MediaCompensationFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_compensation_failures_total",
			Help: "Compensating deletes that failed and left an orphan",
		},
		[]string{"namespace"},
	)
)
