// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Upload results.
const (
	UploadStored   = "stored"
	UploadRejected = "rejected"
	UploadFailed   = "failed"
)

var (
	// HTTP
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rivermonitor_http_requests_total",
			Help: "Total number of HTTP requests by method, route and status",
		},
		[]string{"method", "route", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rivermonitor_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// Observations
	UploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rivermonitor_uploads_total",
			Help: "Upload attempts by result (stored, rejected, failed)",
		},
		[]string{"result"},
	)

	ValidationRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rivermonitor_validation_rejections_total",
			Help: "Rejected uploads by error code",
		},
		[]string{"code"},
	)

	ObservationsReturned = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "rivermonitor_retrieve_results",
			Help:    "Number of observations returned per retrieve call",
			Buckets: []float64{0, 1, 5, 10, 50, 100, 500, 1000},
		},
	)

	// Storage
	StagingFilesSwept = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rivermonitor_staging_files_swept_total",
			Help: "Stale staging images removed by the sweep",
		},
	)

	// Live feed
	FeedClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "rivermonitor_feed_clients",
			Help: "Connected live feed clients",
		},
	)

	FeedEventsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rivermonitor_feed_events_dropped_total",
			Help: "Live feed events dropped because a buffer was full",
		},
	)
)

// RecordAPIRequest records one served HTTP request.
func RecordAPIRequest(method, route, status string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, route, status).Inc()
	APIRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordUpload counts an upload attempt. code is only used for rejections.
func RecordUpload(result, code string) {
	UploadsTotal.WithLabelValues(result).Inc()
	if result == UploadRejected {
		ValidationRejections.WithLabelValues(code).Inc()
	}
}
