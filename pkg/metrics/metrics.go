// Package metrics provides Prometheus metrics for the hub client.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gaia_client_requests_total",
			Help: "Total number of hub requests",
		},
		[]string{"op", "status"},
	)

	requestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gaia_client_request_duration_seconds",
			Help:    "Hub request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op"},
	)

	bytesUploaded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gaia_client_bytes_uploaded_total",
			Help: "Total bytes uploaded to the hub",
		},
	)

	bytesDownloaded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gaia_client_bytes_downloaded_total",
			Help: "Total bytes downloaded from the hub",
		},
	)

	handshakesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gaia_client_handshakes_total",
			Help: "Total hub handshakes",
		},
		[]string{"result"},
	)

	signatureChecksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gaia_client_signature_checks_total",
			Help: "Total signature verifications",
		},
		[]string{"result"},
	)

	listPagesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gaia_client_list_pages_total",
			Help: "Total list-files pages fetched",
		},
	)
)

// RecordRequest records a hub request. status is 0 when no response arrived.
func RecordRequest(op string, status int, duration time.Duration) {
	s := "error"
	if status > 0 {
		s = strconv.Itoa(status)
	}
	requestsTotal.WithLabelValues(op, s).Inc()
	requestDuration.WithLabelValues(op).Observe(duration.Seconds())
}

// RecordUpload records bytes sent.
func RecordUpload(bytes int) {
	bytesUploaded.Add(float64(bytes))
}

// RecordDownload records bytes received.
func RecordDownload(bytes int) {
	bytesDownloaded.Add(float64(bytes))
}

// RecordHandshake records a handshake result.
func RecordHandshake(success bool) {
	result := "success"
	if !success {
		result = "failure"
	}
	handshakesTotal.WithLabelValues(result).Inc()
}

// RecordSignatureCheck records a signature verification result.
func RecordSignatureCheck(valid bool) {
	result := "valid"
	if !valid {
		result = "invalid"
	}
	signatureChecksTotal.WithLabelValues(result).Inc()
}

// RecordListPage records one list-files page fetch.
func RecordListPage() {
	listPagesTotal.Inc()
}
