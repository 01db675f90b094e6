// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	AlertsAdmitted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "beacon_alerts_admitted_total",
			Help: "Total number of alerts admitted past deduplication",
		},
	)

	AlertsDuplicate = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "beacon_alerts_duplicate_total",
			Help: "Total number of reports suppressed as duplicates",
		},
	)

	ReportsRejected = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "beacon_reports_rejected_total",
			Help: "Total number of hazard reports rejected at intake",
		},
	)

	DeliveriesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "beacon_deliveries_sent_total",
			Help: "Total number of delivery targets sent successfully",
		},
		[]string{"channel"},
	)

	DeliveriesFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "beacon_deliveries_failed_total",
			Help: "Total number of failed delivery attempts",
		},
		[]string{"channel", "reason"},
	)

	DeliveriesExhausted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "beacon_deliveries_exhausted_total",
			Help: "Total number of delivery targets that gave up",
		},
		[]string{"channel"},
	)

	DeliveryAttemptDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "beacon_delivery_attempt_duration_seconds",
			Help: "Duration of delivery attempts in seconds",
		},
		[]string{"channel"},
	)

	QueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "beacon_channel_queue_depth",
			Help: "Number of targets waiting in each channel queue",
		},
		[]string{"channel"},
	)
)
