// Package metrics provides custom Prometheus metrics for notification operations.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// NotificationMetrics contains all Prometheus metrics related to the
// classification and delivery pipeline.
type NotificationMetrics struct {
	// Pipeline metrics
	EventsReceivedTotal    *prometheus.CounterVec // Events entering the pipeline by ingest source
	ClassificationsTotal   *prometheus.CounterVec // Classifications by category and matched signal
	DeliveryDecisionsTotal *prometheus.CounterVec // Policy decisions by category, behavior and reason
	ProcessingDuration     prometheus.Histogram   // End to end pipeline latency

	// Provider delivery metrics
	ProviderDeliveriesTotal  *prometheus.CounterVec   // Total deliveries by provider and status
	ProviderDeliveryDuration *prometheus.HistogramVec // Latency by provider
	ProviderDeliveryErrors   *prometheus.CounterVec   // Errors by provider and error_category

	// Dispatcher metrics
	DispatchActive prometheus.Gauge // Currently active dispatch operations

	registry *prometheus.Registry
}

// NewNotificationMetrics creates a new instance of NotificationMetrics.
// It requires a Prometheus registry to register the metrics.
// It returns an error if metric registration fails.
func NewNotificationMetrics(registry *prometheus.Registry) (*NotificationMetrics, error) {
	m := &NotificationMetrics{registry: registry}
	if err := m.initMetrics(); err != nil {
		return nil, fmt.Errorf("failed to initialize notification metrics: %w", err)
	}
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register notification metrics: %w", err)
	}
	return m, nil
}

// initMetrics initializes all metrics for NotificationMetrics.
func (m *NotificationMetrics) initMetrics() error {
	m.EventsReceivedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_events_received_total",
			Help: "Total number of entity events received by ingest source",
		},
		[]string{"source"}, // source: mqtt, api, cli
	)

	m.ClassificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_classifications_total",
			Help: "Total number of classifications by category and matched signal",
		},
		[]string{"category", "signal"}, // signal: override, device_class, domain, pattern, default
	)

	m.DeliveryDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_delivery_decisions_total",
			Help: "Total number of delivery policy decisions",
		},
		[]string{"category", "behavior", "reason"}, // reason: delivered, log_only, quiet_hours, duplicate
	)

	m.ProcessingDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "notification_processing_duration_seconds",
			Help:    "Time taken to classify, decide and store one event",
			Buckets: prometheus.ExponentialBuckets(BucketStart1ms, BucketFactor2, BucketCount12), // 1ms to ~4s
		},
	)

	m.ProviderDeliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_provider_deliveries_total",
			Help: "Total number of notification delivery attempts by provider and status",
		},
		[]string{"provider", "status"}, // status: success, error, timeout
	)

	m.ProviderDeliveryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "notification_provider_delivery_duration_seconds",
			Help:    "Time taken for notification delivery by provider",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0}, // 10ms to 30s
		},
		[]string{"provider"},
	)

	m.ProviderDeliveryErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_provider_delivery_errors_total",
			Help: "Total number of notification delivery errors by provider and error category",
		},
		[]string{"provider", "error_category"}, // error_category: network, timeout, validation, provider_error
	)

	m.DispatchActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "notification_dispatch_active",
			Help: "Number of currently active notification dispatch operations",
		},
	)

	return nil
}

// RecordEventReceived records an event entering the pipeline.
func (m *NotificationMetrics) RecordEventReceived(source string) {
	m.EventsReceivedTotal.WithLabelValues(source).Inc()
}

// RecordClassification records a classification result.
func (m *NotificationMetrics) RecordClassification(category, signal string) {
	m.ClassificationsTotal.WithLabelValues(category, signal).Inc()
}

// RecordDecision records a delivery policy decision.
func (m *NotificationMetrics) RecordDecision(category, behavior, reason string) {
	m.DeliveryDecisionsTotal.WithLabelValues(category, behavior, reason).Inc()
}

// RecordProcessingDuration records how long one event took end to end.
func (m *NotificationMetrics) RecordProcessingDuration(duration time.Duration) {
	m.ProcessingDuration.Observe(duration.Seconds())
}

// RecordDelivery records a notification delivery attempt.
func (m *NotificationMetrics) RecordDelivery(provider, status string, duration time.Duration) {
	m.ProviderDeliveriesTotal.WithLabelValues(provider, status).Inc()
	m.ProviderDeliveryDuration.WithLabelValues(provider).Observe(duration.Seconds())
}

// RecordDeliveryError records a notification delivery error.
func (m *NotificationMetrics) RecordDeliveryError(provider, errorCategory string) {
	m.ProviderDeliveryErrors.WithLabelValues(provider, errorCategory).Inc()
}

// DispatchStarted increments the active dispatch gauge.
func (m *NotificationMetrics) DispatchStarted() {
	m.DispatchActive.Inc()
}

// DispatchFinished decrements the active dispatch gauge.
func (m *NotificationMetrics) DispatchFinished() {
	m.DispatchActive.Dec()
}

// Collect implements the prometheus.Collector interface.
func (m *NotificationMetrics) Collect(ch chan<- prometheus.Metric) {
	m.EventsReceivedTotal.Collect(ch)
	m.ClassificationsTotal.Collect(ch)
	m.DeliveryDecisionsTotal.Collect(ch)
	m.ProcessingDuration.Collect(ch)
	m.ProviderDeliveriesTotal.Collect(ch)
	m.ProviderDeliveryDuration.Collect(ch)
	m.ProviderDeliveryErrors.Collect(ch)
	m.DispatchActive.Collect(ch)
}

// Describe implements the prometheus.Collector interface.
func (m *NotificationMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.EventsReceivedTotal.Describe(ch)
	m.ClassificationsTotal.Describe(ch)
	m.DeliveryDecisionsTotal.Describe(ch)
	m.ProcessingDuration.Describe(ch)
	m.ProviderDeliveriesTotal.Describe(ch)
	m.ProviderDeliveryDuration.Describe(ch)
	m.ProviderDeliveryErrors.Describe(ch)
	m.DispatchActive.Describe(ch)
}

// StartDeliveryTimer creates a timer for measuring delivery duration.
func (m *NotificationMetrics) StartDeliveryTimer() *DeliveryTimer {
	return &DeliveryTimer{
		startTime: time.Now(),
		metrics:   m,
	}
}

// DeliveryTimer is a helper struct for measuring delivery duration.
type DeliveryTimer struct {
	startTime time.Time
	metrics   *NotificationMetrics
}

// ObserveDuration stops the timer and records the duration with delivery status.
func (dt *DeliveryTimer) ObserveDuration(provider, status string) {
	duration := time.Since(dt.startTime)
	dt.metrics.RecordDelivery(provider, status, duration)
}
