package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// AlertMetrics contains all Prometheus metrics related to the notification
// scheduler.
type AlertMetrics struct {
	AlertsEvaluated     prometheus.Counter
	NotificationsSent   *prometheus.CounterVec // by frequency
	NotificationsFailed *prometheus.CounterVec // by frequency

	registry *prometheus.Registry
}

// NewAlertMetrics registers and returns the notification scheduler metrics.
func NewAlertMetrics(registry *prometheus.Registry) (*AlertMetrics, error) {
	m := &AlertMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register alert metrics: %w", err)
	}
	return m, nil
}

func (m *AlertMetrics) initMetrics() {
	m.AlertsEvaluated = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "alerts_evaluated_total",
		Help: "Total number of alerts evaluated by the notification scheduler",
	})
	m.NotificationsSent = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "alert_notifications_sent_total",
		Help: "Total number of alert notifications delivered, by frequency",
	}, []string{"frequency"})
	m.NotificationsFailed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "alert_notifications_failed_total",
		Help: "Total number of alert notification delivery failures, by frequency",
	}, []string{"frequency"})
}

// Collect implements the prometheus.Collector interface.
func (m *AlertMetrics) Collect(ch chan<- prometheus.Metric) {
	m.AlertsEvaluated.Collect(ch)
	m.NotificationsSent.Collect(ch)
	m.NotificationsFailed.Collect(ch)
}

// Describe implements the prometheus.Collector interface.
func (m *AlertMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.AlertsEvaluated.Describe(ch)
	m.NotificationsSent.Describe(ch)
	m.NotificationsFailed.Describe(ch)
}

// RecordEvaluated increments the evaluation counter. Safe on a nil receiver.
func (m *AlertMetrics) RecordEvaluated() {
	if m == nil {
		return
	}
	m.AlertsEvaluated.Inc()
}

// RecordSent increments the delivery counter for a frequency.
func (m *AlertMetrics) RecordSent(frequency string) {
	if m == nil {
		return
	}
	m.NotificationsSent.WithLabelValues(frequency).Inc()
}

// RecordFailed increments the failure counter for a frequency.
func (m *AlertMetrics) RecordFailed(frequency string) {
	if m == nil {
		return
	}
	m.NotificationsFailed.WithLabelValues(frequency).Inc()
}
