package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes counters/histograms for the appointment lifecycle and
// telemedicine provisioning. A nil *Metrics is valid and records nothing.
type Metrics struct {
	bookingsTotal      *prometheus.CounterVec
	verificationsTotal *prometheus.CounterVec
	transitionsTotal   *prometheus.CounterVec
	meetingsTotal      *prometheus.CounterVec
	notificationsTotal *prometheus.CounterVec
	providerLatency    *prometheus.HistogramVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		bookingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "appointments",
			Name:      "bookings_total",
			Help:      "Total appointment booking attempts",
		}, []string{"result"}),
		verificationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "appointments",
			Name:      "verifications_total",
			Help:      "Total appointment verification attempts",
		}, []string{"result"}),
		transitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "appointments",
			Name:      "status_transitions_total",
			Help:      "Committed appointment status transitions",
		}, []string{"from", "to"}),
		meetingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "telemedicine",
			Name:      "meeting_provisioning_total",
			Help:      "Meeting provisioning outcomes",
		}, []string{"result"}),
		notificationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "notify",
			Name:      "notifications_total",
			Help:      "Notification dispatch outcomes",
		}, []string{"kind", "result"}),
		providerLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "clinic",
			Subsystem: "telemedicine",
			Name:      "provider_call_seconds",
			Help:      "Latency of video provider calls",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation", "status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(
		m.bookingsTotal,
		m.verificationsTotal,
		m.transitionsTotal,
		m.meetingsTotal,
		m.notificationsTotal,
		m.providerLatency,
	)
	return m
}

func (m *Metrics) ObserveBooking(result string) {
	if m == nil {
		return
	}
	m.bookingsTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveVerification(result string) {
	if m == nil {
		return
	}
	m.verificationsTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveTransition(from, to string) {
	if m == nil {
		return
	}
	m.transitionsTotal.WithLabelValues(from, to).Inc()
}

func (m *Metrics) ObserveMeeting(result string) {
	if m == nil {
		return
	}
	m.meetingsTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveNotification(kind string, err error) {
	if m == nil {
		return
	}
	result := "sent"
	if err != nil {
		result = "failed"
	}
	m.notificationsTotal.WithLabelValues(kind, result).Inc()
}

func (m *Metrics) ObserveProviderCall(operation string, started time.Time, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.providerLatency.WithLabelValues(operation, status).Observe(time.Since(started).Seconds())
}
