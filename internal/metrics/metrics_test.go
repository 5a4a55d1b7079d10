package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetricsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveBooking("created")
	m.ObserveBooking("created")
	m.ObserveVerification("conflict")
	m.ObserveTransition("pending", "confirmed")
	m.ObserveMeeting("existing")
	m.ObserveNotification("verification", errors.New("smtp down"))
	m.ObserveNotification("verification", nil)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.bookingsTotal.WithLabelValues("created")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.verificationsTotal.WithLabelValues("conflict")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.transitionsTotal.WithLabelValues("pending", "confirmed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.meetingsTotal.WithLabelValues("existing")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.notificationsTotal.WithLabelValues("verification", "failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.notificationsTotal.WithLabelValues("verification", "sent")))
}

func TestMetricsProviderLatency(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveProviderCall("create_session", time.Now().Add(-50*time.Millisecond), nil)

	assert.Equal(t, 1, testutil.CollectAndCount(m.providerLatency))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveBooking("created")
		m.ObserveVerification("verified")
		m.ObserveTransition("pending", "confirmed")
		m.ObserveMeeting("created")
		m.ObserveNotification("meeting_link", nil)
		m.ObserveProviderCall("get_session", time.Now(), nil)
	})
}
