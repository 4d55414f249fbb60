// Package prometheus implements the metrics interfaces on the process
// Prometheus registry.
package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/marmos91/bytebeam/pkg/metrics"
)

// relayMetrics is the Prometheus implementation of metrics.Relay.
type relayMetrics struct {
	minted   *prometheus.CounterVec
	upgrades *prometheus.CounterVec
	culled   prometheus.Counter
	deleted  prometheus.Counter
	active   prometheus.Gauge
	bytesUp  prometheus.Counter
	bytesDn  prometheus.Counter
}

// NewRelayMetrics creates a Prometheus-backed metrics.Relay.
//
// When metrics are not enabled (InitRegistry not called) the returned
// value records nothing: every method is a no-op on the nil receiver, so
// callers never branch on configuration.
func NewRelayMetrics() metrics.Relay {
	if !metrics.IsEnabled() {
		return (*relayMetrics)(nil)
	}

	reg := metrics.GetRegistry()

	m := &relayMetrics{
		minted: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "bytebeam_tickets_minted_total",
				Help: "Total tickets minted, by admission tier",
			},
			[]string{"tier"}, // "public", "authenticated"
		),
		upgrades: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "bytebeam_ticket_upgrades_total",
				Help: "Total ticket upgrade attempts, by outcome",
			},
			[]string{"outcome"}, // "success", "failure"
		),
		culled: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "bytebeam_tickets_culled_total",
			Help: "Total tickets dropped by the culler",
		}),
		deleted: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "bytebeam_tickets_deleted_total",
			Help: "Total tickets removed by explicit delete",
		}),
		active: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "bytebeam_tickets_active",
			Help: "Tickets currently held by the registry",
		}),
		bytesUp: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "bytebeam_uploaded_bytes_total",
			Help: "Total payload bytes received from senders",
		}),
		bytesDn: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "bytebeam_downloaded_bytes_total",
			Help: "Total payload bytes streamed to receivers",
		}),
	}

	return m
}

func (m *relayMetrics) TicketMinted(tier string) {
	if m == nil {
		return
	}
	m.minted.WithLabelValues(tier).Inc()
}

func (m *relayMetrics) TicketUpgraded(ok bool) {
	if m == nil {
		return
	}
	outcome := "failure"
	if ok {
		outcome = "success"
	}
	m.upgrades.WithLabelValues(outcome).Inc()
}

func (m *relayMetrics) TicketsCulled(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.culled.Add(float64(n))
}

func (m *relayMetrics) TicketDeleted() {
	if m == nil {
		return
	}
	m.deleted.Inc()
}

func (m *relayMetrics) SetActiveTickets(n int) {
	if m == nil {
		return
	}
	m.active.Set(float64(n))
}

func (m *relayMetrics) BytesUploaded(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.bytesUp.Add(float64(n))
}

func (m *relayMetrics) BytesDownloaded(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.bytesDn.Add(float64(n))
}
