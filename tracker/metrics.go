package tracker

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exports call lifecycle counters for external monitoring. A nil
// *Metrics is valid and records nothing, so instrumentation stays optional.
type Metrics struct {
	dialsTotal       prometheus.Counter
	incomingTotal    prometheus.Counter
	redialsTotal     prometheus.Counter
	disconnectsTotal *prometheus.CounterVec
	holdSwapFailures prometheus.Counter
	activeConns      prometheus.Gauge
}

// NewMetrics creates and registers the tracker metrics with the given
// registerer. Pass prometheus.DefaultRegisterer for the process default.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		dialsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ims",
			Subsystem: "calls",
			Name:      "dials_total",
			Help:      "Outgoing dial attempts.",
		}),
		incomingTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ims",
			Subsystem: "calls",
			Name:      "incoming_total",
			Help:      "Inbound call announcements.",
		}),
		redialsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ims",
			Subsystem: "calls",
			Name:      "redials_total",
			Help:      "Automatic local redials triggered by network reason codes.",
		}),
		disconnectsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ims",
			Subsystem: "calls",
			Name:      "disconnects_total",
			Help:      "Finalized disconnects by user-facing cause.",
		}, []string{"cause"}),
		holdSwapFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ims",
			Subsystem: "calls",
			Name:      "hold_swap_failures_total",
			Help:      "Hold, resume, and swap operations rolled back on failure.",
		}),
		activeConns: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "ims",
			Subsystem: "calls",
			Name:      "active_connections",
			Help:      "Live connections across all legs.",
		}),
	}
	reg.MustRegister(
		m.dialsTotal, m.incomingTotal, m.redialsTotal,
		m.disconnectsTotal, m.holdSwapFailures, m.activeConns,
	)
	return m
}

func (m *Metrics) dial() {
	if m != nil {
		m.dialsTotal.Inc()
	}
}

func (m *Metrics) incoming() {
	if m != nil {
		m.incomingTotal.Inc()
	}
}

func (m *Metrics) redial() {
	if m != nil {
		m.redialsTotal.Inc()
	}
}

func (m *Metrics) disconnect(cause string) {
	if m != nil {
		m.disconnectsTotal.WithLabelValues(cause).Inc()
	}
}

func (m *Metrics) holdSwapFailure() {
	if m != nil {
		m.holdSwapFailures.Inc()
	}
}

func (m *Metrics) setActive(n int) {
	if m != nil {
		m.activeConns.Set(float64(n))
	}
}
