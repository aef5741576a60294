package postAuth

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// metrics wraps the engine's private Prometheus registry. A nil *metrics
// records nothing.
type metrics struct {
	registry  *prometheus.Registry
	namespace string
	events   *prometheus.CounterVec
	sms      *prometheus.CounterVec
}

func newMetrics(cfg MetricsConfig) *metrics {
	if !cfg.Enabled {
		return nil
	}

	m := &metrics{
		registry:  prometheus.NewRegistry(),
		namespace: cfg.Namespace,
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "auth_events_total",
			Help:      "Authentication events by type.",
		}, []string{"event"}),
		sms: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "sms_dispatch_total",
			Help:      "SMS delivery outcomes.",
		}, []string{"result"}),
	}
	m.registry.MustRegister(m.events, m.sms)
	return m
}

func (m *metrics) event(name string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(name).Inc()
}

func (m *metrics) smsResult(result string) {
	if m == nil {
		return
	}
	m.sms.WithLabelValues(result).Inc()
}

// countAuditDrops exposes the audit dispatcher's drop counter.
func (m *metrics) countAuditDrops(dropped func() uint64) {
	if m == nil {
		return
	}
	m.registry.MustRegister(prometheus.NewCounterFunc(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "audit_dropped_total",
		Help:      "Audit events discarded because the buffer was full.",
	}, func() float64 { return float64(dropped()) }))
}

func (m *metrics) handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
