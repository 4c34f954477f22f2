package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"network-monitor/internal/domain"
)

const namespace = "network_monitor"

// Metrics owns the process registry. It implements usecase.Metrics.
type Metrics struct {
	registry         *prometheus.Registry
	ActiveSessions   prometheus.Gauge
	EvictionsTotal   prometheus.Counter
	RequestsTotal    *prometheus.CounterVec
	FieldUpdates     *prometheus.CounterVec
	LateUpdatesTotal prometheus.Counter
	ResetsTotal      prometheus.Counter
	ViewQueriesTotal prometheus.Counter
	ProxyErrorsTotal *prometheus.CounterVec
	RateLimitedTotal prometheus.Counter
}

func NewMetrics() *Metrics {
	r := prometheus.NewRegistry()
	m := &Metrics{
		registry: r,
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Number of active sessions",
		}),
		EvictionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evictions_total",
			Help:      "Total evicted sessions",
		}),
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Requests added to or removed from collections",
		}, []string{"op"}),
		FieldUpdates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "field_updates_total",
			Help:      "Applied request field updates by field",
		}, []string{"field"}),
		LateUpdatesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "late_updates_total",
			Help:      "Updates for requests no longer in their collection",
		}),
		ResetsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resets_total",
			Help:      "Collection resets",
		}),
		ViewQueriesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "view_queries_total",
			Help:      "Filtered view reads",
		}),
		ProxyErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "proxy_errors_total",
			Help:      "Total proxy errors by stage",
		}, []string{"stage"}),
		RateLimitedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Ingest requests rejected by the rate limiter",
		}),
	}
	r.MustRegister(
		m.ActiveSessions, m.EvictionsTotal, m.RequestsTotal, m.FieldUpdates,
		m.LateUpdatesTotal, m.ResetsTotal, m.ViewQueriesTotal, m.ProxyErrorsTotal, m.RateLimitedTotal,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) SessionsActive(n int)  { m.ActiveSessions.Set(float64(n)) }
func (m *Metrics) SessionsEvicted(n int) { m.EvictionsTotal.Add(float64(n)) }
func (m *Metrics) RequestRemoved()       { m.RequestsTotal.WithLabelValues("remove").Inc() }
func (m *Metrics) LateUpdate()           { m.LateUpdatesTotal.Inc() }
func (m *Metrics) SessionReset()         { m.ResetsTotal.Inc() }
func (m *Metrics) FilteredQuery()        { m.ViewQueriesTotal.Inc() }

func (m *Metrics) RequestsAdded(n int) {
	m.RequestsTotal.WithLabelValues("add").Add(float64(n))
}

// FieldUpdated counts a field change; fields outside the record schema share
// the "extra" label.
func (m *Metrics) FieldUpdated(field string) {
	if !domain.IsKnownField(field) {
		field = "extra"
	}
	m.FieldUpdates.WithLabelValues(field).Inc()
}
