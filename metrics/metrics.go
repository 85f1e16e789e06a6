// Package metrics defines the gateway's Prometheus collectors.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Route outcomes.
const (
	OutcomeForwarded    = "forwarded"
	OutcomeMiss         = "miss"
	OutcomeTunnel       = "tunnel"
	OutcomeBadConnect   = "bad_connect"
	OutcomeBackendError = "backend_error"
)

// Metrics groups the collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry          *prometheus.Registry
	activeConnections prometheus.Gauge
	connectionsTotal  prometheus.Counter
	requestsTotal     *prometheus.CounterVec
	requestDuration   *prometheus.HistogramVec
	tunnelBytes       *prometheus.CounterVec
}

// New creates the collectors on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		activeConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "yoroi_connections_active",
			Help: "Number of client connections currently being served",
		}),
		connectionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "yoroi_connections_total",
			Help: "Total number of accepted client connections",
		}),
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "yoroi_requests_total",
			Help: "Total number of routed requests by outcome",
		}, []string{"outcome"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "yoroi_request_duration_seconds",
			Help:    "Request handling duration in seconds by outcome",
			Buckets: prometheus.DefBuckets,
		}, []string{"outcome"}),
		tunnelBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "yoroi_tunnel_bytes_total",
			Help: "Bytes relayed through CONNECT tunnels",
		}, []string{"direction"}),
	}
	m.registry.MustRegister(
		m.activeConnections,
		m.connectionsTotal,
		m.requestsTotal,
		m.requestDuration,
		m.tunnelBytes,
		prometheus.NewGoCollector(),
	)
	return m
}

// WatchRegistrySize exports the number of registered services, read at scrape time.
func (m *Metrics) WatchRegistrySize(size func() int) {
	if m == nil {
		return
	}
	m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "yoroi_registry_services",
		Help: "Number of services in the registry",
	}, func() float64 { return float64(size()) }))
}

// ConnOpened records an accepted connection.
func (m *Metrics) ConnOpened() {
	if m == nil {
		return
	}
	m.connectionsTotal.Inc()
	m.activeConnections.Inc()
}

// ConnClosed records the end of a connection.
func (m *Metrics) ConnClosed() {
	if m == nil {
		return
	}
	m.activeConnections.Dec()
}

// Request records one routed request.
func (m *Metrics) Request(outcome string, took time.Duration) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(outcome).Inc()
	m.requestDuration.WithLabelValues(outcome).Observe(took.Seconds())
}

// Tunnel records bytes moved by a finished tunnel.
func (m *Metrics) Tunnel(up, down int64) {
	if m == nil {
		return
	}
	m.tunnelBytes.WithLabelValues("up").Add(float64(up))
	m.tunnelBytes.WithLabelValues("down").Add(float64(down))
}

// Gatherer exposes the underlying registry.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}

// Handler serves the metrics in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
