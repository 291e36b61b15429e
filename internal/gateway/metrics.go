package gateway

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// metrics holds the gateway's Prometheus collectors on a private registry.
type metrics struct {
	registry        *prometheus.Registry
	sessionsCreated *prometheus.CounterVec
	upstreamErrors  *prometheus.CounterVec
	tokensIssued    prometheus.Counter
	httpRequests    *prometheus.CounterVec
}

func newMetrics() *metrics {
	m := &metrics{
		registry: prometheus.NewRegistry(),
		sessionsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "convergs_sessions_created_total",
			Help: "Sessions handed out, by origin (backend or fallback).",
		}, []string{"result"}),
		upstreamErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "convergs_upstream_errors_total",
			Help: "Backend calls that failed, by operation.",
		}, []string{"op"}),
		tokensIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "convergs_tokens_issued_total",
			Help: "Room join tokens minted.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "convergs_http_requests_total",
			Help: "HTTP requests served, by method and status code.",
		}, []string{"method", "status"}),
	}
	m.registry.MustRegister(m.sessionsCreated, m.upstreamErrors, m.tokensIssued, m.httpRequests)
	return m
}

func (m *metrics) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
