// Package metrics exposes the Prometheus instrumentation shared across the
// service. Handlers, adapters and the cache all write here; the HTTP server
// serves the registry at /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	UpstreamRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "upstream_requests_total", Help: "Requests issued to source APIs"},
		[]string{"source", "outcome"},
	)
	CacheOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "cache_ops_total", Help: "Cache operations by result"},
		[]string{"op", "outcome"},
	)
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "HTTP requests served"},
		[]string{"route", "code"},
	)
	WSSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "ws_sessions", Help: "Connected WebSocket sessions"},
	)
	WSUpdatesSent = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "ws_updates_sent_total", Help: "market_update frames delivered"},
	)
)

func init() {
	prometheus.MustRegister(UpstreamRequests, CacheOps, HTTPRequests, WSSessions, WSUpdatesSent)
}

// Handler returns the scrape endpoint handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
