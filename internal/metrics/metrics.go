// Package metrics declares the Prometheus collectors shared by the checkout flows.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_http_requests_total",
		Help: "HTTP requests served, by method, route and status.",
	}, []string{"method", "route", "status"})

	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "checkout_http_request_duration_seconds",
		Help:    "HTTP request latency by route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	GatewayRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_gateway_requests_total",
		Help: "Outbound payments gateway calls, by operation and outcome.",
	}, []string{"operation", "outcome"})

	CheckoutSessions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_sessions_total",
		Help: "Checkout session attempts, by flow and outcome.",
	}, []string{"flow", "outcome"})

	PriceResolutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_price_resolutions_total",
		Help: "Price resolver calls, by outcome (cache_hit, lookup, error).",
	}, []string{"outcome"})
)
