package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mentor_payments_http_requests_total",
		Help: "HTTP requests by method, route and status.",
	}, []string{"method", "route", "status"})

	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mentor_payments_http_request_duration_seconds",
		Help:    "HTTP request latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	GatewayCalls = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mentor_payments_gateway_call_duration_seconds",
		Help:    "Payment gateway call latency by gateway, operation and result.",
		Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
	}, []string{"gateway", "operation", "result"})

	PaymentTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mentor_payments_payment_transitions_total",
		Help: "Applied ledger status transitions.",
	}, []string{"gateway", "from", "to"})

	Refunds = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mentor_payments_refunds_total",
		Help: "Refund attempts by gateway and outcome.",
	}, []string{"gateway", "outcome"})

	Webhooks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mentor_payments_webhooks_total",
		Help: "Webhook deliveries by gateway and outcome.",
	}, []string{"gateway", "outcome"})
)
