package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HttpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"status", "route"})
	HttpRequestDurationSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	HttpResponseCodesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_response_codes_total",
		Help: "Total number of HTTP response codes",
	}, []string{"code", "route"})
	RateLimitViolationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rate_limit_violations_total",
		Help: "Total number of rate limit violations",
	}, []string{"rule", "window"})
	GatewayCostTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_cost_total",
		Help: "Total cost billed through the gateway",
	}, []string{"endpoint"})
	UsageQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "usage_queue_depth",
		Help: "Number of usage records waiting to be written",
	})
	UsageRecordsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "usage_records_dropped_total",
		Help: "Usage records dropped because the write queue was full",
	})
)
