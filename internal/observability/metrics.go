package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coopleo_http_requests_total",
		Help: "HTTP requests by route, method and status code.",
	}, []string{"route", "method", "status"})

	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "coopleo_http_request_duration_seconds",
		Help:    "HTTP request latency by route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})

	ModelCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coopleo_model_calls_total",
		Help: "Model completions by stage and outcome.",
	}, []string{"stage", "outcome"})

	ModelAttemptFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coopleo_model_attempt_failures_total",
		Help: "Failed model attempts, including ones that were retried.",
	}, []string{"stage"})

	SessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "coopleo_sessions_active",
		Help: "Sessions currently held by the session repository.",
	})

	SessionsEvicted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coopleo_sessions_evicted_total",
		Help: "Sessions removed by the repository, by reason.",
	}, []string{"reason"})
)
