package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// HTTPInstrumentation groups the collectors used by the HTTP middleware chain.
type HTTPInstrumentation struct {
	CounterRequests           *prometheus.CounterVec
	HistRequestDuration       *prometheus.HistogramVec
	CounterHandleRequestPanic prometheus.Counter
	CounterRateLimited        *prometheus.CounterVec
}

// NewHTTPInstrumentation creates the collectors and registers them on reg when it is not nil.
func NewHTTPInstrumentation(reg prometheus.Registerer) *HTTPInstrumentation {
	instr := &HTTPInstrumentation{
		CounterRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "progression",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Number of HTTP requests served, labeled by method, route and status.",
		}, []string{"method", "route", "status"}),
		HistRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "progression",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Latency of HTTP requests.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		CounterHandleRequestPanic: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "progression",
			Subsystem: "http",
			Name:      "handler_panics_total",
			Help:      "Number of recovered handler panics.",
		}),
		CounterRateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "progression",
			Subsystem: "http",
			Name:      "rate_limited_total",
			Help:      "Number of requests rejected by the rate limiter, labeled by limiter.",
		}, []string{"limiter"}),
	}

	if reg != nil {
		reg.MustRegister(
			instr.CounterRequests,
			instr.HistRequestDuration,
			instr.CounterHandleRequestPanic,
			instr.CounterRateLimited,
		)
	}
	return instr
}
