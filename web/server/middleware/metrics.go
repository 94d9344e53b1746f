package middleware

import (
	"net/http"
	"strconv"

	"github.com/felixge/httpsnoop"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics records the number and duration of requests, partitioned by method
// and response code. The metrics are registered with reg.
func Metrics(reg prometheus.Registerer, namespace string) Middleware {
	if reg == nil {
		reg = prometheus.NewRegistry() // discard metrics
	}
	f := promauto.With(reg)

	requests := f.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Number of HTTP requests served.",
	}, []string{"method", "code"})
	duration := f.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "Duration of HTTP requests.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method"})

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			m := httpsnoop.CaptureMetrics(next, w, r)
			requests.WithLabelValues(r.Method, strconv.Itoa(m.Code)).Inc()
			duration.WithLabelValues(r.Method).Observe(m.Duration.Seconds())
		})
	}
}
