package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"galemind/internal/protocol"
)

// Inference handlers hold the request open until its batch executes, so
// latencies run far past typical HTTP traffic; the histogram needs buckets
// out to a minute.
var inferenceDurationBuckets = []float64{
	0.005, 0.02, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60,
}

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "galemind",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route, status code and inference dialect",
		},
		[]string{"route", "method", "code", "protocol"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "galemind",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Wall time from receipt to response, including queue and batch wait",
			Buckets:   inferenceDurationBuckets,
		},
		[]string{"route", "method"},
	)

	httpInflight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "galemind",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Requests currently held open",
		},
	)

	backpressureTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "galemind",
			Subsystem: "http",
			Name:      "backpressure_total",
			Help:      "Admissions rejected with 429, by cause",
		},
		[]string{"reason"},
	)
)

func init() {
	prometheus.MustRegister(httpRequestsTotal, httpRequestDuration, httpInflight, backpressureTotal)
}

// statusRecorder captures the status code written by the handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

// MetricsMiddleware instruments every request. The route label is resolved
// after the handler runs so it carries the matched chi pattern rather than
// the raw path, keeping label cardinality bounded.
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httpInflight.Inc()
		defer httpInflight.Dec()

		sr := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(sr, r)

		route := routePatternOrPath(r)
		httpRequestsTotal.WithLabelValues(route, r.Method, strconv.Itoa(sr.status), protocolLabel(r)).Inc()
		httpRequestDuration.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}

// routePatternOrPath prefers the matched chi pattern and falls back to the
// URL path for requests that never reached the router.
func routePatternOrPath(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if p := rc.RoutePattern(); p != "" {
			return p
		}
	}
	return r.URL.Path
}

// protocolLabel folds every unrecognized header value into one label so a
// client cannot inflate the series set.
func protocolLabel(r *http.Request) string {
	p, err := protocol.ParseProtocol(r.Header.Get(protocol.ProtocolHeader))
	if err != nil {
		return "invalid"
	}
	return string(p)
}

// IncrementBackpressure records one 429 rejection.
func IncrementBackpressure(reason string) {
	if reason == "" {
		reason = "unspecified"
	}
	backpressureTotal.WithLabelValues(reason).Inc()
}
