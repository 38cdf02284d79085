package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
)

// noSet labels requests outside /sets/{set}.
const noSet = "-"

var (
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "structdex",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds, until the last byte of a streamed body",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "route", "set", "status"},
	)

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "structdex",
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "set", "status"},
	)

	httpResponseBytes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "structdex",
			Name:      "http_response_bytes_total",
			Help:      "Response body bytes written, per route and set",
		},
		[]string{"route", "set"},
	)
)

func init() {
	prometheus.MustRegister(httpRequestDuration, httpRequestsTotal, httpResponseBytes)
}

// Middleware records duration, count and response size of every request,
// labelled by chi route pattern and structure set. Sets come from
// configuration or PUT /sets/{set}, which keeps the label bounded.
func Middleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)

			// route params are resolved only after the router ran
			rc := chi.RouteContext(r.Context())
			route, set := routeLabels(rc)
			status := strconv.Itoa(ww.status)

			httpRequestDuration.WithLabelValues(r.Method, route, set, status).Observe(time.Since(start).Seconds())
			httpRequestsTotal.WithLabelValues(r.Method, route, set, status).Inc()
			httpResponseBytes.WithLabelValues(route, set).Add(float64(ww.bytes))
		})
	}
}

func routeLabels(rc *chi.Context) (route, set string) {
	route, set = "unknown", noSet
	if rc == nil {
		return route, set
	}
	if p := rc.RoutePattern(); p != "" {
		route = p
	}
	if s := rc.URLParam("set"); s != "" {
		set = s
	}
	return route, set
}

// statusWriter captures the status code and body size. It forwards Flush so
// streamed query results still reach the client row batch by row batch.
type statusWriter struct {
	http.ResponseWriter
	status      int
	bytes       int
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(status int) {
	if !w.wroteHeader {
		w.status = status
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	w.wroteHeader = true
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err //nolint:wrapcheck // delegating to underlying ResponseWriter
}

func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (w *statusWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }
