package metrics

import (
	"bufio"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles prometheus collectors used by devserve.
type Metrics struct {
	RequestsTotal      *prometheus.CounterVec
	RequestDurationSec *prometheus.HistogramVec
	ReloadBroadcasts   prometheus.Counter
	ReloadClients      prometheus.Gauge
	WatchErrors        prometheus.Counter
}

func New(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "devserve_requests_total",
			Help: "Total number of HTTP requests handled.",
		}, []string{"route", "method", "status"}),
		RequestDurationSec: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "devserve_request_duration_seconds",
			Help:    "Request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method", "status"}),
		ReloadBroadcasts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "devserve_reload_broadcasts_total",
			Help: "Total number of live-reload events broadcast to clients.",
		}),
		ReloadClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "devserve_reload_clients",
			Help: "Number of connected live-reload websocket clients.",
		}),
		WatchErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "devserve_watch_errors_total",
			Help: "Total number of file watcher errors.",
		}),
	}

	registry.MustRegister(
		m.RequestsTotal,
		m.RequestDurationSec,
		m.ReloadBroadcasts,
		m.ReloadClients,
		m.WatchErrors,
	)

	return m
}

func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		startedAt := time.Now()
		wrapped := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		status := strconv.Itoa(wrapped.statusCode)
		route := normalizeRoute(r.URL.Path)
		m.RequestsTotal.WithLabelValues(route, r.Method, status).Inc()
		m.RequestDurationSec.WithLabelValues(route, r.Method, status).Observe(time.Since(startedAt).Seconds())
	})
}

// normalizeRoute keeps label cardinality flat: every user file collapses to
// one "static" route, server-owned endpoints keep their own.
func normalizeRoute(path string) string {
	if path == "/_devserve" || strings.HasPrefix(path, "/_devserve/") {
		return path
	}
	return "static"
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (rw *statusRecorder) WriteHeader(statusCode int) {
	rw.statusCode = statusCode
	rw.ResponseWriter.WriteHeader(statusCode)
}

// Hijack passes websocket upgrades through wrapped ResponseWriter.
func (rw *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, http.ErrNotSupported
	}
	return hijacker.Hijack()
}

// Flush keeps streaming behavior for handlers that require it.
func (rw *statusRecorder) Flush() {
	if flusher, ok := rw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}
