package obs

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	reportsCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "civic_reports_created_total",
			Help: "Reports submitted, by category.",
		},
		[]string{"category"},
	)

	reportStatusUpdates = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "civic_report_status_updates_total",
			Help: "Report status changes, by target status.",
		},
		[]string{"status"},
	)

	initOnce sync.Once
)

// Init registers the metrics in the default registry.
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(httpInFlight, httpRequestsTotal, httpRequestDuration, reportsCreated, reportStatusUpdates)
	})
}

func Handler() http.Handler {
	return promhttp.Handler()
}

// ReportCreated counts a submitted report.
func ReportCreated(category string) {
	reportsCreated.WithLabelValues(category).Inc()
}

// ReportStatusChanged counts a status update.
func ReportStatusChanged(status string) {
	reportStatusUpdates.WithLabelValues(status).Inc()
}

// CanonicalPath collapses ids in known routes so metric labels stay bounded.
func CanonicalPath(p string) string {
	if i := strings.IndexByte(p, '?'); i >= 0 {
		p = p[:i]
	}
	if p == "" {
		return "/"
	}
	parts := strings.Split(strings.Trim(p, "/"), "/")
	switch {
	case len(parts) == 3 && parts[0] == "v1" && parts[1] == "reports":
		return "/v1/reports/:id"
	case len(parts) == 4 && parts[0] == "v1" && parts[1] == "reports" && parts[3] == "status":
		return "/v1/reports/:id/status"
	case len(parts) == 3 && parts[0] == "v1" && parts[1] == "roles" && parts[2] != "me":
		return "/v1/roles/:user_id"
	case len(parts) >= 2 && parts[0] == "media":
		return "/media/*"
	}
	return p
}

// Instrument records in-flight, count and latency per canonical route.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := CanonicalPath(r.URL.Path)
		method := r.Method

		httpInFlight.Inc()
		defer httpInFlight.Dec()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(sw, r)

		status := strconv.Itoa(sw.code)
		httpRequestDuration.WithLabelValues(method, path, status).Observe(time.Since(start).Seconds())
		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	})
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

// Flush keeps streaming responses working behind the wrapper.
func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("hijack not supported")
	}
	return h.Hijack()
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (w *statusWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }
