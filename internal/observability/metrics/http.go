package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	uploadsTotal         *prometheus.CounterVec
	categorizationTotal  *prometheus.CounterVec
	categorizationBatch  *prometheus.HistogramVec
	packagesTotal        *prometheus.CounterVec
	packageItemsLinked   *prometheus.CounterVec
	packageItemsUnlinked *prometheus.CounterVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bip",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "bip",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "bip",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	uploadsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bip",
			Subsystem: "ingest",
			Name:      "uploads_total",
			Help:      "Total uploaded bid documents by declared type.",
		},
		[]string{"service", "document_type"},
	)
	categorizationTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bip",
			Subsystem: "categorizer",
			Name:      "items_total",
			Help:      "Total categorized line items by pass outcome.",
		},
		[]string{"service", "outcome"},
	)
	categorizationBatch := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "bip",
			Subsystem: "categorizer",
			Name:      "batch_remaining",
			Help:      "Items remaining after a categorization batch.",
			Buckets:   []float64{0, 1, 5, 10, 25, 50, 100, 250, 500},
		},
		[]string{"service"},
	)
	packagesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bip",
			Subsystem: "grouper",
			Name:      "packages_total",
			Help:      "Total generated work packages by strategy.",
		},
		[]string{"service", "strategy"},
	)
	packageItemsLinked := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bip",
			Subsystem: "grouper",
			Name:      "items_linked_total",
			Help:      "Total line items linked into work packages.",
		},
		[]string{"service"},
	)
	packageItemsUnlinked := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bip",
			Subsystem: "grouper",
			Name:      "items_failed_total",
			Help:      "Total line items that failed to link.",
		},
		[]string{"service"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		uploadsTotal,
		categorizationTotal,
		categorizationBatch,
		packagesTotal,
		packageItemsLinked,
		packageItemsUnlinked,
	)

	return &HTTPServerMetrics{
		registry:             registry,
		requestTotal:         requestTotal,
		requestDuration:      requestDuration,
		requestInFlight:      requestInFlight,
		uploadsTotal:         uploadsTotal,
		categorizationTotal:  categorizationTotal,
		categorizationBatch:  categorizationBatch,
		packagesTotal:        packagesTotal,
		packageItemsLinked:   packageItemsLinked,
		packageItemsUnlinked: packageItemsUnlinked,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := normalizePath(r.URL.Path)
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			service,
			r.Method,
			path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

func normalizePath(path string) string {
	switch {
	case strings.HasPrefix(path, "/v1/documents/"):
		return "/v1/documents/{document_id}"
	case strings.HasPrefix(path, "/v1/projects/"):
		return "/v1/projects/{project_id}"
	default:
		return path
	}
}

func (m *HTTPServerMetrics) RecordUpload(service, documentType string) {
	m.uploadsTotal.WithLabelValues(service, documentType).Inc()
}

func (m *HTTPServerMetrics) RecordCategorization(service string, direct, ai, failed, remaining int) {
	if direct > 0 {
		m.categorizationTotal.WithLabelValues(service, "direct").Add(float64(direct))
	}
	if ai > 0 {
		m.categorizationTotal.WithLabelValues(service, "ai").Add(float64(ai))
	}
	if failed > 0 {
		m.categorizationTotal.WithLabelValues(service, "failed").Add(float64(failed))
	}
	m.categorizationBatch.WithLabelValues(service).Observe(float64(remaining))
}

func (m *HTTPServerMetrics) RecordPackageGeneration(service, strategy string, packages, linked, failed int) {
	if strategy == "" {
		strategy = "unknown"
	}
	m.packagesTotal.WithLabelValues(service, strategy).Add(float64(packages))
	if linked > 0 {
		m.packageItemsLinked.WithLabelValues(service).Add(float64(linked))
	}
	if failed > 0 {
		m.packageItemsUnlinked.WithLabelValues(service).Add(float64(failed))
	}
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Flush() {
	flusher, ok := w.ResponseWriter.(http.Flusher)
	if ok {
		flusher.Flush()
	}
}

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}

func (w *statusRecorder) Push(target string, opts *http.PushOptions) error {
	pusher, ok := w.ResponseWriter.(http.Pusher)
	if !ok {
		return http.ErrNotSupported
	}
	return pusher.Push(target, opts)
}
