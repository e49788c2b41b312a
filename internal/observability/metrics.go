// Package observability collects Prometheus metrics for the API and the
// background workers.
package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the registry and the application's instruments.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	documentsPosted *prometheus.CounterVec
	journalsTotal   *prometheus.CounterVec
	jobsTotal       *prometheus.CounterVec
}

// NewMetrics initialises the registry and the base instruments.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "daftar_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "daftar_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	documentsPosted := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "daftar_documents_posted_total",
		Help: "Receipts and payments compiled into journals.",
	}, []string{"kind"})
	journals := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "daftar_journals_total",
		Help: "Journal lifecycle events by action.",
	}, []string{"action"})
	jobs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "daftar_jobs_total",
		Help: "Background job runs by task and outcome.",
	}, []string{"task", "outcome"})
	registry.MustRegister(requests, duration, documentsPosted, journals, jobs)
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		documentsPosted: documentsPosted,
		journalsTotal:   journals,
		jobsTotal:       jobs,
	}
}

// Handler returns the http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records request metrics for every HTTP request.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// DocumentPosted counts one compiled document.
func (m *Metrics) DocumentPosted(kind string) {
	if m == nil {
		return
	}
	m.documentsPosted.WithLabelValues(kind).Inc()
}

// JournalEvent counts one journal lifecycle action.
func (m *Metrics) JournalEvent(action string) {
	if m == nil {
		return
	}
	m.journalsTotal.WithLabelValues(action).Inc()
}

// JobRun counts one background job run.
func (m *Metrics) JobRun(task, outcome string) {
	if m == nil {
		return
	}
	m.jobsTotal.WithLabelValues(task, outcome).Inc()
}

// Registerer exposes the registry for custom instruments.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
