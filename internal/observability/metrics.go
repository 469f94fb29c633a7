package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects Prometheus metrics for the API process.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	gateDenied      prometheus.Counter
	gateFailOpen    prometheus.Counter
	pushed          *prometheus.CounterVec
	effectsFailed   *prometheus.CounterVec
}

// NewMetrics initialises the registry and every collector.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "assetdesk_http_requests_total",
		Help: "HTTP requests by route and status.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "assetdesk_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	denied := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "assetdesk_license_gate_denied_total",
		Help: "Requests rejected because no valid license is active.",
	})
	failOpen := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "assetdesk_license_gate_fail_open_total",
		Help: "Requests let through because the license store was unreachable.",
	})
	pushed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "assetdesk_notifications_pushed_total",
		Help: "Live notification pushes by result.",
	}, []string{"result"})
	effects := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "assetdesk_effects_failed_total",
		Help: "Best-effort side effects that returned an error, by task.",
	}, []string{"task"})
	registry.MustRegister(requests, duration, denied, failOpen, pushed, effects,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		gateDenied:      denied,
		gateFailOpen:    failOpen,
		pushed:          pushed,
		effectsFailed:   effects,
	}
}

// Handler returns the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records metrics for every HTTP request.
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

// Registerer exposes the registry for additional collectors.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

// LicenseDenied counts a request rejected by the license gate.
func (m *Metrics) LicenseDenied() {
	if m != nil {
		m.gateDenied.Inc()
	}
}

// LicenseFailOpen counts a request let through on a store failure.
func (m *Metrics) LicenseFailOpen() {
	if m != nil {
		m.gateFailOpen.Inc()
	}
}

// NotificationPushed counts a live push attempt.
func (m *Metrics) NotificationPushed(result string) {
	if m != nil {
		m.pushed.WithLabelValues(result).Inc()
	}
}

// EffectFailed counts a failed best-effort task.
func (m *Metrics) EffectFailed(task string) {
	if m != nil {
		m.effectsFailed.WithLabelValues(task).Inc()
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Flush keeps streaming responses working through the recorder.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
