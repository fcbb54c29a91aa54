package service

import (
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/student-portal/internal/models"
	"github.com/noah-isme/student-portal/internal/screen"
	"github.com/noah-isme/student-portal/internal/store"
	appErrors "github.com/noah-isme/student-portal/pkg/errors"
)

var (
	_ store.Observer          = (*MetricsService)(nil)
	_ screen.LoadObserver     = (*MetricsService)(nil)
	_ screen.MutationObserver = (*MetricsService)(nil)
	_ PortalObserver          = (*MetricsService)(nil)
)

// MetricsService encapsulates Prometheus instrumentation for the gateway and
// the screen lifecycle, and keeps a few counters for the status endpoint.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	storeDuration   *prometheus.HistogramVec
	screenLoads     *prometheus.CounterVec
	screenDuration  *prometheus.HistogramVec
	mutations       *prometheus.CounterVec
	mutationLatency *prometheus.HistogramVec
	inFlight        prometheus.Gauge
	sessions        prometheus.Gauge

	requestCount       uint64
	loadCount          uint64
	loadFailures       uint64
	mutationCount      uint64
	mutationFailures   uint64
	mutationRejections uint64
	activeSessions     int64
}

// MetricsSnapshot is a JSON summary of the counters.
type MetricsSnapshot struct {
	RequestsTotal      uint64    `json:"requestsTotal"`
	ScreenLoads        uint64    `json:"screenLoads"`
	ScreenLoadFailures uint64    `json:"screenLoadFailures"`
	Mutations          uint64    `json:"mutations"`
	MutationFailures   uint64    `json:"mutationFailures"`
	MutationRejections uint64    `json:"mutationRejections"`
	ActiveSessions     int64     `json:"activeSessions"`
	Goroutines         int       `json:"goroutines"`
	GeneratedAt        time.Time `json:"generatedAt"`
}

// NewMetricsService registers the collectors on a private registry.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	storeDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "portal_store_operation_duration_seconds",
		Help:    "Duration of document store calls",
		Buckets: prometheus.DefBuckets,
	}, []string{"op", "collection", "result"})

	screenLoads := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "portal_screen_loads_total",
		Help: "Screen loads by collection and terminal phase",
	}, []string{"collection", "phase"})

	screenDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "portal_screen_load_duration_seconds",
		Help:    "Time from load request to terminal state",
		Buckets: prometheus.DefBuckets,
	}, []string{"collection"})

	mutations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "portal_mutations_total",
		Help: "Settled mutations by kind and result",
	}, []string{"kind", "result"})

	mutationLatency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "portal_mutation_duration_seconds",
		Help:    "Time from submission to settlement",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind"})

	inFlight := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "portal_mutations_in_flight",
		Help: "Mutations submitted but not settled",
	})

	sessions := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "portal_sessions_active",
		Help: "Open portal sessions",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, storeDuration, screenLoads, screenDuration,
		mutations, mutationLatency, inFlight, sessions, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		storeDuration:   storeDuration,
		screenLoads:     screenLoads,
		screenDuration:  screenDuration,
		mutations:       mutations,
		mutationLatency: mutationLatency,
		inFlight:        inFlight,
		sessions:        sessions,
	}
}

// Registry exposes the underlying registry.
func (m *MetricsService) Registry() *prometheus.Registry {
	return m.registry
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
	atomic.AddUint64(&m.requestCount, 1)
}

// ObserveStoreOp implements store.Observer.
func (m *MetricsService) ObserveStoreOp(op, collection string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	m.storeDuration.WithLabelValues(op, collection, resultLabel(err)).Observe(duration.Seconds())
}

// ScreenLoaded implements screen.LoadObserver.
func (m *MetricsService) ScreenLoaded(collection string, phase screen.Phase, duration time.Duration) {
	if m == nil {
		return
	}
	m.screenLoads.WithLabelValues(collection, string(phase)).Inc()
	m.screenDuration.WithLabelValues(collection).Observe(duration.Seconds())
	atomic.AddUint64(&m.loadCount, 1)
	if phase == screen.PhaseFailed {
		atomic.AddUint64(&m.loadFailures, 1)
	}
}

// MutationSubmitted implements screen.MutationObserver.
func (m *MetricsService) MutationSubmitted(kind models.MutationKind) {
	if m == nil {
		return
	}
	m.inFlight.Inc()
}

// MutationSettled implements screen.MutationObserver.
func (m *MetricsService) MutationSettled(kind models.MutationKind, err error, duration time.Duration) {
	if m == nil {
		return
	}
	m.inFlight.Dec()
	m.mutations.WithLabelValues(string(kind), resultLabel(err)).Inc()
	m.mutationLatency.WithLabelValues(string(kind)).Observe(duration.Seconds())
	atomic.AddUint64(&m.mutationCount, 1)
	if err != nil {
		atomic.AddUint64(&m.mutationFailures, 1)
	}
}

// MutationRejected implements PortalObserver.
func (m *MetricsService) MutationRejected(kind models.MutationKind, err error) {
	if m == nil {
		return
	}
	m.mutations.WithLabelValues(string(kind), resultLabel(err)).Inc()
	atomic.AddUint64(&m.mutationRejections, 1)
}

// SessionsActive implements PortalObserver.
func (m *MetricsService) SessionsActive(n int) {
	if m == nil {
		return
	}
	m.sessions.Set(float64(n))
	atomic.StoreInt64(&m.activeSessions, int64(n))
}

// Snapshot returns the aggregated counters.
func (m *MetricsService) Snapshot() MetricsSnapshot {
	if m == nil {
		return MetricsSnapshot{}
	}
	return MetricsSnapshot{
		RequestsTotal:      atomic.LoadUint64(&m.requestCount),
		ScreenLoads:        atomic.LoadUint64(&m.loadCount),
		ScreenLoadFailures: atomic.LoadUint64(&m.loadFailures),
		Mutations:          atomic.LoadUint64(&m.mutationCount),
		MutationFailures:   atomic.LoadUint64(&m.mutationFailures),
		MutationRejections: atomic.LoadUint64(&m.mutationRejections),
		ActiveSessions:     atomic.LoadInt64(&m.activeSessions),
		Goroutines:         runtime.NumGoroutine(),
		GeneratedAt:        time.Now().UTC(),
	}
}

// resultLabel keeps label cardinality bounded to the error codes.
func resultLabel(err error) string {
	if err == nil {
		return "ok"
	}
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		// report the innermost code so MUTATION_FAILED(TIMEOUT) reads as TIMEOUT
		for {
			var inner *appErrors.Error
			if appErr.Err == nil || !errors.As(appErr.Err, &inner) {
				break
			}
			appErr = inner
		}
		return appErr.Code
	}
	return "error"
}
