package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for HTTP traffic, the GPA cache
// and registration workflow outcomes.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Observer
	cacheWrite      prometheus.Observer
	cacheHitRatio   prometheus.Gauge
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter

	registrationRequests  *prometheus.CounterVec
	registrationDecisions *prometheus.CounterVec
	eligibilityDenials    *prometheus.CounterVec
	gradesPosted          prometheus.Counter

	cacheHitCount  uint64
	cacheMissCount uint64
}

// NewMetricsService registers collectors on a private registry.
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

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "gpa_cache_latency_seconds",
		Help:    "Latency for GPA cache lookups",
		Buckets: prometheus.DefBuckets,
	})

	cacheWrite := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "gpa_cache_write_seconds",
		Help:    "Latency for GPA cache writes",
		Buckets: prometheus.DefBuckets,
	})

	cacheHitRatio := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "gpa_cache_hit_ratio",
		Help: "Ratio of GPA cache hits to total lookups",
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "gpa_cache_hits_total",
		Help: "Total GPA cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "gpa_cache_misses_total",
		Help: "Total GPA cache misses",
	})

	registrationRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "registration_requests_created_total",
		Help: "Registration requests filed, by request type",
	}, []string{"type"})

	registrationDecisions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "registration_decisions_total",
		Help: "Advisor decisions on registration requests",
	}, []string{"type", "status"})

	eligibilityDenials := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "registration_eligibility_denials_total",
		Help: "Enrollment attempts denied, by reason",
	}, []string{"reason"})

	gradesPosted := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "registration_grades_posted_total",
		Help: "Final grades written to enrollments",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheWrite, cacheHitRatio, cacheHits, cacheMisses,
		registrationRequests, registrationDecisions, eligibilityDenials, gradesPosted, goroutines)

	return &MetricsService{
		registry:              registry,
		handler:               promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration:       requestDuration,
		requestTotal:          requestTotal,
		cacheLatency:          cacheLatency,
		cacheWrite:            cacheWrite,
		cacheHitRatio:         cacheHitRatio,
		cacheHits:             cacheHits,
		cacheMisses:           cacheMisses,
		registrationRequests:  registrationRequests,
		registrationDecisions: registrationDecisions,
		eligibilityDenials:    eligibilityDenials,
		gradesPosted:          gradesPosted,
	}
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

// Registry exposes the underlying registry, mainly for tests.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordCacheOperation records cache hit/miss metrics and updates hit ratio.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheHits.Inc()
		atomic.AddUint64(&m.cacheHitCount, 1)
	} else {
		m.cacheMisses.Inc()
		atomic.AddUint64(&m.cacheMissCount, 1)
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	total := hits + atomic.LoadUint64(&m.cacheMissCount)
	if total > 0 {
		m.cacheHitRatio.Set(float64(hits) / float64(total))
	}
}

// ObserveCacheWrite tracks the duration for cache write operations.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// RecordRegistrationRequest counts a newly filed request.
func (m *MetricsService) RecordRegistrationRequest(requestType string) {
	if m == nil {
		return
	}
	m.registrationRequests.WithLabelValues(requestType).Inc()
}

// RecordRegistrationDecision counts an approve or reject.
func (m *MetricsService) RecordRegistrationDecision(requestType, status string) {
	if m == nil {
		return
	}
	m.registrationDecisions.WithLabelValues(requestType, status).Inc()
}

// RecordEligibilityDenial counts a denied enrollment attempt.
func (m *MetricsService) RecordEligibilityDenial(reason string) {
	if m == nil {
		return
	}
	m.eligibilityDenials.WithLabelValues(reason).Inc()
}

// RecordGradePosted counts a final grade write.
func (m *MetricsService) RecordGradePosted() {
	if m == nil {
		return
	}
	m.gradesPosted.Inc()
}
