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

// MetricsService encapsulates Prometheus instrumentation for HTTP traffic,
// the cache and the class record engines.
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
	dbQueryDuration *prometheus.HistogramVec

	sessionTransitions *prometheus.CounterVec
	overrideWrites     *prometheus.CounterVec
	rescales           *prometheus.CounterVec
	rescaledScores     prometheus.Counter
	scoreWrites        *prometheus.CounterVec

	cacheHitCount  uint64
	cacheMissCount uint64
}

// NewMetricsService registers core Prometheus collectors.
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
		Name:    "cache_latency_seconds",
		Help:    "Latency for cache operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheWrite := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_write_seconds",
		Help:    "Latency for cache set operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheHitRatio := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cache_hit_ratio",
		Help: "Ratio of cache hits to total cache lookups",
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	dbQueryDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "db_query_duration_seconds",
		Help:    "Duration of database queries",
		Buckets: prometheus.DefBuckets,
	}, []string{"query"})

	sessionTransitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "attendance_session_transitions_total",
		Help: "Session state transitions by kind",
	}, []string{"transition"})

	overrideWrites := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "attendance_override_writes_total",
		Help: "Per-key override writes by status and outcome",
	}, []string{"status", "outcome"})

	rescales := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "grade_max_score_updates_total",
		Help: "Max score edits by whether recorded scores were rescaled",
	}, []string{"rescaled"})

	rescaledScores := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "grade_rescaled_scores_total",
		Help: "Recorded scores changed by max score edits",
	})

	scoreWrites := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "grade_score_writes_total",
		Help: "Score writes by operation",
	}, []string{"op"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheWrite, cacheHitRatio, cacheHits, cacheMisses, dbQueryDuration,
		sessionTransitions, overrideWrites, rescales, rescaledScores, scoreWrites, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:           registry,
		handler:            handler,
		requestDuration:    requestDuration,
		requestTotal:       requestTotal,
		cacheLatency:       cacheLatency,
		cacheWrite:         cacheWrite,
		cacheHitRatio:      cacheHitRatio,
		cacheHits:          cacheHits,
		cacheMisses:        cacheMisses,
		dbQueryDuration:    dbQueryDuration,
		sessionTransitions: sessionTransitions,
		overrideWrites:     overrideWrites,
		rescales:           rescales,
		rescaledScores:     rescaledScores,
		scoreWrites:        scoreWrites,
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
	misses := atomic.LoadUint64(&m.cacheMissCount)
	if total := hits + misses; total > 0 {
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

// ObserveDBQuery records database query timing.
func (m *MetricsService) ObserveDBQuery(label string, duration time.Duration) {
	if m == nil {
		return
	}
	m.dbQueryDuration.WithLabelValues(label).Observe(duration.Seconds())
}

// RecordSessionTransition counts cancel / restore / cancel_one / restore_one.
func (m *MetricsService) RecordSessionTransition(transition string) {
	if m == nil {
		return
	}
	m.sessionTransitions.WithLabelValues(transition).Inc()
}

// RecordOverrideWrite counts one per-key override write.
func (m *MetricsService) RecordOverrideWrite(status string, ok bool) {
	if m == nil {
		return
	}
	outcome := "success"
	if !ok {
		outcome = "failure"
	}
	m.overrideWrites.WithLabelValues(status, outcome).Inc()
}

// RecordMaxScoreUpdate counts a max score edit and the scores it changed.
func (m *MetricsService) RecordMaxScoreUpdate(rescaled bool, changed int) {
	if m == nil {
		return
	}
	m.rescales.WithLabelValues(fmt.Sprintf("%t", rescaled)).Inc()
	m.rescaledScores.Add(float64(changed))
}

// RecordScoreWrite counts upsert / delete score writes.
func (m *MetricsService) RecordScoreWrite(op string, n int) {
	if m == nil {
		return
	}
	m.scoreWrites.WithLabelValues(op).Add(float64(n))
}
