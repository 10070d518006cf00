package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/campus-routine-api/internal/models"
	"github.com/noah-isme/campus-routine-api/internal/routine"
)

// Generator run kinds used as metric labels.
const (
	RunKindSingle   = "single"
	RunKindBatch    = "batch"
	RunKindRefactor = "refactor"
)

// MetricsService encapsulates Prometheus instrumentation and provides lightweight snapshots for API consumption.
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
	runDuration     *prometheus.HistogramVec
	unitsPlaced     *prometheus.CounterVec
	unitsUnplaced   *prometheus.CounterVec
	refactorChanges prometheus.Counter
	batchJobs       *prometheus.CounterVec

	cacheHitCount        uint64
	cacheMissCount       uint64
	requestCount         uint64
	requestDurationTotal uint64
	runCount             uint64
	placedCount          uint64
	unplacedCount        uint64
}

// NewMetricsService registers HTTP, cache and generator collectors.
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

	runDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "routine_generator_run_seconds",
		Help:    "Duration of generator runs",
		Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 5},
	}, []string{"kind"})

	unitsPlaced := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "routine_units_placed_total",
		Help: "Units placed by the generator",
	}, []string{"type"})

	unitsUnplaced := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "routine_units_unplaced_total",
		Help: "Units the generator could not place",
	}, []string{"type", "reason"})

	refactorChanges := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "routine_refactor_changes_total",
		Help: "Repairs applied by refactor runs",
	})

	batchJobs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "routine_batch_jobs_total",
		Help: "Asynchronous batch jobs by final status",
	}, []string{"status"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheWrite, cacheHitRatio, cacheHits, cacheMisses,
		runDuration, unitsPlaced, unitsUnplaced, refactorChanges, batchJobs, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		cacheLatency:    cacheLatency,
		cacheWrite:      cacheWrite,
		cacheHitRatio:   cacheHitRatio,
		cacheHits:       cacheHits,
		cacheMisses:     cacheMisses,
		runDuration:     runDuration,
		unitsPlaced:     unitsPlaced,
		unitsUnplaced:   unitsUnplaced,
		refactorChanges: refactorChanges,
		batchJobs:       batchJobs,
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

// Registry returns the underlying registry.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveHTTPRequest records request metrics and aggregates simple stats for snapshots.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
	atomic.AddUint64(&m.requestCount, 1)
	atomic.AddUint64(&m.requestDurationTotal, uint64(duration.Nanoseconds()))
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

// ObserveGeneratorRun records the outcome of one generator run.
func (m *MetricsService) ObserveGeneratorRun(kind string, stats routine.Stats, unplaced []routine.UnplacedItem, duration time.Duration) {
	if m == nil {
		return
	}
	m.runDuration.WithLabelValues(kind).Observe(duration.Seconds())
	if stats.PlacedLabs > 0 {
		m.unitsPlaced.WithLabelValues(string(routine.Lab)).Add(float64(stats.PlacedLabs))
	}
	if stats.PlacedTheory > 0 {
		m.unitsPlaced.WithLabelValues(string(routine.Theory)).Add(float64(stats.PlacedTheory))
	}
	for _, item := range unplaced {
		m.unitsUnplaced.WithLabelValues(string(item.Type), item.Reason).Inc()
	}
	atomic.AddUint64(&m.runCount, 1)
	atomic.AddUint64(&m.placedCount, uint64(stats.PlacedLabs+stats.PlacedTheory))
	atomic.AddUint64(&m.unplacedCount, uint64(len(unplaced)))
}

// ObserveRefactor records a repair run.
func (m *MetricsService) ObserveRefactor(changes int, duration time.Duration) {
	if m == nil {
		return
	}
	m.runDuration.WithLabelValues(RunKindRefactor).Observe(duration.Seconds())
	m.refactorChanges.Add(float64(changes))
	atomic.AddUint64(&m.runCount, 1)
}

// RecordBatchJob counts a finished asynchronous batch job.
func (m *MetricsService) RecordBatchJob(status string) {
	if m == nil {
		return
	}
	m.batchJobs.WithLabelValues(status).Inc()
}

// Snapshot returns aggregated metrics.
func (m *MetricsService) Snapshot() models.SystemMetrics {
	if m == nil {
		return models.SystemMetrics{}
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	requests := atomic.LoadUint64(&m.requestCount)
	reqDuration := atomic.LoadUint64(&m.requestDurationTotal)

	var cacheRatio float64
	if hits+misses > 0 {
		cacheRatio = float64(hits) / float64(hits+misses)
	}
	var avgRequestMs float64
	if requests > 0 {
		avgRequestMs = float64(reqDuration) / float64(requests) / float64(time.Millisecond)
	}

	return models.SystemMetrics{
		CacheHitRatio:            cacheRatio,
		CacheHits:                hits,
		CacheMisses:              misses,
		RequestsTotal:            requests,
		AverageRequestDurationMs: avgRequestMs,
		GeneratorRuns:            atomic.LoadUint64(&m.runCount),
		UnitsPlaced:              atomic.LoadUint64(&m.placedCount),
		UnitsUnplaced:            atomic.LoadUint64(&m.unplacedCount),
		Goroutines:               runtime.NumGoroutine(),
		GeneratedAt:              time.Now().UTC(),
	}
}
