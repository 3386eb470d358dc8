package service

import (
	"database/sql"
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/sma-attendance-api/internal/models"
)

// MetricsService wraps the Prometheus registry and keeps cheap counters for JSON snapshots.
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
	reportDuration  prometheus.Histogram
	recordsWritten  *prometheus.CounterVec
	alertsTriggered *prometheus.CounterVec

	cacheHitCount       uint64
	cacheMissCount      uint64
	requestCount        uint64
	requestDurationSum  uint64
	reportCount         uint64
	reportDurationSum   uint64
	recordsWrittenCount uint64
	alertCount          uint64
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

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "report_cache_latency_seconds",
		Help:    "Latency for report cache lookups",
		Buckets: prometheus.DefBuckets,
	})

	cacheWrite := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "report_cache_write_seconds",
		Help:    "Latency for report cache writes",
		Buckets: prometheus.DefBuckets,
	})

	cacheHitRatio := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "report_cache_hit_ratio",
		Help: "Ratio of report cache hits to total lookups",
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "report_cache_hits_total",
		Help: "Total report cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "report_cache_misses_total",
		Help: "Total report cache misses",
	})

	reportDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "report_generation_duration_seconds",
		Help:    "Time spent aggregating attendance reports",
		Buckets: prometheus.DefBuckets,
	})

	recordsWritten := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "attendance_records_written_total",
		Help: "Attendance records written by batch submissions",
	}, []string{"action"})

	alertsTriggered := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "attendance_alerts_triggered_total",
		Help: "Threshold alerts raised during evaluation",
	}, []string{"type", "period"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheWrite, cacheHitRatio, cacheHits, cacheMisses,
		reportDuration, recordsWritten, alertsTriggered, goroutines)

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
		reportDuration:  reportDuration,
		recordsWritten:  recordsWritten,
		alertsTriggered: alertsTriggered,
	}
}

// RegisterDB exports connection pool statistics of db labelled with name.
func (m *MetricsService) RegisterDB(db *sql.DB, name string) error {
	if m == nil || db == nil {
		return nil
	}
	if err := m.registry.Register(collectors.NewDBStatsCollector(db, name)); err != nil {
		return fmt.Errorf("register db stats: %w", err)
	}
	return nil
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
	atomic.AddUint64(&m.requestDurationSum, uint64(duration.Nanoseconds()))
}

// RecordCacheOperation records a cache lookup and refreshes the hit ratio.
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

// ObserveCacheWrite tracks the duration of cache writes.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// ObserveReportGeneration records time spent computing a report on a cache miss.
func (m *MetricsService) ObserveReportGeneration(duration time.Duration) {
	if m == nil {
		return
	}
	m.reportDuration.Observe(duration.Seconds())
	atomic.AddUint64(&m.reportCount, 1)
	atomic.AddUint64(&m.reportDurationSum, uint64(duration.Nanoseconds()))
}

// RecordAttendanceWrites counts created and updated records of a batch.
func (m *MetricsService) RecordAttendanceWrites(created, updated int) {
	if m == nil {
		return
	}
	if created > 0 {
		m.recordsWritten.WithLabelValues("created").Add(float64(created))
	}
	if updated > 0 {
		m.recordsWritten.WithLabelValues("updated").Add(float64(updated))
	}
	atomic.AddUint64(&m.recordsWrittenCount, uint64(created+updated))
}

// RecordAlerts counts triggered alerts by type and period.
func (m *MetricsService) RecordAlerts(alerts []models.TriggeredAlert) {
	if m == nil {
		return
	}
	for _, alert := range alerts {
		m.alertsTriggered.WithLabelValues(string(alert.Type), string(alert.Period)).Inc()
	}
	atomic.AddUint64(&m.alertCount, uint64(len(alerts)))
}

// Snapshot returns aggregated counters for the JSON metrics endpoint.
func (m *MetricsService) Snapshot() models.SystemMetrics {
	if m == nil {
		return models.SystemMetrics{}
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	requests := atomic.LoadUint64(&m.requestCount)
	reports := atomic.LoadUint64(&m.reportCount)

	snapshot := models.SystemMetrics{
		CacheHits:                hits,
		CacheMisses:              misses,
		RequestsTotal:            requests,
		ReportsGenerated:         reports,
		AttendanceRecordsWritten: atomic.LoadUint64(&m.recordsWrittenCount),
		AlertsTriggered:          atomic.LoadUint64(&m.alertCount),
		Goroutines:               runtime.NumGoroutine(),
		GeneratedAt:              time.Now().UTC(),
	}
	if hits+misses > 0 {
		snapshot.CacheHitRatio = float64(hits) / float64(hits+misses)
	}
	if requests > 0 {
		snapshot.AverageRequestDurationMs = float64(atomic.LoadUint64(&m.requestDurationSum)) / float64(requests) / float64(time.Millisecond)
	}
	if reports > 0 {
		snapshot.AverageReportDurationMs = float64(atomic.LoadUint64(&m.reportDurationSum)) / float64(reports) / float64(time.Millisecond)
	}
	return snapshot
}
