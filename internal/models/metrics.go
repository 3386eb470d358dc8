package models

import "time"

// SystemMetrics is a JSON snapshot of the in-process counters.
type SystemMetrics struct {
	CacheHitRatio            float64   `json:"cacheHitRatio"`
	CacheHits                uint64    `json:"cacheHits"`
	CacheMisses              uint64    `json:"cacheMisses"`
	RequestsTotal            uint64    `json:"requestsTotal"`
	AverageRequestDurationMs float64   `json:"averageRequestDurationMs"`
	ReportsGenerated         uint64    `json:"reportsGenerated"`
	AverageReportDurationMs  float64   `json:"averageReportDurationMs"`
	AttendanceRecordsWritten uint64    `json:"attendanceRecordsWritten"`
	AlertsTriggered          uint64    `json:"alertsTriggered"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generatedAt"`
}
