package models

import "time"

// ReportPeriod names a relative date window.
type ReportPeriod string

const (
	PeriodToday     ReportPeriod = "today"
	PeriodYesterday ReportPeriod = "yesterday"
	PeriodThisWeek  ReportPeriod = "this_week"
	PeriodLastWeek  ReportPeriod = "last_week"
	PeriodThisMonth ReportPeriod = "this_month"
	PeriodLastMonth ReportPeriod = "last_month"
)

// Valid reports whether the period is known.
func (p ReportPeriod) Valid() bool {
	switch p {
	case PeriodToday, PeriodYesterday, PeriodThisWeek, PeriodLastWeek, PeriodThisMonth, PeriodLastMonth:
		return true
	default:
		return false
	}
}

// DateRange is an inclusive pair of calendar dates.
type DateRange struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// ReportFilter narrows the records a report covers. Zero values impose no restriction.
// Date selection precedence: Date, then DateRange, then Period, then LastDays.
type ReportFilter struct {
	StudentIDs         []string           `json:"studentIds,omitempty"`
	ClassID            string             `json:"classId,omitempty"`
	StudentName        string             `json:"studentName,omitempty"`
	Date               string             `json:"date,omitempty"`
	DateRange          *DateRange         `json:"dateRange,omitempty"`
	Period             ReportPeriod       `json:"period,omitempty"`
	LastDays           int                `json:"lastDays,omitempty"`
	Statuses           []AttendanceStatus `json:"statuses,omitempty"`
	OnlyLate           bool               `json:"onlyLate,omitempty"`
	OnlyEarlyDismissal bool               `json:"onlyEarlyDismissal,omitempty"`
	IncludeExcused     *bool              `json:"includeExcused,omitempty"`
}

// ReportPage selects a page of student rows.
type ReportPage struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

// Sortable student row fields.
const (
	ReportSortName   = "name"
	ReportSortDate   = "date"
	ReportSortStatus = "status"
	ReportSortGrade  = "grade"
)

// ReportSort orders student rows.
type ReportSort struct {
	Field string `json:"field"`
	Order string `json:"order"`
}

// Trend classifies how a student's attendance is moving.
type Trend string

const (
	TrendImproving Trend = "improving"
	TrendDeclining Trend = "declining"
	TrendStable    Trend = "stable"
)

// StudentReport holds per-student statistics.
type StudentReport struct {
	StudentID            string  `json:"studentId"`
	StudentName          string  `json:"studentName"`
	FirstName            string  `json:"firstName"`
	LastName             string  `json:"lastName"`
	Grade                *string `json:"grade,omitempty"`
	TotalDays            int     `json:"totalDays"`
	PresentDays          int     `json:"presentDays"`
	LateDays             int     `json:"lateDays"`
	AbsentDays           int     `json:"absentDays"`
	ExcusedDays          int     `json:"excusedDays"`
	EarlyDismissals      int     `json:"earlyDismissals"`
	AttendanceRate       int     `json:"attendanceRate"`
	LateRate             int     `json:"lateRate"`
	LongestPresentStreak int     `json:"longestPresentStreak"`
	CurrentAbsenceStreak int     `json:"currentAbsenceStreak"`
	LastAttendanceDate   *string `json:"lastAttendanceDate,omitempty"`
	Trend                Trend   `json:"trend"`
}

// DateReport holds per-date statistics.
type DateReport struct {
	Date            string `json:"date"`
	TotalRecords    int    `json:"totalRecords"`
	PresentCount    int    `json:"presentCount"`
	LateCount       int    `json:"lateCount"`
	AbsentCount     int    `json:"absentCount"`
	ExcusedCount    int    `json:"excusedCount"`
	AttendanceRate  int    `json:"attendanceRate"`
	LateRate        int    `json:"lateRate"`
	ScheduledDayOff bool   `json:"scheduledDayOff"`
}

// DateSpan describes the calendar extent of the filtered records.
type DateSpan struct {
	Start string `json:"start,omitempty"`
	End   string `json:"end,omitempty"`
	Days  int    `json:"days"`
}

// ReportSummary aggregates the whole filtered set.
type ReportSummary struct {
	TotalStudents     int      `json:"totalStudents"`
	TotalRecords      int      `json:"totalRecords"`
	DateSpan          DateSpan `json:"dateSpan"`
	AttendanceRate    int      `json:"attendanceRate"`
	LateRate          int      `json:"lateRate"`
	AbsenceRate       int      `json:"absenceRate"`
	ExcusedRate       int      `json:"excusedRate"`
	RiskStudents      int      `json:"riskStudents"`
	PerfectAttendance int      `json:"perfectAttendance"`
}

// Insight severities.
const (
	SeverityHigh   = "high"
	SeverityMedium = "medium"
)

// InsightAlert flags a single at-risk student.
type InsightAlert struct {
	StudentID      string `json:"studentId"`
	StudentName    string `json:"studentName"`
	Severity       string `json:"severity"`
	AttendanceRate int    `json:"attendanceRate"`
	Message        string `json:"message"`
}

// ReportInsights are rule-based observations about a report.
type ReportInsights struct {
	Findings        []string       `json:"findings"`
	Recommendations []string       `json:"recommendations"`
	Alerts          []InsightAlert `json:"alerts"`
}

// PageInfo describes the page of student rows returned.
type PageInfo struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

// ReportMetadata records how a report was produced.
type ReportMetadata struct {
	GeneratedAt      time.Time    `json:"generatedAt"`
	ProcessingTimeMs int64        `json:"processingTimeMs"`
	CacheHit         bool         `json:"cacheHit"`
	CacheKey         string       `json:"cacheKey"`
	Pagination       PageInfo     `json:"pagination"`
	Sort             ReportSort   `json:"sort"`
	Filter           ReportFilter `json:"filter"`
}

// ReportResult is a generated attendance report.
type ReportResult struct {
	Students []StudentReport `json:"students"`
	Dates    []DateReport    `json:"dates"`
	Summary  ReportSummary   `json:"summary"`
	Insights ReportInsights  `json:"insights"`
	Metadata ReportMetadata  `json:"metadata"`
}
