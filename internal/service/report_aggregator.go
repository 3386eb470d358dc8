package service

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/noah-isme/sma-attendance-api/internal/models"
)

// Aggregation thresholds.
const (
	trendMinRecords       = 10
	trendDeltaPoints      = 5.0
	riskAttendanceRate    = 80
	highRiskRate          = 60
	overallTargetRate     = 85
	frequentLateRate      = 20
	perfectAttendanceRate = 100
)

// dateWindow is an inclusive calendar window; empty bounds are open.
type dateWindow struct {
	from string
	to   string
}

func (w dateWindow) contains(date string) bool {
	if w.from != "" && date < w.from {
		return false
	}
	if w.to != "" && date > w.to {
		return false
	}
	return true
}

// ResolvePeriod returns the inclusive window of a named period relative to now. Weeks start on Monday.
func ResolvePeriod(period models.ReportPeriod, now time.Time) (time.Time, time.Time, bool) {
	today := startOfDay(now)
	switch period {
	case models.PeriodToday:
		return today, today, true
	case models.PeriodYesterday:
		y := today.AddDate(0, 0, -1)
		return y, y, true
	case models.PeriodThisWeek:
		return mondayOf(today), today, true
	case models.PeriodLastWeek:
		start := mondayOf(today).AddDate(0, 0, -7)
		return start, start.AddDate(0, 0, 6), true
	case models.PeriodThisMonth:
		return time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC), today, true
	case models.PeriodLastMonth:
		first := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC)
		return first.AddDate(0, -1, 0), first.AddDate(0, 0, -1), true
	default:
		return time.Time{}, time.Time{}, false
	}
}

func mondayOf(day time.Time) time.Time {
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}

// resolveWindow applies date precedence: exact date, range, named period, then lastDays.
// lastDays covers N calendar days ending today.
func resolveWindow(filter models.ReportFilter, now time.Time) dateWindow {
	switch {
	case filter.Date != "":
		return dateWindow{from: filter.Date, to: filter.Date}
	case filter.DateRange != nil && (filter.DateRange.From != "" || filter.DateRange.To != ""):
		return dateWindow{from: filter.DateRange.From, to: filter.DateRange.To}
	case filter.Period != "":
		if from, to, ok := ResolvePeriod(filter.Period, now); ok {
			return dateWindow{from: from.Format(models.DateLayout), to: to.Format(models.DateLayout)}
		}
	case filter.LastDays > 0:
		today := startOfDay(now)
		return dateWindow{
			from: today.AddDate(0, 0, -(filter.LastDays - 1)).Format(models.DateLayout),
			to:   today.Format(models.DateLayout),
		}
	}
	return dateWindow{}
}

// matchesStudentName does a case-insensitive substring match on first, last or full name.
func matchesStudentName(student models.Student, term string) bool {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return true
	}
	return strings.Contains(strings.ToLower(student.FirstName), term) ||
		strings.Contains(strings.ToLower(student.LastName), term) ||
		strings.Contains(strings.ToLower(student.FullName()), term)
}

// FilterRecords narrows records in a fixed order: student ids, name, date window, statuses,
// then the late, early dismissal and excused flags. Each step only removes records.
func FilterRecords(records []models.AttendanceRecord, students map[string]models.Student, filter models.ReportFilter, now time.Time) []models.AttendanceRecord {
	out := records

	if len(filter.StudentIDs) > 0 {
		ids := make(map[string]struct{}, len(filter.StudentIDs))
		for _, id := range filter.StudentIDs {
			ids[id] = struct{}{}
		}
		out = keep(out, func(r models.AttendanceRecord) bool {
			_, ok := ids[r.StudentID]
			return ok
		})
	}

	if strings.TrimSpace(filter.StudentName) != "" {
		out = keep(out, func(r models.AttendanceRecord) bool {
			student, ok := students[r.StudentID]
			return ok && matchesStudentName(student, filter.StudentName)
		})
	}

	if window := resolveWindow(filter, now); window.from != "" || window.to != "" {
		out = keep(out, func(r models.AttendanceRecord) bool { return window.contains(r.Date) })
	}

	if len(filter.Statuses) > 0 {
		allowed := make(map[models.AttendanceStatus]struct{}, len(filter.Statuses))
		for _, s := range filter.Statuses {
			allowed[models.AttendanceStatus(strings.ToUpper(string(s)))] = struct{}{}
		}
		out = keep(out, func(r models.AttendanceRecord) bool {
			_, ok := allowed[r.Status]
			return ok
		})
	}

	if filter.OnlyLate {
		out = keep(out, func(r models.AttendanceRecord) bool { return r.IsLate() })
	}
	if filter.OnlyEarlyDismissal {
		out = keep(out, func(r models.AttendanceRecord) bool { return r.EarlyDismissal })
	}
	if filter.IncludeExcused != nil && !*filter.IncludeExcused {
		out = keep(out, func(r models.AttendanceRecord) bool { return !r.IsExcused() })
	}
	return out
}

func keep(records []models.AttendanceRecord, pred func(models.AttendanceRecord) bool) []models.AttendanceRecord {
	out := make([]models.AttendanceRecord, 0, len(records))
	for _, r := range records {
		if pred(r) {
			out = append(out, r)
		}
	}
	return out
}

// statusCounts buckets records by terminal status; every record lands in exactly one bucket.
type statusCounts struct {
	total, present, late, absent, excused int
}

func (c *statusCounts) add(r models.AttendanceRecord) {
	c.total++
	switch r.Status {
	case models.AttendanceStatusPresent:
		c.present++
	case models.AttendanceStatusLate:
		c.late++
	case models.AttendanceStatusAbsent:
		c.absent++
	case models.AttendanceStatusExcused:
		c.excused++
	}
}

// BuildStudentReport computes statistics for one student's records.
func BuildStudentReport(student models.Student, records []models.AttendanceRecord) models.StudentReport {
	sorted := append([]models.AttendanceRecord(nil), records...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date < sorted[j].Date })

	var counts statusCounts
	report := models.StudentReport{
		StudentID:   student.ID,
		StudentName: strings.TrimSpace(student.FullName()),
		FirstName:   student.FirstName,
		LastName:    student.LastName,
		Grade:       student.Grade,
	}

	streak := 0
	for _, r := range sorted {
		counts.add(r)
		if r.EarlyDismissal {
			report.EarlyDismissals++
		}
		if r.Status == models.AttendanceStatusPresent {
			streak++
			if streak > report.LongestPresentStreak {
				report.LongestPresentStreak = streak
			}
		} else {
			streak = 0
		}
		if r.Status == models.AttendanceStatusPresent || r.Status == models.AttendanceStatusLate {
			date := r.Date
			report.LastAttendanceDate = &date
		}
	}
	for i := len(sorted) - 1; i >= 0 && sorted[i].Status == models.AttendanceStatusAbsent; i-- {
		report.CurrentAbsenceStreak++
	}

	report.TotalDays = counts.total
	report.PresentDays = counts.present
	report.LateDays = counts.late
	report.AbsentDays = counts.absent
	report.ExcusedDays = counts.excused
	report.AttendanceRate = percent(counts.present, counts.total)
	report.LateRate = percent(counts.late, counts.total)
	report.Trend = classifyTrend(sorted)
	return report
}

// classifyTrend compares the present rate of the two chronological halves.
func classifyTrend(sorted []models.AttendanceRecord) models.Trend {
	if len(sorted) < trendMinRecords {
		return models.TrendStable
	}
	mid := len(sorted) / 2
	delta := presentRate(sorted[mid:]) - presentRate(sorted[:mid])
	switch {
	case delta > trendDeltaPoints:
		return models.TrendImproving
	case delta < -trendDeltaPoints:
		return models.TrendDeclining
	default:
		return models.TrendStable
	}
}

func presentRate(records []models.AttendanceRecord) float64 {
	if len(records) == 0 {
		return 0
	}
	present := 0
	for _, r := range records {
		if r.Status == models.AttendanceStatusPresent {
			present++
		}
	}
	return float64(present) / float64(len(records)) * 100
}

// BuildDateReports groups records by date in ascending order. Dates in daysOff are flagged.
func BuildDateReports(records []models.AttendanceRecord, daysOff map[string]bool) []models.DateReport {
	byDate := map[string]*statusCounts{}
	for _, r := range records {
		c, ok := byDate[r.Date]
		if !ok {
			c = &statusCounts{}
			byDate[r.Date] = c
		}
		c.add(r)
	}
	dates := make([]string, 0, len(byDate))
	for d := range byDate {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	reports := make([]models.DateReport, 0, len(dates))
	for _, d := range dates {
		c := byDate[d]
		reports = append(reports, models.DateReport{
			Date:            d,
			TotalRecords:    c.total,
			PresentCount:    c.present,
			LateCount:       c.late,
			AbsentCount:     c.absent,
			ExcusedCount:    c.excused,
			AttendanceRate:  percent(c.present, c.total),
			LateRate:        percent(c.late, c.total),
			ScheduledDayOff: daysOff[d],
		})
	}
	return reports
}

// BuildSummary aggregates the filtered record set and its student rows.
func BuildSummary(records []models.AttendanceRecord, students []models.StudentReport, dates []models.DateReport) models.ReportSummary {
	var counts statusCounts
	for _, r := range records {
		counts.add(r)
	}
	summary := models.ReportSummary{
		TotalStudents:  len(students),
		TotalRecords:   counts.total,
		DateSpan:       models.DateSpan{Days: len(dates)},
		AttendanceRate: percent(counts.present, counts.total),
		LateRate:       percent(counts.late, counts.total),
		AbsenceRate:    percent(counts.absent, counts.total),
		ExcusedRate:    percent(counts.excused, counts.total),
	}
	if len(dates) > 0 {
		summary.DateSpan.Start = dates[0].Date
		summary.DateSpan.End = dates[len(dates)-1].Date
	}
	for _, s := range students {
		if s.AttendanceRate < riskAttendanceRate {
			summary.RiskStudents++
		}
		if s.AttendanceRate == perfectAttendanceRate {
			summary.PerfectAttendance++
		}
	}
	return summary
}

// BuildInsights derives rule-based findings. Output depends only on its inputs.
func BuildInsights(summary models.ReportSummary, students []models.StudentReport) models.ReportInsights {
	insights := models.ReportInsights{Findings: []string{}, Recommendations: []string{}, Alerts: []models.InsightAlert{}}
	if summary.TotalRecords == 0 {
		return insights
	}

	if summary.AttendanceRate < overallTargetRate {
		insights.Findings = append(insights.Findings,
			fmt.Sprintf("Overall attendance rate is %d%%, below the %d%% target", summary.AttendanceRate, overallTargetRate))
		insights.Recommendations = append(insights.Recommendations,
			"Review attendance follow-up procedures with class teachers")
	}

	if summary.RiskStudents > 0 {
		insights.Findings = append(insights.Findings,
			fmt.Sprintf("%d student(s) have an attendance rate below %d%%", summary.RiskStudents, riskAttendanceRate))
		for _, s := range students {
			if s.AttendanceRate >= riskAttendanceRate {
				continue
			}
			severity := models.SeverityMedium
			if s.AttendanceRate < highRiskRate {
				severity = models.SeverityHigh
			}
			insights.Alerts = append(insights.Alerts, models.InsightAlert{
				StudentID:      s.StudentID,
				StudentName:    s.StudentName,
				Severity:       severity,
				AttendanceRate: s.AttendanceRate,
				Message:        fmt.Sprintf("%s has an attendance rate of %d%%", displayName(s), s.AttendanceRate),
			})
		}
	}

	frequentLate := 0
	for _, s := range students {
		if s.LateRate > frequentLateRate {
			frequentLate++
		}
	}
	if frequentLate > 0 {
		insights.Findings = append(insights.Findings,
			fmt.Sprintf("%d student(s) are late more than %d%% of the time", frequentLate, frequentLateRate))
		insights.Recommendations = append(insights.Recommendations,
			"Contact the families of frequently late students about arrival times")
	}
	return insights
}

func displayName(s models.StudentReport) string {
	if s.StudentName != "" {
		return s.StudentName
	}
	return s.StudentID
}

// SortStudentReports orders rows by field and order. Ties fall back to name then id.
func SortStudentReports(rows []models.StudentReport, sortBy models.ReportSort) {
	desc := strings.EqualFold(sortBy.Order, "desc")
	byName := func(a, b models.StudentReport) int {
		if c := strings.Compare(strings.ToLower(a.LastName), strings.ToLower(b.LastName)); c != 0 {
			return c
		}
		if c := strings.Compare(strings.ToLower(a.FirstName), strings.ToLower(b.FirstName)); c != 0 {
			return c
		}
		return strings.Compare(a.StudentID, b.StudentID)
	}

	var primary func(a, b models.StudentReport) int
	switch strings.ToLower(sortBy.Field) {
	case models.ReportSortDate:
		primary = func(a, b models.StudentReport) int {
			return strings.Compare(derefString(a.LastAttendanceDate), derefString(b.LastAttendanceDate))
		}
	case models.ReportSortStatus:
		primary = func(a, b models.StudentReport) int { return a.AttendanceRate - b.AttendanceRate }
	case models.ReportSortGrade:
		primary = func(a, b models.StudentReport) int {
			return strings.Compare(strings.ToLower(derefString(a.Grade)), strings.ToLower(derefString(b.Grade)))
		}
	default:
		primary = byName
	}

	sort.SliceStable(rows, func(i, j int) bool {
		c := primary(rows[i], rows[j])
		if c == 0 {
			return byName(rows[i], rows[j]) < 0
		}
		if desc {
			return c > 0
		}
		return c < 0
	})
}

// PaginateStudentReports slices rows after sorting. Page and limit must be positive.
func PaginateStudentReports(rows []models.StudentReport, page, limit int) ([]models.StudentReport, models.PageInfo) {
	info := models.PageInfo{Page: page, Limit: limit, Total: len(rows)}
	if limit > 0 {
		info.TotalPages = (len(rows) + limit - 1) / limit
	}
	start := (page - 1) * limit
	if start >= len(rows) {
		return []models.StudentReport{}, info
	}
	end := start + limit
	if end > len(rows) {
		end = len(rows)
	}
	return rows[start:end], info
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
