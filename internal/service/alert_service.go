package service

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-attendance-api/internal/models"
	appErrors "github.com/noah-isme/sma-attendance-api/pkg/errors"
)

// Alert evaluation defaults.
const (
	DefaultAlertWindowDays = 30
	DefaultWarningBuffer   = 2
	DefaultTrendDays       = 30
	MaxTrendDays           = 365
)

// CountAbsencesInPeriod counts ABSENT records dated within the last days, boundary day included.
func CountAbsencesInPeriod(records []models.AttendanceRecord, days int, now time.Time) int {
	cutoff := windowStart(days, now)
	count := 0
	for _, rec := range records {
		if rec.Status != models.AttendanceStatusAbsent {
			continue
		}
		if day, ok := rec.Day(); ok && !day.Before(cutoff) {
			count++
		}
	}
	return count
}

// CountLatenessInPeriod counts late records (status or flag) dated within the last days.
func CountLatenessInPeriod(records []models.AttendanceRecord, days int, now time.Time) int {
	cutoff := windowStart(days, now)
	count := 0
	for _, rec := range records {
		if !rec.IsLate() {
			continue
		}
		if day, ok := rec.Day(); ok && !day.Before(cutoff) {
			count++
		}
	}
	return count
}

// CountAlertCounters computes the four threshold counters over one student's records.
func CountAlertCounters(records []models.AttendanceRecord, windowDays int, now time.Time) models.AlertCounts {
	counts := models.AlertCounts{
		Absences30Day: CountAbsencesInPeriod(records, windowDays, now),
		Lateness30Day: CountLatenessInPeriod(records, windowDays, now),
	}
	for _, rec := range records {
		if rec.Status == models.AttendanceStatusAbsent {
			counts.AbsencesCumulative++
		}
		if rec.IsLate() {
			counts.LatenessCumulative++
		}
	}
	return counts
}

// TriggeredAlerts compares counters with thresholds. Each counter fires independently.
func TriggeredAlerts(counts models.AlertCounts, thresholds models.ThresholdSet) []models.TriggeredAlert {
	alerts := []models.TriggeredAlert{}
	check := func(alertType models.AlertType, period models.AlertPeriod, current, limit int) {
		if current >= limit {
			alerts = append(alerts, models.TriggeredAlert{Type: alertType, Period: period, CurrentCount: current, ThresholdCount: limit})
		}
	}
	check(models.AlertTypeAbsence, models.AlertPeriodThirtyDays, counts.Absences30Day, thresholds.Absences30Day)
	check(models.AlertTypeAbsence, models.AlertPeriodCumulative, counts.AbsencesCumulative, thresholds.AbsencesCumulative)
	check(models.AlertTypeLateness, models.AlertPeriodThirtyDays, counts.Lateness30Day, thresholds.Lateness30Day)
	check(models.AlertTypeLateness, models.AlertPeriodCumulative, counts.LatenessCumulative, thresholds.LatenessCumulative)
	return alerts
}

// CheckApproachingThresholds flags counters with count >= threshold - buffer. A negative
// buffer is treated as zero.
func CheckApproachingThresholds(counts models.AlertCounts, thresholds models.ThresholdSet, buffer int) models.ApproachingThresholds {
	if buffer < 0 {
		buffer = 0
	}
	return models.ApproachingThresholds{
		Absences30Day:      counts.Absences30Day >= thresholds.Absences30Day-buffer,
		AbsencesCumulative: counts.AbsencesCumulative >= thresholds.AbsencesCumulative-buffer,
		Lateness30Day:      counts.Lateness30Day >= thresholds.Lateness30Day-buffer,
		LatenessCumulative: counts.LatenessCumulative >= thresholds.LatenessCumulative-buffer,
	}
}

// CalculateStudentAlerts evaluates one student over a shared record set using the default
// window and warning buffer.
func CalculateStudentAlerts(studentID string, records []models.AttendanceRecord, thresholds models.ThresholdSet, now time.Time) models.AlertResult {
	return evaluateStudent(studentID, recordsFor(studentID, records), thresholds, DefaultAlertWindowDays, DefaultWarningBuffer, now)
}

// CalculateBatchAlerts evaluates every student id over a shared record set using the default
// window and warning buffer.
func CalculateBatchAlerts(studentIDs []string, records []models.AttendanceRecord, thresholds models.ThresholdSet, now time.Time) []models.AlertResult {
	return CalculateBatchAlertsWithin(studentIDs, records, thresholds, DefaultAlertWindowDays, DefaultWarningBuffer, now)
}

// CalculateBatchAlertsWithin is CalculateBatchAlerts with an explicit rolling window and
// warning buffer. Results follow the order of studentIDs.
func CalculateBatchAlertsWithin(studentIDs []string, records []models.AttendanceRecord, thresholds models.ThresholdSet, windowDays, buffer int, now time.Time) []models.AlertResult {
	byStudent := groupByStudent(records)
	results := make([]models.AlertResult, 0, len(studentIDs))
	for _, id := range studentIDs {
		results = append(results, evaluateStudent(id, byStudent[id], thresholds, windowDays, buffer, now))
	}
	return results
}

// GetAttendanceTrend totals the last days of records. Its rate counts LATE as attended, unlike
// the report aggregator which only counts PRESENT.
func GetAttendanceTrend(records []models.AttendanceRecord, days int, now time.Time) models.AttendanceTrend {
	cutoff := windowStart(days, now)
	trend := models.AttendanceTrend{Days: days}
	for _, rec := range records {
		day, ok := rec.Day()
		if !ok || day.Before(cutoff) {
			continue
		}
		trend.Total++
		switch rec.Status {
		case models.AttendanceStatusPresent:
			trend.Present++
		case models.AttendanceStatusLate:
			trend.Late++
		case models.AttendanceStatusAbsent:
			trend.Absent++
		case models.AttendanceStatusExcused:
			trend.Excused++
		}
	}
	trend.AttendanceRate = percent(trend.Present+trend.Late, trend.Total)
	return trend
}

func evaluateStudent(studentID string, records []models.AttendanceRecord, thresholds models.ThresholdSet, windowDays, buffer int, now time.Time) models.AlertResult {
	counts := CountAlertCounters(records, windowDays, now)
	return models.AlertResult{
		StudentID:   studentID,
		Counts:      counts,
		Alerts:      TriggeredAlerts(counts, thresholds),
		Approaching: CheckApproachingThresholds(counts, thresholds, buffer),
		Thresholds:  thresholds,
		EvaluatedAt: now.UTC(),
	}
}

// windowStart is the first calendar day inside a trailing window of days ending today.
func windowStart(days int, now time.Time) time.Time {
	return startOfDay(now).AddDate(0, 0, -days)
}

func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func recordsFor(studentID string, records []models.AttendanceRecord) []models.AttendanceRecord {
	out := make([]models.AttendanceRecord, 0)
	for _, rec := range records {
		if rec.StudentID == studentID {
			out = append(out, rec)
		}
	}
	return out
}

func groupByStudent(records []models.AttendanceRecord) map[string][]models.AttendanceRecord {
	grouped := make(map[string][]models.AttendanceRecord)
	for _, rec := range records {
		grouped[rec.StudentID] = append(grouped[rec.StudentID], rec)
	}
	return grouped
}

// percent returns round(part/total*100), or 0 for an empty total.
func percent(part, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(part) / float64(total) * 100))
}

type alertAttendanceReader interface {
	Find(ctx context.Context, q models.AttendanceQuery) ([]models.AttendanceRecord, error)
}

type alertStudentReader interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
	FindByIDs(ctx context.Context, ids []string) ([]models.Student, error)
}

type alertClassReader interface {
	FindByID(ctx context.Context, id string) (*models.Class, error)
}

type thresholdProvider interface {
	Get(ctx context.Context) (models.ThresholdSet, error)
}

// AlertConfig tunes the evaluator.
type AlertConfig struct {
	WindowDays    int
	WarningBuffer int
}

// AlertService evaluates stored attendance against the persisted thresholds.
type AlertService struct {
	attendance alertAttendanceReader
	students   alertStudentReader
	classes    alertClassReader
	thresholds thresholdProvider
	metrics    *MetricsService
	cfg        AlertConfig
	logger     *zap.Logger
	now        func() time.Time
}

// NewAlertService constructs the alert service.
func NewAlertService(attendance alertAttendanceReader, students alertStudentReader, classes alertClassReader, thresholds thresholdProvider, metrics *MetricsService, cfg AlertConfig, logger *zap.Logger) *AlertService {
	if cfg.WindowDays <= 0 {
		cfg.WindowDays = DefaultAlertWindowDays
	}
	if cfg.WarningBuffer < 0 {
		cfg.WarningBuffer = DefaultWarningBuffer
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AlertService{
		attendance: attendance,
		students:   students,
		classes:    classes,
		thresholds: thresholds,
		metrics:    metrics,
		cfg:        cfg,
		logger:     logger,
		now:        time.Now,
	}
}

// StudentAlerts evaluates a single student.
func (s *AlertService) StudentAlerts(ctx context.Context, studentID string) (*models.AlertResult, error) {
	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	thresholds, err := s.thresholds.Get(ctx)
	if err != nil {
		return nil, err
	}
	records, err := s.attendance.Find(ctx, models.AttendanceQuery{StudentIDs: []string{studentID}})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance")
	}

	result := evaluateStudent(studentID, records, thresholds, s.cfg.WindowDays, s.cfg.WarningBuffer, s.now())
	result.StudentName = student.FullName()
	s.metrics.RecordAlerts(result.Alerts)
	if result.HasAlerts() {
		s.logger.Info("attendance thresholds exceeded", zap.String("student_id", studentID), zap.Int("alerts", len(result.Alerts)))
	}
	return &result, nil
}

// ClassAlerts evaluates every member of a class. Flagged students are listed first.
func (s *AlertService) ClassAlerts(ctx context.Context, classID string) (*models.ClassAlertSummary, error) {
	class, err := s.classes.FindByID(ctx, classID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	summary := &models.ClassAlertSummary{
		ClassID:      class.ID,
		ClassName:    class.Name,
		StudentCount: len(class.StudentIDs),
		Students:     []models.AlertResult{},
	}
	if len(class.StudentIDs) == 0 {
		return summary, nil
	}

	thresholds, err := s.thresholds.Get(ctx)
	if err != nil {
		return nil, err
	}
	records, err := s.attendance.Find(ctx, models.AttendanceQuery{StudentIDs: class.StudentIDs})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance")
	}
	students, err := s.students.FindByIDs(ctx, class.StudentIDs)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load students")
	}
	names := make(map[string]string, len(students))
	for _, st := range students {
		names[st.ID] = st.FullName()
	}

	flagged := []models.AlertResult{}
	others := []models.AlertResult{}
	for _, result := range CalculateBatchAlertsWithin(class.StudentIDs, records, thresholds, s.cfg.WindowDays, s.cfg.WarningBuffer, s.now()) {
		result.StudentName = names[result.StudentID]
		s.metrics.RecordAlerts(result.Alerts)
		if result.HasAlerts() {
			flagged = append(flagged, result)
		} else {
			others = append(others, result)
		}
	}
	summary.FlaggedStudents = len(flagged)
	summary.Students = append(flagged, others...)
	return summary, nil
}

// Trend returns the attendance trend of a student over the last days.
func (s *AlertService) Trend(ctx context.Context, studentID string, days int) (*models.AttendanceTrend, error) {
	if days <= 0 {
		days = DefaultTrendDays
	}
	if days > MaxTrendDays {
		return nil, appErrors.Clone(appErrors.ErrValidation, "days must be between 1 and 365")
	}
	if _, err := s.students.FindByID(ctx, studentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	now := s.now()
	records, err := s.attendance.Find(ctx, models.AttendanceQuery{
		StudentIDs: []string{studentID},
		DateFrom:   windowStart(days, now).Format(models.DateLayout),
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance")
	}
	trend := GetAttendanceTrend(records, days, now)
	trend.StudentID = studentID
	return &trend, nil
}
