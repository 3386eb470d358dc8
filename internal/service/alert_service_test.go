package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-attendance-api/internal/models"
	appErrors "github.com/noah-isme/sma-attendance-api/pkg/errors"
)

func TestCountAbsencesInPeriodBoundary(t *testing.T) {
	now := fixedNow()
	records := []models.AttendanceRecord{
		record("s1", "2024-03-01", models.AttendanceStatusAbsent),
		record("s1", "2024-02-29", models.AttendanceStatusAbsent),
		record("s1", "2024-03-31", models.AttendanceStatusAbsent),
		record("s1", "2024-03-15", models.AttendanceStatusLate),
	}

	assert.Equal(t, 2, CountAbsencesInPeriod(records, 30, now))
	assert.Equal(t, 3, CountAbsencesInPeriod(records, 31, now))
	assert.Equal(t, 1, CountAbsencesInPeriod(records, 0, now))
}

func TestCountLatenessInPeriodUsesStatusOrFlag(t *testing.T) {
	flagged := record("s1", "2024-03-20", models.AttendanceStatusPresent)
	flagged.Late = true
	records := []models.AttendanceRecord{
		record("s1", "2024-03-10", models.AttendanceStatusLate),
		flagged,
		record("s1", "2024-01-10", models.AttendanceStatusLate),
		record("s1", "2024-03-11", models.AttendanceStatusPresent),
	}

	assert.Equal(t, 2, CountLatenessInPeriod(records, 30, fixedNow()))
	counts := CountAlertCounters(records, 30, fixedNow())
	assert.Equal(t, 3, counts.LatenessCumulative)
	assert.Equal(t, 0, counts.AbsencesCumulative)
}

func TestCalculateStudentAlertsSixRecentAbsences(t *testing.T) {
	records := []models.AttendanceRecord{}
	for _, date := range []string{"2024-03-04", "2024-03-06", "2024-03-11", "2024-03-13", "2024-03-18", "2024-03-20"} {
		records = append(records, record("s1", date, models.AttendanceStatusAbsent))
	}
	records = append(records, record("s2", "2024-03-20", models.AttendanceStatusAbsent))
	thresholds := models.ThresholdSet{Absences30Day: 5, AbsencesCumulative: 10, Lateness30Day: 3, LatenessCumulative: 10}

	result := CalculateStudentAlerts("s1", records, thresholds, fixedNow())

	require.Len(t, result.Alerts, 1)
	assert.Equal(t, models.TriggeredAlert{
		Type:           models.AlertTypeAbsence,
		Period:         models.AlertPeriodThirtyDays,
		CurrentCount:   6,
		ThresholdCount: 5,
	}, result.Alerts[0])
	assert.Equal(t, 6, result.Counts.AbsencesCumulative)
	assert.False(t, result.Approaching.AbsencesCumulative)
	assert.True(t, result.Approaching.Absences30Day)
}

func TestTriggeredAlertsMonotonic(t *testing.T) {
	thresholds := models.ThresholdSet{Absences30Day: 3, AbsencesCumulative: 10, Lateness30Day: 3, LatenessCumulative: 10}
	counts := models.AlertCounts{Absences30Day: 3, AbsencesCumulative: 4, Lateness30Day: 1, LatenessCumulative: 9}
	before := TriggeredAlerts(counts, thresholds)

	counts.AbsencesCumulative = 10
	counts.LatenessCumulative = 12
	after := TriggeredAlerts(counts, thresholds)

	assert.Len(t, before, 1)
	assert.Len(t, after, 3)
	for _, alert := range before {
		assert.Contains(t, after, models.TriggeredAlert{Type: alert.Type, Period: alert.Period, CurrentCount: alert.CurrentCount, ThresholdCount: alert.ThresholdCount})
	}
}

func TestCheckApproachingThresholds(t *testing.T) {
	thresholds := models.DefaultThresholds()
	counts := models.AlertCounts{Absences30Day: 1, AbsencesCumulative: 8, Lateness30Day: 0, LatenessCumulative: 7}

	got := CheckApproachingThresholds(counts, thresholds, 2)
	assert.True(t, got.Absences30Day)
	assert.True(t, got.AbsencesCumulative)
	assert.False(t, got.Lateness30Day)
	assert.False(t, got.LatenessCumulative)

	strict := CheckApproachingThresholds(counts, thresholds, -4)
	assert.False(t, strict.Any())
}

func TestCalculateBatchAlertsKeepsOrder(t *testing.T) {
	records := []models.AttendanceRecord{
		record("b", "2024-03-20", models.AttendanceStatusAbsent),
		record("b", "2024-03-21", models.AttendanceStatusAbsent),
		record("b", "2024-03-22", models.AttendanceStatusAbsent),
	}
	results := CalculateBatchAlerts([]string{"a", "b"}, records, models.DefaultThresholds(), fixedNow())

	require.Len(t, results, 2)
	assert.Equal(t, "a", results[0].StudentID)
	assert.Empty(t, results[0].Alerts)
	assert.Equal(t, "b", results[1].StudentID)
	assert.True(t, results[1].HasAlerts())
}

func TestCalculateBatchAlertsWithinHonoursWindow(t *testing.T) {
	records := []models.AttendanceRecord{
		record("a", "2024-03-10", models.AttendanceStatusAbsent),
		record("a", "2024-03-11", models.AttendanceStatusAbsent),
		record("a", "2024-03-12", models.AttendanceStatusAbsent),
	}
	thresholds := models.ThresholdSet{Absences30Day: 3, AbsencesCumulative: 10, Lateness30Day: 3, LatenessCumulative: 10}

	wide := CalculateBatchAlertsWithin([]string{"a"}, records, thresholds, 30, 0, fixedNow())
	narrow := CalculateBatchAlertsWithin([]string{"a"}, records, thresholds, 7, 0, fixedNow())

	require.Len(t, wide, 1)
	assert.Equal(t, 3, wide[0].Counts.Absences30Day)
	assert.True(t, wide[0].HasAlerts())
	require.Len(t, narrow, 1)
	assert.Zero(t, narrow[0].Counts.Absences30Day)
	assert.False(t, narrow[0].HasAlerts())
}

func TestGetAttendanceTrendCountsLateAsAttended(t *testing.T) {
	records := []models.AttendanceRecord{
		record("s1", "2024-03-25", models.AttendanceStatusPresent),
		record("s1", "2024-03-26", models.AttendanceStatusLate),
		record("s1", "2024-03-27", models.AttendanceStatusAbsent),
		record("s1", "2024-03-28", models.AttendanceStatusExcused),
		record("s1", "2023-12-01", models.AttendanceStatusAbsent),
	}
	trend := GetAttendanceTrend(records, 30, fixedNow())

	assert.Equal(t, 4, trend.Total)
	assert.Equal(t, 50, trend.AttendanceRate)
	assert.Equal(t, 1, trend.Late)

	empty := GetAttendanceTrend(nil, 7, fixedNow())
	assert.Equal(t, 0, empty.AttendanceRate)
}

func newTestAlertService(attendance *attendanceRepoStub, students *studentRepoStub, classes *classRepoStub, thresholds models.ThresholdSet) *AlertService {
	svc := NewAlertService(attendance, students, classes, staticThresholds{set: thresholds}, nil, AlertConfig{}, zap.NewNop())
	svc.now = fixedNow
	return svc
}

func TestAlertServiceStudentAlerts(t *testing.T) {
	attendance := &attendanceRepoStub{records: []models.AttendanceRecord{
		record("s1", "2024-03-20", models.AttendanceStatusAbsent),
		record("s1", "2024-03-21", models.AttendanceStatusAbsent),
		record("s1", "2024-03-22", models.AttendanceStatusAbsent),
	}}
	students := newStudentRepoStub(models.Student{ID: "s1", FirstName: "Ada", LastName: "Lovelace"})
	svc := newTestAlertService(attendance, students, newClassRepoStub(), models.DefaultThresholds())

	result, err := svc.StudentAlerts(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", result.StudentName)
	require.Len(t, result.Alerts, 1)
	assert.Equal(t, models.AlertTypeAbsence, result.Alerts[0].Type)

	_, err = svc.StudentAlerts(context.Background(), "missing")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestAlertServiceClassAlertsListsFlaggedFirst(t *testing.T) {
	attendance := &attendanceRepoStub{records: []models.AttendanceRecord{
		record("s2", "2024-03-20", models.AttendanceStatusLate),
		record("s2", "2024-03-21", models.AttendanceStatusLate),
		record("s2", "2024-03-22", models.AttendanceStatusLate),
		record("s1", "2024-03-22", models.AttendanceStatusPresent),
	}}
	students := newStudentRepoStub(
		models.Student{ID: "s1", FirstName: "Ada", LastName: "Lovelace"},
		models.Student{ID: "s2", FirstName: "Alan", LastName: "Turing"},
	)
	classes := newClassRepoStub(models.Class{ID: "c1", Name: "7A", StudentIDs: []string{"s1", "s2"}})
	svc := newTestAlertService(attendance, students, classes, models.DefaultThresholds())

	summary, err := svc.ClassAlerts(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, 2, summary.StudentCount)
	assert.Equal(t, 1, summary.FlaggedStudents)
	require.Len(t, summary.Students, 2)
	assert.Equal(t, "s2", summary.Students[0].StudentID)
	assert.Equal(t, "Alan Turing", summary.Students[0].StudentName)
	assert.Equal(t, models.AlertTypeLateness, summary.Students[0].Alerts[0].Type)

	_, err = svc.ClassAlerts(context.Background(), "nope")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestAlertServiceTrendBounds(t *testing.T) {
	attendance := &attendanceRepoStub{records: []models.AttendanceRecord{
		record("s1", "2024-03-30", models.AttendanceStatusPresent),
	}}
	students := newStudentRepoStub(models.Student{ID: "s1", FirstName: "Ada"})
	svc := newTestAlertService(attendance, students, newClassRepoStub(), models.DefaultThresholds())

	trend, err := svc.Trend(context.Background(), "s1", 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultTrendDays, trend.Days)
	assert.Equal(t, 100, trend.AttendanceRate)
	assert.Equal(t, "2024-03-01", attendance.queries[0].DateFrom)

	_, err = svc.Trend(context.Background(), "s1", 400)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}
