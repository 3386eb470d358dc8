package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-attendance-api/internal/dto"
	"github.com/noah-isme/sma-attendance-api/internal/models"
	"github.com/noah-isme/sma-attendance-api/internal/validation"
	appErrors "github.com/noah-isme/sma-attendance-api/pkg/errors"
)

type reportFixture struct {
	svc        *ReportService
	attendance *attendanceRepoStub
	students   *studentRepoStub
	cache      *cacheRepoStub
}

func newReportFixture(t *testing.T) reportFixture {
	t.Helper()
	attendance := &attendanceRepoStub{records: []models.AttendanceRecord{
		record("s1", "2024-03-25", models.AttendanceStatusPresent),
		record("s1", "2024-03-26", models.AttendanceStatusLate),
		record("s2", "2024-03-25", models.AttendanceStatusAbsent),
		record("s2", "2024-03-26", models.AttendanceStatusPresent),
		record("s3", "2024-03-26", models.AttendanceStatusPresent),
	}}
	students := newStudentRepoStub(
		models.Student{ID: "s1", FirstName: "Ada", LastName: "Lovelace"},
		models.Student{ID: "s2", FirstName: "Alan", LastName: "Turing"},
		models.Student{ID: "s3", FirstName: "Grace", LastName: "Hopper"},
	)
	classes := newClassRepoStub(
		models.Class{ID: "c1", Name: "7A", StudentIDs: []string{"s1", "s2"}},
		models.Class{ID: "empty", Name: "7B", StudentIDs: []string{}},
	)
	daysOff := &dayOffRepoStub{days: []models.DayOff{{ID: "d1", Date: "2024-03-26", Reason: "Staff training"}}}
	cacheRepo := newCacheRepoStub()
	cache := NewCacheService(cacheRepo, nil, time.Hour, zap.NewNop(), true)
	validate := validation.New(validation.WithClock(fixedNow))

	svc := NewReportService(attendance, students, classes, daysOff, cache, nil, validate, ReportConfig{}, zap.NewNop())
	svc.now = fixedNow
	return reportFixture{svc: svc, attendance: attendance, students: students, cache: cacheRepo}
}

func TestReportCacheKeyRoundTrip(t *testing.T) {
	filter, page, sortBy := NormalizeReportRequest(models.ReportFilter{
		StudentIDs: []string{"s2", "s1", "s2"},
		Statuses:   []models.AttendanceStatus{"late", "PRESENT"},
		LastDays:   7,
	}, models.ReportPage{}, models.ReportSort{Field: "Status", Order: "DESC"})

	key, err := ReportCacheKey(filter, page, sortBy)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(key, ReportCachePrefix))

	decoded, err := DecodeReportCacheKey(key)
	require.NoError(t, err)
	assert.Equal(t, []string{"s1", "s2"}, decoded.Filter.StudentIDs)
	assert.Equal(t, []models.AttendanceStatus{"LATE", "PRESENT"}, decoded.Filter.Statuses)
	assert.Equal(t, models.ReportPage{Page: 1, Limit: DefaultReportLimit}, decoded.Pagination)
	assert.Equal(t, models.ReportSort{Field: "status", Order: "desc"}, decoded.Sort)

	again, err := ReportCacheKey(decoded.Filter, decoded.Pagination, decoded.Sort)
	require.NoError(t, err)
	assert.Equal(t, key, again)

	_, err = DecodeReportCacheKey("other:abc")
	assert.Error(t, err)
}

func TestReportCacheKeyIgnoresInputOrder(t *testing.T) {
	a, pa, sa := NormalizeReportRequest(models.ReportFilter{StudentIDs: []string{"b", "a"}}, models.ReportPage{}, models.ReportSort{})
	b, pb, sb := NormalizeReportRequest(models.ReportFilter{StudentIDs: []string{"a", "b", "a"}}, models.ReportPage{Page: 1, Limit: 20}, models.ReportSort{Field: "name", Order: "asc"})

	keyA, err := ReportCacheKey(a, pa, sa)
	require.NoError(t, err)
	keyB, err := ReportCacheKey(b, pb, sb)
	require.NoError(t, err)
	assert.Equal(t, keyA, keyB)
}

func TestReportServiceGenerate(t *testing.T) {
	fx := newReportFixture(t)

	result, err := fx.svc.Generate(context.Background(), models.ReportFilter{LastDays: 7}, models.ReportPage{Limit: 2}, models.ReportSort{})
	require.NoError(t, err)

	assert.False(t, result.Metadata.CacheHit)
	assert.Equal(t, models.PageInfo{Page: 1, Limit: 2, Total: 3, TotalPages: 2}, result.Metadata.Pagination)
	require.Len(t, result.Students, 2)
	assert.Equal(t, "s3", result.Students[0].StudentID)
	assert.Equal(t, "s1", result.Students[1].StudentID)
	assert.Equal(t, 5, result.Summary.TotalRecords)
	assert.Equal(t, 3, result.Summary.TotalStudents)
	require.Len(t, result.Dates, 2)
	assert.True(t, result.Dates[1].ScheduledDayOff)
	assert.Equal(t, "2024-03-25", fx.attendance.queries[0].DateFrom)
	assert.Equal(t, 1, fx.cache.sets)
}

func TestReportServiceGenerateServesCacheHit(t *testing.T) {
	fx := newReportFixture(t)
	ctx := context.Background()
	filter := models.ReportFilter{StudentIDs: []string{"s2", "s1"}}

	first, err := fx.svc.Generate(ctx, filter, models.ReportPage{}, models.ReportSort{})
	require.NoError(t, err)
	require.Len(t, fx.attendance.queries, 1)

	second, err := fx.svc.Generate(ctx, models.ReportFilter{StudentIDs: []string{"s1", "s2"}}, models.ReportPage{}, models.ReportSort{})
	require.NoError(t, err)

	assert.Len(t, fx.attendance.queries, 1)
	assert.True(t, second.Metadata.CacheHit)
	assert.Equal(t, first.Metadata.CacheKey, second.Metadata.CacheKey)
	assert.Equal(t, first.Summary, second.Summary)

	require.NoError(t, fx.svc.InvalidateCache(ctx))
	_, err = fx.svc.Generate(ctx, filter, models.ReportPage{}, models.ReportSort{})
	require.NoError(t, err)
	assert.Len(t, fx.attendance.queries, 2)
}

func TestReportServiceGenerateClassFilter(t *testing.T) {
	fx := newReportFixture(t)

	result, err := fx.svc.Generate(context.Background(), models.ReportFilter{ClassID: "c1"}, models.ReportPage{}, models.ReportSort{})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Summary.TotalStudents)

	empty, err := fx.svc.Generate(context.Background(), models.ReportFilter{ClassID: "empty"}, models.ReportPage{}, models.ReportSort{})
	require.NoError(t, err)
	assert.Empty(t, empty.Students)
	assert.Zero(t, empty.Summary.TotalRecords)
	assert.Empty(t, empty.Insights.Findings)
	assert.Len(t, fx.attendance.queries, 1)
}

func TestReportServiceGenerateRejectsInvalidFilter(t *testing.T) {
	fx := newReportFixture(t)

	_, err := fx.svc.Generate(context.Background(), models.ReportFilter{Date: "2024-13-01"}, models.ReportPage{}, models.ReportSort{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	_, err = fx.svc.Generate(context.Background(), models.ReportFilter{}, models.ReportPage{Limit: 500}, models.ReportSort{})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
	assert.Empty(t, fx.attendance.queries)
}

func TestReportServiceGenerateAll(t *testing.T) {
	fx := newReportFixture(t)

	result, err := fx.svc.GenerateAll(context.Background(), models.ReportFilter{}, models.ReportSort{Field: "status", Order: "asc"}, 2)
	require.NoError(t, err)
	require.Len(t, result.Students, 2)
	assert.Equal(t, 3, result.Metadata.Pagination.Total)
	assert.Equal(t, "s1", result.Students[0].StudentID)
	assert.Zero(t, fx.cache.sets)
}

func TestReportServiceReflectsStudentRename(t *testing.T) {
	fx := newReportFixture(t)
	ctx := context.Background()
	students := NewStudentService(fx.students, fx.svc, nil, zap.NewNop())
	filter := models.ReportFilter{StudentName: "lovelace"}

	first, err := fx.svc.Generate(ctx, filter, models.ReportPage{}, models.ReportSort{})
	require.NoError(t, err)
	require.Len(t, first.Students, 1)
	assert.Equal(t, "Ada Lovelace", first.Students[0].StudentName)

	_, err = students.Update(ctx, "s1", dto.StudentRequest{FirstName: "Ada", LastName: "Byron"})
	require.NoError(t, err)

	second, err := fx.svc.Generate(ctx, filter, models.ReportPage{}, models.ReportSort{})
	require.NoError(t, err)
	assert.False(t, second.Metadata.CacheHit)
	assert.Empty(t, second.Students)
}
