package handler

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-attendance-api/internal/dto"
	"github.com/noah-isme/sma-attendance-api/internal/models"
	"github.com/noah-isme/sma-attendance-api/internal/service"
	appErrors "github.com/noah-isme/sma-attendance-api/pkg/errors"
)

type fakeReportSrv struct {
	result     *models.ReportResult
	err        error
	lastFilter models.ReportFilter
	lastPage   models.ReportPage
	lastSort   models.ReportSort
	calls      int
}

func (f *fakeReportSrv) Generate(_ context.Context, filter models.ReportFilter, page models.ReportPage, sort models.ReportSort) (*models.ReportResult, error) {
	f.calls++
	f.lastFilter = filter
	f.lastPage = page
	f.lastSort = sort
	return f.result, f.err
}

type fakeExportSrv struct {
	job       *dto.ExportJobResponse
	status    *dto.ExportStatusResponse
	download  *service.ExportDownload
	err       error
	lastReq   dto.ExportRequest
	lastToken string
}

func (f *fakeExportSrv) CreateJob(_ context.Context, req dto.ExportRequest, _ string) (*dto.ExportJobResponse, error) {
	f.lastReq = req
	return f.job, f.err
}

func (f *fakeExportSrv) GetStatus(context.Context, string) (*dto.ExportStatusResponse, error) {
	return f.status, f.err
}

func (f *fakeExportSrv) ResolveDownload(_ context.Context, token string) (*service.ExportDownload, error) {
	f.lastToken = token
	return f.download, f.err
}

func TestReportHandlerAttendanceParsesQuery(t *testing.T) {
	reports := &fakeReportSrv{result: &models.ReportResult{Metadata: models.ReportMetadata{CacheHit: true, ProcessingTimeMs: 3}}}
	handler := NewReportHandler(reports, nil)

	target := "/reports/attendance?studentIds=s1,s2&studentIds=s3&classId=c1&from=2024-03-01&to=2024-03-10" +
		"&statuses=late,absent&onlyLate=true&includeExcused=false&page=2&limit=5&sort=name&order=desc"
	c, rec := newGinContext(http.MethodGet, target, nil)
	handler.Attendance(c)

	require.Equal(t, http.StatusOK, rec.Code)
	f := reports.lastFilter
	assert.Equal(t, []string{"s1", "s2", "s3"}, f.StudentIDs)
	assert.Equal(t, "c1", f.ClassID)
	require.NotNil(t, f.DateRange)
	assert.Equal(t, models.DateRange{From: "2024-03-01", To: "2024-03-10"}, *f.DateRange)
	assert.Equal(t, []models.AttendanceStatus{models.AttendanceStatusLate, models.AttendanceStatusAbsent}, f.Statuses)
	assert.True(t, f.OnlyLate)
	assert.False(t, f.OnlyEarlyDismissal)
	require.NotNil(t, f.IncludeExcused)
	assert.False(t, *f.IncludeExcused)
	assert.Equal(t, models.ReportPage{Page: 2, Limit: 5}, reports.lastPage)
	assert.Equal(t, models.ReportSort{Field: "name", Order: "desc"}, reports.lastSort)

	env := decodeEnvelope(t, rec)
	assert.Equal(t, true, env.Meta["cacheHit"])
	assert.EqualValues(t, 3, env.Meta["processingTimeMs"])
}

func TestReportHandlerAttendanceRejectsBadNumbers(t *testing.T) {
	reports := &fakeReportSrv{}
	handler := NewReportHandler(reports, nil)

	c, rec := newGinContext(http.MethodGet, "/reports/attendance?lastDays=week", nil)
	handler.Attendance(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, reports.calls)
	env := decodeEnvelope(t, rec)
	require.NotNil(t, env.Error)
	assert.Equal(t, "lastDays must be a whole number", env.Error.Message)
}

func TestReportHandlerAttendanceQueryPropagatesValidation(t *testing.T) {
	reports := &fakeReportSrv{err: appErrors.Clone(appErrors.ErrValidation, "limit must be at most 100")}
	handler := NewReportHandler(reports, nil)

	c, rec := newGinContext(http.MethodPost, "/reports/attendance", dto.ReportRequest{
		Filter:     models.ReportFilter{LastDays: 7},
		Pagination: models.ReportPage{Limit: 500},
	})
	handler.AttendanceQuery(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 7, reports.lastFilter.LastDays)
	assert.Equal(t, 500, reports.lastPage.Limit)
}

func TestReportHandlerExportsDisabled(t *testing.T) {
	handler := NewReportHandler(&fakeReportSrv{}, nil)

	c, rec := newGinContext(http.MethodPost, "/reports/exports", dto.ExportRequest{Format: "csv"})
	handler.CreateExport(c)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	c, rec = newGinContext(http.MethodGet, "/exports/abc", nil)
	handler.Download(c)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestReportHandlerCreateExportAccepted(t *testing.T) {
	exports := &fakeExportSrv{job: &dto.ExportJobResponse{ID: "job-1", Status: models.ExportStatusQueued}}
	handler := NewReportHandler(&fakeReportSrv{}, exports)

	c, rec := newGinContext(http.MethodPost, "/reports/exports", dto.ExportRequest{Format: "pdf", Limit: 50})
	handler.CreateExport(c)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "pdf", exports.lastReq.Format)
	assert.Equal(t, 50, exports.lastReq.Limit)
}

func TestReportHandlerDownloadStreamsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.csv")
	require.NoError(t, os.WriteFile(path, []byte("Student ID,Student\ns1,Ada Lovelace\n"), 0o600))
	file, err := os.Open(path)
	require.NoError(t, err)

	exports := &fakeExportSrv{download: &service.ExportDownload{
		File:        file,
		Filename:    "attendance_all.csv",
		Format:      models.ExportFormatCSV,
		ContentType: "text/csv",
		ExpiresAt:   time.Now().Add(time.Hour),
	}}
	handler := NewReportHandler(&fakeReportSrv{}, exports)

	c, rec := newGinContext(http.MethodGet, "/exports/tok", nil)
	c.Params = gin.Params{{Key: "token", Value: "tok"}}
	handler.Download(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "tok", exports.lastToken)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), `filename="attendance_all.csv"`)
	assert.Contains(t, rec.Body.String(), "Ada Lovelace")
}

func TestReportHandlerDownloadForbidden(t *testing.T) {
	exports := &fakeExportSrv{err: appErrors.Clone(appErrors.ErrForbidden, "invalid download token")}
	handler := NewReportHandler(&fakeReportSrv{}, exports)

	c, rec := newGinContext(http.MethodGet, "/exports/bad", nil)
	c.Params = gin.Params{{Key: "token", Value: "bad"}}
	handler.Download(c)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}
