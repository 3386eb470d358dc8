package handler

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-attendance-api/internal/dto"
	"github.com/noah-isme/sma-attendance-api/internal/middleware"
	"github.com/noah-isme/sma-attendance-api/internal/models"
	"github.com/noah-isme/sma-attendance-api/internal/service"
	appErrors "github.com/noah-isme/sma-attendance-api/pkg/errors"
	"github.com/noah-isme/sma-attendance-api/pkg/response"
)

type reportGenerator interface {
	Generate(ctx context.Context, filter models.ReportFilter, page models.ReportPage, sort models.ReportSort) (*models.ReportResult, error)
}

type exportJobs interface {
	CreateJob(ctx context.Context, req dto.ExportRequest, actorID string) (*dto.ExportJobResponse, error)
	GetStatus(ctx context.Context, id string) (*dto.ExportStatusResponse, error)
	ResolveDownload(ctx context.Context, token string) (*service.ExportDownload, error)
}

// ReportHandler exposes attendance reports and their exports.
type ReportHandler struct {
	reports reportGenerator
	exports exportJobs
}

// NewReportHandler constructs handler. A nil exports disables the export endpoints.
func NewReportHandler(reports reportGenerator, exports exportJobs) *ReportHandler {
	return &ReportHandler{reports: reports, exports: exports}
}

// Attendance godoc
// @Summary Attendance report from query parameters
// @Tags Reports
// @Produce json
// @Param studentIds query string false "Comma separated student ids"
// @Param classId query string false "Class id"
// @Param name query string false "Student name substring"
// @Param date query string false "Exact date"
// @Param from query string false "Range start"
// @Param to query string false "Range end"
// @Param period query string false "today, yesterday, this_week, last_week, this_month, last_month"
// @Param lastDays query int false "Trailing calendar days including today"
// @Param statuses query string false "Comma separated statuses"
// @Param onlyLate query bool false "Only late records"
// @Param onlyEarlyDismissal query bool false "Only early dismissals"
// @Param includeExcused query bool false "Include excused records (default true)"
// @Param page query int false "Page"
// @Param limit query int false "Page size (max 100)"
// @Param sort query string false "name, date, status or grade"
// @Param order query string false "asc or desc"
// @Success 200 {object} response.Envelope
// @Router /reports/attendance [get]
func (h *ReportHandler) Attendance(c *gin.Context) {
	req, err := reportRequestFromQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.respondWithReport(c, req)
}

// AttendanceQuery godoc
// @Summary Attendance report from a JSON filter
// @Tags Reports
// @Accept json
// @Produce json
// @Param payload body dto.ReportRequest true "Report request"
// @Success 200 {object} response.Envelope
// @Router /reports/attendance [post]
func (h *ReportHandler) AttendanceQuery(c *gin.Context) {
	var req dto.ReportRequest
	if !bindJSON(c, &req) {
		return
	}
	h.respondWithReport(c, req)
}

func (h *ReportHandler) respondWithReport(c *gin.Context, req dto.ReportRequest) {
	report, err := h.reports.Generate(c.Request.Context(), req.Filter, req.Pagination, req.Sort)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, report.Metadata.CacheHit)
	response.JSON(c, http.StatusOK, report, nil, map[string]interface{}{
		"cacheHit":         report.Metadata.CacheHit,
		"processingTimeMs": report.Metadata.ProcessingTimeMs,
	})
}

// CreateExport godoc
// @Summary Queue a report export
// @Tags Reports
// @Accept json
// @Produce json
// @Param payload body dto.ExportRequest true "Export request"
// @Success 202 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /reports/exports [post]
func (h *ReportHandler) CreateExport(c *gin.Context) {
	if h.exports == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrFeatureUnavailable, "report exports are disabled"))
		return
	}
	var req dto.ExportRequest
	if !bindJSON(c, &req) {
		return
	}
	job, err := h.exports.CreateJob(c.Request.Context(), req, actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, job)
}

// ExportStatus godoc
// @Summary Export job status
// @Tags Reports
// @Produce json
// @Param id path string true "Export job ID"
// @Success 200 {object} response.Envelope
// @Router /reports/exports/{id} [get]
func (h *ReportHandler) ExportStatus(c *gin.Context) {
	if h.exports == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrFeatureUnavailable, "report exports are disabled"))
		return
	}
	status, err := h.exports.GetStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, status, nil)
}

// Download godoc
// @Summary Download an export through its signed token
// @Tags Reports
// @Produce octet-stream
// @Param token path string true "Signed download token"
// @Success 200 {file} binary
// @Failure 403 {object} response.Envelope
// @Router /exports/{token} [get]
func (h *ReportHandler) Download(c *gin.Context) {
	if h.exports == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrFeatureUnavailable, "report exports are disabled"))
		return
	}
	download, err := h.exports.ResolveDownload(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer download.File.Close() //nolint:errcheck

	info, err := download.File.Stat()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read export file"))
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", download.Filename))
	c.Header("Cache-Control", "no-store")
	c.DataFromReader(http.StatusOK, info.Size(), download.ContentType, download.File, nil)
}

// reportRequestFromQuery maps query parameters onto the same request a JSON body carries.
func reportRequestFromQuery(c *gin.Context) (dto.ReportRequest, error) {
	var req dto.ReportRequest
	var err error

	f := &req.Filter
	f.StudentIDs = queryList(c, "studentIds")
	f.ClassID = strings.TrimSpace(c.Query("classId"))
	f.StudentName = c.Query("name")
	f.Date = strings.TrimSpace(c.Query("date"))
	if from, to := strings.TrimSpace(c.Query("from")), strings.TrimSpace(c.Query("to")); from != "" || to != "" {
		f.DateRange = &models.DateRange{From: from, To: to}
	}
	f.Period = models.ReportPeriod(strings.TrimSpace(c.Query("period")))
	if f.LastDays, err = queryInt(c, "lastDays"); err != nil {
		return req, err
	}
	for _, s := range queryList(c, "statuses") {
		f.Statuses = append(f.Statuses, models.AttendanceStatus(strings.ToUpper(s)))
	}
	onlyLate, err := queryBool(c, "onlyLate")
	if err != nil {
		return req, err
	}
	onlyEarly, err := queryBool(c, "onlyEarlyDismissal")
	if err != nil {
		return req, err
	}
	f.OnlyLate = onlyLate != nil && *onlyLate
	f.OnlyEarlyDismissal = onlyEarly != nil && *onlyEarly
	if f.IncludeExcused, err = queryBool(c, "includeExcused"); err != nil {
		return req, err
	}

	if req.Pagination.Page, err = queryInt(c, "page"); err != nil {
		return req, err
	}
	if req.Pagination.Limit, err = queryInt(c, "limit"); err != nil {
		return req, err
	}
	req.Sort = models.ReportSort{Field: c.Query("sort"), Order: c.Query("order")}
	return req, nil
}
