package service

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-attendance-api/internal/models"
	"github.com/noah-isme/sma-attendance-api/internal/validation"
	"github.com/noah-isme/sma-attendance-api/pkg/export"
	"github.com/noah-isme/sma-attendance-api/pkg/storage"
)

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type fullReportGenerator interface {
	GenerateAll(ctx context.Context, filter models.ReportFilter, sort models.ReportSort, limit int) (*models.ReportResult, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportResult captures successful generation metadata.
type ExportResult struct {
	RelativePath string
	Token        string
	URL          string
	Format       models.ExportFormat
	ExpiresAt    time.Time
}

// ExportService renders reports into files and signs their download links.
type ExportService struct {
	reports fullReportGenerator
	storage fileStorage
	signer  *storage.SignedURLSigner
	logger  *zap.Logger
	cfg     ExportConfig
	now     func() time.Time
}

// NewExportService constructs an ExportService.
func NewExportService(reports fullReportGenerator, store fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	return &ExportService{reports: reports, storage: store, signer: signer, logger: logger, cfg: cfg, now: time.Now}
}

// Generate runs the job's report, renders it and stores the file.
func (s *ExportService) Generate(ctx context.Context, job *models.ExportJob) (*ExportResult, error) {
	if job == nil {
		return nil, fmt.Errorf("job nil")
	}
	renderer, err := export.ForFormat(string(job.Format))
	if err != nil {
		return nil, err
	}
	limit := job.Params.Limit
	if limit <= 0 {
		limit = validation.ExportMaxLimit
	}
	report, err := s.reports.GenerateAll(ctx, job.Params.Filter, job.Params.Sort, limit)
	if err != nil {
		return nil, err
	}

	payload, err := renderer.Render(ReportDataset(report))
	if err != nil {
		return nil, err
	}
	relPath, err := s.storage.Save(s.buildFilename(job, renderer.Extension()), payload)
	if err != nil {
		return nil, err
	}

	token, ref, err := s.signer.Sign(job.ID, relPath)
	if err != nil {
		return nil, err
	}
	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}
	return &ExportResult{
		RelativePath: relPath,
		Token:        token,
		URL:          fmt.Sprintf("%s/exports/%s", prefix, token),
		Format:       job.Format,
		ExpiresAt:    ref.ExpiresAt,
	}, nil
}

// VerifyToken validates download token metadata.
func (s *ExportService) VerifyToken(token string) (storage.DownloadRef, error) {
	return s.signer.Verify(token)
}

// Open returns a handle to the stored file.
func (s *ExportService) Open(relPath string) (*os.File, error) {
	return s.storage.Open(relPath)
}

// Delete removes a stored export file.
func (s *ExportService) Delete(relPath string) error {
	return s.storage.Delete(relPath)
}

// Cleanup removes files older than ttl (defaults to configured ResultTTL when ttl <= 0).
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

func (s *ExportService) buildFilename(job *models.ExportJob, ext string) string {
	timestamp := s.now().UTC().Format("20060102_150405")
	return fmt.Sprintf("attendance_%s_%s.%s", sanitizeFilename(reportScope(job.Params.Filter)), timestamp, ext)
}

func reportScope(filter models.ReportFilter) string {
	switch {
	case filter.Date != "":
		return filter.Date
	case filter.DateRange != nil:
		return filter.DateRange.From + "_" + filter.DateRange.To
	case filter.Period != "":
		return string(filter.Period)
	case filter.LastDays > 0:
		return "last_" + strconv.Itoa(filter.LastDays) + "_days"
	default:
		return "all"
	}
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}

// ReportDataset flattens a report's student rows into an export dataset.
func ReportDataset(report *models.ReportResult) export.Dataset {
	data := export.Dataset{
		Title: "Attendance Report",
		Columns: []export.Column{
			{Key: "student_id", Title: "Student ID", Width: 30},
			{Key: "student_name", Title: "Student", Width: 45},
			{Key: "grade", Title: "Grade", Width: 15},
			{Key: "total", Title: "Days", Width: 15},
			{Key: "present", Title: "Present", Width: 18},
			{Key: "late", Title: "Late", Width: 15},
			{Key: "absent", Title: "Absent", Width: 18},
			{Key: "excused", Title: "Excused", Width: 18},
			{Key: "attendance_rate", Title: "Attendance %", Width: 25},
			{Key: "late_rate", Title: "Late %", Width: 18},
			{Key: "trend", Title: "Trend", Width: 22},
		},
	}
	if report == nil {
		return data
	}

	sum := report.Summary
	span := "no records"
	if sum.DateSpan.Start != "" {
		span = fmt.Sprintf("%s to %s (%d days)", sum.DateSpan.Start, sum.DateSpan.End, sum.DateSpan.Days)
	}
	data.Notes = []string{
		"Period: " + span,
		fmt.Sprintf("Students: %d, records: %d", sum.TotalStudents, sum.TotalRecords),
		fmt.Sprintf("Attendance %d%%, late %d%%, absence %d%%", sum.AttendanceRate, sum.LateRate, sum.AbsenceRate),
	}
	data.Notes = append(data.Notes, report.Insights.Findings...)

	data.Rows = make([]map[string]string, 0, len(report.Students))
	for _, row := range report.Students {
		data.Rows = append(data.Rows, map[string]string{
			"student_id":      row.StudentID,
			"student_name":    row.StudentName,
			"grade":           derefString(row.Grade),
			"total":           strconv.Itoa(row.TotalDays),
			"present":         strconv.Itoa(row.PresentDays),
			"late":            strconv.Itoa(row.LateDays),
			"absent":          strconv.Itoa(row.AbsentDays),
			"excused":         strconv.Itoa(row.ExcusedDays),
			"attendance_rate": strconv.Itoa(row.AttendanceRate),
			"late_rate":       strconv.Itoa(row.LateRate),
			"trend":           string(row.Trend),
		})
	}
	return data
}
