package service

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-attendance-api/internal/models"
	"github.com/noah-isme/sma-attendance-api/internal/validation"
	appErrors "github.com/noah-isme/sma-attendance-api/pkg/errors"
)

// Report defaults.
const (
	DefaultReportLimit = 20
	ReportCachePrefix  = "report:"
	ReportCachePattern = ReportCachePrefix + "*"
)

type reportAttendanceReader interface {
	Find(ctx context.Context, q models.AttendanceQuery) ([]models.AttendanceRecord, error)
}

type reportStudentReader interface {
	All(ctx context.Context) ([]models.Student, error)
}

type reportClassReader interface {
	StudentIDs(ctx context.Context, classID string) ([]string, error)
}

type reportDayOffReader interface {
	List(ctx context.Context, filter models.DayOffFilter) ([]models.DayOff, error)
}

// ReportConfig tunes the aggregator.
type ReportConfig struct {
	CacheTTL time.Duration
	MaxLimit int
}

// ReportService generates attendance reports and caches them by canonical filter key.
type ReportService struct {
	attendance reportAttendanceReader
	students   reportStudentReader
	classes    reportClassReader
	daysOff    reportDayOffReader
	cache      *CacheService
	metrics    *MetricsService
	validator  *validation.Validator
	cfg        ReportConfig
	logger     *zap.Logger
	now        func() time.Time
}

// NewReportService constructs the report aggregator. A nil cache disables caching.
func NewReportService(attendance reportAttendanceReader, students reportStudentReader, classes reportClassReader, daysOff reportDayOffReader, cache *CacheService, metrics *MetricsService, validate *validation.Validator, cfg ReportConfig, logger *zap.Logger) *ReportService {
	if validate == nil {
		validate = validation.Default()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxLimit <= 0 || cfg.MaxLimit > validation.ReportMaxLimit {
		cfg.MaxLimit = validation.ReportMaxLimit
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = time.Hour
	}
	return &ReportService{
		attendance: attendance,
		students:   students,
		classes:    classes,
		daysOff:    daysOff,
		cache:      cache,
		metrics:    metrics,
		validator:  validate,
		cfg:        cfg,
		logger:     logger,
		now:        time.Now,
	}
}

// ReportCacheKeyPayload is the canonical content encoded into a report cache key.
type ReportCacheKeyPayload struct {
	Filter     models.ReportFilter `json:"filter"`
	Pagination models.ReportPage   `json:"pagination"`
	Sort       models.ReportSort   `json:"sort"`
}

// ReportCacheKey encodes a normalized request as report:<base64url(JSON with sorted keys)>.
func ReportCacheKey(filter models.ReportFilter, page models.ReportPage, sortBy models.ReportSort) (string, error) {
	raw, err := json.Marshal(ReportCacheKeyPayload{Filter: filter, Pagination: page, Sort: sortBy})
	if err != nil {
		return "", fmt.Errorf("marshal cache key: %w", err)
	}
	// Round-tripping through a generic value sorts object keys at every level.
	var generic interface{}
	if err := json.Unmarshal(raw, &generic); err != nil {
		return "", fmt.Errorf("canonicalize cache key: %w", err)
	}
	canonical, err := json.Marshal(generic)
	if err != nil {
		return "", fmt.Errorf("marshal canonical cache key: %w", err)
	}
	return ReportCachePrefix + base64.RawURLEncoding.EncodeToString(canonical), nil
}

// DecodeReportCacheKey reverses ReportCacheKey.
func DecodeReportCacheKey(key string) (*ReportCacheKeyPayload, error) {
	if !strings.HasPrefix(key, ReportCachePrefix) {
		return nil, fmt.Errorf("cache key %q lacks %q prefix", key, ReportCachePrefix)
	}
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimPrefix(key, ReportCachePrefix))
	if err != nil {
		return nil, fmt.Errorf("decode cache key: %w", err)
	}
	var payload ReportCacheKeyPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("unmarshal cache key: %w", err)
	}
	return &payload, nil
}

// NormalizeReportRequest fills defaults and puts set-like fields in a stable order so equal
// requests share a cache key.
func NormalizeReportRequest(filter models.ReportFilter, page models.ReportPage, sortBy models.ReportSort) (models.ReportFilter, models.ReportPage, models.ReportSort) {
	if len(filter.StudentIDs) > 0 {
		ids := append([]string(nil), filter.StudentIDs...)
		sort.Strings(ids)
		filter.StudentIDs = dedupeSorted(ids)
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, 0, len(filter.Statuses))
		for _, s := range filter.Statuses {
			statuses = append(statuses, strings.ToUpper(strings.TrimSpace(string(s))))
		}
		sort.Strings(statuses)
		statuses = dedupeSorted(statuses)
		filter.Statuses = make([]models.AttendanceStatus, len(statuses))
		for i, s := range statuses {
			filter.Statuses[i] = models.AttendanceStatus(s)
		}
	}
	filter.StudentName = strings.TrimSpace(filter.StudentName)
	filter.Period = models.ReportPeriod(strings.ToLower(string(filter.Period)))

	if page.Page < 1 {
		page.Page = 1
	}
	if page.Limit < 1 {
		page.Limit = DefaultReportLimit
	}
	sortBy.Field = strings.ToLower(sortBy.Field)
	if sortBy.Field == "" {
		sortBy.Field = models.ReportSortName
	}
	sortBy.Order = strings.ToLower(sortBy.Order)
	if sortBy.Order != "desc" {
		sortBy.Order = "asc"
	}
	return filter, page, sortBy
}

func dedupeSorted(values []string) []string {
	out := values[:0]
	for i, v := range values {
		if i == 0 || v != values[i-1] {
			out = append(out, v)
		}
	}
	return out
}

// Generate validates the request, serves it from cache when possible, and otherwise
// aggregates the filtered attendance records.
func (s *ReportService) Generate(ctx context.Context, filter models.ReportFilter, page models.ReportPage, sortBy models.ReportSort) (*models.ReportResult, error) {
	start := time.Now()
	if res := s.validator.ValidateReportFilter(filter, page, sortBy, s.cfg.MaxLimit); !res.IsValid {
		return nil, res.Err()
	}
	filter, page, sortBy = NormalizeReportRequest(filter, page, sortBy)

	key, err := ReportCacheKey(filter, page, sortBy)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to build report cache key")
	}

	var cached models.ReportResult
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		cached.Metadata.CacheHit = true
		cached.Metadata.CacheKey = key
		cached.Metadata.ProcessingTimeMs = time.Since(start).Milliseconds()
		return &cached, nil
	}

	result, err := s.build(ctx, filter, sortBy)
	if err != nil {
		return nil, err
	}
	var info models.PageInfo
	result.Students, info = PaginateStudentReports(result.Students, page.Page, page.Limit)
	result.Metadata.Pagination = info
	result.Metadata.CacheKey = key

	elapsed := time.Since(start)
	result.Metadata.ProcessingTimeMs = elapsed.Milliseconds()
	s.metrics.ObserveReportGeneration(elapsed)

	if err := s.cache.Set(ctx, key, result, s.cfg.CacheTTL); err != nil {
		s.logger.Warn("report cache write failed", zap.String("key", key), zap.Error(err))
	}
	return result, nil
}

// GenerateAll builds an uncached report with every student row, capped at limit rows when
// limit is positive. Exports and the CLI use it.
func (s *ReportService) GenerateAll(ctx context.Context, filter models.ReportFilter, sortBy models.ReportSort, limit int) (*models.ReportResult, error) {
	start := time.Now()
	if res := s.validator.ValidateReportFilter(filter, models.ReportPage{}, sortBy, 0); !res.IsValid {
		return nil, res.Err()
	}
	filter, _, sortBy = NormalizeReportRequest(filter, models.ReportPage{}, sortBy)
	result, err := s.build(ctx, filter, sortBy)
	if err != nil {
		return nil, err
	}
	total := len(result.Students)
	if limit > 0 && total > limit {
		result.Students = result.Students[:limit]
	}
	pageSize := len(result.Students)
	result.Metadata.Pagination = models.PageInfo{Page: 1, Limit: pageSize, Total: total, TotalPages: 1}
	result.Metadata.ProcessingTimeMs = time.Since(start).Milliseconds()
	return result, nil
}

// InvalidateCache drops every cached report.
func (s *ReportService) InvalidateCache(ctx context.Context) error {
	return s.cache.Invalidate(ctx, ReportCachePattern)
}

func (s *ReportService) build(ctx context.Context, filter models.ReportFilter, sortBy models.ReportSort) (*models.ReportResult, error) {
	now := s.now()

	query, empty, err := s.prefetchQuery(ctx, filter, now)
	if err != nil {
		return nil, err
	}
	records := []models.AttendanceRecord{}
	if !empty {
		records, err = s.attendance.Find(ctx, query)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance")
		}
	}

	roster, err := s.students.All(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load students")
	}
	students := make(map[string]models.Student, len(roster))
	for _, st := range roster {
		students[st.ID] = st
	}

	filtered := FilterRecords(records, students, filter, now)

	byStudent := groupByStudent(filtered)
	rows := make([]models.StudentReport, 0, len(byStudent))
	for id, recs := range byStudent {
		student, ok := students[id]
		if !ok {
			student = models.Student{ID: id}
		}
		rows = append(rows, BuildStudentReport(student, recs))
	}
	SortStudentReports(rows, sortBy)

	daysOff, err := s.loadDaysOff(ctx, filtered, filter.ClassID)
	if err != nil {
		return nil, err
	}
	dates := BuildDateReports(filtered, daysOff)
	summary := BuildSummary(filtered, rows, dates)

	return &models.ReportResult{
		Students: rows,
		Dates:    dates,
		Summary:  summary,
		Insights: BuildInsights(summary, rows),
		Metadata: models.ReportMetadata{
			GeneratedAt: now.UTC(),
			Sort:        sortBy,
			Filter:      filter,
		},
	}, nil
}

// prefetchQuery pushes the id, class and date narrowing into storage. empty is true when the
// filter can match nothing.
func (s *ReportService) prefetchQuery(ctx context.Context, filter models.ReportFilter, now time.Time) (models.AttendanceQuery, bool, error) {
	query := models.AttendanceQuery{StudentIDs: filter.StudentIDs}
	if filter.ClassID != "" {
		members, err := s.classes.StudentIDs(ctx, filter.ClassID)
		if err != nil {
			return query, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class members")
		}
		if len(query.StudentIDs) > 0 {
			members = intersect(query.StudentIDs, members)
		}
		if len(members) == 0 {
			return query, true, nil
		}
		query.StudentIDs = members
	}
	window := resolveWindow(filter, now)
	query.DateFrom, query.DateTo = window.from, window.to
	return query, false, nil
}

func (s *ReportService) loadDaysOff(ctx context.Context, records []models.AttendanceRecord, classID string) (map[string]bool, error) {
	flagged := map[string]bool{}
	if len(records) == 0 || s.daysOff == nil {
		return flagged, nil
	}
	from, to := records[0].Date, records[0].Date
	for _, r := range records {
		if r.Date < from {
			from = r.Date
		}
		if r.Date > to {
			to = r.Date
		}
	}
	days, err := s.daysOff.List(ctx, models.DayOffFilter{From: from, To: to, ClassID: classID})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load days off")
	}
	for _, d := range days {
		if classID == "" && d.ClassID != nil {
			continue
		}
		flagged[d.Date] = true
	}
	return flagged, nil
}

func intersect(a, b []string) []string {
	set := make(map[string]struct{}, len(b))
	for _, v := range b {
		set[v] = struct{}{}
	}
	out := []string{}
	for _, v := range a {
		if _, ok := set[v]; ok {
			out = append(out, v)
		}
	}
	return out
}
