package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-attendance-api/internal/dto"
	"github.com/noah-isme/sma-attendance-api/internal/models"
	"github.com/noah-isme/sma-attendance-api/internal/validation"
	appErrors "github.com/noah-isme/sma-attendance-api/pkg/errors"
)

// Batch item actions.
const (
	ActionCreated = "created"
	ActionUpdated = "updated"
)

type attendanceRepository interface {
	FindByStudent(ctx context.Context, studentID string) ([]models.AttendanceRecord, error)
	SaveBatch(ctx context.Context, date string, records []models.AttendanceRecord, override bool) (models.SaveOutcome, error)
}

type attendanceStudentReader interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
	FindByIDs(ctx context.Context, ids []string) ([]models.Student, error)
}

type dayOffChecker interface {
	IsDayOff(ctx context.Context, date, classID string) (bool, error)
}

type reportCacheInvalidator interface {
	InvalidateCache(ctx context.Context) error
}

// AttendanceService records batch attendance submissions.
type AttendanceService struct {
	repo      attendanceRepository
	students  attendanceStudentReader
	daysOff   dayOffChecker
	reports   reportCacheInvalidator
	metrics   *MetricsService
	validator *validation.Validator
	logger    *zap.Logger
}

// NewAttendanceService constructs the attendance service.
func NewAttendanceService(repo attendanceRepository, students attendanceStudentReader, daysOff dayOffChecker, reports reportCacheInvalidator, metrics *MetricsService, validate *validation.Validator, logger *zap.Logger) *AttendanceService {
	if validate == nil {
		validate = validation.Default()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AttendanceService{
		repo:      repo,
		students:  students,
		daysOff:   daysOff,
		reports:   reports,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
	}
}

// SubmitBatch stores one date of attendance. Unknown students fail individually; an existing
// (student, date) pair fails the whole batch with a 409 unless override is set.
func (s *AttendanceService) SubmitBatch(ctx context.Context, req dto.AttendanceBatchRequest) (*models.AttendanceBatchResult, error) {
	res := s.validator.ValidateAttendanceBatch(req)
	if !res.IsValid {
		return nil, res.Err()
	}

	result := &models.AttendanceBatchResult{
		Date:      req.Date,
		Processed: len(req.Students),
		Results:   make([]models.AttendanceItemResult, 0, len(req.Students)),
		Warnings:  append([]string{}, res.Warnings...),
	}

	if s.daysOff != nil {
		off, err := s.daysOff.IsDayOff(ctx, req.Date, "")
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check days off")
		}
		if off {
			result.Warnings = append(result.Warnings, fmt.Sprintf("%s is a scheduled day off", req.Date))
		}
	}

	ids := make([]string, len(req.Students))
	for i, entry := range req.Students {
		ids[i] = strings.TrimSpace(entry.ID)
	}
	known, err := s.students.FindByIDs(ctx, ids)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load students")
	}
	exists := make(map[string]bool, len(known))
	for _, st := range known {
		exists[st.ID] = true
	}

	records := make([]models.AttendanceRecord, 0, len(req.Students))
	failed := map[string]string{}
	for i, entry := range req.Students {
		if !exists[ids[i]] {
			failed[ids[i]] = "student not found"
			continue
		}
		records = append(records, BuildAttendanceRecord(ids[i], req.Date, entry))
	}

	outcome := models.SaveOutcome{UpdatedIDs: map[string]bool{}}
	if len(records) > 0 {
		outcome, err = s.repo.SaveBatch(ctx, req.Date, records, req.Override)
		if err != nil {
			var dup *models.DuplicateAttendanceError
			if errors.As(err, &dup) {
				return nil, duplicateError(req.Date, dup.Existing, records)
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save attendance")
		}
	}

	for _, id := range ids {
		if reason, bad := failed[id]; bad {
			result.Results = append(result.Results, models.AttendanceItemResult{StudentID: id, Success: false, Error: reason})
			result.ErrorCount++
			continue
		}
		action := ActionCreated
		if outcome.UpdatedIDs[id] {
			action = ActionUpdated
		}
		result.Results = append(result.Results, models.AttendanceItemResult{StudentID: id, Success: true, Action: action})
		result.SuccessCount++
	}
	result.Created = outcome.Created
	result.Updated = outcome.Updated
	result.Status = batchStatus(result.SuccessCount, result.ErrorCount)

	if outcome.Created+outcome.Updated > 0 {
		s.metrics.RecordAttendanceWrites(outcome.Created, outcome.Updated)
		if s.reports != nil {
			if err := s.reports.InvalidateCache(ctx); err != nil {
				s.logger.Warn("report cache invalidation failed", zap.Error(err))
			}
		}
	}

	s.logger.Info("attendance batch recorded",
		zap.String("date", req.Date),
		zap.Int("created", outcome.Created),
		zap.Int("updated", outcome.Updated),
		zap.Int("errors", result.ErrorCount),
		zap.Bool("override", req.Override),
	)
	return result, nil
}

// ForStudent returns every stored record of a student.
func (s *AttendanceService) ForStudent(ctx context.Context, studentID string) ([]models.AttendanceRecord, error) {
	if _, err := s.students.FindByID(ctx, studentID); err != nil {
		return nil, notFoundOrInternal(err, "student not found", "failed to load student")
	}
	records, err := s.repo.FindByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance")
	}
	return records, nil
}

// BuildAttendanceRecord maps a submitted entry onto a record. LATE implies late and EXCUSED
// implies excused; late and early dismissal flags only apply to attended statuses, and the
// excused flag only to non-attended ones.
func BuildAttendanceRecord(studentID, date string, entry dto.AttendanceEntryRequest) models.AttendanceRecord {
	status, _ := models.ParseAttendanceStatus(entry.Status)
	attended := status == models.AttendanceStatusPresent || status == models.AttendanceStatusLate
	rec := models.AttendanceRecord{
		StudentID:      studentID,
		Date:           date,
		Status:         status,
		Late:           status == models.AttendanceStatusLate || (attended && flag(entry.Late)),
		EarlyDismissal: attended && flag(entry.EarlyDismissal),
		Excused:        status == models.AttendanceStatusExcused || (!attended && flag(entry.Excused)),
	}
	if entry.Notes != nil {
		if note := strings.TrimSpace(*entry.Notes); note != "" {
			rec.Notes = &note
		}
	}
	return rec
}

func duplicateError(date string, existing, incoming []models.AttendanceRecord) error {
	incomingByID := make(map[string]models.AttendanceRecord, len(incoming))
	for _, rec := range incoming {
		incomingByID[rec.StudentID] = rec
	}
	duplicates := make([]models.AttendanceDuplicate, 0, len(existing))
	for _, prev := range existing {
		duplicates = append(duplicates, models.AttendanceDuplicate{
			StudentID: prev.StudentID,
			Date:      date,
			Existing:  prev.Snapshot(),
			Incoming:  incomingByID[prev.StudentID].Snapshot(),
		})
	}
	msg := fmt.Sprintf("attendance already recorded for %d student(s) on %s; resubmit with override to replace", len(duplicates), date)
	return appErrors.Clone(appErrors.ErrDuplicate, msg).WithDetails(map[string]interface{}{
		"duplicates": duplicates,
	})
}

func batchStatus(success, failed int) models.BatchStatus {
	switch {
	case failed == 0:
		return models.BatchStatusSuccess
	case success == 0:
		return models.BatchStatusError
	default:
		return models.BatchStatusPartial
	}
}

func flag(v *bool) bool {
	return v != nil && *v
}

// notFoundOrInternal maps sql.ErrNoRows to a 404 and everything else to a 500.
func notFoundOrInternal(err error, notFound, internal string) error {
	if isNoRows(err) {
		return appErrors.Clone(appErrors.ErrNotFound, notFound)
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, internal)
}
