package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-attendance-api/internal/dto"
	"github.com/noah-isme/sma-attendance-api/internal/models"
	"github.com/noah-isme/sma-attendance-api/internal/validation"
	appErrors "github.com/noah-isme/sma-attendance-api/pkg/errors"
)

type dayOffRepository interface {
	List(ctx context.Context, filter models.DayOffFilter) ([]models.DayOff, error)
	FindByID(ctx context.Context, id string) (*models.DayOff, error)
	Create(ctx context.Context, day *models.DayOff) error
	Delete(ctx context.Context, id string) (bool, error)
}

// DayOffService manages scheduled days without attendance.
type DayOffService struct {
	repo      dayOffRepository
	reports   reportCacheInvalidator
	validator *validation.Validator
	logger    *zap.Logger
}

// NewDayOffService constructs the service.
func NewDayOffService(repo dayOffRepository, reports reportCacheInvalidator, validate *validation.Validator, logger *zap.Logger) *DayOffService {
	if validate == nil {
		validate = validation.Default()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DayOffService{repo: repo, reports: reports, validator: validate, logger: logger}
}

// List returns days off within the filter bounds.
func (s *DayOffService) List(ctx context.Context, filter models.DayOffFilter) ([]models.DayOff, error) {
	if res := s.validator.ValidateDateRange(filter.From, filter.To); !res.IsValid {
		return nil, res.Err()
	}
	days, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list days off")
	}
	return days, nil
}

// Create schedules a day off. Weekend dates produce a warning.
func (s *DayOffService) Create(ctx context.Context, req dto.DayOffRequest) (*models.DayOff, []string, error) {
	res := s.validator.ValidateDayOff(req)
	if !res.IsValid {
		return nil, res.Warnings, res.Err()
	}
	day := &models.DayOff{Date: req.Date, Reason: strings.TrimSpace(req.Reason)}
	if req.ClassID != nil && strings.TrimSpace(*req.ClassID) != "" {
		classID := strings.TrimSpace(*req.ClassID)
		day.ClassID = &classID
	}
	if err := s.repo.Create(ctx, day); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create day off")
	}
	s.invalidateReports(ctx)
	return day, res.Warnings, nil
}

// Delete removes a scheduled day off.
func (s *DayOffService) Delete(ctx context.Context, id string) error {
	found, err := s.repo.Delete(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete day off")
	}
	if !found {
		return appErrors.Clone(appErrors.ErrNotFound, "day off not found")
	}
	s.invalidateReports(ctx)
	return nil
}

func (s *DayOffService) invalidateReports(ctx context.Context) {
	if s.reports == nil {
		return
	}
	if err := s.reports.InvalidateCache(ctx); err != nil {
		s.logger.Warn("report cache invalidation failed", zap.Error(err))
	}
}
