package service

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"sync"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-attendance-api/internal/dto"
	"github.com/noah-isme/sma-attendance-api/internal/models"
	"github.com/noah-isme/sma-attendance-api/internal/validation"
	appErrors "github.com/noah-isme/sma-attendance-api/pkg/errors"
)

type thresholdRepository interface {
	Get(ctx context.Context) (*models.ThresholdSet, error)
	Save(ctx context.Context, set *models.ThresholdSet) error
}

// SanitizeThresholdInput truncates value to an integer and clamps it into [min, max].
func SanitizeThresholdInput(value float64, min, max int) int {
	if math.IsNaN(value) {
		return min
	}
	v := math.Trunc(value)
	if v < float64(min) {
		return min
	}
	if v > float64(max) {
		return max
	}
	return int(v)
}

// thresholdsFromRequest converts a validated request, clamping each value into its bounds.
func thresholdsFromRequest(req dto.ThresholdRequest) models.ThresholdSet {
	value := func(v *float64, max int) int {
		if v == nil {
			return validation.ThresholdMin
		}
		return SanitizeThresholdInput(*v, validation.ThresholdMin, max)
	}
	return models.ThresholdSet{
		Absences30Day:      value(req.Absences30Day, validation.Threshold30DayMax),
		AbsencesCumulative: value(req.AbsencesCumulative, validation.ThresholdCumulativeMax),
		Lateness30Day:      value(req.Lateness30Day, validation.Threshold30DayMax),
		LatenessCumulative: value(req.LatenessCumulative, validation.ThresholdCumulativeMax),
	}
}

// ThresholdService reads and updates the alert threshold set.
type ThresholdService struct {
	repo      thresholdRepository
	validator *validation.Validator
	logger    *zap.Logger

	mu     sync.RWMutex
	cached *models.ThresholdSet
}

// NewThresholdService constructs the threshold service.
func NewThresholdService(repo thresholdRepository, validate *validation.Validator, logger *zap.Logger) *ThresholdService {
	if validate == nil {
		validate = validation.Default()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ThresholdService{repo: repo, validator: validate, logger: logger}
}

// Get returns the saved thresholds, or the defaults when none were saved.
func (s *ThresholdService) Get(ctx context.Context) (models.ThresholdSet, error) {
	s.mu.RLock()
	cached := s.cached
	s.mu.RUnlock()
	if cached != nil {
		return *cached, nil
	}

	set, err := s.repo.Get(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.DefaultThresholds(), nil
		}
		return models.ThresholdSet{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load thresholds")
	}
	s.store(set)
	return *set, nil
}

// Validate checks a threshold payload without saving it.
func (s *ThresholdService) Validate(req dto.ThresholdRequest) validation.Result {
	return s.validator.ValidateThresholds(req)
}

// Update validates and persists a threshold set. Warnings are returned alongside the saved set.
func (s *ThresholdService) Update(ctx context.Context, req dto.ThresholdRequest) (*models.ThresholdSet, []string, error) {
	res := s.validator.ValidateThresholds(req)
	if !res.IsValid {
		return nil, res.Warnings, res.Err()
	}
	set := thresholdsFromRequest(req)
	if err := s.repo.Save(ctx, &set); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save thresholds")
	}
	s.store(&set)
	s.logger.Info("alert thresholds updated",
		zap.Int("absences_30_day", set.Absences30Day),
		zap.Int("absences_cumulative", set.AbsencesCumulative),
		zap.Int("lateness_30_day", set.Lateness30Day),
		zap.Int("lateness_cumulative", set.LatenessCumulative),
	)
	return &set, res.Warnings, nil
}

func (s *ThresholdService) store(set *models.ThresholdSet) {
	copied := *set
	s.mu.Lock()
	s.cached = &copied
	s.mu.Unlock()
}
