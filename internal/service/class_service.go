package service

import (
	"context"
	"math"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-attendance-api/internal/dto"
	"github.com/noah-isme/sma-attendance-api/internal/models"
	"github.com/noah-isme/sma-attendance-api/internal/validation"
	appErrors "github.com/noah-isme/sma-attendance-api/pkg/errors"
)

type classRepository interface {
	List(ctx context.Context, filter models.ClassFilter) ([]models.Class, int, error)
	FindByID(ctx context.Context, id string) (*models.Class, error)
	Create(ctx context.Context, class *models.Class) error
	Update(ctx context.Context, class *models.Class) (bool, error)
	Delete(ctx context.Context, id string) (bool, error)
	AddStudent(ctx context.Context, classID, studentID string) error
	RemoveStudent(ctx context.Context, classID, studentID string) (bool, error)
}

type classStudentReader interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
	FindByIDs(ctx context.Context, ids []string) ([]models.Student, error)
}

// GetEnrollmentPercentage returns round(count/capacity*100), or 0 without a capacity.
// Over-capacity classes exceed 100.
func GetEnrollmentPercentage(count int, capacity *int) int {
	if capacity == nil || *capacity <= 0 {
		return 0
	}
	return int(math.Round(float64(count) / float64(*capacity) * 100))
}

// ClassService coordinates class operations and membership.
type ClassService struct {
	repo      classRepository
	students  classStudentReader
	reports   reportCacheInvalidator
	validator *validation.Validator
	logger    *zap.Logger
}

// NewClassService constructs the class service.
func NewClassService(repo classRepository, students classStudentReader, reports reportCacheInvalidator, validate *validation.Validator, logger *zap.Logger) *ClassService {
	if validate == nil {
		validate = validation.Default()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClassService{repo: repo, students: students, reports: reports, validator: validate, logger: logger}
}

// List returns classes with their enrollment percentage.
func (s *ClassService) List(ctx context.Context, filter models.ClassFilter) ([]models.Class, *models.Pagination, error) {
	classes, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list classes")
	}
	for i := range classes {
		classes[i].EnrollmentPercentage = GetEnrollmentPercentage(len(classes[i].StudentIDs), classes[i].Capacity)
	}
	page, size := listPage(filter.Page, filter.PageSize)
	return classes, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns a class with its members.
func (s *ClassService) Get(ctx context.Context, id string) (*models.Class, error) {
	class, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOrInternal(err, "class not found", "failed to load class")
	}
	class.EnrollmentPercentage = GetEnrollmentPercentage(len(class.StudentIDs), class.Capacity)
	return class, nil
}

// Create validates and stores a class. Warnings such as over-capacity are returned alongside.
func (s *ClassService) Create(ctx context.Context, req dto.ClassRequest) (*models.Class, []string, error) {
	res := s.validator.ValidateClassForm(req)
	if !res.IsValid {
		return nil, res.Warnings, res.Err()
	}
	if err := s.ensureStudents(ctx, req.StudentIDs); err != nil {
		return nil, nil, err
	}
	class := classFromRequest(req)
	if class.StudentIDs == nil {
		class.StudentIDs = []string{}
	}
	if err := s.repo.Create(ctx, class); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create class")
	}
	class.EnrollmentPercentage = GetEnrollmentPercentage(len(class.StudentIDs), class.Capacity)
	s.logger.Info("class created", zap.String("class_id", class.ID), zap.Int("students", len(class.StudentIDs)))
	return class, res.Warnings, nil
}

// Update replaces class fields; a non-nil studentIds list replaces the membership.
func (s *ClassService) Update(ctx context.Context, id string, req dto.ClassRequest) (*models.Class, []string, error) {
	res := s.validator.ValidateClassForm(req)
	if !res.IsValid {
		return nil, res.Warnings, res.Err()
	}
	if err := s.ensureStudents(ctx, req.StudentIDs); err != nil {
		return nil, nil, err
	}
	class := classFromRequest(req)
	class.ID = id
	found, err := s.repo.Update(ctx, class)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update class")
	}
	if !found {
		return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
	}
	if req.StudentIDs != nil {
		s.invalidateReports(ctx)
	}
	updated, err := s.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return updated, res.Warnings, nil
}

// Delete removes a class and its membership.
func (s *ClassService) Delete(ctx context.Context, id string) error {
	found, err := s.repo.Delete(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete class")
	}
	if !found {
		return appErrors.Clone(appErrors.ErrNotFound, "class not found")
	}
	s.invalidateReports(ctx)
	return nil
}

// AddStudent enrolls a student into a class.
func (s *ClassService) AddStudent(ctx context.Context, classID string, req dto.ClassMemberRequest) (*models.Class, error) {
	if res := s.validator.Struct(req); !res.IsValid {
		return nil, res.Err()
	}
	if _, err := s.repo.FindByID(ctx, classID); err != nil {
		return nil, notFoundOrInternal(err, "class not found", "failed to load class")
	}
	if _, err := s.students.FindByID(ctx, req.StudentID); err != nil {
		return nil, notFoundOrInternal(err, "student not found", "failed to load student")
	}
	if err := s.repo.AddStudent(ctx, classID, req.StudentID); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to add student to class")
	}
	s.invalidateReports(ctx)
	return s.Get(ctx, classID)
}

// RemoveStudent drops a student from a class.
func (s *ClassService) RemoveStudent(ctx context.Context, classID, studentID string) error {
	removed, err := s.repo.RemoveStudent(ctx, classID, studentID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to remove student from class")
	}
	if !removed {
		return appErrors.Clone(appErrors.ErrNotFound, "student is not a member of this class")
	}
	s.invalidateReports(ctx)
	return nil
}

func (s *ClassService) ensureStudents(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	found, err := s.students.FindByIDs(ctx, ids)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load students")
	}
	if len(found) == len(ids) {
		return nil
	}
	known := make(map[string]bool, len(found))
	for _, st := range found {
		known[st.ID] = true
	}
	missing := []string{}
	for _, id := range ids {
		if !known[id] {
			missing = append(missing, id)
		}
	}
	return appErrors.Clone(appErrors.ErrValidation, "unknown student ids: "+strings.Join(missing, ", ")).
		WithDetails(map[string]interface{}{"missing": missing})
}

// invalidateReports drops cached reports since class filters depend on membership.
func (s *ClassService) invalidateReports(ctx context.Context) {
	if s.reports == nil {
		return
	}
	if err := s.reports.InvalidateCache(ctx); err != nil {
		s.logger.Warn("report cache invalidation failed", zap.Error(err))
	}
}

func classFromRequest(req dto.ClassRequest) *models.Class {
	class := &models.Class{
		Name:       strings.TrimSpace(req.Name),
		Capacity:   req.Capacity,
		StudentIDs: req.StudentIDs,
	}
	if req.Grade != nil {
		if grade := strings.TrimSpace(*req.Grade); grade != "" {
			class.Grade = &grade
		}
	}
	return class
}
