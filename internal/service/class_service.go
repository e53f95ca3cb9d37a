package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/letrus-care/letrus-api/internal/models"
	appErrors "github.com/letrus-care/letrus-api/pkg/errors"
)

type classRepository interface {
	List(ctx context.Context, filter models.ClassFilter) ([]models.ClassDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.Class, error)
	Create(ctx context.Context, class *models.Class) error
}

// CreateClassRequest describes a new class.
type CreateClassRequest struct {
	Name         string             `json:"name" validate:"required,min=1"`
	CourseID     string             `json:"course_id" validate:"required"`
	GradeID      string             `json:"grade_id" validate:"required"`
	TeacherName  string             `json:"teacher_name"`
	Period       models.ClassPeriod `json:"period" validate:"required,oneof=manhã tarde noite"`
	SchoolYearID string             `json:"school_year_id" validate:"required"`
	CenterID     string             `json:"-"`
}

// ClassService manages classes.
type ClassService struct {
	repo      classRepository
	courses   classCourseReader
	validator *validator.Validate
	logger    *zap.Logger
}

type classCourseReader interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
}

// NewClassService constructs ClassService.
func NewClassService(repo classRepository, courses classCourseReader, validate *validator.Validate, logger *zap.Logger) *ClassService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClassService{repo: repo, courses: courses, validator: validate, logger: logger}
}

// List returns classes matching the filter.
func (s *ClassService) List(ctx context.Context, filter models.ClassFilter) ([]models.ClassDetail, int, error) {
	classes, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list classes")
	}
	return classes, total, nil
}

// Get returns a single class.
func (s *ClassService) Get(ctx context.Context, id string) (*models.Class, error) {
	class, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	return class, nil
}

// Create registers a new class under an active course.
func (s *ClassService) Create(ctx context.Context, req CreateClassRequest) (*models.Class, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid class payload")
	}

	course, err := s.courses.FindByID(ctx, req.CourseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	if course.Status != models.CourseStatusActive {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "course is inactive")
	}

	class := &models.Class{
		Name:         req.Name,
		CourseID:     req.CourseID,
		GradeID:      req.GradeID,
		TeacherName:  req.TeacherName,
		Period:       req.Period,
		CenterID:     req.CenterID,
		SchoolYearID: req.SchoolYearID,
	}
	if err := s.repo.Create(ctx, class); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create class")
	}
	return class, nil
}
