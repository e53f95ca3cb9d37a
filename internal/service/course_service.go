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

type courseRepository interface {
	List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error)
	FindByID(ctx context.Context, id string) (*models.Course, error)
	Create(ctx context.Context, course *models.Course) error
	Update(ctx context.Context, course *models.Course) error
	ListGrades(ctx context.Context, courseID string) ([]models.Grade, error)
	CreateGrade(ctx context.Context, grade *models.Grade) error
}

// CreateCourseRequest describes a new course and its fee schedule.
type CreateCourseRequest struct {
	Name        string   `json:"name" validate:"required,min=2"`
	Description string   `json:"description"`
	Fee         *float64 `json:"fee,omitempty" validate:"omitempty,gte=0"`
	FeeFine     *float64 `json:"fee_fine,omitempty" validate:"omitempty,gte=0"`
	CenterID    string   `json:"-"`
}

// UpdateCourseRequest mutates a course. Fee changes affect only plan entries
// generated afterwards; recorded payments are never recalculated.
type UpdateCourseRequest struct {
	Name        *string              `json:"name,omitempty" validate:"omitempty,min=2"`
	Description *string              `json:"description,omitempty"`
	Fee         *float64             `json:"fee,omitempty" validate:"omitempty,gte=0"`
	FeeFine     *float64             `json:"fee_fine,omitempty" validate:"omitempty,gte=0"`
	Status      *models.CourseStatus `json:"status,omitempty"`
}

// CourseService manages courses and their grade levels.
type CourseService struct {
	repo      courseRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCourseService constructs CourseService.
func NewCourseService(repo courseRepository, validate *validator.Validate, logger *zap.Logger) *CourseService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CourseService{repo: repo, validator: validate, logger: logger}
}

// List returns courses matching the filter.
func (s *CourseService) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error) {
	courses, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list courses")
	}
	return courses, total, nil
}

// Get returns a single course.
func (s *CourseService) Get(ctx context.Context, id string) (*models.Course, error) {
	course, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	return course, nil
}

// Create registers a new course.
func (s *CourseService) Create(ctx context.Context, req CreateCourseRequest) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}

	course := &models.Course{
		Name:        req.Name,
		Description: req.Description,
		CenterID:    req.CenterID,
		Fee:         req.Fee,
		FeeFine:     req.FeeFine,
	}
	if err := s.repo.Create(ctx, course); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create course")
	}
	return course, nil
}

// Update applies partial changes to a course.
func (s *CourseService) Update(ctx context.Context, id string, req UpdateCourseRequest) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}

	course, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		course.Name = *req.Name
	}
	if req.Description != nil {
		course.Description = *req.Description
	}
	if req.Fee != nil {
		course.Fee = req.Fee
	}
	if req.FeeFine != nil {
		course.FeeFine = req.FeeFine
	}
	if req.Status != nil {
		course.Status = *req.Status
	}

	if err := s.repo.Update(ctx, course); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update course")
	}
	return course, nil
}

// ListGrades returns the grade levels of a course.
func (s *CourseService) ListGrades(ctx context.Context, courseID string) ([]models.Grade, error) {
	if _, err := s.Get(ctx, courseID); err != nil {
		return nil, err
	}
	grades, err := s.repo.ListGrades(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list grades")
	}
	return grades, nil
}

// CreateGrade adds a grade level to a course.
func (s *CourseService) CreateGrade(ctx context.Context, courseID, name string) (*models.Grade, error) {
	if name == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "grade name is required")
	}
	if _, err := s.Get(ctx, courseID); err != nil {
		return nil, err
	}
	grade := &models.Grade{Name: name, CourseID: courseID}
	if err := s.repo.CreateGrade(ctx, grade); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create grade")
	}
	return grade, nil
}
