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

type enrollmentRepository interface {
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error)
	ExistsOpen(ctx context.Context, studentID, classID, schoolYearID string) (bool, error)
	Create(ctx context.Context, enrollment *models.Enrollment) error
}

type studentReader interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

type classReader interface {
	FindByID(ctx context.Context, id string) (*models.Class, error)
}

type schoolYearReader interface {
	FindByID(ctx context.Context, id string) (*models.SchoolYear, error)
}

type planGenerator interface {
	GenerateForEnrollment(ctx context.Context, enrollment *models.Enrollment, schoolYear *models.SchoolYear) (int, error)
}

// EnrollStudentRequest describes a new enrollment.
type EnrollStudentRequest struct {
	StudentID    string `json:"student_id" validate:"required"`
	ClassID      string `json:"class_id" validate:"required"`
	SchoolYearID string `json:"school_year_id" validate:"required"`
	Scholarship  bool   `json:"scholarship"`
	CenterID     string `json:"-"`
}

// EnrollmentService manages enrollment creation and queries. Status
// transitions after creation belong to BillingService.
type EnrollmentService struct {
	repo        enrollmentRepository
	students    studentReader
	classes     classReader
	schoolYears schoolYearReader
	plans       planGenerator
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewEnrollmentService constructs EnrollmentService.
func NewEnrollmentService(repo enrollmentRepository, students studentReader, classes classReader, schoolYears schoolYearReader, plans planGenerator, validate *validator.Validate, logger *zap.Logger) *EnrollmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentService{
		repo:        repo,
		students:    students,
		classes:     classes,
		schoolYears: schoolYears,
		plans:       plans,
		validator:   validate,
		logger:      logger,
	}
}

// Enroll registers a student to a class and generates the financial plan for
// the school year. New enrollments start at pending until their confirmation
// payment arrives; scholarship students start at enrolled.
func (s *EnrollmentService) Enroll(ctx context.Context, req EnrollStudentRequest) (*models.EnrollmentDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment payload")
	}

	student, err := s.students.FindByID(ctx, req.StudentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if !student.Active {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "student is inactive")
	}

	if _, err := s.classes.FindByID(ctx, req.ClassID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}

	schoolYear, err := s.schoolYears.FindByID(ctx, req.SchoolYearID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "school year not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load school year")
	}

	open, err := s.repo.ExistsOpen(ctx, req.StudentID, req.ClassID, req.SchoolYearID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing enrollment")
	}
	if open {
		return nil, appErrors.Clone(appErrors.ErrConflict, "student already enrolled in this class for the school year")
	}

	enrollment := &models.Enrollment{
		StudentID:    req.StudentID,
		ClassID:      req.ClassID,
		SchoolYearID: req.SchoolYearID,
		CenterID:     req.CenterID,
		Scholarship:  req.Scholarship,
		Status:       models.EnrollmentStatusPending,
	}
	if req.Scholarship {
		enrollment.Status = models.EnrollmentStatusEnrolled
	}
	if err := s.repo.Create(ctx, enrollment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create enrollment")
	}

	if s.plans != nil {
		created, err := s.plans.GenerateForEnrollment(ctx, enrollment, schoolYear)
		if err != nil {
			// The enrollment stands; plan entries can be regenerated later.
			s.logger.Warn("financial plan generation failed",
				zap.String("enrollment_id", enrollment.ID),
				zap.Error(err))
		} else {
			s.logger.Info("financial plan generated",
				zap.String("enrollment_id", enrollment.ID),
				zap.Int("entries", created))
		}
	}

	return s.repo.FindDetailByID(ctx, enrollment.ID)
}

// RegeneratePlan re-runs financial plan generation for an enrollment. Existing
// entries are untouched; only missing months are created. Used to recover from
// a generation failure during enrollment.
func (s *EnrollmentService) RegeneratePlan(ctx context.Context, enrollmentID string) (int, error) {
	if s.plans == nil {
		return 0, appErrors.Clone(appErrors.ErrPreconditionFailed, "plan generation is not configured")
	}

	enrollment, err := s.repo.FindByID(ctx, enrollmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}

	schoolYear, err := s.schoolYears.FindByID(ctx, enrollment.SchoolYearID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, appErrors.Clone(appErrors.ErrNotFound, "school year not found")
		}
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load school year")
	}

	created, err := s.plans.GenerateForEnrollment(ctx, enrollment, schoolYear)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate financial plan")
	}
	return created, nil
}

// List returns enrollments matching the filter.
func (s *EnrollmentService) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	enrollments, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	return enrollments, total, nil
}

// Get returns a single enrollment with student, class, and fee info.
func (s *EnrollmentService) Get(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	detail, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	return detail, nil
}
