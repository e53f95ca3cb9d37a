package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/letrus-care/letrus-api/internal/models"
	appErrors "github.com/letrus-care/letrus-api/pkg/errors"
)

type financialPlanRepository interface {
	List(ctx context.Context, filter models.FinancialPlanFilter) ([]models.FinancialPlanEntry, int, error)
	ListByEnrollment(ctx context.Context, enrollmentID string) ([]models.FinancialPlanEntry, error)
	CreateBatch(ctx context.Context, entries []models.FinancialPlanEntry) (int, error)
	MarkOverdueBefore(ctx context.Context, cutoff time.Time) (int, error)
}

type planEnrollmentReader interface {
	FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error)
}

// FinancialPlanService generates and queries the monthly tuition schedule.
// Entry status is the authoritative source of lateness for the payment
// calculation; only the overdue sweep here compares due dates to the clock.
type FinancialPlanService struct {
	repo        financialPlanRepository
	enrollments planEnrollmentReader
	dueDay      int
	graceDays   int
	logger      *zap.Logger
}

// NewFinancialPlanService constructs FinancialPlanService. dueDay is the day
// of month each entry falls due; graceDays delays the overdue cutoff.
func NewFinancialPlanService(repo financialPlanRepository, enrollments planEnrollmentReader, dueDay, graceDays int, logger *zap.Logger) *FinancialPlanService {
	if dueDay < 1 || dueDay > 28 {
		dueDay = 10
	}
	if graceDays < 0 {
		graceDays = 0
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FinancialPlanService{
		repo:        repo,
		enrollments: enrollments,
		dueDay:      dueDay,
		graceDays:   graceDays,
		logger:      logger,
	}
}

// GenerateForEnrollment creates one pending entry per school calendar month,
// charged at the course fee. Scholarship enrollments carry no plan. Months
// already present for the enrollment and school year are left untouched.
func (s *FinancialPlanService) GenerateForEnrollment(ctx context.Context, enrollment *models.Enrollment, schoolYear *models.SchoolYear) (int, error) {
	if enrollment == nil || schoolYear == nil {
		return 0, appErrors.Clone(appErrors.ErrValidation, "enrollment and school year are required")
	}
	if enrollment.Scholarship {
		return 0, nil
	}

	detail, err := s.enrollments.FindDetailByID(ctx, enrollment.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}

	fee := numericOrZero(detail.CourseFee)
	start := schoolYear.StartDate

	entries := make([]models.FinancialPlanEntry, 0, len(models.MonthLabels))
	for i, label := range models.MonthLabels {
		due := time.Date(start.Year(), start.Month(), s.dueDay, 0, 0, 0, 0, time.UTC).AddDate(0, i, 0)
		entries = append(entries, models.FinancialPlanEntry{
			SchoolYearID: schoolYear.ID,
			Month:        label,
			Year:         due.Year(),
			EnrollmentID: enrollment.ID,
			CenterID:     enrollment.CenterID,
			DueDate:      due,
			Fee:          fee,
			Status:       models.PaymentStatusPending,
		})
	}

	created, err := s.repo.CreateBatch(ctx, entries)
	if err != nil {
		return created, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create plan entries")
	}
	return created, nil
}

// MarkOverdueSweep flips pending entries past their due date (plus the grace
// period) to overdue. It returns the number of entries updated.
func (s *FinancialPlanService) MarkOverdueSweep(ctx context.Context) (int, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -s.graceDays)
	updated, err := s.repo.MarkOverdueBefore(ctx, cutoff)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "overdue sweep failed")
	}
	if updated > 0 {
		s.logger.Info("marked plan entries overdue", zap.Int("entries", updated), zap.Time("cutoff", cutoff))
	}
	return updated, nil
}

// List returns plan entries matching the filter.
func (s *FinancialPlanService) List(ctx context.Context, filter models.FinancialPlanFilter) ([]models.FinancialPlanEntry, int, error) {
	entries, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list plan entries")
	}
	return entries, total, nil
}

// ListByEnrollment returns the full schedule for one enrollment.
func (s *FinancialPlanService) ListByEnrollment(ctx context.Context, enrollmentID string) ([]models.FinancialPlanEntry, error) {
	if enrollmentID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "enrollment id is required")
	}
	entries, err := s.repo.ListByEnrollment(ctx, enrollmentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list plan entries")
	}
	return entries, nil
}
