package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"math"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/letrus-care/letrus-api/internal/models"
	appErrors "github.com/letrus-care/letrus-api/pkg/errors"
)

type billingEnrollmentRepository interface {
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error)
	UpdateStatus(ctx context.Context, id string, status models.EnrollmentStatus) error
	ListPendingWithPayments(ctx context.Context, centerID string) ([]string, error)
}

type billingPlanRepository interface {
	ListByEnrollment(ctx context.Context, enrollmentID string) ([]models.FinancialPlanEntry, error)
	MarkPaid(ctx context.Context, id, paymentID string) error
}

type billingPaymentRepository interface {
	Create(ctx context.Context, payment *models.Payment) error
	ListByEnrollment(ctx context.Context, enrollmentID string) ([]models.Payment, error)
	FindDetailByID(ctx context.Context, id string) (*models.PaymentDetail, error)
}

type billingAuditWriter interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type receiptEnqueuer interface {
	EnqueueForPayment(ctx context.Context, paymentID string) error
}

// RecordPaymentRequest describes a payment submission.
type RecordPaymentRequest struct {
	EnrollmentID string               `json:"enrollment_id" validate:"required"`
	Month        string               `json:"month" validate:"required"`
	SchoolYearID string               `json:"school_year_id" validate:"required"`
	Method       models.PaymentMethod `json:"method" validate:"required"`
	Notes        *string              `json:"notes,omitempty"`
	CenterID     string               `json:"-"`
	UserID       string               `json:"-"`
}

// BillingService owns the payment calculation and the enrollment status
// workflow: recording payments, settling plan entries, and keeping
// enrollment status consistent with payment history.
type BillingService struct {
	enrollments billingEnrollmentRepository
	plans       billingPlanRepository
	payments    billingPaymentRepository
	audit       billingAuditWriter
	receipts    receiptEnqueuer
	cache       *CacheService
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewBillingService constructs BillingService.
func NewBillingService(enrollments billingEnrollmentRepository, plans billingPlanRepository, payments billingPaymentRepository, audit billingAuditWriter, receipts receiptEnqueuer, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *BillingService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BillingService{
		enrollments: enrollments,
		plans:       plans,
		payments:    payments,
		audit:       audit,
		receipts:    receipts,
		cache:       cache,
		validator:   validate,
		logger:      logger,
	}
}

// ComputePaymentDue determines what should be charged for the requested
// month. It is a pure function of its inputs: no I/O, no hidden state.
//
// A nil enrollment or empty month/school year yields the neutral zero result
// (inputs not ready, not an error). A missing plan entry yields the blocking
// PlanMissing flag. Otherwise the base fee is charged, plus the flat late
// fee when the matched entry's status is overdue. The entry status is the
// authoritative source for lateness; due dates are evaluated only by the
// overdue sweep that sets that status.
func ComputePaymentDue(enrollment *models.EnrollmentDetail, paymentMonth, schoolYearID string, plans []models.FinancialPlanEntry) models.PaymentDue {
	if enrollment == nil || paymentMonth == "" || schoolYearID == "" {
		return models.PaymentDue{}
	}

	entry := findPlanEntry(plans, paymentMonth, schoolYearID)
	if entry == nil {
		return models.PaymentDue{PlanMissing: true}
	}

	fee := numericOrZero(enrollment.CourseFee)
	feeFine := numericOrZero(enrollment.CourseFeeFine)

	var lateFee float64
	if entry.Status == models.PaymentStatusOverdue {
		lateFee = feeFine
	}

	return models.PaymentDue{
		Amount:  fee + lateFee,
		LateFee: lateFee,
		HasPlan: true,
	}
}

// findPlanEntry returns the first entry matching month and school year.
// The data model guarantees at most one per tuple.
func findPlanEntry(plans []models.FinancialPlanEntry, month, schoolYearID string) *models.FinancialPlanEntry {
	for i := range plans {
		if plans[i].Month == month && plans[i].SchoolYearID == schoolYearID {
			return &plans[i]
		}
	}
	return nil
}

func numericOrZero(value *float64) float64 {
	if value == nil {
		return 0
	}
	if math.IsNaN(*value) || math.IsInf(*value, 0) {
		return 0
	}
	return *value
}

// ComputeDue loads the enrollment and its plan entries and previews the
// amount due for the requested month. Missing parameters produce the neutral
// zero result so the caller can render a disabled state instead of an error.
func (s *BillingService) ComputeDue(ctx context.Context, enrollmentID, month, schoolYearID string) (*models.PaymentDue, error) {
	if enrollmentID == "" || month == "" || schoolYearID == "" {
		return &models.PaymentDue{}, nil
	}

	enrollment, err := s.enrollments.FindDetailByID(ctx, enrollmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}

	plans, err := s.plans.ListByEnrollment(ctx, enrollmentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load financial plan")
	}

	due := ComputePaymentDue(enrollment, month, schoolYearID, plans)
	return &due, nil
}

// RecordPayment validates and persists a payment, settles the matching plan
// entry, and runs the status workflow. Submission is refused when no plan
// entry exists for the requested month.
func (s *BillingService) RecordPayment(ctx context.Context, req RecordPaymentRequest) (*models.PaymentDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payment payload")
	}
	if !req.Method.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown payment method")
	}

	enrollment, err := s.enrollments.FindDetailByID(ctx, req.EnrollmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	if enrollment.Status == models.EnrollmentStatusDropped {
		return nil, appErrors.Clone(appErrors.ErrEnrollmentClosed, "enrollment was dropped")
	}

	plans, err := s.plans.ListByEnrollment(ctx, req.EnrollmentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load financial plan")
	}

	due := ComputePaymentDue(enrollment, req.Month, req.SchoolYearID, plans)
	if due.PlanMissing {
		return nil, appErrors.Clone(appErrors.ErrPlanMissing, "")
	}
	if !due.HasPlan {
		return nil, appErrors.Clone(appErrors.ErrValidation, "payment inputs incomplete")
	}

	entry := findPlanEntry(plans, req.Month, req.SchoolYearID)
	if entry.Status == models.PaymentStatusPaid {
		return nil, appErrors.Clone(appErrors.ErrConflict, "month already settled")
	}

	payment := &models.Payment{
		EnrollmentID: req.EnrollmentID,
		Amount:       due.Amount,
		LateFee:      due.LateFee,
		PaidAt:       time.Now().UTC(),
		Month:        entry.Month,
		Year:         entry.Year,
		SchoolYearID: req.SchoolYearID,
		Status:       models.PaymentStatusPaid,
		Method:       req.Method,
		CenterID:     req.CenterID,
		UserID:       req.UserID,
		Notes:        req.Notes,
	}
	if err := s.payments.Create(ctx, payment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record payment")
	}

	if err := s.plans.MarkPaid(ctx, entry.ID, payment.ID); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "payment recorded but plan entry not settled")
	}

	if err := s.ReconcileEnrollmentAfterPayment(ctx, req.EnrollmentID); err != nil {
		// The payment stands; the reconciliation sweep recovers the status.
		s.logger.Warn("enrollment reconciliation failed after payment",
			zap.String("enrollment_id", req.EnrollmentID),
			zap.String("payment_id", payment.ID),
			zap.Error(err))
	}

	if s.receipts != nil {
		if err := s.receipts.EnqueueForPayment(ctx, payment.ID); err != nil {
			s.logger.Warn("failed to enqueue receipt", zap.String("payment_id", payment.ID), zap.Error(err))
		}
	}
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, "dash:*"); err != nil {
			s.logger.Warn("dashboard cache invalidation failed", zap.Error(err))
		}
	}
	s.recordAudit(ctx, req.UserID, models.AuditActionPaymentCreate, "payment", payment.ID, map[string]interface{}{
		"enrollment_id": req.EnrollmentID,
		"month":         entry.Month,
		"amount":        payment.Amount,
		"late_fee":      payment.LateFee,
	})

	detail, err := s.payments.FindDetailByID(ctx, payment.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payment detail")
	}
	return detail, nil
}

// ReconcileEnrollmentAfterPayment keeps enrollment status consistent with
// payment history. The first recorded payment (or any payment against a
// pending enrollment) finalises the enrollment; later payments are a no-op.
// Dropped enrollments reject the transition.
func (s *BillingService) ReconcileEnrollmentAfterPayment(ctx context.Context, enrollmentID string) error {
	enrollment, err := s.enrollments.FindByID(ctx, enrollmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}

	switch enrollment.Status {
	case models.EnrollmentStatusDropped:
		return appErrors.Clone(appErrors.ErrEnrollmentClosed, "enrollment was dropped")
	case models.EnrollmentStatusCompleted:
		return nil
	}

	payments, err := s.payments.ListByEnrollment(ctx, enrollmentID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list payments")
	}

	if len(payments) == 1 || enrollment.Status == models.EnrollmentStatusPending {
		if err := s.enrollments.UpdateStatus(ctx, enrollmentID, models.EnrollmentStatusCompleted); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update enrollment status")
		}
		s.recordAudit(ctx, "", models.AuditActionStatusChange, "enrollment", enrollmentID, map[string]interface{}{
			"status": models.EnrollmentStatusCompleted,
		})
	}
	return nil
}

// CancelEnrollment drops a non-terminal enrollment. The transition is
// irreversible; failures must reach the operator.
func (s *BillingService) CancelEnrollment(ctx context.Context, enrollmentID, userID string) (*models.Enrollment, error) {
	enrollment, err := s.enrollments.FindByID(ctx, enrollmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	if enrollment.Status.Terminal() {
		return nil, appErrors.Clone(appErrors.ErrEnrollmentClosed, "enrollment is already closed")
	}

	if err := s.enrollments.UpdateStatus(ctx, enrollmentID, models.EnrollmentStatusDropped); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel enrollment")
	}
	enrollment.Status = models.EnrollmentStatusDropped

	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, "dash:*"); err != nil {
			s.logger.Warn("dashboard cache invalidation failed", zap.Error(err))
		}
	}
	s.recordAudit(ctx, userID, models.AuditActionEnrollCancel, "enrollment", enrollmentID, map[string]interface{}{
		"status": models.EnrollmentStatusDropped,
	})
	return enrollment, nil
}

// ReconcileOutstanding completes pending enrollments that already hold at
// least one payment. It recovers enrollments stranded by an interruption
// between payment creation and status update.
func (s *BillingService) ReconcileOutstanding(ctx context.Context, centerID string) (int, error) {
	ids, err := s.enrollments.ListPendingWithPayments(ctx, centerID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list outstanding enrollments")
	}

	completed := 0
	for _, id := range ids {
		if err := s.enrollments.UpdateStatus(ctx, id, models.EnrollmentStatusCompleted); err != nil {
			s.logger.Warn("failed to complete outstanding enrollment", zap.String("enrollment_id", id), zap.Error(err))
			continue
		}
		completed++
	}
	if completed > 0 {
		s.logger.Info("reconciled outstanding enrollments", zap.Int("completed", completed))
	}
	return completed, nil
}

func (s *BillingService) recordAudit(ctx context.Context, userID string, action models.AuditAction, resource, resourceID string, values map[string]interface{}) {
	if s.audit == nil {
		return
	}
	payload, err := json.Marshal(values)
	if err != nil {
		payload = nil
	}
	log := &models.AuditLog{
		Action:     action,
		Resource:   resource,
		ResourceID: &resourceID,
		NewValues:  payload,
	}
	if userID != "" {
		log.UserID = &userID
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to record audit log", zap.String("action", string(action)), zap.Error(err))
	}
}
