package service

import (
	"context"
	"database/sql"
	"math"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/letrus-care/letrus-api/internal/models"
	appErrors "github.com/letrus-care/letrus-api/pkg/errors"
)

type mockBillingEnrollmentRepo struct {
	enrollments map[string]models.Enrollment
	details     map[string]models.EnrollmentDetail
	status      map[string]models.EnrollmentStatus
	pending     []string
}

func (m *mockBillingEnrollmentRepo) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	if e, ok := m.enrollments[id]; ok {
		return &e, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockBillingEnrollmentRepo) FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	if d, ok := m.details[id]; ok {
		return &d, nil
	}
	if e, ok := m.enrollments[id]; ok {
		return &models.EnrollmentDetail{Enrollment: e}, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockBillingEnrollmentRepo) UpdateStatus(ctx context.Context, id string, status models.EnrollmentStatus) error {
	if m.status == nil {
		m.status = make(map[string]models.EnrollmentStatus)
	}
	m.status[id] = status
	if e, ok := m.enrollments[id]; ok {
		e.Status = status
		m.enrollments[id] = e
	}
	if d, ok := m.details[id]; ok {
		d.Status = status
		m.details[id] = d
	}
	return nil
}

func (m *mockBillingEnrollmentRepo) ListPendingWithPayments(ctx context.Context, centerID string) ([]string, error) {
	return m.pending, nil
}

type mockBillingPlanRepo struct {
	entries map[string][]models.FinancialPlanEntry
	settled map[string]string
}

func (m *mockBillingPlanRepo) ListByEnrollment(ctx context.Context, enrollmentID string) ([]models.FinancialPlanEntry, error) {
	return m.entries[enrollmentID], nil
}

func (m *mockBillingPlanRepo) MarkPaid(ctx context.Context, id, paymentID string) error {
	if m.settled == nil {
		m.settled = make(map[string]string)
	}
	m.settled[id] = paymentID
	return nil
}

type mockBillingPaymentRepo struct {
	payments map[string][]models.Payment
	created  []models.Payment
}

func (m *mockBillingPaymentRepo) Create(ctx context.Context, payment *models.Payment) error {
	if payment.ID == "" {
		payment.ID = "pay-new"
	}
	if m.payments == nil {
		m.payments = make(map[string][]models.Payment)
	}
	m.payments[payment.EnrollmentID] = append(m.payments[payment.EnrollmentID], *payment)
	m.created = append(m.created, *payment)
	return nil
}

func (m *mockBillingPaymentRepo) ListByEnrollment(ctx context.Context, enrollmentID string) ([]models.Payment, error) {
	return m.payments[enrollmentID], nil
}

func (m *mockBillingPaymentRepo) FindDetailByID(ctx context.Context, id string) (*models.PaymentDetail, error) {
	for _, list := range m.payments {
		for _, p := range list {
			if p.ID == id {
				return &models.PaymentDetail{Payment: p, StudentName: "Ana Costa"}, nil
			}
		}
	}
	return nil, sql.ErrNoRows
}

type mockAuditWriter struct {
	logs []models.AuditLog
}

func (m *mockAuditWriter) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.logs = append(m.logs, *log)
	return nil
}

type mockReceiptQueue struct {
	enqueued []string
}

func (m *mockReceiptQueue) EnqueueForPayment(ctx context.Context, paymentID string) error {
	m.enqueued = append(m.enqueued, paymentID)
	return nil
}

func floatPtr(v float64) *float64 { return &v }

func enrollmentDetailFixture(status models.EnrollmentStatus, fee, feeFine *float64) models.EnrollmentDetail {
	return models.EnrollmentDetail{
		Enrollment: models.Enrollment{
			ID:           "e1",
			StudentID:    "s1",
			ClassID:      "c1",
			SchoolYearID: "sy1",
			CenterID:     "ct1",
			Status:       status,
		},
		StudentName:   "Ana Costa",
		CourseName:    "Informática",
		CourseFee:     fee,
		CourseFeeFine: feeFine,
	}
}

func planEntryFixture(month string, status models.PaymentStatus) models.FinancialPlanEntry {
	return models.FinancialPlanEntry{
		ID:           "fp-" + month,
		SchoolYearID: "sy1",
		Month:        month,
		Year:         2025,
		EnrollmentID: "e1",
		CenterID:     "ct1",
		DueDate:      time.Date(2025, 10, 10, 0, 0, 0, 0, time.UTC),
		Fee:          15000,
		Status:       status,
	}
}

func TestComputePaymentDueNeutralWhenInputsMissing(t *testing.T) {
	detail := enrollmentDetailFixture(models.EnrollmentStatusPending, floatPtr(15000), floatPtr(2000))
	plans := []models.FinancialPlanEntry{planEntryFixture("Outubro", models.PaymentStatusPending)}

	assert.Equal(t, models.PaymentDue{}, ComputePaymentDue(nil, "Outubro", "sy1", plans))
	assert.Equal(t, models.PaymentDue{}, ComputePaymentDue(&detail, "", "sy1", plans))
	assert.Equal(t, models.PaymentDue{}, ComputePaymentDue(&detail, "Outubro", "", plans))
}

func TestComputePaymentDuePlanMissing(t *testing.T) {
	detail := enrollmentDetailFixture(models.EnrollmentStatusPending, floatPtr(15000), floatPtr(2000))
	plans := []models.FinancialPlanEntry{planEntryFixture("Outubro", models.PaymentStatusPending)}

	due := ComputePaymentDue(&detail, "Novembro", "sy1", plans)
	assert.True(t, due.PlanMissing)
	assert.False(t, due.HasPlan)
	assert.Zero(t, due.Amount)

	due = ComputePaymentDue(&detail, "Outubro", "other-year", plans)
	assert.True(t, due.PlanMissing)
}

func TestComputePaymentDueOnTime(t *testing.T) {
	detail := enrollmentDetailFixture(models.EnrollmentStatusPending, floatPtr(15000), floatPtr(2000))
	plans := []models.FinancialPlanEntry{planEntryFixture("Outubro", models.PaymentStatusPending)}

	due := ComputePaymentDue(&detail, "Outubro", "sy1", plans)
	assert.True(t, due.HasPlan)
	assert.False(t, due.PlanMissing)
	assert.Equal(t, 15000.0, due.Amount)
	assert.Zero(t, due.LateFee)
}

func TestComputePaymentDueOverdueAddsLateFee(t *testing.T) {
	detail := enrollmentDetailFixture(models.EnrollmentStatusPending, floatPtr(15000), floatPtr(2000))
	plans := []models.FinancialPlanEntry{planEntryFixture("Outubro", models.PaymentStatusOverdue)}

	due := ComputePaymentDue(&detail, "Outubro", "sy1", plans)
	assert.Equal(t, 17000.0, due.Amount)
	assert.Equal(t, 2000.0, due.LateFee)
	assert.True(t, due.HasPlan)
}

func TestComputePaymentDueCoercesMissingFees(t *testing.T) {
	plans := []models.FinancialPlanEntry{planEntryFixture("Outubro", models.PaymentStatusOverdue)}

	detail := enrollmentDetailFixture(models.EnrollmentStatusPending, nil, nil)
	due := ComputePaymentDue(&detail, "Outubro", "sy1", plans)
	assert.Zero(t, due.Amount)
	assert.Zero(t, due.LateFee)
	assert.True(t, due.HasPlan)

	detail = enrollmentDetailFixture(models.EnrollmentStatusPending, floatPtr(math.NaN()), floatPtr(math.Inf(1)))
	due = ComputePaymentDue(&detail, "Outubro", "sy1", plans)
	assert.False(t, math.IsNaN(due.Amount))
	assert.Zero(t, due.Amount)
	assert.Zero(t, due.LateFee)
}

func TestComputePaymentDuePaidEntryChargesNoLateFee(t *testing.T) {
	detail := enrollmentDetailFixture(models.EnrollmentStatusCompleted, floatPtr(15000), floatPtr(2000))
	plans := []models.FinancialPlanEntry{planEntryFixture("Outubro", models.PaymentStatusPaid)}

	due := ComputePaymentDue(&detail, "Outubro", "sy1", plans)
	assert.Equal(t, 15000.0, due.Amount)
	assert.Zero(t, due.LateFee)
}

func newBillingFixture(status models.EnrollmentStatus, planStatus models.PaymentStatus) (*BillingService, *mockBillingEnrollmentRepo, *mockBillingPlanRepo, *mockBillingPaymentRepo, *mockReceiptQueue) {
	detail := enrollmentDetailFixture(status, floatPtr(15000), floatPtr(2000))
	enrollments := &mockBillingEnrollmentRepo{
		enrollments: map[string]models.Enrollment{"e1": detail.Enrollment},
		details:     map[string]models.EnrollmentDetail{"e1": detail},
	}
	plans := &mockBillingPlanRepo{entries: map[string][]models.FinancialPlanEntry{
		"e1": {planEntryFixture("Outubro", planStatus)},
	}}
	payments := &mockBillingPaymentRepo{}
	receipts := &mockReceiptQueue{}
	svc := NewBillingService(enrollments, plans, payments, &mockAuditWriter{}, receipts, nil, validator.New(), zap.NewNop())
	return svc, enrollments, plans, payments, receipts
}

func TestRecordPaymentSettlesEntryAndCompletesEnrollment(t *testing.T) {
	svc, enrollments, plans, payments, receipts := newBillingFixture(models.EnrollmentStatusPending, models.PaymentStatusPending)

	detail, err := svc.RecordPayment(context.Background(), RecordPaymentRequest{
		EnrollmentID: "e1",
		Month:        "Outubro",
		SchoolYearID: "sy1",
		Method:       models.PaymentMethodCash,
		CenterID:     "ct1",
		UserID:       "u1",
	})
	require.NoError(t, err)
	require.NotNil(t, detail)
	assert.Equal(t, 15000.0, detail.Amount)
	assert.Zero(t, detail.LateFee)
	assert.Equal(t, "Outubro", detail.Month)
	assert.Equal(t, 2025, detail.Year)

	require.Len(t, payments.created, 1)
	assert.Equal(t, payments.created[0].ID, plans.settled["fp-Outubro"])
	assert.Equal(t, models.EnrollmentStatusCompleted, enrollments.status["e1"])
	assert.Equal(t, []string{payments.created[0].ID}, receipts.enqueued)
}

func TestRecordPaymentOverdueChargesLateFee(t *testing.T) {
	svc, _, _, payments, _ := newBillingFixture(models.EnrollmentStatusCompleted, models.PaymentStatusOverdue)

	detail, err := svc.RecordPayment(context.Background(), RecordPaymentRequest{
		EnrollmentID: "e1",
		Month:        "Outubro",
		SchoolYearID: "sy1",
		Method:       models.PaymentMethodExpress,
		CenterID:     "ct1",
		UserID:       "u1",
	})
	require.NoError(t, err)
	assert.Equal(t, 17000.0, detail.Amount)
	assert.Equal(t, 2000.0, detail.LateFee)
	require.Len(t, payments.created, 1)
	assert.Equal(t, 17000.0, payments.created[0].Amount)
}

func TestRecordPaymentBlockedWithoutPlanEntry(t *testing.T) {
	svc, _, _, payments, _ := newBillingFixture(models.EnrollmentStatusPending, models.PaymentStatusPending)

	_, err := svc.RecordPayment(context.Background(), RecordPaymentRequest{
		EnrollmentID: "e1",
		Month:        "Novembro",
		SchoolYearID: "sy1",
		Method:       models.PaymentMethodCash,
		CenterID:     "ct1",
		UserID:       "u1",
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrPlanMissing.Code, appErr.Code)
	assert.Empty(t, payments.created)
}

func TestRecordPaymentRejectsSettledMonth(t *testing.T) {
	svc, _, _, payments, _ := newBillingFixture(models.EnrollmentStatusCompleted, models.PaymentStatusPaid)

	_, err := svc.RecordPayment(context.Background(), RecordPaymentRequest{
		EnrollmentID: "e1",
		Month:        "Outubro",
		SchoolYearID: "sy1",
		Method:       models.PaymentMethodCash,
		CenterID:     "ct1",
		UserID:       "u1",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
	assert.Empty(t, payments.created)
}

func TestRecordPaymentRejectsDroppedEnrollment(t *testing.T) {
	svc, _, _, payments, _ := newBillingFixture(models.EnrollmentStatusDropped, models.PaymentStatusPending)

	_, err := svc.RecordPayment(context.Background(), RecordPaymentRequest{
		EnrollmentID: "e1",
		Month:        "Outubro",
		SchoolYearID: "sy1",
		Method:       models.PaymentMethodCash,
		CenterID:     "ct1",
		UserID:       "u1",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrEnrollmentClosed.Code, appErrors.FromError(err).Code)
	assert.Empty(t, payments.created)
}

func TestRecordPaymentRejectsUnknownMethod(t *testing.T) {
	svc, _, _, _, _ := newBillingFixture(models.EnrollmentStatusPending, models.PaymentStatusPending)

	_, err := svc.RecordPayment(context.Background(), RecordPaymentRequest{
		EnrollmentID: "e1",
		Month:        "Outubro",
		SchoolYearID: "sy1",
		Method:       "Cheque",
		CenterID:     "ct1",
		UserID:       "u1",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestReconcileFirstPaymentCompletesEnrollment(t *testing.T) {
	svc, enrollments, _, payments, _ := newBillingFixture(models.EnrollmentStatusEnrolled, models.PaymentStatusPending)
	payments.payments = map[string][]models.Payment{"e1": {{ID: "p1", EnrollmentID: "e1"}}}

	require.NoError(t, svc.ReconcileEnrollmentAfterPayment(context.Background(), "e1"))
	assert.Equal(t, models.EnrollmentStatusCompleted, enrollments.status["e1"])
}

func TestReconcilePendingEnrollmentCompletesRegardlessOfCount(t *testing.T) {
	svc, enrollments, _, payments, _ := newBillingFixture(models.EnrollmentStatusPending, models.PaymentStatusPending)
	payments.payments = map[string][]models.Payment{"e1": {
		{ID: "p1", EnrollmentID: "e1"},
		{ID: "p2", EnrollmentID: "e1"},
	}}

	require.NoError(t, svc.ReconcileEnrollmentAfterPayment(context.Background(), "e1"))
	assert.Equal(t, models.EnrollmentStatusCompleted, enrollments.status["e1"])
}

func TestReconcileLeavesCompletedEnrollmentUntouched(t *testing.T) {
	svc, enrollments, _, payments, _ := newBillingFixture(models.EnrollmentStatusCompleted, models.PaymentStatusPending)
	payments.payments = map[string][]models.Payment{"e1": {
		{ID: "p1", EnrollmentID: "e1"},
		{ID: "p2", EnrollmentID: "e1"},
	}}

	require.NoError(t, svc.ReconcileEnrollmentAfterPayment(context.Background(), "e1"))
	assert.Empty(t, enrollments.status)
}

func TestReconcileRejectsDroppedEnrollment(t *testing.T) {
	svc, enrollments, _, _, _ := newBillingFixture(models.EnrollmentStatusDropped, models.PaymentStatusPending)

	err := svc.ReconcileEnrollmentAfterPayment(context.Background(), "e1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrEnrollmentClosed.Code, appErrors.FromError(err).Code)
	assert.Empty(t, enrollments.status)
}

func TestCancelEnrollment(t *testing.T) {
	svc, enrollments, _, _, _ := newBillingFixture(models.EnrollmentStatusPending, models.PaymentStatusPending)

	enrollment, err := svc.CancelEnrollment(context.Background(), "e1", "u1")
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusDropped, enrollment.Status)
	assert.Equal(t, models.EnrollmentStatusDropped, enrollments.status["e1"])
}

func TestCancelEnrollmentRejectsTerminal(t *testing.T) {
	for _, status := range []models.EnrollmentStatus{models.EnrollmentStatusCompleted, models.EnrollmentStatusDropped} {
		svc, enrollments, _, _, _ := newBillingFixture(status, models.PaymentStatusPending)

		_, err := svc.CancelEnrollment(context.Background(), "e1", "u1")
		require.Error(t, err)
		assert.Equal(t, appErrors.ErrEnrollmentClosed.Code, appErrors.FromError(err).Code)
		assert.Empty(t, enrollments.status)
	}
}

func TestReconcileOutstanding(t *testing.T) {
	svc, enrollments, _, _, _ := newBillingFixture(models.EnrollmentStatusPending, models.PaymentStatusPending)
	enrollments.pending = []string{"e1"}

	completed, err := svc.ReconcileOutstanding(context.Background(), "ct1")
	require.NoError(t, err)
	assert.Equal(t, 1, completed)
	assert.Equal(t, models.EnrollmentStatusCompleted, enrollments.status["e1"])
}

func TestComputeDueNeutralWhenParamsMissing(t *testing.T) {
	svc, _, _, _, _ := newBillingFixture(models.EnrollmentStatusPending, models.PaymentStatusPending)

	due, err := svc.ComputeDue(context.Background(), "", "Outubro", "sy1")
	require.NoError(t, err)
	assert.Equal(t, &models.PaymentDue{}, due)
}

func TestComputeDueLoadsPlan(t *testing.T) {
	svc, _, _, _, _ := newBillingFixture(models.EnrollmentStatusPending, models.PaymentStatusOverdue)

	due, err := svc.ComputeDue(context.Background(), "e1", "Outubro", "sy1")
	require.NoError(t, err)
	assert.Equal(t, 17000.0, due.Amount)
	assert.Equal(t, 2000.0, due.LateFee)
}
