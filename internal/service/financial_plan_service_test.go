package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/letrus-care/letrus-api/internal/models"
)

type mockPlanRepo struct {
	created      []models.FinancialPlanEntry
	overdueCount int
	cutoff       time.Time
}

func (m *mockPlanRepo) List(ctx context.Context, filter models.FinancialPlanFilter) ([]models.FinancialPlanEntry, int, error) {
	return m.created, len(m.created), nil
}

func (m *mockPlanRepo) ListByEnrollment(ctx context.Context, enrollmentID string) ([]models.FinancialPlanEntry, error) {
	return m.created, nil
}

func (m *mockPlanRepo) CreateBatch(ctx context.Context, entries []models.FinancialPlanEntry) (int, error) {
	m.created = append(m.created, entries...)
	return len(entries), nil
}

func (m *mockPlanRepo) MarkOverdueBefore(ctx context.Context, cutoff time.Time) (int, error) {
	m.cutoff = cutoff
	return m.overdueCount, nil
}

type mockPlanEnrollmentReader struct {
	details map[string]models.EnrollmentDetail
}

func (m *mockPlanEnrollmentReader) FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	if d, ok := m.details[id]; ok {
		return &d, nil
	}
	return nil, sql.ErrNoRows
}

func TestGenerateForEnrollmentCreatesFullSchedule(t *testing.T) {
	repo := &mockPlanRepo{}
	detail := enrollmentDetailFixture(models.EnrollmentStatusPending, floatPtr(15000), floatPtr(2000))
	readers := &mockPlanEnrollmentReader{details: map[string]models.EnrollmentDetail{"e1": detail}}
	svc := NewFinancialPlanService(repo, readers, 10, 0, zap.NewNop())

	schoolYear := &models.SchoolYear{
		ID:        "sy1",
		Name:      "2025/2026",
		StartDate: time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC),
		CenterID:  "ct1",
	}

	created, err := svc.GenerateForEnrollment(context.Background(), &detail.Enrollment, schoolYear)
	require.NoError(t, err)
	assert.Equal(t, len(models.MonthLabels), created)
	require.Len(t, repo.created, len(models.MonthLabels))

	first := repo.created[0]
	assert.Equal(t, "Setembro", first.Month)
	assert.Equal(t, 2025, first.Year)
	assert.Equal(t, time.Date(2025, 9, 10, 0, 0, 0, 0, time.UTC), first.DueDate)
	assert.Equal(t, 15000.0, first.Fee)
	assert.Equal(t, models.PaymentStatusPending, first.Status)

	last := repo.created[len(repo.created)-1]
	assert.Equal(t, "Agosto", last.Month)
	assert.Equal(t, 2026, last.Year)
}

func TestGenerateForEnrollmentSkipsScholarship(t *testing.T) {
	repo := &mockPlanRepo{}
	svc := NewFinancialPlanService(repo, &mockPlanEnrollmentReader{}, 10, 0, zap.NewNop())

	enrollment := &models.Enrollment{ID: "e1", Scholarship: true}
	created, err := svc.GenerateForEnrollment(context.Background(), enrollment, &models.SchoolYear{ID: "sy1"})
	require.NoError(t, err)
	assert.Zero(t, created)
	assert.Empty(t, repo.created)
}

func TestGenerateForEnrollmentZeroFeeWhenCourseHasNone(t *testing.T) {
	repo := &mockPlanRepo{}
	detail := enrollmentDetailFixture(models.EnrollmentStatusPending, nil, nil)
	readers := &mockPlanEnrollmentReader{details: map[string]models.EnrollmentDetail{"e1": detail}}
	svc := NewFinancialPlanService(repo, readers, 10, 0, zap.NewNop())

	schoolYear := &models.SchoolYear{ID: "sy1", StartDate: time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)}
	_, err := svc.GenerateForEnrollment(context.Background(), &detail.Enrollment, schoolYear)
	require.NoError(t, err)
	for _, entry := range repo.created {
		assert.Zero(t, entry.Fee)
	}
}

func TestMarkOverdueSweepAppliesGracePeriod(t *testing.T) {
	repo := &mockPlanRepo{overdueCount: 3}
	svc := NewFinancialPlanService(repo, &mockPlanEnrollmentReader{}, 10, 5, zap.NewNop())

	updated, err := svc.MarkOverdueSweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, updated)

	expected := time.Now().UTC().AddDate(0, 0, -5)
	assert.WithinDuration(t, expected, repo.cutoff, time.Minute)
}
