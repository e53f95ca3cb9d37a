package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/letrus-care/letrus-api/internal/models"
)

type mockDashboardCounters struct {
	enrollments map[models.EnrollmentStatus]int
	plans       map[models.PaymentStatus]int
	revenue     map[string]float64
	calls       int
}

func (m *mockDashboardCounters) CountByStatus(ctx context.Context, centerID, schoolYearID string) (map[models.EnrollmentStatus]int, error) {
	m.calls++
	return m.enrollments, nil
}

type mockDashboardPlans struct {
	plans map[models.PaymentStatus]int
}

func (m *mockDashboardPlans) CountByStatus(ctx context.Context, centerID, schoolYearID string) (map[models.PaymentStatus]int, error) {
	return m.plans, nil
}

type mockDashboardRevenue struct {
	revenue map[string]float64
}

func (m *mockDashboardRevenue) MonthlyRevenue(ctx context.Context, centerID, schoolYearID string) (map[string]float64, error) {
	return m.revenue, nil
}

func TestDashboardSummaryAggregates(t *testing.T) {
	enrollments := &mockDashboardCounters{enrollments: map[models.EnrollmentStatus]int{
		models.EnrollmentStatusCompleted: 12,
		models.EnrollmentStatusPending:   3,
	}}
	plans := &mockDashboardPlans{plans: map[models.PaymentStatus]int{
		models.PaymentStatusPaid:    20,
		models.PaymentStatusOverdue: 4,
	}}
	revenue := &mockDashboardRevenue{revenue: map[string]float64{
		"Setembro": 150000,
		"Outubro":  135000,
	}}
	svc := NewDashboardService(enrollments, plans, revenue, nil, nil, time.Minute, zap.NewNop())

	summary, err := svc.Summary(context.Background(), "ct1", "sy1")
	require.NoError(t, err)
	assert.Equal(t, 12, summary.Enrollments[models.EnrollmentStatusCompleted])
	assert.Equal(t, 4, summary.PlanEntries[models.PaymentStatusOverdue])
	assert.Equal(t, 285000.0, summary.TotalRevenue)

	require.Len(t, summary.MonthlyRevenue, len(models.MonthLabels))
	assert.Equal(t, "Setembro", summary.MonthlyRevenue[0].Month)
	assert.Equal(t, 150000.0, summary.MonthlyRevenue[0].Total)
	assert.Zero(t, summary.MonthlyRevenue[len(summary.MonthlyRevenue)-1].Total)
}
