package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/letrus-care/letrus-api/internal/models"
	appErrors "github.com/letrus-care/letrus-api/pkg/errors"
)

type dashboardEnrollmentCounter interface {
	CountByStatus(ctx context.Context, centerID, schoolYearID string) (map[models.EnrollmentStatus]int, error)
}

type dashboardPlanCounter interface {
	CountByStatus(ctx context.Context, centerID, schoolYearID string) (map[models.PaymentStatus]int, error)
}

type dashboardRevenueReader interface {
	MonthlyRevenue(ctx context.Context, centerID, schoolYearID string) (map[string]float64, error)
}

// DashboardService aggregates the numbers shown on the centre dashboard,
// cached per centre and school year.
type DashboardService struct {
	enrollments dashboardEnrollmentCounter
	plans       dashboardPlanCounter
	payments    dashboardRevenueReader
	cache       *CacheService
	metrics     *MetricsService
	cacheTTL    time.Duration
	logger      *zap.Logger
}

// NewDashboardService constructs DashboardService.
func NewDashboardService(enrollments dashboardEnrollmentCounter, plans dashboardPlanCounter, payments dashboardRevenueReader, cache *CacheService, metrics *MetricsService, cacheTTL time.Duration, logger *zap.Logger) *DashboardService {
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardService{
		enrollments: enrollments,
		plans:       plans,
		payments:    payments,
		cache:       cache,
		metrics:     metrics,
		cacheTTL:    cacheTTL,
		logger:      logger,
	}
}

// Summary builds the dashboard aggregate for a centre and school year.
func (s *DashboardService) Summary(ctx context.Context, centerID, schoolYearID string) (*models.DashboardSummary, error) {
	cacheKey := fmt.Sprintf("dash:summary:%s:%s", centerID, schoolYearID)
	var cached models.DashboardSummary
	if hit, err := s.cache.Get(ctx, cacheKey, &cached); err == nil && hit {
		return &cached, nil
	}

	enrollmentCounts, err := s.enrollments.CountByStatus(ctx, centerID, schoolYearID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count enrollments")
	}
	planCounts, err := s.plans.CountByStatus(ctx, centerID, schoolYearID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count plan entries")
	}
	revenue, err := s.payments.MonthlyRevenue(ctx, centerID, schoolYearID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to aggregate revenue")
	}

	points := make([]models.MonthlyRevenuePoint, 0, len(models.MonthLabels))
	var total float64
	for _, month := range models.MonthLabels {
		amount := revenue[month]
		points = append(points, models.MonthlyRevenuePoint{Month: month, Total: amount})
		total += amount
	}

	summary := &models.DashboardSummary{
		CenterID:       centerID,
		SchoolYearID:   schoolYearID,
		Enrollments:    enrollmentCounts,
		PlanEntries:    planCounts,
		MonthlyRevenue: points,
		TotalRevenue:   total,
		GeneratedAt:    time.Now().UTC(),
	}

	if err := s.cache.Set(ctx, cacheKey, summary, s.cacheTTL); err != nil {
		s.logger.Warn("failed to cache dashboard summary", zap.Error(err))
	}
	return summary, nil
}

// SystemMetrics exposes the runtime counters snapshot.
func (s *DashboardService) SystemMetrics() models.SystemMetrics {
	return s.metrics.Snapshot()
}
