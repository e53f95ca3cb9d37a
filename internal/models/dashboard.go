package models

import "time"

// DashboardSummary aggregates the numbers shown on the centre dashboard.
type DashboardSummary struct {
	CenterID            string                `json:"center_id"`
	SchoolYearID        string                `json:"school_year_id"`
	Enrollments         map[EnrollmentStatus]int `json:"enrollments"`
	PlanEntries         map[PaymentStatus]int `json:"plan_entries"`
	MonthlyRevenue      []MonthlyRevenuePoint `json:"monthly_revenue"`
	TotalRevenue        float64               `json:"total_revenue"`
	OutstandingReconciled int                 `json:"outstanding_reconciled"`
	GeneratedAt         time.Time             `json:"generated_at"`
}

// MonthlyRevenuePoint is one month's collected total, in plan month order.
type MonthlyRevenuePoint struct {
	Month string  `json:"month"`
	Total float64 `json:"total"`
}

// SystemMetrics is a lightweight aggregate of runtime counters for the
// dashboard, distinct from the Prometheus endpoint.
type SystemMetrics struct {
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	PaymentsRecorded         uint64    `json:"payments_recorded"`
	ReceiptFailures          uint64    `json:"receipt_failures"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}
