package models

import "time"

// PaymentStatus is shared between financial plan entries and payments.
type PaymentStatus string

// Possible settlement statuses. An overdue plan entry carries the late fee
// when settled; a paid entry always links the payment that settled it.
const (
	PaymentStatusPaid    PaymentStatus = "paid"
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusOverdue PaymentStatus = "overdue"
)

// FinancialPlanEntry represents one month's tuition obligation for one
// enrollment within one school year. At most one entry exists per
// (enrollment, month, school year) tuple.
type FinancialPlanEntry struct {
	ID           string        `db:"id" json:"id"`
	SchoolYearID string        `db:"school_year_id" json:"school_year_id"`
	Month        string        `db:"month" json:"month"`
	Year         int           `db:"year" json:"year"`
	EnrollmentID string        `db:"enrollment_id" json:"enrollment_id"`
	CenterID     string        `db:"center_id" json:"center_id"`
	DueDate      time.Time     `db:"due_date" json:"due_date"`
	Fee          float64       `db:"fee" json:"fee"`
	Status       PaymentStatus `db:"status" json:"status"`
	PaymentID    *string       `db:"payment_id" json:"payment_id,omitempty"`
}

// FinancialPlanFilter provides filters for listing plan entries.
type FinancialPlanFilter struct {
	CenterID     string
	EnrollmentID string
	SchoolYearID string
	Status       PaymentStatus
	Page         int
	PageSize     int
}

// MonthLabels holds the localised month names used by plan entries, in school
// calendar order. Plan generation emits one entry per label.
var MonthLabels = []string{
	"Setembro", "Outubro", "Novembro", "Dezembro",
	"Janeiro", "Fevereiro", "Março", "Abril",
	"Maio", "Junho", "Julho", "Agosto",
}
