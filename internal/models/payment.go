package models

import "time"

// PaymentMethod enumerates the accepted settlement channels.
type PaymentMethod string

// Accepted payment methods.
const (
	PaymentMethodCash     PaymentMethod = "Dinheiro"
	PaymentMethodExpress  PaymentMethod = "Multicaixa Express"
	PaymentMethodTransfer PaymentMethod = "Transferência Bancária (ATM)"
)

// Valid reports whether the method is one of the accepted channels.
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodCash, PaymentMethodExpress, PaymentMethodTransfer:
		return true
	}
	return false
}

// Payment represents a single settlement transaction against one month's
// tuition obligation. Payments are immutable once recorded;
// amount = base fee + late fee at submission time.
type Payment struct {
	ID           string        `db:"id" json:"id"`
	EnrollmentID string        `db:"enrollment_id" json:"enrollment_id"`
	Amount       float64       `db:"amount" json:"amount"`
	LateFee      float64       `db:"late_fee" json:"late_fee"`
	PaidAt       time.Time     `db:"paid_at" json:"paid_at"`
	Month        string        `db:"month" json:"month"`
	Year         int           `db:"year" json:"year"`
	SchoolYearID string        `db:"school_year_id" json:"school_year_id"`
	Status       PaymentStatus `db:"status" json:"status"`
	Method       PaymentMethod `db:"method" json:"method"`
	CenterID     string        `db:"center_id" json:"center_id"`
	UserID       string        `db:"user_id" json:"user_id"`
	Notes        *string       `db:"notes" json:"notes,omitempty"`
}

// PaymentDetail enriches Payment with names for receipts and listings.
type PaymentDetail struct {
	Payment
	StudentName string `db:"student_name" json:"student_name"`
	CourseName  string `db:"course_name" json:"course_name"`
	ClassName   string `db:"class_name" json:"class_name"`
	CenterName  string `db:"center_name" json:"center_name"`
	UserName    string `db:"user_name" json:"user_name"`
}

// PaymentFilter provides filters for listing payments.
type PaymentFilter struct {
	EnrollmentID string
	CenterID     string
	SchoolYearID string
	Method       PaymentMethod
	From         *time.Time
	To           *time.Time
	Page         int
	PageSize     int
}

/// PaymentDue is the outcome of the payment calculation: what should be
// charged for a requested month. A zero-valued result with PlanMissing false
// means the inputs were not ready; PlanMissing true means no plan entry
// exists for the month and submission must be blocked.
type PaymentDue struct {
	Amount      float64 `json:"amount"`
	LateFee     float64 `json:"late_fee"`
	HasPlan     bool    `json:"has_plan"`
	PlanMissing bool    `json:"plan_missing"`
}
