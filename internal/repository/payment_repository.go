package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/letrus-care/letrus-api/internal/models"
)

// PaymentRepository handles persistence of payments.
type PaymentRepository struct {
	db *sqlx.DB
}

// NewPaymentRepository constructs the repository.
func NewPaymentRepository(db *sqlx.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

const paymentColumns = `p.id, p.enrollment_id, p.amount, p.late_fee, p.paid_at, p.month, p.year, p.school_year_id, p.status, p.method, p.center_id, p.user_id, p.notes`

const paymentDetailJoins = `FROM payments p
LEFT JOIN enrollments e ON e.id = p.enrollment_id
LEFT JOIN students s ON s.id = e.student_id
LEFT JOIN classes cl ON cl.id = e.class_id
LEFT JOIN courses co ON co.id = cl.course_id
LEFT JOIN centers ce ON ce.id = p.center_id
LEFT JOIN users u ON u.id = p.user_id`

const paymentDetailColumns = paymentColumns + `,
        s.full_name AS student_name, co.name AS course_name, cl.name AS class_name,
        ce.name AS center_name, u.full_name AS user_name`

// Create persists a new payment record. Payments are immutable afterwards.
func (r *PaymentRepository) Create(ctx context.Context, payment *models.Payment) error {
	if payment.ID == "" {
		payment.ID = uuid.NewString()
	}
	if payment.PaidAt.IsZero() {
		payment.PaidAt = time.Now().UTC()
	}
	if payment.Status == "" {
		payment.Status = models.PaymentStatusPaid
	}
	const query = `INSERT INTO payments (id, enrollment_id, amount, late_fee, paid_at, month, year, school_year_id, status, method, center_id, user_id, notes)
        VALUES (:id, :enrollment_id, :amount, :late_fee, :paid_at, :month, :year, :school_year_id, :status, :method, :center_id, :user_id, :notes)`
	if _, err := r.db.NamedExecContext(ctx, query, payment); err != nil {
		return fmt.Errorf("create payment: %w", err)
	}
	return nil
}

// ListByEnrollment returns every payment recorded for an enrollment.
func (r *PaymentRepository) ListByEnrollment(ctx context.Context, enrollmentID string) ([]models.Payment, error) {
	query := fmt.Sprintf(`SELECT %s FROM payments p WHERE p.enrollment_id = $1 ORDER BY p.paid_at ASC`, paymentColumns)
	var payments []models.Payment
	if err := r.db.SelectContext(ctx, &payments, query, enrollmentID); err != nil {
		return nil, fmt.Errorf("list payments for enrollment: %w", err)
	}
	return payments, nil
}

// FindByID returns a payment by its ID.
func (r *PaymentRepository) FindByID(ctx context.Context, id string) (*models.Payment, error) {
	query := fmt.Sprintf(`SELECT %s FROM payments p WHERE p.id = $1`, paymentColumns)
	var payment models.Payment
	if err := r.db.GetContext(ctx, &payment, query, id); err != nil {
		return nil, err
	}
	return &payment, nil
}

// FindDetailByID returns a payment with names resolved for receipts.
func (r *PaymentRepository) FindDetailByID(ctx context.Context, id string) (*models.PaymentDetail, error) {
	query := fmt.Sprintf(`SELECT %s %s WHERE p.id = $1`, paymentDetailColumns, paymentDetailJoins)
	var detail models.PaymentDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// List returns payments filtered by the provided criteria.
func (r *PaymentRepository) List(ctx context.Context, filter models.PaymentFilter) ([]models.PaymentDetail, int, error) {
	var conditions []string
	var args []interface{}

	if filter.EnrollmentID != "" {
		conditions = append(conditions, fmt.Sprintf("p.enrollment_id = $%d", len(args)+1))
		args = append(args, filter.EnrollmentID)
	}
	if filter.CenterID != "" {
		conditions = append(conditions, fmt.Sprintf("p.center_id = $%d", len(args)+1))
		args = append(args, filter.CenterID)
	}
	if filter.SchoolYearID != "" {
		conditions = append(conditions, fmt.Sprintf("p.school_year_id = $%d", len(args)+1))
		args = append(args, filter.SchoolYearID)
	}
	if filter.Method != "" {
		conditions = append(conditions, fmt.Sprintf("p.method = $%d", len(args)+1))
		args = append(args, filter.Method)
	}
	if filter.From != nil {
		conditions = append(conditions, fmt.Sprintf("p.paid_at >= $%d", len(args)+1))
		args = append(args, *filter.From)
	}
	if filter.To != nil {
		conditions = append(conditions, fmt.Sprintf("p.paid_at <= $%d", len(args)+1))
		args = append(args, *filter.To)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT %s %s%s ORDER BY p.paid_at DESC LIMIT %d OFFSET %d`,
		paymentDetailColumns, paymentDetailJoins, clause, size, offset)

	var payments []models.PaymentDetail
	if err := r.db.SelectContext(ctx, &payments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list payments: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s%s", paymentDetailJoins, clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count payments: %w", err)
	}
	return payments, total, nil
}

// MonthlyRevenue aggregates collected amounts per plan month for a school year.
func (r *PaymentRepository) MonthlyRevenue(ctx context.Context, centerID, schoolYearID string) (map[string]float64, error) {
	query := `SELECT month, COALESCE(SUM(amount), 0) AS total FROM payments WHERE 1=1`
	var args []interface{}
	if centerID != "" {
		query += fmt.Sprintf(" AND center_id = $%d", len(args)+1)
		args = append(args, centerID)
	}
	if schoolYearID != "" {
		query += fmt.Sprintf(" AND school_year_id = $%d", len(args)+1)
		args = append(args, schoolYearID)
	}
	query += " GROUP BY month"

	rows, err := r.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("aggregate monthly revenue: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	totals := make(map[string]float64)
	for rows.Next() {
		var month string
		var total float64
		if err := rows.Scan(&month, &total); err != nil {
			return nil, fmt.Errorf("scan monthly revenue: %w", err)
		}
		totals[month] = total
	}
	return totals, rows.Err()
}
