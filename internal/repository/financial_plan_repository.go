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

// FinancialPlanRepository handles persistence of financial plan entries.
type FinancialPlanRepository struct {
	db *sqlx.DB
}

// NewFinancialPlanRepository constructs the repository.
func NewFinancialPlanRepository(db *sqlx.DB) *FinancialPlanRepository {
	return &FinancialPlanRepository{db: db}
}

const planColumns = `id, school_year_id, month, year, enrollment_id, center_id, due_date, fee, status, payment_id`

// List returns plan entries filtered by the provided criteria.
func (r *FinancialPlanRepository) List(ctx context.Context, filter models.FinancialPlanFilter) ([]models.FinancialPlanEntry, int, error) {
	var conditions []string
	var args []interface{}

	if filter.CenterID != "" {
		conditions = append(conditions, fmt.Sprintf("center_id = $%d", len(args)+1))
		args = append(args, filter.CenterID)
	}
	if filter.EnrollmentID != "" {
		conditions = append(conditions, fmt.Sprintf("enrollment_id = $%d", len(args)+1))
		args = append(args, filter.EnrollmentID)
	}
	if filter.SchoolYearID != "" {
		conditions = append(conditions, fmt.Sprintf("school_year_id = $%d", len(args)+1))
		args = append(args, filter.SchoolYearID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, filter.Status)
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
		size = 50
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT %s FROM financial_plan_entries%s ORDER BY due_date ASC LIMIT %d OFFSET %d`,
		planColumns, clause, size, offset)

	var entries []models.FinancialPlanEntry
	if err := r.db.SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list financial plan entries: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM financial_plan_entries%s", clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count financial plan entries: %w", err)
	}
	return entries, total, nil
}

// ListByEnrollment returns all plan entries for an enrollment across school years.
func (r *FinancialPlanRepository) ListByEnrollment(ctx context.Context, enrollmentID string) ([]models.FinancialPlanEntry, error) {
	query := fmt.Sprintf(`SELECT %s FROM financial_plan_entries WHERE enrollment_id = $1 ORDER BY due_date ASC`, planColumns)
	var entries []models.FinancialPlanEntry
	if err := r.db.SelectContext(ctx, &entries, query, enrollmentID); err != nil {
		return nil, fmt.Errorf("list plan entries for enrollment: %w", err)
	}
	return entries, nil
}

// FindByID returns a plan entry by its ID.
func (r *FinancialPlanRepository) FindByID(ctx context.Context, id string) (*models.FinancialPlanEntry, error) {
	query := fmt.Sprintf(`SELECT %s FROM financial_plan_entries WHERE id = $1`, planColumns)
	var entry models.FinancialPlanEntry
	if err := r.db.GetContext(ctx, &entry, query, id); err != nil {
		return nil, err
	}
	return &entry, nil
}

// CreateBatch inserts a set of plan entries, skipping months that already
// exist for the enrollment and school year.
func (r *FinancialPlanRepository) CreateBatch(ctx context.Context, entries []models.FinancialPlanEntry) (int, error) {
	if len(entries) == 0 {
		return 0, nil
	}
	const query = `INSERT INTO financial_plan_entries (id, school_year_id, month, year, enrollment_id, center_id, due_date, fee, status, payment_id)
        VALUES (:id, :school_year_id, :month, :year, :enrollment_id, :center_id, :due_date, :fee, :status, :payment_id)
        ON CONFLICT (enrollment_id, month, school_year_id) DO NOTHING`

	created := 0
	for i := range entries {
		if entries[i].ID == "" {
			entries[i].ID = uuid.NewString()
		}
		if entries[i].Status == "" {
			entries[i].Status = models.PaymentStatusPending
		}
		result, err := r.db.NamedExecContext(ctx, query, entries[i])
		if err != nil {
			return created, fmt.Errorf("create plan entry %s/%d: %w", entries[i].Month, entries[i].Year, err)
		}
		if rows, err := result.RowsAffected(); err == nil {
			created += int(rows)
		}
	}
	return created, nil
}

// MarkPaid settles a plan entry, linking the payment that settled it.
func (r *FinancialPlanRepository) MarkPaid(ctx context.Context, id, paymentID string) error {
	const query = `UPDATE financial_plan_entries SET status = $2, payment_id = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, models.PaymentStatusPaid, paymentID); err != nil {
		return fmt.Errorf("mark plan entry paid: %w", err)
	}
	return nil
}

// MarkOverdueBefore flips pending entries whose due date passed the cutoff to
// overdue, returning the number of entries updated.
func (r *FinancialPlanRepository) MarkOverdueBefore(ctx context.Context, cutoff time.Time) (int, error) {
	const query = `UPDATE financial_plan_entries SET status = $1 WHERE status = $2 AND due_date < $3`
	result, err := r.db.ExecContext(ctx, query, models.PaymentStatusOverdue, models.PaymentStatusPending, cutoff)
	if err != nil {
		return 0, fmt.Errorf("mark plan entries overdue: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("count overdue updates: %w", err)
	}
	return int(rows), nil
}

// CountByStatus aggregates plan entry totals per status for a center and year.
func (r *FinancialPlanRepository) CountByStatus(ctx context.Context, centerID, schoolYearID string) (map[models.PaymentStatus]int, error) {
	query := `SELECT status, COUNT(*) AS total FROM financial_plan_entries WHERE 1=1`
	var args []interface{}
	if centerID != "" {
		query += fmt.Sprintf(" AND center_id = $%d", len(args)+1)
		args = append(args, centerID)
	}
	if schoolYearID != "" {
		query += fmt.Sprintf(" AND school_year_id = $%d", len(args)+1)
		args = append(args, schoolYearID)
	}
	query += " GROUP BY status"

	rows, err := r.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("count plan entries by status: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	counts := make(map[models.PaymentStatus]int)
	for rows.Next() {
		var status models.PaymentStatus
		var total int
		if err := rows.Scan(&status, &total); err != nil {
			return nil, fmt.Errorf("scan plan status count: %w", err)
		}
		counts[status] = total
	}
	return counts, rows.Err()
}
