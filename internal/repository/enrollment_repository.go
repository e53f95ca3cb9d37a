package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/letrus-care/letrus-api/internal/models"
)

// EnrollmentRepository handles persistence of enrollments.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

const enrollmentDetailColumns = `e.id, e.student_id, e.class_id, e.school_year_id, e.center_id, e.enrolled_at, e.status, e.scholarship,
        s.full_name AS student_name, cl.name AS class_name,
        co.id AS course_id, co.name AS course_name, g.name AS grade_name,
        sy.name AS school_year_name, co.fee AS course_fee, co.fee_fine AS course_fee_fine`

const enrollmentDetailJoins = `FROM enrollments e
LEFT JOIN students s ON s.id = e.student_id
LEFT JOIN classes cl ON cl.id = e.class_id
LEFT JOIN courses co ON co.id = cl.course_id
LEFT JOIN grades g ON g.id = cl.grade_id
LEFT JOIN school_years sy ON sy.id = e.school_year_id`

// List returns enrollments filtered by the provided criteria.
func (r *EnrollmentRepository) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	var conditions []string
	var args []interface{}

	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("e.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.ClassID != "" {
		conditions = append(conditions, fmt.Sprintf("e.class_id = $%d", len(args)+1))
		args = append(args, filter.ClassID)
	}
	if filter.SchoolYearID != "" {
		conditions = append(conditions, fmt.Sprintf("e.school_year_id = $%d", len(args)+1))
		args = append(args, filter.SchoolYearID)
	}
	if filter.CenterID != "" {
		conditions = append(conditions, fmt.Sprintf("e.center_id = $%d", len(args)+1))
		args = append(args, filter.CenterID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("e.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"enrolled_at":  "e.enrolled_at",
		"student_name": "s.full_name",
		"class_name":   "cl.name",
	}
	sortBy := filter.SortBy
	if sortBy == "" {
		sortBy = "enrolled_at"
	}
	orderBy := allowedSorts[sortBy]
	if orderBy == "" {
		orderBy = "e.enrolled_at"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
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

	query := fmt.Sprintf(`SELECT %s %s%s ORDER BY %s %s LIMIT %d OFFSET %d`,
		enrollmentDetailColumns, enrollmentDetailJoins, clause, orderBy, order, size, offset)

	var enrollments []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &enrollments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list enrollments: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s%s", enrollmentDetailJoins, clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count enrollments: %w", err)
	}
	return enrollments, total, nil
}

// FindByID returns an enrollment by its ID.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	const query = `SELECT id, student_id, class_id, school_year_id, center_id, enrolled_at, status, scholarship FROM enrollments WHERE id = $1`
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, id); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// FindDetailByID returns an enrollment with student, class, and fee schedule info.
func (r *EnrollmentRepository) FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	query := fmt.Sprintf(`SELECT %s %s WHERE e.id = $1`, enrollmentDetailColumns, enrollmentDetailJoins)
	var detail models.EnrollmentDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// ExistsOpen checks whether a non-terminal enrollment exists for the combination.
func (r *EnrollmentRepository) ExistsOpen(ctx context.Context, studentID, classID, schoolYearID string) (bool, error) {
	const query = `SELECT 1 FROM enrollments WHERE student_id = $1 AND class_id = $2 AND school_year_id = $3 AND status IN ($4, $5) LIMIT 1`
	var exists int
	err := r.db.GetContext(ctx, &exists, query, studentID, classID, schoolYearID,
		models.EnrollmentStatusEnrolled, models.EnrollmentStatusPending)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check open enrollment: %w", err)
	}
	return true, nil
}

// Create persists a new enrollment record.
func (r *EnrollmentRepository) Create(ctx context.Context, enrollment *models.Enrollment) error {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	if enrollment.EnrolledAt.IsZero() {
		enrollment.EnrolledAt = time.Now().UTC()
	}
	if enrollment.Status == "" {
		enrollment.Status = models.EnrollmentStatusPending
	}
	const query = `INSERT INTO enrollments (id, student_id, class_id, school_year_id, center_id, enrolled_at, status, scholarship)
        VALUES (:id, :student_id, :class_id, :school_year_id, :center_id, :enrolled_at, :status, :scholarship)`
	if _, err := r.db.NamedExecContext(ctx, query, enrollment); err != nil {
		return fmt.Errorf("create enrollment: %w", err)
	}
	return nil
}

// UpdateStatus updates the status of an enrollment.
func (r *EnrollmentRepository) UpdateStatus(ctx context.Context, id string, status models.EnrollmentStatus) error {
	const query = `UPDATE enrollments SET status = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status); err != nil {
		return fmt.Errorf("update enrollment status: %w", err)
	}
	return nil
}

// ListPendingWithPayments returns IDs of pending enrollments that already
// have at least one recorded payment. Used by the reconciliation sweep.
func (r *EnrollmentRepository) ListPendingWithPayments(ctx context.Context, centerID string) ([]string, error) {
	query := `SELECT e.id FROM enrollments e
        WHERE e.status = $1 AND EXISTS (SELECT 1 FROM payments p WHERE p.enrollment_id = e.id)`
	args := []interface{}{models.EnrollmentStatusPending}
	if centerID != "" {
		query += fmt.Sprintf(" AND e.center_id = $%d", len(args)+1)
		args = append(args, centerID)
	}
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, args...); err != nil {
		return nil, fmt.Errorf("list pending enrollments with payments: %w", err)
	}
	return ids, nil
}

// CountByStatus aggregates enrollment totals per status for a center and year.
func (r *EnrollmentRepository) CountByStatus(ctx context.Context, centerID, schoolYearID string) (map[models.EnrollmentStatus]int, error) {
	query := `SELECT status, COUNT(*) AS total FROM enrollments WHERE 1=1`
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
		return nil, fmt.Errorf("count enrollments by status: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	counts := make(map[models.EnrollmentStatus]int)
	for rows.Next() {
		var status models.EnrollmentStatus
		var total int
		if err := rows.Scan(&status, &total); err != nil {
			return nil, fmt.Errorf("scan enrollment status count: %w", err)
		}
		counts[status] = total
	}
	return counts, rows.Err()
}
