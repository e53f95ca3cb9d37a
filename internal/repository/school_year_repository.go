package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/letrus-care/letrus-api/internal/models"
)

// SchoolYearRepository handles persistence of school years and centers.
type SchoolYearRepository struct {
	db *sqlx.DB
}

// NewSchoolYearRepository constructs the repository.
func NewSchoolYearRepository(db *sqlx.DB) *SchoolYearRepository {
	return &SchoolYearRepository{db: db}
}

// List returns school years for a center, newest first.
func (r *SchoolYearRepository) List(ctx context.Context, centerID string) ([]models.SchoolYear, error) {
	query := `SELECT id, name, start_date, end_date, current, center_id FROM school_years`
	var args []interface{}
	if centerID != "" {
		query += ` WHERE center_id = $1`
		args = append(args, centerID)
	}
	query += ` ORDER BY start_date DESC`
	var years []models.SchoolYear
	if err := r.db.SelectContext(ctx, &years, query, args...); err != nil {
		return nil, fmt.Errorf("list school years: %w", err)
	}
	return years, nil
}

// FindByID returns a school year by its ID.
func (r *SchoolYearRepository) FindByID(ctx context.Context, id string) (*models.SchoolYear, error) {
	const query = `SELECT id, name, start_date, end_date, current, center_id FROM school_years WHERE id = $1`
	var year models.SchoolYear
	if err := r.db.GetContext(ctx, &year, query, id); err != nil {
		return nil, err
	}
	return &year, nil
}

// FindCurrent returns the active school year for a center.
func (r *SchoolYearRepository) FindCurrent(ctx context.Context, centerID string) (*models.SchoolYear, error) {
	const query = `SELECT id, name, start_date, end_date, current, center_id FROM school_years WHERE center_id = $1 AND current = TRUE LIMIT 1`
	var year models.SchoolYear
	if err := r.db.GetContext(ctx, &year, query, centerID); err != nil {
		return nil, err
	}
	return &year, nil
}

// Create persists a new school year, clearing the current flag on others when set.
func (r *SchoolYearRepository) Create(ctx context.Context, year *models.SchoolYear) error {
	if year.ID == "" {
		year.ID = uuid.NewString()
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin school year tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if year.Current {
		if _, err := tx.ExecContext(ctx, `UPDATE school_years SET current = FALSE WHERE center_id = $1`, year.CenterID); err != nil {
			return fmt.Errorf("clear current school year: %w", err)
		}
	}
	const query = `INSERT INTO school_years (id, name, start_date, end_date, current, center_id)
        VALUES (:id, :name, :start_date, :end_date, :current, :center_id)`
	if _, err := tx.NamedExecContext(ctx, query, year); err != nil {
		return fmt.Errorf("create school year: %w", err)
	}
	return tx.Commit()
}

// FindCenter returns a center by its ID.
func (r *SchoolYearRepository) FindCenter(ctx context.Context, id string) (*models.Center, error) {
	const query = `SELECT id, name, address, phone, document_footer FROM centers WHERE id = $1`
	var center models.Center
	if err := r.db.GetContext(ctx, &center, query, id); err != nil {
		return nil, err
	}
	return &center, nil
}
