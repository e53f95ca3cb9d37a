package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/letrus-care/letrus-api/internal/models"
)

// ReceiptRepository handles persistence of receipt generation jobs.
type ReceiptRepository struct {
	db *sqlx.DB
}

// NewReceiptRepository constructs the repository.
func NewReceiptRepository(db *sqlx.DB) *ReceiptRepository {
	return &ReceiptRepository{db: db}
}

// Create records a queued receipt job.
func (r *ReceiptRepository) Create(ctx context.Context, job *models.ReceiptJob) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.State == "" {
		job.State = models.ReceiptStateQueued
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO receipt_jobs (id, payment_id, state, file_path, error, created_at, generated_at)
        VALUES (:id, :payment_id, :state, :file_path, :error, :created_at, :generated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, job); err != nil {
		return fmt.Errorf("create receipt job: %w", err)
	}
	return nil
}

// FindByPayment returns the receipt job for a payment, if any.
func (r *ReceiptRepository) FindByPayment(ctx context.Context, paymentID string) (*models.ReceiptJob, error) {
	const query = `SELECT id, payment_id, state, file_path, error, created_at, generated_at FROM receipt_jobs WHERE payment_id = $1`
	var job models.ReceiptJob
	if err := r.db.GetContext(ctx, &job, query, paymentID); err != nil {
		return nil, err
	}
	return &job, nil
}

// FindByID returns a receipt job by its ID.
func (r *ReceiptRepository) FindByID(ctx context.Context, id string) (*models.ReceiptJob, error) {
	const query = `SELECT id, payment_id, state, file_path, error, created_at, generated_at FROM receipt_jobs WHERE id = $1`
	var job models.ReceiptJob
	if err := r.db.GetContext(ctx, &job, query, id); err != nil {
		return nil, err
	}
	return &job, nil
}

// MarkReady records a successfully rendered receipt.
func (r *ReceiptRepository) MarkReady(ctx context.Context, id, filePath string, generatedAt time.Time) error {
	const query = `UPDATE receipt_jobs SET state = $2, file_path = $3, generated_at = $4, error = NULL WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, models.ReceiptStateReady, filePath, generatedAt); err != nil {
		return fmt.Errorf("mark receipt ready: %w", err)
	}
	return nil
}

// MarkFailed records a rendering failure.
func (r *ReceiptRepository) MarkFailed(ctx context.Context, id, reason string) error {
	const query = `UPDATE receipt_jobs SET state = $2, error = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, models.ReceiptStateFailed, reason); err != nil {
		return fmt.Errorf("mark receipt failed: %w", err)
	}
	return nil
}
