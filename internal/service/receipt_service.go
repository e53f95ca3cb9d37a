package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/letrus-care/letrus-api/internal/models"
	appErrors "github.com/letrus-care/letrus-api/pkg/errors"
	"github.com/letrus-care/letrus-api/pkg/export"
	"github.com/letrus-care/letrus-api/pkg/jobs"
)

type receiptRepository interface {
	Create(ctx context.Context, job *models.ReceiptJob) error
	FindByPayment(ctx context.Context, paymentID string) (*models.ReceiptJob, error)
	FindByID(ctx context.Context, id string) (*models.ReceiptJob, error)
	MarkReady(ctx context.Context, id, filePath string, generatedAt time.Time) error
	MarkFailed(ctx context.Context, id, reason string) error
}

type receiptPaymentReader interface {
	FindDetailByID(ctx context.Context, id string) (*models.PaymentDetail, error)
}

type receiptCenterReader interface {
	FindCenter(ctx context.Context, id string) (*models.Center, error)
	FindByID(ctx context.Context, id string) (*models.SchoolYear, error)
}

type receiptRenderer interface {
	Render(data export.ReceiptData) ([]byte, error)
}

type receiptStore interface {
	Save(filename string, data []byte) (string, error)
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type receiptSigner interface {
	Generate(receiptID, relPath string) (string, time.Time, error)
	Parse(token string, allowExpired bool) (receiptID, relPath string, expiresAt time.Time, err error)
}

// ReceiptDownload carries a signed, time-limited download reference.
type ReceiptDownload struct {
	ReceiptID string    `json:"receipt_id"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ReceiptService renders payment receipts asynchronously. Recording a payment
// enqueues a job; workers render the PDF, store it on disk, and flip the job
// to ready. Downloads go through signed tokens so receipt files are never
// exposed by raw path.
type ReceiptService struct {
	repo     receiptRepository
	payments receiptPaymentReader
	refs     receiptCenterReader
	renderer receiptRenderer
	store    receiptStore
	signer   receiptSigner
	metrics  *MetricsService
	queue    *jobs.Queue
	logger   *zap.Logger
	enabled  bool
}

// NewReceiptService constructs ReceiptService and its worker queue.
func NewReceiptService(repo receiptRepository, payments receiptPaymentReader, refs receiptCenterReader, renderer receiptRenderer, store receiptStore, signer receiptSigner, metrics *MetricsService, cfg jobs.QueueConfig, logger *zap.Logger, enabled bool) *ReceiptService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &ReceiptService{
		repo:     repo,
		payments: payments,
		refs:     refs,
		renderer: renderer,
		store:    store,
		signer:   signer,
		metrics:  metrics,
		logger:   logger,
		enabled:  enabled,
	}
	if cfg.Logger == nil {
		cfg.Logger = logger
	}
	s.queue = jobs.NewQueue("receipts", s.process, cfg)
	return s
}

// Start launches the rendering workers.
func (s *ReceiptService) Start(ctx context.Context) {
	if !s.enabled {
		return
	}
	s.queue.Start(ctx)
}

// Stop drains the rendering workers.
func (s *ReceiptService) Stop() {
	if !s.enabled {
		return
	}
	s.queue.Stop()
}

// EnqueueForPayment queues receipt rendering for a payment. Re-enqueueing an
// already rendered payment is a no-op; a failed job is retried.
func (s *ReceiptService) EnqueueForPayment(ctx context.Context, paymentID string) error {
	if !s.enabled {
		return nil
	}
	if paymentID == "" {
		return appErrors.Clone(appErrors.ErrValidation, "payment id is required")
	}

	job, err := s.repo.FindByPayment(ctx, paymentID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("find receipt job: %w", err)
	}
	if job != nil && job.State != models.ReceiptStateFailed {
		return nil
	}
	if job == nil {
		job = &models.ReceiptJob{PaymentID: paymentID}
		if err := s.repo.Create(ctx, job); err != nil {
			return err
		}
	}

	return s.queue.Enqueue(jobs.Job{ID: job.ID, Type: "receipt", Payload: job.ID})
}

func (s *ReceiptService) process(ctx context.Context, job jobs.Job) error {
	jobID, ok := job.Payload.(string)
	if !ok {
		return fmt.Errorf("receipt job payload must be a job id")
	}
	start := time.Now()

	err := s.render(ctx, jobID)
	if s.metrics != nil {
		s.metrics.ObserveReceiptRender(time.Since(start), err != nil)
	}
	if err != nil {
		if markErr := s.repo.MarkFailed(ctx, jobID, err.Error()); markErr != nil {
			s.logger.Error("failed to mark receipt job failed", zap.String("job_id", jobID), zap.Error(markErr))
		}
		return err
	}
	return nil
}

func (s *ReceiptService) render(ctx context.Context, jobID string) error {
	job, err := s.repo.FindByID(ctx, jobID)
	if err != nil {
		return fmt.Errorf("load receipt job: %w", err)
	}

	payment, err := s.payments.FindDetailByID(ctx, job.PaymentID)
	if err != nil {
		return fmt.Errorf("load payment for receipt: %w", err)
	}

	data := export.ReceiptData{
		ReceiptNumber: payment.ID,
		CenterName:    payment.CenterName,
		StudentName:   payment.StudentName,
		CourseName:    payment.CourseName,
		ClassName:     payment.ClassName,
		Month:         payment.Month,
		Year:          payment.Year,
		Amount:        payment.Amount,
		LateFee:       payment.LateFee,
		Method:        string(payment.Method),
		PaidAt:        payment.PaidAt,
		OperatorName:  payment.UserName,
	}
	if center, err := s.refs.FindCenter(ctx, payment.CenterID); err == nil {
		data.CenterName = center.Name
		data.CenterAddress = center.Address
		data.CenterPhone = center.Phone
		data.Footer = center.DocumentFooter
	}
	if schoolYear, err := s.refs.FindByID(ctx, payment.SchoolYearID); err == nil {
		data.SchoolYear = schoolYear.Name
	}

	pdf, err := s.renderer.Render(data)
	if err != nil {
		return fmt.Errorf("render receipt: %w", err)
	}

	relPath := fmt.Sprintf("%d/recibo-%s.pdf", payment.PaidAt.Year(), payment.ID)
	if _, err := s.store.Save(relPath, pdf); err != nil {
		return fmt.Errorf("store receipt: %w", err)
	}

	if err := s.repo.MarkReady(ctx, job.ID, relPath, time.Now().UTC()); err != nil {
		return fmt.Errorf("mark receipt ready: %w", err)
	}
	s.logger.Info("receipt rendered",
		zap.String("payment_id", payment.ID),
		zap.String("file", relPath))
	return nil
}

// StatusForPayment reports the receipt job for a payment.
func (s *ReceiptService) StatusForPayment(ctx context.Context, paymentID string) (*models.ReceiptJob, error) {
	job, err := s.repo.FindByPayment(ctx, paymentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no receipt for this payment")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load receipt job")
	}
	return job, nil
}

// Download issues a signed token for a ready receipt.
func (s *ReceiptService) Download(ctx context.Context, paymentID string) (*ReceiptDownload, error) {
	job, err := s.StatusForPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if job.State != models.ReceiptStateReady {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, fmt.Sprintf("receipt is %s", job.State))
	}

	token, expiresAt, err := s.signer.Generate(job.ID, job.FilePath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign receipt url")
	}
	return &ReceiptDownload{ReceiptID: job.ID, Token: token, ExpiresAt: expiresAt}, nil
}

// Resolve validates a download token and returns the stored file path.
func (s *ReceiptService) Resolve(token string) (string, error) {
	_, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return "", appErrors.Clone(appErrors.ErrUnauthorized, "invalid or expired download token")
	}
	return relPath, nil
}

// Cleanup removes rendered receipt files older than the retention TTL.
func (s *ReceiptService) Cleanup(ttl time.Duration) (int, error) {
	if !s.enabled || ttl <= 0 {
		return 0, nil
	}
	deleted, err := s.store.CleanupOlderThan(ttl)
	if err != nil {
		return 0, err
	}
	if len(deleted) > 0 {
		s.logger.Info("cleaned up old receipts", zap.Int("files", len(deleted)))
	}
	return len(deleted), nil
}
