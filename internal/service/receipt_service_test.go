package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/letrus-care/letrus-api/internal/models"
	"github.com/letrus-care/letrus-api/pkg/export"
	"github.com/letrus-care/letrus-api/pkg/jobs"
	"github.com/letrus-care/letrus-api/pkg/storage"
)

type mockReceiptRepo struct {
	jobs   map[string]models.ReceiptJob
	ready  map[string]string
	failed map[string]string
}

func (m *mockReceiptRepo) Create(ctx context.Context, job *models.ReceiptJob) error {
	if job.ID == "" {
		job.ID = "rcpt-1"
	}
	if job.State == "" {
		job.State = models.ReceiptStateQueued
	}
	if m.jobs == nil {
		m.jobs = make(map[string]models.ReceiptJob)
	}
	m.jobs[job.ID] = *job
	return nil
}

func (m *mockReceiptRepo) FindByPayment(ctx context.Context, paymentID string) (*models.ReceiptJob, error) {
	for _, j := range m.jobs {
		if j.PaymentID == paymentID {
			job := j
			return &job, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockReceiptRepo) FindByID(ctx context.Context, id string) (*models.ReceiptJob, error) {
	if j, ok := m.jobs[id]; ok {
		return &j, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockReceiptRepo) MarkReady(ctx context.Context, id, filePath string, generatedAt time.Time) error {
	if m.ready == nil {
		m.ready = make(map[string]string)
	}
	m.ready[id] = filePath
	if j, ok := m.jobs[id]; ok {
		j.State = models.ReceiptStateReady
		j.FilePath = filePath
		j.GeneratedAt = &generatedAt
		m.jobs[id] = j
	}
	return nil
}

func (m *mockReceiptRepo) MarkFailed(ctx context.Context, id, reason string) error {
	if m.failed == nil {
		m.failed = make(map[string]string)
	}
	m.failed[id] = reason
	if j, ok := m.jobs[id]; ok {
		j.State = models.ReceiptStateFailed
		m.jobs[id] = j
	}
	return nil
}

type mockRefsReader struct{}

func (m *mockRefsReader) FindCenter(ctx context.Context, id string) (*models.Center, error) {
	return &models.Center{ID: id, Name: "Centro Letrus", Address: "Rua Principal 12, Luanda", Phone: "923000000", DocumentFooter: "Obrigado pela sua preferência."}, nil
}

func (m *mockRefsReader) FindByID(ctx context.Context, id string) (*models.SchoolYear, error) {
	return &models.SchoolYear{ID: id, Name: "2025/2026"}, nil
}

type mockReceiptStore struct {
	saved map[string][]byte
}

func (m *mockReceiptStore) Save(filename string, data []byte) (string, error) {
	if m.saved == nil {
		m.saved = make(map[string][]byte)
	}
	m.saved[filename] = data
	return filename, nil
}

func (m *mockReceiptStore) CleanupOlderThan(ttl time.Duration) ([]string, error) {
	return nil, nil
}

func newReceiptFixture(t *testing.T) (*ReceiptService, *mockReceiptRepo, *mockBillingPaymentRepo, *mockReceiptStore) {
	t.Helper()
	repo := &mockReceiptRepo{}
	payments := &mockBillingPaymentRepo{payments: map[string][]models.Payment{
		"e1": {{
			ID:           "p1",
			EnrollmentID: "e1",
			Amount:       17000,
			LateFee:      2000,
			PaidAt:       time.Date(2025, 11, 12, 10, 0, 0, 0, time.UTC),
			Month:        "Outubro",
			Year:         2025,
			SchoolYearID: "sy1",
			Method:       models.PaymentMethodCash,
			CenterID:     "ct1",
			UserID:       "u1",
		}},
	}}
	store := &mockReceiptStore{}
	signer := storage.NewSignedURLSigner("test-secret", 30*time.Minute)
	svc := NewReceiptService(repo, payments, &mockRefsReader{}, export.NewReceiptRenderer(), store, signer, nil, jobs.QueueConfig{Workers: 1}, zap.NewNop(), true)
	return svc, repo, payments, store
}

func TestReceiptProcessRendersAndMarksReady(t *testing.T) {
	svc, repo, _, store := newReceiptFixture(t)
	require.NoError(t, repo.Create(context.Background(), &models.ReceiptJob{ID: "rcpt-1", PaymentID: "p1"}))

	err := svc.process(context.Background(), jobs.Job{ID: "rcpt-1", Type: "receipt", Payload: "rcpt-1"})
	require.NoError(t, err)

	path, ok := repo.ready["rcpt-1"]
	require.True(t, ok)
	assert.Equal(t, "2025/recibo-p1.pdf", path)
	assert.NotEmpty(t, store.saved[path])
}

func TestReceiptProcessMarksFailedOnMissingPayment(t *testing.T) {
	svc, repo, _, _ := newReceiptFixture(t)
	require.NoError(t, repo.Create(context.Background(), &models.ReceiptJob{ID: "rcpt-2", PaymentID: "missing"}))

	err := svc.process(context.Background(), jobs.Job{ID: "rcpt-2", Type: "receipt", Payload: "rcpt-2"})
	require.Error(t, err)
	assert.Contains(t, repo.failed, "rcpt-2")
}

func TestReceiptDownloadRequiresReadyState(t *testing.T) {
	svc, repo, _, _ := newReceiptFixture(t)
	require.NoError(t, repo.Create(context.Background(), &models.ReceiptJob{ID: "rcpt-1", PaymentID: "p1"}))

	_, err := svc.Download(context.Background(), "p1")
	require.Error(t, err)

	require.NoError(t, repo.MarkReady(context.Background(), "rcpt-1", "2025/recibo-p1.pdf", time.Now().UTC()))

	download, err := svc.Download(context.Background(), "p1")
	require.NoError(t, err)
	assert.NotEmpty(t, download.Token)
	assert.True(t, download.ExpiresAt.After(time.Now()))

	relPath, err := svc.Resolve(download.Token)
	require.NoError(t, err)
	assert.Equal(t, "2025/recibo-p1.pdf", relPath)
}

func TestReceiptResolveRejectsTamperedToken(t *testing.T) {
	svc, repo, _, _ := newReceiptFixture(t)
	require.NoError(t, repo.Create(context.Background(), &models.ReceiptJob{ID: "rcpt-1", PaymentID: "p1"}))
	require.NoError(t, repo.MarkReady(context.Background(), "rcpt-1", "2025/recibo-p1.pdf", time.Now().UTC()))

	download, err := svc.Download(context.Background(), "p1")
	require.NoError(t, err)

	_, err = svc.Resolve(download.Token + "x")
	require.Error(t, err)
}

func TestEnqueueForPaymentSkipsExistingJob(t *testing.T) {
	svc, repo, _, _ := newReceiptFixture(t)
	require.NoError(t, repo.Create(context.Background(), &models.ReceiptJob{ID: "rcpt-1", PaymentID: "p1", State: models.ReceiptStateReady}))

	require.NoError(t, svc.EnqueueForPayment(context.Background(), "p1"))
	assert.Len(t, repo.jobs, 1)
}
