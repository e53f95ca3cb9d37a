package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/letrus-care/letrus-api/internal/models"
)

func newPlanRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestFinancialPlanRepositoryCreateBatchSkipsConflicts(t *testing.T) {
	db, mock, cleanup := newPlanRepoMock(t)
	defer cleanup()

	repo := NewFinancialPlanRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO financial_plan_entries")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO financial_plan_entries")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	entries := []models.FinancialPlanEntry{
		{SchoolYearID: "sy-1", Month: "Setembro", Year: 2025, EnrollmentID: "enr-1", CenterID: "ct-1", DueDate: time.Date(2025, 9, 10, 0, 0, 0, 0, time.UTC), Fee: 15000},
		{SchoolYearID: "sy-1", Month: "Outubro", Year: 2025, EnrollmentID: "enr-1", CenterID: "ct-1", DueDate: time.Date(2025, 10, 10, 0, 0, 0, 0, time.UTC), Fee: 15000},
	}
	created, err := repo.CreateBatch(context.Background(), entries)
	require.NoError(t, err)
	require.Equal(t, 1, created)
	require.NotEmpty(t, entries[0].ID)
	require.Equal(t, models.PaymentStatusPending, entries[0].Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFinancialPlanRepositoryMarkPaid(t *testing.T) {
	db, mock, cleanup := newPlanRepoMock(t)
	defer cleanup()

	repo := NewFinancialPlanRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE financial_plan_entries SET status = $2, payment_id = $3 WHERE id = $1")).
		WithArgs("fp-1", models.PaymentStatusPaid, "pay-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.MarkPaid(context.Background(), "fp-1", "pay-1"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFinancialPlanRepositoryMarkOverdueBefore(t *testing.T) {
	db, mock, cleanup := newPlanRepoMock(t)
	defer cleanup()

	repo := NewFinancialPlanRepository(db)
	cutoff := time.Date(2025, 10, 15, 0, 0, 0, 0, time.UTC)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE financial_plan_entries SET status = $1 WHERE status = $2 AND due_date < $3")).
		WithArgs(models.PaymentStatusOverdue, models.PaymentStatusPending, cutoff).
		WillReturnResult(sqlmock.NewResult(0, 3))

	updated, err := repo.MarkOverdueBefore(context.Background(), cutoff)
	require.NoError(t, err)
	require.Equal(t, 3, updated)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFinancialPlanRepositoryListByEnrollment(t *testing.T) {
	db, mock, cleanup := newPlanRepoMock(t)
	defer cleanup()

	repo := NewFinancialPlanRepository(db)
	rows := sqlmock.NewRows([]string{"id", "school_year_id", "month", "year", "enrollment_id", "center_id", "due_date", "fee", "status", "payment_id"}).
		AddRow("fp-1", "sy-1", "Setembro", 2025, "enr-1", "ct-1", time.Date(2025, 9, 10, 0, 0, 0, 0, time.UTC), 15000.0, models.PaymentStatusPaid, "pay-1").
		AddRow("fp-2", "sy-1", "Outubro", 2025, "enr-1", "ct-1", time.Date(2025, 10, 10, 0, 0, 0, 0, time.UTC), 15000.0, models.PaymentStatusOverdue, nil)
	mock.ExpectQuery(regexp.QuoteMeta("FROM financial_plan_entries WHERE enrollment_id = $1")).
		WithArgs("enr-1").
		WillReturnRows(rows)

	entries, err := repo.ListByEnrollment(context.Background(), "enr-1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, models.PaymentStatusOverdue, entries[1].Status)
	require.Nil(t, entries[1].PaymentID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFinancialPlanRepositoryCountByStatus(t *testing.T) {
	db, mock, cleanup := newPlanRepoMock(t)
	defer cleanup()

	repo := NewFinancialPlanRepository(db)
	rows := sqlmock.NewRows([]string{"status", "total"}).
		AddRow("paid", 20).
		AddRow("overdue", 4)
	mock.ExpectQuery(regexp.QuoteMeta("GROUP BY status")).
		WithArgs("ct-1", "sy-1").
		WillReturnRows(rows)

	counts, err := repo.CountByStatus(context.Background(), "ct-1", "sy-1")
	require.NoError(t, err)
	require.Equal(t, 20, counts[models.PaymentStatusPaid])
	require.Equal(t, 4, counts[models.PaymentStatusOverdue])
	require.NoError(t, mock.ExpectationsWereMet())
}
