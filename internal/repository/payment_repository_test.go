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

func newPaymentRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestPaymentRepositoryCreateDefaults(t *testing.T) {
	db, mock, cleanup := newPaymentRepoMock(t)
	defer cleanup()

	repo := NewPaymentRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO payments")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	payment := &models.Payment{
		EnrollmentID: "enr-1",
		Amount:       17000,
		LateFee:      2000,
		Month:        "Outubro",
		Year:         2025,
		SchoolYearID: "sy-1",
		Method:       models.PaymentMethodCash,
		CenterID:     "ct-1",
		UserID:       "usr-1",
	}
	require.NoError(t, repo.Create(context.Background(), payment))
	require.NotEmpty(t, payment.ID)
	require.False(t, payment.PaidAt.IsZero())
	require.Equal(t, models.PaymentStatusPaid, payment.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepositoryListByEnrollment(t *testing.T) {
	db, mock, cleanup := newPaymentRepoMock(t)
	defer cleanup()

	repo := NewPaymentRepository(db)
	rows := sqlmock.NewRows([]string{"id", "enrollment_id", "amount", "late_fee", "paid_at", "month", "year", "school_year_id", "status", "method", "center_id", "user_id", "notes"}).
		AddRow("pay-1", "enr-1", 15000.0, 0.0, time.Now(), "Setembro", 2025, "sy-1", models.PaymentStatusPaid, models.PaymentMethodCash, "ct-1", "usr-1", nil).
		AddRow("pay-2", "enr-1", 17000.0, 2000.0, time.Now(), "Outubro", 2025, "sy-1", models.PaymentStatusPaid, models.PaymentMethodCash, "ct-1", "usr-1", nil)
	mock.ExpectQuery(regexp.QuoteMeta("FROM payments p WHERE p.enrollment_id = $1")).
		WithArgs("enr-1").
		WillReturnRows(rows)

	payments, err := repo.ListByEnrollment(context.Background(), "enr-1")
	require.NoError(t, err)
	require.Len(t, payments, 2)
	require.Equal(t, 2000.0, payments[1].LateFee)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepositoryListFilters(t *testing.T) {
	db, mock, cleanup := newPaymentRepoMock(t)
	defer cleanup()

	repo := NewPaymentRepository(db)
	rows := sqlmock.NewRows([]string{"id", "enrollment_id", "amount", "late_fee", "paid_at", "month", "year", "school_year_id", "status", "method", "center_id", "user_id", "notes", "student_name", "course_name", "class_name", "center_name", "user_name"}).
		AddRow("pay-1", "enr-1", 15000.0, 0.0, time.Now(), "Setembro", 2025, "sy-1", models.PaymentStatusPaid, models.PaymentMethodCash, "ct-1", "usr-1", nil, "Ana Costa", "Inglês", "Turma A", "Centro Letrus", "Operadora")
	mock.ExpectQuery(regexp.QuoteMeta("WHERE p.center_id = $1 AND p.school_year_id = $2")).
		WithArgs("ct-1", "sy-1").
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*)")).
		WithArgs("ct-1", "sy-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	payments, total, err := repo.List(context.Background(), models.PaymentFilter{
		CenterID:     "ct-1",
		SchoolYearID: "sy-1",
	})
	require.NoError(t, err)
	require.Len(t, payments, 1)
	require.Equal(t, 1, total)
	require.Equal(t, "Ana Costa", payments[0].StudentName)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepositoryMonthlyRevenue(t *testing.T) {
	db, mock, cleanup := newPaymentRepoMock(t)
	defer cleanup()

	repo := NewPaymentRepository(db)
	rows := sqlmock.NewRows([]string{"month", "total"}).
		AddRow("Setembro", 150000.0).
		AddRow("Outubro", 135000.0)
	mock.ExpectQuery(regexp.QuoteMeta("COALESCE(SUM(amount), 0)")).
		WithArgs("ct-1", "sy-1").
		WillReturnRows(rows)

	totals, err := repo.MonthlyRevenue(context.Background(), "ct-1", "sy-1")
	require.NoError(t, err)
	require.Equal(t, 150000.0, totals["Setembro"])
	require.Equal(t, 135000.0, totals["Outubro"])
	require.NoError(t, mock.ExpectationsWereMet())
}
