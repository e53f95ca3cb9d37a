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

func newEnrollmentRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestEnrollmentRepositoryCreateDefaults(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()

	repo := NewEnrollmentRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO enrollments")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	enrollment := &models.Enrollment{
		StudentID:    "stu-1",
		ClassID:      "cls-1",
		SchoolYearID: "sy-1",
		CenterID:     "ct-1",
	}
	require.NoError(t, repo.Create(context.Background(), enrollment))
	require.NotEmpty(t, enrollment.ID)
	require.Equal(t, models.EnrollmentStatusPending, enrollment.Status)
	require.False(t, enrollment.EnrolledAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryFindDetailByID(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()

	repo := NewEnrollmentRepository(db)
	fee := 15000.0
	fine := 2000.0
	rows := sqlmock.NewRows([]string{"id", "student_id", "class_id", "school_year_id", "center_id", "enrolled_at", "status", "scholarship", "student_name", "class_name", "course_id", "course_name", "grade_name", "school_year_name", "course_fee", "course_fee_fine"}).
		AddRow("enr-1", "stu-1", "cls-1", "sy-1", "ct-1", time.Now(), models.EnrollmentStatusEnrolled, false, "Ana Costa", "Turma A", "crs-1", "Inglês", "Nível 1", "2025/2026", fee, fine)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE e.id = $1")).
		WithArgs("enr-1").
		WillReturnRows(rows)

	detail, err := repo.FindDetailByID(context.Background(), "enr-1")
	require.NoError(t, err)
	require.Equal(t, "Ana Costa", detail.StudentName)
	require.NotNil(t, detail.CourseFee)
	require.Equal(t, 15000.0, *detail.CourseFee)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryExistsOpen(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()

	repo := NewEnrollmentRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM enrollments")).
		WithArgs("stu-1", "cls-1", "sy-1", models.EnrollmentStatusEnrolled, models.EnrollmentStatusPending).
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))

	exists, err := repo.ExistsOpen(context.Background(), "stu-1", "cls-1", "sy-1")
	require.NoError(t, err)
	require.True(t, exists)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM enrollments")).
		WithArgs("stu-2", "cls-1", "sy-1", models.EnrollmentStatusEnrolled, models.EnrollmentStatusPending).
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}))

	exists, err = repo.ExistsOpen(context.Background(), "stu-2", "cls-1", "sy-1")
	require.NoError(t, err)
	require.False(t, exists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryUpdateStatus(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()

	repo := NewEnrollmentRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE enrollments SET status = $2 WHERE id = $1")).
		WithArgs("enr-1", models.EnrollmentStatusCompleted).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpdateStatus(context.Background(), "enr-1", models.EnrollmentStatusCompleted))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryListPendingWithPayments(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()

	repo := NewEnrollmentRepository(db)
	rows := sqlmock.NewRows([]string{"id"}).AddRow("enr-1").AddRow("enr-2")
	mock.ExpectQuery(regexp.QuoteMeta("EXISTS (SELECT 1 FROM payments p WHERE p.enrollment_id = e.id)")).
		WithArgs(models.EnrollmentStatusPending, "ct-1").
		WillReturnRows(rows)

	ids, err := repo.ListPendingWithPayments(context.Background(), "ct-1")
	require.NoError(t, err)
	require.Equal(t, []string{"enr-1", "enr-2"}, ids)
	require.NoError(t, mock.ExpectationsWereMet())
}
