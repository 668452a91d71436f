package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/akademos/academy-api/internal/models"
)

func TestEnrollmentRepositoryExists(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM enrollments WHERE student_id = $1 AND group_id = $2 LIMIT 1")).
		WithArgs("student-1", "group-1").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))

	exists, err := repo.Exists(context.Background(), "student-1", "group-1")
	require.NoError(t, err)
	require.True(t, exists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryExistsNone(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM enrollments WHERE student_id = $1 AND group_id = $2 LIMIT 1")).
		WithArgs("student-1", "group-1").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}))

	exists, err := repo.Exists(context.Background(), "student-1", "group-1")
	require.NoError(t, err)
	require.False(t, exists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryCountByGroup(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM enrollments WHERE group_id = $1")).
		WithArgs("group-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(17))

	count, err := repo.CountByGroup(context.Background(), "group-1")
	require.NoError(t, err)
	require.Equal(t, 17, count)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryListByGroup(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	rows := sqlmock.NewRows([]string{"id", "student_id", "group_id", "payment_status", "enrolled_at", "student_name", "student_email", "subject_name"}).
		AddRow("enrollment-1", "student-1", "group-1", models.PaymentStatusPaid, time.Now(), "Ana Petrova", "ana@example.com", "Calculus")
	mock.ExpectQuery("SELECT e.id, e.student_id, e.group_id, e.payment_status, e.enrolled_at").
		WithArgs("group-1").
		WillReturnRows(rows)

	roster, err := repo.ListByGroup(context.Background(), "group-1")
	require.NoError(t, err)
	require.Len(t, roster, 1)
	require.Equal(t, "Ana Petrova", roster[0].StudentName)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryCreateDefaults(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectExec("INSERT INTO enrollments").
		WillReturnResult(sqlmock.NewResult(0, 1))

	enrollment := &models.Enrollment{StudentID: "student-1", GroupID: "group-1"}
	require.NoError(t, repo.Create(context.Background(), enrollment))
	require.NotEmpty(t, enrollment.ID)
	require.Equal(t, models.PaymentStatusPending, enrollment.PaymentStatus)
	require.False(t, enrollment.EnrolledAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryUpdatePaymentStatus(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE enrollments SET payment_status = $2 WHERE id = $1")).
		WithArgs("enrollment-1", models.PaymentStatusPaid).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpdatePaymentStatus(context.Background(), "enrollment-1", models.PaymentStatusPaid))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryDeleteMissing(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM enrollments WHERE id = $1")).
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Delete(context.Background(), "missing")
	require.True(t, errors.Is(err, sql.ErrNoRows))
	require.NoError(t, mock.ExpectationsWereMet())
}
