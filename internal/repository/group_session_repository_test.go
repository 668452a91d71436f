package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/akademos/academy-api/internal/models"
)

func sessionRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "group_id", "day_of_week", "start_time", "end_time", "classroom", "created_at", "updated_at"})
}

func TestGroupSessionRepositoryListByTeacher(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewGroupSessionRepository(db)

	rows := sessionRows().
		AddRow("session-1", "group-1", models.Monday, "10:00", "12:00", "R-101", time.Now(), time.Now()).
		AddRow("session-2", "group-2", models.Wednesday, "14:00", "16:00", "R-204", time.Now(), time.Now())
	mock.ExpectQuery("JOIN course_groups g ON g.id = gs.group_id").
		WithArgs("teacher-1").
		WillReturnRows(rows)

	sessions, err := repo.ListByTeacher(context.Background(), "teacher-1")
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	require.Equal(t, models.Monday, sessions[0].DayOfWeek)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGroupSessionRepositoryListByClassroomAndDay(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewGroupSessionRepository(db)

	rows := sessionRows().
		AddRow("session-1", "group-1", models.Friday, "09:00", "11:00", "Lab-2", time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("WHERE classroom = $1 AND day_of_week = $2 ORDER BY start_time")).
		WithArgs("Lab-2", models.Friday).
		WillReturnRows(rows)

	sessions, err := repo.ListByClassroomAndDay(context.Background(), "Lab-2", models.Friday)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	require.NotNil(t, sessions[0].Classroom)
	require.Equal(t, "Lab-2", *sessions[0].Classroom)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGroupSessionRepositoryCreateAssignsID(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewGroupSessionRepository(db)

	mock.ExpectExec("INSERT INTO group_sessions").
		WillReturnResult(sqlmock.NewResult(0, 1))

	classroom := "R-101"
	session := &models.GroupSession{GroupID: "group-1", DayOfWeek: models.Monday, StartTime: "10:00", EndTime: "12:00", Classroom: &classroom}
	require.NoError(t, repo.Create(context.Background(), session))
	require.NotEmpty(t, session.ID)
	require.False(t, session.UpdatedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}
