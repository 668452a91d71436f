package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/akademos/academy-api/internal/models"
	appErrors "github.com/akademos/academy-api/pkg/errors"
)

type teacherRepoStub struct {
	items       map[string]*models.Teacher
	taken       bool
	created     []*models.Teacher
	updated     []*models.Teacher
	deactivated []string
}

func (s *teacherRepoStub) List(ctx context.Context, filter models.TeacherFilter) ([]models.Teacher, int, error) {
	return nil, 0, nil
}

func (s *teacherRepoStub) FindByID(ctx context.Context, id string) (*models.Teacher, error) {
	if teacher, ok := s.items[id]; ok {
		cp := *teacher
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (s *teacherRepoStub) ExistsByEmail(ctx context.Context, email, excludeID string) (bool, error) {
	return s.taken, nil
}

func (s *teacherRepoStub) Create(ctx context.Context, teacher *models.Teacher) error {
	teacher.ID = "teacher-new"
	s.created = append(s.created, teacher)
	return nil
}

func (s *teacherRepoStub) Update(ctx context.Context, teacher *models.Teacher) error {
	s.updated = append(s.updated, teacher)
	return nil
}

func (s *teacherRepoStub) Deactivate(ctx context.Context, id string) error {
	s.deactivated = append(s.deactivated, id)
	return nil
}

func TestTeacherServiceCreate(t *testing.T) {
	repo := &teacherRepoStub{}
	service := NewTeacherService(repo, validator.New(), zap.NewNop())

	teacher, err := service.Create(context.Background(), CreateTeacherRequest{
		Email:     "ivan@example.com",
		FullName:  "Ivan Dimitrov",
		Expertise: "  Algebra  ",
	})
	require.NoError(t, err)
	assert.True(t, teacher.Active)
	require.NotNil(t, teacher.Expertise)
	assert.Equal(t, "Algebra", *teacher.Expertise)
	assert.Nil(t, teacher.Phone)
}

func TestTeacherServiceCreateDuplicateEmail(t *testing.T) {
	repo := &teacherRepoStub{taken: true}
	service := NewTeacherService(repo, validator.New(), zap.NewNop())

	_, err := service.Create(context.Background(), CreateTeacherRequest{
		Email:    "ivan@example.com",
		FullName: "Ivan Dimitrov",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestTeacherServiceUpdate(t *testing.T) {
	repo := &teacherRepoStub{items: map[string]*models.Teacher{
		"teacher-1": {ID: "teacher-1", Email: "ivan@example.com", FullName: "Ivan Dimitrov", Active: true},
	}}
	service := NewTeacherService(repo, validator.New(), zap.NewNop())

	teacher, err := service.Update(context.Background(), "teacher-1", UpdateTeacherRequest{
		Email:    "ivan@example.com",
		FullName: "Ivan Dimitrov",
		Active:   boolPtr(false),
	})
	require.NoError(t, err)
	assert.False(t, teacher.Active)
	assert.Len(t, repo.updated, 1)
}

func TestTeacherServiceDeactivate(t *testing.T) {
	repo := &teacherRepoStub{items: map[string]*models.Teacher{
		"teacher-1": {ID: "teacher-1", Active: true},
	}}
	service := NewTeacherService(repo, validator.New(), zap.NewNop())

	require.NoError(t, service.Deactivate(context.Background(), "teacher-1"))
	assert.Equal(t, []string{"teacher-1"}, repo.deactivated)
}

func TestTeacherServiceDeactivateNotFound(t *testing.T) {
	service := NewTeacherService(&teacherRepoStub{}, validator.New(), zap.NewNop())

	err := service.Deactivate(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
