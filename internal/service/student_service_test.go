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

type studentRepoStub struct {
	items   map[string]*models.Student
	taken   bool
	created []*models.Student
	updated []*models.Student
	deleted []string
}

func (s *studentRepoStub) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error) {
	return nil, 0, nil
}

func (s *studentRepoStub) FindByID(ctx context.Context, id string) (*models.Student, error) {
	if student, ok := s.items[id]; ok {
		cp := *student
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (s *studentRepoStub) ExistsByEmail(ctx context.Context, email, excludeID string) (bool, error) {
	return s.taken, nil
}

func (s *studentRepoStub) Create(ctx context.Context, student *models.Student) error {
	student.ID = "student-new"
	s.created = append(s.created, student)
	return nil
}

func (s *studentRepoStub) Update(ctx context.Context, student *models.Student) error {
	s.updated = append(s.updated, student)
	return nil
}

func (s *studentRepoStub) Delete(ctx context.Context, id string) error {
	s.deleted = append(s.deleted, id)
	return nil
}

func boolPtr(v bool) *bool { return &v }

func TestStudentServiceCreate(t *testing.T) {
	repo := &studentRepoStub{}
	service := NewStudentService(repo, validator.New(), zap.NewNop())

	student, err := service.Create(context.Background(), CreateStudentRequest{
		Email:    "ana@example.com",
		FullName: "Ana Petrova",
		Major:    "Mathematics",
	})
	require.NoError(t, err)
	assert.True(t, student.Active)
	assert.Len(t, repo.created, 1)
}

func TestStudentServiceCreateDuplicateEmail(t *testing.T) {
	repo := &studentRepoStub{taken: true}
	service := NewStudentService(repo, validator.New(), zap.NewNop())

	_, err := service.Create(context.Background(), CreateStudentRequest{
		Email:    "ana@example.com",
		FullName: "Ana Petrova",
		Major:    "Mathematics",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestStudentServiceCreateInvalidEmail(t *testing.T) {
	service := NewStudentService(&studentRepoStub{}, validator.New(), zap.NewNop())

	_, err := service.Create(context.Background(), CreateStudentRequest{
		Email:    "not-an-email",
		FullName: "Ana Petrova",
		Major:    "Mathematics",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestStudentServiceUpdate(t *testing.T) {
	repo := &studentRepoStub{items: map[string]*models.Student{
		"student-1": {ID: "student-1", Email: "ana@example.com", FullName: "Ana Petrova", Major: "Mathematics", Active: true},
	}}
	service := NewStudentService(repo, validator.New(), zap.NewNop())

	student, err := service.Update(context.Background(), "student-1", UpdateStudentRequest{
		Email:    "ana@example.com",
		FullName: "Ana P. Petrova",
		Major:    "Mathematics",
		Active:   boolPtr(false),
	})
	require.NoError(t, err)
	assert.Equal(t, "Ana P. Petrova", student.FullName)
	assert.False(t, student.Active)
	assert.Len(t, repo.updated, 1)
}

func TestStudentServiceUpdateNotFound(t *testing.T) {
	service := NewStudentService(&studentRepoStub{}, validator.New(), zap.NewNop())

	_, err := service.Update(context.Background(), "missing", UpdateStudentRequest{
		Email:    "ana@example.com",
		FullName: "Ana Petrova",
		Major:    "Mathematics",
		Active:   boolPtr(true),
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestStudentServiceDelete(t *testing.T) {
	repo := &studentRepoStub{}
	service := NewStudentService(repo, validator.New(), zap.NewNop())

	require.NoError(t, service.Delete(context.Background(), "student-1"))
	assert.Equal(t, []string{"student-1"}, repo.deleted)
}
