package service

import (
	"context"
	"database/sql"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/akademos/academy-api/internal/models"
	"github.com/akademos/academy-api/internal/repository"
	appErrors "github.com/akademos/academy-api/pkg/errors"
)

type teacherRepository interface {
	List(ctx context.Context, filter models.TeacherFilter) ([]models.Teacher, int, error)
	FindByID(ctx context.Context, id string) (*models.Teacher, error)
	ExistsByEmail(ctx context.Context, email, excludeID string) (bool, error)
	Create(ctx context.Context, teacher *models.Teacher) error
	Update(ctx context.Context, teacher *models.Teacher) error
	Deactivate(ctx context.Context, id string) error
}

// CreateTeacherRequest describes teacher registration payload.
type CreateTeacherRequest struct {
	Email     string `json:"email" validate:"required,email"`
	FullName  string `json:"full_name" validate:"required,min=2,max=120"`
	Phone     string `json:"phone" validate:"omitempty,max=30"`
	Expertise string `json:"expertise" validate:"omitempty,max=120"`
}

// UpdateTeacherRequest describes mutable teacher fields.
type UpdateTeacherRequest struct {
	Email     string `json:"email" validate:"required,email"`
	FullName  string `json:"full_name" validate:"required,min=2,max=120"`
	Phone     string `json:"phone" validate:"omitempty,max=30"`
	Expertise string `json:"expertise" validate:"omitempty,max=120"`
	Active    *bool  `json:"active" validate:"required"`
}

// TeacherService manages the teacher registry. Teachers are never hard
// deleted, only deactivated, so historic group assignments stay resolvable.
type TeacherService struct {
	repo      teacherRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewTeacherService constructs TeacherService.
func NewTeacherService(repo teacherRepository, validate *validator.Validate, logger *zap.Logger) *TeacherService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TeacherService{repo: repo, validator: validate, logger: logger}
}

// List returns teachers with pagination metadata.
func (s *TeacherService) List(ctx context.Context, filter models.TeacherFilter) ([]models.Teacher, *models.Pagination, error) {
	teachers, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list teachers")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}
	return teachers, pagination, nil
}

// Get returns a teacher by ID.
func (s *TeacherService) Get(ctx context.Context, id string) (*models.Teacher, error) {
	teacher, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher")
	}
	return teacher, nil
}

// Create registers a new teacher. Email is a business key.
func (s *TeacherService) Create(ctx context.Context, req CreateTeacherRequest) (*models.Teacher, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid teacher payload")
	}

	taken, err := s.repo.ExistsByEmail(ctx, req.Email, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check teacher email")
	}
	if taken {
		return nil, appErrors.Clone(appErrors.ErrConflict, "a teacher with this email already exists")
	}

	teacher := &models.Teacher{
		Email:     req.Email,
		FullName:  req.FullName,
		Phone:     optionalString(req.Phone),
		Expertise: optionalString(req.Expertise),
		Active:    true,
	}
	if err := s.repo.Create(ctx, teacher); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "a teacher with this email already exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create teacher")
	}
	return teacher, nil
}

// Update replaces mutable teacher fields.
func (s *TeacherService) Update(ctx context.Context, id string, req UpdateTeacherRequest) (*models.Teacher, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid teacher payload")
	}

	teacher, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	taken, err := s.repo.ExistsByEmail(ctx, req.Email, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check teacher email")
	}
	if taken {
		return nil, appErrors.Clone(appErrors.ErrConflict, "a teacher with this email already exists")
	}

	teacher.Email = req.Email
	teacher.FullName = req.FullName
	teacher.Phone = optionalString(req.Phone)
	teacher.Expertise = optionalString(req.Expertise)
	teacher.Active = *req.Active
	if err := s.repo.Update(ctx, teacher); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "a teacher with this email already exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update teacher")
	}
	return teacher, nil
}

// Deactivate soft-deletes a teacher. Existing group assignments are left in
// place; new assignments reject inactive teachers.
func (s *TeacherService) Deactivate(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Deactivate(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate teacher")
	}
	return nil
}

func optionalString(raw string) *string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
