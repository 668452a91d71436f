package service

import (
	"context"
	"database/sql"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/akademos/academy-api/internal/models"
	"github.com/akademos/academy-api/internal/repository"
	appErrors "github.com/akademos/academy-api/pkg/errors"
)

type subjectRepository interface {
	List(ctx context.Context, filter models.SubjectFilter) ([]models.Subject, int, error)
	FindByID(ctx context.Context, id string) (*models.Subject, error)
	ExistsByNameAndMajor(ctx context.Context, name, major, excludeID string) (bool, error)
	Create(ctx context.Context, subject *models.Subject) error
	Update(ctx context.Context, subject *models.Subject) error
	Delete(ctx context.Context, id string) error
}

// SubjectRequest describes subject create/update payload. The (name, major)
// pair is the business key.
type SubjectRequest struct {
	Name  string `json:"name" validate:"required,min=2,max=120"`
	Major string `json:"major" validate:"required,min=2,max=80"`
}

// SubjectService manages the subject catalogue.
type SubjectService struct {
	repo      subjectRepository
	groups    openGroupChecker
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSubjectService constructs SubjectService.
func NewSubjectService(repo subjectRepository, groups openGroupChecker, validate *validator.Validate, logger *zap.Logger) *SubjectService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SubjectService{repo: repo, groups: groups, validator: validate, logger: logger}
}

// List returns subjects with pagination metadata.
func (s *SubjectService) List(ctx context.Context, filter models.SubjectFilter) ([]models.Subject, *models.Pagination, error) {
	subjects, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list subjects")
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
	return subjects, pagination, nil
}

// Get returns a subject by ID.
func (s *SubjectService) Get(ctx context.Context, id string) (*models.Subject, error) {
	subject, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject")
	}
	return subject, nil
}

// Create adds a subject to the catalogue.
func (s *SubjectService) Create(ctx context.Context, req SubjectRequest) (*models.Subject, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid subject payload")
	}

	taken, err := s.repo.ExistsByNameAndMajor(ctx, req.Name, req.Major, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check subject name")
	}
	if taken {
		return nil, appErrors.Clone(appErrors.ErrConflict, "a subject with this name already exists for the major")
	}

	subject := &models.Subject{Name: req.Name, Major: req.Major}
	if err := s.repo.Create(ctx, subject); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "a subject with this name already exists for the major")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create subject")
	}
	return subject, nil
}

// Update replaces the subject's name and major.
func (s *SubjectService) Update(ctx context.Context, id string, req SubjectRequest) (*models.Subject, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid subject payload")
	}

	subject, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	taken, err := s.repo.ExistsByNameAndMajor(ctx, req.Name, req.Major, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check subject name")
	}
	if taken {
		return nil, appErrors.Clone(appErrors.ErrConflict, "a subject with this name already exists for the major")
	}

	subject.Name = req.Name
	subject.Major = req.Major
	if err := s.repo.Update(ctx, subject); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "a subject with this name already exists for the major")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update subject")
	}
	return subject, nil
}

// Delete removes a subject. Rejected while any non-closed group still serves
// it.
func (s *SubjectService) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}

	open, err := s.groups.ExistsOpenBySubject(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check open groups")
	}
	if open {
		return appErrors.Clone(appErrors.ErrConflict, "subject still has open course groups")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete subject")
	}
	return nil
}
