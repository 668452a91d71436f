package service

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/akademos/academy-api/internal/models"
	"github.com/akademos/academy-api/internal/repository"
	appErrors "github.com/akademos/academy-api/pkg/errors"
)

type enrollmentRepository interface {
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error)
	Exists(ctx context.Context, studentID, groupID string) (bool, error)
	CountByGroup(ctx context.Context, groupID string) (int, error)
	Create(ctx context.Context, enrollment *models.Enrollment) error
	UpdatePaymentStatus(ctx context.Context, id string, status models.PaymentStatus) error
	Delete(ctx context.Context, id string) error
}

type studentResolver interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
	FindByEmail(ctx context.Context, email string) (*models.Student, error)
}

// EnrollRequest admits a student into a course group.
type EnrollRequest struct {
	StudentID string `json:"student_id" validate:"required"`
	GroupID   string `json:"group_id" validate:"required"`
}

// UpdatePaymentStatusRequest changes the payment state of an enrollment.
type UpdatePaymentStatusRequest struct {
	PaymentStatus string `json:"payment_status" validate:"required,oneof=PENDING PAID FAILED"`
}

// EnrollmentService enforces admission rules: the target group must be ACTIVE,
// have a free spot, match the student's major, and not already hold the
// student.
type EnrollmentService struct {
	enrollments enrollmentRepository
	students    studentResolver
	groups      courseGroupRepository
	subjects    subjectReader
	cache       cacheInvalidator
	audits      auditWriter
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewEnrollmentService constructs EnrollmentService.
func NewEnrollmentService(
	enrollments enrollmentRepository,
	students studentResolver,
	groups courseGroupRepository,
	subjects subjectReader,
	cache cacheInvalidator,
	audits auditWriter,
	validate *validator.Validate,
	logger *zap.Logger,
) *EnrollmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentService{
		enrollments: enrollments,
		students:    students,
		groups:      groups,
		subjects:    subjects,
		cache:       cache,
		audits:      audits,
		validator:   validate,
		logger:      logger,
	}
}

// List returns enrollments with pagination metadata. Students only see their
// own rows.
func (s *EnrollmentService) List(ctx context.Context, filter models.EnrollmentFilter, actor *models.JWTClaims) ([]models.EnrollmentDetail, *models.Pagination, error) {
	if actor != nil && actor.Role == models.RoleStudent {
		self, err := s.selfStudent(ctx, actor)
		if err != nil {
			return nil, nil, err
		}
		filter.StudentID = self.ID
	}

	enrollments, total, err := s.enrollments.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
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
	return enrollments, pagination, nil
}

// Enroll admits a student into a group. Students may only enroll themselves;
// admins may enroll any student.
func (s *EnrollmentService) Enroll(ctx context.Context, req EnrollRequest, actor *models.JWTClaims) (*models.Enrollment, error) {
	if actor != nil && actor.Role == models.RoleStudent {
		self, err := s.selfStudent(ctx, actor)
		if err != nil {
			return nil, err
		}
		req.StudentID = self.ID
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment payload")
	}

	student, err := s.students.FindByID(ctx, req.StudentID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if !student.Active {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "student is inactive")
	}

	group, err := s.groups.FindByID(ctx, req.GroupID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course group not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course group")
	}
	if group.Status != models.GroupStatusActive {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed,
			fmt.Sprintf("group is %s and does not accept enrollments", strings.ToLower(string(group.Status))))
	}

	subject, err := s.subjects.FindByID(ctx, group.SubjectID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject")
	}
	if !strings.EqualFold(subject.Major, student.Major) {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed,
			fmt.Sprintf("subject belongs to major %s, student is in %s", subject.Major, student.Major))
	}

	already, err := s.enrollments.Exists(ctx, req.StudentID, req.GroupID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check enrollment")
	}
	if already {
		return nil, appErrors.Clone(appErrors.ErrConflict, "student is already enrolled in this group")
	}

	occupied, err := s.enrollments.CountByGroup(ctx, req.GroupID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count enrollments")
	}
	if occupied >= group.MaxCapacity {
		return nil, appErrors.Clone(appErrors.ErrConflict, "no available spots")
	}

	enrollment := &models.Enrollment{
		StudentID:     req.StudentID,
		GroupID:       req.GroupID,
		PaymentStatus: models.PaymentStatusPending,
	}
	if err := s.enrollments.Create(ctx, enrollment); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "student is already enrolled in this group")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create enrollment")
	}
	s.invalidate(ctx, req.GroupID)
	s.recordAudit(ctx, actor, models.AuditActionEnrollmentCreate, enrollment.ID, map[string]interface{}{
		"student_id": req.StudentID,
		"group_id":   req.GroupID,
	})
	return enrollment, nil
}

// Cancel removes an enrollment. Allowed only while payment is still PENDING
// and the group is not CLOSED. Students may only cancel their own enrollments.
func (s *EnrollmentService) Cancel(ctx context.Context, id string, actor *models.JWTClaims) error {
	enrollment, err := s.loadEnrollment(ctx, id)
	if err != nil {
		return err
	}

	if actor != nil && actor.Role == models.RoleStudent {
		self, err := s.selfStudent(ctx, actor)
		if err != nil {
			return err
		}
		if enrollment.StudentID != self.ID {
			return appErrors.Clone(appErrors.ErrForbidden, "enrollment belongs to another student")
		}
	}

	if enrollment.PaymentStatus != models.PaymentStatusPending {
		return appErrors.Clone(appErrors.ErrPreconditionFailed,
			fmt.Sprintf("enrollment with %s payment cannot be cancelled", strings.ToLower(string(enrollment.PaymentStatus))))
	}

	group, err := s.groups.FindByID(ctx, enrollment.GroupID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course group")
	}
	if group.Status == models.GroupStatusClosed {
		return appErrors.Clone(appErrors.ErrPreconditionFailed, "group is closed")
	}

	if err := s.enrollments.Delete(ctx, id); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel enrollment")
	}
	s.invalidate(ctx, enrollment.GroupID)
	s.recordAudit(ctx, actor, models.AuditActionEnrollmentCancel, id, map[string]interface{}{
		"student_id": enrollment.StudentID,
		"group_id":   enrollment.GroupID,
	})
	return nil
}

// UpdatePaymentStatus moves the payment state of an enrollment.
func (s *EnrollmentService) UpdatePaymentStatus(ctx context.Context, id string, req UpdatePaymentStatusRequest) (*models.Enrollment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payment payload")
	}
	enrollment, err := s.loadEnrollment(ctx, id)
	if err != nil {
		return nil, err
	}

	status := models.PaymentStatus(req.PaymentStatus)
	if enrollment.PaymentStatus == status {
		return enrollment, nil
	}
	if err := s.enrollments.UpdatePaymentStatus(ctx, id, status); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update payment status")
	}
	enrollment.PaymentStatus = status
	return enrollment, nil
}

// Get returns a single enrollment with context, enforcing student ownership.
func (s *EnrollmentService) Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.EnrollmentDetail, error) {
	detail, err := s.enrollments.FindDetailByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	if actor != nil && actor.Role == models.RoleStudent {
		self, err := s.selfStudent(ctx, actor)
		if err != nil {
			return nil, err
		}
		if detail.StudentID != self.ID {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "enrollment belongs to another student")
		}
	}
	return detail, nil
}

func (s *EnrollmentService) loadEnrollment(ctx context.Context, id string) (*models.Enrollment, error) {
	enrollment, err := s.enrollments.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	return enrollment, nil
}

// selfStudent resolves the student profile behind an authenticated account.
func (s *EnrollmentService) selfStudent(ctx context.Context, actor *models.JWTClaims) (*models.Student, error) {
	student, err := s.students.FindByEmail(ctx, actor.Email)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "no student profile linked to this account")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student profile")
	}
	return student, nil
}

func (s *EnrollmentService) invalidate(ctx context.Context, groupID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, groupDetailCacheKey(groupID)); err != nil {
		s.logger.Warn("failed to invalidate group cache", zap.String("group_id", groupID), zap.Error(err))
	}
}

func (s *EnrollmentService) recordAudit(ctx context.Context, actor *models.JWTClaims, action, resourceID string, values map[string]interface{}) {
	if s.audits == nil {
		return
	}
	actorID := ""
	if actor != nil {
		actorID = actor.UserID
	}
	recordAuditEntry(ctx, s.audits, s.logger, actorID, action, "enrollments", resourceID, values)
}
