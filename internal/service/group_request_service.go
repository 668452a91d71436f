package service

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/akademos/academy-api/internal/models"
	appErrors "github.com/akademos/academy-api/pkg/errors"
)

type groupRequestRepository interface {
	List(ctx context.Context, filter models.GroupRequestFilter) ([]models.GroupRequestDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.GroupRequest, error)
	ExistsPending(ctx context.Context, studentID, subjectID string) (bool, error)
	Create(ctx context.Context, request *models.GroupRequest) error
	UpdateStatus(ctx context.Context, id string, status models.GroupRequestStatus, note *string, resolvedAt time.Time) error
}

type openGroupChecker interface {
	ExistsOpenBySubject(ctx context.Context, subjectID string) (bool, error)
}

// CreateGroupRequestRequest is a student's petition for a new group.
type CreateGroupRequestRequest struct {
	SubjectID string `json:"subject_id" validate:"required"`
	Note      string `json:"note" validate:"omitempty,max=500"`
}

// ResolveGroupRequestRequest records an admin decision on a pending request.
type ResolveGroupRequestRequest struct {
	Action string `json:"action" validate:"required,oneof=APPROVE REJECT"`
	Note   string `json:"note" validate:"omitempty,max=500"`
}

// GroupRequestService manages the group-creation request workflow. A request
// is rejected up front when a non-closed group already serves the subject or
// the student already has a pending request for it.
type GroupRequestService struct {
	requests  groupRequestRepository
	groups    openGroupChecker
	students  studentResolver
	subjects  subjectReader
	audits    auditWriter
	validator *validator.Validate
	logger    *zap.Logger
}

// NewGroupRequestService constructs GroupRequestService.
func NewGroupRequestService(
	requests groupRequestRepository,
	groups openGroupChecker,
	students studentResolver,
	subjects subjectReader,
	audits auditWriter,
	validate *validator.Validate,
	logger *zap.Logger,
) *GroupRequestService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GroupRequestService{
		requests:  requests,
		groups:    groups,
		students:  students,
		subjects:  subjects,
		audits:    audits,
		validator: validate,
		logger:    logger,
	}
}

// List returns requests with pagination metadata. Students only see their own.
func (s *GroupRequestService) List(ctx context.Context, filter models.GroupRequestFilter, actor *models.JWTClaims) ([]models.GroupRequestDetail, *models.Pagination, error) {
	if actor != nil && actor.Role == models.RoleStudent {
		self, err := s.selfStudent(ctx, actor)
		if err != nil {
			return nil, nil, err
		}
		filter.StudentID = self.ID
	}

	requests, total, err := s.requests.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list group requests")
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
	return requests, pagination, nil
}

// Create files a new request on behalf of the authenticated student.
func (s *GroupRequestService) Create(ctx context.Context, req CreateGroupRequestRequest, actor *models.JWTClaims) (*models.GroupRequest, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid group request payload")
	}

	student, err := s.selfStudent(ctx, actor)
	if err != nil {
		return nil, err
	}

	subject, err := s.subjects.FindByID(ctx, req.SubjectID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject")
	}
	if !strings.EqualFold(subject.Major, student.Major) {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "subject belongs to a different major")
	}

	open, err := s.groups.ExistsOpenBySubject(ctx, req.SubjectID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check open groups")
	}
	if open {
		return nil, appErrors.Clone(appErrors.ErrConflict, "an open group already exists for this subject")
	}

	pending, err := s.requests.ExistsPending(ctx, student.ID, req.SubjectID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check pending requests")
	}
	if pending {
		return nil, appErrors.Clone(appErrors.ErrConflict, "a pending request for this subject already exists")
	}

	request := &models.GroupRequest{
		StudentID: student.ID,
		SubjectID: req.SubjectID,
		Status:    models.RequestStatusPending,
	}
	if note := strings.TrimSpace(req.Note); note != "" {
		request.Note = &note
	}
	if err := s.requests.Create(ctx, request); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create group request")
	}
	return request, nil
}

// Resolve applies an admin decision to a pending request. Resolved requests
// are immutable.
func (s *GroupRequestService) Resolve(ctx context.Context, id string, req ResolveGroupRequestRequest, actor *models.JWTClaims) (*models.GroupRequest, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid resolution payload")
	}

	request, err := s.requests.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "group request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load group request")
	}
	if request.Status != models.RequestStatusPending {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "request has already been resolved")
	}

	status := models.RequestStatusRejected
	if strings.ToUpper(req.Action) == "APPROVE" {
		status = models.RequestStatusApproved
	}

	var note *string
	if trimmed := strings.TrimSpace(req.Note); trimmed != "" {
		note = &trimmed
	} else {
		note = request.Note
	}

	resolvedAt := time.Now().UTC()
	if err := s.requests.UpdateStatus(ctx, id, status, note, resolvedAt); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve group request")
	}
	request.Status = status
	request.Note = note
	request.ResolvedAt = &resolvedAt

	actorID := ""
	if actor != nil {
		actorID = actor.UserID
	}
	if s.audits != nil {
		recordAuditEntry(ctx, s.audits, s.logger, actorID, models.AuditActionRequestResolve, "group_requests", id, map[string]interface{}{
			"status": status,
		})
	}
	return request, nil
}

func (s *GroupRequestService) selfStudent(ctx context.Context, actor *models.JWTClaims) (*models.Student, error) {
	if actor == nil {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "authentication required")
	}
	student, err := s.students.FindByEmail(ctx, actor.Email)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "no student profile linked to this account")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student profile")
	}
	return student, nil
}
