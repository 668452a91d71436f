package service

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/akademos/academy-api/internal/models"
	appErrors "github.com/akademos/academy-api/pkg/errors"
)

type courseGroupRepository interface {
	List(ctx context.Context, filter models.CourseGroupFilter) ([]models.CourseGroupDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.CourseGroup, error)
	FindDetailByID(ctx context.Context, id string) (*models.CourseGroupDetail, error)
	Create(ctx context.Context, group *models.CourseGroup) error
	Update(ctx context.Context, group *models.CourseGroup) error
	UpdateStatus(ctx context.Context, id string, status models.CourseGroupStatus) error
	UpdateTeacher(ctx context.Context, id string, teacherID *string) error
	Delete(ctx context.Context, id string) error
}

type subjectReader interface {
	FindByID(ctx context.Context, id string) (*models.Subject, error)
}

type teacherReader interface {
	FindByID(ctx context.Context, id string) (*models.Teacher, error)
}

type enrollmentCounter interface {
	CountByGroup(ctx context.Context, groupID string) (int, error)
}

type groupScheduleReader interface {
	ListByGroup(ctx context.Context, groupID string) ([]models.GroupSession, error)
	ListByTeacher(ctx context.Context, teacherID string) ([]models.GroupSession, error)
}

type groupDetailCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

type auditWriter interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// CreateCourseGroupRequest describes group creation payload. Groups always
// start in PLANNED.
type CreateCourseGroupRequest struct {
	SubjectID   string  `json:"subject_id" validate:"required"`
	GroupType   string  `json:"group_type" validate:"required,oneof=REGULAR INTENSIVE REMEDIAL ONLINE"`
	Price       float64 `json:"price" validate:"required,gt=0,lte=99999999.99"`
	MaxCapacity int     `json:"max_capacity" validate:"omitempty,min=1"`
}

// UpdateCourseGroupRequest updates mutable group attributes.
type UpdateCourseGroupRequest struct {
	GroupType   string  `json:"group_type" validate:"required,oneof=REGULAR INTENSIVE REMEDIAL ONLINE"`
	Price       float64 `json:"price" validate:"required,gt=0,lte=99999999.99"`
	MaxCapacity int     `json:"max_capacity" validate:"required,min=1"`
}

// ChangeStatusRequest moves a group through its lifecycle. The reason is kept
// for the audit trail only.
type ChangeStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=PLANNED ACTIVE CLOSED"`
	Reason string `json:"reason" validate:"omitempty,max=500"`
}

// AssignTeacherRequest attaches a teacher to a group.
type AssignTeacherRequest struct {
	TeacherID string `json:"teacher_id" validate:"required"`
}

/// CourseGroupService orchestrates course-group workflows: CRUD, the lifecycle
// state machine and teacher assignment.
type CourseGroupService struct {
	groups          courseGroupRepository
	subjects        subjectReader
	teachers        teacherReader
	enrollments     enrollmentCounter
	sessions        groupScheduleReader
	cache           groupDetailCache
	audits          auditWriter
	validator       *validator.Validate
	logger          *zap.Logger
	defaultCapacity int
	detailTTL       time.Duration
}

// NewCourseGroupService constructs CourseGroupService.
func NewCourseGroupService(
	groups courseGroupRepository,
	subjects subjectReader,
	teachers teacherReader,
	enrollments enrollmentCounter,
	sessions groupScheduleReader,
	cache groupDetailCache,
	audits auditWriter,
	validate *validator.Validate,
	logger *zap.Logger,
	defaultCapacity int,
	detailTTL time.Duration,
) *CourseGroupService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if defaultCapacity <= 0 {
		defaultCapacity = 30
	}
	return &CourseGroupService{
		groups:          groups,
		subjects:        subjects,
		teachers:        teachers,
		enrollments:     enrollments,
		sessions:        sessions,
		cache:           cache,
		audits:          audits,
		validator:       validate,
		logger:          logger,
		defaultCapacity: defaultCapacity,
		detailTTL:       detailTTL,
	}
}

// List returns groups with pagination metadata.
func (s *CourseGroupService) List(ctx context.Context, filter models.CourseGroupFilter) ([]models.CourseGroupDetail, *models.Pagination, error) {
	groups, total, err := s.groups.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list course groups")
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
	return groups, pagination, nil
}

// Get returns the group detail with occupancy, served from cache when fresh.
func (s *CourseGroupService) Get(ctx context.Context, id string) (*models.CourseGroupDetail, error) {
	key := groupDetailCacheKey(id)
	if s.cache != nil {
		var cached models.CourseGroupDetail
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			return &cached, nil
		}
	}

	detail, err := s.groups.FindDetailByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course group not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course group")
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, detail, s.detailTTL); err != nil {
			s.logger.Warn("failed to cache group detail", zap.String("group_id", id), zap.Error(err))
		}
	}
	return detail, nil
}

// Create opens a new group in PLANNED status.
func (s *CourseGroupService) Create(ctx context.Context, req CreateCourseGroupRequest) (*models.CourseGroup, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course group payload")
	}
	if _, err := s.subjects.FindByID(ctx, req.SubjectID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject")
	}

	capacity := req.MaxCapacity
	if capacity <= 0 {
		capacity = s.defaultCapacity
	}

	group := &models.CourseGroup{
		SubjectID:   req.SubjectID,
		Status:      models.GroupStatusPlanned,
		GroupType:   models.CourseGroupType(req.GroupType),
		Price:       req.Price,
		MaxCapacity: capacity,
	}
	if err := s.groups.Create(ctx, group); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create course group")
	}
	return group, nil
}

// Update changes mutable attributes of a group. Capacity can never drop below
// the current occupancy.
func (s *CourseGroupService) Update(ctx context.Context, id string, req UpdateCourseGroupRequest) (*models.CourseGroup, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course group payload")
	}
	group, err := s.loadGroup(ctx, id)
	if err != nil {
		return nil, err
	}

	occupied, err := s.enrollments.CountByGroup(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count enrollments")
	}
	if req.MaxCapacity < occupied {
		return nil, appErrors.Clone(appErrors.ErrValidation,
			fmt.Sprintf("max capacity %d is below current enrollment count %d", req.MaxCapacity, occupied))
	}

	group.GroupType = models.CourseGroupType(req.GroupType)
	group.Price = req.Price
	group.MaxCapacity = req.MaxCapacity
	if err := s.groups.Update(ctx, group); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update course group")
	}
	s.invalidate(ctx, id)
	return group, nil
}

// ChangeStatus applies the lifecycle state machine. Only PLANNED→ACTIVE,
// PLANNED→CLOSED and ACTIVE→CLOSED are permitted; CLOSED is terminal.
func (s *CourseGroupService) ChangeStatus(ctx context.Context, id string, req ChangeStatusRequest, actorID string) (*models.CourseGroup, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid status payload")
	}
	group, err := s.loadGroup(ctx, id)
	if err != nil {
		return nil, err
	}

	next := models.CourseGroupStatus(strings.ToUpper(req.Status))
	if !next.IsValid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown status %q", req.Status))
	}
	if !group.Status.CanTransitionTo(next) {
		return nil, appErrors.Clone(appErrors.ErrValidation,
			fmt.Sprintf("invalid status transition %s -> %s", group.Status, next))
	}

	previous := group.Status
	if err := s.groups.UpdateStatus(ctx, id, next); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update group status")
	}
	group.Status = next
	s.invalidate(ctx, id)
	s.recordAudit(ctx, actorID, models.AuditActionGroupStatusChange, id, map[string]interface{}{
		"from":   previous,
		"to":     next,
		"reason": req.Reason,
	})
	return group, nil
}

// AssignTeacher attaches a teacher to a group that has none. Every session of
// the group is checked against the candidate teacher's full schedule.
func (s *CourseGroupService) AssignTeacher(ctx context.Context, id string, req AssignTeacherRequest, actorID string) (*models.CourseGroup, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assignment payload")
	}
	group, err := s.loadGroup(ctx, id)
	if err != nil {
		return nil, err
	}
	if group.TeacherID != nil {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "group already has a teacher assigned")
	}
	return s.assign(ctx, group, req.TeacherID, actorID)
}

// ReassignTeacher is the explicit replacement path: it allows a currently
// assigned teacher and runs the same schedule sweep for the candidate.
func (s *CourseGroupService) ReassignTeacher(ctx context.Context, id string, req AssignTeacherRequest, actorID string) (*models.CourseGroup, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assignment payload")
	}
	group, err := s.loadGroup(ctx, id)
	if err != nil {
		return nil, err
	}
	if group.TeacherID != nil && *group.TeacherID == req.TeacherID {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "teacher already assigned to this group")
	}
	return s.assign(ctx, group, req.TeacherID, actorID)
}

func (s *CourseGroupService) assign(ctx context.Context, group *models.CourseGroup, teacherID, actorID string) (*models.CourseGroup, error) {
	teacher, err := s.teachers.FindByID(ctx, teacherID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher")
	}
	if !teacher.Active {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "teacher inactive")
	}

	if err := s.ensureTeacherAvailability(ctx, group.ID, teacherID); err != nil {
		return nil, err
	}

	if err := s.groups.UpdateTeacher(ctx, group.ID, &teacherID); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to assign teacher")
	}
	group.TeacherID = &teacherID
	s.invalidate(ctx, group.ID)
	s.recordAudit(ctx, actorID, models.AuditActionTeacherAssign, group.ID, map[string]interface{}{
		"teacher_id": teacherID,
	})
	return group, nil
}

// ensureTeacherAvailability sweeps every session of the group against the
// candidate teacher's schedule using the half-open interval overlap rule.
func (s *CourseGroupService) ensureTeacherAvailability(ctx context.Context, groupID, teacherID string) error {
	groupSessions, err := s.sessions.ListByGroup(ctx, groupID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load group sessions")
	}
	if len(groupSessions) == 0 {
		return nil
	}
	teacherSessions, err := s.sessions.ListByTeacher(ctx, teacherID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher sessions")
	}

	for _, session := range groupSessions {
		sessionRange, err := models.SessionRange(session)
		if err != nil {
			continue
		}
		if conflict := findOverlap(teacherSessions, session, sessionRange, session.ID); conflict != nil {
			return conflictError(*conflict, models.ConflictDimensionTeacher,
				fmt.Sprintf("teacher already scheduled on %s %s-%s", conflict.DayOfWeek, conflict.StartTime, conflict.EndTime))
		}
	}
	return nil
}

// Delete removes a group. Permitted only while PLANNED with no enrollments;
// sessions cascade with the group.
func (s *CourseGroupService) Delete(ctx context.Context, id string, actorID string) error {
	group, err := s.loadGroup(ctx, id)
	if err != nil {
		return err
	}
	if group.Status != models.GroupStatusPlanned {
		return appErrors.Clone(appErrors.ErrConflict, "only planned groups can be deleted")
	}
	occupied, err := s.enrollments.CountByGroup(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count enrollments")
	}
	if occupied > 0 {
		return appErrors.Clone(appErrors.ErrConflict, "group has enrollments and cannot be deleted")
	}

	if err := s.groups.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete course group")
	}
	s.invalidate(ctx, id)
	s.recordAudit(ctx, actorID, models.AuditActionGroupDelete, id, nil)
	return nil
}

func (s *CourseGroupService) loadGroup(ctx context.Context, id string) (*models.CourseGroup, error) {
	group, err := s.groups.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course group not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course group")
	}
	return group, nil
}

func (s *CourseGroupService) invalidate(ctx context.Context, groupID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, groupDetailCacheKey(groupID)); err != nil {
		s.logger.Warn("failed to invalidate group cache", zap.String("group_id", groupID), zap.Error(err))
	}
}

func (s *CourseGroupService) recordAudit(ctx context.Context, actorID, action, resourceID string, values map[string]interface{}) {
	if s.audits == nil {
		return
	}
	recordAuditEntry(ctx, s.audits, s.logger, actorID, action, "course_groups", resourceID, values)
}

func groupDetailCacheKey(groupID string) string {
	return "groups:detail:" + groupID
}
