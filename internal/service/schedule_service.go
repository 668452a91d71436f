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

type sessionRepository interface {
	List(ctx context.Context, filter models.SessionFilter) ([]models.GroupSession, int, error)
	FindByID(ctx context.Context, id string) (*models.GroupSession, error)
	ListByGroup(ctx context.Context, groupID string) ([]models.GroupSession, error)
	ListByTeacher(ctx context.Context, teacherID string) ([]models.GroupSession, error)
	ListByClassroomAndDay(ctx context.Context, classroom string, day models.DayOfWeek) ([]models.GroupSession, error)
	Create(ctx context.Context, session *models.GroupSession) error
	Update(ctx context.Context, session *models.GroupSession) error
	Delete(ctx context.Context, id string) error
}

type groupReader interface {
	FindByID(ctx context.Context, id string) (*models.CourseGroup, error)
}

type cacheInvalidator interface {
	Delete(ctx context.Context, keys ...string) error
}

// CreateSessionRequest describes payload for creating a group session.
type CreateSessionRequest struct {
	GroupID   string  `json:"group_id" validate:"required"`
	DayOfWeek string  `json:"day_of_week" validate:"required"`
	StartTime string  `json:"start_time" validate:"required"`
	EndTime   string  `json:"end_time" validate:"required"`
	Classroom *string `json:"classroom,omitempty" validate:"omitempty,max=50"`
}

// UpdateSessionRequest reschedules an existing session.
type UpdateSessionRequest struct {
	DayOfWeek string  `json:"day_of_week" validate:"required"`
	StartTime string  `json:"start_time" validate:"required"`
	EndTime   string  `json:"end_time" validate:"required"`
	Classroom *string `json:"classroom,omitempty" validate:"omitempty,max=50"`
}

// ScheduleService coordinates session scheduling and conflict detection.
type ScheduleService struct {
	sessions  sessionRepository
	groups    groupReader
	cache     cacheInvalidator
	validator *validator.Validate
	logger    *zap.Logger
}

// NewScheduleService instantiates ScheduleService.
func NewScheduleService(sessions sessionRepository, groups groupReader, cache cacheInvalidator, validate *validator.Validate, logger *zap.Logger) *ScheduleService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScheduleService{sessions: sessions, groups: groups, cache: cache, validator: validate, logger: logger}
}

// List returns sessions with pagination metadata.
func (s *ScheduleService) List(ctx context.Context, filter models.SessionFilter) ([]models.GroupSession, *models.Pagination, error) {
	sessions, total, err := s.sessions.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list sessions")
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
	return sessions, pagination, nil
}

// ListByGroup returns every session of a group.
func (s *ScheduleService) ListByGroup(ctx context.Context, groupID string) ([]models.GroupSession, error) {
	if _, err := s.groups.FindByID(ctx, groupID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course group not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course group")
	}
	sessions, err := s.sessions.ListByGroup(ctx, groupID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list group sessions")
	}
	return sessions, nil
}

// Create inserts a new session after conflict detection against the group's
// slot uniqueness, the assigned teacher's schedule and the classroom.
func (s *ScheduleService) Create(ctx context.Context, req CreateSessionRequest) (*models.GroupSession, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid session payload")
	}

	group, err := s.groups.FindByID(ctx, req.GroupID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course group not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course group")
	}

	session := models.GroupSession{
		GroupID:   req.GroupID,
		DayOfWeek: models.DayOfWeek(strings.ToUpper(req.DayOfWeek)),
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		Classroom: normalizeClassroom(req.Classroom),
	}

	if err := s.ensureNoConflict(ctx, session, group.TeacherID, ""); err != nil {
		return nil, err
	}

	if err := s.sessions.Create(ctx, &session); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "another session already occupies this slot")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create session")
	}
	s.invalidateGroup(ctx, session.GroupID)
	return &session, nil
}

// Update reschedules an existing session, re-running the full conflict check.
func (s *ScheduleService) Update(ctx context.Context, id string, req UpdateSessionRequest) (*models.GroupSession, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid session payload")
	}

	existing, err := s.sessions.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "session not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}

	group, err := s.groups.FindByID(ctx, existing.GroupID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course group")
	}

	updated := models.GroupSession{
		ID:        existing.ID,
		GroupID:   existing.GroupID,
		DayOfWeek: models.DayOfWeek(strings.ToUpper(req.DayOfWeek)),
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		Classroom: normalizeClassroom(req.Classroom),
		CreatedAt: existing.CreatedAt,
	}

	if err := s.ensureNoConflict(ctx, updated, group.TeacherID, existing.ID); err != nil {
		return nil, err
	}

	if err := s.sessions.Update(ctx, &updated); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "another session already occupies this slot")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update session")
	}
	s.invalidateGroup(ctx, updated.GroupID)
	return &updated, nil
}

// Delete removes a session entry.
func (s *ScheduleService) Delete(ctx context.Context, id string) error {
	existing, err := s.sessions.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "session not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}

	if err := s.sessions.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete session")
	}
	s.invalidateGroup(ctx, existing.GroupID)
	return nil
}

// ensureNoConflict runs the three scheduling checks for a candidate session:
// time-range validity plus same-group slot uniqueness, teacher overlap across
// all of the teacher's groups, and classroom double-booking. Intervals are
// half-open, so a session ending exactly when another starts is allowed.
func (s *ScheduleService) ensureNoConflict(ctx context.Context, candidate models.GroupSession, teacherID *string, excludeID string) error {
	if !candidate.DayOfWeek.IsValid() {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown day of week %q", candidate.DayOfWeek))
	}

	candidateRange, err := models.NewTimeRange(candidate.StartTime, candidate.EndTime)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}

	groupSessions, err := s.sessions.ListByGroup(ctx, candidate.GroupID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load group sessions")
	}
	for _, existing := range groupSessions {
		if existing.ID == excludeID {
			continue
		}
		if existing.DayOfWeek == candidate.DayOfWeek && existing.StartTime == candidate.StartTime {
			return conflictError(existing, models.ConflictDimensionSlot,
				fmt.Sprintf("group already has a session on %s at %s", existing.DayOfWeek, existing.StartTime))
		}
	}

	if teacherID != nil {
		teacherSessions, err := s.sessions.ListByTeacher(ctx, *teacherID)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher sessions")
		}
		if conflict := findOverlap(teacherSessions, candidate, candidateRange, excludeID); conflict != nil {
			return conflictError(*conflict, models.ConflictDimensionTeacher,
				fmt.Sprintf("teacher already scheduled on %s %s-%s", conflict.DayOfWeek, conflict.StartTime, conflict.EndTime))
		}
	}

	if candidate.Classroom != nil {
		roomSessions, err := s.sessions.ListByClassroomAndDay(ctx, *candidate.Classroom, candidate.DayOfWeek)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load classroom sessions")
		}
		if conflict := findOverlap(roomSessions, candidate, candidateRange, excludeID); conflict != nil {
			return conflictError(*conflict, models.ConflictDimensionClassroom,
				fmt.Sprintf("classroom %s already booked on %s %s-%s", *candidate.Classroom, conflict.DayOfWeek, conflict.StartTime, conflict.EndTime))
		}
	}

	return nil
}

// findOverlap returns the first session whose interval intersects the
// candidate's on the same day.
func findOverlap(sessions []models.GroupSession, candidate models.GroupSession, candidateRange models.TimeRange, excludeID string) *models.GroupSession {
	for i := range sessions {
		existing := sessions[i]
		if existing.ID == excludeID || existing.DayOfWeek != candidate.DayOfWeek {
			continue
		}
		existingRange, err := models.SessionRange(existing)
		if err != nil {
			continue
		}
		if candidateRange.Overlaps(existingRange) {
			return &sessions[i]
		}
	}
	return nil
}

func conflictError(existing models.GroupSession, dimension, message string) error {
	detail := &models.SessionConflictError{
		Type:    dimension,
		Message: message,
		Conflict: models.SessionConflict{
			SessionID: existing.ID,
			GroupID:   existing.GroupID,
			DayOfWeek: existing.DayOfWeek,
			StartTime: existing.StartTime,
			EndTime:   existing.EndTime,
			Classroom: existing.Classroom,
			Dimension: dimension,
		},
	}
	return appErrors.Wrap(detail, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "schedule conflict detected")
}

func normalizeClassroom(classroom *string) *string {
	if classroom == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*classroom)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func (s *ScheduleService) invalidateGroup(ctx context.Context, groupID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, groupDetailCacheKey(groupID)); err != nil {
		s.logger.Warn("failed to invalidate group cache", zap.String("group_id", groupID), zap.Error(err))
	}
}
