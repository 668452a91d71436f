package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/akademos/academy-api/internal/models"
	appErrors "github.com/akademos/academy-api/pkg/errors"
)

type sessionRepoStub struct {
	byID      map[string]*models.GroupSession
	byGroup   map[string][]models.GroupSession
	byTeacher map[string][]models.GroupSession
	byRoom    map[string][]models.GroupSession
	created   []*models.GroupSession
	updated   []*models.GroupSession
	deleted   []string
}

func (s *sessionRepoStub) List(ctx context.Context, filter models.SessionFilter) ([]models.GroupSession, int, error) {
	return nil, 0, nil
}

func (s *sessionRepoStub) FindByID(ctx context.Context, id string) (*models.GroupSession, error) {
	if session, ok := s.byID[id]; ok {
		cp := *session
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (s *sessionRepoStub) ListByGroup(ctx context.Context, groupID string) ([]models.GroupSession, error) {
	return s.byGroup[groupID], nil
}

func (s *sessionRepoStub) ListByTeacher(ctx context.Context, teacherID string) ([]models.GroupSession, error) {
	return s.byTeacher[teacherID], nil
}

func (s *sessionRepoStub) ListByClassroomAndDay(ctx context.Context, classroom string, day models.DayOfWeek) ([]models.GroupSession, error) {
	return s.byRoom[classroom+"|"+string(day)], nil
}

func (s *sessionRepoStub) Create(ctx context.Context, session *models.GroupSession) error {
	session.ID = "session-new"
	s.created = append(s.created, session)
	return nil
}

func (s *sessionRepoStub) Update(ctx context.Context, session *models.GroupSession) error {
	s.updated = append(s.updated, session)
	return nil
}

func (s *sessionRepoStub) Delete(ctx context.Context, id string) error {
	s.deleted = append(s.deleted, id)
	return nil
}

type groupReaderStub struct {
	items map[string]*models.CourseGroup
}

func (s *groupReaderStub) FindByID(ctx context.Context, id string) (*models.CourseGroup, error) {
	if group, ok := s.items[id]; ok {
		cp := *group
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

type cacheStub struct {
	deleted []string
}

func (s *cacheStub) Delete(ctx context.Context, keys ...string) error {
	s.deleted = append(s.deleted, keys...)
	return nil
}

func strPtr(v string) *string { return &v }

func newScheduleService(sessions *sessionRepoStub, groups *groupReaderStub, cache *cacheStub) *ScheduleService {
	var invalidator cacheInvalidator
	if cache != nil {
		invalidator = cache
	}
	return NewScheduleService(sessions, groups, invalidator, validator.New(), zap.NewNop())
}

func TestScheduleServiceCreate(t *testing.T) {
	sessions := &sessionRepoStub{}
	groups := &groupReaderStub{items: map[string]*models.CourseGroup{
		"group-1": {ID: "group-1", Status: models.GroupStatusPlanned},
	}}
	cache := &cacheStub{}
	service := newScheduleService(sessions, groups, cache)

	created, err := service.Create(context.Background(), CreateSessionRequest{
		GroupID:   "group-1",
		DayOfWeek: "monday",
		StartTime: "10:00",
		EndTime:   "12:00",
		Classroom: strPtr("  R-101 "),
	})
	require.NoError(t, err)
	assert.Equal(t, models.Monday, created.DayOfWeek)
	require.NotNil(t, created.Classroom)
	assert.Equal(t, "R-101", *created.Classroom)
	assert.Len(t, sessions.created, 1)
	assert.Equal(t, []string{"groups:detail:group-1"}, cache.deleted)
}

func TestScheduleServiceCreateRejectsInvertedRange(t *testing.T) {
	sessions := &sessionRepoStub{}
	groups := &groupReaderStub{items: map[string]*models.CourseGroup{
		"group-1": {ID: "group-1"},
	}}
	service := newScheduleService(sessions, groups, nil)

	_, err := service.Create(context.Background(), CreateSessionRequest{
		GroupID:   "group-1",
		DayOfWeek: "MONDAY",
		StartTime: "12:00",
		EndTime:   "12:00",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Empty(t, sessions.created)
}

func TestScheduleServiceCreateRejectsUnknownDay(t *testing.T) {
	sessions := &sessionRepoStub{}
	groups := &groupReaderStub{items: map[string]*models.CourseGroup{
		"group-1": {ID: "group-1"},
	}}
	service := newScheduleService(sessions, groups, nil)

	_, err := service.Create(context.Background(), CreateSessionRequest{
		GroupID:   "group-1",
		DayOfWeek: "FUNDAY",
		StartTime: "10:00",
		EndTime:   "12:00",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestScheduleServiceCreateSlotConflict(t *testing.T) {
	sessions := &sessionRepoStub{
		byGroup: map[string][]models.GroupSession{
			"group-1": {{ID: "session-1", GroupID: "group-1", DayOfWeek: models.Monday, StartTime: "10:00", EndTime: "12:00"}},
		},
	}
	groups := &groupReaderStub{items: map[string]*models.CourseGroup{
		"group-1": {ID: "group-1"},
	}}
	service := newScheduleService(sessions, groups, nil)

	_, err := service.Create(context.Background(), CreateSessionRequest{
		GroupID:   "group-1",
		DayOfWeek: "MONDAY",
		StartTime: "10:00",
		EndTime:   "11:00",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)

	var detail *models.SessionConflictError
	require.True(t, errors.As(err, &detail))
	assert.Equal(t, models.ConflictDimensionSlot, detail.Type)
	assert.Equal(t, "session-1", detail.Conflict.SessionID)
}

func TestScheduleServiceCreateTeacherConflict(t *testing.T) {
	sessions := &sessionRepoStub{
		byTeacher: map[string][]models.GroupSession{
			"teacher-1": {{ID: "session-9", GroupID: "group-2", DayOfWeek: models.Monday, StartTime: "11:00", EndTime: "13:00"}},
		},
	}
	groups := &groupReaderStub{items: map[string]*models.CourseGroup{
		"group-1": {ID: "group-1", TeacherID: strPtr("teacher-1")},
	}}
	service := newScheduleService(sessions, groups, nil)

	_, err := service.Create(context.Background(), CreateSessionRequest{
		GroupID:   "group-1",
		DayOfWeek: "MONDAY",
		StartTime: "12:00",
		EndTime:   "14:00",
	})
	require.Error(t, err)

	var detail *models.SessionConflictError
	require.True(t, errors.As(err, &detail))
	assert.Equal(t, models.ConflictDimensionTeacher, detail.Type)
}

func TestScheduleServiceCreateClassroomConflict(t *testing.T) {
	sessions := &sessionRepoStub{
		byRoom: map[string][]models.GroupSession{
			"R-101|MONDAY": {{ID: "session-5", GroupID: "group-2", DayOfWeek: models.Monday, StartTime: "12:00", EndTime: "14:00", Classroom: strPtr("R-101")}},
		},
	}
	groups := &groupReaderStub{items: map[string]*models.CourseGroup{
		"group-1": {ID: "group-1"},
	}}
	service := newScheduleService(sessions, groups, nil)

	_, err := service.Create(context.Background(), CreateSessionRequest{
		GroupID:   "group-1",
		DayOfWeek: "MONDAY",
		StartTime: "11:00",
		EndTime:   "13:00",
		Classroom: strPtr("R-101"),
	})
	require.Error(t, err)

	var detail *models.SessionConflictError
	require.True(t, errors.As(err, &detail))
	assert.Equal(t, models.ConflictDimensionClassroom, detail.Type)
}

func TestScheduleServiceCreateAllowsTouchingIntervals(t *testing.T) {
	sessions := &sessionRepoStub{
		byRoom: map[string][]models.GroupSession{
			"R-101|MONDAY": {{ID: "session-5", GroupID: "group-2", DayOfWeek: models.Monday, StartTime: "12:00", EndTime: "14:00", Classroom: strPtr("R-101")}},
		},
		byTeacher: map[string][]models.GroupSession{
			"teacher-1": {{ID: "session-5", GroupID: "group-2", DayOfWeek: models.Monday, StartTime: "12:00", EndTime: "14:00"}},
		},
	}
	groups := &groupReaderStub{items: map[string]*models.CourseGroup{
		"group-1": {ID: "group-1", TeacherID: strPtr("teacher-1")},
	}}
	service := newScheduleService(sessions, groups, nil)

	_, err := service.Create(context.Background(), CreateSessionRequest{
		GroupID:   "group-1",
		DayOfWeek: "MONDAY",
		StartTime: "14:00",
		EndTime:   "16:00",
		Classroom: strPtr("R-101"),
	})
	require.NoError(t, err)
	assert.Len(t, sessions.created, 1)
}

func TestScheduleServiceCreateIgnoresOtherDays(t *testing.T) {
	sessions := &sessionRepoStub{
		byTeacher: map[string][]models.GroupSession{
			"teacher-1": {{ID: "session-5", GroupID: "group-2", DayOfWeek: models.Tuesday, StartTime: "10:00", EndTime: "12:00"}},
		},
	}
	groups := &groupReaderStub{items: map[string]*models.CourseGroup{
		"group-1": {ID: "group-1", TeacherID: strPtr("teacher-1")},
	}}
	service := newScheduleService(sessions, groups, nil)

	_, err := service.Create(context.Background(), CreateSessionRequest{
		GroupID:   "group-1",
		DayOfWeek: "MONDAY",
		StartTime: "10:00",
		EndTime:   "12:00",
	})
	require.NoError(t, err)
}

func TestScheduleServiceCreateGroupNotFound(t *testing.T) {
	service := newScheduleService(&sessionRepoStub{}, &groupReaderStub{items: map[string]*models.CourseGroup{}}, nil)

	_, err := service.Create(context.Background(), CreateSessionRequest{
		GroupID:   "missing",
		DayOfWeek: "MONDAY",
		StartTime: "10:00",
		EndTime:   "12:00",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestScheduleServiceUpdateExcludesSelf(t *testing.T) {
	existing := models.GroupSession{
		ID: "session-1", GroupID: "group-1", DayOfWeek: models.Monday,
		StartTime: "10:00", EndTime: "12:00", Classroom: strPtr("R-101"),
	}
	sessions := &sessionRepoStub{
		byID:    map[string]*models.GroupSession{"session-1": &existing},
		byGroup: map[string][]models.GroupSession{"group-1": {existing}},
		byTeacher: map[string][]models.GroupSession{
			"teacher-1": {existing},
		},
		byRoom: map[string][]models.GroupSession{
			"R-101|MONDAY": {existing},
		},
	}
	groups := &groupReaderStub{items: map[string]*models.CourseGroup{
		"group-1": {ID: "group-1", TeacherID: strPtr("teacher-1")},
	}}
	cache := &cacheStub{}
	service := newScheduleService(sessions, groups, cache)

	updated, err := service.Update(context.Background(), "session-1", UpdateSessionRequest{
		DayOfWeek: "MONDAY",
		StartTime: "11:00",
		EndTime:   "13:00",
		Classroom: strPtr("R-101"),
	})
	require.NoError(t, err)
	assert.Equal(t, "11:00", updated.StartTime)
	assert.Len(t, sessions.updated, 1)
	assert.Equal(t, []string{"groups:detail:group-1"}, cache.deleted)
}

func TestScheduleServiceUpdateNotFound(t *testing.T) {
	service := newScheduleService(&sessionRepoStub{byID: map[string]*models.GroupSession{}}, &groupReaderStub{}, nil)

	_, err := service.Update(context.Background(), "missing", UpdateSessionRequest{
		DayOfWeek: "MONDAY",
		StartTime: "10:00",
		EndTime:   "12:00",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestScheduleServiceDelete(t *testing.T) {
	sessions := &sessionRepoStub{
		byID: map[string]*models.GroupSession{
			"session-1": {ID: "session-1", GroupID: "group-1"},
		},
	}
	cache := &cacheStub{}
	service := newScheduleService(sessions, &groupReaderStub{}, cache)

	require.NoError(t, service.Delete(context.Background(), "session-1"))
	assert.Equal(t, []string{"session-1"}, sessions.deleted)
	assert.Equal(t, []string{"groups:detail:group-1"}, cache.deleted)
}
