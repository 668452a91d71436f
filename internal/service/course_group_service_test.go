package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/akademos/academy-api/internal/models"
	appErrors "github.com/akademos/academy-api/pkg/errors"
)

type courseGroupRepoStub struct {
	items         map[string]*models.CourseGroup
	details       map[string]*models.CourseGroupDetail
	created       []*models.CourseGroup
	updated       []*models.CourseGroup
	statusUpdates map[string]models.CourseGroupStatus
	teacherSet    map[string]*string
	deleted       []string
	openBySubject bool
	detailCalls   int
}

func (s *courseGroupRepoStub) List(ctx context.Context, filter models.CourseGroupFilter) ([]models.CourseGroupDetail, int, error) {
	return nil, 0, nil
}

func (s *courseGroupRepoStub) FindByID(ctx context.Context, id string) (*models.CourseGroup, error) {
	if group, ok := s.items[id]; ok {
		cp := *group
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (s *courseGroupRepoStub) FindDetailByID(ctx context.Context, id string) (*models.CourseGroupDetail, error) {
	s.detailCalls++
	if detail, ok := s.details[id]; ok {
		cp := *detail
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (s *courseGroupRepoStub) ExistsOpenBySubject(ctx context.Context, subjectID string) (bool, error) {
	return s.openBySubject, nil
}

func (s *courseGroupRepoStub) Create(ctx context.Context, group *models.CourseGroup) error {
	group.ID = "group-new"
	s.created = append(s.created, group)
	return nil
}

func (s *courseGroupRepoStub) Update(ctx context.Context, group *models.CourseGroup) error {
	s.updated = append(s.updated, group)
	return nil
}

func (s *courseGroupRepoStub) UpdateStatus(ctx context.Context, id string, status models.CourseGroupStatus) error {
	if s.statusUpdates == nil {
		s.statusUpdates = map[string]models.CourseGroupStatus{}
	}
	s.statusUpdates[id] = status
	return nil
}

func (s *courseGroupRepoStub) UpdateTeacher(ctx context.Context, id string, teacherID *string) error {
	if s.teacherSet == nil {
		s.teacherSet = map[string]*string{}
	}
	s.teacherSet[id] = teacherID
	return nil
}

func (s *courseGroupRepoStub) Delete(ctx context.Context, id string) error {
	s.deleted = append(s.deleted, id)
	return nil
}

type subjectReaderStub struct {
	items map[string]*models.Subject
}

func (s *subjectReaderStub) FindByID(ctx context.Context, id string) (*models.Subject, error) {
	if subject, ok := s.items[id]; ok {
		cp := *subject
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

type teacherReaderStub struct {
	items map[string]*models.Teacher
}

func (s *teacherReaderStub) FindByID(ctx context.Context, id string) (*models.Teacher, error) {
	if teacher, ok := s.items[id]; ok {
		cp := *teacher
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

type enrollmentCounterStub struct {
	count int
}

func (s *enrollmentCounterStub) CountByGroup(ctx context.Context, groupID string) (int, error) {
	return s.count, nil
}

type groupScheduleStub struct {
	byGroup   map[string][]models.GroupSession
	byTeacher map[string][]models.GroupSession
}

func (s *groupScheduleStub) ListByGroup(ctx context.Context, groupID string) ([]models.GroupSession, error) {
	return s.byGroup[groupID], nil
}

func (s *groupScheduleStub) ListByTeacher(ctx context.Context, teacherID string) ([]models.GroupSession, error) {
	return s.byTeacher[teacherID], nil
}

type detailCacheStub struct {
	values  map[string][]byte
	gets    []string
	sets    []string
	deleted []string
	hit     *models.CourseGroupDetail
}

func (s *detailCacheStub) Get(ctx context.Context, key string, dest interface{}) error {
	s.gets = append(s.gets, key)
	if s.hit != nil {
		*(dest.(*models.CourseGroupDetail)) = *s.hit
		return nil
	}
	return appErrors.ErrCacheMiss
}

func (s *detailCacheStub) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	s.sets = append(s.sets, key)
	return nil
}

func (s *detailCacheStub) Delete(ctx context.Context, keys ...string) error {
	s.deleted = append(s.deleted, keys...)
	return nil
}

type auditWriterStub struct {
	entries []*models.AuditLog
}

func (s *auditWriterStub) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	s.entries = append(s.entries, log)
	return nil
}

type groupServiceDeps struct {
	groups      *courseGroupRepoStub
	subjects    *subjectReaderStub
	teachers    *teacherReaderStub
	enrollments *enrollmentCounterStub
	sessions    *groupScheduleStub
	cache       *detailCacheStub
	audits      *auditWriterStub
}

func newGroupService(deps groupServiceDeps) *CourseGroupService {
	if deps.groups == nil {
		deps.groups = &courseGroupRepoStub{}
	}
	if deps.subjects == nil {
		deps.subjects = &subjectReaderStub{items: map[string]*models.Subject{}}
	}
	if deps.teachers == nil {
		deps.teachers = &teacherReaderStub{items: map[string]*models.Teacher{}}
	}
	if deps.enrollments == nil {
		deps.enrollments = &enrollmentCounterStub{}
	}
	if deps.sessions == nil {
		deps.sessions = &groupScheduleStub{}
	}
	var cache groupDetailCache
	if deps.cache != nil {
		cache = deps.cache
	}
	var audits auditWriter
	if deps.audits != nil {
		audits = deps.audits
	}
	return NewCourseGroupService(deps.groups, deps.subjects, deps.teachers, deps.enrollments, deps.sessions, cache, audits, validator.New(), zap.NewNop(), 30, time.Minute)
}

func TestCourseGroupServiceCreateDefaultsCapacity(t *testing.T) {
	groups := &courseGroupRepoStub{}
	subjects := &subjectReaderStub{items: map[string]*models.Subject{
		"subject-1": {ID: "subject-1", Name: "Calculus", Major: "Mathematics"},
	}}
	service := newGroupService(groupServiceDeps{groups: groups, subjects: subjects})

	group, err := service.Create(context.Background(), CreateCourseGroupRequest{
		SubjectID: "subject-1",
		GroupType: "REGULAR",
		Price:     1500000,
	})
	require.NoError(t, err)
	assert.Equal(t, models.GroupStatusPlanned, group.Status)
	assert.Equal(t, 30, group.MaxCapacity)
	assert.Len(t, groups.created, 1)
}

func TestCourseGroupServiceCreateUnknownSubject(t *testing.T) {
	service := newGroupService(groupServiceDeps{})

	_, err := service.Create(context.Background(), CreateCourseGroupRequest{
		SubjectID: "missing",
		GroupType: "REGULAR",
		Price:     100,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestCourseGroupServiceGetCacheHit(t *testing.T) {
	groups := &courseGroupRepoStub{}
	cache := &detailCacheStub{hit: &models.CourseGroupDetail{
		CourseGroup: models.CourseGroup{ID: "group-1"},
		SubjectName: "Calculus",
	}}
	service := newGroupService(groupServiceDeps{groups: groups, cache: cache})

	detail, err := service.Get(context.Background(), "group-1")
	require.NoError(t, err)
	assert.Equal(t, "Calculus", detail.SubjectName)
	assert.Zero(t, groups.detailCalls)
}

func TestCourseGroupServiceGetCacheMissPopulates(t *testing.T) {
	groups := &courseGroupRepoStub{details: map[string]*models.CourseGroupDetail{
		"group-1": {CourseGroup: models.CourseGroup{ID: "group-1"}, SubjectName: "Calculus"},
	}}
	cache := &detailCacheStub{}
	service := newGroupService(groupServiceDeps{groups: groups, cache: cache})

	detail, err := service.Get(context.Background(), "group-1")
	require.NoError(t, err)
	assert.Equal(t, "Calculus", detail.SubjectName)
	assert.Equal(t, 1, groups.detailCalls)
	assert.Equal(t, []string{"groups:detail:group-1"}, cache.sets)
}

func TestCourseGroupServiceUpdateCapacityBelowOccupancy(t *testing.T) {
	groups := &courseGroupRepoStub{items: map[string]*models.CourseGroup{
		"group-1": {ID: "group-1", Status: models.GroupStatusActive, MaxCapacity: 30},
	}}
	service := newGroupService(groupServiceDeps{groups: groups, enrollments: &enrollmentCounterStub{count: 12}})

	_, err := service.Update(context.Background(), "group-1", UpdateCourseGroupRequest{
		GroupType:   "REGULAR",
		Price:       100,
		MaxCapacity: 10,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Empty(t, groups.updated)
}

func TestCourseGroupServiceChangeStatusTransitions(t *testing.T) {
	cases := []struct {
		name    string
		from    models.CourseGroupStatus
		to      string
		allowed bool
	}{
		{"planned to active", models.GroupStatusPlanned, "ACTIVE", true},
		{"planned to closed", models.GroupStatusPlanned, "CLOSED", true},
		{"active to closed", models.GroupStatusActive, "CLOSED", true},
		{"active to planned", models.GroupStatusActive, "PLANNED", false},
		{"closed to active", models.GroupStatusClosed, "ACTIVE", false},
		{"closed to planned", models.GroupStatusClosed, "PLANNED", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			groups := &courseGroupRepoStub{items: map[string]*models.CourseGroup{
				"group-1": {ID: "group-1", Status: tc.from},
			}}
			audits := &auditWriterStub{}
			service := newGroupService(groupServiceDeps{groups: groups, audits: audits})

			group, err := service.ChangeStatus(context.Background(), "group-1", ChangeStatusRequest{Status: tc.to}, "admin-1")
			if tc.allowed {
				require.NoError(t, err)
				assert.Equal(t, models.CourseGroupStatus(tc.to), group.Status)
				require.Len(t, audits.entries, 1)
				assert.Equal(t, models.AuditActionGroupStatusChange, audits.entries[0].Action)
			} else {
				require.Error(t, err)
				assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
				assert.Empty(t, groups.statusUpdates)
			}
		})
	}
}

func TestCourseGroupServiceAssignTeacher(t *testing.T) {
	groups := &courseGroupRepoStub{items: map[string]*models.CourseGroup{
		"group-1": {ID: "group-1", Status: models.GroupStatusPlanned},
	}}
	teachers := &teacherReaderStub{items: map[string]*models.Teacher{
		"teacher-1": {ID: "teacher-1", Active: true},
	}}
	sessions := &groupScheduleStub{
		byGroup: map[string][]models.GroupSession{
			"group-1": {{ID: "session-1", GroupID: "group-1", DayOfWeek: models.Monday, StartTime: "10:00", EndTime: "12:00"}},
		},
		byTeacher: map[string][]models.GroupSession{
			"teacher-1": {{ID: "session-2", GroupID: "group-2", DayOfWeek: models.Monday, StartTime: "12:00", EndTime: "14:00"}},
		},
	}
	audits := &auditWriterStub{}
	service := newGroupService(groupServiceDeps{groups: groups, teachers: teachers, sessions: sessions, audits: audits})

	group, err := service.AssignTeacher(context.Background(), "group-1", AssignTeacherRequest{TeacherID: "teacher-1"}, "admin-1")
	require.NoError(t, err)
	require.NotNil(t, group.TeacherID)
	assert.Equal(t, "teacher-1", *group.TeacherID)
	require.Len(t, audits.entries, 1)
	assert.Equal(t, models.AuditActionTeacherAssign, audits.entries[0].Action)
}

func TestCourseGroupServiceAssignTeacherScheduleConflict(t *testing.T) {
	groups := &courseGroupRepoStub{items: map[string]*models.CourseGroup{
		"group-1": {ID: "group-1", Status: models.GroupStatusPlanned},
	}}
	teachers := &teacherReaderStub{items: map[string]*models.Teacher{
		"teacher-1": {ID: "teacher-1", Active: true},
	}}
	sessions := &groupScheduleStub{
		byGroup: map[string][]models.GroupSession{
			"group-1": {{ID: "session-1", GroupID: "group-1", DayOfWeek: models.Monday, StartTime: "10:00", EndTime: "12:00"}},
		},
		byTeacher: map[string][]models.GroupSession{
			"teacher-1": {{ID: "session-2", GroupID: "group-2", DayOfWeek: models.Monday, StartTime: "11:00", EndTime: "13:00"}},
		},
	}
	service := newGroupService(groupServiceDeps{groups: groups, teachers: teachers, sessions: sessions})

	_, err := service.AssignTeacher(context.Background(), "group-1", AssignTeacherRequest{TeacherID: "teacher-1"}, "admin-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)

	var detail *models.SessionConflictError
	require.True(t, errors.As(err, &detail))
	assert.Equal(t, models.ConflictDimensionTeacher, detail.Type)
	assert.Empty(t, groups.teacherSet)
}

func TestCourseGroupServiceAssignTeacherAlreadyAssigned(t *testing.T) {
	groups := &courseGroupRepoStub{items: map[string]*models.CourseGroup{
		"group-1": {ID: "group-1", TeacherID: strPtr("teacher-9")},
	}}
	service := newGroupService(groupServiceDeps{groups: groups})

	_, err := service.AssignTeacher(context.Background(), "group-1", AssignTeacherRequest{TeacherID: "teacher-1"}, "admin-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
}

func TestCourseGroupServiceAssignInactiveTeacher(t *testing.T) {
	groups := &courseGroupRepoStub{items: map[string]*models.CourseGroup{
		"group-1": {ID: "group-1"},
	}}
	teachers := &teacherReaderStub{items: map[string]*models.Teacher{
		"teacher-1": {ID: "teacher-1", Active: false},
	}}
	service := newGroupService(groupServiceDeps{groups: groups, teachers: teachers})

	_, err := service.AssignTeacher(context.Background(), "group-1", AssignTeacherRequest{TeacherID: "teacher-1"}, "admin-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
}

func TestCourseGroupServiceReassignTeacherReplaces(t *testing.T) {
	groups := &courseGroupRepoStub{items: map[string]*models.CourseGroup{
		"group-1": {ID: "group-1", TeacherID: strPtr("teacher-9")},
	}}
	teachers := &teacherReaderStub{items: map[string]*models.Teacher{
		"teacher-1": {ID: "teacher-1", Active: true},
	}}
	service := newGroupService(groupServiceDeps{groups: groups, teachers: teachers})

	group, err := service.ReassignTeacher(context.Background(), "group-1", AssignTeacherRequest{TeacherID: "teacher-1"}, "admin-1")
	require.NoError(t, err)
	require.NotNil(t, group.TeacherID)
	assert.Equal(t, "teacher-1", *group.TeacherID)
}

func TestCourseGroupServiceReassignSameTeacher(t *testing.T) {
	groups := &courseGroupRepoStub{items: map[string]*models.CourseGroup{
		"group-1": {ID: "group-1", TeacherID: strPtr("teacher-1")},
	}}
	service := newGroupService(groupServiceDeps{groups: groups})

	_, err := service.ReassignTeacher(context.Background(), "group-1", AssignTeacherRequest{TeacherID: "teacher-1"}, "admin-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
}

func TestCourseGroupServiceDeletePlannedOnly(t *testing.T) {
	groups := &courseGroupRepoStub{items: map[string]*models.CourseGroup{
		"group-1": {ID: "group-1", Status: models.GroupStatusActive},
	}}
	service := newGroupService(groupServiceDeps{groups: groups})

	err := service.Delete(context.Background(), "group-1", "admin-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
	assert.Empty(t, groups.deleted)
}

func TestCourseGroupServiceDeleteWithEnrollments(t *testing.T) {
	groups := &courseGroupRepoStub{items: map[string]*models.CourseGroup{
		"group-1": {ID: "group-1", Status: models.GroupStatusPlanned},
	}}
	service := newGroupService(groupServiceDeps{groups: groups, enrollments: &enrollmentCounterStub{count: 3}})

	err := service.Delete(context.Background(), "group-1", "admin-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestCourseGroupServiceDelete(t *testing.T) {
	groups := &courseGroupRepoStub{items: map[string]*models.CourseGroup{
		"group-1": {ID: "group-1", Status: models.GroupStatusPlanned},
	}}
	cache := &detailCacheStub{}
	audits := &auditWriterStub{}
	service := newGroupService(groupServiceDeps{groups: groups, cache: cache, audits: audits})

	require.NoError(t, service.Delete(context.Background(), "group-1", "admin-1"))
	assert.Equal(t, []string{"group-1"}, groups.deleted)
	assert.Equal(t, []string{"groups:detail:group-1"}, cache.deleted)
	require.Len(t, audits.entries, 1)
	assert.Equal(t, models.AuditActionGroupDelete, audits.entries[0].Action)
}
