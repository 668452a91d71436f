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

type enrollmentRepoStub struct {
	byID     map[string]*models.Enrollment
	details  map[string]*models.EnrollmentDetail
	exists   bool
	count    int
	created  []*models.Enrollment
	deleted  []string
	payments map[string]models.PaymentStatus
	listed   []models.EnrollmentFilter
}

func (s *enrollmentRepoStub) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	s.listed = append(s.listed, filter)
	return nil, 0, nil
}

func (s *enrollmentRepoStub) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	if enrollment, ok := s.byID[id]; ok {
		cp := *enrollment
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (s *enrollmentRepoStub) FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	if detail, ok := s.details[id]; ok {
		cp := *detail
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (s *enrollmentRepoStub) Exists(ctx context.Context, studentID, groupID string) (bool, error) {
	return s.exists, nil
}

func (s *enrollmentRepoStub) CountByGroup(ctx context.Context, groupID string) (int, error) {
	return s.count, nil
}

func (s *enrollmentRepoStub) Create(ctx context.Context, enrollment *models.Enrollment) error {
	enrollment.ID = "enrollment-new"
	s.created = append(s.created, enrollment)
	return nil
}

func (s *enrollmentRepoStub) UpdatePaymentStatus(ctx context.Context, id string, status models.PaymentStatus) error {
	if s.payments == nil {
		s.payments = map[string]models.PaymentStatus{}
	}
	s.payments[id] = status
	return nil
}

func (s *enrollmentRepoStub) Delete(ctx context.Context, id string) error {
	s.deleted = append(s.deleted, id)
	return nil
}

type studentResolverStub struct {
	byID    map[string]*models.Student
	byEmail map[string]*models.Student
}

func (s *studentResolverStub) FindByID(ctx context.Context, id string) (*models.Student, error) {
	if student, ok := s.byID[id]; ok {
		cp := *student
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (s *studentResolverStub) FindByEmail(ctx context.Context, email string) (*models.Student, error) {
	if student, ok := s.byEmail[email]; ok {
		cp := *student
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

type enrollmentDeps struct {
	enrollments *enrollmentRepoStub
	students    *studentResolverStub
	groups      *courseGroupRepoStub
	subjects    *subjectReaderStub
	cache       *cacheStub
	audits      *auditWriterStub
}

func newEnrollmentService(deps enrollmentDeps) *EnrollmentService {
	if deps.enrollments == nil {
		deps.enrollments = &enrollmentRepoStub{}
	}
	if deps.students == nil {
		deps.students = &studentResolverStub{}
	}
	if deps.groups == nil {
		deps.groups = &courseGroupRepoStub{}
	}
	if deps.subjects == nil {
		deps.subjects = &subjectReaderStub{items: map[string]*models.Subject{}}
	}
	var cache cacheInvalidator
	if deps.cache != nil {
		cache = deps.cache
	}
	var audits auditWriter
	if deps.audits != nil {
		audits = deps.audits
	}
	return NewEnrollmentService(deps.enrollments, deps.students, deps.groups, deps.subjects, cache, audits, validator.New(), zap.NewNop())
}

func activeEnrollmentFixture() enrollmentDeps {
	return enrollmentDeps{
		enrollments: &enrollmentRepoStub{},
		students: &studentResolverStub{
			byID: map[string]*models.Student{
				"student-1": {ID: "student-1", Email: "ana@example.com", Major: "Mathematics", Active: true},
			},
			byEmail: map[string]*models.Student{
				"ana@example.com": {ID: "student-1", Email: "ana@example.com", Major: "Mathematics", Active: true},
			},
		},
		groups: &courseGroupRepoStub{items: map[string]*models.CourseGroup{
			"group-1": {ID: "group-1", SubjectID: "subject-1", Status: models.GroupStatusActive, MaxCapacity: 20},
		}},
		subjects: &subjectReaderStub{items: map[string]*models.Subject{
			"subject-1": {ID: "subject-1", Name: "Calculus", Major: "Mathematics"},
		}},
	}
}

func studentClaims() *models.JWTClaims {
	return &models.JWTClaims{UserID: "user-1", Role: models.RoleStudent, Email: "ana@example.com"}
}

func adminClaims() *models.JWTClaims {
	return &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin, Email: "admin@example.com"}
}

func TestEnrollmentServiceEnroll(t *testing.T) {
	deps := activeEnrollmentFixture()
	deps.cache = &cacheStub{}
	deps.audits = &auditWriterStub{}
	service := newEnrollmentService(deps)

	enrollment, err := service.Enroll(context.Background(), EnrollRequest{StudentID: "student-1", GroupID: "group-1"}, adminClaims())
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPending, enrollment.PaymentStatus)
	assert.Len(t, deps.enrollments.created, 1)
	assert.Equal(t, []string{"groups:detail:group-1"}, deps.cache.deleted)
	require.Len(t, deps.audits.entries, 1)
	assert.Equal(t, models.AuditActionEnrollmentCreate, deps.audits.entries[0].Action)
}

func TestEnrollmentServiceStudentEnrollsSelf(t *testing.T) {
	deps := activeEnrollmentFixture()
	service := newEnrollmentService(deps)

	// The student_id in the payload is ignored for student actors.
	enrollment, err := service.Enroll(context.Background(), EnrollRequest{StudentID: "someone-else", GroupID: "group-1"}, studentClaims())
	require.NoError(t, err)
	assert.Equal(t, "student-1", enrollment.StudentID)
}

func TestEnrollmentServiceEnrollInactiveGroup(t *testing.T) {
	deps := activeEnrollmentFixture()
	deps.groups.items["group-1"].Status = models.GroupStatusPlanned
	service := newEnrollmentService(deps)

	_, err := service.Enroll(context.Background(), EnrollRequest{StudentID: "student-1", GroupID: "group-1"}, adminClaims())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
}

func TestEnrollmentServiceEnrollMajorMismatch(t *testing.T) {
	deps := activeEnrollmentFixture()
	deps.subjects.items["subject-1"].Major = "Physics"
	service := newEnrollmentService(deps)

	_, err := service.Enroll(context.Background(), EnrollRequest{StudentID: "student-1", GroupID: "group-1"}, adminClaims())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
}

func TestEnrollmentServiceEnrollMajorCaseInsensitive(t *testing.T) {
	deps := activeEnrollmentFixture()
	deps.subjects.items["subject-1"].Major = "mathematics"
	service := newEnrollmentService(deps)

	_, err := service.Enroll(context.Background(), EnrollRequest{StudentID: "student-1", GroupID: "group-1"}, adminClaims())
	require.NoError(t, err)
}

func TestEnrollmentServiceEnrollDuplicate(t *testing.T) {
	deps := activeEnrollmentFixture()
	deps.enrollments.exists = true
	service := newEnrollmentService(deps)

	_, err := service.Enroll(context.Background(), EnrollRequest{StudentID: "student-1", GroupID: "group-1"}, adminClaims())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestEnrollmentServiceEnrollFullGroup(t *testing.T) {
	deps := activeEnrollmentFixture()
	deps.enrollments.count = 20
	service := newEnrollmentService(deps)

	_, err := service.Enroll(context.Background(), EnrollRequest{StudentID: "student-1", GroupID: "group-1"}, adminClaims())
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
	assert.Equal(t, "no available spots", appErr.Message)
}

func TestEnrollmentServiceEnrollLastSpot(t *testing.T) {
	deps := activeEnrollmentFixture()
	deps.enrollments.count = 19
	service := newEnrollmentService(deps)

	_, err := service.Enroll(context.Background(), EnrollRequest{StudentID: "student-1", GroupID: "group-1"}, adminClaims())
	require.NoError(t, err)
}

func TestEnrollmentServiceEnrollInactiveStudent(t *testing.T) {
	deps := activeEnrollmentFixture()
	deps.students.byID["student-1"].Active = false
	service := newEnrollmentService(deps)

	_, err := service.Enroll(context.Background(), EnrollRequest{StudentID: "student-1", GroupID: "group-1"}, adminClaims())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
}

func TestEnrollmentServiceEnrollNoStudentProfile(t *testing.T) {
	deps := activeEnrollmentFixture()
	deps.students.byEmail = map[string]*models.Student{}
	service := newEnrollmentService(deps)

	_, err := service.Enroll(context.Background(), EnrollRequest{GroupID: "group-1"}, studentClaims())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestEnrollmentServiceCancel(t *testing.T) {
	deps := activeEnrollmentFixture()
	deps.enrollments.byID = map[string]*models.Enrollment{
		"enrollment-1": {ID: "enrollment-1", StudentID: "student-1", GroupID: "group-1", PaymentStatus: models.PaymentStatusPending},
	}
	deps.cache = &cacheStub{}
	service := newEnrollmentService(deps)

	require.NoError(t, service.Cancel(context.Background(), "enrollment-1", studentClaims()))
	assert.Equal(t, []string{"enrollment-1"}, deps.enrollments.deleted)
	assert.Equal(t, []string{"groups:detail:group-1"}, deps.cache.deleted)
}

func TestEnrollmentServiceCancelPaidEnrollment(t *testing.T) {
	deps := activeEnrollmentFixture()
	deps.enrollments.byID = map[string]*models.Enrollment{
		"enrollment-1": {ID: "enrollment-1", StudentID: "student-1", GroupID: "group-1", PaymentStatus: models.PaymentStatusPaid},
	}
	service := newEnrollmentService(deps)

	err := service.Cancel(context.Background(), "enrollment-1", adminClaims())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
	assert.Empty(t, deps.enrollments.deleted)
}

func TestEnrollmentServiceCancelForeignEnrollment(t *testing.T) {
	deps := activeEnrollmentFixture()
	deps.enrollments.byID = map[string]*models.Enrollment{
		"enrollment-1": {ID: "enrollment-1", StudentID: "student-2", GroupID: "group-1", PaymentStatus: models.PaymentStatusPending},
	}
	service := newEnrollmentService(deps)

	err := service.Cancel(context.Background(), "enrollment-1", studentClaims())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestEnrollmentServiceCancelClosedGroup(t *testing.T) {
	deps := activeEnrollmentFixture()
	deps.groups.items["group-1"].Status = models.GroupStatusClosed
	deps.enrollments.byID = map[string]*models.Enrollment{
		"enrollment-1": {ID: "enrollment-1", StudentID: "student-1", GroupID: "group-1", PaymentStatus: models.PaymentStatusPending},
	}
	service := newEnrollmentService(deps)

	err := service.Cancel(context.Background(), "enrollment-1", adminClaims())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
}

func TestEnrollmentServiceUpdatePaymentStatus(t *testing.T) {
	deps := activeEnrollmentFixture()
	deps.enrollments.byID = map[string]*models.Enrollment{
		"enrollment-1": {ID: "enrollment-1", PaymentStatus: models.PaymentStatusPending},
	}
	service := newEnrollmentService(deps)

	enrollment, err := service.UpdatePaymentStatus(context.Background(), "enrollment-1", UpdatePaymentStatusRequest{PaymentStatus: "PAID"})
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPaid, enrollment.PaymentStatus)
	assert.Equal(t, models.PaymentStatusPaid, deps.enrollments.payments["enrollment-1"])
}

func TestEnrollmentServiceUpdatePaymentStatusNoop(t *testing.T) {
	deps := activeEnrollmentFixture()
	deps.enrollments.byID = map[string]*models.Enrollment{
		"enrollment-1": {ID: "enrollment-1", PaymentStatus: models.PaymentStatusPaid},
	}
	service := newEnrollmentService(deps)

	_, err := service.UpdatePaymentStatus(context.Background(), "enrollment-1", UpdatePaymentStatusRequest{PaymentStatus: "PAID"})
	require.NoError(t, err)
	assert.Empty(t, deps.enrollments.payments)
}

func TestEnrollmentServiceListScopesStudents(t *testing.T) {
	deps := activeEnrollmentFixture()
	service := newEnrollmentService(deps)

	_, _, err := service.List(context.Background(), models.EnrollmentFilter{}, studentClaims())
	require.NoError(t, err)
	require.Len(t, deps.enrollments.listed, 1)
	assert.Equal(t, "student-1", deps.enrollments.listed[0].StudentID)
}

func TestEnrollmentServiceGetForeignEnrollment(t *testing.T) {
	deps := activeEnrollmentFixture()
	deps.enrollments.details = map[string]*models.EnrollmentDetail{
		"enrollment-1": {Enrollment: models.Enrollment{ID: "enrollment-1", StudentID: "student-2"}},
	}
	service := newEnrollmentService(deps)

	_, err := service.Get(context.Background(), "enrollment-1", studentClaims())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}
