package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akademos/academy-api/internal/middleware"
	"github.com/akademos/academy-api/internal/models"
	"github.com/akademos/academy-api/internal/service"
	appErrors "github.com/akademos/academy-api/pkg/errors"
)

type groupRequestServiceMock struct {
	listResp    []models.GroupRequestDetail
	listErr     error
	createResp  *models.GroupRequest
	createErr   error
	resolveResp *models.GroupRequest
	resolveErr  error
	lastActor   *models.JWTClaims
	lastResolve service.ResolveGroupRequestRequest
}

func (m *groupRequestServiceMock) List(ctx context.Context, filter models.GroupRequestFilter, actor *models.JWTClaims) ([]models.GroupRequestDetail, *models.Pagination, error) {
	m.lastActor = actor
	return m.listResp, &models.Pagination{Page: 1, PageSize: 20, TotalCount: len(m.listResp)}, m.listErr
}

func (m *groupRequestServiceMock) Create(ctx context.Context, req service.CreateGroupRequestRequest, actor *models.JWTClaims) (*models.GroupRequest, error) {
	m.lastActor = actor
	return m.createResp, m.createErr
}

func (m *groupRequestServiceMock) Resolve(ctx context.Context, id string, req service.ResolveGroupRequestRequest, actor *models.JWTClaims) (*models.GroupRequest, error) {
	m.lastActor = actor
	m.lastResolve = req
	return m.resolveResp, m.resolveErr
}

func TestGroupRequestHandlerListPassesClaims(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &groupRequestServiceMock{}
	handler := NewGroupRequestHandler(mockSvc)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/group-requests?status=PENDING", nil)
	c.Request = req
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "user-1", Role: models.RoleStudent})

	handler.List(c)
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, mockSvc.lastActor)
	assert.Equal(t, "user-1", mockSvc.lastActor.UserID)
}

func TestGroupRequestHandlerCreateConflict(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &groupRequestServiceMock{createErr: appErrors.ErrConflict}
	handler := NewGroupRequestHandler(mockSvc)

	payload, _ := json.Marshal(service.CreateGroupRequestRequest{SubjectID: "subject-1"})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/group-requests", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "user-1", Role: models.RoleStudent})

	handler.Create(c)
	require.Equal(t, http.StatusConflict, w.Code)
}

func TestGroupRequestHandlerResolve(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &groupRequestServiceMock{
		resolveResp: &models.GroupRequest{ID: "request-1", Status: models.RequestStatusApproved},
	}
	handler := NewGroupRequestHandler(mockSvc)

	payload, _ := json.Marshal(service.ResolveGroupRequestRequest{Action: "APPROVE"})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/group-requests/request-1/resolve", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "request-1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin})

	handler.Resolve(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "APPROVE", mockSvc.lastResolve.Action)
}

func TestGroupRequestHandlerResolveInvalidBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewGroupRequestHandler(&groupRequestServiceMock{})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/group-requests/request-1/resolve", bytes.NewBufferString(`{"action"`))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "request-1"}}

	handler.Resolve(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}
