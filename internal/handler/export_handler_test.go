package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akademos/academy-api/internal/service"
	appErrors "github.com/akademos/academy-api/pkg/errors"
)

type exportServiceMock struct {
	result     *service.ExportResult
	err        error
	lastFormat string
}

func (m *exportServiceMock) GroupRoster(ctx context.Context, groupID, format string) (*service.ExportResult, error) {
	m.lastFormat = format
	return m.result, m.err
}

func TestExportHandlerGroupRoster(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &exportServiceMock{
		result: &service.ExportResult{
			FileName:    "roster_group-1.csv",
			ContentType: "text/csv",
			Data:        []byte("Student,Email\n"),
		},
	}
	handler := NewExportHandler(mockSvc)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/groups/group-1/roster/export", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "group-1"}}

	handler.GroupRoster(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "csv", mockSvc.lastFormat)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "roster_group-1.csv")
}

func TestExportHandlerGroupRosterFormatQuery(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &exportServiceMock{
		result: &service.ExportResult{FileName: "roster_group-1.pdf", ContentType: "application/pdf", Data: []byte("%PDF")},
	}
	handler := NewExportHandler(mockSvc)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/groups/group-1/roster/export?format=pdf", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "group-1"}}

	handler.GroupRoster(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pdf", mockSvc.lastFormat)
}

func TestExportHandlerGroupRosterNotFound(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &exportServiceMock{err: appErrors.ErrNotFound}
	handler := NewExportHandler(mockSvc)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/groups/missing/roster/export", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "missing"}}

	handler.GroupRoster(c)
	require.Equal(t, http.StatusNotFound, w.Code)
}
