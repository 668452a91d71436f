package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/akademos/academy-api/internal/service"
	"github.com/akademos/academy-api/pkg/response"
)

type exportService interface {
	GroupRoster(ctx context.Context, groupID, format string) (*service.ExportResult, error)
}

// ExportHandler serves roster downloads.
type ExportHandler struct {
	service exportService
}

// NewExportHandler creates a new handler.
func NewExportHandler(svc exportService) *ExportHandler {
	return &ExportHandler{service: svc}
}

// GroupRoster godoc
// @Summary Export group roster
// @Description Download the enrollment roster of a group as CSV or PDF
// @Tags Exports
// @Produce text/csv
// @Produce application/pdf
// @Param id path string true "Group ID"
// @Param format query string false "Export format (csv or pdf)" default(csv)
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /groups/{id}/roster/export [get]
func (h *ExportHandler) GroupRoster(c *gin.Context) {
	result, err := h.service.GroupRoster(c.Request.Context(), c.Param("id"), c.DefaultQuery("format", "csv"))
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Disposition", "attachment; filename="+result.FileName)
	c.Data(200, result.ContentType, result.Data)
}
