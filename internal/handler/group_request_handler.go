package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/akademos/academy-api/internal/models"
	"github.com/akademos/academy-api/internal/service"
	appErrors "github.com/akademos/academy-api/pkg/errors"
	"github.com/akademos/academy-api/pkg/response"
)

type groupRequestService interface {
	List(ctx context.Context, filter models.GroupRequestFilter, actor *models.JWTClaims) ([]models.GroupRequestDetail, *models.Pagination, error)
	Create(ctx context.Context, req service.CreateGroupRequestRequest, actor *models.JWTClaims) (*models.GroupRequest, error)
	Resolve(ctx context.Context, id string, req service.ResolveGroupRequestRequest, actor *models.JWTClaims) (*models.GroupRequest, error)
}

// GroupRequestHandler wires HTTP endpoints to the group request service.
type GroupRequestHandler struct {
	service groupRequestService
}

// NewGroupRequestHandler creates a new handler.
func NewGroupRequestHandler(svc groupRequestService) *GroupRequestHandler {
	return &GroupRequestHandler{service: svc}
}

// List godoc
// @Summary List group requests
// @Description List group-creation requests; students only see their own
// @Tags Group Requests
// @Produce json
// @Param student_id query string false "Filter by student"
// @Param subject_id query string false "Filter by subject"
// @Param status query string false "Filter by status"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /group-requests [get]
func (h *GroupRequestHandler) List(c *gin.Context) {
	filter := models.GroupRequestFilter{
		StudentID: c.Query("student_id"),
		SubjectID: c.Query("subject_id"),
		Status:    models.GroupRequestStatus(c.Query("status")),
		Page:      queryInt(c, "page", 1),
		PageSize:  queryInt(c, "page_size", 20),
		SortBy:    c.Query("sort_by"),
		SortOrder: c.Query("sort_order"),
	}

	requests, pagination, err := h.service.List(c.Request.Context(), filter, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, requests, pagination)
}

// Create godoc
// @Summary Request a new group
// @Description File a group-creation request for a subject without open groups
// @Tags Group Requests
// @Accept json
// @Produce json
// @Param payload body service.CreateGroupRequestRequest true "Request payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /group-requests [post]
func (h *GroupRequestHandler) Create(c *gin.Context) {
	var req service.CreateGroupRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid group request payload"))
		return
	}

	request, err := h.service.Create(c.Request.Context(), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, request)
}

// Resolve godoc
// @Summary Resolve group request
// @Description Approve or reject a pending request
// @Tags Group Requests
// @Accept json
// @Produce json
// @Param id path string true "Request ID"
// @Param payload body service.ResolveGroupRequestRequest true "Resolution payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /group-requests/{id}/resolve [post]
func (h *GroupRequestHandler) Resolve(c *gin.Context) {
	var req service.ResolveGroupRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid resolution payload"))
		return
	}

	request, err := h.service.Resolve(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, request, nil)
}
