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

type courseGroupService interface {
	List(ctx context.Context, filter models.CourseGroupFilter) ([]models.CourseGroupDetail, *models.Pagination, error)
	Get(ctx context.Context, id string) (*models.CourseGroupDetail, error)
	Create(ctx context.Context, req service.CreateCourseGroupRequest) (*models.CourseGroup, error)
	Update(ctx context.Context, id string, req service.UpdateCourseGroupRequest) (*models.CourseGroup, error)
	ChangeStatus(ctx context.Context, id string, req service.ChangeStatusRequest, actorID string) (*models.CourseGroup, error)
	AssignTeacher(ctx context.Context, id string, req service.AssignTeacherRequest, actorID string) (*models.CourseGroup, error)
	ReassignTeacher(ctx context.Context, id string, req service.AssignTeacherRequest, actorID string) (*models.CourseGroup, error)
	Delete(ctx context.Context, id string, actorID string) error
}

// CourseGroupHandler wires HTTP endpoints to the course group service.
type CourseGroupHandler struct {
	service courseGroupService
}

// NewCourseGroupHandler creates a new handler.
func NewCourseGroupHandler(svc courseGroupService) *CourseGroupHandler {
	return &CourseGroupHandler{service: svc}
}

// List godoc
// @Summary List course groups
// @Description List course groups with filtering and pagination
// @Tags Course Groups
// @Produce json
// @Param subject_id query string false "Filter by subject"
// @Param teacher_id query string false "Filter by teacher"
// @Param status query string false "Filter by lifecycle status"
// @Param group_type query string false "Filter by group type"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /groups [get]
func (h *CourseGroupHandler) List(c *gin.Context) {
	filter := models.CourseGroupFilter{
		SubjectID: c.Query("subject_id"),
		TeacherID: c.Query("teacher_id"),
		Status:    models.CourseGroupStatus(c.Query("status")),
		GroupType: models.CourseGroupType(c.Query("group_type")),
		Page:      queryInt(c, "page", 1),
		PageSize:  queryInt(c, "page_size", 20),
		SortBy:    c.Query("sort_by"),
		SortOrder: c.Query("sort_order"),
	}

	groups, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, groups, pagination)
}

// Get godoc
// @Summary Get course group
// @Description Get group detail with occupancy
// @Tags Course Groups
// @Produce json
// @Param id path string true "Group ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /groups/{id} [get]
func (h *CourseGroupHandler) Get(c *gin.Context) {
	detail, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// Create godoc
// @Summary Create course group
// @Description Open a new group in PLANNED status
// @Tags Course Groups
// @Accept json
// @Produce json
// @Param payload body service.CreateCourseGroupRequest true "Group payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /groups [post]
func (h *CourseGroupHandler) Create(c *gin.Context) {
	var req service.CreateCourseGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid course group payload"))
		return
	}

	group, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, group)
}

// Update godoc
// @Summary Update course group
// @Description Update mutable group attributes
// @Tags Course Groups
// @Accept json
// @Produce json
// @Param id path string true "Group ID"
// @Param payload body service.UpdateCourseGroupRequest true "Group payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /groups/{id} [put]
func (h *CourseGroupHandler) Update(c *gin.Context) {
	var req service.UpdateCourseGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid course group payload"))
		return
	}

	group, err := h.service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, group, nil)
}

// ChangeStatus godoc
// @Summary Change group status
// @Description Move the group through its lifecycle state machine
// @Tags Course Groups
// @Accept json
// @Produce json
// @Param id path string true "Group ID"
// @Param payload body service.ChangeStatusRequest true "Status payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /groups/{id}/status [patch]
func (h *CourseGroupHandler) ChangeStatus(c *gin.Context) {
	var req service.ChangeStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid status payload"))
		return
	}

	group, err := h.service.ChangeStatus(c.Request.Context(), c.Param("id"), req, actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, group, nil)
}

// AssignTeacher godoc
// @Summary Assign teacher
// @Description Assign a teacher to a group without one; the candidate's schedule is checked
// @Tags Course Groups
// @Accept json
// @Produce json
// @Param id path string true "Group ID"
// @Param payload body service.AssignTeacherRequest true "Assignment payload"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /groups/{id}/teacher [post]
func (h *CourseGroupHandler) AssignTeacher(c *gin.Context) {
	var req service.AssignTeacherRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid assignment payload"))
		return
	}

	group, err := h.service.AssignTeacher(c.Request.Context(), c.Param("id"), req, actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, group, nil)
}

// ReassignTeacher godoc
// @Summary Reassign teacher
// @Description Replace the group's teacher; the candidate's schedule is checked
// @Tags Course Groups
// @Accept json
// @Produce json
// @Param id path string true "Group ID"
// @Param payload body service.AssignTeacherRequest true "Assignment payload"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /groups/{id}/teacher [put]
func (h *CourseGroupHandler) ReassignTeacher(c *gin.Context) {
	var req service.AssignTeacherRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid assignment payload"))
		return
	}

	group, err := h.service.ReassignTeacher(c.Request.Context(), c.Param("id"), req, actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, group, nil)
}

// Delete godoc
// @Summary Delete course group
// @Description Remove a PLANNED group with no enrollments
// @Tags Course Groups
// @Produce json
// @Param id path string true "Group ID"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /groups/{id} [delete]
func (h *CourseGroupHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id"), actorID(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

func actorID(c *gin.Context) string {
	if claims := claimsFromContext(c); claims != nil {
		return claims.UserID
	}
	return ""
}
