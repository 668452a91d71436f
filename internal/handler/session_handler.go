package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/akademos/academy-api/internal/models"
	"github.com/akademos/academy-api/internal/service"
	appErrors "github.com/akademos/academy-api/pkg/errors"
	"github.com/akademos/academy-api/pkg/response"
)

// SessionHandler wires HTTP endpoints to the schedule service.
type SessionHandler struct {
	service *service.ScheduleService
}

// NewSessionHandler creates a new handler.
func NewSessionHandler(svc *service.ScheduleService) *SessionHandler {
	return &SessionHandler{service: svc}
}

// List godoc
// @Summary List sessions
// @Description List group sessions with filtering and pagination
// @Tags Sessions
// @Produce json
// @Param group_id query string false "Filter by group"
// @Param teacher_id query string false "Filter by assigned teacher"
// @Param day_of_week query string false "Filter by day of week"
// @Param classroom query string false "Filter by classroom"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /sessions [get]
func (h *SessionHandler) List(c *gin.Context) {
	filter := models.SessionFilter{
		GroupID:   c.Query("group_id"),
		TeacherID: c.Query("teacher_id"),
		DayOfWeek: models.DayOfWeek(c.Query("day_of_week")),
		Classroom: c.Query("classroom"),
		Page:      queryInt(c, "page", 1),
		PageSize:  queryInt(c, "page_size", 20),
		SortBy:    c.Query("sort_by"),
		SortOrder: c.Query("sort_order"),
	}

	sessions, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sessions, pagination)
}

// ListByGroup godoc
// @Summary List group sessions
// @Description List every session of a course group
// @Tags Sessions
// @Produce json
// @Param id path string true "Group ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /groups/{id}/sessions [get]
func (h *SessionHandler) ListByGroup(c *gin.Context) {
	sessions, err := h.service.ListByGroup(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sessions, nil)
}

// Create godoc
// @Summary Create session
// @Description Schedule a session; slot, teacher and classroom conflicts are rejected
// @Tags Sessions
// @Accept json
// @Produce json
// @Param payload body service.CreateSessionRequest true "Session payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /sessions [post]
func (h *SessionHandler) Create(c *gin.Context) {
	var req service.CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid session payload"))
		return
	}

	session, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, session)
}

// Update godoc
// @Summary Reschedule session
// @Description Update a session; the full conflict check is re-run
// @Tags Sessions
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param payload body service.UpdateSessionRequest true "Session payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /sessions/{id} [put]
func (h *SessionHandler) Update(c *gin.Context) {
	var req service.UpdateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid session payload"))
		return
	}

	session, err := h.service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, session, nil)
}

// Delete godoc
// @Summary Delete session
// @Description Remove a session entry
// @Tags Sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /sessions/{id} [delete]
func (h *SessionHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
