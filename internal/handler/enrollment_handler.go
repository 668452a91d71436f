package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/akademos/academy-api/internal/models"
	"github.com/akademos/academy-api/internal/service"
	appErrors "github.com/akademos/academy-api/pkg/errors"
	"github.com/akademos/academy-api/pkg/response"
)

// EnrollmentHandler wires HTTP endpoints to the enrollment service.
type EnrollmentHandler struct {
	service *service.EnrollmentService
}

// NewEnrollmentHandler creates a new handler.
func NewEnrollmentHandler(svc *service.EnrollmentService) *EnrollmentHandler {
	return &EnrollmentHandler{service: svc}
}

// List godoc
// @Summary List enrollments
// @Description List enrollments; students only see their own
// @Tags Enrollments
// @Produce json
// @Param student_id query string false "Filter by student"
// @Param group_id query string false "Filter by group"
// @Param payment_status query string false "Filter by payment status"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /enrollments [get]
func (h *EnrollmentHandler) List(c *gin.Context) {
	filter := models.EnrollmentFilter{
		StudentID:     c.Query("student_id"),
		GroupID:       c.Query("group_id"),
		PaymentStatus: models.PaymentStatus(c.Query("payment_status")),
		Page:          queryInt(c, "page", 1),
		PageSize:      queryInt(c, "page_size", 20),
		SortBy:        c.Query("sort_by"),
		SortOrder:     c.Query("sort_order"),
	}

	enrollments, pagination, err := h.service.List(c.Request.Context(), filter, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollments, pagination)
}

// Get godoc
// @Summary Get enrollment
// @Description Get a single enrollment with context
// @Tags Enrollments
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /enrollments/{id} [get]
func (h *EnrollmentHandler) Get(c *gin.Context) {
	detail, err := h.service.Get(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// Enroll godoc
// @Summary Enroll student
// @Description Admit a student into an ACTIVE group with a free spot
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param payload body service.EnrollRequest true "Enrollment payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /enrollments [post]
func (h *EnrollmentHandler) Enroll(c *gin.Context) {
	var req service.EnrollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid enrollment payload"))
		return
	}

	enrollment, err := h.service.Enroll(c.Request.Context(), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, enrollment)
}

// Cancel godoc
// @Summary Cancel enrollment
// @Description Cancel an enrollment with pending payment
// @Tags Enrollments
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /enrollments/{id} [delete]
func (h *EnrollmentHandler) Cancel(c *gin.Context) {
	if err := h.service.Cancel(c.Request.Context(), c.Param("id"), claimsFromContext(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// UpdatePaymentStatus godoc
// @Summary Update payment status
// @Description Change the payment state of an enrollment
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param id path string true "Enrollment ID"
// @Param payload body service.UpdatePaymentStatusRequest true "Payment payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /enrollments/{id}/payment [patch]
func (h *EnrollmentHandler) UpdatePaymentStatus(c *gin.Context) {
	var req service.UpdatePaymentStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payment payload"))
		return
	}

	enrollment, err := h.service.UpdatePaymentStatus(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollment, nil)
}
