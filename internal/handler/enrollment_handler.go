package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/course-cms-api/internal/middleware"
	"github.com/noah-isme/course-cms-api/internal/service"
	appErrors "github.com/noah-isme/course-cms-api/pkg/errors"
	"github.com/noah-isme/course-cms-api/pkg/response"
)

// EnrollmentHandler handles call application endpoints.
type EnrollmentHandler struct {
	service *service.EnrollmentService
}

// NewEnrollmentHandler creates a new enrollment handler.
func NewEnrollmentHandler(svc *service.EnrollmentService) *EnrollmentHandler {
	return &EnrollmentHandler{service: svc}
}

// Enroll godoc
// @Summary Enroll student in call
// @Description Apply a student to an enrollment call
// @Tags Enrollments
// @Produce json
// @Param id path string true "Call ID"
// @Param studentId path string true "Student ID"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /calls/{id}/students/{studentId} [post]
func (h *EnrollmentHandler) Enroll(c *gin.Context) {
	enrollment, err := h.service.Enroll(c.Request.Context(), c.Param("studentId"), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, enrollment)
}

// Withdraw godoc
// @Summary Withdraw student from call
// @Tags Enrollments
// @Produce json
// @Param id path string true "Call ID"
// @Param studentId path string true "Student ID"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /calls/{id}/students/{studentId} [delete]
func (h *EnrollmentHandler) Withdraw(c *gin.Context) {
	if err := h.service.Withdraw(c.Request.Context(), c.Param("studentId"), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// BulkEnroll godoc
// @Summary Bulk enroll students
// @Description Enroll multiple students in one call, best effort
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param id path string true "Call ID"
// @Param payload body service.BulkEnrollRequest true "Student IDs"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /calls/{id}/enrollments/bulk [post]
func (h *EnrollmentHandler) BulkEnroll(c *gin.Context) {
	var req service.BulkEnrollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	result, err := h.service.BulkEnroll(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// BulkWithdraw godoc
// @Summary Bulk withdraw students
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param id path string true "Call ID"
// @Param payload body service.BulkWithdrawRequest true "Student IDs"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /calls/{id}/withdrawals/bulk [post]
func (h *EnrollmentHandler) BulkWithdraw(c *gin.Context) {
	var req service.BulkWithdrawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	result, err := h.service.BulkWithdraw(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Capacity godoc
// @Summary Get call capacity
// @Description Current occupancy and available spots for a call
// @Tags Enrollments
// @Produce json
// @Param id path string true "Call ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /calls/{id}/capacity [get]
func (h *EnrollmentHandler) Capacity(c *gin.Context) {
	info, err := h.service.CapacityInfo(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, info, nil, middleware.ExtractMeta(c))
}

// Students godoc
// @Summary List call applicants
// @Tags Enrollments
// @Produce json
// @Param id path string true "Call ID"
// @Success 200 {object} response.Envelope
// @Router /calls/{id}/students [get]
func (h *EnrollmentHandler) Students(c *gin.Context) {
	students, err := h.service.ListStudentsByCall(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, students, nil)
}

// Exists godoc
// @Summary Check whether a student applied to a call
// @Tags Enrollments
// @Produce json
// @Param id path string true "Call ID"
// @Param studentId path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /calls/{id}/students/{studentId}/exists [get]
func (h *EnrollmentHandler) Exists(c *gin.Context) {
	exists, err := h.service.Exists(c.Request.Context(), c.Param("studentId"), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"exists": exists}, nil)
}

// List godoc
// @Summary List all enrollments
// @Tags Enrollments
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /enrollments [get]
func (h *EnrollmentHandler) List(c *gin.Context) {
	enrollments, err := h.service.ListAll(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollments, nil)
}

// Statistics godoc
// @Summary Enrollment statistics
// @Description Aggregate figures over students and calls
// @Tags Enrollments
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /enrollments/statistics [get]
func (h *EnrollmentHandler) Statistics(c *gin.Context) {
	stats, err := h.service.Statistics(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil, middleware.ExtractMeta(c))
}
